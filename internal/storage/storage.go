// Package storage holds the cost tables behind a small repository interface
// so callers never touch the files directly.
package storage

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/OldStager01/cloudpulse/pkg/models"
)

var ErrTableNotFound = errors.New("table not found")

// Table is an append-mostly collection of rows.
type Table[T any] interface {
	// Append adds rows to the end of the table, creating it if needed.
	Append(ctx context.Context, rows ...T) error
	// ReadAll returns every row in insertion order. A table that does not
	// exist yet yields ErrTableNotFound.
	ReadAll(ctx context.Context) ([]T, error)
	// AtomicReplace swaps the whole table for rows. Readers see either the
	// old or the new contents, never a mix.
	AtomicReplace(ctx context.Context, rows []T) error
}

type HourlyTable = Table[models.HourlyCostRecord]

type DailyTable = Table[models.DailyCostRecord]

// Store groups the tables the service works with.
type Store struct {
	Hourly HourlyTable
	Daily  DailyTable
}

// OpenCSV returns a Store whose tables live as CSV files under dir.
func OpenCSV(dir, hourlyFile, dailyFile string) *Store {
	return &Store{
		Hourly: NewCSVTable[models.HourlyCostRecord](filepath.Join(dir, hourlyFile), HourlyCodec{}),
		Daily:  NewCSVTable[models.DailyCostRecord](filepath.Join(dir, dailyFile), DailyCodec{}),
	}
}

// ReadOrEmpty treats a missing table as an empty one.
func ReadOrEmpty[T any](ctx context.Context, t Table[T]) ([]T, error) {
	rows, err := t.ReadAll(ctx)
	if errors.Is(err, ErrTableNotFound) {
		return []T{}, nil
	}
	return rows, err
}

// RebuildDaily recomputes the daily table from the hourly one.
func (s *Store) RebuildDaily(ctx context.Context) ([]models.DailyCostRecord, error) {
	hourly, err := ReadOrEmpty(ctx, s.Hourly)
	if err != nil {
		return nil, err
	}
	daily := models.DailyTotals(hourly)
	if err := s.Daily.AtomicReplace(ctx, daily); err != nil {
		return nil, err
	}
	return daily, nil
}

// HealthCheck confirms the daily table is readable. A table that has not
// been written yet counts as healthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	_, err := ReadOrEmpty(ctx, s.Daily)
	return err
}
