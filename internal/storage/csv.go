package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/OldStager01/cloudpulse/internal/logger"
)

// CSVTable stores rows in a header-prefixed CSV file. Writers are
// serialized; replacements go through a temp file and a rename.
type CSVTable[T any] struct {
	path  string
	codec Codec[T]
	mu    sync.RWMutex
}

func NewCSVTable[T any](path string, codec Codec[T]) *CSVTable[T] {
	return &CSVTable[T]{path: path, codec: codec}
}

func (t *CSVTable[T]) Path() string {
	return t.path
}

func (t *CSVTable[T]) ReadAll(ctx context.Context) ([]T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	f, err := os.Open(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", t.path, ErrTableNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", t.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if err == io.EOF {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header %s: %w", t.path, err)
	}
	cols := NewColumns(header)

	rows := make([]T, 0, 1024)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				logger.WithFields(map[string]interface{}{
					"path": t.path,
					"line": parseErr.StartLine,
				}).WithError(parseErr.Err).Debug("Dropped malformed CSV row")
				continue
			}
			return nil, fmt.Errorf("read %s: %w", t.path, err)
		}
		if isBlank(record) {
			continue
		}
		rows = append(rows, t.codec.Decode(record, cols))
	}

	return rows, nil
}

func (t *CSVTable[T]) Append(ctx context.Context, rows ...T) error {
	if len(rows) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", t.path, err)
	}

	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", t.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", t.path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(t.codec.Header()); err != nil {
			return fmt.Errorf("write header %s: %w", t.path, err)
		}
	}
	for _, row := range rows {
		if err := w.Write(t.codec.Encode(row)); err != nil {
			return fmt.Errorf("append %s: %w", t.path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", t.path, err)
	}
	return f.Sync()
}

func (t *CSVTable[T]) AtomicReplace(ctx context.Context, rows []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", t.path, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(t.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", t.path, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(t.codec.Header()); err != nil {
		return fmt.Errorf("write header %s: %w", tmpName, err)
	}
	for _, row := range rows {
		if err := w.Write(t.codec.Encode(row)); err != nil {
			return fmt.Errorf("write %s: %w", tmpName, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, t.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmpName, err)
	}
	committed = true
	return nil
}

func isBlank(record []string) bool {
	for _, field := range record {
		if field != "" {
			return false
		}
	}
	return true
}
