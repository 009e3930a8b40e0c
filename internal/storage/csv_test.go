package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/cloudpulse/internal/logger"
	"github.com/OldStager01/cloudpulse/pkg/models"
)

func TestCSVTable_MissingFile(t *testing.T) {
	table := NewCSVTable[models.HourlyCostRecord](filepath.Join(t.TempDir(), "hourly.csv"), HourlyCodec{})

	_, err := table.ReadAll(context.Background())
	assert.ErrorIs(t, err, ErrTableNotFound)

	rows, err := ReadOrEmpty[models.HourlyCostRecord](context.Background(), table)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCSVTable_AppendWritesHeaderOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "hourly.csv")
	table := NewCSVTable[models.HourlyCostRecord](path, HourlyCodec{})

	ts := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, table.Append(ctx, models.NewHourlyCostRecord(ts, "EC2", 10.5)))
	require.NoError(t, table.Append(ctx, models.NewHourlyCostRecord(ts.Add(time.Hour), "RDS", 4)))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "timestamp,service,cost\n2024-01-01 09:00:00,EC2,10.5\n2024-01-01 10:00:00,RDS,4\n", string(content))

	rows, err := table.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "EC2", rows[0].Service)
	assert.Equal(t, 10.5, rows[0].Cost)
	assert.True(t, rows[1].Timestamp.Equal(ts.Add(time.Hour)))
}

func TestCSVTable_MalformedRowsAreCoerced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hourly.csv")
	data := "timestamp,service,cost\n" +
		"2024-01-01 09:00:00,EC2,abc\n" +
		"soon,RDS,3.5\n" +
		"\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	rows, err := NewCSVTable[models.HourlyCostRecord](path, HourlyCodec{}).ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 0.0, rows[0].Cost)
	assert.True(t, rows[0].HasTime())
	assert.False(t, rows[1].HasTime())
	assert.Equal(t, "soon", rows[1].Raw)
	assert.Equal(t, 3.5, rows[1].Cost)
}

func TestCSVTable_UnparseableRowIsDroppedAndLogged(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(os.Stdout)
	logger.Setup("debug", "production")
	defer logger.Setup("info", "production")

	path := filepath.Join(t.TempDir(), "hourly.csv")
	data := "timestamp,service,cost\n" +
		"2024-01-01 09:00:00,EC2,1\n" +
		"2024-01-01 10:00:00,E\"C2,2\n" +
		"2024-01-01 11:00:00,RDS,3\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	rows, err := NewCSVTable[models.HourlyCostRecord](path, HourlyCodec{}).ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "RDS", rows[1].Service)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "Dropped malformed CSV row", entry["msg"])
	assert.Equal(t, path, entry["path"])
	assert.EqualValues(t, 3, entry["line"])
}

func TestCSVTable_HeaderOnlyIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daily.csv")
	require.NoError(t, os.WriteFile(path, []byte("date,total_cost\n"), 0o644))

	rows, err := NewCSVTable[models.DailyCostRecord](path, DailyCodec{}).ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDailyCodec_ColumnAliases(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{name: "canonical", header: "date,total_cost"},
		{name: "forecast columns", header: "ds,y"},
		{name: "reordered", header: "total_cost,date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "daily.csv")
			row := "2024-03-01,120.5"
			if tt.name == "reordered" {
				row = "120.5,2024-03-01"
			}
			require.NoError(t, os.WriteFile(path, []byte(tt.header+"\n"+row+"\n"), 0o644))

			rows, err := NewCSVTable[models.DailyCostRecord](path, DailyCodec{}).ReadAll(context.Background())
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, 120.5, rows[0].TotalCost)
			assert.Equal(t, "2024-03-01", rows[0].Date.Format(models.DailyDateLayout))
		})
	}
}

func TestCSVTable_AtomicReplace(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "daily.csv")
	table := NewCSVTable[models.DailyCostRecord](path, DailyCodec{})

	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, table.Append(ctx, models.NewDailyCostRecord(day, 1)))

	replacement := []models.DailyCostRecord{
		models.NewDailyCostRecord(day, 100),
		models.NewDailyCostRecord(day.AddDate(0, 0, 1), 200),
	}
	require.NoError(t, table.AtomicReplace(ctx, replacement))

	rows, err := table.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 100.0, rows[0].TotalCost)
	assert.Equal(t, 200.0, rows[1].TotalCost)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestCSVTable_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	table := NewCSVTable[models.HourlyCostRecord](filepath.Join(t.TempDir(), "hourly.csv"), HourlyCodec{})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := models.NewHourlyCostRecord(base.Add(time.Duration(i)*time.Hour), fmt.Sprintf("svc-%d", i), float64(i))
			assert.NoError(t, table.Append(ctx, rec))
		}(i)
	}
	wg.Wait()

	rows, err := table.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 20)
}

func TestStore_RebuildDaily(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC)

	require.NoError(t, store.Hourly.Append(ctx,
		models.NewHourlyCostRecord(base, "EC2", 10),
		models.NewHourlyCostRecord(base.Add(time.Hour), "EC2", 5),
		models.NewHourlyCostRecord(base.Add(2*time.Hour), "EC2", 7),
	))

	daily, err := store.RebuildDaily(ctx)
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.Equal(t, 15.0, daily[0].TotalCost)
	assert.Equal(t, 7.0, daily[1].TotalCost)

	stored, err := store.Daily.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, daily, stored)
}

func TestMemoryTable_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	table := NewMemoryTable(models.DailyCostRecord{TotalCost: 1})

	rows, err := table.ReadAll(ctx)
	require.NoError(t, err)
	rows[0].TotalCost = 99

	again, err := table.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, again[0].TotalCost)
}
