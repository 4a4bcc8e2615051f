package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRow(date, content string) []string {
	return []string{date, content, `["a","b"]`, "5.88", "0", "0", "0", "0", "0", "msg", "2025-01-01T00:00:00Z"}
}

// exerciseBackend runs the shared row contract against any backend.
func exerciseBackend(t *testing.T, b TabularBackend) {
	ctx := context.Background()

	rows, err := b.ListRows(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, b.AppendRow(ctx, sampleRow("2025-01-01", "first")))
	require.NoError(t, b.AppendRow(ctx, sampleRow("2025-01-02", "second")))
	require.NoError(t, b.AppendRow(ctx, sampleRow("2025-01-03", "third")))

	rows, err = b.ListRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "second", rows[1][1])

	require.NoError(t, b.UpdateRow(ctx, 1, sampleRow("2025-01-02", "second, edited")))
	require.NoError(t, b.DeleteRow(ctx, 0))

	rows, err = b.ListRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, sampleRow("2025-01-02", "second, edited"), rows[0])
	assert.Equal(t, "2025-01-03", rows[1][0])

	assert.ErrorIs(t, b.UpdateRow(ctx, -1, sampleRow("x", "y")), ErrIndexOutOfRange)
	assert.ErrorIs(t, b.DeleteRow(ctx, -1), ErrIndexOutOfRange)
}

func TestBackends_IndexPastEnd(t *testing.T) {
	sqlite, err := NewSQLiteTable(filepath.Join(t.TempDir(), "diary.db"))
	require.NoError(t, err)
	defer sqlite.Close()

	backends := map[string]TabularBackend{
		"memory": NewMemoryTable(sampleRow("2025-01-01", "first")),
		"sqlite": sqlite,
		"blob":   NewBlobTable(newMemoryBlobs(), "diary_data.csv"),
	}
	for name, b := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, b.AppendRow(ctx, sampleRow("2025-01-02", "second")))
			assert.ErrorIs(t, b.UpdateRow(ctx, 5, sampleRow("x", "y")), ErrIndexOutOfRange)
			assert.ErrorIs(t, b.DeleteRow(ctx, 5), ErrIndexOutOfRange)
		})
	}
}

func TestMemoryTable(t *testing.T) {
	exerciseBackend(t, NewMemoryTable())
}

func TestMemoryTable_ListReturnsCopies(t *testing.T) {
	table := NewMemoryTable(sampleRow("2025-01-01", "first"))

	rows, err := table.ListRows(context.Background())
	require.NoError(t, err)
	rows[0][1] = "mutated"

	rows, err = table.ListRows(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", rows[0][1])
	assert.Equal(t, 1, table.Len())
}

func TestSQLiteTable(t *testing.T) {
	table, err := NewSQLiteTable(filepath.Join(t.TempDir(), "diary.db"))
	require.NoError(t, err)
	defer table.Close()

	exerciseBackend(t, table)
}

func TestSQLiteTable_PadsShortRows(t *testing.T) {
	table, err := NewSQLiteTable(filepath.Join(t.TempDir(), "diary.db"))
	require.NoError(t, err)
	defer table.Close()

	ctx := context.Background()
	require.NoError(t, table.AppendRow(ctx, []string{"2025-02-01", "short"}))

	rows, err := table.ListRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0], len(Columns))
	assert.Equal(t, "", rows[0][10])
}

func TestNewSQLiteTable_RequiresPath(t *testing.T) {
	_, err := NewSQLiteTable("")
	assert.Error(t, err)
}

// memoryBlobs is an in-memory BlobStore with versioned ETags. beforeStore, when set,
// runs ahead of every write so a test can slip another writer in.
type memoryBlobs struct {
	mu          sync.Mutex
	blobs       map[string][]byte
	versions    map[string]int
	beforeStore func(name string)
}

func newMemoryBlobs() *memoryBlobs {
	return &memoryBlobs{blobs: make(map[string][]byte), versions: make(map[string]int)}
}

func (m *memoryBlobs) Store(_ context.Context, name string, data []byte, cond *Precondition) (string, error) {
	if m.beforeStore != nil {
		m.beforeStore(name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.blobs[name]
	current := fmt.Sprintf("v%d", m.versions[name])
	if cond != nil {
		if cond.Missing && exists {
			return "", fmt.Errorf("%s: %w", name, ErrConditionNotMet)
		}
		if !cond.Missing && (!exists || cond.ETag != current) {
			return "", fmt.Errorf("%s: %w", name, ErrConditionNotMet)
		}
	}
	m.blobs[name] = append([]byte(nil), data...)
	m.versions[name]++
	return fmt.Sprintf("v%d", m.versions[name]), nil
}

func (m *memoryBlobs) put(t *testing.T, name, data string) {
	t.Helper()
	_, err := m.Store(context.Background(), name, []byte(data), nil)
	require.NoError(t, err)
}

func (m *memoryBlobs) Retrieve(_ context.Context, name string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[name]
	if !ok {
		return nil, "", fmt.Errorf("%s: %w", name, ErrBlobNotFound)
	}
	return append([]byte(nil), data...), fmt.Sprintf("v%d", m.versions[name]), nil
}

func (m *memoryBlobs) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for name := range m.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *memoryBlobs) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, name)
	return nil
}

func (m *memoryBlobs) content(t *testing.T, name string) string {
	t.Helper()
	data, _, err := m.Retrieve(context.Background(), name)
	require.NoError(t, err)
	return string(data)
}

func TestBlobTable(t *testing.T) {
	exerciseBackend(t, NewBlobTable(newMemoryBlobs(), "diary_data.csv"))
}

func TestBlobTable_WritesHeaderAndBackup(t *testing.T) {
	ctx := context.Background()
	blobs := newMemoryBlobs()
	table := NewBlobTable(blobs, "diary_data.csv")

	require.NoError(t, table.AppendRow(ctx, sampleRow("2025-01-01", "first")))
	names, _ := blobs.List(ctx, "diary_data")
	assert.Equal(t, []string{"diary_data.csv"}, names, "no backup before the first overwrite")

	require.NoError(t, table.AppendRow(ctx, sampleRow("2025-01-02", "second")))
	backups, err := table.backups(ctx)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.True(t, strings.HasPrefix(backups[0], "diary_data.csv.backup."))

	primary := blobs.content(t, "diary_data.csv")
	assert.True(t, strings.HasPrefix(primary, strings.Join(Columns, ",")+"\n"))

	backup := blobs.content(t, backups[0])
	assert.Contains(t, backup, "first")
	assert.NotContains(t, backup, "second")
}

func TestBlobTable_PrunesOldBackups(t *testing.T) {
	ctx := context.Background()
	blobs := newMemoryBlobs()
	table := NewBlobTable(blobs, "diary_data.csv")

	for day := 1; day <= 6; day++ {
		require.NoError(t, table.AppendRow(ctx, sampleRow(fmt.Sprintf("2025-01-%02d", day), "x")))
	}

	backups, err := table.backups(ctx)
	require.NoError(t, err)
	require.Len(t, backups, keepBackups)
	// Newest first: the latest backup holds the table as it was before the sixth append.
	assert.Contains(t, blobs.content(t, backups[0]), "2025-01-05")
	assert.NotContains(t, blobs.content(t, backups[0]), "2025-01-06")
	assert.NotContains(t, blobs.content(t, backups[2]), "2025-01-04")
}

func TestBlobTable_RecoversFromBackup(t *testing.T) {
	ctx := context.Background()
	blobs := newMemoryBlobs()
	table := NewBlobTable(blobs, "diary_data.csv")

	require.NoError(t, table.AppendRow(ctx, sampleRow("2025-01-01", "first")))
	require.NoError(t, table.AppendRow(ctx, sampleRow("2025-01-02", "second")))

	blobs.put(t, "diary_data.csv", "date,content\n\"unterminated")

	rows, err := table.ListRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "first", rows[0][1])

	// The next write rebuilds the primary from the backup.
	require.NoError(t, table.AppendRow(ctx, sampleRow("2025-01-03", "third")))
	rows, err = table.ListRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestBlobTable_RecoverySkipsCorruptNewestBackup(t *testing.T) {
	ctx := context.Background()
	blobs := newMemoryBlobs()
	blobs.put(t, "diary_data.csv", "\"broken")
	blobs.put(t, "diary_data.csv.backup", strings.Join(Columns, ",")+"\n2025-01-01,legacy\n")
	blobs.put(t, "diary_data.csv.backup.00000000000000000002", "\"also broken")

	rows, err := NewBlobTable(blobs, "diary_data.csv").ListRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "legacy", rows[0][1])
}

func TestBlobTable_CorruptWithoutBackupFails(t *testing.T) {
	ctx := context.Background()
	blobs := newMemoryBlobs()
	blobs.put(t, "diary_data.csv", "\"broken")

	_, err := NewBlobTable(blobs, "diary_data.csv").ListRows(ctx)
	assert.Error(t, err)
}

func TestBlobTable_ConcurrentWriterIsNotLost(t *testing.T) {
	ctx := context.Background()
	blobs := newMemoryBlobs()
	first := NewBlobTable(blobs, "diary_data.csv")
	second := NewBlobTable(blobs, "diary_data.csv")
	require.NoError(t, first.AppendRow(ctx, sampleRow("2024-12-31", "seed")))

	// second appends after first has read the table and before first writes it back
	interleaved := false
	blobs.beforeStore = func(name string) {
		if name != "diary_data.csv" || interleaved {
			return
		}
		interleaved = true
		require.NoError(t, second.AppendRow(ctx, sampleRow("2025-01-02", "second")))
	}

	err := first.AppendRow(ctx, sampleRow("2025-01-01", "first"))
	assert.ErrorIs(t, err, ErrConditionNotMet)
	blobs.beforeStore = nil

	rows, err := first.ListRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2025-01-02", rows[1][0])

	require.NoError(t, first.AppendRow(ctx, sampleRow("2025-01-01", "first")))
	rows, err = second.ListRows(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestBlobTable_ConcurrentCreateIsNotLost(t *testing.T) {
	ctx := context.Background()
	blobs := newMemoryBlobs()
	first := NewBlobTable(blobs, "diary_data.csv")
	second := NewBlobTable(blobs, "diary_data.csv")

	interleaved := false
	blobs.beforeStore = func(string) {
		if interleaved {
			return
		}
		interleaved = true
		require.NoError(t, second.AppendRow(ctx, sampleRow("2025-01-02", "second")))
	}

	assert.ErrorIs(t, first.AppendRow(ctx, sampleRow("2025-01-01", "first")), ErrConditionNotMet)
	rows, err := second.ListRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "second", rows[0][1])
}

func TestBlobTable_SnapshotRejectsShiftedIndex(t *testing.T) {
	blobs := newMemoryBlobs()
	first := NewBlobTable(blobs, "diary_data.csv")
	second := NewBlobTable(blobs, "diary_data.csv")
	bg := context.Background()
	require.NoError(t, first.AppendRow(bg, sampleRow("2025-01-01", "a")))
	require.NoError(t, first.AppendRow(bg, sampleRow("2025-01-02", "b")))

	ctx := WithSnapshot(bg)
	rows, err := first.ListRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Row 1 is now 2025-01-02 only in first's stale view.
	require.NoError(t, second.DeleteRow(bg, 0))

	assert.ErrorIs(t, first.UpdateRow(ctx, 1, sampleRow("2025-01-02", "edited")), ErrConditionNotMet)
	rows, err = second.ListRows(bg)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0][1])
}

func TestBlobTable_SnapshotFollowsOwnWrites(t *testing.T) {
	blobs := newMemoryBlobs()
	table := NewBlobTable(blobs, "diary_data.csv")
	bg := context.Background()
	require.NoError(t, table.AppendRow(bg, sampleRow("2025-01-01", "a")))
	require.NoError(t, table.AppendRow(bg, sampleRow("2025-01-01", "dup")))

	ctx := WithSnapshot(bg)
	_, err := table.ListRows(ctx)
	require.NoError(t, err)
	require.NoError(t, table.UpdateRow(ctx, 0, sampleRow("2025-01-01", "new")))
	require.NoError(t, table.DeleteRow(ctx, 1))

	rows, err := table.ListRows(bg)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "new", rows[0][1])
}
