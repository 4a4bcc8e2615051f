package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	backupSuffix = ".backup"
	keepBackups  = 3
)

// BlobTable keeps the whole table as one CSV blob (header row first). Before every
// overwrite the previous content is copied to "<name>.backup.<stamp>" and only the newest
// backups are kept; a corrupt primary blob is read from the newest readable backup.
//
// Every overwrite is conditional on the ETag the table was read at, so a writer that
// lost a race gets ErrConditionNotMet instead of dropping the other writer's rows. A
// context from WithSnapshot extends the check from the read inside one write to the
// ListRows call the caller based its row index on.
type BlobTable struct {
	blobs     BlobStore
	name      string
	mu        sync.Mutex
	lastStamp int64
}

var _ TabularBackend = (*BlobTable)(nil)

// NewBlobTable creates a table stored in the named blob
func NewBlobTable(blobs BlobStore, name string) *BlobTable {
	return &BlobTable{blobs: blobs, name: name}
}

func (t *BlobTable) ListRows(ctx context.Context) ([][]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, _, etag, err := t.load(ctx)
	if err != nil {
		return nil, err
	}
	if snap := snapshotFrom(ctx); snap != nil {
		snap.version, snap.valid = etag, true
	}
	return rows, nil
}

func (t *BlobTable) AppendRow(ctx context.Context, row []string) error {
	return t.mutate(ctx, func(rows [][]string) ([][]string, error) {
		return append(rows, cloneRow(row)), nil
	})
}

func (t *BlobTable) UpdateRow(ctx context.Context, index int, row []string) error {
	return t.mutate(ctx, func(rows [][]string) ([][]string, error) {
		if index < 0 || index >= len(rows) {
			return nil, fmt.Errorf("update row %d: %w", index, ErrIndexOutOfRange)
		}
		rows[index] = cloneRow(row)
		return rows, nil
	})
}

func (t *BlobTable) DeleteRow(ctx context.Context, index int) error {
	return t.mutate(ctx, func(rows [][]string) ([][]string, error) {
		if index < 0 || index >= len(rows) {
			return nil, fmt.Errorf("delete row %d: %w", index, ErrIndexOutOfRange)
		}
		return append(rows[:index], rows[index+1:]...), nil
	})
}

func (t *BlobTable) mutate(ctx context.Context, fn func([][]string) ([][]string, error)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, raw, etag, err := t.load(ctx)
	if err != nil {
		return err
	}
	snap := snapshotFrom(ctx)
	if snap != nil && snap.valid && snap.version != etag {
		return fmt.Errorf("table %s: %w", t.name, ErrConditionNotMet)
	}

	rows, err = fn(rows)
	if err != nil {
		return err
	}

	data, err := encodeTable(rows)
	if err != nil {
		return fmt.Errorf("failed to encode table: %w", err)
	}

	if raw != nil {
		if _, err := t.blobs.Store(ctx, t.backupName(), raw, nil); err != nil {
			return fmt.Errorf("failed to write backup: %w", err)
		}
	}

	cond := &Precondition{ETag: etag}
	if etag == "" {
		cond = &Precondition{Missing: true}
	}
	newTag, err := t.blobs.Store(ctx, t.name, data, cond)
	if err != nil {
		return fmt.Errorf("failed to write table: %w", err)
	}
	if snap != nil {
		snap.version, snap.valid = newTag, true
	}

	if raw != nil {
		t.pruneBackups(ctx)
	}
	return nil
}

// backupName returns a name that sorts after every earlier backup of the table
func (t *BlobTable) backupName() string {
	stamp := time.Now().UnixNano()
	if stamp <= t.lastStamp {
		stamp = t.lastStamp + 1
	}
	t.lastStamp = stamp
	return fmt.Sprintf("%s%s.%020d", t.name, backupSuffix, stamp)
}

// backups lists the backup blobs of the table, newest first
func (t *BlobTable) backups(ctx context.Context) ([]string, error) {
	names, err := t.blobs.List(ctx, t.name+backupSuffix)
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

func (t *BlobTable) pruneBackups(ctx context.Context) {
	names, err := t.backups(ctx)
	if err != nil {
		logrus.Warnf("Failed to list backups of %s: %v", t.name, err)
		return
	}
	if len(names) <= keepBackups {
		return
	}
	for _, name := range names[keepBackups:] {
		if err := t.blobs.Delete(ctx, name); err != nil {
			logrus.Warnf("Failed to remove old backup %s: %v", name, err)
			continue
		}
		logrus.Debugf("Removed old backup %s", name)
	}
}

// load returns the data rows, the raw content the next backup should hold (nil when the
// table does not exist yet) and the ETag of the primary blob.
func (t *BlobTable) load(ctx context.Context) ([][]string, []byte, string, error) {
	raw, etag, err := t.blobs.Retrieve(ctx, t.name)
	if errors.Is(err, ErrBlobNotFound) {
		return nil, nil, "", nil
	}
	if err != nil {
		return nil, nil, "", err
	}

	rows, err := decodeTable(raw)
	if err == nil {
		return rows, raw, etag, nil
	}

	logrus.Warnf("Table blob %s is corrupt (%v), reading backup", t.name, err)
	rows, backup, berr := t.restoreFromBackup(ctx)
	if berr != nil {
		return nil, nil, "", fmt.Errorf("corrupt table %s: %w (%v)", t.name, err, berr)
	}
	// The corrupt primary must not become the next backup.
	return rows, backup, etag, nil
}

// restoreFromBackup reads the newest backup that still decodes
func (t *BlobTable) restoreFromBackup(ctx context.Context) ([][]string, []byte, error) {
	names, err := t.backups(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list backups: %w", err)
	}
	for _, name := range names {
		data, _, err := t.blobs.Retrieve(ctx, name)
		if err != nil {
			logrus.Warnf("Backup %s unreadable: %v", name, err)
			continue
		}
		rows, err := decodeTable(data)
		if err != nil {
			logrus.Warnf("Backup %s is corrupt: %v", name, err)
			continue
		}
		logrus.Infof("Recovered table %s from %s", t.name, name)
		return rows, data, nil
	}
	return nil, nil, errors.New("no readable backup")
}

func encodeTable(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Columns); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeTable(data []byte) ([][]string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[1:], nil
}
