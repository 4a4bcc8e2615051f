package storage

import (
	"context"
	"errors"
)

// ErrConditionNotMet is returned when a conditional write finds the blob changed since
// it was read. The caller may read again and retry.
var ErrConditionNotMet = errors.New("blob changed since it was read")

// TabularBackend is a flat row-oriented table. Indices are 0-based over data rows;
// a header row, if the backend keeps one, is never exposed.
type TabularBackend interface {
	ListRows(ctx context.Context) ([][]string, error)
	AppendRow(ctx context.Context, row []string) error
	UpdateRow(ctx context.Context, index int, row []string) error
	DeleteRow(ctx context.Context, index int) error
}

// Precondition makes a blob write conditional
type Precondition struct {
	ETag    string // the blob must still carry this ETag
	Missing bool   // the blob must not exist yet
}

// BlobStore defines the contract for named blob operations. Store returns the ETag of
// the written blob; a nil precondition writes unconditionally.
type BlobStore interface {
	Store(ctx context.Context, name string, data []byte, cond *Precondition) (string, error)
	Retrieve(ctx context.Context, name string) ([]byte, string, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// Columns is the header of every table, in wire order.
var Columns = []string{
	"date", "content", "keywords", "total_score",
	"joy", "sadness", "anger", "anxiety", "calmness",
	"message", "created_at",
}

// Snapshot remembers the table version one read-then-write sequence is based on, so a
// positional write fails instead of landing on rows another writer has moved.
type Snapshot struct {
	version string
	valid   bool
}

type snapshotKey struct{}

// WithSnapshot returns a context whose reads and writes are checked against each other
// by backends that support versions. Other backends ignore it.
func WithSnapshot(ctx context.Context) context.Context {
	return context.WithValue(ctx, snapshotKey{}, &Snapshot{})
}

func snapshotFrom(ctx context.Context) *Snapshot {
	s, _ := ctx.Value(snapshotKey{}).(*Snapshot)
	return s
}
