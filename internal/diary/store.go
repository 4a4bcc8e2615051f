// Package diary stores one DiaryEntry per date on top of a flat row-oriented table and
// derives the statistics views from a set of entries.
//
// Writes are serialized per Store: an upsert is a scan followed by a positional write, and
// a concurrent delete of any other date would shift the row it found. Across processes,
// coordination depends on the backend: the blob table rejects a write when the table
// changed since it was read, the other backends let the last writer win.
package diary

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/moodlog/emotion-diary/internal/models"
	"github.com/moodlog/emotion-diary/internal/storage"
	"github.com/sirupsen/logrus"
)

// DefaultRecent is the window GetRecent uses when n <= 0.
const DefaultRecent = 30

const dateLayout = "2006-01-02"

var (
	// ErrBackend wraps every failure of the underlying table. Callers may retry.
	ErrBackend = errors.New("diary backend unavailable")
	// ErrInvalidDate is returned for dates that are not YYYY-MM-DD.
	ErrInvalidDate = errors.New("date must be YYYY-MM-DD")
)

// Store is the keyed diary store
type Store struct {
	backend storage.TabularBackend
	now     func() time.Time
	writeMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the clock used for the updated-at timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store over the given table
func NewStore(backend storage.TabularBackend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidDate reports whether s is a calendar date in YYYY-MM-DD form
func ValidDate(s string) bool {
	t, err := time.Parse(dateLayout, s)
	return err == nil && t.Format(dateLayout) == s
}

// Upsert replaces the first row of entry.Date with the full entry, or appends one. Extra
// rows left behind for the same date by older writers are removed on a best-effort basis.
// The stored entry, with its refreshed UpdatedAt, is returned.
func (s *Store) Upsert(ctx context.Context, entry models.DiaryEntry) (models.DiaryEntry, error) {
	if !ValidDate(entry.Date) {
		return models.DiaryEntry{}, fmt.Errorf("%q: %w", entry.Date, ErrInvalidDate)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// Row indices below come from this read; backends that version the table fail the
	// positional writes if another process changed it in between.
	ctx = storage.WithSnapshot(ctx)
	rows, err := s.backend.ListRows(ctx)
	if err != nil {
		return models.DiaryEntry{}, fmt.Errorf("%w: list rows: %w", ErrBackend, err)
	}
	matches := matchingRows(rows, entry.Date)

	entry.UpdatedAt = s.now().UTC()
	if entry.Keywords == nil {
		entry.Keywords = []string{}
	}
	row := SerializeRow(entry)

	log := logrus.WithField("date", entry.Date)
	if len(matches) == 0 {
		if err := s.backend.AppendRow(ctx, row); err != nil {
			return models.DiaryEntry{}, fmt.Errorf("%w: append row: %w", ErrBackend, err)
		}
		log.Info("Appended diary entry")
		return entry, nil
	}

	if err := s.backend.UpdateRow(ctx, matches[0], row); err != nil {
		return models.DiaryEntry{}, fmt.Errorf("%w: update row %d: %w", ErrBackend, matches[0], err)
	}
	log.Infof("Replaced diary entry at row %d", matches[0])

	// Later duplicates sit after matches[0], so deleting back to front keeps it in place.
	// The entry is already saved at this point and reads take the first row of a date, so
	// a duplicate that cannot be removed is left for the next upsert.
	for i := len(matches) - 1; i >= 1; i-- {
		if err := s.backend.DeleteRow(ctx, matches[i]); err != nil {
			log.Warnf("Failed to remove duplicate row %d: %v", matches[i], err)
			break
		}
		log.Warnf("Removed duplicate row %d", matches[i])
	}
	return entry, nil
}

// Delete removes the entry of the given date. Deleting a missing date is a no-op and
// reports false.
func (s *Store) Delete(ctx context.Context, date string) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ctx = storage.WithSnapshot(ctx)
	rows, err := s.backend.ListRows(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: list rows: %w", ErrBackend, err)
	}

	matches := matchingRows(rows, date)
	for i := len(matches) - 1; i >= 0; i-- {
		if err := s.backend.DeleteRow(ctx, matches[i]); err != nil {
			return false, fmt.Errorf("%w: delete row %d: %w", ErrBackend, matches[i], err)
		}
	}

	if len(matches) > 0 {
		logrus.WithField("date", date).Info("Deleted diary entry")
	}
	return len(matches) > 0, nil
}

// GetAll returns every entry keyed by date. Rows without a date are skipped and only the
// first row of a date counts. On backend failure an empty, non-nil map is returned together with the error.
func (s *Store) GetAll(ctx context.Context) (map[string]models.DiaryEntry, error) {
	entries := make(map[string]models.DiaryEntry)

	rows, err := s.backend.ListRows(ctx)
	if err != nil {
		return entries, fmt.Errorf("%w: list rows: %w", ErrBackend, err)
	}

	skipped := 0
	for _, row := range rows {
		entry, ok := parseRow(row)
		if !ok {
			skipped++
			continue
		}
		// The first row of a date is the one Upsert maintains.
		if _, dup := entries[entry.Date]; dup {
			continue
		}
		entries[entry.Date] = entry
	}
	if skipped > 0 {
		logrus.Debugf("Skipped %d rows without a date", skipped)
	}
	return entries, nil
}

// Get returns the entry of one date
func (s *Store) Get(ctx context.Context, date string) (models.DiaryEntry, bool, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return models.DiaryEntry{}, false, err
	}
	entry, ok := all[date]
	return entry, ok, nil
}

// GetRecent returns the last n entries in ascending date order (n <= 0 means DefaultRecent).
func (s *Store) GetRecent(ctx context.Context, n int) ([]models.DiaryEntry, error) {
	if n <= 0 {
		n = DefaultRecent
	}
	all, err := s.GetAll(ctx)
	if err != nil {
		return []models.DiaryEntry{}, err
	}
	return Last(SortByDate(all), n), nil
}

// SortByDate returns the entries in ascending date order. ISO dates sort lexically.
func SortByDate(entries map[string]models.DiaryEntry) []models.DiaryEntry {
	out := make([]models.DiaryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Last returns the last n elements of an already sorted slice
func Last(entries []models.DiaryEntry, n int) []models.DiaryEntry {
	if n < 0 {
		n = 0
	}
	if len(entries) > n {
		return entries[len(entries)-n:]
	}
	return entries
}

func matchingRows(rows [][]string, date string) []int {
	var idx []int
	for i, row := range rows {
		if len(row) > 0 && strings.TrimSpace(row[0]) == date {
			idx = append(idx, i)
		}
	}
	return idx
}
