package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// flakyStore fails every Put while failPut is set.
type flakyStore struct {
	records map[string]Record
	failPut bool
	puts    int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{records: make(map[string]Record)}
}

func (s *flakyStore) Load(context.Context) (map[string]Record, error) {
	out := make(map[string]Record, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out, nil
}

func (s *flakyStore) Put(_ context.Context, rec Record) error {
	s.puts++
	if s.failPut {
		return errors.New("disk full")
	}
	s.records[rec.TargetID] = rec
	return nil
}

func (s *flakyStore) Close() error { return nil }

type brokenStore struct{ err error }

func (s brokenStore) Load(context.Context) (map[string]Record, error) { return nil, s.err }
func (s brokenStore) Put(context.Context, Record) error { return nil }
func (s brokenStore) Close() error { return nil }

func TestHasContactedBeforeAndAfterRecord(t *testing.T) {
	ctx := context.Background()
	l, err := Open(ctx, NewJSONStore(filepath.Join(t.TempDir(), "sent.json")))
	require.NoError(t, err)

	assert.False(t, l.HasContacted("https://x/in/a"))

	require.NoError(t, l.RecordContacted(ctx, "https://x/in/a", ""))
	assert.True(t, l.HasContacted("https://x/in/a"))
}

func TestRecordContactedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore()
	l, err := Open(ctx, store, WithClock(fixedClock))
	require.NoError(t, err)

	require.NoError(t, l.RecordContacted(ctx, "https://www.linkedin.com/in/jane", "hello"))
	require.NoError(t, l.RecordContacted(ctx, "https://www.linkedin.com/in/jane/?trk=abc", "hello again"))

	assert.Equal(t, 1, l.Len())
	assert.Len(t, store.records, 1)

	rec, ok := l.Get("https://www.linkedin.com/in/jane")
	require.True(t, ok)
	assert.Equal(t, "hello again", rec.Payload)
	require.NotNil(t, rec.ContactedAt)
	assert.True(t, rec.ContactedAt.Equal(fixedNow))
}

func TestRecordContactedRejectsBlankTarget(t *testing.T) {
	l := NewMemory()

	err := l.RecordContacted(context.Background(), "   ", "")

	assert.ErrorIs(t, err, ErrEmptyTarget)
	assert.Equal(t, 0, l.Len())
	assert.False(t, l.HasContacted(""))
}

func TestRecordContactedWriteFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore()
	l, err := Open(ctx, store)
	require.NoError(t, err)

	store.failPut = true
	err = l.RecordContacted(ctx, "https://x/in/a", "hi")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersist)
	assert.True(t, l.HasContacted("https://x/in/a"))
	assert.Equal(t, 1, l.Pending())
	assert.Empty(t, store.records)

	// Still failing: the record stays pending.
	assert.ErrorIs(t, l.Flush(ctx), ErrPersist)
	assert.Equal(t, 1, l.Pending())

	store.failPut = false
	require.NoError(t, l.Flush(ctx))
	assert.Equal(t, 0, l.Pending())
	assert.Contains(t, store.records, "https://x/in/a")
}

func TestFlushWithoutPendingDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore()
	l, err := Open(ctx, store)
	require.NoError(t, err)

	require.NoError(t, l.Flush(ctx))
	assert.Zero(t, store.puts)
}

func TestOpenPropagatesLoadErrors(t *testing.T) {
	_, err := Open(context.Background(), brokenStore{err: ErrMalformed})
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Open(context.Background(), nil)
	assert.Error(t, err)
}

func TestOpenCollapsesUnnormalizedKeys(t *testing.T) {
	older := fixedNow.Add(-time.Hour)
	store := newFlakyStore()
	store.records["https://www.linkedin.com/in/jane/"] = Record{ContactedAt: &older, Payload: "old"}
	store.records["https://www.linkedin.com/in/jane?miniProfileUrn=x"] = Record{ContactedAt: &fixedNow, Payload: "new"}

	l, err := Open(context.Background(), store)
	require.NoError(t, err)

	assert.Equal(t, 1, l.Len())
	rec, ok := l.Get("https://www.linkedin.com/in/jane")
	require.True(t, ok)
	assert.Equal(t, "new", rec.Payload)
	assert.Equal(t, "https://www.linkedin.com/in/jane", rec.TargetID)
}

func TestMemoryLedger(t *testing.T) {
	l := NewMemory()

	assert.False(t, l.Persistent())
	require.NoError(t, l.RecordContacted(context.Background(), "Jane Doe", ""))
	assert.True(t, l.HasContacted("  Jane   Doe "))
	require.NoError(t, l.Flush(context.Background()))
	require.NoError(t, l.Close())
}

func TestContactedSince(t *testing.T) {
	ctx := context.Background()
	now := fixedNow
	l := NewMemory(WithClock(func() time.Time { return now }))

	require.NoError(t, l.RecordContacted(ctx, "a", ""))
	now = fixedNow.Add(2 * time.Hour)
	require.NoError(t, l.RecordContacted(ctx, "b", ""))

	assert.Equal(t, 2, l.ContactedSince(fixedNow))
	assert.Equal(t, 1, l.ContactedSince(fixedNow.Add(time.Hour)))
}

func TestRecordsAreSorted(t *testing.T) {
	ctx := context.Background()
	l := NewMemory()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, l.RecordContacted(ctx, id, ""))
	}

	var ids []string
	for _, rec := range l.Records() {
		ids = append(ids, rec.TargetID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}
