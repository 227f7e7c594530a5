// Package ledger keeps the durable record of who has already been contacted.
//
// A Ledger is loaded fully into memory when a session starts and writes every
// new record straight through to its Store, so a crash mid-run loses at most
// the record that was being written. Records are keyed by the normalized
// target id (see Normalize) and a key appears at most once.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Record is one contacted target.
type Record struct {
	TargetID    string     `json:"target_id"`
	ContactedAt *time.Time `json:"contacted_at,omitempty"`
	Payload     string     `json:"payload,omitempty"`
}

// Store persists ledger records.
//
// Load returns an empty map and no error when nothing has been persisted yet,
// and an error wrapping ErrMalformed when the persisted data cannot be decoded.
type Store interface {
	Load(ctx context.Context) (map[string]Record, error)
	Put(ctx context.Context, rec Record) error
	Close() error
}

// Ledger is the in-memory view of a Store. It is safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	store   Store
	records map[string]Record
	pending map[string]struct{}
	now     func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the clock used to stamp ContactedAt.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func newLedger(store Store, opts []Option) *Ledger {
	l := &Ledger{
		store:   store,
		records: make(map[string]Record),
		pending: make(map[string]struct{}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open loads every record from store.
func Open(ctx context.Context, store Store, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("ledger store is nil")
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	l := newLedger(store, opts)
	for key, rec := range loaded {
		id, err := Normalize(key)
		if err != nil {
			return nil, fmt.Errorf("%w: record with blank target id", ErrMalformed)
		}
		rec.TargetID = id
		// Keys that only differ by tracking parameters collapse into the newest one.
		if prev, ok := l.records[id]; ok && newer(prev, rec) {
			continue
		}
		l.records[id] = rec
	}

	return l, nil
}

// NewMemory returns a ledger without a store. Records live for the lifetime of
// the process only.
func NewMemory(opts ...Option) *Ledger {
	return newLedger(nil, opts)
}

// Persistent reports whether records are written through to a store.
func (l *Ledger) Persistent() bool {
	return l.store != nil
}

// HasContacted reports whether targetID has a record. Blank ids are never
// considered contacted.
func (l *Ledger) HasContacted(targetID string) bool {
	id, err := Normalize(targetID)
	if err != nil {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.records[id]
	return ok
}

// Get returns the record for targetID.
func (l *Ledger) Get(targetID string) (Record, bool) {
	id, err := Normalize(targetID)
	if err != nil {
		return Record{}, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[id]
	return rec, ok
}

// RecordContacted stores or overwrites the record for targetID and persists it
// immediately. When the write fails the record stays in memory, is queued for
// Flush and the returned error wraps ErrPersist.
func (l *Ledger) RecordContacted(ctx context.Context, targetID, payload string) error {
	id, err := Normalize(targetID)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	at := l.now().UTC()
	rec := Record{TargetID: id, ContactedAt: &at, Payload: payload}
	l.records[id] = rec

	if l.store == nil {
		return nil
	}

	if err := l.store.Put(ctx, rec); err != nil {
		l.pending[id] = struct{}{}
		return fmt.Errorf("%w %s: %w", ErrPersist, id, err)
	}
	delete(l.pending, id)

	return nil
}

// Flush retries every record whose earlier write failed.
func (l *Ledger) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.store == nil || len(l.pending) == 0 {
		return nil
	}

	var errs []error
	for _, id := range sortedKeys(l.pending) {
		if err := l.store.Put(ctx, l.records[id]); err != nil {
			errs = append(errs, fmt.Errorf("%w %s: %w", ErrPersist, id, err))
			continue
		}
		delete(l.pending, id)
	}

	return errors.Join(errs...)
}

// Pending returns the number of records not yet persisted.
func (l *Ledger) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// ContactedSince counts records stamped at or after t. Records without a
// timestamp are not counted.
func (l *Ledger) ContactedSince(t time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, rec := range l.records {
		if rec.ContactedAt != nil && !rec.ContactedAt.Before(t) {
			n++
		}
	}
	return n
}

// Records returns a copy of every record ordered by target id.
func (l *Ledger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Record, 0, len(l.records))
	for _, id := range sortedKeys(l.records) {
		out = append(out, l.records[id])
	}
	return out
}

// Close closes the underlying store.
func (l *Ledger) Close() error {
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}

func newer(a, b Record) bool {
	if a.ContactedAt == nil {
		return false
	}
	if b.ContactedAt == nil {
		return true
	}
	return a.ContactedAt.After(*b.ContactedAt)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
