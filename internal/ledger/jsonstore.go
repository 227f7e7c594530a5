package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// jsonFile is the on-disk layout. Sent is the older flat form, kept readable
// so existing "already messaged" logs carry over; it is never written.
type jsonFile struct {
	Records map[string]Record `json:"records"`
	Sent    []string          `json:"sent,omitempty"`
}

// JSONStore keeps the ledger in a single JSON file that is rewritten on every Put.
type JSONStore struct {
	path string

	mu      sync.Mutex
	loaded  bool
	records map[string]Record
}

// NewJSONStore returns a store backed by the file at path. The file and its
// directory are created on the first Put.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path, records: make(map[string]Record)}
}

// Path returns the backing file path.
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads the file. A missing or empty file is an empty ledger.
func (s *JSONStore) Load(ctx context.Context) (map[string]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readLocked(); err != nil {
		return nil, err
	}

	out := make(map[string]Record, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out, nil
}

func (s *JSONStore) readLocked() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.records = make(map[string]Record)
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read ledger file: %w", err)
	}

	records, err := decodeJSON(data)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, s.path, err)
	}

	s.records = records
	s.loaded = true
	return nil
}

func decodeJSON(data []byte) (map[string]Record, error) {
	records := make(map[string]Record)
	if len(bytes.TrimSpace(data)) == 0 {
		return records, nil
	}

	var f jsonFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	for key, rec := range f.Records {
		if key == "" {
			return nil, errors.New("record with empty key")
		}
		if rec.TargetID == "" {
			rec.TargetID = key
		}
		records[key] = rec
	}
	for _, id := range f.Sent {
		if id == "" {
			return nil, errors.New("empty entry in sent list")
		}
		if _, ok := records[id]; !ok {
			records[id] = Record{TargetID: id}
		}
	}

	return records, nil
}

// Put adds or replaces rec and rewrites the file atomically.
func (s *JSONStore) Put(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Never rewrite a file we have not read, or earlier records would be dropped.
	if !s.loaded {
		if err := s.readLocked(); err != nil {
			return err
		}
	}

	s.records[rec.TargetID] = rec
	return s.writeLocked()
}

func (s *JSONStore) writeLocked() error {
	data, err := json.MarshalIndent(jsonFile{Records: s.records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp ledger file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write ledger file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync ledger file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close ledger file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod ledger file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}

	return nil
}

// Close is a no-op; every Put already reached the disk.
func (s *JSONStore) Close() error {
	return nil
}
