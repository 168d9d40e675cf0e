package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/feyalabs/quizbot/core/logger"
)

// ErrNotFound reports an entity lookup miss inside any collection.
var ErrNotFound = errors.New("storage: not found")

// Collection names one JSON file under the store directory.
type Collection string

const (
	colUsers    Collection = "users"
	colChannels Collection = "channels"
	colTests    Collection = "tests"
	colResults  Collection = "results"
	colAdmins   Collection = "admins"
)

var collections = []Collection{colUsers, colChannels, colTests, colResults, colAdmins}

// Store keeps each collection in its own JSON document under dir.
// Writes replace the whole document atomically (temp file plus rename),
// and each collection serializes its read-modify-write cycles behind its
// own mutex, so two concurrent updates to one collection never lose data.
type Store struct {
	dir   string
	locks map[Collection]*sync.Mutex
}

// Open prepares the store directory and seeds every missing collection
// file with its empty document. Existing files are left untouched.
func Open(ctx context.Context, dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("storage: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create dir: %w", err)
	}
	s := &Store{
		dir:   dir,
		locks: make(map[Collection]*sync.Mutex, len(collections)),
	}
	for _, c := range collections {
		s.locks[c] = &sync.Mutex{}
	}
	for _, c := range collections {
		if err := s.seed(c); err != nil {
			return nil, err
		}
	}
	logger.Store.InfoContext(ctx, "storage ready", "event", "storage.open", "status", "ok", "dir", dir)
	return s, nil
}

func (s *Store) seed(c Collection) error {
	path := s.path(c)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("storage: stat %s: %w", c, err)
	}
	return writeFileAtomic(path, s.emptyDoc(c))
}

func (s *Store) emptyDoc(c Collection) any {
	switch c {
	case colUsers:
		return &UsersDocument{Users: []User{}}
	case colChannels:
		return &ChannelsDocument{Channels: []Channel{}}
	case colTests:
		return &TestsDocument{Tests: []Test{}}
	case colResults:
		return &ResultsDocument{Results: []Result{}}
	case colAdmins:
		return &AdminsDocument{Admins: []int64{}}
	}
	return nil
}

func (s *Store) path(c Collection) string {
	return filepath.Join(s.dir, string(c)+".json")
}

// readDoc loads a collection document into out. A missing or corrupt file
// yields the empty document: reads never fail on bad content, they reset
// to defaults and log the incident.
func (s *Store) readDoc(ctx context.Context, c Collection, out any) error {
	raw, err := os.ReadFile(s.path(c))
	if err != nil {
		if os.IsNotExist(err) {
			return copyDoc(s.emptyDoc(c), out)
		}
		return fmt.Errorf("storage: read %s: %w", c, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		logger.Store.WarnContext(ctx, "corrupt collection, using defaults",
			"event", "storage.read", "status", "fail", "collection", string(c), "err", err)
		return copyDoc(s.emptyDoc(c), out)
	}
	return nil
}

// updateDoc runs fn over the current document and persists the mutated
// document if fn reports changed. The collection mutex is held across the
// whole cycle.
func (s *Store) updateDoc(ctx context.Context, c Collection, doc any, fn func() (changed bool, err error)) error {
	mu := s.locks[c]
	mu.Lock()
	defer mu.Unlock()

	if err := s.readDoc(ctx, c, doc); err != nil {
		return err
	}
	changed, err := fn()
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := writeFileAtomic(s.path(c), doc); err != nil {
		return fmt.Errorf("storage: write %s: %w", c, err)
	}
	return nil
}

// writeFileAtomic marshals doc and replaces path via a temp file rename,
// so readers never observe a partially written document.
func writeFileAtomic(path string, doc any) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// copyDoc transfers src into dst through JSON. Both are typed document
// pointers of the same shape.
func copyDoc(src, dst any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
