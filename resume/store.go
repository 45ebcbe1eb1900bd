// Package resume keeps uploaded résumé records: the scratch copy of the
// original file plus the chunk sequence extracted from it. Records expire
// after a TTL; nothing here is durable state.
package resume

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/fabfab/resume-interviewer/ingestion"
)

// Record is read-only once created.
type Record struct {
	ID         string
	Filename   string
	Size       int64
	Path       string
	Chunks     []ingestion.Chunk
	UploadedAt time.Time
}

// Store is a TTL-bound in-memory record table whose eviction hook removes the
// record's temp file.
type Store struct {
	dir    string
	cache  *gocache.Cache
	logger *log.Logger
}

// NewStore creates the temp directory and the TTL cache behind the store.
func NewStore(dir string, ttl time.Duration, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Default()
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	cleanup := ttl / 4
	if cleanup < time.Minute {
		cleanup = time.Minute
	}

	s := &Store{
		dir:    dir,
		cache:  gocache.New(ttl, cleanup),
		logger: logger,
	}
	s.cache.OnEvicted(func(id string, value interface{}) {
		rec, ok := value.(*Record)
		if !ok {
			return
		}
		if err := os.Remove(rec.Path); err != nil && !os.IsNotExist(err) {
			s.logger.Printf("remove temp file for resume %s: %v", id, err)
		}
	})

	return s, nil
}

// Put writes the payload to a temp file named after a fresh id and registers
// the record.
func (s *Store) Put(filename string, data []byte, chunks []ingestion.Chunk) (*Record, error) {
	id := uuid.NewString()
	path := filepath.Join(s.dir, id+strings.ToLower(filepath.Ext(filename)))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write temp file: %w", err)
	}

	rec := &Record{
		ID:         id,
		Filename:   filename,
		Size:       int64(len(data)),
		Path:       path,
		Chunks:     chunks,
		UploadedAt: time.Now(),
	}
	s.cache.Set(id, rec, gocache.DefaultExpiration)
	return rec, nil
}

// Get returns the record when it exists and has not expired.
func (s *Store) Get(id string) (*Record, bool) {
	value, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	rec, ok := value.(*Record)
	return rec, ok
}

// Remove evicts the record, deleting its temp file. It returns false when
// the record is unknown or already expired.
func (s *Store) Remove(id string) bool {
	if _, ok := s.cache.Get(id); !ok {
		return false
	}
	s.cache.Delete(id)
	return true
}

// Len reports the number of live records.
func (s *Store) Len() int {
	return s.cache.ItemCount()
}

// Close evicts every record so all temp files are removed.
func (s *Store) Close() {
	for id := range s.cache.Items() {
		s.cache.Delete(id)
	}
}
