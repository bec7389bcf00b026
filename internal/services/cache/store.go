// Package cache implements the bounded, content-addressed translation
// store. Entries are keyed by a fingerprint of the source text plus the
// full translation configuration and evicted oldest-inserted-first once
// the store exceeds its configured maximum.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/fluxtranslate/flux-relay/internal/services/database"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Record is the persisted form of one cache entry. Seq preserves
// insertion order across restarts.
type Record struct {
	Key          string    `gorm:"primaryKey;size:64"`
	Value        string    `gorm:"type:text"`
	Seq          uint64    `gorm:"index"`
	LastAccessed time.Time `gorm:"index"`
}

// TableName keeps the table name stable regardless of gorm's pluralization.
func (Record) TableName() string { return "translation_cache" }

type entry struct {
	value        string
	lastAccessed time.Time
}

// Store is the in-memory view of the cache with write-through
// persistence. Eviction is FIFO by insertion: Get refreshes only the
// last-accessed marker and never reorders the eviction sequence. The
// marker is tracked so a later revision could switch to true LRU, but
// eviction order deliberately ignores it today.
//
// All operations are safe for concurrent use; none of them return errors
// caused by the store's own logic. Persistence failures are logged and
// the in-memory state stays authoritative for the current process.
type Store struct {
	mu      sync.Mutex
	max     int
	entries map[string]*entry
	order   []string
	seq     uint64
	db      *database.DB // nil disables persistence
}

// NewStore creates a cache bounded to max items. db may be nil, in which
// case the store is purely in-memory.
func NewStore(max int, db *database.DB) *Store {
	return &Store{
		max:     max,
		entries: make(map[string]*entry),
		order:   make([]string, 0, max),
		db:      db,
	}
}

// Load rebuilds the in-memory state from the persisted records, ordered
// by insertion sequence. Called once at startup, before the store is
// shared with the pipeline.
func (s *Store) Load(ctx context.Context) error {
	if s.db == nil {
		return nil
	}

	if err := s.db.WithContext(ctx).AutoMigrate(&Record{}); err != nil {
		return err
	}

	var records []Record
	if err := s.db.WithContext(ctx).Order("seq asc").Find(&records).Error; err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.entries[r.Key] = &entry{value: r.Value, lastAccessed: r.LastAccessed}
		s.order = append(s.order, r.Key)
		if r.Seq > s.seq {
			s.seq = r.Seq
		}
	}
	s.evictLocked(ctx)

	fiberlog.Infof("cache: loaded %d persisted entries", len(s.order))
	return nil
}

// Get returns the cached translation for key. A hit refreshes the
// entry's last-accessed marker (and persists the touch) but does not
// move the entry in the eviction order.
func (s *Store) Get(ctx context.Context, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return "", false
	}

	e.lastAccessed = time.Now()
	if s.db != nil {
		err := s.db.WithContext(ctx).Model(&Record{}).
			Where("key = ?", key).
			Update("last_accessed", e.lastAccessed).Error
		if err != nil {
			fiberlog.Warnf("cache: failed to persist access time for %s: %v", key, err)
		}
	}
	return e.value, true
}

// Put stores value under key. A key not previously present is appended
// to the eviction order; re-inserting an existing key updates the value
// and timestamp but keeps its original position. The store is evicted
// back under its bound before Put returns.
func (s *Store) Put(ctx context.Context, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if e, ok := s.entries[key]; ok {
		e.value = value
		e.lastAccessed = now
		if s.db != nil {
			err := s.db.WithContext(ctx).Model(&Record{}).
				Where("key = ?", key).
				Updates(map[string]any{"value": value, "last_accessed": now}).Error
			if err != nil {
				fiberlog.Warnf("cache: failed to persist update for %s: %v", key, err)
			}
		}
		return
	}

	s.seq++
	s.entries[key] = &entry{value: value, lastAccessed: now}
	s.order = append(s.order, key)
	if s.db != nil {
		record := Record{Key: key, Value: value, Seq: s.seq, LastAccessed: now}
		if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
			fiberlog.Warnf("cache: failed to persist entry %s: %v", key, err)
		}
	}

	s.evictLocked(ctx)
}

// evictLocked drops entries from the front of the insertion order until
// the store is back under its bound. Caller holds s.mu.
func (s *Store) evictLocked(ctx context.Context) {
	for s.max > 0 && len(s.order) > s.max {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
		if s.db != nil {
			if err := s.db.WithContext(ctx).Delete(&Record{}, "key = ?", oldest).Error; err != nil {
				fiberlog.Warnf("cache: failed to delete evicted entry %s: %v", oldest, err)
			}
		}
	}
}

// Clear empties the mapping and the eviction order atomically from the
// caller's point of view.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*entry)
	s.order = s.order[:0]
	if s.db != nil {
		if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&Record{}).Error; err != nil {
			fiberlog.Warnf("cache: failed to clear persisted entries: %v", err)
		}
	}
}

// Len returns the current number of cached entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
