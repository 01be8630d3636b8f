// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/flashcardNFC/fastball/backend/search"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSessionCacheSize is the number of sessions kept decoded in memory.
const DefaultSessionCacheSize = 256

// Persister receives a session after every completed reducer step.
type Persister interface {
	PersistSession(s *GameSession) error
	DeleteSession(id string) error
}

// AsyncPersister is a Persister whose autosaves can be queued so the hub
// never waits on a slow store.
type AsyncPersister interface {
	Persister
	Autosave(s *GameSession) error
}

// SessionStore manages session persistence to disk.
type SessionStore struct {
	DataDir string
	Debug   bool
	storage *storage.Storage
	mu      sync.Map // *sync.RWMutex per session id
	cache   *lru.Cache[string, []byte]

	// dirty holds sessions saved in memory but not yet written. It is
	// authoritative over both the cache and the disk.
	dirtyMu sync.Mutex
	dirty   map[string][]byte
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(dataDir string, s *storage.Storage, cacheSize int) *SessionStore {
	if cacheSize <= 0 {
		cacheSize = DefaultSessionCacheSize
	}
	cache, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		// Only a non-positive size fails.
		panic(err)
	}
	return &SessionStore{
		DataDir: dataDir,
		storage: s,
		cache:   cache,
		dirty:   make(map[string][]byte),
	}
}

func sessionFile(id string) string {
	return filepath.Join("sessions", fmt.Sprintf("%s.json", url.PathEscape(id)))
}

func (ss *SessionStore) lock(id string) *sync.RWMutex {
	m, _ := ss.mu.LoadOrStore(id, &sync.RWMutex{})
	return m.(*sync.RWMutex)
}

// SaveSession writes the session to disk.
func (ss *SessionStore) SaveSession(s *GameSession) error {
	return ss.saveSession(s, nil)
}

// saveSession writes s to disk. flushed is the dirty copy s was decoded
// from, if any: the dirty entry is then only cleared when no newer save
// replaced it while the file was written.
func (ss *SessionStore) saveSession(s *GameSession, flushed []byte) error {
	mutex := ss.lock(s.ID)
	mutex.Lock()
	defer mutex.Unlock()

	if err := ss.storage.SaveDataFile(sessionFile(s.ID), s); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}

	ss.dirtyMu.Lock()
	defer ss.dirtyMu.Unlock()
	if flushed != nil {
		if cur, ok := ss.dirty[s.ID]; ok && !bytes.Equal(cur, flushed) {
			return nil
		}
		ss.cache.Add(s.ID, flushed)
		delete(ss.dirty, s.ID)
		return nil
	}
	if b, err := json.Marshal(s); err == nil {
		ss.cache.Add(s.ID, b)
	}
	delete(ss.dirty, s.ID)
	return nil
}

// SaveSessionInMemory records the session and marks it dirty. With
// forceSync it is written immediately.
func (ss *SessionStore) SaveSessionInMemory(s *GameSession, forceSync bool) error {
	if forceSync {
		return ss.SaveSession(s)
	}
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ss.dirtyMu.Lock()
	ss.dirty[s.ID] = b
	ss.cache.Add(s.ID, b)
	ss.dirtyMu.Unlock()
	return nil
}

// PersistSession implements Persister.
func (ss *SessionStore) PersistSession(s *GameSession) error {
	return ss.SaveSessionInMemory(s, false)
}

// Flush writes one session to disk if it is dirty.
func (ss *SessionStore) Flush(id string) error {
	ss.dirtyMu.Lock()
	b, ok := ss.dirty[id]
	ss.dirtyMu.Unlock()
	if !ok {
		return nil
	}

	var s GameSession
	if err := json.Unmarshal(b, &s); err != nil {
		ss.dirtyMu.Lock()
		delete(ss.dirty, id)
		ss.dirtyMu.Unlock()
		return fmt.Errorf("session %s: dirty copy unreadable: %w", id, err)
	}
	return ss.saveSession(&s, b)
}

// FlushAll writes every dirty session to disk.
func (ss *SessionStore) FlushAll() error {
	ss.dirtyMu.Lock()
	ids := make([]string, 0, len(ss.dirty))
	for id := range ss.dirty {
		ids = append(ids, id)
	}
	ss.dirtyMu.Unlock()

	for _, id := range ids {
		if err := ss.Flush(id); err != nil {
			return fmt.Errorf("failed to flush session %s: %w", id, err)
		}
	}
	return nil
}

// DirtyCount reports how many sessions are waiting to be flushed.
func (ss *SessionStore) DirtyCount() int {
	ss.dirtyMu.Lock()
	defer ss.dirtyMu.Unlock()
	return len(ss.dirty)
}

// LoadSession loads a session by id. It returns os.ErrNotExist when there
// is no such session.
func (ss *SessionStore) LoadSession(id string) (*GameSession, error) {
	ss.dirtyMu.Lock()
	b, ok := ss.dirty[id]
	ss.dirtyMu.Unlock()
	if !ok {
		b, ok = ss.cache.Get(id)
	}
	if ok {
		var s GameSession
		if err := json.Unmarshal(b, &s); err == nil {
			if ss.Debug {
				log.Printf("[CACHE] Hit for session %s", id)
			}
			s.normalize()
			return &s, nil
		}
		ss.cache.Remove(id)
	}
	if ss.Debug {
		log.Printf("[CACHE] Miss for session %s", id)
	}

	mutex := ss.lock(id)
	mutex.RLock()
	defer mutex.RUnlock()

	var s GameSession
	if err := ss.storage.ReadDataFile(sessionFile(id), &s); err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	if s.ID == "" {
		s.ID = id
	}
	s.normalize()
	if b, err := json.Marshal(&s); err == nil {
		ss.cache.Add(id, b)
	}
	return &s, nil
}

// DeleteSession overwrites the session with a tombstone.
func (ss *SessionStore) DeleteSession(id string) error {
	return ss.deleteSessionAt(id, 0)
}

// deleteSessionAt writes a tombstone stamped with a journal index. A zero
// index keeps the session's current one.
func (ss *SessionStore) deleteSessionAt(id string, index uint64) error {
	s, err := ss.LoadSession(id)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if index == 0 {
		index = s.LastRaftIndex
	}
	tombstone := &GameSession{
		ID:            id,
		SchemaVersion: CurrentSchemaVersion,
		OwnerID:       s.OwnerID,
		Status:        SessionStatusDeleted,
		DeletedAt:     time.Now().UnixNano(),
		LastRaftIndex: index,
	}
	return ss.SaveSession(tombstone)
}

// PurgeSession removes the session file.
func (ss *SessionStore) PurgeSession(id string) error {
	mutex := ss.lock(id)
	mutex.Lock()
	defer mutex.Unlock()

	ss.cache.Remove(id)
	ss.dirtyMu.Lock()
	delete(ss.dirty, id)
	ss.dirtyMu.Unlock()

	if err := os.Remove(filepath.Join(ss.DataDir, sessionFile(id))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not purge session file: %w", err)
	}
	return nil
}

// ListAllSessions returns an iterator over every session, deleted ones
// included, in id order.
func (ss *SessionStore) ListAllSessions() iter.Seq2[*GameSession, error] {
	return func(yield func(*GameSession, error) bool) {
		ids := make(map[string]bool)
		files, err := os.ReadDir(filepath.Join(ss.DataDir, "sessions"))
		if err != nil && !os.IsNotExist(err) {
			yield(nil, fmt.Errorf("could not read sessions directory: %w", err))
			return
		}
		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
				continue
			}
			id, err := url.PathUnescape(strings.TrimSuffix(file.Name(), ".json"))
			if err != nil {
				continue
			}
			ids[id] = true
		}
		ss.dirtyMu.Lock()
		for id := range ss.dirty {
			ids[id] = true
		}
		ss.dirtyMu.Unlock()

		sorted := make([]string, 0, len(ids))
		for id := range ids {
			sorted = append(sorted, id)
		}
		sort.Strings(sorted)

		for _, id := range sorted {
			s, err := ss.LoadSession(id)
			if err != nil {
				log.Printf("Warning: could not load session '%s': %v", id, err)
				continue
			}
			if !yield(s, nil) {
				return
			}
		}
	}
}

// ListSessions returns the owner's live sessions matching q, most recent
// first.
func (ss *SessionStore) ListSessions(owner string, q search.Query) ([]SessionSummary, error) {
	var out []SessionSummary
	for s, err := range ss.ListAllSessions() {
		if err != nil {
			return nil, err
		}
		if s.OwnerID != owner || s.Status == SessionStatusDeleted {
			continue
		}
		if sum := s.Summarize(); sum.Matches(q) {
			out = append(out, sum)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt > out[j].UpdatedAt })
	return out, nil
}
