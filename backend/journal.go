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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c2FmZQ/storage/crypto"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

var ErrNotLeader = errors.New("not leader")

// JournalCommandType is the kind of a journal entry.
type JournalCommandType string

const (
	CmdSaveSession   JournalCommandType = "SAVE_SESSION"
	CmdDeleteSession JournalCommandType = "DELETE_SESSION"
)

// JournalCommand is one entry of the session journal.
type JournalCommand struct {
	Type    JournalCommandType `json:"type"`
	ID      string             `json:"id"`
	Session json.RawMessage    `json:"session,omitempty"`
}

// JournalConfig configures OpenJournal.
type JournalConfig struct {
	DataDir string
	// Bind is the "host:port" of the TCP transport. When empty the journal
	// uses an in-process transport and can only run as a single node.
	Bind      string
	Advertise string
	NodeID    string
	Bootstrap bool
	// MasterKey encrypts the log, the stable store and snapshots. Nil
	// leaves them in the clear.
	MasterKey crypto.MasterKey
	LogOutput io.Writer
}

// Journal replicates every session autosave through a Raft log before it
// reaches the SessionStore. It implements Persister.
type Journal struct {
	Raft *raft.Raft
	fsm  *journalFSM

	key          crypto.EncryptionKey
	closers      []io.Closer
	shutdownOnce sync.Once

	// Autosaves waiting for the proposer, newest per session.
	saveMu  sync.Mutex
	pending map[string][]byte
	wake    chan struct{}
	stop    chan struct{}
	stopped chan struct{}
}

// OpenJournal starts the journal on top of sessions.
func OpenJournal(cfg JournalConfig, sessions *SessionStore) (*Journal, error) {
	if cfg.NodeID == "" {
		cfg.NodeID = "fastball-1"
	}
	if cfg.LogOutput == nil {
		cfg.LogOutput = os.Stderr
	}
	dir := filepath.Join(cfg.DataDir, "journal")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	j := &Journal{
		pending: make(map[string][]byte),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	var cipher journalCipher
	if cfg.MasterKey != nil {
		key, err := loadJournalKey(cfg.MasterKey, dir)
		if err != nil {
			return nil, err
		}
		j.key = key
		cipher = key
	}
	j.fsm = &journalFSM{sessions: sessions, key: cipher}

	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(cfg.NodeID)
	config.HeartbeatTimeout = 1000 * time.Millisecond
	config.ElectionTimeout = 1000 * time.Millisecond
	config.LeaderLeaseTimeout = 500 * time.Millisecond
	config.CommitTimeout = 50 * time.Millisecond
	config.SnapshotInterval = 120 * time.Second
	config.SnapshotThreshold = 8192
	config.LogOutput = cfg.LogOutput
	config.LogLevel = "INFO"

	var transport raft.Transport
	if cfg.Bind != "" {
		var advertise net.Addr
		if cfg.Advertise != "" {
			addr, err := net.ResolveTCPAddr("tcp", cfg.Advertise)
			if err != nil {
				return nil, fmt.Errorf("invalid journal advertise address: %w", err)
			}
			advertise = addr
		}
		t, err := raft.NewTCPTransport(cfg.Bind, advertise, 3, 10*time.Second, cfg.LogOutput)
		if err != nil {
			return nil, err
		}
		transport = t
		j.closers = append(j.closers, t)
	} else {
		_, t := raft.NewInmemTransport("")
		transport = t
		j.closers = append(j.closers, t)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(dir, "raft-log.bolt"))
	if err != nil {
		j.closeStores()
		return nil, err
	}
	j.closers = append(j.closers, logStore)
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(dir, "raft-stable.bolt"))
	if err != nil {
		j.closeStores()
		return nil, err
	}
	j.closers = append(j.closers, stableStore)

	var raftLogStore raft.LogStore = logStore
	var raftStableStore raft.StableStore = stableStore
	if cipher != nil {
		raftLogStore = NewEncryptedLogStore(logStore, cipher)
		raftStableStore = NewEncryptedStableStore(stableStore, cipher)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(dir, 1, cfg.LogOutput)
	if err != nil {
		j.closeStores()
		return nil, err
	}

	existing, err := raft.HasExistingState(raftLogStore, raftStableStore, snapshotStore)
	if err != nil {
		j.closeStores()
		return nil, err
	}

	r, err := raft.NewRaft(config, j.fsm, raftLogStore, raftStableStore, snapshotStore, transport)
	if err != nil {
		j.closeStores()
		return nil, err
	}
	j.Raft = r
	go j.proposeLoop()

	if cfg.Bootstrap && !existing {
		log.Printf("[JOURNAL] Bootstrapping with NodeID: %s", cfg.NodeID)
		configuration := raft.Configuration{
			Servers: []raft.Server{
				{
					ID:      config.LocalID,
					Address: transport.LocalAddr(),
				},
			},
		}
		if err := r.BootstrapCluster(configuration).Error(); err != nil {
			log.Printf("[JOURNAL] Bootstrap error (might be already bootstrapped): %v", err)
		}
	}
	return j, nil
}

// PersistSession implements Persister.
func (j *Journal) PersistSession(s *GameSession) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return j.propose(JournalCommand{Type: CmdSaveSession, ID: s.ID, Session: b})
}

// Autosave queues s for the journal and returns without waiting for the
// log. A later autosave of the same session replaces one still queued.
func (j *Journal) Autosave(s *GameSession) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	j.saveMu.Lock()
	j.pending[s.ID] = b
	j.saveMu.Unlock()
	select {
	case j.wake <- struct{}{}:
	default:
	}
	return nil
}

// PendingAutosaves is the number of queued autosaves.
func (j *Journal) PendingAutosaves() int {
	j.saveMu.Lock()
	defer j.saveMu.Unlock()
	return len(j.pending)
}

func (j *Journal) proposeLoop() {
	defer close(j.stopped)
	for {
		select {
		case <-j.wake:
			j.proposePending()
		case <-j.stop:
			j.proposePending()
			return
		}
	}
}

func (j *Journal) proposePending() {
	j.saveMu.Lock()
	batch := j.pending
	j.pending = make(map[string][]byte)
	j.saveMu.Unlock()

	for id, b := range batch {
		if err := j.propose(JournalCommand{Type: CmdSaveSession, ID: id, Session: b}); err != nil {
			log.Printf("[JOURNAL] autosave of session %s failed: %v", id, err)
		}
	}
}

// DeleteSession implements Persister.
func (j *Journal) DeleteSession(id string) error {
	return j.propose(JournalCommand{Type: CmdDeleteSession, ID: id})
}

func (j *Journal) propose(cmd JournalCommand) error {
	if j.Raft.State() != raft.Leader {
		return ErrNotLeader
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	f := j.Raft.Apply(data, 5*time.Second)
	if err := f.Error(); err != nil {
		return err
	}
	if err, ok := f.Response().(error); ok && err != nil {
		return err
	}
	return nil
}

// WaitForLeader blocks until this node leads or the timeout expires.
func (j *Journal) WaitForLeader(timeout time.Duration) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		if j.Raft.State() == raft.Leader {
			return nil
		}
		select {
		case <-timer.C:
			return fmt.Errorf("timeout waiting for journal leadership (state: %s)", j.Raft.State())
		case <-ticker.C:
		}
	}
}

// WaitForSync blocks until every entry in the log has been applied, so a
// restarted server does not serve sessions while the log is replayed.
func (j *Journal) WaitForSync(timeout time.Duration) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			return fmt.Errorf("timeout waiting for journal sync (applied: %d, last: %d)", j.Raft.AppliedIndex(), j.Raft.LastIndex())
		case <-ticker.C:
			if j.Raft.AppliedIndex() >= j.Raft.LastIndex() {
				return nil
			}
		}
	}
}

// Snapshot compacts the log now.
func (j *Journal) Snapshot() error {
	return j.Raft.Snapshot().Error()
}

// State is the node's Raft state, e.g. "Leader".
func (j *Journal) State() string {
	return j.Raft.State().String()
}

// AppliedIndex is the index of the last entry written to the store.
func (j *Journal) AppliedIndex() uint64 {
	return j.fsm.applied.Load()
}

// Shutdown stops Raft and closes the stores.
func (j *Journal) Shutdown() error {
	var err error
	j.shutdownOnce.Do(func() {
		if j.Raft != nil {
			close(j.stop)
			<-j.stopped
			err = j.Raft.Shutdown().Error()
		}
		j.closeStores()
		if j.key != nil {
			j.key.Wipe()
		}
	})
	return err
}

func (j *Journal) closeStores() {
	for _, c := range j.closers {
		c.Close()
	}
	j.closers = nil
}

// journalFSM applies journal entries to the SessionStore.
type journalFSM struct {
	sessions *SessionStore
	key      journalCipher
	applied  atomic.Uint64
}

func (f *journalFSM) Apply(l *raft.Log) interface{} {
	if len(l.Data) == 0 {
		return nil
	}
	var cmd JournalCommand
	if err := json.Unmarshal(l.Data, &cmd); err != nil {
		log.Printf("[JOURNAL] Apply Error: failed to decode command: %v", err)
		return err
	}
	var err error
	switch cmd.Type {
	case CmdSaveSession:
		err = f.applySave(cmd.Session, l.Index)
	case CmdDeleteSession:
		err = f.applyDelete(cmd.ID, l.Index)
	default:
		err = fmt.Errorf("unknown journal command %q", cmd.Type)
	}
	f.applied.Store(l.Index)
	return err
}

// replayed reports whether the stored session already reflects index.
func (f *journalFSM) replayed(id string, index uint64) bool {
	existing, err := f.sessions.LoadSession(id)
	return err == nil && index > 0 && index <= existing.LastRaftIndex
}

func (f *journalFSM) applySave(data []byte, index uint64) error {
	var s GameSession
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if !isValidUUID(s.ID) {
		return fmt.Errorf("invalid session id %q", s.ID)
	}
	if f.replayed(s.ID, index) {
		return nil
	}
	s.LastRaftIndex = index
	return f.sessions.SaveSessionInMemory(&s, false)
}

func (f *journalFSM) applyDelete(id string, index uint64) error {
	if f.replayed(id, index) {
		return nil
	}
	return f.sessions.deleteSessionAt(id, index)
}

func (f *journalFSM) Snapshot() (raft.FSMSnapshot, error) {
	if err := f.sessions.FlushAll(); err != nil {
		log.Printf("[JOURNAL] Snapshot Error: flushing sessions failed: %v", err)
		return nil, err
	}
	var all []*GameSession
	for s, err := range f.sessions.ListAllSessions() {
		if err != nil {
			return nil, err
		}
		all = append(all, s)
	}
	data, err := json.Marshal(all)
	if err != nil {
		return nil, err
	}
	return &journalSnapshot{data: data, key: f.key}, nil
}

func (f *journalFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	if f.key != nil {
		if data, err = f.key.Decrypt(data); err != nil {
			return fmt.Errorf("failed to decrypt snapshot: %w", err)
		}
	}
	var all []*GameSession
	if err := json.Unmarshal(data, &all); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}

	keep := make(map[string]bool, len(all))
	for _, s := range all {
		keep[s.ID] = true
	}
	var stale []string
	for s, err := range f.sessions.ListAllSessions() {
		if err != nil {
			return err
		}
		if !keep[s.ID] {
			stale = append(stale, s.ID)
		}
	}
	for _, id := range stale {
		if err := f.sessions.PurgeSession(id); err != nil {
			return err
		}
	}
	for _, s := range all {
		if err := f.sessions.SaveSession(s); err != nil {
			return err
		}
	}
	log.Printf("[JOURNAL] Restored %d sessions from snapshot", len(all))
	return nil
}

type journalSnapshot struct {
	data []byte
	key  journalCipher
}

func (s *journalSnapshot) Persist(sink raft.SnapshotSink) error {
	data := s.data
	if s.key != nil {
		enc, err := s.key.Encrypt(data)
		if err != nil {
			sink.Cancel()
			return err
		}
		data = enc
	}
	if _, err := sink.Write(data); err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *journalSnapshot) Release() {}
