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
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/c2FmZQ/storage/crypto"
	"github.com/hashicorp/raft"
)

const journalKeyFile = "journal.key"

// journalCipher is the part of crypto.EncryptionKey the journal stores use.
type journalCipher interface {
	Encrypt([]byte) ([]byte, error)
	Decrypt([]byte) ([]byte, error)
}

// loadJournalKey reads the journal's data key from dir, creating it on
// first start. The key file is encrypted with the master key.
func loadJournalKey(mk crypto.MasterKey, dir string) (crypto.EncryptionKey, error) {
	path := filepath.Join(dir, journalKeyFile)
	f, err := os.Open(path)
	if err == nil {
		defer f.Close()
		key, err := mk.ReadEncryptedKey(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read journal key: %w", err)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to open journal key: %w", err)
	}

	log.Printf("[JOURNAL] Generating journal encryption key...")
	key, err := mk.NewKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate journal key: %w", err)
	}
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create journal key file: %w", err)
	}
	defer out.Close()
	if err := key.WriteEncryptedKey(out); err != nil {
		return nil, fmt.Errorf("failed to write journal key: %w", err)
	}
	return key, nil
}

// EncryptedLogStore wraps a raft.LogStore to encrypt log entries.
type EncryptedLogStore struct {
	inner raft.LogStore
	key   journalCipher
}

func NewEncryptedLogStore(inner raft.LogStore, key journalCipher) *EncryptedLogStore {
	return &EncryptedLogStore{inner: inner, key: key}
}

func (e *EncryptedLogStore) FirstIndex() (uint64, error) {
	return e.inner.FirstIndex()
}

func (e *EncryptedLogStore) LastIndex() (uint64, error) {
	return e.inner.LastIndex()
}

func (e *EncryptedLogStore) GetLog(index uint64, l *raft.Log) error {
	if err := e.inner.GetLog(index, l); err != nil {
		return err
	}
	if len(l.Data) == 0 {
		return nil
	}
	dec, err := e.key.Decrypt(l.Data)
	if err != nil {
		return fmt.Errorf("failed to decrypt log index %d: %w", index, err)
	}
	l.Data = dec
	return nil
}

func (e *EncryptedLogStore) encrypt(l *raft.Log) (*raft.Log, error) {
	if len(l.Data) == 0 {
		return l, nil
	}
	enc, err := e.key.Encrypt(l.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt log index %d: %w", l.Index, err)
	}
	nl := *l
	nl.Data = enc
	return &nl, nil
}

func (e *EncryptedLogStore) StoreLog(l *raft.Log) error {
	nl, err := e.encrypt(l)
	if err != nil {
		return err
	}
	return e.inner.StoreLog(nl)
}

func (e *EncryptedLogStore) StoreLogs(logs []*raft.Log) error {
	out := make([]*raft.Log, len(logs))
	for i, l := range logs {
		nl, err := e.encrypt(l)
		if err != nil {
			return err
		}
		out[i] = nl
	}
	return e.inner.StoreLogs(out)
}

func (e *EncryptedLogStore) DeleteRange(min, max uint64) error {
	return e.inner.DeleteRange(min, max)
}

func (e *EncryptedLogStore) Close() error {
	if c, ok := e.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// EncryptedStableStore wraps a raft.StableStore to encrypt its values.
type EncryptedStableStore struct {
	inner raft.StableStore
	key   journalCipher
}

func NewEncryptedStableStore(inner raft.StableStore, key journalCipher) *EncryptedStableStore {
	return &EncryptedStableStore{inner: inner, key: key}
}

func (e *EncryptedStableStore) Set(k, val []byte) error {
	enc, err := e.key.Encrypt(val)
	if err != nil {
		return fmt.Errorf("failed to encrypt stable value: %w", err)
	}
	return e.inner.Set(k, enc)
}

func (e *EncryptedStableStore) Get(k []byte) ([]byte, error) {
	val, err := e.inner.Get(k)
	if err != nil {
		return nil, err
	}
	if len(val) == 0 {
		return val, nil
	}
	dec, err := e.key.Decrypt(val)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt stable value: %w", err)
	}
	return dec, nil
}

// SetUint64 stores the value as 8 encrypted bytes; the inner store's own
// uint64 encoding is never used.
func (e *EncryptedStableStore) SetUint64(k []byte, val uint64) error {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, val)
	return e.Set(k, b)
}

func (e *EncryptedStableStore) GetUint64(k []byte) (uint64, error) {
	val, err := e.Get(k)
	if err != nil {
		return 0, err
	}
	if len(val) == 0 {
		return 0, fmt.Errorf("not found")
	}
	if len(val) != 8 {
		return 0, fmt.Errorf("unexpected value length: %d", len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}

func (e *EncryptedStableStore) Close() error {
	if c, ok := e.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
