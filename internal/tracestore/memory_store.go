// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tracestore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JackYoustra/TCATestRecording/pkg/tracelog"
)

// memoryStore 内存实现，测试与单机 CLI 使用
type memoryStore struct {
	mu        sync.RWMutex
	bySession map[string][]Entry
}

// NewMemoryStore 创建内存版 trace 归档
func NewMemoryStore() Store {
	return &memoryStore{bySession: make(map[string][]Entry)}
}

func (s *memoryStore) Append(ctx context.Context, sessionID string, rec tracelog.Record) error {
	if sessionID == "" {
		return ErrSeqMismatch
	}
	if len(rec.Payload) > 0 {
		payload := make([]byte, len(rec.Payload))
		copy(payload, rec.Payload)
		rec.Payload = payload
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.bySession[sessionID]
	if rec.Seq != uint64(len(current)+1) {
		return ErrSeqMismatch
	}
	var prevHash string
	if len(current) > 0 {
		prevHash = current[len(current)-1].Hash
	}
	s.bySession[sessionID] = append(current, Entry{
		SessionID: sessionID,
		Record:    rec,
		PrevHash:  prevHash,
		Hash:      entryHash(sessionID, rec, prevHash),
		CreatedAt: time.Now(),
	})
	return nil
}

func (s *memoryStore) ListRecords(ctx context.Context, sessionID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.bySession[sessionID]
	if len(entries) == 0 {
		return nil, nil
	}
	out := make([]Entry, len(entries))
	for i, e := range entries {
		payload := make([]byte, len(e.Record.Payload))
		copy(payload, e.Record.Payload)
		e.Record.Payload = payload
		out[i] = e
	}
	return out, nil
}

func (s *memoryStore) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SessionInfo, 0, len(s.bySession))
	for id, entries := range s.bySession {
		out = append(out, SessionInfo{
			ID:        id,
			Records:   len(entries),
			UpdatedAt: entries[len(entries)-1].CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryStore) Close() error { return nil }
