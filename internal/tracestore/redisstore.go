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
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/JackYoustra/TCATestRecording/pkg/errors"
	"github.com/JackYoustra/TCATestRecording/pkg/tracelog"
)

const (
	redisKeyPrefix   = "tracereplay:session:"
	redisSessionsKey = "tracereplay:sessions"
	redisMaxRetries  = 8
)

// redisEntry Redis list 中的一条记录；payload 以字符串保存，保证字节不变
type redisEntry struct {
	Seq       uint64    `json:"seq"`
	Kind      string    `json:"kind"`
	Payload   string    `json:"payload"`
	PrevHash  string    `json:"prev_hash"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
}

// redisStore Redis 实现：每个会话一个 list，会话 ID 集合用于 ListSessions；WATCH 实现 seq CAS
type redisStore struct {
	client *redis.Client
}

// NewRedisStore 创建基于 Redis 的 Store；dsn 形如 redis://:password@host:6379/0
func NewRedisStore(ctx context.Context, dsn string) (Store, error) {
	opt, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, pkgerrors.Mark(pkgerrors.Wrap(err, "tracestore: parse redis url"), pkgerrors.ErrInvalidArg)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, pkgerrors.Wrap(err, "tracestore: ping redis")
	}
	return &redisStore{client: client}, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

func sessionKey(sessionID string) string {
	return redisKeyPrefix + sessionID
}

func (s *redisStore) Append(ctx context.Context, sessionID string, rec tracelog.Record) error {
	if sessionID == "" {
		return ErrSeqMismatch
	}
	if len(rec.Payload) == 0 {
		rec.Payload = []byte("null")
	}
	key := sessionKey(sessionID)
	txf := func(tx *redis.Tx) error {
		n, err := tx.LLen(ctx, key).Result()
		if err != nil {
			return err
		}
		if rec.Seq != uint64(n)+1 {
			return ErrSeqMismatch
		}
		prev := ""
		if n > 0 {
			last, err := tx.LIndex(ctx, key, -1).Result()
			if err != nil {
				return err
			}
			var e redisEntry
			if err := json.Unmarshal([]byte(last), &e); err != nil {
				return err
			}
			prev = e.Hash
		}
		data, err := json.Marshal(redisEntry{
			Seq:       rec.Seq,
			Kind:      string(rec.Kind),
			Payload:   string(rec.Payload),
			PrevHash:  prev,
			Hash:      entryHash(sessionID, rec, prev),
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, key, data)
			pipe.SAdd(ctx, redisSessionsKey, sessionID)
			return nil
		})
		return err
	}
	for i := 0; i < redisMaxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			// 并发写入同一会话，重新读取长度
			continue
		}
		return err
	}
	return ErrSeqMismatch
}

func (s *redisStore) ListRecords(ctx context.Context, sessionID string) ([]Entry, error) {
	raw, err := s.client.LRange(ctx, sessionKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(raw))
	for _, r := range raw {
		var e redisEntry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, err
		}
		entries = append(entries, Entry{
			SessionID: sessionID,
			Record:    tracelog.Record{Seq: e.Seq, Kind: tracelog.Kind(e.Kind), Payload: []byte(e.Payload)},
			PrevHash:  e.PrevHash,
			Hash:      e.Hash,
			CreatedAt: e.CreatedAt,
		})
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries, nil
}

func (s *redisStore) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	ids, err := s.client.SMembers(ctx, redisSessionsKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	out := make([]SessionInfo, 0, len(ids))
	for _, id := range ids {
		key := sessionKey(id)
		n, err := s.client.LLen(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		info := SessionInfo{ID: id, Records: int(n)}
		if last, err := s.client.LIndex(ctx, key, -1).Result(); err == nil {
			var e redisEntry
			if json.Unmarshal([]byte(last), &e) == nil {
				info.UpdatedAt = e.CreatedAt
			}
		} else if !errors.Is(err, redis.Nil) {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}
