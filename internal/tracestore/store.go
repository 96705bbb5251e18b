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

// Package tracestore archives trace logs by session so recordings outlive the
// machine that produced them.
package tracestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/JackYoustra/TCATestRecording/pkg/config"
	pkgerrors "github.com/JackYoustra/TCATestRecording/pkg/errors"
	"github.com/JackYoustra/TCATestRecording/pkg/tracelog"
)

var (
	// ErrSeqMismatch Append 时记录 seq 不是该会话的下一个序号
	ErrSeqMismatch = errors.New("tracestore: seq mismatch on append")
	// ErrBrokenChain 读出的记录哈希链不连续（记录被篡改或丢失）
	ErrBrokenChain = errors.New("tracestore: hash chain broken")
	// ErrSessionNotFound 会话不存在或没有记录
	ErrSessionNotFound = errors.New("tracestore: session not found")
)

// Entry 归档中的一条 trace 记录
type Entry struct {
	SessionID string
	Record    tracelog.Record
	PrevHash  string
	Hash      string
	CreatedAt time.Time
}

// SessionInfo 会话摘要
type SessionInfo struct {
	ID        string
	Records   int
	UpdatedAt time.Time
}

// Store trace 归档：按会话追加、按 seq 顺序读取
type Store interface {
	// Append 仅当 rec.Seq 等于当前记录数 + 1 时追加；否则返回 ErrSeqMismatch
	Append(ctx context.Context, sessionID string, rec tracelog.Record) error
	// ListRecords 返回该会话全部记录（按 seq）；会话不存在时返回空
	ListRecords(ctx context.Context, sessionID string) ([]Entry, error)
	// ListSessions 返回所有会话，按 ID 排序
	ListSessions(ctx context.Context) ([]SessionInfo, error)
	Close() error
}

// Open 按配置创建 Store：memory、sqlite、postgres 或 redis
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, pkgerrors.Mark(errors.New("tracestore: store.dsn is required for postgres"), pkgerrors.ErrInvalidArg)
		}
		return NewPostgresStore(ctx, cfg.DSN)
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.DSN)
	case "redis":
		if cfg.DSN == "" {
			return nil, pkgerrors.Mark(errors.New("tracestore: store.dsn is required for redis"), pkgerrors.ErrInvalidArg)
		}
		return NewRedisStore(ctx, cfg.DSN)
	default:
		return nil, pkgerrors.Mark(errors.New("tracestore: unknown store type "+strconv.Quote(cfg.Type)), pkgerrors.ErrInvalidArg)
	}
}

// entryHash = SHA256(SessionID|Seq|Kind|Payload|PrevHash)
func entryHash(sessionID string, rec tracelog.Record, prevHash string) string {
	h := sha256.New()
	h.Write([]byte(sessionID))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.FormatUint(rec.Seq, 10)))
	h.Write([]byte("|"))
	h.Write([]byte(rec.Kind))
	h.Write([]byte("|"))
	h.Write(rec.Payload)
	h.Write([]byte("|"))
	h.Write([]byte(prevHash))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyChain 校验 entries 的 seq 连续且哈希链完整
func VerifyChain(entries []Entry) error {
	prev := ""
	for i, e := range entries {
		if e.Record.Seq != uint64(i+1) {
			return errors.Join(ErrBrokenChain, ErrSeqMismatch)
		}
		if e.PrevHash != prev || e.Hash != entryHash(e.SessionID, e.Record, prev) {
			return ErrBrokenChain
		}
		prev = e.Hash
	}
	return nil
}
