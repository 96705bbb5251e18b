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
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	pkgerrors "github.com/JackYoustra/TCATestRecording/pkg/errors"
	"github.com/JackYoustra/TCATestRecording/pkg/tracelog"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS trace_records (
	session_id TEXT    NOT NULL,
	seq        INTEGER NOT NULL,
	kind       TEXT    NOT NULL,
	payload    BLOB    NOT NULL,
	prev_hash  TEXT    NOT NULL,
	hash       TEXT    NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (session_id, seq)
)`

// sqliteStore 单文件 SQLite 实现，适合本地开发与单机 CI；单连接串行化所有写事务
type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore 打开（必要时创建）path 处的 SQLite 数据库
func NewSQLiteStore(ctx context.Context, path string) (Store, error) {
	if path == "" {
		return nil, pkgerrors.Mark(errors.New("tracestore: sqlite path is empty"), pkgerrors.ErrInvalidArg)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, pkgerrors.Wrap(err, "tracestore: mkdir")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "tracestore: open sqlite")
	}
	// :memory: 每个连接是独立的库；文件库单连接也避免 SQLITE_BUSY
	db.SetMaxOpenConns(1)
	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		sqliteSchema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, pkgerrors.Wrap(err, fmt.Sprintf("tracestore: %s", firstLine(stmt)))
		}
	}
	return &sqliteStore{db: db}, nil
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' && i > 0 {
			return s[:i]
		}
	}
	return s
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) Append(ctx context.Context, sessionID string, rec tracelog.Record) error {
	if sessionID == "" {
		return ErrSeqMismatch
	}
	if len(rec.Payload) == 0 {
		rec.Payload = []byte("null")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var cur uint64
	var prev string
	err = tx.QueryRowContext(ctx,
		`SELECT seq, hash FROM trace_records WHERE session_id = ? ORDER BY seq DESC LIMIT 1`,
		sessionID).Scan(&cur, &prev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if rec.Seq != cur+1 {
		return ErrSeqMismatch
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO trace_records (session_id, seq, kind, payload, prev_hash, hash, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, int64(rec.Seq), string(rec.Kind), []byte(rec.Payload), prev, entryHash(sessionID, rec, prev), time.Now().UnixNano())
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) ListRecords(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, kind, payload, prev_hash, hash, created_at FROM trace_records WHERE session_id = ? ORDER BY seq`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		e := Entry{SessionID: sessionID}
		var seq, created int64
		var kind string
		var payload []byte
		if err := rows.Scan(&seq, &kind, &payload, &e.PrevHash, &e.Hash, &created); err != nil {
			return nil, err
		}
		e.Record = tracelog.Record{Seq: uint64(seq), Kind: tracelog.Kind(kind), Payload: payload}
		e.CreatedAt = time.Unix(0, created).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *sqliteStore) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, COUNT(*), MAX(created_at) FROM trace_records GROUP BY session_id ORDER BY session_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var updated int64
		if err := rows.Scan(&info.ID, &info.Records, &updated); err != nil {
			return nil, err
		}
		info.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}
