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
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgerrors "github.com/JackYoustra/TCATestRecording/pkg/errors"
	"github.com/JackYoustra/TCATestRecording/pkg/tracelog"
)

const schema = `
CREATE TABLE IF NOT EXISTS trace_records (
	session_id TEXT        NOT NULL,
	seq        BIGINT      NOT NULL,
	kind       TEXT        NOT NULL,
	payload    JSON        NOT NULL,
	prev_hash  TEXT        NOT NULL,
	hash       TEXT        NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (session_id, seq)
)`

// pgStore PostgreSQL 实现：trace_records 表，(session_id, seq) 主键保证顺序唯一
type pgStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore 创建基于 PostgreSQL 的 Store 并确保表存在；dsn 为连接串
func NewPostgresStore(ctx context.Context, dsn string) (Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, pkgerrors.Mark(pkgerrors.Wrap(err, "tracestore: parse dsn"), pkgerrors.ErrInvalidArg)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "tracestore: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, pkgerrors.Wrap(err, "tracestore: ping")
	}
	s := &pgStore{pool: pool}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, pkgerrors.Wrap(err, "tracestore: ensure schema")
	}
	return s, nil
}

// EnsureSchema 建表（幂等）
func (s *pgStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close 关闭连接池
func (s *pgStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *pgStore) Append(ctx context.Context, sessionID string, rec tracelog.Record) error {
	if sessionID == "" {
		return ErrSeqMismatch
	}
	payload := []byte(rec.Payload)
	if len(payload) == 0 {
		payload = []byte("null")
		rec.Payload = payload
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// CAS：仅当当前 max(seq) = rec.Seq-1 时插入
	var currentMax *int64
	var prevHash *string
	err = tx.QueryRow(ctx,
		`SELECT seq, hash FROM trace_records WHERE session_id = $1 ORDER BY seq DESC LIMIT 1`,
		sessionID).Scan(&currentMax, &prevHash)
	if err != nil && !errNoRows(err) {
		return err
	}
	cur, prev := uint64(0), ""
	if currentMax != nil {
		cur = uint64(*currentMax)
	}
	if prevHash != nil {
		prev = *prevHash
	}
	if rec.Seq != cur+1 {
		return ErrSeqMismatch
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO trace_records (session_id, seq, kind, payload, prev_hash, hash) VALUES ($1, $2, $3, $4, $5, $6)`,
		sessionID, int64(rec.Seq), string(rec.Kind), payload, prev, entryHash(sessionID, rec, prev))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSeqMismatch
		}
		return err
	}
	return tx.Commit(ctx)
}

func (s *pgStore) ListRecords(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT seq, kind, payload::text, prev_hash, hash, created_at FROM trace_records WHERE session_id = $1 ORDER BY seq`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		e := Entry{SessionID: sessionID}
		var seq int64
		var kind, payload string
		if err := rows.Scan(&seq, &kind, &payload, &e.PrevHash, &e.Hash, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Record = tracelog.Record{Seq: uint64(seq), Kind: tracelog.Kind(kind), Payload: []byte(payload)}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *pgStore) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT session_id, COUNT(*), MAX(created_at) FROM trace_records GROUP BY session_id ORDER BY session_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var n int64
		if err := rows.Scan(&info.ID, &n, &info.UpdatedAt); err != nil {
			return nil, err
		}
		info.Records = int(n)
		out = append(out, info)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func errNoRows(err error) bool {
	return err != nil && errors.Is(err, pgx.ErrNoRows)
}
