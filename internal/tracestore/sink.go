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
	"fmt"
	"io"

	pkgerrors "github.com/JackYoustra/TCATestRecording/pkg/errors"
	"github.com/JackYoustra/TCATestRecording/pkg/tracelog"
)

// Sink 将 Store 适配为 tracelog.Sink，录制会话可直接写入归档
type Sink struct {
	ctx       context.Context
	store     Store
	sessionID string
}

// NewSink 返回写入 sessionID 的 Sink；Close 不关闭 store
func NewSink(ctx context.Context, store Store, sessionID string) *Sink {
	return &Sink{ctx: ctx, store: store, sessionID: sessionID}
}

func (s *Sink) Write(rec tracelog.Record) error {
	if err := s.store.Append(s.ctx, s.sessionID, rec); err != nil {
		return &tracelog.IOError{Op: "append", Path: s.sessionID, Err: err}
	}
	return nil
}

func (s *Sink) Close() error { return nil }

var _ tracelog.Sink = (*Sink)(nil)

// Import 读取 NDJSON trace，完整解码校验通过后才写入 sessionID；会话须为空。
// 缺省 seq 的记录按行号补齐
func Import(ctx context.Context, store Store, sessionID string, r io.Reader, opts ...tracelog.ReaderOption) (int, error) {
	recs, err := tracelog.ReadAll(r, opts...)
	if err != nil {
		return 0, err
	}
	var f tracelog.Folder
	for _, rec := range recs {
		if err := f.Add(rec); err != nil {
			return 0, err
		}
	}
	if _, err := f.Finish(); err != nil {
		return 0, err
	}
	for i, rec := range recs {
		if rec.Seq == 0 {
			rec.Seq = uint64(i + 1)
		}
		if err := store.Append(ctx, sessionID, rec); err != nil {
			return i, fmt.Errorf("tracestore: import record %d: %w", rec.Seq, err)
		}
	}
	return len(recs), nil
}

// Export 校验哈希链后将会话写回 NDJSON
func Export(ctx context.Context, store Store, sessionID string, w io.Writer) (int, error) {
	entries, err := store.ListRecords(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, pkgerrors.Mark(fmt.Errorf("tracestore: session %q: %w", sessionID, ErrSessionNotFound), pkgerrors.ErrNotFound)
	}
	if err := VerifyChain(entries); err != nil {
		return 0, fmt.Errorf("tracestore: session %q: %w", sessionID, err)
	}
	sink := tracelog.NewWriterSink(nopCloser{w}, tracelog.WithFlushEachRecord(false))
	for _, e := range entries {
		if err := sink.Write(e.Record); err != nil {
			return 0, err
		}
	}
	return len(entries), sink.Close()
}

// nopCloser 防止 WriterSink.Close 关闭调用方的 writer
type nopCloser struct{ io.Writer }
