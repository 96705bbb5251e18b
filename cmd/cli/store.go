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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/JackYoustra/TCATestRecording/internal/tracestore"
	pkgerrors "github.com/JackYoustra/TCATestRecording/pkg/errors"
)

func (e *env) withStore(fn func(ctx context.Context, s tracestore.Store) int) int {
	ctx := context.Background()
	store, err := tracestore.Open(ctx, e.cfg.Store)
	if err != nil {
		fmt.Fprintf(e.stderr, "打开归档存储失败: %v\n", err)
		return 1
	}
	defer store.Close()
	if e.cfg.Store.Type == "" || e.cfg.Store.Type == "memory" {
		e.logger.Warn("store.type=memory: archive is discarded when the command exits")
	}
	return fn(ctx, store)
}

func (e *env) pushTrace(ctx context.Context, store tracestore.Store, path, sessionID string) int {
	path = e.resolve(path)
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(e.stderr, "打开 trace 失败: %v\n", err)
		return 1
	}
	defer f.Close()
	n, err := tracestore.Import(ctx, store, sessionID, f, e.readerOptions()...)
	if err != nil {
		fmt.Fprintf(e.stderr, "导入失败（已写入 %d 条）: %v\n", n, err)
		return 1
	}
	e.logger.Info("trace pushed", "path", path, "session", sessionID, "records", n)
	fmt.Fprintf(e.stdout, "pushed %d records to session %s\n", n, sessionID)
	return 0
}

func (e *env) pullTrace(ctx context.Context, store tracestore.Store, sessionID, out string) int {
	out = e.resolve(out)
	f, err := os.Create(out)
	if err != nil {
		fmt.Fprintf(e.stderr, "创建输出文件失败: %v\n", err)
		return 1
	}
	n, err := tracestore.Export(ctx, store, sessionID, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(out)
		if errors.Is(err, pkgerrors.ErrNotFound) {
			fmt.Fprintf(e.stderr, "会话不存在: %s\n", sessionID)
		} else {
			fmt.Fprintf(e.stderr, "导出失败: %v\n", err)
		}
		return 1
	}
	fmt.Fprintf(e.stdout, "pulled %d records from session %s into %s\n", n, sessionID, out)
	return 0
}

func (e *env) listSessions(ctx context.Context, store tracestore.Store) int {
	sessions, err := store.ListSessions(ctx)
	if err != nil {
		fmt.Fprintf(e.stderr, "列出会话失败: %v\n", err)
		return 1
	}
	if len(sessions) == 0 {
		fmt.Fprintln(e.stdout, "no sessions")
		return 0
	}
	for _, s := range sessions {
		fmt.Fprintf(e.stdout, "%s\t%d\t%s\n", s.ID, s.Records, s.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	return 0
}
