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

// Package replaytest runs recorded traces as Go tests.
package replaytest

import (
	"context"
	"errors"
	"testing"

	"github.com/JackYoustra/TCATestRecording/pkg/recording"
	"github.com/JackYoustra/TCATestRecording/pkg/replay"
)

// Run replays the trace at path through fn and reports each divergence as a
// separate test error. A trace that cannot be loaded fails the test immediately.
func Run[S, A any](tb testing.TB, path string, fn recording.Transition[S, A], opts ...replay.Option[S]) {
	tb.Helper()
	l, err := replay.LoadFile[S, A](path)
	if err != nil {
		tb.Fatalf("load trace %s: %v", path, err)
		return
	}
	err = l.Replay(context.Background(), fn, opts...)
	if err == nil {
		return
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			tb.Errorf("%s: %v", path, e)
		}
		return
	}
	tb.Errorf("%s: %v", path, err)
}
