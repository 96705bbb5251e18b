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

package recording_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JackYoustra/TCATestRecording/pkg/config"
	"github.com/JackYoustra/TCATestRecording/pkg/effects"
	"github.com/JackYoustra/TCATestRecording/pkg/log"
	"github.com/JackYoustra/TCATestRecording/pkg/recording"
	"github.com/JackYoustra/TCATestRecording/pkg/tracelog"
)

type counterState struct {
	Count int `json:"count"`
}

type counterAction struct {
	Type string `json:"type"`
	N    int    `json:"n,omitempty"`
}

var errExplode = errors.New("explode")

func counter(_ context.Context, deps *effects.Values, s counterState, a counterAction) (counterState, error) {
	switch a.Type {
	case "increment":
		s.Count++
	case "decrement":
		s.Count--
	case "add":
		s.Count += a.N
	case "randomize":
		n, err := deps.Intn(100)
		if err != nil {
			return s, err
		}
		s.Count = n
	case "explode":
		return s, errExplode
	}
	return s, nil
}

func startFile(t *testing.T, opts ...recording.Option) (*recording.Session, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.ndjson")
	opts = append([]recording.Option{recording.WithLogger(log.Discard())}, opts...)
	s, err := recording.Start(path, opts...)
	require.NoError(t, err)
	return s, path
}

func TestWrap_RecordsQuanta(t *testing.T) {
	ctx := context.Background()
	s, path := startFile(t)
	step := recording.Wrap(s, counter)

	deps := effects.NewSystemValues()
	state := counterState{}
	var err error
	for _, a := range []string{"increment", "increment", "decrement"} {
		state, err = step(ctx, deps, state, counterAction{Type: a})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, state.Count)
	require.NoError(t, s.Finish(ctx))
	assert.Equal(t, 3, s.Dispatches())

	decoded, err := tracelog.DecodeFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":0}`, string(decoded.Start))
	quanta := decoded.Quanta()
	require.Len(t, quanta, 3)
	assert.Len(t, decoded.Events, 3)
	assert.JSONEq(t, `{"type":"increment"}`, string(quanta[0].Action))
	assert.JSONEq(t, `{"count":1}`, string(quanta[0].Result))
	assert.JSONEq(t, `{"count":2}`, string(quanta[1].Result))
	assert.JSONEq(t, `{"type":"decrement"}`, string(quanta[2].Action))
	assert.JSONEq(t, `{"count":1}`, string(quanta[2].Result))
}

func TestWrap_RecordsDependencyBeforeQuantum(t *testing.T) {
	ctx := context.Background()
	s, path := startFile(t, recording.WithTransforms(
		effects.Override[uint64](effects.KindRandom, effects.NewSequentialRandom(0)),
	))
	step := recording.Wrap(s, counter)

	state, err := step(ctx, effects.NewSystemValues(), counterState{Count: 5}, counterAction{Type: "randomize"})
	require.NoError(t, err)
	assert.Equal(t, 0, state.Count)
	require.NoError(t, s.Finish(ctx))

	decoded, err := tracelog.DecodeFile(path)
	require.NoError(t, err)
	require.Len(t, decoded.Events, 2)

	require.False(t, decoded.Events[0].IsQuantum())
	var setting effects.Setting
	require.NoError(t, json.Unmarshal(decoded.Events[0].Dependency, &setting))
	assert.Equal(t, effects.KindRandom, setting.Kind)
	assert.JSONEq(t, `0`, string(setting.Value))

	require.True(t, decoded.Events[1].IsQuantum())
	assert.JSONEq(t, `{"type":"randomize"}`, string(decoded.Events[1].Quantum.Action))
	assert.JSONEq(t, `{"count":0}`, string(decoded.Events[1].Quantum.Result))
}

func TestWrap_NilSessionPassesThrough(t *testing.T) {
	step := recording.Wrap[counterState, counterAction](nil, counter)
	state, err := step(context.Background(), nil, counterState{Count: 1}, counterAction{Type: "increment"})
	require.NoError(t, err)
	assert.Equal(t, 2, state.Count)
}

func TestWrap_TransitionErrorStopsSession(t *testing.T) {
	ctx := context.Background()
	s, path := startFile(t)
	step := recording.Wrap(s, counter)
	deps := effects.NewSystemValues()

	state, err := step(ctx, deps, counterState{}, counterAction{Type: "increment"})
	require.NoError(t, err)

	_, err = step(ctx, deps, state, counterAction{Type: "explode"})
	assert.ErrorIs(t, err, errExplode)

	_, err = step(ctx, deps, state, counterAction{Type: "increment"})
	assert.ErrorIs(t, err, recording.ErrSessionFailed)
	assert.ErrorIs(t, err, errExplode)

	err = s.Finish(ctx)
	assert.ErrorIs(t, err, recording.ErrSessionFailed)
	assert.ErrorIs(t, err, errExplode)

	// The failing action is on disk without a resulting state.
	_, err = tracelog.DecodeFile(path)
	var mErr *tracelog.MalformedLogError
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, 3, mErr.Index)
}

func TestWrap_ConcurrentDispatchesStayContiguous(t *testing.T) {
	ctx := context.Background()
	s, path := startFile(t)
	step := recording.Wrap(s, counter)
	deps := effects.NewSystemValues()

	var wg sync.WaitGroup
	for i := 1; i <= 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := step(ctx, deps, counterState{Count: i}, counterAction{Type: "add", N: i})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	require.NoError(t, s.Finish(ctx))

	decoded, err := tracelog.DecodeFile(path)
	require.NoError(t, err)
	quanta := decoded.Quanta()
	require.Len(t, quanta, 32)
	for _, q := range quanta {
		var a counterAction
		var st counterState
		require.NoError(t, json.Unmarshal(q.Action, &a))
		require.NoError(t, json.Unmarshal(q.Result, &st))
		assert.Equal(t, 2*a.N, st.Count)
	}
}

type brokenSink struct{}

func (brokenSink) Write(tracelog.Record) error { return errors.New("disk full") }
func (brokenSink) Close() error                { return nil }

func TestSession_SinkFailureReportedOnFinish(t *testing.T) {
	ctx := context.Background()
	s := recording.StartWithSink(brokenSink{}, recording.WithLogger(log.Discard()))
	step := recording.Wrap(s, counter)

	_, _ = step(ctx, effects.NewSystemValues(), counterState{}, counterAction{Type: "increment"})
	err := s.Finish(ctx)
	assert.ErrorContains(t, err, "disk full")
}

func TestSession_FinishIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, path := startFile(t, recording.FromConfig(config.Default().Recording))
	require.NoError(t, s.Finish(ctx))
	require.NoError(t, s.Finish(ctx))
	assert.Equal(t, path, s.Destination())

	// No dispatch means no starting state either.
	_, err := tracelog.DecodeFile(path)
	assert.ErrorIs(t, err, tracelog.ErrMalformedLog)
}

func TestStart_BadPath(t *testing.T) {
	_, err := recording.Start(filepath.Join(t.TempDir(), "missing", "trace.ndjson"))
	var ioErr *tracelog.IOError
	assert.ErrorAs(t, err, &ioErr)
}
