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

package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/JackYoustra/TCATestRecording/pkg/effects"
	"github.com/JackYoustra/TCATestRecording/pkg/metrics"
	"github.com/JackYoustra/TCATestRecording/pkg/recording"
	"github.com/JackYoustra/TCATestRecording/pkg/tracing"
)

const (
	resultMatch    = "match"
	resultMismatch = "mismatch"
	resultError    = "error"
)

type options[S any] struct {
	registry   *effects.Registry
	transforms []effects.Transform
	equal      func(expected, actual S) bool
	logger     *slog.Logger
}

// Option configures Replay.
type Option[S any] func(*options[S])

// WithRegistry sets the dependency kinds that are disabled and substituted.
func WithRegistry[S any](reg *effects.Registry) Option[S] {
	return func(o *options[S]) { o.registry = reg }
}

// WithTransforms appends environment transforms, applied after every
// registered kind has been made unavailable.
func WithTransforms[S any](ts ...effects.Transform) Option[S] {
	return func(o *options[S]) { o.transforms = append(o.transforms, ts...) }
}

// WithEqual replaces the default state comparison, which compares JSON encodings.
func WithEqual[S any](eq func(expected, actual S) bool) Option[S] {
	return func(o *options[S]) { o.equal = eq }
}

// WithLogger sets the logger for divergence reports.
func WithLogger[S any](l *slog.Logger) Option[S] {
	return func(o *options[S]) { o.logger = l }
}

func jsonEqual[S any](expected, actual S) bool {
	a, errA := json.Marshal(expected)
	b, errB := json.Marshal(actual)
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

func rawJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(err.Error())
	}
	return b
}

// Replay runs fn over the log. Each dependency event installs its recorded
// value as a one-shot substitute; values of one kind recorded ahead of the same
// quantum are produced in recorded order. A substitute left unconsumed is
// replaced by the next value of its kind recorded after the quantum. Each
// quantum runs fn from the current state and compares the result with the
// recording.
//
// All divergences are collected. After a divergence or a transition error the
// driver continues from the recorded state, so one regression is reported once
// rather than cascading. The returned error joins every failure in order; it is
// nil when the whole log replays identically, including a log with no events.
func (l *Log[S, A]) Replay(ctx context.Context, fn recording.Transition[S, A], opts ...Option[S]) error {
	o := options[S]{equal: jsonEqual[S]}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = effects.DefaultRegistry()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	ctx, span := tracing.StartReplaySpan(effects.WithReplay(ctx, true), len(l.Events))
	defer span.End()
	began := time.Now()
	defer func() { metrics.ReplayDuration.Observe(time.Since(began).Seconds()) }()

	deps := effects.NewValues()
	o.registry.Disable(deps)
	if err := effects.Apply(deps, o.transforms...); err != nil {
		return err
	}
	ctx = effects.WithValues(ctx, deps)

	var failures []error
	state := l.Start
	quantum := 0
	// 当前 quantum 之前已安装的 kind；同一 kind 再次出现时排队，而不是覆盖
	pending := make(map[effects.Kind]bool)
	for i, ev := range l.Events {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}
		if dep := ev.Dependency; dep != nil {
			var err error
			if pending[dep.Kind] {
				err = o.registry.Enqueue(deps, *dep)
			} else {
				err = dep.Apply(deps, o.registry)
			}
			if err != nil {
				failures = append(failures, &TransitionError{Index: i, Quantum: quantum, Err: err})
				continue
			}
			pending[dep.Kind] = true
			continue
		}
		clear(pending)

		q := ev.Quantum
		actual, err := fn(ctx, deps, state, q.Action)
		switch {
		case err != nil:
			failures = append(failures, &TransitionError{Index: i, Quantum: quantum, Err: err})
			metrics.ReplayQuanta.WithLabelValues(resultError).Inc()
			tracing.QuantumEvent(span, quantum, resultError)
			o.logger.Warn("replay transition failed", "quantum", quantum, "event", i, "error", err)
		case !o.equal(q.Result, actual):
			failures = append(failures, &AssertionFailure{
				Index:    i,
				Quantum:  quantum,
				Action:   rawJSON(q.Action),
				Expected: rawJSON(q.Result),
				Actual:   rawJSON(actual),
			})
			metrics.ReplayQuanta.WithLabelValues(resultMismatch).Inc()
			tracing.QuantumEvent(span, quantum, resultMismatch)
			o.logger.Warn("replay diverged", "quantum", quantum, "event", i)
		default:
			metrics.ReplayQuanta.WithLabelValues(resultMatch).Inc()
			tracing.QuantumEvent(span, quantum, resultMatch)
		}
		state = q.Result
		quantum++
	}

	err := errors.Join(failures...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "replay diverged")
	}
	return err
}
