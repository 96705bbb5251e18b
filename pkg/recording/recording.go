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

// Package recording captures a state machine's behavior as a trace log while it
// runs. A Session owns one ordered queue; Wrap decorates a transition so every
// dispatch appends its action, the dependency values it consumed and the
// resulting state.
package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JackYoustra/TCATestRecording/pkg/config"
	"github.com/JackYoustra/TCATestRecording/pkg/effects"
	"github.com/JackYoustra/TCATestRecording/pkg/tracelog"
	"github.com/JackYoustra/TCATestRecording/pkg/tracing"
)

// ErrSessionFailed is returned by dispatches after an earlier dispatch failed,
// and by Finish when the session did not record cleanly.
var ErrSessionFailed = errors.New("recording: session failed")

// Transition computes the next state of a state machine. deps is the
// dependency environment; every nondeterministic input must come from it.
type Transition[S, A any] func(ctx context.Context, deps *effects.Values, state S, action A) (S, error)

type options struct {
	registry   *effects.Registry
	transforms []effects.Transform
	logger     *slog.Logger
	sinkOpts   []tracelog.SinkOption
}

// Option configures a Session.
type Option func(*options)

// WithRegistry sets the dependency kinds that are intercepted. Defaults to
// effects.DefaultRegistry().
func WithRegistry(reg *effects.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithTransforms appends environment transforms, applied in order to a clone
// of the caller's environment before interception on every dispatch.
func WithTransforms(ts ...effects.Transform) Option {
	return func(o *options) { o.transforms = append(o.transforms, ts...) }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSinkOptions configures the file sink opened by Start.
func WithSinkOptions(opts ...tracelog.SinkOption) Option {
	return func(o *options) { o.sinkOpts = append(o.sinkOpts, opts...) }
}

// FromConfig maps the recording section of the config file onto sink options.
func FromConfig(cfg config.RecordingConfig) Option {
	return WithSinkOptions(
		tracelog.WithBufferSize(cfg.BufferSize),
		tracelog.WithFlushEachRecord(cfg.FlushEachRecord),
		tracelog.WithSyncOnClose(cfg.SyncOnClose),
	)
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = effects.DefaultRegistry()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Session is one recording in progress.
type Session struct {
	destination string
	opts        options
	queue       *tracelog.Queue
	span        trace.Span

	// mu keeps the records of one dispatch contiguous in the log.
	mu         sync.Mutex
	started    bool
	dispatches int

	failMu sync.Mutex
	cause  error

	finishOnce sync.Once
}

// Start records to the file at path, truncating it if it exists.
func Start(path string, opts ...Option) (*Session, error) {
	o := buildOptions(opts)
	sink, err := tracelog.OpenFile(path, o.sinkOpts...)
	if err != nil {
		return nil, err
	}
	return newSession(path, sink, o), nil
}

// StartWithSink records to sink. The session closes sink on Finish.
func StartWithSink(sink tracelog.Sink, opts ...Option) *Session {
	return newSession(fmt.Sprintf("%T", sink), sink, buildOptions(opts))
}

func newSession(destination string, sink tracelog.Sink, o options) *Session {
	_, span := tracing.StartSessionSpan(context.Background(), destination)
	s := &Session{
		destination: destination,
		opts:        o,
		queue:       tracelog.NewQueue(sink, tracelog.WithLogger(o.logger)),
		span:        span,
	}
	o.logger.Info("recording started", "destination", destination)
	return s
}

// Destination describes where the session writes.
func (s *Session) Destination() string { return s.destination }

// Dispatches returns how many dispatches have gone through the session.
func (s *Session) Dispatches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatches
}

// Err returns the failure that stopped the session, if any.
func (s *Session) Err() error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if s.cause == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrSessionFailed, s.cause)
}

// Finish stops the session and waits until every record is on disk. It reports
// the failure that stopped the session, or the sink's first error.
func (s *Session) Finish(ctx context.Context) error {
	qerr := s.queue.FinishAndJoin(ctx)
	err := errors.Join(s.Err(), qerr)
	if errors.Is(qerr, context.Canceled) || errors.Is(qerr, context.DeadlineExceeded) {
		return err
	}
	s.finishOnce.Do(func() {
		if err != nil {
			s.span.RecordError(err)
			s.span.SetStatus(codes.Error, err.Error())
			s.opts.logger.Error("recording finished with errors", "destination", s.destination, "error", err)
		} else {
			s.opts.logger.Info("recording finished", "destination", s.destination, "dispatches", s.Dispatches())
		}
		s.span.End()
	})
	return err
}

func (s *Session) fail(err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if s.cause == nil {
		s.cause = err
	}
}

// emit submits one record. Any failure stops the session.
func (s *Session) emit(kind tracelog.Kind, v any) error {
	rec, err := tracelog.NewRecord(kind, v)
	if err == nil {
		err = s.queue.Submit(rec)
	}
	if err != nil {
		err = fmt.Errorf("recording: emit %s: %w", kind, err)
		s.fail(err)
		return err
	}
	return nil
}

func (s *Session) submitSetting(setting effects.Setting) error {
	return s.emit(tracelog.KindDependency, setting)
}

// Wrap decorates fn so that every dispatch is recorded to s. A nil session
// returns fn unchanged.
//
// The first dispatch also records the state it was given as the starting
// state. A transition error stops the session: the dispatch returns the
// error, nothing more is recorded and later dispatches fail with
// ErrSessionFailed.
func Wrap[S, A any](s *Session, fn Transition[S, A]) Transition[S, A] {
	if s == nil {
		return fn
	}
	return func(ctx context.Context, deps *effects.Values, state S, action A) (S, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		var zero S
		if err := s.Err(); err != nil {
			return zero, err
		}
		s.dispatches++

		if !trace.SpanFromContext(ctx).SpanContext().IsValid() {
			ctx = trace.ContextWithSpan(ctx, s.span)
		}
		ctx, span := tracing.StartDispatchSpan(ctx, s.dispatches)
		defer span.End()

		if !s.started {
			if err := s.emit(tracelog.KindState, state); err != nil {
				span.RecordError(err)
				return zero, err
			}
			s.started = true
		}
		if err := s.emit(tracelog.KindAction, action); err != nil {
			span.RecordError(err)
			return zero, err
		}

		env := deps.Clone()
		ts := make([]effects.Transform, 0, len(s.opts.transforms)+1)
		ts = append(ts, s.opts.transforms...)
		ts = append(ts, effects.InterceptWith(s.opts.registry, s.submitSetting))
		if err := effects.Apply(env, ts...); err != nil {
			err = fmt.Errorf("recording: prepare dependencies: %w", err)
			s.fail(err)
			span.RecordError(err)
			return zero, err
		}

		next, err := fn(ctx, env, state, action)
		if err != nil {
			s.fail(err)
			span.RecordError(err)
			s.opts.logger.Warn("transition failed, recording stopped", "dispatch", s.dispatches, "error", err)
			return next, err
		}
		// A submission error inside fn may have been swallowed by the transition.
		if err := s.Err(); err != nil {
			span.RecordError(err)
			return next, err
		}
		if err := s.emit(tracelog.KindState, next); err != nil {
			span.RecordError(err)
			return next, err
		}
		return next, nil
	}
}
