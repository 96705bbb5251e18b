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

package tracelog

import (
	"context"
	"log/slog"
	"sync"

	"github.com/JackYoustra/TCATestRecording/pkg/metrics"
)

type queueOptions struct {
	logger *slog.Logger
}

// QueueOption configures a Queue.
type QueueOption func(*queueOptions)

// WithLogger sets the logger used by the consumer goroutine.
func WithLogger(l *slog.Logger) QueueOption {
	return func(o *queueOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Queue is a multi-producer, single-consumer ordered channel in front of a Sink.
//
// Submit appends under a mutex, which fixes one total order over every producer;
// a single background goroutine drains that order into the sink one record at a
// time. Every producer of one recording session (the dispatch path and all
// dependency interceptors) must submit to the same Queue; that is what keeps a
// dependency value ahead of the state it helped produce.
type Queue struct {
	sink   Sink
	logger *slog.Logger

	mu      sync.Mutex
	pending []Record
	seq     uint64
	closed  bool
	err     error

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue starts the consumer goroutine. The queue owns sink from here on.
func NewQueue(sink Sink, opts ...QueueOption) *Queue {
	o := queueOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	q := &Queue{
		sink:   sink,
		logger: o.logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// Submit enqueues rec and returns without waiting for I/O. The record's Seq is
// overwritten with its position in the log. Once Submit returns nil the record
// is written before FinishAndJoin completes, unless the sink has failed.
func (q *Queue) Submit(rec Record) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if q.err != nil {
		err := q.err
		q.mu.Unlock()
		return err
	}
	q.seq++
	rec.Seq = q.seq
	q.pending = append(q.pending, rec)
	q.mu.Unlock()

	metrics.QueueDepth.Inc()
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Err returns the sticky sink error, if any.
func (q *Queue) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// FinishAndJoin stops accepting submissions and blocks until every queued
// record has been written and the sink closed. It returns the first write or
// close error. If ctx ends first it returns ctx.Err() and the drain carries on
// in the background; calling FinishAndJoin again joins it.
func (q *Queue) FinishAndJoin(ctx context.Context) error {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		select {
		case q.wake <- struct{}{}:
		default:
		}
	})
	select {
	case <-q.done:
		return q.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the consumer has drained the queue and closed the sink.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		closed := q.closed
		failed := q.err != nil
		total := q.seq
		q.mu.Unlock()

		for i, rec := range batch {
			metrics.QueueDepth.Dec()
			if failed {
				continue
			}
			if err := q.sink.Write(rec); err != nil {
				failed = true
				q.fail(err)
				q.logger.Error("tracelog: write failed, discarding remaining records",
					"seq", rec.Seq, "kind", rec.Kind, "dropped", len(batch)-i-1, "error", err)
				continue
			}
			metrics.RecordsWritten.WithLabelValues(string(rec.Kind)).Inc()
		}

		if len(batch) > 0 {
			continue
		}
		if closed {
			if err := q.sink.Close(); err != nil {
				q.fail(err)
				q.logger.Error("tracelog: close failed", "error", err)
			}
			q.logger.Debug("tracelog: queue drained", "records", total)
			return
		}
		<-q.wake
	}
}

func (q *Queue) fail(err error) {
	metrics.SinkErrors.Inc()
	q.mu.Lock()
	if q.err == nil {
		q.err = err
	}
	q.mu.Unlock()
}
