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
	"bufio"
	"encoding/json"
	"io"
	"os"
	"sync"
)

const defaultBufSize = 64 * 1024

// Sink owns a log destination. Only one goroutine may call Write; the Queue
// guarantees that by construction.
type Sink interface {
	// Write appends one serialized record followed by a newline.
	Write(rec Record) error
	// Close flushes and releases the destination. Safe to call more than once.
	Close() error
}

type sinkOptions struct {
	bufSize         int
	flushEachRecord bool
	syncOnClose     bool
}

// SinkOption configures a Sink.
type SinkOption func(*sinkOptions)

// WithBufferSize sets the write buffer size in bytes; <=0 keeps the default.
func WithBufferSize(n int) SinkOption {
	return func(o *sinkOptions) {
		if n > 0 {
			o.bufSize = n
		}
	}
}

// WithFlushEachRecord flushes the buffer after every record, so a concurrent
// reader always sees whole lines. Enabled by default.
func WithFlushEachRecord(on bool) SinkOption {
	return func(o *sinkOptions) { o.flushEachRecord = on }
}

// WithSyncOnClose fsyncs file destinations before closing them.
func WithSyncOnClose(on bool) SinkOption {
	return func(o *sinkOptions) { o.syncOnClose = on }
}

func buildSinkOptions(opts []SinkOption) sinkOptions {
	o := sinkOptions{bufSize: defaultBufSize, flushEachRecord: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WriterSink serializes records onto an io.Writer.
type WriterSink struct {
	path string
	dst  io.Writer
	buf  *bufio.Writer
	enc  *json.Encoder
	opts sinkOptions

	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// OpenFile creates (or truncates) path and returns a sink writing to it.
func OpenFile(path string, opts ...SinkOption) (*WriterSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	s := NewWriterSink(f, opts...)
	s.path = path
	return s, nil
}

// NewWriterSink returns a sink over w. If w is an io.Closer it is closed by Close.
func NewWriterSink(w io.Writer, opts ...SinkOption) *WriterSink {
	o := buildSinkOptions(opts)
	buf := bufio.NewWriterSize(w, o.bufSize)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &WriterSink{dst: w, buf: buf, enc: enc, opts: o}
}

// Write encodes rec as a single line. json.Encoder terminates each value with
// '\n' and never emits raw newlines inside compact JSON.
func (s *WriterSink) Write(rec Record) error {
	if s.closed {
		return &IOError{Op: "write", Path: s.path, Err: ErrSinkClosed}
	}
	if len(rec.Payload) == 0 {
		rec.Payload = json.RawMessage("null")
	}
	if err := s.enc.Encode(rec); err != nil {
		return &IOError{Op: "write", Path: s.path, Err: err}
	}
	if s.opts.flushEachRecord {
		if err := s.buf.Flush(); err != nil {
			return &IOError{Op: "flush", Path: s.path, Err: err}
		}
	}
	return nil
}

// Close flushes buffered records and releases the destination. Every call
// returns the result of the first one.
func (s *WriterSink) Close() error {
	s.closeOnce.Do(func() {
		s.closed = true
		if err := s.buf.Flush(); err != nil {
			s.closeErr = &IOError{Op: "flush", Path: s.path, Err: err}
		}
		if f, ok := s.dst.(*os.File); ok && s.opts.syncOnClose && s.closeErr == nil {
			if err := f.Sync(); err != nil {
				s.closeErr = &IOError{Op: "sync", Path: s.path, Err: err}
			}
		}
		if c, ok := s.dst.(io.Closer); ok {
			if err := c.Close(); err != nil && s.closeErr == nil {
				s.closeErr = &IOError{Op: "close", Path: s.path, Err: err}
			}
		}
	})
	return s.closeErr
}

var _ Sink = (*WriterSink)(nil)
