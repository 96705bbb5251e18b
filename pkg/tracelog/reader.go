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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/JackYoustra/TCATestRecording/pkg/metrics"
)

// DefaultMaxRecordSize bounds a single line; anything longer is treated as corruption.
const DefaultMaxRecordSize = 16 * 1024 * 1024

type readerOptions struct {
	maxRecordSize int
}

// ReaderOption configures a Reader.
type ReaderOption func(*readerOptions)

// WithMaxRecordSize sets the largest accepted line in bytes; <=0 keeps the default.
func WithMaxRecordSize(n int) ReaderOption {
	return func(o *readerOptions) {
		if n > 0 {
			o.maxRecordSize = n
		}
	}
}

// Reader streams records out of a log one line at a time. It can run while the
// log is still being written, as long as it stops at io.EOF and retries later.
type Reader struct {
	r       *bufio.Reader
	opts    readerOptions
	index   int
	lastSeq uint64
}

// NewReader wraps r.
func NewReader(r io.Reader, opts ...ReaderOption) *Reader {
	o := readerOptions{maxRecordSize: DefaultMaxRecordSize}
	for _, opt := range opts {
		opt(&o)
	}
	return &Reader{r: bufio.NewReader(r), opts: o}
}

// Index is the number of records returned so far.
func (r *Reader) Index() int { return r.index }

// Next returns the next record, or io.EOF after the last complete one. A final
// line with no terminating newline is reported as a truncated record rather
// than decoded, so a crashed recording never passes as complete.
func (r *Reader) Next() (Record, error) {
	for {
		line, err := r.readLine()
		if err != nil {
			return Record{}, err
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		rec, err := r.parse(line)
		if err != nil {
			return Record{}, err
		}
		r.index++
		metrics.RecordsDecoded.WithLabelValues(string(rec.Kind)).Inc()
		return rec, nil
	}
}

func (r *Reader) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.r.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > r.opts.maxRecordSize {
			return nil, malformed(r.index, fmt.Sprintf("record exceeds %d bytes", r.opts.maxRecordSize), nil)
		}
		switch {
		case err == nil:
			return line, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if len(bytes.TrimSpace(line)) == 0 {
				return nil, io.EOF
			}
			return nil, malformed(r.index, "truncated record at end of log", io.ErrUnexpectedEOF)
		default:
			return nil, &IOError{Op: "read", Err: err}
		}
	}
}

func (r *Reader) parse(line []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return Record{}, malformed(r.index, "undecodable record", err)
	}
	if !rec.Kind.Valid() {
		return Record{}, malformed(r.index, fmt.Sprintf("unknown record kind %q", rec.Kind), nil)
	}
	// seq 要么全部缺省，要么从 1 开始连续
	switch {
	case r.index == 0:
		if rec.Seq > 1 {
			return Record{}, malformed(r.index, fmt.Sprintf("log starts at seq %d, want 1", rec.Seq), nil)
		}
	case (rec.Seq == 0) != (r.lastSeq == 0):
		return Record{}, malformed(r.index, "log mixes records with and without seq", nil)
	case rec.Seq != 0 && rec.Seq != r.lastSeq+1:
		return Record{}, malformed(r.index, fmt.Sprintf("sequence gap: %d follows %d", rec.Seq, r.lastSeq), nil)
	}
	r.lastSeq = rec.Seq
	return rec, nil
}

// ReadAll returns every record in r, failing on the first malformed one.
func ReadAll(r io.Reader, opts ...ReaderOption) ([]Record, error) {
	rd := NewReader(r, opts...)
	var out []Record
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}
