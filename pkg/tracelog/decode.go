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
	"encoding/json"
	"errors"
	"io"
	"os"
)

// Quantum pairs an action with the state it produced.
type Quantum struct {
	Action json.RawMessage `json:"action"`
	Result json.RawMessage `json:"result"`
}

// Event is one step of a decoded trace: exactly one of Quantum or Dependency is set.
type Event struct {
	Quantum    *Quantum        `json:"quantum,omitempty"`
	Dependency json.RawMessage `json:"dependency,omitempty"`
}

// IsQuantum reports whether e is a Quantum event.
func (e Event) IsQuantum() bool { return e.Quantum != nil }

// Log is a fully decoded trace: the initial state and everything after it, in
// submission order.
type Log struct {
	Start  json.RawMessage `json:"start"`
	Events []Event         `json:"events"`
}

// Quanta returns only the Quantum events, in order.
func (l *Log) Quanta() []Quantum {
	var out []Quantum
	for _, e := range l.Events {
		if e.Quantum != nil {
			out = append(out, *e.Quantum)
		}
	}
	return out
}

// Folder folds records into a Log one at a time.
//
// The first record must be a state. After that an action opens a quantum and
// the next state closes it; a dependency is emitted immediately, even while an
// action is pending, which is how a value consumed mid-transition ends up ahead
// of the quantum that consumed it.
type Folder struct {
	index     int
	started   bool
	pending   *Record
	pendingAt int // index of the pending action record
	log       Log
}

// Add folds one record.
func (f *Folder) Add(rec Record) error {
	idx := f.index
	f.index++
	if !f.started {
		if rec.Kind != KindState {
			return malformed(idx, "log must begin with a state record, got "+string(rec.Kind), nil)
		}
		f.started = true
		f.log.Start = rec.Payload
		return nil
	}
	switch rec.Kind {
	case KindAction:
		if f.pending != nil {
			return malformed(idx, "action follows an action with no state in between", nil)
		}
		f.pending = &rec
		f.pendingAt = idx
	case KindState:
		if f.pending == nil {
			return malformed(idx, "state record without a preceding action", nil)
		}
		f.log.Events = append(f.log.Events, Event{Quantum: &Quantum{
			Action: f.pending.Payload,
			Result: rec.Payload,
		}})
		f.pending = nil
	case KindDependency:
		f.log.Events = append(f.log.Events, Event{Dependency: rec.Payload})
	default:
		return malformed(idx, "unknown record kind "+string(rec.Kind), nil)
	}
	return nil
}

// Finish validates the end of the stream and returns the decoded log.
func (f *Folder) Finish() (*Log, error) {
	if !f.started {
		return nil, malformed(0, "empty log", nil)
	}
	if f.pending != nil {
		return nil, malformed(f.pendingAt, "dangling action with no resulting state (truncated recording?)", nil)
	}
	out := f.log
	return &out, nil
}

// Decode reads a whole log. Any error aborts the decode; there is no partial result.
func Decode(r io.Reader, opts ...ReaderOption) (*Log, error) {
	rd := NewReader(r, opts...)
	var f Folder
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := f.Add(rec); err != nil {
			return nil, err
		}
	}
	return f.Finish()
}

// DecodeFile opens path and decodes it.
func DecodeFile(path string, opts ...ReaderOption) (*Log, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	defer file.Close()
	return Decode(file, opts...)
}
