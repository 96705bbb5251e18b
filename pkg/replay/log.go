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

// Package replay drives a state machine through a recorded trace and reports
// every place where its behavior no longer matches the recording.
package replay

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/JackYoustra/TCATestRecording/pkg/effects"
	"github.com/JackYoustra/TCATestRecording/pkg/tracelog"
)

// Quantum is one recorded dispatch: the action and the state it produced.
type Quantum[S, A any] struct {
	Action A
	Result S
}

// Event is one replay step; exactly one field is set.
type Event[S, A any] struct {
	Quantum    *Quantum[S, A]
	Dependency *effects.Setting
}

// Log is a decoded trace with typed payloads.
type Log[S, A any] struct {
	Start  S
	Events []Event[S, A]
}

// Quanta returns the number of Quantum events.
func (l *Log[S, A]) Quanta() int {
	n := 0
	for _, e := range l.Events {
		if e.Quantum != nil {
			n++
		}
	}
	return n
}

// FromLog decodes the payloads of an untyped log into S and A.
func FromLog[S, A any](raw *tracelog.Log) (*Log[S, A], error) {
	out := &Log[S, A]{Events: make([]Event[S, A], 0, len(raw.Events))}
	if err := json.Unmarshal(raw.Start, &out.Start); err != nil {
		return nil, fmt.Errorf("%w: start state: %w", tracelog.ErrMalformedLog, err)
	}
	quantum := 0
	for i, e := range raw.Events {
		if e.Quantum == nil {
			var s effects.Setting
			if err := json.Unmarshal(e.Dependency, &s); err != nil {
				return nil, fmt.Errorf("%w: event %d: dependency: %w", tracelog.ErrMalformedLog, i, err)
			}
			out.Events = append(out.Events, Event[S, A]{Dependency: &s})
			continue
		}
		q := &Quantum[S, A]{}
		if err := json.Unmarshal(e.Quantum.Action, &q.Action); err != nil {
			return nil, fmt.Errorf("%w: quantum %d: action: %w", tracelog.ErrMalformedLog, quantum, err)
		}
		if err := json.Unmarshal(e.Quantum.Result, &q.Result); err != nil {
			return nil, fmt.Errorf("%w: quantum %d: result: %w", tracelog.ErrMalformedLog, quantum, err)
		}
		out.Events = append(out.Events, Event[S, A]{Quantum: q})
		quantum++
	}
	return out, nil
}

// Load decodes a trace from r.
func Load[S, A any](r io.Reader, opts ...tracelog.ReaderOption) (*Log[S, A], error) {
	raw, err := tracelog.Decode(r, opts...)
	if err != nil {
		return nil, err
	}
	return FromLog[S, A](raw)
}

// LoadFile decodes the trace at path.
func LoadFile[S, A any](path string, opts ...tracelog.ReaderOption) (*Log[S, A], error) {
	raw, err := tracelog.DecodeFile(path, opts...)
	if err != nil {
		return nil, err
	}
	return FromLog[S, A](raw)
}
