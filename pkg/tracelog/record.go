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

// Package tracelog defines the durable trace log of a recorded state machine run:
// the Record format, the Sink that owns the destination stream, the ordered Queue
// that feeds it, and the Reader/Folder pair that decode a log back into a start
// state plus an ordered list of events.
//
// A log is newline-delimited JSON, one Record per line:
//
//	{"seq":1,"kind":"state","payload":{"count":0}}
//	{"seq":2,"kind":"action","payload":"increment"}
//	{"seq":3,"kind":"state","payload":{"count":1}}
//
// Every line decodes on its own, so a reader may start before the writer finishes
// and a crash mid-write only damages the final line.
package tracelog

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the three record variants.
type Kind string

const (
	KindState      Kind = "state"
	KindAction     Kind = "action"
	KindDependency Kind = "dependency"
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	return string(k)
}

// Valid reports whether k is one of the known record kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindState, KindAction, KindDependency:
		return true
	}
	return false
}

// Record is the unit of persistence and ordering. Payload is opaque to this
// package; it holds whatever JSON the state machine's types encode to.
type Record struct {
	// Seq is assigned by the Queue on submission, starting at 1. Zero means unset.
	Seq     uint64          `json:"seq,omitempty"`
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// NewRecord marshals v as the payload of a record of the given kind.
func NewRecord(kind Kind, v any) (Record, error) {
	if !kind.Valid() {
		return Record{}, fmt.Errorf("tracelog: unknown record kind %q", kind)
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return Record{}, fmt.Errorf("tracelog: encode %s payload: %w", kind, err)
	}
	return Record{Kind: kind, Payload: payload}, nil
}

// NewState builds a state snapshot record.
func NewState(state any) (Record, error) { return NewRecord(KindState, state) }

// NewAction builds an action record.
func NewAction(action any) (Record, error) { return NewRecord(KindAction, action) }

// NewDependency builds a record for a captured nondeterministic value.
func NewDependency(value any) (Record, error) { return NewRecord(KindDependency, value) }

// Decode unmarshals the payload into v.
func (r Record) Decode(v any) error {
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return fmt.Errorf("tracelog: decode %s payload: %w", r.Kind, err)
	}
	return nil
}
