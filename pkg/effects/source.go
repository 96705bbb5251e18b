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

package effects

import (
	"fmt"
	"sync"
)

// Source produces nondeterministic values of type V.
type Source[V any] interface {
	Produce() (V, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc[V any] func() (V, error)

// Produce calls f.
func (f SourceFunc[V]) Produce() (V, error) { return f() }

// Substitutes yields captured values in the order they were pushed, each
// exactly once, then fails with ErrExhaustedSubstitute.
type Substitutes[V any] struct {
	kind   Kind
	mu     sync.Mutex
	values []V
}

// NewSubstitutes returns a FIFO substitute holding vs.
func NewSubstitutes[V any](kind Kind, vs ...V) *Substitutes[V] {
	return &Substitutes[V]{kind: kind, values: append([]V(nil), vs...)}
}

// Push appends v behind the values not yet produced.
func (s *Substitutes[V]) Push(v V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, v)
}

// Produce pops the oldest value.
func (s *Substitutes[V]) Produce() (V, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		var zero V
		return zero, fmt.Errorf("%w: %s value already consumed", ErrExhaustedSubstitute, s.kind)
	}
	v := s.values[0]
	s.values = s.values[1:]
	return v, nil
}

// Remaining is the number of values not yet produced.
func (s *Substitutes[V]) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

// Unavailable is installed for every registered kind at the start of a replay;
// it fails until a recorded value is substituted in.
func Unavailable[V any](kind Kind) Source[V] {
	return SourceFunc[V](func() (V, error) {
		var zero V
		return zero, fmt.Errorf("%w: no recorded %s value", ErrExhaustedSubstitute, kind)
	})
}
