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
	"math/rand"
	"sync"
)

// SystemRandom draws from math/rand's global generator.
func SystemRandom() Source[uint64] {
	return SourceFunc[uint64](func() (uint64, error) {
		return rand.Uint64(), nil
	})
}

// SequentialRandom yields start, start+1, start+2, ...; deterministic stand-in
// for a random generator in tests.
type SequentialRandom struct {
	mu   sync.Mutex
	next uint64
}

// NewSequentialRandom returns a generator whose first value is start.
func NewSequentialRandom(start uint64) *SequentialRandom {
	return &SequentialRandom{next: start}
}

// Produce returns the next value in sequence.
func (s *SequentialRandom) Produce() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.next
	s.next++
	return n, nil
}
