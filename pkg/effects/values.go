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
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Values is the dependency environment passed to every transition. Sources are
// looked up by Kind and may be swapped at any time; lookups and swaps are safe
// for concurrent use.
type Values struct {
	mu      sync.RWMutex
	sources map[Kind]any
}

// NewValues returns an empty environment.
func NewValues() *Values {
	return &Values{sources: make(map[Kind]any)}
}

// NewSystemValues returns an environment backed by the real random generator,
// UUID generator and wall clock.
func NewSystemValues() *Values {
	v := NewValues()
	Set(v, KindRandom, SystemRandom())
	Set(v, KindUUID, SystemUUID())
	Set(v, KindTime, SystemClock())
	return v
}

// Clone returns a shallow copy: the same sources under a new, independent map.
// A nil receiver clones to an empty environment.
func (v *Values) Clone() *Values {
	out := NewValues()
	if v == nil {
		return out
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	for k, src := range v.sources {
		out.sources[k] = src
	}
	return out
}

// Kinds lists the installed kinds in sorted order.
func (v *Values) Kinds() []Kind {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Kind, 0, len(v.sources))
	for k := range v.sources {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Set installs src under kind, replacing whatever was there.
func Set[V any](vals *Values, kind Kind, src Source[V]) {
	vals.mu.Lock()
	defer vals.mu.Unlock()
	vals.sources[kind] = src
}

// Get returns the source installed under kind.
func Get[V any](vals *Values, kind Kind) (Source[V], error) {
	if vals == nil {
		return nil, fmt.Errorf("%w: %s (no environment)", ErrUnknownDependency, kind)
	}
	vals.mu.RLock()
	raw, ok := vals.sources[kind]
	vals.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDependency, kind)
	}
	src, ok := raw.(Source[V])
	if !ok {
		var zero V
		return nil, fmt.Errorf("%w: %s holds %T, want Source[%T]", ErrDependencyType, kind, raw, zero)
	}
	return src, nil
}

// Produce draws one value from the source installed under kind.
func Produce[V any](vals *Values, kind Kind) (V, error) {
	src, err := Get[V](vals, kind)
	if err != nil {
		var zero V
		return zero, err
	}
	return src.Produce()
}

// Random draws a uint64 from the random source.
func (v *Values) Random() (uint64, error) {
	return Produce[uint64](v, KindRandom)
}

// Intn draws an int in [0, n) from the random source; n <= 0 yields 0
// without consuming a value.
func (v *Values) Intn(n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	r, err := v.Random()
	if err != nil {
		return 0, err
	}
	return int(r % uint64(n)), nil
}

// UUID draws an identifier from the UUID source.
func (v *Values) UUID() (uuid.UUID, error) {
	return Produce[uuid.UUID](v, KindUUID)
}

// Now reads the clock source.
func (v *Values) Now() (time.Time, error) {
	return Produce[time.Time](v, KindTime)
}
