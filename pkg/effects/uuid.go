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
	"encoding/binary"
	"sync"

	"github.com/google/uuid"
)

// SystemUUID generates random (version 4) UUIDs.
func SystemUUID() Source[uuid.UUID] {
	return SourceFunc[uuid.UUID](uuid.NewRandom)
}

// IncrementingUUID yields 00000000-0000-0000-0000-000000000000,
// 00000000-0000-0000-0000-000000000001, ...
type IncrementingUUID struct {
	mu   sync.Mutex
	next uint64
}

// NewIncrementingUUID returns a deterministic UUID generator for tests.
func NewIncrementingUUID() *IncrementingUUID {
	return &IncrementingUUID{}
}

// Produce returns the next UUID in sequence.
func (g *IncrementingUUID) Produce() (uuid.UUID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var id uuid.UUID
	binary.BigEndian.PutUint64(id[8:], g.next)
	g.next++
	return id, nil
}
