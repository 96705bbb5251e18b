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

// Package effects is the dependency environment of a state machine under test.
// Every nondeterministic input a transition consumes (random numbers, UUIDs, the
// clock) comes from a named Source held in Values, so a recording can capture
// each produced value and a replay can substitute it back exactly once.
package effects

// Kind names a dependency slot in Values.
type Kind string

const (
	KindRandom Kind = "random"
	KindUUID   Kind = "uuid"
	KindTime   Kind = "time"
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	return string(k)
}
