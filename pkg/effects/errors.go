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
	"errors"
)

var (
	// ErrExhaustedSubstitute is returned when a replay substitute is asked for a
	// value it does not have: a one-shot that was already consumed, or a kind with
	// no recorded value at all. Either the replay is misaligned or the state
	// machine now consumes dependencies differently than when it was recorded.
	ErrExhaustedSubstitute = errors.New("effects: substitute exhausted")

	// ErrUnknownDependency is returned for a kind that is not installed or not registered.
	ErrUnknownDependency = errors.New("effects: unknown dependency")

	// ErrDependencyType is returned when a kind is installed with a different value type.
	ErrDependencyType = errors.New("effects: dependency type mismatch")
)
