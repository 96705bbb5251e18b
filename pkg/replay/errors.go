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

package replay

import (
	"encoding/json"
	"fmt"
)

// AssertionFailure reports a quantum whose replayed state differs from the
// recorded one. Payloads are JSON for display.
type AssertionFailure struct {
	Index    int // position in Log.Events
	Quantum  int // position among quanta
	Action   json.RawMessage
	Expected json.RawMessage
	Actual   json.RawMessage
}

func (e *AssertionFailure) Error() string {
	return fmt.Sprintf("replay: quantum %d (event %d) diverged after action %s: expected %s, got %s",
		e.Quantum, e.Index, e.Action, e.Expected, e.Actual)
}

// TransitionError reports a transition that failed during replay, typically
// with effects.ErrExhaustedSubstitute when it consumed more dependency values
// than were recorded.
type TransitionError struct {
	Index   int
	Quantum int
	Err     error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("replay: quantum %d (event %d) failed: %v", e.Quantum, e.Index, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }
