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

import "fmt"

type intercepted[V any] struct {
	kind   Kind
	inner  Source[V]
	submit Submitter
}

// Intercept wraps inner so every value it produces is submitted as a Setting
// before being handed to the caller. Errors from inner are returned as is and
// nothing is submitted for them.
func Intercept[V any](kind Kind, inner Source[V], submit Submitter) Source[V] {
	return &intercepted[V]{kind: kind, inner: inner, submit: submit}
}

func (s *intercepted[V]) Produce() (V, error) {
	v, err := s.inner.Produce()
	if err != nil {
		return v, err
	}
	setting, err := NewSetting(s.kind, v)
	if err != nil {
		var zero V
		return zero, err
	}
	if err := s.submit(setting); err != nil {
		var zero V
		return zero, fmt.Errorf("effects: submit %s value: %w", s.kind, err)
	}
	return v, nil
}
