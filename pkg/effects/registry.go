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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Setting is one captured dependency value, the payload of a dependency record.
// Applying it installs a one-shot substitute for its kind.
type Setting struct {
	Kind  Kind            `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// NewSetting encodes v as the captured value for kind.
func NewSetting(kind Kind, v any) (Setting, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Setting{}, fmt.Errorf("effects: encode %s value: %w", kind, err)
	}
	return Setting{Kind: kind, Value: raw}, nil
}

// Apply installs the one-shot substitute described by s into vals.
func (s Setting) Apply(vals *Values, reg *Registry) error {
	return reg.Substitute(vals, s)
}

// Submitter receives every value an intercepted source produces.
type Submitter func(Setting) error

// Binding describes how one dependency kind is recorded and replayed.
type Binding interface {
	Kind() Kind
	// Intercept wraps the source installed in vals so each produced value is
	// also submitted. A kind that is not installed is left alone.
	Intercept(vals *Values, submit Submitter) error
	// Substitute installs a one-shot source yielding the recorded value.
	Substitute(vals *Values, value json.RawMessage) error
	// Enqueue queues the recorded value behind the substitutes already
	// installed for the kind; with none installed it behaves like Substitute.
	Enqueue(vals *Values, value json.RawMessage) error
	// Disable installs a source that fails until a value is substituted.
	Disable(vals *Values)
}

type binding[V any] struct {
	kind Kind
}

// Bind declares that kind holds a Source[V] whose values encode as JSON.
func Bind[V any](kind Kind) Binding {
	return binding[V]{kind: kind}
}

func (b binding[V]) Kind() Kind { return b.kind }

func (b binding[V]) Intercept(vals *Values, submit Submitter) error {
	src, err := Get[V](vals, b.kind)
	if err != nil {
		if errors.Is(err, ErrUnknownDependency) {
			return nil
		}
		return err
	}
	Set(vals, b.kind, Intercept(b.kind, src, submit))
	return nil
}

func (b binding[V]) decode(value json.RawMessage) (V, error) {
	var v V
	if err := json.Unmarshal(value, &v); err != nil {
		return v, fmt.Errorf("effects: decode recorded %s value: %w", b.kind, err)
	}
	return v, nil
}

func (b binding[V]) Substitute(vals *Values, value json.RawMessage) error {
	v, err := b.decode(value)
	if err != nil {
		return err
	}
	Set[V](vals, b.kind, NewSubstitutes(b.kind, v))
	return nil
}

func (b binding[V]) Enqueue(vals *Values, value json.RawMessage) error {
	v, err := b.decode(value)
	if err != nil {
		return err
	}
	if src, err := Get[V](vals, b.kind); err == nil {
		if q, ok := src.(*Substitutes[V]); ok {
			q.Push(v)
			return nil
		}
	}
	Set[V](vals, b.kind, NewSubstitutes(b.kind, v))
	return nil
}

func (b binding[V]) Disable(vals *Values) {
	Set(vals, b.kind, Unavailable[V](b.kind))
}

// Registry is the explicit list of interceptable dependency kinds.
type Registry struct {
	bindings map[Kind]Binding
	order    []Kind
}

// NewRegistry builds a registry; it panics on duplicate kinds.
func NewRegistry(bindings ...Binding) *Registry {
	r := &Registry{bindings: make(map[Kind]Binding, len(bindings))}
	for _, b := range bindings {
		if _, dup := r.bindings[b.Kind()]; dup {
			panic(fmt.Sprintf("effects: duplicate binding for %s", b.Kind()))
		}
		r.bindings[b.Kind()] = b
		r.order = append(r.order, b.Kind())
	}
	return r
}

// DefaultRegistry binds random (uint64), uuid (uuid.UUID) and time (time.Time).
func DefaultRegistry() *Registry {
	return NewRegistry(
		Bind[uint64](KindRandom),
		Bind[uuid.UUID](KindUUID),
		Bind[time.Time](KindTime),
	)
}

// Kinds lists registered kinds in registration order.
func (r *Registry) Kinds() []Kind {
	return append([]Kind(nil), r.order...)
}

// Lookup returns the binding for kind.
func (r *Registry) Lookup(kind Kind) (Binding, bool) {
	b, ok := r.bindings[kind]
	return b, ok
}

// Intercept wraps every registered, installed source in vals.
func (r *Registry) Intercept(vals *Values, submit Submitter) error {
	for _, k := range r.order {
		if err := r.bindings[k].Intercept(vals, submit); err != nil {
			return err
		}
	}
	return nil
}

// Substitute installs the one-shot substitute for s, overwriting any previous
// substitute of the same kind whether or not it was consumed.
func (r *Registry) Substitute(vals *Values, s Setting) error {
	b, ok := r.bindings[s.Kind]
	if !ok {
		return fmt.Errorf("%w: %q is not registered", ErrUnknownDependency, s.Kind)
	}
	return b.Substitute(vals, s.Value)
}

// Enqueue queues the value of s behind the pending substitutes of its kind,
// for a transition that reads the same kind more than once.
func (r *Registry) Enqueue(vals *Values, s Setting) error {
	b, ok := r.bindings[s.Kind]
	if !ok {
		return fmt.Errorf("%w: %q is not registered", ErrUnknownDependency, s.Kind)
	}
	return b.Enqueue(vals, s.Value)
}

// Disable makes every registered kind fail until a value is substituted.
func (r *Registry) Disable(vals *Values) {
	for _, k := range r.order {
		r.bindings[k].Disable(vals)
	}
}
