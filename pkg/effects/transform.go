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

// Transform adjusts an environment before a recording or replay uses it.
type Transform func(*Values) error

// Override installs src under kind.
func Override[V any](kind Kind, src Source[V]) Transform {
	return func(vals *Values) error {
		Set(vals, kind, src)
		return nil
	}
}

// InterceptWith wraps every kind registered in reg so produced values reach submit.
func InterceptWith(reg *Registry, submit Submitter) Transform {
	return func(vals *Values) error {
		return reg.Intercept(vals, submit)
	}
}

// Apply runs ts against vals in order, stopping at the first error.
func Apply(vals *Values, ts ...Transform) error {
	for _, t := range ts {
		if t == nil {
			continue
		}
		if err := t(vals); err != nil {
			return err
		}
	}
	return nil
}
