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

import "context"

type contextKey string

const (
	// replayingKey marks a context whose transitions are being replayed.
	replayingKey contextKey = "effects.replaying"

	valuesKey contextKey = "effects.values"
)

// WithReplay sets the replay mode flag in the context.
func WithReplay(ctx context.Context, replaying bool) context.Context {
	return context.WithValue(ctx, replayingKey, replaying)
}

// IsReplaying returns true if the context is in replay mode.
func IsReplaying(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	if v := ctx.Value(replayingKey); v != nil {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// WithValues attaches an environment to ctx, for code that only has the context.
func WithValues(ctx context.Context, vals *Values) context.Context {
	return context.WithValue(ctx, valuesKey, vals)
}

// ValuesFromContext returns the environment attached to ctx, or nil.
func ValuesFromContext(ctx context.Context) *Values {
	if ctx == nil {
		return nil
	}
	v, _ := ctx.Value(valuesKey).(*Values)
	return v
}
