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

package tracelog

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedLog matches every *MalformedLogError.
	ErrMalformedLog = errors.New("tracelog: malformed log")

	// ErrQueueClosed is returned by Submit after FinishAndJoin has been called.
	ErrQueueClosed = errors.New("tracelog: queue closed")

	// ErrSinkClosed is returned by Write after Close.
	ErrSinkClosed = errors.New("tracelog: sink closed")
)

// IOError reports a failure to open, write, flush, read or close the log
// destination. It is fatal to the operation that hit it.
type IOError struct {
	Op   string // open | write | flush | sync | close | read
	Path string // empty for non-file destinations
	Err  error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("tracelog: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("tracelog: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// MalformedLogError reports a structural violation found while decoding.
// Index is the 0-based position of the offending record (or line, for records
// that could not be parsed at all).
type MalformedLogError struct {
	Index  int
	Reason string
	Err    error
}

func (e *MalformedLogError) Error() string {
	msg := fmt.Sprintf("tracelog: malformed log at record %d: %s", e.Index, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedLogError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrMalformedLog) hold for every MalformedLogError.
func (e *MalformedLogError) Is(target error) bool { return target == ErrMalformedLog }

func malformed(index int, reason string, err error) error {
	return &MalformedLogError{Index: index, Reason: reason, Err: err}
}
