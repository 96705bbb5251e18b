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

package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JackYoustra/TCATestRecording/pkg/effects"
	"github.com/JackYoustra/TCATestRecording/pkg/metrics"
	"github.com/JackYoustra/TCATestRecording/pkg/tracelog"
)

type traceSummary struct {
	Quanta       int
	Dependencies int
}

func summarize(l *tracelog.Log) traceSummary {
	var s traceSummary
	for _, ev := range l.Events {
		if ev.IsQuantum() {
			s.Quanta++
		} else {
			s.Dependencies++
		}
	}
	return s
}

func (e *env) decode(path string) (*tracelog.Log, error) {
	return tracelog.DecodeFile(e.resolve(path), e.readerOptions()...)
}

func (e *env) runInspect(path string) int {
	l, err := e.decode(path)
	if err != nil {
		fmt.Fprintf(e.stderr, "解码失败: %v\n", err)
		return 1
	}
	fmt.Fprintf(e.stdout, "start %s\n", l.Start)
	quantum := 0
	for i, ev := range l.Events {
		if ev.IsQuantum() {
			fmt.Fprintf(e.stdout, "%4d  quantum %d  action=%s result=%s\n", i, quantum, ev.Quantum.Action, ev.Quantum.Result)
			quantum++
			continue
		}
		var s effects.Setting
		if err := json.Unmarshal(ev.Dependency, &s); err != nil {
			fmt.Fprintf(e.stdout, "%4d  dependency %s\n", i, ev.Dependency)
			continue
		}
		fmt.Fprintf(e.stdout, "%4d  dependency %s=%s\n", i, s.Kind, s.Value)
	}
	sum := summarize(l)
	fmt.Fprintf(e.stdout, "summary: %d quanta, %d dependencies\n", sum.Quanta, sum.Dependencies)
	return 0
}

func (e *env) runVerify(path string) int {
	l, err := e.decode(path)
	if err != nil {
		fmt.Fprintf(e.stdout, "Verification FAILED: %v\n", err)
		var mErr *tracelog.MalformedLogError
		if errors.As(err, &mErr) {
			fmt.Fprintf(e.stdout, "  first bad record: %d\n", mErr.Index)
		}
		return 1
	}
	sum := summarize(l)
	fmt.Fprintf(e.stdout, "Verification PASSED: %s (%d quanta, %d dependencies)\n", path, sum.Quanta, sum.Dependencies)
	return 0
}

func (e *env) runMetrics(path string) int {
	if _, err := e.decode(path); err != nil {
		e.logger.Warn("trace did not decode, metrics are partial", "path", path, "error", err)
	}
	if err := metrics.WritePrometheus(e.stdout); err != nil {
		fmt.Fprintf(e.stderr, "输出指标失败: %v\n", err)
		return 1
	}
	return 0
}
