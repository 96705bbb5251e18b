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
	"bytes"
	"fmt"
	"go/format"
	"io"
	"path/filepath"
	"strings"
	"text/template"
	"unicode"
)

var testTemplate = template.Must(template.New("test").Parse(`// Code generated by tracereplay render. DO NOT EDIT.

package {{.Package}}

import (
	"testing"

	"github.com/JackYoustra/TCATestRecording/pkg/replay/replaytest"
)

// {{.Func}} replays {{.Source}}: {{.Quanta}} quanta, {{.Dependencies}} dependency values.
//
// Starting state: {{.Start}}
{{- range .Actions}}
//   {{.}}
{{- end}}
func {{.Func}}(t *testing.T) {
	replaytest.Run(t, {{printf "%q" .Path}}, {{.Transition}})
}
`))

type renderData struct {
	Package      string
	Func         string
	Transition   string
	Path         string
	Source       string
	Start        string
	Actions      []string
	Quanta       int
	Dependencies int
}

// testFuncName 由文件名生成测试函数名，如 counter-run.ndjson -> TestReplayCounterRun
func testFuncName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var b strings.Builder
	b.WriteString("TestReplay")
	upper := true
	for _, r := range base {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (e *env) runRender(args []string) int {
	path := args[0]
	data := renderData{
		Package:    "main",
		Func:       testFuncName(path),
		Transition: "Reduce",
		Path:       path,
		Source:     filepath.Base(path),
	}
	if len(args) > 1 {
		data.Package = args[1]
	}
	if len(args) > 2 {
		data.Func = args[2]
	}
	if len(args) > 3 {
		data.Transition = args[3]
	}
	l, err := e.decode(path)
	if err != nil {
		fmt.Fprintf(e.stderr, "解码失败: %v\n", err)
		return 1
	}
	sum := summarize(l)
	data.Quanta, data.Dependencies = sum.Quanta, sum.Dependencies
	data.Start = string(l.Start)
	for _, q := range l.Quanta() {
		data.Actions = append(data.Actions, fmt.Sprintf("%s -> %s", q.Action, q.Result))
	}
	if err := renderTest(e.stdout, data); err != nil {
		fmt.Fprintf(e.stderr, "生成失败: %v\n", err)
		return 1
	}
	return 0
}

func renderTest(w io.Writer, data renderData) error {
	var buf bytes.Buffer
	if err := testTemplate.Execute(&buf, data); err != nil {
		return err
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return fmt.Errorf("generated source does not parse: %w", err)
	}
	_, err = w.Write(src)
	return err
}
