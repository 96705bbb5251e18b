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
	"context"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JackYoustra/TCATestRecording/internal/tracestore"
	"github.com/JackYoustra/TCATestRecording/pkg/config"
	"github.com/JackYoustra/TCATestRecording/pkg/log"
)

const goodTrace = `{"seq":1,"kind":"state","payload":{"count":0}}
{"seq":2,"kind":"action","payload":{"type":"increment"}}
{"seq":3,"kind":"state","payload":{"count":1}}
{"seq":4,"kind":"action","payload":{"type":"randomize"}}
{"seq":5,"kind":"dependency","payload":{"kind":"random","value":7}}
{"seq":6,"kind":"state","payload":{"count":7}}
`

// 最后一个 action 没有对应的 state
const danglingTrace = `{"seq":1,"kind":"state","payload":{"count":0}}
{"seq":2,"kind":"action","payload":{"type":"increment"}}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	t.Setenv(configEnv, "")
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func newTestEnv() (*env, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return &env{cfg: config.Default(), logger: log.Discard(), stdout: &stdout, stderr: &stderr}, &stdout, &stderr
}

func TestRun_Basics(t *testing.T) {
	code, out, _ := runCLI(t)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Usage: tracereplay")

	code, out, _ = runCLI(t, "version")
	assert.Equal(t, 0, code)
	assert.Equal(t, version+"\n", out)

	code, out, _ = runCLI(t, "config")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "store.type=memory")
	assert.Contains(t, out, "recording.flush_each_record=true")

	code, _, errOut := runCLI(t, "bogus")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Usage: tracereplay")

	for _, cmd := range []string{"inspect", "verify", "metrics", "render", "push", "pull"} {
		code, _, errOut = runCLI(t, cmd)
		assert.Equal(t, 1, code, cmd)
		assert.Contains(t, errOut, "Usage: tracereplay "+cmd, cmd)
	}
}

func TestRun_BadConfigFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	t.Setenv(configEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, 1, run([]string{"version"}, &stdout, &stderr))
	assert.Empty(t, stdout.String())
}

func TestRun_ConfigFile(t *testing.T) {
	path := writeFile(t, "config.yaml", "store:\n  type: memory\nreplay:\n  max_record_size: 1024\n")
	t.Setenv(configEnv, path)
	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"config"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "replay.max_record_size=1024")
}

func TestVerify(t *testing.T) {
	code, out, _ := runCLI(t, "verify", writeFile(t, "good.ndjson", goodTrace))
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Verification PASSED")
	assert.Contains(t, out, "(2 quanta, 1 dependencies)")

	code, out, _ = runCLI(t, "verify", writeFile(t, "bad.ndjson", danglingTrace))
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "Verification FAILED")
	assert.Contains(t, out, "first bad record: 1")

	code, out, _ = runCLI(t, "verify", filepath.Join(t.TempDir(), "absent.ndjson"))
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "Verification FAILED")
}

func TestInspect(t *testing.T) {
	code, out, _ := runCLI(t, "inspect", writeFile(t, "good.ndjson", goodTrace))
	require.Equal(t, 0, code)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, `start {"count":0}`, lines[0])
	assert.Contains(t, lines[1], `quantum 0  action={"type":"increment"} result={"count":1}`)
	assert.Contains(t, lines[2], "dependency random=7")
	assert.Contains(t, lines[3], "quantum 1")
	assert.Equal(t, "summary: 2 quanta, 1 dependencies", lines[4])

	code, _, errOut := runCLI(t, "inspect", writeFile(t, "bad.ndjson", danglingTrace))
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "dangling action")
}

func TestMetrics(t *testing.T) {
	code, out, _ := runCLI(t, "metrics", writeFile(t, "good.ndjson", goodTrace))
	require.Equal(t, 0, code)
	assert.Contains(t, out, "tracelog_records_decoded_total")
	assert.Contains(t, out, `kind="dependency"`)
}

func TestRender(t *testing.T) {
	path := writeFile(t, "counter-run.ndjson", goodTrace)
	code, out, errOut := runCLI(t, "render", path, "counter")
	require.Equal(t, 0, code, errOut)

	assert.Contains(t, out, "// Code generated by tracereplay render. DO NOT EDIT.")
	assert.Contains(t, out, "package counter")
	assert.Contains(t, out, "func TestReplayCounterRun(t *testing.T) {")
	assert.Contains(t, out, "replaytest.Run(t, \""+path+"\", Reduce)")
	assert.Contains(t, out, `{"type":"randomize"} -> {"count":7}`)

	file, err := parser.ParseFile(token.NewFileSet(), "gen_test.go", out, parser.ParseComments)
	require.NoError(t, err)
	assert.Equal(t, "counter", file.Name.Name)

	code, out, _ = runCLI(t, "render", path, "counter", "TestCustom", "counter.Step")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "func TestCustom(t *testing.T) {")
	assert.Contains(t, out, ", counter.Step)")
}

func TestRender_RejectsInvalidIdentifiers(t *testing.T) {
	path := writeFile(t, "good.ndjson", goodTrace)
	code, _, errOut := runCLI(t, "render", path, "counter", "not valid")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "generated source does not parse")
}

func TestTestFuncName(t *testing.T) {
	cases := map[string]string{
		"counter.ndjson":          "TestReplayCounter",
		"/tmp/counter-run.ndjson": "TestReplayCounterRun",
		"a_b c.log":               "TestReplayABC",
		"2024-01-01":              "TestReplay20240101",
	}
	for in, want := range cases {
		assert.Equal(t, want, testFuncName(in), in)
	}
}

func TestPushPull(t *testing.T) {
	ctx := context.Background()
	store := tracestore.NewMemoryStore()
	e, stdout, stderr := newTestEnv()

	src := writeFile(t, "good.ndjson", goodTrace)
	require.Equal(t, 0, e.pushTrace(ctx, store, src, "run-1"), stderr.String())
	assert.Contains(t, stdout.String(), "pushed 6 records to session run-1")

	require.Equal(t, 1, e.pushTrace(ctx, store, src, "run-1"))
	assert.Contains(t, stderr.String(), "导入失败")

	stderr.Reset()
	require.Equal(t, 1, e.pushTrace(ctx, store, writeFile(t, "bad.ndjson", danglingTrace), "run-2"))
	assert.Contains(t, stderr.String(), "导入失败")
	entries, err := store.ListRecords(ctx, "run-2")
	require.NoError(t, err)
	assert.Empty(t, entries)

	out := filepath.Join(t.TempDir(), "pulled.ndjson")
	require.Equal(t, 0, e.pullTrace(ctx, store, "run-1", out), stderr.String())
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, goodTrace, string(got))

	stderr.Reset()
	missing := filepath.Join(t.TempDir(), "missing.ndjson")
	assert.Equal(t, 1, e.pullTrace(ctx, store, "nope", missing))
	assert.Contains(t, stderr.String(), "会话不存在")
	assert.NoFileExists(t, missing)

	stdout.Reset()
	require.Equal(t, 0, e.listSessions(ctx, store))
	assert.True(t, strings.HasPrefix(stdout.String(), "run-1\t6\t"))
}

func TestRun_Sessions(t *testing.T) {
	code, out, _ := runCLI(t, "sessions")
	assert.Equal(t, 0, code)
	assert.Equal(t, "no sessions\n", out)
}

func TestResolve(t *testing.T) {
	e, _, _ := newTestEnv()
	assert.Equal(t, "trace.ndjson", e.resolve("trace.ndjson"))

	e.cfg.Recording.Dir = "/var/traces"
	assert.Equal(t, filepath.Join("/var/traces", "trace.ndjson"), e.resolve("trace.ndjson"))
	assert.Equal(t, "/abs/trace.ndjson", e.resolve("/abs/trace.ndjson"))
}
