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

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JackYoustra/TCATestRecording/internal/api/http/middleware"
	"github.com/JackYoustra/TCATestRecording/internal/tracestore"
)

const sampleTrace = `{"seq":1,"kind":"state","payload":{"count":0}}
{"seq":2,"kind":"action","payload":{"type":"randomize"}}
{"seq":3,"kind":"dependency","payload":{"kind":"random","value":7}}
{"seq":4,"kind":"state","payload":{"count":7}}
`

func buildServer(t *testing.T, store tracestore.Store, setup func(r *Router)) *server.Hertz {
	t.Helper()
	r := NewRouter(NewHandler(store, nil), middleware.NewMiddleware(nil))
	if setup != nil {
		setup(r)
	}
	return r.Build(":0")
}

func perform(h *server.Hertz, method, url, body string, headers ...ut.Header) *ut.ResponseRecorder {
	return ut.PerformRequest(h.Engine, method, url, &ut.Body{Body: strings.NewReader(body), Len: len(body)}, headers...)
}

func decodeJSON(t *testing.T, w *ut.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Result().Body(), &out), string(w.Result().Body()))
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	h := buildServer(t, tracestore.NewMemoryStore(), nil)

	w := perform(h, "GET", "/api/health", "")
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Equal(t, "ok", decodeJSON(t, w)["status"])

	require.Equal(t, 200, perform(h, "GET", "/api/sessions", "").Result().StatusCode())
	w = perform(h, "GET", "/metrics", "")
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Contains(t, string(w.Result().Body()), "archive_requests_total")
}

func TestHealth_NoStore(t *testing.T) {
	h := buildServer(t, nil, nil)
	w := perform(h, "GET", "/api/health", "")
	assert.Equal(t, 503, w.Result().StatusCode())
}

func TestImportExportVerify(t *testing.T) {
	h := buildServer(t, tracestore.NewMemoryStore(), nil)

	w := perform(h, "POST", "/api/sessions/run-1", sampleTrace)
	require.Equal(t, 201, w.Result().StatusCode(), string(w.Result().Body()))
	assert.EqualValues(t, 4, decodeJSON(t, w)["records"])

	w = perform(h, "GET", "/api/sessions/run-1", "")
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Equal(t, sampleTrace, string(w.Result().Body()))
	assert.Equal(t, contentTypeNDJSON, string(w.Result().Header.ContentType()))

	w = perform(h, "GET", "/api/sessions/run-1/verify", "")
	require.Equal(t, 200, w.Result().StatusCode())
	body := decodeJSON(t, w)
	assert.Equal(t, true, body["valid"])
	assert.NotEmpty(t, body["head"])

	w = perform(h, "GET", "/api/sessions", "")
	require.Equal(t, 200, w.Result().StatusCode())
	body = decodeJSON(t, w)
	assert.EqualValues(t, 1, body["total"])
}

func TestImport_Errors(t *testing.T) {
	h := buildServer(t, tracestore.NewMemoryStore(), nil)

	w := perform(h, "POST", "/api/sessions/run-1", "")
	assert.Equal(t, 400, w.Result().StatusCode())

	w = perform(h, "POST", "/api/sessions/run-1", "not json\n")
	assert.Equal(t, 400, w.Result().StatusCode())

	twoActions := `{"seq":1,"kind":"state","payload":{"count":0}}
{"seq":2,"kind":"action","payload":{"type":"increment"}}
{"seq":3,"kind":"action","payload":{"type":"increment"}}
`
	w = perform(h, "POST", "/api/sessions/run-3", twoActions)
	assert.Equal(t, 400, w.Result().StatusCode())
	assert.Equal(t, 404, perform(h, "GET", "/api/sessions/run-3", "").Result().StatusCode())

	w = perform(h, "POST", "/api/sessions/run-2", sampleTrace)
	require.Equal(t, 201, w.Result().StatusCode())
	w = perform(h, "POST", "/api/sessions/run-2", sampleTrace)
	assert.Equal(t, 409, w.Result().StatusCode())

	w = perform(h, "POST", "/api/sessions/.hidden", sampleTrace)
	assert.Equal(t, 400, w.Result().StatusCode())
}

func TestExport_NotFound(t *testing.T) {
	h := buildServer(t, tracestore.NewMemoryStore(), nil)
	assert.Equal(t, 404, perform(h, "GET", "/api/sessions/nope", "").Result().StatusCode())
	assert.Equal(t, 404, perform(h, "GET", "/api/sessions/nope/verify", "").Result().StatusCode())
}

// tamperedStore 读出时篡改最后一条记录
type tamperedStore struct {
	tracestore.Store
}

func (s tamperedStore) ListRecords(ctx context.Context, id string) ([]tracestore.Entry, error) {
	entries, err := s.Store.ListRecords(ctx, id)
	if len(entries) > 0 {
		entries[len(entries)-1].Record.Payload = []byte(`{"count":8}`)
	}
	return entries, err
}

func TestBrokenChain(t *testing.T) {
	inner := tracestore.NewMemoryStore()
	_, err := tracestore.Import(context.Background(), inner, "run-1", strings.NewReader(sampleTrace))
	require.NoError(t, err)
	h := buildServer(t, tamperedStore{inner}, nil)

	assert.Equal(t, 409, perform(h, "GET", "/api/sessions/run-1", "").Result().StatusCode())

	w := perform(h, "GET", "/api/sessions/run-1/verify", "")
	require.Equal(t, 200, w.Result().StatusCode())
	body := decodeJSON(t, w)
	assert.Equal(t, false, body["valid"])
	assert.Contains(t, body["error"], "hash chain broken")
}

func TestRateLimit(t *testing.T) {
	h := buildServer(t, tracestore.NewMemoryStore(), func(r *Router) {
		r.SetRateLimit(0.001, 1)
	})
	assert.Equal(t, 201, perform(h, "POST", "/api/sessions/a", sampleTrace).Result().StatusCode())
	w := perform(h, "POST", "/api/sessions/b", sampleTrace)
	assert.Equal(t, 429, w.Result().StatusCode())
	// 只限制写入
	assert.Equal(t, 200, perform(h, "GET", "/api/sessions/a", "").Result().StatusCode())
}

type recordingAudit struct {
	entries []middleware.AuditLog
}

func (r *recordingAudit) LogAccess(_ context.Context, e middleware.AuditLog) error {
	r.entries = append(r.entries, e)
	return nil
}

func TestJWTAuth(t *testing.T) {
	auth, err := middleware.NewJWTAuth([]byte("secret"), time.Hour, time.Hour, []string{"k0", "k1"})
	require.NoError(t, err)
	audit := &recordingAudit{}
	h := buildServer(t, tracestore.NewMemoryStore(), func(r *Router) {
		r.SetJWT(auth)
		r.SetAudit(middleware.NewAuditMiddleware(audit))
	})

	assert.Equal(t, 401, perform(h, "GET", "/api/sessions", "").Result().StatusCode())
	assert.Equal(t, 401, perform(h, "POST", "/api/auth/login", `{"api_key":"wrong"}`).Result().StatusCode())
	// health 不需要认证
	assert.Equal(t, 200, perform(h, "GET", "/api/health", "").Result().StatusCode())

	w := perform(h, "POST", "/api/auth/login", `{"api_key":"k1"}`)
	require.Equal(t, 200, w.Result().StatusCode(), string(w.Result().Body()))
	token, _ := decodeJSON(t, w)["token"].(string)
	require.NotEmpty(t, token)
	bearer := ut.Header{Key: "Authorization", Value: "Bearer " + token}

	w = perform(h, "POST", "/api/sessions/run-1", sampleTrace, bearer)
	require.Equal(t, 201, w.Result().StatusCode(), string(w.Result().Body()))
	w = perform(h, "GET", "/api/sessions/run-1", "", bearer)
	require.Equal(t, 200, w.Result().StatusCode())
	assert.True(t, bytes.HasPrefix(w.Result().Body(), []byte(`{"seq":1`)))

	require.Len(t, audit.entries, 2)
	assert.Equal(t, "key-1", audit.entries[0].Subject)
	assert.Equal(t, "push_trace", audit.entries[0].Action)
	assert.Equal(t, "run-1", audit.entries[0].SessionID)
	assert.Equal(t, "pull_trace", audit.entries[1].Action)
}
