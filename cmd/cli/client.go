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
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/JackYoustra/TCATestRecording/pkg/config"
)

// apiURLEnv 覆盖 remote.url
const apiURLEnv = "TRACEREPLAY_API_URL"

func apiBaseURL(cfg config.RemoteConfig) string {
	if u := os.Getenv(apiURLEnv); u != "" {
		return u
	}
	if cfg.URL != "" {
		return cfg.URL
	}
	return "http://localhost:8080"
}

// remoteClient 访问归档服务；配置了 api_key 时先登录换取 JWT
type remoteClient struct {
	r      *resty.Client
	apiKey string
	authed bool
}

func newRemoteClient(cfg config.RemoteConfig) *remoteClient {
	return &remoteClient{
		r: resty.New().
			SetBaseURL(apiBaseURL(cfg)).
			SetTimeout(config.ParseDuration(cfg.Timeout, 30*time.Second)),
		apiKey: cfg.APIKey,
	}
}

func (c *remoteClient) login() error {
	if c.apiKey == "" || c.authed {
		return nil
	}
	var out struct {
		Token string `json:"token"`
	}
	resp, err := c.r.R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"api_key": c.apiKey}).
		SetResult(&out).
		Post("/api/auth/login")
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK || out.Token == "" {
		return fmt.Errorf("POST /api/auth/login: %s", resp.String())
	}
	c.r.SetAuthToken(out.Token)
	c.authed = true
	return nil
}

func (c *remoteClient) push(sessionID string, trace []byte) (int, error) {
	if err := c.login(); err != nil {
		return 0, err
	}
	var out struct {
		Records int `json:"records"`
	}
	resp, err := c.r.R().
		SetHeader("Content-Type", "application/x-ndjson").
		SetBody(trace).
		SetResult(&out).
		Post("/api/sessions/" + sessionID)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode() != http.StatusCreated {
		return 0, fmt.Errorf("POST /api/sessions/%s: %d %s", sessionID, resp.StatusCode(), resp.String())
	}
	return out.Records, nil
}

func (c *remoteClient) pull(sessionID string) ([]byte, error) {
	if err := c.login(); err != nil {
		return nil, err
	}
	resp, err := c.r.R().Get("/api/sessions/" + sessionID)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/sessions/%s: %d %s", sessionID, resp.StatusCode(), resp.String())
	}
	return resp.Body(), nil
}

type remoteSession struct {
	ID        string `json:"id"`
	Records   int    `json:"records"`
	UpdatedAt string `json:"updated_at"`
}

func (c *remoteClient) sessions() ([]remoteSession, error) {
	if err := c.login(); err != nil {
		return nil, err
	}
	var out struct {
		Sessions []remoteSession `json:"sessions"`
	}
	resp, err := c.r.R().SetResult(&out).Get("/api/sessions")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/sessions: %d %s", resp.StatusCode(), resp.String())
	}
	return out.Sessions, nil
}

type remoteVerification struct {
	Records int    `json:"records"`
	Valid   bool   `json:"valid"`
	Head    string `json:"head"`
	Error   string `json:"error"`
}

func (c *remoteClient) verify(sessionID string) (*remoteVerification, error) {
	if err := c.login(); err != nil {
		return nil, err
	}
	var out remoteVerification
	resp, err := c.r.R().SetResult(&out).Get("/api/sessions/" + sessionID + "/verify")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/sessions/%s/verify: %d %s", sessionID, resp.StatusCode(), resp.String())
	}
	return &out, nil
}

func (e *env) runRemote(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(e.stderr, "Usage: tracereplay remote <push|pull|sessions|verify> [args]")
		return 1
	}
	c := newRemoteClient(e.cfg.Remote)
	sub, rest := args[0], args[1:]
	switch sub {
	case "push":
		if len(rest) < 2 {
			fmt.Fprintln(e.stderr, "Usage: tracereplay remote push <log> <session_id>")
			return 1
		}
		path := e.resolve(rest[0])
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(e.stderr, "读取 trace 失败: %v\n", err)
			return 1
		}
		n, err := c.push(rest[1], data)
		if err != nil {
			fmt.Fprintf(e.stderr, "推送失败: %v\n", err)
			return 1
		}
		fmt.Fprintf(e.stdout, "pushed %d records to session %s\n", n, rest[1])
	case "pull":
		if len(rest) < 2 {
			fmt.Fprintln(e.stderr, "Usage: tracereplay remote pull <session_id> <out>")
			return 1
		}
		data, err := c.pull(rest[0])
		if err != nil {
			fmt.Fprintf(e.stderr, "拉取失败: %v\n", err)
			return 1
		}
		out := e.resolve(rest[1])
		if err := os.WriteFile(out, data, 0o644); err != nil {
			fmt.Fprintf(e.stderr, "写入输出文件失败: %v\n", err)
			return 1
		}
		fmt.Fprintf(e.stdout, "pulled session %s into %s\n", rest[0], out)
	case "sessions":
		sessions, err := c.sessions()
		if err != nil {
			fmt.Fprintf(e.stderr, "列出会话失败: %v\n", err)
			return 1
		}
		if len(sessions) == 0 {
			fmt.Fprintln(e.stdout, "no sessions")
		}
		for _, s := range sessions {
			fmt.Fprintf(e.stdout, "%s\t%d\t%s\n", s.ID, s.Records, s.UpdatedAt)
		}
	case "verify":
		if len(rest) < 1 {
			fmt.Fprintln(e.stderr, "Usage: tracereplay remote verify <session_id>")
			return 1
		}
		v, err := c.verify(rest[0])
		if err != nil {
			fmt.Fprintf(e.stderr, "校验失败: %v\n", err)
			return 1
		}
		if !v.Valid {
			fmt.Fprintf(e.stdout, "Verification FAILED: %s\n", v.Error)
			return 1
		}
		fmt.Fprintf(e.stdout, "Verification PASSED (%d records, head %s)\n", v.Records, v.Head)
	default:
		fmt.Fprintf(e.stderr, "未知的 remote 子命令: %s\n", sub)
		return 1
	}
	return 0
}
