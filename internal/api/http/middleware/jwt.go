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

package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/hertz-contrib/jwt"
)

// IdentityKey token claims 中标识调用方的字段
const IdentityKey = "sub"

type loginRequest struct {
	APIKey string `json:"api_key"`
}

// NewJWTAuth 创建 JWT 中间件：POST /api/auth/login 以 {"api_key": "..."} 换取 token。
// 调用方身份为 key 在 apiKeys 中的序号（key-0、key-1…），token 中不含 key 本身
func NewJWTAuth(key []byte, timeout, maxRefresh time.Duration, apiKeys []string) (*jwt.HertzJWTMiddleware, error) {
	if len(key) == 0 {
		return nil, errors.New("jwt key is empty")
	}
	if len(apiKeys) == 0 {
		return nil, errors.New("no api keys configured")
	}
	keys := append([]string(nil), apiKeys...)
	return jwt.New(&jwt.HertzJWTMiddleware{
		Realm:       "tracereplay",
		Key:         key,
		Timeout:     timeout,
		MaxRefresh:  maxRefresh,
		IdentityKey: IdentityKey,
		PayloadFunc: func(data interface{}) jwt.MapClaims {
			if sub, ok := data.(string); ok {
				return jwt.MapClaims{IdentityKey: sub}
			}
			return jwt.MapClaims{}
		},
		IdentityHandler: func(ctx context.Context, c *app.RequestContext) interface{} {
			claims := jwt.ExtractClaims(ctx, c)
			sub, _ := claims[IdentityKey].(string)
			return sub
		},
		Authenticator: func(ctx context.Context, c *app.RequestContext) (interface{}, error) {
			var req loginRequest
			if err := json.Unmarshal(c.Request.Body(), &req); err != nil || req.APIKey == "" {
				return nil, jwt.ErrMissingLoginValues
			}
			for i, k := range keys {
				if subtle.ConstantTimeCompare([]byte(k), []byte(req.APIKey)) == 1 {
					return fmt.Sprintf("key-%d", i), nil
				}
			}
			return nil, jwt.ErrFailedAuthentication
		},
		Authorizator: func(data interface{}, ctx context.Context, c *app.RequestContext) bool {
			sub, ok := data.(string)
			return ok && sub != ""
		},
		Unauthorized: func(ctx context.Context, c *app.RequestContext, code int, message string) {
			c.JSON(code, utils.H{"error": message})
		},
	})
}
