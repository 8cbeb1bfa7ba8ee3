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
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/jwt"

	"agritrace/internal/domain"
	"agritrace/pkg/auth"
)

const (
	identityKey = "actor"
	claimRole   = "role"
)

// loginRequest 登录请求：身份校验由上游身份服务完成，这里只负责
// 把参与方身份换成会话令牌
type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// NewJWTAuth 创建 JWT 认证中间件：令牌携带参与方 ID 与角色
func NewJWTAuth(key []byte, timeout, maxRefresh time.Duration) (*jwt.HertzJWTMiddleware, error) {
	return jwt.New(&jwt.HertzJWTMiddleware{
		Realm:       "agritrace",
		Key:         key,
		Timeout:     timeout,
		MaxRefresh:  maxRefresh,
		IdentityKey: identityKey,
		PayloadFunc: func(data interface{}) jwt.MapClaims {
			if actor, ok := data.(auth.Actor); ok {
				return jwt.MapClaims{
					identityKey: actor.ID,
					claimRole:   string(actor.Role),
				}
			}
			return jwt.MapClaims{}
		},
		IdentityHandler: func(ctx context.Context, c *app.RequestContext) interface{} {
			claims := jwt.ExtractClaims(ctx, c)
			actor := auth.Actor{}
			if id, ok := claims[identityKey].(string); ok {
				actor.ID = id
			}
			if role, ok := claims[claimRole].(string); ok {
				actor.Role = auth.Role(role)
			}
			return actor
		},
		Authenticator: func(ctx context.Context, c *app.RequestContext) (interface{}, error) {
			var req loginRequest
			if err := c.BindJSON(&req); err != nil {
				return nil, jwt.ErrMissingLoginValues
			}
			if req.UserID == "" || !auth.ValidRole(auth.Role(req.Role)) {
				return nil, domain.ErrInvalidInput
			}
			return auth.Actor{ID: req.UserID, Role: auth.Role(req.Role)}, nil
		},
		Unauthorized: func(ctx context.Context, c *app.RequestContext, code int, message string) {
			c.JSON(code, map[string]interface{}{"error": message})
		},
	})
}

// ActorInjector 把 JWT 身份写入请求上下文，供服务层做持有权与角色判断
func ActorInjector() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if v, exists := c.Get(identityKey); exists {
			if actor, ok := v.(auth.Actor); ok {
				ctx = auth.WithActor(ctx, actor)
			}
		}
		c.Next(ctx)
	}
}
