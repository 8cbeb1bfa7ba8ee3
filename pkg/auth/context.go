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

package auth

import (
	"context"
)

type contextKey string

const (
	actorIDKey contextKey = "auth.actor_id"
	roleKey    contextKey = "auth.role"
)

// Actor 请求方身份（由认证中间件注入，核心逻辑只信任不校验）
type Actor struct {
	ID   string
	Role Role
}

// WithActor 将请求方身份注入 context
func WithActor(ctx context.Context, actor Actor) context.Context {
	ctx = context.WithValue(ctx, actorIDKey, actor.ID)
	return context.WithValue(ctx, roleKey, actor.Role)
}

// ActorFromContext 从 context 获取请求方身份
func ActorFromContext(ctx context.Context) Actor {
	return Actor{ID: GetActorID(ctx), Role: GetRole(ctx)}
}

// GetActorID 从 context 获取 actor_id
func GetActorID(ctx context.Context) string {
	if v, ok := ctx.Value(actorIDKey).(string); ok {
		return v
	}
	return ""
}

// GetRole 从 context 获取 role
func GetRole(ctx context.Context) Role {
	if v, ok := ctx.Value(roleKey).(Role); ok {
		return v
	}
	return RoleConsumer // 未认证时按只读消费者处理
}
