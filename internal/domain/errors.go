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

package domain

import (
	"errors"
	"fmt"
)

// 领域错误分类；存储层/账本层原始错误在边界处映射为这些哨兵
var (
	ErrNotFound          = errors.New("资源不存在")
	ErrDuplicateResource = errors.New("资源已存在")
	ErrInvalidReference  = errors.New("引用的资源不存在")
	ErrInvalidInput      = errors.New("无效的输入")
	ErrNotOwner          = errors.New("非当前持有人")
	ErrSelfTransfer      = errors.New("不能转移给自己")
	ErrInvalidTransition = errors.New("非法状态流转")
	ErrForbidden         = errors.New("禁止访问")
	ErrWindowExpired     = errors.New("修改窗口已过期")
	ErrLedgerUnavailable = errors.New("外部账本不可用")
	ErrUnconfigured      = errors.New("外部账本未配置")
	ErrAlreadyAnchored   = errors.New("批次已锚定")
	ErrConflict          = errors.New("并发写冲突")
)

// TransitionError 携带流转上下文的错误，Unwrap 到 ErrInvalidTransition
type TransitionError struct {
	From Status
	To   Status
}

// Error 实现 error 接口
func (e *TransitionError) Error() string {
	return fmt.Sprintf("非法状态流转: %s -> %s", e.From, e.To)
}

// Unwrap 实现 errors.Unwrap 接口
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
