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
	"agritrace/pkg/auth"
)

// transitions 状态流转表；harvested 仅在创建时出现，不允许回流
var transitions = map[Status][]Status{
	StatusHarvested: {StatusInTransit, StatusCancelled},
	StatusInTransit: {StatusDelivered, StatusCancelled},
	StatusDelivered: {StatusProcessed, StatusSold, StatusCancelled},
	StatusProcessed: {StatusCancelled},
	// sold / cancelled 为终态，无出边
}

// ValidTransition 纯函数：校验一次状态流转请求。
// 规则：终态无出边；任何状态不得回到 harvested；状态更新要求
// 当前持有人或管理员发起。
func ValidTransition(current, requested Status, role auth.Role, isOwner bool) error {
	if !ValidStatus(requested) {
		return ErrInvalidInput
	}
	if IsTerminal(current) {
		return &TransitionError{From: current, To: requested}
	}
	if requested == StatusHarvested {
		return &TransitionError{From: current, To: requested}
	}
	allowed := false
	for _, next := range transitions[current] {
		if next == requested {
			allowed = true
			break
		}
	}
	if !allowed {
		return &TransitionError{From: current, To: requested}
	}
	if !isOwner && !auth.IsAdmin(role) {
		return ErrNotOwner
	}
	return nil
}

// ValidateTransfer 校验一次持有权转移：仅当前持有人（或管理员）可发起，
// 且接收方必须不同于发起方。转移本身不改变状态。
func ValidateTransfer(currentOwner, fromParty, toParty string, role auth.Role) error {
	if toParty == "" {
		return ErrInvalidInput
	}
	if fromParty == toParty || toParty == currentOwner {
		return ErrSelfTransfer
	}
	if fromParty != currentOwner && !auth.IsAdmin(role) {
		return ErrNotOwner
	}
	return nil
}
