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
	"fmt"
	"math/rand/v2"
	"regexp"
	"time"
)

// BatchIDPrefix 批次号前缀
const BatchIDPrefix = "AG"

// batchIDPattern 批次号格式：<2 位前缀>-<4 位年份>-<3~6 位序号>
var batchIDPattern = regexp.MustCompile(`^[A-Z]{2}-\d{4}-\d{3,6}$`)

// NewBatchID 生成批次号，序号取随机六位数；生成是概率性的，
// 调用方需在唯一约束冲突时重试
func NewBatchID(now time.Time) string {
	seq := rand.IntN(900000) + 100000
	return fmt.Sprintf("%s-%d-%d", BatchIDPrefix, now.Year(), seq)
}

// ValidBatchID 校验批次号格式
func ValidBatchID(id string) bool {
	return batchIDPattern.MatchString(id)
}
