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
	"time"
)

// Status 批次状态
type Status string

const (
	StatusHarvested Status = "harvested"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusProcessed Status = "processed"
	StatusSold      Status = "sold"
	StatusCancelled Status = "cancelled"
)

// ValidStatus 是否已知状态
func ValidStatus(s Status) bool {
	switch s {
	case StatusHarvested, StatusInTransit, StatusDelivered, StatusProcessed, StatusSold, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal 终态不允许任何后续流转
func IsTerminal(s Status) bool {
	return s == StatusSold || s == StatusCancelled
}

// EventType 流转事件类型
type EventType string

const (
	EventCreation   EventType = "creation"
	EventTransfer   EventType = "transfer"
	EventPickup     EventType = "pickup"
	EventDelivery   EventType = "delivery"
	EventInspection EventType = "inspection"
	EventSale       EventType = "sale"
)

// ValidEventType 是否已知事件类型
func ValidEventType(t EventType) bool {
	switch t {
	case EventCreation, EventTransfer, EventPickup, EventDelivery, EventInspection, EventSale:
		return true
	}
	return false
}

// Grade 质量等级（序数：A+ > A > B+ > B > C）
type Grade string

const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeBPlus Grade = "B+"
	GradeB     Grade = "B"
	GradeC     Grade = "C"
)

// gradeRank 等级序数，越大越好
var gradeRank = map[Grade]int{
	GradeC:     1,
	GradeB:     2,
	GradeBPlus: 3,
	GradeA:     4,
	GradeAPlus: 5,
}

// ValidGrade 是否已知等级
func ValidGrade(g Grade) bool {
	_, ok := gradeRank[g]
	return ok
}

// CompareGrade 比较两个等级，a>b 返回正数
func CompareGrade(a, b Grade) int {
	return gradeRank[a] - gradeRank[b]
}

// Batch 批次：被追踪的农产品单元
type Batch struct {
	BatchID          string     `json:"batch_id"`
	FarmerID         string     `json:"farmer_id"`
	CropType         string     `json:"crop_type"`
	Quantity         float64    `json:"quantity"`
	Unit             string     `json:"unit"`
	HarvestDate      time.Time  `json:"harvest_date"`
	QualityGrade     Grade      `json:"quality_grade"`
	Status           Status     `json:"status"`
	Location         string     `json:"location,omitempty"`
	PesticideUsed    bool       `json:"pesticide_used"`
	OrganicCertified bool       `json:"organic_certified"`
	// LedgerTxHash 链上锚定哈希；仅在提交确认后写入
	LedgerTxHash      string     `json:"ledger_tx_hash,omitempty"`
	Verified          bool       `json:"verified"`
	VerifiedBy        string     `json:"verified_by,omitempty"`
	VerificationNotes string     `json:"verification_notes,omitempty"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Anchored 是否已锚定到外部账本
func (b *Batch) Anchored() bool {
	return b.LedgerTxHash != ""
}

// TransferEvent 流转事件：批次移动或状态变化的不可变记录（append-only）
type TransferEvent struct {
	EventID     string    `json:"event_id"`
	BatchID     string    `json:"batch_id"`
	FromParty   string    `json:"from_party"`
	ToParty     string    `json:"to_party,omitempty"` // 纯状态/质检事件为空
	Type        EventType `json:"type"`
	Location    string    `json:"location,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
	// LedgerTxRef 链上交易引用；事件唯一允许的后置修改
	LedgerTxRef string    `json:"ledger_tx_ref,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// QualityReport 质检报告
type QualityReport struct {
	ReportID         string    `json:"report_id"`
	BatchID          string    `json:"batch_id"`
	InspectorID      string    `json:"inspector_id"`
	InspectionDate   time.Time `json:"inspection_date"`
	Grade            Grade     `json:"grade"`
	PesticideUsed    bool      `json:"pesticide_used"`
	OrganicCertified bool      `json:"organic_certified"`
	MoistureContent  *float64  `json:"moisture_content,omitempty"`
	Contamination    string    `json:"contamination,omitempty"`
	Remarks          string    `json:"remarks,omitempty"`
	ReportURL        string    `json:"report_url,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ReportEditWindow 质检报告创建者可修改的时间窗口
const ReportEditWindow = 24 * time.Hour

// BatchUpdate 批次更新命令：字段显式列出，nil 表示不修改
type BatchUpdate struct {
	Status       *Status
	Location     *string
	QualityGrade *Grade
	LedgerTxHash *string
}

// ReportUpdate 质检报告更新命令
type ReportUpdate struct {
	Grade            *Grade
	Remarks          *string
	PesticideUsed    *bool
	OrganicCertified *bool
	MoistureContent  *float64
	Contamination    *string
	ReportURL        *string
}

// VerificationStamp 批次核验盖章（质检员/管理员）
type VerificationStamp struct {
	Verified   bool
	VerifiedBy string
	Notes      string
	VerifiedAt time.Time
}

// CurrentOwner 从有序事件流推导当前持有人；无转移事件时回落到农户
func CurrentOwner(b *Batch, events []*TransferEvent) string {
	owner := b.FarmerID
	for _, e := range events {
		if e.Type == EventTransfer && e.ToParty != "" {
			owner = e.ToParty
		}
	}
	return owner
}

// CustodyChain 从有序事件流还原持有链（首位为农户）
func CustodyChain(b *Batch, events []*TransferEvent) []string {
	chain := []string{b.FarmerID}
	for _, e := range events {
		if e.Type == EventTransfer && e.ToParty != "" {
			chain = append(chain, e.ToParty)
		}
	}
	return chain
}
