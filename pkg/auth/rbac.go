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

// Permission 权限
type Permission string

const (
	PermissionBatchView      Permission = "batch:view"
	PermissionBatchCreate    Permission = "batch:create"
	PermissionBatchUpdate    Permission = "batch:update"
	PermissionBatchDelete    Permission = "batch:delete" // 管理员删除批次
	PermissionTransferCreate Permission = "transfer:create"
	PermissionReportCreate   Permission = "report:create"
	PermissionReportUpdate   Permission = "report:update"
	PermissionVerifyStamp    Permission = "verify:stamp" // 质检员批次核验盖章
	PermissionSyncRun        Permission = "sync:run"     // 手动触发链上同步
	PermissionCacheClear     Permission = "cache:clear"
	PermissionAnalyticsView  Permission = "analytics:view"
)

// Role 供应链参与方角色
type Role string

const (
	RoleAdmin       Role = "admin"       // 全部权限
	RoleFarmer      Role = "farmer"      // 创建批次 + 流转
	RoleDistributor Role = "distributor" // 流转 + 状态更新
	RoleRetailer    Role = "retailer"    // 流转 + 状态更新
	RoleInspector   Role = "inspector"   // 质检报告 + 核验盖章
	RoleConsumer    Role = "consumer"    // 只读（溯源查询）
)

// RolePermissions 角色与权限映射
var RolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermissionBatchView,
		PermissionBatchCreate,
		PermissionBatchUpdate,
		PermissionBatchDelete,
		PermissionTransferCreate,
		PermissionReportCreate,
		PermissionReportUpdate,
		PermissionVerifyStamp,
		PermissionSyncRun,
		PermissionCacheClear,
		PermissionAnalyticsView,
	},
	RoleFarmer: {
		PermissionBatchView,
		PermissionBatchCreate,
		PermissionBatchUpdate,
		PermissionTransferCreate,
		PermissionAnalyticsView,
	},
	RoleDistributor: {
		PermissionBatchView,
		PermissionBatchUpdate,
		PermissionTransferCreate,
		PermissionAnalyticsView,
	},
	RoleRetailer: {
		PermissionBatchView,
		PermissionBatchUpdate,
		PermissionTransferCreate,
		PermissionAnalyticsView,
	},
	RoleInspector: {
		PermissionBatchView,
		PermissionReportCreate,
		PermissionReportUpdate,
		PermissionVerifyStamp,
	},
	RoleConsumer: {
		PermissionBatchView,
	},
}

// HasPermission 检查角色是否包含指定权限
func HasPermission(role Role, permission Permission) bool {
	permissions, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// IsAdmin 是否管理员
func IsAdmin(role Role) bool {
	return role == RoleAdmin
}

// ValidRole 是否已知角色
func ValidRole(role Role) bool {
	_, ok := RolePermissions[role]
	return ok
}
