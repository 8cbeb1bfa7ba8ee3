package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPermission(t *testing.T) {
	assert.True(t, HasPermission(RoleFarmer, PermissionBatchCreate), "farmer should create batches")
	assert.False(t, HasPermission(RoleDistributor, PermissionBatchCreate), "distributor should not create batches")
	assert.True(t, HasPermission(RoleInspector, PermissionReportCreate), "inspector should create reports")
	assert.False(t, HasPermission(RoleConsumer, PermissionTransferCreate), "consumer should not create transfers")
	assert.True(t, HasPermission(RoleAdmin, PermissionBatchDelete), "admin should delete batches")
	assert.False(t, HasPermission(Role("unknown"), PermissionBatchView), "unknown role should have nothing")
}

func TestAdminHasEverything(t *testing.T) {
	perms := []Permission{
		PermissionBatchView, PermissionBatchCreate, PermissionBatchUpdate, PermissionBatchDelete,
		PermissionTransferCreate, PermissionReportCreate, PermissionReportUpdate,
		PermissionVerifyStamp, PermissionSyncRun, PermissionCacheClear, PermissionAnalyticsView,
	}
	for _, p := range perms {
		assert.True(t, HasPermission(RoleAdmin, p), "admin missing %s", p)
	}
}

func TestValidRole(t *testing.T) {
	for _, r := range []Role{RoleAdmin, RoleFarmer, RoleDistributor, RoleRetailer, RoleInspector, RoleConsumer} {
		assert.True(t, ValidRole(r))
	}
	assert.False(t, ValidRole(Role("superuser")))
	assert.False(t, ValidRole(Role("")))
}

func TestActorContext(t *testing.T) {
	ctx := WithActor(context.Background(), Actor{ID: "u-1", Role: RoleRetailer})
	actor := ActorFromContext(ctx)
	assert.Equal(t, "u-1", actor.ID)
	assert.Equal(t, RoleRetailer, actor.Role)
	// 未注入时默认 consumer
	assert.Equal(t, RoleConsumer, GetRole(context.Background()))
}
