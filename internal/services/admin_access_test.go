package services

import (
	"context"
	"testing"

	"github.com/adlaunch/backend/internal/models"
	"go.uber.org/zap"
)

func TestAdminAccessResolver(t *testing.T) {
	tests := []struct {
		name         string
		members      map[string][]models.PlatformMember
		accountUsers []models.PlatformMember
		businessID   string
		wantAdmin    bool
		wantBizRole  string // "" means nil
		wantAccRole  string
	}{
		{
			name:         "admin on both",
			members:      map[string][]models.PlatformMember{"users": {{ID: "u1", Role: "ADMIN"}}},
			accountUsers: []models.PlatformMember{{ID: "u1", Tasks: []string{"MANAGE", "ADVERTISE"}}},
			businessID:   "biz_1",
			wantAdmin:    true,
			wantBizRole:  "ADMIN",
			wantAccRole:  "ADMIN",
		},
		{
			name:         "business role unknown is tolerated",
			members:      map[string][]models.PlatformMember{"users": {{ID: "someone-else", Role: "ADMIN"}}},
			accountUsers: []models.PlatformMember{{ID: "u1", Tasks: []string{"ADMIN"}}},
			businessID:   "biz_1",
			wantAdmin:    true,
			wantAccRole:  "ADMIN",
		},
		{
			name:         "employee on business blocks",
			members:      map[string][]models.PlatformMember{"users": {{ID: "u1", Role: "EMPLOYEE"}}},
			accountUsers: []models.PlatformMember{{ID: "u1", Tasks: []string{"MANAGE"}}},
			businessID:   "biz_1",
			wantAdmin:    false,
			wantBizRole:  "EMPLOYEE",
			wantAccRole:  "ADMIN",
		},
		{
			name:         "advertiser on ad account blocks",
			members:      map[string][]models.PlatformMember{"users": {{ID: "u1", Role: "ADMIN"}}},
			accountUsers: []models.PlatformMember{{ID: "u1", Tasks: []string{"ADVERTISE", "ANALYZE"}}},
			businessID:   "biz_1",
			wantAdmin:    false,
			wantBizRole:  "ADMIN",
			wantAccRole:  "ADVERTISE,ANALYZE",
		},
		{
			name:        "missing from ad account blocks",
			members:     map[string][]models.PlatformMember{"users": {{ID: "u1", Role: "ADMIN"}}},
			businessID:  "biz_1",
			wantAdmin:   false,
			wantBizRole: "ADMIN",
		},
		{
			name: "falls through empty edges",
			members: map[string][]models.PlatformMember{
				"users":          {},
				"assigned_users": {{ID: "u1", Role: "FINANCE_EDITOR"}},
			},
			accountUsers: []models.PlatformMember{{ID: "u1", Role: "FINANCE_EDITOR"}},
			businessID:   "biz_1",
			wantAdmin:    true,
			wantBizRole:  "FINANCE_EDITOR",
			wantAccRole:  "FINANCE_EDITOR",
		},
		{
			name:         "no business selected",
			accountUsers: []models.PlatformMember{{ID: "u1", Tasks: []string{"MANAGE"}}},
			wantAdmin:    true,
			wantAccRole:  "ADMIN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			platform := newFakePlatform()
			if tt.members != nil {
				platform.members = tt.members
			}
			platform.accountUsers = tt.accountUsers
			r := NewAdminAccessResolver(platform, 0, zap.NewNop())

			access := r.VerifyAdminAccess(context.Background(), "tok", tt.businessID, "act_123")

			if access.AdminConnected != tt.wantAdmin {
				t.Errorf("AdminConnected = %v, want %v", access.AdminConnected, tt.wantAdmin)
			}
			if got := deref(access.BusinessRole); got != tt.wantBizRole {
				t.Errorf("BusinessRole = %q, want %q", got, tt.wantBizRole)
			}
			if got := deref(access.AdAccountRole); got != tt.wantAccRole {
				t.Errorf("AdAccountRole = %q, want %q", got, tt.wantAccRole)
			}
			if access.PlatformUserID != "u1" {
				t.Errorf("PlatformUserID = %q", access.PlatformUserID)
			}
		})
	}
}

func TestAdminAccessResolver_UnknownUser(t *testing.T) {
	platform := newFakePlatform()
	platform.meErr = errPlatformDown
	r := NewAdminAccessResolver(platform, 0, zap.NewNop())

	access := r.VerifyAdminAccess(context.Background(), "tok", "biz_1", "123")
	if access.AdminConnected {
		t.Error("unresolved platform user must not be admin")
	}
	if access.BusinessUsers == nil || access.AdAccountUsers == nil {
		t.Error("member lists should be empty, not nil")
	}
}

func TestAdminAccessResolver_Snapshot(t *testing.T) {
	platform := newFakePlatform()
	platform.account.Raw = []byte(`{"id":"act_123"}`)
	platform.members = map[string][]models.PlatformMember{"people": {{ID: "u1", Role: "ADMIN"}}}
	platform.accountUsers = []models.PlatformMember{{ID: "u1", Tasks: []string{"MANAGE"}}}
	r := NewAdminAccessResolver(platform, 0, zap.NewNop())

	snap := r.VerifySnapshot(context.Background(), "tok", "biz_1", "123")

	if snap.BusinessMembersEdge != "people" {
		t.Errorf("edge = %q, want people", snap.BusinessMembersEdge)
	}
	if string(snap.RawAdAccount) != `{"id":"act_123"}` {
		t.Errorf("raw ad account = %s", snap.RawAdAccount)
	}
	if !snap.Access.AdminConnected {
		t.Error("expected admin access")
	}
	if snap.CheckedAt.IsZero() {
		t.Error("CheckedAt not set")
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
