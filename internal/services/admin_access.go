package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/adlaunch/backend/internal/models"
	"github.com/adlaunch/backend/internal/rbac"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BusinessMemberEdges are tried in order; not every business type exposes every edge.
var BusinessMemberEdges = []string{"users", "people", "assigned_users", "business_users"}

// AdminAccessResolver decides whether the connected platform user can manage payments.
type AdminAccessResolver struct {
	platform AdPlatform
	timeout  time.Duration
	log      *zap.Logger
}

func NewAdminAccessResolver(platform AdPlatform, timeout time.Duration, log *zap.Logger) *AdminAccessResolver {
	return &AdminAccessResolver{platform: platform, timeout: timeout, log: log}
}

func (r *AdminAccessResolver) VerifyAdminAccess(ctx context.Context, token, businessID, adAccountID string) models.AdminAccess {
	access, _, _ := r.resolve(ctx, token, businessID, adAccountID, false)
	return access
}

// VerifySnapshot runs the same check and keeps the raw platform data for auditing.
func (r *AdminAccessResolver) VerifySnapshot(ctx context.Context, token, businessID, adAccountID string) models.AdminSnapshot {
	access, edge, raw := r.resolve(ctx, token, businessID, adAccountID, true)
	return models.AdminSnapshot{
		Access:              access,
		BusinessMembersEdge: edge,
		RawAdAccount:        raw,
		CheckedAt:           time.Now(),
	}
}

func (r *AdminAccessResolver) resolve(ctx context.Context, token, businessID, adAccountID string, withRaw bool) (models.AdminAccess, string, json.RawMessage) {
	access := models.AdminAccess{
		BusinessUsers:  []models.PlatformMember{},
		AdAccountUsers: []models.PlatformMember{},
	}
	accountID := models.NormalizeAdAccountID(adAccountID)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	me, err := r.platform.GetMe(ctx, token)
	if err != nil {
		r.log.Warn("admin check: platform user unresolved", zap.Error(err))
		return access, "", nil
	}
	access.PlatformUserID = me.ID

	var (
		edge string
		raw  json.RawMessage
	)
	g, gctx := errgroup.WithContext(ctx)
	if businessID != "" {
		g.Go(func() error {
			access.BusinessUsers, edge = r.businessMembers(gctx, token, businessID)
			return nil
		})
	}
	if accountID != "" {
		g.Go(func() error {
			users, err := r.platform.ListAdAccountUsers(gctx, token, accountID)
			if err != nil {
				r.log.Warn("admin check: ad account users unavailable",
					zap.String("ad_account_id", accountID), zap.Error(err))
				return nil
			}
			access.AdAccountUsers = users
			return nil
		})
		if withRaw {
			g.Go(func() error {
				info, err := r.platform.GetAdAccount(gctx, token, accountID)
				if err != nil {
					r.log.Debug("admin snapshot: ad account detail unavailable", zap.Error(err))
					return nil
				}
				raw = info.Raw
				return nil
			})
		}
	}
	_ = g.Wait()

	access.BusinessRole = businessRoleOf(access.BusinessUsers, me.ID)
	access.AdAccountRole = adAccountRoleOf(access.AdAccountUsers, me.ID)
	access.AdminConnected = rbac.CanManagePayments(access.BusinessRole, access.AdAccountRole)

	r.log.Info("admin access resolved",
		zap.String("platform_user_id", me.ID),
		zap.Stringp("business_role", access.BusinessRole),
		zap.Stringp("ad_account_role", access.AdAccountRole),
		zap.Bool("admin_connected", access.AdminConnected),
	)
	return access, edge, raw
}

// businessMembers walks BusinessMemberEdges and stops at the first non-empty list.
func (r *AdminAccessResolver) businessMembers(ctx context.Context, token, businessID string) ([]models.PlatformMember, string) {
	for _, edge := range BusinessMemberEdges {
		members, err := r.platform.ListBusinessMembers(ctx, token, businessID, edge)
		if err != nil {
			r.log.Debug("business member edge unavailable",
				zap.String("business_id", businessID),
				zap.String("edge", edge),
				zap.Error(err),
			)
			continue
		}
		if len(members) > 0 {
			return members, edge
		}
		r.log.Debug("business member edge empty", zap.String("edge", edge))
	}
	return []models.PlatformMember{}, ""
}

// businessRoleOf returns nil when the caller's role cannot be determined.
func businessRoleOf(members []models.PlatformMember, userID string) *string {
	for _, m := range members {
		if m.ID == userID && m.Role != "" {
			role := m.Role
			return &role
		}
	}
	return nil
}

func adAccountRoleOf(members []models.PlatformMember, userID string) *string {
	for _, m := range members {
		if m.ID != userID {
			continue
		}
		role := m.Role
		if len(m.Tasks) > 0 {
			role = rbac.RoleFromTasks(m.Tasks)
		}
		if role == "" {
			return nil
		}
		return &role
	}
	return nil
}
