package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adlaunch/backend/internal/events"
	"github.com/adlaunch/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ConnectInput struct {
	AccessToken    string
	TokenExpiresAt *time.Time
}

type AssetSelection struct {
	BusinessID        *string
	BusinessName      *string
	AdAccountID       string
	AdAccountName     *string
	AdAccountCurrency *string
	PageID            *string
	InstagramID       *string
}

// ConnectionService manages the per-campaign ad platform connection and its
// funding and admin verification.
type ConnectionService struct {
	connections ConnectionStore
	campaigns   CampaignStore
	ads         AdStore
	audit       AuditStore
	funding     *FundingValidator
	admin       *AdminAccessResolver
	publisher   events.Publisher
	log         *zap.Logger
	now         func() time.Time
}

func NewConnectionService(
	connections ConnectionStore,
	campaigns CampaignStore,
	ads AdStore,
	audit AuditStore,
	funding *FundingValidator,
	admin *AdminAccessResolver,
	publisher events.Publisher,
	log *zap.Logger,
) *ConnectionService {
	return &ConnectionService{
		connections: connections,
		campaigns:   campaigns,
		ads:         ads,
		audit:       audit,
		funding:     funding,
		admin:       admin,
		publisher:   publisher,
		log:         log,
		now:         time.Now,
	}
}

func (s *ConnectionService) Get(ctx context.Context, campaignID, userID uuid.UUID) (*models.AdvertiserConnection, error) {
	if _, err := s.ownedCampaign(ctx, campaignID, userID); err != nil {
		return nil, err
	}
	return s.connections.GetByCampaign(ctx, campaignID)
}

// Connect stores a fresh access token. Previously selected assets survive a reconnect.
func (s *ConnectionService) Connect(ctx context.Context, campaignID, userID uuid.UUID, in ConnectInput) (*models.AdvertiserConnection, error) {
	if _, err := s.ownedCampaign(ctx, campaignID, userID); err != nil {
		return nil, err
	}
	token := strings.TrimSpace(in.AccessToken)
	if token == "" {
		return nil, fmt.Errorf("%w: access token is required", ErrInvalidInput)
	}

	conn, err := s.loadOrNew(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	conn.AccessToken = token
	conn.TokenExpiresAt = in.TokenExpiresAt
	if conn.Status == "" || conn.Status == models.ConnectionDisconnected {
		conn.Status = models.ConnectionConnected
	}

	if err := s.connections.Upsert(ctx, conn); err != nil {
		return nil, err
	}
	s.auditConnection(ctx, &userID, models.ActorUser, campaignID, "connection_connected", nil)
	return conn, nil
}

// SelectAssets records the business, ad account and page used for publishing.
// Switching ad accounts clears the payment and admin flags.
func (s *ConnectionService) SelectAssets(ctx context.Context, campaignID, userID uuid.UUID, sel AssetSelection) (*models.AdvertiserConnection, error) {
	if _, err := s.ownedCampaign(ctx, campaignID, userID); err != nil {
		return nil, err
	}
	accountID := models.NormalizeAdAccountID(sel.AdAccountID)
	if accountID == "" {
		return nil, fmt.Errorf("%w: ad account id is required", ErrInvalidInput)
	}

	conn, err := s.connections.GetByCampaign(ctx, campaignID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotConnected
		}
		return nil, err
	}
	if !conn.HasToken() {
		return nil, ErrNotConnected
	}

	if conn.AdAccountIDValue() != accountID {
		conn.PaymentConnected = false
		conn.AdminConnected = false
		conn.AdminBusinessRole, conn.AdminAdAccountRole = nil, nil
	}
	conn.BusinessID = sel.BusinessID
	conn.BusinessName = sel.BusinessName
	conn.AdAccountID = &accountID
	conn.AdAccountName = sel.AdAccountName
	conn.AdAccountCurrency = sel.AdAccountCurrency
	conn.PageID = sel.PageID
	conn.InstagramID = sel.InstagramID
	if conn.PaymentConnected {
		conn.Status = models.ConnectionPaymentLinked
	} else {
		conn.Status = models.ConnectionSelectedAssets
	}

	if err := s.connections.Upsert(ctx, conn); err != nil {
		return nil, err
	}
	s.auditConnection(ctx, &userID, models.ActorUser, campaignID, "connection_assets_selected",
		map[string]any{"ad_account_id": accountID, "business_id": conn.BusinessIDValue()})
	return conn, nil
}

// Disconnect clears the token and assets. Live ads must be paused or archived first.
func (s *ConnectionService) Disconnect(ctx context.Context, campaignID, userID uuid.UUID) error {
	if _, err := s.ownedCampaign(ctx, campaignID, userID); err != nil {
		return err
	}
	live, err := s.ads.HasLiveAds(ctx, campaignID)
	if err != nil {
		return err
	}
	if live {
		return fmt.Errorf("%w: pause or archive live ads before disconnecting", ErrStatusConflict)
	}

	conn, err := s.connections.GetByCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	conn.Disconnect()
	if err := s.connections.Upsert(ctx, conn); err != nil {
		return err
	}
	s.auditConnection(ctx, &userID, models.ActorUser, campaignID, "connection_disconnected", nil)
	return nil
}

// VerifyFunding checks the ad account's funding. paymentConfirmed records the owner's
// confirmation that a payment method was added; only an admin or finance user may set it.
func (s *ConnectionService) VerifyFunding(ctx context.Context, campaignID, userID uuid.UUID, paymentConfirmed *bool) (*FundingCheck, error) {
	campaign, err := s.ownedCampaign(ctx, campaignID, userID)
	if err != nil {
		return nil, err
	}
	conn, err := s.connectedWithAssets(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	hint := conn.PaymentConnected
	if paymentConfirmed != nil {
		if *paymentConfirmed && !conn.AdminConnected {
			return nil, ErrForbidden
		}
		hint = *paymentConfirmed
	}

	check := s.funding.Validate(ctx, conn.AccessToken, conn.AdAccountIDValue(), hint)
	if err := s.applyFunding(ctx, conn, campaign.OwnerUserID, hint, check, userActor(userID)); err != nil {
		return nil, err
	}
	return &check, nil
}

// VerifyAdmin resolves the platform user's roles and persists a snapshot.
func (s *ConnectionService) VerifyAdmin(ctx context.Context, campaignID, userID uuid.UUID) (*models.AdminAccess, error) {
	campaign, err := s.ownedCampaign(ctx, campaignID, userID)
	if err != nil {
		return nil, err
	}
	conn, err := s.connectedWithAssets(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	access, err := s.verifyAdmin(ctx, conn, campaign.OwnerUserID, userActor(userID))
	if err != nil {
		return nil, err
	}
	return &access, nil
}

// RecheckFunding re-runs funding verification for every connected campaign.
func (s *ConnectionService) RecheckFunding(ctx context.Context, limit int) (int, error) {
	conns, err := s.connections.ListWithSelectedAssets(ctx, limit)
	if err != nil {
		return 0, err
	}
	checked := 0
	for i := range conns {
		conn := &conns[i]
		if conn.TokenExpired(s.now()) {
			continue
		}
		campaign, err := s.campaigns.GetByID(ctx, conn.CampaignID)
		if err != nil {
			s.log.Warn("funding recheck: campaign lookup failed", zap.String("campaign_id", conn.CampaignID.String()), zap.Error(err))
			continue
		}
		check := s.funding.Validate(ctx, conn.AccessToken, conn.AdAccountIDValue(), conn.PaymentConnected)
		if err := s.applyFunding(ctx, conn, campaign.OwnerUserID, conn.PaymentConnected, check, workerActor); err != nil {
			s.log.Error("funding recheck: update failed", zap.String("campaign_id", conn.CampaignID.String()), zap.Error(err))
			continue
		}
		checked++
	}
	return checked, nil
}

// RecheckAdmin re-runs admin verification for every connected campaign.
func (s *ConnectionService) RecheckAdmin(ctx context.Context, limit int) (int, error) {
	conns, err := s.connections.ListWithSelectedAssets(ctx, limit)
	if err != nil {
		return 0, err
	}
	checked := 0
	for i := range conns {
		conn := &conns[i]
		if conn.TokenExpired(s.now()) {
			continue
		}
		campaign, err := s.campaigns.GetByID(ctx, conn.CampaignID)
		if err != nil {
			continue
		}
		if _, err := s.verifyAdmin(ctx, conn, campaign.OwnerUserID, workerActor); err != nil {
			s.log.Error("admin recheck failed", zap.String("campaign_id", conn.CampaignID.String()), zap.Error(err))
			continue
		}
		checked++
	}
	return checked, nil
}

func (s *ConnectionService) applyFunding(ctx context.Context, conn *models.AdvertiserConnection, ownerID uuid.UUID, paymentConnected bool, check FundingCheck, by actor) error {
	// An unreachable platform keeps the last known status.
	status := conn.Status
	if check.Determined {
		if check.HasFunding && !models.HasCritical(check.Errors) {
			status = models.ConnectionPaymentLinked
		} else {
			status = models.ConnectionSelectedAssets
		}
	}

	if err := s.connections.UpdateFunding(ctx, conn.CampaignID, paymentConnected, status); err != nil {
		return fmt.Errorf("update funding: %w", err)
	}
	changed := conn.Status != status || conn.PaymentConnected != paymentConnected
	conn.PaymentConnected = paymentConnected
	conn.Status = status

	s.auditConnection(ctx, by.userID, by.kind, conn.CampaignID, "connection_funding_verified", map[string]any{
		"has_funding":    check.HasFunding,
		"determined":     check.Determined,
		"account_status": check.AccountStatusName,
		"critical":       models.CountBySeverity(check.Errors, models.SeverityCritical),
	})

	if changed {
		s.publish(ctx, events.EventConnectionVerified, ownerID, conn.CampaignID, map[string]any{
			"status":            status,
			"payment_connected": paymentConnected,
			"has_funding":       check.HasFunding,
		})
	}
	return nil
}

func (s *ConnectionService) verifyAdmin(ctx context.Context, conn *models.AdvertiserConnection, ownerID uuid.UUID, by actor) (models.AdminAccess, error) {
	snap := s.admin.VerifySnapshot(ctx, conn.AccessToken, conn.BusinessIDValue(), conn.AdAccountIDValue())
	snap.CampaignID = conn.CampaignID

	if err := s.connections.SaveAdminSnapshot(ctx, &snap); err != nil {
		s.log.Warn("failed to save admin snapshot", zap.String("campaign_id", conn.CampaignID.String()), zap.Error(err))
	}
	if err := s.connections.UpdateAdminAccess(ctx, conn.CampaignID, snap.Access); err != nil {
		return models.AdminAccess{}, fmt.Errorf("update admin access: %w", err)
	}

	changed := conn.AdminConnected != snap.Access.AdminConnected
	conn.AdminConnected = snap.Access.AdminConnected
	conn.AdminBusinessRole = snap.Access.BusinessRole
	conn.AdminAdAccountRole = snap.Access.AdAccountRole

	s.auditConnection(ctx, by.userID, by.kind, conn.CampaignID, "connection_admin_verified", map[string]any{
		"admin_connected": snap.Access.AdminConnected,
		"edge":            snap.BusinessMembersEdge,
	})
	if changed {
		s.publish(ctx, events.EventAdminAccessVerified, ownerID, conn.CampaignID, map[string]any{
			"admin_connected": snap.Access.AdminConnected,
		})
	}
	return snap.Access, nil
}

func (s *ConnectionService) connectedWithAssets(ctx context.Context, campaignID uuid.UUID) (*models.AdvertiserConnection, error) {
	conn, err := s.connections.GetByCampaign(ctx, campaignID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotConnected
		}
		return nil, err
	}
	if !conn.HasSelectedAssets() {
		return nil, ErrNotConnected
	}
	return conn, nil
}

func (s *ConnectionService) loadOrNew(ctx context.Context, campaignID uuid.UUID) (*models.AdvertiserConnection, error) {
	conn, err := s.connections.GetByCampaign(ctx, campaignID)
	if err == nil {
		return conn, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return &models.AdvertiserConnection{CampaignID: campaignID, Status: models.ConnectionDisconnected}, nil
}

func (s *ConnectionService) ownedCampaign(ctx context.Context, campaignID, userID uuid.UUID) (*models.Campaign, error) {
	c, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.OwnerUserID != userID {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *ConnectionService) auditConnection(ctx context.Context, actorID *uuid.UUID, actorType string, campaignID uuid.UUID, action string, meta map[string]any) {
	_ = s.audit.Log(ctx, models.AuditLog{
		ActorUserID: actorID,
		ActorType:   actorType,
		Action:      action,
		EntityType:  "connection",
		EntityID:    &campaignID,
		Meta:        meta,
	})
}

func (s *ConnectionService) publish(ctx context.Context, eventType string, ownerID, campaignID uuid.UUID, payload map[string]any) {
	payload["campaign_id"] = campaignID.String()
	payload["owner_user_id"] = ownerID.String()
	if err := s.publisher.Publish(ctx, events.StreamConnections, events.Event{Type: eventType, Payload: payload}); err != nil {
		s.log.Warn("failed to publish connection event", zap.String("type", eventType), zap.Error(err))
	}
}
