package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Connection statuses
const (
	ConnectionDisconnected   = "disconnected"
	ConnectionConnected      = "connected"
	ConnectionSelectedAssets = "selected_assets"
	ConnectionPaymentLinked  = "payment_linked"
)

// AdAccountPrefix is prepended by the platform to ad account ids.
const AdAccountPrefix = "act_"

// NormalizeAdAccountID strips the platform prefix; ids are stored and compared without it.
func NormalizeAdAccountID(id string) string {
	return strings.TrimPrefix(strings.TrimSpace(id), AdAccountPrefix)
}

// AdvertiserConnection is owned by exactly one campaign.
type AdvertiserConnection struct {
	CampaignID         uuid.UUID  `json:"campaign_id"`
	AccessToken        string     `json:"-"`
	TokenExpiresAt     *time.Time `json:"token_expires_at,omitempty"`
	BusinessID         *string    `json:"business_id,omitempty"`
	BusinessName       *string    `json:"business_name,omitempty"`
	AdAccountID        *string    `json:"ad_account_id,omitempty"`
	AdAccountName      *string    `json:"ad_account_name,omitempty"`
	AdAccountCurrency  *string    `json:"ad_account_currency,omitempty"`
	PageID             *string    `json:"page_id,omitempty"`
	InstagramID        *string    `json:"instagram_id,omitempty"`
	PaymentConnected   bool       `json:"payment_connected"`
	AdminConnected     bool       `json:"admin_connected"`
	AdminBusinessRole  *string    `json:"admin_business_role,omitempty"`
	AdminAdAccountRole *string    `json:"admin_ad_account_role,omitempty"`
	Status             string     `json:"status"`
	LastVerifiedAt     *time.Time `json:"last_verified_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (c *AdvertiserConnection) HasToken() bool {
	return c != nil && c.AccessToken != ""
}

func (c *AdvertiserConnection) TokenExpired(now time.Time) bool {
	return c.TokenExpiresAt != nil && !c.TokenExpiresAt.After(now)
}

func (c *AdvertiserConnection) HasSelectedAssets() bool {
	return c.HasToken() && c.AdAccountID != nil && *c.AdAccountID != ""
}

func (c *AdvertiserConnection) BusinessIDValue() string {
	if c.BusinessID == nil {
		return ""
	}
	return *c.BusinessID
}

func (c *AdvertiserConnection) AdAccountIDValue() string {
	if c.AdAccountID == nil {
		return ""
	}
	return NormalizeAdAccountID(*c.AdAccountID)
}

// Disconnect clears the token and every selected asset.
func (c *AdvertiserConnection) Disconnect() {
	c.AccessToken = ""
	c.TokenExpiresAt = nil
	c.BusinessID, c.BusinessName = nil, nil
	c.AdAccountID, c.AdAccountName, c.AdAccountCurrency = nil, nil, nil
	c.PageID, c.InstagramID = nil, nil
	c.PaymentConnected = false
	c.AdminConnected = false
	c.AdminBusinessRole, c.AdminAdAccountRole = nil, nil
	c.Status = ConnectionDisconnected
}

// PlatformMember is one user of a business or ad account as reported by the platform.
type PlatformMember struct {
	ID    string   `json:"id"`
	Name  string   `json:"name,omitempty"`
	Role  string   `json:"role,omitempty"`
	Tasks []string `json:"tasks,omitempty"`
}

// AdminAccess is the outcome of an admin/finance verification.
type AdminAccess struct {
	AdminConnected bool             `json:"admin_connected"`
	BusinessRole   *string          `json:"business_role"`
	AdAccountRole  *string          `json:"ad_account_role"`
	PlatformUserID string           `json:"platform_user_id,omitempty"`
	BusinessUsers  []PlatformMember `json:"business_users"`
	AdAccountUsers []PlatformMember `json:"ad_account_users"`
}

// AdminSnapshot is persisted for audit and debugging.
type AdminSnapshot struct {
	ID                  uuid.UUID       `json:"id"`
	CampaignID          uuid.UUID       `json:"campaign_id"`
	Access              AdminAccess     `json:"access"`
	BusinessMembersEdge string          `json:"business_members_edge,omitempty"`
	RawAdAccount        json.RawMessage `json:"raw_ad_account,omitempty"`
	CheckedAt           time.Time       `json:"checked_at"`
}
