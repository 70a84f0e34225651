package dto

import (
	"time"

	"github.com/adlaunch/backend/internal/models"
)

// Campaigns

type CreateCampaignRequest struct {
	Name  string             `json:"name"`
	Setup *models.SetupPatch `json:"setup,omitempty"`
}

type UpdateCampaignRequest struct {
	Name string `json:"name"`
}

// UpdateSetupRequest replaces only the sections present in the body.
type UpdateSetupRequest = models.SetupPatch

// Connection

type ConnectRequest struct {
	AccessToken    string     `json:"access_token"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
}

type SelectAssetsRequest struct {
	BusinessID        *string `json:"business_id,omitempty"`
	BusinessName      *string `json:"business_name,omitempty"`
	AdAccountID       string  `json:"ad_account_id"`
	AdAccountName     *string `json:"ad_account_name,omitempty"`
	AdAccountCurrency *string `json:"ad_account_currency,omitempty"`
	PageID            *string `json:"page_id,omitempty"`
	InstagramID       *string `json:"instagram_id,omitempty"`
}

type VerifyFundingRequest struct {
	PaymentConfirmed *bool `json:"payment_confirmed,omitempty"`
}

// Ads

type CreateAdRequest struct {
	Name string `json:"name"`
}

type UpdateSelectionRequest struct {
	CopyIndex     *int `json:"copy_index,omitempty"`
	CreativeIndex *int `json:"creative_index,omitempty"`
}
