package services

import (
	"context"
	"fmt"
	"time"

	"github.com/adlaunch/backend/internal/models"
	"go.uber.org/zap"
)

type FundingCheck struct {
	HasPaymentMethod  bool                     `json:"has_payment_method"`
	AccountActive     bool                     `json:"account_active"`
	CanCreateCampaign bool                     `json:"can_create_campaign"`
	HasFunding        bool                     `json:"has_funding"`
	Determined        bool                     `json:"determined"` // false when the platform could not be reached
	AccountStatus     int                      `json:"account_status,omitempty"`
	AccountStatusName string                   `json:"account_status_name,omitempty"`
	DisableReason     string                   `json:"disable_reason,omitempty"`
	SpendCap          *int64                   `json:"spend_cap,omitempty"`
	AmountSpent       *int64                   `json:"amount_spent,omitempty"`
	Currency          string                   `json:"currency,omitempty"`
	Errors            []models.ValidationError `json:"errors"`
}

// FundingValidator checks that the connected ad account can pay for and create campaigns.
type FundingValidator struct {
	platform         AdPlatform
	timeout          time.Duration
	lowHeadroomMinor int64
	log              *zap.Logger
}

func NewFundingValidator(platform AdPlatform, timeout time.Duration, lowHeadroomMinor int64, log *zap.Logger) *FundingValidator {
	if lowHeadroomMinor <= 0 {
		lowHeadroomMinor = 1000
	}
	return &FundingValidator{
		platform:         platform,
		timeout:          timeout,
		lowHeadroomMinor: lowHeadroomMinor,
		log:              log,
	}
}

// Validate never fails: platform errors become a single ACCOUNT_INFO_FAILED finding.
func (v *FundingValidator) Validate(ctx context.Context, token, adAccountID string, hasPaymentConnected bool) FundingCheck {
	check := FundingCheck{HasPaymentMethod: hasPaymentConnected, Errors: []models.ValidationError{}}

	if !hasPaymentConnected {
		check.Errors = append(check.Errors, critical(models.CodeNoPaymentMethod, "payment",
			"no payment method is connected to the ad account",
			"Add a payment method to the ad account in the ad platform billing settings."))
	}

	accountID := models.NormalizeAdAccountID(adAccountID)

	callCtx := ctx
	if v.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	info, err := v.platform.GetAdAccount(callCtx, token, accountID)
	if err != nil {
		v.log.Warn("ad account info unavailable",
			zap.String("ad_account_id", accountID),
			zap.Error(err),
		)
		check.Errors = append(check.Errors, errorf(models.CodeAccountInfoFailed, "ad_account",
			fmt.Sprintf("could not load ad account status: %v", err)))
		return check
	}

	check.Determined = true
	check.AccountStatus = info.AccountStatus
	check.AccountStatusName = AccountStatusName(info.AccountStatus)
	check.Currency = info.Currency
	check.AccountActive = info.AccountStatus == AccountStatusActive
	check.CanCreateCampaign = info.HasCapability(CapabilityCreateCampaigns)

	if !check.AccountActive {
		check.Errors = append(check.Errors, critical(models.CodeAccountNotActive, "ad_account",
			fmt.Sprintf("ad account is not active (status: %s)", check.AccountStatusName),
			"Resolve the account status in the ad platform before publishing."))
	} else if !check.CanCreateCampaign {
		check.Errors = append(check.Errors, critical(models.CodeCannotCreate, "ad_account",
			"ad account is not allowed to create campaigns",
			"Check the ad account permissions or choose another ad account."))
	}

	if info.Disabled() {
		check.DisableReason = string(info.DisableReason)
		check.Errors = append(check.Errors, critical(models.CodeAccountDisabled, "ad_account",
			fmt.Sprintf("ad account is disabled (reason: %s)", check.DisableReason),
			"Contact the ad platform support to re-enable the account."))
	}

	if spendCap, ok := info.SpendCap.Int64(); ok && spendCap > 0 {
		spent, _ := info.AmountSpent.Int64()
		check.SpendCap = &spendCap
		check.AmountSpent = &spent
		if spent >= spendCap {
			check.Errors = append(check.Errors, critical(models.CodeSpendLimitReached, "ad_account.spend_cap",
				"ad account spending limit has been reached",
				"Raise or remove the account spending limit."))
		} else if spendCap-spent < v.lowHeadroomMinor {
			check.Errors = append(check.Errors, warning(models.CodeSpendLimitLow, "ad_account.spend_cap",
				fmt.Sprintf("only %s %s left before the account spending limit", formatMinor(spendCap-spent), info.Currency),
				"Consider raising the account spending limit."))
		}
	}

	check.HasFunding = check.HasPaymentMethod && check.AccountActive && check.CanCreateCampaign
	return check
}

func formatMinor(v int64) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
