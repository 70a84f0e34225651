package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adlaunch/backend/internal/models"
	"go.uber.org/zap"
)

// Ad account status codes reported by the platform
const (
	AccountStatusActive            = 1
	AccountStatusDisabled          = 2
	AccountStatusUnsettled         = 3
	AccountStatusPendingRiskReview = 7
	AccountStatusPendingSettlement = 8
	AccountStatusInGracePeriod     = 9
	AccountStatusPendingClosure    = 100
	AccountStatusClosed            = 101
	AccountStatusAnyActive         = 201
	AccountStatusAnyClosed         = 202
)

var accountStatusNames = map[int]string{
	AccountStatusActive:            "ACTIVE",
	AccountStatusDisabled:          "DISABLED",
	AccountStatusUnsettled:         "UNSETTLED",
	AccountStatusPendingRiskReview: "PENDING_RISK_REVIEW",
	AccountStatusPendingSettlement: "PENDING_SETTLEMENT",
	AccountStatusInGracePeriod:     "IN_GRACE_PERIOD",
	AccountStatusPendingClosure:    "PENDING_CLOSURE",
	AccountStatusClosed:            "CLOSED",
	AccountStatusAnyActive:         "ANY_ACTIVE",
	AccountStatusAnyClosed:         "ANY_CLOSED",
}

func AccountStatusName(code int) string {
	if name, ok := accountStatusNames[code]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_%d", code)
}

// CapabilityCreateCampaigns is the ad account capability required to create campaigns.
const CapabilityCreateCampaigns = "CAN_CREATE_CAMPAIGNS"

// AdPlatform is the subset of the ad platform API used by the readiness pipeline.
type AdPlatform interface {
	GetMe(ctx context.Context, token string) (*PlatformUser, error)
	GetAdAccount(ctx context.Context, token, adAccountID string) (*AdAccountInfo, error)
	ListBusinessMembers(ctx context.Context, token, businessID, edge string) ([]models.PlatformMember, error)
	ListAdAccountUsers(ctx context.Context, token, adAccountID string) ([]models.PlatformMember, error)
	PublishAd(ctx context.Context, token, adAccountID string, payload PublishPayload) (string, error)
	FindAdByReference(ctx context.Context, token, adAccountID, reference string) (string, bool, error)
	GetAdReviewStatus(ctx context.Context, token, platformAdID string) (string, error)
	UpdateAdStatus(ctx context.Context, token, platformAdID, status string) error
}

// Live statuses accepted by UpdateAdStatus
const (
	PlatformStatusActive   = "ACTIVE"
	PlatformStatusPaused   = "PAUSED"
	PlatformStatusArchived = "ARCHIVED"
)

// PlatformError is decoded from the platform error envelope on non-2xx responses.
type PlatformError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       int    `json:"code"`
}

func (e *PlatformError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ad platform returned %d", e.StatusCode)
	}
	return fmt.Sprintf("ad platform returned %d: %s (code %d)", e.StatusCode, e.Message, e.Code)
}

// FlexString accepts both JSON strings and numbers.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// Int64 returns the value in minor units and whether it was present.
func (f FlexString) Int64() (int64, bool) {
	s := strings.TrimSpace(string(f))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

type PlatformUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type AdAccountInfo struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	AccountStatus int             `json:"account_status"`
	DisableReason FlexString      `json:"disable_reason"`
	SpendCap      FlexString      `json:"spend_cap"`
	AmountSpent   FlexString      `json:"amount_spent"`
	Currency      string          `json:"currency"`
	Capabilities  []string        `json:"capabilities"`
	Raw           json.RawMessage `json:"-"`
}

// Disabled treats "0" as the platform's NONE reason.
func (a *AdAccountInfo) Disabled() bool {
	r := strings.TrimSpace(string(a.DisableReason))
	return r != "" && r != "0" && !strings.EqualFold(r, "NONE")
}

func (a *AdAccountInfo) HasCapability(capability string) bool {
	for _, c := range a.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// PublishPayload is the fully assembled ad sent to the platform.
type PublishPayload struct {
	Reference   string                  `json:"reference"`
	Name        string                  `json:"name"`
	Goal        string                  `json:"objective"`
	PageID      string                  `json:"page_id,omitempty"`
	InstagramID string                  `json:"instagram_actor_id,omitempty"`
	Headline    string                  `json:"headline"`
	PrimaryText string                  `json:"primary_text"`
	Description string                  `json:"description,omitempty"`
	CTA         string                  `json:"call_to_action,omitempty"`
	ImageURL    string                  `json:"image_url"`
	DailyBudget int64                   `json:"daily_budget"` // minor units
	Currency    string                  `json:"currency"`
	StartTime   *time.Time              `json:"start_time,omitempty"`
	EndTime     *time.Time              `json:"end_time,omitempty"`
	Locations   []models.TargetLocation `json:"locations"`
}

// PlatformClient talks to the ad platform REST API.
type PlatformClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewPlatformClient(baseURL string, timeout time.Duration, log *zap.Logger) *PlatformClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PlatformClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

func adAccountPath(adAccountID string) string {
	return models.AdAccountPrefix + models.NormalizeAdAccountID(adAccountID)
}

type listEnvelope struct {
	Data []models.PlatformMember `json:"data"`
}

func (c *PlatformClient) GetMe(ctx context.Context, token string) (*PlatformUser, error) {
	var user PlatformUser
	if _, err := c.do(ctx, http.MethodGet, "/me", url.Values{"fields": {"id,name"}}, token, nil, &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, fmt.Errorf("ad platform returned no user id")
	}
	return &user, nil
}

func (c *PlatformClient) GetAdAccount(ctx context.Context, token, adAccountID string) (*AdAccountInfo, error) {
	q := url.Values{"fields": {"id,name,account_status,disable_reason,spend_cap,amount_spent,currency,capabilities"}}
	var info AdAccountInfo
	raw, err := c.do(ctx, http.MethodGet, "/"+adAccountPath(adAccountID), q, token, nil, &info)
	if err != nil {
		return nil, err
	}
	info.Raw = raw
	return &info, nil
}

func (c *PlatformClient) ListBusinessMembers(ctx context.Context, token, businessID, edge string) ([]models.PlatformMember, error) {
	var env listEnvelope
	path := fmt.Sprintf("/%s/%s", url.PathEscape(businessID), edge)
	if _, err := c.do(ctx, http.MethodGet, path, url.Values{"fields": {"id,name,role"}}, token, nil, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *PlatformClient) ListAdAccountUsers(ctx context.Context, token, adAccountID string) ([]models.PlatformMember, error) {
	var env listEnvelope
	path := fmt.Sprintf("/%s/users", adAccountPath(adAccountID))
	if _, err := c.do(ctx, http.MethodGet, path, url.Values{"fields": {"id,name,tasks"}}, token, nil, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *PlatformClient) PublishAd(ctx context.Context, token, adAccountID string, payload PublishPayload) (string, error) {
	var result struct {
		ID string `json:"id"`
	}
	path := fmt.Sprintf("/%s/ads", adAccountPath(adAccountID))
	if _, err := c.do(ctx, http.MethodPost, path, nil, token, payload, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", fmt.Errorf("ad platform accepted the ad but returned no id")
	}
	return result.ID, nil
}

func (c *PlatformClient) FindAdByReference(ctx context.Context, token, adAccountID, reference string) (string, bool, error) {
	var env struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/%s/ads", adAccountPath(adAccountID))
	q := url.Values{"fields": {"id"}, "reference": {reference}}
	if _, err := c.do(ctx, http.MethodGet, path, q, token, nil, &env); err != nil {
		return "", false, err
	}
	if len(env.Data) == 0 {
		return "", false, nil
	}
	return env.Data[0].ID, true, nil
}

func (c *PlatformClient) GetAdReviewStatus(ctx context.Context, token, platformAdID string) (string, error) {
	var result struct {
		EffectiveStatus string `json:"effective_status"`
	}
	path := "/" + url.PathEscape(platformAdID)
	if _, err := c.do(ctx, http.MethodGet, path, url.Values{"fields": {"effective_status"}}, token, nil, &result); err != nil {
		return "", err
	}
	return ReviewStatusFromEffective(result.EffectiveStatus), nil
}

func (c *PlatformClient) UpdateAdStatus(ctx context.Context, token, platformAdID, status string) error {
	var result struct {
		Success bool `json:"success"`
	}
	path := "/" + url.PathEscape(platformAdID)
	if _, err := c.do(ctx, http.MethodPost, path, nil, token, map[string]string{"status": status}, &result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("ad platform did not confirm status %s for ad %s", status, platformAdID)
	}
	return nil
}

// ReviewStatusFromEffective maps the platform delivery status onto review statuses.
func ReviewStatusFromEffective(effective string) string {
	switch strings.ToUpper(effective) {
	case "ACTIVE", "PAUSED", "CAMPAIGN_PAUSED", "ADSET_PAUSED":
		return models.ReviewApproved
	case "DISAPPROVED":
		return models.ReviewRejected
	case "WITH_ISSUES":
		return models.ReviewChangesRequested
	case "PENDING_REVIEW", "IN_PROCESS", "PREAPPROVED":
		return models.ReviewPending
	}
	return models.ReviewNotSubmitted
}

// do performs the request and decodes a 2xx body into out. The raw body is returned for auditing.
func (c *PlatformClient) do(ctx context.Context, method, path string, query url.Values, token string, body any, out any) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ad platform unavailable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read ad platform response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env struct {
			Error PlatformError `json:"error"`
		}
		_ = json.Unmarshal(raw, &env)
		env.Error.StatusCode = resp.StatusCode
		c.log.Debug("ad platform error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", env.Error.Message),
		)
		return nil, &env.Error
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, fmt.Errorf("malformed ad platform response: %w", err)
		}
	}
	return raw, nil
}
