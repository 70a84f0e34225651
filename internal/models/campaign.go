package models

import (
	"time"

	"github.com/google/uuid"
)

// Campaign goals
const (
	GoalLeads         = "leads"
	GoalWebsiteVisits = "website_visits"
	GoalCalls         = "calls"
)

func IsValidGoal(g string) bool {
	return g == GoalLeads || g == GoalWebsiteVisits || g == GoalCalls
}

func AllGoals() []string {
	return []string{GoalLeads, GoalWebsiteVisits, GoalCalls}
}

// Location inclusion modes
const (
	LocationInclude = "include"
	LocationExclude = "exclude"
)

type Campaign struct {
	ID          uuid.UUID          `json:"id"`
	OwnerUserID uuid.UUID          `json:"owner_user_id"`
	Name        string             `json:"name"`
	Setup       CampaignSetupState `json:"setup"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// CampaignSetupState holds the per-section setup of a campaign. A nil section is
// absent; a present section can still fail validation.
type CampaignSetupState struct {
	Goal     *GoalSection     `json:"goal,omitempty"`
	Location *LocationSection `json:"location,omitempty"`
	Budget   *BudgetSection   `json:"budget,omitempty"`
	AdCopy   *AdCopySection   `json:"ad_copy,omitempty"`
	Creative *CreativeSection `json:"creative,omitempty"`
}

type GoalSection struct {
	Type string `json:"type"`
}

type LocationSection struct {
	Locations []TargetLocation `json:"locations"`
}

type TargetLocation struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"` // country / region / city / zip
	Lat      *float64 `json:"lat,omitempty"`
	Lng      *float64 `json:"lng,omitempty"`
	RadiusKm *float64 `json:"radius_km,omitempty"`
	Mode     string   `json:"mode"`
}

type BudgetSection struct {
	DailyAmount float64    `json:"daily_amount"`
	Currency    string     `json:"currency"` // ISO 4217
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

type AdCopySection struct {
	Variations []CopyVariation `json:"variations"`
}

type CopyVariation struct {
	Headline    string  `json:"headline"`
	PrimaryText string  `json:"primary_text"`
	Description *string `json:"description,omitempty"`
	CTA         *string `json:"cta,omitempty"`
}

type CreativeSection struct {
	ImageURLs     []string `json:"image_urls"`
	SelectedIndex int      `json:"selected_index"`
}

// SetupPatch replaces only the sections that are set.
type SetupPatch struct {
	Goal     *GoalSection     `json:"goal,omitempty"`
	Location *LocationSection `json:"location,omitempty"`
	Budget   *BudgetSection   `json:"budget,omitempty"`
	AdCopy   *AdCopySection   `json:"ad_copy,omitempty"`
	Creative *CreativeSection `json:"creative,omitempty"`
}

func (s *CampaignSetupState) Apply(p SetupPatch) {
	if p.Goal != nil {
		s.Goal = p.Goal
	}
	if p.Location != nil {
		s.Location = p.Location
	}
	if p.Budget != nil {
		s.Budget = p.Budget
	}
	if p.AdCopy != nil {
		s.AdCopy = p.AdCopy
	}
	if p.Creative != nil {
		s.Creative = p.Creative
	}
}

// GoalType returns "" when the goal section is absent.
func (s *CampaignSetupState) GoalType() string {
	if s == nil || s.Goal == nil {
		return ""
	}
	return s.Goal.Type
}
