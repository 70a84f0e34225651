package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Ad statuses
const (
	AdStatusDraft         = "draft"
	AdStatusPendingReview = "pending_review"
	AdStatusActive        = "active"
	AdStatusLearning      = "learning"
	AdStatusPaused        = "paused"
	AdStatusRejected      = "rejected"
	AdStatusFailed        = "failed"
	AdStatusArchived      = "archived"
)

// Review statuses reported by the ad platform
const (
	ReviewNotSubmitted     = "not_submitted"
	ReviewPending          = "pending"
	ReviewApproved         = "approved"
	ReviewRejected         = "rejected"
	ReviewChangesRequested = "changes_requested"
)

// Actions named in transition errors
const (
	ActionPublish = "publish"
	ActionPause   = "pause"
	ActionResume  = "resume"
	ActionArchive = "archive"
	ActionDelete  = "delete"
	ActionEdit    = "edit"
	ActionDraft   = "return to draft"
	ActionReview  = "apply review result"
)

// Valid state transitions: from -> []to
var ValidAdTransitions = map[string][]string{
	AdStatusDraft:         {AdStatusPendingReview, AdStatusArchived},
	AdStatusPendingReview: {AdStatusActive, AdStatusRejected, AdStatusFailed, AdStatusArchived},
	AdStatusActive:        {AdStatusPaused, AdStatusLearning, AdStatusArchived},
	AdStatusLearning:      {AdStatusActive, AdStatusPaused, AdStatusArchived},
	AdStatusPaused:        {AdStatusActive, AdStatusArchived},
	AdStatusRejected:      {AdStatusDraft, AdStatusPendingReview, AdStatusArchived},
	AdStatusFailed:        {AdStatusDraft, AdStatusPendingReview, AdStatusArchived},
	AdStatusArchived:      {},
}

func AllAdStatuses() []string {
	return []string{
		AdStatusDraft, AdStatusPendingReview, AdStatusActive, AdStatusLearning,
		AdStatusPaused, AdStatusRejected, AdStatusFailed, AdStatusArchived,
	}
}

func IsValidTransition(from, to string) bool {
	allowed, ok := ValidAdTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsPublishable: draft, rejected or failed, i.e. every status that may enter review.
func IsPublishable(status string) bool {
	return IsValidTransition(status, AdStatusPendingReview)
}

// IsEditable: live ads have to be paused before they can be edited.
func IsEditable(status string) bool {
	switch status {
	case AdStatusDraft, AdStatusRejected, AdStatusPaused:
		return len(ValidAdTransitions[status]) > 0
	}
	return false
}

func IsPausable(status string) bool {
	switch status {
	case AdStatusActive, AdStatusLearning:
		return IsValidTransition(status, AdStatusPaused)
	}
	return false
}

func IsResumable(status string) bool {
	return status == AdStatusPaused && IsValidTransition(status, AdStatusActive)
}

// IsDeletable excludes everything that is live or under review.
func IsDeletable(status string) bool {
	switch status {
	case AdStatusArchived:
		return true
	case AdStatusDraft, AdStatusRejected, AdStatusPaused:
		return IsValidTransition(status, AdStatusArchived)
	}
	return false
}

// TransitionError is returned for any (status, action) pair outside ValidAdTransitions.
type TransitionError struct {
	From   string
	To     string
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s an ad in status %q", e.Action, e.From)
}

func (e *TransitionError) ValidationError() ValidationError {
	field := "status"
	return ValidationError{
		Code:     CodeInvalidTransition,
		Field:    &field,
		Message:  e.Error(),
		Severity: SeverityError,
	}
}

// CheckTransition returns a *TransitionError when from -> to is not allowed.
func CheckTransition(from, to, action string) error {
	if !IsValidTransition(from, to) {
		return &TransitionError{From: from, To: to, Action: action}
	}
	return nil
}

// PublishBlockReason explains why an ad in the given status cannot be published.
// Empty for publishable statuses.
func PublishBlockReason(status string) string {
	if IsPublishable(status) {
		return ""
	}
	switch status {
	case AdStatusPendingReview:
		return "ad is already under review"
	case AdStatusActive, AdStatusLearning:
		return "ad is already live, pause it first"
	case AdStatusPaused:
		return "ad is paused, resume it instead of publishing again"
	case AdStatusArchived:
		return "ad is archived and can no longer be published"
	}
	if _, known := ValidAdTransitions[status]; known {
		return fmt.Sprintf("ad in status %q cannot be published", status)
	}
	return fmt.Sprintf("ad status %q is unknown", status)
}

type Ad struct {
	ID                    uuid.UUID  `json:"id"`
	CampaignID            uuid.UUID  `json:"campaign_id"`
	Name                  string     `json:"name"`
	Status                string     `json:"status"`
	ReviewStatus          string     `json:"review_status"`
	SelectedCopyIndex     *int       `json:"selected_copy_index,omitempty"`
	SelectedCreativeIndex *int       `json:"selected_creative_index,omitempty"`
	PlatformAdID          *string    `json:"platform_ad_id,omitempty"`
	PublishAttempt        int        `json:"publish_attempt"`
	LastError             *string    `json:"last_error,omitempty"`
	PublishedAt           *time.Time `json:"published_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// PublishReference tags the platform ad created by the current publish attempt,
// so a retry is never matched against the ad of an earlier attempt.
func (a *Ad) PublishReference() string {
	if a.PublishAttempt == 0 {
		return a.ID.String()
	}
	return fmt.Sprintf("%s.%d", a.ID, a.PublishAttempt)
}

// IsLive is true while the platform may be delivering the ad.
func (a *Ad) IsLive() bool {
	return a.Status == AdStatusActive || a.Status == AdStatusLearning
}

// Setup steps reported in CompletedSteps
const (
	StepGoal       = "goal"
	StepLocation   = "location"
	StepBudget     = "budget"
	StepAdCopy     = "ad_copy"
	StepCreative   = "creative"
	StepConnection = "connection"
)

// CompletedSteps derives the finished setup steps; it is never persisted.
func CompletedSteps(hasGoal, hasLocation, hasBudget, hasAdCopy, hasImages bool, conn *AdvertiserConnection) []string {
	steps := make([]string, 0, 6)
	if hasGoal {
		steps = append(steps, StepGoal)
	}
	if hasLocation {
		steps = append(steps, StepLocation)
	}
	if hasBudget {
		steps = append(steps, StepBudget)
	}
	if hasAdCopy {
		steps = append(steps, StepAdCopy)
	}
	if hasImages {
		steps = append(steps, StepCreative)
	}
	if conn != nil && conn.HasSelectedAssets() {
		steps = append(steps, StepConnection)
	}
	return steps
}
