package services

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/adlaunch/backend/internal/models"
)

// DefaultMinDailyBudget is used when no minimum is configured.
const DefaultMinDailyBudget = 5.0

type CampaignValidation struct {
	HasGoal           bool                     `json:"has_goal"`
	HasLocation       bool                     `json:"has_location"`
	HasBudget         bool                     `json:"has_budget"`
	HasAdCopy         bool                     `json:"has_ad_copy"`
	HasImages         bool                     `json:"has_images"`
	HasDestination    bool                     `json:"has_destination"`
	AllFieldsComplete bool                     `json:"all_fields_complete"`
	Errors            []models.ValidationError `json:"errors"`
}

// CampaignValidator checks that the setup sections of a campaign are complete.
type CampaignValidator struct {
	minDailyBudget float64
}

func NewCampaignValidator(minDailyBudget float64) *CampaignValidator {
	if minDailyBudget <= 0 {
		minDailyBudget = DefaultMinDailyBudget
	}
	return &CampaignValidator{minDailyBudget: minDailyBudget}
}

func (v *CampaignValidator) Validate(state *models.CampaignSetupState) CampaignValidation {
	res := CampaignValidation{Errors: []models.ValidationError{}}
	if state == nil {
		res.Errors = append(res.Errors, critical(models.CodeNoCampaignState, "", "campaign setup has not been started",
			"Start the campaign setup by choosing a goal."))
		return res
	}

	res.HasGoal = v.checkGoal(state.Goal, &res.Errors)
	res.HasLocation = v.checkLocation(state.Location, &res.Errors)
	res.HasBudget = v.checkBudget(state.Budget, &res.Errors)
	res.HasAdCopy = v.checkAdCopy(state.AdCopy, &res.Errors)
	res.HasImages = v.checkCreative(state.Creative, &res.Errors)

	// Destination is not modelled separately yet and follows the goal.
	res.HasDestination = res.HasGoal

	res.AllFieldsComplete = res.HasGoal && res.HasLocation && res.HasBudget &&
		res.HasAdCopy && res.HasImages && res.HasDestination
	return res
}

func (v *CampaignValidator) checkGoal(goal *models.GoalSection, errs *[]models.ValidationError) bool {
	if goal == nil || strings.TrimSpace(goal.Type) == "" {
		*errs = append(*errs, critical(models.CodeMissingGoal, "goal", "campaign goal is not set",
			"Choose leads, website visits or calls as the campaign goal."))
		return false
	}
	if !models.IsValidGoal(goal.Type) {
		*errs = append(*errs, critical(models.CodeInvalidGoal, "goal",
			fmt.Sprintf("campaign goal %q is not supported", goal.Type),
			"Choose leads, website visits or calls as the campaign goal."))
		return false
	}
	return true
}

func (v *CampaignValidator) checkLocation(loc *models.LocationSection, errs *[]models.ValidationError) bool {
	if loc == nil || len(loc.Locations) == 0 {
		*errs = append(*errs, critical(models.CodeMissingLocation, "location", "no target location selected",
			"Add at least one country, region or city to target."))
		return false
	}
	return true
}

func (v *CampaignValidator) checkBudget(b *models.BudgetSection, errs *[]models.ValidationError) bool {
	if b == nil || math.IsNaN(b.DailyAmount) || math.IsInf(b.DailyAmount, 0) || b.DailyAmount <= 0 {
		*errs = append(*errs, critical(models.CodeInvalidBudget, "budget.daily_amount", "daily budget must be a positive amount",
			"Set a daily budget greater than zero."))
		return false
	}
	if b.DailyAmount < v.minDailyBudget {
		*errs = append(*errs, warning(models.CodeBudgetBelowMin, "budget.daily_amount",
			fmt.Sprintf("daily budget %.2f %s is below the recommended minimum of %.2f", b.DailyAmount, b.Currency, v.minDailyBudget),
			fmt.Sprintf("Raise the daily budget to at least %.2f for reliable delivery.", v.minDailyBudget)))
	}
	return true
}

// checkAdCopy reports incomplete variations as ERRORs; only an empty list blocks.
func (v *CampaignValidator) checkAdCopy(c *models.AdCopySection, errs *[]models.ValidationError) bool {
	if c == nil || len(c.Variations) == 0 {
		*errs = append(*errs, critical(models.CodeMissingAdCopy, "adCopy", "no ad copy written",
			"Write at least one headline and primary text."))
		return false
	}
	for i, cv := range c.Variations {
		if strings.TrimSpace(cv.Headline) == "" {
			*errs = append(*errs, errorf(models.CodeMissingHeadline, fmt.Sprintf("adCopy[%d].headline", i),
				fmt.Sprintf("ad copy variation %d has no headline", i+1)))
		}
		if strings.TrimSpace(cv.PrimaryText) == "" {
			*errs = append(*errs, errorf(models.CodeMissingPrimary, fmt.Sprintf("adCopy[%d].primaryText", i),
				fmt.Sprintf("ad copy variation %d has no primary text", i+1)))
		}
	}
	return true
}

func (v *CampaignValidator) checkCreative(c *models.CreativeSection, errs *[]models.ValidationError) bool {
	if c == nil || len(c.ImageURLs) == 0 {
		*errs = append(*errs, critical(models.CodeMissingImages, "creative", "no ad images added",
			"Upload or generate at least one image."))
		return false
	}
	for i, u := range c.ImageURLs {
		if !isValidImageURL(u) {
			*errs = append(*errs, errorf(models.CodeInvalidImageURL, fmt.Sprintf("creative[%d]", i),
				fmt.Sprintf("image %d has an invalid URL", i+1)))
		}
	}
	return true
}

func isValidImageURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func critical(code, field, msg, fix string) models.ValidationError {
	e := models.ValidationError{Code: code, Message: msg, Severity: models.SeverityCritical}
	if field != "" {
		e.Field = &field
	}
	if fix != "" {
		e.SuggestedFix = &fix
	}
	return e
}

func errorf(code, field, msg string) models.ValidationError {
	e := models.ValidationError{Code: code, Message: msg, Severity: models.SeverityError}
	if field != "" {
		e.Field = &field
	}
	return e
}

func warning(code, field, msg, fix string) models.ValidationError {
	e := critical(code, field, msg, fix)
	e.Severity = models.SeverityWarning
	return e
}
