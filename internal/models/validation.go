package models

// Severity levels. CRITICAL blocks publishing, WARNING never does.
const (
	SeverityCritical = "CRITICAL"
	SeverityError    = "ERROR"
	SeverityWarning  = "WARNING"
)

// Validation error codes
const (
	CodeNoCampaignState   = "NO_CAMPAIGN_STATE"
	CodeMissingGoal       = "MISSING_GOAL"
	CodeInvalidGoal       = "INVALID_GOAL"
	CodeMissingLocation   = "MISSING_LOCATION"
	CodeInvalidBudget     = "INVALID_BUDGET"
	CodeBudgetBelowMin    = "BUDGET_BELOW_MINIMUM"
	CodeMissingAdCopy     = "MISSING_AD_COPY"
	CodeMissingHeadline   = "MISSING_HEADLINE"
	CodeMissingPrimary    = "MISSING_PRIMARY_TEXT"
	CodeMissingImages     = "MISSING_IMAGES"
	CodeInvalidImageURL   = "INVALID_IMAGE_URL"
	CodeNoPaymentMethod   = "NO_PAYMENT_METHOD"
	CodeAccountNotActive  = "ACCOUNT_NOT_ACTIVE"
	CodeCannotCreate      = "CANNOT_CREATE_CAMPAIGNS"
	CodeAccountDisabled   = "ACCOUNT_DISABLED"
	CodeSpendLimitReached = "SPENDING_LIMIT_REACHED"
	CodeSpendLimitLow     = "SPENDING_LIMIT_LOW"
	CodeAccountInfoFailed = "ACCOUNT_INFO_FAILED"
	CodeNoConnection      = "NO_PLATFORM_CONNECTION"
	CodeTokenExpired      = "PLATFORM_TOKEN_EXPIRED"
	CodeNotPublishable    = "AD_NOT_PUBLISHABLE"
	CodeInvalidTransition = "INVALID_STATUS_TRANSITION"
	CodeGoalLocked        = "GOAL_LOCKED"
)

type ValidationError struct {
	Code         string  `json:"code"`
	Field        *string `json:"field,omitempty"`
	Message      string  `json:"message"`
	Severity     string  `json:"severity"`
	SuggestedFix *string `json:"suggested_fix,omitempty"`
}

func (e ValidationError) Error() string {
	return e.Code + ": " + e.Message
}

func (e ValidationError) Blocking() bool {
	return e.Severity == SeverityCritical
}

// HasCritical reports whether any finding blocks the operation.
func HasCritical(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Blocking() {
			return true
		}
	}
	return false
}

// CountBySeverity is used by handlers to build response summaries.
func CountBySeverity(errs []ValidationError, severity string) int {
	n := 0
	for _, e := range errs {
		if e.Severity == severity {
			n++
		}
	}
	return n
}
