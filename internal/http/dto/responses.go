package dto

import "github.com/adlaunch/backend/internal/models"

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

// ValidationResponse carries every finding at once so the client can show the full list.
type ValidationResponse struct {
	OK      bool                     `json:"ok"`
	Error   string                   `json:"error,omitempty"`
	Errors  []models.ValidationError `json:"errors"`
	Summary ValidationSummary        `json:"summary"`
	Data    any                      `json:"data,omitempty"`
}

type ValidationSummary struct {
	Critical int `json:"critical"`
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
}

func Summarize(errs []models.ValidationError) ValidationSummary {
	return ValidationSummary{
		Critical: models.CountBySeverity(errs, models.SeverityCritical),
		Errors:   models.CountBySeverity(errs, models.SeverityError),
		Warnings: models.CountBySeverity(errs, models.SeverityWarning),
	}
}

type DeleteAdResponse struct {
	Deleted  bool       `json:"deleted"`
	Archived *models.Ad `json:"archived,omitempty"`
}
