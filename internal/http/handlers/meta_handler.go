package handlers

import (
	"github.com/adlaunch/backend/internal/http/dto"
	"github.com/adlaunch/backend/internal/models"
	"github.com/gofiber/fiber/v2"
)

type MetaHandler struct{}

func NewMetaHandler() *MetaHandler {
	return &MetaHandler{}
}

type MetaGoal struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type MetaAdStatus struct {
	ID          string   `json:"id"`
	Transitions []string `json:"transitions"`
	Publishable bool     `json:"publishable"`
	Editable    bool     `json:"editable"`
	Pausable    bool     `json:"pausable"`
	Resumable   bool     `json:"resumable"`
	Deletable   bool     `json:"deletable"`
}

var goalLabels = map[string]string{
	models.GoalLeads:         "Get leads",
	models.GoalWebsiteVisits: "Website visits",
	models.GoalCalls:         "Phone calls",
}

func (h *MetaHandler) GetGoals(c *fiber.Ctx) error {
	goals := make([]MetaGoal, 0, len(goalLabels))
	for _, g := range models.AllGoals() {
		goals = append(goals, MetaGoal{ID: g, Label: goalLabels[g]})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: goals})
}

// GetAdStatuses exposes the transition table so clients can enable the right actions.
func (h *MetaHandler) GetAdStatuses(c *fiber.Ctx) error {
	statuses := make([]MetaAdStatus, 0, len(models.ValidAdTransitions))
	for _, s := range models.AllAdStatuses() {
		statuses = append(statuses, MetaAdStatus{
			ID:          s,
			Transitions: append([]string{}, models.ValidAdTransitions[s]...),
			Publishable: models.IsPublishable(s),
			Editable:    models.IsEditable(s),
			Pausable:    models.IsPausable(s),
			Resumable:   models.IsResumable(s),
			Deletable:   models.IsDeletable(s),
		})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: statuses})
}
