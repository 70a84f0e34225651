package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/adlaunch/backend/internal/models"
	"github.com/adlaunch/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CampaignService struct {
	campaigns CampaignStore
	ads       AdStore
	audit     AuditStore
	validator *CampaignValidator
	log       *zap.Logger
}

func NewCampaignService(
	campaigns CampaignStore,
	ads AdStore,
	audit AuditStore,
	validator *CampaignValidator,
	log *zap.Logger,
) *CampaignService {
	return &CampaignService{
		campaigns: campaigns,
		ads:       ads,
		audit:     audit,
		validator: validator,
		log:       log,
	}
}

func (s *CampaignService) Create(ctx context.Context, userID uuid.UUID, c *models.Campaign) error {
	c.OwnerUserID = userID
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: campaign name is required", ErrInvalidInput)
	}

	if err := s.campaigns.Create(ctx, c); err != nil {
		return err
	}

	_ = s.audit.Log(ctx, models.AuditLog{
		ActorUserID: &userID,
		ActorType:   models.ActorUser,
		Action:      "campaign_created",
		EntityType:  "campaign",
		EntityID:    &c.ID,
	})

	return nil
}

// GetByID hides campaigns owned by other users behind ErrNotFound.
func (s *CampaignService) GetByID(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Campaign, error) {
	c, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.OwnerUserID != userID {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *CampaignService) List(ctx context.Context, userID uuid.UUID, f repositories.CampaignFilter) ([]models.Campaign, error) {
	f.OwnerUserID = &userID
	return s.campaigns.List(ctx, f)
}

// Update renames the campaign; setup changes go through UpdateSetup.
func (s *CampaignService) Update(ctx context.Context, id uuid.UUID, userID uuid.UUID, name string) (*models.Campaign, error) {
	existing, err := s.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: campaign name is required", ErrInvalidInput)
	}
	existing.Name = name
	if err := s.campaigns.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// UpdateSetup merges the patch into the stored setup and returns the new validation.
// The goal is locked while any ad of the campaign is live.
func (s *CampaignService) UpdateSetup(ctx context.Context, id uuid.UUID, userID uuid.UUID, patch models.SetupPatch) (*models.Campaign, CampaignValidation, error) {
	existing, err := s.GetByID(ctx, id, userID)
	if err != nil {
		return nil, CampaignValidation{}, err
	}

	if patch.Goal != nil && patch.Goal.Type != existing.Setup.GoalType() {
		live, err := s.ads.HasLiveAds(ctx, id)
		if err != nil {
			return nil, CampaignValidation{}, err
		}
		if live {
			return nil, CampaignValidation{}, ErrGoalLocked
		}
	}

	existing.Setup.Apply(patch)
	if err := s.campaigns.UpdateSetup(ctx, id, existing.Setup); err != nil {
		return nil, CampaignValidation{}, err
	}

	_ = s.audit.Log(ctx, models.AuditLog{
		ActorUserID: &userID,
		ActorType:   models.ActorUser,
		Action:      "campaign_setup_updated",
		EntityType:  "campaign",
		EntityID:    &id,
		Meta:        map[string]any{"sections": patchedSections(patch)},
	})

	return existing, s.validator.Validate(&existing.Setup), nil
}

// Validate returns the campaign validation without touching the platform.
func (s *CampaignService) Validate(ctx context.Context, id uuid.UUID, userID uuid.UUID) (CampaignValidation, error) {
	c, err := s.GetByID(ctx, id, userID)
	if err != nil {
		return CampaignValidation{}, err
	}
	return s.validator.Validate(&c.Setup), nil
}

func (s *CampaignService) Delete(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	if _, err := s.GetByID(ctx, id, userID); err != nil {
		return err
	}
	live, err := s.ads.HasLiveAds(ctx, id)
	if err != nil {
		return err
	}
	if live {
		return fmt.Errorf("%w: pause or archive live ads before deleting the campaign", ErrStatusConflict)
	}

	if err := s.campaigns.Delete(ctx, id); err != nil {
		return err
	}
	_ = s.audit.Log(ctx, models.AuditLog{
		ActorUserID: &userID,
		ActorType:   models.ActorUser,
		Action:      "campaign_deleted",
		EntityType:  "campaign",
		EntityID:    &id,
	})
	return nil
}

func patchedSections(p models.SetupPatch) []string {
	var out []string
	if p.Goal != nil {
		out = append(out, models.StepGoal)
	}
	if p.Location != nil {
		out = append(out, models.StepLocation)
	}
	if p.Budget != nil {
		out = append(out, models.StepBudget)
	}
	if p.AdCopy != nil {
		out = append(out, models.StepAdCopy)
	}
	if p.Creative != nil {
		out = append(out, models.StepCreative)
	}
	return out
}
