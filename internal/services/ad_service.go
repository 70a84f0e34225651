package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/adlaunch/backend/internal/events"
	"github.com/adlaunch/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AdService handles ad lifecycle operations other than publishing.
type AdService struct {
	ads         AdStore
	campaigns   CampaignStore
	connections ConnectionStore
	audit       AuditStore
	platform    AdPlatform
	tr          *adTransitioner
	log         *zap.Logger
}

func NewAdService(
	ads AdStore,
	campaigns CampaignStore,
	connections ConnectionStore,
	audit AuditStore,
	platform AdPlatform,
	publisher events.Publisher,
	log *zap.Logger,
) *AdService {
	return &AdService{
		ads:         ads,
		campaigns:   campaigns,
		connections: connections,
		audit:       audit,
		platform:    platform,
		tr:          &adTransitioner{ads: ads, audit: audit, publisher: publisher, log: log},
		log:         log,
	}
}

func (s *AdService) Create(ctx context.Context, campaignID, userID uuid.UUID, name string) (*models.Ad, error) {
	if _, err := s.ownedCampaign(ctx, campaignID, userID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: ad name is required", ErrInvalidInput)
	}

	ad := &models.Ad{
		CampaignID:   campaignID,
		Name:         name,
		Status:       models.AdStatusDraft,
		ReviewStatus: models.ReviewNotSubmitted,
	}
	if err := s.ads.Create(ctx, ad); err != nil {
		return nil, err
	}

	_ = s.audit.Log(ctx, models.AuditLog{
		ActorUserID: &userID,
		ActorType:   models.ActorUser,
		Action:      "ad_created",
		EntityType:  "ad",
		EntityID:    &ad.ID,
		Meta:        map[string]any{"campaign_id": campaignID.String()},
	})
	return ad, nil
}

func (s *AdService) Get(ctx context.Context, adID, userID uuid.UUID) (*models.Ad, error) {
	ad, _, err := s.ownedAd(ctx, adID, userID)
	return ad, err
}

func (s *AdService) ListByCampaign(ctx context.Context, campaignID, userID uuid.UUID) ([]models.Ad, error) {
	if _, err := s.ownedCampaign(ctx, campaignID, userID); err != nil {
		return nil, err
	}
	return s.ads.ListByCampaign(ctx, campaignID)
}

func (s *AdService) Pause(ctx context.Context, adID, userID uuid.UUID) (*models.Ad, error) {
	return s.changeLiveStatus(ctx, adID, userID, models.AdStatusPaused, models.ActionPause, PlatformStatusPaused)
}

func (s *AdService) Resume(ctx context.Context, adID, userID uuid.UUID) (*models.Ad, error) {
	return s.changeLiveStatus(ctx, adID, userID, models.AdStatusActive, models.ActionResume, PlatformStatusActive)
}

func (s *AdService) Archive(ctx context.Context, adID, userID uuid.UUID) (*models.Ad, error) {
	return s.changeLiveStatus(ctx, adID, userID, models.AdStatusArchived, models.ActionArchive, PlatformStatusArchived)
}

// ReturnToDraft moves a rejected or failed ad back to editing.
func (s *AdService) ReturnToDraft(ctx context.Context, adID, userID uuid.UUID) (*models.Ad, error) {
	ad, campaign, err := s.ownedAd(ctx, adID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.tr.transition(ctx, ad, campaign.OwnerUserID, models.AdStatusDraft, models.ActionDraft, userActor(userID)); err != nil {
		return nil, err
	}
	return ad, nil
}

// Delete removes ads the platform never saw. An ad known to the platform is archived
// first and only removed on a second delete.
func (s *AdService) Delete(ctx context.Context, adID, userID uuid.UUID) (bool, *models.Ad, error) {
	ad, campaign, err := s.ownedAd(ctx, adID, userID)
	if err != nil {
		return false, nil, err
	}
	if !models.IsDeletable(ad.Status) {
		return false, nil, &models.TransitionError{From: ad.Status, To: models.AdStatusArchived, Action: models.ActionDelete}
	}

	if ad.PlatformAdID != nil && ad.Status != models.AdStatusArchived {
		if err := s.pushPlatformStatus(ctx, ad, PlatformStatusArchived); err != nil {
			return false, nil, err
		}
		if err := s.tr.transition(ctx, ad, campaign.OwnerUserID, models.AdStatusArchived, models.ActionDelete, userActor(userID)); err != nil {
			return false, nil, err
		}
		return false, ad, nil
	}

	if err := s.ads.Delete(ctx, ad.ID); err != nil {
		return false, nil, err
	}
	_ = s.audit.Log(ctx, models.AuditLog{
		ActorUserID: &userID,
		ActorType:   models.ActorUser,
		Action:      "ad_deleted",
		EntityType:  "ad",
		EntityID:    &ad.ID,
		Meta:        map[string]any{"status": ad.Status},
	})
	return true, nil, nil
}

// UpdateSelection picks the copy and creative variations used on publish.
func (s *AdService) UpdateSelection(ctx context.Context, adID, userID uuid.UUID, copyIndex, creativeIndex *int) (*models.Ad, error) {
	ad, campaign, err := s.ownedAd(ctx, adID, userID)
	if err != nil {
		return nil, err
	}
	if !models.IsEditable(ad.Status) {
		return nil, &models.TransitionError{From: ad.Status, To: ad.Status, Action: models.ActionEdit}
	}

	setup := campaign.Setup
	if copyIndex != nil {
		n := 0
		if setup.AdCopy != nil {
			n = len(setup.AdCopy.Variations)
		}
		if *copyIndex < 0 || *copyIndex >= n {
			return nil, fmt.Errorf("%w: copy index %d out of range (%d variations)", ErrInvalidInput, *copyIndex, n)
		}
	}
	if creativeIndex != nil {
		n := 0
		if setup.Creative != nil {
			n = len(setup.Creative.ImageURLs)
		}
		if *creativeIndex < 0 || *creativeIndex >= n {
			return nil, fmt.Errorf("%w: creative index %d out of range (%d images)", ErrInvalidInput, *creativeIndex, n)
		}
	}

	if err := s.ads.UpdateSelection(ctx, ad.ID, copyIndex, creativeIndex); err != nil {
		return nil, err
	}
	ad.SelectedCopyIndex = copyIndex
	ad.SelectedCreativeIndex = creativeIndex
	return ad, nil
}

func (s *AdService) GetEvents(ctx context.Context, adID, userID uuid.UUID) ([]models.AuditLog, error) {
	if _, _, err := s.ownedAd(ctx, adID, userID); err != nil {
		return nil, err
	}
	return s.audit.GetByEntity(ctx, "ad", adID, 100, 0)
}

func (s *AdService) changeLiveStatus(ctx context.Context, adID, userID uuid.UUID, target, action, platformStatus string) (*models.Ad, error) {
	ad, campaign, err := s.ownedAd(ctx, adID, userID)
	if err != nil {
		return nil, err
	}
	if err := models.CheckTransition(ad.Status, target, action); err != nil {
		return nil, err
	}
	// A publish in flight records its platform id later; archiving now would strand it.
	if ad.Status == models.AdStatusPendingReview && ad.PlatformAdID == nil {
		return nil, fmt.Errorf("%w: ad is still being submitted to the ad platform", ErrStatusConflict)
	}
	if ad.PlatformAdID != nil {
		if err := s.pushPlatformStatus(ctx, ad, platformStatus); err != nil {
			return nil, err
		}
	}
	if err := s.tr.transition(ctx, ad, campaign.OwnerUserID, target, action, userActor(userID)); err != nil {
		return nil, err
	}
	return ad, nil
}

func (s *AdService) pushPlatformStatus(ctx context.Context, ad *models.Ad, status string) error {
	conn, err := s.connections.GetByCampaign(ctx, ad.CampaignID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotConnected
		}
		return err
	}
	if !conn.HasToken() {
		return ErrNotConnected
	}
	if err := s.platform.UpdateAdStatus(ctx, conn.AccessToken, *ad.PlatformAdID, status); err != nil {
		s.log.Warn("platform status update failed",
			zap.String("ad_id", ad.ID.String()),
			zap.String("status", status),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrPlatformUpdate, err)
	}
	return nil
}

func (s *AdService) ownedCampaign(ctx context.Context, campaignID, userID uuid.UUID) (*models.Campaign, error) {
	c, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.OwnerUserID != userID {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *AdService) ownedAd(ctx context.Context, adID, userID uuid.UUID) (*models.Ad, *models.Campaign, error) {
	ad, err := s.ads.GetByID(ctx, adID)
	if err != nil {
		return nil, nil, err
	}
	c, err := s.ownedCampaign(ctx, ad.CampaignID, userID)
	if err != nil {
		return nil, nil, err
	}
	return ad, c, nil
}
