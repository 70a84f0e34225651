package services

import (
	"context"
	"errors"
	"time"

	"github.com/adlaunch/backend/internal/models"
	"github.com/adlaunch/backend/internal/repositories"
	"github.com/google/uuid"
)

// ErrStatusConflict is returned when the ad status changed between read and write.
// ErrForbidden is returned when the connected platform user lacks admin or finance access.
var (
	ErrNotFound        = repositories.ErrNotFound
	ErrInvalidInput    = errors.New("invalid input")
	ErrStatusConflict  = errors.New("ad status changed concurrently")
	ErrPlatformPublish = errors.New("ad platform rejected the publish request")
	ErrPlatformUpdate  = errors.New("ad platform rejected the status update")
	ErrNotConnected    = errors.New("campaign has no ad platform connection")
	ErrForbidden       = errors.New("connected platform user cannot manage payments")
	ErrGoalLocked      = errors.New("campaign goal cannot change while an ad is live")
)

type CampaignStore interface {
	Create(ctx context.Context, c *models.Campaign) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	Update(ctx context.Context, c *models.Campaign) error
	UpdateSetup(ctx context.Context, id uuid.UUID, setup models.CampaignSetupState) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f repositories.CampaignFilter) ([]models.Campaign, error)
}

type AdStore interface {
	Create(ctx context.Context, ad *models.Ad) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Ad, error)
	ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]models.Ad, error)
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	ClaimForPublish(ctx context.Context, id uuid.UUID, from string) (int, bool, error)
	MarkPublished(ctx context.Context, id uuid.UUID, platformAdID, reviewStatus string) (bool, error)
	SetLastError(ctx context.Context, id uuid.UUID, msg *string) error
	UpdateReviewStatus(ctx context.Context, id uuid.UUID, reviewStatus string) error
	UpdateSelection(ctx context.Context, id uuid.UUID, copyIndex, creativeIndex *int) error
	Delete(ctx context.Context, id uuid.UUID) error
	HasLiveAds(ctx context.Context, campaignID uuid.UUID) (bool, error)
	ListUnconfirmedPublishes(ctx context.Context, olderThan time.Duration, limit int) ([]models.Ad, error)
	ListInReview(ctx context.Context, limit int) ([]models.Ad, error)
}

type ConnectionStore interface {
	GetByCampaign(ctx context.Context, campaignID uuid.UUID) (*models.AdvertiserConnection, error)
	Upsert(ctx context.Context, c *models.AdvertiserConnection) error
	UpdateFunding(ctx context.Context, campaignID uuid.UUID, paymentConnected bool, status string) error
	UpdateAdminAccess(ctx context.Context, campaignID uuid.UUID, access models.AdminAccess) error
	SaveAdminSnapshot(ctx context.Context, s *models.AdminSnapshot) error
	ListWithSelectedAssets(ctx context.Context, limit int) ([]models.AdvertiserConnection, error)
}

type AuditStore interface {
	Log(ctx context.Context, entry models.AuditLog) error
	GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error)
}
