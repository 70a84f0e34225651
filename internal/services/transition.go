package services

import (
	"context"
	"fmt"

	"github.com/adlaunch/backend/internal/events"
	"github.com/adlaunch/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type actor struct {
	userID *uuid.UUID
	kind   string
}

func userActor(id uuid.UUID) actor { return actor{userID: &id, kind: models.ActorUser} }

var (
	systemActor = actor{kind: models.ActorSystem}
	workerActor = actor{kind: models.ActorWorker}
)

// adTransitioner is the only place ad statuses are written.
type adTransitioner struct {
	ads       AdStore
	audit     AuditStore
	publisher events.Publisher
	log       *zap.Logger
}

// transition validates against ValidAdTransitions, writes the status only if it is
// still ad.Status, then audits and publishes the change.
func (t *adTransitioner) transition(ctx context.Context, ad *models.Ad, ownerID uuid.UUID, newStatus, action string, by actor) error {
	return t.apply(ctx, ad, ownerID, newStatus, action, by, func(from string) (bool, error) {
		return t.ads.CompareAndSetStatus(ctx, ad.ID, from, newStatus)
	})
}

// claimPublish moves the ad to pending_review as a new publish attempt. Whatever an
// earlier attempt left on the ad (platform id, review result, last error) is dropped.
func (t *adTransitioner) claimPublish(ctx context.Context, ad *models.Ad, ownerID uuid.UUID, by actor) error {
	previous := ad.PlatformAdID
	err := t.apply(ctx, ad, ownerID, models.AdStatusPendingReview, models.ActionPublish, by, func(from string) (bool, error) {
		attempt, ok, err := t.ads.ClaimForPublish(ctx, ad.ID, from)
		if ok {
			ad.PublishAttempt = attempt
		}
		return ok, err
	})
	if err != nil {
		return err
	}
	if previous != nil {
		t.log.Info("publish attempt replaces earlier platform ad",
			zap.String("ad_id", ad.ID.String()),
			zap.String("previous_platform_ad_id", *previous),
			zap.Int("attempt", ad.PublishAttempt),
		)
	}
	ad.PlatformAdID = nil
	ad.ReviewStatus = models.ReviewNotSubmitted
	ad.LastError = nil
	return nil
}

func (t *adTransitioner) apply(ctx context.Context, ad *models.Ad, ownerID uuid.UUID, newStatus, action string, by actor, write func(from string) (bool, error)) error {
	if err := models.CheckTransition(ad.Status, newStatus, action); err != nil {
		return err
	}

	oldStatus := ad.Status
	ok, err := write(oldStatus)
	if err != nil {
		return fmt.Errorf("update ad status: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: ad %s is no longer %s", ErrStatusConflict, ad.ID, oldStatus)
	}
	ad.Status = newStatus

	_ = t.audit.Log(ctx, models.AuditLog{
		ActorUserID: by.userID,
		ActorType:   by.kind,
		Action:      fmt.Sprintf("ad_status_%s_to_%s", oldStatus, newStatus),
		EntityType:  "ad",
		EntityID:    &ad.ID,
		Meta:        map[string]any{"old_status": oldStatus, "new_status": newStatus, "action": action},
	})

	if err := t.publisher.Publish(ctx, events.StreamAds, events.Event{
		Type: events.EventAdStatusChanged,
		Payload: map[string]any{
			"ad_id":         ad.ID.String(),
			"campaign_id":   ad.CampaignID.String(),
			"owner_user_id": ownerID.String(),
			"old_status":    oldStatus,
			"new_status":    newStatus,
		},
	}); err != nil {
		t.log.Warn("failed to publish ad status event", zap.String("ad_id", ad.ID.String()), zap.Error(err))
	}

	t.log.Info("ad status changed",
		zap.String("ad_id", ad.ID.String()),
		zap.String("old_status", oldStatus),
		zap.String("new_status", newStatus),
		zap.String("actor_type", by.kind),
	)
	return nil
}
