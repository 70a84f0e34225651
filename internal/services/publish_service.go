package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/adlaunch/backend/internal/events"
	"github.com/adlaunch/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type PublishDecision struct {
	Allowed  bool                     `json:"allowed"`
	Errors   []models.ValidationError `json:"errors"`
	Campaign *CampaignValidation      `json:"campaign,omitempty"`
	Funding  *FundingCheck            `json:"funding,omitempty"`
}

type PublishOutcome struct {
	PublishDecision
	Ad             *models.Ad `json:"ad"`
	Published      bool       `json:"published"`
	CompletedSteps []string   `json:"completed_steps"`
	// PublishErr is set when validation passed but the platform call failed.
	PublishErr error `json:"-"`
}

type PublishOptions struct {
	Timeout  time.Duration
	Simulate bool
}

// PublishService gates and performs ad publishing.
type PublishService struct {
	ads         AdStore
	campaigns   CampaignStore
	connections ConnectionStore
	validator   *CampaignValidator
	funding     *FundingValidator
	platform    AdPlatform
	tr          *adTransitioner
	opts        PublishOptions
	log         *zap.Logger
	now         func() time.Time
}

func NewPublishService(
	ads AdStore,
	campaigns CampaignStore,
	connections ConnectionStore,
	audit AuditStore,
	validator *CampaignValidator,
	funding *FundingValidator,
	platform AdPlatform,
	publisher events.Publisher,
	opts PublishOptions,
	log *zap.Logger,
) *PublishService {
	return &PublishService{
		ads:         ads,
		campaigns:   campaigns,
		connections: connections,
		validator:   validator,
		funding:     funding,
		platform:    platform,
		tr:          &adTransitioner{ads: ads, audit: audit, publisher: publisher, log: log},
		opts:        opts,
		log:         log,
		now:         time.Now,
	}
}

// CanPublish runs the precondition and then every validator, merging all findings.
func (s *PublishService) CanPublish(ctx context.Context, ad *models.Ad, state *models.CampaignSetupState, conn *models.AdvertiserConnection) PublishDecision {
	if !models.IsPublishable(ad.Status) {
		return notPublishable(models.PublishBlockReason(ad.Status))
	}

	var (
		campaignRes CampaignValidation
		fundingRes  *FundingCheck
		connErrs    []models.ValidationError
	)

	g, gctx := errgroup.WithContext(ctx)
	switch {
	case conn == nil || !conn.HasSelectedAssets():
		connErrs = append(connErrs, critical(models.CodeNoConnection, "connection",
			"no ad account is connected to this campaign",
			"Connect the ad platform and select a business, page and ad account."))
	case conn.TokenExpired(s.now()):
		connErrs = append(connErrs, critical(models.CodeTokenExpired, "connection",
			"the ad platform access token has expired",
			"Reconnect the ad platform to refresh access."))
	default:
		g.Go(func() error {
			fc := s.funding.Validate(gctx, conn.AccessToken, conn.AdAccountIDValue(), conn.PaymentConnected)
			fundingRes = &fc
			return nil
		})
	}
	campaignRes = s.validator.Validate(state)
	_ = g.Wait()

	errs := make([]models.ValidationError, 0, len(campaignRes.Errors)+len(connErrs))
	errs = append(errs, campaignRes.Errors...)
	errs = append(errs, connErrs...)
	if fundingRes != nil {
		errs = append(errs, fundingRes.Errors...)
	}

	return PublishDecision{
		Allowed:  !models.HasCritical(errs),
		Errors:   errs,
		Campaign: &campaignRes,
		Funding:  fundingRes,
	}
}

func notPublishable(reason string) PublishDecision {
	field := "status"
	return PublishDecision{
		Allowed: false,
		Errors: []models.ValidationError{{
			Code:     models.CodeNotPublishable,
			Field:    &field,
			Message:  reason,
			Severity: models.SeverityError,
		}},
	}
}

// Readiness is a dry run of Publish without side effects.
func (s *PublishService) Readiness(ctx context.Context, adID, actorID uuid.UUID) (*PublishOutcome, error) {
	ad, campaign, conn, err := s.load(ctx, adID, actorID)
	if err != nil {
		return nil, err
	}
	decision := s.CanPublish(ctx, ad, &campaign.Setup, conn)
	return s.outcome(decision, ad, campaign, conn), nil
}

// Publish validates the ad and, when allowed, submits it to the ad platform.
// Validation failures leave the ad untouched; a platform failure leaves it failed.
func (s *PublishService) Publish(ctx context.Context, adID, actorID uuid.UUID) (*PublishOutcome, error) {
	ad, campaign, conn, err := s.load(ctx, adID, actorID)
	if err != nil {
		return nil, err
	}

	decision := s.CanPublish(ctx, ad, &campaign.Setup, conn)
	out := s.outcome(decision, ad, campaign, conn)
	if !decision.Allowed {
		s.log.Info("publish blocked",
			zap.String("ad_id", ad.ID.String()),
			zap.String("status", ad.Status),
			zap.Int("critical", models.CountBySeverity(decision.Errors, models.SeverityCritical)),
		)
		return out, nil
	}

	// Claim the ad before the external call so a concurrent publish fails the precondition.
	if err := s.tr.claimPublish(ctx, ad, campaign.OwnerUserID, userActor(actorID)); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			out.PublishDecision = notPublishable("ad changed status while publishing, reload and try again")
			return out, nil
		}
		return nil, err
	}

	if s.opts.Simulate {
		return s.simulate(ctx, out, ad, campaign.OwnerUserID)
	}

	payload := buildPayload(ad, campaign, conn)

	callCtx, cancel := s.withTimeout(ctx)
	platformAdID, perr := s.platform.PublishAd(callCtx, conn.AccessToken, conn.AdAccountIDValue(), payload)
	cancel()

	if perr != nil {
		s.log.Warn("platform publish failed", zap.String("ad_id", ad.ID.String()), zap.Error(perr))
		msg := perr.Error()
		if err := s.ads.SetLastError(ctx, ad.ID, &msg); err != nil {
			s.log.Error("failed to record publish error", zap.String("ad_id", ad.ID.String()), zap.Error(err))
		}
		ad.LastError = &msg
		if err := s.tr.transition(ctx, ad, campaign.OwnerUserID, models.AdStatusFailed, models.ActionPublish, systemActor); err != nil {
			return nil, err
		}
		out.PublishErr = fmt.Errorf("%w: %v", ErrPlatformPublish, perr)
		return out, nil
	}

	// From here on the platform has the ad; a failed write is reconciled by the worker.
	recorded, err := s.ads.MarkPublished(ctx, ad.ID, platformAdID, models.ReviewPending)
	if err != nil {
		return out, fmt.Errorf("record platform ad id %s: %w", platformAdID, err)
	}
	if !recorded {
		s.withdraw(ctx, conn, ad.ID, platformAdID)
		out.PublishDecision = notPublishable("ad changed status while publishing, the submitted ad was archived on the ad platform")
		return out, nil
	}
	now := s.now()
	ad.PlatformAdID = &platformAdID
	ad.ReviewStatus = models.ReviewPending
	ad.PublishedAt = &now
	ad.LastError = nil
	out.Published = true

	s.log.Info("ad published",
		zap.String("ad_id", ad.ID.String()),
		zap.String("platform_ad_id", platformAdID),
	)
	return out, nil
}

func (s *PublishService) simulate(ctx context.Context, out *PublishOutcome, ad *models.Ad, ownerID uuid.UUID) (*PublishOutcome, error) {
	platformAdID := "sim_" + uuid.NewString()
	recorded, err := s.ads.MarkPublished(ctx, ad.ID, platformAdID, models.ReviewApproved)
	if err != nil {
		return out, fmt.Errorf("record simulated ad id: %w", err)
	}
	if !recorded {
		out.PublishDecision = notPublishable("ad changed status while publishing, reload and try again")
		return out, nil
	}
	now := s.now()
	ad.PlatformAdID = &platformAdID
	ad.ReviewStatus = models.ReviewApproved
	ad.PublishedAt = &now
	if err := s.tr.transition(ctx, ad, ownerID, models.AdStatusActive, models.ActionReview, systemActor); err != nil {
		return nil, err
	}
	out.Published = true
	return out, nil
}

// Reconcile resolves publishes whose outcome is unknown: the ad was claimed but no
// platform id was recorded. The platform is searched for the reference of the current
// attempt only.
func (s *PublishService) Reconcile(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	ads, err := s.ads.ListUnconfirmedPublishes(ctx, olderThan, limit)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for i := range ads {
		ad := &ads[i]
		campaign, err := s.campaigns.GetByID(ctx, ad.CampaignID)
		if err != nil {
			s.log.Error("reconcile: campaign lookup failed", zap.String("ad_id", ad.ID.String()), zap.Error(err))
			continue
		}
		conn, err := s.connections.GetByCampaign(ctx, ad.CampaignID)
		if err != nil || !conn.HasSelectedAssets() {
			s.log.Warn("reconcile: no connection, leaving ad in review", zap.String("ad_id", ad.ID.String()))
			continue
		}

		callCtx, cancel := s.withTimeout(ctx)
		platformAdID, found, err := s.platform.FindAdByReference(callCtx, conn.AccessToken, conn.AdAccountIDValue(), ad.PublishReference())
		cancel()
		if err != nil {
			s.log.Warn("reconcile: platform lookup failed", zap.String("ad_id", ad.ID.String()), zap.Error(err))
			continue
		}

		if found {
			recorded, err := s.ads.MarkPublished(ctx, ad.ID, platformAdID, models.ReviewPending)
			if err != nil {
				s.log.Error("reconcile: record platform id failed", zap.String("ad_id", ad.ID.String()), zap.Error(err))
				continue
			}
			if !recorded {
				s.withdraw(ctx, conn, ad.ID, platformAdID)
			}
			resolved++
			continue
		}

		msg := "publish was interrupted and the ad never reached the ad platform"
		_ = s.ads.SetLastError(ctx, ad.ID, &msg)
		if err := s.tr.transition(ctx, ad, campaign.OwnerUserID, models.AdStatusFailed, models.ActionPublish, workerActor); err != nil {
			s.log.Error("reconcile: mark failed", zap.String("ad_id", ad.ID.String()), zap.Error(err))
			continue
		}
		resolved++
	}
	return resolved, nil
}

// SyncReviewStatuses applies platform review results to ads that are in review.
func (s *PublishService) SyncReviewStatuses(ctx context.Context, limit int) (int, error) {
	ads, err := s.ads.ListInReview(ctx, limit)
	if err != nil {
		return 0, err
	}

	changed := 0
	for i := range ads {
		ad := &ads[i]
		if ad.PlatformAdID == nil {
			continue
		}
		campaign, err := s.campaigns.GetByID(ctx, ad.CampaignID)
		if err != nil {
			continue
		}
		conn, err := s.connections.GetByCampaign(ctx, ad.CampaignID)
		if err != nil || !conn.HasToken() {
			continue
		}

		callCtx, cancel := s.withTimeout(ctx)
		review, err := s.platform.GetAdReviewStatus(callCtx, conn.AccessToken, *ad.PlatformAdID)
		cancel()
		if err != nil {
			s.log.Warn("review sync: platform lookup failed", zap.String("ad_id", ad.ID.String()), zap.Error(err))
			continue
		}
		if review == ad.ReviewStatus {
			continue
		}

		var target string
		switch review {
		case models.ReviewApproved:
			target = models.AdStatusActive
		case models.ReviewRejected, models.ReviewChangesRequested:
			target = models.AdStatusRejected
		}

		if err := s.ads.UpdateReviewStatus(ctx, ad.ID, review); err != nil {
			s.log.Error("review sync: update review status", zap.String("ad_id", ad.ID.String()), zap.Error(err))
			continue
		}
		if target != "" {
			if err := s.tr.transition(ctx, ad, campaign.OwnerUserID, target, models.ActionReview, workerActor); err != nil {
				s.log.Error("review sync: transition", zap.String("ad_id", ad.ID.String()), zap.Error(err))
				continue
			}
		}
		changed++
	}
	return changed, nil
}

func (s *PublishService) load(ctx context.Context, adID, actorID uuid.UUID) (*models.Ad, *models.Campaign, *models.AdvertiserConnection, error) {
	ad, err := s.ads.GetByID(ctx, adID)
	if err != nil {
		return nil, nil, nil, err
	}
	campaign, err := s.campaigns.GetByID(ctx, ad.CampaignID)
	if err != nil {
		return nil, nil, nil, err
	}
	if campaign.OwnerUserID != actorID {
		return nil, nil, nil, ErrNotFound
	}
	conn, err := s.connections.GetByCampaign(ctx, ad.CampaignID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, nil, nil, err
		}
		conn = nil
	}
	return ad, campaign, conn, nil
}

func (s *PublishService) outcome(d PublishDecision, ad *models.Ad, campaign *models.Campaign, conn *models.AdvertiserConnection) *PublishOutcome {
	cv := d.Campaign
	if cv == nil {
		v := s.validator.Validate(&campaign.Setup)
		cv = &v
	}
	return &PublishOutcome{
		PublishDecision: d,
		Ad:              ad,
		CompletedSteps:  models.CompletedSteps(cv.HasGoal, cv.HasLocation, cv.HasBudget, cv.HasAdCopy, cv.HasImages, conn),
	}
}

func (s *PublishService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.Timeout)
}

// withdraw archives a platform ad whose local ad left pending_review before the
// platform id could be recorded. Failures are logged; the platform copy then needs
// manual cleanup.
func (s *PublishService) withdraw(ctx context.Context, conn *models.AdvertiserConnection, adID uuid.UUID, platformAdID string) {
	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.platform.UpdateAdStatus(callCtx, conn.AccessToken, platformAdID, PlatformStatusArchived); err != nil {
		s.log.Error("failed to archive orphaned platform ad",
			zap.String("ad_id", adID.String()),
			zap.String("platform_ad_id", platformAdID),
			zap.Error(err),
		)
		return
	}
	s.log.Warn("archived orphaned platform ad",
		zap.String("ad_id", adID.String()),
		zap.String("platform_ad_id", platformAdID),
	)
}

// buildPayload assembles the platform ad from the selected variations.
func buildPayload(ad *models.Ad, c *models.Campaign, conn *models.AdvertiserConnection) PublishPayload {
	setup := c.Setup
	p := PublishPayload{
		Reference: ad.PublishReference(),
		Name:      ad.Name,
		Goal:      setup.GoalType(),
	}
	if conn.PageID != nil {
		p.PageID = *conn.PageID
	}
	if conn.InstagramID != nil {
		p.InstagramID = *conn.InstagramID
	}

	if setup.AdCopy != nil && len(setup.AdCopy.Variations) > 0 {
		cv := setup.AdCopy.Variations[pickIndex(ad.SelectedCopyIndex, 0, len(setup.AdCopy.Variations))]
		p.Headline = cv.Headline
		p.PrimaryText = cv.PrimaryText
		if cv.Description != nil {
			p.Description = *cv.Description
		}
		if cv.CTA != nil {
			p.CTA = *cv.CTA
		}
	}
	if setup.Creative != nil && len(setup.Creative.ImageURLs) > 0 {
		idx := pickIndex(ad.SelectedCreativeIndex, setup.Creative.SelectedIndex, len(setup.Creative.ImageURLs))
		p.ImageURL = setup.Creative.ImageURLs[idx]
	}
	if setup.Budget != nil {
		p.DailyBudget = int64(math.Round(setup.Budget.DailyAmount * 100))
		p.Currency = setup.Budget.Currency
		p.StartTime = setup.Budget.StartDate
		p.EndTime = setup.Budget.EndDate
	}
	if setup.Location != nil {
		p.Locations = setup.Location.Locations
	}
	return p
}

func pickIndex(selected *int, fallback, n int) int {
	if selected != nil && *selected >= 0 && *selected < n {
		return *selected
	}
	if fallback >= 0 && fallback < n {
		return fallback
	}
	return 0
}
