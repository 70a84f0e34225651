package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adlaunch/backend/internal/events"
	"github.com/adlaunch/backend/internal/models"
	"github.com/google/uuid"
)

func TestPublish_AllChecksPass(t *testing.T) {
	f := newFixture(PublishOptions{})
	c := f.campaign(completeSetup())
	f.connect(c.ID, true, true)
	ad := f.ad(c.ID, models.AdStatusDraft)

	out, err := f.publishSvc.Publish(context.Background(), ad.ID, f.owner)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !out.Allowed || !out.Published {
		t.Fatalf("expected published ad, got %+v", out.PublishDecision)
	}
	if out.PublishErr != nil {
		t.Fatalf("unexpected platform error: %v", out.PublishErr)
	}

	stored := f.ads.get(ad.ID)
	if stored.Status != models.AdStatusPendingReview {
		t.Errorf("status = %s, want pending_review", stored.Status)
	}
	if stored.PlatformAdID == nil || *stored.PlatformAdID != "pl_1" {
		t.Errorf("platform id = %v", stored.PlatformAdID)
	}
	if stored.ReviewStatus != models.ReviewPending {
		t.Errorf("review status = %s", stored.ReviewStatus)
	}
	if stored.PublishedAt == nil {
		t.Error("published_at not set")
	}
	if len(out.CompletedSteps) != 6 {
		t.Errorf("completed steps = %v", out.CompletedSteps)
	}
	if f.publisher.count(events.EventAdStatusChanged) != 1 {
		t.Errorf("expected one status event")
	}
}

func TestPublish_PayloadUsesSelection(t *testing.T) {
	f := newFixture(PublishOptions{})
	setup := completeSetup()
	setup.Budget.DailyAmount = 12.5
	setup.Creative.SelectedIndex = 1
	c := f.campaign(setup)
	f.connect(c.ID, true, true)
	ad := f.ad(c.ID, models.AdStatusDraft)
	copyIdx := 1
	if _, err := f.adSvc.UpdateSelection(context.Background(), ad.ID, f.owner, &copyIdx, nil); err != nil {
		t.Fatalf("UpdateSelection: %v", err)
	}

	if _, err := f.publishSvc.Publish(context.Background(), ad.ID, f.owner); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if f.platform.publishCount() != 1 {
		t.Fatalf("expected one platform publish")
	}
	p := f.platform.published[0]
	if p.Headline != "Storm damage?" {
		t.Errorf("headline = %q", p.Headline)
	}
	if p.ImageURL != "https://cdn.example.com/b.jpg" {
		t.Errorf("image = %q", p.ImageURL)
	}
	if p.DailyBudget != 1250 {
		t.Errorf("daily budget = %d, want 1250", p.DailyBudget)
	}
	if p.Reference != ad.ID.String()+".1" || p.PageID != "page_1" || p.Goal != models.GoalLeads {
		t.Errorf("unexpected payload: %+v", p)
	}
}

func TestPublish_NoPaymentMethod(t *testing.T) {
	f := newFixture(PublishOptions{})
	c := f.campaign(completeSetup())
	f.connect(c.ID, false, true)
	ad := f.ad(c.ID, models.AdStatusDraft)

	out, err := f.publishSvc.Publish(context.Background(), ad.ID, f.owner)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if out.Allowed || out.Published {
		t.Fatal("publish must be blocked without a payment method")
	}
	if n := models.CountBySeverity(out.Errors, models.SeverityCritical); n != 1 {
		t.Errorf("critical findings = %d, want 1: %v", n, out.Errors)
	}
	if out.Errors[0].Code != models.CodeNoPaymentMethod {
		t.Errorf("code = %s", out.Errors[0].Code)
	}
	if got := f.ads.get(ad.ID).Status; got != models.AdStatusDraft {
		t.Errorf("status = %s, want draft", got)
	}
	if f.platform.publishCount() != 0 {
		t.Error("platform must not be called")
	}
}

func TestPublish_MergesAllFindings(t *testing.T) {
	f := newFixture(PublishOptions{})
	setup := completeSetup()
	setup.Goal = nil
	setup.Budget.DailyAmount = 1
	c := f.campaign(setup)
	f.connect(c.ID, false, false)
	f.platform.account.AccountStatus = AccountStatusUnsettled
	ad := f.ad(c.ID, models.AdStatusDraft)

	out, err := f.publishSvc.Readiness(context.Background(), ad.ID, f.owner)
	if err != nil {
		t.Fatalf("Readiness: %v", err)
	}
	got := codes(out.Errors)
	for _, code := range []string{models.CodeMissingGoal, models.CodeBudgetBelowMin, models.CodeNoPaymentMethod, models.CodeAccountNotActive} {
		if _, ok := got[code]; !ok {
			t.Errorf("missing %s in %v", code, out.Errors)
		}
	}
	// campaign findings come before funding findings
	if out.Errors[0].Code != models.CodeMissingGoal {
		t.Errorf("first finding = %s", out.Errors[0].Code)
	}
	if out.Allowed {
		t.Error("must not be allowed")
	}
}

func TestPublish_WarningsDoNotBlock(t *testing.T) {
	f := newFixture(PublishOptions{})
	setup := completeSetup()
	setup.Budget.DailyAmount = 1
	c := f.campaign(setup)
	f.connect(c.ID, true, true)
	f.platform.account.SpendCap = "10000"
	f.platform.account.AmountSpent = "9900"
	ad := f.ad(c.ID, models.AdStatusDraft)

	out, err := f.publishSvc.Readiness(context.Background(), ad.ID, f.owner)
	if err != nil {
		t.Fatalf("Readiness: %v", err)
	}
	if !out.Allowed {
		t.Fatalf("warnings must not block: %v", out.Errors)
	}
	if n := models.CountBySeverity(out.Errors, models.SeverityWarning); n != 2 {
		t.Errorf("warnings = %d, want 2", n)
	}
}

func TestPublish_NoConnection(t *testing.T) {
	f := newFixture(PublishOptions{})
	c := f.campaign(completeSetup())
	ad := f.ad(c.ID, models.AdStatusDraft)

	out, err := f.publishSvc.Publish(context.Background(), ad.ID, f.owner)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if out.Allowed {
		t.Fatal("publish without connection must be blocked")
	}
	if len(out.Errors) != 1 || out.Errors[0].Code != models.CodeNoConnection {
		t.Errorf("findings = %v", out.Errors)
	}
	if out.Funding != nil {
		t.Error("funding must not be checked without a connection")
	}
}

func TestPublish_ExpiredToken(t *testing.T) {
	f := newFixture(PublishOptions{})
	c := f.campaign(completeSetup())
	f.connect(c.ID, true, true)
	conn := f.connections.get(c.ID)
	past := time.Now().Add(-time.Hour)
	conn.TokenExpiresAt = &past
	_ = f.connections.Upsert(context.Background(), &conn)
	ad := f.ad(c.ID, models.AdStatusDraft)

	out, err := f.publishSvc.Readiness(context.Background(), ad.ID, f.owner)
	if err != nil {
		t.Fatalf("Readiness: %v", err)
	}
	if _, ok := codes(out.Errors)[models.CodeTokenExpired]; !ok || out.Allowed {
		t.Errorf("expected expired token block, got %v", out.Errors)
	}
}

func TestPublish_Precondition(t *testing.T) {
	statuses := []string{
		models.AdStatusPendingReview,
		models.AdStatusActive,
		models.AdStatusLearning,
		models.AdStatusPaused,
		models.AdStatusArchived,
	}
	for _, status := range statuses {
		t.Run(status, func(t *testing.T) {
			f := newFixture(PublishOptions{})
			c := f.campaign(completeSetup())
			f.connect(c.ID, true, true)
			ad := f.ad(c.ID, status)

			out, err := f.publishSvc.Publish(context.Background(), ad.ID, f.owner)
			if err != nil {
				t.Fatalf("Publish: %v", err)
			}
			if out.Allowed || out.Published {
				t.Fatal("expected blocked publish")
			}
			if len(out.Errors) != 1 || out.Errors[0].Code != models.CodeNotPublishable {
				t.Errorf("findings = %v", out.Errors)
			}
			if f.platform.publishCount() != 0 {
				t.Error("platform must not be called")
			}
		})
	}
}

func TestPublish_RetryFromFailedAndRejected(t *testing.T) {
	for _, status := range []string{models.AdStatusFailed, models.AdStatusRejected} {
		t.Run(status, func(t *testing.T) {
			f := newFixture(PublishOptions{})
			c := f.campaign(completeSetup())
			f.connect(c.ID, true, true)
			ad := f.ad(c.ID, status)

			out, err := f.publishSvc.Publish(context.Background(), ad.ID, f.owner)
			if err != nil {
				t.Fatalf("Publish: %v", err)
			}
			if !out.Published {
				t.Fatalf("expected publish from %s: %v", status, out.Errors)
			}
		})
	}
}

func TestCanPublish_FollowsTransitionTable(t *testing.T) {
	f := newFixture(PublishOptions{})
	c := f.campaign(completeSetup())
	f.connect(c.ID, true, true)
	conn := f.connections.get(c.ID)

	for _, status := range append(models.AllAdStatuses(), "bogus") {
		d := f.publishSvc.CanPublish(context.Background(), &models.Ad{ID: uuid.New(), Status: status}, &c.Setup, &conn)
		want := models.IsValidTransition(status, models.AdStatusPendingReview)
		if d.Allowed != want {
			t.Errorf("%s: Allowed = %v, want %v", status, d.Allowed, want)
		}
		_, blocked := codes(d.Errors)[models.CodeNotPublishable]
		if blocked == want {
			t.Errorf("%s: NOT_PUBLISHABLE present = %v: %v", status, blocked, d.Errors)
		}
	}
}

func TestPublish_RepublishAfterLostPlatformID(t *testing.T) {
	f := newFixture(PublishOptions{})
	ctx := context.Background()
	c := f.campaign(completeSetup())
	f.connect(c.ID, true, true)
	oldID := "pl_old"
	ad := &models.Ad{CampaignID: c.ID, Name: "A", Status: models.AdStatusRejected,
		ReviewStatus: models.ReviewRejected, PlatformAdID: &oldID, PublishAttempt: 1}
	_ = f.ads.Create(ctx, ad)
	f.platform.publishID = "pl_new"
	f.ads.markErr = errors.New("connection reset")

	if _, err := f.publishSvc.Publish(ctx, ad.ID, f.owner); err == nil {
		t.Fatal("expected the failed platform id write to be reported")
	}
	stored := f.ads.get(ad.ID)
	if stored.Status != models.AdStatusPendingReview || stored.PlatformAdID != nil || stored.ReviewStatus != models.ReviewNotSubmitted {
		t.Fatalf("claim must drop the earlier attempt: %+v", stored)
	}
	if stored.PublishAttempt != 2 {
		t.Errorf("publish attempt = %d, want 2", stored.PublishAttempt)
	}
	sent := f.platform.published[0].Reference
	if sent != ad.ID.String()+".2" {
		t.Errorf("reference = %q", sent)
	}

	f.ads.markErr = nil
	f.ads.age(ad.ID, time.Hour)
	f.platform.refID, f.platform.refFound = "pl_new", true

	n, err := f.publishSvc.Reconcile(ctx, 10*time.Minute, 10)
	if err != nil || n != 1 {
		t.Fatalf("Reconcile = %d, %v", n, err)
	}
	if len(f.platform.refQueried) != 1 || f.platform.refQueried[0] != sent {
		t.Errorf("reconcile searched %v, want %q", f.platform.refQueried, sent)
	}
	stored = f.ads.get(ad.ID)
	if stored.PlatformAdID == nil || *stored.PlatformAdID != "pl_new" || stored.ReviewStatus != models.ReviewPending {
		t.Fatalf("unexpected ad after reconcile: %+v", stored)
	}

	f.platform.review = models.ReviewApproved
	if n, err := f.publishSvc.SyncReviewStatuses(ctx, 10); err != nil || n != 1 {
		t.Fatalf("SyncReviewStatuses = %d, %v", n, err)
	}
	if got := f.ads.get(ad.ID).Status; got != models.AdStatusActive {
		t.Errorf("status = %s, want active", got)
	}
}

func TestPublish_AdLeavesReviewDuringPlatformCall(t *testing.T) {
	f := newFixture(PublishOptions{})
	ctx := context.Background()
	c := f.campaign(completeSetup())
	f.connect(c.ID, true, true)
	ad := f.ad(c.ID, models.AdStatusDraft)
	f.platform.onPublish = func() {
		_, _ = f.ads.CompareAndSetStatus(ctx, ad.ID, models.AdStatusPendingReview, models.AdStatusArchived)
	}

	out, err := f.publishSvc.Publish(ctx, ad.ID, f.owner)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if out.Published || out.Allowed {
		t.Fatal("an ad that left review must not be reported as published")
	}
	stored := f.ads.get(ad.ID)
	if stored.Status != models.AdStatusArchived || stored.PlatformAdID != nil {
		t.Errorf("stored ad = %+v", stored)
	}
	if len(f.platform.statusSent) != 1 || f.platform.statusSent[0] != PlatformStatusArchived {
		t.Errorf("platform copy not archived: %v", f.platform.statusSent)
	}
}

func TestPublish_Idempotent(t *testing.T) {
	f := newFixture(PublishOptions{})
	c := f.campaign(completeSetup())
	f.connect(c.ID, true, true)
	ad := f.ad(c.ID, models.AdStatusDraft)

	if _, err := f.publishSvc.Publish(context.Background(), ad.ID, f.owner); err != nil {
		t.Fatalf("first Publish: %v", err)
	}
	out, err := f.publishSvc.Publish(context.Background(), ad.ID, f.owner)
	if err != nil {
		t.Fatalf("second Publish: %v", err)
	}
	if out.Published {
		t.Error("second publish must not reach the platform")
	}
	if f.platform.publishCount() != 1 {
		t.Errorf("platform publishes = %d, want 1", f.platform.publishCount())
	}
}

func TestPublish_LostClaim(t *testing.T) {
	f := newFixture(PublishOptions{})
	c := f.campaign(completeSetup())
	f.connect(c.ID, true, true)
	ad := f.ad(c.ID, models.AdStatusDraft)
	f.ads.casFails = true

	out, err := f.publishSvc.Publish(context.Background(), ad.ID, f.owner)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if out.Allowed || out.Published {
		t.Fatal("a lost claim must not publish")
	}
	if f.platform.publishCount() != 0 {
		t.Error("platform must not be called")
	}
}

func TestPublish_PlatformFailure(t *testing.T) {
	f := newFixture(PublishOptions{})
	c := f.campaign(completeSetup())
	f.connect(c.ID, true, true)
	ad := f.ad(c.ID, models.AdStatusDraft)
	f.platform.publishErr = &PlatformError{StatusCode: 400, Message: "Invalid image"}

	out, err := f.publishSvc.Publish(context.Background(), ad.ID, f.owner)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !errors.Is(out.PublishErr, ErrPlatformPublish) {
		t.Fatalf("PublishErr = %v", out.PublishErr)
	}
	stored := f.ads.get(ad.ID)
	if stored.Status != models.AdStatusFailed {
		t.Errorf("status = %s, want failed", stored.Status)
	}
	if stored.LastError == nil {
		t.Error("last error not recorded")
	}
	if stored.PlatformAdID != nil {
		t.Error("failed publish must not record a platform id")
	}
}

func TestPublish_Simulated(t *testing.T) {
	f := newFixture(PublishOptions{Simulate: true})
	c := f.campaign(completeSetup())
	f.connect(c.ID, true, true)
	ad := f.ad(c.ID, models.AdStatusDraft)

	out, err := f.publishSvc.Publish(context.Background(), ad.ID, f.owner)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !out.Published {
		t.Fatal("expected simulated publish")
	}
	stored := f.ads.get(ad.ID)
	if stored.Status != models.AdStatusActive || stored.ReviewStatus != models.ReviewApproved {
		t.Errorf("status = %s/%s", stored.Status, stored.ReviewStatus)
	}
	if stored.PlatformAdID == nil || len(*stored.PlatformAdID) < 4 || (*stored.PlatformAdID)[:4] != "sim_" {
		t.Errorf("platform id = %v", stored.PlatformAdID)
	}
	if f.platform.publishCount() != 0 {
		t.Error("simulation must not call the platform")
	}
}

func TestPublish_OtherOwner(t *testing.T) {
	f := newFixture(PublishOptions{})
	c := f.campaign(completeSetup())
	ad := f.ad(c.ID, models.AdStatusDraft)

	if _, err := f.publishSvc.Publish(context.Background(), ad.ID, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestReconcile(t *testing.T) {
	old := time.Now().Add(-time.Hour)

	t.Run("found on platform", func(t *testing.T) {
		f := newFixture(PublishOptions{})
		c := f.campaign(completeSetup())
		f.connect(c.ID, true, true)
		ad := &models.Ad{CampaignID: c.ID, Name: "A", Status: models.AdStatusPendingReview, UpdatedAt: old}
		_ = f.ads.Create(context.Background(), ad)
		f.platform.refID, f.platform.refFound = "pl_9", true

		n, err := f.publishSvc.Reconcile(context.Background(), 10*time.Minute, 10)
		if err != nil || n != 1 {
			t.Fatalf("Reconcile = %d, %v", n, err)
		}
		stored := f.ads.get(ad.ID)
		if stored.PlatformAdID == nil || *stored.PlatformAdID != "pl_9" || stored.Status != models.AdStatusPendingReview {
			t.Errorf("unexpected ad: %+v", stored)
		}
	})

	t.Run("never reached platform", func(t *testing.T) {
		f := newFixture(PublishOptions{})
		c := f.campaign(completeSetup())
		f.connect(c.ID, true, true)
		ad := &models.Ad{CampaignID: c.ID, Name: "A", Status: models.AdStatusPendingReview, UpdatedAt: old}
		_ = f.ads.Create(context.Background(), ad)

		n, err := f.publishSvc.Reconcile(context.Background(), 10*time.Minute, 10)
		if err != nil || n != 1 {
			t.Fatalf("Reconcile = %d, %v", n, err)
		}
		if got := f.ads.get(ad.ID).Status; got != models.AdStatusFailed {
			t.Errorf("status = %s, want failed", got)
		}
	})

	t.Run("recent claims are left alone", func(t *testing.T) {
		f := newFixture(PublishOptions{})
		c := f.campaign(completeSetup())
		f.connect(c.ID, true, true)
		f.ad(c.ID, models.AdStatusPendingReview)

		n, err := f.publishSvc.Reconcile(context.Background(), 10*time.Minute, 10)
		if err != nil || n != 0 {
			t.Fatalf("Reconcile = %d, %v", n, err)
		}
	})

	t.Run("platform lookup error keeps ad", func(t *testing.T) {
		f := newFixture(PublishOptions{})
		c := f.campaign(completeSetup())
		f.connect(c.ID, true, true)
		ad := &models.Ad{CampaignID: c.ID, Name: "A", Status: models.AdStatusPendingReview, UpdatedAt: old}
		_ = f.ads.Create(context.Background(), ad)
		f.platform.refErr = errPlatformDown

		n, _ := f.publishSvc.Reconcile(context.Background(), 10*time.Minute, 10)
		if n != 0 || f.ads.get(ad.ID).Status != models.AdStatusPendingReview {
			t.Errorf("ad should stay in review, resolved %d", n)
		}
	})
}

func TestSyncReviewStatuses(t *testing.T) {
	tests := []struct {
		review     string
		wantStatus string
		wantCount  int
	}{
		{models.ReviewApproved, models.AdStatusActive, 1},
		{models.ReviewRejected, models.AdStatusRejected, 1},
		{models.ReviewChangesRequested, models.AdStatusRejected, 1},
		{models.ReviewPending, models.AdStatusPendingReview, 0},
	}

	for _, tt := range tests {
		t.Run(tt.review, func(t *testing.T) {
			f := newFixture(PublishOptions{})
			c := f.campaign(completeSetup())
			f.connect(c.ID, true, true)
			platformID := "pl_1"
			ad := &models.Ad{CampaignID: c.ID, Name: "A", Status: models.AdStatusPendingReview,
				ReviewStatus: models.ReviewPending, PlatformAdID: &platformID}
			_ = f.ads.Create(context.Background(), ad)
			f.platform.review = tt.review

			n, err := f.publishSvc.SyncReviewStatuses(context.Background(), 10)
			if err != nil {
				t.Fatalf("SyncReviewStatuses: %v", err)
			}
			if n != tt.wantCount {
				t.Errorf("changed = %d, want %d", n, tt.wantCount)
			}
			stored := f.ads.get(ad.ID)
			if stored.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", stored.Status, tt.wantStatus)
			}
			if stored.ReviewStatus != tt.review {
				t.Errorf("review status = %s, want %s", stored.ReviewStatus, tt.review)
			}
		})
	}
}
