package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/adlaunch/backend/internal/events"
	"github.com/adlaunch/backend/internal/models"
	"github.com/adlaunch/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type memCampaigns struct {
	mu sync.Mutex
	m  map[uuid.UUID]models.Campaign
}

func newMemCampaigns() *memCampaigns {
	return &memCampaigns{m: map[uuid.UUID]models.Campaign{}}
}

func (s *memCampaigns) Create(_ context.Context, c *models.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt, c.UpdatedAt = time.Now(), time.Now()
	s.m[c.ID] = *c
	return nil
}

func (s *memCampaigns) GetByID(_ context.Context, id uuid.UUID) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &c, nil
}

func (s *memCampaigns) Update(_ context.Context, c *models.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[c.ID]; !ok {
		return repositories.ErrNotFound
	}
	s.m[c.ID] = *c
	return nil
}

func (s *memCampaigns) UpdateSetup(_ context.Context, id uuid.UUID, setup models.CampaignSetupState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[id]
	if !ok {
		return repositories.ErrNotFound
	}
	c.Setup = setup
	s.m[id] = c
	return nil
}

func (s *memCampaigns) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
	return nil
}

func (s *memCampaigns) List(_ context.Context, f repositories.CampaignFilter) ([]models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Campaign{}
	for _, c := range s.m {
		if f.OwnerUserID != nil && c.OwnerUserID != *f.OwnerUserID {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

type memAds struct {
	mu sync.Mutex
	m  map[uuid.UUID]models.Ad
	// casFails makes the next status write report a lost race.
	casFails bool
	markErr  error
}

func newMemAds() *memAds {
	return &memAds{m: map[uuid.UUID]models.Ad{}}
}

func (s *memAds) Create(_ context.Context, ad *models.Ad) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ad.ID == uuid.Nil {
		ad.ID = uuid.New()
	}
	if ad.UpdatedAt.IsZero() {
		ad.CreatedAt, ad.UpdatedAt = time.Now(), time.Now()
	}
	s.m[ad.ID] = *ad
	return nil
}

func (s *memAds) GetByID(_ context.Context, id uuid.UUID) (*models.Ad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ad, ok := s.m[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &ad, nil
}

func (s *memAds) get(id uuid.UUID) models.Ad {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[id]
}

func (s *memAds) ListByCampaign(_ context.Context, campaignID uuid.UUID) ([]models.Ad, error) {
	return s.filter(func(a models.Ad) bool { return a.CampaignID == campaignID }), nil
}

func (s *memAds) CompareAndSetStatus(_ context.Context, id uuid.UUID, from, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.casFails {
		s.casFails = false
		return false, nil
	}
	ad, ok := s.m[id]
	if !ok || ad.Status != from {
		return false, nil
	}
	ad.Status = to
	ad.UpdatedAt = time.Now()
	s.m[id] = ad
	return true, nil
}

func (s *memAds) ClaimForPublish(_ context.Context, id uuid.UUID, from string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.casFails {
		s.casFails = false
		return 0, false, nil
	}
	ad, ok := s.m[id]
	if !ok || ad.Status != from {
		return 0, false, nil
	}
	ad.Status = models.AdStatusPendingReview
	ad.PlatformAdID = nil
	ad.ReviewStatus = models.ReviewNotSubmitted
	ad.LastError = nil
	ad.PublishAttempt++
	ad.UpdatedAt = time.Now()
	s.m[id] = ad
	return ad.PublishAttempt, true, nil
}

func (s *memAds) MarkPublished(_ context.Context, id uuid.UUID, platformAdID, reviewStatus string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return false, s.markErr
	}
	ad, ok := s.m[id]
	if !ok || ad.Status != models.AdStatusPendingReview {
		return false, nil
	}
	ad.PlatformAdID = &platformAdID
	ad.ReviewStatus = reviewStatus
	ad.LastError = nil
	if ad.PublishedAt == nil {
		now := time.Now()
		ad.PublishedAt = &now
	}
	s.m[id] = ad
	return true, nil
}

// age backdates the last update so the ad looks like a stale claim.
func (s *memAds) age(id uuid.UUID, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ad := s.m[id]
	ad.UpdatedAt = time.Now().Add(-d)
	s.m[id] = ad
}

func (s *memAds) SetLastError(_ context.Context, id uuid.UUID, msg *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ad := s.m[id]
	ad.LastError = msg
	s.m[id] = ad
	return nil
}

func (s *memAds) UpdateReviewStatus(_ context.Context, id uuid.UUID, reviewStatus string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ad := s.m[id]
	ad.ReviewStatus = reviewStatus
	s.m[id] = ad
	return nil
}

func (s *memAds) UpdateSelection(_ context.Context, id uuid.UUID, copyIndex, creativeIndex *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ad := s.m[id]
	ad.SelectedCopyIndex, ad.SelectedCreativeIndex = copyIndex, creativeIndex
	s.m[id] = ad
	return nil
}

func (s *memAds) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
	return nil
}

func (s *memAds) HasLiveAds(_ context.Context, campaignID uuid.UUID) (bool, error) {
	live := s.filter(func(a models.Ad) bool {
		return a.CampaignID == campaignID && (a.IsLive() || a.Status == models.AdStatusPendingReview)
	})
	return len(live) > 0, nil
}

func (s *memAds) ListUnconfirmedPublishes(_ context.Context, olderThan time.Duration, _ int) ([]models.Ad, error) {
	cutoff := time.Now().Add(-olderThan)
	return s.filter(func(a models.Ad) bool {
		return a.Status == models.AdStatusPendingReview && a.PlatformAdID == nil && a.UpdatedAt.Before(cutoff)
	}), nil
}

func (s *memAds) ListInReview(_ context.Context, _ int) ([]models.Ad, error) {
	return s.filter(func(a models.Ad) bool {
		return a.Status == models.AdStatusPendingReview && a.PlatformAdID != nil
	}), nil
}

func (s *memAds) filter(keep func(models.Ad) bool) []models.Ad {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Ad{}
	for _, a := range s.m {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

type memConnections struct {
	mu        sync.Mutex
	m         map[uuid.UUID]models.AdvertiserConnection
	snapshots []models.AdminSnapshot
}

func newMemConnections() *memConnections {
	return &memConnections{m: map[uuid.UUID]models.AdvertiserConnection{}}
}

func (s *memConnections) GetByCampaign(_ context.Context, campaignID uuid.UUID) (*models.AdvertiserConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[campaignID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &c, nil
}

func (s *memConnections) Upsert(_ context.Context, c *models.AdvertiserConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[c.CampaignID] = *c
	return nil
}

func (s *memConnections) UpdateFunding(_ context.Context, campaignID uuid.UUID, paymentConnected bool, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[campaignID]
	if !ok {
		return repositories.ErrNotFound
	}
	now := time.Now()
	c.PaymentConnected, c.Status, c.LastVerifiedAt = paymentConnected, status, &now
	s.m[campaignID] = c
	return nil
}

func (s *memConnections) UpdateAdminAccess(_ context.Context, campaignID uuid.UUID, access models.AdminAccess) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[campaignID]
	if !ok {
		return repositories.ErrNotFound
	}
	c.AdminConnected = access.AdminConnected
	c.AdminBusinessRole, c.AdminAdAccountRole = access.BusinessRole, access.AdAccountRole
	s.m[campaignID] = c
	return nil
}

func (s *memConnections) SaveAdminSnapshot(_ context.Context, snap *models.AdminSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.ID = uuid.New()
	s.snapshots = append(s.snapshots, *snap)
	return nil
}

func (s *memConnections) ListWithSelectedAssets(_ context.Context, _ int) ([]models.AdvertiserConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.AdvertiserConnection{}
	for _, c := range s.m {
		if c.HasSelectedAssets() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memConnections) get(campaignID uuid.UUID) models.AdvertiserConnection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[campaignID]
}

type memAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (s *memAudit) Log(_ context.Context, entry models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = uuid.New()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memAudit) GetByEntity(_ context.Context, entityType string, entityID uuid.UUID, _, _ int) ([]models.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.AuditLog{}
	for _, e := range s.entries {
		if e.EntityType == entityType && e.EntityID != nil && *e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memAudit) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Action)
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

var errPlatformDown = errors.New("connection refused")

// fakePlatform answers from canned data and counts calls.
type fakePlatform struct {
	mu sync.Mutex

	me           *PlatformUser
	meErr        error
	account      *AdAccountInfo
	accountErr   error
	members      map[string][]models.PlatformMember // by edge
	accountUsers []models.PlatformMember

	publishID  string
	publishErr error
	published  []PublishPayload
	// onPublish runs while the platform call is in flight.
	onPublish func()

	refID      string
	refFound   bool
	refErr     error
	refQueried []string

	review     string
	reviewErr  error
	statusErr  error
	statusSent []string
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		me: &PlatformUser{ID: "u1", Name: "Owner"},
		account: &AdAccountInfo{
			ID:            "act_123",
			AccountStatus: AccountStatusActive,
			Currency:      "USD",
			Capabilities:  []string{CapabilityCreateCampaigns},
		},
		members:   map[string][]models.PlatformMember{},
		publishID: "pl_1",
	}
}

func (f *fakePlatform) GetMe(context.Context, string) (*PlatformUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.meErr != nil {
		return nil, f.meErr
	}
	return f.me, nil
}

func (f *fakePlatform) GetAdAccount(context.Context, string, string) (*AdAccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accountErr != nil {
		return nil, f.accountErr
	}
	info := *f.account
	return &info, nil
}

func (f *fakePlatform) ListBusinessMembers(_ context.Context, _, _, edge string) ([]models.PlatformMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	members, ok := f.members[edge]
	if !ok {
		return nil, &PlatformError{StatusCode: 400, Message: "unknown edge " + edge}
	}
	return members, nil
}

func (f *fakePlatform) ListAdAccountUsers(context.Context, string, string) ([]models.PlatformMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accountUsers, nil
}

func (f *fakePlatform) PublishAd(_ context.Context, _, _ string, payload PublishPayload) (string, error) {
	f.mu.Lock()
	hook := f.onPublish
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return "", f.publishErr
	}
	f.published = append(f.published, payload)
	return f.publishID, nil
}

func (f *fakePlatform) FindAdByReference(_ context.Context, _, _, reference string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refQueried = append(f.refQueried, reference)
	return f.refID, f.refFound, f.refErr
}

func (f *fakePlatform) GetAdReviewStatus(context.Context, string, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.review, f.reviewErr
}

func (f *fakePlatform) UpdateAdStatus(_ context.Context, _, _, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return f.statusErr
	}
	f.statusSent = append(f.statusSent, status)
	return nil
}

func (f *fakePlatform) publishCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

// fixture wires every service against in-memory stores.
type fixture struct {
	campaigns   *memCampaigns
	ads         *memAds
	connections *memConnections
	audit       *memAudit
	publisher   *recordingPublisher
	platform    *fakePlatform

	campaignSvc   *CampaignService
	adSvc         *AdService
	connectionSvc *ConnectionService
	publishSvc    *PublishService

	owner uuid.UUID
}

func newFixture(opts PublishOptions) *fixture {
	log := zap.NewNop()
	f := &fixture{
		campaigns:   newMemCampaigns(),
		ads:         newMemAds(),
		connections: newMemConnections(),
		audit:       &memAudit{},
		publisher:   &recordingPublisher{},
		platform:    newFakePlatform(),
		owner:       uuid.New(),
	}
	validator := NewCampaignValidator(5)
	funding := NewFundingValidator(f.platform, time.Second, 1000, log)
	admin := NewAdminAccessResolver(f.platform, time.Second, log)

	f.campaignSvc = NewCampaignService(f.campaigns, f.ads, f.audit, validator, log)
	f.adSvc = NewAdService(f.ads, f.campaigns, f.connections, f.audit, f.platform, f.publisher, log)
	f.connectionSvc = NewConnectionService(f.connections, f.campaigns, f.ads, f.audit, funding, admin, f.publisher, log)
	f.publishSvc = NewPublishService(f.ads, f.campaigns, f.connections, f.audit, validator, funding, f.platform, f.publisher, opts, log)
	return f
}

func completeSetup() models.CampaignSetupState {
	return models.CampaignSetupState{
		Goal:     &models.GoalSection{Type: models.GoalLeads},
		Location: &models.LocationSection{Locations: []models.TargetLocation{{Name: "Austin", Type: "city", Mode: models.LocationInclude}}},
		Budget:   &models.BudgetSection{DailyAmount: 20, Currency: "USD"},
		AdCopy: &models.AdCopySection{Variations: []models.CopyVariation{
			{Headline: "Fresh roof", PrimaryText: "Free inspection this week"},
			{Headline: "Storm damage?", PrimaryText: "We handle the insurance"},
		}},
		Creative: &models.CreativeSection{ImageURLs: []string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"}},
	}
}

func (f *fixture) campaign(setup models.CampaignSetupState) *models.Campaign {
	c := &models.Campaign{OwnerUserID: f.owner, Name: "Spring roofing", Setup: setup}
	_ = f.campaigns.Create(context.Background(), c)
	return c
}

func (f *fixture) ad(campaignID uuid.UUID, status string) *models.Ad {
	ad := &models.Ad{CampaignID: campaignID, Name: "Ad A", Status: status, ReviewStatus: models.ReviewNotSubmitted}
	_ = f.ads.Create(context.Background(), ad)
	return ad
}

// connect stores a connection with assets selected and the given flags.
func (f *fixture) connect(campaignID uuid.UUID, paymentConnected, adminConnected bool) {
	account, business, page := "123", "biz_1", "page_1"
	status := models.ConnectionSelectedAssets
	if paymentConnected {
		status = models.ConnectionPaymentLinked
	}
	_ = f.connections.Upsert(context.Background(), &models.AdvertiserConnection{
		CampaignID:       campaignID,
		AccessToken:      "tok",
		BusinessID:       &business,
		AdAccountID:      &account,
		PageID:           &page,
		PaymentConnected: paymentConnected,
		AdminConnected:   adminConnected,
		Status:           status,
	})
}
