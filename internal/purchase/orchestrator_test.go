package purchase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vendbot/internal/models"
	"vendbot/internal/panel"
	"vendbot/internal/repository"
)

// stubPanelClient pins panel responses so provisioning flows are
// deterministic.
type stubPanelClient struct {
	createResult *panel.CreateServiceResult
	createErr    error
	outcome      panel.Outcome
	newUUID      string
	resetErr     error
	renewCalls   int
	deleteCalls  int
	trafficCalls int
}

func (s *stubPanelClient) Type() string { return "stub" }

func (s *stubPanelClient) CreateService(_ context.Context, _ panel.CreateServiceRequest) (*panel.CreateServiceResult, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.createResult, nil
}

func (s *stubPanelClient) RenewService(_ context.Context, _ string, _ int) panel.Outcome {
	s.renewCalls++
	return s.outcome
}

func (s *stubPanelClient) AddTraffic(_ context.Context, _ string, _ int) panel.Outcome {
	s.trafficCalls++
	return s.outcome
}

func (s *stubPanelClient) GetUsage(_ context.Context, _ string) (*panel.Usage, error) {
	return &panel.Usage{UsedGB: 1.5, RemainingGB: 28.5, DaysLeft: 12}, nil
}

func (s *stubPanelClient) ResetUUID(_ context.Context, _ string) (string, error) {
	if s.resetErr != nil {
		return "", s.resetErr
	}
	return s.newUUID, nil
}

func (s *stubPanelClient) DeleteService(_ context.Context, _ string) panel.Outcome {
	s.deleteCalls++
	return s.outcome
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestOrchestrator(store repository.Store, cfg Config, client panel.Client) *Orchestrator {
	return NewOrchestrator(store, cfg, zap.NewNop()).
		WithClientFactory(func(*models.Server) panel.Client { return client }).
		WithClock(func() time.Time { return testNow })
}

func seedCatalog(store *repository.MemoryStore) (models.Server, models.Plan) {
	server := store.AddServer(models.Server{Name: "eu-1", PanelType: "mock", IsActive: true})
	plan := store.AddPlan(models.Plan{
		ServerID:     server.ID,
		Title:        "30d / 30GB",
		PriceIRR:     decimal.NewFromInt(500_000),
		DurationDays: 30,
		TrafficGB:    30,
		IsActive:     true,
	})
	return server, plan
}

func TestCreateServiceAfterPayment(t *testing.T) {
	store := repository.NewMemoryStore()
	server, plan := seedCatalog(store)
	user := store.AddUser(models.User{TelegramID: 100})

	client := &stubPanelClient{createResult: &panel.CreateServiceResult{
		UUID:            "uuid-1",
		SubscriptionURL: "vless://uuid-1@example.com:443?type=ws#alice-30d",
	}}
	o := newTestOrchestrator(store, Config{}, client)

	svc, err := o.CreateServiceAfterPayment(context.Background(), user.ID, plan.ID, server.ID, "alice-30d")
	require.NoError(t, err)
	require.Equal(t, "uuid-1", svc.UUID)
	require.True(t, svc.IsActive)
	require.NotNil(t, svc.ExpiresAt)
	require.Equal(t, testNow.Add(30*24*time.Hour), *svc.ExpiresAt)

	got, err := store.Services().FindByUUID("uuid-1")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.UserID)
}

func TestCreateServiceAfterPaymentPanelFailure(t *testing.T) {
	store := repository.NewMemoryStore()
	server, plan := seedCatalog(store)
	user := store.AddUser(models.User{TelegramID: 100})

	client := &stubPanelClient{createErr: errors.New("panel down")}
	o := newTestOrchestrator(store, Config{}, client)

	_, err := o.CreateServiceAfterPayment(context.Background(), user.ID, plan.ID, server.ID, "alice-30d")
	require.Error(t, err)

	// No half-provisioned record.
	svcs, err := store.Services().FindByUserID(user.ID)
	require.NoError(t, err)
	require.Empty(t, svcs)
}

func TestCreateServiceAwardsReferralBonus(t *testing.T) {
	store := repository.NewMemoryStore()
	server, plan := seedCatalog(store)
	referrer := store.AddUser(models.User{TelegramID: 100})
	buyer := store.AddUser(models.User{TelegramID: 200, ReferredByUserID: &referrer.ID})

	client := &stubPanelClient{createResult: &panel.CreateServiceResult{UUID: "uuid-1"}}
	o := newTestOrchestrator(store, Config{
		ReferralPercent: 10,
		ReferralFixed:   decimal.NewFromInt(5_000),
	}, client)

	_, err := o.CreateServiceAfterPayment(context.Background(), buyer.ID, plan.ID, server.ID, "bob-30d")
	require.NoError(t, err)

	// 10% of 500,000 plus 5,000 fixed.
	got, err := store.Users().FindByID(referrer.ID)
	require.NoError(t, err)
	require.True(t, got.WalletBalance.Equal(decimal.NewFromInt(55_000)),
		"expected 55000, got %s", got.WalletBalance)

	events := store.ReferralEvents()
	require.Len(t, events, 1)
	require.Equal(t, referrer.ID, events[0].ReferrerUserID)
	require.Equal(t, buyer.ID, events[0].BuyerUserID)
}

func TestCreateServiceNoReferrerNoBonus(t *testing.T) {
	store := repository.NewMemoryStore()
	server, plan := seedCatalog(store)
	buyer := store.AddUser(models.User{TelegramID: 200})

	client := &stubPanelClient{createResult: &panel.CreateServiceResult{UUID: "uuid-1"}}
	o := newTestOrchestrator(store, Config{ReferralPercent: 10}, client)

	_, err := o.CreateServiceAfterPayment(context.Background(), buyer.ID, plan.ID, server.ID, "bob-30d")
	require.NoError(t, err)
	require.Empty(t, store.ReferralEvents())
}

func TestCreateServiceMissingReferrerSkipsBonus(t *testing.T) {
	store := repository.NewMemoryStore()
	server, plan := seedCatalog(store)
	ghost := uint(999)
	buyer := store.AddUser(models.User{TelegramID: 200, ReferredByUserID: &ghost})

	client := &stubPanelClient{createResult: &panel.CreateServiceResult{UUID: "uuid-1"}}
	o := newTestOrchestrator(store, Config{ReferralPercent: 10}, client)

	// A dangling referrer must not fail the provisioning.
	svc, err := o.CreateServiceAfterPayment(context.Background(), buyer.ID, plan.ID, server.ID, "bob-30d")
	require.NoError(t, err)
	require.NotNil(t, svc)
	require.Empty(t, store.ReferralEvents())
}

func seedService(store *repository.MemoryStore, serverID uint, expiresAt *time.Time) *models.Service {
	svc := &models.Service{
		UserID:          1,
		ServerID:        serverID,
		Remark:          "alice-30d",
		UUID:            "uuid-1",
		SubscriptionURL: "vless://uuid-1@example.com:443?type=ws#alice-30d",
		IsActive:        true,
		ExpiresAt:       expiresAt,
		PurchasedAt:     testNow.Add(-10 * 24 * time.Hour),
	}
	_ = store.Services().Create(svc)
	return svc
}

func TestRenewServiceExtendsFutureExpiry(t *testing.T) {
	store := repository.NewMemoryStore()
	server, _ := seedCatalog(store)
	current := testNow.Add(5 * 24 * time.Hour)
	svc := seedService(store, server.ID, &current)

	client := &stubPanelClient{outcome: panel.OutcomeApplied}
	o := newTestOrchestrator(store, Config{}, client)

	outcome, err := o.RenewService(context.Background(), svc.ID, 30)
	require.NoError(t, err)
	require.True(t, outcome.Applied())
	require.Equal(t, 1, client.renewCalls)

	got, err := store.Services().FindByID(svc.ID)
	require.NoError(t, err)
	require.Equal(t, current.Add(30*24*time.Hour), *got.ExpiresAt, "renewal stacks on the remaining time")
}

func TestRenewServiceExpiredBasesOnNow(t *testing.T) {
	store := repository.NewMemoryStore()
	server, _ := seedCatalog(store)
	past := testNow.Add(-3 * 24 * time.Hour)
	svc := seedService(store, server.ID, &past)

	client := &stubPanelClient{outcome: panel.OutcomeApplied}
	o := newTestOrchestrator(store, Config{}, client)

	_, err := o.RenewService(context.Background(), svc.ID, 30)
	require.NoError(t, err)

	got, err := store.Services().FindByID(svc.ID)
	require.NoError(t, err)
	require.Equal(t, testNow.Add(30*24*time.Hour), *got.ExpiresAt, "lapsed time is not owed back")
	require.True(t, got.IsActive)
}

func TestRenewServicePanelUnavailableStillExtends(t *testing.T) {
	store := repository.NewMemoryStore()
	server, _ := seedCatalog(store)
	current := testNow.Add(5 * 24 * time.Hour)
	svc := seedService(store, server.ID, &current)

	client := &stubPanelClient{outcome: panel.OutcomeRemoteUnavailable}
	o := newTestOrchestrator(store, Config{}, client)

	outcome, err := o.RenewService(context.Background(), svc.ID, 30)
	require.NoError(t, err)
	require.False(t, outcome.Applied())

	got, err := store.Services().FindByID(svc.ID)
	require.NoError(t, err)
	require.Equal(t, current.Add(30*24*time.Hour), *got.ExpiresAt,
		"the stored expiry is the source of truth and extends regardless")
}

func TestResetIdentityRewritesSubscriptionURL(t *testing.T) {
	store := repository.NewMemoryStore()
	server, _ := seedCatalog(store)
	svc := seedService(store, server.ID, nil)

	client := &stubPanelClient{newUUID: "uuid-2"}
	o := newTestOrchestrator(store, Config{}, client)

	got, err := o.ResetIdentity(context.Background(), svc.ID)
	require.NoError(t, err)
	require.Equal(t, "uuid-2", got.UUID)
	require.Equal(t, "vless://uuid-2@example.com:443?type=ws#alice-30d", got.SubscriptionURL)

	stored, err := store.Services().FindByID(svc.ID)
	require.NoError(t, err)
	require.Equal(t, "uuid-2", stored.UUID)
}

func TestResetIdentityPanelFailureLeavesStore(t *testing.T) {
	store := repository.NewMemoryStore()
	server, _ := seedCatalog(store)
	svc := seedService(store, server.ID, nil)

	client := &stubPanelClient{resetErr: errors.New("panel down")}
	o := newTestOrchestrator(store, Config{}, client)

	_, err := o.ResetIdentity(context.Background(), svc.ID)
	require.Error(t, err)

	stored, err := store.Services().FindByID(svc.ID)
	require.NoError(t, err)
	require.Equal(t, "uuid-1", stored.UUID, "a failed rotation must leave the stored identity usable")
}

func TestDeleteServiceRemovesRecord(t *testing.T) {
	store := repository.NewMemoryStore()
	server, _ := seedCatalog(store)
	svc := seedService(store, server.ID, nil)

	client := &stubPanelClient{outcome: panel.OutcomeRemoteUnavailable}
	o := newTestOrchestrator(store, Config{}, client)

	outcome, err := o.DeleteService(context.Background(), svc.ID)
	require.NoError(t, err)
	require.False(t, outcome.Applied())

	_, err = store.Services().FindByID(svc.ID)
	require.ErrorIs(t, err, repository.ErrNotFound, "record goes even when the remote was unreachable")
}

func TestDeactivateExpired(t *testing.T) {
	store := repository.NewMemoryStore()
	server, _ := seedCatalog(store)

	past := testNow.Add(-time.Hour)
	future := testNow.Add(time.Hour)
	expired := seedService(store, server.ID, &past)

	fresh := &models.Service{
		UserID: 2, ServerID: server.ID, UUID: "uuid-live",
		IsActive: true, ExpiresAt: &future, PurchasedAt: testNow,
	}
	require.NoError(t, store.Services().Create(fresh))

	unlimited := &models.Service{
		UserID: 3, ServerID: server.ID, UUID: "uuid-unlimited",
		IsActive: true, PurchasedAt: testNow,
	}
	require.NoError(t, store.Services().Create(unlimited))

	client := &stubPanelClient{outcome: panel.OutcomeApplied}
	o := newTestOrchestrator(store, Config{}, client)

	count, err := o.DeactivateExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, 1, client.deleteCalls)

	got, err := store.Services().FindByID(expired.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)

	got, err = store.Services().FindByID(fresh.ID)
	require.NoError(t, err)
	require.True(t, got.IsActive)

	got, err = store.Services().FindByID(unlimited.ID)
	require.NoError(t, err)
	require.True(t, got.IsActive, "services without an expiry never lapse")

	// A second sweep finds nothing left to do.
	count, err = o.DeactivateExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestGetUsage(t *testing.T) {
	store := repository.NewMemoryStore()
	server, _ := seedCatalog(store)
	svc := seedService(store, server.ID, nil)

	o := newTestOrchestrator(store, Config{}, &stubPanelClient{})

	usage, err := o.GetUsage(context.Background(), svc.ID)
	require.NoError(t, err)
	require.Equal(t, 1.5, usage.UsedGB)
	require.Equal(t, 12, usage.DaysLeft)
}

func TestAddTraffic(t *testing.T) {
	store := repository.NewMemoryStore()
	server, _ := seedCatalog(store)
	svc := seedService(store, server.ID, nil)

	client := &stubPanelClient{outcome: panel.OutcomeApplied}
	o := newTestOrchestrator(store, Config{}, client)

	outcome, err := o.AddTraffic(context.Background(), svc.ID, 10)
	require.NoError(t, err)
	require.True(t, outcome.Applied())
	require.Equal(t, 1, client.trafficCalls)
}
