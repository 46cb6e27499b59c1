package purchase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vendbot/internal/models"
	"vendbot/internal/panel"
	"vendbot/internal/repository"
)

// Config carries provisioning and referral settings.
type Config struct {
	// DefaultPanelMode backs servers without a declared panel type.
	DefaultPanelMode string
	// ReferralPercent and ReferralFixed shape the referrer bonus:
	// price*percent/100 + fixed.
	ReferralPercent int64
	ReferralFixed   decimal.Decimal
}

// Orchestrator turns settled payments into provisioned services. It
// performs no payment checks itself; callers guarantee the
// transaction/intent has settled before invoking it.
type Orchestrator struct {
	store     repository.Store
	cfg       Config
	logger    *zap.Logger
	clientFor func(server *models.Server) panel.Client
	now       func() time.Time
}

func NewOrchestrator(store repository.Store, cfg Config, logger *zap.Logger) *Orchestrator {
	o := &Orchestrator{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
	o.clientFor = func(server *models.Server) panel.Client {
		return panel.ClientForServer(server, cfg.DefaultPanelMode)
	}
	return o
}

// WithClientFactory overrides panel client resolution. Test hook.
func (o *Orchestrator) WithClientFactory(fn func(server *models.Server) panel.Client) *Orchestrator {
	o.clientFor = fn
	return o
}

// WithClock overrides the orchestrator's clock. Test hook.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// CreateServiceAfterPayment provisions a service on the plan's server
// and persists the resulting record. The panel call happens before and
// outside the store unit; a provisioning failure leaves the settled
// payment untouched and is surfaced to the caller for remediation.
func (o *Orchestrator) CreateServiceAfterPayment(ctx context.Context, userID, planID, serverID uint, remark string) (*models.Service, error) {
	user, err := o.store.Users().FindByID(userID)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	plan, err := o.store.Catalog().FindPlan(planID)
	if err != nil {
		return nil, fmt.Errorf("load plan %d: %w", planID, err)
	}
	server, err := o.store.Catalog().FindServer(serverID)
	if err != nil {
		return nil, fmt.Errorf("load server %d: %w", serverID, err)
	}

	client := o.clientFor(server)
	result, err := client.CreateService(ctx, panel.CreateServiceRequest{
		Remark:       remark,
		DurationDays: plan.DurationDays,
		TrafficGB:    plan.TrafficGB,
		InboundID:    server.InboundID,
	})
	if err != nil {
		return nil, fmt.Errorf("provision on %s panel: %w", client.Type(), err)
	}

	now := o.now().UTC()
	var expiresAt *time.Time
	if plan.DurationDays > 0 {
		exp := now.Add(time.Duration(plan.DurationDays) * 24 * time.Hour)
		expiresAt = &exp
	}

	svc := &models.Service{
		UserID:          user.ID,
		ServerID:        server.ID,
		PlanID:          plan.ID,
		Remark:          remark,
		UUID:            result.UUID,
		SubscriptionURL: result.SubscriptionURL,
		IsActive:        true,
		ExpiresAt:       expiresAt,
		PurchasedAt:     now,
	}

	err = o.store.Atomic(func(s repository.Store) error {
		if err := s.Services().Create(svc); err != nil {
			return fmt.Errorf("persist service: %w", err)
		}
		return o.awardReferralBonus(s, user, plan)
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info("service provisioned",
		zap.Uint("user_id", user.ID),
		zap.Uint("service_id", svc.ID),
		zap.String("panel", client.Type()),
		zap.String("uuid", svc.UUID))
	return svc, nil
}

// awardReferralBonus credits the referrer's wallet when the buyer was
// referred. Runs inside the service-persist unit.
func (o *Orchestrator) awardReferralBonus(s repository.Store, buyer *models.User, plan *models.Plan) error {
	if buyer.ReferredByUserID == nil {
		return nil
	}
	percent := o.cfg.ReferralPercent
	if percent < 0 {
		percent = 0
	}
	fixed := o.cfg.ReferralFixed
	if fixed.IsNegative() {
		fixed = decimal.Zero
	}

	bonus := plan.PriceIRR.Mul(decimal.NewFromInt(percent)).Div(decimal.NewFromInt(100)).Add(fixed)
	if !bonus.IsPositive() {
		return nil
	}

	referrerID := *buyer.ReferredByUserID
	if _, err := s.Users().FindByID(referrerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := s.Users().AddBalance(referrerID, bonus); err != nil {
		return fmt.Errorf("credit referrer %d: %w", referrerID, err)
	}
	return s.Referrals().Create(&models.ReferralEvent{
		ReferrerUserID: referrerID,
		BuyerUserID:    buyer.ID,
		BonusAmount:    bonus,
		Description:    fmt.Sprintf("bonus %d%%+%s", percent, fixed.StringFixed(0)),
		CreatedAt:      o.now().UTC(),
	})
}

func (o *Orchestrator) serviceClient(svcID uint) (*models.Service, panel.Client, error) {
	svc, err := o.store.Services().FindByID(svcID)
	if err != nil {
		return nil, nil, fmt.Errorf("load service %d: %w", svcID, err)
	}
	server, err := o.store.Catalog().FindServer(svc.ServerID)
	if err != nil {
		return nil, nil, fmt.Errorf("load server %d: %w", svc.ServerID, err)
	}
	return svc, o.clientFor(server), nil
}

// RenewService extends a service. The panel call is best effort; the
// stored expiry is the source of truth and is always extended.
func (o *Orchestrator) RenewService(ctx context.Context, svcID uint, addDays int) (panel.Outcome, error) {
	svc, client, err := o.serviceClient(svcID)
	if err != nil {
		return panel.OutcomeRemoteUnavailable, err
	}

	outcome := client.RenewService(ctx, svc.UUID, addDays)
	if !outcome.Applied() {
		o.logger.Warn("panel renew not applied, extending stored expiry only",
			zap.Uint("service_id", svcID), zap.String("panel", client.Type()))
	}

	now := o.now().UTC()
	base := now
	if svc.ExpiresAt != nil && svc.ExpiresAt.After(now) {
		base = *svc.ExpiresAt
	}
	newExpiry := base.Add(time.Duration(addDays) * 24 * time.Hour)

	err = o.store.Services().Update(svc.ID, map[string]interface{}{
		"expires_at": newExpiry,
		"is_active":  true,
	})
	if err != nil {
		return outcome, fmt.Errorf("extend stored expiry: %w", err)
	}
	return outcome, nil
}

// AddTraffic grants extra traffic on the panel. Best effort; there is
// no stored traffic counter to reconcile.
func (o *Orchestrator) AddTraffic(ctx context.Context, svcID uint, addGB int) (panel.Outcome, error) {
	svc, client, err := o.serviceClient(svcID)
	if err != nil {
		return panel.OutcomeRemoteUnavailable, err
	}
	outcome := client.AddTraffic(ctx, svc.UUID, addGB)
	if !outcome.Applied() {
		o.logger.Warn("panel add-traffic not applied",
			zap.Uint("service_id", svcID), zap.String("panel", client.Type()))
	}
	return outcome, nil
}

// GetUsage fetches consumption for a service from its panel.
func (o *Orchestrator) GetUsage(ctx context.Context, svcID uint) (*panel.Usage, error) {
	svc, client, err := o.serviceClient(svcID)
	if err != nil {
		return nil, err
	}
	return client.GetUsage(ctx, svc.UUID)
}

// ResetIdentity rotates the service's remote identity and rewrites the
// identity token inside the stored subscription URL, preserving the
// rest of the link.
func (o *Orchestrator) ResetIdentity(ctx context.Context, svcID uint) (*models.Service, error) {
	svc, client, err := o.serviceClient(svcID)
	if err != nil {
		return nil, err
	}

	newUUID, err := client.ResetUUID(ctx, svc.UUID)
	if err != nil {
		return nil, fmt.Errorf("reset identity on %s panel: %w", client.Type(), err)
	}

	newURL := panel.RewriteIdentity(svc.SubscriptionURL, svc.UUID, newUUID)
	err = o.store.Services().Update(svc.ID, map[string]interface{}{
		"uuid":             newUUID,
		"subscription_url": newURL,
	})
	if err != nil {
		return nil, fmt.Errorf("persist rotated identity: %w", err)
	}

	svc.UUID = newUUID
	svc.SubscriptionURL = newURL
	return svc, nil
}

// DeleteService removes the remote instance best-effort and deletes the
// stored record. A missing remote resource is not an error.
func (o *Orchestrator) DeleteService(ctx context.Context, svcID uint) (panel.Outcome, error) {
	svc, client, err := o.serviceClient(svcID)
	if err != nil {
		return panel.OutcomeRemoteUnavailable, err
	}

	outcome := client.DeleteService(ctx, svc.UUID)
	if !outcome.Applied() {
		o.logger.Warn("panel delete not applied, removing stored record anyway",
			zap.Uint("service_id", svcID), zap.String("panel", client.Type()))
	}

	if err := o.store.Services().Delete(svc.ID); err != nil {
		return outcome, fmt.Errorf("delete service record: %w", err)
	}
	return outcome, nil
}

// DeactivateExpired flags expired services inactive and removes their
// remote instances best-effort. Idempotent; safe for schedulers to call
// repeatedly.
func (o *Orchestrator) DeactivateExpired(ctx context.Context) (int, error) {
	expired, err := o.store.Services().FindExpired(o.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("find expired services: %w", err)
	}

	count := 0
	for i := range expired {
		svc := expired[i]
		server, err := o.store.Catalog().FindServer(svc.ServerID)
		if err == nil {
			client := o.clientFor(server)
			if outcome := client.DeleteService(ctx, svc.UUID); !outcome.Applied() {
				o.logger.Warn("panel delete not applied during expiry sweep",
					zap.Uint("service_id", svc.ID))
			}
		}
		err = o.store.Services().Update(svc.ID, map[string]interface{}{
			"is_active": false,
		})
		if err != nil {
			return count, fmt.Errorf("deactivate service %d: %w", svc.ID, err)
		}
		count++
	}
	return count, nil
}
