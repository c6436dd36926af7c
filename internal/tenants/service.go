package tenants

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fleetgrid/fleetgrid/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Tenant, error)
	Create(ctx context.Context, name string) (Tenant, error)
	UpdateSubscription(ctx context.Context, id int64, tier Tier, status Status, trialEndsAt *time.Time) error
	ApplyUpgrade(ctx context.Context, id int64, tier Tier, log shared.AuditLog) error
	UpdateSettings(ctx context.Context, id int64, features []string, theme string) error
	ListTrialing(ctx context.Context, cutoff time.Time) ([]Tenant, error)
}

// IdempotencyPort guards payment confirmations against replays.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditPort records subscription transitions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Notifier surfaces subscription events to tenant users.
type Notifier interface {
	Announce(ctx context.Context, tenantID int64, kind, message string) error
}

// MetricsPort counts expired trials.
type MetricsPort interface {
	ObserveTrialExpired()
}

// Service owns the subscription state machine:
// inactive -> trialing -> {active, expired}; active <-> expired.
type Service struct {
	repo        RepositoryPort
	idempotency IdempotencyPort
	audit       AuditPort
	notifier    Notifier
	metrics     MetricsPort
	logger      *slog.Logger
	trialLen    time.Duration
	group       singleflight.Group
	now         func() time.Time
}

// NewService constructs the tenant service.
func NewService(repo RepositoryPort, idem IdempotencyPort, audit AuditPort, notifier Notifier, metrics MetricsPort, logger *slog.Logger, trialLen time.Duration) *Service {
	return &Service{
		repo:        repo,
		idempotency: idem,
		audit:       audit,
		notifier:    notifier,
		metrics:     metrics,
		logger:      logger,
		trialLen:    trialLen,
		now:         time.Now,
	}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Create provisions a tenant at the basic tier with an inactive
// subscription.
func (s *Service) Create(ctx context.Context, name string) (Tenant, error) {
	if name == "" {
		return Tenant{}, fmt.Errorf("tenants: name required")
	}
	return s.repo.Create(ctx, name)
}

// Get loads a tenant and lazily applies the trial-expiry transition.
// Concurrent reads for the same tenant collapse into one evaluation.
func (s *Service) Get(ctx context.Context, id int64) (Tenant, error) {
	result, err, _ := s.group.Do(strconv.FormatInt(id, 10), func() (any, error) {
		tenant, err := s.repo.Get(ctx, id)
		if err != nil {
			return Tenant{}, err
		}
		return s.evaluateTrial(ctx, tenant)
	})
	if err != nil {
		return Tenant{}, err
	}
	return result.(Tenant), nil
}

// StartTrial opens a premium trial window. Rejected when a subscription
// is already active or trialing.
func (s *Service) StartTrial(ctx context.Context, id int64, actorID int64) (Tenant, error) {
	tenant, err := s.Get(ctx, id)
	if err != nil {
		return Tenant{}, err
	}
	if tenant.Status == StatusActive || tenant.Status == StatusTrialing {
		return Tenant{}, ErrTrialNotAllowed
	}
	ends := s.now().Add(s.trialLen)
	if err := s.repo.UpdateSubscription(ctx, id, TierPremium, StatusTrialing, &ends); err != nil {
		return Tenant{}, err
	}
	tenant.Tier = TierPremium
	tenant.Status = StatusTrialing
	tenant.TrialEndsAt = &ends

	s.recordAudit(ctx, actorID, id, "SUBSCRIPTION_TRIAL_START", map[string]any{"trial_ends_at": ends})
	s.announce(ctx, id, "subscription", "Premium trial started")
	return tenant, nil
}

// ConfirmUpgrade applies a tier change after payment confirmation. The
// payment reference doubles as the idempotency key; replays return the
// current state without a second transition.
func (s *Service) ConfirmUpgrade(ctx context.Context, id int64, tier Tier, paymentRef string, actorID int64) (Tenant, error) {
	if tier.Rank() == 0 {
		return Tenant{}, fmt.Errorf("tenants: unknown tier %q", tier)
	}
	if paymentRef == "" {
		return Tenant{}, fmt.Errorf("tenants: payment reference required")
	}
	if err := s.idempotency.CheckAndInsert(ctx, paymentRef, "subscription"); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			return s.Get(ctx, id)
		}
		return Tenant{}, err
	}
	log := shared.AuditLog{
		ActorID:  actorID,
		TenantID: id,
		Action:   "SUBSCRIPTION_UPGRADE",
		Entity:   "tenant",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     map[string]any{"tier": string(tier), "payment_ref": paymentRef},
		At:       s.now(),
	}
	// The tier change and its audit row commit together.
	if err := s.repo.ApplyUpgrade(ctx, id, tier, log); err != nil {
		// Roll the key back so a retry can apply the transition.
		if derr := s.idempotency.Delete(ctx, paymentRef); derr != nil && s.logger != nil {
			s.logger.Warn("tenants: rollback idempotency key", slog.String("key", paymentRef), slog.Any("error", derr))
		}
		return Tenant{}, err
	}
	tenant, err := s.repo.Get(ctx, id)
	if err != nil {
		return Tenant{}, err
	}
	s.announce(ctx, id, "subscription", fmt.Sprintf("Subscription upgraded to %s", tier))
	return tenant, nil
}

// UpdateSettings persists feature toggles and theme selection.
func (s *Service) UpdateSettings(ctx context.Context, id int64, features []string, theme string) (Tenant, error) {
	if err := s.repo.UpdateSettings(ctx, id, features, theme); err != nil {
		return Tenant{}, err
	}
	return s.repo.Get(ctx, id)
}

// ExpireTrials transitions every tenant whose trial window has closed.
// Called by the scheduled sweep; bounds the staleness window of the
// on-read evaluation. Returns the number of tenants transitioned.
func (s *Service) ExpireTrials(ctx context.Context) (int, error) {
	tenants, err := s.repo.ListTrialing(ctx, s.now())
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, tenant := range tenants {
		updated, err := s.evaluateTrial(ctx, tenant)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("tenants: expire trial", slog.Int64("tenant_id", tenant.ID), slog.Any("error", err))
			}
			continue
		}
		if updated.Status == StatusExpired {
			expired++
		}
	}
	return expired, nil
}

// evaluateTrial applies the trialing -> expired transition when the
// window has closed. Idempotent: already-expired tenants pass through.
func (s *Service) evaluateTrial(ctx context.Context, tenant Tenant) (Tenant, error) {
	if tenant.Status != StatusTrialing {
		return tenant, nil
	}
	now := s.now()
	if tenant.TrialEndsAt != nil && tenant.TrialEndsAt.After(now) {
		return tenant, nil
	}
	// Tier reverts to basic when the trial lapses without payment.
	if err := s.repo.UpdateSubscription(ctx, tenant.ID, TierBasic, StatusExpired, nil); err != nil {
		return Tenant{}, err
	}
	tenant.Tier = TierBasic
	tenant.Status = StatusExpired
	tenant.TrialEndsAt = nil
	if s.metrics != nil {
		s.metrics.ObserveTrialExpired()
	}
	s.announce(ctx, tenant.ID, "subscription", "Premium trial expired")
	return tenant, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID, tenantID int64, action string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{
		ActorID:  actorID,
		TenantID: tenantID,
		Action:   action,
		Entity:   "tenant",
		EntityID: strconv.FormatInt(tenantID, 10),
		Meta:     meta,
		At:       s.now(),
	}
	if err := s.audit.Record(ctx, log); err != nil && s.logger != nil {
		s.logger.Warn("tenants: audit record", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) announce(ctx context.Context, tenantID int64, kind, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Announce(ctx, tenantID, kind, message); err != nil && s.logger != nil {
		s.logger.Warn("tenants: announce", slog.String("kind", kind), slog.Any("error", err))
	}
}
