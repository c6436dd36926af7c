package tenants

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetgrid/fleetgrid/internal/platform/db"
	"github.com/fleetgrid/fleetgrid/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool  *pgxpool.Pool
	audit *shared.AuditLogger
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, audit *shared.AuditLogger) *Repository {
	return &Repository{pool: pool, audit: audit}
}

const tenantColumns = `id, name, tier, status, trial_ends_at, features, theme, created_at, updated_at`

func scanTenant(row pgx.Row) (Tenant, error) {
	var t Tenant
	var tier, status string
	var trialEnd *time.Time
	if err := row.Scan(&t.ID, &t.Name, &tier, &status, &trialEnd, &t.Features, &t.Theme, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, err
	}
	t.Tier = Tier(tier)
	t.Status = Status(status)
	t.TrialEndsAt = trialEnd
	return t, nil
}

// Get fetches a tenant by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Tenant, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	return scanTenant(row)
}

// Create inserts a new tenant.
func (r *Repository) Create(ctx context.Context, name string) (Tenant, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO tenants (name, tier, status, theme, created_at, updated_at)
		VALUES ($1, $2, $3, 'default', NOW(), NOW())
		RETURNING `+tenantColumns, name, string(TierBasic), string(StatusInactive))
	return scanTenant(row)
}

// UpdateSubscription persists a subscription transition.
func (r *Repository) UpdateSubscription(ctx context.Context, id int64, tier Tier, status Status, trialEndsAt *time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tenants SET tier = $2, status = $3, trial_ends_at = $4, updated_at = NOW()
		WHERE id = $1`, id, string(tier), string(status), trialEndsAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyUpgrade activates the paid tier and records the audit row in one
// transaction, so a crash between the two cannot leave an upgrade
// without its trail.
func (r *Repository) ApplyUpgrade(ctx context.Context, id int64, tier Tier, log shared.AuditLog) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE tenants SET tier = $2, status = $3, trial_ends_at = NULL, updated_at = NOW()
			WHERE id = $1`, id, string(tier), string(StatusActive))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return r.audit.RecordTx(ctx, tx, log)
	})
}

// UpdateSettings persists feature toggles and theme.
func (r *Repository) UpdateSettings(ctx context.Context, id int64, features []string, theme string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tenants SET features = $2, theme = $3, updated_at = NOW()
		WHERE id = $1`, id, features, theme)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTrialing returns tenants whose trial window has closed but whose
// status still says trialing.
func (r *Repository) ListTrialing(ctx context.Context, cutoff time.Time) ([]Tenant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+tenantColumns+` FROM tenants
		WHERE status = $1 AND trial_ends_at IS NOT NULL AND trial_ends_at <= $2
		ORDER BY trial_ends_at`, string(StatusTrialing), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

var _ RepositoryPort = (*Repository)(nil)
