package equipment

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetgrid/fleetgrid/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const equipmentColumns = `id, tenant_id, name, serial, category, status, project_id, last_maintenance, next_maintenance, certification_expiry, created_at, updated_at`

func scanEquipment(row pgx.Row) (Equipment, error) {
	var e Equipment
	var status string
	if err := row.Scan(&e.ID, &e.TenantID, &e.Name, &e.Serial, &e.Category, &status, &e.ProjectID, &e.LastMaintenance, &e.NextMaintenance, &e.CertificationExpiry, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Equipment{}, ErrNotFound
		}
		return Equipment{}, err
	}
	e.Status = Status(status)
	return e, nil
}

// Get fetches equipment by ID scoped to a tenant.
func (r *Repository) Get(ctx context.Context, tenantID, id int64) (Equipment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+equipmentColumns+` FROM equipment WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	return scanEquipment(row)
}

// List returns all equipment for a tenant.
func (r *Repository) List(ctx context.Context, tenantID int64) ([]Equipment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+equipmentColumns+` FROM equipment WHERE tenant_id = $1 ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Equipment
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the tenant's registered asset count.
func (r *Repository) Count(ctx context.Context, tenantID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM equipment WHERE tenant_id = $1`, tenantID).Scan(&count)
	return count, err
}

// Create inserts a new equipment record.
func (r *Repository) Create(ctx context.Context, e Equipment) (Equipment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO equipment (tenant_id, name, serial, category, status, project_id, last_maintenance, next_maintenance, certification_expiry, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING `+equipmentColumns,
		e.TenantID, e.Name, e.Serial, e.Category, string(e.Status), e.ProjectID, e.LastMaintenance, e.NextMaintenance, e.CertificationExpiry)
	created, err := scanEquipment(row)
	if err != nil {
		if errors.Is(db.MapError(err), db.ErrDuplicateKey) {
			return Equipment{}, ErrDuplicateSerial
		}
		return Equipment{}, err
	}
	return created, nil
}

// Update persists mutable fields.
func (r *Repository) Update(ctx context.Context, e Equipment) (Equipment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE equipment
		SET name = $3, category = $4, status = $5, project_id = $6, last_maintenance = $7, next_maintenance = $8, certification_expiry = $9, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+equipmentColumns,
		e.ID, e.TenantID, e.Name, e.Category, string(e.Status), e.ProjectID, e.LastMaintenance, e.NextMaintenance, e.CertificationExpiry)
	return scanEquipment(row)
}

// ListExpiringCertifications returns equipment whose certification
// expires inside the window, across all tenants.
func (r *Repository) ListExpiringCertifications(ctx context.Context, from, to time.Time) ([]Equipment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+equipmentColumns+` FROM equipment
		WHERE certification_expiry IS NOT NULL AND certification_expiry >= $1 AND certification_expiry <= $2
		ORDER BY certification_expiry`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Equipment
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ RepositoryPort = (*Repository)(nil)
