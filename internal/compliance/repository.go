package compliance

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const alertColumns = `id, tenant_id, equipment_id, type, priority, status, due_date, resolution_note, acknowledged_at, resolved_at, created_at`

func scanAlert(row pgx.Row) (Alert, error) {
	var a Alert
	var typ, status string
	if err := row.Scan(&a.ID, &a.TenantID, &a.EquipmentID, &typ, &a.Priority, &status, &a.DueDate, &a.ResolutionNote, &a.AcknowledgedAt, &a.ResolvedAt, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Alert{}, ErrNotFound
		}
		return Alert{}, err
	}
	a.Type = AlertType(typ)
	a.Status = AlertStatus(status)
	return a, nil
}

// Get fetches an alert scoped to a tenant.
func (r *Repository) Get(ctx context.Context, tenantID, id int64) (Alert, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM compliance_alerts WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	return scanAlert(row)
}

// List returns all alerts for a tenant, newest first.
func (r *Repository) List(ctx context.Context, tenantID int64) ([]Alert, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+alertColumns+` FROM compliance_alerts WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAlerts(rows)
}

// ListOpenByEquipment returns alerts of one type still open for a piece
// of equipment, scoped to the tenant.
func (r *Repository) ListOpenByEquipment(ctx context.Context, tenantID, equipmentID int64, typ AlertType) ([]Alert, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+alertColumns+` FROM compliance_alerts
		WHERE tenant_id = $1 AND equipment_id = $2 AND type = $3 AND status = $4`, tenantID, equipmentID, string(typ), string(StatusOpen))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAlerts(rows)
}

// HasOpenAlert reports whether an open or acknowledged alert of the
// given type already exists for the equipment.
func (r *Repository) HasOpenAlert(ctx context.Context, equipmentID int64, typ AlertType) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM compliance_alerts
			WHERE equipment_id = $1 AND type = $2 AND status IN ($3, $4)
		)`, equipmentID, string(typ), string(StatusOpen), string(StatusAcknowledged)).Scan(&exists)
	return exists, err
}

// Create inserts a new alert.
func (r *Repository) Create(ctx context.Context, a Alert) (Alert, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO compliance_alerts (tenant_id, equipment_id, type, priority, status, due_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+alertColumns,
		a.TenantID, a.EquipmentID, string(a.Type), a.Priority, string(StatusOpen), a.DueDate, a.CreatedAt)
	return scanAlert(row)
}

// UpdateStatus persists a lifecycle transition.
func (r *Repository) UpdateStatus(ctx context.Context, a Alert) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE compliance_alerts
		SET status = $2, resolution_note = $3, acknowledged_at = $4, resolved_at = $5
		WHERE id = $1`,
		a.ID, string(a.Status), a.ResolutionNote, a.AcknowledgedAt, a.ResolvedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordUpdate stores a derived maintenance update.
func (r *Repository) RecordUpdate(ctx context.Context, u MaintenanceUpdate) (MaintenanceUpdate, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO maintenance_updates (tenant_id, equipment_id, kind, date, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		u.TenantID, u.EquipmentID, string(u.Kind), u.Date, u.RecordedAt).Scan(&u.ID)
	return u, err
}

// ListUpdates returns derived maintenance updates for a tenant.
func (r *Repository) ListUpdates(ctx context.Context, tenantID int64, limit int) ([]MaintenanceUpdate, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, equipment_id, kind, date, recorded_at
		FROM maintenance_updates WHERE tenant_id = $1
		ORDER BY recorded_at DESC LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MaintenanceUpdate
	for rows.Next() {
		var u MaintenanceUpdate
		var kind string
		var date, recorded time.Time
		if err := rows.Scan(&u.ID, &u.TenantID, &u.EquipmentID, &kind, &date, &recorded); err != nil {
			return nil, err
		}
		u.Kind = MaintenanceUpdateKind(kind)
		u.Date = date
		u.RecordedAt = recorded
		out = append(out, u)
	}
	return out, rows.Err()
}

func collectAlerts(rows pgx.Rows) ([]Alert, error) {
	var out []Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

var _ RepositoryPort = (*Repository)(nil)
