package projects

import (
	"context"
	"errors"

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

const projectColumns = `id, tenant_id, name, site, status, starts_at, ends_at, created_at, updated_at`

func scanProject(row pgx.Row) (Project, error) {
	var p Project
	var status string
	if err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Site, &status, &p.StartsAt, &p.EndsAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrNotFound
		}
		return Project{}, err
	}
	p.Status = Status(status)
	return p, nil
}

// Get fetches a project scoped to a tenant.
func (r *Repository) Get(ctx context.Context, tenantID, id int64) (Project, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	return scanProject(row)
}

// List returns all projects for a tenant.
func (r *Repository) List(ctx context.Context, tenantID int64) ([]Project, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+projectColumns+` FROM projects WHERE tenant_id = $1 ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create inserts a new project.
func (r *Repository) Create(ctx context.Context, p Project) (Project, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO projects (tenant_id, name, site, status, starts_at, ends_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING `+projectColumns,
		p.TenantID, p.Name, p.Site, string(p.Status), p.StartsAt, p.EndsAt)
	return scanProject(row)
}

// UpdateStatus persists a status change.
func (r *Repository) UpdateStatus(ctx context.Context, tenantID, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE projects SET status = $3, updated_at = NOW() WHERE id = $1 AND tenant_id = $2`, id, tenantID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
