package users

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetgrid/fleetgrid/internal/platform/db"
	"github.com/fleetgrid/fleetgrid/internal/roles"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, tenant_id, email, name, password_hash, role, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.Name, &u.PasswordHash, &role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	u.Role = roles.Role(role)
	return u, nil
}

// Get fetches a user by ID scoped to a tenant.
func (r *Repository) Get(ctx context.Context, tenantID, id int64) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	return scanUser(row)
}

// FindByEmail fetches a user by normalised email across tenants.
func (r *Repository) FindByEmail(ctx context.Context, email string) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email))
	return scanUser(row)
}

// List returns the tenant's members ordered by name.
func (r *Repository) List(ctx context.Context, tenantID int64) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE tenant_id = $1 ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Count returns the tenant's active member count.
func (r *Repository) Count(ctx context.Context, tenantID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE tenant_id = $1 AND is_active`, tenantID).Scan(&count)
	return count, err
}

// CountByRole returns active members holding the role.
func (r *Repository) CountByRole(ctx context.Context, tenantID int64, role roles.Role) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE tenant_id = $1 AND role = $2 AND is_active`, tenantID, string(role)).Scan(&count)
	return count, err
}

// Create inserts a new user record.
func (r *Repository) Create(ctx context.Context, u User) (User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (tenant_id, email, name, password_hash, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING `+userColumns,
		u.TenantID, strings.ToLower(u.Email), u.Name, u.PasswordHash, string(u.Role), u.IsActive)
	created, err := scanUser(row)
	if err != nil {
		if errors.Is(db.MapError(err), db.ErrDuplicateKey) {
			return User{}, ErrDuplicateEmail
		}
		return User{}, err
	}
	return created, nil
}

// UpdateRole persists a role change.
func (r *Repository) UpdateRole(ctx context.Context, tenantID, id int64, role roles.Role) (User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET role = $3, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+userColumns,
		id, tenantID, string(role))
	return scanUser(row)
}

// SetActive toggles account activation.
func (r *Repository) SetActive(ctx context.Context, tenantID, id int64, active bool) (User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET is_active = $3, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+userColumns,
		id, tenantID, active)
	return scanUser(row)
}

// Lookup returns the durable role binding for role resolution.
func (r *Repository) Lookup(ctx context.Context, userID int64) (roles.Binding, error) {
	var binding roles.Binding
	var role string
	err := r.pool.QueryRow(ctx, `SELECT id, email, role FROM users WHERE id = $1 AND is_active`, userID).
		Scan(&binding.UserID, &binding.Email, &role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return roles.Binding{}, ErrNotFound
		}
		return roles.Binding{}, err
	}
	binding.Role = roles.Role(role)
	return binding, nil
}

var (
	_ RepositoryPort  = (*Repository)(nil)
	_ roles.Directory = (*Repository)(nil)
)
