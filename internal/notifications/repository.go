package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetgrid/fleetgrid/internal/shared"
)

// Repository provides PostgreSQL backed persistence for in-app
// notifications.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a new in-app notification.
func (r *Repository) Insert(ctx context.Context, n Notification) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO notifications (user_id, tenant_id, type, priority, title, message, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		RETURNING id`,
		n.UserID, n.TenantID, string(n.Type), string(n.Priority), n.Title, n.Message, n.CreatedAt).Scan(&id)
	return id, err
}

// CountForUser returns how many notifications a user has.
func (r *Repository) CountForUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

// ListForUser returns one page of a user's notifications, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID int64, limit, offset int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, tenant_id, type, priority, title, message, read, created_at
		FROM notifications WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var typ, prio string
		var created time.Time
		if err := rows.Scan(&n.ID, &n.UserID, &n.TenantID, &typ, &prio, &n.Title, &n.Message, &n.Read, &created); err != nil {
			return nil, err
		}
		n.Type = Type(typ)
		n.Priority = Priority(prio)
		n.CreatedAt = created
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flags a notification as read, scoped to its owner.
func (r *Repository) MarkRead(ctx context.Context, userID, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Members returns the user IDs and emails belonging to a tenant, used
// for tenant-wide announcements.
func (r *Repository) Members(ctx context.Context, tenantID int64) ([]Member, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, email FROM users WHERE tenant_id = $1 AND is_active`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.Email); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// Get fetches one notification scoped to its owner.
func (r *Repository) Get(ctx context.Context, userID, id int64) (Notification, error) {
	var n Notification
	var typ, prio string
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, tenant_id, type, priority, title, message, read, created_at
		FROM notifications WHERE id = $1 AND user_id = $2`, id, userID).
		Scan(&n.ID, &n.UserID, &n.TenantID, &typ, &prio, &n.Title, &n.Message, &n.Read, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Notification{}, shared.ErrNotFound
		}
		return Notification{}, err
	}
	n.Type = Type(typ)
	n.Priority = Priority(prio)
	return n, nil
}

var _ RepositoryPort = (*Repository)(nil)
