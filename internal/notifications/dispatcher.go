package notifications

import (
	"context"
	"log/slog"
	"time"
)

// Member is a notification recipient within a tenant.
type Member struct {
	UserID int64
	Email  string
}

// RepositoryPort describes persistence used by the Dispatcher.
type RepositoryPort interface {
	Insert(ctx context.Context, n Notification) (int64, error)
	ListForUser(ctx context.Context, userID int64, limit, offset int) ([]Notification, error)
	CountForUser(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, userID, id int64) error
	Get(ctx context.Context, userID, id int64) (Notification, error)
	Members(ctx context.Context, tenantID int64) ([]Member, error)
}

// Mailer enqueues outbound email delivery.
type Mailer interface {
	EnqueueEmail(ctx context.Context, to, subject, body string) error
}

// Dispatcher filters notifications through user preferences and fans
// them out to the active channels. SMS is accepted as a preference but
// has no transport here; only in-app and email deliver.
type Dispatcher struct {
	repo   RepositoryPort
	prefs  *PrefStore
	mailer Mailer
	logger *slog.Logger
	now    func() time.Time
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(repo RepositoryPort, prefs *PrefStore, mailer Mailer, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{repo: repo, prefs: prefs, mailer: mailer, logger: logger, now: time.Now}
}

// WithNow overrides the dispatcher clock for testing.
func (d *Dispatcher) WithNow(fn func() time.Time) {
	if fn != nil {
		d.now = fn
	}
}

// Notify delivers one notification to one user, honouring their
// preferences. A disabled type drops the notification silently.
func (d *Dispatcher) Notify(ctx context.Context, member Member, n Notification) error {
	prefs := d.prefs.Load(ctx, member.UserID)
	if !prefs.Enabled(n.Type) {
		return nil
	}
	n.UserID = member.UserID
	if n.CreatedAt.IsZero() {
		n.CreatedAt = d.now()
	}
	if n.Priority == "" {
		n.Priority = PriorityMedium
	}
	if _, err := d.repo.Insert(ctx, n); err != nil {
		return err
	}
	if d.mailer != nil && member.Email != "" && prefs.HasChannel(n.Type, ChannelEmail) {
		if err := d.mailer.EnqueueEmail(ctx, member.Email, n.Title, n.Message); err != nil && d.logger != nil {
			d.logger.Warn("notifications: enqueue email", slog.Int64("user_id", member.UserID), slog.Any("error", err))
		}
	}
	return nil
}

// Broadcast fans a notification out to every active member of a tenant.
func (d *Dispatcher) Broadcast(ctx context.Context, tenantID int64, n Notification) error {
	members, err := d.repo.Members(ctx, tenantID)
	if err != nil {
		return err
	}
	n.TenantID = tenantID
	for _, member := range members {
		if err := d.Notify(ctx, member, n); err != nil && d.logger != nil {
			d.logger.Warn("notifications: broadcast member", slog.Int64("user_id", member.UserID), slog.Any("error", err))
		}
	}
	return nil
}

// Announce is the untyped convenience form of Broadcast. Kinds map onto
// notification types; unknown kinds fall back to system.
func (d *Dispatcher) Announce(ctx context.Context, tenantID int64, kind, message string) error {
	return d.Broadcast(ctx, tenantID, Notification{
		Type:     typeForKind(kind),
		Title:    message,
		Message:  message,
		Priority: PriorityMedium,
	})
}

func typeForKind(kind string) Type {
	switch kind {
	case "subscription":
		return TypeSubscription
	case "upgrade":
		return TypeUpgrade
	case "project":
		return TypeProjectAssignment
	default:
		return TypeSystem
	}
}
