package services

import (
	"context"
	"time"

	"github.com/hungtran3011/research-review-sub001/internal/logging"
	"github.com/hungtran3011/research-review-sub001/internal/server/models"
)

// Notifier delivers in-app notifications. It is called only after the
// command that produced the notification has committed.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Invitation is what an Emailer needs to invite a reviewer. Token is the raw
// invitation token; it exists nowhere else after this call.
type Invitation struct {
	Email     string
	ArticleID string
	Token     string
	ExpiresAt time.Time
}

// Emailer delivers invitation emails.
type Emailer interface {
	SendInvitation(ctx context.Context, inv Invitation) error
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	logger logging.Logger
}

// NewLogNotifier returns a Notifier that logs.
func NewLogNotifier(l logging.Logger) *LogNotifier {
	return &LogNotifier{logger: l.With("module", "notifier")}
}

// Notify logs n.
func (n *LogNotifier) Notify(ctx context.Context, msg models.Notification) error {
	n.logger.Info(ctx, "notification",
		"user_id", msg.UserID, "type", msg.Type,
		"context_type", msg.ContextType, "context_id", msg.ContextID,
		"payload", msg.Payload)
	return nil
}

// LogEmailer writes invitations to the log. The raw token is only emitted at
// debug level.
type LogEmailer struct {
	logger logging.Logger
}

// NewLogEmailer returns an Emailer that logs.
func NewLogEmailer(l logging.Logger) *LogEmailer {
	return &LogEmailer{logger: l.With("module", "emailer")}
}

// SendInvitation logs inv.
func (e *LogEmailer) SendInvitation(ctx context.Context, inv Invitation) error {
	e.logger.Info(ctx, "invitation email", "email", inv.Email, "article_id", inv.ArticleID, "expires_at", inv.ExpiresAt)
	e.logger.Debug(ctx, "invitation token", "email", inv.Email, "token", inv.Token)
	return nil
}
