package models

// Notification types emitted by the workflow.
const (
	NotificationStatusChanged      = "article.status_changed"
	NotificationReviewerInvited    = "reviewer.invited"
	NotificationInvitationAccepted = "reviewer.invitation_accepted"
	NotificationInvitationDeclined = "reviewer.invitation_declined"
	NotificationReviewerRemoved    = "reviewer.removed"
)

// ContextTypeArticle marks notifications whose ContextID is an article ID.
const ContextTypeArticle = "article"

// Notification is handed to the external notifier after a command commits.
type Notification struct {
	UserID      string
	Type        string
	ContextID   string
	ContextType string
	Payload     map[string]string
}
