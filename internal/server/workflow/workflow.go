// Package workflow is the article review state machine. It has no I/O: it
// answers which event moves an article from one status to another and which
// roles may fire it. Persistence and locking belong to the services layer.
package workflow

import (
	"fmt"
	"strings"

	"github.com/hungtran3011/research-review-sub001/internal/common"
	"github.com/hungtran3011/research-review-sub001/internal/server/models"
)

// Event is a workflow command that may change an article's status.
type Event string

const (
	EventSendToReview     Event = "initialReview(SEND_TO_REVIEW)"
	EventRequestChanges   Event = "initialReview(REQUEST_CHANGES)"
	EventInitialReject    Event = "initialReview(REJECT)"
	EventAssignReviewer   Event = "assignReviewer"
	EventRequestRevisions Event = "requestRevisions"
	EventStartRevisions   Event = "startRevisions"
	EventSubmitRevision   Event = "submitRevision"
	EventRequestApproval  Event = "requestApproval"
	EventRequestRejection Event = "requestRejection"
	EventApprove          Event = "approve"
	EventReject           Event = "reject"
)

type rule struct {
	from  models.ArticleStatus
	to    models.ArticleStatus
	roles []models.Role
}

var (
	editorOnly   = []models.Role{models.RoleEditor}
	authorOnly   = []models.Role{models.RoleAuthor}
	seniorOnly   = []models.Role{models.RoleSeniorEditor}
	editorOrPeer = []models.Role{models.RoleEditor, models.RoleReviewer}
)

var table = map[Event]rule{
	EventSendToReview:     {models.StatusSubmitted, models.StatusPendingReview, editorOnly},
	EventRequestChanges:   {models.StatusSubmitted, models.StatusRevisionsRequested, editorOnly},
	EventInitialReject:    {models.StatusSubmitted, models.StatusRejected, editorOnly},
	EventAssignReviewer:   {models.StatusPendingReview, models.StatusInReview, editorOnly},
	EventRequestRevisions: {models.StatusInReview, models.StatusRevisionsRequested, editorOnly},
	EventStartRevisions:   {models.StatusRevisionsRequested, models.StatusRevisions, authorOnly},
	EventSubmitRevision:   {models.StatusRevisions, models.StatusInReview, authorOnly},
	EventRequestApproval:  {models.StatusInReview, models.StatusAcceptRequested, editorOrPeer},
	EventRequestRejection: {models.StatusInReview, models.StatusRejectRequested, editorOrPeer},
	EventApprove:          {models.StatusAcceptRequested, models.StatusAccepted, seniorOnly},
	EventReject:           {models.StatusRejectRequested, models.StatusRejected, seniorOnly},
}

// Events lists every event known to the state machine.
func Events() []Event {
	return []Event{
		EventSendToReview, EventRequestChanges, EventInitialReject, EventAssignReviewer,
		EventRequestRevisions, EventStartRevisions, EventSubmitRevision,
		EventRequestApproval, EventRequestRejection, EventApprove, EventReject,
	}
}

// IllegalTransitionError reports an event fired from a status it does not
// leave. It wraps common.ErrIllegalTransition.
type IllegalTransitionError struct {
	From  models.ArticleStatus
	Event Event
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("%s: %s not allowed from %s", common.ErrIllegalTransition, e.Event, e.From)
}

func (e *IllegalTransitionError) Unwrap() error { return common.ErrIllegalTransition }

// Next returns the destination status of ev fired from from.
func Next(from models.ArticleStatus, ev Event) (models.ArticleStatus, error) {
	r, ok := table[ev]
	if !ok || r.from != from {
		return from, &IllegalTransitionError{From: from, Event: ev}
	}
	return r.to, nil
}

// RequiredRoles returns the roles any one of which may fire ev.
func RequiredRoles(ev Event) []models.Role {
	return table[ev].roles
}

// Capable is the capability check run before every transition: it reports
// whether roles satisfy required. A senior editor may act as an editor.
func Capable(roles []models.Role, required models.Role) bool {
	for _, r := range roles {
		if r == required {
			return true
		}
		if required == models.RoleEditor && r == models.RoleSeniorEditor {
			return true
		}
	}
	return false
}

// Permitted reports whether roles satisfy any of the roles required by ev.
// Ownership and assignment checks are layered on top by the caller.
func Permitted(roles []models.Role, ev Event) bool {
	for _, req := range RequiredRoles(ev) {
		if Capable(roles, req) {
			return true
		}
	}
	return false
}

// AssignmentsOpen reports whether reviewers may be assigned or unassigned while
// an article is in status s.
func AssignmentsOpen(s models.ArticleStatus) bool {
	return s == models.StatusPendingReview || s == models.StatusInReview
}

// Decision is the editor's verdict on a freshly submitted article.
type Decision string

const (
	DecisionSendToReview   Decision = "SEND_TO_REVIEW"
	DecisionRequestChanges Decision = "REQUEST_CHANGES"
	DecisionReject         Decision = "REJECT"
)

// ParseDecision validates an initial-review decision name.
func ParseDecision(v string) (Decision, error) {
	d := Decision(strings.ToUpper(strings.TrimSpace(v)))
	if _, err := DecisionEvent(d); err != nil {
		return "", err
	}
	return d, nil
}

// DecisionEvent maps an initial-review decision to its event.
func DecisionEvent(d Decision) (Event, error) {
	switch d {
	case DecisionSendToReview:
		return EventSendToReview, nil
	case DecisionRequestChanges:
		return EventRequestChanges, nil
	case DecisionReject:
		return EventInitialReject, nil
	}
	return "", fmt.Errorf("%w: unknown initial review decision %q", common.ErrorValidation, string(d))
}
