package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hungtran3011/research-review-sub001/internal/common"
	"github.com/hungtran3011/research-review-sub001/internal/server/models"
	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/repomanager"
	"github.com/hungtran3011/research-review-sub001/internal/server/workflow"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
)

// Command addresses one article. A non-zero ExpectedVersion must match the
// stored version or the command fails with common.ErrConcurrentModification.
// Note and NextSteps are free text; only InitialReview stores them on the
// article, every command records Note in the audit log.
type Command struct {
	ArticleID       string
	ExpectedVersion int64
	Note            string
	NextSteps       string
}

// NewArticle is the payload of SubmitArticle.
type NewArticle struct {
	TrackID string
	Title   string
}

// Reviewer identifies the person an editor invites.
type Reviewer struct {
	ID    string
	Email string
}

// Audit log names of commands that are not status transitions.
const (
	auditSubmit   = "submitArticle"
	auditUnassign = "unassignReviewer"
	auditInvite   = "inviteReviewer"
)

// outbox collects side effects that must only happen after commit.
type outbox struct {
	notifications []models.Notification
	invitations   []Invitation
	transitions   [][2]string
	// err is returned to the caller after a successful commit
	err error
}

func (o *outbox) notify(userID, typ, articleID string, payload map[string]string) {
	if userID == "" {
		return
	}
	o.notifications = append(o.notifications, models.Notification{
		UserID:      userID,
		Type:        typ,
		ContextID:   articleID,
		ContextType: models.ContextTypeArticle,
		Payload:     payload,
	})
}

// WorkflowService runs every article command as one unit of work: lock the
// article, check the caller, check the transition, write status, assignment
// and token changes together with the audit record, then notify.
type WorkflowService struct {
	base
	repomanager repomanager.RepositoryManager
	invitations *InvitationService
	roster      *RosterService
	notifier    Notifier
	emailer     Emailer
}

// NewWorkflowService constructs a WorkflowService.
func NewWorkflowService(m repomanager.RepositoryManager, invitations *InvitationService, roster *RosterService,
	notifier Notifier, emailer Emailer, opts ...Option) *WorkflowService {
	return &WorkflowService{
		base:        newBase("workflow", opts),
		repomanager: m,
		invitations: invitations,
		roster:      roster,
		notifier:    notifier,
		emailer:     emailer,
	}
}

// run executes fn in a transaction and delivers the outbox after commit.
func (s *WorkflowService) run(ctx context.Context, command, articleID string,
	fn func(ctx context.Context, r repomanager.Repositories, ob *outbox) error) (err error) {
	start := time.Now()
	ctx, end := s.startSpan(ctx, "WorkflowService."+command, attribute.String("article.id", articleID))
	defer func() {
		s.metrics.ObserveCommand(command, err, time.Since(start))
		end(err)
	}()

	ob := &outbox{}
	err = s.repomanager.InTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		return fn(ctx, r, ob)
	})
	if err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			err = fmt.Errorf("%w: article %s changed concurrently", common.ErrConcurrentModification, articleID)
		}
		s.logger.Debug(ctx, "command rejected", "command", command, "article_id", articleID, "error", err)
		return err
	}

	s.deliver(ctx, ob)
	return ob.err
}

// deliver hands post-commit side effects to their sinks. Failures are logged;
// the command already happened.
func (s *WorkflowService) deliver(ctx context.Context, ob *outbox) {
	for _, t := range ob.transitions {
		s.metrics.ObserveTransition(t[0], t[1])
	}
	for _, inv := range ob.invitations {
		if err := s.emailer.SendInvitation(ctx, inv); err != nil {
			s.logger.Error(ctx, "invitation delivery failed", "article_id", inv.ArticleID, "email", inv.Email, "error", err)
		}
	}
	for _, n := range ob.notifications {
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.logger.Error(ctx, "notification delivery failed", "user_id", n.UserID, "type", n.Type, "error", err)
		}
	}
}

func unauthorized(subject models.Subject, what string) error {
	return fmt.Errorf("%w: subject %q may not %s", common.ErrorUnauthorized, subject.ID, what)
}

// lockArticle loads the article under its row lock and checks the expected
// version.
func (s *WorkflowService) lockArticle(ctx context.Context, r repomanager.Repositories, cmd Command) (*models.Article, error) {
	if cmd.ArticleID == "" {
		return nil, fmt.Errorf("%w: article id is required", common.ErrorValidation)
	}
	a, err := r.Articles().GetForUpdate(ctx, cmd.ArticleID)
	if err != nil {
		return nil, err
	}
	if cmd.ExpectedVersion != 0 && cmd.ExpectedVersion != a.Version {
		return nil, fmt.Errorf("%w: article %s is at version %d, expected %d",
			common.ErrConcurrentModification, a.ID, a.Version, cmd.ExpectedVersion)
	}
	return a, nil
}

// authorize checks that subject may fire ev on a. It runs before the state
// check so that callers without rights learn nothing about the article state.
func (s *WorkflowService) authorize(ctx context.Context, r repomanager.Repositories, subject models.Subject, a *models.Article, ev workflow.Event) error {
	if !workflow.Permitted(subject.Roles, ev) {
		return unauthorized(subject, string(ev))
	}

	switch ev {
	case workflow.EventStartRevisions, workflow.EventSubmitRevision:
		if subject.ID != a.AuthorID {
			return unauthorized(subject, string(ev)+" on an article they did not write")
		}
	case workflow.EventRequestApproval, workflow.EventRequestRejection:
		if workflow.Capable(subject.Roles, models.RoleEditor) {
			return nil
		}
		as, err := r.Assignments().FindActive(ctx, a.ID, subject.ID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return unauthorized(subject, string(ev)+" without an accepted assignment")
			}
			return err
		}
		if as.InvitationStatus != models.InvitationAccepted {
			return unauthorized(subject, string(ev)+" without an accepted assignment")
		}
	}
	return nil
}

func (s *WorkflowService) audit(ctx context.Context, r repomanager.Repositories, subject models.Subject, articleID, event string,
	from, to models.ArticleStatus, note string) error {
	e := &models.TransitionEvent{
		ID:         ulid.Make().String(),
		ArticleID:  articleID,
		ActorID:    subject.ID,
		Event:      event,
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
		OccurredAt: s.now(),
	}
	if err := r.Events().Append(ctx, e); err != nil {
		return fmt.Errorf("error appending audit event: %w", err)
	}
	return nil
}

// apply moves a along ev, persists it with the version check and records the
// audit event. a must be locked.
func (s *WorkflowService) apply(ctx context.Context, r repomanager.Repositories, ob *outbox, subject models.Subject,
	a *models.Article, ev workflow.Event, note string) error {
	to, err := workflow.Next(a.Status, ev)
	if err != nil {
		return err
	}

	from := a.Status
	a.Status = to
	a.UpdatedAt = s.now()
	if err := r.Articles().UpdateStatus(ctx, a); err != nil {
		return err
	}
	if err := s.audit(ctx, r, subject, a.ID, string(ev), from, to, note); err != nil {
		return err
	}

	ob.transitions = append(ob.transitions, [2]string{from.String(), to.String()})
	ob.notify(a.AuthorID, models.NotificationStatusChanged, a.ID, map[string]string{
		"event": string(ev),
		"from":  from.String(),
		"to":    to.String(),
	})
	return nil
}

// transition is the common path of commands that only change status.
func (s *WorkflowService) transition(ctx context.Context, subject models.Subject, cmd Command, command string,
	ev workflow.Event, mutate func(a *models.Article)) (*models.Article, error) {
	var out *models.Article
	err := s.run(ctx, command, cmd.ArticleID, func(ctx context.Context, r repomanager.Repositories, ob *outbox) error {
		a, err := s.lockArticle(ctx, r, cmd)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, r, subject, a, ev); err != nil {
			return err
		}
		if mutate != nil {
			mutate(a)
		}
		if err := s.apply(ctx, r, ob, subject, a, ev, cmd.Note); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// SubmitArticle creates an article in SUBMITTED owned by subject.
func (s *WorkflowService) SubmitArticle(ctx context.Context, subject models.Subject, in NewArticle) (*models.Article, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", common.ErrorValidation)
	}
	if !subject.HasRole(models.RoleAuthor) {
		return nil, unauthorized(subject, "submit articles")
	}

	now := s.now()
	a := &models.Article{
		ID:        uuid.NewString(),
		TrackID:   strings.TrimSpace(in.TrackID),
		AuthorID:  subject.ID,
		Title:     title,
		Status:    models.StatusSubmitted,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.run(ctx, "SubmitArticle", a.ID, func(ctx context.Context, r repomanager.Repositories, ob *outbox) error {
		if err := r.Articles().Create(ctx, a); err != nil {
			return err
		}
		return s.audit(ctx, r, subject, a.ID, auditSubmit, a.Status, a.Status, "")
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// InitialReview records the editor's first decision on a SUBMITTED article
// together with the note and next steps shown to the author.
func (s *WorkflowService) InitialReview(ctx context.Context, subject models.Subject, cmd Command, decision workflow.Decision) (*models.Article, error) {
	ev, err := workflow.DecisionEvent(decision)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, subject, cmd, "InitialReview", ev, func(a *models.Article) {
		a.InitialReviewNote = optional(cmd.Note)
		a.InitialReviewNextSteps = optional(cmd.NextSteps)
	})
}

// AssignReviewer invites a reviewer. The assignment, its display index, the
// invitation token and, for the first reviewer, the PENDING_REVIEW to
// IN_REVIEW move commit together. The raw token goes to the Emailer after
// commit.
func (s *WorkflowService) AssignReviewer(ctx context.Context, subject models.Subject, cmd Command, reviewer Reviewer) (*models.ReviewerAssignment, error) {
	reviewer.ID = strings.TrimSpace(reviewer.ID)
	reviewer.Email = normalizeEmail(reviewer.Email)
	if reviewer.ID == "" || reviewer.Email == "" {
		return nil, fmt.Errorf("%w: reviewer id and email are required", common.ErrorValidation)
	}

	var out *models.ReviewerAssignment
	err := s.run(ctx, "AssignReviewer", cmd.ArticleID, func(ctx context.Context, r repomanager.Repositories, ob *outbox) error {
		a, err := s.lockArticle(ctx, r, cmd)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, r, subject, a, workflow.EventAssignReviewer); err != nil {
			return err
		}
		if !workflow.AssignmentsOpen(a.Status) {
			return &workflow.IllegalTransitionError{From: a.Status, Event: workflow.EventAssignReviewer}
		}
		if reviewer.ID == a.AuthorID {
			return fmt.Errorf("%w: the author cannot review their own article", common.ErrorValidation)
		}

		if _, err := r.Assignments().FindActive(ctx, a.ID, reviewer.ID); err == nil {
			return fmt.Errorf("%w: reviewer %s already assigned", common.ErrorAlreadyExists, reviewer.ID)
		} else if !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		// outstanding tokens are burned per email, so an email may back only
		// one active assignment on the article
		existing, err := r.Assignments().ListByArticle(ctx, a.ID)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.InvitationStatus.Active() && e.ReviewerEmail == reviewer.Email {
				return fmt.Errorf("%w: %s is already invited to this article", common.ErrorAlreadyExists, reviewer.Email)
			}
		}

		as := &models.ReviewerAssignment{
			ID:               uuid.NewString(),
			ArticleID:        a.ID,
			ReviewerID:       reviewer.ID,
			ReviewerEmail:    reviewer.Email,
			InvitedBy:        subject.ID,
			InvitationStatus: models.InvitationPending,
			InvitedAt:        s.now(),
		}
		if err := r.Assignments().Create(ctx, as); err != nil {
			return fmt.Errorf("error creating assignment: %w", err)
		}
		if _, err := s.roster.ensureDisplayIndexTx(ctx, r, as); err != nil {
			return err
		}

		raw, expiresAt, err := s.invitations.createInviteTx(ctx, r, reviewer.Email, a.ID, as.ID)
		if err != nil {
			return err
		}

		if a.Status == models.StatusPendingReview {
			if err := s.apply(ctx, r, ob, subject, a, workflow.EventAssignReviewer, cmd.Note); err != nil {
				return err
			}
		} else if err := s.audit(ctx, r, subject, a.ID, auditInvite, a.Status, a.Status, cmd.Note); err != nil {
			return err
		}

		ob.invitations = append(ob.invitations, Invitation{Email: reviewer.Email, ArticleID: a.ID, Token: raw, ExpiresAt: expiresAt})
		ob.notify(reviewer.ID, models.NotificationReviewerInvited, a.ID, map[string]string{
			"title":      a.Title,
			"expires_at": expiresAt.UTC().Format(time.RFC3339),
		})
		out = as
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UnassignReviewer revokes the reviewer's active assignment and burns their
// outstanding invitation tokens for the article. The article status never
// changes, even when no reviewer is left.
func (s *WorkflowService) UnassignReviewer(ctx context.Context, subject models.Subject, cmd Command, reviewerID string) error {
	return s.run(ctx, "UnassignReviewer", cmd.ArticleID, func(ctx context.Context, r repomanager.Repositories, ob *outbox) error {
		a, err := s.lockArticle(ctx, r, cmd)
		if err != nil {
			return err
		}
		if !workflow.Capable(subject.Roles, models.RoleEditor) {
			return unauthorized(subject, "unassign reviewers")
		}
		if !workflow.AssignmentsOpen(a.Status) {
			return fmt.Errorf("%w: reviewers cannot be removed from %s", common.ErrIllegalTransition, a.Status)
		}

		as, err := r.Assignments().FindActive(ctx, a.ID, reviewerID)
		if err != nil {
			return err
		}
		if err := r.Assignments().UpdateStatus(ctx, as.ID, models.InvitationRevoked, s.now()); err != nil {
			return err
		}
		burned, err := s.invitations.burnOutstandingTx(ctx, r, a.ID, as.ReviewerEmail)
		if err != nil {
			return err
		}
		if err := s.audit(ctx, r, subject, a.ID, auditUnassign, a.Status, a.Status, cmd.Note); err != nil {
			return err
		}

		s.logger.Info(ctx, "reviewer unassigned", "article_id", a.ID, "reviewer_id", reviewerID, "tokens_burned", burned)
		ob.notify(reviewerID, models.NotificationReviewerRemoved, a.ID, map[string]string{"title": a.Title})
		return nil
	})
}

// RequestRevisions sends an article under review back to its author.
func (s *WorkflowService) RequestRevisions(ctx context.Context, subject models.Subject, cmd Command) (*models.Article, error) {
	return s.transition(ctx, subject, cmd, "RequestRevisions", workflow.EventRequestRevisions, nil)
}

// StartRevisions is the author acknowledging a revision request.
func (s *WorkflowService) StartRevisions(ctx context.Context, subject models.Subject, cmd Command) (*models.Article, error) {
	return s.transition(ctx, subject, cmd, "StartRevisions", workflow.EventStartRevisions, nil)
}

// SubmitRevision returns the revised article to review.
func (s *WorkflowService) SubmitRevision(ctx context.Context, subject models.Subject, cmd Command) (*models.Article, error) {
	return s.transition(ctx, subject, cmd, "SubmitRevision", workflow.EventSubmitRevision, nil)
}

// RequestApproval asks a senior editor to accept the article.
func (s *WorkflowService) RequestApproval(ctx context.Context, subject models.Subject, cmd Command) (*models.Article, error) {
	return s.transition(ctx, subject, cmd, "RequestApproval", workflow.EventRequestApproval, nil)
}

// RequestRejection asks a senior editor to reject the article.
func (s *WorkflowService) RequestRejection(ctx context.Context, subject models.Subject, cmd Command) (*models.Article, error) {
	return s.transition(ctx, subject, cmd, "RequestRejection", workflow.EventRequestRejection, nil)
}

// Approve accepts the article. Senior editors only.
func (s *WorkflowService) Approve(ctx context.Context, subject models.Subject, cmd Command) (*models.Article, error) {
	return s.transition(ctx, subject, cmd, "Approve", workflow.EventApprove, nil)
}

// Reject rejects the article after a rejection request. Senior editors only.
func (s *WorkflowService) Reject(ctx context.Context, subject models.Subject, cmd Command) (*models.Article, error) {
	return s.transition(ctx, subject, cmd, "Reject", workflow.EventReject, nil)
}

// ResolveInvite previews an invitation token without consuming it.
func (s *WorkflowService) ResolveInvite(ctx context.Context, raw string) (*InvitePreview, error) {
	return s.invitations.Resolve(ctx, raw)
}

// AcceptInvite consumes the token and accepts the pending assignment it was
// issued for.
func (s *WorkflowService) AcceptInvite(ctx context.Context, raw string) (*models.ReviewerAssignment, error) {
	return s.decideInvite(ctx, raw, "AcceptInvite", models.InvitationAccepted, models.NotificationInvitationAccepted)
}

// DeclineInvite consumes the token and declines the pending assignment.
func (s *WorkflowService) DeclineInvite(ctx context.Context, raw string) (*models.ReviewerAssignment, error) {
	return s.decideInvite(ctx, raw, "DeclineInvite", models.InvitationDeclined, models.NotificationInvitationDeclined)
}

// decideInvite burns the token in every outcome past the token checks. A
// token whose assignment is gone is burned and reported as not found; it
// never creates an assignment.
func (s *WorkflowService) decideInvite(ctx context.Context, raw, command string, status models.InvitationStatus, notification string) (*models.ReviewerAssignment, error) {
	var out *models.ReviewerAssignment
	err := s.run(ctx, command, "", func(ctx context.Context, r repomanager.Repositories, ob *outbox) error {
		tok, err := s.invitations.consumeTx(ctx, r, raw)
		if err != nil {
			return err
		}

		a, err := r.Articles().GetForUpdate(ctx, tok.ArticleID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				ob.err = fmt.Errorf("%w: article %s", common.ErrorNotFound, tok.ArticleID)
				return nil
			}
			return err
		}

		as, err := s.invitedAssignment(ctx, r, tok)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				ob.err = fmt.Errorf("%w: no pending assignment for this invitation", common.ErrorNotFound)
				return nil
			}
			return err
		}

		now := s.now()
		if err := r.Assignments().UpdateStatus(ctx, as.ID, status, now); err != nil {
			return err
		}
		as.InvitationStatus = status
		as.DecidedAt = &now

		ob.notify(as.InvitedBy, notification, a.ID, map[string]string{
			"reviewer_id": as.ReviewerID,
			"label":       as.Label(),
		})
		out = as
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// invitedAssignment returns the pending assignment tok was issued for. Tokens
// created without an assignment fall back to the pending one for their email.
func (s *WorkflowService) invitedAssignment(ctx context.Context, r repomanager.Repositories, tok *models.InvitationToken) (*models.ReviewerAssignment, error) {
	if tok.AssignmentID == "" {
		return r.Assignments().FindPendingByEmail(ctx, tok.ArticleID, tok.Email)
	}
	as, err := r.Assignments().Get(ctx, tok.AssignmentID)
	if err != nil {
		return nil, err
	}
	if as.ArticleID != tok.ArticleID || as.InvitationStatus != models.InvitationPending {
		return nil, common.ErrorNotFound
	}
	return as, nil
}

// canView lets the author, editors and actively assigned reviewers read an
// article.
func (s *WorkflowService) canView(ctx context.Context, r repomanager.Repositories, subject models.Subject, a *models.Article) error {
	if subject.ID == a.AuthorID || workflow.Capable(subject.Roles, models.RoleEditor) {
		return nil
	}
	if subject.HasRole(models.RoleReviewer) {
		if _, err := r.Assignments().FindActive(ctx, a.ID, subject.ID); err == nil {
			return nil
		} else if !errors.Is(err, common.ErrorNotFound) {
			return err
		}
	}
	return unauthorized(subject, "read article "+a.ID)
}

// GetArticle returns the article if subject may see it.
func (s *WorkflowService) GetArticle(ctx context.Context, subject models.Subject, articleID string) (*models.Article, error) {
	r := s.repomanager.Repositories()
	a, err := r.Articles().Get(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, r, subject, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ListMyArticles returns the subject's own articles.
func (s *WorkflowService) ListMyArticles(ctx context.Context, subject models.Subject) ([]models.Article, error) {
	return s.repomanager.Repositories().Articles().ListByAuthor(ctx, subject.ID)
}

// ListAssignments returns every assignment of the article. Editors only:
// assignments carry reviewer identities.
func (s *WorkflowService) ListAssignments(ctx context.Context, subject models.Subject, articleID string) ([]models.ReviewerAssignment, error) {
	if !workflow.Capable(subject.Roles, models.RoleEditor) {
		return nil, unauthorized(subject, "list assignments")
	}
	r := s.repomanager.Repositories()
	if _, err := r.Articles().Get(ctx, articleID); err != nil {
		return nil, err
	}
	return r.Assignments().ListByArticle(ctx, articleID)
}

// ReviewerLabels returns the anonymized reviewer labels of the article for
// its author or an editor.
func (s *WorkflowService) ReviewerLabels(ctx context.Context, subject models.Subject, articleID string) (map[string]string, error) {
	a, err := s.repomanager.Repositories().Articles().Get(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if subject.ID != a.AuthorID && !workflow.Capable(subject.Roles, models.RoleEditor) {
		return nil, unauthorized(subject, "read reviewer labels")
	}
	return s.roster.ReviewerLabels(ctx, articleID)
}

// History returns the audit log of the article for its author or an editor.
func (s *WorkflowService) History(ctx context.Context, subject models.Subject, articleID string) ([]models.TransitionEvent, error) {
	r := s.repomanager.Repositories()
	a, err := r.Articles().Get(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if subject.ID != a.AuthorID && !workflow.Capable(subject.Roles, models.RoleEditor) {
		return nil, unauthorized(subject, "read history")
	}
	return r.Events().ListByArticle(ctx, articleID)
}
