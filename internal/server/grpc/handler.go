package grpc

import (
	"context"

	"github.com/hungtran3011/research-review-sub001/internal/common"
	"github.com/hungtran3011/research-review-sub001/internal/server/models"
	"github.com/hungtran3011/research-review-sub001/internal/server/services"
	"github.com/hungtran3011/research-review-sub001/internal/server/workflow"
	"google.golang.org/protobuf/types/known/structpb"
)

// subject returns the caller or fails; the interceptor guarantees one on
// every non-public method.
func subject(ctx context.Context) (models.Subject, error) {
	s, ok := SubjectFromContext(ctx)
	if !ok {
		return models.Subject{}, common.ErrInvalidToken
	}
	return s, nil
}

func (s *GRPCServer) ping(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	return map[string]any{"status": "OK"}, nil
}

func (s *GRPCServer) refreshTokens(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	authorities, err := getStrings(req, "authorities")
	if err != nil {
		return nil, err
	}
	pair, err := s.tokens.RefreshTokens(ctx, getString(req, "subject_id"), getString(req, "refresh_token"), authorities)
	if err != nil {
		return nil, err
	}
	return tokenPairMap(pair), nil
}

func (s *GRPCServer) revokeSession(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	subj, err := subject(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.RevokeRefreshForUser(ctx, subj.ID); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

func (s *GRPCServer) resolveInvite(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	p, err := s.workflow.ResolveInvite(ctx, getString(req, "token"))
	if err != nil {
		return nil, err
	}
	return previewMap(p), nil
}

func (s *GRPCServer) acceptInvite(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	a, err := s.workflow.AcceptInvite(ctx, getString(req, "token"))
	if err != nil {
		return nil, err
	}
	return assignmentMap(a), nil
}

func (s *GRPCServer) declineInvite(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	a, err := s.workflow.DeclineInvite(ctx, getString(req, "token"))
	if err != nil {
		return nil, err
	}
	return assignmentMap(a), nil
}

func (s *GRPCServer) submitArticle(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	subj, err := subject(ctx)
	if err != nil {
		return nil, err
	}
	a, err := s.workflow.SubmitArticle(ctx, subj, services.NewArticle{
		TrackID: getString(req, "track_id"),
		Title:   getString(req, "title"),
	})
	if err != nil {
		return nil, err
	}
	return articleMap(a), nil
}

func (s *GRPCServer) initialReview(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	subj, err := subject(ctx)
	if err != nil {
		return nil, err
	}
	decision, err := workflow.ParseDecision(getString(req, "decision"))
	if err != nil {
		return nil, err
	}
	a, err := s.workflow.InitialReview(ctx, subj, commandFrom(req), decision)
	if err != nil {
		return nil, err
	}
	return articleMap(a), nil
}

func (s *GRPCServer) assignReviewer(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	subj, err := subject(ctx)
	if err != nil {
		return nil, err
	}
	a, err := s.workflow.AssignReviewer(ctx, subj, commandFrom(req), services.Reviewer{
		ID:    getString(req, "reviewer_id"),
		Email: getString(req, "reviewer_email"),
	})
	if err != nil {
		return nil, err
	}
	return assignmentMap(a), nil
}

func (s *GRPCServer) unassignReviewer(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	subj, err := subject(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.workflow.UnassignReviewer(ctx, subj, commandFrom(req), getString(req, "reviewer_id")); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

type transitionFunc func(ctx context.Context, subject models.Subject, cmd services.Command) (*models.Article, error)

func (s *GRPCServer) transition(ctx context.Context, req *structpb.Struct, fn transitionFunc) (map[string]any, error) {
	subj, err := subject(ctx)
	if err != nil {
		return nil, err
	}
	a, err := fn(ctx, subj, commandFrom(req))
	if err != nil {
		return nil, err
	}
	return articleMap(a), nil
}

func (s *GRPCServer) requestRevisions(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	return s.transition(ctx, req, s.workflow.RequestRevisions)
}

func (s *GRPCServer) startRevisions(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	return s.transition(ctx, req, s.workflow.StartRevisions)
}

func (s *GRPCServer) submitRevision(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	return s.transition(ctx, req, s.workflow.SubmitRevision)
}

func (s *GRPCServer) requestApproval(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	return s.transition(ctx, req, s.workflow.RequestApproval)
}

func (s *GRPCServer) requestRejection(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	return s.transition(ctx, req, s.workflow.RequestRejection)
}

func (s *GRPCServer) approve(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	return s.transition(ctx, req, s.workflow.Approve)
}

func (s *GRPCServer) reject(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	return s.transition(ctx, req, s.workflow.Reject)
}

func (s *GRPCServer) getArticle(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	subj, err := subject(ctx)
	if err != nil {
		return nil, err
	}
	a, err := s.workflow.GetArticle(ctx, subj, getString(req, "article_id"))
	if err != nil {
		return nil, err
	}
	return articleMap(a), nil
}

func (s *GRPCServer) listMyArticles(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	subj, err := subject(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.workflow.ListMyArticles(ctx, subj)
	if err != nil {
		return nil, err
	}
	return map[string]any{"articles": listOf(list, articleMap)}, nil
}

func (s *GRPCServer) listAssignments(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	subj, err := subject(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.workflow.ListAssignments(ctx, subj, getString(req, "article_id"))
	if err != nil {
		return nil, err
	}
	return map[string]any{"assignments": listOf(list, assignmentMap)}, nil
}

func (s *GRPCServer) reviewerLabels(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	subj, err := subject(ctx)
	if err != nil {
		return nil, err
	}
	labels, err := s.workflow.ReviewerLabels(ctx, subj, getString(req, "article_id"))
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(labels))
	for id, label := range labels {
		out[id] = label
	}
	return map[string]any{"labels": out}, nil
}

func (s *GRPCServer) history(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	subj, err := subject(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.workflow.History(ctx, subj, getString(req, "article_id"))
	if err != nil {
		return nil, err
	}
	return map[string]any{"events": listOf(list, eventMap)}, nil
}

func (s *GRPCServer) uploadURL(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	subj, err := subject(ctx)
	if err != nil {
		return nil, err
	}
	key, url, err := s.manuscripts.UploadURL(ctx, subj, getString(req, "article_id"))
	if err != nil {
		return nil, err
	}
	return map[string]any{"key": key, "url": url}, nil
}

func (s *GRPCServer) downloadURL(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	subj, err := subject(ctx)
	if err != nil {
		return nil, err
	}
	url, err := s.manuscripts.DownloadURL(ctx, subj, getString(req, "article_id"), getString(req, "key"))
	if err != nil {
		return nil, err
	}
	return map[string]any{"url": url}, nil
}

