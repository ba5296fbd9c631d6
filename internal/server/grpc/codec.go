package grpc

import (
	"fmt"
	"time"

	"github.com/hungtran3011/research-review-sub001/internal/common"
	"github.com/hungtran3011/research-review-sub001/internal/server/models"
	"github.com/hungtran3011/research-review-sub001/internal/server/services"
	"google.golang.org/protobuf/types/known/structpb"
)

func getString(req *structpb.Struct, key string) string {
	return req.GetFields()[key].GetStringValue()
}

func getInt(req *structpb.Struct, key string) int64 {
	return int64(req.GetFields()[key].GetNumberValue())
}

// getStrings returns nil when key is absent, and an empty slice for an empty
// list.
func getStrings(req *structpb.Struct, key string) ([]string, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return nil, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%w: %s must be a list", common.ErrorValidation, key)
	}
	out := make([]string, 0, len(list.GetValues()))
	for _, item := range list.GetValues() {
		str, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, fmt.Errorf("%w: %s must contain strings", common.ErrorValidation, key)
		}
		out = append(out, str.StringValue)
	}
	return out, nil
}

func commandFrom(req *structpb.Struct) services.Command {
	return services.Command{
		ArticleID:       getString(req, "article_id"),
		ExpectedVersion: getInt(req, "expected_version"),
		Note:            getString(req, "note"),
		NextSteps:       getString(req, "next_steps"),
	}
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func articleMap(a *models.Article) map[string]any {
	m := map[string]any{
		"id":         a.ID,
		"track_id":   a.TrackID,
		"author_id":  a.AuthorID,
		"title":      a.Title,
		"status":     a.Status.String(),
		"version":    a.Version,
		"created_at": timestamp(a.CreatedAt),
		"updated_at": timestamp(a.UpdatedAt),
	}
	if a.InitialReviewNote != nil {
		m["initial_review_note"] = *a.InitialReviewNote
	}
	if a.InitialReviewNextSteps != nil {
		m["initial_review_next_steps"] = *a.InitialReviewNextSteps
	}
	return m
}

func assignmentMap(a *models.ReviewerAssignment) map[string]any {
	m := map[string]any{
		"id":             a.ID,
		"article_id":     a.ArticleID,
		"reviewer_id":    a.ReviewerID,
		"reviewer_email": a.ReviewerEmail,
		"invited_by":     a.InvitedBy,
		"status":         string(a.InvitationStatus),
		"invited_at":     timestamp(a.InvitedAt),
		"label":          a.Label(),
	}
	if a.DecidedAt != nil {
		m["decided_at"] = timestamp(*a.DecidedAt)
	}
	if a.DisplayIndex != nil {
		m["display_index"] = *a.DisplayIndex
	}
	return m
}

func eventMap(e *models.TransitionEvent) map[string]any {
	return map[string]any{
		"id":          e.ID,
		"article_id":  e.ArticleID,
		"actor_id":    e.ActorID,
		"event":       e.Event,
		"from":        e.FromStatus.String(),
		"to":          e.ToStatus.String(),
		"note":        e.Note,
		"occurred_at": timestamp(e.OccurredAt),
	}
}

func previewMap(p *services.InvitePreview) map[string]any {
	return map[string]any{
		"email":      p.Email,
		"article_id": p.ArticleID,
		"expires_at": timestamp(p.ExpiresAt),
		"expired":    p.Expired,
		"used":       p.Used,
	}
}

func tokenPairMap(p *services.TokenPair) map[string]any {
	return map[string]any{
		"access_token":       p.AccessToken,
		"access_expires_at":  timestamp(p.AccessExpiresAt),
		"refresh_token":      p.RefreshToken,
		"refresh_expires_at": timestamp(p.RefreshExpiresAt),
	}
}

func listOf[T any](items []T, conv func(*T) map[string]any) []any {
	out := make([]any, len(items))
	for i := range items {
		out[i] = conv(&items[i])
	}
	return out
}
