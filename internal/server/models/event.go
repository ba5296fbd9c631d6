package models

import "time"

// TransitionEvent is an append-only audit record of an applied workflow event.
type TransitionEvent struct {
	ID         string
	ArticleID  string
	ActorID    string
	Event      string
	FromStatus ArticleStatus
	ToStatus   ArticleStatus
	Note       string
	OccurredAt time.Time
}
