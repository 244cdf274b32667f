package events

import (
	"context"
	"time"

	"github.com/emilythestrangee/stackit/backend/internal/models"
)

// VoteEvent is published after a vote commits.
type VoteEvent struct {
	TargetType models.TargetType `json:"target_type"`
	TargetID   string            `json:"target_id"`
	QuestionID string            `json:"question_id"`
	UserID     string            `json:"user_id"`
	Direction  models.Direction  `json:"direction"`
	Outcome    models.Outcome    `json:"outcome"`
	Counters   models.Counters   `json:"votes"`
	At         time.Time         `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev VoteEvent) error
	Close() error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, VoteEvent) error { return nil }
func (Nop) Close() error                             { return nil }
