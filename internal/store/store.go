package store

import (
	"context"

	"github.com/emilythestrangee/stackit/backend/internal/models"
)

type UserStore interface {
	// CreateUser assigns an ID when u.ID is empty. Duplicate email or
	// username fails with a conflict error.
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

type QuestionStore interface {
	CreateQuestion(ctx context.Context, q *models.Question) error
	GetQuestion(ctx context.Context, id string) (*models.Question, error)
	// ListQuestions returns questions in insertion order.
	ListQuestions(ctx context.Context) ([]models.Question, error)
	AppendAnswer(ctx context.Context, questionID string, a *models.Answer) error
	GetAnswer(ctx context.Context, id string) (*models.Answer, error)
	ListAnswers(ctx context.Context, questionID string) ([]models.Answer, error)
	CountAnswers(ctx context.Context) (int64, error)
}

// VoteLedger applies votes. ApplyVote reads the user's record, resolves the
// transition and writes both the record and the target's counters as one
// atomic step scoped to the target.
type VoteLedger interface {
	ApplyVote(ctx context.Context, userID string, target models.TargetType, targetID string, dir models.Direction) (models.VoteResult, error)
	GetVote(ctx context.Context, userID string, target models.TargetType, targetID string) (models.Direction, error)
	// TallyVotes counts the records on a target by direction.
	TallyVotes(ctx context.Context, target models.TargetType, targetID string) (models.Counters, error)
}

type Store interface {
	UserStore
	QuestionStore
	VoteLedger
	Health(ctx context.Context) map[string]string
	Close() error
}
