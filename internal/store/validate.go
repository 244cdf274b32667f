package store

import (
	"strings"

	"github.com/emilythestrangee/stackit/backend/internal/errs"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

// PrepareQuestion validates the required fields. Tags are stored as given,
// in order; a missing list becomes empty.
// Both backends call it before inserting.
func PrepareQuestion(q *models.Question) error {
	q.Title = strings.TrimSpace(q.Title)
	q.Body = strings.TrimSpace(q.Body)
	if q.Title == "" {
		return errs.InvalidArgument("title is required")
	}
	if q.Body == "" {
		return errs.InvalidArgument("content is required")
	}
	if q.AuthorID == "" {
		return errs.Unauthorized("question must have an author")
	}

	if q.Tags == nil {
		q.Tags = []string{}
	}
	q.AnswerIDs = []string{}
	q.Upvotes, q.Downvotes = 0, 0
	return nil
}

func PrepareAnswer(a *models.Answer) error {
	a.Body = strings.TrimSpace(a.Body)
	if a.Body == "" {
		return errs.InvalidArgument("content is required")
	}
	if a.AuthorID == "" {
		return errs.Unauthorized("answer must have an author")
	}
	a.Upvotes, a.Downvotes = 0, 0
	return nil
}

func PrepareUser(u *models.User) error {
	u.Username = strings.TrimSpace(u.Username)
	u.UsernameKey = strings.ToLower(u.Username)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Username == "" || u.Email == "" {
		return errs.InvalidArgument("username and email are required")
	}
	if u.PasswordHash == "" {
		return errs.InvalidArgument("password is required")
	}
	return nil
}

// CheckVoteArgs rejects calls that can never succeed before any state is read.
func CheckVoteArgs(userID string, target models.TargetType, dir models.Direction) error {
	if userID == "" {
		return errs.Unauthorized("authentication required")
	}
	if target != models.TargetQuestion && target != models.TargetAnswer {
		return errs.InvalidArgument("unknown vote target %q", target)
	}
	if !dir.Valid() {
		return errs.InvalidArgument("direction must be \"up\" or \"down\"")
	}
	return nil
}
