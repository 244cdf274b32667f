package forum

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/emilythestrangee/stackit/backend/internal/errs"
	"github.com/emilythestrangee/stackit/backend/internal/events"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

// VoteQuestion toggles userID's vote on a question.
func (s *Service) VoteQuestion(ctx context.Context, userID, questionID string, dir models.Direction) (models.VoteResult, error) {
	return s.vote(ctx, userID, models.TargetQuestion, questionID, dir)
}

// VoteAnswer toggles userID's vote on an answer. Answer votes are kept in
// their own ledger keyed by (user, answer).
func (s *Service) VoteAnswer(ctx context.Context, userID, answerID string, dir models.Direction) (models.VoteResult, error) {
	return s.vote(ctx, userID, models.TargetAnswer, answerID, dir)
}

func (s *Service) vote(ctx context.Context, userID string, target models.TargetType, targetID string, dir models.Direction) (models.VoteResult, error) {
	res, questionID, err := s.applyVote(ctx, userID, target, targetID, dir)
	if err != nil {
		if s.metrics != nil {
			s.metrics.VoteErrors.WithLabelValues(string(target), string(errs.KindOf(err))).Inc()
		}
		return models.VoteResult{}, err
	}

	// The vote has committed; nothing below can undo it.
	if s.metrics != nil {
		s.metrics.VotesApplied.WithLabelValues(string(target), string(res.Outcome)).Inc()
	}

	at := s.now()
	counters := res.Counters
	s.live.Broadcast(questionID, LiveUpdate{
		Type:       UpdateVote,
		QuestionID: questionID,
		TargetType: target,
		TargetID:   targetID,
		Votes:      &counters,
		At:         at,
	})

	ev := events.VoteEvent{
		TargetType: target,
		TargetID:   targetID,
		QuestionID: questionID,
		UserID:     userID,
		Direction:  dir,
		Outcome:    res.Outcome,
		Counters:   res.Counters,
		At:         at,
	}
	// Broker-backed publishers are wrapped in events.Async and return at once.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.events.Publish(pctx, ev); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"target":    target,
			"target_id": targetID,
		}).Warn("failed to publish vote event")
	}

	s.log.WithFields(logrus.Fields{
		"target":    target,
		"target_id": targetID,
		"user_id":   userID,
		"outcome":   res.Outcome,
		"upvotes":   res.Counters.Upvotes,
		"downvotes": res.Counters.Downvotes,
	}).Debug("vote applied")

	return res, nil
}

// applyVote checks the caller, finds the owning question and runs the ledger
// update. It returns the question ID the target belongs to.
func (s *Service) applyVote(ctx context.Context, userID string, target models.TargetType, targetID string, dir models.Direction) (models.VoteResult, string, error) {
	if _, err := s.requireUser(ctx, userID); err != nil {
		return models.VoteResult{}, "", err
	}

	questionID := targetID
	if target == models.TargetAnswer {
		a, err := s.store.GetAnswer(ctx, targetID)
		if err != nil {
			return models.VoteResult{}, "", err
		}
		questionID = a.QuestionID
	}

	start := time.Now()
	res, err := s.store.ApplyVote(ctx, userID, target, targetID, dir)
	if s.metrics != nil {
		s.metrics.VoteDuration.WithLabelValues(string(target)).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return models.VoteResult{}, "", err
	}
	return res, questionID, nil
}
