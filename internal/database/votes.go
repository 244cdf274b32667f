package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/errs"
	"github.com/emilythestrangee/stackit/backend/internal/ledger"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/store"
)

var _ store.Store = (*Service)(nil)

// counterRow is the part of a question or answer row a vote touches.
type counterRow struct {
	ID        string
	Upvotes   int
	Downvotes int
}

func tableFor(target models.TargetType) string {
	if target == models.TargetAnswer {
		return "answers"
	}
	return "questions"
}

// ApplyVote runs the ledger transition in one transaction. The target row is
// locked first, so concurrent votes on the same question or answer queue up
// behind it while votes on other targets proceed.
func (s *Service) ApplyVote(ctx context.Context, userID string, target models.TargetType, targetID string, dir models.Direction) (models.VoteResult, error) {
	if err := store.CheckVoteArgs(userID, target, dir); err != nil {
		return models.VoteResult{}, err
	}

	table := tableFor(target)
	var result models.VoteResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row counterRow
		if err := s.lockRow(tx, table, targetID).Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound("%s not found", target)
			}
			return fmt.Errorf("locking %s %s: %w", target, targetID, err)
		}

		prev, err := currentVote(tx, userID, target, targetID)
		if err != nil {
			return err
		}

		tr, err := ledger.Resolve(prev, dir, models.Counters{Upvotes: row.Upvotes, Downvotes: row.Downvotes})
		if err != nil {
			return err
		}

		switch tr.Outcome {
		case models.OutcomeCast:
			err = tx.Create(&models.Vote{
				UserID:     userID,
				TargetType: target,
				TargetID:   targetID,
				Direction:  tr.Next,
			}).Error
		case models.OutcomeRetracted:
			err = voteKey(tx, userID, target, targetID).Delete(&models.Vote{}).Error
		case models.OutcomeSwitched:
			err = voteKey(tx.Model(&models.Vote{}), userID, target, targetID).Update("direction", tr.Next).Error
		}
		if err != nil {
			return fmt.Errorf("writing vote record: %w", err)
		}

		if err := tx.Table(table).Where("id = ?", targetID).Updates(map[string]any{
			"upvotes":   tr.Counters.Upvotes,
			"downvotes": tr.Counters.Downvotes,
		}).Error; err != nil {
			return fmt.Errorf("updating %s counters: %w", target, err)
		}

		result = tr.Result()
		return nil
	})
	if err != nil {
		return models.VoteResult{}, err
	}
	return result, nil
}

func voteKey(tx *gorm.DB, userID string, target models.TargetType, targetID string) *gorm.DB {
	return tx.Where("user_id = ? AND target_type = ? AND target_id = ?", userID, target, targetID)
}

func currentVote(tx *gorm.DB, userID string, target models.TargetType, targetID string) (models.Direction, error) {
	var v models.Vote
	err := voteKey(tx, userID, target, targetID).Take(&v).Error
	switch {
	case err == nil:
		return v.Direction, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.None, nil
	default:
		return models.None, fmt.Errorf("loading vote record: %w", err)
	}
}

func (s *Service) GetVote(ctx context.Context, userID string, target models.TargetType, targetID string) (models.Direction, error) {
	var n int64
	if err := s.db.WithContext(ctx).Table(tableFor(target)).Where("id = ?", targetID).Count(&n).Error; err != nil {
		return models.None, fmt.Errorf("checking %s %s: %w", target, targetID, err)
	}
	if n == 0 {
		return models.None, errs.NotFound("%s not found", target)
	}
	return currentVote(s.db.WithContext(ctx), userID, target, targetID)
}

func (s *Service) TallyVotes(ctx context.Context, target models.TargetType, targetID string) (models.Counters, error) {
	var rows []struct {
		Direction models.Direction
		N         int
	}
	err := s.db.WithContext(ctx).Model(&models.Vote{}).
		Select("direction, COUNT(*) AS n").
		Where("target_type = ? AND target_id = ?", target, targetID).
		Group("direction").
		Scan(&rows).Error
	if err != nil {
		return models.Counters{}, fmt.Errorf("tallying votes on %s %s: %w", target, targetID, err)
	}

	var c models.Counters
	for _, r := range rows {
		c = c.Add(r.Direction, r.N)
	}
	return c, nil
}
