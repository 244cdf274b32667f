package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/stackit/backend/internal/errs"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/store"
)

func (s *Service) CreateQuestion(ctx context.Context, q *models.Question) error {
	if err := store.PrepareQuestion(q); err != nil {
		return err
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	q.CreatedAt = s.clock.now()
	if err := s.db.WithContext(ctx).Create(q).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.Wrap(errs.KindConflict, err, "question already exists")
		}
		return fmt.Errorf("creating question: %w", err)
	}
	return nil
}

func (s *Service) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	db := s.db.WithContext(ctx)

	var q models.Question
	if err := db.Where("id = ?", id).Take(&q).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("question not found")
		}
		return nil, fmt.Errorf("loading question %s: %w", id, err)
	}

	q.AnswerIDs = []string{}
	if err := db.Model(&models.Answer{}).
		Where("question_id = ?", id).
		Order("created_at ASC, id ASC").
		Pluck("id", &q.AnswerIDs).Error; err != nil {
		return nil, fmt.Errorf("loading answer ids for %s: %w", id, err)
	}
	if q.Tags == nil {
		q.Tags = []string{}
	}
	return &q, nil
}

func (s *Service) ListQuestions(ctx context.Context) ([]models.Question, error) {
	db := s.db.WithContext(ctx)

	var questions []models.Question
	if err := db.Order("created_at ASC, id ASC").Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("listing questions: %w", err)
	}

	var refs []answerRef
	if err := db.Model(&models.Answer{}).
		Select("id", "question_id").
		Order("created_at ASC, id ASC").
		Find(&refs).Error; err != nil {
		return nil, fmt.Errorf("listing answer ids: %w", err)
	}

	byQuestion := make(map[string][]string, len(questions))
	for _, r := range refs {
		byQuestion[r.QuestionID] = append(byQuestion[r.QuestionID], r.ID)
	}

	for i := range questions {
		questions[i].AnswerIDs = byQuestion[questions[i].ID]
		if questions[i].AnswerIDs == nil {
			questions[i].AnswerIDs = []string{}
		}
		if questions[i].Tags == nil {
			questions[i].Tags = []string{}
		}
	}
	return questions, nil
}

// AppendAnswer inserts the answer while holding the question row, so it
// serializes with votes on the same question.
func (s *Service) AppendAnswer(ctx context.Context, questionID string, a *models.Answer) error {
	if err := store.PrepareAnswer(a); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var q counterRow
		if err := s.lockRow(tx, "questions", questionID).Take(&q).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound("question not found")
			}
			return fmt.Errorf("locking question %s: %w", questionID, err)
		}

		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		a.QuestionID = questionID
		a.CreatedAt = s.clock.now()
		if err := tx.Create(a).Error; err != nil {
			return fmt.Errorf("creating answer: %w", err)
		}
		return nil
	})
}

func (s *Service) GetAnswer(ctx context.Context, id string) (*models.Answer, error) {
	var a models.Answer
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("answer not found")
		}
		return nil, fmt.Errorf("loading answer %s: %w", id, err)
	}
	return &a, nil
}

func (s *Service) ListAnswers(ctx context.Context, questionID string) ([]models.Answer, error) {
	db := s.db.WithContext(ctx)

	var exists int64
	if err := db.Model(&models.Question{}).Where("id = ?", questionID).Count(&exists).Error; err != nil {
		return nil, fmt.Errorf("checking question %s: %w", questionID, err)
	}
	if exists == 0 {
		return nil, errs.NotFound("question not found")
	}

	answers := []models.Answer{}
	if err := db.Where("question_id = ?", questionID).Order("created_at ASC, id ASC").Find(&answers).Error; err != nil {
		return nil, fmt.Errorf("listing answers for %s: %w", questionID, err)
	}
	return answers, nil
}

func (s *Service) CountAnswers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Answer{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting answers: %w", err)
	}
	return n, nil
}

type answerRef struct {
	ID         string
	QuestionID string
}

// lockRow selects a row by id with FOR UPDATE where the dialect supports it.
// SQLite has no row locks but only ever runs one writer.
func (s *Service) lockRow(tx *gorm.DB, table, id string) *gorm.DB {
	q := tx.Table(table).Where("id = ?", id)
	if s.dialect == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}
