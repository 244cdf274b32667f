package models

import "time"

type Answer struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	QuestionID string    `gorm:"type:varchar(36);not null;index" json:"question_id"`
	Body       string    `gorm:"not null" json:"content"`
	AuthorID   string    `gorm:"type:varchar(36);not null" json:"author_id"`
	Upvotes    int       `gorm:"not null;default:0" json:"-"`
	Downvotes  int       `gorm:"not null;default:0" json:"-"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (a Answer) Counters() Counters {
	return Counters{Upvotes: a.Upvotes, Downvotes: a.Downvotes}
}

type CreateAnswerRequest struct {
	Content string `json:"content" binding:"required"`
}
