package models

import "time"

type Question struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	Body      string    `gorm:"not null" json:"content"`
	Tags      []string  `gorm:"serializer:json;type:text" json:"tags"`
	AuthorID  string    `gorm:"type:varchar(36);not null;index" json:"author_id"`
	Upvotes   int       `gorm:"not null;default:0" json:"-"`
	Downvotes int       `gorm:"not null;default:0" json:"-"`
	AnswerIDs []string  `gorm:"-" json:"answer_ids"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (q Question) Counters() Counters {
	return Counters{Upvotes: q.Upvotes, Downvotes: q.Downvotes}
}

type CreateQuestionRequest struct {
	Title   string   `json:"title" binding:"required"`
	Content string   `json:"content"`
	Body    string   `json:"body"`
	Tags    []string `json:"tags"`
}

// Text returns the question body, accepting either field name clients send.
func (r CreateQuestionRequest) Text() string {
	if r.Content != "" {
		return r.Content
	}
	return r.Body
}
