package forum

import (
	"time"

	"github.com/emilythestrangee/stackit/backend/internal/models"
)

// QuestionView is a question as the API shows it: the record, its author
// summary and the current vote counters.
type QuestionView struct {
	models.Question
	Author models.AuthorSummary `json:"author"`
	Votes  models.Counters      `json:"votes"`
	Score  int                  `json:"score"`
}

// QuestionDetail adds the embedded answer list to a QuestionView.
type QuestionDetail struct {
	QuestionView
	Answers []AnswerView `json:"answers"`
}

type AnswerView struct {
	models.Answer
	Author models.AuthorSummary `json:"author"`
	Votes  models.Counters      `json:"votes"`
	Score  int                  `json:"score"`
}

// LiveUpdate is pushed to websocket subscribers of a question.
type LiveUpdate struct {
	Type       string            `json:"type"`
	QuestionID string            `json:"question_id"`
	TargetType models.TargetType `json:"target_type,omitempty"`
	TargetID   string            `json:"target_id,omitempty"`
	Votes      *models.Counters  `json:"votes,omitempty"`
	Answer     *AnswerView       `json:"answer,omitempty"`
	At         time.Time         `json:"at"`
}

const (
	UpdateVote   = "vote"
	UpdateAnswer = "answer"
)

func questionView(q models.Question, author models.AuthorSummary) QuestionView {
	c := q.Counters()
	return QuestionView{Question: q, Author: author, Votes: c, Score: c.Score()}
}

func answerView(a models.Answer, author models.AuthorSummary) AnswerView {
	c := a.Counters()
	return AnswerView{Answer: a, Author: author, Votes: c, Score: c.Score()}
}
