package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emilythestrangee/stackit/backend/internal/errs"
	"github.com/emilythestrangee/stackit/backend/internal/ledger"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

// Memory is a Store kept in process memory.
//
// Locking: mu guards map membership and the question order only. Each question
// and answer entry has its own mutex guarding its record, counters and vote
// map. mu is never held while an entry mutex is acquired, so votes on different
// targets never wait on each other.
type Memory struct {
	mu        sync.RWMutex
	users     map[string]*models.User
	emails    map[string]string
	usernames map[string]string
	questions map[string]*questionEntry
	order     []*questionEntry
	answers   map[string]*answerEntry

	now func() time.Time
}

var _ Store = (*Memory)(nil)

type questionEntry struct {
	mu    sync.Mutex
	q     models.Question
	votes map[string]models.Direction
}

type answerEntry struct {
	mu    sync.Mutex
	a     models.Answer
	votes map[string]models.Direction
}

func NewMemory() *Memory {
	return &Memory{
		users:     make(map[string]*models.User),
		emails:    make(map[string]string),
		usernames: make(map[string]string),
		questions: make(map[string]*questionEntry),
		answers:   make(map[string]*answerEntry),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) CreateUser(_ context.Context, u *models.User) error {
	if err := PrepareUser(u); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.emails[u.Email]; ok {
		return errs.Conflict("email already registered")
	}
	if _, ok := m.usernames[u.UsernameKey]; ok {
		return errs.Conflict("username already taken")
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := m.now()
	u.CreatedAt, u.UpdatedAt = now, now

	stored := *u
	m.users[u.ID] = &stored
	m.emails[u.Email] = u.ID
	m.usernames[u.UsernameKey] = u.ID
	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, errs.NotFound("user not found")
	}
	out := *u
	return &out, nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.emails[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, errs.NotFound("user not found")
	}
	out := *m.users[id]
	return &out, nil
}

func (m *Memory) CountUsers(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.users)), nil
}

func (m *Memory) CreateQuestion(_ context.Context, q *models.Question) error {
	if err := PrepareQuestion(q); err != nil {
		return err
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	q.CreatedAt = m.now()

	e := &questionEntry{q: cloneQuestion(*q), votes: make(map[string]models.Direction)}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.questions[q.ID]; ok {
		return errs.Conflict("question %s already exists", q.ID)
	}
	m.questions[q.ID] = e
	m.order = append(m.order, e)
	return nil
}

func (m *Memory) question(id string) (*questionEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.questions[id]
	return e, ok
}

func (m *Memory) answer(id string) (*answerEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.answers[id]
	return e, ok
}

func (m *Memory) GetQuestion(_ context.Context, id string) (*models.Question, error) {
	e, ok := m.question(id)
	if !ok {
		return nil, errs.NotFound("question not found")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	q := cloneQuestion(e.q)
	return &q, nil
}

func (m *Memory) ListQuestions(_ context.Context) ([]models.Question, error) {
	m.mu.RLock()
	entries := make([]*questionEntry, len(m.order))
	copy(entries, m.order)
	m.mu.RUnlock()

	out := make([]models.Question, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, cloneQuestion(e.q))
		e.mu.Unlock()
	}
	return out, nil
}

func (m *Memory) AppendAnswer(_ context.Context, questionID string, a *models.Answer) error {
	if err := PrepareAnswer(a); err != nil {
		return err
	}

	qe, ok := m.question(questionID)
	if !ok {
		return errs.NotFound("question not found")
	}

	qe.mu.Lock()
	defer qe.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.QuestionID = questionID
	a.CreatedAt = m.now()

	m.mu.Lock()
	m.answers[a.ID] = &answerEntry{a: *a, votes: make(map[string]models.Direction)}
	m.mu.Unlock()

	qe.q.AnswerIDs = append(qe.q.AnswerIDs, a.ID)
	return nil
}

func (m *Memory) GetAnswer(_ context.Context, id string) (*models.Answer, error) {
	e, ok := m.answer(id)
	if !ok {
		return nil, errs.NotFound("answer not found")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	a := e.a
	return &a, nil
}

func (m *Memory) ListAnswers(ctx context.Context, questionID string) ([]models.Answer, error) {
	q, err := m.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}

	out := make([]models.Answer, 0, len(q.AnswerIDs))
	for _, id := range q.AnswerIDs {
		a, err := m.GetAnswer(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("answer %s listed on question %s: %w", id, questionID, err)
		}
		out = append(out, *a)
	}
	return out, nil
}

func (m *Memory) CountAnswers(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.answers)), nil
}

func (m *Memory) ApplyVote(_ context.Context, userID string, target models.TargetType, targetID string, dir models.Direction) (models.VoteResult, error) {
	if err := CheckVoteArgs(userID, target, dir); err != nil {
		return models.VoteResult{}, err
	}

	switch target {
	case models.TargetQuestion:
		e, ok := m.question(targetID)
		if !ok {
			return models.VoteResult{}, errs.NotFound("question not found")
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		return applyVote(e.votes, userID, dir, &e.q.Upvotes, &e.q.Downvotes)
	default:
		e, ok := m.answer(targetID)
		if !ok {
			return models.VoteResult{}, errs.NotFound("answer not found")
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		return applyVote(e.votes, userID, dir, &e.a.Upvotes, &e.a.Downvotes)
	}
}

// applyVote must be called with the owning entry locked.
func applyVote(votes map[string]models.Direction, userID string, dir models.Direction, up, down *int) (models.VoteResult, error) {
	tr, err := ledger.Resolve(votes[userID], dir, models.Counters{Upvotes: *up, Downvotes: *down})
	if err != nil {
		return models.VoteResult{}, err
	}
	if tr.Next == models.None {
		delete(votes, userID)
	} else {
		votes[userID] = tr.Next
	}
	*up, *down = tr.Counters.Upvotes, tr.Counters.Downvotes
	return tr.Result(), nil
}

func (m *Memory) GetVote(_ context.Context, userID string, target models.TargetType, targetID string) (models.Direction, error) {
	switch target {
	case models.TargetQuestion:
		e, ok := m.question(targetID)
		if !ok {
			return models.None, errs.NotFound("question not found")
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.votes[userID], nil
	case models.TargetAnswer:
		e, ok := m.answer(targetID)
		if !ok {
			return models.None, errs.NotFound("answer not found")
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.votes[userID], nil
	default:
		return models.None, errs.InvalidArgument("unknown vote target %q", target)
	}
}

func (m *Memory) TallyVotes(_ context.Context, target models.TargetType, targetID string) (models.Counters, error) {
	var votes map[string]models.Direction
	var mu *sync.Mutex

	switch target {
	case models.TargetQuestion:
		e, ok := m.question(targetID)
		if !ok {
			return models.Counters{}, errs.NotFound("question not found")
		}
		votes, mu = e.votes, &e.mu
	case models.TargetAnswer:
		e, ok := m.answer(targetID)
		if !ok {
			return models.Counters{}, errs.NotFound("answer not found")
		}
		votes, mu = e.votes, &e.mu
	default:
		return models.Counters{}, errs.InvalidArgument("unknown vote target %q", target)
	}

	mu.Lock()
	defer mu.Unlock()
	dirs := make([]models.Direction, 0, len(votes))
	for _, d := range votes {
		dirs = append(dirs, d)
	}
	return ledger.Tally(dirs), nil
}

func (m *Memory) Health(_ context.Context) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]string{
		"status":    "up",
		"database":  "in-memory",
		"users":     fmt.Sprintf("%d", len(m.users)),
		"questions": fmt.Sprintf("%d", len(m.questions)),
		"answers":   fmt.Sprintf("%d", len(m.answers)),
	}
}

func (m *Memory) Close() error {
	return nil
}

func cloneQuestion(q models.Question) models.Question {
	q.Tags = append([]string{}, q.Tags...)
	q.AnswerIDs = append([]string{}, q.AnswerIDs...)
	return q
}
