// Package forum implements the API's use cases on top of a store.Store.
// Handlers decode requests and map errors; everything else lives here.
package forum

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	"github.com/emilythestrangee/stackit/backend/internal/errs"
	"github.com/emilythestrangee/stackit/backend/internal/events"
	"github.com/emilythestrangee/stackit/backend/internal/metrics"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/store"
)

type TokenIssuer interface {
	IssueToken(u *models.User) (string, error)
}

// Broadcaster fans live updates out to a question's subscribers. It must not block.
type Broadcaster interface {
	Broadcast(questionID string, v any) bool
}

type Deps struct {
	Store   store.Store
	Tokens  TokenIssuer
	Metrics *metrics.Metrics
	Events  events.Publisher
	Live    Broadcaster
	Log     logrus.FieldLogger
}

type Service struct {
	store   store.Store
	tokens  TokenIssuer
	metrics *metrics.Metrics
	events  events.Publisher
	live    Broadcaster
	log     logrus.FieldLogger
	now     func() time.Time

	publishTimeout time.Duration
}

type noBroadcast struct{}

func (noBroadcast) Broadcast(string, any) bool { return false }

func New(d Deps) *Service {
	s := &Service{
		store:          d.Store,
		tokens:         d.Tokens,
		metrics:        d.Metrics,
		events:         d.Events,
		live:           d.Live,
		log:            d.Log,
		now:            func() time.Time { return time.Now().UTC() },
		publishTimeout: 5 * time.Second,
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.live == nil {
		s.live = noBroadcast{}
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	return s
}

func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	u := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	token, err := s.tokens.IssueToken(u)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"user_id": u.ID, "username": u.Username}).Info("user registered")
	return &models.AuthResponse{Message: "User registered successfully", Token: token, User: *u}, nil
}

func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	u, err := s.store.GetUserByEmail(ctx, req.Email)
	if errs.KindOf(err) == errs.KindNotFound {
		return nil, errs.Unauthorized("invalid credentials")
	}
	if err != nil {
		return nil, err
	}

	if err := auth.CheckPassword(u.PasswordHash, req.Password); err != nil {
		return nil, errs.Unauthorized("invalid credentials")
	}

	token, err := s.tokens.IssueToken(u)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{Message: "Login successful", Token: token, User: *u}, nil
}

func (s *Service) Profile(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, errs.Unauthorized("authentication required")
	}
	return s.store.GetUser(ctx, userID)
}

func (s *Service) CreateQuestion(ctx context.Context, userID string, req models.CreateQuestionRequest) (*QuestionView, error) {
	author, err := s.requireUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	q := &models.Question{
		Title:    req.Title,
		Body:     req.Text(),
		Tags:     req.Tags,
		AuthorID: author.ID,
	}
	if err := s.store.CreateQuestion(ctx, q); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"question_id": q.ID, "user_id": author.ID}).Info("question created")
	v := questionView(*q, author.Summary())
	return &v, nil
}

func (s *Service) ListQuestions(ctx context.Context) ([]QuestionView, error) {
	qs, err := s.store.ListQuestions(ctx)
	if err != nil {
		return nil, err
	}
	return s.questionViews(ctx, qs), nil
}

func (s *Service) GetQuestion(ctx context.Context, id string) (*QuestionDetail, error) {
	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	answers, err := s.store.ListAnswers(ctx, id)
	if err != nil {
		return nil, err
	}

	authors := newAuthorCache(s.store)
	detail := &QuestionDetail{
		QuestionView: questionView(*q, authors.get(ctx, q.AuthorID)),
		Answers:      make([]AnswerView, 0, len(answers)),
	}
	for _, a := range answers {
		detail.Answers = append(detail.Answers, answerView(a, authors.get(ctx, a.AuthorID)))
	}
	return detail, nil
}

// Search matches q case-insensitively against title, body and tags.
// An empty query returns an empty result rather than everything.
func (s *Service) Search(ctx context.Context, q string) ([]QuestionView, error) {
	needle := strings.ToLower(strings.TrimSpace(q))
	if needle == "" {
		return []QuestionView{}, nil
	}

	qs, err := s.store.ListQuestions(ctx)
	if err != nil {
		return nil, err
	}

	matched := qs[:0]
	for _, qst := range qs {
		if matches(qst, needle) {
			matched = append(matched, qst)
		}
	}
	return s.questionViews(ctx, matched), nil
}

func matches(q models.Question, needle string) bool {
	if strings.Contains(strings.ToLower(q.Title), needle) || strings.Contains(strings.ToLower(q.Body), needle) {
		return true
	}
	for _, t := range q.Tags {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}

func (s *Service) AddAnswer(ctx context.Context, userID, questionID string, req models.CreateAnswerRequest) (*AnswerView, error) {
	author, err := s.requireUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	a := &models.Answer{Body: req.Content, AuthorID: author.ID}
	if err := s.store.AppendAnswer(ctx, questionID, a); err != nil {
		return nil, err
	}

	v := answerView(*a, author.Summary())
	s.live.Broadcast(questionID, LiveUpdate{
		Type:       UpdateAnswer,
		QuestionID: questionID,
		Answer:     &v,
		At:         s.now(),
	})

	s.log.WithFields(logrus.Fields{"question_id": questionID, "answer_id": a.ID, "user_id": author.ID}).Info("answer added")
	return &v, nil
}

// Health reports the store's status.
func (s *Service) Health(ctx context.Context) map[string]string {
	return s.store.Health(ctx)
}

// requireUser resolves userID to a stored user. A missing or unknown user is
// an authentication failure, not a lookup miss.
func (s *Service) requireUser(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, errs.Unauthorized("authentication required")
	}
	u, err := s.store.GetUser(ctx, userID)
	if errs.KindOf(err) == errs.KindNotFound {
		return nil, errs.Unauthorized("user no longer exists")
	}
	return u, err
}

func (s *Service) questionViews(ctx context.Context, qs []models.Question) []QuestionView {
	authors := newAuthorCache(s.store)
	out := make([]QuestionView, 0, len(qs))
	for _, q := range qs {
		out = append(out, questionView(q, authors.get(ctx, q.AuthorID)))
	}
	return out
}

// authorCache memoizes author lookups for one request.
type authorCache struct {
	users store.UserStore
	seen  map[string]models.AuthorSummary
}

func newAuthorCache(users store.UserStore) *authorCache {
	return &authorCache{users: users, seen: map[string]models.AuthorSummary{}}
}

func (c *authorCache) get(ctx context.Context, id string) models.AuthorSummary {
	if a, ok := c.seen[id]; ok {
		return a
	}
	a := models.AuthorSummary{ID: id}
	if u, err := c.users.GetUser(ctx, id); err == nil {
		a = u.Summary()
	}
	c.seen[id] = a
	return a
}
