package forum

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	"github.com/emilythestrangee/stackit/backend/internal/errs"
	"github.com/emilythestrangee/stackit/backend/internal/events"
	"github.com/emilythestrangee/stackit/backend/internal/logging"
	"github.com/emilythestrangee/stackit/backend/internal/metrics"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/store"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.VoteEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.VoteEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type recordingBroadcaster struct {
	mu      sync.Mutex
	updates map[string][]LiveUpdate
}

func (b *recordingBroadcaster) Broadcast(questionID string, v any) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.updates == nil {
		b.updates = map[string][]LiveUpdate{}
	}
	b.updates[questionID] = append(b.updates[questionID], v.(LiveUpdate))
	return true
}

type fixture struct {
	svc     *Service
	store   *store.Memory
	pub     *recordingPublisher
	live    *recordingBroadcaster
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	f := &fixture{
		store:   st,
		pub:     &recordingPublisher{},
		live:    &recordingBroadcaster{},
		metrics: metrics.New(prometheus.NewRegistry(), "forum"),
	}
	f.svc = New(Deps{
		Store:   st,
		Tokens:  auth.NewJWTGate("test-secret", time.Hour, st),
		Metrics: f.metrics,
		Events:  f.pub,
		Live:    f.live,
		Log:     logging.Discard(),
	})
	return f
}

func (f *fixture) register(t *testing.T, name string) *models.User {
	t.Helper()
	resp, err := f.svc.Register(context.Background(), models.RegisterRequest{
		Username: name,
		Email:    name + "@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	return &resp.User
}

func (f *fixture) ask(t *testing.T, author *models.User) *QuestionView {
	t.Helper()
	q, err := f.svc.CreateQuestion(context.Background(), author.ID, models.CreateQuestionRequest{
		Title:   "How do channels work?",
		Content: "Buffered vs unbuffered",
		Tags:    []string{"go", "concurrency"},
	})
	require.NoError(t, err)
	return q
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Register(ctx, models.RegisterRequest{Username: "alice", Email: "Alice@Example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.NotEqual(t, "password123", resp.User.PasswordHash)

	_, err = f.svc.Register(ctx, models.RegisterRequest{Username: "alice2", Email: "alice@example.com", Password: "password123"})
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))

	login, err := f.svc.Login(ctx, models.LoginRequest{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)

	_, err = f.svc.Login(ctx, models.LoginRequest{Email: "alice@example.com", Password: "wrong"})
	assert.Equal(t, errs.KindUnauthorized, errs.KindOf(err))

	_, err = f.svc.Login(ctx, models.LoginRequest{Email: "nobody@example.com", Password: "password123"})
	assert.Equal(t, errs.KindUnauthorized, errs.KindOf(err))
}

func TestQuestionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	q := f.ask(t, alice)
	assert.Equal(t, "alice", q.Author.Username)
	assert.Equal(t, models.Counters{}, q.Votes)

	a, err := f.svc.AddAnswer(ctx, bob.ID, q.ID, models.CreateAnswerRequest{Content: "Use select"})
	require.NoError(t, err)
	assert.Equal(t, "bob", a.Author.Username)

	detail, err := f.svc.GetQuestion(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, detail.AnswerIDs)
	require.Len(t, detail.Answers, 1)
	assert.Equal(t, "Use select", detail.Answers[0].Body)
	assert.Equal(t, "bob", detail.Answers[0].Author.Username)

	require.Len(t, f.live.updates[q.ID], 1)
	assert.Equal(t, UpdateAnswer, f.live.updates[q.ID][0].Type)

	_, err = f.svc.AddAnswer(ctx, bob.ID, "missing", models.CreateAnswerRequest{Content: "x"})
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	_, err = f.svc.GetQuestion(ctx, "missing")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestCreateQuestionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")

	_, err := f.svc.CreateQuestion(ctx, alice.ID, models.CreateQuestionRequest{Title: "No body"})
	assert.Equal(t, errs.KindInvalidArgument, errs.KindOf(err))

	_, err = f.svc.CreateQuestion(ctx, "", models.CreateQuestionRequest{Title: "t", Content: "b"})
	assert.Equal(t, errs.KindUnauthorized, errs.KindOf(err))

	q, err := f.svc.CreateQuestion(ctx, alice.ID, models.CreateQuestionRequest{Title: "t", Body: "legacy body field"})
	require.NoError(t, err)
	assert.Equal(t, "legacy body field", q.Body)
	assert.Equal(t, []string{}, q.Tags)
}

func TestListPreservesInsertionOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")

	var ids []string
	for _, title := range []string{"first", "second", "third"} {
		q, err := f.svc.CreateQuestion(ctx, alice.ID, models.CreateQuestionRequest{Title: title, Content: "body"})
		require.NoError(t, err)
		ids = append(ids, q.ID)
	}

	list, err := f.svc.ListQuestions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, q := range list {
		assert.Equal(t, ids[i], q.ID)
		assert.Equal(t, "alice", q.Author.Username)
	}
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")

	mk := func(title, body string, tags ...string) string {
		q, err := f.svc.CreateQuestion(ctx, alice.ID, models.CreateQuestionRequest{Title: title, Content: body, Tags: tags})
		require.NoError(t, err)
		return q.ID
	}
	byTitle := mk("Goroutine leaks", "how to find them")
	byBody := mk("Profiling", "pprof shows GOROUTINE counts")
	byTag := mk("Scheduling", "work stealing", "goroutines")
	mk("Unrelated", "nothing here", "sql")

	res, err := f.svc.Search(ctx, "goroutine")
	require.NoError(t, err)
	var got []string
	for _, q := range res {
		got = append(got, q.ID)
	}
	assert.Equal(t, []string{byTitle, byBody, byTag}, got)

	empty, err := f.svc.Search(ctx, "  ")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestVoteScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	u1 := f.register(t, "voter1")
	u2 := f.register(t, "voter2")
	q := f.ask(t, alice)

	steps := []struct {
		user    *models.User
		dir     models.Direction
		want    models.Counters
		outcome models.Outcome
	}{
		{u1, models.Up, models.Counters{Upvotes: 1}, models.OutcomeCast},
		{u2, models.Down, models.Counters{Upvotes: 1, Downvotes: 1}, models.OutcomeCast},
		{u1, models.Down, models.Counters{Downvotes: 2}, models.OutcomeSwitched},
		{u2, models.Down, models.Counters{Downvotes: 1}, models.OutcomeRetracted},
	}
	for _, st := range steps {
		res, err := f.svc.VoteQuestion(ctx, st.user.ID, q.ID, st.dir)
		require.NoError(t, err)
		assert.Equal(t, st.want, res.Counters)
		assert.Equal(t, st.outcome, res.Outcome)
	}

	detail, err := f.svc.GetQuestion(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Counters{Downvotes: 1}, detail.Votes)
	assert.Equal(t, -1, detail.Score)

	require.Len(t, f.pub.events, 4)
	last := f.pub.events[3]
	assert.Equal(t, q.ID, last.QuestionID)
	assert.Equal(t, models.OutcomeRetracted, last.Outcome)
	assert.Equal(t, u2.ID, last.UserID)

	assert.Len(t, f.live.updates[q.ID], 4)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.VotesApplied.WithLabelValues("question", "cast")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.VotesApplied.WithLabelValues("question", "switched")))
}

func TestVoteUnauthorizedLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	q := f.ask(t, alice)

	for _, userID := range []string{"", "ghost"} {
		_, err := f.svc.VoteQuestion(ctx, userID, q.ID, models.Up)
		assert.Equal(t, errs.KindUnauthorized, errs.KindOf(err))
	}

	got, err := f.store.GetQuestion(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Counters{}, got.Counters())

	tally, err := f.store.TallyVotes(ctx, models.TargetQuestion, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Counters{}, tally)

	assert.Empty(t, f.pub.events)
	assert.Empty(t, f.live.updates[q.ID])
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.VoteErrors.WithLabelValues("question", "unauthorized")))
}

func TestVoteErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	q := f.ask(t, alice)

	_, err := f.svc.VoteQuestion(ctx, alice.ID, "missing", models.Up)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	_, err = f.svc.VoteQuestion(ctx, alice.ID, q.ID, models.Direction("sideways"))
	assert.Equal(t, errs.KindInvalidArgument, errs.KindOf(err))

	_, err = f.svc.VoteAnswer(ctx, alice.ID, "missing", models.Up)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestAnswerVotesAreSeparateFromQuestionVotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	q := f.ask(t, alice)

	a, err := f.svc.AddAnswer(ctx, bob.ID, q.ID, models.CreateAnswerRequest{Content: "Use select"})
	require.NoError(t, err)

	res, err := f.svc.VoteAnswer(ctx, alice.ID, a.ID, models.Up)
	require.NoError(t, err)
	assert.Equal(t, models.Counters{Upvotes: 1}, res.Counters)

	res, err = f.svc.VoteQuestion(ctx, alice.ID, q.ID, models.Up)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCast, res.Outcome)

	detail, err := f.svc.GetQuestion(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Counters{Upvotes: 1}, detail.Votes)
	assert.Equal(t, models.Counters{Upvotes: 1}, detail.Answers[0].Votes)

	// the answer vote is published under its question
	require.Len(t, f.pub.events, 2)
	assert.Equal(t, models.TargetAnswer, f.pub.events[0].TargetType)
	assert.Equal(t, q.ID, f.pub.events[0].QuestionID)
}

func TestPublishFailureDoesNotFailVote(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")
	ctx := context.Background()
	alice := f.register(t, "alice")
	q := f.ask(t, alice)

	res, err := f.svc.VoteQuestion(ctx, alice.ID, q.ID, models.Up)
	require.NoError(t, err)
	assert.Equal(t, models.Counters{Upvotes: 1}, res.Counters)

	got, err := f.store.GetQuestion(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Upvotes)
}

type stalledPublisher struct{ release chan struct{} }

func (p stalledPublisher) Publish(ctx context.Context, _ events.VoteEvent) error {
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (stalledPublisher) Close() error { return nil }

func TestSlowBrokerDoesNotDelayVote(t *testing.T) {
	f := newFixture(t)
	stalled := stalledPublisher{release: make(chan struct{})}
	pub := events.NewAsync(stalled, events.AsyncOptions{Buffer: 8, Timeout: time.Minute, Log: logging.Discard()})
	t.Cleanup(func() {
		close(stalled.release)
		_ = pub.Close()
	})
	f.svc.events = pub

	ctx := context.Background()
	alice := f.register(t, "alice")
	q := f.ask(t, alice)

	start := time.Now()
	for _, dir := range []models.Direction{models.Up, models.Down, models.Down} {
		_, err := f.svc.VoteQuestion(ctx, alice.ID, q.ID, dir)
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestConcurrentVotersThroughService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	q := f.ask(t, alice)

	const n = 32
	voters := make([]*models.User, n)
	for i := range voters {
		u := &models.User{Username: "voter" + string(rune('a'+i%26)) + string(rune('a'+i/26)), Email: "", PasswordHash: "x"}
		u.Email = u.Username + "@example.com"
		require.NoError(t, f.store.CreateUser(ctx, u))
		voters[i] = u
	}

	var wg sync.WaitGroup
	for _, u := range voters {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.svc.VoteQuestion(ctx, id, q.ID, models.Up)
			assert.NoError(t, err)
		}(u.ID)
	}
	wg.Wait()

	got, err := f.store.GetQuestion(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, n, got.Upvotes)
	assert.Len(t, f.pub.events, n)
}
