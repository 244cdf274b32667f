// Package storetest is a conformance suite run against every store.Store backend.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/stackit/backend/internal/errs"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/store"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) store.Store

// Options tunes the suite for backends with different concurrency limits.
type Options struct {
	// Concurrency is the number of goroutines used by the concurrent tests.
	// Zero skips them.
	Concurrency int
}

func Run(t *testing.T, newStore Factory, opts Options) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("questions", func(t *testing.T) { testQuestions(t, newStore(t)) })
	t.Run("answers", func(t *testing.T) { testAnswers(t, newStore(t)) })
	t.Run("vote scenario", func(t *testing.T) { testVoteScenario(t, newStore(t)) })
	t.Run("vote errors", func(t *testing.T) { testVoteErrors(t, newStore(t)) })
	t.Run("vote isolation", func(t *testing.T) { testVoteIsolation(t, newStore(t)) })
	t.Run("answer votes", func(t *testing.T) { testAnswerVotes(t, newStore(t)) })
	if opts.Concurrency > 0 {
		t.Run("concurrent voters", func(t *testing.T) { testConcurrentVoters(t, newStore(t), opts.Concurrency) })
		t.Run("concurrent toggles", func(t *testing.T) { testConcurrentToggles(t, newStore(t), opts.Concurrency) })
	}
}

// MustUser creates a user with a unique name derived from name.
func MustUser(t *testing.T, s store.Store, name string) *models.User {
	t.Helper()
	u := &models.User{Username: name, Email: name + "@example.com", PasswordHash: "hash"}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func MustQuestion(t *testing.T, s store.Store, authorID, title string) *models.Question {
	t.Helper()
	q := &models.Question{Title: title, Body: "body of " + title, Tags: []string{"go"}, AuthorID: authorID}
	require.NoError(t, s.CreateQuestion(context.Background(), q))
	return q
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := MustUser(t, s, "alice")
	assert.NotEmpty(t, u.ID)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	got, err = s.GetUserByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	dup := &models.User{Username: "alice2", Email: "alice@example.com", PasswordHash: "hash"}
	err = s.CreateUser(ctx, dup)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))

	dup = &models.User{Username: "alice", Email: "other@example.com", PasswordHash: "hash"}
	err = s.CreateUser(ctx, dup)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))

	dup = &models.User{Username: " Alice ", Email: "third@example.com", PasswordHash: "hash"}
	err = s.CreateUser(ctx, dup)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))

	_, err = s.GetUser(ctx, "missing")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	n, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func testQuestions(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := MustUser(t, s, "bob")

	err := s.CreateQuestion(ctx, &models.Question{Title: "  ", Body: "x", AuthorID: u.ID})
	assert.Equal(t, errs.KindInvalidArgument, errs.KindOf(err))
	err = s.CreateQuestion(ctx, &models.Question{Title: "t", Body: "", AuthorID: u.ID})
	assert.Equal(t, errs.KindInvalidArgument, errs.KindOf(err))

	q := &models.Question{Title: "first", Body: "b", AuthorID: u.ID}
	require.NoError(t, s.CreateQuestion(ctx, q))
	assert.NotNil(t, q.Tags)
	assert.Empty(t, q.Tags)

	titles := []string{"first"}
	for i := 0; i < 4; i++ {
		title := fmt.Sprintf("question %d", i)
		MustQuestion(t, s, u.ID, title)
		titles = append(titles, title)
	}

	got, err := s.GetQuestion(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)
	assert.Equal(t, u.ID, got.AuthorID)
	assert.Equal(t, models.Counters{}, got.Counters())

	list, err := s.ListQuestions(ctx)
	require.NoError(t, err)
	require.Len(t, list, len(titles))
	for i, q := range list {
		assert.Equal(t, titles[i], q.Title)
	}

	tagged := &models.Question{Title: "tagged", Body: "b", Tags: []string{"go", "Go", "sql"}, AuthorID: u.ID}
	require.NoError(t, s.CreateQuestion(ctx, tagged))
	got, err = s.GetQuestion(ctx, tagged.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "Go", "sql"}, got.Tags)

	_, err = s.GetQuestion(ctx, "nonexistent")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func testAnswers(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := MustUser(t, s, "carol")
	q := MustQuestion(t, s, u.ID, "how do channels work")

	a1 := &models.Answer{Body: "first answer", AuthorID: u.ID}
	require.NoError(t, s.AppendAnswer(ctx, q.ID, a1))
	a2 := &models.Answer{Body: "second answer", AuthorID: u.ID}
	require.NoError(t, s.AppendAnswer(ctx, q.ID, a2))
	assert.Equal(t, q.ID, a1.QuestionID)

	got, err := s.GetQuestion(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a1.ID, a2.ID}, got.AnswerIDs)

	answers, err := s.ListAnswers(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, answers, 2)
	assert.Equal(t, "first answer", answers[0].Body)
	assert.Equal(t, "second answer", answers[1].Body)

	err = s.AppendAnswer(ctx, "nonexistent", &models.Answer{Body: "x", AuthorID: u.ID})
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	err = s.AppendAnswer(ctx, q.ID, &models.Answer{Body: " ", AuthorID: u.ID})
	assert.Equal(t, errs.KindInvalidArgument, errs.KindOf(err))

	n, err := s.CountAnswers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func vote(t *testing.T, s store.Store, userID, questionID string, dir models.Direction) models.VoteResult {
	t.Helper()
	res, err := s.ApplyVote(context.Background(), userID, models.TargetQuestion, questionID, dir)
	require.NoError(t, err)
	return res
}

func assertConsistent(t *testing.T, s store.Store, target models.TargetType, id string) models.Counters {
	t.Helper()
	ctx := context.Background()

	tally, err := s.TallyVotes(ctx, target, id)
	require.NoError(t, err)

	var stored models.Counters
	if target == models.TargetQuestion {
		q, err := s.GetQuestion(ctx, id)
		require.NoError(t, err)
		stored = q.Counters()
	} else {
		a, err := s.GetAnswer(ctx, id)
		require.NoError(t, err)
		stored = a.Counters()
	}
	assert.Equal(t, tally, stored, "counters must equal vote records")
	return stored
}

func testVoteScenario(t *testing.T, s store.Store) {
	u1 := MustUser(t, s, "u1")
	q1 := MustQuestion(t, s, u1.ID, "q1")

	res := vote(t, s, u1.ID, q1.ID, models.Up)
	assert.Equal(t, models.Counters{Upvotes: 1, Downvotes: 0}, res.Counters)
	assert.Equal(t, models.OutcomeCast, res.Outcome)

	res = vote(t, s, u1.ID, q1.ID, models.Down)
	assert.Equal(t, models.Counters{Upvotes: 0, Downvotes: 1}, res.Counters)
	assert.Equal(t, models.OutcomeSwitched, res.Outcome)

	res = vote(t, s, u1.ID, q1.ID, models.Down)
	assert.Equal(t, models.Counters{}, res.Counters)
	assert.Equal(t, models.OutcomeRetracted, res.Outcome)

	dir, err := s.GetVote(context.Background(), u1.ID, models.TargetQuestion, q1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.None, dir)

	vote(t, s, u1.ID, q1.ID, models.Up)
	res = vote(t, s, u1.ID, q1.ID, models.Up)
	assert.Equal(t, models.Counters{}, res.Counters, "repeating a vote is net zero")

	assertConsistent(t, s, models.TargetQuestion, q1.ID)
}

func testVoteErrors(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := MustUser(t, s, "dave")
	q := MustQuestion(t, s, u.ID, "errors")
	vote(t, s, u.ID, q.ID, models.Up)

	_, err := s.ApplyVote(ctx, u.ID, models.TargetQuestion, "nonexistent", models.Up)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	_, err = s.ApplyVote(ctx, u.ID, models.TargetQuestion, q.ID, models.Direction("sideways"))
	assert.Equal(t, errs.KindInvalidArgument, errs.KindOf(err))

	_, err = s.ApplyVote(ctx, "", models.TargetQuestion, q.ID, models.Down)
	assert.Equal(t, errs.KindUnauthorized, errs.KindOf(err))

	got := assertConsistent(t, s, models.TargetQuestion, q.ID)
	assert.Equal(t, models.Counters{Upvotes: 1}, got, "failed calls leave state untouched")
}

func testVoteIsolation(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := MustUser(t, s, "erin")
	b := MustUser(t, s, "frank")
	q1 := MustQuestion(t, s, a.ID, "q1")
	q2 := MustQuestion(t, s, a.ID, "q2")

	vote(t, s, b.ID, q1.ID, models.Down)
	vote(t, s, a.ID, q1.ID, models.Up)
	vote(t, s, a.ID, q1.ID, models.Down)

	other, err := s.GetQuestion(ctx, q2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Counters{}, other.Counters())

	dir, err := s.GetVote(ctx, b.ID, models.TargetQuestion, q1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Down, dir)

	got := assertConsistent(t, s, models.TargetQuestion, q1.ID)
	assert.Equal(t, models.Counters{Downvotes: 2}, got)
}

func testAnswerVotes(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := MustUser(t, s, "grace")
	q := MustQuestion(t, s, u.ID, "answers get votes too")
	a := &models.Answer{Body: "use a mutex", AuthorID: u.ID}
	require.NoError(t, s.AppendAnswer(ctx, q.ID, a))

	res, err := s.ApplyVote(ctx, u.ID, models.TargetAnswer, a.ID, models.Up)
	require.NoError(t, err)
	assert.Equal(t, models.Counters{Upvotes: 1}, res.Counters)

	res, err = s.ApplyVote(ctx, u.ID, models.TargetAnswer, a.ID, models.Down)
	require.NoError(t, err)
	assert.Equal(t, models.Counters{Downvotes: 1}, res.Counters)

	question, err := s.GetQuestion(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Counters{}, question.Counters(), "answer votes do not touch the question")

	_, err = s.ApplyVote(ctx, u.ID, models.TargetAnswer, "nonexistent", models.Up)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	assertConsistent(t, s, models.TargetAnswer, a.ID)
}

func testConcurrentVoters(t *testing.T, s store.Store, n int) {
	ctx := context.Background()
	author := MustUser(t, s, "author")
	q := MustQuestion(t, s, author.ID, "popular")

	voters := make([]*models.User, n)
	for i := range voters {
		voters[i] = MustUser(t, s, fmt.Sprintf("voter%d", i))
	}

	var failures atomic.Int32
	var wg sync.WaitGroup
	for i, v := range voters {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			dir := models.Up
			if i%3 == 0 {
				dir = models.Down
			}
			if _, err := s.ApplyVote(ctx, userID, models.TargetQuestion, q.ID, dir); err != nil {
				failures.Add(1)
			}
		}(i, v.ID)
	}
	wg.Wait()

	require.Zero(t, failures.Load())
	got := assertConsistent(t, s, models.TargetQuestion, q.ID)
	downs := (n + 2) / 3
	assert.Equal(t, models.Counters{Upvotes: n - downs, Downvotes: downs}, got)
}

func testConcurrentToggles(t *testing.T, s store.Store, n int) {
	ctx := context.Background()
	u := MustUser(t, s, "clicker")
	q := MustQuestion(t, s, u.ID, "toggled")

	var failures atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dir := models.Up
			if i%2 == 1 {
				dir = models.Down
			}
			if _, err := s.ApplyVote(ctx, u.ID, models.TargetQuestion, q.ID, dir); err != nil {
				failures.Add(1)
			}
		}(i)
	}
	wg.Wait()

	require.Zero(t, failures.Load())
	got := assertConsistent(t, s, models.TargetQuestion, q.ID)
	assert.LessOrEqual(t, got.Upvotes+got.Downvotes, 1, "one user holds at most one vote")
}
