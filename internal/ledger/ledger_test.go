package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/emilythestrangee/stackit/backend/internal/errs"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

func TestResolve(t *testing.T) {
	start := models.Counters{Upvotes: 3, Downvotes: 2}

	cases := []struct {
		name    string
		prev    models.Direction
		dir     models.Direction
		next    models.Direction
		want    models.Counters
		outcome models.Outcome
	}{
		{"first upvote", models.None, models.Up, models.Up, models.Counters{Upvotes: 4, Downvotes: 2}, models.OutcomeCast},
		{"first downvote", models.None, models.Down, models.Down, models.Counters{Upvotes: 3, Downvotes: 3}, models.OutcomeCast},
		{"retract upvote", models.Up, models.Up, models.None, models.Counters{Upvotes: 2, Downvotes: 2}, models.OutcomeRetracted},
		{"retract downvote", models.Down, models.Down, models.None, models.Counters{Upvotes: 3, Downvotes: 1}, models.OutcomeRetracted},
		{"switch to down", models.Up, models.Down, models.Down, models.Counters{Upvotes: 2, Downvotes: 3}, models.OutcomeSwitched},
		{"switch to up", models.Down, models.Up, models.Up, models.Counters{Upvotes: 4, Downvotes: 1}, models.OutcomeSwitched},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tr, err := Resolve(c.prev, c.dir, start)
			require.NoError(t, err)
			assert.Equal(t, c.next, tr.Next)
			assert.Equal(t, c.want, tr.Counters)
			assert.Equal(t, c.outcome, tr.Outcome)
		})
	}
}

func TestResolveRejectsBadDirection(t *testing.T) {
	_, err := Resolve(models.None, models.Direction("sideways"), models.Counters{})
	assert.Equal(t, errs.KindInvalidArgument, errs.KindOf(err))

	_, err = Resolve(models.None, models.None, models.Counters{})
	assert.Equal(t, errs.KindInvalidArgument, errs.KindOf(err))
}

func TestResolveScenario(t *testing.T) {
	var c models.Counters
	prev := models.None

	step := func(dir models.Direction) models.Counters {
		tr, err := Resolve(prev, dir, c)
		require.NoError(t, err)
		prev, c = tr.Next, tr.Counters
		return c
	}

	assert.Equal(t, models.Counters{Upvotes: 1}, step(models.Up))
	assert.Equal(t, models.Counters{Downvotes: 1}, step(models.Down))
	assert.Equal(t, models.Counters{}, step(models.Down))
	assert.Equal(t, models.None, prev)
}

func TestResolveKeepsCountersEqualToRecords(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		users := rapid.IntRange(1, 6).Draw(t, "users")
		steps := rapid.IntRange(1, 80).Draw(t, "steps")

		records := make(map[int]models.Direction)
		var counters models.Counters

		for i := 0; i < steps; i++ {
			user := rapid.IntRange(0, users-1).Draw(t, "user")
			dir := rapid.SampledFrom([]models.Direction{models.Up, models.Down}).Draw(t, "dir")

			tr, err := Resolve(records[user], dir, counters)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if tr.Next == models.None {
				delete(records, user)
			} else {
				records[user] = tr.Next
			}
			counters = tr.Counters

			dirs := make([]models.Direction, 0, len(records))
			for _, d := range records {
				dirs = append(dirs, d)
			}
			if got := Tally(dirs); got != counters {
				t.Fatalf("counters %+v do not match records %+v", counters, got)
			}
			if counters.Upvotes < 0 || counters.Downvotes < 0 {
				t.Fatalf("negative counters %+v", counters)
			}
		}
	})
}

func TestRepeatVoteIsNetZero(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := models.Counters{
			Upvotes:   rapid.IntRange(0, 1000).Draw(t, "up"),
			Downvotes: rapid.IntRange(0, 1000).Draw(t, "down"),
		}
		dir := rapid.SampledFrom([]models.Direction{models.Up, models.Down}).Draw(t, "dir")

		first, err := Resolve(models.None, dir, start)
		if err != nil {
			t.Fatal(err)
		}
		second, err := Resolve(first.Next, dir, first.Counters)
		if err != nil {
			t.Fatal(err)
		}
		if second.Counters != start || second.Next != models.None {
			t.Fatalf("expected %+v with no record, got %+v / %q", start, second.Counters, second.Next)
		}
	})
}
