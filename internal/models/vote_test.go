package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDirection(t *testing.T) {
	cases := []struct {
		in   string
		want Direction
		ok   bool
	}{
		{"up", Up, true},
		{"UP", Up, true},
		{"upvote", Up, true},
		{"down", Down, true},
		{" downvote ", Down, true},
		{"", None, false},
		{"sideways", None, false},
		{"1", None, false},
	}
	for _, c := range cases {
		got, ok := ParseDirection(c.in)
		assert.Equal(t, c.ok, ok, "input %q", c.in)
		assert.Equal(t, c.want, got, "input %q", c.in)
	}
}

func TestCountersAdd(t *testing.T) {
	c := Counters{}.Add(Up, 1).Add(Up, 1).Add(Down, 1)
	assert.Equal(t, Counters{Upvotes: 2, Downvotes: 1}, c)
	assert.Equal(t, 1, c.Score())

	assert.Equal(t, c, c.Add(None, 5))
}

func TestVoteRequestValue(t *testing.T) {
	assert.Equal(t, "up", VoteRequest{Direction: "up", VoteType: "downvote"}.Value())
	assert.Equal(t, "downvote", VoteRequest{VoteType: "downvote"}.Value())
}
