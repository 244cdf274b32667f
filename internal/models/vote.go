package models

import (
	"strings"
	"time"
)

// Direction is the way a vote points.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
	// None marks the absence of a vote record.
	None Direction = ""
)

// ParseDirection accepts "up"/"down" and the older "upvote"/"downvote" spellings.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "upvote":
		return Up, true
	case "down", "downvote":
		return Down, true
	default:
		return None, false
	}
}

func (d Direction) Valid() bool {
	return d == Up || d == Down
}

// Opposite returns the other direction; None stays None.
func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	default:
		return None
	}
}

// TargetType says what a vote is attached to.
type TargetType string

const (
	TargetQuestion TargetType = "question"
	TargetAnswer   TargetType = "answer"
)

// Vote is the ledger entry: one user's current direction on one target.
// The composite primary key allows at most one record per (user, target).
type Vote struct {
	UserID     string     `gorm:"primaryKey;type:varchar(36)" json:"user_id"`
	TargetType TargetType `gorm:"primaryKey;type:varchar(16)" json:"target_type"`
	TargetID   string     `gorm:"primaryKey;type:varchar(36);index:idx_votes_target" json:"target_id"`
	Direction  Direction  `gorm:"type:varchar(8);not null" json:"direction"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Counters are the aggregate vote totals stored on a question or answer.
type Counters struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
}

func (c Counters) Score() int {
	return c.Upvotes - c.Downvotes
}

// Add returns c with delta applied to the counter for d.
func (c Counters) Add(d Direction, delta int) Counters {
	switch d {
	case Up:
		c.Upvotes += delta
	case Down:
		c.Downvotes += delta
	}
	return c
}

// Outcome describes what a vote call did to the ledger.
type Outcome string

const (
	OutcomeCast      Outcome = "cast"
	OutcomeRetracted Outcome = "retracted"
	OutcomeSwitched  Outcome = "switched"
)

// VoteResult is returned by a committed vote.
type VoteResult struct {
	Counters Counters  `json:"votes"`
	Outcome  Outcome   `json:"outcome"`
	Current  Direction `json:"current"`
}

type VoteRequest struct {
	Direction string `json:"direction"`
	VoteType  string `json:"voteType"`
}

// Value returns whichever of the two accepted fields the client filled in.
func (r VoteRequest) Value() string {
	if r.Direction != "" {
		return r.Direction
	}
	return r.VoteType
}
