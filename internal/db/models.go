// Package db keeps the sqlite history of analysis runs and repair actions.
package db

import (
	"time"

	"github.com/jwulff/incision/internal/timeline"
)

// Run status values.
const (
	RunOK     = "ok"
	RunFailed = "failed"
)

// Run is one pipeline run, successful or not.
type Run struct {
	ID        string
	Seq       uint64
	Source    string
	Lyrics    string
	Status    string
	Error     string
	Stats     timeline.Stats
	Elapsed   time.Duration
	CreatedAt time.Time
}

// Event is one operator action against a token.
type Event struct {
	ID        string
	RunID     string
	TokenID   string
	Action    string
	From      string
	To        string
	Score     float64
	Detail    string
	CreatedAt time.Time
}
