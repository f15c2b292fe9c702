package app

import (
	"github.com/jwulff/incision/internal/db"
	"github.com/jwulff/incision/internal/eqprofile"
	"github.com/jwulff/incision/internal/timeline"
)

// LoadDoneMsg is sent when the take has been decoded for playback.
type LoadDoneMsg struct {
	Duration float64
	Err      error
}

// RunDoneMsg carries the outcome of one analysis run. Runs that lost to a
// newer one arrive with pipeline.ErrSuperseded and are dropped.
type RunDoneMsg struct {
	Set timeline.Set
	Err error
}

// TransitionMsg carries the token after approve, flag or fix.
type TransitionMsg struct {
	Action string
	Token  timeline.WordToken
	Err    error
}

// FrameMsg samples the playback clock once.
type FrameMsg struct{}

// ExportedMsg reports a word written to disk.
type ExportedMsg struct {
	Path string
	Err  error
}

// EQProfileMsg carries a generated EQ profile.
type EQProfileMsg struct {
	Context string
	Profile eqprofile.Profile
	Err     error
}

// HistoryLoadedMsg carries recent runs from the history store.
type HistoryLoadedMsg struct {
	Runs []db.Run
}

// ClearTransientErrorMsg clears a transient error after a timeout.
type ClearTransientErrorMsg struct{}
