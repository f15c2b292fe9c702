// Package daemon provides the client and protocol types for talking to an
// external alignment and scoring daemon over a Unix socket using NDJSON.
//
// Each command is one JSON line. The daemon may stream any number of event
// lines (objects with an "event" key) before the single response line.
package daemon

import "github.com/jwulff/incision/internal/pipeline"

// Command names.
const (
	CmdStatus = "status"
	CmdAlign  = "align"
	CmdScore  = "score"
)

// Command is sent from a client to the daemon.
type Command struct {
	Cmd    string                 `json:"cmd"`
	Lyrics string                 `json:"lyrics,omitempty"`
	Audio  string                 `json:"audio,omitempty"` // data URI
	Words  []pipeline.AlignedWord `json:"words,omitempty"`
}

// Word is one word in a daemon response. Scoring fields are only set by
// score.
type Word struct {
	Word            string   `json:"word"`
	StartTime       float64  `json:"startTime"`
	EndTime         float64  `json:"endTime"`
	ConfidenceScore *float64 `json:"confidenceScore,omitempty"`
	NeedsRepair     bool     `json:"needsRepair,omitempty"`
	SectionName     string   `json:"sectionName,omitempty"`
}

// Response is returned by the daemon after processing a command.
type Response struct {
	OK      bool   `json:"ok"`
	Words   []Word `json:"words,omitempty"`
	Error   string `json:"error,omitempty"`
	Status  string `json:"status,omitempty"`
	Model   string `json:"model,omitempty"`
	Version string `json:"version,omitempty"`
}

// Event is streamed by the daemon while a command is running.
type Event struct {
	Event    string   `json:"event"`
	Stage    string   `json:"stage,omitempty"`
	Progress *float64 `json:"progress,omitempty"`
	Message  string   `json:"message,omitempty"`
}

// Float64Ptr returns a pointer to v. Convenience for building responses.
func Float64Ptr(v float64) *float64 { return &v }

func alignedFrom(words []Word) []pipeline.AlignedWord {
	out := make([]pipeline.AlignedWord, len(words))
	for i, w := range words {
		out[i] = pipeline.AlignedWord{Word: w.Word, StartTime: w.StartTime, EndTime: w.EndTime}
	}
	return out
}

// scoredFrom keeps a missing confidence as -1 so validation rejects it.
func scoredFrom(words []Word) []pipeline.ScoredWord {
	out := make([]pipeline.ScoredWord, len(words))
	for i, w := range words {
		score := -1.0
		if w.ConfidenceScore != nil {
			score = *w.ConfidenceScore
		}
		out[i] = pipeline.ScoredWord{
			AlignedWord:     pipeline.AlignedWord{Word: w.Word, StartTime: w.StartTime, EndTime: w.EndTime},
			ConfidenceScore: score,
			NeedsRepair:     w.NeedsRepair,
			SectionName:     w.SectionName,
		}
	}
	return out
}
