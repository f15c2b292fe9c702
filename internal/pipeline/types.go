// Package pipeline runs the two-stage analysis of a vocal take: forced
// alignment of the known lyrics, then per-word clarity scoring. A successful
// run replaces the timeline model's token set; a failed one leaves it alone.
package pipeline

import (
	"context"

	"github.com/jwulff/incision/internal/audio"
)

// AlignedWord is one lyric word located in the audio.
type AlignedWord struct {
	Word      string  `json:"word"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
}

// ScoredWord is an aligned word with its clarity verdict.
type ScoredWord struct {
	AlignedWord
	ConfidenceScore float64 `json:"confidenceScore"`
	NeedsRepair     bool    `json:"needsRepair"`
	SectionName     string  `json:"sectionName,omitempty"`
}

// Aligner locates every whitespace-delimited lyric word in the audio.
type Aligner interface {
	Align(ctx context.Context, lyrics string, src audio.Source) ([]AlignedWord, error)
}

// Scorer rates the clarity of each aligned word. It must return one entry per
// input word, in the same order.
type Scorer interface {
	Score(ctx context.Context, lyrics string, src audio.Source, words []AlignedWord) ([]ScoredWord, error)
}

// AlignerFunc adapts a function to Aligner.
type AlignerFunc func(ctx context.Context, lyrics string, src audio.Source) ([]AlignedWord, error)

func (f AlignerFunc) Align(ctx context.Context, lyrics string, src audio.Source) ([]AlignedWord, error) {
	return f(ctx, lyrics, src)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, lyrics string, src audio.Source, words []AlignedWord) ([]ScoredWord, error)

func (f ScorerFunc) Score(ctx context.Context, lyrics string, src audio.Source, words []AlignedWord) ([]ScoredWord, error) {
	return f(ctx, lyrics, src, words)
}
