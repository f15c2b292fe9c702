package analysis

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/jwulff/incision/internal/audio"
	"github.com/jwulff/incision/internal/pipeline"
)

// Timing constants for the heuristic aligner, in seconds.
const (
	secondsPerRune = 0.08
	maxJitter      = 0.1
	wordGap        = 0.05
)

// HeuristicAligner spreads the lyric words across time in proportion to their
// length. When FitToAudio is set and the source decodes, the whole sequence is
// scaled to end with the audio.
type HeuristicAligner struct {
	FitToAudio bool

	mu  sync.Mutex
	rng *rand.Rand
}

// NewHeuristicAligner returns an aligner whose jitter is drawn from seed.
func NewHeuristicAligner(seed uint64, fitToAudio bool) *HeuristicAligner {
	return &HeuristicAligner{
		FitToAudio: fitToAudio,
		rng:        rand.New(rand.NewPCG(seed, seed+1)),
	}
}

func (a *HeuristicAligner) jitter() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rng.Float64() * maxJitter
}

// Align implements pipeline.Aligner.
func (a *HeuristicAligner) Align(ctx context.Context, lyrics string, src audio.Source) ([]pipeline.AlignedWord, error) {
	words := strings.Fields(lyrics)
	if len(words) == 0 {
		return nil, nil
	}

	out := make([]pipeline.AlignedWord, len(words))
	t := 0.0
	for i, w := range words {
		start := t
		t += float64(utf8.RuneCountInString(w))*secondsPerRune + a.jitter()
		out[i] = pipeline.AlignedWord{Word: w, StartTime: start, EndTime: t}
		t += wordGap
	}

	if a.FitToAudio {
		buf, err := audio.Decode(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("fit alignment to audio: %w", err)
		}
		if last := out[len(out)-1].EndTime; last > 0 {
			scale := buf.Duration / last
			for i := range out {
				out[i].StartTime *= scale
				out[i].EndTime *= scale
			}
		}
	}

	for i := range out {
		out[i].StartTime = round2(out[i].StartTime)
		out[i].EndTime = max(out[i].StartTime, round2(out[i].EndTime))
	}
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
