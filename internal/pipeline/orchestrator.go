package pipeline

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jwulff/incision/internal/audio"
	"github.com/jwulff/incision/internal/timeline"
)

// EventKind describes a stage transition reported to observers.
type EventKind int

const (
	EventStarted EventKind = iota
	EventFinished
	EventFailed
	EventSuperseded
)

// Event is reported to the observer as a run progresses.
type Event struct {
	Seq     uint64
	Stage   Stage
	Kind    EventKind
	Words   int
	Err     error
	Elapsed time.Duration
	Cached  bool
}

// Orchestrator runs alignment then scoring and publishes the derived token
// set into a timeline model. Only the most recently started run may replace
// the model's set.
type Orchestrator struct {
	aligner Aligner
	scorer  Scorer
	model   *timeline.Model

	seq      atomic.Uint64
	applyMu  sync.Mutex
	cache    *alignCache
	observer func(Event)
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAlignmentCache keeps the last successful alignment keyed by lyrics and
// audio hash.
func WithAlignmentCache() Option {
	return func(o *Orchestrator) { o.cache = &alignCache{} }
}

// WithObserver registers a callback for stage events. It is called from the
// goroutine running the pipeline.
func WithObserver(fn func(Event)) Option {
	return func(o *Orchestrator) { o.observer = fn }
}

// New wires an orchestrator to its collaborators and target model.
func New(aligner Aligner, scorer Scorer, model *timeline.Model, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		aligner: aligner,
		scorer:  scorer,
		model:   model,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Latest returns the sequence number of the most recently started run.
func (o *Orchestrator) Latest() uint64 {
	return o.seq.Load()
}

// Run analyses one take. On success the model's set is replaced and returned.
// Every failure is a *StageError wrapping ErrAlignment, ErrScoring,
// ErrValidation or ErrSuperseded, and leaves the model untouched.
func (o *Orchestrator) Run(ctx context.Context, lyrics string, src audio.Source) (timeline.Set, error) {
	seq := o.seq.Add(1)
	lyricWords := strings.Fields(lyrics)

	aligned, err := o.align(ctx, seq, lyrics, lyricWords, src)
	if err != nil {
		return timeline.Set{}, err
	}

	start := o.now()
	o.emit(Event{Seq: seq, Stage: StageScore, Kind: EventStarted, Words: len(aligned)})
	scored, err := o.scorer.Score(ctx, lyrics, src, aligned)
	if err != nil {
		return timeline.Set{}, o.fail(seq, StageScore, ErrScoring, err, start)
	}
	if err := validateScores(aligned, scored); err != nil {
		return timeline.Set{}, o.fail(seq, StageScore, ErrValidation, err, start)
	}
	o.emit(Event{Seq: seq, Stage: StageScore, Kind: EventFinished, Words: len(scored), Elapsed: o.now().Sub(start)})

	set := Build(seq, aligned, scored)

	o.applyMu.Lock()
	defer o.applyMu.Unlock()
	if seq != o.seq.Load() {
		o.emit(Event{Seq: seq, Stage: StageApply, Kind: EventSuperseded})
		return timeline.Set{}, stageErr(seq, StageApply, ErrSuperseded, nil)
	}
	o.model.Replace(set)
	return set, nil
}

func (o *Orchestrator) align(ctx context.Context, seq uint64, lyrics string, lyricWords []string, src audio.Source) ([]AlignedWord, error) {
	start := o.now()
	o.emit(Event{Seq: seq, Stage: StageAlign, Kind: EventStarted, Words: len(lyricWords)})

	if len(lyricWords) == 0 {
		return nil, o.fail(seq, StageAlign, ErrAlignment, errNoLyrics, start)
	}

	var key cacheKey
	if o.cache != nil {
		key = keyFor(lyrics, src)
		if words, ok := o.cache.get(key); ok {
			o.emit(Event{Seq: seq, Stage: StageAlign, Kind: EventFinished, Words: len(words), Cached: true})
			return words, nil
		}
	}

	words, err := o.aligner.Align(ctx, lyrics, src)
	if err != nil {
		return nil, o.fail(seq, StageAlign, ErrAlignment, err, start)
	}
	if err := validateAlignment(lyricWords, words); err != nil {
		return nil, o.fail(seq, StageAlign, ErrAlignment, err, start)
	}
	if o.cache != nil {
		o.cache.put(key, words)
	}
	o.emit(Event{Seq: seq, Stage: StageAlign, Kind: EventFinished, Words: len(words), Elapsed: o.now().Sub(start)})
	return words, nil
}

func (o *Orchestrator) fail(seq uint64, stage Stage, kind, err error, start time.Time) error {
	se := stageErr(seq, stage, kind, err)
	o.emit(Event{Seq: seq, Stage: stage, Kind: EventFailed, Err: se, Elapsed: o.now().Sub(start)})
	return se
}

func (o *Orchestrator) emit(ev Event) {
	if o.observer != nil {
		o.observer(ev)
	}
}

// Build derives the token set for one run from matched alignment and scoring
// output.
func Build(seq uint64, aligned []AlignedWord, scored []ScoredWord) timeline.Set {
	tokens := make([]timeline.WordToken, len(aligned))
	for i, a := range aligned {
		s := scored[i]
		tokens[i] = timeline.WordToken{
			ID:          timeline.TokenID(i),
			Text:        a.Word,
			StartTime:   a.StartTime,
			EndTime:     a.EndTime,
			Score:       s.ConfidenceScore,
			Status:      timeline.Derive(s.ConfidenceScore, s.NeedsRepair),
			SectionName: s.SectionName,
		}
	}
	return timeline.Set{RunSeq: seq, Tokens: tokens}
}
