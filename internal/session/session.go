// Package session bundles one take's word timeline, its playback clock and
// the analysis pipeline behind a single handle. Sessions share nothing.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jwulff/incision/internal/audio"
	"github.com/jwulff/incision/internal/db"
	"github.com/jwulff/incision/internal/peaks"
	"github.com/jwulff/incision/internal/pipeline"
	"github.com/jwulff/incision/internal/playback"
	"github.com/jwulff/incision/internal/timeline"
)

// History is the audit log a session writes to. *db.Store implements it.
type History interface {
	RecordRun(ctx context.Context, run db.Run, tokens []timeline.WordToken) (string, error)
	RecordFailure(ctx context.Context, run db.Run) (string, error)
	RecordEvent(ctx context.Context, ev db.Event) error
}

// Session is one editing session over one take.
type Session struct {
	model   *timeline.Model
	clock   *playback.Clock
	orch    *pipeline.Orchestrator
	history History
	now     func() time.Time

	mu     sync.Mutex
	source audio.Source
	lyrics string
	runIDs map[uint64]string

	peakCols  int
	peakCache []peaks.Peak
	peakBuf   *audio.Buffer
}

type options struct {
	modelOpts []timeline.Option
	orchOpts  []pipeline.Option
	clockOpts []playback.Option
	history   History
	now       func() time.Time
}

// Option configures a Session.
type Option func(*options)

// WithHistory records runs and transitions to h.
func WithHistory(h History) Option {
	return func(o *options) { o.history = h }
}

// WithModelOptions passes options to the timeline model.
func WithModelOptions(opts ...timeline.Option) Option {
	return func(o *options) { o.modelOpts = append(o.modelOpts, opts...) }
}

// WithPipelineOptions passes options to the orchestrator.
func WithPipelineOptions(opts ...pipeline.Option) Option {
	return func(o *options) { o.orchOpts = append(o.orchOpts, opts...) }
}

// WithClockOptions passes options to the playback clock.
func WithClockOptions(opts ...playback.Option) Option {
	return func(o *options) { o.clockOpts = append(o.clockOpts, opts...) }
}

// New creates a session analysing with aligner and scorer and playing
// through sink.
func New(aligner pipeline.Aligner, scorer pipeline.Scorer, sink playback.Sink, opts ...Option) *Session {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	model := timeline.NewModel(o.modelOpts...)
	return &Session{
		model:   model,
		clock:   playback.New(sink, o.clockOpts...),
		orch:    pipeline.New(aligner, scorer, model, o.orchOpts...),
		history: o.history,
		now:     o.now,
		runIDs:  map[uint64]string{},
	}
}

// Model exposes the word timeline.
func (s *Session) Model() *timeline.Model { return s.model }

// Clock exposes the playback clock.
func (s *Session) Clock() *playback.Clock { return s.clock }

// Source returns the take and lyrics of the last Analyze call.
func (s *Session) Source() (audio.Source, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source, s.lyrics
}

// Analyze runs the pipeline over the take. Only the latest call may replace
// the timeline; earlier ones fail with pipeline.ErrSuperseded.
func (s *Session) Analyze(ctx context.Context, lyrics string, src audio.Source) (timeline.Set, error) {
	s.mu.Lock()
	s.source, s.lyrics = src, lyrics
	s.mu.Unlock()

	start := s.now()
	set, err := s.orch.Run(ctx, lyrics, src)
	elapsed := s.now().Sub(start)

	run := db.Run{Source: src.Name, Lyrics: lyrics, Elapsed: elapsed}
	if err != nil {
		if errors.Is(err, pipeline.ErrSuperseded) {
			return set, err
		}
		var se *pipeline.StageError
		if errors.As(err, &se) {
			run.Seq = se.Seq
		}
		run.Error = err.Error()
		s.recordFailure(ctx, run)
		return set, err
	}

	run.Seq = set.RunSeq
	run.Stats = set.Stats()
	s.recordRun(ctx, run, set.Tokens)
	return set, nil
}

// LatestRun is the sequence number of the most recently started analysis.
func (s *Session) LatestRun() uint64 { return s.orch.Latest() }

// Rerun analyses the last take again.
func (s *Session) Rerun(ctx context.Context) (timeline.Set, error) {
	src, lyrics := s.Source()
	if len(src.Data) == 0 {
		return timeline.Set{}, playback.ErrNotLoaded
	}
	return s.Analyze(ctx, lyrics, src)
}

// Snapshot returns a copy of the current token set.
func (s *Session) Snapshot() timeline.Set { return s.model.Snapshot() }

// Token looks up a token by id.
func (s *Session) Token(id string) (timeline.WordToken, error) { return s.model.Token(id) }

// Approve marks a word clean.
func (s *Session) Approve(ctx context.Context, id string) (timeline.WordToken, error) {
	return s.transition(ctx, id, "approve", "", func() (timeline.WordToken, error) {
		return s.model.Approve(id)
	})
}

// Flag marks a word ghost with reason.
func (s *Session) Flag(ctx context.Context, id, reason string) (timeline.WordToken, error) {
	return s.transition(ctx, id, "flag", reason, func() (timeline.WordToken, error) {
		return s.model.Flag(id, reason)
	})
}

// Fix repairs a warn or ghost word.
func (s *Session) Fix(ctx context.Context, id string) (timeline.WordToken, error) {
	return s.transition(ctx, id, "fix", "", func() (timeline.WordToken, error) {
		return s.model.Fix(id)
	})
}

func (s *Session) transition(ctx context.Context, id, action, detail string, fn func() (timeline.WordToken, error)) (timeline.WordToken, error) {
	seq := s.model.RunSeq()
	before, err := s.model.Token(id)
	if err != nil {
		return timeline.WordToken{}, err
	}
	after, err := fn()
	if err != nil {
		return after, err
	}
	s.recordEvent(ctx, seq, db.Event{
		TokenID: id,
		Action:  action,
		From:    before.Status.String(),
		To:      after.Status.String(),
		Score:   after.Score,
		Detail:  detail,
	})
	return after, nil
}

// Load decodes the take for playback.
func (s *Session) Load(ctx context.Context, src audio.Source) (*audio.Buffer, error) {
	return s.clock.Load(ctx, src)
}

// Play starts playback at from seconds.
func (s *Session) Play(from float64) error { return s.clock.Play(from) }

// Pause pauses playback.
func (s *Session) Pause() error { return s.clock.Pause() }

// Toggle pauses or resumes playback.
func (s *Session) Toggle() error { return s.clock.Toggle() }

// Seek moves the playhead to fraction of the take.
func (s *Session) Seek(fraction float64) error { return s.clock.Seek(fraction) }

// Position reports the playhead.
func (s *Session) Position() playback.Position { return s.clock.Position() }

// Isolate plays just the word's range and pauses at its end.
func (s *Session) Isolate(id string) error {
	tok, err := s.model.Token(id)
	if err != nil {
		return err
	}
	return s.clock.PlayRange(tok.StartTime, tok.EndTime)
}

// ExportWord writes the word's samples to a mono WAV file.
func (s *Session) ExportWord(id, path string) error {
	tok, err := s.model.Token(id)
	if err != nil {
		return err
	}
	buf := s.clock.Buffer()
	if buf == nil {
		return playback.ErrNotLoaded
	}
	samples := buf.Slice(tok.StartTime, tok.EndTime)
	if len(samples) == 0 {
		return fmt.Errorf("export %s: word range %.2f-%.2f is outside the take", id, tok.StartTime, tok.EndTime)
	}
	return audio.WriteWAV(path, samples, buf.SampleRate)
}

// Peaks returns the waveform of the loaded take at columns resolution.
func (s *Session) Peaks(columns int) []peaks.Peak {
	buf := s.clock.Buffer()
	if buf == nil {
		return peaks.Extract(nil, columns)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peakBuf != buf || s.peakCols != columns {
		s.peakCache = peaks.Extract(buf.Samples, columns)
		s.peakBuf, s.peakCols = buf, columns
	}
	return s.peakCache
}

// Close stops playback. The session must not be used afterwards.
func (s *Session) Close() {
	s.clock.Close()
}

func (s *Session) recordRun(ctx context.Context, run db.Run, tokens []timeline.WordToken) {
	if s.history == nil {
		return
	}
	id, err := s.history.RecordRun(ctx, run, tokens)
	if err != nil {
		log.Printf("history: record run %d: %v", run.Seq, err)
		return
	}
	s.mu.Lock()
	s.runIDs[run.Seq] = id
	s.mu.Unlock()
}

func (s *Session) recordFailure(ctx context.Context, run db.Run) {
	if s.history == nil {
		return
	}
	if _, err := s.history.RecordFailure(ctx, run); err != nil {
		log.Printf("history: record failure %d: %v", run.Seq, err)
	}
}

func (s *Session) recordEvent(ctx context.Context, seq uint64, ev db.Event) {
	if s.history == nil {
		return
	}
	s.mu.Lock()
	runID, ok := s.runIDs[seq]
	s.mu.Unlock()
	if !ok {
		return
	}
	ev.RunID = runID
	if err := s.history.RecordEvent(ctx, ev); err != nil {
		log.Printf("history: record %s %s: %v", ev.Action, ev.TokenID, err)
	}
}
