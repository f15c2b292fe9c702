package main

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/jwulff/incision/internal/analysis"
	"github.com/jwulff/incision/internal/config"
	"github.com/jwulff/incision/internal/daemon"
	"github.com/jwulff/incision/internal/db"
	"github.com/jwulff/incision/internal/eqprofile"
	"github.com/jwulff/incision/internal/pipeline"
	"github.com/jwulff/incision/internal/playback"
	"github.com/jwulff/incision/internal/session"
	"github.com/jwulff/incision/internal/timeline"
)

// backends holds everything a subcommand needs to drive a session.
type backends struct {
	sess   *session.Session
	store  *db.Store         // nil when history is unavailable
	eq     *eqprofile.Client // nil when ollama is unreachable
	remote *daemon.Client    // nil for the local analyzer
}

type backendOptions struct {
	observer   func(pipeline.Event)
	onProgress func(daemon.Event)
	headless   bool // no speaker and no playhead loop
	noLoop     bool // caller drives Clock.Sample itself
}

func withObserver(fn func(pipeline.Event)) func(*backendOptions) {
	return func(o *backendOptions) { o.observer = fn }
}

func withDaemonProgress(fn func(daemon.Event)) func(*backendOptions) {
	return func(o *backendOptions) { o.onProgress = fn }
}

func headless() func(*backendOptions) {
	return func(o *backendOptions) { o.headless, o.noLoop = true, true }
}

// sampledByCaller disables the clock's own loop; the TUI samples from tea.Tick.
func sampledByCaller() func(*backendOptions) {
	return func(o *backendOptions) { o.noLoop = true }
}

func openBackends(cfg config.Config, opts ...func(*backendOptions)) (*backends, error) {
	var bo backendOptions
	for _, o := range opts {
		o(&bo)
	}
	b := &backends{}

	seed := cfg.AnalyzerSeed
	if seed == 0 {
		seed = rand.Uint64()
	}

	var (
		aligner pipeline.Aligner
		scorer  pipeline.Scorer
	)
	switch cfg.Analyzer {
	case config.AnalyzerDaemon:
		client, err := daemon.Connect(cfg.SocketPath)
		if err != nil {
			return nil, fmt.Errorf("connect analyzer: %w", err)
		}
		if bo.onProgress != nil {
			client.OnEvent(bo.onProgress)
		}
		b.remote = client
		aligner, scorer = client, client
	case config.AnalyzerLocal:
		aligner = analysis.NewHeuristicAligner(seed, cfg.FitToAudio)
		scorer = analysis.SpectralScorer{}
	default:
		return nil, fmt.Errorf("unknown analyzer %q", cfg.Analyzer)
	}

	var estimator timeline.RepairEstimator
	switch cfg.RepairEstimator {
	case config.EstimatorLinear:
		estimator = timeline.LinearEstimator{}
	case config.EstimatorRandom:
		estimator = timeline.NewRandomEstimator(seed)
	default:
		b.Close()
		return nil, fmt.Errorf("unknown repair estimator %q", cfg.RepairEstimator)
	}

	var sink playback.Sink = &playback.NullSink{}
	if cfg.Output == config.OutputSpeaker && !bo.headless {
		oto, err := playback.NewOtoSink()
		if err != nil {
			log.Printf("audio output unavailable, playing silently: %v", err)
		} else {
			sink = oto
		}
	}

	var pipeOpts []pipeline.Option
	if cfg.CacheAlignment {
		pipeOpts = append(pipeOpts, pipeline.WithAlignmentCache())
	}
	if bo.observer != nil {
		pipeOpts = append(pipeOpts, pipeline.WithObserver(bo.observer))
	}

	frame := cfg.Frame
	if bo.noLoop {
		frame = 0
	}
	sessOpts := []session.Option{
		session.WithModelOptions(
			timeline.WithEstimator(estimator),
			timeline.WithMinClarity(cfg.MinClarity),
		),
		session.WithPipelineOptions(pipeOpts...),
		session.WithClockOptions(playback.WithFrame(frame)),
	}

	store, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Printf("history disabled: %v", err)
	} else {
		b.store = store
		sessOpts = append(sessOpts, session.WithHistory(store))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	eq := eqprofile.NewClient(cfg.OllamaURL, cfg.OllamaModel)
	if eq.Available(ctx) {
		b.eq = eq
	} else {
		log.Printf("eq profiles disabled: ollama not reachable at %s", cfg.OllamaURL)
	}

	b.sess = session.New(aligner, scorer, sink, sessOpts...)
	return b, nil
}

// Close releases the session, history store and analyzer connection.
func (b *backends) Close() {
	if b.sess != nil {
		b.sess.Close()
	}
	if b.store != nil {
		if err := b.store.Close(); err != nil {
			log.Printf("close history: %v", err)
		}
	}
	if b.remote != nil {
		b.remote.Close()
	}
}
