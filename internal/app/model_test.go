package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jwulff/incision/internal/audio"
	"github.com/jwulff/incision/internal/db"
	"github.com/jwulff/incision/internal/eqprofile"
	"github.com/jwulff/incision/internal/pipeline"
	"github.com/jwulff/incision/internal/playback"
	"github.com/jwulff/incision/internal/session"
	"github.com/jwulff/incision/internal/timeline"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeTime struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeTime) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

type fakeRuns struct {
	runs []db.Run
}

func (f fakeRuns) RecentRuns(context.Context, int) ([]db.Run, error) {
	return f.runs, nil
}

type fakeEQ struct {
	calls int
}

func (f *fakeEQ) Generate(_ context.Context, productionContext string) (eqprofile.Profile, error) {
	f.calls++
	return eqprofile.Profile{
		Bands: []eqprofile.Band{{Type: "lowcut", Frequency: 90}},
		Notes: productionContext,
	}, nil
}

var takeWords = []pipeline.AlignedWord{
	{Word: "hold", StartTime: 0, EndTime: 1},
	{Word: "the", StartTime: 1.5, EndTime: 2},
	{Word: "line", StartTime: 3, EndTime: 4},
}

func stubAligner() pipeline.Aligner {
	return pipeline.AlignerFunc(func(context.Context, string, audio.Source) ([]pipeline.AlignedWord, error) {
		return append([]pipeline.AlignedWord(nil), takeWords...), nil
	})
}

func stubScorer() pipeline.Scorer {
	scores := []float64{95, 60, 30}
	return pipeline.ScorerFunc(func(_ context.Context, _ string, _ audio.Source, words []pipeline.AlignedWord) ([]pipeline.ScoredWord, error) {
		out := make([]pipeline.ScoredWord, len(words))
		for i, w := range words {
			out[i] = pipeline.ScoredWord{AlignedWord: w, ConfidenceScore: scores[i], NeedsRepair: scores[i] < 40}
		}
		return out, nil
	})
}

func fiveSeconds() *audio.Buffer {
	const rate = 100
	samples := make([]float32, 5*rate)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(float64(i)/4))
	}
	return &audio.Buffer{Samples: samples, SampleRate: rate, Channels: 1, Duration: 5}
}

func applyUpdate(m Model, msg tea.Msg) (Model, tea.Cmd) {
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// newLoadedModel returns a model with a decoded take and one finished run.
func newLoadedModel(t *testing.T) (Model, *fakeTime) {
	t.Helper()
	ft := &fakeTime{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	sess := session.New(stubAligner(), stubScorer(), &playback.NullSink{},
		session.WithClockOptions(playback.WithFrame(0), playback.WithNow(ft.Now)),
		session.WithModelOptions(timeline.WithEstimator(timeline.FixedEstimator(90))),
	)
	t.Cleanup(sess.Close)

	if err := sess.Clock().LoadBuffer(fiveSeconds()); err != nil {
		t.Fatalf("load buffer: %v", err)
	}
	src := audio.Source{Name: "take.wav", MIME: "audio/wav", Data: []byte("x")}
	set, err := sess.Analyze(context.Background(), "hold the line", src)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	m := New(Options{
		Session:   sess,
		Lyrics:    "hold the line",
		Source:    src,
		History:   fakeRuns{},
		ExportDir: t.TempDir(),
	})
	m, _ = applyUpdate(m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m, _ = applyUpdate(m, LoadDoneMsg{Duration: 5})
	m, _ = applyUpdate(m, RunDoneMsg{Set: set})
	return m, ft
}

func TestNewModel(t *testing.T) {
	m := New(Options{Source: audio.Source{Name: "take.wav", Data: []byte("x")}})
	if m.pending != 1 {
		t.Errorf("pending = %d, want 1", m.pending)
	}
	if m.loaded {
		t.Error("new model should not be loaded")
	}
	if m.frame != playback.DefaultFrame {
		t.Errorf("frame = %v, want default", m.frame)
	}
	if m.View() != "Initializing..." {
		t.Error("view should wait for a window size")
	}
}

func TestNewModelWithoutSource(t *testing.T) {
	m := New(Options{})
	if m.pending != 0 {
		t.Errorf("pending = %d, want 0", m.pending)
	}
}

func TestRunDoneReplacesSet(t *testing.T) {
	m, _ := newLoadedModel(t)

	if m.set.Len() != 3 {
		t.Fatalf("tokens = %d, want 3", m.set.Len())
	}
	if m.pending != 0 {
		t.Errorf("pending = %d, want 0", m.pending)
	}
	if !strings.Contains(m.statusText, "2 need attention") {
		t.Errorf("status = %q", m.statusText)
	}
}

func TestSupersededRunIgnored(t *testing.T) {
	m, _ := newLoadedModel(t)
	before := m.set

	m.pending = 1
	m, cmd := applyUpdate(m, RunDoneMsg{Err: fmt.Errorf("run 1: %w", pipeline.ErrSuperseded)})

	if cmd != nil {
		t.Error("superseded run should not schedule anything")
	}
	if m.errorMessage != "" {
		t.Errorf("superseded run should not show an error, got %q", m.errorMessage)
	}
	if m.set.RunSeq != before.RunSeq || m.set.Len() != before.Len() {
		t.Error("superseded run replaced the set")
	}
	if m.pending != 0 {
		t.Errorf("pending = %d, want 0", m.pending)
	}
}

func TestOlderRunFailureIgnored(t *testing.T) {
	m, _ := newLoadedModel(t)

	// Run 2 starts (and here finishes) before run 1's failure arrives.
	if _, err := m.sess.Analyze(context.Background(), m.lyrics, m.source); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	m.pending = 1
	old := &pipeline.StageError{Seq: 1, Stage: pipeline.StageScore, Kind: pipeline.ErrScoring, Err: errors.New("boom")}
	m, cmd := applyUpdate(m, RunDoneMsg{Err: old})

	if cmd != nil || m.errorMessage != "" {
		t.Errorf("stale failure surfaced: %q", m.errorMessage)
	}
	if m.statusText == "Analysis failed" {
		t.Error("stale failure changed the status line")
	}

	current := &pipeline.StageError{Seq: 2, Stage: pipeline.StageScore, Kind: pipeline.ErrScoring, Err: errors.New("boom")}
	m, _ = applyUpdate(m, RunDoneMsg{Err: current})
	if m.errorMessage == "" {
		t.Error("failure of the latest run should be shown")
	}
}

func TestRunFailureShowsTransientError(t *testing.T) {
	m, _ := newLoadedModel(t)

	m, cmd := applyUpdate(m, RunDoneMsg{Err: errors.New("alignment: daemon unavailable")})
	if cmd == nil {
		t.Error("expected clear-error command")
	}
	if !m.errorTransient || !strings.Contains(m.errorMessage, "daemon unavailable") {
		t.Errorf("error = %q transient=%v", m.errorMessage, m.errorTransient)
	}
	if m.set.Len() != 3 {
		t.Error("failed run should keep the previous set")
	}

	m, _ = applyUpdate(m, ClearTransientErrorMsg{})
	if m.errorMessage != "" {
		t.Error("transient error should clear")
	}
}

func TestLoadErrorIsPersistent(t *testing.T) {
	m := New(Options{Source: audio.Source{Name: "bad.wav", Data: []byte("x")}})
	m, _ = applyUpdate(m, LoadDoneMsg{Err: errors.New("decode: bad header")})
	m, _ = applyUpdate(m, ClearTransientErrorMsg{})

	if m.errorMessage == "" {
		t.Error("load error should persist")
	}
	if m.loaded {
		t.Error("model should not be loaded")
	}
}

func TestSelectionKeys(t *testing.T) {
	m, _ := newLoadedModel(t)

	m, _ = applyUpdate(m, keyRunes(KeyPrev))
	if m.selected != 0 {
		t.Errorf("selected = %d, want 0 at the start", m.selected)
	}
	m, _ = applyUpdate(m, keyRunes(KeyNext))
	m, _ = applyUpdate(m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = applyUpdate(m, keyRunes(KeyNext))
	if m.selected != 2 {
		t.Errorf("selected = %d, want 2 at the end", m.selected)
	}
	m, _ = applyUpdate(m, tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.selected != 1 {
		t.Errorf("selected = %d, want 1", m.selected)
	}
}

func TestFixKey(t *testing.T) {
	m, _ := newLoadedModel(t)
	m.selected = 1 // "the", warn

	m, cmd := applyUpdate(m, keyRunes(KeyFix))
	if cmd == nil {
		t.Fatal("expected transition command")
	}
	msg, ok := cmd().(TransitionMsg)
	if !ok {
		t.Fatal("expected TransitionMsg")
	}
	m, _ = applyUpdate(m, msg)

	tok := m.set.Tokens[1]
	if tok.Status != timeline.StatusFixed || tok.Score != 90 {
		t.Errorf("token = %+v, want fixed at 90", tok)
	}
}

func TestFixCleanWordShowsError(t *testing.T) {
	m, _ := newLoadedModel(t)
	m.selected = 0 // "hold", clean

	_, cmd := applyUpdate(m, keyRunes(KeyFix))
	m, _ = applyUpdate(m, cmd())

	if m.errorMessage == "" {
		t.Error("fixing a clean word should show an error")
	}
	if m.set.Tokens[0].Status != timeline.StatusClean {
		t.Error("clean word should be unchanged")
	}
}

func TestApproveKey(t *testing.T) {
	m, _ := newLoadedModel(t)
	m.selected = 2 // "line", ghost

	_, cmd := applyUpdate(m, keyRunes(KeyApprove))
	m, _ = applyUpdate(m, cmd())

	tok := m.set.Tokens[2]
	if tok.Status != timeline.StatusClean || tok.Score != timeline.DefaultMinClarity {
		t.Errorf("token = %+v, want clean at %v", tok, timeline.DefaultMinClarity)
	}
	if !strings.Contains(m.statusText, "Approved") {
		t.Errorf("status = %q", m.statusText)
	}
}

func TestFlagInput(t *testing.T) {
	m, _ := newLoadedModel(t)
	m.selected = 0

	m, _ = applyUpdate(m, keyRunes(KeyFlag))
	if m.inputMode != InputFlagReason {
		t.Fatal("flag should open the reason prompt")
	}

	// Keys go to the prompt, not the key map.
	m, _ = applyUpdate(m, keyRunes("q"))
	if m.input.Value() != "q" {
		t.Errorf("input = %q, want q", m.input.Value())
	}
	m, _ = applyUpdate(m, tea.KeyMsg{Type: tea.KeyBackspace})
	m, _ = applyUpdate(m, keyRunes("plosive"))

	m, cmd := applyUpdate(m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.inputMode != InputNone {
		t.Error("enter should close the prompt")
	}
	if cmd == nil {
		t.Fatal("expected flag command")
	}
	m, _ = applyUpdate(m, cmd())

	tok := m.set.Tokens[0]
	if tok.Status != timeline.StatusGhost || tok.GhostReason != "plosive" {
		t.Errorf("token = %+v, want ghost with reason", tok)
	}
}

func TestFlagInputCancel(t *testing.T) {
	m, _ := newLoadedModel(t)

	m, _ = applyUpdate(m, keyRunes(KeyFlag))
	m, _ = applyUpdate(m, keyRunes("hiss"))
	m, cmd := applyUpdate(m, tea.KeyMsg{Type: tea.KeyEsc})

	if m.inputMode != InputNone || cmd != nil {
		t.Error("esc should close the prompt without flagging")
	}
	if m.set.Tokens[0].Status != timeline.StatusClean {
		t.Error("token should be unchanged")
	}
}

func TestSpaceTogglesPlaybackAndTicks(t *testing.T) {
	m, ft := newLoadedModel(t)

	m, cmd := applyUpdate(m, tea.KeyMsg{Type: tea.KeySpace})
	if cmd == nil || !m.ticking {
		t.Fatal("play should start the frame tick")
	}
	if m.pos.State != playback.StatePlaying {
		t.Fatalf("state = %s, want playing", m.pos.State)
	}

	ft.Advance(time.Second)
	m, cmd = applyUpdate(m, FrameMsg{})
	if cmd == nil {
		t.Error("frame while playing should schedule the next frame")
	}
	if math.Abs(m.pos.Offset-1) > 1e-9 {
		t.Errorf("offset = %v, want 1", m.pos.Offset)
	}

	m, cmd = applyUpdate(m, tea.KeyMsg{Type: tea.KeySpace})
	if cmd != nil {
		t.Error("pause should not start a tick")
	}
	m, cmd = applyUpdate(m, FrameMsg{})
	if cmd != nil || m.ticking {
		t.Error("frame after pause should stop ticking")
	}
	if m.pos.State != playback.StatePaused {
		t.Errorf("state = %s, want paused", m.pos.State)
	}
}

func TestArrowKeysSeek(t *testing.T) {
	m, _ := newLoadedModel(t)

	m, _ = applyUpdate(m, tea.KeyMsg{Type: tea.KeyRight})
	m, _ = applyUpdate(m, tea.KeyMsg{Type: tea.KeyRight})
	if math.Abs(m.pos.Progress-2*SeekStep) > 1e-9 {
		t.Errorf("progress = %v, want %v", m.pos.Progress, 2*SeekStep)
	}

	for range 5 {
		m, _ = applyUpdate(m, tea.KeyMsg{Type: tea.KeyLeft})
	}
	if m.pos.Progress != 0 {
		t.Errorf("progress = %v, want clamped to 0", m.pos.Progress)
	}
}

func TestMouseSeek(t *testing.T) {
	m, _ := newLoadedModel(t)

	m, _ = applyUpdate(m, tea.MouseMsg{
		X: 99, Y: m.waveformTop() + 1,
		Action: tea.MouseActionPress, Button: tea.MouseButtonLeft,
	})
	if math.Abs(m.pos.Offset-5) > 1e-9 {
		t.Errorf("offset = %v, want end of take", m.pos.Offset)
	}

	// Clicks outside the waveform rows are ignored.
	m, _ = applyUpdate(m, tea.MouseMsg{
		X: 0, Y: 0,
		Action: tea.MouseActionPress, Button: tea.MouseButtonLeft,
	})
	if math.Abs(m.pos.Offset-5) > 1e-9 {
		t.Errorf("offset = %v, header click should not seek", m.pos.Offset)
	}
}

func TestIsolateKey(t *testing.T) {
	m, ft := newLoadedModel(t)
	m.selected = 2 // "line", 3-4s

	m, cmd := applyUpdate(m, keyRunes(KeyIsolate))
	if cmd == nil {
		t.Fatal("isolate should start ticking")
	}
	if m.pos.State != playback.StatePlaying || m.pos.Offset != 3 {
		t.Errorf("pos = %+v, want playing at 3", m.pos)
	}

	ft.Advance(2 * time.Second)
	m, _ = applyUpdate(m, FrameMsg{})
	if m.pos.State != playback.StatePaused || m.pos.Offset != 4 {
		t.Errorf("pos = %+v, want paused at word end", m.pos)
	}
}

func TestExportKey(t *testing.T) {
	m, _ := newLoadedModel(t)

	_, cmd := applyUpdate(m, keyRunes(KeyExport))
	if cmd == nil {
		t.Fatal("expected export command")
	}
	msg, ok := cmd().(ExportedMsg)
	if !ok {
		t.Fatal("expected ExportedMsg")
	}
	if msg.Err != nil {
		t.Fatalf("export: %v", msg.Err)
	}
	if filepath.Base(msg.Path) != "w_0-hold.wav" {
		t.Errorf("path = %s", msg.Path)
	}
	if _, err := os.Stat(msg.Path); err != nil {
		t.Errorf("exported file missing: %v", err)
	}

	m, _ = applyUpdate(m, msg)
	if !strings.Contains(m.statusText, "Wrote") {
		t.Errorf("status = %q", m.statusText)
	}
}

func TestExportPathStaysInDir(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		text string
		want string
	}{
		{"hold", "w_1-hold.wav"},
		{"AC/DC", "w_1-AC_DC.wav"},
		{"../x", "w_1-___x.wav"},
		{`a\b`, "w_1-a_b.wav"},
		{"don't", "w_1-don_t.wav"},
	}
	for _, tt := range tests {
		got := exportPath(dir, timeline.WordToken{ID: "w_1", Text: tt.text})
		if filepath.Dir(got) != dir {
			t.Errorf("exportPath(%q) = %s, outside %s", tt.text, got, dir)
		}
		if filepath.Base(got) != tt.want {
			t.Errorf("exportPath(%q) base = %s, want %s", tt.text, filepath.Base(got), tt.want)
		}
	}
}

func TestRerunKeyIncrementsPending(t *testing.T) {
	m, _ := newLoadedModel(t)

	m, cmd := applyUpdate(m, keyRunes(KeyRerun))
	if cmd == nil {
		t.Fatal("expected rerun command")
	}
	if m.pending != 1 {
		t.Errorf("pending = %d, want 1", m.pending)
	}
}

func TestEQKeyWithoutGenerator(t *testing.T) {
	m, _ := newLoadedModel(t)

	m, cmd := applyUpdate(m, keyRunes(KeyEQ))
	if cmd != nil || m.inputMode != InputNone {
		t.Error("EQ key should do nothing without a generator")
	}
}

func TestEQFlow(t *testing.T) {
	m, _ := newLoadedModel(t)
	gen := &fakeEQ{}
	m.eq = gen

	m, _ = applyUpdate(m, keyRunes(KeyEQ))
	if m.inputMode != InputEQContext {
		t.Fatal("EQ key should open the context prompt")
	}
	m, cmd := applyUpdate(m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil || !m.eqPending {
		t.Fatal("enter should start generation")
	}

	msg := eqCmd(gen, "dry pop vocal")()
	m, _ = applyUpdate(m, msg)
	if m.eqPending {
		t.Error("eq should no longer be pending")
	}
	if m.eqProfile == nil || m.eqContext != "dry pop vocal" {
		t.Fatalf("profile = %+v context = %q", m.eqProfile, m.eqContext)
	}
	if !strings.Contains(m.View(), "lowcut") {
		t.Error("view should show the EQ summary")
	}
}

func TestHistoryLoaded(t *testing.T) {
	m, _ := newLoadedModel(t)
	runs := []db.Run{
		{Seq: 2, Status: db.RunOK, Stats: timeline.Stats{Total: 3, MeanClarity: 61.7}},
		{Seq: 1, Status: db.RunFailed, Error: "alignment: boom"},
	}

	m, _ = applyUpdate(m, HistoryLoadedMsg{Runs: runs})
	view := m.View()
	if !strings.Contains(view, "#2 3 words") {
		t.Error("view should list the successful run")
	}
	if !strings.Contains(view, "#1 failed") {
		t.Error("view should list the failed run")
	}
}

func TestLoadHistoryCmd(t *testing.T) {
	if loadHistoryCmd(nil) != nil {
		t.Error("nil history should not schedule a load")
	}
	msg := loadHistoryCmd(fakeRuns{runs: []db.Run{{Seq: 7}}})()
	hl, ok := msg.(HistoryLoadedMsg)
	if !ok || len(hl.Runs) != 1 {
		t.Errorf("msg = %#v", msg)
	}
}

func TestViewRendersTimeline(t *testing.T) {
	m, _ := newLoadedModel(t)
	view := m.View()

	for _, want := range []string{"INCISION", "take.wav", "hold", "line", "WORD", "HISTORY", "Approve"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestQuit(t *testing.T) {
	m, _ := newLoadedModel(t)
	_, cmd := applyUpdate(m, keyRunes(KeyQuit))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		sec  float64
		want string
	}{
		{0, "0:00.0"},
		{3.3, "0:03.3"},
		{75.5, "1:15.5"},
		{-1, "0:00.0"},
	}
	for _, tt := range tests {
		if got := formatTime(tt.sec); got != tt.want {
			t.Errorf("formatTime(%v) = %q, want %q", tt.sec, got, tt.want)
		}
	}
}
