package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/jwulff/incision/internal/audio"
	"github.com/jwulff/incision/internal/db"
	"github.com/jwulff/incision/internal/eqprofile"
	"github.com/jwulff/incision/internal/pipeline"
	"github.com/jwulff/incision/internal/playback"
	"github.com/jwulff/incision/internal/playhead"
	"github.com/jwulff/incision/internal/session"
	"github.com/jwulff/incision/internal/timeline"
	"github.com/jwulff/incision/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
)

// RunLister reads recent runs for the history panel.
type RunLister interface {
	RecentRuns(ctx context.Context, limit int) ([]db.Run, error)
}

// EQGenerator produces an EQ profile for a production context.
type EQGenerator interface {
	Generate(ctx context.Context, productionContext string) (eqprofile.Profile, error)
}

// InputMode tracks what the prompt line is collecting.
type InputMode int

const (
	InputNone InputMode = iota
	InputFlagReason
	InputEQContext
)

// Options wires a Model to its session and optional collaborators.
type Options struct {
	Session   *session.Session
	Lyrics    string
	Source    audio.Source
	History   RunLister     // nil disables history
	EQ        EQGenerator   // nil disables the EQ key
	Frame     time.Duration // playhead refresh, defaults to playback.DefaultFrame
	ExportDir string        // where isolated words are written
}

// Model is the root bubbletea model for the incision TUI.
type Model struct {
	sess    *session.Session
	lyrics  string
	source  audio.Source
	history RunLister
	eq      EQGenerator
	frame   time.Duration
	outDir  string

	// Timeline
	set      timeline.Set
	selected int

	// Playback
	loaded  bool
	pos     playback.Position
	ticking bool

	// Analysis
	pending int
	spinner spinner.Model

	// Prompt line
	input     textinput.Model
	inputMode InputMode

	// EQ
	eqContext string
	eqProfile *eqprofile.Profile
	eqPending bool

	// History
	runs []db.Run

	// UI state
	width  int
	height int

	// Errors
	errorMessage   string
	errorTransient bool

	// Status
	statusText string
}

// New creates a Model that will load and analyse opts.Source on Init.
func New(opts Options) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = ui.SpinnerStyle

	ti := textinput.New()
	ti.CharLimit = 200
	ti.Width = 50

	frame := opts.Frame
	if frame <= 0 {
		frame = playback.DefaultFrame
	}
	outDir := opts.ExportDir
	if outDir == "" {
		outDir = "."
	}

	m := Model{
		sess:       opts.Session,
		lyrics:     opts.Lyrics,
		source:     opts.Source,
		history:    opts.History,
		eq:         opts.EQ,
		frame:      frame,
		outDir:     outDir,
		spinner:    sp,
		input:      ti,
		statusText: "Loading " + opts.Source.Name + "...",
	}
	if len(opts.Source.Data) > 0 {
		m.pending = 1
	}
	return m
}

// Init loads the take, starts the first analysis run and reads history.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{loadHistoryCmd(m.history)}
	if len(m.source.Data) > 0 {
		cmds = append(cmds,
			loadCmd(m.sess, m.source),
			analyzeCmd(m.sess, m.lyrics, m.source),
			m.spinner.Tick,
		)
	}
	return tea.Batch(cmds...)
}

// loadCmd decodes the take into the playback clock.
func loadCmd(sess *session.Session, src audio.Source) tea.Cmd {
	return func() tea.Msg {
		buf, err := sess.Load(context.Background(), src)
		if err != nil {
			return LoadDoneMsg{Err: err}
		}
		return LoadDoneMsg{Duration: buf.Duration}
	}
}

// analyzeCmd runs the pipeline off the UI goroutine.
func analyzeCmd(sess *session.Session, lyrics string, src audio.Source) tea.Cmd {
	return func() tea.Msg {
		set, err := sess.Analyze(context.Background(), lyrics, src)
		return RunDoneMsg{Set: set, Err: err}
	}
}

// transitionCmd applies approve, flag or fix to one token.
func transitionCmd(sess *session.Session, action, id, reason string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		var tok timeline.WordToken
		var err error
		switch action {
		case KeyApprove:
			tok, err = sess.Approve(ctx, id)
		case KeyFlag:
			tok, err = sess.Flag(ctx, id, reason)
		default:
			tok, err = sess.Fix(ctx, id)
		}
		return TransitionMsg{Action: action, Token: tok, Err: err}
	}
}

// exportCmd writes the selected word to a WAV file.
func exportCmd(sess *session.Session, id, path string) tea.Cmd {
	return func() tea.Msg {
		return ExportedMsg{Path: path, Err: sess.ExportWord(id, path)}
	}
}

// eqCmd asks the EQ generator for a profile.
func eqCmd(gen EQGenerator, productionContext string) tea.Cmd {
	return func() tea.Msg {
		p, err := gen.Generate(context.Background(), productionContext)
		return EQProfileMsg{Context: productionContext, Profile: p, Err: err}
	}
}

// loadHistoryCmd reads recent runs from the store.
func loadHistoryCmd(h RunLister) tea.Cmd {
	if h == nil {
		return nil
	}
	return func() tea.Msg {
		runs, err := h.RecentRuns(context.Background(), 5)
		if err != nil {
			return HistoryLoadedMsg{} // history is best effort
		}
		return HistoryLoadedMsg{Runs: runs}
	}
}

// frameCmd schedules the next playhead sample.
func frameCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return FrameMsg{}
	})
}

// clearTransientErrorCmd fires after a delay to clear transient errors.
func clearTransientErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		if m.inputMode != InputNone {
			return m.handleInputKey(msg)
		}
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		if m.pending == 0 && !m.eqPending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case LoadDoneMsg:
		if msg.Err != nil {
			m.statusText = "Could not decode " + m.source.Name
			return m, m.setError(msg.Err.Error(), false)
		}
		m.loaded = true
		m.pos = m.sess.Position()
		if m.pending > 0 {
			m.statusText = "Analyzing..."
		} else {
			m.statusText = "Ready"
		}
		return m, nil

	case RunDoneMsg:
		m.pending = max(0, m.pending-1)
		if errors.Is(msg.Err, pipeline.ErrSuperseded) || m.staleFailure(msg.Err) {
			return m, nil
		}
		if msg.Err != nil {
			m.statusText = "Analysis failed"
			return m, tea.Batch(m.setError(msg.Err.Error(), true), loadHistoryCmd(m.history))
		}
		m.set = msg.Set
		if m.selected >= m.set.Len() {
			m.selected = max(0, m.set.Len()-1)
		}
		st := m.set.Stats()
		m.statusText = fmt.Sprintf("Run %d: %d words, %d need attention", m.set.RunSeq, st.Total, st.Warn+st.Ghost)
		return m, loadHistoryCmd(m.history)

	case TransitionMsg:
		if msg.Err != nil {
			return m, m.setError(msg.Err.Error(), true)
		}
		m.set = m.sess.Snapshot()
		m.statusText = fmt.Sprintf("%s %q -> %s", actionName(msg.Action), msg.Token.Text, msg.Token.Status)
		return m, nil

	case FrameMsg:
		m.pos = m.sess.Clock().Sample()
		if m.pos.State == playback.StatePlaying {
			return m, frameCmd(m.frame)
		}
		m.ticking = false
		return m, nil

	case ExportedMsg:
		if msg.Err != nil {
			return m, m.setError(msg.Err.Error(), true)
		}
		m.statusText = "Wrote " + msg.Path
		return m, nil

	case EQProfileMsg:
		m.eqPending = false
		if msg.Err != nil {
			return m, m.setError(msg.Err.Error(), true)
		}
		p := msg.Profile
		m.eqProfile = &p
		m.eqContext = msg.Context
		return m, nil

	case HistoryLoadedMsg:
		m.runs = msg.Runs
		return m, nil

	case ClearTransientErrorMsg:
		if m.errorTransient {
			m.errorMessage = ""
			m.errorTransient = false
		}
		return m, nil
	}

	return m, nil
}

// staleFailure reports a failed run that a newer run has already replaced.
func (m Model) staleFailure(err error) bool {
	var se *pipeline.StageError
	if m.sess == nil || !errors.As(err, &se) {
		return false
	}
	return se.Seq < m.sess.LatestRun()
}

// exportPath names the WAV for a word inside dir. Characters outside
// letters, digits, '-' and '_' are replaced so lyrics cannot escape dir.
func exportPath(dir string, tok timeline.WordToken) string {
	name := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, tok.Text)
	return filepath.Join(dir, fmt.Sprintf("%s-%s.wav", tok.ID, name))
}

func actionName(a string) string {
	switch a {
	case KeyApprove:
		return "Approved"
	case KeyFlag:
		return "Flagged"
	}
	return "Fixed"
}

func (m *Model) setError(text string, transient bool) tea.Cmd {
	m.errorMessage = text
	m.errorTransient = transient
	if transient {
		return clearTransientErrorCmd()
	}
	return nil
}

// startTicking begins frame sampling if it isn't running.
func (m *Model) startTicking() tea.Cmd {
	m.pos = m.sess.Position()
	if m.ticking || m.pos.State != playback.StatePlaying {
		return nil
	}
	m.ticking = true
	return frameCmd(m.frame)
}

func (m Model) selectedToken() (timeline.WordToken, bool) {
	if m.selected < 0 || m.selected >= m.set.Len() {
		return timeline.WordToken{}, false
	}
	return m.set.Tokens[m.selected], true
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		return m, tea.Quit

	case KeySpace:
		if err := m.sess.Toggle(); err != nil {
			return m, m.setError(err.Error(), true)
		}
		return m, m.startTicking()

	case KeyLeft, KeyRight:
		step := SeekStep
		if msg.String() == KeyLeft {
			step = -step
		}
		if err := m.sess.Seek(m.sess.Position().Progress + step); err != nil {
			return m, m.setError(err.Error(), true)
		}
		return m, m.startTicking()

	case KeyPrev, KeyShiftTab:
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case KeyNext, KeyTab:
		if m.selected < m.set.Len()-1 {
			m.selected++
		}
		return m, nil

	case KeyApprove, KeyFix:
		tok, ok := m.selectedToken()
		if !ok {
			return m, nil
		}
		return m, transitionCmd(m.sess, msg.String(), tok.ID, "")

	case KeyFlag:
		if _, ok := m.selectedToken(); !ok {
			return m, nil
		}
		return m, m.openInput(InputFlagReason, "reason: ", "breath noise, clipping, off-pitch...")

	case KeyIsolate:
		tok, ok := m.selectedToken()
		if !ok {
			return m, nil
		}
		if err := m.sess.Isolate(tok.ID); err != nil {
			return m, m.setError(err.Error(), true)
		}
		return m, m.startTicking()

	case KeyExport:
		tok, ok := m.selectedToken()
		if !ok {
			return m, nil
		}
		return m, exportCmd(m.sess, tok.ID, exportPath(m.outDir, tok))

	case KeyRerun:
		if len(m.source.Data) == 0 {
			return m, nil
		}
		m.pending++
		m.statusText = "Analyzing..."
		return m, tea.Batch(analyzeCmd(m.sess, m.lyrics, m.source), m.spinner.Tick)

	case KeyEQ:
		if m.eq == nil {
			return m, nil
		}
		return m, m.openInput(InputEQContext, "production context: ", "clean and present")
	}

	return m, nil
}

func (m *Model) openInput(mode InputMode, prompt, placeholder string) tea.Cmd {
	m.inputMode = mode
	m.input.Reset()
	m.input.Prompt = prompt
	m.input.Placeholder = placeholder
	return m.input.Focus()
}

func (m *Model) closeInput() {
	m.inputMode = InputNone
	m.input.Blur()
	m.input.Reset()
}

// handleInputKey routes keys to the prompt line while it is open.
func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyEsc, KeyCtrlC:
		m.closeInput()
		return m, nil

	case KeyEnter:
		value := m.input.Value()
		if value == "" {
			value = m.input.Placeholder
		}
		mode := m.inputMode
		m.closeInput()
		switch mode {
		case InputFlagReason:
			tok, ok := m.selectedToken()
			if !ok {
				return m, nil
			}
			return m, transitionCmd(m.sess, KeyFlag, tok.ID, value)
		case InputEQContext:
			m.eqPending = true
			return m, tea.Batch(eqCmd(m.eq, value), m.spinner.Tick)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleMouse seeks when the waveform is clicked.
func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}
	top := m.waveformTop()
	if msg.Y < top || msg.Y >= top+m.waveformHeight() || m.width <= 0 {
		return m, nil
	}
	b := playhead.Binder{Clock: m.sess, Width: m.width}
	if err := b.SeekColumn(msg.X); err != nil {
		return m, m.setError(err.Error(), true)
	}
	return m, m.startTicking()
}
