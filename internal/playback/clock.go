// Package playback drives play, pause and seek over a decoded take and
// reports a continuously updated position for the waveform playhead.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jwulff/incision/internal/audio"
)

var (
	// ErrNotLoaded is returned by transport calls before a take is loaded.
	ErrNotLoaded = errors.New("no audio loaded")

	// ErrClosed is returned by every call after Close.
	ErrClosed = errors.New("clock closed")
)

// State is the transport state of a Clock.
type State int

const (
	StateIdle State = iota
	StateLoaded
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	}
	return "idle"
}

// Position is one published sample of the transport.
type Position struct {
	State    State
	Offset   float64 // seconds
	Duration float64 // seconds
	Progress float64 // Offset/Duration in [0,1]
}

// DefaultFrame is the sampling cadence of the position loop.
const DefaultFrame = time.Second / 30

// Clock owns one decoded take and the single voice playing it. All transport
// calls are serialised; starting playback always stops the previous voice
// first, so two voices are never active at once.
type Clock struct {
	sink   Sink
	now    func() time.Time
	decode func(context.Context, audio.Source) (*audio.Buffer, error)
	frame  time.Duration

	mu        sync.Mutex
	state     State
	buf       *audio.Buffer
	offset    float64 // position at startedAt while playing, stored position otherwise
	startedAt time.Time
	stopAt    float64 // pause here when hasStop
	hasStop   bool
	voice     Voice
	closed    bool

	gen        uint64
	loopCancel context.CancelFunc
	positions  chan Position
}

// Option configures a Clock.
type Option func(*Clock)

// WithNow replaces the wall clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(c *Clock) { c.now = now }
}

// WithFrame sets the position loop cadence. Zero disables the loop; callers
// then drive Sample themselves.
func WithFrame(d time.Duration) Option {
	return func(c *Clock) { c.frame = d }
}

// WithDecoder replaces audio.Decode.
func WithDecoder(fn func(context.Context, audio.Source) (*audio.Buffer, error)) Option {
	return func(c *Clock) { c.decode = fn }
}

// New returns an idle clock that plays through sink.
func New(sink Sink, opts ...Option) *Clock {
	c := &Clock{
		sink:      sink,
		now:       time.Now,
		decode:    audio.Decode,
		frame:     DefaultFrame,
		positions: make(chan Position, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Positions delivers the latest position once per frame while playing, and
// once more when playback stops on its own. Stale positions are dropped in
// favour of newer ones. The channel is closed by Close.
func (c *Clock) Positions() <-chan Position {
	return c.positions
}

// Load decodes src and makes it the current take. On failure the previous
// take, if any, stays loaded.
func (c *Clock) Load(ctx context.Context, src audio.Source) (*audio.Buffer, error) {
	buf, err := c.decode(ctx, src)
	if err != nil {
		return nil, err
	}
	if err := c.LoadBuffer(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// LoadBuffer installs an already decoded take.
func (c *Clock) LoadBuffer(buf *audio.Buffer) error {
	if buf == nil || buf.Duration <= 0 {
		return fmt.Errorf("%w: empty buffer", audio.ErrDecode)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.stopVoiceLocked()
	c.stopLoopLocked()
	c.buf = buf
	c.state = StateLoaded
	c.offset = 0
	c.hasStop = false
	return nil
}

// Buffer returns the loaded take, or nil.
func (c *Clock) Buffer() *audio.Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf
}

// Play starts playback at from seconds, replacing any voice in flight.
func (c *Clock) Play(from float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return err
	}
	c.hasStop = false
	return c.startLocked(from)
}

// Resume plays from the stored offset.
func (c *Clock) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return err
	}
	if c.state == StatePlaying {
		return nil
	}
	c.hasStop = false
	return c.startLocked(c.offset)
}

// PlayRange plays from start and pauses at end.
func (c *Clock) PlayRange(start, end float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return err
	}
	if err := c.startLocked(start); err != nil {
		return err
	}
	c.stopAt = end
	c.hasStop = true
	return nil
}

// Pause stops output and remembers where it stopped.
func (c *Clock) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return err
	}
	if c.state != StatePlaying {
		return nil
	}
	c.offset = c.elapsedLocked()
	c.stopVoiceLocked()
	c.stopLoopLocked()
	c.hasStop = false
	c.state = StatePaused
	return nil
}

// Toggle pauses when playing and resumes otherwise.
func (c *Clock) Toggle() error {
	c.mu.Lock()
	playing := c.state == StatePlaying
	c.mu.Unlock()
	if playing {
		return c.Pause()
	}
	return c.Resume()
}

// Seek moves to fraction of the duration, clamped to [0,1]. While playing,
// playback restarts at the new offset before Seek returns.
func (c *Clock) Seek(fraction float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return err
	}
	fraction = max(0, min(1, fraction))
	offset := fraction * c.buf.Duration
	c.hasStop = false
	if c.state == StatePlaying {
		return c.startLocked(offset)
	}
	c.offset = offset
	return nil
}

// Position computes the current position without publishing it.
func (c *Clock) Position() Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

// Sample is one tick of the position loop: it advances auto-stop and
// range-stop handling and publishes the resulting position.
func (c *Clock) Sample() Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sampleLocked()
}

// Close stops output and the position loop. A closed clock never publishes
// again.
func (c *Clock) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.stopVoiceLocked()
	c.stopLoopLocked()
	c.closed = true
	c.state = StateIdle
	close(c.positions)
}

func (c *Clock) readyLocked() error {
	if c.closed {
		return ErrClosed
	}
	if c.buf == nil {
		return ErrNotLoaded
	}
	return nil
}

func (c *Clock) startLocked(from float64) error {
	from = max(0, min(from, c.buf.Duration))
	c.stopVoiceLocked()

	v, err := c.sink.Start(c.buf, from)
	if err != nil {
		c.stopLoopLocked()
		c.offset = from
		c.state = StatePaused
		return fmt.Errorf("start playback: %w", err)
	}
	c.voice = v
	c.offset = from
	c.startedAt = c.now()
	c.state = StatePlaying
	c.startLoopLocked()
	return nil
}

func (c *Clock) elapsedLocked() float64 {
	if c.state != StatePlaying {
		return c.offset
	}
	return c.offset + c.now().Sub(c.startedAt).Seconds()
}

func (c *Clock) positionLocked() Position {
	if c.buf == nil {
		return Position{State: c.state}
	}
	off := min(c.elapsedLocked(), c.buf.Duration)
	return Position{
		State:    c.state,
		Offset:   off,
		Duration: c.buf.Duration,
		Progress: min(off/c.buf.Duration, 1),
	}
}

func (c *Clock) sampleLocked() Position {
	if c.closed || c.buf == nil {
		return Position{State: c.state}
	}
	if c.state == StatePlaying {
		elapsed := c.elapsedLocked()
		switch {
		case elapsed >= c.buf.Duration:
			c.stopVoiceLocked()
			c.stopLoopLocked()
			c.state = StateLoaded
			c.offset = 0
			c.hasStop = false
		case c.hasStop && elapsed >= c.stopAt:
			c.stopVoiceLocked()
			c.stopLoopLocked()
			c.state = StatePaused
			c.offset = c.stopAt
			c.hasStop = false
		}
	}
	p := c.positionLocked()
	c.publishLocked(p)
	return p
}

// publishLocked keeps only the newest position in the channel.
func (c *Clock) publishLocked(p Position) {
	for {
		select {
		case c.positions <- p:
			return
		default:
		}
		select {
		case <-c.positions:
		default:
		}
	}
}

func (c *Clock) stopVoiceLocked() {
	if c.voice != nil {
		c.voice.Stop()
		c.voice = nil
	}
}

func (c *Clock) startLoopLocked() {
	c.stopLoopLocked()
	if c.frame <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.loopCancel = cancel
	go c.loop(ctx, c.gen, c.frame)
}

// stopLoopLocked cancels the running loop and bumps the generation so a tick
// already in flight is discarded.
func (c *Clock) stopLoopLocked() {
	c.gen++
	if c.loopCancel != nil {
		c.loopCancel()
		c.loopCancel = nil
	}
}

func (c *Clock) loop(ctx context.Context, gen uint64, frame time.Duration) {
	ticker := time.NewTicker(frame)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if gen != c.gen || c.closed {
			c.mu.Unlock()
			return
		}
		p := c.sampleLocked()
		c.mu.Unlock()
		if p.State != StatePlaying {
			return
		}
	}
}
