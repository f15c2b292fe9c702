package playback

import (
	"sync"
	"sync/atomic"

	"github.com/jwulff/incision/internal/audio"
)

// Sink turns a buffer into sound starting at offset seconds.
type Sink interface {
	Start(buf *audio.Buffer, offset float64) (Voice, error)
}

// Voice is one active playback started by a Sink.
type Voice interface {
	Stop()
}

// NullSink plays nothing. It counts voices so callers can check that at most
// one is ever active.
type NullSink struct {
	active  atomic.Int64
	peak    atomic.Int64
	started atomic.Int64

	mu      sync.Mutex
	offsets []float64
}

// Start records a silent voice.
func (s *NullSink) Start(_ *audio.Buffer, offset float64) (Voice, error) {
	n := s.active.Add(1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	s.started.Add(1)
	s.mu.Lock()
	s.offsets = append(s.offsets, offset)
	s.mu.Unlock()
	return &nullVoice{sink: s}, nil
}

// Active is the number of voices not yet stopped.
func (s *NullSink) Active() int { return int(s.active.Load()) }

// Peak is the largest number of simultaneously active voices seen.
func (s *NullSink) Peak() int { return int(s.peak.Load()) }

// Started is the total number of voices started.
func (s *NullSink) Started() int { return int(s.started.Load()) }

// Offsets returns the start offset of every voice, in order.
func (s *NullSink) Offsets() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.offsets...)
}

type nullVoice struct {
	sink *NullSink
	once sync.Once
}

func (v *nullVoice) Stop() {
	v.once.Do(func() { v.sink.active.Add(-1) })
}
