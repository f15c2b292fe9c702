package playback

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/jwulff/incision/internal/audio"
)

// OutputRate is the sample rate of the speaker device.
const OutputRate = 48000

var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

// oto allows one context per process.
func otoContext() (*oto.Context, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   OutputRate,
			ChannelCount: 1,
			Format:       oto.FormatFloat32LE,
			BufferSize:   50 * time.Millisecond,
		})
		if err != nil {
			otoErr = fmt.Errorf("open audio output: %w", err)
			return
		}
		<-ready
		otoCtx = ctx
	})
	return otoCtx, otoErr
}

// OtoSink plays through the default speaker.
type OtoSink struct {
	ctx *oto.Context
}

// NewOtoSink opens the audio device.
func NewOtoSink() (*OtoSink, error) {
	ctx, err := otoContext()
	if err != nil {
		return nil, err
	}
	return &OtoSink{ctx: ctx}, nil
}

// Start plays buf from offset seconds.
func (s *OtoSink) Start(buf *audio.Buffer, offset float64) (Voice, error) {
	r := newPCMReader(buf, offset, OutputRate)
	p := s.ctx.NewPlayer(r)
	p.Play()
	return &otoVoice{player: p}, nil
}

type otoVoice struct {
	player *oto.Player
	once   sync.Once
}

func (v *otoVoice) Stop() {
	v.once.Do(func() {
		v.player.Pause()
		v.player.Close()
	})
}

// pcmReader streams float32 little-endian samples, resampling linearly to
// the output rate.
type pcmReader struct {
	samples []float32
	pos     float64 // index into samples
	step    float64
}

func newPCMReader(buf *audio.Buffer, offset float64, rate int) *pcmReader {
	return &pcmReader{
		samples: buf.Samples,
		pos:     float64(buf.Index(offset)),
		step:    float64(buf.SampleRate) / float64(rate),
	}
}

func (r *pcmReader) Read(p []byte) (int, error) {
	n := 0
	last := len(r.samples) - 1
	for n+4 <= len(p) {
		i := int(r.pos)
		if i > last {
			break
		}
		v := r.samples[i]
		if i < last {
			frac := float32(r.pos - float64(i))
			v += (r.samples[i+1] - v) * frac
		}
		binary.LittleEndian.PutUint32(p[n:], math.Float32bits(v))
		n += 4
		r.pos += r.step
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}
