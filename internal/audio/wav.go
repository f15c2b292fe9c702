package audio

import (
	"bytes"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func decodeWAV(data []byte) (*Buffer, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid wav header", ErrDecode)
	}
	pcm, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: wav: %v", ErrDecode, err)
	}

	channels := pcm.Format.NumChannels
	if channels <= 0 {
		return nil, fmt.Errorf("%w: wav reports %d channels", ErrDecode, channels)
	}
	depth := int(d.BitDepth)
	if depth <= 0 || depth > 32 {
		return nil, fmt.Errorf("%w: wav bit depth %d", ErrDecode, depth)
	}
	scale := float32(int64(1) << (depth - 1))

	frames := len(pcm.Data) / channels
	samples := make([]float32, frames)
	for i := range samples {
		v := pcm.Data[i*channels]
		if depth == 8 {
			v -= 128 // 8-bit wav is unsigned
		}
		samples[i] = float32(v) / scale
	}
	return newBuffer(samples, pcm.Format.SampleRate, channels)
}

// WriteWAV writes mono 16-bit PCM. Used to export word clips for external
// repair tools.
func WriteWAV(path string, samples []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	ints := make([]int, len(samples))
	for i, s := range samples {
		s = max(-1, min(1, s))
		ints[i] = int(s * 32767)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           ints,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return f.Close()
}
