package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/hraban/opus.v2"
)

// Ogg Opus always decodes at 48kHz.
const opusSampleRate = 48000

// opusChannels reads the channel count from the OpusHead identification
// header (RFC 7845 §5.1).
func opusChannels(data []byte) int {
	i := bytes.Index(data, []byte("OpusHead"))
	if i < 0 || i+9 >= len(data) {
		return 0
	}
	return int(data[i+9])
}

func decodeOpus(data []byte) (*Buffer, error) {
	channels := opusChannels(data)
	if channels <= 0 {
		return nil, fmt.Errorf("%w: opus header missing channel count", ErrDecode)
	}

	s, err := opus.NewStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: opus: %v", ErrDecode, err)
	}
	defer s.Close()

	// 120ms is the largest opus frame
	pcm := make([]int16, opusSampleRate/1000*120*channels)
	var samples []float32
	for {
		n, err := s.Read(pcm)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: opus stream: %v", ErrDecode, err)
		}
		for i := 0; i < n; i++ {
			samples = append(samples, float32(pcm[i*channels])/32768)
		}
	}
	return newBuffer(samples, opusSampleRate, channels)
}
