package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always emits 16-bit little-endian stereo.
const mp3FrameBytes = 4

func decodeMP3(data []byte) (*Buffer, error) {
	d, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: mp3: %v", ErrDecode, err)
	}
	raw, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("%w: mp3 stream: %v", ErrDecode, err)
	}

	samples := make([]float32, len(raw)/mp3FrameBytes)
	for i := range samples {
		left := int16(binary.LittleEndian.Uint16(raw[i*mp3FrameBytes:]))
		samples[i] = float32(left) / 32768
	}
	return newBuffer(samples, d.SampleRate(), 2)
}
