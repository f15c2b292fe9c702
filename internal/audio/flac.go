package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
)

func decodeFLAC(data []byte) (*Buffer, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: flac: %v", ErrDecode, err)
	}
	defer stream.Close()

	info := stream.Info
	if info.BitsPerSample == 0 {
		return nil, fmt.Errorf("%w: flac reports 0 bits per sample", ErrDecode)
	}
	scale := float32(int64(1) << (info.BitsPerSample - 1))

	samples := make([]float32, 0, info.NSamples)
	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: flac frame: %v", ErrDecode, err)
		}
		for _, s := range frame.Subframes[0].Samples {
			samples = append(samples, float32(s)/scale)
		}
	}
	return newBuffer(samples, int(info.SampleRate), int(info.NChannels))
}
