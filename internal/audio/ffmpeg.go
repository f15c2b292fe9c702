package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os/exec"
)

// ffmpegRate is the rate ffmpeg resamples unknown formats to.
const ffmpegRate = 48000

// FFmpegAvailable reports whether the ffmpeg binary is on PATH.
func FFmpegAvailable() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

// decodeFFmpeg pipes the source through ffmpeg and reads mono s16le PCM back.
func decodeFFmpeg(ctx context.Context, data []byte) (*Buffer, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", "pipe:0",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprint(ffmpegRate),
		"-ac", "1",
		"-loglevel", "error",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(data)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: ffmpeg: %v", ErrDecode, err)
	}
	return newBuffer(BytesToSamples(out), ffmpegRate, 1)
}

// BytesToSamples converts little-endian s16 PCM to normalised floats. A
// trailing odd byte is ignored.
func BytesToSamples(b []byte) []float32 {
	samples := make([]float32, len(b)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(b[i*2:]))) / 32768
	}
	return samples
}

// SamplesToBytes converts normalised floats to little-endian s16 PCM.
func SamplesToBytes(samples []float32) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		s = max(-1, min(1, s))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(s*32767)))
	}
	return buf
}
