// Package audio ingests vocal stems: it carries the raw bytes with their MIME
// type and decodes them into linear PCM for playback, analysis and waveform
// rendering.
package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrDecode is returned when a source cannot be turned into PCM.
	ErrDecode = errors.New("decode audio")

	// ErrUnsupported marks a source whose container is not recognised.
	ErrUnsupported = fmt.Errorf("%w: unsupported format", ErrDecode)
)

// Source is an undecoded audio file together with its MIME type.
type Source struct {
	Name string
	MIME string
	Data []byte
}

// ReadFile loads a source from disk, guessing the MIME type from the
// extension and falling back to content sniffing.
func ReadFile(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("read audio: %w", err)
	}
	mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mt == "" {
		mt = http.DetectContentType(data)
	}
	return Source{Name: filepath.Base(path), MIME: mt, Data: data}, nil
}

// DataURI renders the source as data:<mime>;base64,<payload>.
func (s Source) DataURI() string {
	mt := s.MIME
	if mt == "" {
		mt = "application/octet-stream"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(s.Data)
}

// ParseDataURI is the inverse of Source.DataURI.
func ParseDataURI(uri string) (Source, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return Source{}, fmt.Errorf("parse data uri: missing data: prefix")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Source{}, fmt.Errorf("parse data uri: missing payload")
	}
	mt, isB64 := strings.CutSuffix(meta, ";base64")
	if !isB64 {
		return Source{}, fmt.Errorf("parse data uri: only base64 payloads are supported")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Source{}, fmt.Errorf("parse data uri: %w", err)
	}
	return Source{MIME: mt, Data: data}, nil
}

// Buffer is decoded PCM. Samples holds the first channel normalised to
// [-1, 1]. A Buffer is never mutated after Decode returns it.
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
	Duration   float64 // seconds
}

func newBuffer(samples []float32, rate, channels int) (*Buffer, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("%w: invalid sample rate %d", ErrDecode, rate)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrDecode)
	}
	return &Buffer{
		Samples:    samples,
		SampleRate: rate,
		Channels:   channels,
		Duration:   float64(len(samples)) / float64(rate),
	}, nil
}

// Index converts a time in seconds to a sample index clamped to the buffer.
func (b *Buffer) Index(seconds float64) int {
	i := int(math.Round(seconds * float64(b.SampleRate)))
	return max(0, min(i, len(b.Samples)))
}

// Slice returns the samples between two times in seconds.
func (b *Buffer) Slice(start, end float64) []float32 {
	i, j := b.Index(start), b.Index(end)
	if j < i {
		return nil
	}
	return b.Samples[i:j]
}
