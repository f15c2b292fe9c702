package audio

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(n, rate int, amp float64) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(amp * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	return s
}

func TestWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.wav")
	want := sine(4410, 44100, 0.5)
	require.NoError(t, WriteWAV(path, want, 44100))

	src, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "take.wav", src.Name)

	buf, err := Decode(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 44100, buf.SampleRate)
	assert.Equal(t, 1, buf.Channels)
	assert.InDelta(t, 0.1, buf.Duration, 1e-9)
	require.Len(t, buf.Samples, len(want))
	for i := range want {
		assert.InDelta(t, want[i], buf.Samples[i], 1e-3, "sample %d", i)
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		src  Source
	}{
		{"empty", Source{MIME: "audio/wav"}},
		{"truncated wav", Source{Data: []byte("RIFF\x00\x00\x00\x00WAVE")}},
		{"not audio", Source{MIME: "text/plain", Data: []byte("these are lyrics, not audio")}},
		{"bad flac", Source{Data: []byte("fLaC\x00\x01")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := Decode(context.Background(), tt.src)
			assert.Nil(t, buf)
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}

func TestSniff(t *testing.T) {
	tests := []struct {
		data []byte
		mime string
		want format
	}{
		{[]byte("RIFF\x24\x00\x00\x00WAVEfmt "), "", formatWAV},
		{[]byte("fLaC\x00\x00\x00\x22"), "", formatFLAC},
		{[]byte("ID3\x04\x00"), "", formatMP3},
		{[]byte{0xFF, 0xFB, 0x90, 0x00}, "", formatMP3},
		{[]byte("OggS\x00\x02........OpusHead\x01\x02"), "", formatOpus},
		{[]byte("OggS\x00\x02vorbis"), "audio/ogg", formatUnknown},
		{[]byte("junk"), "audio/mpeg", formatMP3},
		{[]byte("junk"), "", formatUnknown},
	}
	for _, tt := range tests {
		got := sniff(Source{Data: tt.data, MIME: tt.mime})
		assert.Equal(t, tt.want, got, "sniff(%q)", tt.data)
	}
}

func TestOpusChannels(t *testing.T) {
	head := []byte("OggS....OpusHead\x01\x02\x38\x01")
	assert.Equal(t, 2, opusChannels(head))
	assert.Equal(t, 0, opusChannels([]byte("OggS")))
}

func TestDataURIRoundTrip(t *testing.T) {
	src := Source{MIME: "audio/flac", Data: []byte{0, 1, 2, 253, 254, 255}}
	uri := src.DataURI()
	assert.Equal(t, "data:audio/flac;base64,AAEC/f7/", uri)

	got, err := ParseDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, src.MIME, got.MIME)
	assert.Equal(t, src.Data, got.Data)
}

func TestParseDataURIErrors(t *testing.T) {
	for _, uri := range []string{
		"audio/wav;base64,AAAA",
		"data:audio/wav;base64",
		"data:audio/wav,plain",
		"data:audio/wav;base64,@@@",
	} {
		_, err := ParseDataURI(uri)
		assert.Error(t, err, uri)
	}
}

func TestBufferSlice(t *testing.T) {
	buf, err := newBuffer(make([]float32, 100), 10, 1)
	require.NoError(t, err)
	assert.Equal(t, 10.0, buf.Duration)
	assert.Len(t, buf.Slice(1, 2.5), 15)
	assert.Len(t, buf.Slice(9, 20), 10)
	assert.Nil(t, buf.Slice(3, 2))
	assert.Equal(t, 0, buf.Index(-1))
}

func TestSamplesBytesRoundTrip(t *testing.T) {
	original := []float32{0, 0.5, -0.5, 0.999, -1}
	got := BytesToSamples(SamplesToBytes(original))
	require.Len(t, got, len(original))
	for i := range original {
		assert.InDelta(t, original[i], got[i], 1e-4)
	}
	assert.Len(t, BytesToSamples([]byte{1, 2, 3}), 1)
}
