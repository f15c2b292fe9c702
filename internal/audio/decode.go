package audio

import (
	"bytes"
	"context"
	"fmt"
)

type format int

const (
	formatUnknown format = iota
	formatWAV
	formatFLAC
	formatMP3
	formatOpus
)

func (f format) String() string {
	switch f {
	case formatWAV:
		return "wav"
	case formatFLAC:
		return "flac"
	case formatMP3:
		return "mp3"
	case formatOpus:
		return "opus"
	}
	return "unknown"
}

// sniff identifies the container from magic bytes, using the MIME type only
// to break ties for headerless MP3 streams.
func sniff(src Source) format {
	d := src.Data
	switch {
	case len(d) >= 12 && bytes.Equal(d[0:4], []byte("RIFF")) && bytes.Equal(d[8:12], []byte("WAVE")):
		return formatWAV
	case bytes.HasPrefix(d, []byte("fLaC")):
		return formatFLAC
	case bytes.HasPrefix(d, []byte("OggS")) && bytes.Contains(d[:min(len(d), 512)], []byte("OpusHead")):
		return formatOpus
	case bytes.HasPrefix(d, []byte("ID3")):
		return formatMP3
	case len(d) >= 2 && d[0] == 0xFF && d[1]&0xE0 == 0xE0:
		return formatMP3
	case src.MIME == "audio/mpeg" || src.MIME == "audio/mp3":
		return formatMP3
	}
	return formatUnknown
}

// Decode turns a source into PCM. WAV, FLAC, MP3 and Ogg Opus are decoded
// in-process; anything else goes through ffmpeg when it is installed.
func Decode(ctx context.Context, src Source) (*Buffer, error) {
	if len(src.Data) == 0 {
		return nil, fmt.Errorf("%w: empty source", ErrDecode)
	}

	var (
		buf *Buffer
		err error
	)
	switch f := sniff(src); f {
	case formatWAV:
		buf, err = decodeWAV(src.Data)
	case formatFLAC:
		buf, err = decodeFLAC(src.Data)
	case formatMP3:
		buf, err = decodeMP3(src.Data)
	case formatOpus:
		buf, err = decodeOpus(src.Data)
	default:
		if !FFmpegAvailable() {
			return nil, fmt.Errorf("%w (%s)", ErrUnsupported, src.MIME)
		}
		buf, err = decodeFFmpeg(ctx, src.Data)
	}
	if err != nil {
		return nil, err
	}
	return buf, nil
}
