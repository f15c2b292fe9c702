package analysis

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/jwulff/incision/internal/audio"
	"github.com/jwulff/incision/internal/pipeline"
)

// RepairBelow is the clarity under which a word is reported as needing
// repair.
const RepairBelow = 60.0

const (
	fftSize = 1024
	// loudness mapping range, dBFS
	floorDB = -50.0
	ceilDB  = -10.0
)

// SpectralScorer rates each word window by loudness and tonality. Voiced,
// present words are loud and harmonic; buried or smeared words are quiet or
// noise-like (spectrally flat).
type SpectralScorer struct {
	// Decode is used to turn the source into PCM; audio.Decode when nil.
	Decode func(context.Context, audio.Source) (*audio.Buffer, error)
}

// Score implements pipeline.Scorer.
func (s SpectralScorer) Score(ctx context.Context, _ string, src audio.Source, words []pipeline.AlignedWord) ([]pipeline.ScoredWord, error) {
	decode := s.Decode
	if decode == nil {
		decode = audio.Decode
	}
	buf, err := decode(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("score words: %w", err)
	}

	fft := fourier.NewFFT(fftSize)
	out := make([]pipeline.ScoredWord, len(words))
	for i, w := range words {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score := Clarity(fft, buf.Slice(w.StartTime, w.EndTime))
		out[i] = pipeline.ScoredWord{
			AlignedWord:     w,
			ConfidenceScore: score,
			NeedsRepair:     score < RepairBelow,
		}
	}
	return out, nil
}

// Clarity scores a window of samples in [0, 100]. An empty window scores 0.
func Clarity(fft *fourier.FFT, window []float32) float64 {
	if len(window) == 0 {
		return 0
	}
	loud := (RMSdB(window) - floorDB) / (ceilDB - floorDB)
	loud = math.Max(0, math.Min(1, loud))
	tonal := 1 - Flatness(fft, window)

	score := 100 * (0.6*loud + 0.4*tonal)
	return math.Round(math.Max(0, math.Min(100, score))*10) / 10
}

// RMSdB is the root-mean-square level of the window in dBFS.
func RMSdB(window []float32) float64 {
	var sum float64
	for _, v := range window {
		sum += float64(v) * float64(v)
	}
	rms := math.Sqrt(sum / float64(len(window)))
	if rms <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms)
}

// Flatness is the mean spectral flatness (Wiener entropy) of the window over
// consecutive fftSize frames: 1 for white noise, near 0 for a pure tone.
// Silence counts as flat.
func Flatness(fft *fourier.FFT, window []float32) float64 {
	n := fft.Len()
	frame := make([]float64, n)
	var coeffs []complex128

	var total float64
	var frames int
	for start := 0; start < len(window); start += n {
		end := min(start+n, len(window))
		for i := range frame {
			frame[i] = 0
			if start+i < end {
				// Hann window
				w := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
				frame[i] = float64(window[start+i]) * w
			}
		}
		coeffs = fft.Coefficients(coeffs, frame)

		var logSum, linSum, raw float64
		bins := len(coeffs) - 1
		for _, c := range coeffs[1:] {
			p := real(c)*real(c) + imag(c)*imag(c)
			raw += p
			logSum += math.Log(p + 1e-12)
			linSum += p + 1e-12
		}
		frames++
		if bins == 0 || raw == 0 {
			total++
			continue
		}
		total += math.Exp(logSum/float64(bins)) / (linSum / float64(bins))
	}
	if frames == 0 {
		return 1
	}
	return total / float64(frames)
}
