// Package playhead maps between playback progress and waveform columns.
package playhead

import (
	"math"

	"github.com/jwulff/incision/internal/playback"
)

// Column returns the waveform column under the playhead for progress in
// [0,1]. Out-of-range progress is clamped. The result is in [0, width-1], or
// 0 when width is not positive.
func Column(progress float64, width int) int {
	if width <= 0 {
		return 0
	}
	if math.IsNaN(progress) {
		progress = 0
	}
	progress = max(0, min(1, progress))
	return min(int(progress*float64(width)), width-1)
}

// Fraction normalizes a pointer column to [0,1].
func Fraction(column, width int) float64 {
	if width <= 1 {
		return 0
	}
	return max(0, min(1, float64(column)/float64(width-1)))
}

// Seeker is the part of the clock a Binder drives.
type Seeker interface {
	Seek(fraction float64) error
}

// Binder ties a waveform of Width columns to a clock.
type Binder struct {
	Clock Seeker
	Width int
}

// SeekColumn seeks to the position under column.
func (b Binder) SeekColumn(column int) error {
	return b.Clock.Seek(Fraction(column, b.Width))
}

// Playhead returns the column to draw for p.
func (b Binder) Playhead(p playback.Position) int {
	return Column(p.Progress, b.Width)
}
