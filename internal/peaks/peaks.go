// Package peaks reduces decoded audio to per-column min/max pairs for
// waveform rendering.
package peaks

// Peak is the sample range covered by one rendered column.
type Peak struct {
	Min float32
	Max float32
}

// Energy is the vertical span of a column, used for colour ramps.
func (p Peak) Energy() float32 {
	return p.Max - p.Min
}

// Extract divides samples into columns contiguous chunks and reports the
// min and max of each. Chunks are ceil(len/columns) samples wide, so the last
// populated chunk may be shorter and every sample lands in exactly one column.
// Columns past the end of the buffer report (0, 0). Extract never mutates
// samples and may be called repeatedly with different column counts.
func Extract(samples []float32, columns int) []Peak {
	if columns <= 0 {
		return nil
	}
	out := make([]Peak, columns)
	if len(samples) == 0 {
		return out
	}

	step := (len(samples) + columns - 1) / columns
	for i := range out {
		start := i * step
		if start >= len(samples) {
			break
		}
		end := min(start+step, len(samples))

		lo, hi := samples[start], samples[start]
		for _, s := range samples[start+1 : end] {
			if s < lo {
				lo = s
			}
			if s > hi {
				hi = s
			}
		}
		out[i] = Peak{Min: lo, Max: hi}
	}
	return out
}

// Rows lays peaks out as a height x len(ps) occupancy grid, row 0 on top.
// Amplitudes are expected in [-1, 1]; a column is filled on every row whose
// centre lies within [Min, Max]. The centre row is always
// filled so silence still draws a baseline.
func Rows(ps []Peak, height int) [][]bool {
	if height <= 0 {
		return nil
	}
	grid := make([][]bool, height)
	for r := range grid {
		grid[r] = make([]bool, len(ps))
	}
	mid := height / 2
	for c, p := range ps {
		for r := 0; r < height; r++ {
			// amplitude at the centre of row r, top = +1
			amp := 1 - (float32(r)+0.5)*2/float32(height)
			if amp >= p.Min && amp <= p.Max {
				grid[r][c] = true
			}
		}
		grid[mid][c] = true
	}
	return grid
}
