package peaks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(i)
	}
	return s
}

func TestExtractEvenChunks(t *testing.T) {
	samples := ramp(1000)

	got := Extract(samples, 100)
	require.Len(t, got, 100)
	for i, p := range got {
		assert.Equal(t, float32(i*10), p.Min, "column %d min", i)
		assert.Equal(t, float32(i*10+9), p.Max, "column %d max", i)
	}
}

func TestExtractRepartition(t *testing.T) {
	samples := ramp(1000)
	first := Extract(samples, 100)

	got := Extract(samples, 250)
	require.Len(t, got, 250)
	assert.Equal(t, Peak{Min: 0, Max: 3}, got[0])
	assert.Equal(t, Peak{Min: 996, Max: 999}, got[249])

	// source buffer is untouched
	assert.Equal(t, first, Extract(samples, 100))
}

func TestExtractShortLastChunk(t *testing.T) {
	got := Extract(ramp(10), 4)
	require.Len(t, got, 4)
	assert.Equal(t, []Peak{{0, 2}, {3, 5}, {6, 8}, {9, 9}}, got)
}

func TestExtractCoversEverySample(t *testing.T) {
	samples := []float32{0, 0, 0, 0, 0, 0, 0, -0.9}
	got := Extract(samples, 3)
	assert.Equal(t, float32(-0.9), got[2].Min)
}

func TestExtractDegenerate(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
		columns int
		want    []Peak
	}{
		{"empty buffer", nil, 3, []Peak{{}, {}, {}}},
		{"zero columns", ramp(5), 0, nil},
		{"negative columns", ramp(5), -2, nil},
		{"fewer samples than columns", []float32{0.5, -0.5}, 4, []Peak{{0.5, 0.5}, {-0.5, -0.5}, {}, {}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.want, Extract(tt.samples, tt.columns))
			})
		})
	}
}

func TestEnergy(t *testing.T) {
	assert.InDelta(t, 1.5, Peak{Min: -0.5, Max: 1}.Energy(), 1e-6)
}

func TestRowsBaselineForSilence(t *testing.T) {
	grid := Rows([]Peak{{}, {}}, 5)
	require.Len(t, grid, 5)
	for r, row := range grid {
		for c, filled := range row {
			assert.Equal(t, r == 2, filled, "row %d col %d", r, c)
		}
	}
}

func TestRowsFullScale(t *testing.T) {
	grid := Rows([]Peak{{Min: -1, Max: 1}}, 4)
	for r := range grid {
		assert.True(t, grid[r][0], "row %d", r)
	}
	assert.Nil(t, Rows([]Peak{{}}, 0))
}
