// Package eqprofile asks a local LLM for a vocal EQ and processing chain
// matching a described production context.
package eqprofile

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidProfile is returned when the model's answer does not validate.
var ErrInvalidProfile = errors.New("invalid eq profile")

// Band is one EQ band.
type Band struct {
	Type      string   `json:"type"`
	Frequency float64  `json:"frequency"`
	Gain      float64  `json:"gain"`
	Q         *float64 `json:"q,omitempty"`
}

// Compressor holds dynamics settings.
type Compressor struct {
	Threshold  float64 `json:"threshold"`
	Ratio      string  `json:"ratio"`
	Attack     float64 `json:"attack"`
	Release    float64 `json:"release"`
	MakeupGain float64 `json:"makeupGain"`
}

// Reverb holds space settings.
type Reverb struct {
	Type      string   `json:"type"`
	DryWet    float64  `json:"dryWet"`
	DecayTime float64  `json:"decayTime"`
	PreDelay  *float64 `json:"preDelay,omitempty"`
}

// Profile is a recommended processing chain for a lead vocal.
type Profile struct {
	Bands      []Band      `json:"recommendedEqProfile"`
	Compressor *Compressor `json:"compressorSettings,omitempty"`
	Reverb     *Reverb     `json:"reverbSettings,omitempty"`
	Notes      string      `json:"otherProcessingNotes,omitempty"`
}

var (
	bandTypes   = []string{"lowcut", "highshelf", "peak", "lowshelf", "highcut"}
	reverbTypes = []string{"hall", "room", "plate", "spring", "gated", "delay"}
)

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Validate checks band and reverb types and value ranges.
func (p Profile) Validate() error {
	if len(p.Bands) == 0 {
		return fmt.Errorf("%w: no eq bands", ErrInvalidProfile)
	}
	for i, b := range p.Bands {
		if !oneOf(b.Type, bandTypes) {
			return fmt.Errorf("%w: band %d type %q", ErrInvalidProfile, i, b.Type)
		}
		if b.Frequency <= 0 || b.Frequency > 24000 {
			return fmt.Errorf("%w: band %d frequency %v", ErrInvalidProfile, i, b.Frequency)
		}
		if b.Q != nil && *b.Q <= 0 {
			return fmt.Errorf("%w: band %d q %v", ErrInvalidProfile, i, *b.Q)
		}
	}
	if c := p.Compressor; c != nil {
		if !strings.Contains(c.Ratio, ":") {
			return fmt.Errorf("%w: compressor ratio %q", ErrInvalidProfile, c.Ratio)
		}
		if c.Attack < 0 || c.Release < 0 {
			return fmt.Errorf("%w: negative compressor timing", ErrInvalidProfile)
		}
	}
	if r := p.Reverb; r != nil {
		if !oneOf(r.Type, reverbTypes) {
			return fmt.Errorf("%w: reverb type %q", ErrInvalidProfile, r.Type)
		}
		if r.DryWet < 0 || r.DryWet > 100 {
			return fmt.Errorf("%w: reverb dry/wet %v", ErrInvalidProfile, r.DryWet)
		}
		if r.DecayTime < 0 {
			return fmt.Errorf("%w: reverb decay %v", ErrInvalidProfile, r.DecayTime)
		}
	}
	return nil
}

// Summary renders the profile as short text lines.
func (p Profile) Summary() []string {
	var lines []string
	for _, b := range p.Bands {
		line := fmt.Sprintf("%-9s %7.0f Hz %+5.1f dB", b.Type, b.Frequency, b.Gain)
		if b.Q != nil {
			line += fmt.Sprintf(" Q %.2f", *b.Q)
		}
		lines = append(lines, line)
	}
	if c := p.Compressor; c != nil {
		lines = append(lines, fmt.Sprintf("comp      %.0f dB %s %.0f/%.0f ms +%.1f dB",
			c.Threshold, c.Ratio, c.Attack, c.Release, c.MakeupGain))
	}
	if r := p.Reverb; r != nil {
		lines = append(lines, fmt.Sprintf("%-9s %.0f%% wet %.1fs", r.Type, r.DryWet, r.DecayTime))
	}
	if p.Notes != "" {
		lines = append(lines, p.Notes)
	}
	return lines
}
