// Package timeline holds the word tokens of the current analysis run and the
// operator-driven repair state machine over them.
package timeline

import "fmt"

// Status is the repair state of a word token.
type Status int

const (
	// StatusPending only exists while a token is being derived.
	StatusPending Status = iota
	StatusClean
	StatusWarn
	StatusGhost
	StatusFixed
)

func (s Status) String() string {
	switch s {
	case StatusClean:
		return "clean"
	case StatusWarn:
		return "warn"
	case StatusGhost:
		return "ghost"
	case StatusFixed:
		return "fixed"
	}
	return "pending"
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "clean":
		return StatusClean, nil
	case "warn":
		return StatusWarn, nil
	case "ghost":
		return StatusGhost, nil
	case "fixed":
		return StatusFixed, nil
	}
	return StatusPending, fmt.Errorf("unknown status %q", s)
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// WarnBelow is the clarity under which an unflagged word is marked warn.
const WarnBelow = 75.0

// Derive picks the initial status for a scored word. It is a pure function of
// its inputs.
func Derive(score float64, needsRepair bool) Status {
	switch {
	case needsRepair:
		return StatusGhost
	case score < WarnBelow:
		return StatusWarn
	default:
		return StatusClean
	}
}

// WordToken is one aligned lyric word with its clarity and repair state.
type WordToken struct {
	ID          string
	Text        string
	StartTime   float64
	EndTime     float64
	Score       float64
	Status      Status
	SectionName string
	GhostReason string
}

// TokenID formats the id of the i-th aligned word.
func TokenID(i int) string {
	return fmt.Sprintf("w_%d", i)
}

// Set is the ordered token collection produced by one analysis run.
type Set struct {
	RunSeq uint64
	Tokens []WordToken
}

// Len returns the number of tokens.
func (s Set) Len() int { return len(s.Tokens) }

// Clone deep-copies the set.
func (s Set) Clone() Set {
	out := Set{RunSeq: s.RunSeq}
	if s.Tokens != nil {
		out.Tokens = make([]WordToken, len(s.Tokens))
		copy(out.Tokens, s.Tokens)
	}
	return out
}

// At returns the token whose range contains the given time, if any.
func (s Set) At(seconds float64) (WordToken, bool) {
	for _, t := range s.Tokens {
		if seconds >= t.StartTime && seconds < t.EndTime {
			return t, true
		}
	}
	return WordToken{}, false
}

// Stats summarises a set.
type Stats struct {
	Total       int
	Clean       int
	Warn        int
	Ghost       int
	Fixed       int
	MeanClarity float64
}

// Stats counts tokens per status and averages their clarity.
func (s Set) Stats() Stats {
	var st Stats
	var sum float64
	for _, t := range s.Tokens {
		st.Total++
		sum += t.Score
		switch t.Status {
		case StatusClean:
			st.Clean++
		case StatusWarn:
			st.Warn++
		case StatusGhost:
			st.Ghost++
		case StatusFixed:
			st.Fixed++
		}
	}
	if st.Total > 0 {
		st.MeanClarity = sum / float64(st.Total)
	}
	return st
}
