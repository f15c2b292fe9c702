package pipeline

import (
	"fmt"
	"strings"
)

// validateAlignment checks the alignment contract: one entry per lyric word,
// in lyric order, with sane and non-decreasing times.
func validateAlignment(lyricWords []string, words []AlignedWord) error {
	if len(words) == 0 {
		return fmt.Errorf("no words aligned for %d lyric words", len(lyricWords))
	}
	if len(words) != len(lyricWords) {
		return fmt.Errorf("aligned %d words, lyrics have %d", len(words), len(lyricWords))
	}

	lastStart := 0.0
	for i, w := range words {
		if w.Word != lyricWords[i] {
			return fmt.Errorf("word %d is %q, lyrics say %q", i, w.Word, lyricWords[i])
		}
		if w.StartTime < 0 {
			return fmt.Errorf("word %d %q starts at negative time %.3f", i, w.Word, w.StartTime)
		}
		if w.EndTime < w.StartTime {
			return fmt.Errorf("word %d %q ends (%.3f) before it starts (%.3f)", i, w.Word, w.EndTime, w.StartTime)
		}
		if w.StartTime < lastStart {
			return fmt.Errorf("word %d %q starts at %.3f, before previous start %.3f", i, w.Word, w.StartTime, lastStart)
		}
		lastStart = w.StartTime
	}
	return nil
}

// validateScores checks the scoring output lines up with the alignment.
func validateScores(aligned []AlignedWord, scored []ScoredWord) error {
	if len(scored) == 0 && len(aligned) > 0 {
		return fmt.Errorf("scorer returned no words for %d aligned words", len(aligned))
	}
	if len(scored) != len(aligned) {
		return fmt.Errorf("scorer returned %d words for %d aligned words", len(scored), len(aligned))
	}
	for i, s := range scored {
		if s.ConfidenceScore < 0 || s.ConfidenceScore > 100 {
			return fmt.Errorf("word %d %q has score %.2f outside [0,100]", i, s.Word, s.ConfidenceScore)
		}
		if s.Word != "" && !strings.EqualFold(s.Word, aligned[i].Word) {
			return fmt.Errorf("score %d is for %q, aligned word is %q", i, s.Word, aligned[i].Word)
		}
	}
	return nil
}
