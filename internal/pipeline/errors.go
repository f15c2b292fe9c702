package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrAlignment means the alignment stage failed or broke its contract.
	ErrAlignment = errors.New("alignment failed")

	// ErrScoring means the scoring collaborator itself failed.
	ErrScoring = errors.New("scoring failed")

	// ErrValidation means the scoring output did not match the alignment.
	ErrValidation = errors.New("scoring output invalid")

	// ErrSuperseded means a newer run was started before this one finished;
	// its result was discarded.
	ErrSuperseded = errors.New("run superseded")
)

// Stage names a pipeline step.
type Stage string

const (
	StageAlign Stage = "align"
	StageScore Stage = "score"
	StageApply Stage = "apply"
)

// StageError ties a failure to the run and stage that produced it.
// Kind is one of the package sentinels; Err is the underlying cause, if any.
type StageError struct {
	Seq   uint64
	Stage Stage
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("run %d: %v", e.Seq, e.Kind)
	}
	return fmt.Sprintf("run %d: %v: %v", e.Seq, e.Kind, e.Err)
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func stageErr(seq uint64, stage Stage, kind, err error) *StageError {
	return &StageError{Seq: seq, Stage: stage, Kind: kind, Err: err}
}

var errNoLyrics = errors.New("lyrics contain no words")
