package watcher

import (
	"errors"
	"fmt"
)

type Stage string

const (
	StagePoll   Stage = "poll"
	StageFormat Stage = "format"
	StageNotify Stage = "notify"
	// StagePanic marks an iteration that panicked; Err carries the value.
	StagePanic Stage = "panic"
)

// StageError tags an iteration failure with the step that produced it.
type StageError struct {
	Stage Stage
	Err   error
	// Stack is set for StagePanic.
	Stack string
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// StageOf reports the stage of err, or "" when err is untagged.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// cause strips the stage tag, leaving the text a human should see.
func cause(err error) error {
	var se *StageError
	if errors.As(err, &se) && se.Err != nil {
		return se.Err
	}
	return err
}

var errNoResult = errors.New("review api returned no result")
