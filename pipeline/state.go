package pipeline

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of an Orchestrator.
type State string

const (
	StateNew     State = "NEW"
	StateRunning State = "RUNNING"
	StatePaused  State = "PAUSED"
	StateStopped State = "STOPPED"
)

var (
	// ErrStopped is returned by lifecycle calls after Shutdown.
	ErrStopped = errors.New("pipeline stopped")
	// ErrCameraNotFound is returned by System lookups for unknown cameras.
	ErrCameraNotFound = errors.New("camera not found")
)

// InvalidTransitionError is returned when a lifecycle call does not apply to the
// current state, e.g. Resume on a running pipeline.
type InvalidTransitionError struct {
	From   State
	Action string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a pipeline in state %s", e.Action, e.From)
}

func IsInvalidTransitionError(err error) bool {
	var transitionErr *InvalidTransitionError
	return errors.As(err, &transitionErr)
}
