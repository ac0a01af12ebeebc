package service

import (
	"errors"
	"fmt"

	"postsync/internal/core/domain"
)

// State is the lifecycle position of one workflow invocation.
type State string

const (
	StateNotStarted State = "not_started"
	StateStarted    State = "started"
	StatePolling    State = "polling"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateTimedOut   State = "timed_out"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateTimedOut:
		return true
	}
	return false
}

// Observation is an input to the state machine.
type Observation int

const (
	// ObservedStarted means a run ID is known, either freshly started or resumed.
	ObservedStarted Observation = iota
	ObservedPending
	ObservedSucceeded
	ObservedFailed
	// ObservedCancelled means the caller stopped waiting.
	ObservedCancelled
)

func (o Observation) String() string {
	switch o {
	case ObservedStarted:
		return "started"
	case ObservedPending:
		return "pending"
	case ObservedSucceeded:
		return "succeeded"
	case ObservedFailed:
		return "failed"
	case ObservedCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("observation(%d)", int(o))
}

// ErrInvalidTransition is returned for an observation the state cannot accept.
var ErrInvalidTransition = errors.New("invalid state transition")

// Observe classifies a provider run status.
func Observe(status domain.RunStatus) Observation {
	switch {
	case status.Succeeded():
		return ObservedSucceeded
	case status.Failed():
		return ObservedFailed
	default:
		return ObservedPending
	}
}

// Transition returns the state following obs. attempt is the 1-based number
// of the status check that produced obs; a pending observation on the last
// allowed attempt ends the workflow as timed out.
func Transition(s State, obs Observation, attempt, maxAttempts int) (State, error) {
	switch s {
	case StateNotStarted:
		if obs == ObservedStarted {
			return StateStarted, nil
		}
	case StateStarted, StatePolling:
		switch obs {
		case ObservedSucceeded:
			return StateSucceeded, nil
		case ObservedFailed:
			return StateFailed, nil
		case ObservedCancelled:
			return StateTimedOut, nil
		case ObservedPending:
			if attempt >= maxAttempts {
				return StateTimedOut, nil
			}
			return StatePolling, nil
		}
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, obs, s)
}
