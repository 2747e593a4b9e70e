package failover

import (
	"fmt"
	"time"
)

// StepError is the first step that failed in a run
type StepError struct {
	Step int
	Name string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Name, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// AssertionError is an observed state that differs from the expected one
type AssertionError struct {
	What     string
	Expected interface{}
	Actual   interface{}
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %v, got %v", e.What, e.Expected, e.Actual)
}

func assertEqual(what string, expected, actual interface{}) error {
	if expected != actual {
		return &AssertionError{What: what, Expected: expected, Actual: actual}
	}
	return nil
}

// SignalOutcome is how the asynchronous signal of step 5 ended
type SignalOutcome int

const (
	// SignalNotSent means the run stopped before step 5
	SignalNotSent SignalOutcome = iota
	// SignalDelivered means the Kie Server accepted the signal
	SignalDelivered
	// SignalRemoteUnavailable means the Kie Server answered with an error
	// or dropped the connection, as expected while its pods are deleted
	SignalRemoteUnavailable
	// SignalFailed means the call failed before reaching the Kie Server
	SignalFailed
	// SignalInFlight means the call had not returned when the run ended
	SignalInFlight
)

func (o SignalOutcome) String() string {
	switch o {
	case SignalNotSent:
		return "not sent"
	case SignalDelivered:
		return "delivered"
	case SignalRemoteUnavailable:
		return "remote unavailable"
	case SignalFailed:
		return "failed"
	case SignalInFlight:
		return "in flight"
	default:
		return fmt.Sprintf("SignalOutcome(%d)", int(o))
	}
}

// SignalResult is the outcome of the asynchronous signal with its error, if any
type SignalResult struct {
	Outcome SignalOutcome
	Err     error
}

// StepResult records one executed step
type StepResult struct {
	Step     int
	Name     string
	Duration time.Duration
	Err      error
}

// Result is the record of a run
type Result struct {
	Steps  []StepResult
	Signal SignalResult
}

// Passed reports whether every step ran and succeeded
func (r *Result) Passed() bool {
	if len(r.Steps) != len(Steps) {
		return false
	}
	for _, s := range r.Steps {
		if s.Err != nil {
			return false
		}
	}
	return true
}
