package pipeline

import (
	"errors"
	"fmt"
)

// Phase is where a Session is in the discovery → enrichment sequence.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseDiscovering Phase = "discovering"
	PhaseDiscovered  Phase = "discovered"
	PhaseEnriching   Phase = "enriching"
	PhaseEnriched    Phase = "enriched"
	PhaseError       Phase = "error"
)

// Busy reports whether an operation is in flight.
func (p Phase) Busy() bool {
	return p == PhaseDiscovering || p == PhaseEnriching
}

// Op names a session operation in transition errors.
type Op string

const (
	OpSubmit Op = "submit"
	OpEnrich Op = "enrich"
)

// ErrInvalidTransition is matched by every *TransitionError.
var ErrInvalidTransition = errors.New("pipeline: invalid transition")

// ErrSuperseded is returned by an operation whose session was reset while
// it was running. Its results are discarded.
var ErrSuperseded = errors.New("pipeline: operation superseded by reset")

// TransitionError reports an operation that is not allowed in the current
// phase.
type TransitionError struct {
	From Phase
	Op   Op
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("pipeline: cannot %s while %s", e.Op, e.From)
}

// Is matches ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// allowed lists the phases each operation may start from.
var allowed = map[Op][]Phase{
	OpSubmit: {PhaseIdle, PhaseError},
	OpEnrich: {PhaseDiscovered},
}

func canStart(op Op, from Phase) bool {
	for _, p := range allowed[op] {
		if p == from {
			return true
		}
	}
	return false
}
