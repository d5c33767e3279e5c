package pipeline

import (
	"errors"
	"fmt"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// ErrIllegalTransition is an orchestrator bug, surfaced as a run fault.
var ErrIllegalTransition = errors.New("illegal state transition")

var transitions = map[constants.RunState][]constants.RunState{
	constants.StateIngesting:           {constants.StateIngested, constants.StateIngestFailed},
	constants.StateIngested:            {constants.StateExtracting},
	constants.StateExtracting:          {constants.StateExtracted},
	constants.StateExtracted:           {constants.StateAwaitingHumanReview},
	constants.StateAwaitingHumanReview: {constants.StateReviewing},
	constants.StateReviewing:           {constants.StateValidating},
	constants.StateValidating:          {constants.StateValidated},
	constants.StateValidated:           {constants.StateDeciding},
	constants.StateDeciding:            {constants.StateDecided},
	constants.StateDecided:             {constants.StateWriting, constants.StateWriteSkipped},
	constants.StateWriting:             {constants.StateWritten, constants.StateWriteFailed},
}

// IsTerminal reports whether no further transition is possible.
func IsTerminal(s constants.RunState) bool {
	switch s {
	case constants.StateIngestFailed, constants.StateWritten, constants.StateWriteFailed, constants.StateWriteSkipped, constants.StateFaulted:
		return true
	default:
		return false
	}
}

func isAllowedTransition(from, to constants.RunState) bool {
	if to == constants.StateFaulted {
		return !IsTerminal(from)
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// advance moves run to the next state if the table allows it.
func advance(run *entity.Run, to constants.RunState) error {
	if !isAllowedTransition(run.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, run.State, to)
	}
	run.State = to
	return nil
}
