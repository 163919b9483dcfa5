package scheduling

import (
	"fmt"

	"github.com/akademik-fk/curriculum-api/internal/models"
)

// Action is an input to the confirmation state machine.
type Action string

const (
	// ActionConfirmAvailable is the lecturer accepting the assignment.
	ActionConfirmAvailable Action = "CONFIRM_AVAILABLE"
	// ActionConfirmUnavailable is the lecturer declining; it releases
	// the lecturer dimension for new bookings and signals that a
	// replacement is needed.
	ActionConfirmUnavailable Action = "CONFIRM_UNAVAILABLE"
	// ActionRequestReschedule parks the assignment until an
	// administrator reschedules the entry or rejects the request.
	ActionRequestReschedule Action = "REQUEST_RESCHEDULE"
	// ActionRejectReschedule is the administrator declining a
	// reschedule request, reopening the confirmation.
	ActionRejectReschedule Action = "REJECT_RESCHEDULE"
	// ActionReset reopens every confirmation after the entry itself is
	// edited (date, time, room or group changed).
	ActionReset Action = "RESET"
)

// Effects are the observable side effects a transition asks its caller
// to perform; the machine itself stays pure.
type Effects struct {
	RemoveFromRoster  bool
	RestoreToRoster   bool
	ReplacementNeeded bool
	RescheduleRaised  bool
}

// TransitionError reports an action not permitted from a state.
type TransitionError struct {
	From   models.ConfirmationStatus
	Action Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("confirmation action %s not allowed from status %s", e.Action, e.From)
}

// Transition computes the next confirmation status for an action.
// Available and Unavailable are terminal within one confirmation cycle;
// only an entry edit (reset) reopens them.
func Transition(from models.ConfirmationStatus, action Action) (models.ConfirmationStatus, Effects, error) {
	if action == ActionReset {
		return models.StatusNotConfirmed, Effects{RestoreToRoster: true}, nil
	}

	switch from {
	case models.StatusNotConfirmed:
		switch action {
		case ActionConfirmAvailable:
			return models.StatusAvailable, Effects{RestoreToRoster: true}, nil
		case ActionConfirmUnavailable:
			return models.StatusUnavailable, Effects{RemoveFromRoster: true, ReplacementNeeded: true}, nil
		case ActionRequestReschedule:
			return models.StatusRescheduleWaiting, Effects{RescheduleRaised: true}, nil
		}
	case models.StatusRescheduleWaiting:
		if action == ActionRejectReschedule {
			return models.StatusNotConfirmed, Effects{}, nil
		}
	}

	return from, Effects{}, &TransitionError{From: from, Action: action}
}
