package ledger

import (
	"github.com/qmuntal/stateless"
)

// State is a step of the draft lifecycle.
type State string

const (
	StateEmpty      State = "empty"
	StateEditing    State = "editing"
	StateSubmitting State = "submitting"
	StateSubmitted  State = "submitted"
	StateCancelled  State = "cancelled"
)

// Terminal reports whether no further edits can happen in s.
func (s State) Terminal() bool {
	return s == StateSubmitted || s == StateCancelled
}

const (
	triggerOpen    = "open"
	triggerEdit    = "edit"
	triggerSubmit  = "submit"
	triggerSucceed = "succeed"
	triggerFail    = "fail"
	triggerCancel  = "cancel"
)

// newLifecycle wires Empty -> Editing -> {Cancelled | Submitted}. Submitting
// sits between Editing and Submitted and falls back to Editing on failure.
func newLifecycle() *stateless.StateMachine {
	machine := stateless.NewStateMachine(StateEmpty)

	machine.Configure(StateEmpty).
		Permit(triggerOpen, StateEditing)

	machine.Configure(StateEditing).
		PermitReentry(triggerEdit).
		Permit(triggerSubmit, StateSubmitting).
		Permit(triggerCancel, StateCancelled)

	machine.Configure(StateSubmitting).
		Permit(triggerSucceed, StateSubmitted).
		Permit(triggerFail, StateEditing)

	machine.Configure(StateSubmitted)
	machine.Configure(StateCancelled)

	return machine
}
