// Package registration models the sign-up wizard as an explicit finite
// state machine. The current step is persisted on the user record; every
// transition is validated against the step the caller claims to be
// completing.
package registration

import (
	dErrors "kycvault/pkg/domain-errors"
)

// Step is one stage of the registration wizard.
type Step string

const (
	StepDetails   Step = "details"
	StepMobileOTP Step = "mobile_otp"
	StepAadhaar   Step = "aadhaar"
	StepOTP       Step = "otp"
	StepComplete  Step = "complete"
)

// transitions is the only legal path through the wizard. Completion is
// terminal.
var transitions = map[Step]Step{
	StepDetails:   StepMobileOTP,
	StepMobileOTP: StepAadhaar,
	StepAadhaar:   StepOTP,
	StepOTP:       StepComplete,
}

var validSteps = map[Step]bool{
	StepDetails:   true,
	StepMobileOTP: true,
	StepAadhaar:   true,
	StepOTP:       true,
	StepComplete:  true,
}

// ParseStep validates an externally supplied step name.
func ParseStep(s string) (Step, error) {
	step := Step(s)
	if !validSteps[step] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown registration step: "+s)
	}
	return step, nil
}

// Wizard is the registration flow state. The zero value is not valid;
// use Start.
type Wizard struct {
	Step Step
}

// Start begins a new registration flow at the details step.
func Start() Wizard {
	return Wizard{Step: StepDetails}
}

// Done reports whether the flow has reached its terminal step.
func (w Wizard) Done() bool {
	return w.Step == StepComplete
}

// Advance moves the wizard forward one step. The caller states the step
// it believes it is completing; a mismatch with the actual state is an
// invalid-state error, which catches duplicated or out-of-order
// submissions.
func (w Wizard) Advance(completing Step) (Wizard, error) {
	if w.Done() {
		return w, dErrors.New(dErrors.CodeInvalidState, "registration is already complete")
	}
	if completing != w.Step {
		return w, dErrors.New(dErrors.CodeInvalidState,
			"cannot complete step "+string(completing)+" while on step "+string(w.Step))
	}
	return Wizard{Step: transitions[w.Step]}, nil
}

// Restart returns the flow to the first step, used when a user abandons
// verification and begins again.
func (w Wizard) Restart() Wizard {
	return Start()
}
