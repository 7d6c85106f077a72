package services

import (
	"fmt"
	"regexp"
)

// Flow names.
const (
	FlowRegistration  = "registration"
	FlowLogin         = "login"
	FlowPasswordReset = "password_reset"
	FlowCheckout      = "checkout"
	FlowAppointment   = "appointment"
	FlowDiagnostics   = "diagnostics"
	FlowSearch        = "search"
	FlowTrack         = "track"
)

// FlowStep describes one ordered step of a flow. ExpectsDigits marks steps
// whose free-form input can be purely numeric, so a bare-digit reply is fed
// to the step instead of being consumed as a pagination selection.
type FlowStep struct {
	Name          string
	ExpectsDigits bool
}

// flowSteps is the ordered step table for every flow. Selection steps
// (choose_specialty, choose_doctor, choose_test) leave digits to the
// pagination cursor on purpose: picking from the rendered list is how those
// steps are answered.
var flowSteps = map[string][]FlowStep{
	FlowRegistration: {
		{Name: "collect_name"},
		{Name: "collect_email"},
		{Name: "collect_password", ExpectsDigits: true},
		{Name: "verify_otp", ExpectsDigits: true},
	},
	FlowLogin: {
		{Name: "collect_email"},
		{Name: "collect_password", ExpectsDigits: true},
	},
	FlowPasswordReset: {
		{Name: "collect_email"},
	},
	FlowCheckout: {
		{Name: "collect_address", ExpectsDigits: true},
		{Name: "choose_payment", ExpectsDigits: true},
		{Name: "confirm"},
	},
	FlowAppointment: {
		{Name: "choose_specialty"},
		{Name: "choose_doctor"},
		{Name: "choose_time", ExpectsDigits: true},
		{Name: "confirm"},
	},
	FlowDiagnostics: {
		{Name: "choose_test"},
		{Name: "choose_time", ExpectsDigits: true},
		{Name: "confirm"},
	},
	FlowSearch: {
		{Name: "collect_query"},
	},
	FlowTrack: {
		{Name: "collect_ref", ExpectsDigits: true},
	},
}

// StepExpectsDigits reports whether the given flow step reads free-form
// numeric input. Unknown flows and steps do not.
func StepExpectsDigits(flow, step string) bool {
	for _, s := range flowSteps[flow] {
		if s.Name == step {
			return s.ExpectsDigits
		}
	}
	return false
}

// NextStep returns the step after the named one, or "" at the end.
func NextStep(flow, step string) string {
	steps := flowSteps[flow]
	for i, s := range steps {
		if s.Name == step && i+1 < len(steps) {
			return steps[i+1].Name
		}
	}
	return ""
}

var (
	otpCodePattern   = regexp.MustCompile(`^\d{4}$`)
	otpResendPhrases = map[string]bool{"resend": true, "retry": true, "send again": true}
)

// ResolveFlow pre-empts classification when a flow is in progress. Two
// global interrupts win over the active flow no matter what it is: a
// 4-digit reply while an OTP is pending is always the code, and
// resend/retry/send again while the same flag is set always asks for a new
// one. Everything else synthesizes <flow>_step_<step> at full confidence.
func ResolveFlow(data *SessionData, text string) (IntentResult, bool) {
	msg := normalizeText(text)

	if data.WaitingForOTP {
		if otpCodePattern.MatchString(msg) {
			return IntentResult{Intent: IntentVerifyOTP, Confidence: 1.0, Parameters: map[string]string{"code": msg}}, true
		}
		if otpResendPhrases[msg] {
			return IntentResult{Intent: IntentResendOTP, Confidence: 1.0}, true
		}
	}

	if data.Flow != "" && data.Step != "" {
		return IntentResult{
			Intent:     fmt.Sprintf("%s_step_%s", data.Flow, data.Step),
			Confidence: 1.0,
		}, true
	}

	return IntentResult{}, false
}
