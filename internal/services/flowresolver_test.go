package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFlowSynthesizesStepIntent(t *testing.T) {
	data := &SessionData{Flow: FlowRegistration, Step: "collect_email"}

	result, ok := ResolveFlow(data, "jane@example.com")
	require.True(t, ok)
	assert.Equal(t, "registration_step_collect_email", result.Intent)
	assert.Equal(t, 1.0, result.Confidence)
}

func TestResolveFlowNoActiveFlow(t *testing.T) {
	_, ok := ResolveFlow(&SessionData{}, "hello")
	assert.False(t, ok)
}

func TestOTPInterruptBeatsAnyFlow(t *testing.T) {
	// A 4-digit reply while an OTP is pending is always the code, whatever
	// flow is active
	for _, flow := range []string{FlowRegistration, FlowCheckout, FlowAppointment, ""} {
		data := &SessionData{Flow: flow, Step: "confirm", WaitingForOTP: true}
		result, ok := ResolveFlow(data, "1234")
		require.True(t, ok, "flow %q", flow)
		assert.Equal(t, IntentVerifyOTP, result.Intent)
		assert.Equal(t, 1.0, result.Confidence)
		assert.Equal(t, "1234", result.Parameters["code"])
	}
}

func TestOTPInterruptRequiresPendingOTP(t *testing.T) {
	// Without the pending flag, 4 digits go to the active step as usual
	data := &SessionData{Flow: FlowTrack, Step: "collect_ref"}
	result, ok := ResolveFlow(data, "1234")
	require.True(t, ok)
	assert.Equal(t, "track_step_collect_ref", result.Intent)
}

func TestOTPInterruptShapes(t *testing.T) {
	data := &SessionData{WaitingForOTP: true}

	// Only exactly 4 digits count as a code
	for _, text := range []string{"123", "12345", "12a4", "code 1234"} {
		result, ok := ResolveFlow(data, text)
		if ok {
			assert.NotEqual(t, IntentVerifyOTP, result.Intent, "text %q", text)
		}
	}

	// Whitespace and case are tolerated
	result, ok := ResolveFlow(data, "  1234  ")
	require.True(t, ok)
	assert.Equal(t, IntentVerifyOTP, result.Intent)
}

func TestResendInterrupt(t *testing.T) {
	data := &SessionData{Flow: FlowRegistration, Step: "verify_otp", WaitingForOTP: true}

	for _, text := range []string{"resend", "retry", "Send Again"} {
		result, ok := ResolveFlow(data, text)
		require.True(t, ok, "text %q", text)
		assert.Equal(t, IntentResendOTP, result.Intent, "text %q", text)
	}

	// Not an interrupt once the flag clears
	data.WaitingForOTP = false
	result, _ := ResolveFlow(data, "resend")
	assert.NotEqual(t, IntentResendOTP, result.Intent)
}

func TestStepExpectsDigits(t *testing.T) {
	assert.True(t, StepExpectsDigits(FlowRegistration, "verify_otp"))
	assert.True(t, StepExpectsDigits(FlowCheckout, "collect_address"))
	assert.True(t, StepExpectsDigits(FlowTrack, "collect_ref"))

	// Selection steps leave digits to the pagination cursor
	assert.False(t, StepExpectsDigits(FlowAppointment, "choose_specialty"))
	assert.False(t, StepExpectsDigits(FlowAppointment, "choose_doctor"))
	assert.False(t, StepExpectsDigits(FlowDiagnostics, "choose_test"))

	assert.False(t, StepExpectsDigits("", ""))
	assert.False(t, StepExpectsDigits("nonsense", "step"))
}

func TestNextStep(t *testing.T) {
	assert.Equal(t, "collect_email", NextStep(FlowRegistration, "collect_name"))
	assert.Equal(t, "choose_payment", NextStep(FlowCheckout, "collect_address"))
	assert.Empty(t, NextStep(FlowCheckout, "confirm"))
	assert.Empty(t, NextStep("nonsense", "step"))
}
