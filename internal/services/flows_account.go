package services

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/medlane-ng/medlane-backend/internal/models"
	"github.com/medlane-ng/medlane-backend/internal/storage"
	"github.com/medlane-ng/medlane-backend/internal/utils"
)

// handleFlowStep routes a synthesized <flow>_step_<step> intent into the
// right flow. A step handler either advances the flow, re-prompts on the
// same step, or completes it and performs the terminal side effect once.
func (e *Engine) handleFlowStep(t *turn) error {
	switch t.data.Flow {
	case FlowRegistration:
		return e.registrationStep(t)
	case FlowLogin:
		return e.loginStep(t)
	case FlowPasswordReset:
		return e.passwordResetStep(t)
	case FlowCheckout:
		return e.checkoutStep(t)
	case FlowAppointment:
		return e.appointmentStep(t)
	case FlowDiagnostics:
		return e.diagnosticsStep(t)
	case FlowSearch:
		query := strings.TrimSpace(t.text)
		t.data.ClearFlow()
		if query == "" {
			return e.send(t.session.Phone, "💊 Type the name of the medicine you're looking for.")
		}
		return e.runProductSearch(t, query, models.CategoryMedicine)
	case FlowTrack:
		t.data.ClearFlow()
		entities := ExtractEntities(t.text, time.Now())
		ref := entities[EntityOrderID]
		if ref == "" {
			ref = strings.TrimSpace(t.text)
		}
		return e.replyOrderStatus(t, ref)
	default:
		// A stale step marker from a discarded flow is rejected, not replayed
		log.Printf("Stale flow %q/%q for %s, resetting", t.data.Flow, t.data.Step, t.session.Phone)
		t.data.ClearFlow()
		return e.send(t.session.Phone, "🤔 That conversation has expired. Reply *help* to start over.")
	}
}

// --- registration ---

// startRegistration enters the registration flow. The one-shot form
// "register Jane Doe jane@example.com secret123" seeds the whole draft and
// jumps straight to OTP verification.
func (e *Engine) startRegistration(t *turn) error {
	if e.sessions.IsAuthenticated(t.session) {
		return e.send(t.session.Phone, "You already have an account and you're logged in. Reply *help* to see the menu.")
	}
	if _, err := e.store.GetUserByPhone(t.session.Phone); err == nil {
		return e.send(t.session.Phone, "📱 This number already has an account. Reply *login* to sign in, or *forgot password* if you can't.")
	}

	t.data.ClearFlow()
	t.data.ClearCursors()
	t.session.State = models.SessionStateRegistering
	t.data.Flow = FlowRegistration

	if name, email, password, ok := parseOneShotRegister(t.text); ok {
		t.data.SetDraft("name", name)
		t.data.SetDraft("email", email)
		t.data.SetDraft("password", password)
		if err := e.validateRegistrationDraft(t); err != nil {
			t.data.ClearFlow()
			t.session.State = models.SessionStateNew
			return e.send(t.session.Phone, "⚠️ "+err.Error()+"\n\nReply *register* to try again.")
		}
		return e.issueRegistrationOTP(t)
	}

	t.data.Step = "collect_name"
	return e.send(t.session.Phone, "📝 Let's create your account! What's your full name?")
}

func (e *Engine) registrationStep(t *turn) error {
	input := strings.TrimSpace(t.text)

	switch t.data.Step {
	case "collect_name":
		if len(input) < 2 {
			return e.send(t.session.Phone, "⚠️ Please enter your full name (at least 2 characters).")
		}
		t.data.SetDraft("name", input)
		t.data.Step = "collect_email"
		return e.send(t.session.Phone, fmt.Sprintf("Nice to meet you, %s! What's your email address?", firstName(input)))

	case "collect_email":
		email := strings.ToLower(input)
		if !looksLikeEmail(email) {
			return e.send(t.session.Phone, "⚠️ That doesn't look like an email address. Try again, e.g. *jane@example.com*.")
		}
		if _, err := e.store.GetUserByEmail(email); err == nil {
			return e.send(t.session.Phone, "⚠️ That email is already registered. Reply *login* to sign in, or give a different address.")
		}
		t.data.SetDraft("email", email)
		t.data.Step = "collect_password"
		return e.send(t.session.Phone, "🔑 Choose a password (at least 8 characters).")

	case "collect_password":
		if len(input) < 8 {
			return e.send(t.session.Phone, "⚠️ Password must be at least 8 characters. Try again.")
		}
		t.data.SetDraft("password", input)
		if err := e.validateRegistrationDraft(t); err != nil {
			return e.send(t.session.Phone, "⚠️ "+err.Error())
		}
		return e.issueRegistrationOTP(t)

	case "verify_otp":
		// Free text while waiting for the code; the real code and resend
		// requests come through the flow resolver interrupts
		return e.send(t.session.Phone, "📲 Please enter the 4-digit code we sent you, or say *resend* for a new one.")

	default:
		t.data.ClearFlow()
		t.session.State = models.SessionStateNew
		return e.send(t.session.Phone, "🤔 Registration got confused, let's start over. Reply *register*.")
	}
}

func (e *Engine) validateRegistrationDraft(t *turn) error {
	draft := &models.UserRegistration{
		Name:     t.data.Draft["name"],
		Email:    t.data.Draft["email"],
		Phone:    t.session.Phone,
		Password: t.data.Draft["password"],
	}
	return utils.ValidateStruct(draft)
}

func (e *Engine) issueRegistrationOTP(t *turn) error {
	otp, err := e.otps.CreateOTP(t.session.Phone, models.OTPPurposeRegistration, t.data.Draft["email"])
	if err != nil {
		return fmt.Errorf("issue registration OTP: %w", err)
	}

	t.data.Step = "verify_otp"
	t.data.WaitingForOTP = true
	t.data.OTPPurpose = models.OTPPurposeRegistration

	// The code goes out on the same channel; a production deployment would
	// use a second factor like SMS on a different number
	return e.send(t.session.Phone, fmt.Sprintf("📲 Your Medlane verification code is *%s*. Enter the 4 digits to finish signing up. It expires in 10 minutes.", otp.Code))
}

// handleVerifyOTP is the verify_otp interrupt: a 4-digit reply while an OTP
// is pending, regardless of what flow is active.
func (e *Engine) handleVerifyOTP(t *turn) error {
	code := t.intent.Parameters["code"]
	ok, _, err := e.otps.VerifyOTP(t.session.Phone, code)
	if !ok {
		reason := "that code didn't work"
		if err != nil {
			reason = err.Error()
		}
		return e.send(t.session.Phone, fmt.Sprintf("⚠️ Sorry, %s. Try again or say *resend*.", reason))
	}

	if t.data.OTPPurpose != models.OTPPurposeRegistration {
		t.data.WaitingForOTP = false
		t.data.OTPPurpose = ""
		return e.send(t.session.Phone, "✅ Verified!")
	}
	return e.completeRegistration(t)
}

// completeRegistration is the registration flow's terminal step: the user
// row is created exactly once, the session logs in and the welcome email
// goes out best-effort.
func (e *Engine) completeRegistration(t *turn) error {
	hash, err := utils.HashPassword(t.data.Draft["password"])
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Name:         t.data.Draft["name"],
		Email:        t.data.Draft["email"],
		Phone:        t.session.Phone,
		PasswordHash: hash,
		Verified:     true,
		IsActive:     true,
	}
	if err := e.store.CreateUser(user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	t.data.ClearFlow()
	e.sessions.Login(t.session, user.UserID)

	go e.emails.SendWelcome(user)

	log.Printf("🎉 Registered %s (%s)", user.UserID, user.Phone)
	return e.send(t.session.Phone, fmt.Sprintf("🎉 Welcome to Medlane, %s! Your account is ready.\n\n%s", firstName(user.Name), menuText()))
}

// handleResendOTP is the resend_otp interrupt.
func (e *Engine) handleResendOTP(t *turn) error {
	otp, err := e.otps.ResendOTP(t.session.Phone, t.data.OTPPurpose, t.data.Draft["email"])
	if err != nil {
		return fmt.Errorf("resend OTP: %w", err)
	}
	return e.send(t.session.Phone, fmt.Sprintf("📲 New code: *%s*. The old one no longer works.", otp.Code))
}

// --- login ---

// startLogin enters the login flow, accepting the one-shot
// "login jane@example.com secret123" form.
func (e *Engine) startLogin(t *turn) error {
	if e.sessions.IsAuthenticated(t.session) {
		return e.send(t.session.Phone, "You're already logged in! Reply *help* to see the menu.")
	}

	t.data.ClearFlow()
	t.data.ClearCursors()
	t.session.State = models.SessionStateLoggingIn
	t.data.Flow = FlowLogin

	if email, password, ok := parseOneShotLogin(t.text); ok {
		t.data.SetDraft("email", email)
		return e.verifyLogin(t, password)
	}

	t.data.Step = "collect_email"
	return e.send(t.session.Phone, "🔐 What's the email on your account?")
}

func (e *Engine) loginStep(t *turn) error {
	input := strings.TrimSpace(t.text)

	switch t.data.Step {
	case "collect_email":
		email := strings.ToLower(input)
		if !looksLikeEmail(email) {
			return e.send(t.session.Phone, "⚠️ That doesn't look like an email address. Try again.")
		}
		t.data.SetDraft("email", email)
		t.data.Step = "collect_password"
		return e.send(t.session.Phone, "🔑 And your password?")

	case "collect_password":
		return e.verifyLogin(t, input)

	default:
		t.data.ClearFlow()
		t.session.State = models.SessionStateNew
		return e.send(t.session.Phone, "🤔 Login got confused, let's start over. Reply *login*.")
	}
}

// verifyLogin is the login flow's terminal step.
func (e *Engine) verifyLogin(t *turn, password string) error {
	fail := func() error {
		t.data.Step = "collect_email"
		t.data.Draft = nil
		return e.send(t.session.Phone, "⚠️ Email or password didn't match. Let's try again - what's your email?")
	}

	user, err := e.store.GetUserByEmail(t.data.Draft["email"])
	if err != nil {
		if err == storage.ErrNotFound {
			return fail()
		}
		return fmt.Errorf("load user: %w", err)
	}

	ok, err := utils.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return fail()
	}
	if !user.IsActive {
		t.data.ClearFlow()
		t.session.State = models.SessionStateNew
		return e.send(t.session.Phone, "⚠️ This account is disabled. Reply *contact support* for help.")
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := e.store.SaveUser(user); err != nil {
		log.Printf("⚠️  Could not record login time for %s: %v", user.UserID, err)
	}

	t.data.ClearFlow()
	e.sessions.Login(t.session, user.UserID)

	log.Printf("🔓 Login for %s (%s)", user.UserID, t.session.Phone)
	return e.send(t.session.Phone, fmt.Sprintf("✅ Welcome back, %s!\n\n%s", firstName(user.Name), menuText()))
}

// --- password reset ---

func (e *Engine) startPasswordReset(t *turn) error {
	t.data.ClearFlow()
	t.data.Flow = FlowPasswordReset
	t.data.Step = "collect_email"
	return e.send(t.session.Phone, "🔐 What's the email on your account? I'll send a reset link there.")
}

func (e *Engine) passwordResetStep(t *turn) error {
	email := strings.ToLower(strings.TrimSpace(t.text))
	if !looksLikeEmail(email) {
		return e.send(t.session.Phone, "⚠️ That doesn't look like an email address. Try again.")
	}

	t.data.ClearFlow()

	// Same reply whether or not the account exists, so the flow cannot be
	// used to probe registered emails
	if _, err := e.store.GetUserByEmail(email); err == nil {
		go e.emails.SendPasswordReset(email, utils.NewSessionToken())
	}
	return e.send(t.session.Phone, fmt.Sprintf("📧 If *%s* has a Medlane account, a reset link is on its way. Check your inbox!", email))
}

// --- parsing helpers ---

// parseOneShotRegister splits "register Jane Doe jane@example.com pass123"
// into its parts. The email anchors the split: words before it are the
// name, the rest is the password.
func parseOneShotRegister(text string) (name, email, password string, ok bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) < 4 || normalizeText(fields[0]) != "register" {
		return "", "", "", false
	}

	emailIdx := -1
	for i, f := range fields[1:] {
		if looksLikeEmail(strings.ToLower(f)) {
			emailIdx = i + 1
			break
		}
	}
	if emailIdx < 2 || emailIdx == len(fields)-1 {
		return "", "", "", false
	}

	name = strings.Join(fields[1:emailIdx], " ")
	email = strings.ToLower(fields[emailIdx])
	password = strings.Join(fields[emailIdx+1:], " ")
	return name, email, password, true
}

// parseOneShotLogin splits "login jane@example.com pass123".
func parseOneShotLogin(text string) (email, password string, ok bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) != 3 || normalizeText(fields[0]) != "login" {
		return "", "", false
	}
	email = strings.ToLower(fields[1])
	if !looksLikeEmail(email) {
		return "", "", false
	}
	return email, fields[2], true
}

func looksLikeEmail(s string) bool {
	at := strings.Index(s, "@")
	if at < 1 {
		return false
	}
	domain := s[at+1:]
	return strings.Contains(domain, ".") && !strings.ContainsAny(s, " \t")
}
