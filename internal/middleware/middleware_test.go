package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okApp(mw fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Post("/hook", mw, func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/admin", mw, func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	return app
}

func TestValidateTwilioSignature(t *testing.T) {
	const token = "twilio-auth-token"
	app := okApp(ValidateTwilioSignature(token))

	form := url.Values{"MessageSid": {"SM1"}, "Body": {"hi"}, "From": {"whatsapp:+234800"}}
	sig := calculateTwilioSignature(token, "http://example.com/hook", map[string]string{
		"MessageSid": "SM1", "Body": "hi", "From": "whatsapp:+234800",
	})

	req := httptest.NewRequest("POST", "http://example.com/hook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", sig)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Tampered body fails
	tampered := url.Values{"MessageSid": {"SM1"}, "Body": {"evil"}, "From": {"whatsapp:+234800"}}
	req = httptest.NewRequest("POST", "http://example.com/hook", strings.NewReader(tampered.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", sig)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// Missing header fails
	req = httptest.NewRequest("POST", "http://example.com/hook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestValidatePaymentSignature(t *testing.T) {
	const secret = "payment-secret"
	app := okApp(ValidatePaymentSignature(secret))
	body := `{"event":"payment.completed","payment_ref":"pay-1"}`

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	sig := hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest("POST", "/hook", strings.NewReader(body))
	req.Header.Set("X-Payment-Signature", sig)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest("POST", "/hook", strings.NewReader(body))
	req.Header.Set("X-Payment-Signature", "deadbeef")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("POST", "/hook", strings.NewReader(body))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireAdminJWT(t *testing.T) {
	const secret = "admin-secret"
	const issuer = "medlane"
	app := okApp(RequireAdminJWT(secret, issuer))

	sign := func(secret, issuer string) string {
		claims := jwt.MapClaims{
			"iss": issuer,
			"exp": time.Now().Add(time.Hour).Unix(),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return token
	}

	get := func(auth string) int {
		req := httptest.NewRequest("GET", "/admin", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, get("Bearer "+sign(secret, issuer)))
	assert.Equal(t, fiber.StatusUnauthorized, get("Bearer "+sign("wrong-secret", issuer)))
	assert.Equal(t, fiber.StatusUnauthorized, get("Bearer "+sign(secret, "someone-else")))
	assert.Equal(t, fiber.StatusUnauthorized, get(""))
	assert.Equal(t, fiber.StatusUnauthorized, get("Basic abc"))

	// With no secret configured the whole surface is disabled
	disabled := okApp(RequireAdminJWT("", issuer))
	req := httptest.NewRequest("GET", "/admin", nil)
	resp, err := disabled.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
