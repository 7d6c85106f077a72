package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewSessionToken returns an opaque session token. The token carries no
// claims; authentication state lives on the session record.
func NewSessionToken() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

// NewPaymentRef returns a unique reference for a payment link request.
func NewPaymentRef() string {
	return "pay_" + uuid.NewString()
}
