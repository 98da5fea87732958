package cielo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const SignatureHeader = "X-Cielo-Signature"

// Notification change types.
const (
	ChangePaymentStatus = 1
	ChangeRecurrence    = 2
	ChangeChargeback    = 3
)

// ValidateSignature checks an HMAC-SHA256 hex signature of body. The
// signature may carry a "sha256=" prefix.
func ValidateSignature(secret string, body []byte, signature string) bool {
	sig := strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if secret == "" || sig == "" {
		return false
	}
	provided, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), provided)
}

// Sign returns the hex signature Cielo would send for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func ParseNotification(body []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("invalid notification payload: %w", err)
	}
	if n.PaymentID == "" {
		return nil, errors.New("notification without PaymentId")
	}
	return &n, nil
}

func ChangeTypeName(changeType int) string {
	switch changeType {
	case ChangePaymentStatus:
		return "payment_status"
	case ChangeRecurrence:
		return "recurrence"
	case ChangeChargeback:
		return "chargeback"
	default:
		return "unknown"
	}
}
