package cielo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/unipet/billing-engine/internal/gateway"
)

// Cielo payment status codes.
const (
	statusNotFinished      = 0
	statusAuthorized       = 1
	statusPaymentConfirmed = 2
	statusDenied           = 3
	statusVoided           = 10
	statusRefunded         = 11
	statusPending          = 12
	statusAborted          = 13
	statusScheduled        = 20
)

func mapStatus(code int) gateway.Status {
	switch code {
	case statusPaymentConfirmed:
		return gateway.StatusApproved
	case statusAuthorized:
		return gateway.StatusAuthorized
	case statusPending, statusNotFinished, statusScheduled:
		return gateway.StatusPending
	case statusDenied, statusAborted:
		return gateway.StatusDeclined
	case statusVoided:
		return gateway.StatusVoided
	case statusRefunded:
		return gateway.StatusRefunded
	default:
		return gateway.StatusUnknown
	}
}

// APIError is a 4xx body from Cielo: a list of code/message pairs.
type APIError struct {
	StatusCode int
	Items      []apiErrorItem
}

func (e *APIError) Error() string {
	if len(e.Items) == 0 {
		return fmt.Sprintf("cielo: status %d", e.StatusCode)
	}
	parts := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		parts = append(parts, fmt.Sprintf("%d %s", it.Code, it.Message))
	}
	return fmt.Sprintf("cielo: status %d: %s", e.StatusCode, strings.Join(parts, "; "))
}

// Code is the first error code, as a string.
func (e *APIError) Code() string {
	if len(e.Items) == 0 {
		return strconv.Itoa(e.StatusCode)
	}
	return strconv.Itoa(e.Items[0].Code)
}

func (e *APIError) Message() string {
	if len(e.Items) == 0 {
		return "request rejected by gateway"
	}
	return e.Items[0].Message
}
