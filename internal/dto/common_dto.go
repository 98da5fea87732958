package dto

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code,omitempty"`
	// OrderID is set when a charge may exist and must be reconciled before
	// the customer retries.
	OrderID   string `json:"order_id,omitempty"`
	PaymentID string `json:"payment_id,omitempty"`
	Retryable *bool  `json:"retryable,omitempty"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
	Objects   string `json:"objects"`
}

type AmountRequest struct {
	// Amount in cents. Omit for the full amount.
	Amount *int64 `json:"amount,omitempty"`
}
