package cielo

// Wire types for the Cielo e-commerce API 3.0.

type saleRequest struct {
	MerchantOrderID string      `json:"MerchantOrderId"`
	Customer        customer    `json:"Customer"`
	Payment         paymentData `json:"Payment"`
}

type customer struct {
	Name         string `json:"Name"`
	Email        string `json:"Email,omitempty"`
	Identity     string `json:"Identity,omitempty"`
	IdentityType string `json:"IdentityType,omitempty"`
}

type paymentData struct {
	Type           string      `json:"Type"`
	Amount         int64       `json:"Amount"`
	Installments   int         `json:"Installments,omitempty"`
	Capture        bool        `json:"Capture,omitempty"`
	SoftDescriptor string      `json:"SoftDescriptor,omitempty"`
	CreditCard     *creditCard `json:"CreditCard,omitempty"`
}

type creditCard struct {
	CardNumber     string `json:"CardNumber"`
	Holder         string `json:"Holder"`
	ExpirationDate string `json:"ExpirationDate"`
	SecurityCode   string `json:"SecurityCode"`
	Brand          string `json:"Brand"`
}

type saleResponse struct {
	MerchantOrderID string          `json:"MerchantOrderId"`
	Payment         paymentResponse `json:"Payment"`
}

type paymentResponse struct {
	PaymentID         string `json:"PaymentId"`
	Type              string `json:"Type"`
	Amount            int64  `json:"Amount"`
	CapturedAmount    int64  `json:"CapturedAmount"`
	Installments      int    `json:"Installments"`
	Status            int    `json:"Status"`
	Tid               string `json:"Tid"`
	ProofOfSale       string `json:"ProofOfSale"`
	AuthorizationCode string `json:"AuthorizationCode"`
	ReturnCode        string `json:"ReturnCode"`
	ReturnMessage     string `json:"ReturnMessage"`
	ReceivedDate      string `json:"ReceivedDate"`
	CapturedDate      string `json:"CapturedDate"`
	QrCodeBase64Image string `json:"QrCodeBase64Image"`
	QrCodeString      string `json:"QrCodeString"`
}

// updateResponse is returned by capture and void.
type updateResponse struct {
	Status             int    `json:"Status"`
	ReasonCode         int    `json:"ReasonCode"`
	ReasonMessage      string `json:"ReasonMessage"`
	ProviderReturnCode string `json:"ProviderReturnCode"`
	ProviderReturnMsg  string `json:"ProviderReturnMessage"`
	ReturnCode         string `json:"ReturnCode"`
	ReturnMessage      string `json:"ReturnMessage"`
	Tid                string `json:"Tid"`
	ProofOfSale        string `json:"ProofOfSale"`
	AuthorizationCode  string `json:"AuthorizationCode"`
}

type orderQueryResponse struct {
	Payments []struct {
		PaymentID string `json:"PaymentId"`
	} `json:"Payments"`
}

// Notification is the webhook body Cielo posts on payment changes.
type Notification struct {
	PaymentID          string `json:"PaymentId"`
	ChangeType         int    `json:"ChangeType"`
	ClientOrderID      string `json:"ClientOrderId,omitempty"`
	RecurrentPaymentID string `json:"RecurrentPaymentId,omitempty"`
}

type apiErrorItem struct {
	Code    int    `json:"Code"`
	Message string `json:"Message"`
}
