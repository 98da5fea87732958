// Package cielo implements gateway.Gateway against the Cielo e-commerce API.
package cielo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/unipet/billing-engine/internal/apperrors"
	"github.com/unipet/billing-engine/internal/config"
	"github.com/unipet/billing-engine/internal/gateway"
	"github.com/unipet/billing-engine/internal/metrics"
	"github.com/unipet/billing-engine/internal/models"
)

const (
	softDescriptor = "UNIPET"
	dateLayout     = "2006-01-02 15:04:05"
)

// Client talks to Cielo over HTTPS. Transactions go to the API host and
// lookups to the query host.
type Client struct {
	apiURL      string
	queryURL    string
	merchantID  string
	merchantKey string
	httpClient  *http.Client
	location    *time.Location
	now         func() time.Time
}

var _ gateway.Gateway = (*Client)(nil)

func NewClient(cfg *config.CieloConfig) *Client {
	return NewClientWithHTTP(cfg, &http.Client{Timeout: cfg.Timeout})
}

func NewClientWithHTTP(cfg *config.CieloConfig, httpClient *http.Client) *Client {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.FixedZone("BRT", -3*60*60)
	}
	return &Client{
		apiURL:      strings.TrimRight(cfg.APIURL, "/"),
		queryURL:    strings.TrimRight(cfg.QueryURL, "/"),
		merchantID:  cfg.MerchantID,
		merchantKey: cfg.MerchantKey,
		httpClient:  httpClient,
		location:    loc,
		now:         time.Now,
	}
}

// transportError marks failures where the request may have reached Cielo.
type transportError struct {
	timeout bool
	err     error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// serverError is a 5xx answer.
type serverError struct {
	status int
	body   string
}

func (e *serverError) Error() string {
	return fmt.Sprintf("cielo: status %d: %s", e.status, e.body)
}

func (c *Client) doRequest(ctx context.Context, method, rawURL string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("MerchantId", c.merchantID)
	req.Header.Set("MerchantKey", c.merchantKey)
	req.Header.Set("RequestId", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transportError{timeout: isTimeout(err), err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transportError{timeout: isTimeout(err), err: fmt.Errorf("failed to read response: %w", err)}
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, &serverError{status: resp.StatusCode, body: string(respBody)}
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperrors.ErrNotFound
	case resp.StatusCode >= 400:
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(respBody, &apiErr.Items)
		return nil, apiErr
	}
	return respBody, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// classify turns a raw request error into the shared taxonomy. ambiguous is
// set for calls that can move money.
func classify(op, orderID string, ambiguous bool, err error) error {
	var tErr *transportError
	if errors.As(err, &tErr) {
		return &apperrors.GatewayUnavailableError{Op: op, OrderID: orderID, Timeout: tErr.timeout, Ambiguous: ambiguous, Err: tErr.err}
	}
	var sErr *serverError
	if errors.As(err, &sErr) {
		return &apperrors.GatewayUnavailableError{Op: op, OrderID: orderID, Ambiguous: ambiguous, Err: sErr}
	}
	return err
}

func (c *Client) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.GatewayRequestDuration.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
}

// CreateCharge sends exactly one sale request with automatic capture.
func (c *Client) CreateCharge(ctx context.Context, req *gateway.ChargeRequest) (charge *gateway.Charge, err error) {
	start := time.Now()
	defer func() { c.observe("create_charge", start, err) }()

	sale, err := buildSale(req)
	if err != nil {
		return nil, err
	}

	body, err := c.doRequest(ctx, http.MethodPost, c.apiURL+"/1/sales/", sale)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, &apperrors.GatewayDeclinedError{Code: apiErr.Code(), Message: apiErr.Message()}
		}
		return nil, classify("create_charge", req.OrderID, true, err)
	}

	var resp saleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		// The sale went through but the answer is unreadable; only a
		// reconciliation by order id can tell what happened.
		return nil, &apperrors.GatewayUnavailableError{Op: "create_charge", OrderID: req.OrderID, Ambiguous: true, Err: err}
	}

	charge = c.toCharge(&resp.Payment)
	charge.OrderID = req.OrderID
	if charge.Method == "" {
		charge.Method = req.Method
	}
	slog.Info("cielo charge created",
		"order_id", req.OrderID,
		"payment_id", charge.PaymentID,
		"status", string(charge.Status),
		"return_code", charge.ReturnCode,
	)
	return charge, nil
}

func (c *Client) QueryCharge(ctx context.Context, paymentID string) (charge *gateway.Charge, err error) {
	start := time.Now()
	defer func() { c.observe("query_charge", start, err) }()

	body, err := c.doRequest(ctx, http.MethodGet, c.queryURL+"/1/sales/"+url.PathEscape(paymentID), nil)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("payment", paymentID)
		}
		return nil, classify("query_charge", "", false, err)
	}

	var resp saleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode payment %s: %w", paymentID, err)
	}
	charge = c.toCharge(&resp.Payment)
	charge.OrderID = resp.MerchantOrderID
	return charge, nil
}

func (c *Client) QueryByOrderID(ctx context.Context, orderID string) (ids []string, err error) {
	start := time.Now()
	defer func() { c.observe("query_order", start, err) }()

	body, err := c.doRequest(ctx, http.MethodGet, c.queryURL+"/1/sales?merchantOrderId="+url.QueryEscape(orderID), nil)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, classify("query_order", orderID, false, err)
	}

	var resp orderQueryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode order %s: %w", orderID, err)
	}
	for _, p := range resp.Payments {
		ids = append(ids, p.PaymentID)
	}
	return ids, nil
}

func (c *Client) Capture(ctx context.Context, paymentID string, amount *int64) (*gateway.Charge, error) {
	return c.update(ctx, "capture", paymentID, amount)
}

func (c *Client) Cancel(ctx context.Context, paymentID string, amount *int64) (*gateway.Charge, error) {
	return c.update(ctx, "void", paymentID, amount)
}

func (c *Client) update(ctx context.Context, action, paymentID string, amount *int64) (charge *gateway.Charge, err error) {
	start := time.Now()
	defer func() { c.observe(action, start, err) }()

	u := c.apiURL + "/1/sales/" + url.PathEscape(paymentID) + "/" + action
	if amount != nil {
		u += "?amount=" + strconv.FormatInt(*amount, 10)
	}
	body, err := c.doRequest(ctx, http.MethodPut, u, nil)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("payment", paymentID)
		}
		return nil, classify(action, "", true, err)
	}

	var resp updateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", action, err)
	}
	charge = &gateway.Charge{
		PaymentID:         paymentID,
		Status:            mapStatus(resp.Status),
		ProofOfSale:       resp.ProofOfSale,
		AuthorizationCode: resp.AuthorizationCode,
		TransactionID:     resp.Tid,
		ReturnCode:        firstNonEmpty(resp.ReturnCode, resp.ProviderReturnCode),
		ReturnMessage:     firstNonEmpty(resp.ReturnMessage, resp.ProviderReturnMsg, resp.ReasonMessage),
	}
	if charge.Succeeded() {
		now := c.now()
		charge.ReceivedDate = &now
	}
	return charge, nil
}

func (c *Client) toCharge(p *paymentResponse) *gateway.Charge {
	charge := &gateway.Charge{
		PaymentID:         p.PaymentID,
		Status:            mapStatus(p.Status),
		Amount:            p.Amount,
		Installments:      p.Installments,
		Method:            methodFromType(p.Type),
		ProofOfSale:       p.ProofOfSale,
		AuthorizationCode: p.AuthorizationCode,
		TransactionID:     p.Tid,
		ReturnCode:        p.ReturnCode,
		ReturnMessage:     p.ReturnMessage,
	}
	if charge.Installments == 0 {
		charge.Installments = 1
	}
	if p.QrCodeBase64Image != "" || p.QrCodeString != "" {
		charge.Pix = &gateway.PixData{QRCodeBase64: p.QrCodeBase64Image, QRCodeString: p.QrCodeString}
	}
	if charge.Succeeded() {
		charge.ReceivedDate = c.parseDate(firstNonEmpty(p.CapturedDate, p.ReceivedDate))
		if charge.ReceivedDate == nil {
			now := c.now()
			charge.ReceivedDate = &now
		}
	}
	return charge
}

func (c *Client) parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.ParseInLocation(dateLayout, s, c.location)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func buildSale(req *gateway.ChargeRequest) (*saleRequest, error) {
	sale := &saleRequest{
		MerchantOrderID: req.OrderID,
		Customer: customer{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
		},
		Payment: paymentData{
			Amount: req.Amount,
		},
	}
	if id := req.Customer.TaxID; id != "" {
		sale.Customer.Identity = id
		sale.Customer.IdentityType = "CPF"
		if len(id) == 14 {
			sale.Customer.IdentityType = "CNPJ"
		}
	}

	switch req.Method {
	case models.PaymentPix:
		sale.Payment.Type = "Pix"
	case models.PaymentCreditCard:
		if req.Card == nil {
			return nil, apperrors.Invalid("card", "card data is required for credit card payments")
		}
		brand := req.Card.Brand
		if brand == "" {
			brand = detectBrand(req.Card.Number)
		}
		if brand == "" {
			return nil, apperrors.Invalid("card.brand", "unable to detect card brand")
		}
		sale.Payment.Type = "CreditCard"
		sale.Payment.Installments = max(1, req.Installments)
		sale.Payment.Capture = true
		sale.Payment.SoftDescriptor = softDescriptor
		sale.Payment.CreditCard = &creditCard{
			CardNumber:     req.Card.Number,
			Holder:         req.Card.Holder,
			ExpirationDate: req.Card.ExpirationDate,
			SecurityCode:   req.Card.SecurityCode,
			Brand:          brand,
		}
	default:
		return nil, apperrors.Invalid("payment_method", "unsupported payment method %q", req.Method)
	}
	return sale, nil
}

func methodFromType(t string) models.PaymentMethod {
	switch t {
	case "CreditCard":
		return models.PaymentCreditCard
	case "Pix":
		return models.PaymentPix
	default:
		return ""
	}
}

func detectBrand(number string) string {
	n := strings.ReplaceAll(number, " ", "")
	switch {
	case strings.HasPrefix(n, "4"):
		return "Visa"
	case strings.HasPrefix(n, "34"), strings.HasPrefix(n, "37"):
		return "Amex"
	case len(n) >= 2 && n[0] == '5' && n[1] >= '1' && n[1] <= '5':
		return "Master"
	case strings.HasPrefix(n, "636368"), strings.HasPrefix(n, "438935"), strings.HasPrefix(n, "504175"), strings.HasPrefix(n, "5067"):
		return "Elo"
	default:
		return ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
