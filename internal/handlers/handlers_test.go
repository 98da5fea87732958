package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unipet/billing-engine/internal/checkout"
	"github.com/unipet/billing-engine/internal/dto"
	"github.com/unipet/billing-engine/internal/gateway"
	"github.com/unipet/billing-engine/internal/gateway/cielo"
	"github.com/unipet/billing-engine/internal/gateway/gatewaytest"
	"github.com/unipet/billing-engine/internal/handlers"
	"github.com/unipet/billing-engine/internal/middleware"
	"github.com/unipet/billing-engine/internal/models"
	"github.com/unipet/billing-engine/internal/objectstore"
	"github.com/unipet/billing-engine/internal/plans"
	"github.com/unipet/billing-engine/internal/receipts"
	"github.com/unipet/billing-engine/internal/reconcile"
	"github.com/unipet/billing-engine/internal/routes"
	"github.com/unipet/billing-engine/internal/store"
)

const webhookSecret = "whsec_test"

type testApp struct {
	app     *fiber.App
	store   *store.Memory
	gateway *gatewaytest.Fake
	objects *objectstore.Memory
	plan    *models.Plan
}

type appOptions struct {
	secret           string
	requireSignature bool
}

func newTestApp(t *testing.T, opts appOptions) *testApp {
	t.Helper()
	ta := &testApp{
		store:   store.NewMemory(),
		gateway: gatewaytest.New(),
		objects: objectstore.NewMemory(),
		plan:    &models.Plan{Name: "BASIC", Family: plans.FamilyBasic, BasePrice: 10000, IsActive: true},
	}
	require.NoError(t, ta.store.CreatePlan(context.Background(), ta.plan))

	gen := receipts.NewGenerator(ta.store, ta.gateway, ta.objects,
		receipts.NewPDFRenderer(receipts.Company{Name: "UNIPET PLAN"}), receipts.Options{})
	orch := checkout.New(ta.store, ta.gateway, gen, plans.DefaultRegistry(), 0)
	svc := reconcile.New(ta.store, ta.gateway, gen)

	ta.app = fiber.New()
	ta.app.Use(middleware.Correlation())
	routes.Setup(ta.app, routes.Handlers{
		Health:   handlers.NewHealthHandler(func() error { return nil }, ta.objects),
		Checkout: handlers.NewCheckoutHandler(orch),
		Payment:  handlers.NewPaymentHandler(svc),
		Receipt:  handlers.NewReceiptHandler(gen),
		Contract: handlers.NewContractHandler(ta.store),
		Webhook:  handlers.NewWebhookHandler(svc, opts.secret, opts.requireSignature),
	})
	return ta
}

func (ta *testApp) do(t *testing.T, method, path string, body any, headers ...string) *http.Response {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (ta *testApp) checkoutBody(method models.PaymentMethod, pets ...string) dto.CheckoutRequest {
	req := dto.CheckoutRequest{
		Client: dto.ClientRequest{
			FullName: "Maria Souza",
			Email:    "maria@example.com",
			TaxID:    "123.456.789-09",
		},
		PlanID:        ta.plan.ID,
		BillingPeriod: models.BillingMonthly,
		PaymentMethod: method,
		Installments:  1,
	}
	if method == models.PaymentCreditCard {
		req.Card = &gateway.Card{Number: "4111111111111111", Holder: "MARIA SOUZA", ExpirationDate: "12/2030", SecurityCode: "123"}
	}
	for _, name := range pets {
		req.Pets = append(req.Pets, dto.PetRequest{Name: name, Species: "dog"})
	}
	return req
}

func (ta *testApp) checkout(t *testing.T, method models.PaymentMethod, pets ...string) dto.CheckoutResponse {
	t.Helper()
	resp := ta.do(t, http.MethodPost, "/api/checkout", ta.checkoutBody(method, pets...))
	require.Contains(t, []int{fiber.StatusCreated, fiber.StatusAccepted}, resp.StatusCode)
	return decode[dto.CheckoutResponse](t, resp)
}

func TestCheckoutApproved(t *testing.T) {
	ta := newTestApp(t, appOptions{})

	resp := ta.do(t, http.MethodPost, "/api/checkout", ta.checkoutBody(models.PaymentCreditCard, "Thor", "Luna"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	body := decode[dto.CheckoutResponse](t, resp)
	assert.Equal(t, gateway.StatusApproved, body.Status)
	assert.NotEmpty(t, body.OrderID)
	assert.Len(t, body.Contracts, 2)
	assert.Equal(t, int64(19500), body.Quote.Total)
	require.NotNil(t, body.Receipt)
	assert.Equal(t, body.PaymentID, body.Receipt.PaymentID)
	assert.Empty(t, body.Failures)
}

func TestCheckoutPendingPixAnswersAccepted(t *testing.T) {
	ta := newTestApp(t, appOptions{})
	ta.gateway.NextStatus = gateway.StatusPending

	resp := ta.do(t, http.MethodPost, "/api/checkout", ta.checkoutBody(models.PaymentPix, "Thor"))
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	body := decode[dto.CheckoutResponse](t, resp)
	require.NotNil(t, body.Pix)
	assert.NotEmpty(t, body.Pix.QRCodeString)
	assert.Nil(t, body.Receipt)
}

func TestCheckoutInvalidBody(t *testing.T) {
	ta := newTestApp(t, appOptions{})

	resp := ta.do(t, http.MethodPost, "/api/checkout", []byte("{not json"))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body := decode[dto.ErrorResponse](t, resp)
	assert.True(t, body.Error)
}

func TestCheckoutValidationError(t *testing.T) {
	ta := newTestApp(t, appOptions{})
	req := ta.checkoutBody(models.PaymentCreditCard, "Thor")
	req.PlanID = uuid.Nil

	resp := ta.do(t, http.MethodPost, "/api/checkout", req)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, "plan_id", body.Field)
	assert.Equal(t, 0, ta.gateway.CreateCount())
}

func TestCheckoutDeclined(t *testing.T) {
	ta := newTestApp(t, appOptions{})
	ta.gateway.NextStatus = gateway.StatusDeclined

	resp := ta.do(t, http.MethodPost, "/api/checkout", ta.checkoutBody(models.PaymentCreditCard, "Thor"))
	assert.Equal(t, fiber.StatusPaymentRequired, resp.StatusCode)
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, "05", body.Code)
	assert.Contains(t, body.Message, "Nao Autorizada")
}

func TestCheckoutAmbiguousGatewayFailure(t *testing.T) {
	ta := newTestApp(t, appOptions{})
	ta.gateway.CreateFunc = func(*gateway.ChargeRequest) (*gateway.Charge, error) {
		return nil, errors.New("connection reset by peer")
	}

	resp := ta.do(t, http.MethodPost, "/api/checkout", ta.checkoutBody(models.PaymentCreditCard, "Thor"))
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	body := decode[dto.ErrorResponse](t, resp)
	assert.NotEmpty(t, body.OrderID)
	require.NotNil(t, body.Retryable)
	assert.False(t, *body.Retryable)
}

func TestRenewContract(t *testing.T) {
	ta := newTestApp(t, appOptions{})
	created := ta.checkout(t, models.PaymentCreditCard, "Thor")
	contractID := created.Contracts[0].ID

	resp := ta.do(t, http.MethodPost, "/api/contracts/"+contractID.String()+"/renew", dto.RenewRequest{
		PaymentMethod: models.PaymentCreditCard,
		Installments:  1,
		Card:          &gateway.Card{Number: "4111111111111111", Holder: "MARIA SOUZA", ExpirationDate: "12/2030", SecurityCode: "123"},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	body := decode[dto.RenewResponse](t, resp)
	assert.Equal(t, int64(10000), body.Amount)
	assert.NotEqual(t, created.PaymentID, body.PaymentID)
}

func TestRenewRejectsMalformedID(t *testing.T) {
	ta := newTestApp(t, appOptions{})

	resp := ta.do(t, http.MethodPost, "/api/contracts/not-a-uuid/renew", dto.RenewRequest{PaymentMethod: models.PaymentPix})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, "id", body.Field)
}

func TestContractStatus(t *testing.T) {
	ta := newTestApp(t, appOptions{})
	created := ta.checkout(t, models.PaymentCreditCard, "Thor")

	resp := ta.do(t, http.MethodGet, "/api/contracts/"+created.Contracts[0].ID.String()+"/status", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decode[dto.ContractStatusResponse](t, resp)
	assert.Equal(t, created.Contracts[0].ContractNumber, body.ContractNumber)
	assert.NotEmpty(t, body.Description)
	assert.NotEmpty(t, body.Evaluation.Rule)
}

func TestContractStatusUnknown(t *testing.T) {
	ta := newTestApp(t, appOptions{})

	resp := ta.do(t, http.MethodGet, "/api/contracts/"+uuid.NewString()+"/status", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestPaymentStatusAppliesConfirmation(t *testing.T) {
	ta := newTestApp(t, appOptions{})
	ta.gateway.NextStatus = gateway.StatusPending
	created := ta.checkout(t, models.PaymentPix, "Thor")
	ta.gateway.Approve(created.PaymentID)

	resp := ta.do(t, http.MethodGet, "/api/payments/"+created.PaymentID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decode[reconcile.SyncResult](t, resp)
	assert.Equal(t, 1, body.Updated)
	require.NotNil(t, body.Receipt)

	stored, err := ta.store.GetContract(context.Background(), created.Contracts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractActive, stored.Status)
}

func TestResolveOrderWithoutCharge(t *testing.T) {
	ta := newTestApp(t, appOptions{})

	resp := ta.do(t, http.MethodPost, "/api/orders/01JUNKNOWN/reconcile", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decode[reconcile.OrderResolution](t, resp)
	assert.False(t, body.Found)
}

func TestCancelContractPayment(t *testing.T) {
	ta := newTestApp(t, appOptions{})
	created := ta.checkout(t, models.PaymentCreditCard, "Thor")

	resp := ta.do(t, http.MethodPost, "/api/contracts/"+created.Contracts[0].ID.String()+"/cancel", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	stored, err := ta.store.GetContract(context.Background(), created.Contracts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractCancelled, stored.Status)
	assert.Equal(t, models.StatusSourceManual, stored.StatusSource)
}

func notification(t *testing.T, paymentID string, changeType int) []byte {
	t.Helper()
	raw, err := json.Marshal(cielo.Notification{PaymentID: paymentID, ChangeType: changeType})
	require.NoError(t, err)
	return raw
}

func TestWebhookAppliesPaymentStatus(t *testing.T) {
	ta := newTestApp(t, appOptions{secret: webhookSecret, requireSignature: true})
	ta.gateway.NextStatus = gateway.StatusPending
	created := ta.checkout(t, models.PaymentPix, "Thor")
	ta.gateway.Approve(created.PaymentID)

	body := notification(t, created.PaymentID, cielo.ChangePaymentStatus)
	resp := ta.do(t, http.MethodPost, "/api/webhooks/cielo", body,
		cielo.SignatureHeader, "sha256="+cielo.Sign(webhookSecret, body))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	stored, err := ta.store.GetContract(context.Background(), created.Contracts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractActive, stored.Status)

	// A redelivery changes nothing and still answers 200.
	resp = ta.do(t, http.MethodPost, "/api/webhooks/cielo", body,
		cielo.SignatureHeader, cielo.Sign(webhookSecret, body))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	_, _, _, receiptCount := ta.store.Counts()
	assert.Equal(t, 1, receiptCount)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	ta := newTestApp(t, appOptions{secret: webhookSecret, requireSignature: true})

	body := notification(t, "pay-1", cielo.ChangePaymentStatus)
	resp := ta.do(t, http.MethodPost, "/api/webhooks/cielo", body, cielo.SignatureHeader, cielo.Sign("other", body))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, ta.gateway.QueryCount())
}

func TestWebhookWithoutSecret(t *testing.T) {
	body := []byte(`{"PaymentId":"pay-missing","ChangeType":1}`)

	strict := newTestApp(t, appOptions{requireSignature: true})
	resp := strict.do(t, http.MethodPost, "/api/webhooks/cielo", body)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	lenient := newTestApp(t, appOptions{})
	resp = lenient.do(t, http.MethodPost, "/api/webhooks/cielo", body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode, "unknown payments are acknowledged")
	assert.Equal(t, 1, lenient.gateway.QueryCount())
}

func TestWebhookGatewayFailureAsksForRedelivery(t *testing.T) {
	ta := newTestApp(t, appOptions{})
	ta.gateway.QueryErr = errors.New("gateway down")

	resp := ta.do(t, http.MethodPost, "/api/webhooks/cielo", notification(t, "pay-1", cielo.ChangePaymentStatus))
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestWebhookInvalidPayload(t *testing.T) {
	ta := newTestApp(t, appOptions{})

	resp := ta.do(t, http.MethodPost, "/api/webhooks/cielo", []byte(`{"ChangeType":1}`))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestWebhookIgnoresRecurrenceChanges(t *testing.T) {
	ta := newTestApp(t, appOptions{})

	resp := ta.do(t, http.MethodPost, "/api/webhooks/cielo", notification(t, "pay-1", cielo.ChangeRecurrence))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, ta.gateway.QueryCount())
}

func TestReceiptDownloadRedirects(t *testing.T) {
	ta := newTestApp(t, appOptions{})
	created := ta.checkout(t, models.PaymentCreditCard, "Thor")
	require.NotNil(t, created.Receipt)

	resp := ta.do(t, http.MethodGet, "/api/receipts/"+created.Receipt.ID.String()+"/download", nil)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "memory://"))

	resp = ta.do(t, http.MethodGet, "/api/receipts/"+created.Receipt.ID.String()+"/download?redirect=false", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decode[dto.DownloadResponse](t, resp)
	assert.NotEmpty(t, body.URL)
	assert.Equal(t, models.ReceiptDownloaded, body.Receipt.Status)
}

func TestReceiptDownloadStreamsRegeneratedPDF(t *testing.T) {
	ta := newTestApp(t, appOptions{})
	created := ta.checkout(t, models.PaymentCreditCard, "Thor")
	require.NotNil(t, created.Receipt)
	stored, err := ta.store.GetReceipt(context.Background(), created.Receipt.ID)
	require.NoError(t, err)
	require.NoError(t, ta.objects.Delete(context.Background(), stored.ObjectKey))
	queries := ta.gateway.QueryCount()

	resp := ta.do(t, http.MethodGet, "/api/receipts/"+created.Receipt.ID.String()+"/download", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), stored.FileName)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	assert.Equal(t, queries, ta.gateway.QueryCount(), "rebuilt from the stored snapshot")
}

func TestReceiptMarkSentAndList(t *testing.T) {
	ta := newTestApp(t, appOptions{})
	created := ta.checkout(t, models.PaymentCreditCard, "Thor")
	require.NotNil(t, created.Receipt)

	resp := ta.do(t, http.MethodPost, "/api/receipts/"+created.Receipt.ID.String()+"/sent", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	sent := decode[models.PaymentReceipt](t, resp)
	assert.Equal(t, models.ReceiptSent, sent.Status)

	resp = ta.do(t, http.MethodGet, "/api/receipts?email=Maria@Example.com", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	list := decode[dto.ReceiptListResponse](t, resp)
	assert.Equal(t, 1, list.Count)

	resp = ta.do(t, http.MethodGet, "/api/receipts", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	ta := newTestApp(t, appOptions{})

	resp := ta.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decode[dto.HealthResponse](t, resp)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.DB)
}

func TestMetricsEndpoint(t *testing.T) {
	ta := newTestApp(t, appOptions{})
	ta.checkout(t, models.PaymentCreditCard, "Thor")

	resp := ta.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "unipet_billing_checkouts_total")
}
