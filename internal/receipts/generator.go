// Package receipts issues one payment receipt per gateway payment id. The PDF
// lives in the object store; the row keeps the object key and a snapshot of
// everything needed to render it again.
package receipts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/unipet/billing-engine/internal/apperrors"
	"github.com/unipet/billing-engine/internal/gateway"
	"github.com/unipet/billing-engine/internal/logging"
	"github.com/unipet/billing-engine/internal/metrics"
	"github.com/unipet/billing-engine/internal/models"
	"github.com/unipet/billing-engine/internal/objectstore"
	"github.com/unipet/billing-engine/internal/store"
)

// ErrPaymentNotApproved is returned when the gateway does not report the
// payment as captured. It matches apperrors.ErrValidation.
var ErrPaymentNotApproved = fmt.Errorf("payment not approved: %w", apperrors.ErrValidation)

const contentTypePDF = "application/pdf"

// Input is the display snapshot for a receipt. Amount, date and proof fields
// always come from the gateway.
type Input struct {
	PaymentID     string
	ContractID    *uuid.UUID
	ClientName    string
	ClientEmail   string
	ClientTaxID   string
	PlanName      string
	BillingPeriod models.BillingPeriod
	// Method is used when the gateway response omits the payment type.
	Method models.PaymentMethod
	Pets   []models.ReceiptPetLine
}

type Options struct {
	URLTTL time.Duration
	// Stream serves document bytes from Open instead of a signed URL.
	Stream bool
}

type Generator struct {
	store    store.Store
	gateway  gateway.Gateway
	objects  objectstore.Store
	renderer Renderer
	group    singleflight.Group

	urlTTL time.Duration
	stream bool

	now    func() time.Time
	number func(time.Time) string
}

func NewGenerator(st store.Store, gw gateway.Gateway, objects objectstore.Store, renderer Renderer, opts Options) *Generator {
	ttl := opts.URLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Generator{
		store:    st,
		gateway:  gw,
		objects:  objects,
		renderer: renderer,
		urlTTL:   ttl,
		stream:   opts.Stream,
		now:      time.Now,
		number:   NewNumber,
	}
}

// Generate returns the receipt for in.PaymentID, creating it on first use.
// Concurrent calls for the same payment in this process share one run; calls
// from other processes meet at the unique index on payment id.
func (g *Generator) Generate(ctx context.Context, in Input) (*models.PaymentReceipt, error) {
	if strings.TrimSpace(in.PaymentID) == "" {
		return nil, apperrors.Invalid("payment_id", "is required")
	}
	v, err, _ := g.group.Do(in.PaymentID, func() (any, error) {
		return g.generate(ctx, in)
	})
	if err != nil {
		metrics.ReceiptsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	out := *v.(*models.PaymentReceipt)
	return &out, nil
}

func (g *Generator) generate(ctx context.Context, in Input) (*models.PaymentReceipt, error) {
	existing, err := g.store.FindReceiptByPaymentID(ctx, in.PaymentID)
	if err == nil {
		metrics.ReceiptsTotal.WithLabelValues("reused").Inc()
		return existing, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, fmt.Errorf("failed to look up receipt: %w", err)
	}

	charge, err := g.gateway.QueryCharge(ctx, in.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment %s: %w", in.PaymentID, err)
	}
	if !charge.Succeeded() {
		return nil, fmt.Errorf("%w: payment %s is %s", ErrPaymentNotApproved, in.PaymentID, charge.Status)
	}

	receipt, err := g.snapshot(in, charge)
	if err != nil {
		return nil, err
	}

	pdf, err := g.renderer.Render(receipt)
	if err != nil {
		return nil, fmt.Errorf("failed to render receipt %s: %w", receipt.ReceiptNumber, err)
	}
	if err := g.objects.Put(ctx, receipt.ObjectKey, pdf, contentTypePDF); err != nil {
		return nil, fmt.Errorf("failed to upload receipt %s: %w", receipt.ReceiptNumber, err)
	}

	if err := g.store.CreateReceipt(ctx, receipt); err != nil {
		if !apperrors.IsConflict(err) {
			return nil, fmt.Errorf("failed to save receipt: %w", err)
		}
		// Another process won the race; drop our upload and use its row.
		if delErr := g.objects.Delete(ctx, receipt.ObjectKey); delErr != nil {
			logging.FromContext(ctx).WarnContext(ctx, "orphan receipt object left behind",
				"object_key", receipt.ObjectKey, "error", delErr.Error())
		}
		winner, findErr := g.store.FindReceiptByPaymentID(ctx, in.PaymentID)
		if findErr != nil {
			return nil, fmt.Errorf("failed to re-read receipt after conflict: %w", findErr)
		}
		metrics.ReceiptsTotal.WithLabelValues("reused").Inc()
		return winner, nil
	}

	metrics.ReceiptsTotal.WithLabelValues("generated").Inc()
	logging.FromContext(ctx).InfoContext(ctx, "receipt generated",
		"payment_id", receipt.PaymentID,
		"receipt_number", receipt.ReceiptNumber,
		"amount", receipt.PaymentAmount,
	)
	return receipt, nil
}

func (g *Generator) snapshot(in Input, charge *gateway.Charge) (*models.PaymentReceipt, error) {
	now := g.now().UTC()
	number := g.number(now)

	paidAt := now
	if charge.ReceivedDate != nil {
		paidAt = charge.ReceivedDate.UTC()
	}
	method := charge.Method
	if method == "" {
		method = in.Method
	}

	lines, err := json.Marshal(in.Pets)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pet lines: %w", err)
	}
	names := make([]string, 0, len(in.Pets))
	for _, p := range in.Pets {
		names = append(names, p.Name)
	}

	return &models.PaymentReceipt{
		ID:                uuid.New(),
		ContractID:        in.ContractID,
		PaymentID:         in.PaymentID,
		ReceiptNumber:     number,
		PaymentAmount:     charge.Amount,
		PaymentDate:       paidAt,
		PaymentMethod:     method,
		Installments:      max(1, charge.Installments),
		BillingPeriod:     in.BillingPeriod,
		ObjectKey:         objectKey(number),
		FileName:          fileName(number),
		Status:            models.ReceiptGenerated,
		ProofOfSale:       charge.ProofOfSale,
		AuthorizationCode: charge.AuthorizationCode,
		TransactionID:     charge.TransactionID,
		ReturnCode:        charge.ReturnCode,
		ReturnMessage:     charge.ReturnMessage,
		ClientName:        in.ClientName,
		ClientEmail:       in.ClientEmail,
		ClientTaxID:       in.ClientTaxID,
		PetName:           strings.Join(names, ", "),
		PlanName:          in.PlanName,
		PetLines:          lines,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// GenerateForContracts builds the snapshot from stored contracts sharing one
// payment id, for callers that did not run the checkout themselves.
func (g *Generator) GenerateForContracts(ctx context.Context, paymentID string, contracts []models.Contract) (*models.PaymentReceipt, error) {
	if len(contracts) == 0 {
		return nil, apperrors.NotFound("contracts for payment", paymentID)
	}
	first := contracts[0]
	client, err := g.store.GetClient(ctx, first.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load client: %w", err)
	}

	in := Input{
		PaymentID:     paymentID,
		ContractID:    &first.ID,
		ClientName:    client.FullName,
		ClientEmail:   client.Email,
		ClientTaxID:   client.TaxID,
		BillingPeriod: first.BillingPeriod,
		Method:        first.PaymentMethod,
	}
	for _, c := range contracts {
		line := models.ReceiptPetLine{Amount: c.Amount(), BaseAmount: c.Amount()}
		if pet, err := g.store.GetPet(ctx, c.PetID); err == nil {
			line.Name, line.Species, line.Breed = pet.Name, pet.Species, pet.Breed
		}
		if plan, err := g.store.GetPlan(ctx, c.PlanID); err == nil {
			line.PlanName = plan.Name
			if in.PlanName == "" {
				in.PlanName = plan.Name
			}
			if plan.BasePrice > 0 && c.Amount() < plan.BasePrice {
				line.BaseAmount = plan.BasePrice
				line.DiscountPercent = int((plan.BasePrice - c.Amount()) * 100 / plan.BasePrice)
			}
		}
		in.Pets = append(in.Pets, line)
	}
	return g.Generate(ctx, in)
}

// Download is what Open hands back: a signed URL, or the bytes themselves.
type Download struct {
	Receipt     *models.PaymentReceipt
	URL         string
	Data        []byte
	Regenerated bool
}

// Open serves a stored receipt. A missing object is rebuilt from the row
// snapshot without calling the gateway and re-uploaded on a best-effort basis.
func (g *Generator) Open(ctx context.Context, receiptID uuid.UUID) (*Download, error) {
	r, err := g.store.GetReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	log := logging.FromContext(ctx).With("receipt_number", r.ReceiptNumber)

	exists, err := g.objects.Exists(ctx, r.ObjectKey)
	if err != nil {
		log.WarnContext(ctx, "object store check failed, regenerating receipt", "error", err.Error())
		exists = false
	}

	d := &Download{Receipt: r}
	switch {
	case exists && !g.stream:
		url, err := g.objects.SignedURL(ctx, r.ObjectKey, g.urlTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to sign receipt URL: %w", err)
		}
		d.URL = url
	case exists:
		data, err := g.objects.Get(ctx, r.ObjectKey)
		if err != nil && !errors.Is(err, objectstore.ErrObjectNotFound) {
			return nil, fmt.Errorf("failed to read receipt: %w", err)
		}
		d.Data = data
	}

	if d.URL == "" && d.Data == nil {
		data, err := g.renderer.Render(r)
		if err != nil {
			return nil, fmt.Errorf("failed to regenerate receipt %s: %w", r.ReceiptNumber, err)
		}
		if err := g.objects.Put(ctx, r.ObjectKey, data, contentTypePDF); err != nil {
			log.WarnContext(ctx, "re-upload of regenerated receipt failed", "error", err.Error())
		}
		d.Data = data
		d.Regenerated = true
		metrics.ReceiptsTotal.WithLabelValues("regenerated").Inc()
	}

	if r.Status.CanTransition(models.ReceiptDownloaded) {
		if err := g.store.UpdateReceiptStatus(ctx, r.ID, models.ReceiptDownloaded); err != nil {
			log.WarnContext(ctx, "failed to mark receipt downloaded", "error", err.Error())
		} else {
			r.Status = models.ReceiptDownloaded
		}
	}
	return d, nil
}

// MarkSent records that the receipt reached the customer. Marking an already
// sent receipt is a no-op.
func (g *Generator) MarkSent(ctx context.Context, receiptID uuid.UUID) (*models.PaymentReceipt, error) {
	r, err := g.store.GetReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	if r.Status == models.ReceiptSent {
		return r, nil
	}
	if !r.Status.CanTransition(models.ReceiptSent) {
		return nil, apperrors.Invalid("status", "cannot move receipt from %s to %s", r.Status, models.ReceiptSent)
	}
	if err := g.store.UpdateReceiptStatus(ctx, r.ID, models.ReceiptSent); err != nil {
		return nil, fmt.Errorf("failed to mark receipt sent: %w", err)
	}
	r.Status = models.ReceiptSent
	slog.InfoContext(ctx, "receipt marked sent", "receipt_number", r.ReceiptNumber)
	return r, nil
}

func (g *Generator) ListByClientEmail(ctx context.Context, email string) ([]models.PaymentReceipt, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, apperrors.Invalid("email", "is required")
	}
	return g.store.ListReceiptsByClientEmail(ctx, email)
}
