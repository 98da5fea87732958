package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/unipet/billing-engine/internal/apperrors"
	"github.com/unipet/billing-engine/internal/logging"
	"github.com/unipet/billing-engine/internal/models"
)

// NormalizeTaxID keeps only the digits of a CPF/CNPJ.
func NormalizeTaxID(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// resolveClient finds the client by tax id, then by email, and creates it
// otherwise. A concurrent checkout creating the same client surfaces as a
// unique conflict and the winner's row is reused.
func (o *Orchestrator) resolveClient(ctx context.Context, in ClientInput) (*models.Client, error) {
	client, err := o.store.FindClientByTaxID(ctx, in.TaxID)
	if err == nil {
		return client, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, fmt.Errorf("failed to look up client: %w", err)
	}

	if in.Email != "" {
		client, err = o.store.FindClientByEmail(ctx, in.Email)
		if err == nil {
			logging.FromContext(ctx).InfoContext(ctx, "client matched by email", "client_id", client.ID.String())
			return client, nil
		}
		if !apperrors.IsNotFound(err) {
			return nil, fmt.Errorf("failed to look up client: %w", err)
		}
	}

	client = &models.Client{
		FullName:   in.FullName,
		Email:      in.Email,
		Phone:      in.Phone,
		TaxID:      in.TaxID,
		CEP:        in.CEP,
		Address:    in.Address,
		Number:     in.Number,
		Complement: in.Complement,
		District:   in.District,
		City:       in.City,
		State:      strings.ToUpper(in.State),
	}
	if err := o.store.CreateClient(ctx, client); err != nil {
		if !apperrors.IsConflict(err) {
			return nil, fmt.Errorf("failed to create client: %w", err)
		}
		existing, findErr := o.store.FindClientByTaxID(ctx, in.TaxID)
		if findErr != nil {
			return nil, fmt.Errorf("failed to re-read client after conflict: %w", findErr)
		}
		return existing, nil
	}
	return client, nil
}
