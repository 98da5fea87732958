package reconcile

import (
	"context"
	"fmt"

	"github.com/unipet/billing-engine/internal/billing"
	"github.com/unipet/billing-engine/internal/logging"
	"github.com/unipet/billing-engine/internal/metrics"
	"github.com/unipet/billing-engine/internal/models"
)

type SweepFailure struct {
	ContractID     string `json:"contract_id"`
	ContractNumber string `json:"contract_number"`
	Error          string `json:"error"`
}

type SweepReport struct {
	Evaluated   int                           `json:"evaluated"`
	Transitions map[models.ContractStatus]int `json:"transitions"`
	Skipped     int                           `json:"skipped"`
	Failures    []SweepFailure                `json:"failures,omitempty"`
}

// Sweep evaluates every contract and writes the derived status wherever it
// differs from the stored one. Operator statuses are left alone. One failing
// contract does not stop the run.
func (s *Service) Sweep(ctx context.Context) (*SweepReport, error) {
	log := logging.FromContext(ctx)
	report := &SweepReport{Transitions: make(map[models.ContractStatus]int)}
	now := s.now().UTC()

	for offset := 0; ; offset += s.pageSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		page, err := s.store.ListContracts(ctx, offset, s.pageSize)
		if err != nil {
			return report, fmt.Errorf("failed to list contracts: %w", err)
		}

		for i := range page {
			c := &page[i]
			report.Evaluated++
			if c.IsManualOverride() {
				report.Skipped++
				continue
			}
			result := billing.Evaluate(c, now)
			target := result.CalculatedStatus
			if target == c.Status {
				continue
			}
			if err := s.store.UpdateContractStatus(ctx, c.ID, target, models.StatusSourceSystem); err != nil {
				log.ErrorContext(ctx, "sweep failed to update contract",
					"contract_id", c.ID.String(), "error", err.Error())
				report.Failures = append(report.Failures, SweepFailure{
					ContractID:     c.ID.String(),
					ContractNumber: c.ContractNumber,
					Error:          err.Error(),
				})
				continue
			}
			report.Transitions[target]++
			metrics.ContractTransitionsTotal.WithLabelValues(string(target), "sweep").Inc()
			log.InfoContext(ctx, "contract status swept",
				"contract_id", c.ID.String(),
				"from", string(c.Status),
				"to", string(target),
				"rule", string(result.Rule),
				"should_suspend", result.ShouldSuspend,
				"should_cancel", result.ShouldCancel,
			)
		}

		if len(page) < s.pageSize {
			break
		}
	}

	log.InfoContext(ctx, "sweep completed",
		"evaluated", report.Evaluated,
		"skipped", report.Skipped,
		"failures", len(report.Failures),
	)
	return report, nil
}
