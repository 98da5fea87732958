package logging

import (
	"context"

	"github.com/getsentry/sentry-go"

	"github.com/unipet/billing-engine/internal/metrics"
)

// Escalate records an incident that needs a human: an ERROR record flagged
// escalated=true (kept by the PG handler past retention) and a Sentry event
// tagged with reason. attrs are slog key/value pairs.
func Escalate(ctx context.Context, reason, msg string, err error, attrs ...any) {
	metrics.EscalationsTotal.WithLabelValues(reason).Inc()

	args := make([]any, 0, len(attrs)+6)
	args = append(args, "escalated", true, "action", reason)
	if err != nil {
		args = append(args, "error", err.Error())
	}
	args = append(args, attrs...)
	FromContext(ctx).ErrorContext(ctx, msg, args...)

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("escalation", reason)
		if id := CorrelationID(ctx); id != "" {
			scope.SetTag("correlation_id", id)
		}
		for i := 0; i+1 < len(attrs); i += 2 {
			if key, ok := attrs[i].(string); ok {
				scope.SetExtra(key, attrs[i+1])
			}
		}
		if err != nil {
			hub.CaptureException(err)
		} else {
			hub.CaptureMessage(msg)
		}
	})
}
