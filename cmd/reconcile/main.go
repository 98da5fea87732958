package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/unipet/billing-engine/internal/config"
	"github.com/unipet/billing-engine/internal/database"
	"github.com/unipet/billing-engine/internal/gateway/cielo"
	"github.com/unipet/billing-engine/internal/logging"
	"github.com/unipet/billing-engine/internal/objectstore"
	"github.com/unipet/billing-engine/internal/receipts"
	"github.com/unipet/billing-engine/internal/reconcile"
	"github.com/unipet/billing-engine/internal/store"
)

// connect builds the reconciliation service. Tests replace it.
var connect = connectProduction

var timeout time.Duration

var rootCmd = &cobra.Command{
	Use:           "reconcile",
	Short:         "Bring stored contracts in line with the payment gateway",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Evaluate every contract and apply suspension and cancellation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, svc *reconcile.Service) (any, error) {
			return svc.Sweep(ctx)
		})
	},
}

var orderCmd = &cobra.Command{
	Use:   "order <order-id>",
	Short: "Resolve a checkout whose gateway call ended without an answer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, svc *reconcile.Service) (any, error) {
			return svc.ResolveOrder(ctx, args[0])
		})
	},
}

var paymentCmd = &cobra.Command{
	Use:   "payment <payment-id>",
	Short: "Query one payment and apply it to its contracts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, svc *reconcile.Service) (any, error) {
			return svc.SyncPayment(ctx, args[0])
		})
	},
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "abort the run after this long")
	rootCmd.AddCommand(sweepCmd, orderCmd, paymentCmd)
}

func main() {
	logging.Setup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes fn with a connected service and prints its result as JSON.
func run(cmd *cobra.Command, fn func(context.Context, *reconcile.Service) (any, error)) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ctx = logging.WithCorrelationID(ctx, "reconcile-"+cmd.Name()+"-"+time.Now().UTC().Format("20060102T150405"))

	svc, closeFn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	out, err := fn(ctx, svc)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func connectProduction(ctx context.Context) (*reconcile.Service, func(), error) {
	cfg := config.Load()

	if err := database.Connect(cfg); err != nil {
		return nil, nil, err
	}
	pgLogHandler := logging.NewPGHandler(database.DB)
	slog.SetDefault(slog.New(logging.NewMultiHandler(logging.NewStdoutHandler(), pgLogHandler)))

	objects, err := objectstore.NewMinioStore(&cfg.Minio)
	if err != nil {
		return nil, nil, err
	}

	st := store.NewGormStore(database.DB)
	gw := cielo.NewClient(&cfg.Cielo)
	generator := receipts.NewGenerator(st, gw, objects,
		receipts.NewPDFRenderer(receipts.Company{
			Name:         cfg.Receipts.CompanyName,
			TaxID:        cfg.Receipts.CompanyCNPJ,
			SupportEmail: cfg.Receipts.SupportMail,
		}),
		receipts.Options{URLTTL: cfg.Receipts.URLTTL, Stream: cfg.Receipts.Stream},
	)

	closeFn := func() {
		pgLogHandler.Stop()
		if err := database.Close(); err != nil {
			slog.ErrorContext(ctx, "database close error", "error", err)
		}
	}
	return reconcile.New(st, gw, generator), closeFn, nil
}
