package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmynk/utilipay/internal/settlement"
)

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile [bill-id...]",
		Short: "Commit pending bills that already carry a settlement reference",
		Long: `Without arguments, sweeps every bill pending longer than --older-than.
With bill IDs, completes just those bills.

Bills pending without a reference are reported as needs_review. With
--rerun-leg the settlement leg is run again for those bills once they have
been pending longer than --older-than.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			workers, _ := cmd.Flags().GetInt("workers")
			olderThan, _ := cmd.Flags().GetDuration("older-than")
			rerunLeg, _ := cmd.Flags().GetBool("rerun-leg")
			legDelay, _ := cmd.Flags().GetDuration("leg-delay")

			store, logger, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			reconciler := settlement.NewReconciler(store, workers, logger)
			if rerunLeg {
				if legDelay == 0 {
					legDelay = -1
				}
				reconciler.WithLegRerun(&settlement.SimulatedLeg{Delay: legDelay}, olderThan)
			}
			ctx := cmd.Context()

			if len(args) == 0 {
				report, err := reconciler.Sweep(ctx, time.Now().Add(-olderThan))
				fmt.Printf("Scanned %d, committed %d, skipped %d, needs review %d, failed %d\n",
					report.Scanned, report.Committed, report.Skipped, report.NeedsReview, report.Failed)
				return err
			}

			var failed int
			for _, billID := range args {
				res, err := reconciler.Reconcile(ctx, billID)
				if err != nil {
					failed++
					fmt.Printf("%s: %s (%v)\n", billID, settlement.Outcome(err), err)
					continue
				}
				fmt.Printf("%s: committed as %s\n", billID, res.TransactionID)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d bills not reconciled", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().Int("workers", 4, "Bills reconciled concurrently during a sweep")
	cmd.Flags().Duration("older-than", 2*time.Minute, "Sweep only bills pending at least this long")
	cmd.Flags().Bool("rerun-leg", false, "Re-run the settlement leg for pending bills with no reference")
	cmd.Flags().Duration("leg-delay", settlement.DefaultLegDelay, "Simulated leg latency used by --rerun-leg (0 disables)")

	return cmd
}
