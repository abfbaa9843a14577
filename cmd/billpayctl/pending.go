package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func pendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List bills waiting in PENDING_SETTLEMENT",
		RunE: func(cmd *cobra.Command, args []string) error {
			olderThan, _ := cmd.Flags().GetDuration("older-than")

			store, _, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			bills, err := store.ListPendingBills(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			if len(bills) == 0 {
				fmt.Println("No pending bills.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BILL\tAMOUNT\tPENDING SINCE\tREFERENCE")
			for _, b := range bills {
				ref := b.SettlementRef
				if ref == "" {
					ref = "(none, needs review)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.ID, b.Amount.StringFixed(2), b.PendingSince.Format(time.RFC3339), ref)
			}
			return w.Flush()
		},
	}

	cmd.Flags().Duration("older-than", 0, "Only list bills pending at least this long")

	return cmd
}
