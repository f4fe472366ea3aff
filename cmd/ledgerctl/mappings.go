package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
)

func newMapAccountCommand(rt *ctl) *cobra.Command {
	var m mappings.AccountMapping
	cmd := &cobra.Command{
		Use:   "map-account",
		Short: "Point an integration key at a ledger account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := rt.deps.ledger.MapAccount(cmd.Context(), m)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().Int64Var(&m.CompanyID, "company", 0, "company id")
	cmd.Flags().StringVar(&m.Module, "module", "", "source module, e.g. SALES, AP, AR")
	cmd.Flags().StringVar(&m.Key, "key", "", "mapping key, e.g. sales.invoice.revenue")
	cmd.Flags().Int64Var(&m.AccountID, "account", 0, "ledger account id")
	for _, f := range []string{"company", "module", "key", "account"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newPurgeKeysCommand(rt *ctl) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge-idempotency",
		Short: "Delete consumed submission keys older than a retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan < 24*time.Hour {
				return fmt.Errorf("retention %s is shorter than one day", olderThan)
			}
			n, err := rt.deps.idempotency.Cleanup(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d keys\n", n)
			return err
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 90*24*time.Hour, "retention window")
	return cmd
}
