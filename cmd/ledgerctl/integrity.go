package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

func newVerifyCommand(rt *ctl) *cobra.Command {
	var company int64
	var asOf string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check assets = liabilities + equity for a company",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			date := time.Now().UTC()
			if asOf != "" {
				var err error
				if date, err = parseDate(asOf); err != nil {
					return err
				}
			}
			v, err := rt.deps.ledger.VerifyBalance(cmd.Context(), company, date)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), v); err != nil {
				return err
			}
			if !v.IsBalanced {
				return fmt.Errorf("company %d out of balance by %s", company, v.BalanceDifference)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&company, "company", 0, "company id")
	cmd.Flags().StringVar(&asOf, "as-of", "", "verification date YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func newReconcileCommand(rt *ctl) *cobra.Command {
	var company int64
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare cached leaf balances with posting history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			chart, err := rt.deps.ledger.List(cmd.Context(), company)
			if err != nil {
				return err
			}
			drifted := []ledger.Reconciliation{}
			for _, a := range chart {
				if !a.IsLeaf {
					continue
				}
				rec, err := rt.deps.ledger.Reconcile(cmd.Context(), company, a.ID)
				if err != nil {
					return err
				}
				if !rec.Consistent() {
					drifted = append(drifted, rec)
				}
			}
			if err := printJSON(cmd.OutOrStdout(), drifted); err != nil {
				return err
			}
			if len(drifted) > 0 {
				return fmt.Errorf("%d accounts drifted from history", len(drifted))
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&company, "company", 0, "company id")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func newEnqueueIntegrityCommand(rt *ctl) *cobra.Command {
	var companies []int64
	var asOf string
	cmd := &cobra.Command{
		Use:   "enqueue-integrity",
		Short: "Queue a ledger integrity check on the worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload := jobs.IntegrityPayload{CompanyIDs: companies, Reason: "manual"}
			if asOf != "" {
				date, err := parseDate(asOf)
				if err != nil {
					return err
				}
				payload.AsOf = &date
			}
			info, err := rt.deps.jobs.EnqueueIntegrity(cmd.Context(), payload)
			if errors.Is(err, asynq.ErrDuplicateTask) {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "an identical check is already queued")
				return err
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s on %s\n", info.ID, info.Queue)
			return err
		},
	}
	cmd.Flags().Int64SliceVar(&companies, "company", nil, "company ids (default all)")
	cmd.Flags().StringVar(&asOf, "as-of", "", "check date YYYY-MM-DD (default run date)")
	return cmd
}
