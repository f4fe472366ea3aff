package main

import (
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
)

func newClosePeriodCommand(rt *ctl) *cobra.Command {
	var company int64
	var year, month int
	cmd := &cobra.Command{
		Use:   "close-period",
		Short: "Close one fiscal month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := rt.deps.ledger.ClosePeriod(cmd.Context(), periods.ClosePeriodInput{
				CompanyID: company, Year: year, Month: month, ActorID: rt.deps.actorID,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
	cmd.Flags().Int64Var(&company, "company", 0, "company id")
	cmd.Flags().IntVar(&year, "year", 0, "fiscal year")
	cmd.Flags().IntVar(&month, "month", 0, "fiscal month (1-12)")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}

func newCloseYearCommand(rt *ctl) *cobra.Command {
	var company, retained int64
	var year int
	cmd := &cobra.Command{
		Use:   "close-year",
		Short: "Close a fiscal year into retained earnings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := periods.CloseYearInput{CompanyID: company, Year: year, ActorID: rt.deps.actorID}
			if retained > 0 {
				in.RetainedEarningsAccountID = &retained
			}
			summary, err := rt.deps.ledger.CloseYear(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"group_id":                     summary.GroupID.String(),
				"lines":                        summary.Lines,
				"net_income":                   summary.NetIncome,
				"retained_earnings_account_id": summary.RetainedEarningsAccountID,
			})
		},
	}
	cmd.Flags().Int64Var(&company, "company", 0, "company id")
	cmd.Flags().IntVar(&year, "year", 0, "fiscal year")
	cmd.Flags().Int64Var(&retained, "retained-earnings", 0, "override retained earnings account id")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func newReopenPeriodCommand(rt *ctl) *cobra.Command {
	var company int64
	var year, month int
	var reason string
	cmd := &cobra.Command{
		Use:   "reopen-period",
		Short: "Reopen a closed fiscal month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := rt.deps.ledger.ReopenPeriod(cmd.Context(), periods.ReopenInput{
				CompanyID: company, Year: year, Month: month, ActorID: rt.deps.actorID, Reason: reason,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
	cmd.Flags().Int64Var(&company, "company", 0, "company id")
	cmd.Flags().IntVar(&year, "year", 0, "fiscal year")
	cmd.Flags().IntVar(&month, "month", 0, "fiscal month (1-12)")
	cmd.Flags().StringVar(&reason, "reason", "", "why the month is reopened")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("month")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}
