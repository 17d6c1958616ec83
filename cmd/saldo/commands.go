package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/warp/extras-engine/factory"
	"github.com/warp/extras-engine/generic"
	"github.com/warp/extras-engine/saldo"
)

// NewRootCmd creates the top-level "saldo" command.
func NewRootCmd() *cobra.Command {
	var rulesFile string

	root := &cobra.Command{
		Use:          "saldo",
		Short:        "Extra-staff balance calculator",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&rulesFile, "rules", "", "JSON rules file (defaults apply when empty)")

	loadRules := func() (saldo.Rules, error) {
		return factory.NewRulesFactory().LoadFile(rulesFile)
	}

	root.AddCommand(
		newBalanceCmd(),
		newWeekCmd(),
		newDecideCmd(loadRules),
	)
	return root
}

// balanceFlags are the staffing inputs shared by balance and decide.
type balanceFlags struct {
	input saldo.BalancePeriodInput
	rate  string
}

func (b *balanceFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&b.input.ApprovedHeadcount, "approved", 0, "Approved headcount")
	f.IntVar(&b.input.ActualHeadcount, "actual", 0, "Actual headcount")
	f.IntVar(&b.input.DaysOff, "days-off", 0, "Scheduled rest days")
	f.IntVar(&b.input.Sundays, "sundays", 0, "Sundays")
	f.IntVar(&b.input.Demand, "demand", 0, "Extra demand days")
	f.IntVar(&b.input.MedicalLeave, "leave", 0, "Medical leave days")
	f.IntVar(&b.input.ExtrasRequested, "extras", 0, "Extras already used in the period")
	f.StringVar(&b.rate, "rate", "0", "Daily rate")
}

func (b *balanceFlags) dailyRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(b.rate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --rate %q: %w", b.rate, err)
	}
	return rate, nil
}

// =============================================================================
// balance
// =============================================================================

func newBalanceCmd() *cobra.Command {
	var flags balanceFlags

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Compute quota, balance and cost for one period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rate, err := flags.dailyRate()
			if err != nil {
				return err
			}
			result, err := saldo.ComputeBalance(flags.input, rate)
			if err != nil {
				return err
			}
			printBalance(cmd.OutOrStdout(), result)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func printBalance(w io.Writer, r saldo.BalanceResult) {
	fmt.Fprintf(w, "Open positions:     %d\n", r.OpenPositions)
	fmt.Fprintf(w, "Daily slots (gap):  %d\n", r.DailySlotsFromGap)
	fmt.Fprintf(w, "Worker-day quota:   %d\n", r.TotalWorkerDayQuota)
	fmt.Fprintf(w, "Balance:            %d\n", r.Balance)
	fmt.Fprintf(w, "Daily rate:         %s\n", saldo.FormatMoney(r.DailyRate))
	fmt.Fprintf(w, "Cost:               %s\n", saldo.FormatMoney(r.Cost))
	fmt.Fprintf(w, "Balance value:      %s\n", saldo.FormatMoney(r.BalanceValueInCurrency))
}

// =============================================================================
// week
// =============================================================================

func newWeekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "week DATE",
		Short: "Show the Monday-Sunday week containing DATE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := generic.ParseDate(args[0])
			if err != nil {
				return err
			}
			week := generic.WeekOf(date)
			year, num := week.ISOWeek()
			fmt.Fprintf(cmd.OutOrStdout(), "%s .. %s (ISO %d-W%02d)\n", week.Start, week.End, year, num)
			return nil
		},
	}
}

// =============================================================================
// decide
// =============================================================================

func newDecideCmd(loadRules func() (saldo.Rules, error)) *cobra.Command {
	var (
		flags  balanceFlags
		sector string
		reason string
		dates  []string
		used   int
	)

	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Decide whether a request would be auto-approved",
		Long: "Builds a balance record covering the week of the first date, " +
			"marks --used days of that week as already approved, and runs the admission decision.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := loadRules()
			if err != nil {
				return err
			}
			rate, err := flags.dailyRate()
			if err != nil {
				return err
			}

			cand := saldo.Candidate{Sector: sector, Reason: reason}
			for _, raw := range dates {
				date, err := generic.ParseDate(strings.TrimSpace(raw))
				if err != nil {
					return err
				}
				cand.WorkDays = append(cand.WorkDays, saldo.WorkDay{Date: date, Shift: saldo.ShiftFullDay})
			}
			week, err := cand.Week()
			if err != nil {
				return err
			}
			if used < 0 || used > 7 {
				return fmt.Errorf("--used must be between 0 and 7, got %d", used)
			}

			input := flags.input
			input.Sector = sector
			input.PeriodStart, input.PeriodEnd = week.Start, week.End
			records := []saldo.BalancePeriodRecord{{
				ID:                 "cli",
				BalancePeriodInput: input,
				DailyRateSnapshot:  decimal.NewNullDecimal(rate),
			}}

			var approved []saldo.ExtraRequest
			if used > 0 {
				prior := saldo.ExtraRequest{Sector: sector, Reason: "CLI", Status: saldo.StatusApproved}
				for i := 0; i < used; i++ {
					prior.WorkDays = append(prior.WorkDays, saldo.WorkDay{Date: week.Start.AddDays(i), Shift: saldo.ShiftFullDay})
				}
				approved = append(approved, prior)
			}

			d, err := saldo.DecideApproval(rules, cand, records, approved, rate)
			if err != nil {
				return err
			}
			printDecision(cmd.OutOrStdout(), d)
			return nil
		},
	}

	flags.register(cmd)
	f := cmd.Flags()
	f.StringVar(&sector, "sector", "", "Sector name")
	f.StringVar(&reason, "reason", "", "Request reason")
	f.StringSliceVar(&dates, "dates", nil, "Comma separated work days (YYYY-MM-DD)")
	f.IntVar(&used, "used", 0, "Days already approved this week")
	_ = cmd.MarkFlagRequired("sector")
	_ = cmd.MarkFlagRequired("reason")
	_ = cmd.MarkFlagRequired("dates")
	return cmd
}

func printDecision(w io.Writer, d saldo.Decision) {
	fmt.Fprintf(w, "Week:           %s\n", d.Week)
	fmt.Fprintf(w, "Requested days: %d\n", d.RequestedDays)
	if d.Remaining.Known() {
		fmt.Fprintf(w, "Remaining:      %d (%s)\n", d.Remaining.Days, d.Remaining.Source)
	} else {
		fmt.Fprintf(w, "Remaining:      unknown (%s)\n", d.Remaining.Source)
	}
	fmt.Fprintf(w, "Outcome:        %s\n", d.Outcome)
	fmt.Fprintf(w, "Auto-approve:   %t\n", d.AutoApprove)
}
