/*
calculator.go - Balance calculator

PURPOSE:
  Turns one period's staffing inputs into a worker-day quota, the remaining
  balance, and their monetary value.

FORMULA:
  openPositions       = max(0, approvedHeadcount - actualHeadcount)
  dailySlotsFromGap   = openPositions * 6
  totalWorkerDayQuota = openPositions + daysOff + sundays
                        + dailySlotsFromGap + demand + medicalLeave
  balance             = totalWorkerDayQuota - extrasRequested
  cost                = round2(extrasRequested * dailyRate)
  balanceValue        = round2(balance * dailyRate * -1)

  The sign of balanceValue is inverted on purpose: a sector over quota
  (negative balance) shows a positive overspend figure.

EXAMPLE:
  approved=10 actual=7 daysOff=2 sundays=1 demand=1 leave=0 extras=20 rate=130
    openPositions=3 dailySlotsFromGap=18 quota=25 balance=5
    cost=2600.00 balanceValue=-650.00
*/
package saldo

import (
	"github.com/shopspring/decimal"
)

// ComputeBalance validates input and computes its BalanceResult.
// Validation runs before any arithmetic; the first negative field is reported.
func ComputeBalance(input BalancePeriodInput, dailyRate decimal.Decimal) (BalanceResult, error) {
	if err := validateCounts(input, dailyRate); err != nil {
		return BalanceResult{}, err
	}

	openPositions := max(0, input.ApprovedHeadcount-input.ActualHeadcount)
	dailySlotsFromGap := openPositions * GapMultiplier
	quota := openPositions +
		input.DaysOff +
		input.Sundays +
		dailySlotsFromGap +
		input.Demand +
		input.MedicalLeave
	balance := quota - input.ExtrasRequested

	cost := round2(decimal.NewFromInt(int64(input.ExtrasRequested)).Mul(dailyRate))
	value := round2(decimal.NewFromInt(int64(balance)).Mul(dailyRate).Neg())

	return BalanceResult{
		OpenPositions:          openPositions,
		DailySlotsFromGap:      dailySlotsFromGap,
		TotalWorkerDayQuota:    quota,
		Balance:                balance,
		DailyRate:              dailyRate,
		Cost:                   cost,
		BalanceValueInCurrency: value,
	}, nil
}

// ComputeRecord computes a stored record using its own rate snapshot.
// fallbackRate is only used for records saved before snapshots existed.
func ComputeRecord(rec BalancePeriodRecord, fallbackRate decimal.Decimal) (BalanceResult, error) {
	return ComputeBalance(rec.BalancePeriodInput, rec.RateOr(fallbackRate))
}

func validateCounts(in BalancePeriodInput, dailyRate decimal.Decimal) error {
	counts := []struct {
		field string
		value int
	}{
		{"approvedHeadcount", in.ApprovedHeadcount},
		{"actualHeadcount", in.ActualHeadcount},
		{"daysOff", in.DaysOff},
		{"sundays", in.Sundays},
		{"demand", in.Demand},
		{"medicalLeave", in.MedicalLeave},
		{"extrasRequested", in.ExtrasRequested},
	}
	for _, c := range counts {
		if c.value < 0 {
			return &ValidationError{Field: c.field, Value: decimal.NewFromInt(int64(c.value)).String()}
		}
	}
	if dailyRate.IsNegative() {
		return &ValidationError{Field: "dailyRate", Value: dailyRate.String()}
	}
	return nil
}

// round2 rounds half away from zero to two places.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FormatMoney renders a currency amount with exactly two decimals.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}
