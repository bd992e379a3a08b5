package interest

import (
	"math"

	"github.com/mcclellann/loanledger/pkg/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Total returns the total interest of a loan under the given mode.
//
//	per_installment: p * r * n
//	on_total:        p * r
//	compound:        p * (1+r)^n - p
//
// where r is the percent rate divided by 100. The result is rounded to cents.
func Total(principal, ratePercent decimal.Decimal, count int, mode models.InterestMode) decimal.Decimal {
	if count < 1 {
		count = 1
	}
	r := ratePercent.Div(hundred)
	n := decimal.NewFromInt(int64(count))

	var total decimal.Decimal
	switch mode {
	case models.InterestModeOnTotal:
		total = principal.Mul(r)
	case models.InterestModeCompound:
		factor := decimal.NewFromInt(1).Add(r).Pow(n)
		total = principal.Mul(factor).Sub(principal)
	default:
		total = principal.Mul(r).Mul(n)
	}
	return total.Round(2)
}

// ForContract resolves the authoritative total interest of a contract.
// A stored value wins when it is positive, or when the rate is exactly zero,
// so manual rounding done at creation time is preserved.
func ForContract(c *models.Contract) decimal.Decimal {
	if c.StoredTotalInterest.Valid {
		stored := c.StoredTotalInterest.Decimal
		if stored.IsPositive() || c.InterestRate.IsZero() {
			return stored
		}
	}
	if c.PaymentType == models.PaymentTypeDaily && c.InstallmentValue.IsPositive() {
		// Daily contracts are priced by installment value, never by rate.
		total := c.InstallmentValue.Mul(decimal.NewFromInt(int64(c.Count()))).Sub(c.PrincipalAmount)
		if total.IsNegative() {
			return decimal.Zero
		}
		return total.Round(2)
	}
	if c.InterestRate.IsZero() {
		return decimal.Zero
	}
	return Total(c.PrincipalAmount, c.InterestRate, c.Count(), c.InterestMode)
}

// InstallmentValue returns the base value of one installment.
func InstallmentValue(c *models.Contract) decimal.Decimal {
	if c.PaymentType == models.PaymentTypeDaily && c.InstallmentValue.IsPositive() {
		return c.InstallmentValue
	}
	return PerInstallment(c.PrincipalAmount, ForContract(c), c.Count())
}

// PerInstallment splits principal plus interest evenly across count installments.
func PerInstallment(principal, totalInterest decimal.Decimal, count int) decimal.Decimal {
	if count < 1 {
		count = 1
	}
	return principal.Add(totalInterest).Div(decimal.NewFromInt(int64(count))).Round(2)
}

// Shares returns the principal and interest fractions of every unit paid.
func Shares(principal, totalInterest decimal.Decimal) (principalShare, interestShare decimal.Decimal) {
	total := principal.Add(totalInterest)
	if !total.IsPositive() {
		return decimal.NewFromInt(1), decimal.Zero
	}
	interestShare = totalInterest.Div(total)
	return decimal.NewFromInt(1).Sub(interestShare), interestShare
}

// SolveRate derives the percent rate that produces the target installment
// value. It is used when the installment amount is edited instead of the rate.
func SolveRate(principal, targetInstallment decimal.Decimal, count int, mode models.InterestMode) decimal.Decimal {
	if count < 1 {
		count = 1
	}
	p := principal
	if !p.IsPositive() {
		p = decimal.NewFromInt(1)
	}
	n := decimal.NewFromInt(int64(count))
	totalInterest := targetInstallment.Mul(n).Sub(p)
	if !totalInterest.IsPositive() {
		return decimal.Zero
	}

	var rate decimal.Decimal
	switch mode {
	case models.InterestModeOnTotal:
		rate = totalInterest.Div(p).Mul(hundred)
	case models.InterestModeCompound:
		// (1+r)^n = (p+I)/p; the root is taken in float64 and brought back to decimal.
		ratio := p.Add(totalInterest).Div(p).InexactFloat64()
		root := math.Pow(ratio, 1/float64(count)) - 1
		rate = decimal.NewFromFloat(root).Mul(hundred)
	default:
		rate = totalInterest.Div(p.Mul(n)).Mul(hundred)
	}
	return rate.Round(4)
}
