package projector

import (
	"time"

	"github.com/mcclellann/loanledger/pkg/interest"
	"github.com/mcclellann/loanledger/pkg/models"
	"github.com/mcclellann/loanledger/pkg/schedule"
	"github.com/mcclellann/loanledger/pkg/tags"
	"github.com/shopspring/decimal"
)

type InstallmentStatus string

const (
	StatusPaid    InstallmentStatus = "paid"
	StatusPartial InstallmentStatus = "partial"
	StatusPending InstallmentStatus = "pending"
	StatusOverdue InstallmentStatus = "overdue"
)

// paidThreshold is the fraction of an installment that counts as settled;
// it absorbs cent rounding on split payments.
var paidThreshold = decimal.RequireFromString("0.99")

// Installment is the derived state of one scheduled installment.
type Installment struct {
	Index          int                         `json:"index"`
	DueDate        time.Time                   `json:"due_date"`
	BaseValue      decimal.Decimal             `json:"base_value"` // renewal override applied
	Penalty        decimal.Decimal             `json:"penalty"`
	EffectiveValue decimal.Decimal             `json:"effective_value"`
	Paid           decimal.Decimal             `json:"paid"`
	Remaining      decimal.Decimal             `json:"remaining"`
	Advance        *tags.AdvanceSubinstallment `json:"advance,omitempty"`
	Status         InstallmentStatus           `json:"status"`
}

// Projection is everything derivable from a contract and its annotation.
type Projection struct {
	State              State           `json:"-"`
	Installments       []Installment   `json:"installments"`
	InstallmentValue   decimal.Decimal `json:"installment_value"`
	EffectivePrincipal decimal.Decimal `json:"effective_principal"`
	TotalInterest      decimal.Decimal `json:"total_interest"`
	PaidCount          int             `json:"paid_count"`
	FirstUnpaid        int             `json:"first_unpaid"`
	RemainingBalance   decimal.Decimal `json:"remaining_balance"`
	PenaltyTotal       decimal.Decimal `json:"penalty_total"`
	ExpectedProfit     decimal.Decimal `json:"expected_profit"`
	RealizedProfit     decimal.Decimal `json:"realized_profit"`
	Legacy             bool            `json:"legacy"` // no per-installment tags; derived from TotalPaid
}

// Project decodes the contract's annotation and derives every installment's state as of today.
func Project(c *models.Contract, today time.Time) Projection {
	state := Fold(tags.Decode(c.Annotation))
	return project(c, state, schedule.Day(today))
}

func project(c *models.Contract, state State, today time.Time) Projection {
	count := c.Count()
	principal, totalInterest := terms(c, state)
	bases := rowBases(c, state)
	base := bases[count-1]
	dueDates := schedule.DueDates(c)

	p := Projection{
		State:              state,
		InstallmentValue:   base,
		EffectivePrincipal: principal,
		TotalInterest:      totalInterest,
		PenaltyTotal:       state.PenaltyTotal(),
		ExpectedProfit:     totalInterest,
		RemainingBalance:   decimal.Zero,
	}

	paid := state.Paid
	var legacyCount int
	if !state.HasTracking() && c.TotalPaid.IsPositive() {
		p.Legacy = true
		paid, legacyCount = legacyDistribution(c.TotalPaid.Sub(state.InterestOnlyTotal()), base, count)
	}

	p.Installments = make([]Installment, count)
	for i := 0; i < count; i++ {
		row := Installment{
			Index:     i,
			DueDate:   dueDates[i],
			BaseValue: bases[i],
			Penalty:   state.Penalties[i],
			Paid:      paid[i],
		}
		if rf, ok := state.RenewalFees[i]; ok && rf.NewValue.IsPositive() {
			row.BaseValue = rf.NewValue
		}
		row.EffectiveValue = row.BaseValue.Add(row.Penalty)
		row.Remaining = nonNegative(row.EffectiveValue.Sub(row.Paid))

		adv, pendingAdvance := state.PendingAdvance(i)
		if pendingAdvance {
			row.Advance = &adv
			if adv.Remaining.GreaterThan(row.Remaining) {
				row.Remaining = adv.Remaining
			}
		}
		row.Status = installmentStatus(row, pendingAdvance, today)
		p.Installments[i] = row
		p.RemainingBalance = p.RemainingBalance.Add(row.Remaining)
	}

	if p.Legacy {
		p.PaidCount = legacyCount
	} else {
		p.PaidCount = contiguousPaid(p.Installments)
	}
	p.FirstUnpaid = p.PaidCount
	p.RealizedProfit = realizedProfit(p, principal, totalInterest)
	return p
}

// installmentStatus applies the precedence: a pending advance keeps the
// installment open, then settled, then partially paid, then overdue by date.
func installmentStatus(row Installment, pendingAdvance bool, today time.Time) InstallmentStatus {
	settled := row.EffectiveValue.IsPositive() && row.Paid.GreaterThanOrEqual(row.EffectiveValue.Mul(paidThreshold))
	switch {
	case settled && !pendingAdvance:
		return StatusPaid
	case row.Paid.IsPositive():
		return StatusPartial
	case !today.IsZero() && effectiveDueDate(row).Before(today):
		return StatusOverdue
	}
	return StatusPending
}

// effectiveDueDate is the due date that governs lateness: a pending advance
// sub-installment carries its own date.
func effectiveDueDate(row Installment) time.Time {
	if row.Advance != nil && !row.Advance.DueDate.IsZero() {
		return row.Advance.DueDate
	}
	return row.DueDate
}

func contiguousPaid(rows []Installment) int {
	n := 0
	for _, r := range rows {
		if r.Status != StatusPaid {
			break
		}
		n++
	}
	return n
}

// legacyDistribution spreads a bare TotalPaid over installments in order for
// contracts written before per-installment tags existed.
func legacyDistribution(totalPaid, base decimal.Decimal, count int) (map[int]decimal.Decimal, int) {
	paid := make(map[int]decimal.Decimal, count)
	if !totalPaid.IsPositive() || !base.IsPositive() {
		return paid, 0
	}
	full := int(totalPaid.Div(base).Floor().IntPart())
	if full > count {
		full = count
	}
	remaining := totalPaid
	for i := 0; i < count && remaining.IsPositive(); i++ {
		portion := decimal.Min(base, remaining)
		paid[i] = portion
		remaining = remaining.Sub(portion)
	}
	return paid, full
}

// terms returns the principal and total interest in force after amortizations.
func terms(c *models.Contract, state State) (decimal.Decimal, decimal.Decimal) {
	totalInterest := interest.ForContract(c)
	if len(state.Amortizations) == 0 {
		return c.PrincipalAmount, totalInterest
	}
	principal := nonNegative(c.PrincipalAmount.Sub(state.AmortizedTotal()))
	last := state.Amortizations[len(state.Amortizations)-1]
	if last.NewPrincipal.IsPositive() || last.NewTotalInterest.IsPositive() {
		totalInterest = last.NewTotalInterest
	}
	return principal, totalInterest
}

// rowBases returns the base value of every installment. Each amortization
// spreads its new terms over the installments that were open when it was
// registered; settled ones keep the value they were paid at.
func rowBases(c *models.Contract, state State) []decimal.Decimal {
	count := c.Count()
	bases := make([]decimal.Decimal, count)
	base := interest.InstallmentValue(c)
	for i := range bases {
		bases[i] = base
	}

	principal, totalInterest := c.PrincipalAmount, interest.ForContract(c)
	for _, a := range state.Amortizations {
		principal = nonNegative(principal.Sub(a.Amount))
		if a.NewPrincipal.IsPositive() || a.NewTotalInterest.IsPositive() {
			principal, totalInterest = a.NewPrincipal, a.NewTotalInterest
		}
		if a.FirstOpen < 0 || a.FirstOpen >= count {
			continue
		}
		value := interest.PerInstallment(principal, totalInterest, count-a.FirstOpen)
		for i := a.FirstOpen; i < count; i++ {
			bases[i] = value
		}
	}
	return bases
}

func realizedProfit(p Projection, principal, totalInterest decimal.Decimal) decimal.Decimal {
	_, interestShare := interest.Shares(principal, totalInterest)
	realized := decimal.Zero
	for _, row := range p.Installments {
		realized = realized.Add(decimal.Min(row.Paid, row.BaseValue).Mul(interestShare))
	}
	realized = realized.Add(p.State.InterestOnlyTotal()).Add(p.State.HistoricalInterest)
	return realized.Round(2)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
