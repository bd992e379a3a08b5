package operations

import (
	"time"

	"github.com/mcclellann/loanledger/pkg/models"
	"github.com/mcclellann/loanledger/pkg/projector"
	"github.com/mcclellann/loanledger/pkg/schedule"
	"github.com/mcclellann/loanledger/pkg/tags"
	"github.com/shopspring/decimal"
)

// RegisterAmortization reduces the principal by amount and recomputes the total
// interest as a flat newPrincipal * rate/100, whatever the contract's interest
// mode. The new terms are spread over the installments still open, and the
// outstanding balance is rewritten to what those installments owe: the new
// principal and interest plus their penalties, less what was already paid on
// them. The new interest lives in the AMORTIZATION tag, so the stored total
// keeps pricing the installments settled before it. TotalPaid is not touched;
// the returned transaction exists for the payment history only.
func (o *Operations) RegisterAmortization(c *models.Contract, amount decimal.Decimal, today time.Time) (Result, error) {
	if c.Status == models.ContractStatusPaid {
		return Result{}, ErrContractPaid
	}
	if !amount.IsPositive() {
		return Result{}, ErrInvalidAmount
	}
	today = schedule.Day(today)
	p := projector.Project(c, today)

	newPrincipal := nonNegative(c.PrincipalAmount.Sub(p.State.AmortizedTotal()).Sub(amount))
	newInterest := newPrincipal.Mul(c.InterestRate).Div(decimal.NewFromInt(100)).Round(2)

	balance := newPrincipal.Add(newInterest)
	for _, row := range p.Installments[p.FirstUnpaid:] {
		balance = balance.Add(row.Penalty).Sub(row.Paid)
	}

	r := unchanged(c)
	r.NextAnnotation = tags.Append(seedLegacy(c.Annotation, p), tags.Amortization{
		Amount:           amount,
		NewPrincipal:     newPrincipal,
		NewTotalInterest: newInterest,
		Date:             today,
		FirstOpen:        p.FirstUnpaid,
	})
	r.NextOutstandingBalance = nonNegative(balance)
	if !r.NextOutstandingBalance.IsPositive() {
		r.NextStatus = models.ContractStatusPaid
	}
	r.Type = models.TransactionTypeAmortization
	r.Amount = amount
	r.PrincipalAmount = amount
	r.InterestAmount = decimal.Zero
	return r, nil
}
