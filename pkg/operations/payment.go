package operations

import (
	"fmt"
	"time"

	"github.com/mcclellann/loanledger/pkg/interest"
	"github.com/mcclellann/loanledger/pkg/models"
	"github.com/mcclellann/loanledger/pkg/projector"
	"github.com/mcclellann/loanledger/pkg/schedule"
	"github.com/mcclellann/loanledger/pkg/tags"
	"github.com/shopspring/decimal"
)

type PaymentKind string

const (
	// PaymentFull settles the first open installment; Amount may be left zero.
	PaymentFull PaymentKind = "full"
	// PaymentPartial spreads Amount over open installments in order.
	PaymentPartial PaymentKind = "partial"
	// PaymentSelected settles the installments listed in Indices.
	PaymentSelected PaymentKind = "selected"
	// PaymentDiscountSettlement closes the contract for less than it owes.
	PaymentDiscountSettlement PaymentKind = "discount_settlement"
	// PaymentPayoff settles everything still owed.
	PaymentPayoff PaymentKind = "payoff"
	// PaymentInterestOnly pays the interest of the first open installment without settling it.
	PaymentInterestOnly PaymentKind = "interest_only"
)

type PaymentRequest struct {
	Kind    PaymentKind     `json:"kind"`
	Amount  decimal.Decimal `json:"amount"`
	Indices []int           `json:"indices,omitempty"`
}

// RegisterPayment records a payment of any kind and returns the contract's next state.
func (o *Operations) RegisterPayment(c *models.Contract, req PaymentRequest, today time.Time) (Result, error) {
	if c.Status == models.ContractStatusPaid {
		return Result{}, ErrContractPaid
	}
	if req.Amount.IsNegative() {
		return Result{}, ErrInvalidAmount
	}
	today = schedule.Day(today)
	p := projector.Project(c, today)

	switch req.Kind {
	case PaymentFull, "":
		amount := req.Amount
		if amount.IsZero() {
			if p.FirstUnpaid >= len(p.Installments) {
				return Result{}, ErrContractPaid
			}
			amount = p.Installments[p.FirstUnpaid].Remaining
		}
		return o.allocate(c, p, openFrom(p, p.FirstUnpaid), amount, today)

	case PaymentPartial:
		if !req.Amount.IsPositive() {
			return Result{}, ErrInvalidAmount
		}
		return o.allocate(c, p, openFrom(p, p.FirstUnpaid), req.Amount, today)

	case PaymentSelected:
		if len(req.Indices) == 0 {
			return Result{}, ErrInvalidIndex
		}
		var rows []int
		total := decimal.Zero
		for _, i := range req.Indices {
			if i < 0 || i >= len(p.Installments) {
				return Result{}, fmt.Errorf("%w: %d", ErrInvalidIndex, i)
			}
			if p.Installments[i].Status == projector.StatusPaid {
				continue
			}
			rows = append(rows, i)
			total = total.Add(p.Installments[i].Remaining)
		}
		amount := req.Amount
		if amount.IsZero() {
			amount = total
		}
		return o.allocate(c, p, rows, amount, today)

	case PaymentDiscountSettlement:
		if !req.Amount.IsPositive() {
			return Result{}, ErrInvalidAmount
		}
		return discountSettlement(c, req.Amount), nil

	case PaymentPayoff:
		return payoff(c, p), nil

	case PaymentInterestOnly:
		return interestOnly(c, p, req.Amount, today)
	}
	return Result{}, fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
}

// openFrom lists the non-paid installment indexes from start onward.
func openFrom(p projector.Projection, start int) []int {
	var rows []int
	for i := start; i < len(p.Installments); i++ {
		if p.Installments[i].Status != projector.StatusPaid {
			rows = append(rows, i)
		}
	}
	return rows
}

// allocate spreads amount over rows in order, rewriting each touched
// installment's cumulative PARTIAL_PAID tag and its advance sub-installment.
func (o *Operations) allocate(c *models.Contract, p projector.Projection, rows []int, amount decimal.Decimal, today time.Time) (Result, error) {
	if !amount.IsPositive() {
		return Result{}, ErrInvalidAmount
	}
	annotation := seedLegacy(c.Annotation, p)
	left := amount
	last := tags.PartialPaid{Index: -1}

	for _, i := range rows {
		if !left.IsPositive() {
			break
		}
		row := p.Installments[i]
		portion := decimal.Min(row.Remaining, left)
		if !portion.IsPositive() {
			continue
		}
		left = left.Sub(portion)
		paid := row.Paid.Add(portion)
		annotation = tags.Upsert(annotation, tags.PartialPaid{Index: i, Amount: paid})
		annotation = o.trackAdvance(annotation, row, paid, today)
		last = tags.PartialPaid{Index: i, Amount: paid}
	}
	if left.IsPositive() {
		// Up to a cent per installment is lost rounding the installment value;
		// it lands on the last installment paid.
		slack := decimal.New(1, -2).Mul(decimal.NewFromInt(int64(len(p.Installments))))
		if last.Index < 0 || left.GreaterThan(slack) || amount.GreaterThan(c.OutstandingBalance) {
			return Result{}, fmt.Errorf("%w: %s exceeds what the installments owe", ErrInvalidAmount, amount.StringFixed(2))
		}
		last.Amount = last.Amount.Add(left)
		annotation = tags.Upsert(annotation, last)
	}

	r := unchanged(c)
	r.NextAnnotation = annotation
	r.Type = models.TransactionTypePayment
	r.Amount = amount
	r.PrincipalAmount, r.InterestAmount = split(amount, p)
	r.NextTotalPaid = c.TotalPaid.Add(amount)
	r.NextOutstandingBalance = nonNegative(c.OutstandingBalance.Sub(amount))
	r.NextStatus = statusAfter(c, r, today)
	return r, nil
}

// trackAdvance keeps the advance sub-installment of a row in step with its
// new cumulative paid amount. An early payment that leaves a remainder opens
// one; covering the installment renames the pending one to paid.
func (o *Operations) trackAdvance(annotation string, row projector.Installment, paid decimal.Decimal, today time.Time) string {
	remainder := nonNegative(row.EffectiveValue.Sub(paid))
	covered := remainder.LessThanOrEqual(row.EffectiveValue.Mul(decimal.RequireFromString("0.01")))

	if row.Advance != nil {
		adv := *row.Advance
		if covered {
			adv.Paid = true
		} else {
			adv.Remaining = remainder
		}
		return tags.Upsert(annotation, adv)
	}
	if covered || !row.DueDate.After(today) {
		return annotation
	}
	return tags.Upsert(annotation, tags.AdvanceSubinstallment{
		Index:     row.Index,
		Remaining: remainder,
		DueDate:   row.DueDate,
		ID:        o.NewID(),
	})
}

// seedLegacy writes the paid amounts a legacy contract derives from TotalPaid
// as explicit PARTIAL_PAID tags. Once any such tag exists the derivation
// stops, so the first tracked payment must carry the earlier ones with it.
func seedLegacy(annotation string, p projector.Projection) string {
	if !p.Legacy {
		return annotation
	}
	for _, row := range p.Installments {
		if row.Paid.IsPositive() {
			annotation = tags.Upsert(annotation, tags.PartialPaid{Index: row.Index, Amount: row.Paid})
		}
	}
	return annotation
}

// split divides an amount between principal and interest in the same
// proportion as the contract's installments.
func split(amount decimal.Decimal, p projector.Projection) (principal, interestPart decimal.Decimal) {
	pShare, _ := interest.Shares(p.EffectivePrincipal, p.TotalInterest)
	principal = amount.Mul(pShare).Round(2)
	return principal, amount.Sub(principal)
}

// statusAfter closes the contract when nothing is left to pay.
func statusAfter(c *models.Contract, r Result, today time.Time) models.ContractStatus {
	if !r.NextOutstandingBalance.IsPositive() {
		return models.ContractStatusPaid
	}
	next := *c
	next.Annotation = r.NextAnnotation
	next.TotalPaid = r.NextTotalPaid
	p := projector.Project(&next, today)
	if p.PaidCount >= len(p.Installments) {
		return models.ContractStatusPaid
	}
	return models.ContractStatusActive
}

// discountSettlement books the whole amount as principal and force-closes the contract.
func discountSettlement(c *models.Contract, amount decimal.Decimal) Result {
	r := unchanged(c)
	r.Type = models.TransactionTypeDiscountSettlement
	r.Amount = amount
	r.PrincipalAmount = amount
	r.InterestAmount = decimal.Zero
	r.NextTotalPaid = c.TotalPaid.Add(amount)
	r.NextOutstandingBalance = decimal.Zero
	r.NextStatus = models.ContractStatusPaid
	return r
}

// payoff settles every open installment. The interest still due is capped at
// the total interest in force minus the interest already received, so manual
// rounding at creation is never exceeded.
func payoff(c *models.Contract, p projector.Projection) Result {
	pShare, iShare := interest.Shares(p.EffectivePrincipal, p.TotalInterest)

	annotation := seedLegacy(c.Annotation, p)
	baseLeft, penaltyLeft, interestPaid := decimal.Zero, decimal.Zero, decimal.Zero
	for _, row := range p.Installments {
		interestPaid = interestPaid.Add(decimal.Min(row.Paid, row.BaseValue).Mul(iShare))
		if row.Status == projector.StatusPaid {
			continue
		}
		baseRemaining := nonNegative(row.BaseValue.Sub(row.Paid))
		baseLeft = baseLeft.Add(baseRemaining)
		penaltyLeft = penaltyLeft.Add(nonNegative(row.Remaining.Sub(baseRemaining)))

		annotation = tags.Upsert(annotation, tags.PartialPaid{Index: row.Index, Amount: row.Paid.Add(row.Remaining)})
		if row.Advance != nil {
			adv := *row.Advance
			adv.Paid = true
			annotation = tags.Upsert(annotation, adv)
		}
	}
	interestPaid = interestPaid.Add(p.State.InterestOnlyTotal())

	interestCap := nonNegative(p.TotalInterest.Sub(interestPaid))
	interestDue := decimal.Min(baseLeft.Mul(iShare), interestCap).Round(2)
	principalDue := baseLeft.Mul(pShare).Round(2)

	r := unchanged(c)
	r.NextAnnotation = annotation
	r.Type = models.TransactionTypePayoff
	r.PrincipalAmount = principalDue
	r.InterestAmount = interestDue.Add(penaltyLeft)
	r.Amount = principalDue.Add(r.InterestAmount)
	r.NextTotalPaid = c.TotalPaid.Add(r.Amount)
	r.NextOutstandingBalance = decimal.Zero
	r.NextStatus = models.ContractStatusPaid
	return r
}

// interestOnly records the interest of the first open installment as paid
// without moving the installment itself. Earlier interest-only payments never
// count toward the installment, so the same index is charged again next time.
func interestOnly(c *models.Contract, p projector.Projection, amount decimal.Decimal, today time.Time) (Result, error) {
	if p.FirstUnpaid >= len(p.Installments) {
		return Result{}, ErrContractPaid
	}
	row := p.Installments[p.FirstUnpaid]
	if amount.IsZero() {
		_, iShare := interest.Shares(p.EffectivePrincipal, p.TotalInterest)
		amount = row.BaseValue.Mul(iShare).Round(2)
	}
	if !amount.IsPositive() {
		return Result{}, ErrInvalidAmount
	}

	annotation := tags.Append(c.Annotation, tags.InterestOnlyPaid{Index: row.Index, Amount: amount, Date: today})
	annotation = tags.Upsert(annotation, tags.Marker{Name: tags.KindInterestOnlyPayment})

	r := unchanged(c)
	r.NextAnnotation = annotation
	r.Type = models.TransactionTypeInterestOnly
	r.Amount = amount
	r.PrincipalAmount = decimal.Zero
	r.InterestAmount = amount
	r.NextTotalPaid = c.TotalPaid.Add(amount)
	return r, nil
}
