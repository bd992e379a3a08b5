package operations

import (
	"fmt"
	"time"

	"github.com/mcclellann/loanledger/pkg/models"
	"github.com/mcclellann/loanledger/pkg/projector"
	"github.com/mcclellann/loanledger/pkg/tags"
	"github.com/shopspring/decimal"
)

// ApplyPenalty stores a penalty for one installment, replacing any earlier one.
func (o *Operations) ApplyPenalty(c *models.Contract, index int, amount decimal.Decimal) (Result, error) {
	if err := checkIndex(c, index); err != nil {
		return Result{}, err
	}
	if !amount.IsPositive() {
		return Result{}, ErrInvalidAmount
	}
	return penaltyChange(c, tags.Upsert(c.Annotation, tags.DailyPenalty{Index: index, Amount: amount})), nil
}

// EditPenalty changes the amount of an existing penalty.
func (o *Operations) EditPenalty(c *models.Contract, index int, amount decimal.Decimal) (Result, error) {
	if _, ok := penalties(c)[index]; !ok {
		return Result{}, fmt.Errorf("%w: %d", ErrPenaltyNotFound, index)
	}
	return o.ApplyPenalty(c, index, amount)
}

// RemovePenalty drops the penalty of one installment.
func (o *Operations) RemovePenalty(c *models.Contract, index int) (Result, error) {
	if _, ok := penalties(c)[index]; !ok {
		return Result{}, fmt.Errorf("%w: %d", ErrPenaltyNotFound, index)
	}
	annotation := tags.Remove(c.Annotation, func(e tags.Event) bool {
		p, ok := e.(tags.DailyPenalty)
		return ok && p.Index == index
	})
	return penaltyChange(c, annotation), nil
}

func (o *Operations) RemoveAllPenalties(c *models.Contract) (Result, error) {
	return penaltyChange(c, tags.RemoveKinds(c.Annotation, tags.KindDailyPenalty)), nil
}

// ApplyOverduePenalties materialises the contract's overdue rule as one
// penalty per overdue installment, each the cumulative amount for its days
// late as of today. Running it twice on the same day changes nothing.
func (o *Operations) ApplyOverduePenalties(c *models.Contract, today time.Time) (Result, error) {
	if c.Status == models.ContractStatusPaid {
		return Result{}, ErrContractPaid
	}
	res, ok := projector.ComputedPenalty(c, today)
	if !ok {
		return Result{}, ErrNoOverdueConfig
	}
	annotation := c.Annotation
	for _, line := range res.Breakdown {
		annotation = tags.Upsert(annotation, tags.DailyPenalty{Index: line.Index, Amount: line.Amount})
	}
	return penaltyChange(c, annotation), nil
}

// SetOverdueConfig stores the rule used to compute overdue penalties.
func (o *Operations) SetOverdueConfig(c *models.Contract, cfg tags.OverdueConfig) (Result, error) {
	if cfg.Type != tags.PenaltyPercentage && cfg.Type != tags.PenaltyFixed {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidPenalty, cfg.Type)
	}
	if !cfg.Value.IsPositive() {
		return Result{}, ErrInvalidAmount
	}
	r := unchanged(c)
	r.NextAnnotation = tags.Upsert(c.Annotation, cfg)
	return r, nil
}

func (o *Operations) ClearOverdueConfig(c *models.Contract) (Result, error) {
	r := unchanged(c)
	r.NextAnnotation = tags.RemoveKinds(c.Annotation, tags.KindOverdueConfig)
	return r, nil
}

// ApplyRenewalFee raises one installment to its base value plus fee. The
// balance grows by the difference from any fee already charged on it.
func (o *Operations) ApplyRenewalFee(c *models.Contract, index int, fee decimal.Decimal) (Result, error) {
	if c.Status == models.ContractStatusPaid {
		return Result{}, ErrContractPaid
	}
	if err := checkIndex(c, index); err != nil {
		return Result{}, err
	}
	if !fee.IsPositive() {
		return Result{}, ErrInvalidAmount
	}
	p := projector.Project(c, time.Time{})
	old := decimal.Zero
	if prev, ok := p.State.RenewalFees[index]; ok {
		old = prev.Fee
	}

	r := unchanged(c)
	r.NextAnnotation = tags.Upsert(c.Annotation, tags.RenewalFeeInstallment{
		Index:    index,
		NewValue: p.InstallmentValue.Add(fee),
		Fee:      fee,
	})
	delta := fee.Sub(old)
	r.NextOutstandingBalance = nonNegative(c.OutstandingBalance.Add(delta))
	r.Type = models.TransactionTypePenalty
	r.Amount = delta
	r.InterestAmount = delta
	return r, nil
}

// RegisterHistoricalInterest records interest received before the contract
// was entered into the ledger. It counts toward realized profit only.
func (o *Operations) RegisterHistoricalInterest(c *models.Contract, amount decimal.Decimal) (Result, error) {
	if !amount.IsPositive() {
		return Result{}, ErrInvalidAmount
	}
	annotation := tags.Append(c.Annotation, tags.HistoricalInterestReceived{Amount: amount})
	annotation = tags.Upsert(annotation, tags.Marker{Name: tags.KindHistoricalContract})
	annotation = tags.Upsert(annotation, tags.Marker{Name: tags.KindHistoricalInterestContract})

	r := unchanged(c)
	r.NextAnnotation = annotation
	r.Type = models.TransactionTypeInterestOnly
	r.Amount = amount
	r.InterestAmount = amount
	return r, nil
}

// penaltyChange moves the balance by the change in the stored penalty total.
func penaltyChange(c *models.Contract, annotation string) Result {
	before := projector.Fold(tags.Decode(c.Annotation)).PenaltyTotal()
	after := projector.Fold(tags.Decode(annotation)).PenaltyTotal()
	delta := after.Sub(before)

	r := unchanged(c)
	r.NextAnnotation = annotation
	r.NextOutstandingBalance = nonNegative(c.OutstandingBalance.Add(delta))
	if !delta.IsZero() {
		r.Type = models.TransactionTypePenalty
		r.Amount = delta
		r.InterestAmount = delta
	}
	return r
}

func penalties(c *models.Contract) map[int]decimal.Decimal {
	return projector.Fold(tags.Decode(c.Annotation)).Penalties
}

func checkIndex(c *models.Contract, index int) error {
	if index < 0 || index >= c.Count() {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	return nil
}
