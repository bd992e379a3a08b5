package projector

import (
	"time"

	"github.com/mcclellann/loanledger/pkg/models"
	"github.com/mcclellann/loanledger/pkg/schedule"
	"github.com/mcclellann/loanledger/pkg/tags"
	"github.com/shopspring/decimal"
)

type PenaltyLine struct {
	Index       int             `json:"index"`
	DaysOverdue int             `json:"days_overdue"`
	Amount      decimal.Decimal `json:"amount"`
}

type PenaltyResult struct {
	TotalPenalty decimal.Decimal `json:"total_penalty"`
	Breakdown    []PenaltyLine   `json:"breakdown"`
}

// CumulativePenalty computes the per-day penalty for every overdue installment
// and their sum:
//
//	percentage: installmentValue * rate/100 * days
//	fixed:      rate * days
func CumulativePenalty(overdue []OverdueInstallment, cfg tags.OverdueConfig, installmentValue decimal.Decimal) PenaltyResult {
	res := PenaltyResult{TotalPenalty: decimal.Zero, Breakdown: []PenaltyLine{}}
	for _, o := range overdue {
		if o.DaysOverdue <= 0 {
			continue
		}
		days := decimal.NewFromInt(int64(o.DaysOverdue))
		var amount decimal.Decimal
		switch cfg.Type {
		case tags.PenaltyFixed:
			amount = cfg.Value.Mul(days)
		default:
			amount = installmentValue.Mul(cfg.Value.Div(decimal.NewFromInt(100))).Mul(days)
		}
		amount = amount.Round(2)
		res.Breakdown = append(res.Breakdown, PenaltyLine{Index: o.Index, DaysOverdue: o.DaysOverdue, Amount: amount})
		res.TotalPenalty = res.TotalPenalty.Add(amount)
	}
	return res
}

// ComputedPenalty applies the contract's standing overdue rule, if any, to
// its overdue installments as of today. ok is false when no rule is set.
func ComputedPenalty(c *models.Contract, today time.Time) (res PenaltyResult, ok bool) {
	p := Project(c, today)
	if p.State.OverdueConfig == nil {
		return PenaltyResult{TotalPenalty: decimal.Zero, Breakdown: []PenaltyLine{}}, false
	}
	st := statusOf(c, p, schedule.Day(today))
	return CumulativePenalty(st.OverdueInstallments, *p.State.OverdueConfig, p.InstallmentValue), true
}
