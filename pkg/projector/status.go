package projector

import (
	"time"

	"github.com/mcclellann/loanledger/pkg/models"
	"github.com/mcclellann/loanledger/pkg/schedule"
	"github.com/shopspring/decimal"
)

// OverdueInstallment is one open installment whose due date has passed.
type OverdueInstallment struct {
	Index       int             `json:"index"`
	DueDate     time.Time       `json:"due_date"`
	DaysOverdue int             `json:"days_overdue"`
	Amount      decimal.Decimal `json:"amount"` // still owed on the installment
}

// LoanStatus is the summary shown for a contract.
type LoanStatus struct {
	IsPaid              bool                 `json:"is_paid"`
	IsOverdue           bool                 `json:"is_overdue"`
	OverdueInstallments []OverdueInstallment `json:"overdue_installments"`
	TotalPerInstallment decimal.Decimal      `json:"total_per_installment"`
	PaidInstallments    int                  `json:"paid_installments"`
}

// GetLoanStatus derives the paid/overdue summary of a contract as of today.
// Every open installment past its due date is listed, each with its own
// lateness, since penalties accrue on all of them at once.
func GetLoanStatus(c *models.Contract, today time.Time) LoanStatus {
	p := Project(c, today)
	return statusOf(c, p, schedule.Day(today))
}

func statusOf(c *models.Contract, p Projection, today time.Time) LoanStatus {
	st := LoanStatus{
		TotalPerInstallment: p.InstallmentValue,
		PaidInstallments:    p.PaidCount,
		OverdueInstallments: []OverdueInstallment{},
	}
	st.IsPaid = isPaid(c, p)
	if st.IsPaid {
		return st
	}
	st.OverdueInstallments = Overdue(p, today)
	st.IsOverdue = len(st.OverdueInstallments) > 0
	return st
}

// Overdue lists every non-paid installment of the projection whose governing
// due date is before today.
func Overdue(p Projection, today time.Time) []OverdueInstallment {
	out := []OverdueInstallment{}
	for i, row := range p.Installments {
		if row.Status == StatusPaid || (p.Legacy && i < p.PaidCount) {
			continue
		}
		due := effectiveDueDate(row)
		days := schedule.DaysBetween(due, today)
		if due.IsZero() || days <= 0 {
			continue
		}
		out = append(out, OverdueInstallment{
			Index:       row.Index,
			DueDate:     due,
			DaysOverdue: days,
			Amount:      row.Remaining,
		})
	}
	return out
}

func isPaid(c *models.Contract, p Projection) bool {
	if c.Status == models.ContractStatusPaid {
		return true
	}
	if p.PaidCount >= len(p.Installments) {
		return true
	}
	return c.TotalPaid.IsPositive() && !c.OutstandingBalance.IsPositive()
}

// PaidInstallmentsCount returns how many installments, counted from the
// first, are settled. It stops at the first open installment, so installment
// k-1 is always paid when the result is k.
func PaidInstallmentsCount(c *models.Contract) int {
	return Project(c, time.Time{}).PaidCount
}

// FirstUnpaidInstallmentIndex returns the index of the first open installment,
// or the installment count when all are paid. Interest-only payments never
// move it.
func FirstUnpaidInstallmentIndex(c *models.Contract) int {
	return Project(c, time.Time{}).FirstUnpaid
}
