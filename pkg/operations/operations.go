// Package operations computes the next state of a contract for each ledger
// mutation. Nothing here performs I/O: the caller reads the contract, runs an
// operation and persists the returned Result.
package operations

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/loanledger/pkg/models"
	"github.com/shopspring/decimal"
)

var (
	ErrContractPaid    = errors.New("contract is already paid")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrInvalidIndex    = errors.New("installment index out of range")
	ErrNoOverdueConfig = errors.New("contract has no overdue penalty rule")
	ErrPenaltyNotFound = errors.New("no penalty recorded for installment")
	ErrUnknownKind     = errors.New("unknown payment kind")
	ErrInvalidPenalty  = errors.New("unknown penalty type")
)

// Terms are the contract terms replaced by a renegotiation.
type Terms struct {
	PrincipalAmount     decimal.Decimal
	InterestRate        decimal.Decimal
	InterestMode        models.InterestMode
	PaymentType         models.PaymentType
	InstallmentCount    int
	InstallmentValue    decimal.Decimal
	InstallmentDueDates []time.Time
	StartDate           time.Time
	DueDate             time.Time
}

// Result is the next state of a contract after one mutation.
type Result struct {
	NextAnnotation         string
	NextOutstandingBalance decimal.Decimal
	NextTotalPaid          decimal.Decimal
	NextTotalInterest      decimal.NullDecimal   // set when the total interest changes
	NextStatus             models.ContractStatus // empty when unchanged
	NextTerms              *Terms                // set by renegotiation

	// Audit breakdown of the money that moved.
	Type            models.TransactionType
	Amount          decimal.Decimal
	PrincipalAmount decimal.Decimal
	InterestAmount  decimal.Decimal
}

// ApplyTo writes the result onto the contract.
func (r Result) ApplyTo(c *models.Contract) {
	c.Annotation = r.NextAnnotation
	c.OutstandingBalance = r.NextOutstandingBalance
	c.TotalPaid = r.NextTotalPaid
	if r.NextTotalInterest.Valid {
		c.StoredTotalInterest = r.NextTotalInterest
	}
	if r.NextStatus != "" {
		c.Status = r.NextStatus
	}
	if t := r.NextTerms; t != nil {
		c.PrincipalAmount = t.PrincipalAmount
		c.InterestRate = t.InterestRate
		c.InterestMode = t.InterestMode
		c.PaymentType = t.PaymentType
		c.InstallmentCount = t.InstallmentCount
		c.InstallmentValue = t.InstallmentValue
		c.InstallmentDueDates = t.InstallmentDueDates
		c.StartDate = t.StartDate
		c.DueDate = t.DueDate
	}
}

// Operations holds the collaborators mutations need beyond their inputs.
type Operations struct {
	// NewID names new advance sub-installments.
	NewID func() string
}

func New() *Operations {
	return &Operations{NewID: uuid.NewString}
}

// unchanged starts a result that carries the contract's current values.
func unchanged(c *models.Contract) Result {
	return Result{
		NextAnnotation:         c.Annotation,
		NextOutstandingBalance: c.OutstandingBalance,
		NextTotalPaid:          c.TotalPaid,
	}
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
