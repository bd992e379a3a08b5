package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InterestMode selects the formula used to derive a contract's total interest.
type InterestMode string

const (
	InterestModePerInstallment InterestMode = "per_installment"
	InterestModeOnTotal        InterestMode = "on_total"
	InterestModeCompound       InterestMode = "compound"
)

// PaymentType selects the repayment cadence of a contract.
type PaymentType string

const (
	PaymentTypeSingle      PaymentType = "single"
	PaymentTypeInstallment PaymentType = "installment" // monthly
	PaymentTypeWeekly      PaymentType = "weekly"
	PaymentTypeBiweekly    PaymentType = "biweekly"
	PaymentTypeDaily       PaymentType = "daily"
)

type ContractStatus string

const (
	ContractStatusActive ContractStatus = "active"
	ContractStatusPaid   ContractStatus = "paid"
)

// Contract is a loan contract. Its payment history is not stored in columns:
// every event lives as a tag inside Annotation and is re-derived on read.
type Contract struct {
	ID                  uuid.UUID           `json:"id"`
	CustomerKey         string              `json:"customer_key"` // Link to external customer system
	PrincipalAmount     decimal.Decimal     `json:"principal_amount"`
	InterestRate        decimal.Decimal     `json:"interest_rate"` // Percent, e.g. 10 = 10%
	InterestMode        InterestMode        `json:"interest_mode"`
	PaymentType         PaymentType         `json:"payment_type"`
	InstallmentCount    int                 `json:"installment_count"`
	InstallmentValue    decimal.Decimal     `json:"installment_value"` // Supplied directly for daily contracts
	InstallmentDueDates []time.Time         `json:"installment_due_dates"`
	StartDate           time.Time           `json:"start_date"`
	DueDate             time.Time           `json:"due_date"`
	StoredTotalInterest decimal.NullDecimal `json:"stored_total_interest"` // Overrides the formula when set
	OutstandingBalance  decimal.Decimal     `json:"outstanding_balance"`
	TotalPaid           decimal.Decimal     `json:"total_paid"`
	Annotation          string              `json:"annotation"`
	Status              ContractStatus      `json:"status"`
	SkipSaturday        bool                `json:"skip_saturday"`
	SkipSunday          bool                `json:"skip_sunday"`
	SkipHolidays        bool                `json:"skip_holidays"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// Count returns the installment count floored at 1.
func (c *Contract) Count() int {
	if c.InstallmentCount < 1 {
		return 1
	}
	return c.InstallmentCount
}

type TransactionType string

const (
	TransactionTypePayment            TransactionType = "payment"
	TransactionTypeInterestOnly       TransactionType = "interest_only"
	TransactionTypeDiscountSettlement TransactionType = "discount_settlement"
	TransactionTypePayoff             TransactionType = "payoff"
	TransactionTypeAmortization       TransactionType = "amortization"
	TransactionTypeRenegotiation      TransactionType = "renegotiation"
	TransactionTypePenalty            TransactionType = "penalty"
)

// Transaction is the audit trail entry written after each mutation.
type Transaction struct {
	ID              uuid.UUID       `json:"id"`
	ContractID      uuid.UUID       `json:"contract_id"`
	Amount          decimal.Decimal `json:"amount"`
	PrincipalAmount decimal.Decimal `json:"principal_amount"`
	InterestAmount  decimal.Decimal `json:"interest_amount"`
	Type            TransactionType `json:"type"`
	Timestamp       time.Time       `json:"timestamp"`
}
