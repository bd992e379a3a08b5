package operations

import (
	"strconv"
	"time"

	"github.com/mcclellann/loanledger/pkg/interest"
	"github.com/mcclellann/loanledger/pkg/models"
	"github.com/mcclellann/loanledger/pkg/schedule"
	"github.com/mcclellann/loanledger/pkg/tags"
	"github.com/shopspring/decimal"
)

// RenegotiationRequest carries the new terms. An empty InterestMode or
// PaymentType, or a zero InstallmentCount, keeps the contract's current one;
// a zero Principal renegotiates the outstanding balance. InterestRate and
// InstallmentValue are always taken as given, so a zero rate renegotiates
// interest-free.
type RenegotiationRequest struct {
	Principal        decimal.Decimal     `json:"principal"`
	InterestRate     decimal.Decimal     `json:"interest_rate"`
	InterestMode     models.InterestMode `json:"interest_mode"`
	PaymentType      models.PaymentType  `json:"payment_type"`
	InstallmentCount int                 `json:"installment_count"`
	InstallmentValue decimal.Decimal     `json:"installment_value"`
	FirstDueDate     time.Time           `json:"first_due_date"`
}

// RegisterRenegotiation replaces the contract's terms. The current terms are
// snapshotted into the annotation, TotalPaid restarts at zero, a new schedule
// is generated from today, and all per-installment tracking is stripped.
func (o *Operations) RegisterRenegotiation(c *models.Contract, req RenegotiationRequest, today time.Time) (Result, error) {
	if c.Status == models.ContractStatusPaid {
		return Result{}, ErrContractPaid
	}
	if req.Principal.IsNegative() || req.InterestRate.IsNegative() || req.InstallmentValue.IsNegative() {
		return Result{}, ErrInvalidAmount
	}
	today = schedule.Day(today)

	t := Terms{
		PrincipalAmount:  req.Principal,
		InterestRate:     req.InterestRate,
		InterestMode:     req.InterestMode,
		PaymentType:      req.PaymentType,
		InstallmentCount: req.InstallmentCount,
		InstallmentValue: req.InstallmentValue,
		StartDate:        today,
	}
	if t.PrincipalAmount.IsZero() {
		t.PrincipalAmount = c.OutstandingBalance
	}
	if t.InterestMode == "" {
		t.InterestMode = c.InterestMode
	}
	if t.PaymentType == "" {
		t.PaymentType = c.PaymentType
	}
	if t.InstallmentCount < 1 {
		t.InstallmentCount = c.Count()
	}
	if t.PaymentType == models.PaymentTypeSingle {
		t.InstallmentCount = 1
	}

	next := models.Contract{
		PrincipalAmount:  t.PrincipalAmount,
		InterestRate:     t.InterestRate,
		InterestMode:     t.InterestMode,
		PaymentType:      t.PaymentType,
		InstallmentCount: t.InstallmentCount,
		InstallmentValue: t.InstallmentValue,
	}
	totalInterest := interest.ForContract(&next)

	cadence := schedule.CadenceFor(t.PaymentType)
	first := schedule.Day(req.FirstDueDate)
	if first.IsZero() {
		first = schedule.Next(today, cadence)
	}
	t.InstallmentDueDates = schedule.Generate(first, t.InstallmentCount, cadence, schedule.OptionsFor(c))
	t.DueDate = t.InstallmentDueDates[len(t.InstallmentDueDates)-1]

	annotation := tags.RemoveKinds(c.Annotation, tags.TrackingKinds...)
	for _, s := range snapshot(c, today) {
		annotation = tags.Upsert(annotation, s)
	}
	annotation = tags.Upsert(annotation, tags.Marker{Name: tags.KindRenegotiated})

	r := unchanged(c)
	r.NextAnnotation = annotation
	r.NextTerms = &t
	r.NextTotalPaid = decimal.Zero
	r.NextTotalInterest = decimal.NewNullDecimal(totalInterest)
	r.NextOutstandingBalance = t.PrincipalAmount.Add(totalInterest)
	r.NextStatus = models.ContractStatusActive
	r.Type = models.TransactionTypeRenegotiation
	r.Amount = t.PrincipalAmount
	r.PrincipalAmount = t.PrincipalAmount
	r.InterestAmount = totalInterest
	return r, nil
}

func snapshot(c *models.Contract, today time.Time) []tags.Snapshot {
	return []tags.Snapshot{
		{Name: tags.KindOriginalPrincipal, Value: c.PrincipalAmount.StringFixed(2)},
		{Name: tags.KindOriginalRate, Value: c.InterestRate.String()},
		{Name: tags.KindOriginalInstallments, Value: strconv.Itoa(c.Count())},
		{Name: tags.KindOriginalTotalInterest, Value: interest.ForContract(c).StringFixed(2)},
		{Name: tags.KindOriginalTotalPaid, Value: c.TotalPaid.StringFixed(2)},
		{Name: tags.KindOriginalBalance, Value: c.OutstandingBalance.StringFixed(2)},
		{Name: tags.KindRenegotiationDate, Value: today.Format("2006-01-02")},
	}
}
