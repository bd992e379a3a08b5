package projector

import (
	"testing"
	"time"

	"github.com/mcclellann/loanledger/pkg/models"
	"github.com/mcclellann/loanledger/pkg/tags"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// threeMonth is 1000 at 10% per installment over 3 months: 433.33 each.
func threeMonth(annotation string) *models.Contract {
	return &models.Contract{
		PrincipalAmount:     dec("1000"),
		InterestRate:        dec("10"),
		InterestMode:        models.InterestModePerInstallment,
		PaymentType:         models.PaymentTypeInstallment,
		InstallmentCount:    3,
		InstallmentDueDates: []time.Time{day("2024-01-10"), day("2024-02-10"), day("2024-03-10")},
		StartDate:           day("2023-12-10"),
		DueDate:             day("2024-01-10"),
		OutstandingBalance:  dec("1300"),
		Annotation:          annotation,
		Status:              models.ContractStatusActive,
	}
}

func TestProject_InstallmentStatuses(t *testing.T) {
	c := threeMonth("[PARTIAL_PAID:0:433.33] [PARTIAL_PAID:1:200.00]")
	p := Project(c, day("2024-03-15"))

	require.Len(t, p.Installments, 3)
	assert.True(t, p.InstallmentValue.Equal(dec("433.33")))
	assert.Equal(t, StatusPaid, p.Installments[0].Status)
	assert.Equal(t, StatusPartial, p.Installments[1].Status)
	assert.Equal(t, StatusOverdue, p.Installments[2].Status)
	assert.Equal(t, 1, p.PaidCount)
	assert.Equal(t, 1, p.FirstUnpaid)
	assert.True(t, p.RemainingBalance.Equal(dec("666.66")), "got %s", p.RemainingBalance)
}

func TestProject_PendingBeforeDueDate(t *testing.T) {
	p := Project(threeMonth(""), day("2024-01-10"))
	for _, row := range p.Installments {
		assert.Equal(t, StatusPending, row.Status)
	}
}

func TestProject_PaidThreshold(t *testing.T) {
	tests := []struct {
		name string
		paid string
		want InstallmentStatus
	}{
		{"exact value", "433.33", StatusPaid},
		{"within one percent", "429.00", StatusPaid},
		{"below one percent", "428.00", StatusPartial},
		{"overpaid", "500.00", StatusPaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Project(threeMonth("[PARTIAL_PAID:0:"+tt.paid+"]"), day("2024-01-01"))
			assert.Equal(t, tt.want, p.Installments[0].Status)
		})
	}
}

func TestProject_PendingAdvanceKeepsInstallmentOpen(t *testing.T) {
	c := threeMonth("[PARTIAL_PAID:0:433.33] [ADVANCE_SUBPARCELA:0:33.33:2024-01-10:a1]")
	p := Project(c, day("2024-01-01"))

	assert.Equal(t, StatusPartial, p.Installments[0].Status)
	require.NotNil(t, p.Installments[0].Advance)
	assert.True(t, p.Installments[0].Remaining.Equal(dec("33.33")))
	assert.Equal(t, 0, p.PaidCount)

	c.Annotation = "[PARTIAL_PAID:0:433.33] [ADVANCE_SUBPARCELA_PAID:0:33.33:2024-01-10:a1]"
	p = Project(c, day("2024-01-01"))
	assert.Equal(t, StatusPaid, p.Installments[0].Status)
	assert.Nil(t, p.Installments[0].Advance)
	assert.Equal(t, 1, p.PaidCount)
}

func TestProject_AdvanceDueDateGovernsLateness(t *testing.T) {
	c := threeMonth("[PARTIAL_PAID:0:433.33] [PARTIAL_PAID:1:433.33] [PARTIAL_PAID:2:400.00] [ADVANCE_SUBPARCELA:2:33.33:2024-04-01:x]")
	st := GetLoanStatus(c, day("2024-03-15"))
	assert.False(t, st.IsOverdue)
	assert.Empty(t, st.OverdueInstallments)

	st = GetLoanStatus(c, day("2024-04-03"))
	require.Len(t, st.OverdueInstallments, 1)
	assert.Equal(t, 2, st.OverdueInstallments[0].DaysOverdue)
	assert.True(t, st.OverdueInstallments[0].Amount.Equal(dec("33.33")))
}

func TestProject_RenewalFeeAndPenaltyRaiseEffectiveValue(t *testing.T) {
	c := threeMonth("[RENEWAL_FEE_INSTALLMENT:0:500.00:66.67] [DAILY_PENALTY:0:10.00] [PARTIAL_PAID:0:500.00]")
	p := Project(c, day("2024-01-01"))

	row := p.Installments[0]
	assert.True(t, row.BaseValue.Equal(dec("500")))
	assert.True(t, row.EffectiveValue.Equal(dec("510")))
	// 500 >= 0.99 * 510
	assert.Equal(t, StatusPaid, row.Status)
	assert.True(t, p.PenaltyTotal.Equal(dec("10")))
}

func TestPaidInstallmentsCount_Contiguity(t *testing.T) {
	annotations := []string{
		"",
		"[PARTIAL_PAID:1:433.33]",
		"[PARTIAL_PAID:0:433.33] [PARTIAL_PAID:2:433.33]",
		"[PARTIAL_PAID:0:433.33] [PARTIAL_PAID:1:433.33] [PARTIAL_PAID:2:433.33]",
		"[PARTIAL_PAID:0:433.33] [PARTIAL_PAID:1:10.00] [PARTIAL_PAID:2:433.33]",
		"[PARTIAL_PAID:0:433.33] [ADVANCE_SUBPARCELA:0:1.00:2024-01-10:z] [PARTIAL_PAID:1:433.33]",
	}
	want := []int{0, 0, 1, 3, 1, 0}

	for i, a := range annotations {
		c := threeMonth(a)
		k := PaidInstallmentsCount(c)
		assert.Equal(t, want[i], k, a)

		p := Project(c, time.Time{})
		for j := 0; j < k; j++ {
			assert.Equal(t, StatusPaid, p.Installments[j].Status, "installment %d of %q", j, a)
		}
		assert.Equal(t, k, FirstUnpaidInstallmentIndex(c))
	}
}

func TestPaidInstallmentsCount_LegacyFallback(t *testing.T) {
	c := threeMonth("")
	c.TotalPaid = dec("900")
	assert.Equal(t, 2, PaidInstallmentsCount(c))

	c.TotalPaid = dec("5000")
	assert.Equal(t, 3, PaidInstallmentsCount(c))

	p := Project(c, time.Time{})
	assert.True(t, p.Legacy)
}

func TestInterestOnlyIsolation(t *testing.T) {
	c := threeMonth("[INTEREST_ONLY_PAID:0:100.00:2024-01-10] [INTEREST_ONLY_PAYMENT]")
	c.TotalPaid = dec("100")

	assert.Equal(t, 0, PaidInstallmentsCount(c))
	assert.Equal(t, 0, FirstUnpaidInstallmentIndex(c))

	c.Annotation += " [INTEREST_ONLY_PAID:0:100.00:2024-02-10]"
	c.TotalPaid = dec("200")
	assert.Equal(t, 0, FirstUnpaidInstallmentIndex(c))

	c.Annotation += " [PARTIAL_PAID:0:433.33]"
	assert.Equal(t, 1, PaidInstallmentsCount(c))
	assert.Equal(t, 1, FirstUnpaidInstallmentIndex(c))
}

func TestGetLoanStatus_EnumeratesEveryOverdueInstallment(t *testing.T) {
	c := threeMonth("[PARTIAL_PAID:0:433.33] [PARTIAL_PAID:1:200.00]")
	st := GetLoanStatus(c, day("2024-03-15"))

	assert.False(t, st.IsPaid)
	assert.True(t, st.IsOverdue)
	require.Len(t, st.OverdueInstallments, 2)
	assert.Equal(t, 1, st.OverdueInstallments[0].Index)
	assert.Equal(t, 34, st.OverdueInstallments[0].DaysOverdue)
	assert.True(t, st.OverdueInstallments[0].Amount.Equal(dec("233.33")))
	assert.Equal(t, 2, st.OverdueInstallments[1].Index)
	assert.Equal(t, 5, st.OverdueInstallments[1].DaysOverdue)
	assert.True(t, st.TotalPerInstallment.Equal(dec("433.33")))
}

func TestGetLoanStatus_Paid(t *testing.T) {
	c := threeMonth("")
	c.Status = models.ContractStatusPaid
	st := GetLoanStatus(c, day("2025-01-01"))
	assert.True(t, st.IsPaid)
	assert.False(t, st.IsOverdue)
	assert.Empty(t, st.OverdueInstallments)

	c = threeMonth("[PARTIAL_PAID:0:433.33] [PARTIAL_PAID:1:433.33] [PARTIAL_PAID:2:433.34]")
	assert.True(t, GetLoanStatus(c, day("2025-01-01")).IsPaid)
}

func TestGetLoanStatus_SinglePayment(t *testing.T) {
	c := &models.Contract{
		PrincipalAmount:  dec("1000"),
		InterestRate:     dec("20"),
		InterestMode:     models.InterestModeOnTotal,
		PaymentType:      models.PaymentTypeSingle,
		InstallmentCount: 1,
		DueDate:          day("2024-05-01"),
		Status:           models.ContractStatusActive,
	}
	st := GetLoanStatus(c, day("2024-05-11"))
	require.Len(t, st.OverdueInstallments, 1)
	assert.Equal(t, 10, st.OverdueInstallments[0].DaysOverdue)
	assert.True(t, st.TotalPerInstallment.Equal(dec("1200")))
}

func TestCumulativePenalty(t *testing.T) {
	overdue := []OverdueInstallment{
		{Index: 0, DaysOverdue: 5},
		{Index: 1, DaysOverdue: 3},
	}

	res := CumulativePenalty(overdue, tags.OverdueConfig{Type: tags.PenaltyPercentage, Value: dec("1")}, dec("100"))
	assert.True(t, res.TotalPenalty.Equal(dec("8.00")), "got %s", res.TotalPenalty)
	require.Len(t, res.Breakdown, 2)
	assert.True(t, res.Breakdown[0].Amount.Equal(dec("5")))
	assert.True(t, res.Breakdown[1].Amount.Equal(dec("3")))

	res = CumulativePenalty(overdue, tags.OverdueConfig{Type: tags.PenaltyFixed, Value: dec("2.50")}, dec("100"))
	assert.True(t, res.TotalPenalty.Equal(dec("20")))

	res = CumulativePenalty(nil, tags.OverdueConfig{Type: tags.PenaltyFixed, Value: dec("2.50")}, dec("100"))
	assert.True(t, res.TotalPenalty.IsZero())
	assert.Empty(t, res.Breakdown)
}

func TestComputedPenalty(t *testing.T) {
	c := threeMonth("[PARTIAL_PAID:0:433.33]")
	_, ok := ComputedPenalty(c, day("2024-03-15"))
	assert.False(t, ok)

	c.Annotation += " [OVERDUE_CONFIG:fixed:1.00]"
	res, ok := ComputedPenalty(c, day("2024-03-15"))
	require.True(t, ok)
	// 34 days on installment 1 plus 5 days on installment 2.
	assert.True(t, res.TotalPenalty.Equal(dec("39")), "got %s", res.TotalPenalty)
}

func TestProject_Amortization(t *testing.T) {
	c := threeMonth("[AMORTIZATION:200.00:800.00:80.00:2024-01-05]")
	p := Project(c, day("2024-01-06"))

	assert.True(t, p.EffectivePrincipal.Equal(dec("800")))
	assert.True(t, p.TotalInterest.Equal(dec("80")))
	assert.True(t, p.InstallmentValue.Equal(dec("293.33")))
}

func TestProject_AmortizationKeepsSettledInstallments(t *testing.T) {
	c := threeMonth("[PARTIAL_PAID:0:433.33] [AMORTIZATION:200.00:800.00:80.00:2024-01-06:1]")
	p := Project(c, day("2024-01-06"))

	assert.Equal(t, StatusPaid, p.Installments[0].Status)
	assert.True(t, p.Installments[0].BaseValue.Equal(dec("433.33")))
	assert.True(t, p.Installments[1].BaseValue.Equal(dec("440")))
	assert.True(t, p.Installments[2].BaseValue.Equal(dec("440")))
	assert.True(t, p.InstallmentValue.Equal(dec("440")))
	assert.True(t, p.RemainingBalance.Equal(dec("880")), "got %s", p.RemainingBalance)
	assert.Equal(t, 1, p.PaidCount)
}

func TestProject_Profit(t *testing.T) {
	c := threeMonth("[PARTIAL_PAID:0:433.33] [HISTORICAL_INTEREST_RECEIVED:20.00] [HISTORICAL_CONTRACT]")
	p := Project(c, day("2024-01-20"))

	assert.True(t, p.ExpectedProfit.Equal(dec("300")))
	assert.True(t, p.RealizedProfit.Equal(dec("120")), "got %s", p.RealizedProfit)
	assert.True(t, p.State.IsHistorical())
}

func TestApply_ReducerSemantics(t *testing.T) {
	s := NewState()
	s1 := Apply(s, tags.PartialPaid{Index: 0, Amount: dec("50")})
	s2 := Apply(s1, tags.PartialPaid{Index: 0, Amount: dec("80")})

	assert.Empty(t, s.Paid)
	assert.True(t, s1.PaidOn(0).Equal(dec("50")))
	assert.True(t, s2.PaidOn(0).Equal(dec("80")), "later tag supersedes, not adds")

	s3 := Apply(s2, tags.InterestOnlyPaid{Index: 0, Amount: dec("10")})
	s4 := Apply(s3, tags.InterestOnlyPaid{Index: 0, Amount: dec("10")})
	assert.True(t, s4.InterestOnlyTotal().Equal(dec("20")))
	assert.True(t, s4.PaidOn(0).Equal(dec("80")))

	adv := tags.AdvanceSubinstallment{Index: 1, Remaining: dec("5"), ID: "a"}
	s5 := Apply(s4, adv)
	_, pending := s5.PendingAdvance(1)
	assert.True(t, pending)
	adv.Paid = true
	s6 := Apply(s5, adv)
	_, pending = s6.PendingAdvance(1)
	assert.False(t, pending)
	assert.Len(t, s6.Advances, 1)
	_, pending = s5.PendingAdvance(1)
	assert.True(t, pending, "earlier state is unchanged")
}
