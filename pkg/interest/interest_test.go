package interest

import (
	"testing"

	"github.com/mcclellann/loanledger/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestTotal(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		rate      string
		count     int
		mode      models.InterestMode
		want      string
	}{
		{"compound", "1000", "10", 3, models.InterestModeCompound, "331.00"},
		{"on total", "1000", "10", 3, models.InterestModeOnTotal, "100.00"},
		{"per installment", "1000", "10", 3, models.InterestModePerInstallment, "300.00"},
		{"zero count floors at one", "1000", "10", 0, models.InterestModePerInstallment, "100.00"},
		{"zero rate", "1000", "0", 12, models.InterestModeCompound, "0.00"},
		{"rounds to cents", "333.33", "7.5", 2, models.InterestModeCompound, "51.87"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Total(dec(tt.principal), dec(tt.rate), tt.count, tt.mode)
			assert.True(t, got.Equal(dec(tt.want)), "want %s, got %s", tt.want, got)
		})
	}
}

func TestForContract(t *testing.T) {
	tests := []struct {
		name     string
		contract models.Contract
		want     string
	}{
		{
			name: "formula when nothing stored",
			contract: models.Contract{
				PrincipalAmount: dec("1000"), InterestRate: dec("10"),
				InterestMode: models.InterestModePerInstallment, InstallmentCount: 3,
			},
			want: "300",
		},
		{
			name: "stored positive value wins",
			contract: models.Contract{
				PrincipalAmount: dec("1000"), InterestRate: dec("10"),
				InterestMode: models.InterestModePerInstallment, InstallmentCount: 3,
				StoredTotalInterest: decimal.NewNullDecimal(dec("299.99")),
			},
			want: "299.99",
		},
		{
			name: "stored zero ignored when rate is positive",
			contract: models.Contract{
				PrincipalAmount: dec("1000"), InterestRate: dec("10"),
				InterestMode: models.InterestModeOnTotal, InstallmentCount: 1,
				StoredTotalInterest: decimal.NewNullDecimal(decimal.Zero),
			},
			want: "100",
		},
		{
			name: "zero rate keeps stored value",
			contract: models.Contract{
				PrincipalAmount: dec("1000"), InterestRate: decimal.Zero,
				InterestMode: models.InterestModeOnTotal, InstallmentCount: 1,
				StoredTotalInterest: decimal.NewNullDecimal(dec("50")),
			},
			want: "50",
		},
		{
			name: "daily contract priced by installment value",
			contract: models.Contract{
				PrincipalAmount: dec("1000"), InterestRate: dec("20"),
				PaymentType: models.PaymentTypeDaily, InstallmentCount: 24,
				InstallmentValue: dec("50"),
			},
			want: "200",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ForContract(&tt.contract)
			assert.True(t, got.Equal(dec(tt.want)), "want %s, got %s", tt.want, got)
		})
	}
}

func TestInstallmentValue(t *testing.T) {
	c := models.Contract{
		PrincipalAmount: dec("1000"), InterestRate: dec("10"),
		InterestMode: models.InterestModePerInstallment, InstallmentCount: 4,
	}
	// (1000 + 400) / 4
	assert.True(t, InstallmentValue(&c).Equal(dec("350")))

	c.InstallmentCount = 0
	assert.True(t, InstallmentValue(&c).Equal(dec("1100")))
}

func TestShares(t *testing.T) {
	p, i := Shares(dec("750"), dec("250"))
	assert.True(t, p.Equal(dec("0.75")))
	assert.True(t, i.Equal(dec("0.25")))

	p, i = Shares(decimal.Zero, decimal.Zero)
	assert.True(t, p.Equal(decimal.NewFromInt(1)))
	assert.True(t, i.IsZero())
}

func TestSolveRate(t *testing.T) {
	tests := []struct {
		name        string
		installment string
		count       int
		mode        models.InterestMode
		want        string
	}{
		{"per installment", "433.3333", 3, models.InterestModePerInstallment, "10"},
		{"on total", "366.6667", 3, models.InterestModeOnTotal, "10"},
		{"compound", "443.6667", 3, models.InterestModeCompound, "10"},
		{"below principal", "300", 3, models.InterestModePerInstallment, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SolveRate(dec("1000"), dec(tt.installment), tt.count, tt.mode)
			assert.InDelta(t, dec(tt.want).InexactFloat64(), got.InexactFloat64(), 0.01)
		})
	}
}
