package tags

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the tag name as it appears in the annotation, e.g. PARTIAL_PAID.
type Kind string

const (
	KindPartialPaid                Kind = "PARTIAL_PAID"
	KindAdvance                    Kind = "ADVANCE_SUBPARCELA"
	KindAdvancePaid                Kind = "ADVANCE_SUBPARCELA_PAID"
	KindInterestOnlyPaid           Kind = "INTEREST_ONLY_PAID"
	KindHistoricalInterestReceived Kind = "HISTORICAL_INTEREST_RECEIVED"
	KindHistoricalInterestLegacy   Kind = "HISTORICAL_INTEREST"
	KindDailyPenalty               Kind = "DAILY_PENALTY"
	KindOverdueConfig              Kind = "OVERDUE_CONFIG"
	KindRenewalFee                 Kind = "RENEWAL_FEE_INSTALLMENT"
	KindAmortization               Kind = "AMORTIZATION"

	KindHistoricalContract         Kind = "HISTORICAL_CONTRACT"
	KindHistoricalInterestContract Kind = "HISTORICAL_INTEREST_CONTRACT"
	KindRenegotiated               Kind = "RENEGOTIATED"
	KindInterestOnlyPayment        Kind = "INTEREST_ONLY_PAYMENT"

	KindOriginalPrincipal     Kind = "ORIGINAL_PRINCIPAL"
	KindOriginalRate          Kind = "ORIGINAL_RATE"
	KindOriginalInstallments  Kind = "ORIGINAL_INSTALLMENTS"
	KindOriginalTotalInterest Kind = "ORIGINAL_TOTAL_INTEREST"
	KindOriginalTotalPaid     Kind = "ORIGINAL_TOTAL_PAID"
	KindOriginalBalance       Kind = "ORIGINAL_BALANCE"
	KindRenegotiationDate     Kind = "RENEGOTIATION_DATE"
)

// SnapshotKinds is the fixed key set written when a contract is renegotiated.
var SnapshotKinds = []Kind{
	KindOriginalPrincipal,
	KindOriginalRate,
	KindOriginalInstallments,
	KindOriginalTotalInterest,
	KindOriginalTotalPaid,
	KindOriginalBalance,
	KindRenegotiationDate,
}

// TrackingKinds are the per-installment tags that become stale after a renegotiation.
var TrackingKinds = []Kind{
	KindPartialPaid,
	KindAdvance,
	KindAdvancePaid,
	KindInterestOnlyPaid,
	KindDailyPenalty,
	KindRenewalFee,
	KindAmortization,
}

const dateLayout = "2006-01-02"

// Event is one decoded ledger event. The set of implementations is closed.
type Event interface {
	Kind() Kind
	// key identifies the slot the event occupies; an event supersedes any
	// other event of the same family with the same key.
	key() string
	fields() []string
}

type PartialPaid struct {
	Index  int
	Amount decimal.Decimal // cumulative amount paid on the installment
}

func (PartialPaid) Kind() Kind { return KindPartialPaid }
func (e PartialPaid) key() string { return strconv.Itoa(e.Index) }
func (e PartialPaid) fields() []string { return []string{strconv.Itoa(e.Index), money(e.Amount)} }

// AdvanceSubinstallment is the unpaid remainder of an installment paid early.
// The pending and paid forms share the same ID so paying renames the tag.
type AdvanceSubinstallment struct {
	Index     int
	Remaining decimal.Decimal
	DueDate   time.Time
	ID        string
	Paid      bool
}

func (e AdvanceSubinstallment) Kind() Kind {
	if e.Paid {
		return KindAdvancePaid
	}
	return KindAdvance
}
func (e AdvanceSubinstallment) key() string { return e.ID }
func (e AdvanceSubinstallment) fields() []string {
	return []string{strconv.Itoa(e.Index), money(e.Remaining), date(e.DueDate), e.ID}
}

// InterestOnlyPaid is repeatable and never counts toward the installment itself.
type InterestOnlyPaid struct {
	Index  int
	Amount decimal.Decimal
	Date   time.Time
}

func (InterestOnlyPaid) Kind() Kind { return KindInterestOnlyPaid }
func (e InterestOnlyPaid) key() string { return strings.Join(e.fields(), ":") }
func (e InterestOnlyPaid) fields() []string {
	return []string{strconv.Itoa(e.Index), money(e.Amount), date(e.Date)}
}

// HistoricalInterestReceived is interest collected before the contract was
// entered in the system. Repeatable; occurrences are summed.
type HistoricalInterestReceived struct {
	Amount decimal.Decimal
}

func (HistoricalInterestReceived) Kind() Kind { return KindHistoricalInterestReceived }
func (e HistoricalInterestReceived) key() string { return money(e.Amount) }
func (e HistoricalInterestReceived) fields() []string { return []string{money(e.Amount)} }

// DailyPenalty is a manual, stored penalty for one installment.
type DailyPenalty struct {
	Index  int
	Amount decimal.Decimal
}

func (DailyPenalty) Kind() Kind { return KindDailyPenalty }
func (e DailyPenalty) key() string { return strconv.Itoa(e.Index) }
func (e DailyPenalty) fields() []string { return []string{strconv.Itoa(e.Index), money(e.Amount)} }

type PenaltyType string

const (
	PenaltyPercentage PenaltyType = "percentage"
	PenaltyFixed      PenaltyType = "fixed"
)

// OverdueConfig is the standing rule for the computed per-day penalty.
type OverdueConfig struct {
	Type  PenaltyType
	Value decimal.Decimal
}

func (OverdueConfig) Kind() Kind { return KindOverdueConfig }
func (OverdueConfig) key() string { return "" }
func (e OverdueConfig) fields() []string { return []string{string(e.Type), money(e.Value)} }

// RenewalFeeInstallment overrides the base value of one installment.
type RenewalFeeInstallment struct {
	Index    int
	NewValue decimal.Decimal
	Fee      decimal.Decimal
}

func (RenewalFeeInstallment) Kind() Kind { return KindRenewalFee }
func (e RenewalFeeInstallment) key() string { return strconv.Itoa(e.Index) }
func (e RenewalFeeInstallment) fields() []string {
	return []string{strconv.Itoa(e.Index), money(e.NewValue), money(e.Fee)}
}

// Amortization reduces the principal. The new terms are spread over the
// installments from FirstOpen onward; those before it were already settled.
type Amortization struct {
	Amount           decimal.Decimal
	NewPrincipal     decimal.Decimal
	NewTotalInterest decimal.Decimal
	Date             time.Time
	FirstOpen        int
}

func (Amortization) Kind() Kind { return KindAmortization }
func (e Amortization) key() string { return strings.Join(e.fields(), ":") }
func (e Amortization) fields() []string {
	f := []string{money(e.Amount), money(e.NewPrincipal), money(e.NewTotalInterest), date(e.Date)}
	if e.FirstOpen > 0 {
		f = append(f, strconv.Itoa(e.FirstOpen))
	}
	return f
}

// Marker is a field-less flag such as [RENEGOTIATED].
type Marker struct {
	Name Kind
}

func (e Marker) Kind() Kind { return e.Name }
func (Marker) key() string { return "" }
func (Marker) fields() []string { return nil }

// Snapshot is one entry of the fixed set of prior terms recorded on renegotiation.
type Snapshot struct {
	Name  Kind
	Value string
}

func (e Snapshot) Kind() Kind { return e.Name }
func (Snapshot) key() string { return "" }
func (e Snapshot) fields() []string { return []string{e.Value} }

// Decimal returns the snapshot value as a number, or zero.
func (e Snapshot) Decimal() decimal.Decimal {
	return parseDecimal(e.Value)
}

// family groups kinds whose events occupy the same slots.
func family(k Kind) Kind {
	switch k {
	case KindAdvancePaid:
		return KindAdvance
	case KindHistoricalInterestLegacy:
		return KindHistoricalInterestReceived
	}
	return k
}

// Supersedes reports whether writing e replaces existing.
func Supersedes(e, existing Event) bool {
	return family(e.Kind()) == family(existing.Kind()) && e.key() == existing.key()
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
