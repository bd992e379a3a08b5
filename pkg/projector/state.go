package projector

import (
	"github.com/mcclellann/loanledger/pkg/tags"
	"github.com/shopspring/decimal"
)

// State is the fold of every ledger event found in a contract's annotation.
// Keyed events follow last-write-wins; repeatable events accumulate.
type State struct {
	Paid               map[int]decimal.Decimal // cumulative paid per installment
	Advances           []tags.AdvanceSubinstallment
	InterestOnly       []tags.InterestOnlyPaid
	HistoricalInterest decimal.Decimal
	Penalties          map[int]decimal.Decimal
	OverdueConfig      *tags.OverdueConfig
	RenewalFees        map[int]tags.RenewalFeeInstallment
	Amortizations      []tags.Amortization
	Markers            map[tags.Kind]bool
	Snapshot           map[tags.Kind]tags.Snapshot
}

// NewState returns an empty state.
func NewState() State {
	return State{
		Paid:        make(map[int]decimal.Decimal),
		Penalties:   make(map[int]decimal.Decimal),
		RenewalFees: make(map[int]tags.RenewalFeeInstallment),
		Markers:     make(map[tags.Kind]bool),
		Snapshot:    make(map[tags.Kind]tags.Snapshot),
	}
}

// Fold reduces events, in order, into a state.
func Fold(events []tags.Event) State {
	s := NewState()
	for _, e := range events {
		s.apply(e)
	}
	return s
}

// Apply returns the state that results from applying e to s. s is not modified.
func Apply(s State, e tags.Event) State {
	next := s.clone()
	next.apply(e)
	return next
}

func (s *State) apply(e tags.Event) {
	switch ev := e.(type) {
	case tags.PartialPaid:
		s.Paid[ev.Index] = ev.Amount
	case tags.AdvanceSubinstallment:
		for i, existing := range s.Advances {
			if existing.ID == ev.ID {
				s.Advances[i] = ev
				return
			}
		}
		s.Advances = append(s.Advances, ev)
	case tags.InterestOnlyPaid:
		s.InterestOnly = append(s.InterestOnly, ev)
	case tags.HistoricalInterestReceived:
		s.HistoricalInterest = s.HistoricalInterest.Add(ev.Amount)
	case tags.DailyPenalty:
		s.Penalties[ev.Index] = ev.Amount
	case tags.OverdueConfig:
		cfg := ev
		s.OverdueConfig = &cfg
	case tags.RenewalFeeInstallment:
		s.RenewalFees[ev.Index] = ev
	case tags.Amortization:
		s.Amortizations = append(s.Amortizations, ev)
	case tags.Marker:
		s.Markers[ev.Name] = true
	case tags.Snapshot:
		s.Snapshot[ev.Name] = ev
	}
}

func (s State) clone() State {
	next := NewState()
	for k, v := range s.Paid {
		next.Paid[k] = v
	}
	for k, v := range s.Penalties {
		next.Penalties[k] = v
	}
	for k, v := range s.RenewalFees {
		next.RenewalFees[k] = v
	}
	for k, v := range s.Markers {
		next.Markers[k] = v
	}
	for k, v := range s.Snapshot {
		next.Snapshot[k] = v
	}
	next.Advances = append(next.Advances, s.Advances...)
	next.InterestOnly = append(next.InterestOnly, s.InterestOnly...)
	next.Amortizations = append(next.Amortizations, s.Amortizations...)
	next.HistoricalInterest = s.HistoricalInterest
	if s.OverdueConfig != nil {
		cfg := *s.OverdueConfig
		next.OverdueConfig = &cfg
	}
	return next
}

// HasTracking reports whether any per-installment payment tag exists.
func (s State) HasTracking() bool {
	return len(s.Paid) > 0
}

// PaidOn returns the tracked cumulative amount for an installment.
func (s State) PaidOn(index int) decimal.Decimal {
	return s.Paid[index]
}

// PendingAdvance returns the most recent unpaid advance sub-installment for an index.
func (s State) PendingAdvance(index int) (tags.AdvanceSubinstallment, bool) {
	for i := len(s.Advances) - 1; i >= 0; i-- {
		a := s.Advances[i]
		if a.Index == index && !a.Paid {
			return a, true
		}
	}
	return tags.AdvanceSubinstallment{}, false
}

// PenaltyTotal sums the stored manual penalties.
func (s State) PenaltyTotal() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Penalties {
		total = total.Add(p)
	}
	return total
}

// InterestOnlyTotal sums every interest-only payment.
func (s State) InterestOnlyTotal() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.InterestOnly {
		total = total.Add(p.Amount)
	}
	return total
}

// AmortizedTotal sums every amortization amount.
func (s State) AmortizedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, a := range s.Amortizations {
		total = total.Add(a.Amount)
	}
	return total
}

func (s State) IsRenegotiated() bool { return s.Markers[tags.KindRenegotiated] }

func (s State) IsHistorical() bool {
	return s.Markers[tags.KindHistoricalContract] || s.Markers[tags.KindHistoricalInterestContract]
}
