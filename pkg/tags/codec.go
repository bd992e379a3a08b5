package tags

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// tagPattern matches [NAME] and [NAME:field:field...] anywhere in free text.
var tagPattern = regexp.MustCompile(`\[([A-Z][A-Z_]*)((?::[^\[\]:]*)*)\]`)

// Decode extracts every recognised tag from the annotation in order of
// appearance. Unknown or malformed tags are skipped; unparsable numbers
// decode as zero.
func Decode(annotation string) []Event {
	var events []Event
	for _, m := range tagPattern.FindAllStringSubmatch(annotation, -1) {
		if e, ok := decodeTag(Kind(m[1]), splitFields(m[2])); ok {
			events = append(events, e)
		}
	}
	return events
}

// Encode renders the canonical tag for an event.
func Encode(e Event) string {
	f := e.fields()
	if len(f) == 0 {
		return "[" + string(e.Kind()) + "]"
	}
	return "[" + string(e.Kind()) + ":" + strings.Join(f, ":") + "]"
}

// Upsert removes every tag the event supersedes and appends the event's tag.
// Calling it twice with the same event yields the same annotation.
func Upsert(annotation string, e Event) string {
	stripped := Remove(annotation, func(existing Event) bool {
		return Supersedes(e, existing)
	})
	return Append(stripped, e)
}

// Append adds the event's tag at the end of the annotation without removing anything.
func Append(annotation string, e Event) string {
	tag := Encode(e)
	if annotation == "" {
		return tag
	}
	if isSpace(annotation[len(annotation)-1]) {
		return annotation + tag
	}
	return annotation + " " + tag
}

// Remove deletes every tag whose decoded event matches. Prose and
// unrecognised tags are left untouched.
func Remove(annotation string, match func(Event) bool) string {
	locs := tagPattern.FindAllStringSubmatchIndex(annotation, -1)
	if len(locs) == 0 {
		return annotation
	}

	var b strings.Builder
	last := 0
	for _, loc := range locs {
		e, ok := decodeTag(Kind(annotation[loc[2]:loc[3]]), splitFields(annotation[loc[4]:loc[5]]))
		if !ok || !match(e) {
			continue
		}
		start, end := loc[0], loc[1]
		if start > last && annotation[start-1] == ' ' {
			start--
		} else if end < len(annotation) && annotation[end] == ' ' {
			end++
		}
		b.WriteString(annotation[last:start])
		last = end
	}
	b.WriteString(annotation[last:])
	return b.String()
}

// RemoveKinds deletes every tag of the given kinds.
func RemoveKinds(annotation string, kinds ...Kind) string {
	set := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return Remove(annotation, func(e Event) bool {
		return set[e.Kind()]
	})
}

// Has reports whether the annotation carries at least one tag of the kind.
func Has(annotation string, kind Kind) bool {
	for _, e := range Decode(annotation) {
		if e.Kind() == kind {
			return true
		}
	}
	return false
}

func decodeTag(kind Kind, f []string) (Event, bool) {
	switch kind {
	case KindPartialPaid:
		if len(f) < 2 {
			return nil, false
		}
		return PartialPaid{Index: parseIndex(f[0]), Amount: parseDecimal(f[1])}, true

	case KindAdvance, KindAdvancePaid:
		if len(f) < 2 {
			return nil, false
		}
		e := AdvanceSubinstallment{
			Index:     parseIndex(f[0]),
			Remaining: parseDecimal(f[1]),
			Paid:      kind == KindAdvancePaid,
		}
		if len(f) > 2 {
			e.DueDate = parseDate(f[2])
		}
		if len(f) > 3 {
			e.ID = strings.TrimSpace(f[3])
		}
		if e.ID == "" {
			// Legacy tags carry no id; derive a stable one from index and date.
			e.ID = fmt.Sprintf("%d-%s", e.Index, e.DueDate.Format("20060102"))
		}
		return e, true

	case KindInterestOnlyPaid:
		if len(f) < 2 {
			return nil, false
		}
		e := InterestOnlyPaid{Index: parseIndex(f[0]), Amount: parseDecimal(f[1])}
		if len(f) > 2 {
			e.Date = parseDate(f[2])
		}
		return e, true

	case KindHistoricalInterestReceived, KindHistoricalInterestLegacy:
		if len(f) < 1 {
			return nil, false
		}
		return HistoricalInterestReceived{Amount: parseDecimal(f[len(f)-1])}, true

	case KindDailyPenalty:
		if len(f) < 2 {
			return nil, false
		}
		return DailyPenalty{Index: parseIndex(f[0]), Amount: parseDecimal(f[1])}, true

	case KindOverdueConfig:
		switch {
		case len(f) >= 2 && PenaltyType(strings.ToLower(strings.TrimSpace(f[0]))) == PenaltyFixed:
			return OverdueConfig{Type: PenaltyFixed, Value: parseDecimal(f[1])}, true
		case len(f) >= 2 && PenaltyType(strings.ToLower(strings.TrimSpace(f[0]))) == PenaltyPercentage:
			return OverdueConfig{Type: PenaltyPercentage, Value: parseDecimal(f[1])}, true
		case len(f) == 1:
			// Legacy form: a bare daily percentage.
			return OverdueConfig{Type: PenaltyPercentage, Value: parseDecimal(f[0])}, true
		}
		return nil, false

	case KindRenewalFee:
		if len(f) < 2 {
			return nil, false
		}
		e := RenewalFeeInstallment{Index: parseIndex(f[0]), NewValue: parseDecimal(f[1])}
		if len(f) > 2 {
			e.Fee = parseDecimal(f[2])
		}
		return e, true

	case KindAmortization:
		switch {
		case len(f) >= 4:
			e := Amortization{
				Amount:           parseDecimal(f[0]),
				NewPrincipal:     parseDecimal(f[1]),
				NewTotalInterest: parseDecimal(f[2]),
				Date:             parseDate(f[3]),
			}
			if len(f) > 4 {
				e.FirstOpen = parseIndex(f[4])
			}
			return e, true
		case len(f) >= 2:
			// Legacy form: amount and date only.
			return Amortization{Amount: parseDecimal(f[0]), Date: parseDate(f[1])}, true
		}
		return nil, false

	case KindHistoricalContract, KindHistoricalInterestContract, KindRenegotiated, KindInterestOnlyPayment:
		return Marker{Name: kind}, true

	case KindOriginalPrincipal, KindOriginalRate, KindOriginalInstallments, KindOriginalTotalInterest,
		KindOriginalTotalPaid, KindOriginalBalance, KindRenegotiationDate:
		if len(f) < 1 {
			return nil, false
		}
		return Snapshot{Name: kind, Value: strings.TrimSpace(f[0])}, true
	}
	return nil, false
}

func splitFields(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(raw, ":"), ":")
}

func parseIndex(s string) int {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return i
}

func parseDecimal(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}
