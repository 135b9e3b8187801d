package domain

import "strings"

// ReceiptState is the normalized settlement state of a receipt.
type ReceiptState string

const (
	ReceiptPending ReceiptState = "PENDING"
	ReceiptSettled ReceiptState = "SETTLED"
	ReceiptOther   ReceiptState = "OTHER"
)

// DefaultSettledLabels are the remote labels accepted as settlement unless
// configured otherwise. Strike documents only COMPLETED.
var DefaultSettledLabels = []string{"COMPLETED", "SETTLED", "CONFIRMED", "SUCCESS", "PAID"}

// StateSet maps remote receipt labels onto the closed ReceiptState set.
// Matching is case-insensitive and ignores surrounding whitespace.
type StateSet struct {
	settled map[string]struct{}
}

func NewStateSet(settledLabels []string) StateSet {
	s := StateSet{settled: make(map[string]struct{}, len(settledLabels))}
	for _, l := range settledLabels {
		l = strings.ToUpper(strings.TrimSpace(l))
		if l == "" {
			continue
		}
		s.settled[l] = struct{}{}
	}
	return s
}

// Normalize classifies a remote label.
func (s StateSet) Normalize(label string) ReceiptState {
	l := strings.ToUpper(strings.TrimSpace(label))
	if _, ok := s.settled[l]; ok {
		return ReceiptSettled
	}
	if l == string(ReceiptPending) {
		return ReceiptPending
	}
	return ReceiptOther
}

// AnySettled reports whether at least one receipt normalizes to SETTLED.
func (s StateSet) AnySettled(receipts []Receipt) bool {
	for _, r := range receipts {
		if s.Normalize(r.State) == ReceiptSettled {
			return true
		}
	}
	return false
}

// Labels returns the accepted settlement labels, upper-cased.
func (s StateSet) Labels() []string {
	out := make([]string, 0, len(s.settled))
	for l := range s.settled {
		out = append(out, l)
	}
	return out
}
