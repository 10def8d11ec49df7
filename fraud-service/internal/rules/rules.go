// Package rules holds the fraud decision logic. It has no I/O.
package rules

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxAttemptsInWindow is the number of prior attempts within the lookback
// window at which further attempts on a card are declined.
const MaxAttemptsInWindow = 8

const (
	ReasonOK                    = "OK"
	ReasonAmountExceedsLimit    = "AMOUNT_EXCEEDS_LIMIT"
	ReasonFrequencyExceedsLimit = "FREQUENCY_EXCEEDS_LIMIT"
)

type Policy struct {
	AmountLimit    decimal.Decimal
	LookbackWindow time.Duration
}

type Decision struct {
	Approved bool
	Reason   string
}

// WindowStart is the earliest event time still counted for an attempt at t.
func (p Policy) WindowStart(t time.Time) time.Time {
	return t.Add(-p.LookbackWindow)
}

// Evaluate decides an attempt of amount given priorAttempts recorded within
// the window. An amount equal to the limit passes. When both rules trigger
// the amount reason is reported.
func (p Policy) Evaluate(amount decimal.Decimal, priorAttempts int64) Decision {
	switch {
	case amount.GreaterThan(p.AmountLimit):
		return Decision{Approved: false, Reason: ReasonAmountExceedsLimit}
	case priorAttempts >= MaxAttemptsInWindow:
		return Decision{Approved: false, Reason: ReasonFrequencyExceedsLimit}
	default:
		return Decision{Approved: true, Reason: ReasonOK}
	}
}
