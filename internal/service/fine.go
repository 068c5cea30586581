package service

import (
	"math"
	"time"
)

// DefaultFineRate is charged per started day of lateness.
const DefaultFineRate = 5.0

// FinePolicy charges RatePerDay for every started 24h period a copy is
// returned after its due date. A non-positive rate means DefaultFineRate, so
// every late return carries a fine.
type FinePolicy struct {
	RatePerDay float64
}

func (p FinePolicy) rate() float64 {
	if p.RatePerDay <= 0 {
		return DefaultFineRate
	}
	return p.RatePerDay
}

func (p FinePolicy) Fine(due, returned time.Time) float64 {
	if !returned.After(due) {
		return 0
	}
	days := math.Ceil(returned.Sub(due).Hours() / 24)
	return days * p.rate()
}
