package recurrence

import (
	"fmt"
	"math"
	"time"
)

// HorizonPolicy derives expansion bounds from a "show more" multiplier.
//
// The count limit starts at BaseCount and grows by CountStep per multiplier
// step up to MaxCount. The date limit is the last second of the current year
// pushed forward by MonthStep months per step.
type HorizonPolicy struct {
	BaseCount int
	CountStep int
	MaxCount  int
	MonthStep int
	// Fixed policies always compute the multiplier 1 horizon.
	Fixed bool
	// Location decides which December 31 closes the current year. Defaults to time.Local.
	Location *time.Location
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Compute returns the horizon for the given multiplier, which must be at least 1
func (p HorizonPolicy) Compute(multiplier int) (Horizon, error) {
	if multiplier < 1 {
		return Horizon{}, newHorizonError(fmt.Sprintf("multiplier must be at least 1, got %d", multiplier))
	}
	if p.Fixed {
		multiplier = 1
	}
	step := multiplier - 1

	countLimit := p.BaseCount
	if p.MaxCount > 0 {
		countLimit += clampedProduct(p.CountStep, step, max(p.MaxCount-p.BaseCount, 0))
		countLimit = min(countLimit, p.MaxCount)
	} else {
		countLimit += clampedProduct(p.CountStep, step, math.MaxInt-p.BaseCount)
	}

	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	yearEnd := time.Date(now().In(loc).Year(), time.December, 31, 23, 59, 59, 0, loc)

	return Horizon{
		CountLimit: countLimit,
		DateLimit:  yearEnd.AddDate(0, clampedProduct(p.MonthStep, step, maxHorizonMonths), 0),
	}, nil
}

// maxHorizonMonths caps the date limit about five thousand years ahead
const maxHorizonMonths = 12 * 5000

// clampedProduct returns factor*step, or limit when the product would exceed it
func clampedProduct(factor, step, limit int) int {
	if factor <= 0 || step <= 0 {
		return factor * step
	}
	if step > limit/factor {
		return limit
	}
	return factor * step
}
