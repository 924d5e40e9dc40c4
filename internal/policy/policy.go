// Package policy computes poll intervals for the scheduler.
//
// Every function here is pure: the next interval is a function of the
// current interval, the observed activity or failure count, and nothing
// else. The scheduler owns all mutable state; this package only decides.
package policy

import (
	"math/rand"
	"time"
)

const (
	// MinInterval is the absolute floor for any poll interval.
	MinInterval = 5 * time.Minute

	// MaxInterval is the ceiling, reached by inactive or failing sources.
	MaxInterval = 24 * time.Hour

	// DefaultInterval is the starting interval for sources that do not
	// configure one, and the base of the failure backoff curve.
	DefaultInterval = time.Hour

	// BackoffFactor is the multiplier applied per consecutive failure.
	BackoffFactor = 2

	// JitterBound is the exclusive upper bound of the uniform random
	// jitter added to every computed delay, so sources registered
	// together do not fire in lockstep.
	JitterBound = 30 * time.Second

	// Hysteresis is the minimum change between the current and proposed
	// interval before the scheduler reschedules a job. Trivial deltas
	// would thrash the job table for no benefit.
	Hysteresis = 60 * time.Second

	// highActivity is the accepted-entry count above which a source is
	// considered busy enough to poll faster.
	highActivity = 20

	// freshInterval is the interval forced when the feed advertises an
	// update within the last hour.
	freshInterval = MinInterval

	// recentInterval is the interval forced when the feed advertises an
	// update within the last day.
	recentInterval = 30 * time.Minute
)

// OnSuccess proposes the next interval after a successful poll.
//
// entryCount is the number of accepted entries the poll produced, not the
// raw fetched count. More than highActivity entries speeds the source up
// by 20%; zero entries slows it down by 20%; anything between keeps the
// current interval. When the feed advertised a last-updated timestamp
// (feedUpdated non-zero), that freshness hint takes precedence over the
// count heuristic: updated within the hour forces the minimum interval,
// within the day forces recentInterval.
//
// The proposal is always clamped to [MinInterval, MaxInterval]. Jitter is
// not applied here; the scheduler adds it when arming the timer.
func OnSuccess(current time.Duration, entryCount int, feedUpdated, now time.Time) time.Duration {
	proposed := current

	switch {
	case entryCount > highActivity:
		proposed = current * 8 / 10
	case entryCount == 0:
		proposed = current * 12 / 10
	}

	if !feedUpdated.IsZero() {
		switch age := now.Sub(feedUpdated); {
		case age < time.Hour:
			proposed = freshInterval
		case age < 24*time.Hour:
			proposed = recentInterval
		}
	}

	return Clamp(proposed)
}

// Backoff computes the failure delay for the given consecutive-failure
// count, before jitter.
//
// The curve is DefaultInterval * BackoffFactor^errorCount, capped at
// MaxInterval. The cap is applied inside the loop so large error counts
// cannot overflow the duration arithmetic.
func Backoff(errorCount int) time.Duration {
	d := DefaultInterval
	for i := 0; i < errorCount; i++ {
		d *= BackoffFactor
		if d >= MaxInterval {
			return MaxInterval
		}
	}
	return Clamp(d)
}

// OnFailure computes the delay until the next attempt after a failure:
// the backoff for errorCount plus uniform jitter in [0, JitterBound).
//
// Unlike the success path there is no hysteresis gate - every consecutive
// failure pushes the interval out, monotonically, until the cap.
func OnFailure(errorCount int) time.Duration {
	return Backoff(errorCount) + Jitter()
}

// Jitter returns a uniformly random duration in [0, JitterBound).
func Jitter() time.Duration {
	return time.Duration(rand.Int63n(int64(JitterBound)))
}

// ShouldReschedule reports whether the proposed interval differs enough
// from the current one to be worth re-arming the job's timer.
func ShouldReschedule(current, proposed time.Duration) bool {
	delta := proposed - current
	if delta < 0 {
		delta = -delta
	}
	return delta > Hysteresis
}

// Clamp bounds an interval to [MinInterval, MaxInterval].
func Clamp(d time.Duration) time.Duration {
	if d < MinInterval {
		return MinInterval
	}
	if d > MaxInterval {
		return MaxInterval
	}
	return d
}
