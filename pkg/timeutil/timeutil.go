package timeutil

import (
	"math"
	"math/rand"
	"time"
)

// DurationPtr is a helper function to create a pointer to a time.Duration
func DurationPtr(d time.Duration) *time.Duration {
	return &d
}

// Sleeper abstracts blocking delay so callers on the crawl's hot path can be
// driven by a fake clock in tests instead of actually waiting.
type Sleeper interface {
	Sleep(d time.Duration)
}

// RealSleeper sleeps for real using time.Sleep.
type RealSleeper struct{}

func NewRealSleeper() RealSleeper {
	return RealSleeper{}
}

func (RealSleeper) Sleep(d time.Duration) {
	time.Sleep(d)
}

// MaxDuration returns the largest duration among the given values, or zero
// when the slice is empty.
func MaxDuration(durations []time.Duration) time.Duration {
	var max time.Duration
	if len(durations) > 0 {
		max = durations[0]
	}
	for _, d := range durations {
		if d > max {
			max = d
		}
	}
	return max
}

// ComputeJitter returns a uniformly distributed duration in [0, max), or
// zero when max is not positive.
func ComputeJitter(max time.Duration, rng rand.Rand) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rng.Int63n(int64(max)))
}

// ExponentialBackoffDelay computes the backoff delay for the given attempt
// number (1-indexed) using the supplied BackoffParam, adding up to jitter of
// uniformly-distributed extra delay. rng is consumed by value so callers can
// pass a snapshot without sharing mutable state across goroutines.
func ExponentialBackoffDelay(
	attempt int,
	jitter time.Duration,
	rng rand.Rand,
	backoffParam BackoffParam,
) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	exponent := float64(attempt - 1)
	delay := float64(backoffParam.InitialDuration()) * math.Pow(backoffParam.Multiplier(), exponent)
	if max := float64(backoffParam.MaxDuration()); max > 0 && delay > max {
		delay = max
	}

	if jitter > 0 {
		delay += float64(rng.Int63n(int64(jitter)))
	}

	return time.Duration(delay)
}
