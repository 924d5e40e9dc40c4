package policy

import (
	"testing"
	"time"
)

// TestOnSuccess_HighActivitySpeedsUp verifies that a busy source (more
// than 20 accepted entries) has its interval cut by 20%.
func TestOnSuccess_HighActivitySpeedsUp(t *testing.T) {
	got := OnSuccess(time.Hour, 25, time.Time{}, time.Now())
	want := 48 * time.Minute // 3600s * 0.8

	if got != want {
		t.Errorf("OnSuccess(1h, 25 entries) = %v, want %v", got, want)
	}
}

// TestOnSuccess_QuietSlowsDown verifies that a poll yielding zero accepted
// entries stretches the interval by 20%.
func TestOnSuccess_QuietSlowsDown(t *testing.T) {
	got := OnSuccess(time.Hour, 0, time.Time{}, time.Now())
	want := 72 * time.Minute // 3600s * 1.2

	if got != want {
		t.Errorf("OnSuccess(1h, 0 entries) = %v, want %v", got, want)
	}
}

// TestOnSuccess_ModerateActivityKeepsInterval verifies that counts between
// 1 and 20 leave the interval unchanged.
func TestOnSuccess_ModerateActivityKeepsInterval(t *testing.T) {
	for _, count := range []int{1, 10, 20} {
		got := OnSuccess(time.Hour, count, time.Time{}, time.Now())
		if got != time.Hour {
			t.Errorf("OnSuccess(1h, %d entries) = %v, want 1h", count, got)
		}
	}
}

// TestOnSuccess_ClampsAtFloor verifies that repeated speedups cannot push
// the interval below the minimum.
func TestOnSuccess_ClampsAtFloor(t *testing.T) {
	got := OnSuccess(6*time.Minute, 25, time.Time{}, time.Now())
	if got != MinInterval {
		t.Errorf("OnSuccess(6m, 25 entries) = %v, want clamp to %v", got, MinInterval)
	}
}

// TestOnSuccess_ClampsAtCeiling verifies that repeated slowdowns cannot
// push the interval above the maximum.
func TestOnSuccess_ClampsAtCeiling(t *testing.T) {
	got := OnSuccess(23*time.Hour, 0, time.Time{}, time.Now())
	if got != MaxInterval {
		t.Errorf("OnSuccess(23h, 0 entries) = %v, want clamp to %v", got, MaxInterval)
	}
}

// TestOnSuccess_FreshFeedForcesMinimum verifies that a feed advertising an
// update within the last hour is polled at the minimum interval regardless
// of the entry count.
func TestOnSuccess_FreshFeedForcesMinimum(t *testing.T) {
	now := time.Now()
	updated := now.Add(-30 * time.Minute)

	got := OnSuccess(time.Hour, 0, updated, now)
	if got != MinInterval {
		t.Errorf("OnSuccess with 30m-old update = %v, want %v", got, MinInterval)
	}
}

// TestOnSuccess_RecentFeedForcesThirtyMinutes verifies that a feed updated
// within the last day is polled every 30 minutes.
func TestOnSuccess_RecentFeedForcesThirtyMinutes(t *testing.T) {
	now := time.Now()
	updated := now.Add(-6 * time.Hour)

	got := OnSuccess(2*time.Hour, 5, updated, now)
	if got != 30*time.Minute {
		t.Errorf("OnSuccess with 6h-old update = %v, want 30m", got)
	}
}

// TestOnSuccess_StaleHintFallsBackToCounts verifies that a feed updated
// more than a day ago gets no freshness override.
func TestOnSuccess_StaleHintFallsBackToCounts(t *testing.T) {
	now := time.Now()
	updated := now.Add(-48 * time.Hour)

	got := OnSuccess(time.Hour, 0, updated, now)
	want := 72 * time.Minute
	if got != want {
		t.Errorf("OnSuccess with 48h-old update = %v, want %v", got, want)
	}
}

// TestBackoff_Curve verifies the exponential failure curve: 1h base,
// doubling per failure, capped at 24h.
func TestBackoff_Curve(t *testing.T) {
	tests := []struct {
		errorCount int
		want       time.Duration
	}{
		{0, time.Hour},
		{1, 2 * time.Hour},
		{2, 4 * time.Hour},
		{3, 8 * time.Hour},
		{4, 16 * time.Hour},
		{5, MaxInterval}, // 32h capped
		{10, MaxInterval},
	}

	for _, tt := range tests {
		if got := Backoff(tt.errorCount); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.errorCount, got, tt.want)
		}
	}
}

// TestBackoff_LargeCountDoesNotOverflow verifies that a source failing for
// weeks (30+ consecutive failures) still computes exactly the cap instead
// of overflowing the duration arithmetic.
func TestBackoff_LargeCountDoesNotOverflow(t *testing.T) {
	for _, count := range []int{30, 64, 1000} {
		if got := Backoff(count); got != MaxInterval {
			t.Errorf("Backoff(%d) = %v, want %v", count, got, MaxInterval)
		}
	}
}

// TestOnFailure_AddsBoundedJitter verifies the failure delay is the
// backoff plus jitter in [0, JitterBound).
func TestOnFailure_AddsBoundedJitter(t *testing.T) {
	for i := 0; i < 100; i++ {
		got := OnFailure(1)
		base := 2 * time.Hour
		if got < base || got >= base+JitterBound {
			t.Fatalf("OnFailure(1) = %v, want in [%v, %v)", got, base, base+JitterBound)
		}
	}
}

// TestJitter_Bounds verifies jitter stays within [0, JitterBound).
func TestJitter_Bounds(t *testing.T) {
	for i := 0; i < 1000; i++ {
		j := Jitter()
		if j < 0 || j >= JitterBound {
			t.Fatalf("Jitter() = %v, want in [0, %v)", j, JitterBound)
		}
	}
}

// TestShouldReschedule_Hysteresis verifies that only interval changes
// larger than 60 seconds trigger a reschedule.
func TestShouldReschedule_Hysteresis(t *testing.T) {
	tests := []struct {
		current  time.Duration
		proposed time.Duration
		want     bool
	}{
		{time.Hour, time.Hour, false},
		{time.Hour, time.Hour + 30*time.Second, false},
		{time.Hour, time.Hour + 60*time.Second, false}, // exactly the threshold
		{time.Hour, time.Hour + 61*time.Second, true},
		{time.Hour, time.Hour - 61*time.Second, true},
		{time.Hour, 48 * time.Minute, true},
	}

	for _, tt := range tests {
		if got := ShouldReschedule(tt.current, tt.proposed); got != tt.want {
			t.Errorf("ShouldReschedule(%v, %v) = %v, want %v", tt.current, tt.proposed, got, tt.want)
		}
	}
}

// TestClamp verifies the interval bounds.
func TestClamp(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{time.Minute, MinInterval},
		{MinInterval, MinInterval},
		{time.Hour, time.Hour},
		{MaxInterval, MaxInterval},
		{48 * time.Hour, MaxInterval},
	}

	for _, tt := range tests {
		if got := Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
