package eventlevel

import (
	"slices"
)

// TrendPolicy escalates one step at a time while the subject keeps approaching over a
// full buffer, and drops back to idle once it is leaving. The alarming level is final
// for the session under this policy.
type TrendPolicy struct{}

func (TrendPolicy) Evaluate(samples []SizeMetric, current Level) Level {
	switch {
	case current >= LevelPresent && current < LevelAlarming:
		if len(samples) != BufferCapacity {
			return current
		}
		if approaching(samples) {
			return min(current+1, MaxLevel)
		}
		if leaving(samples) {
			return LevelIdle
		}
	case current == LevelIdle:
		if slices.ContainsFunc(samples, func(s SizeMetric) bool { return s > 0 }) {
			return current + 1
		}
	}
	return current
}

// approaching reports whether the samples never shrink over time.
func approaching(samples []SizeMetric) bool {
	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	return slices.Equal(sorted, samples)
}

// leaving reports whether the samples never grow over time, or whether everything
// before the last idleWindow samples is empty.
func leaving(samples []SizeMetric) bool {
	if len(samples) >= idleWindow && allZero(samples[:len(samples)-idleWindow]) {
		return true
	}
	sorted := slices.Clone(samples)
	slices.SortFunc(sorted, func(a, b SizeMetric) int { return int(b - a) })
	return slices.Equal(sorted, samples)
}
