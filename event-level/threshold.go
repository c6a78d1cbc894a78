package eventlevel

const (
	// ConcerningMetric is the inclusive lower bound of the concerning range.
	ConcerningMetric SizeMetric = 300
	// AlarmingMetric is the inclusive lower bound of the alarming range.
	AlarmingMetric SizeMetric = 500
	// idleWindow is the number of trailing empty samples that return the level to idle.
	idleWindow = 5
)

// ThresholdPolicy jumps straight to the level implied by the latest metric and only
// returns to idle after idleWindow consecutive empty samples.
type ThresholdPolicy struct{}

func (ThresholdPolicy) Evaluate(samples []SizeMetric, current Level) Level {
	if len(samples) == 0 {
		return current
	}
	latest := samples[len(samples)-1]

	switch {
	case current > LevelIdle && latest >= ConcerningMetric && latest < AlarmingMetric:
		return LevelConcerning
	case current > LevelIdle && latest >= AlarmingMetric:
		return LevelAlarming
	case current == LevelIdle && latest > 0:
		return LevelPresent
	}

	if allZero(tail(samples, idleWindow)) {
		return LevelIdle
	}
	return current
}

// tail returns the last n samples, or all of them when fewer are held.
func tail(samples []SizeMetric, n int) []SizeMetric {
	if len(samples) <= n {
		return samples
	}
	return samples[len(samples)-n:]
}

func allZero(samples []SizeMetric) bool {
	for _, s := range samples {
		if s != 0 {
			return false
		}
	}
	return true
}
