package eventlevel

import (
	"fmt"
	"strings"
)

// Policy maps the buffered size metrics and the current level to the next level.
type Policy interface {
	// Evaluate returns the level that follows current given the samples, oldest first.
	Evaluate(samples []SizeMetric, current Level) Level
}

// PolicyKind selects an escalation policy.
type PolicyKind string

const (
	// PolicyThreshold escalates by the size of the latest detection.
	PolicyThreshold PolicyKind = "threshold"
	// PolicyTrend escalates while detections keep growing over a full buffer.
	PolicyTrend PolicyKind = "trend"
)

// UnknownPolicyError is returned when a policy name cannot be resolved.
type UnknownPolicyError struct {
	Name string
}

func (e *UnknownPolicyError) Error() string {
	return fmt.Sprintf("unknown event logic %q (expected threshold or trend)", e.Name)
}

// ParsePolicyKind resolves a configured policy name. "increase" is accepted as an alias of trend.
func ParsePolicyKind(name string) (PolicyKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", string(PolicyThreshold):
		return PolicyThreshold, nil
	case string(PolicyTrend), "increase":
		return PolicyTrend, nil
	default:
		return "", &UnknownPolicyError{Name: name}
	}
}

// NewPolicy creates the policy for kind.
func NewPolicy(kind PolicyKind) (Policy, error) {
	switch kind {
	case PolicyThreshold:
		return ThresholdPolicy{}, nil
	case PolicyTrend:
		return TrendPolicy{}, nil
	default:
		return nil, &UnknownPolicyError{Name: string(kind)}
	}
}
