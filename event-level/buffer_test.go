package eventlevel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricBuffer_KeepsMostRecentInOrder(t *testing.T) {
	buf := NewMetricBuffer()

	for i := 1; i <= 25; i++ {
		buf.Push(SizeMetric(i))
		require.LessOrEqual(t, buf.Len(), BufferCapacity)

		snap := buf.Snapshot()
		first := max(1, i-BufferCapacity+1)
		expected := make([]SizeMetric, 0, BufferCapacity)
		for v := first; v <= i; v++ {
			expected = append(expected, SizeMetric(v))
		}
		assert.Equal(t, expected, snap, "after %d pushes", i)
	}
	assert.True(t, buf.Full())
}

func TestMetricBuffer_SnapshotIsACopy(t *testing.T) {
	buf := NewMetricBuffer()
	buf.Push(100)

	snap := buf.Snapshot()
	snap[0] = 999

	latest, ok := buf.Latest()
	require.True(t, ok)
	assert.Equal(t, SizeMetric(100), latest)
}

func TestMetricBuffer_LatestEmpty(t *testing.T) {
	_, ok := NewMetricBuffer().Latest()
	assert.False(t, ok)
}

func TestMetricFromBox(t *testing.T) {
	assert.Equal(t, SizeMetric(0), MetricFromBox(0, 0))
	assert.Equal(t, SizeMetric(300), MetricFromBox(100, 50))
}

func TestTransition_Message(t *testing.T) {
	up := Transition{From: LevelIdle, To: LevelPresent}
	down := Transition{From: LevelAlarming, To: LevelIdle}

	assert.Equal(t, "Event 1 raised to 2", up.Message())
	assert.Equal(t, "Event 4 lowered to 1", down.Message())
	assert.Equal(t, "lowered", down.Direction())
}
