package eventlevel

// SizeMetric is the perimeter of the bounding box chosen for a frame, 0 when nothing was detected.
type SizeMetric int

// MetricFromBox returns 2*width + 2*height.
func MetricFromBox(width, height int) SizeMetric {
	return SizeMetric(2*width + 2*height)
}

// BufferCapacity is the number of samples kept by a MetricBuffer.
const BufferCapacity = 10

// MetricBuffer is a sliding window over the most recent size metrics, oldest first.
// It is not safe for concurrent use; the pipeline only touches it from its capture loop.
type MetricBuffer struct {
	samples []SizeMetric
}

// NewMetricBuffer creates an empty buffer.
func NewMetricBuffer() *MetricBuffer {
	return &MetricBuffer{samples: make([]SizeMetric, 0, BufferCapacity)}
}

// Push appends a sample, evicting the oldest one when the buffer is full.
func (b *MetricBuffer) Push(metric SizeMetric) {
	if len(b.samples) == BufferCapacity {
		copy(b.samples, b.samples[1:])
		b.samples = b.samples[:BufferCapacity-1]
	}
	b.samples = append(b.samples, metric)
}

// Snapshot returns a copy of the samples in chronological order.
func (b *MetricBuffer) Snapshot() []SizeMetric {
	out := make([]SizeMetric, len(b.samples))
	copy(out, b.samples)
	return out
}

// Len returns the number of samples currently held.
func (b *MetricBuffer) Len() int {
	return len(b.samples)
}

// Full reports whether the buffer holds BufferCapacity samples.
func (b *MetricBuffer) Full() bool {
	return len(b.samples) == BufferCapacity
}

// Latest returns the most recent sample, or 0 and false when empty.
func (b *MetricBuffer) Latest() (SizeMetric, bool) {
	if len(b.samples) == 0 {
		return 0, false
	}
	return b.samples[len(b.samples)-1], true
}
