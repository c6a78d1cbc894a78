package pipeline

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/yeti47/securitycam/capture"
)

// sharedFrame is a published frame plus the number of holders: the slot itself and
// every reader that acquired it.
type sharedFrame struct {
	frame capture.Frame
	refs  atomic.Int32
}

func (f *sharedFrame) retain() bool {
	for {
		n := f.refs.Load()
		if n <= 0 {
			return false
		}
		if f.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// release drops one reference and closes the frame with the last one.
func (f *sharedFrame) release() {
	if f.refs.Add(-1) != 0 {
		return
	}
	if closer, ok := f.frame.(io.Closer); ok {
		closer.Close()
	}
}

// frameSlot holds the latest frame of a pipeline. Only the capture goroutine publishes.
// A displaced frame is closed as soon as no reader holds it any more, so native
// buffers behind the frames are freed at capture rate instead of by the GC.
type frameSlot struct {
	current atomic.Pointer[sharedFrame]
}

// publish replaces the current frame. A nil frame empties the slot.
func (s *frameSlot) publish(frame capture.Frame) {
	var next *sharedFrame
	if frame != nil {
		next = &sharedFrame{frame: frame}
		next.refs.Store(1)
	}
	if prev := s.current.Swap(next); prev != nil {
		prev.release()
	}
}

// acquire returns the current frame and a release func that must be called once the
// caller is done with it. The frame is nil when the slot is empty.
func (s *frameSlot) acquire() (capture.Frame, func()) {
	for {
		shared := s.current.Load()
		if shared == nil {
			return nil, func() {}
		}
		if shared.retain() {
			var once sync.Once
			return shared.frame, func() { once.Do(shared.release) }
		}
	}
}
