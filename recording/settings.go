package recording

import (
	"strings"
	"time"
)

var DefaultSnapshotSettings = SnapshotSettings{
	LowQuality:  50,
	HighQuality: 90,
}

var DefaultStreamSettings = StreamSettings{
	Codec:     "MJPG",
	FrameRate: 12,
	Width:     1280,
	Height:    720,
}

type SnapshotSettings struct {
	Directory   string // Directory the snapshots are written to
	LowQuality  int    // JPEG quality of level 2 snapshots
	HighQuality int    // JPEG quality of level 3 snapshots
}

type StreamSettings struct {
	Directory string  // Directory the session recording is written to
	Codec     string  // FourCC of the recording, e.g. "MJPG"
	FrameRate float64 // Frame rate written into the container
	Width     int     // Frame width of the recording; frames are resized to fit
	Height    int     // Frame height of the recording
}

// Recording describes a finished continuous recording stream.
type Recording struct {
	Path      string
	Codec     string
	FrameRate float64
	Frames    int
	StartedAt time.Time
	EndedAt   time.Time
}

// Duration is the wall-clock time the stream was open.
func (r *Recording) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// SnapshotTimeFormat gives snapshot names a one second resolution. Two snapshots of the
// same quality taken within the same second share a name and the later one wins.
const SnapshotTimeFormat = "2006-01-02_15-04-05"

// LowResolutionName returns the file name of a level 2 snapshot taken at t.
func LowResolutionName(t time.Time) string {
	return "low_resolution_pic_" + t.Format(SnapshotTimeFormat) + ".jpg"
}

// HighResolutionName returns the file name of a level 3 snapshot taken at t.
func HighResolutionName(t time.Time) string {
	return "hi_resolution_pic_" + t.Format(SnapshotTimeFormat) + ".jpg"
}

// StreamName returns the file name of a recording opened at t.
func StreamName(t time.Time, extension string) string {
	return "recording_" + t.Format("20060102_150405") + extension
}

// CodecToFileExtension picks the container extension for a capture FourCC.
func CodecToFileExtension(codec string) string {
	switch strings.ToUpper(codec) {
	case "MP4V", "H264", "AVC1":
		return ".mp4"
	default:
		// MJPG and raw formats go into AVI containers
		return ".avi"
	}
}
