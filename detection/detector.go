package detection

import (
	"fmt"
	"image"
	"strings"

	"github.com/yeti47/securitycam/capture"
)

// BoundingBox is the box around a detected subject. The zero value means nothing was detected.
type BoundingBox struct {
	X      int
	Y      int
	Width  int
	Height int
}

// BoxFromRect converts an image rectangle, clamping negative coordinates to zero.
func BoxFromRect(r image.Rectangle) BoundingBox {
	r = r.Canon()
	return BoundingBox{
		X:      max(r.Min.X, 0),
		Y:      max(r.Min.Y, 0),
		Width:  max(r.Dx(), 0),
		Height: max(r.Dy(), 0),
	}
}

// Empty reports whether b is the "nothing detected" sentinel.
func (b BoundingBox) Empty() bool {
	return b == BoundingBox{}
}

// Rect converts the box back to an image rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Detector finds a subject in a frame.
type Detector interface {
	// Detect returns the first box reported by the classifier, in classifier order,
	// or the zero box when there is none or detection failed.
	Detect(frame capture.Frame) BoundingBox
	// Close releases the classifier.
	Close() error
}

// Annotator is implemented by detectors that can draw their result onto the frame.
type Annotator interface {
	Annotate(frame capture.Frame, box BoundingBox)
}

// Kind names a classifier.
type Kind string

const (
	// KindHaarUpperBody is the multi-box upper body cascade.
	KindHaarUpperBody Kind = "haar_upperbody"
	// KindHaarFrontalFace is the multi-box frontal face cascade.
	KindHaarFrontalFace Kind = "haar_frontalface"
	// KindHOG is the single-best-match pedestrian detector.
	KindHOG Kind = "hog"
)

// Kinds lists every supported classifier.
var Kinds = []Kind{KindHaarUpperBody, KindHaarFrontalFace, KindHOG}

// KindList returns the supported classifier names, comma separated.
func KindList() string {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// MultiBox reports whether the classifier returns a list of candidate boxes.
func (k Kind) MultiBox() bool {
	return k == KindHaarUpperBody || k == KindHaarFrontalFace
}

// UnknownKindError is returned for a classifier name that is not supported.
type UnknownKindError struct {
	Name string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown detection method %q (expected one of %s)", e.Name, KindList())
}

// ParseKind resolves a configured classifier name. The short command line names
// haar_face and haar_upper are accepted as aliases.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "haar_upperbody", "haar_upper":
		return KindHaarUpperBody, nil
	case "haar_frontalface", "haar_face":
		return KindHaarFrontalFace, nil
	case "hog":
		return KindHOG, nil
	default:
		return "", &UnknownKindError{Name: name}
	}
}

// First returns the first rectangle as a box, or the zero box when rects is empty.
func First(rects []image.Rectangle) BoundingBox {
	if len(rects) == 0 {
		return BoundingBox{}
	}
	return BoxFromRect(rects[0])
}
