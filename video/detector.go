package video

import (
	"fmt"
	"image/color"
	"path/filepath"

	"github.com/yeti47/securitycam/capture"
	"github.com/yeti47/securitycam/ccc/logging"
	"github.com/yeti47/securitycam/detection"
	"gocv.io/x/gocv"
)

// Cascade files shipped with OpenCV for the Haar classifiers.
var CascadeFiles = map[detection.Kind]string{
	detection.KindHaarUpperBody:   "haarcascade_upperbody.xml",
	detection.KindHaarFrontalFace: "haarcascade_frontalface_alt.xml",
}

var annotationColor = color.RGBA{R: 255, A: 255}

const annotationThickness = 2

// GoCVDetector runs one of the OpenCV classifiers on captured frames.
type GoCVDetector struct {
	kind    detection.Kind
	logger  logging.Logger
	cascade *gocv.CascadeClassifier
	hog     *gocv.HOGDescriptor
}

// NewGoCVDetector loads the classifier for kind. Haar cascades are looked up in
// cascadeDir; the HOG detector uses the built-in people detector.
func NewGoCVDetector(kind detection.Kind, cascadeDir string, logger logging.Logger) (*GoCVDetector, error) {
	if logger == nil {
		logger = logging.NopLogger
	}

	d := &GoCVDetector{
		kind:   kind,
		logger: logger,
	}

	switch {
	case kind.MultiBox():
		path := filepath.Join(cascadeDir, CascadeFiles[kind])
		classifier := gocv.NewCascadeClassifier()
		if !classifier.Load(path) {
			classifier.Close()
			return nil, fmt.Errorf("failed to load cascade classifier %s", path)
		}
		d.cascade = &classifier
		logger.Info("Cascade classifier loaded", "kind", kind, "path", path)

	case kind == detection.KindHOG:
		hog := gocv.NewHOGDescriptor()
		if err := hog.SetSVMDetector(gocv.HOGDefaultPeopleDetector()); err != nil {
			hog.Close()
			return nil, fmt.Errorf("failed to set HOG people detector: %w", err)
		}
		d.hog = &hog
		logger.Info("HOG people detector loaded")

	default:
		return nil, &detection.UnknownKindError{Name: string(kind)}
	}

	return d, nil
}

func (d *GoCVDetector) Kind() detection.Kind {
	return d.kind
}

// Detect returns the first box the classifier reports. Frames from other backends are
// converted to a Mat first. Any classifier failure yields the zero box.
func (d *GoCVDetector) Detect(frame capture.Frame) detection.BoundingBox {
	mat, release, err := matOf(frame)
	if err != nil {
		d.logger.Warn("Failed to convert frame for detection", "error", err)
		return detection.BoundingBox{}
	}
	defer release()

	if mat.Empty() {
		return detection.BoundingBox{}
	}

	if d.cascade != nil {
		return detection.First(d.cascade.DetectMultiScale(*mat))
	}
	if d.hog != nil {
		return detection.First(d.hog.DetectMultiScale(*mat))
	}
	return detection.BoundingBox{}
}

// Annotate draws a red rectangle around box. It only draws on frames that own a Mat.
func (d *GoCVDetector) Annotate(frame capture.Frame, box detection.BoundingBox) {
	if box.Empty() {
		return
	}
	mf, ok := frame.(*MatFrame)
	if !ok {
		return
	}
	gocv.Rectangle(mf.Mat(), box.Rect(), annotationColor, annotationThickness)
}

func (d *GoCVDetector) Close() error {
	if d.cascade != nil {
		if err := d.cascade.Close(); err != nil {
			return err
		}
		d.cascade = nil
	}
	if d.hog != nil {
		if err := d.hog.Close(); err != nil {
			return err
		}
		d.hog = nil
	}
	return nil
}

// matOf returns the Mat behind frame, converting image-backed frames. release must be
// called once the Mat is no longer needed.
func matOf(frame capture.Frame) (*gocv.Mat, func(), error) {
	if mf, ok := frame.(*MatFrame); ok {
		return mf.Mat(), func() {}, nil
	}

	img, err := frame.ToImage()
	if err != nil {
		return nil, nil, err
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, nil, err
	}
	return &mat, func() { mat.Close() }, nil
}

var _ detection.Detector = (*GoCVDetector)(nil)
var _ detection.Annotator = (*GoCVDetector)(nil)
