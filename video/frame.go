package video

import (
	"image"
	"io"
	"sync"

	"github.com/yeti47/securitycam/recording"
	"gocv.io/x/gocv"
)

// MatFrame is a capture.Frame that owns a gocv.Mat. Whoever holds the frame last
// must Close it; the pipeline does so when its frame slot moves on.
type MatFrame struct {
	mat  gocv.Mat
	once sync.Once
}

func newMatFrame(mat gocv.Mat) *MatFrame {
	return &MatFrame{mat: mat}
}

// Mat exposes the underlying matrix to the gocv backends.
func (f *MatFrame) Mat() *gocv.Mat {
	return &f.mat
}

func (f *MatFrame) Width() int {
	return f.mat.Cols()
}

func (f *MatFrame) Height() int {
	return f.mat.Rows()
}

func (f *MatFrame) ToImage() (image.Image, error) {
	return f.mat.ToImage()
}

// Close releases the Mat. Further calls are no-ops.
func (f *MatFrame) Close() error {
	var err error
	f.once.Do(func() {
		err = f.mat.Close()
	})
	return err
}

var _ io.Closer = (*MatFrame)(nil)

func imageSize(mat *gocv.Mat) image.Point {
	return image.Pt(mat.Cols(), mat.Rows())
}

func imageSizeOf(settings recording.StreamSettings) image.Point {
	return image.Pt(settings.Width, settings.Height)
}
