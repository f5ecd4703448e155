package snapfilter

import (
	"fmt"
	"image"

	"github.com/facefx/snapfilter/utils"
	"github.com/pkg/errors"
)

// The landmark regions every LandmarkDetector is expected to provide.
// The eye naming follows the 68 point scheme, which means the subject's perspective:
// the right eye is found on the left side of the image.
const (
	LeftEye  = "left_eye"
	RightEye = "right_eye"
	Mouth    = "mouth"

	// Eyes is a virtual region: the union of the left and right eye.
	Eyes = "eyes"
)

var (
	// ErrFaceCount is returned when the detector does not find exactly one face.
	ErrFaceCount = errors.New("face count mismatch")
	// ErrUnknownRegion is returned when the requested landmark region has no points.
	ErrUnknownRegion = errors.New("unknown landmark region")
)

// Point is a landmark point in image coordinates.
type Point struct {
	X int
	Y int
}

// Region is a named, ordered subset of the facial landmark points.
type Region struct {
	Name   string
	Points []Point
}

// LandmarkSet holds the landmark points found for a single detected face.
type LandmarkSet struct {
	Face    image.Rectangle
	Regions []Region
}

// Points returns the points of the named region. The Eyes region returns
// the concatenation of the right and left eye points.
func (ls LandmarkSet) Points(name string) []Point {
	if name == Eyes {
		return append(ls.Points(RightEye), ls.Points(LeftEye)...)
	}
	var pts []Point
	for _, r := range ls.Regions {
		if r.Name == name {
			pts = append(pts, r.Points...)
		}
	}
	return pts
}

// LandmarkDetector is the facial landmark capability consumed by the compositor.
// Detect returns one LandmarkSet for each face found in the image.
type LandmarkDetector interface {
	Detect(img *image.NRGBA) ([]LandmarkSet, error)
}

// BoundingRect is an axis-aligned rectangle given by its top left corner and size.
type BoundingRect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Rect converts the bounding rectangle to an image.Rectangle.
func (r BoundingRect) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r BoundingRect) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}

// boundingRect returns the minimal rectangle enclosing all the points.
// The size is inclusive of both extreme pixels, so a single point yields a 1x1 rectangle.
func boundingRect(pts []Point) BoundingRect {
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX = utils.Min(minX, p.X)
		minY = utils.Min(minY, p.Y)
		maxX = utils.Max(maxX, p.X)
		maxY = utils.Max(maxY, p.Y)
	}
	return BoundingRect{
		X:      minX,
		Y:      minY,
		Width:  maxX - minX + 1,
		Height: maxY - minY + 1,
	}
}

// LocateRegion runs the landmark detector once over the image and returns
// the bounding rectangle of the requested region.
func LocateRegion(det LandmarkDetector, img *image.NRGBA, region string) (BoundingRect, error) {
	rects, err := LocateRegions(det, img, region)
	if err != nil {
		return BoundingRect{}, err
	}
	return rects[0], nil
}

// LocateRegions is like LocateRegion, but it resolves several regions
// from the same detection pass.
func LocateRegions(det LandmarkDetector, img *image.NRGBA, regions ...string) ([]BoundingRect, error) {
	faces, err := det.Detect(img)
	if err != nil {
		return nil, errors.Wrap(err, "landmark detection failed")
	}
	if len(faces) != 1 {
		return nil, errors.Wrapf(ErrFaceCount, "the image should have exactly one face, but got %d", len(faces))
	}

	rects := make([]BoundingRect, 0, len(regions))
	for _, name := range regions {
		pts := faces[0].Points(name)
		if len(pts) == 0 {
			return nil, errors.Wrapf(ErrUnknownRegion, "no landmark points for %q", name)
		}
		rects = append(rects, boundingRect(pts))
	}
	return rects, nil
}
