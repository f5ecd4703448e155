package snapfilter

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/facefx/snapfilter/imop"
	"github.com/facefx/snapfilter/utils"
	"github.com/pkg/errors"
)

// ErrOutOfFrame is returned when the positioned clipart does not overlap the image.
var ErrOutOfFrame = errors.New("asset entirely out of frame")

// Placement describes how a clipart asset is scaled and anchored relative to
// the bounding rectangle of a landmark region. The offsets are fractions of the
// scaled asset size, not of the detected rectangle.
type Placement struct {
	// Scale is the asset width relative to the rectangle width.
	Scale float64
	// VerticalDivisor raises the asset top above the rectangle top by assetHeight/VerticalDivisor.
	VerticalDivisor float64
	// HorizontalShift moves the asset left of the rectangle by assetWidth*HorizontalShift.
	HorizontalShift float64
}

// Window returns the destination rectangle of an asset of the given (already scaled) size.
func (pl Placement) Window(rect BoundingRect, size image.Point) image.Rectangle {
	dy := 0
	if pl.VerticalDivisor > 0 {
		dy = int(math.Floor(float64(size.Y) / pl.VerticalDivisor))
	}
	dx := int(math.Floor(float64(size.X) * pl.HorizontalShift))

	origin := image.Pt(rect.X-dx, rect.Y-dy)
	return image.Rectangle{Min: origin, Max: origin.Add(size)}
}

// scaleAsset resizes the asset to the placement width, preserving its aspect ratio.
// The scaled height is truncated, never rounded up.
func (pl Placement) scaleAsset(asset *image.NRGBA, rect BoundingRect) *image.NRGBA {
	size := asset.Bounds().Size()
	w := utils.Max(int(math.Floor(float64(rect.Width)*pl.Scale)), 1)
	h := utils.Max(int(float64(size.Y)*float64(w)/float64(size.X)), 1)
	return imaging.Resize(asset, w, h, imaging.Lanczos)
}

// Compose scales the asset according to the placement, anchors it to rect and
// alpha blends it over img, clipping the asset to the image frame.
// The image is modified in place. It returns the rectangle of img which has been blended.
func Compose(img *image.NRGBA, rect BoundingRect, asset *image.NRGBA, pl Placement) (image.Rectangle, error) {
	scaled := pl.scaleAsset(asset, rect)
	window := pl.Window(rect, scaled.Bounds().Size())

	if window.Intersect(img.Bounds()).Empty() {
		return image.Rectangle{}, errors.Wrapf(ErrOutOfFrame, "window %v, image %v", window, img.Bounds())
	}
	return imop.Over(img, window, scaled, image.Point{}), nil
}

// ComposeFullFrame resizes the asset to the exact image size and blends it over the whole frame.
func ComposeFullFrame(img *image.NRGBA, asset *image.NRGBA) image.Rectangle {
	b := img.Bounds()
	scaled := imaging.Resize(asset, b.Dx(), b.Dy(), imaging.Lanczos)
	return imop.Over(img, b, scaled, image.Point{})
}
