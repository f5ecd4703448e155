// Package imop implements the alpha compositing operation used for mixing
// a clipart element with its backdrop.
//
// The image/draw core package implements the source-over-destination operation
// on premultiplied colors, which alters the backdrop's alpha channel and rounds
// differently. The snapfilter overlays need the straight (non-premultiplied)
// blend out = (1 - a) * backdrop + a * source applied only to the color
// channels, with the backdrop alpha left untouched.
package imop

import (
	"image"
)

// Clip restricts the destination rectangle r to the destination bounds dr
// and to the area covered by the source bounds sr, where sp is the source
// point aligned with r.Min. It returns the clipped rectangle and the matching
// source point. The returned rectangle may be empty.
func Clip(dr, r, sr image.Rectangle, sp image.Point) (image.Rectangle, image.Point) {
	orig := r.Min
	r = r.Intersect(dr)
	r = r.Intersect(sr.Add(orig.Sub(sp)))
	if r.Empty() {
		return image.Rectangle{}, sp
	}
	return r, sp.Add(r.Min.Sub(orig))
}

// Over blends src over dst inside the r rectangle, aligning sp in src with r.Min in dst.
// The rectangle is clipped against both images first. Only the R, G and B channels of dst
// are modified, weighted by the source alpha. It returns the rectangle of dst
// which has been blended.
func Over(dst *image.NRGBA, r image.Rectangle, src *image.NRGBA, sp image.Point) image.Rectangle {
	r, sp = Clip(dst.Bounds(), r, src.Bounds(), sp)
	if r.Empty() {
		return r
	}

	w := r.Dx()
	for y := 0; y < r.Dy(); y++ {
		di := dst.PixOffset(r.Min.X, r.Min.Y+y)
		si := src.PixOffset(sp.X, sp.Y+y)

		for x := 0; x < w; x++ {
			a := uint32(src.Pix[si+3])
			switch a {
			case 0:
				// fully transparent, the backdrop stays as it is
			case 0xff:
				copy(dst.Pix[di:di+3], src.Pix[si:si+3])
			default:
				for c := 0; c < 3; c++ {
					dst.Pix[di+c] = mix(dst.Pix[di+c], src.Pix[si+c], a)
				}
			}
			di += 4
			si += 4
		}
	}
	return r
}

// mix returns round((1 - a/255) * b + a/255 * s).
func mix(b, s uint8, a uint32) uint8 {
	return uint8((uint32(b)*(0xff-a) + uint32(s)*a + 0x7f) / 0xff)
}
