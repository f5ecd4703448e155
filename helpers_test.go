package snapfilter

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// fakeDetector returns a fixed set of faces and counts how often it was invoked.
type fakeDetector struct {
	faces []LandmarkSet
	err   error
	calls int32
}

func (d *fakeDetector) Detect(img *image.NRGBA) ([]LandmarkSet, error) {
	atomic.AddInt32(&d.calls, 1)
	return d.faces, d.err
}

func (d *fakeDetector) Calls() int {
	return int(atomic.LoadInt32(&d.calls))
}

var errDetector = errors.New("detector failure")

// face returns a landmark set with the eyes spanning the rectangle eyes and the mouth spanning mouth.
func face(eyes, mouth image.Rectangle) LandmarkSet {
	midX := (eyes.Min.X + eyes.Max.X) / 2
	return LandmarkSet{
		Face: eyes.Union(mouth),
		Regions: []Region{
			{Name: RightEye, Points: []Point{{eyes.Min.X, eyes.Min.Y}, {midX - 1, eyes.Max.Y - 1}}},
			{Name: LeftEye, Points: []Point{{midX + 1, eyes.Min.Y}, {eyes.Max.X - 1, eyes.Max.Y - 1}}},
			{Name: Mouth, Points: []Point{{mouth.Min.X, mouth.Min.Y}, {mouth.Max.X - 1, mouth.Max.Y - 1}}},
		},
	}
}

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, png.Encode(f, img))
}

// testAssets writes the clipart used by the built-in filters into a temporary directory.
func testAssets(t *testing.T) *Registry {
	t.Helper()

	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "sunglasses.png"), solidImage(120, 40, color.NRGBA{R: 0, G: 0, B: 0, A: 255}))
	writePNG(t, filepath.Join(dir, "lips.png"), solidImage(60, 20, color.NRGBA{R: 255, G: 0, B: 0, A: 255}))
	writePNG(t, filepath.Join(dir, "flowers.png"), solidImage(50, 50, color.NRGBA{R: 255, G: 255, B: 255, A: 128}))

	reg, err := RegistryFromDir(dir)
	require.NoError(t, err)
	return reg
}

// diffBounds returns the smallest rectangle containing every pixel which differs between a and b.
func diffBounds(a, b *image.NRGBA) image.Rectangle {
	var r image.Rectangle
	bounds := a.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if a.NRGBAAt(x, y) != b.NRGBAAt(x, y) {
				r = r.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return r
}
