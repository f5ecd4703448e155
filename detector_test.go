package snapfilter

import (
	"image"
	"path/filepath"
	"testing"

	pigo "github.com/esimov/pigo/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	cascadeDir = filepath.Join("testdata", "cascade")
	sampleFile = filepath.Join("testdata", "sample.jpg")
)

// recordingDetector keeps the faces returned by the last detection.
type recordingDetector struct {
	LandmarkDetector
	faces []LandmarkSet
}

func (d *recordingDetector) Detect(img *image.NRGBA) ([]LandmarkSet, error) {
	faces, err := d.LandmarkDetector.Detect(img)
	d.faces = faces
	return faces, err
}

func newSampleDetector(t *testing.T) *PigoDetector {
	t.Helper()

	det, err := NewPigoDetector(CascadeConfig{Dir: cascadeDir})
	require.NoError(t, err)
	return det
}

func TestDetector_Defaults(t *testing.T) {
	cfg := CascadeConfig{Dir: "cascade", Angle: 3}.withDefaults()

	assert.Equal(t, filepath.Join("cascade", "facefinder"), cfg.FaceFinder)
	assert.Equal(t, filepath.Join("cascade", "puploc"), cfg.Puploc)
	assert.Equal(t, filepath.Join("cascade", "lps"), cfg.Landmarks)
	assert.Equal(t, 20, cfg.MinSize)
	assert.Equal(t, 1000, cfg.MaxSize)
	assert.Equal(t, 1.1, cfg.ScaleFactor)
	assert.Equal(t, 63, cfg.Perturbs)
	assert.Equal(t, 1.0, cfg.Angle)

	custom := CascadeConfig{FaceFinder: "/tmp/ff", MinSize: 50, QualityThreshold: 9}.withDefaults()
	assert.Equal(t, "/tmp/ff", custom.FaceFinder)
	assert.Equal(t, 50, custom.MinSize)
	assert.Equal(t, float32(9), custom.QualityThreshold)
}

func TestDetector_MissingCascades(t *testing.T) {
	_, err := NewPigoDetector(CascadeConfig{Dir: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
}

func TestDetector_SplitEyes(t *testing.T) {
	pts := []Point{{100, 50}, {200, 52}, {90, 48}, {150, 40}, {210, 55}}

	right, left := splitEyes(pts, 150)
	assert.Equal(t, []Point{{100, 50}, {90, 48}}, right)
	assert.Equal(t, []Point{{200, 52}, {150, 40}, {210, 55}}, left)
}

func TestDetector_ValidPuploc(t *testing.T) {
	params := pigo.ImageParams{Rows: 100, Cols: 80}

	assert.True(t, validPuploc(&pigo.Puploc{Row: 10, Col: 10}, params))
	assert.False(t, validPuploc(nil, params))
	assert.False(t, validPuploc(&pigo.Puploc{Row: -1, Col: 10}, params))
	assert.False(t, validPuploc(&pigo.Puploc{Row: 10, Col: 80}, params))
	assert.Equal(t, Point{X: 12, Y: 34}, toPoint(&pigo.Puploc{Row: 34, Col: 12}))
}

func TestDetector_SamplePortrait(t *testing.T) {
	det := newSampleDetector(t)
	img, err := FromPath(sampleFile).Load()
	require.NoError(t, err)

	faces, err := det.Detect(img)
	require.NoError(t, err)
	require.Len(t, faces, 1)

	ls := faces[0]
	var names []string
	for _, r := range ls.Regions {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{RightEye, LeftEye, Mouth}, names)

	right, left := ls.Points(RightEye), ls.Points(LeftEye)
	require.NotEmpty(t, right)
	require.NotEmpty(t, left)
	for _, r := range right {
		for _, l := range left {
			assert.Less(t, r.X, l.X)
		}
	}

	eyes := boundingRect(ls.Points(Eyes))
	mouth := boundingRect(ls.Points(Mouth))
	assert.Greater(t, len(ls.Points(Eyes)), 2)
	assert.NotEmpty(t, ls.Points(Mouth))
	assert.Greater(t, mouth.Y, eyes.Y+eyes.Height)
	assert.True(t, eyes.Rect().In(img.Bounds()))
	assert.True(t, mouth.Rect().In(img.Bounds()))
	assert.True(t, eyes.Rect().Overlaps(ls.Face))
}

func TestDetector_SunglassesStayInsideTheWindow(t *testing.T) {
	det := &recordingDetector{LandmarkDetector: newSampleDetector(t)}
	img, err := FromPath(sampleFile).Load()
	require.NoError(t, err)

	p := &Processor{Detector: det, Assets: testAssets(t)}
	res, err := p.AddSunglasses(FromImage(img))
	require.NoError(t, err)
	require.Len(t, det.faces, 1)

	rect := boundingRect(det.faces[0].Points(Eyes))
	pl := SunglassesOverlay.Placement
	size := pl.scaleAsset(solidImage(120, 40, black), rect).Bounds().Size()
	window := pl.Window(rect, size).Intersect(img.Bounds())

	diff := diffBounds(res, img)
	assert.False(t, diff.Empty())
	assert.True(t, diff.In(window), "changed %v outside of %v", diff, window)
}
