package snapfilter

import (
	"image"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLandmark_BoundingRectIsInclusive(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(BoundingRect{X: 4, Y: 7, Width: 1, Height: 1}, boundingRect([]Point{{4, 7}}))
	assert.Equal(
		BoundingRect{X: 10, Y: 20, Width: 31, Height: 6},
		boundingRect([]Point{{25, 22}, {10, 25}, {40, 20}}),
	)
	assert.Equal(image.Rect(10, 20, 41, 26), boundingRect([]Point{{10, 20}, {40, 25}}).Rect())
}

func TestLandmark_EyesIsTheUnionOfBothEyes(t *testing.T) {
	ls := face(image.Rect(100, 50, 200, 80), image.Rect(120, 150, 180, 170))

	assert.Len(t, ls.Points(Eyes), len(ls.Points(RightEye))+len(ls.Points(LeftEye)))
	assert.Equal(t, boundingRect(ls.Points(Eyes)), BoundingRect{X: 100, Y: 50, Width: 100, Height: 30})
	assert.Empty(t, ls.Points("nose"))
}

func TestLandmark_LocateRegion(t *testing.T) {
	img := solidImage(300, 300, gray)
	det := &fakeDetector{faces: []LandmarkSet{
		face(image.Rect(100, 50, 200, 80), image.Rect(120, 150, 180, 170)),
	}}

	rect, err := LocateRegion(det, img, Mouth)
	require.NoError(t, err)
	assert.Equal(t, BoundingRect{X: 120, Y: 150, Width: 60, Height: 20}, rect)
	assert.Equal(t, 1, det.Calls())
}

func TestLandmark_LocateRegionsRunsTheDetectorOnce(t *testing.T) {
	img := solidImage(300, 300, gray)
	det := &fakeDetector{faces: []LandmarkSet{
		face(image.Rect(100, 50, 200, 80), image.Rect(120, 150, 180, 170)),
	}}

	rects, err := LocateRegions(det, img, Mouth, Eyes, RightEye)
	require.NoError(t, err)
	require.Len(t, rects, 3)
	assert.Equal(t, 1, det.Calls())
	assert.Equal(t, 100, rects[1].Width)
	assert.Equal(t, 100, rects[2].X)
}

func TestLandmark_FaceCountMismatch(t *testing.T) {
	img := solidImage(300, 300, gray)
	one := face(image.Rect(100, 50, 200, 80), image.Rect(120, 150, 180, 170))

	testCases := []struct {
		name  string
		faces []LandmarkSet
	}{
		{name: "no face", faces: nil},
		{name: "two faces", faces: []LandmarkSet{one, one}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LocateRegion(&fakeDetector{faces: tc.faces}, img, Eyes)
			assert.True(t, errors.Is(err, ErrFaceCount))
		})
	}
}

func TestLandmark_UnknownRegion(t *testing.T) {
	img := solidImage(300, 300, gray)
	det := &fakeDetector{faces: []LandmarkSet{
		face(image.Rect(100, 50, 200, 80), image.Rect(120, 150, 180, 170)),
	}}

	_, err := LocateRegion(det, img, "jaw")
	assert.True(t, errors.Is(err, ErrUnknownRegion))
}

func TestLandmark_DetectorError(t *testing.T) {
	img := solidImage(300, 300, gray)

	_, err := LocateRegion(&fakeDetector{err: errDetector}, img, Eyes)
	assert.True(t, errors.Is(err, errDetector))
	assert.False(t, errors.Is(err, ErrFaceCount))
}
