package snapfilter

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_EncodesTheFilteredImage(t *testing.T) {
	var in bytes.Buffer
	require.NoError(t, png.Encode(&in, solidImage(500, 500, gray)))

	p := &Processor{Detector: portraitDetector(), Assets: testAssets(t)}
	var out bytes.Buffer
	require.NoError(t, p.Process(Sunglasses, &in, &out, "result.png"))

	img, format, err := image.Decode(&out)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, image.Rect(0, 0, 500, 500), img.Bounds())
}

func TestProcess_NothingIsWrittenOnError(t *testing.T) {
	var in bytes.Buffer
	require.NoError(t, png.Encode(&in, solidImage(50, 50, gray)))

	p := &Processor{Detector: &fakeDetector{}, Assets: testAssets(t)}
	var out bytes.Buffer
	err := p.Process(Lips, &in, &out, "result.jpg")
	assert.True(t, errors.Is(err, ErrFaceCount))
	assert.Zero(t, out.Len())
}
