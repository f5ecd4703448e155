package snapfilter

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrChannelCount is returned when an in-memory input image does not have exactly 3 channels.
var ErrChannelCount = errors.New("wrong channel count")

// ErrUnsupportedFormat is returned when the output format cannot be derived from the file name.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Buffer is a raw, interleaved 8 bit pixel buffer. Pix holds Height rows of Width*Channels bytes.
type Buffer struct {
	Pix      []uint8
	Width    int
	Height   int
	Channels int
}

type sourceKind int

const (
	pathSource sourceKind = iota
	readerSource
	bufferSource
	imageSource
)

// Source is the input of a filter: a file on disk, an encoded stream,
// a raw pixel buffer or an already decoded image.
type Source struct {
	kind sourceKind
	path string
	r    io.Reader
	buf  Buffer
	img  image.Image
}

// FromPath returns a source loading the image file found at path.
func FromPath(path string) Source { return Source{kind: pathSource, path: path} }

// FromReader returns a source decoding an encoded image (jpeg, png, bmp, gif or webp) from r.
func FromReader(r io.Reader) Source { return Source{kind: readerSource, r: r} }

// FromBuffer returns a source backed by a raw pixel buffer, which must have 3 channels.
func FromBuffer(b Buffer) Source { return Source{kind: bufferSource, buf: b} }

// FromImage returns a source backed by a decoded image, which must not carry
// an alpha channel or be single channel.
func FromImage(img image.Image) Source { return Source{kind: imageSource, img: img} }

// Load returns a fresh RGB copy of the source as an opaque *image.NRGBA.
// Encoded inputs are converted to RGB, while in-memory inputs are validated
// against the 3 channel requirement.
func (s Source) Load() (*image.NRGBA, error) {
	switch s.kind {
	case pathSource:
		src, err := imaging.Open(s.path, imaging.AutoOrientation(true))
		if err != nil {
			return nil, errors.Wrapf(err, "could not open the image %q", s.path)
		}
		return toRGB(src), nil
	case readerSource:
		src, err := imaging.Decode(s.r, imaging.AutoOrientation(true))
		if err != nil {
			return nil, errors.Wrap(err, "could not decode the image")
		}
		return toRGB(src), nil
	case bufferSource:
		return bufferToRGB(s.buf)
	case imageSource:
		if s.img == nil {
			return nil, errors.New("nil image")
		}
		if n := channelCount(s.img); n != 3 {
			return nil, errors.Wrapf(ErrChannelCount, "the image is required to have 3 channels, but it has %d", n)
		}
		return toRGB(s.img), nil
	}
	return nil, errors.New("invalid image source")
}

// toRGB copies the image into a new *image.NRGBA with min-point at (0, 0),
// discarding the alpha channel.
func toRGB(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

func bufferToRGB(b Buffer) (*image.NRGBA, error) {
	if b.Channels != 3 {
		return nil, errors.Wrapf(ErrChannelCount, "the image is required to have 3 channels, but it has %d", b.Channels)
	}
	if b.Width <= 0 || b.Height <= 0 {
		return nil, errors.Errorf("invalid image size %dx%d", b.Width, b.Height)
	}
	if len(b.Pix) != b.Width*b.Height*3 {
		return nil, errors.Errorf("pixel buffer length %d does not match %dx%dx3", len(b.Pix), b.Width, b.Height)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	for si, di := 0, 0; si < len(b.Pix); si, di = si+3, di+4 {
		copy(dst.Pix[di:di+3], b.Pix[si:si+3])
		dst.Pix[di+3] = 0xff
	}
	return dst, nil
}

// ToBuffer converts the image into a raw 3 channel pixel buffer.
func ToBuffer(img *image.NRGBA) Buffer {
	b := img.Bounds()
	buf := Buffer{
		Pix:      make([]uint8, 0, b.Dx()*b.Dy()*3),
		Width:    b.Dx(),
		Height:   b.Dy(),
		Channels: 3,
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		for x := 0; x < b.Dx(); x++ {
			buf.Pix = append(buf.Pix, img.Pix[i], img.Pix[i+1], img.Pix[i+2])
			i += 4
		}
	}
	return buf
}

// channelCount reports how many channels the image carries.
// Images with an alpha channel count as 3 channel ones when they are fully opaque.
func channelCount(img image.Image) int {
	switch img.(type) {
	case *image.Gray, *image.Gray16, *image.Alpha, *image.Alpha16:
		return 1
	case *image.YCbCr:
		return 3
	case *image.CMYK:
		return 4
	}
	if o, ok := img.(interface{ Opaque() bool }); ok && !o.Opaque() {
		return 4
	}
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model, color.AlphaModel, color.Alpha16Model:
		return 1
	}
	return 3
}

// decodeRGBA decodes an image file keeping its alpha channel.
func decodeRGBA(path string) (*image.NRGBA, error) {
	src, err := imaging.Open(path)
	if err != nil {
		return nil, err
	}
	return imaging.Clone(src), nil
}

// Encode writes the image to w in the format given by the extension of name.
// An empty extension falls back to jpeg.
func Encode(w io.Writer, name string, img image.Image) error {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case "", ".jpg", ".jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 100})
	case ".png":
		return png.Encode(w, img)
	case ".bmp":
		return bmp.Encode(w, img)
	default:
		return errors.Wrapf(ErrUnsupportedFormat, "%q", ext)
	}
}
