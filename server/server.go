// Package server exposes the overlay filters over HTTP.
package server

import (
	"bytes"
	"image"
	"strings"
	"time"

	"github.com/facefx/snapfilter"
	"github.com/facefx/snapfilter/utils"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DefaultBodyLimit caps the size of the uploaded images.
const DefaultBodyLimit = 10 << 20

// The regions which can be located through the API.
var regions = []string{snapfilter.Eyes, snapfilter.LeftEye, snapfilter.RightEye, snapfilter.Mouth}

// Server serves the filters of a snapfilter.Processor.
type Server struct {
	app  *fiber.App
	proc *snapfilter.Processor
	log  *logrus.Logger
}

type options struct {
	fiber     fiber.Config
	rateLimit rate.Limit
	burst     int
}

// Option customizes the server.
type Option func(*options)

// WithBodyLimit overrides the maximum request body size.
func WithBodyLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.fiber.BodyLimit = n
		}
	}
}

// WithRateLimit limits the filter and region requests of every client IP
// to rps requests per second, with bursts of up to burst requests.
// A zero rps disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) {
		o.rateLimit = rate.Limit(rps)
		o.burst = burst
	}
}

// New creates the server and registers its routes.
func New(proc *snapfilter.Processor, log *logrus.Logger, opts ...Option) *Server {
	s := &Server{proc: proc, log: log}

	o := options{
		fiber: fiber.Config{
			AppName:               "snapfilter",
			BodyLimit:             DefaultBodyLimit,
			StrictRouting:         true,
			CaseSensitive:         true,
			DisableStartupMessage: true,
			ReadTimeout:           30 * time.Second,
			JSONEncoder:           jsoniter.Marshal,
			JSONDecoder:           jsoniter.Unmarshal,
			ErrorHandler:          s.errorHandler,
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	s.app = fiber.New(o.fiber)

	s.app.Use(requestID(), s.requestLogger())
	s.app.Get("/health", s.health)

	v1 := s.app.Group("/v1")
	if o.rateLimit > 0 {
		v1.Use(newRateLimiter(o.rateLimit, o.burst, 0).handler())
	}
	v1.Get("/filters", s.listFilters)
	v1.Post("/filters/:kind", s.applyFilter)
	v1.Post("/regions/:region", s.locateRegion)

	return s
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves HTTP requests on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown stops accepting requests and waits for the in-flight ones, up to timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	return s.app.ShutdownWithTimeout(timeout)
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) listFilters(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"filters": snapfilter.Filters()})
}

func (s *Server) applyFilter(c *fiber.Ctx) error {
	kind, err := snapfilter.ParseFilter(c.Params("kind"))
	if err != nil {
		return err
	}
	format := strings.ToLower(c.Query("format", "png"))
	contentType, ok := contentTypes[format]
	if !ok {
		return errors.Wrapf(snapfilter.ErrUnsupportedFormat, "%q", format)
	}

	img, err := s.upload(c, func(src snapfilter.Source) (*image.NRGBA, error) {
		return s.proc.Apply(kind, src)
	})
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := snapfilter.Encode(&buf, "image."+format, img); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(buf.Bytes())
}

// regionResponse is the JSON form of a located landmark region.
type regionResponse struct {
	Region string `json:"region"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func (s *Server) locateRegion(c *fiber.Ctx) error {
	region := c.Params("region")
	if !utils.Contains(regions, region) {
		return fiber.NewError(fiber.StatusBadRequest, "unknown region "+region)
	}

	var rect snapfilter.BoundingRect
	_, err := s.upload(c, func(src snapfilter.Source) (*image.NRGBA, error) {
		var err error
		rect, err = s.proc.LocateRegion(src, region)
		return nil, err
	})
	if err != nil {
		return err
	}

	return c.JSON(regionResponse{
		Region: region,
		X:      rect.X,
		Y:      rect.Y,
		Width:  rect.Width,
		Height: rect.Height,
	})
}

// upload opens the multipart image field of the request and passes it to fn.
func (s *Server) upload(c *fiber.Ctx, fn func(snapfilter.Source) (*image.NRGBA, error)) (*image.NRGBA, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "the multipart field \"image\" is required")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrap(err, "could not open the uploaded image")
	}
	defer f.Close()

	return fn(snapfilter.FromReader(f))
}

var contentTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"bmp":  "image/bmp",
}
