package snapfilter

import (
	"image"
	"os"
	"path/filepath"

	pigo "github.com/esimov/pigo/core"
	"github.com/facefx/snapfilter/utils"
	"github.com/pkg/errors"
)

// The facial landmark point cascades used for each region.
// The eye cascades are run for both eyes by flipping them, the mouth cascades are not,
// except for mouthCornerCascade which yields the opposite mouth corner when flipped.
var (
	eyeCascades        = []string{"lp46", "lp44", "lp42", "lp38", "lp312"}
	mouthCascades      = []string{"lp93", "lp84", "lp82", "lp81"}
	mouthCornerCascade = "lp84"
)

// CascadeConfig holds the location of the pigo cascade files and the detection parameters.
// The zero value of each parameter is replaced by a sensible default.
type CascadeConfig struct {
	// Dir holds the "facefinder" and "puploc" cascades and the "lps" landmark cascade directory.
	Dir string
	// FaceFinder, Puploc and Landmarks override the locations derived from Dir.
	FaceFinder string
	Puploc     string
	Landmarks  string

	MinSize          int
	MaxSize          int
	ShiftFactor      float64
	ScaleFactor      float64
	IoUThreshold     float64
	QualityThreshold float32
	// Angle is the in-plane rotation of the searched faces, in the [0, 1] range (1 = 2*Pi).
	Angle float64
	// Perturbs is the number of perturbations used by the pupil and landmark localization.
	Perturbs int
}

func (c CascadeConfig) withDefaults() CascadeConfig {
	if c.FaceFinder == "" {
		c.FaceFinder = filepath.Join(c.Dir, "facefinder")
	}
	if c.Puploc == "" {
		c.Puploc = filepath.Join(c.Dir, "puploc")
	}
	if c.Landmarks == "" {
		c.Landmarks = filepath.Join(c.Dir, "lps")
	}
	if c.MinSize <= 0 {
		c.MinSize = 20
	}
	if c.MaxSize <= 0 {
		c.MaxSize = 1000
	}
	if c.ShiftFactor <= 0 {
		c.ShiftFactor = 0.1
	}
	if c.ScaleFactor <= 1 {
		c.ScaleFactor = 1.1
	}
	if c.IoUThreshold <= 0 {
		c.IoUThreshold = 0.2
	}
	if c.QualityThreshold <= 0 {
		c.QualityThreshold = 5.0
	}
	if c.Perturbs <= 0 {
		c.Perturbs = 63
	}
	c.Angle = utils.Clamp(c.Angle, 0, 1)
	return c
}

// PigoDetector is a LandmarkDetector backed by the pigo face detection,
// pupil localization and facial landmark point cascades.
// It is safe for concurrent use once constructed.
type PigoDetector struct {
	cfg   CascadeConfig
	face  *pigo.Pigo
	pupil *pigo.PuplocCascade
	flpcs map[string][]*pigo.FlpCascade
}

var _ LandmarkDetector = (*PigoDetector)(nil)

// NewPigoDetector unpacks the cascade files described by cfg.
func NewPigoDetector(cfg CascadeConfig) (*PigoDetector, error) {
	cfg = cfg.withDefaults()

	cf, err := os.ReadFile(cfg.FaceFinder)
	if err != nil {
		return nil, errors.Wrap(err, "could not read the face cascade file")
	}
	// Unpack the binary file. This will return the number of cascade trees,
	// the tree depth, the threshold and the prediction from tree's leaf nodes.
	face, err := pigo.NewPigo().Unpack(cf)
	if err != nil {
		return nil, errors.Wrap(err, "error unpacking the face cascade file")
	}

	pf, err := os.ReadFile(cfg.Puploc)
	if err != nil {
		return nil, errors.Wrap(err, "could not read the pupil localization cascade file")
	}
	plc := pigo.NewPuplocCascade()
	pupil, err := plc.UnpackCascade(pf)
	if err != nil {
		return nil, errors.Wrap(err, "error unpacking the pupil localization cascade file")
	}

	flpcs, err := pupil.ReadCascadeDir(cfg.Landmarks)
	if err != nil {
		return nil, errors.Wrap(err, "error reading the facial landmark cascades")
	}
	for _, names := range [][]string{eyeCascades, mouthCascades} {
		for _, name := range names {
			if len(flpcs[name]) == 0 {
				return nil, errors.Errorf("missing the %q facial landmark cascade", name)
			}
		}
	}

	return &PigoDetector{
		cfg:   cfg,
		face:  face,
		pupil: pupil,
		flpcs: flpcs,
	}, nil
}

// Detect returns the landmark set of every face found in the image.
func (d *PigoDetector) Detect(img *image.NRGBA) ([]LandmarkSet, error) {
	cols, rows := img.Bounds().Dx(), img.Bounds().Dy()
	imgParams := pigo.ImageParams{
		Pixels: pigo.RgbToGrayscale(img),
		Rows:   rows,
		Cols:   cols,
		Dim:    cols,
	}
	cParams := pigo.CascadeParams{
		MinSize:     d.cfg.MinSize,
		MaxSize:     utils.Min(d.cfg.MaxSize, utils.Max(cols, rows)),
		ShiftFactor: d.cfg.ShiftFactor,
		ScaleFactor: d.cfg.ScaleFactor,
		ImageParams: imgParams,
	}

	// Run the classifier over the obtained leaf nodes and return the detection results.
	// The result contains quadruplets representing the row, column, scale and detection score.
	dets := d.face.RunCascade(cParams, d.cfg.Angle)
	// Calculate the intersection over union (IoU) of two clusters.
	dets = d.face.ClusterDetections(dets, d.cfg.IoUThreshold)

	var faces []LandmarkSet
	for _, det := range dets {
		if det.Q < d.cfg.QualityThreshold {
			continue
		}
		faces = append(faces, d.landmarks(det, imgParams))
	}
	return faces, nil
}

// landmarks localizes the pupils of the detected face, then the facial landmark points
// relative to the pupils.
func (d *PigoDetector) landmarks(det pigo.Detection, imgParams pigo.ImageParams) LandmarkSet {
	half := det.Scale / 2
	ls := LandmarkSet{
		Face: image.Rect(det.Col-half, det.Row-half, det.Col+half, det.Row+half),
	}

	scale := float32(det.Scale)
	// The image-left pupil belongs to the subject's right eye.
	imgLeft := d.pupil.RunDetector(pigo.Puploc{
		Row:      det.Row - int(0.075*scale),
		Col:      det.Col - int(0.175*scale),
		Scale:    scale * 0.25,
		Perturbs: d.cfg.Perturbs,
	}, imgParams, 0.0, false)
	imgRight := d.pupil.RunDetector(pigo.Puploc{
		Row:      det.Row - int(0.075*scale),
		Col:      det.Col + int(0.185*scale),
		Scale:    scale * 0.25,
		Perturbs: d.cfg.Perturbs,
	}, imgParams, 0.0, false)

	if !validPuploc(imgLeft, imgParams) || !validPuploc(imgRight, imgParams) {
		return ls
	}

	eyePoints := []Point{toPoint(imgLeft), toPoint(imgRight)}
	eyePoints = append(eyePoints, d.landmarkPoints(eyeCascades, imgLeft, imgRight, imgParams, false, true)...)
	right, left := splitEyes(eyePoints, (imgLeft.Col+imgRight.Col)/2)

	mouth := d.landmarkPoints(mouthCascades, imgLeft, imgRight, imgParams, false)
	mouth = append(mouth, d.landmarkPoints([]string{mouthCornerCascade}, imgLeft, imgRight, imgParams, true)...)

	ls.Regions = []Region{
		{Name: RightEye, Points: right},
		{Name: LeftEye, Points: left},
		{Name: Mouth, Points: mouth},
	}
	return ls
}

// landmarkPoints runs the named landmark cascades once for every flip value.
func (d *PigoDetector) landmarkPoints(names []string, imgLeft, imgRight *pigo.Puploc, imgParams pigo.ImageParams, flips ...bool) []Point {
	var pts []Point
	for _, name := range names {
		for _, flpc := range d.flpcs[name] {
			if flpc.PuplocCascade == nil {
				continue
			}
			for _, flipV := range flips {
				flp := flpc.GetLandmarkPoint(imgLeft, imgRight, imgParams, d.cfg.Perturbs, flipV)
				if validPuploc(flp, imgParams) {
					pts = append(pts, toPoint(flp))
				}
			}
		}
	}
	return pts
}

// splitEyes separates the eye points by the vertical line crossing the middle of the pupils.
// The points on the image-left side belong to the subject's right eye.
func splitEyes(pts []Point, midCol int) (right, left []Point) {
	for _, p := range pts {
		if p.X < midCol {
			right = append(right, p)
		} else {
			left = append(left, p)
		}
	}
	return right, left
}

func validPuploc(p *pigo.Puploc, imgParams pigo.ImageParams) bool {
	return p != nil && p.Row > 0 && p.Col > 0 && p.Row < imgParams.Rows && p.Col < imgParams.Cols
}

func toPoint(p *pigo.Puploc) Point {
	return Point{X: p.Col, Y: p.Row}
}
