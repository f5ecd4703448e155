package snapfilter

import (
	"image"
	"sort"

	"github.com/pkg/errors"
)

// Filter identifies one of the supported facial overlay filters.
type Filter string

const (
	Sunglasses        Filter = "sunglasses"
	Lips              Filter = "lips"
	LipsAndSunglasses Filter = "lips_sunglasses"
	Flowers           Filter = "flowers"
)

// ErrUnknownFilter is returned for an unsupported filter name.
var ErrUnknownFilter = errors.New("unknown filter")

// Overlay binds a clipart asset to the landmark region it is anchored to.
type Overlay struct {
	Asset     string
	Region    string
	Placement Placement
}

var (
	// SunglassesOverlay places the sunglasses over both eyes.
	SunglassesOverlay = Overlay{
		Asset:  SunglassesAsset,
		Region: Eyes,
		Placement: Placement{
			Scale:           1.2,
			VerticalDivisor: 2.4,
			HorizontalShift: 0.1,
		},
	}
	// LipsOverlay places the lips over the mouth.
	LipsOverlay = Overlay{
		Asset:  LipsAsset,
		Region: Mouth,
		Placement: Placement{
			Scale:           1.2,
			VerticalDivisor: 3,
			HorizontalShift: 0.1,
		},
	}
)

// The overlays of each landmark based filter, in the order they are applied.
var filterOverlays = map[Filter][]Overlay{
	Sunglasses:        {SunglassesOverlay},
	Lips:              {LipsOverlay},
	LipsAndSunglasses: {LipsOverlay, SunglassesOverlay},
}

// Filters returns the supported filter names.
func Filters() []Filter {
	list := []Filter{Flowers}
	for f := range filterOverlays {
		list = append(list, f)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}

// ParseFilter validates a filter name.
func ParseFilter(name string) (Filter, error) {
	f := Filter(name)
	if _, ok := filterOverlays[f]; ok || f == Flowers {
		return f, nil
	}
	return "", errors.Wrapf(ErrUnknownFilter, "%q", name)
}

// Processor applies the overlay filters. The landmark detector and the asset
// loader are owned by the caller and injected here; a Processor holds no other state.
type Processor struct {
	Detector LandmarkDetector
	Assets   AssetLoader
}

// Apply runs the filter over a fresh copy of the source image and returns the result.
// The output always has the size of the input. On error no image is returned.
func (p *Processor) Apply(f Filter, src Source) (*image.NRGBA, error) {
	if f == Flowers {
		return p.AddFlowers(src)
	}
	overlays, ok := filterOverlays[f]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownFilter, "%q", f)
	}
	return p.applyOverlays(src, overlays...)
}

// AddSunglasses adds sunglasses over the eyes of the single face found in the image.
func (p *Processor) AddSunglasses(src Source) (*image.NRGBA, error) {
	return p.applyOverlays(src, SunglassesOverlay)
}

// AddLips adds lips over the mouth of the single face found in the image.
func (p *Processor) AddLips(src Source) (*image.NRGBA, error) {
	return p.applyOverlays(src, LipsOverlay)
}

// AddLipsAndSunglasses adds the lips first, then the sunglasses, using a single detection pass.
func (p *Processor) AddLipsAndSunglasses(src Source) (*image.NRGBA, error) {
	return p.applyOverlays(src, LipsOverlay, SunglassesOverlay)
}

// AddFlowers blends the flowers asset over the whole image. No face detection is involved.
func (p *Processor) AddFlowers(src Source) (*image.NRGBA, error) {
	if p.Assets == nil {
		return nil, errors.New("no asset loader provided")
	}
	img, err := src.Load()
	if err != nil {
		return nil, err
	}
	asset, err := p.Assets.Load(FlowersAsset)
	if err != nil {
		return nil, err
	}
	ComposeFullFrame(img, asset)
	return img, nil
}

// LocateRegion returns the bounding rectangle of a landmark region of the single face in the image.
func (p *Processor) LocateRegion(src Source, region string) (BoundingRect, error) {
	if p.Detector == nil {
		return BoundingRect{}, errors.New("no landmark detector provided")
	}
	img, err := src.Load()
	if err != nil {
		return BoundingRect{}, err
	}
	return LocateRegion(p.Detector, img, region)
}

// ComposeAsset loads the named asset and composites it over img relative to rect.
// The image is modified in place.
func (p *Processor) ComposeAsset(img *image.NRGBA, rect BoundingRect, asset string, pl Placement) (image.Rectangle, error) {
	if p.Assets == nil {
		return image.Rectangle{}, errors.New("no asset loader provided")
	}
	clipart, err := p.Assets.Load(asset)
	if err != nil {
		return image.Rectangle{}, err
	}
	return Compose(img, rect, clipart, pl)
}

func (p *Processor) applyOverlays(src Source, overlays ...Overlay) (*image.NRGBA, error) {
	if p.Detector == nil {
		return nil, errors.New("no landmark detector provided")
	}
	if p.Assets == nil {
		return nil, errors.New("no asset loader provided")
	}

	img, err := src.Load()
	if err != nil {
		return nil, err
	}

	// Resolve the assets before running the detector, which is the expensive step.
	cliparts := make([]*image.NRGBA, len(overlays))
	regions := make([]string, len(overlays))
	for i, o := range overlays {
		if cliparts[i], err = p.Assets.Load(o.Asset); err != nil {
			return nil, err
		}
		regions[i] = o.Region
	}

	rects, err := LocateRegions(p.Detector, img, regions...)
	if err != nil {
		return nil, err
	}

	for i, o := range overlays {
		if _, err := Compose(img, rects[i], cliparts[i], o.Placement); err != nil {
			return nil, errors.Wrapf(err, "could not place the %s asset", o.Asset)
		}
	}
	return img, nil
}
