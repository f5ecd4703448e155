package snapfilter

import (
	"io"
)

// Process decodes the image read from r, applies the filter and encodes the result into w.
// The output format is given by the extension of name, as in Encode.
// Different input and output types can be used, as long as they implement
// the io.Reader and io.Writer interfaces.
func (p *Processor) Process(f Filter, r io.Reader, w io.Writer, name string) error {
	img, err := p.Apply(f, FromReader(r))
	if err != nil {
		return err
	}
	return Encode(w, name, img)
}
