/*
Package snapfilter is a facial overlay library, which composites clipart assets
(sunglasses, lips, a flower frame) onto a portrait at the anatomically correct position.

The landmark localization is delegated to a LandmarkDetector. The package ships a pure Go
implementation backed by the pigo face, pupil and facial landmark point cascades, but any
provider returning named landmark regions for a single face can be plugged in.

The package provides a command line interface, supporting various flags for the different
filter types. To check the supported commands type:

	$ snapfilter --help

In case you wish to integrate the API in a self constructed environment here is a simple example:

	package main

	import (
		"fmt"
		"github.com/facefx/snapfilter"
	)

	func main() {
		det, err := snapfilter.NewPigoDetector(snapfilter.CascadeConfig{Dir: "cascade"})
		if err != nil {
			fmt.Printf("Error loading the cascades: %s", err.Error())
			return
		}
		p := &snapfilter.Processor{
			Detector: det,
			Assets:   snapfilter.NewRegistry(map[string]string{"sunglasses": "assets/sunglasses.png"}),
		}

		img, err := p.AddSunglasses(snapfilter.FromPath("portrait.jpg"))
		if err != nil {
			fmt.Printf("Error applying the filter: %s", err.Error())
		}
		_ = img
	}
*/
package snapfilter
