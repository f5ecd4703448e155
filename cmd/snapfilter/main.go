package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/facefx/snapfilter"
	"github.com/facefx/snapfilter/utils"
)

const HelpBanner = `
┌─┐┌┐┌┌─┐┌─┐┌─┐┬┬  ┌┬┐┌─┐┬─┐
└─┐│││├─┤├─┘├┤ ││   │ ├┤ ├┬┘
└─┘┘└┘┴ ┴┴  └  ┴┴─┘ ┴ └─┘┴└─

Facial overlay filters for portraits.
    Version: %s

`

// pipeName is the file name that indicates stdin/stdout is being used.
const pipeName = "-"

// Version indicates the current build version.
var Version string

var (
	// Flags
	source      = flag.String("in", pipeName, "Source image, URL or directory")
	destination = flag.String("out", pipeName, "Destination image or directory")
	filter      = flag.String("filter", string(snapfilter.Sunglasses), "Filter: "+filterNames())
	assets      = flag.String("assets", "assets", "Directory holding the <name>.png clipart assets")
	cascades    = flag.String("cascades", "cascade", "Directory holding the pigo cascade files")
	format      = flag.String("format", "png", "Encoding used when writing to stdout (png, jpg, bmp)")
	minSize     = flag.Int("minsize", 20, "Minimum face size")
	maxSize     = flag.Int("maxsize", 1000, "Maximum face size")
	quality     = flag.Float64("quality", 5.0, "Face detection quality threshold")
	faceAngle   = flag.Float64("angle", 0.0, "Plane rotated faces angle")
	workers     = flag.Int("conc", runtime.NumCPU(), "Number of files to process concurrently")
)

func main() {
	log.SetFlags(0)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, HelpBanner, Version)
		flag.PrintDefaults()
	}
	flag.Parse()

	kind, err := snapfilter.ParseFilter(*filter)
	if err != nil {
		flag.Usage()
		log.Fatal(utils.DecorateText(fmt.Sprintf("\n%v", err), utils.ErrorMessage))
	}

	reg, err := snapfilter.RegistryFromDir(*assets)
	if err != nil {
		log.Fatalf(
			utils.DecorateText("Failed to load the assets: %v", utils.ErrorMessage),
			utils.DecorateText(err.Error(), utils.DefaultMessage),
		)
	}
	proc := &snapfilter.Processor{Assets: reg.WithCache(0)}

	// The flowers filter covers the whole frame, so it does not need the cascades.
	if kind != snapfilter.Flowers {
		det, err := snapfilter.NewPigoDetector(snapfilter.CascadeConfig{
			Dir:              *cascades,
			MinSize:          *minSize,
			MaxSize:          *maxSize,
			QualityThreshold: float32(*quality),
			Angle:            *faceAngle,
		})
		if err != nil {
			log.Fatalf(
				utils.DecorateText("Failed to load the face detector: %v", utils.ErrorMessage),
				utils.DecorateText(err.Error(), utils.DefaultMessage),
			)
		}
		proc.Detector = det
	}

	spinnerText := fmt.Sprintf("%s %s",
		utils.DecorateText("⚡ SNAPFILTER", utils.StatusMessage),
		utils.DecorateText(fmt.Sprintf("is applying the %s filter...", kind), utils.DefaultMessage))
	spinner := utils.NewSpinner(spinnerText, time.Millisecond*200, true)
	spinner.StopMsg = fmt.Sprintf("%s %s",
		utils.DecorateText("⚡ SNAPFILTER", utils.StatusMessage),
		utils.DecorateText(fmt.Sprintf("is applying the %s filter... ✔", kind), utils.DefaultMessage))

	// Capture CTRL-C signal and restore the cursor visibility back.
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalChan
		spinner.RestoreCursor()
		os.Exit(1)
	}()

	err = proc.Execute(&snapfilter.Ops{
		Src:      *source,
		Dst:      *destination,
		PipeName: pipeName,
		Filter:   kind,
		Format:   *format,
		Workers:  *workers,
		Spinner:  spinner,
	})
	if err != nil {
		log.Fatalf(
			utils.DecorateText("\nError applying the filter: %s", utils.ErrorMessage),
			utils.DecorateText(fmt.Sprintf("\n\tReason: %v\n", err), utils.DefaultMessage),
		)
	}
}

func filterNames() string {
	var names []string
	for _, f := range snapfilter.Filters() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}
