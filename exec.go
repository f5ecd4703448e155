package snapfilter

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/facefx/snapfilter/utils"
	"github.com/pkg/errors"
	"golang.org/x/term"
)

// maxWorkers sets the maximum number of concurrently running workers.
const maxWorkers = 20

// validExtensions lists the image files picked up when a directory is processed.
var validExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".webp"}

// outputExtensions lists the formats Encode is able to write.
var outputExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}

// Ops describes a filter run over a file, a URL, a pipe or a whole directory.
type Ops struct {
	Src, Dst, PipeName string
	Filter             Filter
	// Format is the encoding used when writing to the pipe. It defaults to png.
	Format  string
	Workers int
	// Spinner is the optional progress indicator shown while the filter is running.
	Spinner *utils.Spinner
	// Status receives the per image status messages. It defaults to stderr.
	Status io.Writer
}

// result holds the outcome of filtering a single image.
type result struct {
	path string
	err  error
}

// Execute applies the filter to the source and writes the result to the destination.
// When the source is a directory every supported image found in its tree is filtered
// concurrently and saved under the destination directory; the first failure is returned
// once all the images have been processed.
func (p *Processor) Execute(op *Ops) error {
	if op.Status == nil {
		op.Status = os.Stderr
	}
	if _, err := ParseFilter(string(op.Filter)); err != nil {
		return err
	}

	var (
		fs  os.FileInfo
		err error
	)
	src := op.Src

	// Check if the source path is a local image or URL.
	if utils.IsValidUrl(op.Src) {
		tmp, err := utils.DownloadImage(op.Src)
		if tmp != nil {
			defer os.Remove(tmp.Name())
			defer tmp.Close()
		}
		if err != nil {
			return errors.Wrap(err, "failed to load the source image")
		}
		src = tmp.Name()
		fs, err = tmp.Stat()
		if err != nil {
			return errors.Wrap(err, "failed to load the source image")
		}
	} else {
		// Check if the source is a pipe name or a regular file.
		if op.Src == op.PipeName {
			fs, err = os.Stdin.Stat()
		} else {
			fs, err = os.Stat(op.Src)
		}
		if err != nil {
			return errors.Wrap(err, "failed to load the source image")
		}
	}

	if op.Spinner != nil {
		op.Spinner.Start()
		defer op.Spinner.Stop()
	}
	now := time.Now()

	switch mode := fs.Mode(); {
	case mode.IsDir():
		err = op.executeDir(p)
	case mode.IsRegular() || mode&os.ModeNamedPipe != 0: // check for regular files or pipe names
		ext := strings.ToLower(filepath.Ext(op.Dst))
		if op.Dst != op.PipeName && !utils.Contains(outputExtensions, ext) {
			return errors.Wrapf(ErrUnsupportedFormat, "%q", ext)
		}
		err = op.process(p, src, op.Dst)
		op.printOpStatus(op.Dst, err)
	default:
		return errors.Errorf("unsupported source %q", op.Src)
	}

	if err == nil {
		fmt.Fprintf(op.Status, "\nExecution time: %s\n", utils.DecorateText(utils.FormatTime(time.Since(now)), utils.SuccessMessage))
	}
	return err
}

func (op *Ops) executeDir(p *Processor) error {
	var (
		wg       sync.WaitGroup
		firstErr error
	)
	if err := os.MkdirAll(op.Dst, 0755); err != nil {
		return errors.Wrap(err, "unable to create the destination directory")
	}

	// Limit the concurrently running workers to maxWorkers.
	workers := op.Workers
	if workers <= 0 || workers > maxWorkers {
		workers = runtime.NumCPU()
	}

	// Process recursively the image files from the specified directory concurrently.
	ch := make(chan result)
	done := make(chan struct{})
	defer close(done)

	paths, errc := walkDir(done, op.Src, validExtensions)

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			op.consumer(p, op.Dst, ch, done, paths)
		}()
	}

	// Close the channel after the values are consumed.
	go func() {
		defer close(ch)
		wg.Wait()
	}()

	// Consume the channel values.
	for res := range ch {
		if res.err != nil && firstErr == nil {
			firstErr = errors.Wrapf(res.err, "%s", filepath.Base(res.path))
		}
		op.printOpStatus(res.path, res.err)
	}

	if err := <-errc; err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// consumer reads the path names from the paths channel and applies the filter on each source image.
func (op *Ops) consumer(
	p *Processor,
	dest string,
	res chan<- result,
	done <-chan struct{},
	paths <-chan string,
) {
	for src := range paths {
		err := op.process(p, src, outputPath(dest, src))

		select {
		case <-done:
			return
		case res <- result{
			path: src,
			err:  err,
		}:
		}
	}
}

// process filters a single image. The destination file is only written
// once the filter succeeded, so a failure never leaves a partial image behind.
func (op *Ops) process(p *Processor, in, out string) error {
	r, err := op.openSource(in)
	if err != nil {
		return err
	}
	if c, ok := r.(io.Closer); ok && r != os.Stdin {
		defer c.Close()
	}

	name := out
	if out == op.PipeName {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return errors.New("`-` should be used with a pipe for stdout")
		}
		format := op.Format
		if format == "" {
			format = "png"
		}
		name = "out." + format
	}

	var buf bytes.Buffer
	if err := p.Process(op.Filter, r, &buf, name); err != nil {
		return err
	}

	if out == op.PipeName {
		_, err = buf.WriteTo(os.Stdout)
		return err
	}
	if err := os.WriteFile(out, buf.Bytes(), 0644); err != nil {
		return errors.Wrap(err, "unable to create the destination file")
	}
	return nil
}

// openSource converts the source path to a readable stream.
func (op *Ops) openSource(in string) (io.Reader, error) {
	if in == op.PipeName {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return nil, errors.New("`-` should be used with a pipe for stdin")
		}
		return os.Stdin, nil
	}
	f, err := os.Open(in)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open the source file")
	}
	return f, nil
}

// printOpStatus displays the outcome of filtering an image.
func (op *Ops) printOpStatus(fname string, err error) {
	if err != nil {
		fmt.Fprintf(op.Status, "%s %s\n",
			utils.DecorateText(fmt.Sprintf("\nError applying the %s filter on %s:", op.Filter, filepath.Base(fname)), utils.ErrorMessage),
			utils.DecorateText(fmt.Sprintf("\n\tReason: %v", err), utils.DefaultMessage),
		)
		return
	}
	if fname != op.PipeName {
		fmt.Fprintf(op.Status, "\nThe image has been saved as: %s %s\n",
			utils.DecorateText(filepath.Base(fname), utils.SuccessMessage),
			utils.DefaultColor,
		)
	}
}

// outputPath returns the destination of a source image found in a directory tree.
// Sources in a format which cannot be written are saved as png.
func outputPath(dest, src string) string {
	name := filepath.Base(src)
	if ext := filepath.Ext(name); !utils.Contains(outputExtensions, strings.ToLower(ext)) {
		name = strings.TrimSuffix(name, ext) + ".png"
	}
	return filepath.Join(dest, name)
}

// walkDir starts a new goroutine to walk the specified directory tree
// in recursive manner and sends the path of each regular file to a new channel.
// It finishes in case the done channel is getting closed.
func walkDir(
	done <-chan struct{},
	src string,
	srcExts []string,
) (<-chan string, <-chan error) {
	pathChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		// Close the paths channel after Walk returns.
		defer close(pathChan)

		errChan <- filepath.Walk(src, func(path string, f os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !f.Mode().IsRegular() {
				return nil
			}
			if !utils.Contains(srcExts, strings.ToLower(filepath.Ext(f.Name()))) {
				return nil
			}

			select {
			case <-done:
				return errors.New("directory walk cancelled")
			case pathChan <- path:
			}
			return nil
		})
	}()
	return pathChan, errChan
}
