// Command evt-tool inspects and edits packed event files.
//
//	evt-tool info   -in rec.evt
//	evt-tool crop   -in rec.evt -out part.evt -offset 10000 -duration 50000
//	evt-tool pseudo -in rec.evt -out img.png -t0 10000 -duration 10000 -polarity pos
//	evt-tool pulse  -in rec.evt -freq 200 -bin 50 -periods 100
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/eventflow/internal/ebiv/events"
	"github.com/banshee-data/eventflow/internal/ebiv/evtfile"
	"github.com/banshee-data/eventflow/internal/ebiv/render"
	"github.com/banshee-data/eventflow/internal/fsutil"
	"github.com/banshee-data/eventflow/internal/version"
)

const usage = `usage: evt-tool <command> [flags]

commands:
  info     print header and event statistics
  crop     save a time window of events to a new file
  pseudo   render an event-count image of a time window as PNG
  pulse    estimate the pulse offset of a pulsed-illumination recording
  version  print version
`

func main() {
	if err := run(fsutil.OSFileSystem{}, os.Stdout, os.Args[1:]); err != nil {
		log.Fatalf("evt-tool: %v", err)
	}
}

func run(fsys fsutil.FileSystem, stdout io.Writer, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return fmt.Errorf("missing command")
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "info":
		return runInfo(fsys, stdout, args)
	case "crop":
		return runCrop(fsys, stdout, args)
	case "pseudo":
		return runPseudo(fsys, stdout, args)
	case "pulse":
		return runPulse(fsys, stdout, args)
	case "version":
		fmt.Fprintln(stdout, "evt-tool", version.String())
		return nil
	}
	fmt.Fprint(stdout, usage)
	return fmt.Errorf("unknown command %q", cmd)
}

func runInfo(fsys fsutil.FileSystem, stdout io.Writer, args []string) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	in := fs.String("in", "", "Event file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("info: -in is required")
	}

	store, hdr, err := evtfile.Load(fsys, *in, evtfile.Window{})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "file:       %s\n", *in)
	fmt.Fprintf(stdout, "sensor:     %dx%d\n", hdr.Width, hdr.Height)
	fmt.Fprintf(stdout, "time stamp: %d µs\n", hdr.TimeStamp)
	fmt.Fprintf(stdout, "duration:   %d µs\n", hdr.Duration)
	fmt.Fprintf(stdout, "events:     %d (pos %d, neg %d)\n", store.Len(),
		store.CountPolarity(events.PolarityPositive), store.CountPolarity(events.PolarityNegative))
	if first, last, ok := store.TimeRange(); ok {
		fmt.Fprintf(stdout, "time range: [%d, %d] µs\n", first, last)
		if span := last - first; span > 0 {
			fmt.Fprintf(stdout, "event rate: %.1f ev/ms\n", float64(store.Len())/float64(span)*1000)
		}
	}
	return nil
}

func runCrop(fsys fsutil.FileSystem, stdout io.Writer, args []string) error {
	fs := flag.NewFlagSet("crop", flag.ContinueOnError)
	in := fs.String("in", "", "Event file")
	out := fs.String("out", "", "Output event file")
	offset := fs.Int64("offset", 0, "Window start [µs]")
	duration := fs.Int64("duration", 0, "Window length [µs]; 0 keeps everything after -offset")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return fmt.Errorf("crop: -in and -out are required")
	}

	store, _, err := evtfile.Load(fsys, *in, evtfile.Window{})
	if err != nil {
		return err
	}
	hdr, err := evtfile.Save(fsys, *out, store, evtfile.Window{Offset: *offset, Duration: *duration})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d of %d events to %s\n", hdr.EventCount, store.Len(), *out)
	return nil
}

func runPseudo(fsys fsutil.FileSystem, stdout io.Writer, args []string) error {
	fs := flag.NewFlagSet("pseudo", flag.ContinueOnError)
	in := fs.String("in", "", "Event file")
	out := fs.String("out", "", "Output PNG")
	t0 := fs.Int64("t0", 0, "Window start [µs]")
	duration := fs.Int64("duration", 10000, "Window length [µs]")
	polarity := fs.String("polarity", "both", "Event polarity: pos, neg or both")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return fmt.Errorf("pseudo: -in and -out are required")
	}
	pol, err := events.ParsePolarity(*polarity)
	if err != nil {
		return err
	}

	store, _, err := evtfile.Load(fsys, *in, evtfile.Window{})
	if err != nil {
		return err
	}
	img, err := store.PseudoImage(*t0, *duration, pol)
	if err != nil {
		return err
	}
	rows, cols := img.Dims()

	f, err := fsys.Create(*out)
	if err != nil {
		return err
	}
	err = render.HeatMap(f, img, pixelAxis(cols), pixelAxis(rows), render.HeatMapOptions{
		Title:  fmt.Sprintf("%s events, t=[%d, %d) µs", pol, *t0, *t0+*duration),
		XLabel: "x (px)",
		YLabel: "y (px)",
	})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %dx%d pseudo image to %s\n", cols, rows, *out)
	return nil
}

func runPulse(fsys fsutil.FileSystem, stdout io.Writer, args []string) error {
	fs := flag.NewFlagSet("pulse", flag.ContinueOnError)
	in := fs.String("in", "", "Event file")
	freq := fs.Float64("freq", 200, "Pulse frequency [Hz]")
	bin := fs.Int64("bin", 50, "Histogram bin width [µs]")
	periods := fs.Int("periods", 100, "Number of pulse periods to sample")
	start := fs.Int("start", 0, "First sampled period")
	verbose := fs.Bool("v", false, "Print the mean pulse histogram")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("pulse: -in is required")
	}

	store, _, err := evtfile.Load(fsys, *in, evtfile.Window{})
	if err != nil {
		return err
	}
	w := events.PulseWindow{FreqHz: *freq, BinWidthUs: *bin, Periods: *periods, StartPeriod: *start}
	hist, err := store.MeanPulseHistogram(w)
	if err != nil {
		return err
	}
	if *verbose {
		var total float64
		for i, v := range hist {
			fmt.Fprintf(stdout, "%8d µs  %.4f ev/µs\n", int64(i)*w.BinWidthUs, v)
			total += v * float64(w.BinWidthUs)
		}
		fmt.Fprintf(stdout, "mean events per period: %.1f\n", total)
	}
	fmt.Fprintf(stdout, "pulse period: %.1f µs\n", w.Period())
	fmt.Fprintf(stdout, "pulse offset: %d µs (bin width %d µs)\n", events.PulseOffset(hist, w.BinWidthUs), w.BinWidthUs)
	return nil
}

func pixelAxis(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}
