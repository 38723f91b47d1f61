//  Copyright 2019 Marius Ackerman
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/goccmack/beatgrid/internal/config"
	"github.com/goccmack/beatgrid/internal/detect"
	"github.com/goccmack/beatgrid/internal/grid"
	"github.com/goccmack/beatgrid/internal/output"
	"github.com/goccmack/beatgrid/internal/store"
)

var (
	inFileNames  []string
	outFileName  string
	gridFileName string
	beatsFile    string
	outFormat    string
	plotDir      string
	clickFile    string

	cfg config.Config
)

func main() {
	getParams()
	os.Exit(run())
}

// run analyses the input files and returns the exit status
func run() int {
	start := time.Now()

	var det detect.Detector = detect.DWT{PeakSepMs: cfg.PeakSepMs}
	if beatsFile != "" {
		det = detect.File{Path: beatsFile}
	}

	var db *store.Store
	if cfg.DB != "" {
		var err error
		if db, err = store.Open(cfg.DB); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			return 1
		}
		defer db.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results := grid.AnalyzeAll(ctx, inFileNames, cfg, det, func(a *grid.Analysis) error {
		return writeOutput(a, db)
	})

	failed, beats := report(os.Stderr, results)
	slog.Info("done",
		"files", len(results),
		"failed", failed,
		"beats", humanize.Comma(int64(beats)),
		"elapsed", time.Since(start).Round(time.Millisecond))
	if failed > 0 {
		return 1
	}
	return 0
}

// report writes the error of every failed result to w and returns the number
// of failures and the number of beats of the successful results.
func report(w io.Writer, results []grid.Result) (failed, beats int) {
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "Error: %s\n", r.Err)
			continue
		}
		if r.Analysis != nil {
			beats += len(r.Analysis.Beats)
		}
	}
	return failed, beats
}

// writeOutput writes the result files of a and records it in db
func writeOutput(a *grid.Analysis, db *store.Store) error {
	outFile := outFileName
	if outFile == "" {
		outFile = fromInFileName(a.Path)
	}
	if err := output.Write(outFile, outFormat, a); err != nil {
		return err
	}
	if outFile != "-" {
		if fi, err := os.Stat(outFile); err == nil {
			slog.Info("wrote", "file", outFile, "size", humanize.Bytes(uint64(fi.Size())))
		}
	}
	if gridFileName != "" {
		if err := output.WriteGrid(gridFileName, a); err != nil {
			return err
		}
	}
	if clickFile != "" {
		if err := output.WriteClicks(clickFile, a); err != nil {
			return err
		}
	}
	if plotDir != "" {
		if err := output.WritePlots(plotDir, a); err != nil {
			return err
		}
	}
	if db != nil {
		id, err := db.Save(a)
		if err != nil {
			return err
		}
		slog.Debug("saved analysis", "path", a.Path, "id", id)
	}
	return nil
}

/*** command line parameters ***/

func fail(msg string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	fmt.Fprintln(os.Stderr, usageString)
	os.Exit(1)
}

func getParams() {
	help := flag.Bool("h", false, "")
	verbose := flag.Bool("v", false, "")
	flag.StringVar(&outFileName, "o", "", "")
	flag.StringVar(&outFormat, "format", output.JSON, "")
	flag.StringVar(&gridFileName, "grid", "", "")
	flag.StringVar(&beatsFile, "beats", "", "")
	flag.StringVar(&plotDir, "plot", "", "")
	flag.StringVar(&clickFile, "clicks", "", "")
	sepMs := flag.Int("sep", detect.DefaultPeakSepMs, "")
	driftMs := flag.Float64("drift", 20, "")
	workers := flag.Int("workers", 0, "")
	dbFile := flag.String("db", "", "")
	flag.Parse()
	if *help {
		usage()
		os.Exit(0)
	}
	if flag.NArg() < 1 {
		fail("audio file name required")
	}
	inFileNames = flag.Args()
	if len(inFileNames) > 1 && (outFileName != "" || gridFileName != "" || beatsFile != "" || clickFile != "") {
		fail("-o, -grid, -beats and -clicks take a single audio file")
	}
	if outFormat != output.JSON && outFormat != output.Proto {
		fail(fmt.Sprintf("unknown format %q", outFormat))
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg = config.Load()
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "sep":
			cfg.PeakSepMs = *sepMs
		case "drift":
			cfg.Segment.Drift = *driftMs / 1000
		case "workers":
			cfg.Workers = *workers
		case "db":
			cfg.DB = *dbFile
		}
	})
	if cfg.PeakSepMs <= 0 {
		fail("sep must be positive")
	}
	if cfg.Segment.Drift <= 0 {
		fail("drift must be positive")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
}

func fromInFileName(inFileName string) string {
	dir, fname := path.Split(inFileName)
	fnames := strings.Split(fname, ".")
	if len(fnames) > 1 {
		fnames = fnames[:len(fnames)-1]
	}
	fnames = append(fnames, "grid", outFormat)
	return path.Join(dir, strings.Join(fnames, "."))
}

func usage() {
	fmt.Println(usageString)
}

const usageString = `use: beatgrid [-o <out file>] [-format json|pb] [-grid <grid file>]
                [-beats <beats file>] [-sep ms] [-drift ms] [-workers n]
                [-db <history file>] [-clicks <wav file>] [-plot <dir>] [-v]
                <audio file>... or
     beatgrid -h
where
    -h displays this help

    <audio file> is the name of an input audio file. WAV files are read
        directly, other formats are decoded with ffmpeg ($BEATGRID_FFMPEG).
        Several files are analysed concurrently.

    -o <out file>: Optional. Default <audio file>.grid.json, or .grid.pb
        with -format pb. "-" writes to stdout. Single input file only.

    -format json|pb: Optional. Default json.

    -grid <grid file>: Optional. Write the encoded Serato BeatGrid markers.
        Single input file only.

    -beats <beats file>: Optional. Read the raw beats from a JSON file
        instead of detecting them. Single input file only.

    -sep ms: Optional. The mininum number of millisec between adjacent
        detected beats. Default: 250

    -drift ms: Optional. Maximum distance of a beat from its segment's grid.
        Default: 20

    -workers n: Optional. Number of files analysed at once.
        Default: number of CPUs

    -db <history file>: Optional. Record every analysis in a sqlite database.

    -clicks <wav file>: Optional. Render the final beats as a click track
        mixed over the audio. Single input file only.

    -plot <dir>: Optional. Generate files for plotting in matlab.

    -v: Optional. Debug logging.`
