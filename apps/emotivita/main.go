package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/goldfish-inc/evalita-prep/internal/config"
	"github.com/goldfish-inc/evalita-prep/internal/convert"
	"github.com/goldfish-inc/evalita-prep/internal/fetch"
	"github.com/goldfish-inc/evalita-prep/internal/labels"
	"github.com/goldfish-inc/evalita-prep/internal/metrics"
	"github.com/goldfish-inc/evalita-prep/internal/pipeline"
)

// traceRows is how many rows verbose mode prints before and after shuffling.
const traceRows = 5

// options holds the command-line switches of one run.
type options struct {
	test      bool
	shuffle   bool
	verbose   bool
	mapOption int
	download  bool
	seed      uint64
	hasSeed   bool
	nfc       bool
	report    string
	dataDir   string
}

func parseFlags(args []string, cfg *config.Config, output io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("emotivita", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.BoolVar(&opts.test, "test", false, "use the test set instead of the development set")
	fs.BoolVar(&opts.shuffle, "shuffle-labels", false, "shuffle the answer choices of every record")
	fs.BoolVar(&opts.verbose, "verbose", false, "print the first rows before and after the shuffle")
	fs.IntVar(&opts.mapOption, "map-option", 0, "0: Bassa/Media/Alta at 3.2 and 3.8; 1: Bassa/Media/Alta/Molto Alta at 1.25, 2.5 and 3.75")
	fs.BoolVar(&opts.download, "download", false, "download the dataset from GitHub before converting")
	fs.Func("seed", "seed for -shuffle-labels (overrides SHUFFLE_SEED)", func(s string) error {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return err
		}
		opts.seed, opts.hasSeed = v, true
		return nil
	})
	fs.BoolVar(&opts.nfc, "nfc", false, "normalise text to Unicode NFC")
	fs.StringVar(&opts.report, "report", "", "write an XLSX label report to this path")
	fs.StringVar(&opts.dataDir, "data-dir", cfg.DataDir, "root directory for downloads and outputs")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

func main() {
	cfg := config.Load()
	opts, err := parseFlags(os.Args[1:], cfg, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("Invalid arguments: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.New(os.Stdout, "", log.LstdFlags)
	if err := run(ctx, cfg, opts, logger); err != nil {
		logger.Fatalf("EmotivITA conversion failed: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, logger *log.Logger) error {
	scheme, err := labels.ParseScheme(opts.mapOption)
	if err != nil {
		return err
	}

	base := filepath.Join(opts.dataDir, "EmotivITA")
	saveDir := filepath.Join(base, "save_folder")

	split, inputName := "dev", "Development set.csv"
	if opts.test {
		split, inputName = "test", "Test set - Gold labels.csv"
	}

	rec := metrics.New()
	if opts.download {
		f := fetch.New(cfg.HTTPTimeout, logger, rec)
		files, err := f.DownloadTree(ctx, cfg.EmotivITARepoURL, saveDir, ".csv")
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			logger.Printf("Download incomplete, continuing with local files: %v", err)
		}
		logger.Printf("Downloaded %d files to %s", len(files), saveDir)
	}

	shuffler, seed, hasSeed := pipeline.Shuffler(opts.shuffle, cfg, opts.seed, opts.hasSeed)
	conv := convert.New(convert.Options{
		Shuffler:      shuffler,
		Verbose:       opts.verbose,
		TraceRows:     traceRows,
		NormalizeText: opts.nfc,
	}, logger, rec)

	r := pipeline.NewRun("emotivita", split)
	summary, err := conv.EmotivITA(filepath.Join(saveDir, inputName), func(dimension string) string {
		return filepath.Join(base, fmt.Sprintf("EmotivITA_%s_%s.jsonl", dimension, split))
	}, scheme)
	if err != nil {
		return err
	}

	r.Scheme = scheme.String()
	r.Shuffled = shuffler.Enabled()
	r.Seed, r.HasSeed = seed, hasSeed && shuffler.Enabled()
	r.Summary = summary
	r.ReportPath = opts.report
	return pipeline.Finalize(ctx, cfg, rec, logger, r)
}
