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
	"strings"
	"syscall"

	"github.com/goldfish-inc/evalita-prep/internal/config"
	"github.com/goldfish-inc/evalita-prep/internal/convert"
	"github.com/goldfish-inc/evalita-prep/internal/fetch"
	"github.com/goldfish-inc/evalita-prep/internal/metrics"
	"github.com/goldfish-inc/evalita-prep/internal/pipeline"
)

const traceRows = 12

var splits = []string{"train", "test"}

type options struct {
	split    string
	shuffle  bool
	verbose  bool
	download bool
	seed     uint64
	hasSeed  bool
	nfc      bool
	report   string
	dataDir  string
}

func parseFlags(args []string, cfg *config.Config, output io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("hodi", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.split, "split", "train", "dataset split: "+strings.Join(splits, " or "))
	fs.BoolVar(&opts.shuffle, "shuffle-labels", false, "shuffle the answer choices of every record")
	fs.BoolVar(&opts.verbose, "verbose", false, "print the first rows before and after the shuffle")
	fs.BoolVar(&opts.download, "download", false, "download and unzip the dataset archive before converting")
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
	valid := false
	for _, s := range splits {
		valid = valid || opts.split == s
	}
	if !valid {
		return opts, fmt.Errorf("unknown split %q", opts.split)
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
		logger.Fatalf("HODI conversion failed: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, logger *log.Logger) error {
	base := filepath.Join(opts.dataDir, "HODI_2023")
	saveDir := filepath.Join(base, "save_folder")
	name := "HODI_2023_" + opts.split
	extractDir := filepath.Join(saveDir, name)

	rec := metrics.New()
	if opts.download {
		f := fetch.New(cfg.HTTPTimeout, logger, rec)
		url := strings.TrimSuffix(cfg.HODIArchiveBaseURL, "/") + "/" + name + ".zip"
		_, err := f.DownloadAndExtract(ctx, url, filepath.Join(saveDir, name+".zip"), extractDir, cfg.HODIPassword)
		switch {
		case errors.Is(err, fetch.ErrUnexpectedStatus):
			logger.Printf("Download failed, continuing with local files: %v", err)
		case err != nil:
			return err
		}
	}

	shuffler, seed, hasSeed := pipeline.Shuffler(opts.shuffle, cfg, opts.seed, opts.hasSeed)
	conv := convert.New(convert.Options{
		Shuffler:      shuffler,
		Verbose:       opts.verbose,
		TraceRows:     traceRows,
		NormalizeText: opts.nfc,
	}, logger, rec)

	r := pipeline.NewRun("hodi", opts.split)
	input := filepath.Join(extractDir, name+"_subtaskA.tsv")
	summary, err := conv.HODI(input, filepath.Join(base, name+"_subtaskA.jsonl"))
	if err != nil {
		return err
	}

	r.Shuffled = shuffler.Enabled()
	r.Seed, r.HasSeed = seed, hasSeed && shuffler.Enabled()
	r.Summary = summary
	r.ReportPath = opts.report
	return pipeline.Finalize(ctx, cfg, rec, logger, r)
}
