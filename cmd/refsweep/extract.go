package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/refsweep/refsweep/internal/config"
	"github.com/refsweep/refsweep/internal/convert"
	"github.com/refsweep/refsweep/internal/grobid"
	"github.com/refsweep/refsweep/internal/pipeline"
	"github.com/refsweep/refsweep/internal/teicache"
)

var (
	extractFormat      string
	extractOutput      string
	extractGrobidURL   string
	extractMinify      bool
	extractFailOnEmpty bool
	extractNoCache     bool
	extractConsolidate bool
	extractLogLevel    string
)

func init() {
	// Load .env file if present (for REFSWEEP_GROBID_URL)
	_ = godotenv.Load()

	extractCmd.Flags().StringVar(&extractFormat, "format", "", "Output format: csl-json, bibtex, biblatex, ris (default csl-json)")
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "Write converted output to a file instead of stdout")
	extractCmd.Flags().StringVar(&extractGrobidURL, "grobid-url", "", "GROBID service base URL (default "+grobid.DefaultBaseURL+")")
	extractCmd.Flags().BoolVar(&extractMinify, "minify", false, "Emit compact CSL-JSON")
	extractCmd.Flags().BoolVar(&extractFailOnEmpty, "fail-on-empty", false, "Exit non-zero when no records are found")
	extractCmd.Flags().BoolVar(&extractNoCache, "no-cache", false, "Do not cache GROBID responses")
	extractCmd.Flags().BoolVar(&extractConsolidate, "consolidate", false, "Ask GROBID to consolidate citations against upstream sources")
	extractCmd.Flags().StringVar(&extractLogLevel, "log-level", "silent", "Log level: silent, info, debug")
	rootCmd.AddCommand(extractCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract FILE...",
	Short: "Extract references from .docx and .pdf files",
	Long: `Extract bibliographic references from the given files.

.docx inputs are scanned for embedded CSL citation fields; .pdf inputs
are sent to a GROBID service for bibliography parsing. All extracted
records are deduplicated, merged, and sorted before conversion.

Examples:
  refsweep extract thesis.docx
  refsweep extract --format bibtex paper1.pdf paper2.pdf > refs.bib
  refsweep extract --format ris --output refs.ris manuscript.docx`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	logger, err := buildLogger(extractLogLevel)
	if err != nil {
		os.Exit(outputError(ExitConfigError, "%v", err))
	}
	defer logger.Sync()

	format := config.ResolveFormat(extractFormat, convert.FormatCSLJSON)
	if !validFormat(format) {
		os.Exit(outputError(ExitConfigError, "unknown output format %q (supported: %s)",
			format, strings.Join(convert.Formats, ", ")))
	}

	opts := pipeline.Options{
		Format:      format,
		Minify:      extractMinify,
		GrobidURL:   config.ResolveGrobidURL(extractGrobidURL, grobid.DefaultBaseURL),
		Consolidate: extractConsolidate,
		FailOnEmpty: extractFailOnEmpty,
		Logger:      logger,
	}
	if !extractNoCache {
		if cache := openCache(logger); cache != nil {
			defer cache.Close()
			opts.Cache = cache
		}
	}

	res, runErr := pipeline.Run(context.Background(), args, opts)

	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	remediate := false
	for _, fe := range res.Errors {
		fmt.Fprintf(os.Stderr, "error: %s\n", fe.Error())
		if grobid.IsServiceUnavailable(fe.Err) {
			remediate = true
		}
	}
	if remediate {
		fmt.Fprintf(os.Stderr, "\n%s\n", grobid.RemediationMessage)
	}

	if runErr != nil {
		if errors.Is(runErr, pipeline.ErrNoRecords) {
			os.Exit(outputError(ExitNoRecords, "no bibliographic records found"))
		}
		os.Exit(outputError(ExitError, "%v", runErr))
	}

	if extractOutput == "" {
		fmt.Print(res.Output)
	} else {
		if err := os.WriteFile(extractOutput, []byte(res.Output), 0644); err != nil {
			os.Exit(outputError(ExitError, "writing %s: %v", extractOutput, err))
		}
		outputJSON(extractResponse(res, format))
	}

	// Per-file failures never abort the batch, but a run in which no
	// input succeeded still exits non-zero.
	if len(res.Errors) > 0 && res.FilesProcessed == 0 {
		os.Exit(ExitError)
	}
	return nil
}

func extractResponse(res *pipeline.Result, format string) ExtractResponse {
	resp := ExtractResponse{
		Status:            "ok",
		Output:            extractOutput,
		Format:            format,
		FilesProcessed:    res.FilesProcessed,
		Records:           res.Records,
		DuplicatesRemoved: res.DuplicatesRemoved,
		Warnings:          res.Warnings,
	}
	for _, fe := range res.Errors {
		resp.Errors = append(resp.Errors, fe.Error())
	}
	if len(resp.Errors) > 0 {
		resp.Status = "partial"
	}
	return resp
}

func validFormat(format string) bool {
	for _, f := range convert.Formats {
		if format == f {
			return true
		}
	}
	return false
}

// buildLogger maps a --log-level value onto a zap logger writing to
// stderr, so stdout stays clean for converted output.
func buildLogger(level string) (*zap.Logger, error) {
	switch level {
	case "", "silent":
		return zap.NewNop(), nil
	case "info", "debug":
		cfg := zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stderr"}
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		if level == "debug" {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		return cfg.Build()
	default:
		return nil, fmt.Errorf("unknown log level %q (supported: silent, info, debug)", level)
	}
}

// openCache opens the TEI response cache, creating its directory when
// needed. Cache failures degrade to uncached operation.
func openCache(logger *zap.Logger) *teicache.Cache {
	path := config.ResolveCachePath()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		logger.Debug("cannot create cache directory", zap.Error(err))
		return nil
	}
	cache, err := teicache.Open(path)
	if err != nil {
		logger.Debug("cannot open response cache", zap.Error(err))
		return nil
	}
	return cache
}
