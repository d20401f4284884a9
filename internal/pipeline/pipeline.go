// Package pipeline orchestrates one extraction run: classify inputs,
// extract records from each file concurrently, then normalize and render
// the combined list in a single pass.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/refsweep/refsweep/internal/citefield"
	"github.com/refsweep/refsweep/internal/convert"
	"github.com/refsweep/refsweep/internal/docx"
	"github.com/refsweep/refsweep/internal/grobid"
	"github.com/refsweep/refsweep/internal/normalize"
	"github.com/refsweep/refsweep/internal/pdf"
	"github.com/refsweep/refsweep/internal/record"
)

// DefaultConcurrency bounds how many input files are extracted at once.
const DefaultConcurrency = 4

// ErrNoRecords is returned when FailOnEmpty is set and the run produced
// an empty record list.
var ErrNoRecords = errors.New("no bibliographic records found")

// Options configures one pipeline run.
type Options struct {
	// Format is a convert format name; default csl-json.
	Format string
	// Minify emits compact CSL-JSON.
	Minify bool
	// GrobidURL overrides the parsing service base URL.
	GrobidURL string
	// Consolidate asks the service to consolidate citations upstream.
	Consolidate bool
	// Cache, when non-nil, stores service responses across runs.
	Cache grobid.Cache
	// FailOnEmpty turns an empty final record list into ErrNoRecords.
	FailOnEmpty bool
	// Concurrency bounds parallel file extraction; default
	// DefaultConcurrency.
	Concurrency int
	// Logger defaults to zap.NewNop().
	Logger *zap.Logger
}

// FileError is one input file's failure. It never aborts the batch.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e FileError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one run: the rendered output plus the
// statistics and diagnostics a caller reports to the user.
type Result struct {
	Output            string
	FilesProcessed    int
	Records           int
	DuplicatesRemoved int
	Errors            []FileError
	Warnings          []string
}

// fileResult is one input's extraction outcome, written only by its own
// goroutine.
type fileResult struct {
	extracted []record.Extracted
	warnings  []string
	err       error
}

// Run executes the pipeline over the given input files. Extraction is
// task-parallel across files; normalization and conversion run once over
// the combined list, since deduplication state is a single shared map.
func Run(ctx context.Context, inputs []string, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	format := opts.Format
	if format == "" {
		format = convert.FormatCSLJSON
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	clientOpts := []grobid.ClientOption{
		grobid.WithConsolidation(opts.Consolidate),
		grobid.WithLogger(logger),
	}
	if opts.GrobidURL != "" {
		clientOpts = append(clientOpts, grobid.WithBaseURL(opts.GrobidURL))
	}
	if opts.Cache != nil {
		clientOpts = append(clientOpts, grobid.WithCache(opts.Cache))
	}
	client := grobid.NewClient(clientOpts...)

	results := make([]fileResult, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, input := range inputs {
		g.Go(func() error {
			results[i] = extractFile(ctx, input, client, logger)
			return nil
		})
	}
	g.Wait()

	res := &Result{}
	var combined []record.Extracted
	for i, fr := range results {
		if fr.err != nil {
			res.Errors = append(res.Errors, FileError{Path: inputs[i], Err: fr.err})
			continue
		}
		res.FilesProcessed++
		combined = append(combined, fr.extracted...)
		res.Warnings = append(res.Warnings, fr.warnings...)
	}

	records, removed := normalize.Normalize(combined)
	res.Records = len(records)
	res.DuplicatesRemoved = removed

	logger.Info("pipeline complete",
		zap.Int("files", res.FilesProcessed),
		zap.Int("records", res.Records),
		zap.Int("duplicates_removed", removed))

	output, err := convert.Convert(records, format, convert.Options{Minify: opts.Minify})
	if err != nil {
		return res, err
	}
	res.Output = output

	if opts.FailOnEmpty && res.Records == 0 {
		return res, ErrNoRecords
	}
	return res, nil
}

// extractFile dispatches one input by extension.
func extractFile(ctx context.Context, path string, client *grobid.Client, logger *zap.Logger) fileResult {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		return extractDocx(path, logger)
	case ".pdf":
		return extractPDF(ctx, path, client, logger)
	default:
		return fileResult{err: fmt.Errorf("unsupported input type %q (expected .docx or .pdf)", filepath.Ext(path))}
	}
}

// extractDocx pulls citation payloads out of a compound document.
// Malformed payload spans are debug-logged and skipped; an empty outcome
// becomes a warning whose text distinguishes a document with no citation
// fields from one using Word's native bibliography feature.
func extractDocx(path string, logger *zap.Logger) fileResult {
	parts, err := docx.ReadParts(path)
	if err != nil {
		return fileResult{err: err}
	}

	var fr fileResult
	for _, part := range parts {
		payloads, errs := docx.ExtractPayloads(part)
		for _, err := range errs {
			logger.Debug("skipping citation payload", zap.String("file", path), zap.Error(err))
		}

		for _, payload := range payloads {
			dec := citefield.Decode(payload.JSON, payload.Source, path)
			for _, issue := range dec.Issues {
				logger.Debug("citation payload issue", zap.String("file", path), zap.String("issue", issue))
			}
			if dec.Status == citefield.StatusRejected {
				logger.Debug("citation payload rejected",
					zap.String("file", path), zap.String("reason", dec.Reason))
				continue
			}
			fr.extracted = append(fr.extracted, dec.Records...)
		}
	}

	if len(fr.extracted) == 0 {
		if docx.HasNativeBibliography(parts) {
			fr.warnings = append(fr.warnings, fmt.Sprintf(
				"%s: citations use Word's native bibliography feature, which is not supported; re-insert them with a CSL-based reference manager", path))
		} else {
			fr.warnings = append(fr.warnings, fmt.Sprintf("%s: no citation fields found", path))
		}
	}
	return fr
}

// extractPDF sends one PDF through the parsing service. A service that
// is reachable but finds no entries is a warning, not an error; in that
// case a best-effort record for the document itself is sniffed from the
// PDF's own pages.
func extractPDF(ctx context.Context, path string, client *grobid.Client, logger *zap.Logger) fileResult {
	extracted, err := client.ProcessReferences(ctx, path)
	if err != nil {
		return fileResult{err: err}
	}

	var fr fileResult
	fr.extracted = extracted
	if len(extracted) == 0 {
		fr.warnings = append(fr.warnings, fmt.Sprintf("%s: parsing service found no reference entries", path))
		if doc, ok := pdf.Describe(path); ok {
			logger.Debug("using document self-description fallback",
				zap.String("file", path), zap.String("doi", doc.Record.DOI))
			fr.extracted = append(fr.extracted, doc)
		}
	}
	return fr
}
