// Package convert renders a normalized record list into citation
// interchange formats.
package convert

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/refsweep/refsweep/internal/normalize"
	"github.com/refsweep/refsweep/internal/record"
)

// Supported output formats.
const (
	FormatCSLJSON  = "csl-json"
	FormatBibTeX   = "bibtex"
	FormatBibLaTeX = "biblatex"
	FormatRIS      = "ris"
)

// Formats lists the supported format names in display order.
var Formats = []string{FormatCSLJSON, FormatBibTeX, FormatBibLaTeX, FormatRIS}

// UnknownFormatError indicates a format name outside of Formats.
type UnknownFormatError struct {
	Format string
}

func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("unknown output format %q (supported: %s)", e.Format, strings.Join(Formats, ", "))
}

// Options controls rendering behavior shared across formats.
type Options struct {
	// Minify emits compact CSL-JSON instead of indented. Ignored by the
	// other formats.
	Minify bool
}

// Convert renders records into the named format.
func Convert(records []record.Record, format string, opts Options) (string, error) {
	switch format {
	case FormatCSLJSON:
		return renderCSLJSON(records, opts.Minify)
	case FormatBibTeX, FormatBibLaTeX:
		return renderBracket(records, format), nil
	case FormatRIS:
		return renderRIS(records), nil
	default:
		return "", &UnknownFormatError{Format: format}
	}
}

// renderCSLJSON is the lossless native serialization: every known field
// plus preserved extra fields, via the record's own marshaler.
func renderCSLJSON(records []record.Record, minify bool) (string, error) {
	if records == nil {
		records = []record.Record{}
	}
	var (
		data []byte
		err  error
	)
	if minify {
		data, err = json.Marshal(records)
	} else {
		data, err = json.MarshalIndent(records, "", "  ")
	}
	if err != nil {
		return "", fmt.Errorf("encoding records: %w", err)
	}
	return string(data) + "\n", nil
}

// entryKey is the per-entry identifier for the bracket and line-record
// formats: the record's own id, else the derived citekey, else a
// positional ref-{n} for records carrying no author, year, or title.
func entryKey(r *record.Record, n int) string {
	if id := strings.TrimSpace(r.ID.String()); id != "" {
		return id
	}
	if key := normalize.CiteKey(r); key != "UnknownunknownUntitled" {
		return key
	}
	return fmt.Sprintf("ref-%d", n)
}

// yearOf renders the first year component of the issued date, or "".
// Sub-year precision is not representable in the non-native formats.
func yearOf(r *record.Record) string {
	if y := r.Issued.Year(); y > 0 {
		return strconv.Itoa(y)
	}
	return ""
}

// formatName renders one name: a literal as-is, a family+given pair as
// "Family, Given", a family alone bare.
func formatName(n record.Name) string {
	if n.Literal != "" {
		return n.Literal
	}
	if n.Given != "" && n.Family != "" {
		return n.Family + ", " + n.Given
	}
	if n.Family != "" {
		return n.Family
	}
	return n.Given
}

func joinNames(names []record.Name) string {
	var parts []string
	for _, n := range names {
		if s := formatName(n); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " and ")
}
