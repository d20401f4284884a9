// Package pdf sniffs bibliographic metadata out of a PDF's leading
// pages: the printed DOI and a first-line title heuristic. It describes
// the document itself, not the references it cites, and serves as a
// fallback when the external parsing service finds no reference entries.
package pdf

import (
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/refsweep/refsweep/internal/record"
)

// doiScanPages bounds how many leading pages are scanned for a DOI.
const doiScanPages = 3

// doiPattern matches 10.{registrant}/{suffix}; the suffix excludes
// characters that commonly terminate a DOI in running text.
var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// Describe builds a best-effort record for the PDF document itself from
// its first pages. The second return is false when neither a DOI nor a
// plausible title could be recovered, or the file is unreadable.
func Describe(path string) (record.Extracted, bool) {
	doi, err := ExtractDOI(path)
	if err != nil {
		return record.Extracted{}, false
	}
	title, _ := ExtractTitle(path)
	if doi == "" && title == "" {
		return record.Extracted{}, false
	}

	return record.Extracted{
		Record: record.Record{
			Type:  "article-journal",
			DOI:   doi,
			Title: title,
		},
		Source:     record.SourceExternalParser,
		SourceFile: path,
	}, true
}

// ExtractDOI scans the first pages of a PDF for a printed DOI. A PDF
// without a discoverable DOI returns "" with no error; only unreadable
// files fail.
func ExtractDOI(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pages := r.NumPage()
	if pages > doiScanPages {
		pages = doiScanPages
	}

	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if doi := findDOI(text); doi != "" {
			return doi, nil
		}
	}
	return "", nil
}

// ExtractTitle guesses the document title: the first substantial line of
// the first page that does not look like a running header.
func ExtractTitle(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if r.NumPage() < 1 {
		return "", nil
	}
	page := r.Page(1)
	if page.V.IsNull() {
		return "", nil
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 20 && !isHeaderLine(line) {
			return line, nil
		}
	}
	return "", nil
}

// findDOI returns the first pattern match that survives trailing
// punctuation cleanup and shape validation.
func findDOI(text string) string {
	for _, match := range doiPattern.FindAllString(text, -1) {
		match = strings.TrimRight(match, ".,;:)")
		if isValidDOI(match) {
			return match
		}
	}
	return ""
}

func isValidDOI(doi string) bool {
	if len(doi) < 10 || !strings.HasPrefix(doi, "10.") {
		return false
	}
	slash := strings.Index(doi, "/")
	return slash != -1 && slash < len(doi)-1
}

// isHeaderLine filters journal mastheads, copyright lines, and similar
// running-header text out of the title heuristic.
func isHeaderLine(line string) bool {
	lower := strings.ToLower(line)
	if strings.Contains(lower, "journal") {
		return true
	}
	if strings.Contains(lower, "volume") && strings.Contains(lower, "issue") {
		return true
	}
	if strings.Contains(lower, "copyright") {
		return true
	}
	if strings.Contains(lower, "article") && strings.Contains(lower, "published") {
		return true
	}
	return false
}
