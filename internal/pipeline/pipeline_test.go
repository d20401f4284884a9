package pipeline

import (
	"archive/zip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/refsweep/refsweep/internal/convert"
	"github.com/refsweep/refsweep/internal/docx"
	"github.com/refsweep/refsweep/internal/grobid"
)

// writeDocx builds a minimal compound document whose body carries the
// given instruction text.
func writeDocx(t *testing.T, name, instrText string) string {
	t.Helper()
	body := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body><w:p><w:r><w:instrText>` + instrText + `</w:instrText></w:r></w:p></w:body>
</w:document>`

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(body)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

const citationPayload = ` ADDIN ZOTERO_ITEM CSL_CITATION {"citationItems":[{"itemData":{"type":"article-journal","title":"Pipeline Paper","author":[{"family":"Smith","given":"John"}],"issued":{"date-parts":[[2023]]},"DOI":"10.1234/pipe.1"}}]}`

func TestRun_DocxToCSLJSON(t *testing.T) {
	path := writeDocx(t, "doc.docx", citationPayload)

	res, err := Run(context.Background(), []string{path}, Options{})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.FilesProcessed != 1 || res.Records != 1 {
		t.Errorf("files=%d records=%d, want 1/1", res.FilesProcessed, res.Records)
	}
	if len(res.Errors) != 0 || len(res.Warnings) != 0 {
		t.Errorf("errors=%v warnings=%v", res.Errors, res.Warnings)
	}
	if !strings.Contains(res.Output, `"Pipeline Paper"`) {
		t.Errorf("output missing record:\n%s", res.Output)
	}
}

func TestRun_DeduplicatesAcrossFields(t *testing.T) {
	// Citation field and bibliography field carry the same DOI.
	instr := citationPayload +
		` ADDIN ZOTERO_BIBL CSL_BIBLIOGRAPHY {"items":[{"type":"article-journal","title":"Pipeline Paper (Full)","container-title":"Journal of Pipes","DOI":"10.1234/pipe.1"}]}`
	path := writeDocx(t, "doc.docx", instr)

	res, err := Run(context.Background(), []string{path}, Options{Format: convert.FormatBibTeX})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Records != 1 || res.DuplicatesRemoved != 1 {
		t.Errorf("records=%d removed=%d, want 1/1", res.Records, res.DuplicatesRemoved)
	}
	// First-seen title wins; the container title fills a gap.
	if !strings.Contains(res.Output, "Pipeline Paper") || strings.Contains(res.Output, "(Full)") {
		t.Errorf("canonical title overwritten:\n%s", res.Output)
	}
	if !strings.Contains(res.Output, "Journal of Pipes") {
		t.Errorf("merge did not fill container title:\n%s", res.Output)
	}
}

func TestRun_PerFileErrorsDoNotAbortBatch(t *testing.T) {
	good := writeDocx(t, "good.docx", citationPayload)
	missing := filepath.Join(t.TempDir(), "missing.docx")
	unsupported := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(unsupported, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := Run(context.Background(), []string{missing, unsupported, good}, Options{})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.FilesProcessed != 1 || res.Records != 1 {
		t.Errorf("files=%d records=%d, want 1/1", res.FilesProcessed, res.Records)
	}
	if len(res.Errors) != 2 {
		t.Fatalf("errors = %v, want 2", res.Errors)
	}

	var archiveErr *docx.ArchiveError
	if !errors.As(res.Errors[0].Err, &archiveErr) {
		t.Errorf("missing file error = %v, want *ArchiveError", res.Errors[0].Err)
	}
	if !strings.Contains(res.Errors[1].Error(), "unsupported input type") {
		t.Errorf("unsupported file error = %v", res.Errors[1])
	}
}

func TestRun_EmptyDocxWarning(t *testing.T) {
	path := writeDocx(t, "plain.docx", " PAGEREF _Toc1 ")

	res, err := Run(context.Background(), []string{path}, Options{})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Records != 0 {
		t.Errorf("records = %d, want 0", res.Records)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "no citation fields found") {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestRun_FailOnEmpty(t *testing.T) {
	path := writeDocx(t, "plain.docx", "nothing here")

	_, err := Run(context.Background(), []string{path}, Options{FailOnEmpty: true})
	if !errors.Is(err, ErrNoRecords) {
		t.Errorf("error = %v, want ErrNoRecords", err)
	}
}

const pipelineTEI = `<TEI><listBibl><biblStruct>
	<analytic>
		<title>Parsed From PDF</title>
		<author><persName><surname>Chen</surname><forename>Wei</forename></persName></author>
		<idno type="DOI">10.5555/pdf.ref</idno>
	</analytic>
	<monogr><title level="j">PDF Journal</title></monogr>
</biblStruct></listBibl></TEI>`

func writeFakePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paper.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 fake"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_PDFThroughService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/isalive" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Write([]byte(pipelineTEI))
	}))
	defer srv.Close()

	res, err := Run(context.Background(), []string{writeFakePDF(t)}, Options{
		GrobidURL: srv.URL,
		Format:    convert.FormatRIS,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Records != 1 {
		t.Fatalf("records = %d, want 1", res.Records)
	}
	if !strings.Contains(res.Output, "TI  - Parsed From PDF") {
		t.Errorf("output:\n%s", res.Output)
	}
}

func TestRun_ServiceUnavailable(t *testing.T) {
	res, err := Run(context.Background(), []string{writeFakePDF(t)}, Options{
		GrobidURL: "http://127.0.0.1:1",
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(res.Errors) != 1 || !grobid.IsServiceUnavailable(res.Errors[0].Err) {
		t.Errorf("errors = %v, want one service-unavailable error", res.Errors)
	}
}

func TestRun_ServiceEmptyResultWarning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/isalive" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Write([]byte(`<TEI><listBibl></listBibl></TEI>`))
	}))
	defer srv.Close()

	res, err := Run(context.Background(), []string{writeFakePDF(t)}, Options{GrobidURL: srv.URL})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Errorf("empty service result must not be an error: %v", res.Errors)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "no reference entries") {
		t.Errorf("warnings = %v", res.Warnings)
	}
}
