// Package docx recovers embedded citation payloads from word-processor
// compound documents (ZIP containers of XML parts).
package docx

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"regexp"
)

// Part is one decoded XML part from the document container.
type Part struct {
	Name    string
	Content []byte
}

// ErrNoCitationParts indicates the container opened fine but holds none of
// the parts that can carry citations. This signals "not a citation source"
// rather than corruption.
var ErrNoCitationParts = errors.New("no citation-bearing parts in document")

// ArchiveError reports a container that could not be used as a citation
// source.
type ArchiveError struct {
	Path string
	Err  error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("reading document %s: %v", e.Path, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// Only these internal part names can carry citation data: the main body,
// header/footer parts, and the custom-data part used by Word's native
// bibliography feature. Nothing else is decompressed.
var partAllowList = []*regexp.Regexp{
	regexp.MustCompile(`^word/document\.xml$`),
	regexp.MustCompile(`^word/header\d*\.xml$`),
	regexp.MustCompile(`^word/footer\d*\.xml$`),
	regexp.MustCompile(`^customXml/item\d*\.xml$`),
}

func partAllowed(name string) bool {
	for _, re := range partAllowList {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// ReadParts opens the compound document at path and returns the decoded
// content of every allow-listed part, in archive order. It returns an
// *ArchiveError wrapping ErrNoCitationParts when no relevant part exists.
func ReadParts(path string) ([]Part, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, &ArchiveError{Path: path, Err: err}
	}
	defer r.Close()

	var parts []Part
	for _, f := range r.File {
		if !partAllowed(f.Name) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, &ArchiveError{Path: path, Err: fmt.Errorf("opening part %s: %w", f.Name, err)}
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, &ArchiveError{Path: path, Err: fmt.Errorf("reading part %s: %w", f.Name, err)}
		}

		parts = append(parts, Part{Name: f.Name, Content: data})
	}

	if len(parts) == 0 {
		return nil, &ArchiveError{Path: path, Err: ErrNoCitationParts}
	}

	return parts, nil
}
