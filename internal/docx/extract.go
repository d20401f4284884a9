package docx

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/refsweep/refsweep/internal/record"
)

// Marker tokens preceding embedded citation JSON in instruction text. A
// citation field carries one in-text citation event; a bibliography field
// carries the document's whole reference list.
const (
	MarkerCitation     = "CSL_CITATION"
	MarkerBibliography = "CSL_BIBLIOGRAPHY"
)

// Payload is one balanced JSON span recovered from a part's instruction
// text, tagged with the provenance its marker implies.
type Payload struct {
	Source record.Source
	JSON   []byte
}

// InstructionText parses a part and concatenates the text of every
// instruction-text run in document order. Concatenation before scanning is
// required: word processors split a logical instruction string across
// sibling runs, so a JSON object's braces may span run boundaries.
func InstructionText(p Part) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(p.Content); err != nil {
		return "", fmt.Errorf("parsing part %s: %w", p.Name, err)
	}

	var b strings.Builder
	for _, e := range doc.FindElements("//instrText") {
		b.WriteString(e.Text())
	}
	return b.String(), nil
}

// ExtractPayloads returns every citation JSON payload embedded in the part.
// A span that fails to parse as JSON is reported in the error slice and
// skipped; it never aborts extraction of subsequent spans.
func ExtractPayloads(p Part) ([]Payload, []error) {
	text, err := InstructionText(p)
	if err != nil {
		return nil, []error{err}
	}

	var (
		payloads []Payload
		errs     []error
	)
	scan := func(marker string, source record.Source) {
		for _, span := range markedSpans(text, marker) {
			if !json.Valid(span) {
				errs = append(errs, fmt.Errorf("part %s: malformed JSON after %s marker: %.60s", p.Name, marker, span))
				continue
			}
			payloads = append(payloads, Payload{Source: source, JSON: span})
		}
	}
	scan(MarkerCitation, record.SourceCitationField)
	scan(MarkerBibliography, record.SourceBibliographyField)

	return payloads, errs
}

// markedSpans finds every occurrence of marker in text and extracts the
// balanced JSON object that follows it. Markers with no following brace and
// spans that never close are ignored. Each marker is processed independently.
func markedSpans(text, marker string) [][]byte {
	var spans [][]byte
	pos := 0
	for {
		idx := strings.Index(text[pos:], marker)
		if idx < 0 {
			return spans
		}
		after := pos + idx + len(marker)

		open := strings.IndexByte(text[after:], '{')
		if open < 0 {
			pos = after
			continue
		}
		start := after + open

		end, ok := matchBrace(text, start)
		if !ok {
			pos = after
			continue
		}

		spans = append(spans, []byte(text[start:end]))
		pos = end
	}
}

// matchBrace returns the index just past the brace matching the one at
// start. The scanner is string-aware: characters inside a double-quoted
// string, honoring backslash escapes, never affect depth. This handles
// arbitrarily nested objects and literal braces inside quoted text.
func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}

	return 0, false
}

// HasNativeBibliography reports whether a custom-data part carries Word's
// native bibliography source list. Those citations are stored as structured
// Sources elements, not CSL instruction text, and are out of scope; callers
// use this to emit an actionable diagnostic instead of a bare empty result.
func HasNativeBibliography(parts []Part) bool {
	for _, p := range parts {
		if !strings.HasPrefix(p.Name, "customXml/") {
			continue
		}
		doc := etree.NewDocument()
		if err := doc.ReadFromBytes(p.Content); err != nil {
			continue
		}
		root := doc.Root()
		if root == nil {
			continue
		}
		if root.Tag == "Sources" || len(doc.FindElements("//Source")) > 0 {
			return true
		}
	}
	return false
}
