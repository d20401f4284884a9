package grobid

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/refsweep/refsweep/internal/record"
)

// identifier types read from typed idno elements, compared case-insensitively.
var idnoTypes = []string{"DOI", "PMID", "PMCID", "ISSN", "ISBN"}

// ParseTEI converts a structured bibliography markup response into records.
// Bibliography entries are located by a recursive structural search, not a
// fixed path, so nesting differences between service versions do not matter.
// Entries with no resolvable title are discarded.
func ParseTEI(tei []byte, sourceFile string) ([]record.Extracted, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(tei); err != nil {
		return nil, fmt.Errorf("parsing service response: %w", err)
	}

	var out []record.Extracted
	for _, entry := range doc.FindElements("//biblStruct") {
		rec := parseBiblStruct(entry)
		if rec.Title == "" {
			continue
		}
		out = append(out, record.Extracted{
			Record:     rec,
			Source:     record.SourceExternalParser,
			SourceFile: sourceFile,
		})
	}
	return out, nil
}

// parseBiblStruct maps one bibliography entry. The analytic substructure
// carries article-level data; the monograph substructure carries the
// container. When no analytic title exists the container title is promoted
// to title and the record defaults to a book.
func parseBiblStruct(entry *etree.Element) record.Record {
	rec := record.Record{}

	analyticTitle := elementText(entry, "./analytic/title")
	monogrTitle := elementText(entry, "./monogr/title")

	if analyticTitle != "" {
		rec.Type = "article-journal"
		rec.Title = analyticTitle
		rec.ContainerTitle = monogrTitle
	} else {
		rec.Type = "book"
		rec.Title = monogrTitle
	}

	rec.Author = parsePersons(entry.FindElements("./analytic/author"))
	if len(rec.Author) == 0 {
		rec.Author = parsePersons(entry.FindElements("./monogr/author"))
	}
	rec.Editor = parsePersons(entry.FindElements("./monogr/editor"))

	for _, idno := range entry.FindElements(".//idno") {
		typ := idno.SelectAttrValue("type", "")
		value := strings.TrimSpace(idno.Text())
		if value == "" {
			continue
		}
		for _, known := range idnoTypes {
			if !strings.EqualFold(typ, known) {
				continue
			}
			switch known {
			case "DOI":
				rec.DOI = value
			case "PMID":
				rec.PMID = value
			case "PMCID":
				rec.PMCID = value
			case "ISSN":
				rec.ISSN = value
			case "ISBN":
				rec.ISBN = value
			}
		}
	}

	if imprint := entry.FindElement("./monogr/imprint"); imprint != nil {
		rec.Volume = record.FlexibleString(scopeText(imprint, "volume"))
		rec.Issue = record.FlexibleString(scopeText(imprint, "issue"))
		rec.Page = record.FlexibleString(pageRange(imprint))
		rec.Publisher = elementText(imprint, "./publisher")
		rec.PublisherPlace = elementText(imprint, "./pubPlace")
		if date := imprint.FindElement("./date"); date != nil {
			rec.Issued = parseDate(date)
		}
	}

	return rec
}

// parsePersons extracts contributors, preferring structured person-name
// elements and falling back to the element's literal text.
func parsePersons(elems []*etree.Element) []record.Name {
	var names []record.Name
	for _, e := range elems {
		if pers := e.FindElement("./persName"); pers != nil {
			n := record.Name{
				Family: elementText(pers, "./surname"),
				Given:  strings.Join(elementTexts(pers, "./forename"), " "),
			}
			if !n.IsEmpty() {
				names = append(names, n)
			}
			continue
		}
		if literal := collapsedText(e); literal != "" {
			names = append(names, record.Name{Literal: literal})
		}
	}
	return names
}

// parseDate reads a when attribute of the form yyyy, yyyy-mm, or yyyy-mm-dd
// into date parts, keeping anything else as a raw literal.
func parseDate(date *etree.Element) *record.Issued {
	when := strings.TrimSpace(date.SelectAttrValue("when", ""))
	if when == "" {
		when = strings.TrimSpace(date.Text())
	}
	if when == "" {
		return nil
	}

	var parts []int
	for _, piece := range strings.SplitN(when, "-", 3) {
		n, err := strconv.Atoi(piece)
		if err != nil {
			parts = nil
			break
		}
		parts = append(parts, n)
	}
	if len(parts) == 0 || parts[0] < 1000 {
		return &record.Issued{Raw: when}
	}
	return &record.Issued{DateParts: [][]int{parts}}
}

// pageRange renders a page biblScope as "from-to", a single value, or the
// element text.
func pageRange(imprint *etree.Element) string {
	for _, scope := range imprint.FindElements("./biblScope") {
		if !strings.EqualFold(scope.SelectAttrValue("unit", ""), "page") {
			continue
		}
		from := strings.TrimSpace(scope.SelectAttrValue("from", ""))
		to := strings.TrimSpace(scope.SelectAttrValue("to", ""))
		switch {
		case from != "" && to != "":
			return from + "-" + to
		case from != "":
			return from
		default:
			return strings.TrimSpace(scope.Text())
		}
	}
	return ""
}

func scopeText(imprint *etree.Element, unit string) string {
	for _, scope := range imprint.FindElements("./biblScope") {
		if strings.EqualFold(scope.SelectAttrValue("unit", ""), unit) {
			return strings.TrimSpace(scope.Text())
		}
	}
	return ""
}

func elementText(e *etree.Element, path string) string {
	found := e.FindElement(path)
	if found == nil {
		return ""
	}
	return strings.TrimSpace(found.Text())
}

func elementTexts(e *etree.Element, path string) []string {
	var out []string
	for _, found := range e.FindElements(path) {
		if text := strings.TrimSpace(found.Text()); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// collapsedText joins all text under an element, whitespace-normalized.
func collapsedText(e *etree.Element) string {
	var pieces []string
	var walk func(*etree.Element)
	walk = func(el *etree.Element) {
		if text := strings.TrimSpace(el.Text()); text != "" {
			pieces = append(pieces, text)
		}
		for _, child := range el.ChildElements() {
			walk(child)
		}
	}
	walk(e)
	return strings.Join(pieces, " ")
}
