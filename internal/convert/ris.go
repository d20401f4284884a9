package convert

import (
	"strings"

	"github.com/refsweep/refsweep/internal/record"
)

// risTypes maps record types onto RIS TY tags. Unmapped types fall back
// to the generic GEN tag.
var risTypes = map[string]string{
	"article-journal":  "JOUR",
	"book":             "BOOK",
	"chapter":          "CHAP",
	"paper-conference": "CONF",
	"thesis":           "THES",
	"report":           "RPRT",
	"webpage":          "ELEC",
	"dataset":          "DATA",
	"software":         "COMP",
}

func risType(recordType string) string {
	if t, ok := risTypes[recordType]; ok {
		return t
	}
	return "GEN"
}

// renderRIS renders the line-record format: one two-letter tag per line,
// one AU line per author, entries terminated by ER.
func renderRIS(records []record.Record) string {
	var b strings.Builder
	for i := range records {
		r := &records[i]
		if i > 0 {
			b.WriteString("\n")
		}
		tag := func(name, value string) {
			if value != "" {
				b.WriteString(name + "  - " + value + "\n")
			}
		}

		b.WriteString("TY  - " + risType(r.Type) + "\n")
		tag("ID", entryKey(r, i))
		for _, n := range r.Author {
			tag("AU", formatName(n))
		}
		for _, n := range r.Editor {
			tag("ED", formatName(n))
		}
		tag("TI", r.Title)
		tag("T2", r.ContainerTitle)
		tag("PY", yearOf(r))
		tag("VL", r.Volume.String())
		tag("IS", r.Issue.String())
		start, end := splitPages(r.Page.String())
		tag("SP", start)
		tag("EP", end)
		tag("PB", r.Publisher)
		tag("CY", r.PublisherPlace)
		tag("SN", serialNumber(r))
		tag("DO", r.DOI)
		tag("UR", r.URL)
		b.WriteString("ER  - \n")
	}
	return b.String()
}

// splitPages splits a page range on the first hyphen into start and end,
// but only when both sides are non-empty; anything else stays whole in
// the start field.
func splitPages(pages string) (string, string) {
	if i := strings.Index(pages, "-"); i > 0 && i < len(pages)-1 {
		return strings.TrimSpace(pages[:i]), strings.TrimSpace(pages[i+1:])
	}
	return pages, ""
}

func serialNumber(r *record.Record) string {
	if r.ISSN != "" {
		return r.ISSN
	}
	return r.ISBN
}
