package convert

import (
	"fmt"
	"strings"

	"github.com/nickng/bibtex"

	"github.com/refsweep/refsweep/internal/record"
)

// bibtexTypes maps record types onto bracket-format entry types.
// Unmapped types fall back to misc.
var bibtexTypes = map[string]string{
	"article-journal":  "article",
	"book":             "book",
	"chapter":          "incollection",
	"paper-conference": "inproceedings",
	"thesis":           "phdthesis",
	"report":           "techreport",
	"webpage":          "misc",
	"dataset":          "misc",
	"software":         "misc",
}

func bibtexType(recordType string) string {
	if t, ok := bibtexTypes[recordType]; ok {
		return t
	}
	return "misc"
}

// renderBracket renders the bibtex or biblatex flavor. The bibtex engine
// is the primary renderer; a recovered panic inside it routes to the
// manual fallback so malformed records still produce output.
func renderBracket(records []record.Record, format string) string {
	if out, ok := renderWithEngine(records, format); ok {
		return out
	}
	return renderManual(records, format)
}

// renderWithEngine builds an entry list for the engine under placeholder
// keys, renders it, then swaps each placeholder for the derived entry key
// anchored at the entry's "@type{key," token. The engine auto-formats
// fields; only the keys are ours.
func renderWithEngine(records []record.Record, format string) (out string, ok bool) {
	defer func() {
		if recover() != nil {
			out, ok = "", false
		}
	}()

	bib := bibtex.NewBibTex()
	for i := range records {
		r := &records[i]
		entry := bibtex.NewBibEntry(bibtexType(r.Type), enginePlaceholder(i))
		for _, f := range bracketFields(r, format) {
			entry.AddField(f.name, bibtex.NewBibConst(f.value))
		}
		bib.AddEntry(entry)
	}

	out = bib.String()
	for i := range records {
		r := &records[i]
		entryType := bibtexType(r.Type)
		anchor := "@" + entryType + "{" + enginePlaceholder(i) + ","
		replacement := "@" + entryType + "{" + entryKey(r, i) + ","
		if !strings.Contains(out, anchor) {
			// The engine drops the trailing comma for a field-less entry.
			anchor = "@" + entryType + "{" + enginePlaceholder(i) + "\n"
			replacement = "@" + entryType + "{" + entryKey(r, i) + ",\n"
		}
		out = strings.Replace(out, anchor, replacement, 1)
	}
	return out, true
}

func enginePlaceholder(n int) string {
	return fmt.Sprintf("autokey-%d", n)
}

// renderManual is the fallback renderer: only present fields, fixed
// order, one entry per record.
func renderManual(records []record.Record, format string) string {
	var b strings.Builder
	for i := range records {
		r := &records[i]
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("@%s{%s,\n", bibtexType(r.Type), entryKey(r, i)))
		for _, f := range bracketFields(r, format) {
			b.WriteString(fmt.Sprintf("  %s = {%s},\n", f.name, f.value))
		}
		b.WriteString("}\n")
	}
	return b.String()
}

type field struct {
	name  string
	value string
}

// bracketFields is the shared field list for both bracket flavors, in
// fixed output order, skipping absent values. The flavors differ in the
// container-title and place field names, and biblatex additionally
// carries translators.
func bracketFields(r *record.Record, format string) []field {
	var fs []field
	add := func(name, value string) {
		if value != "" {
			fs = append(fs, field{name, value})
		}
	}

	add("author", joinNames(r.Author))
	add("editor", joinNames(r.Editor))
	if format == FormatBibLaTeX {
		add("translator", joinNames(r.Translator))
	}
	add("title", escapeLaTeX(r.Title))
	add(containerField(r.Type, format), escapeLaTeX(r.ContainerTitle))
	add("publisher", escapeLaTeX(r.Publisher))
	add(placeField(format), escapeLaTeX(r.PublisherPlace))
	add("volume", r.Volume.String())
	add("number", r.Issue.String())
	add("pages", r.Page.String())
	add("year", yearOf(r))
	add("doi", r.DOI)
	add("isbn", r.ISBN)
	add("issn", r.ISSN)
	add("url", r.URL)
	return fs
}

func containerField(recordType, format string) string {
	if recordType == "article-journal" {
		if format == FormatBibLaTeX {
			return "journaltitle"
		}
		return "journal"
	}
	return "booktitle"
}

func placeField(format string) string {
	if format == FormatBibLaTeX {
		return "location"
	}
	return "address"
}

// escapeLaTeX escapes special LaTeX characters. & must come first so
// later escapes cannot produce a fresh unescaped ampersand.
func escapeLaTeX(s string) string {
	replacer := strings.NewReplacer(
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
		"{", `\{`,
		"}", `\}`,
		"~", `\textasciitilde{}`,
		"^", `\textasciicircum{}`,
	)
	return replacer.Replace(s)
}
