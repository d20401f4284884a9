// Package normalize reconciles extracted records into one deduplicated,
// trimmed, deterministically ordered list.
package normalize

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/refsweep/refsweep/internal/record"
)

const maxTitleKeyLen = 100

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]`)
	nonLetter       = regexp.MustCompile(`[^a-z]`)
)

// DedupeKey derives the string under which records are considered the same
// logical reference. Priority: DOI (strongest globally unique identifier),
// then URL (weaker: mutable, not always canonical), then an
// author|year|title composite resilient to punctuation differences across
// re-renderings of the same citation.
func DedupeKey(r *record.Record) string {
	if r.DOI != "" {
		return normalizeDOI(r.DOI)
	}
	if r.URL != "" {
		return strings.TrimRight(strings.ToLower(strings.TrimSpace(r.URL)), "/")
	}
	return familyKey(r) + "|" + yearString(r) + "|" + normalizeTitle(r.Title)
}

// normalizeDOI lowercases and strips resolver prefixes so the same DOI
// always produces the same key.
func normalizeDOI(doi string) string {
	doi = strings.ToLower(strings.TrimSpace(doi))
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "doi.org/")
	doi = strings.TrimPrefix(doi, "doi:")
	return doi
}

// normalizeTitle lowercases, strips all non-alphanumerics, and truncates.
func normalizeTitle(title string) string {
	t := nonAlphanumeric.ReplaceAllString(strings.ToLower(title), "")
	if len(t) > maxTitleKeyLen {
		t = t[:maxTitleKeyLen]
	}
	return t
}

// familyKey is the normalized first-author family name: lowercased,
// non-letters stripped, the first word of a literal name, or "unknown"
// when no usable author exists.
func familyKey(r *record.Record) string {
	first := r.FirstAuthor()
	name := first.Family
	if name == "" {
		if words := strings.Fields(first.Literal); len(words) > 0 {
			name = words[0]
		}
	}
	name = nonLetter.ReplaceAllString(strings.ToLower(name), "")
	if name == "" {
		return "unknown"
	}
	return name
}

// yearString is the 4-digit year, or "unknown", which sorts after all
// numeric years in a plain string comparison.
func yearString(r *record.Record) string {
	if y := r.Issued.Year(); y >= 1000 && y <= 9999 {
		return strconv.Itoa(y)
	}
	return "unknown"
}

// Normalize deduplicates, merges, trims, and sorts the combined record set.
// The first-seen record per key becomes canonical; later duplicates only
// fill its gaps. The returned count is the number of duplicates removed.
func Normalize(extracted []record.Extracted) ([]record.Record, int) {
	byKey := make(map[string]int)
	var out []record.Record
	removed := 0

	for i := range extracted {
		rec := &extracted[i].Record
		key := DedupeKey(rec)
		if idx, ok := byKey[key]; ok {
			merge(&out[idx], rec)
			removed++
			continue
		}
		byKey[key] = len(out)
		out = append(out, rec.Clone())
	}

	for i := range out {
		trimRecord(&out[i])
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if fa, fb := familyKey(a), familyKey(b); fa != fb {
			return fa < fb
		}
		if ya, yb := yearString(a), yearString(b); ya != yb {
			return ya < yb
		}
		return normalizeTitle(a.Title) < normalizeTitle(b.Title)
	})

	return out, removed
}

// merge copies fields from src into dst only where dst is currently absent
// or empty. Canonical data is never overwritten; gaps are filled
// opportunistically from later-seen duplicates.
func merge(dst, src *record.Record) {
	fillString(&dst.Type, src.Type)
	fillString((*string)(&dst.ID), string(src.ID))
	fillString(&dst.DOI, src.DOI)
	fillString(&dst.ISBN, src.ISBN)
	fillString(&dst.ISSN, src.ISSN)
	fillString(&dst.PMID, src.PMID)
	fillString(&dst.PMCID, src.PMCID)
	fillString(&dst.URL, src.URL)
	fillString(&dst.Title, src.Title)
	fillString(&dst.ContainerTitle, src.ContainerTitle)
	fillString(&dst.Publisher, src.Publisher)
	fillString(&dst.PublisherPlace, src.PublisherPlace)
	fillString((*string)(&dst.Volume), string(src.Volume))
	fillString((*string)(&dst.Issue), string(src.Issue))
	fillString((*string)(&dst.Page), string(src.Page))

	if len(dst.Author) == 0 && len(src.Author) > 0 {
		dst.Author = append([]record.Name(nil), src.Author...)
	}
	if len(dst.Editor) == 0 && len(src.Editor) > 0 {
		dst.Editor = append([]record.Name(nil), src.Editor...)
	}
	if len(dst.Translator) == 0 && len(src.Translator) > 0 {
		dst.Translator = append([]record.Name(nil), src.Translator...)
	}
	if dst.Issued == nil && src.Issued != nil {
		issued := *src.Issued
		issued.DateParts = make([][]int, len(src.Issued.DateParts))
		for i, parts := range src.Issued.DateParts {
			issued.DateParts[i] = append([]int(nil), parts...)
		}
		dst.Issued = &issued
	}
	for k, v := range src.Extra {
		if dst.Extra == nil {
			dst.Extra = make(map[string]json.RawMessage, len(src.Extra))
		}
		if _, ok := dst.Extra[k]; !ok {
			dst.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
}

func fillString(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

// trimRecord whitespace-trims every string field, including name parts.
// Non-string fields pass through unchanged.
func trimRecord(r *record.Record) {
	r.Type = strings.TrimSpace(r.Type)
	r.ID = record.FlexibleString(strings.TrimSpace(string(r.ID)))
	r.DOI = strings.TrimSpace(r.DOI)
	r.ISBN = strings.TrimSpace(r.ISBN)
	r.ISSN = strings.TrimSpace(r.ISSN)
	r.PMID = strings.TrimSpace(r.PMID)
	r.PMCID = strings.TrimSpace(r.PMCID)
	r.URL = strings.TrimSpace(r.URL)
	r.Title = strings.TrimSpace(r.Title)
	r.ContainerTitle = strings.TrimSpace(r.ContainerTitle)
	r.Publisher = strings.TrimSpace(r.Publisher)
	r.PublisherPlace = strings.TrimSpace(r.PublisherPlace)
	r.Volume = record.FlexibleString(strings.TrimSpace(string(r.Volume)))
	r.Issue = record.FlexibleString(strings.TrimSpace(string(r.Issue)))
	r.Page = record.FlexibleString(strings.TrimSpace(string(r.Page)))
	trimNames(r.Author)
	trimNames(r.Editor)
	trimNames(r.Translator)
	if r.Issued != nil {
		r.Issued.Literal = strings.TrimSpace(r.Issued.Literal)
		r.Issued.Raw = strings.TrimSpace(r.Issued.Raw)
	}
}

func trimNames(names []record.Name) {
	for i := range names {
		names[i].Family = strings.TrimSpace(names[i].Family)
		names[i].Given = strings.TrimSpace(names[i].Given)
		names[i].Literal = strings.TrimSpace(names[i].Literal)
	}
}
