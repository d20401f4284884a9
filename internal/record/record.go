// Package record defines the canonical bibliographic record types shared by
// the extraction, normalization, and conversion stages.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Record is one bibliographic item in the internal CSL-shaped schema.
// Known fields are strongly typed; anything else a producer emitted is kept
// in Extra so serialization does not silently drop publisher-specific
// metadata.
type Record struct {
	Type string         `json:"type"`
	ID   FlexibleString `json:"id,omitempty"`

	// Identifiers
	DOI   string `json:"DOI,omitempty"`
	ISBN  string `json:"ISBN,omitempty"`
	ISSN  string `json:"ISSN,omitempty"`
	PMID  string `json:"PMID,omitempty"`
	PMCID string `json:"PMCID,omitempty"`
	URL   string `json:"URL,omitempty"`

	// Titles and publication venue
	Title          string `json:"title,omitempty"`
	ContainerTitle string `json:"container-title,omitempty"`
	Publisher      string `json:"publisher,omitempty"`
	PublisherPlace string `json:"publisher-place,omitempty"`

	// Contributors, in document order
	Author     []Name `json:"author,omitempty"`
	Editor     []Name `json:"editor,omitempty"`
	Translator []Name `json:"translator,omitempty"`

	Issued *Issued `json:"issued,omitempty"`

	Volume FlexibleString `json:"volume,omitempty"`
	Issue  FlexibleString `json:"issue,omitempty"`
	Page   FlexibleString `json:"page,omitempty"` // may encode a "start-end" range

	// Extra holds unrecognized fields verbatim. It is merged back in during
	// serialization, after the known fields, in sorted key order.
	Extra map[string]json.RawMessage `json:"-"`
}

// Name is one contributor, either a family/given pair or a literal string.
type Name struct {
	Family  string `json:"family,omitempty"`
	Given   string `json:"given,omitempty"`
	Literal string `json:"literal,omitempty"`
}

// IsEmpty reports whether the name carries no usable content.
func (n Name) IsEmpty() bool {
	return n.Family == "" && n.Given == "" && n.Literal == ""
}

// Issued is a CSL date: either a date-parts matrix ([[year]], [[year, month]],
// [[year, month, day]]) or a free-text literal/raw string.
type Issued struct {
	DateParts [][]int `json:"date-parts,omitempty"`
	Literal   string  `json:"literal,omitempty"`
	Raw       string  `json:"raw,omitempty"`
}

// Year returns the first year component, or 0 if none is present.
func (d *Issued) Year() int {
	if d == nil || len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return 0
	}
	return d.DateParts[0][0]
}

// FlexibleString unmarshals from either a JSON string or a number. Reference
// managers disagree on whether item IDs are strings.
type FlexibleString string

func (f *FlexibleString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexibleString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexibleString(n.String())
		return nil
	}

	var i int
	if err := json.Unmarshal(data, &i); err == nil {
		*f = FlexibleString(strconv.Itoa(i))
		return nil
	}

	return fmt.Errorf("cannot unmarshal %s into FlexibleString", string(data))
}

func (f FlexibleString) String() string {
	return string(f)
}

// knownKeys are the wire names handled by the typed fields above.
var knownKeys = []string{
	"type", "id",
	"DOI", "ISBN", "ISSN", "PMID", "PMCID", "URL",
	"title", "container-title", "publisher", "publisher-place",
	"author", "editor", "translator",
	"issued", "volume", "issue", "page",
}

// recordAlias drops Record's methods so the standard codec can be reused.
type recordAlias Record

func (r *Record) UnmarshalJSON(data []byte) error {
	var a recordAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range knownKeys {
		delete(raw, k)
	}
	if len(raw) > 0 {
		a.Extra = raw
	}

	*r = Record(a)
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(recordAlias(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return base, nil
	}

	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.Write(base[:len(base)-1]) // strip closing brace
	for _, k := range keys {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(r.Extra[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// HasIdentifier reports whether any identifier field is set.
func (r *Record) HasIdentifier() bool {
	return r.DOI != "" || r.ISBN != "" || r.ISSN != "" ||
		r.PMID != "" || r.PMCID != "" || r.URL != ""
}

// Viable reports whether the record satisfies the minimum viability
// invariant: a title or at least one identifier.
func (r *Record) Viable() bool {
	return r.Title != "" || r.HasIdentifier()
}

// FirstAuthor returns the first author, or an empty Name if there are none.
func (r *Record) FirstAuthor() Name {
	if len(r.Author) == 0 {
		return Name{}
	}
	return r.Author[0]
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() Record {
	out := *r
	out.Author = cloneNames(r.Author)
	out.Editor = cloneNames(r.Editor)
	out.Translator = cloneNames(r.Translator)
	if r.Issued != nil {
		issued := *r.Issued
		issued.DateParts = make([][]int, len(r.Issued.DateParts))
		for i, parts := range r.Issued.DateParts {
			issued.DateParts[i] = append([]int(nil), parts...)
		}
		out.Issued = &issued
	}
	if r.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(r.Extra))
		for k, v := range r.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

func cloneNames(names []Name) []Name {
	if names == nil {
		return nil
	}
	return append([]Name(nil), names...)
}
