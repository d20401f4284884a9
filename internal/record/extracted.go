package record

// Source identifies where an extracted record came from.
type Source string

// Known provenance sources.
const (
	SourceCitationField     Source = "citation-field"
	SourceBibliographyField Source = "bibliography-field"
	SourceExternalParser    Source = "external-parser"
)

// Extracted pairs a record with its provenance. Instances are created once
// per discovered citation occurrence and are not mutated afterwards; the
// normalization merge step operates on a copy of the record.
type Extracted struct {
	Record     Record `json:"record"`
	Source     Source `json:"source"`
	SourceFile string `json:"source_file"`

	// Raw is the original payload, kept for diagnostics only.
	Raw []byte `json:"-"`
}
