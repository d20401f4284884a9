package normalize

import (
	"testing"

	"github.com/refsweep/refsweep/internal/record"
)

func extracted(recs ...record.Record) []record.Extracted {
	out := make([]record.Extracted, len(recs))
	for i, r := range recs {
		out[i] = record.Extracted{Record: r, Source: record.SourceCitationField, SourceFile: "a.docx"}
	}
	return out
}

func TestDedupeKey_Deterministic(t *testing.T) {
	rec := record.Record{
		Type:   "article-journal",
		Title:  "Some Title",
		Author: []record.Name{{Family: "Smith"}},
		Issued: &record.Issued{DateParts: [][]int{{2020}}},
	}
	if DedupeKey(&rec) != DedupeKey(&rec) {
		t.Errorf("DedupeKey() not deterministic")
	}
}

func TestDedupeKey_DOINormalization(t *testing.T) {
	a := record.Record{Type: "article-journal", DOI: "10.1234/ABC.DEF"}
	b := record.Record{Type: "article-journal", DOI: "https://doi.org/10.1234/abc.def"}
	c := record.Record{Type: "article-journal", DOI: "doi:10.1234/Abc.Def"}

	if DedupeKey(&a) != DedupeKey(&b) || DedupeKey(&b) != DedupeKey(&c) {
		t.Errorf("DOI casing/prefix variants should share a key: %q %q %q",
			DedupeKey(&a), DedupeKey(&b), DedupeKey(&c))
	}
}

func TestDedupeKey_Priority(t *testing.T) {
	both := record.Record{Type: "article-journal", DOI: "10.1/x", URL: "https://example.org/paper"}
	doiOnly := record.Record{Type: "article-journal", DOI: "10.1/x"}
	urlOnly := record.Record{Type: "article-journal", URL: "https://example.org/paper"}

	if DedupeKey(&both) != DedupeKey(&doiOnly) {
		t.Errorf("record with DOI and URL must key on the DOI")
	}
	if DedupeKey(&both) == DedupeKey(&urlOnly) {
		t.Errorf("record with DOI must never key on the URL")
	}
}

func TestDedupeKey_CompositeFallback(t *testing.T) {
	a := record.Record{
		Type:   "book",
		Title:  "The Origin: of Species!",
		Author: []record.Name{{Family: "Darwin", Given: "Charles"}},
		Issued: &record.Issued{DateParts: [][]int{{1859}}},
	}
	// Same reference re-rendered by a different tool with punctuation
	// differences in the title.
	b := record.Record{
		Type:   "book",
		Title:  "The Origin of Species",
		Author: []record.Name{{Family: "Darwin"}},
		Issued: &record.Issued{DateParts: [][]int{{1859}}},
	}
	if DedupeKey(&a) != DedupeKey(&b) {
		t.Errorf("composite keys differ: %q vs %q", DedupeKey(&a), DedupeKey(&b))
	}

	noAuthor := record.Record{Type: "webpage", Title: "T"}
	if got := DedupeKey(&noAuthor); got != "unknown|unknown|t" {
		t.Errorf("DedupeKey() = %q, want unknown|unknown|t", got)
	}
}

func TestNormalize_MergeFillsGapsOnly(t *testing.T) {
	sparse := record.Record{Type: "article-journal", DOI: "10.1234/same", Title: "First Seen Title"}
	full := record.Record{
		Type:           "article-journal",
		DOI:            "10.1234/same",
		Title:          "Different Later Title",
		ContainerTitle: "Journal X",
		Volume:         "7",
		Author:         []record.Name{{Family: "Smith"}},
		Issued:         &record.Issued{DateParts: [][]int{{2023}}},
	}

	out, removed := Normalize(extracted(sparse, full))
	if removed != 1 {
		t.Fatalf("duplicates removed = %d, want 1", removed)
	}
	if len(out) != 1 {
		t.Fatalf("records = %d, want 1", len(out))
	}

	got := out[0]
	if got.Title != "First Seen Title" {
		t.Errorf("Title = %q; merge must never overwrite the canonical value", got.Title)
	}
	if got.ContainerTitle != "Journal X" || got.Volume.String() != "7" {
		t.Errorf("merge should fill gaps: %+v", got)
	}
	if len(got.Author) != 1 || got.Issued.Year() != 2023 {
		t.Errorf("merge should fill authors and dates: %+v", got)
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := extracted(
		record.Record{Type: "book", DOI: "10.1/d", Title: "T"},
		record.Record{Type: "book", DOI: "10.1/d", Title: "T", Publisher: "P"},
	)

	out, _ := Normalize(in)
	out[0].Title = "changed"

	if in[0].Record.Title != "T" || in[0].Record.Publisher != "" {
		t.Errorf("Normalize() mutated its input: %+v", in[0].Record)
	}
}

func TestNormalize_Trim(t *testing.T) {
	out, _ := Normalize(extracted(record.Record{
		Type:   " book ",
		Title:  "  Spaced Title  ",
		Author: []record.Name{{Family: " Smith ", Given: " John "}},
	}))

	got := out[0]
	if got.Type != "book" || got.Title != "Spaced Title" {
		t.Errorf("trim failed: %+v", got)
	}
	if got.Author[0].Family != "Smith" || got.Author[0].Given != "John" {
		t.Errorf("name trim failed: %+v", got.Author)
	}
}

func TestNormalize_SortOrder(t *testing.T) {
	out, _ := Normalize(extracted(
		record.Record{Type: "book", Title: "Zebra", Author: []record.Name{{Family: "Young"}}, Issued: &record.Issued{DateParts: [][]int{{2020}}}},
		record.Record{Type: "book", Title: "No Year", Author: []record.Name{{Family: "Adams"}}},
		record.Record{Type: "book", Title: "Older", Author: []record.Name{{Family: "Adams"}}, Issued: &record.Issued{DateParts: [][]int{{1999}}}},
		record.Record{Type: "book", Title: "Alpha", Author: []record.Name{{Family: "Adams"}}, Issued: &record.Issued{DateParts: [][]int{{1999}}}},
	))

	titles := make([]string, len(out))
	for i, r := range out {
		titles[i] = r.Title
	}
	// adams/1999 (Alpha before Older by title), adams/unknown after numeric
	// years, then young.
	want := []string{"Alpha", "Older", "No Year", "Zebra"}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("sort order = %v, want %v", titles, want)
		}
	}
}

func TestNormalize_SortStability(t *testing.T) {
	// Identical author/year/title sort keys: relative input order preserved.
	a := record.Record{Type: "book", Title: "Same Title", DOI: "10.1/a", Author: []record.Name{{Family: "Smith"}}}
	b := record.Record{Type: "book", Title: "same, title", DOI: "10.1/b", Author: []record.Name{{Family: "Smith"}}}

	out, removed := Normalize(extracted(a, b))
	if removed != 0 {
		t.Fatalf("different DOIs must not deduplicate")
	}
	if out[0].DOI != "10.1/a" || out[1].DOI != "10.1/b" {
		t.Errorf("stable sort should preserve input order, got %v then %v", out[0].DOI, out[1].DOI)
	}
}

func TestCiteKey(t *testing.T) {
	tests := []struct {
		name string
		rec  record.Record
		want string
	}{
		{
			"author year title",
			record.Record{
				Title:  "A Test Article About Testing",
				Author: []record.Name{{Family: "Smith", Given: "John"}},
				Issued: &record.Issued{DateParts: [][]int{{2023}}},
			},
			"Smith2023Test",
		},
		{
			"no author",
			record.Record{Title: "Results", Issued: &record.Issued{DateParts: [][]int{{2020}}}},
			"Unknown2020Results",
		},
		{
			"no year",
			record.Record{Title: "Results", Author: []record.Name{{Family: "Doe"}}},
			"DoeunknownResults",
		},
		{
			"all stop words",
			record.Record{Title: "Of the For", Author: []record.Name{{Family: "Doe"}}},
			"DoeunknownUntitled",
		},
		{
			"empty record",
			record.Record{},
			"UnknownunknownUntitled",
		},
		{
			"literal author first word",
			record.Record{
				Title:  "Annual Report",
				Author: []record.Name{{Literal: "World Health Organization"}},
				Issued: &record.Issued{DateParts: [][]int{{2019}}},
			},
			"World2019Annual",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CiteKey(&tt.rec); got != tt.want {
				t.Errorf("CiteKey() = %q, want %q", got, tt.want)
			}
		})
	}
}
