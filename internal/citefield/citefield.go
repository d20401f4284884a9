// Package citefield decodes citation-field JSON payloads into bibliographic
// records, validating strictly against the embedded schemas first and
// falling back to a relaxed acceptance policy when producers deviate.
package citefield

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/refsweep/refsweep/internal/record"
)

//go:embed citation_schema.json
var citationSchemaJSON string

//go:embed item_schema.json
var itemSchemaJSON string

var (
	citationSchema *gojsonschema.Schema
	itemSchema     *gojsonschema.Schema
)

func init() {
	var err error
	citationSchema, err = gojsonschema.NewSchema(gojsonschema.NewStringLoader(citationSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("citefield: compiling citation schema: %v", err))
	}
	itemSchema, err = gojsonschema.NewSchema(gojsonschema.NewStringLoader(itemSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("citefield: compiling item schema: %v", err))
	}
}

// Status tags a decode outcome. Callers decide policy; decoding never turns
// a schema deviation into a hard error on its own.
type Status int

const (
	// StatusValid means the payload and every item passed strict validation.
	StatusValid Status = iota
	// StatusPartiallyValid means records were recovered through the relaxed
	// fallback, or some items were dropped; Issues explains what happened.
	StatusPartiallyValid
	// StatusRejected means no record could be recovered at all.
	StatusRejected
)

// Result is the tagged outcome of decoding one citation payload.
type Result struct {
	Status  Status
	Records []record.Extracted
	Issues  []string
	Reason  string // set when Status is StatusRejected
}

// citationField mirrors the strict payload shape.
type citationField struct {
	CitationItems []struct {
		ItemData json.RawMessage `json:"itemData"`
	} `json:"citationItems"`
}

// Decode turns one extracted payload into bibliographic records. The strict
// path validates the citation-field shape and each item's bibliographic
// payload against the embedded schemas. On failure at either level the
// relaxed fallback accepts any item in a recognizable items array whose
// payload has a non-empty type, favoring recall over strict correctness.
func Decode(payload []byte, source record.Source, sourceFile string) Result {
	strict, issues := decodeStrict(payload)
	if issues == nil {
		recs, dropped := toExtracted(strict, payload, source, sourceFile)
		res := Result{Status: StatusValid, Records: recs}
		if len(dropped) > 0 {
			res.Status = StatusPartiallyValid
			res.Issues = dropped
		}
		return res
	}

	relaxed := decodeRelaxed(payload)
	if len(relaxed) == 0 {
		return Result{
			Status: StatusRejected,
			Issues: issues,
			Reason: "payload matches neither the citation-field schema nor the relaxed item shape",
		}
	}

	recs, dropped := toExtracted(relaxed, payload, source, sourceFile)
	if len(recs) == 0 {
		return Result{
			Status: StatusRejected,
			Issues: append(issues, dropped...),
			Reason: "no item satisfied the minimum viability requirement",
		}
	}
	return Result{
		Status:  StatusPartiallyValid,
		Records: recs,
		Issues:  append(issues, dropped...),
	}
}

// decodeStrict returns the decoded records, or nil records plus the
// validation issues that triggered the fallback.
func decodeStrict(payload []byte) ([]record.Record, []string) {
	res, err := citationSchema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return nil, []string{fmt.Sprintf("citation-field validation: %v", err)}
	}
	if !res.Valid() {
		return nil, validationIssues("citation-field", res)
	}

	var field citationField
	if err := json.Unmarshal(payload, &field); err != nil {
		return nil, []string{fmt.Sprintf("decoding citation field: %v", err)}
	}

	var records []record.Record
	for i, item := range field.CitationItems {
		res, err := itemSchema.Validate(gojsonschema.NewBytesLoader(item.ItemData))
		if err != nil || !res.Valid() {
			if err != nil {
				return nil, []string{fmt.Sprintf("item %d validation: %v", i, err)}
			}
			return nil, validationIssues(fmt.Sprintf("item %d", i), res)
		}

		var rec record.Record
		if err := json.Unmarshal(item.ItemData, &rec); err != nil {
			return nil, []string{fmt.Sprintf("decoding item %d: %v", i, err)}
		}
		records = append(records, rec)
	}

	return records, nil
}

// decodeRelaxed scans the raw payload for a recognizable items array and
// accepts every item whose bibliographic payload has a non-empty type.
// Reference managers occasionally emit drafts of the schema; this boundary
// is deliberately loose.
func decodeRelaxed(payload []byte) []record.Record {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil
	}

	items, ok := raw["citationItems"].([]any)
	if !ok {
		items, ok = raw["items"].([]any)
	}
	if !ok {
		return nil
	}

	var records []record.Record
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if inner, ok := m["itemData"].(map[string]any); ok {
			m = inner
		}
		typ, _ := m["type"].(string)
		if typ == "" {
			continue
		}
		records = append(records, coerceRecord(m))
	}
	return records
}

// coerceRecord builds a record from an untyped item map, tolerating shapes
// the typed decoder would reject. Well-formed fragments decode normally;
// malformed ones degrade to the fields that can be coerced.
func coerceRecord(m map[string]any) record.Record {
	if data, err := json.Marshal(m); err == nil {
		var rec record.Record
		if err := json.Unmarshal(data, &rec); err == nil {
			return rec
		}
	}

	rec := record.Record{Type: stringValue(m["type"])}
	rec.ID = record.FlexibleString(stringValue(m["id"]))
	rec.Title = stringValue(m["title"])
	rec.ContainerTitle = stringValue(m["container-title"])
	rec.Publisher = stringValue(m["publisher"])
	rec.PublisherPlace = stringValue(m["publisher-place"])
	rec.DOI = stringValue(m["DOI"])
	rec.ISBN = stringValue(m["ISBN"])
	rec.ISSN = stringValue(m["ISSN"])
	rec.PMID = stringValue(m["PMID"])
	rec.PMCID = stringValue(m["PMCID"])
	rec.URL = stringValue(m["URL"])
	rec.Volume = record.FlexibleString(stringValue(m["volume"]))
	rec.Issue = record.FlexibleString(stringValue(m["issue"]))
	rec.Page = record.FlexibleString(stringValue(m["page"]))
	rec.Author = coerceNames(m["author"])
	rec.Editor = coerceNames(m["editor"])
	return rec
}

func coerceNames(v any) []record.Name {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var names []record.Name
	for _, entry := range list {
		switch t := entry.(type) {
		case map[string]any:
			n := record.Name{
				Family:  stringValue(t["family"]),
				Given:   stringValue(t["given"]),
				Literal: stringValue(t["literal"]),
			}
			if !n.IsEmpty() {
				names = append(names, n)
			}
		case string:
			if s := strings.TrimSpace(t); s != "" {
				names = append(names, record.Name{Literal: s})
			}
		}
	}
	return names
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// toExtracted wraps viable records with provenance and reports the dropped
// ones. A record with no title and no identifiers is never kept.
func toExtracted(records []record.Record, payload []byte, source record.Source, sourceFile string) ([]record.Extracted, []string) {
	var (
		out     []record.Extracted
		dropped []string
	)
	for i := range records {
		if !records[i].Viable() {
			dropped = append(dropped, fmt.Sprintf("item %d dropped: no title and no identifiers", i))
			continue
		}
		out = append(out, record.Extracted{
			Record:     records[i],
			Source:     source,
			SourceFile: sourceFile,
			Raw:        payload,
		})
	}
	return out, dropped
}

func validationIssues(context string, res *gojsonschema.Result) []string {
	issues := make([]string, 0, len(res.Errors()))
	for _, desc := range res.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		issues = append(issues, fmt.Sprintf("%s: %s: %s", context, field, desc.Description()))
	}
	return issues
}
