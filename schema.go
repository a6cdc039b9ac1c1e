package searchsync

import (
	"context"
	"fmt"
)

// FieldType is the semantic type of an indexable field.
type FieldType int

const (
	// TextType is analyzed full-text content.
	TextType FieldType = iota
	// ExactType is a string matched exactly, never analyzed.
	ExactType
	// BooleanType is a true/false flag. Booleans are never analyzed.
	BooleanType
	// IntegerType is a whole number.
	IntegerType
	// FloatType is a floating point number.
	FloatType
	// DateType is a point in time, encoded as RFC 3339.
	DateType
	// GeoPointType is a latitude/longitude pair encoded as "lat,lon".
	GeoPointType
	// AutocompleteType is search-as-you-type text. It carries separate
	// index-time and search-time analyzers so that edge n-gram
	// expansion is applied to stored content but never to the user's
	// search term.
	AutocompleteType
	// MultiValueType is a list of exact strings, typically identifier
	// references to related entities.
	MultiValueType
)

// Analyzer names recognized by the schema builder.
const (
	DefaultAnalyzer   = "snowball"
	NgramAnalyzer     = "ngram_analyzer"
	EdgeNgramAnalyzer = "edgengram_analyzer"
	searchAnalyzer    = "default"
)

// Index modes for string fields.
const (
	IndexAnalyzed    = "analyzed"
	IndexNotAnalyzed = "not_analyzed"
)

// FieldDefinition describes one indexable field of an entity type.
type FieldDefinition struct {
	// Name of the field in the index.
	Name string

	// Type controls the engine-side mapping.
	Type FieldType

	// Document marks the designated full-text field. Exactly one
	// definition per index must set this.
	Document bool

	// Stored makes the raw value retrievable from search results.
	Stored bool

	// Analyzer overrides the analyzer for text fields. Ignored for
	// non-analyzable types.
	Analyzer string

	// Prepare extracts the field value from an entity. The returned
	// value is passed through EncodeValue.
	Prepare func(ctx context.Context, e Entity) (interface{}, error)
}

// FieldMapping is the engine-side descriptor of a single field. All
// values are strings so that mappings fetched back from the engine
// (which reports booleans for some attributes) compare cleanly.
type FieldMapping struct {
	Type           string `json:"type"`
	Store          string `json:"store,omitempty"`
	Index          string `json:"index,omitempty"`
	Analyzer       string `json:"analyzer,omitempty"`
	IndexAnalyzer  string `json:"index_analyzer,omitempty"`
	SearchAnalyzer string `json:"search_analyzer,omitempty"`
}

// Schema maps field names to their mappings. It is recomputed on every
// setup call and never persisted locally; the search engine is the
// source of truth for the deployed schema.
type Schema map[string]FieldMapping

// BuildSchema derives the index schema from an ordered collection of
// field definitions and returns the name of the designated document
// field alongside it.
//
// Policies applied here rather than left to the engine:
//   - boolean fields never carry an analyzer, whatever the hints say
//   - n-gram style analyzers are split into an index-time analyzer and
//     a plain search-time analyzer
//   - zero or multiple document fields is a configuration error,
//     surfaced at setup time instead of silently resolved
func BuildSchema(defs []FieldDefinition) (string, Schema, error) {
	schema := make(Schema, len(defs)+2)
	contentField := ""

	for _, def := range defs {
		if def.Name == "" {
			return "", nil, WithContext(ErrInvalidConfig, map[string]interface{}{
				"reason": "field definition without a name",
			})
		}
		if _, dup := schema[def.Name]; dup {
			return "", nil, WithContext(ErrInvalidConfig, map[string]interface{}{
				"field":  def.Name,
				"reason": "duplicate field definition",
			})
		}

		if def.Document {
			if contentField != "" {
				return "", nil, WithContext(ErrMultipleDocumentFields, map[string]interface{}{
					"first":  contentField,
					"second": def.Name,
				})
			}
			contentField = def.Name
		}

		schema[def.Name] = buildFieldMapping(def)
	}

	if contentField == "" {
		return "", nil, ErrNoDocumentField
	}

	schema[IDField] = FieldMapping{Type: "string", Index: IndexNotAnalyzed, Store: "yes"}
	schema[TypeField] = FieldMapping{Type: "string", Index: IndexNotAnalyzed, Store: "yes"}

	return contentField, schema, nil
}

func buildFieldMapping(def FieldDefinition) FieldMapping {
	m := FieldMapping{}
	if def.Stored || def.Document {
		m.Store = "yes"
	}

	switch def.Type {
	case TextType:
		m.Type = "string"
		m.Index = IndexAnalyzed
		m.Analyzer = def.Analyzer
		if m.Analyzer == "" {
			m.Analyzer = DefaultAnalyzer
		}
	case ExactType, MultiValueType:
		m.Type = "string"
		m.Index = IndexNotAnalyzed
	case BooleanType:
		// Booleans are not analyzable; drop every analysis hint.
		m.Type = "boolean"
	case IntegerType:
		m.Type = "long"
	case FloatType:
		m.Type = "double"
	case DateType:
		m.Type = "date"
	case GeoPointType:
		m.Type = "geo_point"
	case AutocompleteType:
		m.Type = "string"
		analyzer := def.Analyzer
		if analyzer == "" {
			analyzer = EdgeNgramAnalyzer
		}
		m.IndexAnalyzer = analyzer
		m.SearchAnalyzer = searchAnalyzer
	default:
		m.Type = "string"
		m.Index = IndexNotAnalyzed
	}

	// Text mappings that ended up with an n-gram analyzer get the same
	// index/search split as autocomplete fields: index-time expansion
	// must not be applied to the search term.
	if m.Analyzer == NgramAnalyzer || m.Analyzer == EdgeNgramAnalyzer {
		m.IndexAnalyzer = m.Analyzer
		m.SearchAnalyzer = searchAnalyzer
		m.Analyzer = ""
	}

	return m
}

// fieldTypeNames is used for diagnostics only.
var fieldTypeNames = map[FieldType]string{
	TextType:         "text",
	ExactType:        "exact",
	BooleanType:      "boolean",
	IntegerType:      "integer",
	FloatType:        "float",
	DateType:         "date",
	GeoPointType:     "geo_point",
	AutocompleteType: "autocomplete",
	MultiValueType:   "multi_value",
}

func (t FieldType) String() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("FieldType(%d)", int(t))
}
