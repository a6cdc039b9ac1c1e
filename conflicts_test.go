package searchsync

import (
	"reflect"
	"testing"
)

func TestFindConflictsEmptySchemas(t *testing.T) {
	schema := Schema{"body": {Type: "string"}}

	if got := FindConflicts(nil, schema); got != nil {
		t.Errorf("nil deployed schema: expected nothing, got %v", got)
	}
	if got := FindConflicts(schema, nil); got != nil {
		t.Errorf("nil computed schema: expected nothing, got %v", got)
	}
	if got := FindConflicts(Schema{}, schema); got != nil {
		t.Errorf("empty deployed schema: expected nothing, got %v", got)
	}
}

func TestFindConflictsIgnoresUnsharedFields(t *testing.T) {
	old := Schema{"removed": {Type: "string"}}
	new := Schema{"added": {Type: "long"}}

	if got := FindConflicts(old, new); got != nil {
		t.Errorf("additions and removals are not conflicts, got %v", got)
	}
}

func TestFindConflictsReportsEachFieldOnce(t *testing.T) {
	old := Schema{
		"age":  {Type: "string", Store: "yes", Analyzer: "snowball"},
		"body": {Type: "string"},
	}
	new := Schema{
		// Type, store and analyzer all differ, still one entry.
		"age":  {Type: "long"},
		"body": {Type: "string"},
	}

	got := FindConflicts(old, new)
	if !reflect.DeepEqual(got, []string{"age"}) {
		t.Errorf("expected [age], got %v", got)
	}
}

func TestFindConflictsEquivalentValues(t *testing.T) {
	// The engine reports store "no" where a fresh schema omits it, and
	// "yes" where the schema says true. Neither is a real change.
	old := Schema{
		"title": {Type: "string", Store: "no"},
		"flag":  {Type: "boolean", Store: "yes"},
	}
	new := Schema{
		"title": {Type: "string"},
		"flag":  {Type: "boolean", Store: "true"},
	}

	if got := FindConflicts(old, new); got != nil {
		t.Errorf("equivalent values reported as conflicts: %v", got)
	}
}

func TestFindConflictsSortedOutput(t *testing.T) {
	old := Schema{
		"zulu":  {Type: "string"},
		"alpha": {Type: "string"},
	}
	new := Schema{
		"zulu":  {Type: "long"},
		"alpha": {Type: "long"},
	}

	got := FindConflicts(old, new)
	if !reflect.DeepEqual(got, []string{"alpha", "zulu"}) {
		t.Errorf("expected sorted [alpha zulu], got %v", got)
	}
}

func TestFindConflictsAnalyzerChange(t *testing.T) {
	old := Schema{"body": {Type: "string", Analyzer: "snowball"}}
	new := Schema{"body": {Type: "string", Analyzer: "ngram_analyzer"}}

	got := FindConflicts(old, new)
	if !reflect.DeepEqual(got, []string{"body"}) {
		t.Errorf("analyzer change not detected: %v", got)
	}
}
