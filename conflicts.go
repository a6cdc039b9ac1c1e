package searchsync

import "sort"

// equivalentValues lists pairs of mapping attribute values that are
// semantically identical even though they compare unequal: the engine
// reports "no" where we omit the attribute, and "yes" where a freshly
// built schema says true.
var equivalentValues = [][2]string{
	{"no", ""},
	{"yes", "true"},
}

// conflictProps are the mapping attributes whose change breaks an
// existing index. New analyzers silently reanalyze nothing, changed
// types corrupt sorting and range queries, and the engine validates
// none of it, which is why conflicts are a hard stop at setup.
var conflictProps = [...]string{"analyzer", "store", "type"}

// FindConflicts compares a deployed schema against a freshly computed
// one and returns the names of fields whose mapping changed
// incompatibly, sorted for stable output.
//
// Fields present in only one schema are additions or removals, not
// conflicts; they are handled by redeploying, not by failing. An
// absent schema on either side yields nothing to compare against.
// The result is recomputed from the two snapshots on every call.
func FindConflicts(old, new Schema) []string {
	if len(old) == 0 || len(new) == 0 {
		return nil
	}

	var conflicts []string
	for name, oldMapping := range old {
		newMapping, shared := new[name]
		if !shared {
			continue
		}
		if mappingConflicts(oldMapping, newMapping) {
			conflicts = append(conflicts, name)
		}
	}

	sort.Strings(conflicts)
	return conflicts
}

func mappingConflicts(old, new FieldMapping) bool {
	for _, prop := range conflictProps {
		oldValue := mappingProp(old, prop)
		newValue := mappingProp(new, prop)
		if oldValue == newValue {
			continue
		}
		if valuesEquivalent(oldValue, newValue) {
			continue
		}
		return true
	}
	return false
}

func mappingProp(m FieldMapping, prop string) string {
	switch prop {
	case "analyzer":
		return m.Analyzer
	case "store":
		return m.Store
	case "type":
		return m.Type
	}
	return ""
}

func valuesEquivalent(a, b string) bool {
	for _, pair := range equivalentValues {
		if (a == pair[0] && b == pair[1]) || (a == pair[1] && b == pair[0]) {
			return true
		}
	}
	return false
}
