package searchsync

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// RelatedSource declares that changes to another entity type affect
// documents of the declaring index. Resolve maps the changed related
// entity to the indexed entities whose documents must be refreshed;
// returning nil or an empty slice means nothing to refresh.
type RelatedSource struct {
	Type    EntityType
	Resolve func(ctx context.Context, related Entity) ([]Entity, error)
}

// SearchIndex is the per-entity-type indexing policy. Host
// applications implement one per indexed type, typically by embedding
// BaseIndex and overriding what they need.
type SearchIndex interface {
	// EntityType names the indexed type.
	EntityType() EntityType

	// FieldDefinitions returns the ordered field definitions used to
	// build both documents and the index schema.
	FieldDefinitions() []FieldDefinition

	// ShouldIndex is the inclusion predicate. It is re-evaluated on
	// every update, never cached, so a single change event can flip
	// between upsert and delete depending on entity state.
	ShouldIndex(e Entity) bool

	// RelatedSources declares fan-out rules (see RelatedSource).
	RelatedSources() []RelatedSource

	// IndexGroup optionally names the index group this type's documents
	// live in. Types returning the same non-empty group share one
	// remote index; their field definitions are merged by GroupSchema
	// and must agree where they overlap. Empty means the type gets its
	// own index derived from its namespace and name.
	IndexGroup() string

	// IndexVersion is an optional version segment appended to the
	// index name, allowing side-by-side schema generations. Empty
	// means unversioned.
	IndexVersion() string
}

// BaseIndex provides the default policy: index everything, no
// relations, unversioned. Embed it and override selectively.
type BaseIndex struct{}

func (BaseIndex) ShouldIndex(Entity) bool          { return true }
func (BaseIndex) RelatedSources() []RelatedSource  { return nil }
func (BaseIndex) IndexGroup() string               { return "" }
func (BaseIndex) IndexVersion() string             { return "" }

// Registry maps entity types to their search indexes and index names.
// It is the single source of index-group topology: which remote index
// holds which types' documents.
type Registry struct {
	baseName string

	mu      sync.RWMutex
	indexes map[EntityType]SearchIndex
}

// NewRegistry creates a registry. baseName prefixes every index name
// (e.g. "search" yields "search-blog-post").
func NewRegistry(baseName string) *Registry {
	return &Registry{
		baseName: baseName,
		indexes:  make(map[EntityType]SearchIndex),
	}
}

// Register adds an index policy for its entity type. Registering the
// same type twice is a configuration error.
func (r *Registry) Register(idx SearchIndex) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := idx.EntityType()
	if _, exists := r.indexes[t]; exists {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"entity_type": t.TypeKey(),
			"reason":      "entity type registered twice",
		})
	}
	r.indexes[t] = idx
	return nil
}

// Index returns the policy for an entity type.
func (r *Registry) Index(t EntityType) (SearchIndex, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.indexes[t]
	if !ok {
		return nil, WithContext(ErrUnknownEntityType, map[string]interface{}{
			"entity_type": t.TypeKey(),
		})
	}
	return idx, nil
}

// IndexFor resolves the policy for an identifier.
func (r *Registry) IndexFor(id Identifier) (SearchIndex, error) {
	return r.Index(id.Type())
}

// IndexName computes the remote index name for an entity type: base,
// then the index group (or namespace and name when the type has no
// group), then the optional version, joined with "-".
func (r *Registry) IndexName(t EntityType) (string, error) {
	idx, err := r.Index(t)
	if err != nil {
		return "", err
	}
	return r.indexName(idx), nil
}

func (r *Registry) indexName(idx SearchIndex) string {
	name := r.baseName + "-"
	if group := idx.IndexGroup(); group != "" {
		name += group
	} else {
		t := idx.EntityType()
		name += t.Namespace + "-" + t.Name
	}
	if version := idx.IndexVersion(); version != "" {
		name += "-" + version
	}
	return name
}

// IndexGroups returns the index-group topology: remote index name to
// the policies whose documents it holds. Computed from registrations
// alone, without any remote call, so operations like Clear can use it
// before Setup has ever run.
func (r *Registry) IndexGroups() map[string][]SearchIndex {
	r.mu.RLock()
	defer r.mu.RUnlock()

	groups := make(map[string][]SearchIndex)
	for _, idx := range r.indexes {
		name := r.indexName(idx)
		groups[name] = append(groups[name], idx)
	}
	for _, group := range groups {
		sort.Slice(group, func(i, j int) bool {
			return group[i].EntityType().TypeKey() < group[j].EntityType().TypeKey()
		})
	}
	return groups
}

// Types returns all registered entity types, sorted for stable output.
func (r *Registry) Types() []EntityType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]EntityType, 0, len(r.indexes))
	for t := range r.indexes {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].TypeKey() < types[j].TypeKey() })
	return types
}

// GroupSchema builds the combined schema for one index group, merging
// the field definitions of every type in the group. A field defined by
// two types in the same group must have an identical mapping.
func (r *Registry) GroupSchema(group []SearchIndex) (string, Schema, error) {
	merged := Schema{}
	contentField := ""

	for _, idx := range group {
		field, schema, err := BuildSchema(idx.FieldDefinitions())
		if err != nil {
			return "", nil, fmt.Errorf("building schema for %s: %w", idx.EntityType(), err)
		}
		if contentField == "" {
			contentField = field
		} else if contentField != field {
			return "", nil, WithContext(ErrInvalidConfig, map[string]interface{}{
				"index_group": idx.EntityType().TypeKey(),
				"reason":      "document field name differs between types in one index group",
			})
		}
		for name, mapping := range schema {
			if existing, ok := merged[name]; ok && existing != mapping {
				return "", nil, WithContext(ErrInvalidConfig, map[string]interface{}{
					"field":  name,
					"reason": "field mapped differently by two types in one index group",
				})
			}
			merged[name] = mapping
		}
	}

	return contentField, merged, nil
}

// BuildDocument prepares the backend-ready document for an entity:
// identity field, type discriminator, then every defined field's
// prepared and encoded value. The document is built fresh each call.
func (r *Registry) BuildDocument(ctx context.Context, e Entity) (Document, error) {
	id := e.Identifier()
	if err := id.Validate(); err != nil {
		return nil, err
	}

	idx, err := r.Index(id.Type())
	if err != nil {
		return nil, err
	}

	doc := Document{
		IDField:   id.String(),
		TypeField: id.Type().TypeKey(),
	}

	for _, def := range idx.FieldDefinitions() {
		if def.Prepare == nil {
			continue
		}
		raw, err := def.Prepare(ctx, e)
		if err != nil {
			return nil, fmt.Errorf("preparing field %q: %w", def.Name, err)
		}
		encoded, err := EncodeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("encoding field %q: %w", def.Name, err)
		}
		doc[def.Name] = encoded
	}

	return doc, nil
}
