package searchsync

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRegistryRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry("search")
	if err := r.Register(newPostIndex()); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := r.Register(newPostIndex()); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig on duplicate, got %v", err)
	}
}

func TestRegistryIndexName(t *testing.T) {
	r := NewRegistry("search")
	if err := r.Register(newPostIndex()); err != nil {
		t.Fatal(err)
	}

	name, err := r.IndexName(postType)
	if err != nil {
		t.Fatal(err)
	}
	if name != "search-blog-post" {
		t.Errorf("expected search-blog-post, got %s", name)
	}

	if _, err := r.IndexName(authorType); !errors.Is(err, ErrUnknownEntityType) {
		t.Errorf("expected ErrUnknownEntityType, got %v", err)
	}
}

func TestRegistryIndexNameWithVersion(t *testing.T) {
	r := NewRegistry("search")
	idx := newPostIndex()
	idx.version = "v2"
	if err := r.Register(idx); err != nil {
		t.Fatal(err)
	}

	name, err := r.IndexName(postType)
	if err != nil {
		t.Fatal(err)
	}
	if name != "search-blog-post-v2" {
		t.Errorf("expected search-blog-post-v2, got %s", name)
	}
}

func TestRegistryIndexGroups(t *testing.T) {
	r := NewRegistry("search")
	if err := r.Register(newPostIndex()); err != nil {
		t.Fatal(err)
	}

	groups := r.IndexGroups()
	if len(groups) != 1 {
		t.Fatalf("expected one group, got %d", len(groups))
	}
	group, ok := groups["search-blog-post"]
	if !ok || len(group) != 1 {
		t.Fatalf("unexpected groups: %v", groups)
	}
}

func TestRegistrySharedIndexGroup(t *testing.T) {
	r := NewRegistry("search")
	posts := newPostIndex()
	posts.group = "blog"
	authors := &testIndex{entityType: authorType, group: "blog"}
	if err := r.Register(posts); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(authors); err != nil {
		t.Fatal(err)
	}

	for _, typ := range []EntityType{postType, authorType} {
		name, err := r.IndexName(typ)
		if err != nil {
			t.Fatal(err)
		}
		if name != "search-blog" {
			t.Errorf("%s: expected search-blog, got %s", typ, name)
		}
	}

	groups := r.IndexGroups()
	if len(groups) != 1 {
		t.Fatalf("expected one shared group, got %v", groups)
	}
	group, ok := groups["search-blog"]
	if !ok || len(group) != 2 {
		t.Fatalf("expected both types in search-blog, got %v", groups)
	}

	contentField, schema, err := r.GroupSchema(group)
	if err != nil {
		t.Fatalf("merging the group schema failed: %v", err)
	}
	if contentField != "content" {
		t.Errorf("expected document field content, got %s", contentField)
	}
	if _, ok := schema["published"]; !ok {
		t.Error("merged schema missing the published field")
	}
}

func TestRegistryBuildDocument(t *testing.T) {
	r := NewRegistry("search")
	if err := r.Register(newPostIndex()); err != nil {
		t.Fatal(err)
	}

	doc, err := r.BuildDocument(context.Background(), newPost("7", "hello world"))
	if err != nil {
		t.Fatalf("BuildDocument failed: %v", err)
	}

	if doc.ID() != "blog.post.7" {
		t.Errorf("expected id blog.post.7, got %s", doc.ID())
	}
	if doc[TypeField] != "blog.post" {
		t.Errorf("expected content_type blog.post, got %v", doc[TypeField])
	}
	if doc["content"] != "hello world" {
		t.Errorf("expected prepared content, got %v", doc["content"])
	}
	if doc["published"] != true {
		t.Errorf("expected published true, got %v", doc["published"])
	}
}

func TestRegistryBuildDocumentWrapsPrepareErrors(t *testing.T) {
	r := NewRegistry("search")
	if err := r.Register(newPostIndex()); err != nil {
		t.Fatal(err)
	}

	_, err := r.BuildDocument(context.Background(), newPost("1", "boom"))
	if err == nil {
		t.Fatal("expected a prepare error")
	}
	if !strings.Contains(err.Error(), `"content"`) {
		t.Errorf("error should name the failing field: %v", err)
	}
}

func TestRegistryBuildDocumentValidatesIdentifier(t *testing.T) {
	r := NewRegistry("search")
	if err := r.Register(newPostIndex()); err != nil {
		t.Fatal(err)
	}

	bad := &testEntity{ns: "blog", name: "post", pk: "4.2", content: "x", indexable: true}
	if _, err := r.BuildDocument(context.Background(), bad); !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("expected ErrInvalidIdentifier, got %v", err)
	}
}

func TestGroupSchemaRejectsMismatchedMappings(t *testing.T) {
	r := NewRegistry("search")

	a := &conflictingIndex{entityType: postType, fieldType: TextType}
	b := &conflictingIndex{entityType: authorType, fieldType: IntegerType}

	_, _, err := r.GroupSchema([]SearchIndex{a, b})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

// conflictingIndex maps the shared "extra" field with a configurable
// type so group merging can be driven into a mismatch.
type conflictingIndex struct {
	BaseIndex
	entityType EntityType
	fieldType  FieldType
}

func (idx *conflictingIndex) EntityType() EntityType { return idx.entityType }

func (idx *conflictingIndex) FieldDefinitions() []FieldDefinition {
	return []FieldDefinition{
		{Name: "content", Type: TextType, Document: true},
		{Name: "extra", Type: idx.fieldType},
	}
}
