package searchsync

import (
	"fmt"
	"strings"
)

// IdentifierSeparator joins the three components of an identifier string.
const IdentifierSeparator = "."

// Identifier is the canonical name of one logical entity across the
// system of record and the search index. It is serialized as
// "namespace.name.pk" and always round-trips through ParseIdentifier.
type Identifier struct {
	Namespace string // owning application or schema, e.g. "blog"
	Name      string // entity type name, e.g. "post"
	PK        string // primary key, must not contain the separator
}

// NewIdentifier builds an identifier from its three components.
func NewIdentifier(namespace, name, pk string) Identifier {
	return Identifier{Namespace: namespace, Name: name, PK: pk}
}

// ParseIdentifier parses an identifier string of the form
// "namespace.name.pk". The string must split into exactly three
// non-empty components.
func ParseIdentifier(s string) (Identifier, error) {
	parts := strings.Split(s, IdentifierSeparator)
	if len(parts) != 3 {
		return Identifier{}, WithContext(ErrInvalidIdentifier, map[string]interface{}{
			"identifier": s,
			"reason":     "expected exactly three dot-separated components",
		})
	}
	for _, part := range parts {
		if part == "" {
			return Identifier{}, WithContext(ErrInvalidIdentifier, map[string]interface{}{
				"identifier": s,
				"reason":     "empty component",
			})
		}
	}
	return Identifier{Namespace: parts[0], Name: parts[1], PK: parts[2]}, nil
}

// String serializes the identifier. The result parses back into an
// equal Identifier value.
func (id Identifier) String() string {
	return id.Namespace + IdentifierSeparator + id.Name + IdentifierSeparator + id.PK
}

// Type returns the entity type portion of the identifier.
func (id Identifier) Type() EntityType {
	return EntityType{Namespace: id.Namespace, Name: id.Name}
}

// IsZero reports whether the identifier is empty.
func (id Identifier) IsZero() bool {
	return id == Identifier{}
}

// Validate checks that all components are present and that the primary
// key does not contain the separator, which would make the string
// ambiguous to parse.
func (id Identifier) Validate() error {
	if id.Namespace == "" || id.Name == "" || id.PK == "" {
		return WithContext(ErrInvalidIdentifier, map[string]interface{}{
			"identifier": id.String(),
			"reason":     "all three components are required",
		})
	}
	if strings.Contains(id.PK, IdentifierSeparator) {
		return WithContext(ErrInvalidIdentifier, map[string]interface{}{
			"identifier": id.String(),
			"reason":     "primary key must not contain " + IdentifierSeparator,
		})
	}
	return nil
}

// EntityType names a kind of indexable entity.
type EntityType struct {
	Namespace string
	Name      string
}

// TypeKey returns the "namespace.name" form used as the type
// discriminator value in indexed documents.
func (t EntityType) TypeKey() string {
	return t.Namespace + IdentifierSeparator + t.Name
}

func (t EntityType) String() string {
	return t.TypeKey()
}

// Entity is a source object that can be indexed. Implementations are
// provided by the host application; the only obligation is a stable
// identifier.
type Entity interface {
	Identifier() Identifier
}

// identifierOf is a convenience for log fields.
func identifierOf(e Entity) string {
	if e == nil {
		return "<nil>"
	}
	return e.Identifier().String()
}

var _ fmt.Stringer = Identifier{}
