// Package schema defines the static description of entity types the
// transcoder walks: key fields, plain fields, relations to other
// entity types and computed properties. A Schema is built once, from
// the fluent builder, a Provider or a YAML document, and is immutable
// afterwards; every transform that touches an entity type shares it
// by reference.
package schema

import (
	"fmt"
	"sort"

	"github.com/go-openapi/inflect"
)

// A FieldType is the base type of a plain field. Adapters convert
// representation-specific values through these base types.
type FieldType int

// Base types supported for plain fields.
const (
	TypeInvalid FieldType = iota
	TypeString
	TypeInt
	TypeFloat
	TypeBool
	TypeTime
	TypeBytes
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeString:  "string",
	TypeInt:     "int",
	TypeFloat:   "float",
	TypeBool:    "bool",
	TypeTime:    "time",
	TypeBytes:   "bytes",
}

// String returns the lower-case name of the type.
func (t FieldType) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
	return typeNames[t]
}

// Valid reports whether t is a declared base type.
func (t FieldType) Valid() bool {
	return t > TypeInvalid && int(t) < len(typeNames)
}

// ContainerKind is the shape of a collection relation.
type ContainerKind int

// Supported container kinds.
const (
	KindInvalid ContainerKind = iota
	// KindList is an ordered sequence.
	KindList
	// KindSet is an unordered set.
	KindSet
)

// String returns the lower-case name of the kind.
func (k ContainerKind) String() string {
	switch k {
	case KindList:
		return "list"
	case KindSet:
		return "set"
	default:
		return fmt.Sprintf("ContainerKind(%d)", int(k))
	}
}

// Field describes one plain field of an entity type.
type Field struct {
	// Name is the field name in the schema (snake_case by convention).
	Name string
	// Type is the base type of the field.
	Type FieldType
	// Key indicates the field is part of the entity key.
	Key bool
}

// Relation describes a single relation (at most one target instance).
type Relation struct {
	// Name of the relation on the owning type.
	Name string
	// Target is the entity type the relation points to.
	Target *EntityType
}

// CollectionRelation describes a collection relation.
type CollectionRelation struct {
	// Name of the relation on the owning type.
	Name string
	// Target is the entity type of the collection items.
	Target *EntityType
	// Kind is the container shape of the collection.
	Kind ContainerKind
}

// Property describes a computed property: a derived attribute with a
// declared return type, readable but not stored as a plain field.
// Either Type is set (scalar property) or Sequence is set (the
// property yields a sequence of entities).
type Property struct {
	// Name of the property on the owning type.
	Name string
	// Type is the declared base type for scalar properties.
	Type FieldType
	// Sequence is the item type for sequence-valued properties.
	Sequence *EntityType
}

// EntityType is the immutable description of one entity type. The
// zero value is not usable; entity types are produced by Compile,
// FromProvider or ParseYAML.
type EntityType struct {
	name        string
	keys        []Field
	fields      []Field
	singles     map[string]Relation
	collections map[string]CollectionRelation
	computed    map[string]Property
}

var rules = inflect.NewDefaultRuleset()

// Name returns the entity type name.
func (t *EntityType) Name() string { return t.name }

// Label returns the snake_case label of the type name.
func (t *EntityType) Label() string { return rules.Underscore(t.name) }

// KeyFields returns the key fields in declaration order. Order
// matters: composite keys are reconstructed from it.
func (t *EntityType) KeyFields() []Field {
	out := make([]Field, len(t.keys))
	copy(out, t.keys)
	return out
}

// KeyNames returns the names of the key fields in declaration order.
func (t *EntityType) KeyNames() []string {
	out := make([]string, len(t.keys))
	for i, f := range t.keys {
		out[i] = f.Name
	}
	return out
}

// Fields returns the non-key plain fields sorted by name.
func (t *EntityType) Fields() []Field {
	out := make([]Field, len(t.fields))
	copy(out, t.fields)
	return out
}

// Field looks up a plain or key field by name.
func (t *EntityType) Field(name string) (Field, bool) {
	for _, f := range t.keys {
		if f.Name == name {
			return f, true
		}
	}
	for _, f := range t.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Single looks up a single relation by name.
func (t *EntityType) Single(name string) (Relation, bool) {
	r, ok := t.singles[name]
	return r, ok
}

// Singles returns the single relations sorted by name.
func (t *EntityType) Singles() []Relation {
	out := make([]Relation, 0, len(t.singles))
	for _, r := range t.singles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Collection looks up a collection relation by name.
func (t *EntityType) Collection(name string) (CollectionRelation, bool) {
	r, ok := t.collections[name]
	return r, ok
}

// Collections returns the collection relations sorted by name.
func (t *EntityType) Collections() []CollectionRelation {
	out := make([]CollectionRelation, 0, len(t.collections))
	for _, r := range t.collections {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Computed looks up a computed property by name.
func (t *EntityType) Computed(name string) (Property, bool) {
	p, ok := t.computed[name]
	return p, ok
}

// ComputedProperties returns the computed properties sorted by name.
func (t *EntityType) ComputedProperties() []Property {
	out := make([]Property, 0, len(t.computed))
	for _, p := range t.computed {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HasAttribute reports whether name is a declared field, relation or
// computed property of the type.
func (t *EntityType) HasAttribute(name string) bool {
	if _, ok := t.Field(name); ok {
		return true
	}
	if _, ok := t.singles[name]; ok {
		return true
	}
	if _, ok := t.collections[name]; ok {
		return true
	}
	_, ok := t.computed[name]
	return ok
}

// AttributeNames returns every declared attribute name, sorted. Used
// to enrich configuration error messages.
func (t *EntityType) AttributeNames() []string {
	var out []string
	for _, f := range t.keys {
		out = append(out, f.Name)
	}
	for _, f := range t.fields {
		out = append(out, f.Name)
	}
	for name := range t.singles {
		out = append(out, name)
	}
	for name := range t.collections {
		out = append(out, name)
	}
	for name := range t.computed {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (t *EntityType) String() string {
	return fmt.Sprintf("EntityType(%s)", t.name)
}

// Schema is an immutable set of entity types that reference each
// other by relation.
type Schema struct {
	types map[string]*EntityType
	names []string
}

// Type looks up an entity type by name.
func (s *Schema) Type(name string) (*EntityType, bool) {
	t, ok := s.types[name]
	return t, ok
}

// Types returns all entity types sorted by name.
func (s *Schema) Types() []*EntityType {
	out := make([]*EntityType, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.types[name])
	}
	return out
}

// Names returns the entity type names, sorted.
func (s *Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}
