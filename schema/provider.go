package schema

import "fmt"

// RelationDesc describes a single relation by target name, before
// resolution.
type RelationDesc struct {
	Name   string
	Target string
}

// CollectionDesc describes a collection relation by target name,
// before resolution.
type CollectionDesc struct {
	Name   string
	Target string
	Kind   ContainerKind
}

// PropertyDesc describes a computed property by declared type or by
// item target name, before resolution.
type PropertyDesc struct {
	Name     string
	Type     FieldType
	Sequence string
}

// Provider is the seam isolating schema introspection of a concrete
// persistence mapping. Implementations extract key fields, plain
// fields, relations and computed properties for a named entity type.
// The core consumes a Provider once per type and treats the result as
// immutable.
type Provider interface {
	// KeyFields returns the key fields in key order.
	KeyFields(entity string) ([]Field, error)

	// Fields returns the plain (non-key) fields.
	Fields(entity string) ([]Field, error)

	// Relations returns the single and collection relations.
	Relations(entity string) ([]RelationDesc, []CollectionDesc, error)

	// ComputedProperties returns the computed properties, if any.
	ComputedProperties(entity string) ([]PropertyDesc, error)
}

// FromProvider extracts the named entity types from p and compiles
// them into a Schema. Every relation target must be among the named
// entities.
func FromProvider(p Provider, entities ...string) (*Schema, error) {
	builders := make([]*Builder, 0, len(entities))
	for _, name := range entities {
		b := New(name)
		keys, err := p.KeyFields(name)
		if err != nil {
			return nil, fmt.Errorf("schema: provider key fields for %q: %w", name, err)
		}
		for _, f := range keys {
			b.Key(f.Name, f.Type)
		}
		fields, err := p.Fields(name)
		if err != nil {
			return nil, fmt.Errorf("schema: provider fields for %q: %w", name, err)
		}
		for _, f := range fields {
			b.Field(f.Name, f.Type)
		}
		singles, collections, err := p.Relations(name)
		if err != nil {
			return nil, fmt.Errorf("schema: provider relations for %q: %w", name, err)
		}
		for _, r := range singles {
			b.One(r.Name, r.Target)
		}
		for _, c := range collections {
			switch c.Kind {
			case KindSet:
				b.ManySet(c.Name, c.Target)
			default:
				b.Many(c.Name, c.Target)
			}
		}
		props, err := p.ComputedProperties(name)
		if err != nil {
			return nil, fmt.Errorf("schema: provider computed properties for %q: %w", name, err)
		}
		for _, d := range props {
			if d.Sequence != "" {
				b.ComputedSequence(d.Name, d.Sequence)
			} else {
				b.Computed(d.Name, d.Type)
			}
		}
		builders = append(builders, b)
	}
	return Compile(builders...)
}
