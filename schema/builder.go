package schema

import (
	"fmt"
	"sort"
)

// Builder declares one entity type. Relation targets are named; they
// are resolved against the whole set when Compile assembles the
// Schema, so declaration order does not matter and mutually-referring
// types are fine.
type Builder struct {
	name        string
	keys        []Field
	fields      []Field
	singles     []relationDecl
	collections []collectionDecl
	computed    []propertyDecl
	errs        []error
}

type relationDecl struct {
	name   string
	target string
}

type collectionDecl struct {
	name   string
	target string
	kind   ContainerKind
}

type propertyDecl struct {
	name     string
	typ      FieldType
	sequence string
}

// New starts the declaration of an entity type.
func New(name string) *Builder {
	b := &Builder{name: name}
	if name == "" {
		b.errs = append(b.errs, fmt.Errorf("entity type name cannot be empty"))
	}
	return b
}

func (b *Builder) declared(name string) bool {
	for _, f := range b.keys {
		if f.Name == name {
			return true
		}
	}
	for _, f := range b.fields {
		if f.Name == name {
			return true
		}
	}
	for _, r := range b.singles {
		if r.name == name {
			return true
		}
	}
	for _, r := range b.collections {
		if r.name == name {
			return true
		}
	}
	for _, p := range b.computed {
		if p.name == name {
			return true
		}
	}
	return false
}

func (b *Builder) check(name, what string, typ FieldType) bool {
	switch {
	case name == "":
		b.errs = append(b.errs, fmt.Errorf("%s name cannot be empty on type %q", what, b.name))
		return false
	case b.declared(name):
		b.errs = append(b.errs, fmt.Errorf("attribute %q redeclared on type %q", name, b.name))
		return false
	case typ != TypeInvalid && !typ.Valid():
		b.errs = append(b.errs, fmt.Errorf("invalid base type for %s %q on type %q", what, name, b.name))
		return false
	}
	return true
}

// Key declares a key field. Keys keep their declaration order.
func (b *Builder) Key(name string, typ FieldType) *Builder {
	if b.check(name, "key field", typ) {
		b.keys = append(b.keys, Field{Name: name, Type: typ, Key: true})
	}
	return b
}

// Field declares a plain (non-key) field.
func (b *Builder) Field(name string, typ FieldType) *Builder {
	if b.check(name, "field", typ) {
		b.fields = append(b.fields, Field{Name: name, Type: typ})
	}
	return b
}

// One declares a single relation to the named target type.
func (b *Builder) One(name, target string) *Builder {
	if b.check(name, "relation", TypeInvalid) {
		b.singles = append(b.singles, relationDecl{name: name, target: target})
	}
	return b
}

// Many declares an ordered-sequence collection relation.
func (b *Builder) Many(name, target string) *Builder {
	return b.collection(name, target, KindList)
}

// ManySet declares a set-shaped collection relation.
func (b *Builder) ManySet(name, target string) *Builder {
	return b.collection(name, target, KindSet)
}

func (b *Builder) collection(name, target string, kind ContainerKind) *Builder {
	if b.check(name, "relation", TypeInvalid) {
		b.collections = append(b.collections, collectionDecl{name: name, target: target, kind: kind})
	}
	return b
}

// Computed declares a scalar computed property with its return type.
func (b *Builder) Computed(name string, typ FieldType) *Builder {
	if b.check(name, "computed property", typ) {
		b.computed = append(b.computed, propertyDecl{name: name, typ: typ})
	}
	return b
}

// ComputedSequence declares a computed property yielding a sequence
// of the named target type.
func (b *Builder) ComputedSequence(name, target string) *Builder {
	if b.check(name, "computed property", TypeInvalid) {
		b.computed = append(b.computed, propertyDecl{name: name, sequence: target})
	}
	return b
}

// Compile resolves relation targets across the given builders and
// returns the immutable Schema. Unknown targets and builder errors
// fail compilation.
func Compile(builders ...*Builder) (*Schema, error) {
	s := &Schema{types: make(map[string]*EntityType, len(builders))}
	for _, b := range builders {
		if len(b.errs) > 0 {
			return nil, fmt.Errorf("schema: type %q: %w", b.name, b.errs[0])
		}
		if _, ok := s.types[b.name]; ok {
			return nil, fmt.Errorf("schema: entity type %q declared twice", b.name)
		}
		fields := make([]Field, len(b.fields))
		copy(fields, b.fields)
		sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
		t := &EntityType{
			name:        b.name,
			keys:        append([]Field(nil), b.keys...),
			fields:      fields,
			singles:     make(map[string]Relation, len(b.singles)),
			collections: make(map[string]CollectionRelation, len(b.collections)),
			computed:    make(map[string]Property, len(b.computed)),
		}
		s.types[b.name] = t
		s.names = append(s.names, b.name)
	}
	sort.Strings(s.names)
	resolve := func(owner, relation, target string) (*EntityType, error) {
		t, ok := s.types[target]
		if !ok {
			return nil, fmt.Errorf("schema: relation %s.%s targets unknown type %q", owner, relation, target)
		}
		return t, nil
	}
	for _, b := range builders {
		t := s.types[b.name]
		for _, d := range b.singles {
			target, err := resolve(b.name, d.name, d.target)
			if err != nil {
				return nil, err
			}
			t.singles[d.name] = Relation{Name: d.name, Target: target}
		}
		for _, d := range b.collections {
			target, err := resolve(b.name, d.name, d.target)
			if err != nil {
				return nil, err
			}
			t.collections[d.name] = CollectionRelation{Name: d.name, Target: target, Kind: d.kind}
		}
		for _, d := range b.computed {
			p := Property{Name: d.name, Type: d.typ}
			if d.sequence != "" {
				target, err := resolve(b.name, d.name, d.sequence)
				if err != nil {
					return nil, err
				}
				p.Sequence = target
			}
			t.computed[d.name] = p
		}
	}
	return s, nil
}
