package montgomery

import (
	"fmt"

	"github.com/wiz21b/montgomery/schema"
)

// A Transform copies one entity type between a source and a
// destination representation, recursing into related instances through
// the child transforms its plan delegates to. Transforms are built by
// a Walker (or a Builder over a whole plan set) and are safe for
// concurrent use once built; per-invocation state lives in the Call.
type Transform struct {
	entity *schema.EntityType
	source Adapter
	dest   Adapter
	series string

	// cacheTag distinguishes this transform's cache entries from
	// entries of other (type, source, dest) triples sharing a Call.
	cacheTag string

	// params is the transitive closure of the parameter names required
	// by the source and destination adapters of this transform and of
	// every transform it delegates to.
	params []string

	keyFields   []schema.Field
	plainFields []schema.Field
	singles     []singleStep
	collections []collectionStep
	copiedProps []schema.Property
	seqProps    []propertyStep

	compiled bool
}

type singleStep struct {
	rel   schema.Relation
	child *Transform
}

type collectionStep struct {
	rel   schema.CollectionRelation
	child *Transform
	merge bool
}

type propertyStep struct {
	prop  schema.Property
	child *Transform
}

// Entity returns the entity type the transform copies.
func (t *Transform) Entity() *schema.EntityType { return t.entity }

// Source returns the source-side adapter.
func (t *Transform) Source() Adapter { return t.source }

// Dest returns the destination-side adapter.
func (t *Transform) Dest() Adapter { return t.dest }

// Series returns the series name, empty for the default series.
func (t *Transform) Series() string { return t.series }

// Name returns a diagnostic name such as "Order:object->record".
func (t *Transform) Name() string {
	if t.series != "" {
		return fmt.Sprintf("%s:%s->%s#%s", t.entity.Name(), t.source.Rep(), t.dest.Rep(), t.series)
	}
	return fmt.Sprintf("%s:%s->%s", t.entity.Name(), t.source.Rep(), t.dest.Rep())
}

// RequiredParams returns the names of the Call parameters the
// transform and everything it delegates to will read.
func (t *Transform) RequiredParams() []string {
	out := make([]string, len(t.params))
	copy(out, t.params)
	return out
}

// Invoke copies source into the destination representation and returns
// the produced instance. destination may carry an existing instance to
// update in place; when nil a fresh instance is created. A nil source
// yields a nil result. Identity is preserved within one Call: invoking
// twice on the same source returns the same destination instance.
func (t *Transform) Invoke(call *Call, source, destination any) (any, error) {
	if !t.compiled {
		return nil, fmt.Errorf("montgomery: transform %s used before it was built", t.Name())
	}
	if source == nil {
		return nil, nil
	}
	for _, p := range t.params {
		if _, ok := call.params[p]; !ok {
			return nil, &MissingParamError{Transform: t.Name(), Param: p}
		}
	}

	key, err := t.source.ComputeCacheKey(call, source, t.cacheTag)
	if err != nil {
		return nil, err
	}
	if key.Defined() {
		if hit, ok := call.cache.Lookup(key); ok {
			return hit, nil
		}
	}

	dest := destination
	if dest == nil {
		keys := make([]any, len(t.keyFields))
		for i, f := range t.keyFields {
			v, err := t.source.ReadField(source, f.Name)
			if err != nil {
				return nil, err
			}
			if keys[i], err = t.source.ToBase(f, v); err != nil {
				return nil, err
			}
		}
		if dest, err = t.dest.CreateInstance(call, keys); err != nil {
			return nil, err
		}
	}

	if err := t.copyFields(call, source, dest, t.keyFields); err != nil {
		return nil, err
	}
	if err := t.copyFields(call, source, dest, t.plainFields); err != nil {
		return nil, err
	}

	if dest, err = t.dest.FinalizeInstance(call, dest); err != nil {
		return nil, err
	}

	// Registering before relations are walked terminates reference
	// cycles: a child that points back at source finds dest in the
	// cache instead of recursing forever.
	if key.Defined() {
		if err := t.dest.RegisterInCache(call, key, source, t.source, dest); err != nil {
			return nil, err
		}
	}

	for _, s := range t.singles {
		if err := t.copySingle(call, source, dest, s); err != nil {
			return nil, err
		}
	}
	for _, c := range t.collections {
		if err := t.copyCollection(call, source, dest, c); err != nil {
			return nil, err
		}
	}
	for _, p := range t.copiedProps {
		v, err := t.source.ReadField(source, p.Name)
		if err != nil {
			return nil, err
		}
		if err := t.dest.WriteField(dest, p.Name, v); err != nil {
			return nil, err
		}
	}
	for _, p := range t.seqProps {
		if err := t.copySequence(call, source, dest, p); err != nil {
			return nil, err
		}
	}
	return dest, nil
}

func (t *Transform) copyFields(call *Call, source, dest any, fields []schema.Field) error {
	for _, f := range fields {
		v, err := t.source.ReadField(source, f.Name)
		if err != nil {
			return err
		}
		base, err := t.source.ToBase(f, v)
		if err != nil {
			return err
		}
		out, err := t.dest.FromBase(f, base)
		if err != nil {
			return err
		}
		if err := t.dest.WriteField(dest, f.Name, out); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transform) copySingle(call *Call, source, dest any, s singleStep) error {
	present, err := t.source.IsSingleRelationPresent(source, s.rel.Name)
	if err != nil {
		return err
	}
	if !present {
		// The source does not carry the relation; the destination
		// keeps whatever it has.
		return nil
	}
	src, err := t.source.ReadRelation(source, s.rel.Name)
	if err != nil {
		return err
	}
	existing, err := t.dest.ReadRelation(dest, s.rel.Name)
	if err != nil {
		return err
	}
	out, err := s.child.Invoke(call, src, existing)
	if err != nil {
		return err
	}
	return t.dest.WriteRelation(dest, s.rel.Name, out)
}

func (t *Transform) copyCollection(call *Call, source, dest any, c collectionStep) error {
	srcColl, err := t.source.Collection(source, c.rel.Name)
	if err != nil {
		return err
	}
	dstColl, err := t.dest.Collection(dest, c.rel.Name)
	if err != nil {
		return err
	}
	if c.merge {
		return reconcileCollection(call, c.child, srcColl, dstColl)
	}
	return replaceCollection(call, c.child, srcColl, dstColl)
}

func (t *Transform) copySequence(call *Call, source, dest any, p propertyStep) error {
	v, err := t.source.ReadRelation(source, p.prop.Name)
	if err != nil {
		return err
	}
	items, ok := v.([]any)
	if !ok && v != nil {
		return NewAdapterError(t.source.Rep(), t.entity.Name(), "read", p.prop.Name,
			fmt.Errorf("sequence property yielded %T, want []any", v))
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		mapped, err := p.child.Invoke(call, item, nil)
		if err != nil {
			return err
		}
		out = append(out, mapped)
	}
	return t.dest.WriteRelation(dest, p.prop.Name, out)
}
