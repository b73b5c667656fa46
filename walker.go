package montgomery

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/wiz21b/montgomery/schema"
)

type transformKey struct {
	entity string
	source string
	dest   string
	series string
}

// A Walker compiles plans into transforms, one entity type at a time,
// and keeps a registry of everything it built so later plans can
// delegate to earlier transforms by target type. For whole plan sets
// with mutually dependent types, use a Builder instead.
type Walker struct {
	log      zerolog.Logger
	registry map[transformKey]*Transform
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithLogger sets the logger the walker reports build progress to.
func WithLogger(log zerolog.Logger) WalkerOption {
	return func(w *Walker) { w.log = log }
}

// NewWalker returns a Walker with an empty registry.
func NewWalker(opts ...WalkerOption) *Walker {
	w := &Walker{
		log:      zerolog.Nop(),
		registry: make(map[transformKey]*Transform),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Walk builds and registers the default-series transform copying the
// adapters' entity type from source to dest according to plan.
func (w *Walker) Walk(source, dest Adapter, plan Plan) (*Transform, error) {
	return w.WalkSeries("", source, dest, plan)
}

// WalkSeries builds and registers a transform under the given series
// name. Automatic delegation directives resolve against transforms the
// walker already holds, preferring the same series and falling back to
// the default one.
func (w *Walker) WalkSeries(series string, source, dest Adapter, plan Plan) (*Transform, error) {
	t, err := w.placeholder(series, source, dest)
	if err != nil {
		return nil, err
	}
	missing, err := w.compile(t, plan)
	if err != nil {
		w.unregister(t)
		return nil, err
	}
	if len(missing) > 0 {
		w.unregister(t)
		return nil, &DependencyError{Series: series, Missing: missing}
	}
	t.params = collectParams(t)
	w.log.Debug().Str("transform", t.Name()).Msg("built transform")
	return t, nil
}

// placeholder allocates and registers an uncompiled transform so that
// plans of mutually dependent types can resolve each other before any
// of them is compiled.
func (w *Walker) placeholder(series string, source, dest Adapter) (*Transform, error) {
	if source.Entity() != dest.Entity() {
		return nil, fmt.Errorf("%w: adapters disagree on the entity type: %s (%s) vs %s (%s)",
			ErrConfig, source.Entity().Name(), source.Rep(), dest.Entity().Name(), dest.Rep())
	}
	t := &Transform{
		entity: source.Entity(),
		source: source,
		dest:   dest,
		series: series,
	}
	t.cacheTag = fmt.Sprintf("%s:%s->%s", t.entity.Name(), source.Rep(), dest.Rep())
	key := transformKey{t.entity.Name(), source.Rep(), dest.Rep(), series}
	if _, dup := w.registry[key]; dup {
		return nil, &DuplicateTransformError{
			Type:   t.entity.Name(),
			Source: source.Rep(),
			Dest:   dest.Rep(),
			Series: series,
		}
	}
	w.registry[key] = t
	return t, nil
}

func (w *Walker) unregister(t *Transform) {
	delete(w.registry, transformKey{t.entity.Name(), t.source.Rep(), t.dest.Rep(), t.series})
}

func (w *Walker) lookup(entity, source, dest, series string) (*Transform, bool) {
	if t, ok := w.registry[transformKey{entity, source, dest, series}]; ok {
		return t, true
	}
	if series != "" {
		if t, ok := w.registry[transformKey{entity, source, dest, ""}]; ok {
			return t, true
		}
	}
	return nil, false
}

// compile fills in the step tables of a placeholder transform. It
// returns the unresolvable automatic delegation targets without
// touching the transform; any other plan defect is a hard error.
func (w *Walker) compile(t *Transform, plan Plan) ([]MissingDependency, error) {
	entity := t.entity
	for name := range plan {
		if !entity.HasAttribute(name) {
			return nil, &UndeclaredAttributeError{
				Type:      entity.Name(),
				Attribute: name,
				Known:     entity.AttributeNames(),
			}
		}
	}

	var (
		keyFields   []schema.Field
		plainFields []schema.Field
		singles     []singleStep
		collections []collectionStep
		copiedProps []schema.Property
		seqProps    []propertyStep
		missing     []MissingDependency
	)

	for _, f := range entity.KeyFields() {
		if d, ok := plan[f.Name]; ok && d.Op() == OpSkip {
			return nil, &DirectiveError{Type: entity.Name(), Attribute: f.Name,
				Message: "key fields cannot be skipped"}
		}
		keyFields = append(keyFields, f)
	}
	for _, f := range entity.Fields() {
		d, ok := plan[f.Name]
		if !ok {
			d = Copy()
		}
		switch d.Op() {
		case OpSkip:
		case OpCopy:
			plainFields = append(plainFields, f)
		default:
			return nil, &DirectiveError{Type: entity.Name(), Attribute: f.Name,
				Message: fmt.Sprintf("fields accept Skip or Copy, not %s", d.Op())}
		}
	}

	resolve := func(attr string, d Directive, target *schema.EntityType) (*Transform, bool, error) {
		if d.Auto() {
			child, ok := w.lookup(target.Name(), t.source.Rep(), t.dest.Rep(), t.series)
			if !ok {
				missing = append(missing, MissingDependency{
					Type:     entity.Name(),
					Relation: attr,
					Target:   target.Name(),
				})
				return nil, false, nil
			}
			return child, true, nil
		}
		child := d.Ref()
		if child == nil {
			return nil, false, &DirectiveError{Type: entity.Name(), Attribute: attr,
				Message: "delegation directive carries no transform"}
		}
		if child.entity != target {
			return nil, false, &DirectiveError{Type: entity.Name(), Attribute: attr,
				Message: fmt.Sprintf("delegated transform copies %s, relation targets %s",
					child.entity.Name(), target.Name())}
		}
		if child.source.Rep() != t.source.Rep() || child.dest.Rep() != t.dest.Rep() {
			return nil, false, &DirectiveError{Type: entity.Name(), Attribute: attr,
				Message: fmt.Sprintf("delegated transform maps %s->%s, want %s->%s",
					child.source.Rep(), child.dest.Rep(), t.source.Rep(), t.dest.Rep())}
		}
		return child, true, nil
	}

	for _, rel := range entity.Singles() {
		d, ok := plan[rel.Name]
		if !ok {
			return nil, &MissingDirectiveError{Type: entity.Name(), Relation: rel.Name}
		}
		switch d.Op() {
		case OpSkip:
		case OpDelegate:
			child, ok, err := resolve(rel.Name, d, rel.Target)
			if err != nil {
				return nil, err
			}
			if ok {
				singles = append(singles, singleStep{rel: rel, child: child})
			}
		default:
			return nil, &DirectiveError{Type: entity.Name(), Attribute: rel.Name,
				Message: fmt.Sprintf("single relations accept Skip or a delegation, not %s", d.Op())}
		}
	}

	for _, rel := range entity.Collections() {
		d, ok := plan[rel.Name]
		if !ok {
			return nil, &MissingDirectiveError{Type: entity.Name(), Relation: rel.Name}
		}
		switch d.Op() {
		case OpSkip:
		case OpDelegate:
			child, ok, err := resolve(rel.Name, d, rel.Target)
			if err != nil {
				return nil, err
			}
			if ok {
				collections = append(collections, collectionStep{
					rel:   rel,
					child: child,
					merge: t.dest.MergesCollections(),
				})
			}
		default:
			return nil, &DirectiveError{Type: entity.Name(), Attribute: rel.Name,
				Message: fmt.Sprintf("collection relations accept Skip or a delegation, not %s", d.Op())}
		}
	}

	for _, prop := range entity.ComputedProperties() {
		d, ok := plan[prop.Name]
		if !ok {
			if prop.Sequence != nil {
				return nil, &MissingDirectiveError{Type: entity.Name(), Relation: prop.Name}
			}
			d = Copy()
		}
		switch d.Op() {
		case OpSkip:
		case OpCopy:
			if prop.Sequence != nil {
				return nil, &DirectiveError{Type: entity.Name(), Attribute: prop.Name,
					Message: "sequence properties accept Skip or NestedSequence, not Copy"}
			}
			copiedProps = append(copiedProps, prop)
		case OpNestedSequence:
			if prop.Sequence == nil {
				return nil, &DirectiveError{Type: entity.Name(), Attribute: prop.Name,
					Message: "NestedSequence applies to sequence properties only"}
			}
			child, ok, err := resolve(prop.Name, d, prop.Sequence)
			if err != nil {
				return nil, err
			}
			if ok {
				seqProps = append(seqProps, propertyStep{prop: prop, child: child})
			}
		default:
			return nil, &DirectiveError{Type: entity.Name(), Attribute: prop.Name,
				Message: fmt.Sprintf("computed properties accept Skip, Copy or NestedSequence, not %s", d.Op())}
		}
	}

	if len(missing) > 0 {
		return missing, nil
	}

	t.keyFields = keyFields
	t.plainFields = plainFields
	t.singles = singles
	t.collections = collections
	t.copiedProps = copiedProps
	t.seqProps = seqProps
	t.compiled = true
	return nil, nil
}

// collectParams gathers the parameter names required anywhere in the
// transform graph reachable from t.
func collectParams(t *Transform) []string {
	seen := make(map[*Transform]bool)
	set := make(map[string]bool)
	var visit func(*Transform)
	visit = func(x *Transform) {
		if seen[x] {
			return
		}
		seen[x] = true
		for _, p := range x.source.RequiredParams() {
			set[p] = true
		}
		for _, p := range x.dest.RequiredParams() {
			set[p] = true
		}
		for _, s := range x.singles {
			visit(s.child)
		}
		for _, c := range x.collections {
			visit(c.child)
		}
		for _, p := range x.seqProps {
			visit(p.child)
		}
	}
	visit(t)
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
