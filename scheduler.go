package montgomery

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/wiz21b/montgomery/schema"
)

// A Builder turns a whole set of plans into transforms at once, taking
// its adapters from a pair of factories. Building as a set lets plans
// of mutually dependent entity types delegate to each other; only
// delegation to a type no plan in the set (and no earlier build)
// covers fails.
type Builder struct {
	schema *schema.Schema
	source AdapterFactory
	dest   AdapterFactory
	walker *Walker
	log    zerolog.Logger
}

type pendingPlan struct {
	transform *Transform
	plan      Plan
}

// NewBuilder returns a Builder over the schema, producing transforms
// from the source representation to the destination one. Options are
// forwarded to the underlying walker.
func NewBuilder(sch *schema.Schema, source, dest AdapterFactory, opts ...WalkerOption) *Builder {
	w := NewWalker(opts...)
	return &Builder{
		schema: sch,
		source: source,
		dest:   dest,
		walker: w,
		log:    w.log,
	}
}

// Build compiles the default-series transforms for every plan in the
// set. On success every built transform is retrievable through
// Transform; on any failure the builder's registry is left as it was
// before the call.
func (b *Builder) Build(plans map[string]Plan) error {
	return b.BuildSeries("", plans)
}

// BuildSeries compiles the plan set under the given series name.
// Automatic delegation resolves within the set first, then against
// transforms from earlier builds, preferring the same series over the
// default one. Delegation to a type nothing covers fails with a
// DependencyError naming every unresolved (type, relation, target)
// triple.
func (b *Builder) BuildSeries(series string, plans map[string]Plan) error {
	names := make([]string, 0, len(plans))
	for name := range plans {
		names = append(names, name)
	}
	sort.Strings(names)

	var allocated []*Transform
	rollback := func() {
		for _, t := range allocated {
			b.walker.unregister(t)
		}
	}

	pending := make([]pendingPlan, 0, len(names))
	for _, name := range names {
		entity, ok := b.schema.Type(name)
		if !ok {
			rollback()
			return fmt.Errorf("%w: plan for unknown entity type %q", ErrConfig, name)
		}
		src, err := b.source.Adapter(entity)
		if err != nil {
			rollback()
			return err
		}
		dst, err := b.dest.Adapter(entity)
		if err != nil {
			rollback()
			return err
		}
		t, err := b.walker.placeholder(series, src, dst)
		if err != nil {
			rollback()
			return err
		}
		allocated = append(allocated, t)
		pending = append(pending, pendingPlan{transform: t, plan: plans[name]})
	}

	// Compile in passes. Placeholders for the whole set already exist,
	// so in-set delegation resolves immediately; a pass that compiles
	// nothing means the remaining plans point outside everything
	// declared.
	pass := 0
	for len(pending) > 0 {
		pass++
		var (
			deferred []pendingPlan
			missing  []MissingDependency
		)
		for _, p := range pending {
			miss, err := b.walker.compile(p.transform, p.plan)
			if err != nil {
				rollback()
				return err
			}
			if len(miss) > 0 {
				missing = append(missing, miss...)
				deferred = append(deferred, p)
				continue
			}
			b.log.Debug().Int("pass", pass).Str("transform", p.transform.Name()).Msg("built transform")
		}
		if len(deferred) == len(pending) {
			rollback()
			return &DependencyError{Series: series, Missing: missing}
		}
		pending = deferred
	}

	for _, t := range allocated {
		t.params = collectParams(t)
	}
	return nil
}

// Transform returns the built transform for the entity type and
// series, falling back to the default series.
func (b *Builder) Transform(entity, series string) (*Transform, bool) {
	return b.walker.lookup(entity, b.source.Rep(), b.dest.Rep(), series)
}
