// Package sqlstore adapts structs bound to a relational store through
// a Session. Instances behave like the object representation, with two
// store-specific twists: creating an instance consults the session
// identity map so a business key maps to one instance per session, and
// finalizing an instance merges it with an already-known one instead
// of duplicating it. Every instance a transform touches is tracked, so
// a single Session.Flush persists the whole transcoded graph.
package sqlstore

import (
	"fmt"

	"github.com/wiz21b/montgomery"
	"github.com/wiz21b/montgomery/adapter/object"
	"github.com/wiz21b/montgomery/schema"
)

// Rep is the representation name of the package.
const Rep = "sqlstore"

// ParamSession names the Call parameter carrying the *Session every
// sqlstore adapter requires.
const ParamSession = "session"

// Factory hands out sqlstore adapters over structs registered exactly
// as in the object representation.
type Factory struct {
	inner    *object.Factory
	adapters map[string]*Adapter
}

// NewFactory returns an empty Factory.
func NewFactory() *Factory {
	return &Factory{
		inner:    object.NewFactory(),
		adapters: make(map[string]*Adapter),
	}
}

// Register binds an entity type name to its struct. Register returns
// the factory for chaining.
func (f *Factory) Register(entity string, prototype any) *Factory {
	f.inner.Register(entity, prototype)
	return f
}

// Rep returns the representation name.
func (f *Factory) Rep() string { return Rep }

// Adapter returns the adapter bound to the entity type.
func (f *Factory) Adapter(t *schema.EntityType) (montgomery.Adapter, error) {
	if a, ok := f.adapters[t.Name()]; ok {
		return a, nil
	}
	base, err := f.inner.Adapter(t)
	if err != nil {
		return nil, err
	}
	a := &Adapter{Adapter: base, entity: t}
	f.adapters[t.Name()] = a
	return a, nil
}

// Adapter reads and writes one entity type bound to a store session.
// Everything but identity handling is inherited from the object
// representation.
type Adapter struct {
	montgomery.Adapter
	entity *schema.EntityType
}

// Rep returns the representation name.
func (a *Adapter) Rep() string { return Rep }

// RequiredParams reports the session parameter.
func (a *Adapter) RequiredParams() []string { return []string{ParamSession} }

func (a *Adapter) session(call *montgomery.Call) (*Session, error) {
	v, ok := call.Param(ParamSession)
	if !ok {
		return nil, &montgomery.MissingParamError{Transform: a.entity.Name(), Param: ParamSession}
	}
	s, ok := v.(*Session)
	if !ok {
		return nil, montgomery.NewAdapterError(Rep, a.entity.Name(), "session", ParamSession,
			fmt.Errorf("parameter holds %T, want *Session", v))
	}
	return s, nil
}

// identityFor canonicalizes base-typed key values into the session
// identity map key. The empty string means the key is unset.
func (a *Adapter) identityFor(keys []any) string {
	if k := montgomery.KeyIfSet(a.entity.Name(), keys...); k.Defined() {
		return k.String()
	}
	return ""
}

// CreateInstance returns the session instance already registered under
// the key values, allocating and registering a fresh one otherwise.
func (a *Adapter) CreateInstance(call *montgomery.Call, keys []any) (any, error) {
	s, err := a.session(call)
	if err != nil {
		return nil, err
	}
	ident := a.identityFor(keys)
	if ident != "" {
		if inst, ok := s.Get(a.entity, ident); ok {
			return inst, nil
		}
	}
	inst, err := a.Adapter.CreateInstance(call, keys)
	if err != nil {
		return nil, err
	}
	if ident != "" {
		s.Add(a.entity, ident, a, inst)
	} else {
		s.track(a.entity, a, inst)
	}
	return inst, nil
}

// FinalizeInstance runs once the fields are written. If the session
// already knows another instance under the freshly written business
// key, the field values are merged into that instance and it replaces
// dest; otherwise dest is registered under its key.
func (a *Adapter) FinalizeInstance(call *montgomery.Call, dest any) (any, error) {
	s, err := a.session(call)
	if err != nil {
		return nil, err
	}
	keyFields := a.entity.KeyFields()
	keys := make([]any, 0, len(keyFields))
	for _, f := range keyFields {
		v, err := a.ReadField(dest, f.Name)
		if err != nil {
			return nil, err
		}
		base, err := a.ToBase(f, v)
		if err != nil {
			return nil, err
		}
		keys = append(keys, base)
	}
	ident := a.identityFor(keys)
	if ident == "" {
		s.track(a.entity, a, dest)
		return dest, nil
	}
	if existing, ok := s.Get(a.entity, ident); ok && existing != dest {
		for _, f := range a.entity.Fields() {
			v, err := a.ReadField(dest, f.Name)
			if err != nil {
				return nil, err
			}
			if err := a.WriteField(existing, f.Name, v); err != nil {
				return nil, err
			}
		}
		return existing, nil
	}
	s.Add(a.entity, ident, a, dest)
	return dest, nil
}
