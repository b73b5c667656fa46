package montgomery

import "github.com/wiz21b/montgomery/schema"

// Adapter encapsulates how one representation stores and accesses the
// data of one entity type: live store-bound objects, plain structs,
// flattened records. An adapter is bound to a single entity type; the
// factory that produced it serves the whole representation.
//
// Every operation taking a field or relation name is only defined for
// the names the entity type declares; referencing anything else is a
// programming error reported through ErrRepresentation.
type Adapter interface {
	// Rep returns the short name of the representation ("object",
	// "record", "sqlstore", ...). It appears in transform names and
	// cache tags.
	Rep() string

	// Entity returns the entity type the adapter is bound to.
	Entity() *schema.EntityType

	// ReadField returns the value of a field or computed property.
	ReadField(inst any, name string) (any, error)

	// WriteField writes the value of a field (or of the destination
	// counterpart of a computed property).
	WriteField(inst any, name string, v any) error

	// CreateInstance allocates a destination instance for the given
	// source key values. Representations bound to an external identity
	// map must return the already-known instance for those keys
	// instead of allocating a duplicate.
	CreateInstance(call *Call, keys []any) (any, error)

	// IsSingleRelationPresent reports whether the nested entity of a
	// single relation is embedded/reachable without a separate lookup.
	IsSingleRelationPresent(inst any, relation string) (bool, error)

	// ReadRelation returns the value of a single relation or of a
	// sequence-valued computed property; nil means absent.
	ReadRelation(inst any, relation string) (any, error)

	// WriteRelation writes the value of a single relation or of a
	// sequence-valued computed property.
	WriteRelation(inst any, relation string, v any) error

	// Collection returns a mutable view over a collection relation of
	// the instance.
	Collection(inst any, relation string) (Collection, error)

	// ComputeCacheKey computes the identity-cache key of a source
	// instance. The undefined Key means the instance has no usable
	// identity: never reuse, never cache.
	ComputeCacheKey(call *Call, inst any, tag string) (Key, error)

	// RegisterInCache records the produced destination instance under
	// the key, before any relation is recursed into. Representations
	// without native object identity store a short reference payload
	// instead of the instance and tag the destination with a
	// recoverable surrogate marker derived from the source identity.
	// src and srcAdapter give access to the source-side key values.
	RegisterInCache(call *Call, key Key, src any, srcAdapter Adapter, dest any) error

	// FinalizeInstance runs once the fields are written, before
	// relations are recursed into. It may return a replacement
	// instance (a store merge can substitute the canonical instance).
	FinalizeInstance(call *Call, dest any) (any, error)

	// ToBase converts a representation value to its base type.
	ToBase(f schema.Field, v any) (any, error)

	// FromBase converts a base-type value to the representation type.
	FromBase(f schema.Field, v any) (any, error)

	// MergesCollections reports whether destination collections of
	// this representation carry reusable identity and should be
	// reconciled in place rather than rebuilt.
	MergesCollections() bool

	// RequiredParams names the extra Call parameters the adapter needs
	// (e.g. a session handle). They propagate transitively to every
	// transform that reaches this adapter.
	RequiredParams() []string
}

// AdapterFactory produces the per-entity-type adapters of one
// representation, reusing instances across requests for the same
// type.
type AdapterFactory interface {
	// Rep returns the representation name shared by all adapters of
	// the factory.
	Rep() string

	// Adapter returns the adapter bound to the entity type.
	Adapter(t *schema.EntityType) (Adapter, error)
}

// Collection is a mutable view over one collection relation of one
// instance, sufficient for the reconciler to iterate, add and remove
// items.
type Collection interface {
	// Kind returns the container kind of the collection.
	Kind() schema.ContainerKind

	// Items returns the current items. The returned slice is a
	// snapshot; mutating the collection does not affect it.
	Items() ([]any, error)

	// Add appends the item for list-shaped collections and adds it
	// for set-shaped ones.
	Add(item any) error

	// Remove removes the item from the collection.
	Remove(item any) error

	// Clear removes every item.
	Clear() error
}
