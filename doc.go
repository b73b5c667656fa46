// Package montgomery copies object graphs between representations of
// the same entity schema: live store-bound objects, plain in-memory
// structs, flattened records ready for the wire.
//
// A schema.Schema declares the entity types with their key fields,
// plain fields, relations and computed properties. Per-representation
// adapters (see the adapter subpackages) tell the engine how one
// representation reads, writes and identifies instances. A Plan per
// entity type says what to do with each attribute: copy it, skip it,
// or delegate the related instances to the transform of their own
// type. A Builder compiles whole plan sets into Transforms; plans of
// mutually dependent types may freely delegate to each other within
// one build.
//
// Invoking a transform walks the source graph recursively. Shared
// instances come out shared, reference cycles terminate, and an
// existing destination graph is reconciled in place rather than
// rebuilt, with collection items matched by business key. All
// per-invocation state lives in a Call, so built transforms are safe
// for concurrent use.
package montgomery
