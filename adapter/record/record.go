// Package record adapts flattened map records, the shape a graph takes
// right before hitting the wire. Records carry no native object
// identity, so shared instances flatten to one full record plus short
// reference records; the markers let the reverse direction recover the
// sharing. Marshal and Unmarshal move records through msgpack.
package record

import (
	"fmt"
	"reflect"
	"time"

	"github.com/wiz21b/montgomery"
	"github.com/wiz21b/montgomery/schema"
)

// Rep is the representation name of the package.
const Rep = "record"

// Record is the flattened shape of one instance. Relations nest as
// further records, collections as []any of records.
type Record = map[string]any

const (
	// RefField marks a short reference record. Its value is either the
	// business key values of the referenced instance or the identity
	// token of its full record.
	RefField = "__xref"
	// IDField tags a full record with an identity token when the
	// instance has no usable business key.
	IDField = "__xid"
)

// Factory hands out record adapters. All state is per entity type, so
// a single factory serves any number of schemas.
type Factory struct {
	adapters map[string]*Adapter
}

// NewFactory returns an empty Factory.
func NewFactory() *Factory {
	return &Factory{adapters: make(map[string]*Adapter)}
}

// Rep returns the representation name.
func (f *Factory) Rep() string { return Rep }

// Adapter returns the adapter bound to the entity type.
func (f *Factory) Adapter(t *schema.EntityType) (montgomery.Adapter, error) {
	if a, ok := f.adapters[t.Name()]; ok {
		return a, nil
	}
	a := &Adapter{entity: t}
	f.adapters[t.Name()] = a
	return a, nil
}

// Adapter reads and writes one entity type stored as Records.
type Adapter struct {
	entity *schema.EntityType
}

// Rep returns the representation name.
func (a *Adapter) Rep() string { return Rep }

// Entity returns the bound entity type.
func (a *Adapter) Entity() *schema.EntityType { return a.entity }

func (a *Adapter) record(inst any, op string) (Record, error) {
	rec, ok := inst.(Record)
	if !ok {
		return nil, montgomery.NewAdapterError(Rep, a.entity.Name(), op, "",
			fmt.Errorf("instance is %T, want a record", inst))
	}
	return rec, nil
}

// ReadField returns the stored value, nil when the record lacks the
// field.
func (a *Adapter) ReadField(inst any, name string) (any, error) {
	rec, err := a.record(inst, "read")
	if err != nil {
		return nil, err
	}
	return rec[name], nil
}

// WriteField stores the value under the field name.
func (a *Adapter) WriteField(inst any, name string, v any) error {
	rec, err := a.record(inst, "write")
	if err != nil {
		return err
	}
	rec[name] = v
	return nil
}

// CreateInstance allocates an empty record.
func (a *Adapter) CreateInstance(call *montgomery.Call, keys []any) (any, error) {
	return Record{}, nil
}

// IsSingleRelationPresent reports whether the record carries the
// relation at all. A flattened record may legitimately omit relations
// its producer skipped.
func (a *Adapter) IsSingleRelationPresent(inst any, relation string) (bool, error) {
	rec, err := a.record(inst, "read")
	if err != nil {
		return false, err
	}
	_, ok := rec[relation]
	return ok, nil
}

// ReadRelation returns the nested value of a relation.
func (a *Adapter) ReadRelation(inst any, relation string) (any, error) {
	rec, err := a.record(inst, "read")
	if err != nil {
		return nil, err
	}
	v := rec[relation]
	if v == nil {
		return nil, nil
	}
	return v, nil
}

// WriteRelation stores the nested value of a relation.
func (a *Adapter) WriteRelation(inst any, relation string, v any) error {
	rec, err := a.record(inst, "write")
	if err != nil {
		return err
	}
	rec[relation] = v
	return nil
}

// Collection views a collection relation stored as a []any of nested
// records. Sets flatten to the same shape as lists.
func (a *Adapter) Collection(inst any, relation string) (montgomery.Collection, error) {
	rec, err := a.record(inst, "read")
	if err != nil {
		return nil, err
	}
	rel, ok := a.entity.Collection(relation)
	if !ok {
		return nil, montgomery.NewAdapterError(Rep, a.entity.Name(), "read", relation,
			fmt.Errorf("no such collection relation"))
	}
	if _, ok := rec[relation].([]any); !ok && rec[relation] != nil {
		return nil, montgomery.NewAdapterError(Rep, a.entity.Name(), "read", relation,
			fmt.Errorf("collection holds %T, want []any", rec[relation]))
	}
	return &listCollection{rec: rec, name: relation, kind: rel.Kind}, nil
}

// ComputeCacheKey keys a record on, in order of preference: its short
// reference marker, its identity token tag, its business key values.
// A bare record with an unset key stays out of the cache.
func (a *Adapter) ComputeCacheKey(call *montgomery.Call, inst any, tag string) (montgomery.Key, error) {
	if inst == nil {
		return montgomery.Key{}, nil
	}
	rec, err := a.record(inst, "read")
	if err != nil {
		return montgomery.Key{}, err
	}
	if ref, ok := rec[RefField]; ok {
		if parts, ok := ref.([]any); ok {
			return montgomery.NewKey(tag, parts...), nil
		}
		return montgomery.NewKey(tag, ref), nil
	}
	if tok, ok := rec[IDField]; ok {
		return montgomery.NewKey(tag, tok), nil
	}
	fields := a.entity.KeyFields()
	parts := make([]any, 0, len(fields))
	for _, f := range fields {
		v, err := a.ToBase(f, rec[f.Name])
		if err != nil {
			return montgomery.Key{}, err
		}
		parts = append(parts, v)
	}
	return montgomery.KeyIfSet(tag, parts...), nil
}

// RegisterInCache caches a short reference record in place of the full
// destination, so later encounters of the same source embed the short
// form. Sources without a set business key get an identity token; the
// full record is tagged with it so the reverse direction can match the
// short references back to it.
func (a *Adapter) RegisterInCache(call *montgomery.Call, key montgomery.Key, src any, srcAdapter montgomery.Adapter, dest any) error {
	rec, err := a.record(dest, "write")
	if err != nil {
		return err
	}
	fields := a.entity.KeyFields()
	parts := make([]any, 0, len(fields))
	for _, f := range fields {
		v, err := srcAdapter.ReadField(src, f.Name)
		if err != nil {
			return err
		}
		base, err := srcAdapter.ToBase(f, v)
		if err != nil {
			return err
		}
		parts = append(parts, base)
	}
	var short Record
	if montgomery.KeyIfSet(key.Tag(), parts...).Defined() {
		short = Record{RefField: parts}
	} else {
		tok := sourceToken(call, src)
		rec[IDField] = tok
		short = Record{RefField: tok}
	}
	call.Cache().Put(key, short)
	return nil
}

// sourceToken returns the identity token of src. A record source that
// already carries one keeps it, so a record to record transcode
// preserves the marker its producer chose.
func sourceToken(call *montgomery.Call, src any) string {
	if rec, ok := src.(Record); ok {
		if tok, ok := rec[IDField].(string); ok && tok != "" {
			return tok
		}
	}
	return call.Cache().IdentityToken(src)
}

// FinalizeInstance is a no-op for records.
func (a *Adapter) FinalizeInstance(call *montgomery.Call, dest any) (any, error) {
	return dest, nil
}

// ToBase normalizes a record value to its base type, absorbing the
// narrower numeric types a decoder may have produced.
func (a *Adapter) ToBase(f schema.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	switch f.Type {
	case schema.TypeString:
		if rv.Kind() == reflect.String {
			return rv.String(), nil
		}
	case schema.TypeInt:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Int(), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return int64(rv.Uint()), nil
		}
	case schema.TypeFloat:
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			return rv.Float(), nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return float64(rv.Int()), nil
		}
	case schema.TypeBool:
		if rv.Kind() == reflect.Bool {
			return rv.Bool(), nil
		}
	case schema.TypeTime:
		if t, ok := v.(time.Time); ok {
			return t, nil
		}
	case schema.TypeBytes:
		if b, ok := v.([]byte); ok {
			return b, nil
		}
	}
	return nil, montgomery.NewAdapterError(Rep, a.entity.Name(), "read", f.Name,
		fmt.Errorf("cannot represent %T as %s", v, f.Type))
}

// FromBase is the identity: records store base values directly.
func (a *Adapter) FromBase(f schema.Field, v any) (any, error) {
	return v, nil
}

// MergesCollections reports false: record collection items carry no
// reusable identity, destination collections are rebuilt.
func (a *Adapter) MergesCollections() bool { return false }

// RequiredParams reports no extra parameters.
func (a *Adapter) RequiredParams() []string { return nil }

// listCollection views a []any collection slot of a record, writing
// mutations back into the owning record.
type listCollection struct {
	rec  Record
	name string
	kind schema.ContainerKind
}

func (c *listCollection) Kind() schema.ContainerKind { return c.kind }

func (c *listCollection) items() []any {
	v, _ := c.rec[c.name].([]any)
	return v
}

func (c *listCollection) Items() ([]any, error) {
	src := c.items()
	out := make([]any, len(src))
	copy(out, src)
	return out, nil
}

func (c *listCollection) Add(item any) error {
	c.rec[c.name] = append(c.items(), item)
	return nil
}

func (c *listCollection) Remove(item any) error {
	src := c.items()
	for i, it := range src {
		if sameItem(it, item) {
			c.rec[c.name] = append(append([]any{}, src[:i]...), src[i+1:]...)
			return nil
		}
	}
	return nil
}

func (c *listCollection) Clear() error {
	c.rec[c.name] = []any{}
	return nil
}

func sameItem(a, b any) bool {
	if ra, ok := a.(Record); ok {
		rb, ok := b.(Record)
		return ok && reflect.ValueOf(ra).Pointer() == reflect.ValueOf(rb).Pointer()
	}
	return a == b
}
