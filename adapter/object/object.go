// Package object adapts plain Go structs. Attributes bind to struct
// fields through the `xfer` tag or, failing that, the camelized
// attribute name; read-only computed properties may instead bind to a
// zero-argument method on the pointer type. Single relations are
// pointer fields, list collections are pointer slices and set
// collections are pointer-keyed maps.
package object

import (
	"fmt"
	"reflect"
	"time"

	"github.com/go-openapi/inflect"

	"github.com/wiz21b/montgomery"
	"github.com/wiz21b/montgomery/schema"
)

// Rep is the representation name of the package.
const Rep = "object"

var rules = inflect.NewDefaultRuleset()

// Factory maps entity type names to the struct types the
// representation stores them in.
type Factory struct {
	prototypes map[string]reflect.Type
	adapters   map[string]*Adapter
}

// NewFactory returns an empty Factory.
func NewFactory() *Factory {
	return &Factory{
		prototypes: make(map[string]reflect.Type),
		adapters:   make(map[string]*Adapter),
	}
}

// Register binds an entity type name to the struct holding its
// instances. prototype may be a struct value or a (possibly nil)
// pointer to one. Register returns the factory for chaining.
func (f *Factory) Register(entity string, prototype any) *Factory {
	t := reflect.TypeOf(prototype)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	f.prototypes[entity] = t
	return f
}

// Rep returns the representation name.
func (f *Factory) Rep() string { return Rep }

// Adapter returns the adapter bound to the entity type, building and
// caching it on first use.
func (f *Factory) Adapter(t *schema.EntityType) (montgomery.Adapter, error) {
	if a, ok := f.adapters[t.Name()]; ok {
		return a, nil
	}
	st, ok := f.prototypes[t.Name()]
	if !ok {
		return nil, montgomery.NewAdapterError(Rep, t.Name(), "bind", "",
			fmt.Errorf("no struct registered for entity type"))
	}
	a, err := newAdapter(t, st)
	if err != nil {
		return nil, err
	}
	f.adapters[t.Name()] = a
	return a, nil
}

type binding struct {
	index  []int
	method int
}

// Adapter reads and writes one entity type stored as a Go struct.
type Adapter struct {
	entity *schema.EntityType
	typ    reflect.Type
	bind   map[string]binding
}

func newAdapter(et *schema.EntityType, st reflect.Type) (*Adapter, error) {
	if st.Kind() != reflect.Struct {
		return nil, montgomery.NewAdapterError(Rep, et.Name(), "bind", "",
			fmt.Errorf("prototype %s is not a struct", st))
	}
	a := &Adapter{entity: et, typ: st, bind: make(map[string]binding)}
	for _, name := range et.AttributeNames() {
		b, ok := bindAttribute(st, name)
		if !ok {
			return nil, montgomery.NewAdapterError(Rep, et.Name(), "bind", name,
				fmt.Errorf("struct %s has no field or method for attribute", st))
		}
		a.bind[name] = b
	}
	return a, nil
}

func bindAttribute(st reflect.Type, name string) (binding, bool) {
	for i := 0; i < st.NumField(); i++ {
		if tag, ok := st.Field(i).Tag.Lookup("xfer"); ok && tag == name {
			return binding{index: st.Field(i).Index, method: -1}, true
		}
	}
	goName := rules.Camelize(name)
	if f, ok := st.FieldByName(goName); ok {
		return binding{index: f.Index, method: -1}, true
	}
	if m, ok := reflect.PointerTo(st).MethodByName(goName); ok &&
		m.Type.NumIn() == 1 && m.Type.NumOut() == 1 {
		return binding{method: m.Index}, true
	}
	return binding{}, false
}

// Rep returns the representation name.
func (a *Adapter) Rep() string { return Rep }

// Entity returns the bound entity type.
func (a *Adapter) Entity() *schema.EntityType { return a.entity }

func (a *Adapter) instance(inst any) (reflect.Value, error) {
	rv := reflect.ValueOf(inst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Type() != a.typ {
		return reflect.Value{}, montgomery.NewAdapterError(Rep, a.entity.Name(), "access", "",
			fmt.Errorf("instance is %T, want *%s", inst, a.typ))
	}
	return rv, nil
}

func (a *Adapter) read(inst any, name string) (reflect.Value, error) {
	rv, err := a.instance(inst)
	if err != nil {
		return reflect.Value{}, err
	}
	b := a.bind[name]
	if b.method >= 0 {
		return rv.Method(b.method).Call(nil)[0], nil
	}
	return rv.Elem().FieldByIndex(b.index), nil
}

func (a *Adapter) field(inst any, name string) (reflect.Value, error) {
	rv, err := a.instance(inst)
	if err != nil {
		return reflect.Value{}, err
	}
	b := a.bind[name]
	if b.method >= 0 {
		return reflect.Value{}, montgomery.NewAdapterError(Rep, a.entity.Name(), "write", name,
			fmt.Errorf("attribute is method-backed and read-only"))
	}
	return rv.Elem().FieldByIndex(b.index), nil
}

// ReadField returns the value of a field or computed property.
func (a *Adapter) ReadField(inst any, name string) (any, error) {
	v, err := a.read(inst, name)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// WriteField writes a field value, converting it to the struct field
// type when needed.
func (a *Adapter) WriteField(inst any, name string, v any) error {
	fv, err := a.field(inst, name)
	if err != nil {
		return err
	}
	return assign(a, name, fv, v)
}

func assign(a *Adapter, name string, fv reflect.Value, v any) error {
	if v == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(fv.Type()):
		fv.Set(rv)
	case rv.Type().ConvertibleTo(fv.Type()):
		fv.Set(rv.Convert(fv.Type()))
	default:
		return montgomery.NewAdapterError(Rep, a.entity.Name(), "write", name,
			fmt.Errorf("cannot store %T into %s", v, fv.Type()))
	}
	return nil
}

// CreateInstance allocates a zero struct. The representation keeps no
// identity map, so the key values are not consulted.
func (a *Adapter) CreateInstance(call *montgomery.Call, keys []any) (any, error) {
	return reflect.New(a.typ).Interface(), nil
}

// IsSingleRelationPresent always reports true: a struct embeds its
// relations, an absent one is simply a nil pointer.
func (a *Adapter) IsSingleRelationPresent(inst any, relation string) (bool, error) {
	return true, nil
}

// ReadRelation returns the related instance, nil for a nil pointer.
// Sequence-valued computed properties come back as []any.
func (a *Adapter) ReadRelation(inst any, relation string) (any, error) {
	v, err := a.read(inst, relation)
	if err != nil {
		return nil, err
	}
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
		return v.Interface(), nil
	case reflect.Slice:
		out := make([]any, v.Len())
		for i := range out {
			out[i] = v.Index(i).Interface()
		}
		return out, nil
	default:
		return v.Interface(), nil
	}
}

// WriteRelation writes a related instance or, for sequence-valued
// computed properties, a []any rebuilt into the slice field type.
func (a *Adapter) WriteRelation(inst any, relation string, v any) error {
	fv, err := a.field(inst, relation)
	if err != nil {
		return err
	}
	if items, ok := v.([]any); ok && fv.Kind() == reflect.Slice {
		out := reflect.MakeSlice(fv.Type(), 0, len(items))
		for _, item := range items {
			out = reflect.Append(out, reflect.ValueOf(item))
		}
		fv.Set(out)
		return nil
	}
	return assign(a, relation, fv, v)
}

// Collection returns a mutable view over a collection relation.
func (a *Adapter) Collection(inst any, relation string) (montgomery.Collection, error) {
	rel, ok := a.entity.Collection(relation)
	if !ok {
		return nil, montgomery.NewAdapterError(Rep, a.entity.Name(), "access", relation,
			fmt.Errorf("no such collection relation"))
	}
	fv, err := a.field(inst, relation)
	if err != nil {
		return nil, err
	}
	switch rel.Kind {
	case schema.KindList:
		return &sliceCollection{v: fv}, nil
	case schema.KindSet:
		return &setCollection{v: fv}, nil
	default:
		return nil, &montgomery.CollectionKindError{
			Type:     a.entity.Name(),
			Relation: relation,
			Target:   rel.Target.Name(),
			Kind:     rel.Kind,
		}
	}
}

// ComputeCacheKey keys instances on their business key, falling back
// to a per-call identity token when every key field is unset.
func (a *Adapter) ComputeCacheKey(call *montgomery.Call, inst any, tag string) (montgomery.Key, error) {
	if inst == nil {
		return montgomery.Key{}, nil
	}
	fields := a.entity.KeyFields()
	parts := make([]any, 0, len(fields))
	for _, f := range fields {
		v, err := a.ReadField(inst, f.Name)
		if err != nil {
			return montgomery.Key{}, err
		}
		base, err := a.ToBase(f, v)
		if err != nil {
			return montgomery.Key{}, err
		}
		parts = append(parts, base)
	}
	if k := montgomery.KeyIfSet(tag, parts...); k.Defined() {
		return k, nil
	}
	return montgomery.NewKey(tag, call.Cache().IdentityToken(inst)), nil
}

// RegisterInCache stores the destination instance under the key.
func (a *Adapter) RegisterInCache(call *montgomery.Call, key montgomery.Key, src any, srcAdapter montgomery.Adapter, dest any) error {
	call.Cache().Put(key, dest)
	return nil
}

// FinalizeInstance is a no-op for plain structs.
func (a *Adapter) FinalizeInstance(call *montgomery.Call, dest any) (any, error) {
	return dest, nil
}

// ToBase normalizes a struct field value to its base type.
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

// FromBase is the identity: WriteField converts base values to the
// struct field type.
func (a *Adapter) FromBase(f schema.Field, v any) (any, error) {
	return v, nil
}

// MergesCollections reports true: struct instances carry identity, so
// destination collections are reconciled in place.
func (a *Adapter) MergesCollections() bool { return true }

// RequiredParams reports no extra parameters.
func (a *Adapter) RequiredParams() []string { return nil }
