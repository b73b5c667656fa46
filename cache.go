package montgomery

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
)

// A Key identifies one distinct source identity within one top-level
// transcoding call: a type-pair tag plus the canonicalized key values
// (business key or surrogate token). The zero Key is "undefined" and
// means never reuse, never cache.
type Key struct {
	tag   string
	parts string
	ok    bool
}

// NewKey builds a defined key from the tag and the raw key parts.
// Parts are canonicalized so that values surviving a wire round trip
// (msgpack widens integers, floats) still produce an equal key.
func NewKey(tag string, parts ...any) Key {
	return Key{tag: tag, parts: canonParts(parts), ok: true}
}

// KeyIfSet builds a key like NewKey, but returns the undefined Key
// when every part is nil or zero. An all-unset business key cannot
// identify anything. Zero is indistinguishable from unset here, so
// schemas should keep 0 and "" out of the legitimate value domain of
// single-part business keys; an instance keyed on such a value falls
// back to a per-call identity token and is never reused across calls.
func KeyIfSet(tag string, parts ...any) Key {
	for _, p := range parts {
		if !isUnset(p) {
			return NewKey(tag, parts...)
		}
	}
	return Key{}
}

// Defined reports whether the key identifies something.
func (k Key) Defined() bool { return k.ok }

// Tag returns the type-pair tag of the key.
func (k Key) Tag() string { return k.tag }

// String returns a printable form of the key.
func (k Key) String() string {
	if !k.ok {
		return "Key(undefined)"
	}
	return fmt.Sprintf("Key(%s: %s)", k.tag, k.parts)
}

func canonParts(parts []any) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		b.WriteString(canonPart(p))
	}
	return b.String()
}

// canonPart normalizes numeric width so the same key value read back
// from a decoded record compares equal to the value read from a live
// object.
func canonPart(p any) string {
	switch v := p.(type) {
	case nil:
		return "\x00"
	case int:
		return fmt.Sprintf("i%d", int64(v))
	case int8:
		return fmt.Sprintf("i%d", int64(v))
	case int16:
		return fmt.Sprintf("i%d", int64(v))
	case int32:
		return fmt.Sprintf("i%d", int64(v))
	case int64:
		return fmt.Sprintf("i%d", v)
	case uint:
		return fmt.Sprintf("i%d", int64(v))
	case uint8:
		return fmt.Sprintf("i%d", int64(v))
	case uint16:
		return fmt.Sprintf("i%d", int64(v))
	case uint32:
		return fmt.Sprintf("i%d", int64(v))
	case uint64:
		return fmt.Sprintf("i%d", int64(v))
	case float32:
		return fmt.Sprintf("f%v", float64(v))
	case float64:
		return fmt.Sprintf("f%v", v)
	case string:
		return "s" + v
	case []any:
		return "(" + canonParts(v) + ")"
	default:
		return fmt.Sprintf("v%v", v)
	}
}

func isUnset(p any) bool {
	switch v := p.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case int:
		return v == 0
	case int8:
		return v == 0
	case int16:
		return v == 0
	case int32:
		return v == 0
	case int64:
		return v == 0
	case uint:
		return v == 0
	case uint8:
		return v == 0
	case uint16:
		return v == 0
	case uint32:
		return v == 0
	case uint64:
		return v == 0
	case float32:
		return v == 0
	case float64:
		return v == 0
	default:
		return false
	}
}

// Cache maps keys to already-produced destination instances within
// one top-level transcoding call. It exists to reuse instances and to
// break reference cycles, more than for speed. It also owns the
// per-call identity tokens handed to sources with no usable business
// key. A Cache is never shared between concurrent transcoding calls.
type Cache struct {
	id      string
	entries map[Key]any
	tokens  map[any]string
	seq     int
}

// NewCache returns an empty per-call cache. The token namespace is
// salted with a fresh uuid so markers produced by two different calls
// never collide when their payloads end up side by side.
func NewCache() *Cache {
	return &Cache{
		id:      uuid.NewString(),
		entries: make(map[Key]any),
		tokens:  make(map[any]string),
	}
}

// Lookup returns the entry for the key, if any. Undefined keys never
// match.
func (c *Cache) Lookup(k Key) (any, bool) {
	if !k.ok {
		return nil, false
	}
	v, ok := c.entries[k]
	return v, ok
}

// Put stores v under the key. Undefined keys are ignored.
func (c *Cache) Put(k Key, v any) {
	if !k.ok {
		return
	}
	c.entries[k] = v
}

// IdentityToken returns the opaque per-call identity token of the
// source instance, assigning one on first use. Sources with reference
// semantics but no comparable value, such as map-shaped records, are
// keyed by their referent address.
func (c *Cache) IdentityToken(src any) string {
	k := tokenKey(src)
	if tok, ok := c.tokens[k]; ok {
		return tok
	}
	c.seq++
	tok := fmt.Sprintf("%s/%d", c.id, c.seq)
	c.tokens[k] = tok
	return tok
}

// tokenKey returns a comparable stand-in for src. Maps, slices and
// funcs cannot be map keys themselves.
func tokenKey(src any) any {
	switch rv := reflect.ValueOf(src); rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Func:
		return rv.Pointer()
	}
	return src
}

// Len returns the number of cached entries.
func (c *Cache) Len() int { return len(c.entries) }

// Params carries adapter-declared extra parameters, such as a store
// session handle, from the caller down to every transform the
// top-level transform recursively invokes.
type Params map[string]any

// Call is the per-invocation state of one top-level transcoding call:
// the identity cache plus the extra parameters. It must not be shared
// between concurrent top-level calls.
type Call struct {
	cache  *Cache
	params Params
}

// NewCall returns a fresh Call with its own Cache. params may be nil
// when no adapter in the transform graph declares extra parameters.
func NewCall(params Params) *Call {
	return &Call{cache: NewCache(), params: params}
}

// Cache returns the identity cache of the call.
func (c *Call) Cache() *Cache { return c.cache }

// Param returns the named extra parameter.
func (c *Call) Param(name string) (any, bool) {
	v, ok := c.params[name]
	return v, ok
}
