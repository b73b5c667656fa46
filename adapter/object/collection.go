package object

import (
	"reflect"

	"github.com/wiz21b/montgomery/schema"
)

// sliceCollection views a []*T struct field. v stays addressable so
// mutations write through to the owning struct.
type sliceCollection struct {
	v reflect.Value
}

func (c *sliceCollection) Kind() schema.ContainerKind { return schema.KindList }

func (c *sliceCollection) Items() ([]any, error) {
	out := make([]any, c.v.Len())
	for i := range out {
		out[i] = c.v.Index(i).Interface()
	}
	return out, nil
}

func (c *sliceCollection) Add(item any) error {
	c.v.Set(reflect.Append(c.v, reflect.ValueOf(item)))
	return nil
}

func (c *sliceCollection) Remove(item any) error {
	for i := 0; i < c.v.Len(); i++ {
		if c.v.Index(i).Interface() == item {
			out := reflect.MakeSlice(c.v.Type(), 0, c.v.Len()-1)
			out = reflect.AppendSlice(out, c.v.Slice(0, i))
			out = reflect.AppendSlice(out, c.v.Slice(i+1, c.v.Len()))
			c.v.Set(out)
			return nil
		}
	}
	return nil
}

func (c *sliceCollection) Clear() error {
	c.v.Set(reflect.MakeSlice(c.v.Type(), 0, 0))
	return nil
}

// setCollection views a map[*T]struct{} struct field.
type setCollection struct {
	v reflect.Value
}

func (c *setCollection) Kind() schema.ContainerKind { return schema.KindSet }

func (c *setCollection) Items() ([]any, error) {
	out := make([]any, 0, c.v.Len())
	for it := c.v.MapRange(); it.Next(); {
		out = append(out, it.Key().Interface())
	}
	return out, nil
}

func (c *setCollection) Add(item any) error {
	if c.v.IsNil() {
		c.v.Set(reflect.MakeMap(c.v.Type()))
	}
	c.v.SetMapIndex(reflect.ValueOf(item), reflect.Zero(c.v.Type().Elem()))
	return nil
}

func (c *setCollection) Remove(item any) error {
	if !c.v.IsNil() {
		c.v.SetMapIndex(reflect.ValueOf(item), reflect.Value{})
	}
	return nil
}

func (c *setCollection) Clear() error {
	c.v.Set(reflect.MakeMap(c.v.Type()))
	return nil
}
