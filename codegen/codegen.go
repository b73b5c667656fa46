// Package codegen emits the Go struct declarations backing the object
// and sqlstore representations of a schema, one struct per entity
// type, tagged for attribute binding.
package codegen

import (
	"fmt"
	"io"

	"github.com/dave/jennifer/jen"
	"github.com/go-openapi/inflect"

	"github.com/wiz21b/montgomery/schema"
)

var rules = inflect.NewDefaultRuleset()

func goType(t schema.FieldType) (*jen.Statement, error) {
	switch t {
	case schema.TypeString:
		return jen.String(), nil
	case schema.TypeInt:
		return jen.Int64(), nil
	case schema.TypeFloat:
		return jen.Float64(), nil
	case schema.TypeBool:
		return jen.Bool(), nil
	case schema.TypeTime:
		return jen.Qual("time", "Time"), nil
	case schema.TypeBytes:
		return jen.Index().Byte(), nil
	default:
		return nil, fmt.Errorf("codegen: no Go type for %s", t)
	}
}

// Generate writes the package pkg holding one struct per entity type
// of the schema. Fields become tagged scalar fields, single relations
// become pointers, list collections become pointer slices and set
// collections become pointer-keyed maps, matching what the object and
// sqlstore adapters expect.
func Generate(w io.Writer, pkg string, sch *schema.Schema) error {
	f := jen.NewFile(pkg)
	f.HeaderComment("Code generated by montgomery. DO NOT EDIT.")
	for _, t := range sch.Types() {
		var fields []jen.Code
		for _, fd := range append(t.KeyFields(), t.Fields()...) {
			typ, err := goType(fd.Type)
			if err != nil {
				return err
			}
			fields = append(fields, jen.Id(rules.Camelize(fd.Name)).
				Add(typ).
				Tag(map[string]string{"xfer": fd.Name}))
		}
		for _, r := range t.Singles() {
			fields = append(fields, jen.Id(rules.Camelize(r.Name)).
				Op("*").Id(r.Target.Name()).
				Tag(map[string]string{"xfer": r.Name}))
		}
		for _, r := range t.Collections() {
			stmt := jen.Id(rules.Camelize(r.Name))
			switch r.Kind {
			case schema.KindSet:
				stmt = stmt.Map(jen.Op("*").Id(r.Target.Name())).Struct()
			default:
				stmt = stmt.Index().Op("*").Id(r.Target.Name())
			}
			fields = append(fields, stmt.Tag(map[string]string{"xfer": r.Name}))
		}
		for _, p := range t.ComputedProperties() {
			stmt := jen.Id(rules.Camelize(p.Name))
			if p.Sequence != nil {
				stmt = stmt.Index().Op("*").Id(p.Sequence.Name())
			} else {
				typ, err := goType(p.Type)
				if err != nil {
					return err
				}
				stmt = stmt.Add(typ)
			}
			fields = append(fields, stmt.Tag(map[string]string{"xfer": p.Name}))
		}
		f.Commentf("%s is the %s entity.", t.Name(), t.Label())
		f.Type().Id(t.Name()).Struct(fields...)
	}
	return f.Render(w)
}
