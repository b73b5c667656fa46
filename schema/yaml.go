package schema

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// yamlDocument is the on-disk layout of a schema description:
//
//	entities:
//	  - name: Order
//	    keys:
//	      - { name: order_id, type: int }
//	    fields:
//	      - { name: cost, type: float }
//	    one:
//	      - { name: customer, target: Customer }
//	    many:
//	      - { name: parts, target: OrderPart, kind: list }
//	    computed:
//	      - { name: total_cost, type: float }
type yamlDocument struct {
	Entities []yamlEntity `yaml:"entities"`
}

type yamlEntity struct {
	Name     string         `yaml:"name"`
	Keys     []yamlField    `yaml:"keys"`
	Fields   []yamlField    `yaml:"fields"`
	One      []yamlRelation `yaml:"one"`
	Many     []yamlRelation `yaml:"many"`
	Computed []yamlProperty `yaml:"computed"`
}

type yamlField struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type yamlRelation struct {
	Name   string `yaml:"name"`
	Target string `yaml:"target"`
	Kind   string `yaml:"kind"`
}

type yamlProperty struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Sequence string `yaml:"sequence"`
}

func parseFieldType(s string) (FieldType, error) {
	for t := TypeString; t <= TypeBytes; t++ {
		if typeNames[t] == s {
			return t, nil
		}
	}
	return TypeInvalid, fmt.Errorf("unknown base type %q", s)
}

// ParseYAML decodes a YAML schema description and compiles it. It is
// a ready-made Provider alternative for schemas maintained outside of
// Go code.
func ParseYAML(r io.Reader) (*Schema, error) {
	var doc yamlDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("schema: decode yaml: %w", err)
	}
	builders := make([]*Builder, 0, len(doc.Entities))
	for _, e := range doc.Entities {
		b := New(e.Name)
		for _, f := range e.Keys {
			t, err := parseFieldType(f.Type)
			if err != nil {
				return nil, fmt.Errorf("schema: key %s.%s: %w", e.Name, f.Name, err)
			}
			b.Key(f.Name, t)
		}
		for _, f := range e.Fields {
			t, err := parseFieldType(f.Type)
			if err != nil {
				return nil, fmt.Errorf("schema: field %s.%s: %w", e.Name, f.Name, err)
			}
			b.Field(f.Name, t)
		}
		for _, r := range e.One {
			b.One(r.Name, r.Target)
		}
		for _, r := range e.Many {
			switch r.Kind {
			case "", "list":
				b.Many(r.Name, r.Target)
			case "set":
				b.ManySet(r.Name, r.Target)
			default:
				return nil, fmt.Errorf("schema: relation %s.%s: unknown container kind %q", e.Name, r.Name, r.Kind)
			}
		}
		for _, p := range e.Computed {
			switch {
			case p.Sequence != "":
				b.ComputedSequence(p.Name, p.Sequence)
			case p.Type != "":
				t, err := parseFieldType(p.Type)
				if err != nil {
					return nil, fmt.Errorf("schema: computed %s.%s: %w", e.Name, p.Name, err)
				}
				b.Computed(p.Name, t)
			default:
				return nil, fmt.Errorf("schema: computed %s.%s: needs a type or a sequence target", e.Name, p.Name)
			}
		}
		builders = append(builders, b)
	}
	return Compile(builders...)
}
