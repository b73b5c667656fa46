package montgomery

import "fmt"

// Op enumerates what a plan directive asks the walker to do with one
// attribute of an entity type.
type Op int

const (
	// OpSkip leaves the attribute untouched on the destination.
	OpSkip Op = iota
	// OpCopy copies the value of a field or computed property.
	OpCopy
	// OpDelegate walks a relation through another transform.
	OpDelegate
	// OpNestedSequence walks a sequence-valued computed property
	// through another transform, rebuilding the destination sequence.
	OpNestedSequence
)

var opNames = [...]string{
	OpSkip:           "Skip",
	OpCopy:           "Copy",
	OpDelegate:       "Delegate",
	OpNestedSequence: "NestedSequence",
}

// String returns the textual representation of the operation.
func (o Op) String() string {
	if o < OpSkip || int(o) >= len(opNames) {
		return fmt.Sprintf("Op(%d)", int(o))
	}
	return opNames[o]
}

// A Directive tells the walker how to treat one declared attribute of
// an entity type. Fields accept Skip and Copy; relations accept Skip
// and a delegation form; computed properties accept Skip, Copy and
// NestedSequence.
type Directive struct {
	op   Op
	ref  *Transform
	auto bool
}

// Skip returns the directive that leaves the attribute untouched.
func Skip() Directive { return Directive{op: OpSkip} }

// Copy returns the directive that copies the attribute value.
func Copy() Directive { return Directive{op: OpCopy} }

// Delegate returns the directive that walks the relation through the
// given transform.
func Delegate(t *Transform) Directive { return Directive{op: OpDelegate, ref: t} }

// Transcode returns the directive that walks the relation through the
// transform of the relation's target type, resolved when the plan set
// is built.
func Transcode() Directive { return Directive{op: OpDelegate, auto: true} }

// NestedSequence returns the directive that rebuilds a sequence-valued
// computed property through the given transform.
func NestedSequence(t *Transform) Directive { return Directive{op: OpNestedSequence, ref: t} }

// NestedTranscode returns the directive that rebuilds a sequence-valued
// computed property through the transform of the property's target
// type, resolved when the plan set is built.
func NestedTranscode() Directive { return Directive{op: OpNestedSequence, auto: true} }

// Op returns the operation of the directive.
func (d Directive) Op() Op { return d.op }

// Ref returns the explicitly referenced transform, nil for automatic
// resolution.
func (d Directive) Ref() *Transform { return d.ref }

// Auto reports whether the target transform is resolved from the
// relation's target type when the plan set is built.
func (d Directive) Auto() bool { return d.auto }

// A Plan maps attribute names of one entity type to directives. Every
// relation of the type must be covered; fields and computed properties
// default to Copy when absent.
type Plan map[string]Directive
