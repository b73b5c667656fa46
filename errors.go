package montgomery

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wiz21b/montgomery/schema"
)

// Standard sentinel errors for the two fatal error families.
var (
	// ErrConfig is matched by every synthesis-time configuration error:
	// missing directives, duplicate transforms, undeclared attributes
	// and unresolved type dependencies.
	ErrConfig = errors.New("montgomery: invalid configuration")

	// ErrRepresentation is matched by invocation-time representation
	// errors: adapter invariant violations and unrecognized collection
	// container kinds.
	ErrRepresentation = errors.New("montgomery: representation error")
)

// MissingDirectiveError reports a declared relation with no directive
// in the treatment plan. Absence is a configuration error, never an
// implicit skip.
type MissingDirectiveError struct {
	Type     string
	Relation string
}

// Error returns the error string.
func (e *MissingDirectiveError) Error() string {
	return fmt.Sprintf("montgomery: no directive for relation %s.%s; every relation needs an explicit directive (Skip it if unwanted)", e.Type, e.Relation)
}

// Is reports whether the target matches the configuration sentinel.
func (e *MissingDirectiveError) Is(target error) bool {
	return target == ErrConfig
}

// IsMissingDirective reports whether the error is a MissingDirectiveError.
func IsMissingDirective(err error) bool {
	var e *MissingDirectiveError
	return errors.As(err, &e)
}

// UndeclaredAttributeError reports a plan directive naming something
// that is not a field, relation or computed property of the type.
type UndeclaredAttributeError struct {
	Type      string
	Attribute string
	Known     []string
}

// Error returns the error string.
func (e *UndeclaredAttributeError) Error() string {
	return fmt.Sprintf("montgomery: %s.%s is not declared; known attributes: %s",
		e.Type, e.Attribute, strings.Join(e.Known, ", "))
}

// Is reports whether the target matches the configuration sentinel.
func (e *UndeclaredAttributeError) Is(target error) bool {
	return target == ErrConfig
}

// DirectiveError reports a directive that is declared but unusable:
// wrong directive kind for an attribute, or a delegate with no
// transform bound.
type DirectiveError struct {
	Type      string
	Attribute string
	Message   string
}

// Error returns the error string.
func (e *DirectiveError) Error() string {
	return fmt.Sprintf("montgomery: directive for %s.%s: %s", e.Type, e.Attribute, e.Message)
}

// Is reports whether the target matches the configuration sentinel.
func (e *DirectiveError) Is(target error) bool {
	return target == ErrConfig
}

// DuplicateTransformError reports two transforms registered for the
// same (entity type, source representation, destination
// representation, series) identity.
type DuplicateTransformError struct {
	Type   string
	Source string
	Dest   string
	Series string
}

// Error returns the error string.
func (e *DuplicateTransformError) Error() string {
	msg := fmt.Sprintf("montgomery: transform %s -> %s for type %s defined twice", e.Source, e.Dest, e.Type)
	if e.Series != "" {
		msg += fmt.Sprintf(" in series %q", e.Series)
	}
	return msg + "; qualify one of them with a series name"
}

// Is reports whether the target matches the configuration sentinel.
func (e *DuplicateTransformError) Is(target error) bool {
	return target == ErrConfig
}

// IsDuplicateTransform reports whether the error is a DuplicateTransformError.
func IsDuplicateTransform(err error) bool {
	var e *DuplicateTransformError
	return errors.As(err, &e)
}

// MissingDependency names one relation whose target type has no
// transform the scheduler could resolve.
type MissingDependency struct {
	Type     string
	Relation string
	Target   string
}

func (m MissingDependency) String() string {
	return fmt.Sprintf("%s.%s of type %s", m.Type, m.Relation, m.Target)
}

// DependencyError reports every unresolved dependency left after a
// scheduling pass made no progress. The whole unsatisfied set is
// reported at once.
type DependencyError struct {
	Series  string
	Missing []MissingDependency
}

// Error returns the error string.
func (e *DependencyError) Error() string {
	deps := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		deps[i] = m.String()
	}
	msg := fmt.Sprintf("montgomery: cannot resolve dependencies: %s", strings.Join(deps, ", "))
	if e.Series != "" {
		msg += fmt.Sprintf(" (while building series %q)", e.Series)
	}
	return msg + "; declare the target types or skip the relations"
}

// Is reports whether the target matches the configuration sentinel.
func (e *DependencyError) Is(target error) bool {
	return target == ErrConfig
}

// IsDependencyError reports whether the error is a DependencyError.
func IsDependencyError(err error) bool {
	var e *DependencyError
	return errors.As(err, &e)
}

// CollectionKindError reports a collection relation whose container
// kind the reconciler does not recognize.
type CollectionKindError struct {
	Type     string
	Relation string
	Target   string
	Kind     schema.ContainerKind
}

// Error returns the error string.
func (e *CollectionKindError) Error() string {
	return fmt.Sprintf("montgomery: unrecognized container kind %s for relation %s.%s of type %s",
		e.Kind, e.Type, e.Relation, e.Target)
}

// Is reports whether the target matches the representation sentinel.
func (e *CollectionKindError) Is(target error) bool {
	return target == ErrRepresentation
}

// AdapterError wraps a representation-level failure with the adapter,
// entity type and attribute involved.
type AdapterError struct {
	Rep       string
	Type      string
	Op        string
	Attribute string
	Err       error
}

// Error returns the error string.
func (e *AdapterError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "montgomery: %s adapter: %s", e.Rep, e.Op)
	if e.Type != "" {
		fmt.Fprintf(&b, " on %s", e.Type)
		if e.Attribute != "" {
			fmt.Fprintf(&b, ".%s", e.Attribute)
		}
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *AdapterError) Unwrap() error {
	return e.Err
}

// Is reports whether the target matches the representation sentinel.
func (e *AdapterError) Is(target error) bool {
	return target == ErrRepresentation
}

// NewAdapterError wraps err with adapter context.
func NewAdapterError(rep, typeName, op, attribute string, err error) *AdapterError {
	return &AdapterError{Rep: rep, Type: typeName, Op: op, Attribute: attribute, Err: err}
}

// MissingParamError reports an adapter-declared extra parameter the
// caller did not supply on the Call.
type MissingParamError struct {
	Transform string
	Param     string
}

// Error returns the error string.
func (e *MissingParamError) Error() string {
	return fmt.Sprintf("montgomery: transform %s requires parameter %q on the call", e.Transform, e.Param)
}

// Is reports whether the target matches the configuration sentinel.
func (e *MissingParamError) Is(target error) bool {
	return target == ErrConfig
}

// IsConfigError reports whether the error belongs to the
// configuration family.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfig)
}

// IsRepresentationError reports whether the error belongs to the
// representation family.
func IsRepresentationError(err error) bool {
	return errors.Is(err, ErrRepresentation)
}
