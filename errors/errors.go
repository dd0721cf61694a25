package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseComment    Phase = "comment"    // top-level composite
	PhaseSpannables Phase = "spannables" // spannable array
	PhaseSpannable  Phase = "spannable"  // single variant construction
	PhaseHost       Phase = "host"       // inside a host runtime
	PhaseDecode     Phase = "decode"     // parsed comment input
	PhaseLift       Phase = "lift"       // reading a graph back out of a host
	PhaseConfig     Phase = "config"     // option validation
)

// Kind categorizes the error
type Kind string

const (
	KindTypeResolution   Kind = "type_resolution"
	KindInstantiation    Kind = "instantiation"
	KindFieldAssignment  Kind = "field_assignment"
	KindStringAllocation Kind = "string_allocation"
	KindArrayAllocation  Kind = "array_allocation"
	KindElementStore     Kind = "element_store"
	KindOutOfBounds      Kind = "out_of_bounds"
	KindInvalidInput     Kind = "invalid_input"
	KindInvalidData      Kind = "invalid_data"
	KindInvalidVariant   Kind = "invalid_variant"
	KindNotFound         Kind = "not_found"
	KindTypeMismatch     Kind = "type_mismatch"
	KindAllocation       Kind = "allocation"
	KindClosed           Kind = "closed"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Type   string // host type name
	Member string // field name or constructor descriptor
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Type != "" || e.Member != "" {
		b.WriteString(": ")
		if e.Type != "" && e.Member != "" {
			b.WriteString("type ")
			b.WriteString(e.Type)
			b.WriteString(", member ")
			b.WriteString(e.Member)
		} else if e.Type != "" {
			b.WriteString("type ")
			b.WriteString(e.Type)
		} else {
			b.WriteString("member ")
			b.WriteString(e.Member)
		}
	}

	if e.Detail != "" {
		if e.Type != "" || e.Member != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsKind reports whether any *Error in err's chain has the given kind,
// regardless of phase.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}

// KindOf returns the kind of the outermost *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the element path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Type sets the host type name
func (b *Builder) Type(t string) *Builder {
	b.err.Type = t
	return b
}

// Member sets the field name or constructor descriptor
func (b *Builder) Member(m string) *Builder {
	b.err.Member = m
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for the boundary failure taxonomy

// TypeResolution reports a host type name that could not be found.
func TypeResolution(phase Phase, path []string, typeName string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeResolution,
		Path:   path,
		Type:   typeName,
		Detail: "host type not found",
		Cause:  cause,
	}
}

// Instantiation reports a constructor that could not be invoked.
func Instantiation(phase Phase, path []string, typeName, signature string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInstantiation,
		Path:   path,
		Type:   typeName,
		Member: signature,
		Detail: "constructor failed",
		Cause:  cause,
	}
}

// FieldAssignment reports a field write rejected by the host.
func FieldAssignment(phase Phase, path []string, typeName, field, descriptor string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldAssignment,
		Path:   path,
		Type:   typeName,
		Member: field,
		Detail: fmt.Sprintf("set field with descriptor %s", descriptor),
		Cause:  cause,
	}
}

// StringAllocation reports a host string that could not be allocated.
func StringAllocation(phase Phase, path []string, length int, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindStringAllocation,
		Path:   path,
		Detail: fmt.Sprintf("allocate string of %d bytes", length),
		Value:  length,
		Cause:  cause,
	}
}

// ArrayAllocation reports a host array that could not be allocated.
func ArrayAllocation(phase Phase, path []string, elemType string, length int, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindArrayAllocation,
		Path:   path,
		Type:   elemType,
		Detail: fmt.Sprintf("allocate array of %d elements", length),
		Value:  length,
		Cause:  cause,
	}
}

// ElementStore reports an array store rejected by the host.
func ElementStore(phase Phase, path []string, index int, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindElementStore,
		Path:   path,
		Detail: fmt.Sprintf("store element %d", index),
		Value:  index,
		Cause:  cause,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// TypeMismatch reports a value whose host type does not fit the expected descriptor.
func TypeMismatch(phase Phase, path []string, want, got string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		Type:   want,
		Detail: fmt.Sprintf("got %s", got),
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// InvalidDiscriminant creates an invalid discriminant error for variants
func InvalidDiscriminant(phase Phase, path []string, disc uint32, maxValid uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidVariant,
		Path:   path,
		Detail: fmt.Sprintf("discriminant %d out of range (max %d)", disc, maxValid),
		Value:  disc,
	}
}

// Closed reports use of a released host runtime.
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s is closed", what),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
