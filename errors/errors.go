package errors

import (
	"fmt"
	"strconv"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseValidate Phase = "validate" // message model validation
	PhaseEncode   Phase = "encode"   // message to wire bytes
	PhaseDecode   Phase = "decode"   // wire bytes or hex to values
	PhaseMemory   Phase = "memory"   // guest linear memory access
	PhaseLoad     Phase = "load"     // module loading and ABI checks
	PhaseRuntime  Phase = "runtime"  // guest invocation
	PhaseConfig   Phase = "config"   // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidData        Kind = "invalid_data"
	KindInvalidEnum        Kind = "invalid_enum"
	KindInvalidUTF8        Kind = "invalid_utf8"
	KindFieldMissing       Kind = "field_missing"
	KindOverflow           Kind = "overflow"
	KindUnsupportedVariant Kind = "unsupported_variant"
	KindFieldTooLarge      Kind = "field_too_large"
	KindEngineFailure      Kind = "engine_failure"
	KindOutOfBounds        Kind = "out_of_bounds"
	KindUnterminated       Kind = "unterminated_string"
	KindInvalidCharacter   Kind = "invalid_character"
	KindOddLength          Kind = "odd_length"
	KindAllocation         Kind = "allocation"
	KindMissingExport      Kind = "missing_export"
	KindSignature          Kind = "signature_mismatch"
	KindInstantiation      Kind = "instantiation"
	KindTimeout            Kind = "timeout"
	KindClosed             Kind = "closed"
	KindInvalidInput       Kind = "invalid_input"
)

// Error is the structured error type used throughout msgwire
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
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
		b.WriteString(e.PathString())
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// PathString joins the field path with dots.
func (e *Error) PathString() string {
	return strings.Join(e.Path, ".")
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// An empty Phase or Kind on the target matches any value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && e.Phase != t.Phase {
		return false
	}
	if t.Kind != "" && e.Kind != t.Kind {
		return false
	}
	return t.Phase != "" || t.Kind != ""
}

// Match targets for errors.Is. They carry no detail and are never returned.
var (
	ErrValidation         = &Error{Phase: PhaseValidate}
	ErrUnsupportedVariant = &Error{Phase: PhaseEncode, Kind: KindUnsupportedVariant}
	ErrFieldTooLarge      = &Error{Phase: PhaseEncode, Kind: KindFieldTooLarge}
	ErrEngineFailure      = &Error{Phase: PhaseRuntime, Kind: KindEngineFailure}
	ErrOutOfBounds        = &Error{Phase: PhaseMemory, Kind: KindOutOfBounds}
	ErrUnterminated       = &Error{Phase: PhaseMemory, Kind: KindUnterminated}
	ErrInvalidCharacter   = &Error{Phase: PhaseDecode, Kind: KindInvalidCharacter}
	ErrOddLength          = &Error{Phase: PhaseDecode, Kind: KindOddLength}
	ErrDecode             = &Error{Phase: PhaseDecode}
	ErrMemory             = &Error{Phase: PhaseMemory}
	ErrLoad               = &Error{Phase: PhaseLoad}
	ErrConfig             = &Error{Phase: PhaseConfig}
)

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

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
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

// FieldPath builds a path from mixed field names and indexes.
func FieldPath(parts ...any) []string {
	path := make([]string, 0, len(parts))
	for _, p := range parts {
		switch v := p.(type) {
		case string:
			path = append(path, v)
		case int:
			path = append(path, strconv.Itoa(v))
		default:
			path = append(path, fmt.Sprint(v))
		}
	}
	return path
}

// Validation constructors

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// InvalidEnum creates an invalid enum value error
func InvalidEnum(phase Phase, path []string, value any, enumType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidEnum,
		Path:   path,
		Detail: fmt.Sprintf("invalid enum value %v for %s", value, enumType),
		Value:  value,
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(phase Phase, path []string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Path:   path,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// FieldMissing creates a missing field error
func FieldMissing(phase Phase, path []string, fieldName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldMissing,
		Path:   path,
		Detail: fmt.Sprintf("required field %q not found", fieldName),
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, targetType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		Detail: fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:  value,
	}
}

// Encoding constructors

// UnsupportedVariant creates an error for an element with no wire mapping
func UnsupportedVariant(path []string, goType string) *Error {
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindUnsupportedVariant,
		Path:   path,
		Detail: fmt.Sprintf("no wire mapping for element type %s", goType),
		Value:  goType,
	}
}

// FieldTooLarge creates an error for a payload exceeding the length prefix limit
func FieldTooLarge(path []string, size, limit int) *Error {
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindFieldTooLarge,
		Path:   path,
		Detail: fmt.Sprintf("size %d exceeds limit %d", size, limit),
		Value:  size,
	}
}

// EngineFailure creates an error for a guest engine that produced no result
func EngineFailure(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindEngineFailure,
		Detail: detail,
		Cause:  cause,
	}
}

// Memory constructors

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, offset, length uint64, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("range [%d, %d) outside memory of %d bytes", offset, offset+length, size),
		Value:  offset,
	}
}

// Unterminated creates an error for a string without NUL terminator
func Unterminated(ptr, size uint32) *Error {
	return &Error{
		Phase:  PhaseMemory,
		Kind:   KindUnterminated,
		Detail: fmt.Sprintf("no NUL terminator between %d and end of memory (%d bytes)", ptr, size),
		Value:  ptr,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(size uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseMemory,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes", size),
		Cause:  cause,
	}
}

// Decode constructors

// InvalidCharacter creates a hex decode error for a non-hex byte
func InvalidCharacter(offset int, c byte) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindInvalidCharacter,
		Detail: fmt.Sprintf("invalid hex character %q at offset %d", c, offset),
		Value:  offset,
	}
}

// OddLength creates a hex decode error for odd input length
func OddLength(length int) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindOddLength,
		Detail: fmt.Sprintf("odd hex length %d", length),
		Value:  length,
	}
}

// Host constructors

// MissingExport creates an error for a guest export the host needs
func MissingExport(name string) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindMissingExport,
		Detail: fmt.Sprintf("module does not export %q", name),
	}
}

// Signature creates an error for an export with the wrong core signature
func Signature(name, want, got string) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindSignature,
		Path:   []string{name},
		Detail: fmt.Sprintf("want %s, got %s", want, got),
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Timeout creates an invoke timeout error
func Timeout(name string, cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindTimeout,
		Detail: fmt.Sprintf("call %s exceeded deadline", name),
		Cause:  cause,
	}
}

// Closed creates an error for use after close
func Closed(what string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s is closed", what),
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
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

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
