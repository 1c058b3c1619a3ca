// Package hexerr defines the error taxonomy shared by the sparse image and
// record-format packages. Every exported type here implements error. The
// format packages return these values unwrapped; the hexrec facade wraps
// some of them with golang.org/x/xerrors to add context, and
// errors.As/xerrors.As recovers the concrete type either way.
package hexerr

import "fmt"

// ParseError reports a malformed record at a given line of the input.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// ChecksumError is a ParseError specialization for a checksum mismatch. It
// is dismissible: callers may demote it to a warning via ParseOptions.
type ChecksumError struct {
	*ParseError
	Expected uint64
	Actual   uint64
}

func NewChecksumError(line int, expected, actual uint64) *ChecksumError {
	return &ChecksumError{
		ParseError: &ParseError{
			Line:   line,
			Reason: fmt.Sprintf("checksum mismatch: expected %#x, got %#x", expected, actual),
		},
		Expected: expected,
		Actual:   actual,
	}
}

// ValidationError reports a record invariant violation unrelated to parsing
// (e.g. an address width or data length that exceeds the format's limit).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// BoundsError reports a write or shift that would leave the bounded range of
// a SparseImage.
type BoundsError struct {
	Start, End uint64
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("address range [%#x, %#x) is out of bounds", e.Start, e.End)
}

// HoleError reports a read of an unpopulated address performed without a
// fill value.
type HoleError struct {
	Address uint64
}

func (e *HoleError) Error() string {
	return fmt.Sprintf("address %#x is a hole", e.Address)
}

// FormatError reports an unknown format name, or ambiguous content that no
// registered format's parser accepted.
type FormatError struct {
	Name   string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("format error: %s", e.Reason)
	}
	return fmt.Sprintf("format %q: %s", e.Name, e.Reason)
}

// NotFoundError reports that Find found no occurrence of a pattern.
type NotFoundError struct {
	Pattern []byte
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("pattern % x not found", e.Pattern)
}

// ValueError reports ill-formed caller-supplied arguments, e.g. start > end.
type ValueError struct {
	Reason string
}

func (e *ValueError) Error() string {
	return e.Reason
}

// IOError wraps an underlying byte-stream failure.
type IOError struct {
	Err error
}

func (e *IOError) Error() string  { return fmt.Sprintf("io error: %v", e.Err) }
func (e *IOError) Unwrap() error  { return e.Err }
