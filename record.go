// Package hexrec is the facade and shared interface surface for the
// hexadecimal record file toolkit: it defines the polymorphic Record and
// RecordFile interfaces every format/* package implements, the process-wide
// format registry, and the cross-format Load/Convert/Merge operations.
package hexrec

import (
	"io"

	"hexrec/sparseimage"
)

// Record is one parsed line (or, for binary formats, one virtual record)
// of a hex-record file. Concrete format packages implement it with a
// format-specific struct; Tag() returns the format's own numeric tag
// constant, so callers that need format-specific predicates (IsEOF,
// IsExtension, IsStart, IsHeader, ...) type-assert to the concrete type.
type Record interface {
	// Tag returns the on-wire tag value, interpreted per format.
	Tag() int
	// IsData reports whether this record carries user memory content.
	IsData() bool
	// IsFileTermination reports whether this record ends the file.
	IsFileTermination() bool
	// Address is the record's address field; its meaning depends on Tag.
	Address() uint64
	// Data is the record's payload, possibly empty.
	Data() []byte
	// Count is the payload length as stored on the wire.
	Count() int
	// Checksum is the record's derived checksum (0 for checksum-less
	// formats).
	Checksum() uint64
}

// ParseOptions controls parse-time leniency.
type ParseOptions struct {
	// IgnoreErrors demotes checksum and validation errors to warnings
	// collected in ParseResult.Warnings instead of aborting the parse.
	// Bounds and hole errors (raised later, by ApplyRecords) are never
	// demoted.
	IgnoreErrors bool

	// Lax tolerates some formats' non-conformant-but-common input, e.g.
	// SREC files whose data records mix 16/24/32-bit address widths.
	// Strict (Lax == false) is the default.
	Lax bool
}

// ParseResult carries non-fatal diagnostics collected during a Parse call.
type ParseResult struct {
	Warnings []error
}

// RecordFile is an ordered sequence of records representing one hex-record
// image, plus the SparseImage it projects to/from. Implementations keep
// Records() and Memory() synchronized lazily: editing one marks the other
// stale, and the next read of the stale side regenerates it.
type RecordFile interface {
	// Parse reads a byte stream into an ordered record sequence and
	// applies it to Memory(). It is normally called once, right after
	// the RecordFile is constructed via a Descriptor's New/FromMemory
	// factory.
	Parse(r io.Reader, opts ParseOptions) (*ParseResult, error)

	// Records returns the current records, regenerating them from
	// Memory() first if memory edits have made them stale.
	Records() []Record

	// Memory returns the current SparseImage, re-applying Records()
	// first if DiscardMemory has made it stale.
	Memory() *sparseimage.Image

	// ApplyRecords projects Records() onto Memory(), discarding prior
	// memory content.
	ApplyRecords() error

	// UpdateRecords re-derives Records() from Memory().
	UpdateRecords() error

	// Dirty reports whether Memory() has been edited since the last
	// UpdateRecords (i.e. Records() would be out of date).
	Dirty() bool

	// DiscardRecords forces the next Records()/Serialize() call to
	// regenerate records from memory.
	DiscardRecords()

	// DiscardMemory forces the next Memory() call to re-apply records.
	DiscardMemory()

	// MaxDataLen is the cap on data bytes per emitted data record.
	MaxDataLen() int

	// Serialize writes the exact on-wire bytes, auto-refreshing Records()
	// from Memory() first if stale.
	Serialize(w io.Writer) error

	// Print writes a human-readable rendering of the records to w.
	Print(w io.Writer) error

	// View returns a read-only snapshot of [start, end) without marking
	// the file dirty.
	View(start, end uint64) (*sparseimage.Image, error)
}
