// Package raw implements the trivial raw-binary format: the whole file is
// the byte payload, loaded at a configurable base address with no framing,
// tags, or checksum.
package raw

// Tag is always Payload: raw has only one record kind.
type Tag int

const Payload Tag = 0

func (t Tag) String() string          { return "PAYLOAD" }
func (t Tag) IsData() bool            { return true }
func (t Tag) IsFileTermination() bool { return true }
