// Package avr implements the AVR flash hex record format:
// "AAAAAA:HHLL\n" — a 6-hex word address, then the high and low bytes of
// the 16-bit word stored there. There is no checksum and no terminator
// record; the stream simply ends.
package avr

// Tag is always Word: AVR has only one record kind.
type Tag int

const Word Tag = 0

func (t Tag) String() string          { return "WORD" }
func (t Tag) IsData() bool            { return true }
func (t Tag) IsFileTermination() bool { return false }
