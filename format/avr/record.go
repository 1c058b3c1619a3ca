package avr

import "hexrec/hexerr"

// Record is one parsed or constructed AVR word line.
type Record struct {
	WordAddr uint64
	High     byte
	Low      byte

	Before []byte
	After  []byte
}

func (r *Record) Tag() int                { return int(Word) }
func (r *Record) IsData() bool            { return true }
func (r *Record) IsFileTermination() bool { return false }

// Address returns the byte address the word occupies, i.e. WordAddr*2.
func (r *Record) Address() uint64 { return r.WordAddr * 2 }

// Data returns the word's two bytes in little-endian order (low byte
// first), matching how an AVR flash word is laid out in byte-addressed
// memory.
func (r *Record) Data() []byte { return []byte{r.Low, r.High} }

func (r *Record) Count() int       { return 2 }
func (r *Record) Checksum() uint64 { return 0 }

// Validate checks that the word address fits the 24-bit (6-hex-digit)
// field.
func (r *Record) Validate() error {
	if r.WordAddr > 0xFFFFFF {
		return &hexerr.ValidationError{Field: "address", Reason: "exceeds 24-bit AVR word address width"}
	}
	return nil
}

// NewWord returns a record for the word at wordAddr with the given high
// and low bytes.
func NewWord(wordAddr uint64, high, low byte) *Record {
	return &Record{WordAddr: wordAddr, High: high, Low: low}
}
