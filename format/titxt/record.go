package titxt

import "hexrec/hexerr"

// Record is one parsed or constructed TI-TXT line.
type Record struct {
	RecKind Kind
	Addr    uint64 // meaningful for AddressKind and DataKind
	RecData []byte // meaningful for DataKind only

	Before []byte
	After  []byte
}

func (r *Record) Tag() int                { return int(r.RecKind) }
func (r *Record) IsData() bool            { return r.RecKind.IsData() }
func (r *Record) IsFileTermination() bool { return r.RecKind.IsFileTermination() }
func (r *Record) Address() uint64         { return r.Addr }
func (r *Record) Data() []byte            { return r.RecData }
func (r *Record) Count() int              { return len(r.RecData) }

// Checksum is always 0: TI-TXT carries no checksum field.
func (r *Record) Checksum() uint64 { return 0 }

// Validate checks the per-record invariants: a 16-bit address field and a
// 16-byte-per-line data cap.
func (r *Record) Validate() error {
	if r.RecKind == AddressKind && r.Addr > 0xFFFF {
		return &hexerr.ValidationError{Field: "address", Reason: "exceeds 16-bit TI-TXT address width"}
	}
	if r.RecKind == DataKind && len(r.RecData) > MaxBytesPerLine {
		return &hexerr.ValidationError{Field: "data", Reason: "exceeds 16-byte TI-TXT line cap"}
	}
	return nil
}

// NewAddress returns an "@XXXX" address record.
func NewAddress(addr uint64) *Record {
	return &Record{RecKind: AddressKind, Addr: addr}
}

// NewData returns a data line record carrying up to MaxBytesPerLine bytes.
func NewData(addr uint64, data []byte) *Record {
	return &Record{RecKind: DataKind, Addr: addr, RecData: append([]byte(nil), data...)}
}

// NewEnd returns the "q" terminator record.
func NewEnd() *Record {
	return &Record{RecKind: EndKind}
}
