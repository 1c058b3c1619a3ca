package raw

// Record is the single virtual record a raw file always holds: its whole
// byte payload at its base address.
type Record struct {
	Addr    uint64
	RecData []byte

	Before []byte
	After  []byte
}

func (r *Record) Tag() int                { return int(Payload) }
func (r *Record) IsData() bool            { return true }
func (r *Record) IsFileTermination() bool { return true }
func (r *Record) Address() uint64         { return r.Addr }
func (r *Record) Data() []byte            { return r.RecData }
func (r *Record) Count() int              { return len(r.RecData) }
func (r *Record) Checksum() uint64        { return 0 }

// Validate always succeeds: raw has no structural constraints beyond what
// SparseImage itself enforces.
func (r *Record) Validate() error { return nil }

// NewPayload returns the single payload record for data at addr.
func NewPayload(addr uint64, data []byte) *Record {
	return &Record{Addr: addr, RecData: append([]byte(nil), data...)}
}
