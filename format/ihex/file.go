package ihex

import (
	"bufio"
	"encoding/hex"
	"io"
	"io/ioutil"

	"hexrec/hexerr"
	"hexrec/sparseimage"

	"hexrec"
)

// File is an Intel HEX image: an ordered record sequence plus the
// SparseImage it projects to/from.
type File struct {
	*hexrec.EditOps

	records []*Record
	mem     *sparseimage.Image

	maxDataLen int

	startAddress   uint32
	hasStart       bool
	startIsLinear  bool

	recordsStale bool // Records() needs regen from mem
	memoryStale  bool // Memory() needs regen from records
}

// New returns an empty Intel HEX file with the default 255-byte record
// cap.
func New() *File {
	f := &File{mem: sparseimage.New(), maxDataLen: MaxDataBytes}
	f.EditOps = hexrec.NewEditOps(f.mem, &f.recordsStale)
	return f
}

// FromMemory returns an Intel HEX file seeded with a copy of mem.
func FromMemory(mem *sparseimage.Image) *File {
	f := New()
	f.mem = mem.Copy()
	f.EditOps = hexrec.NewEditOps(f.mem, &f.recordsStale)
	f.recordsStale = true
	return f
}

// FromBlocks returns an Intel HEX file seeded with the given blocks.
func FromBlocks(blocks []sparseimage.Block) *File {
	mem := sparseimage.New()
	for _, b := range blocks {
		mem.Write(b.Start, b.Data)
	}
	return FromMemory(mem)
}

// FromBytes returns an Intel HEX file holding buf as one block at offset.
func FromBytes(buf []byte, offset uint64) *File {
	return FromMemory(sparseimage.FromBytes(buf, offset))
}

// Copy returns a deep copy of f.
func (f *File) Copy() *File {
	out := FromMemory(f.mem)
	out.maxDataLen = f.maxDataLen
	out.startAddress, out.hasStart, out.startIsLinear = f.startAddress, f.hasStart, f.startIsLinear
	return out
}

func (f *File) MaxDataLen() int      { return f.maxDataLen }
func (f *File) SetMaxDataLen(n int)  { f.maxDataLen = n }
func (f *File) Dirty() bool          { return f.recordsStale }
func (f *File) DiscardRecords()      { f.recordsStale = true }
func (f *File) DiscardMemory()       { f.memoryStale = true }

func (f *File) Memory() *sparseimage.Image {
	if f.memoryStale {
		f.ApplyRecords()
	}
	return f.mem
}

func (f *File) Records() []hexrec.Record {
	if f.recordsStale {
		f.UpdateRecords()
	}
	out := make([]hexrec.Record, len(f.records))
	for i, r := range f.records {
		out[i] = r
	}
	return out
}

// Parse reads buf as an Intel HEX stream, populating Records() and
// Memory().
func (f *File) Parse(r io.Reader, opts hexrec.ParseOptions) (*hexrec.ParseResult, error) {
	buf, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, &hexerr.IOError{Err: err}
	}
	records, warnings, err := parseAll(buf, opts.IgnoreErrors)
	if err != nil {
		return nil, err
	}
	f.records = records
	f.recordsStale = false
	if err := f.ApplyRecords(); err != nil {
		return nil, err
	}
	return &hexrec.ParseResult{Warnings: warnings}, nil
}

// ApplyRecords projects Records() onto Memory(), discarding prior content.
func (f *File) ApplyRecords() error {
	f.mem.Reset()
	var base uint64
	var eofSeen bool
	f.hasStart = false

	for _, r := range f.records {
		switch {
		case r.RecTag == DATA:
			if err := f.mem.Write(base+r.Addr, r.RecData); err != nil {
				return err
			}
		case r.RecTag == ELA:
			base = uint64(r.RecData[0])<<24 | uint64(r.RecData[1])<<16
		case r.RecTag == ESA:
			seg := uint64(r.RecData[0])<<8 | uint64(r.RecData[1])
			base = seg << 4
		case r.RecTag == SSA:
			f.startAddress = uint32(r.RecData[0])<<24 | uint32(r.RecData[1])<<16 |
				uint32(r.RecData[2])<<8 | uint32(r.RecData[3])
			f.startIsLinear = false
			f.hasStart = true
		case r.RecTag == SLA:
			f.startAddress = uint32(r.RecData[0])<<24 | uint32(r.RecData[1])<<16 |
				uint32(r.RecData[2])<<8 | uint32(r.RecData[3])
			f.startIsLinear = true
			f.hasStart = true
		case r.RecTag == EOF:
			eofSeen = true
		}
	}
	if !eofSeen {
		return &hexerr.ValidationError{Field: "records", Reason: "missing EOF record"}
	}
	f.memoryStale = false
	return nil
}

// UpdateRecords re-derives Records() from Memory(), splitting each block
// into chunks no larger than MaxDataLen and emitting a fresh
// ExtendedLinearAddress record whenever the chunk's upper 16 bits change.
func (f *File) UpdateRecords() error {
	var records []*Record
	var base uint64 // 0: no leading ELA is emitted while the address stays below 0x10000
	for _, b := range f.mem.Blocks() {
		for off := 0; off < len(b.Data); off += f.maxDataLen {
			end := off + f.maxDataLen
			if end > len(b.Data) {
				end = len(b.Data)
			}
			addr := b.Start + uint64(off)
			if addr > 0xFFFFFFFF {
				return &hexerr.ValidationError{Field: "address", Reason: "exceeds 32-bit Intel HEX address space"}
			}
			hi := addr &^ 0xFFFF
			if hi != base {
				records = append(records, NewExtendedLinearAddress(uint16(hi>>16)))
				base = hi
			}
			records = append(records, NewData(addr&0xFFFF, b.Data[off:end]))
		}
	}
	if f.hasStart {
		if f.startIsLinear {
			records = append(records, NewStartLinearAddress(f.startAddress))
		} else {
			records = append(records, &Record{
				RecTag: SSA,
				RecData: []byte{
					byte(f.startAddress >> 24), byte(f.startAddress >> 16),
					byte(f.startAddress >> 8), byte(f.startAddress),
				},
			})
		}
	}
	records = append(records, NewEOF())
	f.records = records
	f.recordsStale = false
	return nil
}

// Serialize writes the exact on-wire bytes of Records(), auto-refreshing
// them from Memory() first if stale.
func (f *File) Serialize(w io.Writer) error {
	if f.recordsStale {
		if err := f.UpdateRecords(); err != nil {
			return err
		}
	}
	bw := bufio.NewWriter(w)
	for _, r := range f.records {
		if err := writeRecord(bw, r); err != nil {
			return &hexerr.IOError{Err: err}
		}
	}
	return bw.Flush()
}

func writeRecord(w io.Writer, r *Record) error {
	if _, err := w.Write(r.Before); err != nil {
		return err
	}
	count := byte(len(r.RecData))
	cksum := checksum(r.RecTag, r.Addr, r.RecData)
	raw := make([]byte, 0, 5+len(r.RecData))
	raw = append(raw, count, byte(r.Addr>>8), byte(r.Addr), byte(r.RecTag))
	raw = append(raw, r.RecData...)
	raw = append(raw, cksum)

	if _, err := io.WriteString(w, ":"); err != nil {
		return err
	}
	enc := make([]byte, hex.EncodedLen(len(raw)))
	hex.Encode(enc, raw)
	upper := make([]byte, len(enc))
	for i, c := range enc {
		if c >= 'a' && c <= 'f' {
			upper[i] = c - ('a' - 'A')
		} else {
			upper[i] = c
		}
	}
	if _, err := w.Write(upper); err != nil {
		return err
	}
	term := r.After
	if term == nil {
		term = []byte("\r\n")
	}
	_, err := w.Write(term)
	return err
}

// Print writes a hex dump of Memory() to w.
func (f *File) Print(w io.Writer) error {
	return hexrec.PrintImage(w, f.Memory())
}

// View returns a read-only snapshot of [start, end).
func (f *File) View(start, end uint64) (*sparseimage.Image, error) {
	return f.Memory().Extract(start, end)
}

func init() {
	hexrec.Register(hexrec.Descriptor{
		Name:       "ihex",
		Extensions: []string{".hex", ".ihex", ".ihx"},
		New:        func() hexrec.RecordFile { return New() },
		FromMemory: func(mem *sparseimage.Image) hexrec.RecordFile { return FromMemory(mem) },
	})
}
