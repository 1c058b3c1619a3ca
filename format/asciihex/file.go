package asciihex

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"io/ioutil"

	"hexrec/hexerr"
	"hexrec/sparseimage"

	"hexrec"
)

// File is an ASCII-hex image: an ordered token sequence plus the
// SparseImage it projects to/from.
type File struct {
	*hexrec.EditOps

	records []*Record
	mem     *sparseimage.Image

	maxDataLen  int
	emitChecksum bool

	recordsStale bool
	memoryStale  bool
}

// New returns an empty ASCII-hex file with a 16-byte data-run cap and no
// checksum blocks emitted.
func New() *File {
	f := &File{mem: sparseimage.New(), maxDataLen: 16}
	f.EditOps = hexrec.NewEditOps(f.mem, &f.recordsStale)
	return f
}

// FromMemory returns an ASCII-hex file seeded with a copy of mem.
func FromMemory(mem *sparseimage.Image) *File {
	f := New()
	f.mem = mem.Copy()
	f.EditOps = hexrec.NewEditOps(f.mem, &f.recordsStale)
	f.recordsStale = true
	return f
}

// FromBlocks returns an ASCII-hex file seeded with the given blocks.
func FromBlocks(blocks []sparseimage.Block) *File {
	mem := sparseimage.New()
	for _, b := range blocks {
		mem.Write(b.Start, b.Data)
	}
	return FromMemory(mem)
}

// FromBytes returns an ASCII-hex file holding buf as one block at offset.
func FromBytes(buf []byte, offset uint64) *File {
	return FromMemory(sparseimage.FromBytes(buf, offset))
}

// Copy returns a deep copy of f.
func (f *File) Copy() *File {
	out := FromMemory(f.mem)
	out.maxDataLen = f.maxDataLen
	out.emitChecksum = f.emitChecksum
	return out
}

// SetEmitChecksum controls whether UpdateRecords appends a "$Sxx," block
// after each data run.
func (f *File) SetEmitChecksum(on bool) { f.emitChecksum = on }

func (f *File) MaxDataLen() int     { return f.maxDataLen }
func (f *File) SetMaxDataLen(n int) { f.maxDataLen = n }
func (f *File) Dirty() bool         { return f.recordsStale }
func (f *File) DiscardRecords()     { f.recordsStale = true }
func (f *File) DiscardMemory()      { f.memoryStale = true }

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

// Parse reads r as an ASCII-hex stream, populating Records() and Memory().
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
	var eofSeen bool
	for _, r := range f.records {
		switch r.RecKind {
		case DataKind:
			if err := f.mem.Write(r.Addr, r.RecData); err != nil {
				return err
			}
		case EndKind:
			eofSeen = true
		}
	}
	if !eofSeen {
		return &hexerr.ValidationError{Field: "records", Reason: "missing ETX terminator"}
	}
	f.memoryStale = false
	return nil
}

// UpdateRecords re-derives Records() from Memory(): an address directive
// per block, data runs chunked to MaxDataLen (with an optional checksum
// block per run), then the ETX terminator.
func (f *File) UpdateRecords() error {
	var records []*Record
	for _, b := range f.mem.Blocks() {
		records = append(records, NewAddress(b.Start))
		for off := 0; off < len(b.Data); off += f.maxDataLen {
			end := off + f.maxDataLen
			if end > len(b.Data) {
				end = len(b.Data)
			}
			chunk := b.Data[off:end]
			records = append(records, NewData(b.Start+uint64(off), chunk))
			if f.emitChecksum {
				var sum byte
				for _, d := range chunk {
					sum += d
				}
				records = append(records, NewChecksum(byte(0x100-int(sum))))
			}
		}
	}
	records = append(records, NewEnd())
	for i, r := range records {
		if i > 0 {
			r.Before = []byte(" ")
		}
	}
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
	switch r.RecKind {
	case AddressKind:
		if _, err := fmt.Fprintf(w, "$A%04X,", r.Addr); err != nil {
			return err
		}
	case ChecksumKind:
		if _, err := fmt.Fprintf(w, "$S%02X,", r.CheckVal); err != nil {
			return err
		}
	case DataKind:
		enc := make([]byte, hex.EncodedLen(len(r.RecData)))
		hex.Encode(enc, r.RecData)
		for i, c := range enc {
			if c >= 'a' && c <= 'f' {
				enc[i] = c - ('a' - 'A')
			}
		}
		if _, err := w.Write(enc); err != nil {
			return err
		}
	case EndKind:
		if _, err := w.Write([]byte{etx}); err != nil {
			return err
		}
	}
	_, err := w.Write(r.After)
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
		Name:       "asciihex",
		Extensions: []string{".ahx"},
		New:        func() hexrec.RecordFile { return New() },
		FromMemory: func(mem *sparseimage.Image) hexrec.RecordFile { return FromMemory(mem) },
	})
}
