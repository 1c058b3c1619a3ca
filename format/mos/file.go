package mos

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

// File is a MOS image: an ordered record sequence plus the SparseImage it
// projects to/from.
type File struct {
	*hexrec.EditOps

	records []*Record
	mem     *sparseimage.Image

	maxDataLen int

	recordsStale bool
	memoryStale  bool
}

// New returns an empty MOS file with the default 255-byte record cap.
func New() *File {
	f := &File{mem: sparseimage.New(), maxDataLen: MaxDataBytes}
	f.EditOps = hexrec.NewEditOps(f.mem, &f.recordsStale)
	return f
}

// FromMemory returns a MOS file seeded with a copy of mem.
func FromMemory(mem *sparseimage.Image) *File {
	f := New()
	f.mem = mem.Copy()
	f.EditOps = hexrec.NewEditOps(f.mem, &f.recordsStale)
	f.recordsStale = true
	return f
}

// FromBlocks returns a MOS file seeded with the given blocks.
func FromBlocks(blocks []sparseimage.Block) *File {
	mem := sparseimage.New()
	for _, b := range blocks {
		mem.Write(b.Start, b.Data)
	}
	return FromMemory(mem)
}

// FromBytes returns a MOS file holding buf as one block at offset.
func FromBytes(buf []byte, offset uint64) *File {
	return FromMemory(sparseimage.FromBytes(buf, offset))
}

// Copy returns a deep copy of f.
func (f *File) Copy() *File {
	out := FromMemory(f.mem)
	out.maxDataLen = f.maxDataLen
	return out
}

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

// Parse reads r as a MOS stream, populating Records() and Memory().
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
		switch r.RecTag {
		case DataTag:
			if err := f.mem.Write(r.Addr, r.RecData); err != nil {
				return err
			}
		case EOFTag:
			eofSeen = true
		}
	}
	if !eofSeen {
		return &hexerr.ValidationError{Field: "records", Reason: "missing EOF record"}
	}
	f.memoryStale = false
	return nil
}

// UpdateRecords re-derives Records() from Memory(): data lines chunked to
// MaxDataLen, followed by an EOF line carrying the data-record count.
func (f *File) UpdateRecords() error {
	var records []*Record
	for _, b := range f.mem.Blocks() {
		for off := 0; off < len(b.Data); off += f.maxDataLen {
			end := off + f.maxDataLen
			if end > len(b.Data) {
				end = len(b.Data)
			}
			addr := b.Start + uint64(off)
			if addr > 0xFFFF {
				return &hexerr.ValidationError{Field: "address", Reason: "exceeds 16-bit MOS address width"}
			}
			records = append(records, NewData(addr, b.Data[off:end]))
		}
	}
	records = append(records, NewEOF(uint64(len(records))))
	f.records = records
	f.recordsStale = false
	return nil
}

// Serialize writes the exact on-wire bytes of Records(), auto-refreshing
// them from Memory() first if stale or not yet built (so an empty file still
// gets its EOF line).
func (f *File) Serialize(w io.Writer) error {
	if f.recordsStale || f.records == nil {
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
	cksum := checksum(r.Addr, r.RecData)
	head := fmt.Sprintf(";%02X%04X ", len(r.RecData), r.Addr)
	if _, err := io.WriteString(w, head); err != nil {
		return err
	}
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
	if _, err := fmt.Fprintf(w, "%04X", cksum); err != nil {
		return err
	}
	term := r.After
	if term == nil {
		term = []byte("\n")
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
		Name:       "mos",
		Extensions: []string{".mos"},
		New:        func() hexrec.RecordFile { return New() },
		FromMemory: func(mem *sparseimage.Image) hexrec.RecordFile { return FromMemory(mem) },
	})
}
