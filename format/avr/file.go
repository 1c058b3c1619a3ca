package avr

import (
	"bufio"
	"fmt"
	"io"
	"io/ioutil"

	"hexrec/hexerr"
	"hexrec/sparseimage"

	"hexrec"
)

// File is an AVR word-hex image: an ordered record sequence plus the
// SparseImage it projects to/from.
type File struct {
	*hexrec.EditOps

	records []*Record
	mem     *sparseimage.Image

	recordsStale bool
	memoryStale  bool
}

// New returns an empty AVR file.
func New() *File {
	f := &File{mem: sparseimage.New()}
	f.EditOps = hexrec.NewEditOps(f.mem, &f.recordsStale)
	return f
}

// FromMemory returns an AVR file seeded with a copy of mem.
func FromMemory(mem *sparseimage.Image) *File {
	f := New()
	f.mem = mem.Copy()
	f.EditOps = hexrec.NewEditOps(f.mem, &f.recordsStale)
	f.recordsStale = true
	return f
}

// FromBlocks returns an AVR file seeded with the given blocks.
func FromBlocks(blocks []sparseimage.Block) *File {
	mem := sparseimage.New()
	for _, b := range blocks {
		mem.Write(b.Start, b.Data)
	}
	return FromMemory(mem)
}

// FromBytes returns an AVR file holding buf as one block at offset.
func FromBytes(buf []byte, offset uint64) *File {
	return FromMemory(sparseimage.FromBytes(buf, offset))
}

// Copy returns a deep copy of f.
func (f *File) Copy() *File { return FromMemory(f.mem) }

// MaxDataLen is always 2: every AVR record carries exactly one word.
func (f *File) MaxDataLen() int { return 2 }

func (f *File) Dirty() bool     { return f.recordsStale }
func (f *File) DiscardRecords() { f.recordsStale = true }
func (f *File) DiscardMemory()  { f.memoryStale = true }

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

// Parse reads r as an AVR stream, populating Records() and Memory().
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
// AVR has no terminator record, so every parsed word is simply applied.
func (f *File) ApplyRecords() error {
	f.mem.Reset()
	for _, r := range f.records {
		if err := f.mem.Write(r.Address(), r.Data()); err != nil {
			return err
		}
	}
	f.memoryStale = false
	return nil
}

// UpdateRecords re-derives Records() from Memory(): every word-aligned
// pair of bytes becomes one word record. A block with an odd byte count
// or an odd start address is rejected, since AVR addressing is word-based.
func (f *File) UpdateRecords() error {
	var records []*Record
	for _, b := range f.mem.Blocks() {
		if b.Start%2 != 0 {
			return &hexerr.ValidationError{Field: "address", Reason: "AVR words must start on an even byte address"}
		}
		if len(b.Data)%2 != 0 {
			return &hexerr.ValidationError{Field: "data", Reason: "AVR words must be a whole number of 2-byte words"}
		}
		for off := 0; off < len(b.Data); off += 2 {
			wordAddr := (b.Start + uint64(off)) / 2
			low, high := b.Data[off], b.Data[off+1]
			records = append(records, NewWord(wordAddr, high, low))
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
	if _, err := fmt.Fprintf(w, "%06X:%02X%02X", r.WordAddr, r.High, r.Low); err != nil {
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
		Name:       "avr",
		Extensions: []string{".avr"},
		New:        func() hexrec.RecordFile { return New() },
		FromMemory: func(mem *sparseimage.Image) hexrec.RecordFile { return FromMemory(mem) },
	})
}
