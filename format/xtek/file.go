package xtek

import (
	"bufio"
	"io"
	"io/ioutil"

	"hexrec/hexerr"
	"hexrec/sparseimage"

	"hexrec"
)

// File is an Extended Tektronix image: an ordered record sequence plus the
// SparseImage it projects to/from.
type File struct {
	*hexrec.EditOps

	records []*Record
	mem     *sparseimage.Image

	maxDataLen int

	recordsStale bool
	memoryStale  bool
}

// New returns an empty Extended Tektronix file with the default 255-byte
// record cap.
func New() *File {
	f := &File{mem: sparseimage.New(), maxDataLen: MaxDataBytes}
	f.EditOps = hexrec.NewEditOps(f.mem, &f.recordsStale)
	return f
}

// FromMemory returns an Extended Tektronix file seeded with a copy of mem.
func FromMemory(mem *sparseimage.Image) *File {
	f := New()
	f.mem = mem.Copy()
	f.EditOps = hexrec.NewEditOps(f.mem, &f.recordsStale)
	f.recordsStale = true
	return f
}

// FromBlocks returns an Extended Tektronix file seeded with the given
// blocks.
func FromBlocks(blocks []sparseimage.Block) *File {
	mem := sparseimage.New()
	for _, b := range blocks {
		mem.Write(b.Start, b.Data)
	}
	return FromMemory(mem)
}

// FromBytes returns an Extended Tektronix file holding buf as one block at
// offset.
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

// Parse reads r as an Extended Tektronix stream, populating Records() and
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

// UpdateRecords re-derives Records() from Memory(): data records chunked
// to MaxDataLen, followed by an EOF record.
func (f *File) UpdateRecords() error {
	var records []*Record
	for _, b := range f.mem.Blocks() {
		for off := 0; off < len(b.Data); off += f.maxDataLen {
			end := off + f.maxDataLen
			if end > len(b.Data) {
				end = len(b.Data)
			}
			records = append(records, NewData(b.Start+uint64(off), b.Data[off:end]))
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

const hexDigits = "0123456789ABCDEF"

func writeRecord(w io.Writer, r *Record) error {
	if _, err := w.Write(r.Before); err != nil {
		return err
	}
	cksum := checksum(r.RecTag, r.Addr, r.AddrLen, r.RecData)

	var line []byte
	line = append(line, '%')
	line = append(line, hexDigits[byte(len(r.RecData))>>4], hexDigits[byte(len(r.RecData))&0xF])
	line = append(line, hexDigits[byte(r.RecTag)&0xF])
	line = append(line, hexDigits[cksum>>4], hexDigits[cksum&0xF])
	line = append(line, hexDigits[byte(r.AddrLen)&0xF])
	for i := r.AddrLen - 1; i >= 0; i-- {
		b := byte(r.Addr >> (8 * uint(i)))
		line = append(line, hexDigits[b>>4], hexDigits[b&0xF])
	}
	for _, b := range r.RecData {
		line = append(line, hexDigits[b>>4], hexDigits[b&0xF])
	}
	if _, err := w.Write(line); err != nil {
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
		Name:       "xtek",
		Extensions: []string{".xtek"},
		New:        func() hexrec.RecordFile { return New() },
		FromMemory: func(mem *sparseimage.Image) hexrec.RecordFile { return FromMemory(mem) },
	})
}
