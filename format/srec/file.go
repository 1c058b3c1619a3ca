package srec

import (
	"bufio"
	"encoding/hex"
	"io"
	"io/ioutil"

	"hexrec/hexerr"
	"hexrec/sparseimage"

	"hexrec"
)

// File is an S-record image: an ordered record sequence plus the
// SparseImage it projects to/from.
type File struct {
	*hexrec.EditOps

	records []*Record
	mem     *sparseimage.Image

	maxDataLen int
	lax        bool
	header     []byte

	startAddress uint64
	startTag     Tag
	hasStart     bool

	recordsStale bool
	memoryStale  bool
}

// New returns an empty S-record file with the default 252-byte record cap.
func New() *File {
	f := &File{mem: sparseimage.New(), maxDataLen: MaxDataBytes}
	f.EditOps = hexrec.NewEditOps(f.mem, &f.recordsStale)
	return f
}

// FromMemory returns an S-record file seeded with a copy of mem.
func FromMemory(mem *sparseimage.Image) *File {
	f := New()
	f.mem = mem.Copy()
	f.EditOps = hexrec.NewEditOps(f.mem, &f.recordsStale)
	f.recordsStale = true
	return f
}

// FromBlocks returns an S-record file seeded with the given blocks.
func FromBlocks(blocks []sparseimage.Block) *File {
	mem := sparseimage.New()
	for _, b := range blocks {
		mem.Write(b.Start, b.Data)
	}
	return FromMemory(mem)
}

// FromBytes returns an S-record file holding buf as one block at offset.
func FromBytes(buf []byte, offset uint64) *File {
	return FromMemory(sparseimage.FromBytes(buf, offset))
}

// Copy returns a deep copy of f.
func (f *File) Copy() *File {
	out := FromMemory(f.mem)
	out.maxDataLen = f.maxDataLen
	out.lax = f.lax
	out.header = append([]byte(nil), f.header...)
	out.startAddress, out.startTag, out.hasStart = f.startAddress, f.startTag, f.hasStart
	return out
}

// SetLax controls tolerance of mixed data-record address widths on parse.
func (f *File) SetLax(lax bool) { f.lax = lax }

// SetHeader sets the S0 header text emitted by UpdateRecords.
func (f *File) SetHeader(text []byte) { f.header = append([]byte(nil), text...) }

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

// Parse reads r as an S-record stream, populating Records() and Memory().
func (f *File) Parse(r io.Reader, opts hexrec.ParseOptions) (*hexrec.ParseResult, error) {
	buf, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, &hexerr.IOError{Err: err}
	}
	records, warnings, err := parseAll(buf, opts.IgnoreErrors, opts.Lax || f.lax)
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
	f.hasStart = false
	var dataCount uint64
	var sawStart bool

	for _, r := range f.records {
		switch {
		case r.RecTag == Header:
			f.header = append([]byte(nil), r.RecData...)
		case r.RecTag.IsData():
			if err := f.mem.Write(r.Addr, r.RecData); err != nil {
				return err
			}
			dataCount++
		case r.RecTag.IsCount():
			if r.Addr != dataCount {
				return &hexerr.ValidationError{Field: "count", Reason: "record count does not match number of data records"}
			}
		case r.RecTag.IsStart():
			f.startAddress = r.Addr
			f.startTag = r.RecTag
			f.hasStart = true
			sawStart = true
		}
	}
	if !sawStart {
		return &hexerr.ValidationError{Field: "records", Reason: "missing start record"}
	}
	f.memoryStale = false
	return nil
}

// UpdateRecords re-derives Records() from Memory(): header, then data
// records chunked to MaxDataLen, then a count record, then the start record
// matching the data width used. All data records share one width, the
// narrowest that holds the highest populated address.
func (f *File) UpdateRecords() error {
	var records []*Record
	records = append(records, NewHeader(f.header))

	dataTag := Data16
	if _, end, ok := f.mem.Extent(); ok {
		dataTag = dataWidthForAddress(end - 1)
	}
	chunk := f.maxDataLen
	if lim := 255 - dataTag.addrWidth() - 1; chunk > lim {
		chunk = lim
	}
	var dataCount uint64
	for _, b := range f.mem.Blocks() {
		for off := 0; off < len(b.Data); off += chunk {
			end := off + chunk
			if end > len(b.Data) {
				end = len(b.Data)
			}
			addr := b.Start + uint64(off)
			if addr > 0xFFFFFFFF {
				return &hexerr.ValidationError{Field: "address", Reason: "exceeds 32-bit S-record address space"}
			}
			r := NewData(addr, b.Data[off:end])
			r.RecTag = dataTag
			records = append(records, r)
			dataCount++
		}
	}
	records = append(records, NewCount(dataCount))

	startAddr := f.startAddress
	if !f.hasStart {
		startAddr = 0
	}
	records = append(records, NewStart(dataTag, startAddr))

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
	addrWidth := r.RecTag.addrWidth()
	count := addrWidth + len(r.RecData) + 1
	cksum := checksum(r.RecTag, r.Addr, r.RecData)

	raw := make([]byte, 0, 1+count)
	raw = append(raw, byte(count))
	for i := addrWidth - 1; i >= 0; i-- {
		raw = append(raw, byte(r.Addr>>(8*uint(i))))
	}
	raw = append(raw, r.RecData...)
	raw = append(raw, cksum)

	if _, err := io.WriteString(w, "S"); err != nil {
		return err
	}
	if _, err := io.WriteString(w, string(rune('0'+int(r.RecTag)))); err != nil {
		return err
	}
	enc := make([]byte, hex.EncodedLen(len(raw)))
	hex.Encode(enc, raw)
	for i, c := range enc {
		if c >= 'a' && c <= 'f' {
			enc[i] = c - ('a' - 'A')
		}
	}
	if _, err := w.Write(enc); err != nil {
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
		Name:       "srec",
		Extensions: []string{".srec", ".s19", ".s28", ".s37", ".mot"},
		New:        func() hexrec.RecordFile { return New() },
		FromMemory: func(mem *sparseimage.Image) hexrec.RecordFile { return FromMemory(mem) },
	})
}
