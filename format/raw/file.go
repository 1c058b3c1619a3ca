package raw

import (
	"io"
	"io/ioutil"

	"hexrec/hexerr"
	"hexrec/sparseimage"

	"hexrec"
)

// File is a raw-binary image: a single contiguous payload at BaseAddress,
// plus the SparseImage it projects to/from.
type File struct {
	*hexrec.EditOps

	records []*Record
	mem     *sparseimage.Image

	// BaseAddress is the address Parse writes the file's bytes to, and the
	// address Serialize starts reading from.
	BaseAddress uint64

	recordsStale bool
	memoryStale  bool
}

// New returns an empty raw file based at address 0.
func New() *File {
	f := &File{mem: sparseimage.New()}
	f.EditOps = hexrec.NewEditOps(f.mem, &f.recordsStale)
	return f
}

// FromMemory returns a raw file seeded with a copy of mem.
func FromMemory(mem *sparseimage.Image) *File {
	f := New()
	f.mem = mem.Copy()
	f.EditOps = hexrec.NewEditOps(f.mem, &f.recordsStale)
	if start, _, ok := f.mem.Extent(); ok {
		f.BaseAddress = start
	}
	f.recordsStale = true
	return f
}

// FromBlocks returns a raw file seeded with the given blocks.
func FromBlocks(blocks []sparseimage.Block) *File {
	mem := sparseimage.New()
	for _, b := range blocks {
		mem.Write(b.Start, b.Data)
	}
	return FromMemory(mem)
}

// FromBytes returns a raw file holding buf as one block at offset.
func FromBytes(buf []byte, offset uint64) *File {
	f := FromMemory(sparseimage.FromBytes(buf, offset))
	f.BaseAddress = offset
	return f
}

// Copy returns a deep copy of f.
func (f *File) Copy() *File {
	out := FromMemory(f.mem)
	out.BaseAddress = f.BaseAddress
	return out
}

// MaxDataLen has no effect on raw: the whole payload is always one record.
func (f *File) MaxDataLen() int { return -1 }

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

// Parse reads the whole of r as the payload at BaseAddress.
func (f *File) Parse(r io.Reader, opts hexrec.ParseOptions) (*hexrec.ParseResult, error) {
	buf, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, &hexerr.IOError{Err: err}
	}
	f.records = nil
	if len(buf) > 0 {
		f.records = []*Record{NewPayload(f.BaseAddress, buf)}
	}
	f.recordsStale = false
	if err := f.ApplyRecords(); err != nil {
		return nil, err
	}
	return &hexrec.ParseResult{}, nil
}

// ApplyRecords projects Records() onto Memory(), discarding prior content.
func (f *File) ApplyRecords() error {
	f.mem.Reset()
	for _, r := range f.records {
		if err := f.mem.Write(r.Addr, r.RecData); err != nil {
			return err
		}
	}
	f.memoryStale = false
	return nil
}

// UpdateRecords re-derives Records() from Memory(): the populated extent
// must be hole-free, since raw has no way to represent a gap.
func (f *File) UpdateRecords() error {
	start, end, ok := f.mem.Extent()
	if !ok {
		f.records = nil
		f.recordsStale = false
		return nil
	}
	data, err := f.mem.Read(start, end, nil) // no fill: a hole becomes a HoleError
	if err != nil {
		return err
	}
	f.BaseAddress = start
	f.records = []*Record{NewPayload(start, data)}
	f.recordsStale = false
	return nil
}

// Serialize writes the payload bytes, auto-refreshing Records() from
// Memory() first if stale.
func (f *File) Serialize(w io.Writer) error {
	if f.recordsStale {
		if err := f.UpdateRecords(); err != nil {
			return err
		}
	}
	for _, r := range f.records {
		if _, err := w.Write(r.RecData); err != nil {
			return &hexerr.IOError{Err: err}
		}
	}
	return nil
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
		Name:       "raw",
		Extensions: []string{".bin", ".raw"},
		// raw.Parse accepts any byte stream, so it must never shadow a
		// more specific format during content sniffing.
		SniffLast:  true,
		New:        func() hexrec.RecordFile { return New() },
		FromMemory: func(mem *sparseimage.Image) hexrec.RecordFile { return FromMemory(mem) },
	})
}
