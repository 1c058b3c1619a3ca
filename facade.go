package hexrec

import (
	"bytes"
	"io"
	"io/ioutil"
	"log"
	"os"

	"github.com/google/renameio"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"

	"hexrec/hexerr"
	"hexrec/sparseimage"
)

// Load parses r as formatName and returns the resulting RecordFile. If
// formatName is empty, Load buffers r fully and tries every registered
// format's parser in registration order, SniffLast formats after all the
// others (content sniffing), returning the
// first one whose Parse accepts the stream.
func Load(r io.Reader, formatName string, opts ParseOptions) (RecordFile, *ParseResult, error) {
	buf, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, nil, &hexerr.IOError{Err: err}
	}

	if formatName != "" {
		d, ok := Lookup(formatName)
		if !ok {
			return nil, nil, &hexerr.FormatError{Name: formatName, Reason: "unknown format"}
		}
		rf := d.New()
		res, err := rf.Parse(bytes.NewReader(buf), opts)
		if err != nil {
			return nil, nil, xerrors.Errorf("hexrec: parsing as %s: %w", formatName, err)
		}
		return rf, res, nil
	}

	for _, d := range sniffOrder() {
		rf := d.New()
		res, err := rf.Parse(bytes.NewReader(buf), opts)
		if err != nil {
			if Verbose {
				log.Printf("hexrec: format %q rejected content sniff: %v", d.Name, err)
			}
			continue
		}
		return rf, res, nil
	}
	return nil, nil, &hexerr.FormatError{Reason: "no registered format accepted the content"}
}

// LoadPath opens path, guessing the format from its extension when
// formatName is empty (falling back to content sniffing if the extension
// is unknown or ambiguous), and parses it. The file handle is released on
// every exit path.
func LoadPath(path string, formatName string, opts ParseOptions) (RecordFile, *ParseResult, error) {
	if formatName == "" {
		if guessed, err := GuessFormatName(path); err == nil {
			formatName = guessed
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &hexerr.IOError{Err: err}
	}
	defer f.Close()
	return Load(f, formatName, opts)
}

// Convert re-derives src's memory as a RecordFile of dstFormatName.
func Convert(src RecordFile, dstFormatName string) (RecordFile, error) {
	d, ok := Lookup(dstFormatName)
	if !ok {
		return nil, &hexerr.FormatError{Name: dstFormatName, Reason: "unknown format"}
	}
	return d.FromMemory(src.Memory().Copy()), nil
}

// Merge combines the memory of every src, in order (later sources win on
// overlap), into a new RecordFile of dstFormatName.
func Merge(srcs []RecordFile, dstFormatName string) (RecordFile, error) {
	d, ok := Lookup(dstFormatName)
	if !ok {
		return nil, &hexerr.FormatError{Name: dstFormatName, Reason: "unknown format"}
	}
	mem := sparseimage.New()
	for _, s := range srcs {
		if err := mem.Merge(s.Memory()); err != nil {
			return nil, err
		}
	}
	return d.FromMemory(mem), nil
}

// MergePaths loads every path concurrently (bounded by an errgroup), then
// merges their memories sequentially in slice order -- concurrency only
// overlaps the independent I/O of loading each source; the merge itself,
// and every individual RecordFile, remains single-owner and untouched by
// more than one goroutine once Parse returns.
func MergePaths(paths []string, dstFormatName string, opts ParseOptions) (RecordFile, error) {
	loaded := make([]RecordFile, len(paths))
	var eg errgroup.Group
	for i, p := range paths {
		i, p := i, p
		eg.Go(func() error {
			rf, _, err := LoadPath(p, "", opts)
			if err != nil {
				return xerrors.Errorf("loading %s: %w", p, err)
			}
			loaded[i] = rf
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return Merge(loaded, dstFormatName)
}

// SavePath serializes rf and writes it to path atomically: the new content
// is written to a temporary file in the same directory and renamed into
// place, so a crash mid-write never leaves a truncated image, and a
// sibling lock file is held for the duration of the write to guard against
// two processes saving the same path at once.
func SavePath(path string, rf RecordFile) error {
	lock, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return &hexerr.IOError{Err: err}
	}
	defer func() {
		unix.Flock(int(lock.Fd()), unix.LOCK_UN)
		lock.Close()
		os.Remove(path + ".lock")
	}()
	if err := unix.Flock(int(lock.Fd()), unix.LOCK_EX); err != nil {
		return &hexerr.IOError{Err: err}
	}

	t, err := renameio.TempFile("", path)
	if err != nil {
		return &hexerr.IOError{Err: err}
	}
	defer t.Cleanup()

	if err := rf.Serialize(t); err != nil {
		return err
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return &hexerr.IOError{Err: err}
	}
	return nil
}
