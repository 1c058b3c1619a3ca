package hexrec

import (
	"hexrec/hexerr"
	"hexrec/sparseimage"
)

// EditOps is the shared high-level memory-editing surface named in
// spec.md §4.4 (Align, Append, Clear, Crop, Cut, Delete, Extend, Fill,
// Find, Flood, Merge, Shift, Split, View). Every format's File embeds an
// *EditOps so these methods are promoted without per-format duplication;
// each mutating call marks the embedding File's records stale via the
// shared flag it was constructed with.
type EditOps struct {
	Mem   *sparseimage.Image
	stale *bool
}

// NewEditOps returns an EditOps operating on mem; every mutation sets
// *stale to true so the owning File knows to regenerate Records().
func NewEditOps(mem *sparseimage.Image, stale *bool) *EditOps {
	return &EditOps{Mem: mem, stale: stale}
}

func (e *EditOps) mark() {
	if e.stale != nil {
		*e.stale = true
	}
}

func (e *EditOps) Fill(start, end uint64, value []byte) error {
	if err := e.Mem.Fill(start, end, value); err != nil {
		return err
	}
	e.mark()
	return nil
}

func (e *EditOps) Flood(start, end uint64, value []byte) error {
	if err := e.Mem.Flood(start, end, value); err != nil {
		return err
	}
	e.mark()
	return nil
}

func (e *EditOps) Delete(start, end uint64) error {
	if err := e.Mem.Delete(start, end); err != nil {
		return err
	}
	e.mark()
	return nil
}

func (e *EditOps) Clear(start, end uint64) error { return e.Delete(start, end) }

func (e *EditOps) Crop(start, end uint64) error {
	if err := e.Mem.Crop(start, end); err != nil {
		return err
	}
	e.mark()
	return nil
}

func (e *EditOps) Shift(amount int64) error {
	if err := e.Mem.Shift(amount); err != nil {
		return err
	}
	e.mark()
	return nil
}

func (e *EditOps) Merge(other *sparseimage.Image) error {
	if err := e.Mem.Merge(other); err != nil {
		return err
	}
	e.mark()
	return nil
}

func (e *EditOps) Find(pattern []byte, start, end *uint64) (uint64, error) {
	return e.Mem.Find(pattern, start, end)
}

// View returns a read-only copy of [start, end); it never marks the file
// dirty.
func (e *EditOps) View(start, end uint64) (*sparseimage.Image, error) {
	return e.Mem.Extract(start, end)
}

// Append writes data immediately after the current populated extent (at
// address 0 if the image is empty).
func (e *EditOps) Append(data []byte) error {
	start := uint64(0)
	if _, end, ok := e.Mem.Extent(); ok {
		start = end
	}
	if err := e.Mem.Write(start, data); err != nil {
		return err
	}
	e.mark()
	return nil
}

// Extend grows the image by n zero bytes at the current end.
func (e *EditOps) Extend(n uint64) error {
	if n == 0 {
		return nil
	}
	return e.Append(make([]byte, n))
}

// Cut removes [start, end) from the image and returns it as a new,
// detached SparseImage.
func (e *EditOps) Cut(start, end uint64) (*sparseimage.Image, error) {
	piece, err := e.Mem.Extract(start, end)
	if err != nil {
		return nil, err
	}
	if err := e.Mem.Delete(start, end); err != nil {
		return nil, err
	}
	e.mark()
	return piece, nil
}

// Split removes and returns everything at or above at.
func (e *EditOps) Split(at uint64) (*sparseimage.Image, error) {
	_, end, ok := e.Mem.Extent()
	if !ok || at >= end {
		return sparseimage.New(), nil
	}
	return e.Cut(at, end)
}

// Align pads the end of the populated image with zero bytes up to the next
// multiple of boundary.
func (e *EditOps) Align(boundary uint64) error {
	if boundary == 0 {
		return &hexerr.ValueError{Reason: "alignment boundary must be nonzero"}
	}
	_, end, ok := e.Mem.Extent()
	if !ok {
		return nil
	}
	rem := end % boundary
	if rem == 0 {
		return nil
	}
	return e.Extend(boundary - rem)
}
