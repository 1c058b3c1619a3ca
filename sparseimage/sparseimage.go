// Package sparseimage implements an address-indexed sparse byte container:
// a sorted sequence of non-overlapping, non-touching blocks of memory keyed
// by a 64-bit address. It is the storage layer hex-record files parse into
// and serialize out of.
package sparseimage

import (
	"sort"

	"hexrec/hexerr"
)

// block is a maximal contiguous run of populated bytes starting at Start.
// Blocks held by one Image never overlap and never touch: adjacent writes
// are always coalesced into a single block.
type block struct {
	start uint64
	data  []byte
}

func (b block) end() uint64 { return b.start + uint64(len(b.data)) }

// Image is an ordered set of address blocks, optionally restricted to a
// half-open [boundsStart, boundsEnd) range.
type Image struct {
	blocks []block

	hasBounds   bool
	boundsStart uint64
	boundsEnd   uint64
}

// New returns an empty, unbounded Image.
func New() *Image {
	return &Image{}
}

// FromBytes returns an Image holding buf as a single block starting at
// offset.
func FromBytes(buf []byte, offset uint64) *Image {
	im := New()
	if len(buf) == 0 {
		return im
	}
	cp := append([]byte(nil), buf...)
	im.blocks = []block{{start: offset, data: cp}}
	return im
}

// Hole is an unpopulated address range.
type Hole struct {
	Start, End uint64
}

// Bounds reports the current bounds, if any.
func (im *Image) Bounds() (start, end uint64, ok bool) {
	return im.boundsStart, im.boundsEnd, im.hasBounds
}

// SetBounds restricts the Image to [start, end). It fails if any currently
// populated byte would fall outside the new bounds.
func (im *Image) SetBounds(start, end uint64) error {
	if start > end {
		return &hexerr.ValueError{Reason: "start > end"}
	}
	for _, b := range im.blocks {
		if b.start < start || b.end() > end {
			return &hexerr.BoundsError{Start: start, End: end}
		}
	}
	im.hasBounds = true
	im.boundsStart = start
	im.boundsEnd = end
	return nil
}

// ClearBounds removes any bounds restriction.
func (im *Image) ClearBounds() {
	im.hasBounds = false
	im.boundsStart = 0
	im.boundsEnd = 0
}

func (im *Image) checkBounds(start, end uint64) error {
	if !im.hasBounds {
		return nil
	}
	if start < im.boundsStart || end > im.boundsEnd {
		return &hexerr.BoundsError{Start: start, End: end}
	}
	return nil
}

// IsEmpty reports whether the Image holds no bytes.
func (im *Image) IsEmpty() bool { return len(im.blocks) == 0 }

// Extent returns the populated address span [start, end). ok is false if
// the image is empty.
func (im *Image) Extent() (start, end uint64, ok bool) {
	if len(im.blocks) == 0 {
		return 0, 0, false
	}
	return im.blocks[0].start, im.blocks[len(im.blocks)-1].end(), true
}

// Span returns end-start of the populated extent.
func (im *Image) Span() uint64 {
	s, e, ok := im.Extent()
	if !ok {
		return 0
	}
	return e - s
}

// Contiguous reports whether the Image has zero or one block.
func (im *Image) Contiguous() bool {
	return len(im.blocks) <= 1
}

// indexAtOrAfter returns the index of the first block whose start is >= addr.
func (im *Image) indexAtOrAfter(addr uint64) int {
	return sort.Search(len(im.blocks), func(i int) bool {
		return im.blocks[i].start >= addr
	})
}

// overlapRange returns the half-open index range [i0, i1) of blocks that
// intersect [start, end). If no block intersects, i0 == i1 and both equal
// the insertion point.
func (im *Image) overlapRange(start, end uint64) (i0, i1 int) {
	// First block that could overlap: the one at-or-before start, or the
	// first block after start.
	idx := im.indexAtOrAfter(start)
	if idx > 0 && im.blocks[idx-1].end() > start {
		idx--
	}
	i0 = idx
	for i1 = i0; i1 < len(im.blocks) && im.blocks[i1].start < end; i1++ {
	}
	return i0, i1
}

// Read returns end-start bytes from [start, end). Unpopulated addresses are
// filled with fill's bytes, tiled starting at the hole's first address
// aligned to start (same pattern-alignment rule as Fill). If fill is nil
// and any address in range is unpopulated, Read fails with *hexerr.HoleError.
func (im *Image) Read(start, end uint64, fill []byte) ([]byte, error) {
	if start > end {
		return nil, &hexerr.ValueError{Reason: "start > end"}
	}
	if err := im.checkBounds(start, end); err != nil {
		return nil, err
	}
	out := make([]byte, end-start)
	cur := start
	i0, i1 := im.overlapRange(start, end)
	for i := i0; i < i1; i++ {
		b := im.blocks[i]
		bs, be := b.start, b.end()
		if bs > cur {
			if fill == nil {
				return nil, &hexerr.HoleError{Address: cur}
			}
			fillRange(out[cur-start:bs-start], cur, start, fill)
			cur = bs
		}
		lo := uint64(0)
		if cur > bs {
			lo = cur - bs
		}
		hi := uint64(len(b.data))
		if be > end {
			hi = end - bs
		}
		copy(out[cur-start:], b.data[lo:hi])
		cur = bs + hi
	}
	if cur < end {
		if fill == nil {
			return nil, &hexerr.HoleError{Address: cur}
		}
		fillRange(out[cur-start:], cur, start, fill)
	}
	return out, nil
}

// fillRange writes value, tiled and aligned so that dst[0] (absolute address
// addr) equals value[(addr-anchor) mod len(value)].
func fillRange(dst []byte, addr, anchor uint64, value []byte) {
	k := uint64(len(value))
	for i := range dst {
		a := addr + uint64(i)
		dst[i] = value[(a-anchor)%k]
	}
}

// splice replaces the blocks overlapping [start, start+len(data)) with a
// single block holding data, preserving any leading/trailing remainder of
// the blocks it straddles, then coalesces with untouched neighbours.
// On success it returns the new block slice; it never mutates im.blocks.
func (im *Image) splice(start uint64, data []byte) []block {
	end := start + uint64(len(data))
	i0, i1 := im.overlapRange(start, end)

	var leading, trailing []byte
	newStart := start
	if i1 > i0 {
		first := im.blocks[i0]
		if first.start < start {
			leading = first.data[:start-first.start]
			newStart = first.start
		}
		last := im.blocks[i1-1]
		if last.end() > end {
			trailing = last.data[end-last.start:]
		}
	}

	merged := make([]byte, 0, len(leading)+len(data)+len(trailing))
	merged = append(merged, leading...)
	merged = append(merged, data...)
	merged = append(merged, trailing...)
	nb := block{start: newStart, data: merged}

	out := make([]block, 0, len(im.blocks)-(i1-i0)+1)
	out = append(out, im.blocks[:i0]...)

	// Coalesce with the immediately preceding block if it touches nb.
	if len(out) > 0 && out[len(out)-1].end() == nb.start {
		prev := out[len(out)-1]
		out = out[:len(out)-1]
		combined := make([]byte, 0, len(prev.data)+len(nb.data))
		combined = append(combined, prev.data...)
		combined = append(combined, nb.data...)
		nb = block{start: prev.start, data: combined}
	}

	// Coalesce with the immediately following untouched block.
	rest := im.blocks[i1:]
	if len(rest) > 0 && nb.end() == rest[0].start {
		next := rest[0]
		rest = rest[1:]
		combined := make([]byte, 0, len(nb.data)+len(next.data))
		combined = append(combined, nb.data...)
		combined = append(combined, next.data...)
		nb = block{start: nb.start, data: combined}
	}

	out = append(out, nb)
	out = append(out, rest...)
	return out
}

// Write overwrites [offset, offset+len(data)) with data, replacing any
// existing content there. Adjacent blocks coalesce.
func (im *Image) Write(offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	end := offset + uint64(len(data))
	if err := im.checkBounds(offset, end); err != nil {
		return err
	}
	im.blocks = im.splice(offset, data)
	return nil
}

// Extract returns a new unbounded Image holding only the bytes in
// [start, end), clipped to that range. im is left unchanged.
func (im *Image) Extract(start, end uint64) (*Image, error) {
	if start > end {
		return nil, &hexerr.ValueError{Reason: "start > end"}
	}
	out := New()
	i0, i1 := im.overlapRange(start, end)
	for i := i0; i < i1; i++ {
		b := im.blocks[i]
		lo, hi := b.start, b.end()
		if lo < start {
			lo = start
		}
		if hi > end {
			hi = end
		}
		data := append([]byte(nil), b.data[lo-b.start:hi-b.start]...)
		out.blocks = append(out.blocks, block{start: lo, data: data})
	}
	return out, nil
}

// Delete removes all bytes in [start, end), splitting blocks that straddle
// the boundary. Clear is a synonym.
func (im *Image) Delete(start, end uint64) error {
	if start > end {
		return &hexerr.ValueError{Reason: "start > end"}
	}
	i0, i1 := im.overlapRange(start, end)
	if i0 == i1 {
		return nil
	}
	var remainder []block
	first := im.blocks[i0]
	if first.start < start {
		remainder = append(remainder, block{start: first.start, data: append([]byte(nil), first.data[:start-first.start]...)})
	}
	last := im.blocks[i1-1]
	if last.end() > end {
		remainder = append(remainder, block{start: end, data: append([]byte(nil), last.data[end-last.start:]...)})
	}
	out := make([]block, 0, len(im.blocks)-(i1-i0)+len(remainder))
	out = append(out, im.blocks[:i0]...)
	out = append(out, remainder...)
	out = append(out, im.blocks[i1:]...)
	im.blocks = out
	return nil
}

// Clear is a synonym of Delete.
func (im *Image) Clear(start, end uint64) error { return im.Delete(start, end) }

// Crop deletes everything outside [start, end) and sets bounds to that
// range.
func (im *Image) Crop(start, end uint64) error {
	if start > end {
		return &hexerr.ValueError{Reason: "start > end"}
	}
	var out []block
	for _, b := range im.blocks {
		lo, hi := b.start, b.end()
		if hi <= start || lo >= end {
			continue
		}
		if lo < start {
			lo = start
		}
		if hi > end {
			hi = end
		}
		out = append(out, block{start: lo, data: append([]byte(nil), b.data[lo-b.start:hi-b.start]...)})
	}
	im.blocks = out
	im.hasBounds = true
	im.boundsStart = start
	im.boundsEnd = end
	return nil
}

// Shift translates every block's start by amount (which may be negative).
// It fails, leaving im unchanged, if the shifted range would underflow
// address zero or violate bounds.
func (im *Image) Shift(amount int64) error {
	shifted := make([]block, len(im.blocks))
	for i, b := range im.blocks {
		ns := int64(b.start) + amount
		if ns < 0 {
			return &hexerr.BoundsError{Start: b.start, End: b.end()}
		}
		shifted[i] = block{start: uint64(ns), data: b.data}
	}
	if im.hasBounds {
		for _, b := range shifted {
			if b.start < im.boundsStart || b.end() > im.boundsEnd {
				return &hexerr.BoundsError{Start: b.start, End: b.end()}
			}
		}
	}
	im.blocks = shifted
	return nil
}

// Fill makes [start, end) entirely populated with value, overwriting any
// existing data there. If value is a k-byte pattern, the byte at absolute
// address a equals value[(a-start) mod k] -- the pattern is aligned to
// start, not to address zero.
func (im *Image) Fill(start, end uint64, value []byte) error {
	if start > end {
		return &hexerr.ValueError{Reason: "start > end"}
	}
	if len(value) == 0 {
		return &hexerr.ValueError{Reason: "empty fill value"}
	}
	if start == end {
		return nil
	}
	if err := im.checkBounds(start, end); err != nil {
		return err
	}
	data := make([]byte, end-start)
	fillRange(data, start, start, value)
	im.blocks = im.splice(start, data)
	return nil
}

// Flood is identical to Fill except it only writes into holes within
// [start, end); existing data is preserved. The pattern is still anchored
// to start, the argument to Flood, not to each hole's own start.
func (im *Image) Flood(start, end uint64, value []byte) error {
	if start > end {
		return &hexerr.ValueError{Reason: "start > end"}
	}
	if len(value) == 0 {
		return &hexerr.ValueError{Reason: "empty fill value"}
	}
	if err := im.checkBounds(start, end); err != nil {
		return err
	}
	for _, h := range im.holesIn(start, end) {
		data := make([]byte, h.End-h.Start)
		fillRange(data, h.Start, start, value)
		im.blocks = im.splice(h.Start, data)
	}
	return nil
}

// Find scans the contiguous runs within [start, end) for pattern (matches
// never span a hole) and returns the absolute address of the first match.
// A nil start/end means "from the first/to the last populated address".
func (im *Image) Find(pattern []byte, start, end *uint64) (uint64, error) {
	if len(pattern) == 0 {
		return 0, &hexerr.ValueError{Reason: "empty pattern"}
	}
	lo, hi := uint64(0), uint64(0)
	if s, e, ok := im.Extent(); ok {
		lo, hi = s, e
	}
	if start != nil {
		lo = *start
	}
	if end != nil {
		hi = *end
	}
	if lo > hi {
		return 0, &hexerr.ValueError{Reason: "start > end"}
	}
	i0, i1 := im.overlapRange(lo, hi)
	for i := i0; i < i1; i++ {
		b := im.blocks[i]
		bs, be := b.start, b.end()
		clo, chi := bs, be
		if clo < lo {
			clo = lo
		}
		if chi > hi {
			chi = hi
		}
		segment := b.data[clo-bs : chi-bs]
		if idx := indexBytes(segment, pattern); idx >= 0 {
			return clo + uint64(idx), nil
		}
	}
	return 0, &hexerr.NotFoundError{Pattern: pattern}
}

func indexBytes(haystack, needle []byte) int {
	n, m := len(haystack), len(needle)
	if m == 0 || m > n {
		return -1
	}
outer:
	for i := 0; i+m <= n; i++ {
		for j := 0; j < m; j++ {
			if haystack[i+j] != needle[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}

// Merge writes every block of other into im; last writer wins on overlap.
func (im *Image) Merge(other *Image) error {
	for _, b := range other.blocks {
		if err := im.Write(b.start, b.data); err != nil {
			return err
		}
	}
	return nil
}

// Insert inserts data at offset, shifting every byte at or above offset up
// by len(data).
func (im *Image) Insert(offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	amount := int64(len(data))

	var below, above []block
	for _, b := range im.blocks {
		switch {
		case b.end() <= offset:
			below = append(below, b)
		case b.start >= offset:
			above = append(above, block{start: b.start + uint64(amount), data: b.data})
		default: // straddles offset
			below = append(below, block{start: b.start, data: append([]byte(nil), b.data[:offset-b.start]...)})
			above = append(above, block{start: offset + uint64(amount), data: append([]byte(nil), b.data[offset-b.start:]...)})
		}
	}
	if im.hasBounds {
		if offset+uint64(amount) > im.boundsEnd {
			return &hexerr.BoundsError{Start: offset, End: offset + uint64(amount)}
		}
		for _, b := range above {
			if b.end() > im.boundsEnd {
				return &hexerr.BoundsError{Start: b.start, End: b.end()}
			}
		}
	}

	tmp := &Image{blocks: below}
	if err := tmp.Write(offset, data); err != nil {
		return err
	}
	tmp.blocks = appendCoalesce(tmp.blocks, above)
	im.blocks = tmp.blocks
	return nil
}

// appendCoalesce appends rest to base, merging the boundary if it touches.
func appendCoalesce(base, rest []block) []block {
	if len(base) == 0 {
		return rest
	}
	if len(rest) == 0 {
		return base
	}
	last := base[len(base)-1]
	if last.end() == rest[0].start {
		combined := make([]byte, 0, len(last.data)+len(rest[0].data))
		combined = append(combined, last.data...)
		combined = append(combined, rest[0].data...)
		out := append([]block(nil), base[:len(base)-1]...)
		out = append(out, block{start: last.start, data: combined})
		out = append(out, rest[1:]...)
		return out
	}
	out := append([]block(nil), base...)
	out = append(out, rest...)
	return out
}

// Reverse reflects the populated span: an Image spanning [s, e) becomes one
// where the byte at address a now lives at s+(e-1-a).
func (im *Image) Reverse() error {
	s, e, ok := im.Extent()
	if !ok {
		return nil
	}
	n := len(im.blocks)
	out := make([]block, n)
	for i, b := range im.blocks {
		rdata := make([]byte, len(b.data))
		for j := range b.data {
			rdata[j] = b.data[len(b.data)-1-j]
		}
		newStart := s + e - b.end()
		out[n-1-i] = block{start: newStart, data: rdata}
	}
	im.blocks = out
	return nil
}

// Holes yields the unpopulated ranges strictly between the first and last
// populated address.
func (im *Image) Holes() []Hole {
	s, e, ok := im.Extent()
	if !ok {
		return nil
	}
	return im.holesIn(s, e)
}

func (im *Image) holesIn(start, end uint64) []Hole {
	var out []Hole
	cur := start
	i0, i1 := im.overlapRange(start, end)
	for i := i0; i < i1; i++ {
		b := im.blocks[i]
		bs, be := b.start, b.end()
		if bs > cur {
			out = append(out, Hole{Start: cur, End: bs})
		}
		if be > cur {
			cur = be
		}
	}
	if cur < end {
		out = append(out, Hole{Start: cur, End: end})
	}
	return out
}

// Block is a maximal contiguous populated address run, as returned by
// Blocks. Data must not be mutated by the caller.
type Block struct {
	Start uint64
	Data  []byte
}

// Blocks returns the populated (start, data) pairs in ascending order. The
// returned data slices must not be mutated by the caller.
func (im *Image) Blocks() []Block {
	out := make([]Block, len(im.blocks))
	for i, b := range im.blocks {
		out[i] = Block{Start: b.start, Data: b.data}
	}
	return out
}

// Reset removes every block, leaving bounds untouched. It is used by
// RecordFile.ApplyRecords implementations that re-derive memory in place
// (so embedded *EditOps, which hold a stable *Image pointer, keep
// operating on the same object).
func (im *Image) Reset() {
	im.blocks = nil
}

// Copy returns a deep copy of im.
func (im *Image) Copy() *Image {
	out := &Image{
		hasBounds:   im.hasBounds,
		boundsStart: im.boundsStart,
		boundsEnd:   im.boundsEnd,
		blocks:      make([]block, len(im.blocks)),
	}
	for i, b := range im.blocks {
		out.blocks[i] = block{start: b.start, data: append([]byte(nil), b.data...)}
	}
	return out
}
