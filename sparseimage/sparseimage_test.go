package sparseimage

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"hexrec/hexerr"
)

func blocksOf(t *testing.T, im *Image) []Block {
	t.Helper()
	return im.Blocks()
}

func TestWriteCoalescesAdjacent(t *testing.T) {
	im := New()
	if err := im.Write(10, []byte("abc")); err != nil {
		t.Fatal(err)
	}
	if err := im.Write(13, []byte("def")); err != nil {
		t.Fatal(err)
	}
	got := blocksOf(t, im)
	want := []Block{{Start: 10, Data: []byte("abcdef")}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected blocks (-want +got):\n%s", diff)
	}
}

func TestWriteSplitsOverlap(t *testing.T) {
	im := New()
	if err := im.Write(0, []byte("0123456789")); err != nil {
		t.Fatal(err)
	}
	if err := im.Write(3, []byte("XYZ")); err != nil {
		t.Fatal(err)
	}
	got, err := im.Read(0, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "012XYZ6789" {
		t.Errorf("got %q", got)
	}
}

func TestReadHoleFails(t *testing.T) {
	im := New()
	if err := im.Write(0, []byte("ab")); err != nil {
		t.Fatal(err)
	}
	if err := im.Write(4, []byte("cd")); err != nil {
		t.Fatal(err)
	}
	if _, err := im.Read(0, 6, nil); err == nil {
		t.Fatal("expected HoleError")
	} else if _, ok := err.(*hexerr.HoleError); !ok {
		t.Errorf("got %T, want *hexerr.HoleError", err)
	}
	got, err := im.Read(0, 6, []byte{0xFF})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{'a', 'b', 0xFF, 0xFF, 'c', 'd'}, got); diff != "" {
		t.Errorf("unexpected fill (-want +got):\n%s", diff)
	}
}

// Boundary case from spec.md §8: fill with a 3-byte pattern at address 7
// produces pattern[0] at 7, pattern[1] at 8, pattern[2] at 9, pattern[0] at
// 10.
func TestFillPatternAlignment(t *testing.T) {
	im := New()
	pattern := []byte{0xAA, 0xBB, 0xCC}
	if err := im.Fill(7, 11, pattern); err != nil {
		t.Fatal(err)
	}
	got, err := im.Read(7, 11, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0xAA, 0xBB, 0xCC, 0xAA}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected fill (-want +got):\n%s", diff)
	}
}

func TestFillIdempotent(t *testing.T) {
	im := New()
	pattern := []byte{1, 2, 3}
	if err := im.Fill(5, 20, pattern); err != nil {
		t.Fatal(err)
	}
	once := blocksOf(t, im)
	if err := im.Fill(5, 20, pattern); err != nil {
		t.Fatal(err)
	}
	twice := blocksOf(t, im)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("fill not idempotent (-once +twice):\n%s", diff)
	}
}

func TestFloodPreservesExisting(t *testing.T) {
	im := New()
	if err := im.Write(0, []byte("AB")); err != nil {
		t.Fatal(err)
	}
	if err := im.Write(5, []byte("CD")); err != nil {
		t.Fatal(err)
	}
	if err := im.Flood(0, 7, []byte{'.'}); err != nil {
		t.Fatal(err)
	}
	got, err := im.Read(0, 7, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "AB...CD" {
		t.Errorf("got %q", got)
	}
}

// Crop + fill from spec.md §8 scenario 4.
func TestCropThenFill(t *testing.T) {
	im := New()
	if err := im.Write(0x1000, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	if err := im.Crop(0x1002, 0x1004); err != nil {
		t.Fatal(err)
	}
	if err := im.Fill(0x1002, 0x1004, []byte{0xFF}); err != nil {
		t.Fatal(err)
	}
	got, err := im.Read(0x1002, 0x1004, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{0xFF, 0xFF}, got); diff != "" {
		t.Errorf("unexpected crop+fill result (-want +got):\n%s", diff)
	}
	if s, e, ok := im.Extent(); !ok || s != 0x1002 || e != 0x1004 {
		t.Errorf("Extent() = %#x, %#x, %v", s, e, ok)
	}
}

func TestShiftRoundTrip(t *testing.T) {
	im := New()
	if err := im.Write(100, []byte("payload")); err != nil {
		t.Fatal(err)
	}
	before := blocksOf(t, im)
	if err := im.Shift(50); err != nil {
		t.Fatal(err)
	}
	if err := im.Shift(-50); err != nil {
		t.Fatal(err)
	}
	after := blocksOf(t, im)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("shift(+n);shift(-n) != identity (-before +after):\n%s", diff)
	}
}

func TestShiftUnderflowFails(t *testing.T) {
	im := New()
	if err := im.Write(10, []byte("x")); err != nil {
		t.Fatal(err)
	}
	before := blocksOf(t, im)
	if err := im.Shift(-20); err == nil {
		t.Fatal("expected error")
	}
	after := blocksOf(t, im)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("failed shift mutated image (-before +after):\n%s", diff)
	}
}

func TestReverseRoundTrip(t *testing.T) {
	im := New()
	if err := im.Write(0, []byte("ab")); err != nil {
		t.Fatal(err)
	}
	if err := im.Write(5, []byte("cde")); err != nil {
		t.Fatal(err)
	}
	before := blocksOf(t, im)
	if err := im.Reverse(); err != nil {
		t.Fatal(err)
	}
	if err := im.Reverse(); err != nil {
		t.Fatal(err)
	}
	after := blocksOf(t, im)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("reverse();reverse() != identity (-before +after):\n%s", diff)
	}
}

func TestReverseReflectsAddresses(t *testing.T) {
	im := New()
	if err := im.Write(0, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := im.Reverse(); err != nil {
		t.Fatal(err)
	}
	got, err := im.Read(0, 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{3, 2, 1}, got); diff != "" {
		t.Errorf("unexpected reversal (-want +got):\n%s", diff)
	}
}

func TestMergeIdempotent(t *testing.T) {
	a := New()
	if err := a.Write(0, []byte("aaaa")); err != nil {
		t.Fatal(err)
	}
	b := New()
	if err := b.Write(2, []byte("bb")); err != nil {
		t.Fatal(err)
	}
	if err := a.Merge(b); err != nil {
		t.Fatal(err)
	}
	once := blocksOf(t, a)
	if err := a.Merge(b); err != nil {
		t.Fatal(err)
	}
	twice := blocksOf(t, a)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("merge not idempotent (-once +twice):\n%s", diff)
	}
	got, err := a.Read(0, 4, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "aabb" {
		t.Errorf("got %q", got)
	}
}

func TestInsertShiftsUp(t *testing.T) {
	im := New()
	if err := im.Write(0, []byte("helloworld")); err != nil {
		t.Fatal(err)
	}
	if err := im.Insert(5, []byte(", ")); err != nil {
		t.Fatal(err)
	}
	got, err := im.Read(0, 12, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello, world" {
		t.Errorf("got %q", got)
	}
}

func TestFindDoesNotSpanHoles(t *testing.T) {
	im := New()
	if err := im.Write(0, []byte("fooBA")); err != nil {
		t.Fatal(err)
	}
	if err := im.Write(10, []byte("Rbaz")); err != nil {
		t.Fatal(err)
	}
	if _, err := im.Find([]byte("BAR"), nil, nil); err == nil {
		t.Fatal("expected NotFoundError: pattern spans a hole")
	}
	addr, err := im.Find([]byte("Rbaz"), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if addr != 10 {
		t.Errorf("addr = %d, want 10", addr)
	}
}

func TestBoundedWriteFails(t *testing.T) {
	im := New()
	if err := im.SetBounds(0x8000, 0x10000); err != nil {
		t.Fatal(err)
	}
	if err := im.Write(0xFFFE, []byte("ABCD")); err == nil {
		t.Fatal("expected BoundsError")
	} else if _, ok := err.(*hexerr.BoundsError); !ok {
		t.Errorf("got %T, want *hexerr.BoundsError", err)
	}
	if !im.IsEmpty() {
		t.Errorf("failed write mutated image")
	}
}

func TestHolesPartitionExtent(t *testing.T) {
	im := New()
	if err := im.Write(0, []byte("ab")); err != nil {
		t.Fatal(err)
	}
	if err := im.Write(10, []byte("cd")); err != nil {
		t.Fatal(err)
	}
	if err := im.Write(20, []byte("ef")); err != nil {
		t.Fatal(err)
	}
	holes := im.Holes()
	want := []Hole{{Start: 2, End: 10}, {Start: 12, End: 20}}
	if diff := cmp.Diff(want, holes); diff != "" {
		t.Errorf("unexpected holes (-want +got):\n%s", diff)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	im := New()
	if err := im.Write(0, []byte("abc")); err != nil {
		t.Fatal(err)
	}
	if err := im.Write(100, []byte("xyz")); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := im.WriteSnapshot(&buf); err != nil {
		t.Fatal(err)
	}
	restored := New()
	if err := restored.ReadSnapshot(&buf); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(blocksOf(t, im), blocksOf(t, restored)); diff != "" {
		t.Errorf("snapshot round-trip mismatch (-want +got):\n%s", diff)
	}
}
