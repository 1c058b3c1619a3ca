package ihex

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"hexrec"
)

// TestParseWorkedExample reproduces the canonical single-record Intel HEX
// stream: one DATA record carrying "address gap" at 0x0010, then EOF.
func TestParseWorkedExample(t *testing.T) {
	input := ":0B0010006164647265737320676170A7\r\n:00000001FF\r\n"
	f := New()
	if _, err := f.Parse(strings.NewReader(input), hexrec.ParseOptions{}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, err := f.Memory().Read(0x10, 0x1B, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []byte("address gap")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected memory (-want +got):\n%s", diff)
	}

	var out bytes.Buffer
	if err := f.Serialize(&out); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if out.String() != input {
		t.Errorf("round trip mismatch:\n got  %q\n want %q", out.String(), input)
	}
}

// TestParseBadChecksum checks that a corrupted checksum is rejected by
// default and demoted to a warning under IgnoreErrors.
func TestParseBadChecksum(t *testing.T) {
	input := ":0300300002337A1F\r\n:00000001FF\r\n" // checksum off by one
	f := New()
	if _, err := f.Parse(strings.NewReader(input), hexrec.ParseOptions{}); err == nil {
		t.Fatal("expected checksum error, got nil")
	}

	f2 := New()
	res, err := f2.Parse(strings.NewReader(input), hexrec.ParseOptions{IgnoreErrors: true})
	if err != nil {
		t.Fatalf("Parse with IgnoreErrors: %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("want 1 warning, got %d: %v", len(res.Warnings), res.Warnings)
	}
}

// TestUpdateRecordsSplitsMaxDataLen checks that a 600-byte run is split
// into 255/255/90-byte DATA records, with no leading ELA record emitted
// since the whole run stays below the 64KiB boundary.
func TestUpdateRecordsSplitsMaxDataLen(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 600)
	f := FromBytes(data, 0)

	if err := f.UpdateRecords(); err != nil {
		t.Fatalf("UpdateRecords: %v", err)
	}
	var lens []int
	var elaCount int
	for _, r := range f.Records() {
		if r.IsData() {
			lens = append(lens, r.Count())
		}
		if r.Tag() == int(ELA) {
			elaCount++
		}
	}
	want := []int{255, 255, 90}
	if diff := cmp.Diff(want, lens); diff != "" {
		t.Errorf("unexpected chunk lengths (-want +got):\n%s", diff)
	}
	if elaCount != 0 {
		t.Errorf("want no ELA record below the 64KiB boundary, got %d", elaCount)
	}
}

// TestApplyRecordsCrossing64KiBEmitsExtendedLinearAddress checks that a
// write crossing a 64KiB boundary produces an EXTENDED_LINEAR_ADDRESS
// record and that re-parsing reconstructs the same memory.
func TestApplyRecordsCrossing64KiBEmitsExtendedLinearAddress(t *testing.T) {
	f := New()
	if err := f.EditOps.Mem.Write(0x1FFF0, bytes.Repeat([]byte{0x7E}, 32)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.UpdateRecords(); err != nil {
		t.Fatalf("UpdateRecords: %v", err)
	}

	var elaCount int
	for _, r := range f.Records() {
		if r.Tag() == int(ELA) {
			elaCount++
		}
	}
	if elaCount != 1 {
		t.Fatalf("want exactly 1 ELA record, got %d", elaCount)
	}

	var out bytes.Buffer
	if err := f.Serialize(&out); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	f2 := New()
	if _, err := f2.Parse(bytes.NewReader(out.Bytes()), hexrec.ParseOptions{}); err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	got, err := f2.Memory().Read(0x1FFF0, 0x20010, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want, err := f.Memory().Read(0x1FFF0, 0x20010, nil)
	if err != nil {
		t.Fatalf("Read original: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip across 64KiB boundary mismatch (-want +got):\n%s", diff)
	}
}

// TestMissingEOFRejected checks that a stream lacking the terminator record
// fails ApplyRecords.
func TestMissingEOFRejected(t *testing.T) {
	input := ":0300300002337A1E\r\n"
	f := New()
	if _, err := f.Parse(strings.NewReader(input), hexrec.ParseOptions{}); err == nil {
		t.Fatal("expected missing-EOF error, got nil")
	}
}
