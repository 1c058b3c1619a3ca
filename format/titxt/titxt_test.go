package titxt

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"hexrec"
	"hexrec/sparseimage"
)

// TestMergeTwoInputs reproduces the TI-TXT merge scenario: two adjacent
// address/data blocks parsed separately and merged into one contiguous
// image, then re-serialized as a single coalesced data line.
func TestMergeTwoInputs(t *testing.T) {
	a := New()
	if _, err := a.Parse(bytes.NewReader([]byte("@F000\nAA BB\nq\n")), hexrec.ParseOptions{}); err != nil {
		t.Fatalf("parse a: %v", err)
	}
	b := New()
	if _, err := b.Parse(bytes.NewReader([]byte("@F002\nCC DD\nq\n")), hexrec.ParseOptions{}); err != nil {
		t.Fatalf("parse b: %v", err)
	}

	merged := sparseimage.New()
	if err := merged.Merge(a.Memory()); err != nil {
		t.Fatalf("merge a: %v", err)
	}
	if err := merged.Merge(b.Memory()); err != nil {
		t.Fatalf("merge b: %v", err)
	}

	got, err := merged.Read(0xF000, 0xF004, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected merged memory (-want +got):\n%s", diff)
	}

	out := FromMemory(merged)
	var buf bytes.Buffer
	if err := out.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if want, got := "@F000\nAA BB CC DD\nq\n", buf.String(); got != want {
		t.Errorf("serialize mismatch:\n got  %q\n want %q", got, want)
	}
}

// TestParseRejectsMissingTerminator checks that a stream lacking "q"
// fails ApplyRecords.
func TestParseRejectsMissingTerminator(t *testing.T) {
	f := New()
	if _, err := f.Parse(bytes.NewReader([]byte("@F000\nAA BB\n")), hexrec.ParseOptions{}); err == nil {
		t.Fatal("expected missing-terminator error, got nil")
	}
}
