package mos

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"hexrec"
)

func TestRoundTrip(t *testing.T) {
	f := FromBytes([]byte{0x01, 0x02, 0x03, 0x04}, 0x2000)

	var out bytes.Buffer
	if err := f.Serialize(&out); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	f2 := New()
	if _, err := f2.Parse(bytes.NewReader(out.Bytes()), hexrec.ParseOptions{}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, err := f2.Memory().Read(0x2000, 0x2004, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []byte{0x01, 0x02, 0x03, 0x04}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected memory (-want +got):\n%s", diff)
	}

	var out2 bytes.Buffer
	if err := f2.Serialize(&out2); err != nil {
		t.Fatalf("re-Serialize: %v", err)
	}
	if out.String() != out2.String() {
		t.Errorf("serialize is not stable across a round trip:\n1: %q\n2: %q", out.String(), out2.String())
	}
}

// TestEmptyImageSerializesToTerminatorOnly checks the boundary case of an
// empty image: no data lines, just the EOF line with a zero record count.
func TestEmptyImageSerializesToTerminatorOnly(t *testing.T) {
	f := New()
	var out bytes.Buffer
	if err := f.Serialize(&out); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	f2 := New()
	if _, err := f2.Parse(bytes.NewReader(out.Bytes()), hexrec.ParseOptions{}); err != nil {
		t.Fatalf("re-parse of empty image: %v", err)
	}
	if !f2.Memory().IsEmpty() {
		t.Errorf("expected empty memory after re-parsing an empty image")
	}
}
