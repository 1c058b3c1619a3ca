package tektronix

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"hexrec"
)

func TestRoundTrip(t *testing.T) {
	f := FromBytes([]byte{0xDE, 0xAD, 0xBE, 0xEF}, 0x0100)

	var out bytes.Buffer
	if err := f.Serialize(&out); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	f2 := New()
	if _, err := f2.Parse(bytes.NewReader(out.Bytes()), hexrec.ParseOptions{}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, err := f2.Memory().Read(0x0100, 0x0104, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []byte{0xDE, 0xAD, 0xBE, 0xEF}
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

func TestMissingTerminatorRejected(t *testing.T) {
	f := New()
	if err := f.EditOps.Mem.Write(0, []byte{0x01}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f.UpdateRecords()
	f.records = f.records[:len(f.records)-1] // drop the terminator
	f.recordsStale = false
	f.memoryStale = true
	if err := f.ApplyRecords(); err == nil {
		t.Fatal("expected missing-terminator error, got nil")
	}
}
