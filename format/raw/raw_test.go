package raw

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"hexrec"
)

func TestRoundTrip(t *testing.T) {
	payload := []byte("the quick brown fox")
	f := New()
	if _, err := f.Parse(bytes.NewReader(payload), hexrec.ParseOptions{}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, err := f.Memory().Read(0, uint64(len(payload)), nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff(payload, got); diff != "" {
		t.Errorf("unexpected memory (-want +got):\n%s", diff)
	}

	var out bytes.Buffer
	if err := f.Serialize(&out); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if diff := cmp.Diff(payload, out.Bytes()); diff != "" {
		t.Errorf("serialize mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateRecordsRejectsHoles(t *testing.T) {
	f := New()
	if err := f.EditOps.Mem.Write(0, []byte("AA")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.EditOps.Mem.Write(10, []byte("BB")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.UpdateRecords(); err == nil {
		t.Fatal("expected a hole error, got nil")
	}
}

func TestBaseAddressOffset(t *testing.T) {
	f := FromBytes([]byte{0xAA, 0xBB}, 0x4000)
	var out bytes.Buffer
	if err := f.Serialize(&out); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if diff := cmp.Diff([]byte{0xAA, 0xBB}, out.Bytes()); diff != "" {
		t.Errorf("serialize mismatch (-want +got):\n%s", diff)
	}
}
