package avr

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"hexrec"
)

func TestRoundTrip(t *testing.T) {
	input := "000000:1234\n000001:5678\n"
	f := New()
	if _, err := f.Parse(bytes.NewReader([]byte(input)), hexrec.ParseOptions{}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, err := f.Memory().Read(0, 4, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []byte{0x34, 0x12, 0x78, 0x56}
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

func TestUpdateRecordsRejectsOddByteCount(t *testing.T) {
	f := FromBytes([]byte{0x01, 0x02, 0x03}, 0)
	if err := f.UpdateRecords(); err == nil {
		t.Fatal("expected an error for an odd-length block, got nil")
	}
}
