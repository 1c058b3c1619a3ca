package asciihex

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"hexrec"
)

func TestParseAddressAndData(t *testing.T) {
	input := "$A1000,DE AD BE EF\x03"
	f := New()
	if _, err := f.Parse(bytes.NewReader([]byte(input)), hexrec.ParseOptions{}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, err := f.Memory().Read(0x1000, 0x1004, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []byte{0xDE, 0xAD, 0xBE, 0xEF}
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

func TestChecksumBlockMismatch(t *testing.T) {
	input := "$A0000,AA BB $SFF,\x03" // wrong checksum: AA+BB=0x165, two's complement low byte = 0x9B
	f := New()
	if _, err := f.Parse(bytes.NewReader([]byte(input)), hexrec.ParseOptions{}); err == nil {
		t.Fatal("expected checksum error, got nil")
	}

	f2 := New()
	res, err := f2.Parse(bytes.NewReader([]byte(input)), hexrec.ParseOptions{IgnoreErrors: true})
	if err != nil {
		t.Fatalf("Parse with IgnoreErrors: %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("want 1 warning, got %d: %v", len(res.Warnings), res.Warnings)
	}
}

func TestMissingTerminatorRejected(t *testing.T) {
	f := New()
	if _, err := f.Parse(bytes.NewReader([]byte("$A0000,AA BB")), hexrec.ParseOptions{}); err == nil {
		t.Fatal("expected missing-ETX error, got nil")
	}
}
