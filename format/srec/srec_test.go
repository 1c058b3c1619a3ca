package srec

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"hexrec"
	"hexrec/hexerr"
)

// TestParseChainRoundTrips constructs the canonical S-record chain from
// scratch (header, one data record, count, start) and checks that Memory()
// reflects the data record, and still does after Serialize and re-Parse.
func TestParseChainRoundTrips(t *testing.T) {
	f := New()
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x0A}
	records := []*Record{
		NewHeader(nil),
		NewData(0, data),
		NewCount(1),
		NewStart(Data16, 0),
	}
	for _, r := range records {
		r.After = []byte("\r\n")
	}
	f.records = records
	f.recordsStale = false
	if err := f.ApplyRecords(); err != nil {
		t.Fatalf("ApplyRecords: %v", err)
	}

	got, err := f.Memory().Read(0, 5, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff(data, got); diff != "" {
		t.Errorf("unexpected memory (-want +got):\n%s", diff)
	}

	var out bytes.Buffer
	if err := f.Serialize(&out); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	f2 := New()
	if _, err := f2.Parse(bytes.NewReader(out.Bytes()), hexrec.ParseOptions{}); err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	got2, err := f2.Memory().Read(0, 5, nil)
	if err != nil {
		t.Fatalf("Read after re-parse: %v", err)
	}
	if diff := cmp.Diff(data, got2); diff != "" {
		t.Errorf("re-parsed memory mismatch (-want +got):\n%s", diff)
	}
}

// TestChecksumMismatchRaisesAtLine checks that a corrupted data line's
// checksum error carries the 1-based line number.
func TestChecksumMismatchRaisesAtLine(t *testing.T) {
	input := "S0030000FC\r\nS1080000010203040AE2\r\nS5030001FB\r\nS9030000FC\r\n" // line 2 checksum should be E3
	f := New()
	_, err := f.Parse(bytes.NewReader([]byte(input)), hexrec.ParseOptions{})
	if err == nil {
		t.Fatal("expected a checksum or parse error, got nil")
	}
	ce, ok := err.(*hexerr.ChecksumError)
	if !ok {
		t.Fatalf("want *hexerr.ChecksumError, got %T: %v", err, err)
	}
	if ce.Line != 2 {
		t.Errorf("checksum error at line %d, want 2", ce.Line)
	}
}

// TestAddressWidthAutoSelection checks that the narrowest data tag is
// chosen for a given address, matching the minimum-width invariant.
func TestAddressWidthAutoSelection(t *testing.T) {
	cases := []struct {
		addr uint64
		want Tag
	}{
		{0x1234, Data16},
		{0x12345, Data24},
		{0x12345678, Data32},
	}
	for _, c := range cases {
		if got := dataWidthForAddress(c.addr); got != c.want {
			t.Errorf("dataWidthForAddress(%#x) = %v, want %v", c.addr, got, c.want)
		}
	}
}

// TestLaxToleratesMixedWidths checks that Lax allows a stream whose data
// records use differing address widths, which strict mode rejects.
func TestLaxToleratesMixedWidths(t *testing.T) {
	input := "S0030000FC\r\n" +
		"S1070000AABBCCDDEA\r\n" +
		"S208010000AABBCCDDE8\r\n" +
		"S5030002FA\r\n" +
		"S9030000FC\r\n"

	f := New()
	if _, err := f.Parse(bytes.NewReader([]byte(input)), hexrec.ParseOptions{}); err == nil {
		t.Fatal("expected strict parse to reject mixed widths")
	}

	f2 := New()
	if _, err := f2.Parse(bytes.NewReader([]byte(input)), hexrec.ParseOptions{Lax: true, IgnoreErrors: true}); err != nil {
		t.Fatalf("lax parse: %v", err)
	}
}

// TestMissingStartRejected checks that a stream lacking a start record
// fails ApplyRecords.
func TestMissingStartRejected(t *testing.T) {
	input := "S0030000FC\r\nS1080000010203040AE3\r\n"
	f := New()
	if _, err := f.Parse(bytes.NewReader([]byte(input)), hexrec.ParseOptions{IgnoreErrors: true}); err == nil {
		t.Fatal("expected missing-start error, got nil")
	}
}
