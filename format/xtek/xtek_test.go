package xtek

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"hexrec"
)

func TestRoundTrip(t *testing.T) {
	f := FromBytes([]byte{0x11, 0x22, 0x33}, 0x123456)

	var out bytes.Buffer
	if err := f.Serialize(&out); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	f2 := New()
	if _, err := f2.Parse(bytes.NewReader(out.Bytes()), hexrec.ParseOptions{}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, err := f2.Memory().Read(0x123456, 0x123459, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []byte{0x11, 0x22, 0x33}
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

func TestMinAddressBytesChoosesNarrowestWidth(t *testing.T) {
	cases := []struct {
		addr uint64
		want int
	}{
		{0x00, 1},
		{0xFF, 1},
		{0x100, 2},
		{0xFFFF, 2},
		{0x10000, 3},
	}
	for _, c := range cases {
		if got := minAddressBytes(c.addr); got != c.want {
			t.Errorf("minAddressBytes(%#x) = %d, want %d", c.addr, got, c.want)
		}
	}
}
