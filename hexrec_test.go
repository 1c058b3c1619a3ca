package hexrec_test

import (
	"strings"
	"testing"

	"hexrec"

	_ "hexrec/format/raw"
	_ "hexrec/format/titxt"
)

// TestLoadSniffPrefersStructuredFormatOverRaw checks that content sniffing
// with an empty format name never lets raw (which accepts any byte stream)
// shadow a more specific format that also accepts the input.
func TestLoadSniffPrefersStructuredFormatOverRaw(t *testing.T) {
	input := "@F000\nAA BB\nq\n"
	rf, _, err := hexrec.Load(strings.NewReader(input), "", hexrec.ParseOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := rf.Memory().Read(0xF000, 0xF002, nil)
	if err != nil {
		t.Fatalf("sniffed format did not decode as TI-TXT (got raw instead?): %v", err)
	}
	want := []byte{0xAA, 0xBB}
	if got[0] != want[0] || got[1] != want[1] {
		t.Errorf("unexpected memory: got %v, want %v", got, want)
	}
}
