package hexrec

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"hexrec/sparseimage"
)

// ansiAddress and ansiReset highlight the address column; PrintImage only
// emits them when the destination is a terminal.
const (
	ansiAddress = "\x1b[36m"
	ansiReset   = "\x1b[0m"
)

// isTerminal reports whether w is an *os.File referring to a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// PrintImage renders mem's populated blocks as a conventional 16-bytes-
// per-line hex dump (address, hex bytes, ASCII gutter) to w. It is the
// shared implementation every format's File.Print delegates to.
func PrintImage(w io.Writer, mem *sparseimage.Image) error {
	color := isTerminal(w)
	for _, b := range mem.Blocks() {
		for off := 0; off < len(b.Data); off += 16 {
			end := off + 16
			if end > len(b.Data) {
				end = len(b.Data)
			}
			line := b.Data[off:end]
			addr := b.Start + uint64(off)
			if color {
				if _, err := fmt.Fprintf(w, "%s%08x%s  ", ansiAddress, addr, ansiReset); err != nil {
					return err
				}
			} else {
				if _, err := fmt.Fprintf(w, "%08x  ", addr); err != nil {
					return err
				}
			}
			for i := 0; i < 16; i++ {
				if i < len(line) {
					if _, err := fmt.Fprintf(w, "%02x ", line[i]); err != nil {
						return err
					}
				} else {
					if _, err := io.WriteString(w, "   "); err != nil {
						return err
					}
				}
				if i == 7 {
					if _, err := io.WriteString(w, " "); err != nil {
						return err
					}
				}
			}
			if _, err := io.WriteString(w, " |"); err != nil {
				return err
			}
			for _, c := range line {
				if c >= 0x20 && c < 0x7f {
					if _, err := w.Write([]byte{c}); err != nil {
						return err
					}
				} else {
					if _, err := io.WriteString(w, "."); err != nil {
						return err
					}
				}
			}
			if _, err := io.WriteString(w, "|\n"); err != nil {
				return err
			}
		}
	}
	return nil
}
