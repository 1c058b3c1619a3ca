// Command hexrec is the command-line front end for the hexrec toolkit: a
// thin boundary around the facade and per-format packages, following the
// distri CLI's verb-dispatch shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/xerrors"

	"hexrec"

	_ "hexrec/format/asciihex"
	_ "hexrec/format/avr"
	_ "hexrec/format/ihex"
	_ "hexrec/format/mos"
	_ "hexrec/format/raw"
	_ "hexrec/format/srec"
	_ "hexrec/format/tektronix"
	_ "hexrec/format/titxt"
	_ "hexrec/format/xtek"

	"hexrec/hexerr"
)

// exitCode classifies err per the CLI's exit-code contract: 1 usage error,
// 2 I/O error, 3 parse/validate error, 0 (unreachable here) success. Errors
// crossing the facade may be wrapped with xerrors.Errorf("...: %w"), so this
// unwraps with xerrors.As rather than a plain type switch.
func exitCode(err error) int {
	var ioErr *hexerr.IOError
	if xerrors.As(err, &ioErr) {
		return 2
	}
	var parseErr *hexerr.ParseError
	var checksumErr *hexerr.ChecksumError
	var validationErr *hexerr.ValidationError
	var boundsErr *hexerr.BoundsError
	var holeErr *hexerr.HoleError
	var formatErr *hexerr.FormatError
	var notFoundErr *hexerr.NotFoundError
	var valueErr *hexerr.ValueError
	switch {
	case xerrors.As(err, &parseErr), xerrors.As(err, &checksumErr),
		xerrors.As(err, &validationErr), xerrors.As(err, &boundsErr),
		xerrors.As(err, &holeErr), xerrors.As(err, &formatErr),
		xerrors.As(err, &notFoundErr), xerrors.As(err, &valueErr):
		return 3
	default:
		return 1
	}
}

type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usage(fset *flag.FlagSet, helpText string) func() {
	return func() {
		fmt.Fprintln(os.Stderr, helpText)
		fmt.Fprintf(os.Stderr, "Flags for hexrec %s:\n", fset.Name())
		fset.PrintDefaults()
	}
}

// rangeFlags are the -s/-e/-v flags shared by every range-taking verb.
type rangeFlags struct {
	start, end *string
	value      *string
}

func addRangeFlags(fset *flag.FlagSet) *rangeFlags {
	rf := &rangeFlags{
		start: fset.String("s", "0", "range start address (also --start)"),
		end:   fset.String("e", "0", "range end address, exclusive (also --end)"),
		value: fset.String("v", "", "fill/flood value, hex bytes (also --value)"),
	}
	fset.StringVar(rf.start, "start", "0", "same as -s")
	fset.StringVar(rf.end, "end", "0", "same as -e")
	fset.StringVar(rf.value, "value", "", "same as -v")
	return rf
}

func parseAddr(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, &usageError{msg: fmt.Sprintf("invalid address %q: %v", s, err)}
	}
	return v, nil
}

func parseValue(s string) ([]byte, error) {
	if s == "" {
		return nil, &usageError{msg: "missing -v/--value"}
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	b := make([]byte, len(s)/2)
	for i := range b {
		v, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, &usageError{msg: fmt.Sprintf("invalid -v/--value %q: %v", s, err)}
		}
		b[i] = byte(v)
	}
	return b, nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &hexerr.IOError{Err: err}
	}
	return f, nil
}

func openOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, &hexerr.IOError{Err: err}
	}
	return f, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// loadFile opens path, resolves its format (explicit formatName, else
// guessed from the extension, falling back to content sniffing), and
// parses it into a RecordFile.
func loadFile(path, formatName string) (hexrec.RecordFile, error) {
	r, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if formatName == "" {
		if guessed, err := hexrec.GuessFormatName(path); err == nil {
			formatName = guessed
		}
	}
	rf, _, err := hexrec.Load(r, formatName, hexrec.ParseOptions{})
	return rf, err
}

func saveFile(rf hexrec.RecordFile, path string) error {
	w, err := openOutput(path)
	if err != nil {
		return err
	}
	defer w.Close()
	return rf.Serialize(w)
}

const convertHelp = `hexrec convert -i FORMAT -o FORMAT <input> <output>

Convert a hex-record file from one format to another.
`

func cmdConvert(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("convert", flag.ContinueOnError)
	fset.Usage = usage(fset, convertHelp)
	inFmt := fset.String("i", "", "input format name (no --input-format long form)")
	outFmt := fset.String("o", "", "output format name (no --output-format long form)")
	if err := fset.Parse(args); err != nil {
		return &usageError{msg: err.Error()}
	}
	if fset.NArg() != 2 {
		return &usageError{msg: "convert needs exactly <input> <output>"}
	}
	if *outFmt == "" {
		return &usageError{msg: "convert requires -o/--output-format"}
	}
	src, err := loadFile(fset.Arg(0), *inFmt)
	if err != nil {
		return err
	}
	dst, err := hexrec.Convert(src, *outFmt)
	if err != nil {
		return err
	}
	return saveFile(dst, fset.Arg(1))
}

const mergeHelp = `hexrec merge -o FORMAT <output> <input>...

Merge one or more hex-record files into a single image, later sources
overwriting earlier ones where they overlap.
`

func cmdMerge(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("merge", flag.ContinueOnError)
	fset.Usage = usage(fset, mergeHelp)
	outFmt := fset.String("o", "", "output format name (no --output-format long form)")
	if err := fset.Parse(args); err != nil {
		return &usageError{msg: err.Error()}
	}
	if fset.NArg() < 2 {
		return &usageError{msg: "merge needs <output> and at least one <input>"}
	}
	if *outFmt == "" {
		return &usageError{msg: "merge requires -o/--output-format"}
	}
	paths := fset.Args()[1:]
	dst, err := hexrec.MergePaths(paths, *outFmt, hexrec.ParseOptions{})
	if err != nil {
		return err
	}
	return saveFile(dst, fset.Arg(0))
}

// withEditedFile loads input, applies edit to its embedded memory, and
// writes the result to output in the same (or an explicitly chosen)
// format.
func withEditedFile(inPath, outPath, inFmt, outFmt string, edit func(*hexrec.EditOps) error) error {
	rf, err := loadFile(inPath, inFmt)
	if err != nil {
		return err
	}
	mem := rf.Memory()
	e := hexrec.NewEditOps(mem, new(bool))
	if err := edit(e); err != nil {
		return err
	}
	rf.DiscardRecords()

	if outFmt == "" {
		outFmt = inFmt
	}
	if outFmt == "" {
		return saveFile(rf, outPath)
	}
	dst, err := hexrec.Convert(rf, outFmt)
	if err != nil {
		return err
	}
	return saveFile(dst, outPath)
}

func editVerb(name, help string, edit func(*hexrec.EditOps, *rangeFlags) error) func(context.Context, []string) error {
	return func(ctx context.Context, args []string) error {
		fset := flag.NewFlagSet(name, flag.ContinueOnError)
		fset.Usage = usage(fset, help)
		inFmt := fset.String("i", "", "input format name (no --input-format long form)")
		outFmt := fset.String("o", "", "output format name (no --output-format long form)")
		rf := addRangeFlags(fset)
		if err := fset.Parse(args); err != nil {
			return &usageError{msg: err.Error()}
		}
		if fset.NArg() != 2 {
			return &usageError{msg: name + " needs exactly <input> <output>"}
		}
		return withEditedFile(fset.Arg(0), fset.Arg(1), *inFmt, *outFmt, func(e *hexrec.EditOps) error {
			return edit(e, rf)
		})
	}
}

func cmdValidate(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("validate", flag.ContinueOnError)
	fset.Usage = usage(fset, "hexrec validate -i FORMAT <input>\n\nParse a file and report any parse/validation errors.\n")
	inFmt := fset.String("i", "", "input format name (no --input-format long form)")
	if err := fset.Parse(args); err != nil {
		return &usageError{msg: err.Error()}
	}
	if fset.NArg() != 1 {
		return &usageError{msg: "validate needs exactly <input>"}
	}
	_, err := loadFile(fset.Arg(0), *inFmt)
	if err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func printVerb(name string) func(context.Context, []string) error {
	return func(ctx context.Context, args []string) error {
		fset := flag.NewFlagSet(name, flag.ContinueOnError)
		fset.Usage = usage(fset, "hexrec "+name+" -i FORMAT <input>\n\nRender a hex dump of the file's memory.\n")
		inFmt := fset.String("i", "", "input format name (no --input-format long form)")
		if err := fset.Parse(args); err != nil {
			return &usageError{msg: err.Error()}
		}
		if fset.NArg() != 1 {
			return &usageError{msg: name + " needs exactly <input>"}
		}
		rf, err := loadFile(fset.Arg(0), *inFmt)
		if err != nil {
			return err
		}
		return rf.Print(os.Stdout)
	}
}

func cmdFind(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("find", flag.ContinueOnError)
	fset.Usage = usage(fset, "hexrec find -i FORMAT -v PATTERN <input>\n\nFind the first occurrence of a byte pattern.\n")
	inFmt := fset.String("i", "", "input format name (no --input-format long form)")
	rf := addRangeFlags(fset)
	if err := fset.Parse(args); err != nil {
		return &usageError{msg: err.Error()}
	}
	if fset.NArg() != 1 {
		return &usageError{msg: "find needs exactly <input>"}
	}
	pattern, err := parseValue(*rf.value)
	if err != nil {
		return err
	}
	f, err := loadFile(fset.Arg(0), *inFmt)
	if err != nil {
		return err
	}
	var startPtr, endPtr *uint64
	if *rf.start != "0" {
		s, err := parseAddr(*rf.start)
		if err != nil {
			return err
		}
		startPtr = &s
	}
	if *rf.end != "0" {
		e, err := parseAddr(*rf.end)
		if err != nil {
			return err
		}
		endPtr = &e
	}
	addr, err := f.Memory().Find(pattern, startPtr, endPtr)
	if err != nil {
		return err
	}
	fmt.Printf("0x%X\n", addr)
	return nil
}

func main() {
	verbs := map[string]func(context.Context, []string) error{
		"convert":  cmdConvert,
		"merge":    cmdMerge,
		"validate": cmdValidate,
		"print":    printVerb("print"),
		"xxd":      printVerb("xxd"),
		"hexdump":  printVerb("hexdump"),
		"find":     cmdFind,
		"crop": editVerb("crop", "hexrec crop -s START -e END <input> <output>\n", func(e *hexrec.EditOps, rf *rangeFlags) error {
			s, err := parseAddr(*rf.start)
			if err != nil {
				return err
			}
			en, err := parseAddr(*rf.end)
			if err != nil {
				return err
			}
			return e.Crop(s, en)
		}),
		"cut": editVerb("cut", "hexrec cut -s START -e END <input> <output>\n", func(e *hexrec.EditOps, rf *rangeFlags) error {
			s, err := parseAddr(*rf.start)
			if err != nil {
				return err
			}
			en, err := parseAddr(*rf.end)
			if err != nil {
				return err
			}
			_, err = e.Cut(s, en)
			return err
		}),
		"clear": editVerb("clear", "hexrec clear -s START -e END <input> <output>\n", func(e *hexrec.EditOps, rf *rangeFlags) error {
			s, err := parseAddr(*rf.start)
			if err != nil {
				return err
			}
			en, err := parseAddr(*rf.end)
			if err != nil {
				return err
			}
			return e.Clear(s, en)
		}),
		"delete": editVerb("delete", "hexrec delete -s START -e END <input> <output>\n", func(e *hexrec.EditOps, rf *rangeFlags) error {
			s, err := parseAddr(*rf.start)
			if err != nil {
				return err
			}
			en, err := parseAddr(*rf.end)
			if err != nil {
				return err
			}
			return e.Delete(s, en)
		}),
		"fill": editVerb("fill", "hexrec fill -s START -e END -v VALUE <input> <output>\n", func(e *hexrec.EditOps, rf *rangeFlags) error {
			s, err := parseAddr(*rf.start)
			if err != nil {
				return err
			}
			en, err := parseAddr(*rf.end)
			if err != nil {
				return err
			}
			v, err := parseValue(*rf.value)
			if err != nil {
				return err
			}
			return e.Fill(s, en, v)
		}),
		"flood": editVerb("flood", "hexrec flood -s START -e END -v VALUE <input> <output>\n", func(e *hexrec.EditOps, rf *rangeFlags) error {
			s, err := parseAddr(*rf.start)
			if err != nil {
				return err
			}
			en, err := parseAddr(*rf.end)
			if err != nil {
				return err
			}
			v, err := parseValue(*rf.value)
			if err != nil {
				return err
			}
			return e.Flood(s, en, v)
		}),
		"shift": editVerb("shift", "hexrec shift -v AMOUNT <input> <output>\n", func(e *hexrec.EditOps, rf *rangeFlags) error {
			v, err := parseValue(*rf.value)
			if err != nil {
				return err
			}
			var amount int64
			for _, b := range v {
				amount = amount<<8 | int64(b)
			}
			return e.Shift(amount)
		}),
		"align": editVerb("align", "hexrec align -v BOUNDARY <input> <output>\n", func(e *hexrec.EditOps, rf *rangeFlags) error {
			v, err := parseAddr(*rf.value)
			if err != nil {
				return err
			}
			return e.Align(v)
		}),
		"split": editVerb("split", "hexrec split -s AT <input> <output>\n", func(e *hexrec.EditOps, rf *rangeFlags) error {
			at, err := parseAddr(*rf.start)
			if err != nil {
				return err
			}
			_, err = e.Split(at)
			return err
		}),
	}

	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: hexrec <command> [options] <args>")
		fmt.Fprintln(os.Stderr, "commands: convert merge crop cut clear fill flood delete find shift align split validate print xxd hexdump")
		os.Exit(1)
	}
	verb, rest := args[0], args[1:]
	v, ok := verbs[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		os.Exit(1)
	}
	if err := v(context.Background(), rest); err != nil {
		fmt.Fprintf(os.Stderr, "hexrec %s: %v\n", verb, err)
		if _, ok := err.(*usageError); ok {
			os.Exit(1)
		}
		os.Exit(exitCode(err))
	}
}
