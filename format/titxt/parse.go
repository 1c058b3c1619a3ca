package titxt

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"

	"hexrec/hexerr"
)

func splitLines(buf []byte) (contents [][]byte, terminators [][]byte) {
	start := 0
	for i := 0; i < len(buf); i++ {
		if buf[i] == '\n' {
			end := i
			term := []byte{'\n'}
			if end > start && buf[end-1] == '\r' {
				end--
				term = []byte{'\r', '\n'}
			}
			contents = append(contents, buf[start:end])
			terminators = append(terminators, term)
			start = i + 1
		}
	}
	if start < len(buf) {
		contents = append(contents, buf[start:])
		terminators = append(terminators, nil)
	}
	return contents, terminators
}

func parseLine(lineNo int, line []byte, addr uint64) (*Record, error) {
	switch {
	case len(line) > 0 && line[0] == '@':
		a, err := strconv.ParseUint(string(bytes.TrimSpace(line[1:])), 16, 16)
		if err != nil {
			return nil, &hexerr.ParseError{Line: lineNo, Reason: fmt.Sprintf("invalid address record: %v", err)}
		}
		return &Record{RecKind: AddressKind, Addr: a}, nil

	case len(bytes.TrimSpace(line)) == 1 && bytes.TrimSpace(line)[0] == 'q':
		return &Record{RecKind: EndKind}, nil

	default:
		fields := bytes.Fields(line)
		data := make([]byte, 0, len(fields))
		for _, tok := range fields {
			if len(tok) != 2 {
				return nil, &hexerr.ParseError{Line: lineNo, Reason: "data token is not a 2-digit hex byte"}
			}
			b := make([]byte, 1)
			if _, err := hex.Decode(b, tok); err != nil {
				return nil, &hexerr.ParseError{Line: lineNo, Reason: fmt.Sprintf("invalid hex byte %q: %v", tok, err)}
			}
			data = append(data, b[0])
		}
		return &Record{RecKind: DataKind, Addr: addr, RecData: data}, nil
	}
}

// parseAll parses buf into an ordered record slice, tracking the running
// address across consecutive data lines.
func parseAll(buf []byte, ignoreErrors bool) ([]*Record, []error, error) {
	contents, terminators := splitLines(buf)
	var records []*Record
	var warnings []error
	var garbage []byte
	var addr uint64

	for i, content := range contents {
		lineNo := i + 1
		trimmed := bytes.TrimSpace(content)
		if len(trimmed) == 0 {
			garbage = append(garbage, content...)
			garbage = append(garbage, terminators[i]...)
			continue
		}
		r, err := parseLine(lineNo, content, addr)
		if err != nil {
			if ignoreErrors {
				warnings = append(warnings, err)
				garbage = append(garbage, content...)
				garbage = append(garbage, terminators[i]...)
				continue
			}
			return nil, warnings, err
		}
		if verr := r.Validate(); verr != nil {
			if ignoreErrors {
				warnings = append(warnings, verr)
			} else {
				return nil, warnings, verr
			}
		}
		r.Before = garbage
		garbage = nil
		r.After = terminators[i]
		records = append(records, r)

		switch r.RecKind {
		case AddressKind:
			addr = r.Addr
		case DataKind:
			addr += uint64(len(r.RecData))
		case EndKind:
			return records, warnings, nil
		}
	}
	return records, warnings, nil
}
