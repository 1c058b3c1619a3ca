package avr

import (
	"bytes"
	"encoding/hex"
	"fmt"

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

// parseLine parses one "AAAAAA:HHLL" line (without its terminator).
func parseLine(lineNo int, line []byte) (*Record, error) {
	colon := bytes.IndexByte(line, ':')
	if colon != 6 {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: "line must have a 6-hex-digit address before ':'"}
	}
	addrRaw := make([]byte, 3)
	if _, err := hex.Decode(addrRaw, line[:6]); err != nil {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: fmt.Sprintf("invalid address hex: %v", err)}
	}
	wordAddr := uint64(addrRaw[0])<<16 | uint64(addrRaw[1])<<8 | uint64(addrRaw[2])

	rest := line[colon+1:]
	if len(rest) != 4 {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: "data field must be exactly 4 hex digits"}
	}
	dataRaw := make([]byte, 2)
	if _, err := hex.Decode(dataRaw, rest); err != nil {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: fmt.Sprintf("invalid data hex: %v", err)}
	}
	return &Record{WordAddr: wordAddr, High: dataRaw[0], Low: dataRaw[1]}, nil
}

// parseAll parses buf into an ordered record slice.
func parseAll(buf []byte, ignoreErrors bool) ([]*Record, []error, error) {
	contents, terminators := splitLines(buf)
	var records []*Record
	var warnings []error
	var garbage []byte

	for i, content := range contents {
		lineNo := i + 1
		if len(bytes.TrimSpace(content)) == 0 {
			garbage = append(garbage, content...)
			garbage = append(garbage, terminators[i]...)
			continue
		}
		r, err := parseLine(lineNo, content)
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
	}
	return records, warnings, nil
}
