package ihex

import (
	"encoding/hex"
	"fmt"

	"hexrec/hexerr"
)

// splitLines splits buf into (content, terminator) pairs, terminator being
// "\r\n", "\n", or "" for a final unterminated line. It never drops bytes:
// concatenating content+terminator for every returned line reconstructs
// buf exactly.
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

// parseLine parses one ":CCAAAATTDDDD...KK" line (without its terminator).
func parseLine(lineNo int, line []byte) (*Record, error) {
	if len(line) < 1 || line[0] != ':' {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: "line does not start with ':'"}
	}
	hexPart := line[1:]
	if len(hexPart) < 8 {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: "line too short"}
	}
	raw := make([]byte, hex.DecodedLen(len(hexPart)))
	if _, err := hex.Decode(raw, hexPart); err != nil {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: fmt.Sprintf("invalid hex digits: %v", err)}
	}
	if len(raw) < 5 {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: "line too short"}
	}
	count := int(raw[0])
	addr := uint64(raw[1])<<8 | uint64(raw[2])
	tag := Tag(raw[3])
	wantLen := 1 + 2 + 1 + count + 1 // count, addr hi/lo, tag, data, checksum
	if len(raw) != wantLen {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: "byte count field does not match data length"}
	}
	data := append([]byte(nil), raw[4:4+count]...)
	wantChecksum := raw[4+count]

	r := &Record{RecTag: tag, Addr: addr, RecData: data}
	if got := checksum(tag, addr, data); got != wantChecksum {
		return r, &hexerr.ChecksumError{
			ParseError: &hexerr.ParseError{Line: lineNo, Reason: "checksum mismatch"},
			Expected:   uint64(got),
			Actual:     uint64(wantChecksum),
		}
	}
	return r, nil
}

// parseAll parses buf into an ordered record slice. Non-fatal checksum
// errors are collected as warnings when ignoreErrors is set; any other
// parse error aborts immediately.
func parseAll(buf []byte, ignoreErrors bool) ([]*Record, []error, error) {
	contents, terminators := splitLines(buf)
	var records []*Record
	var warnings []error
	var garbage []byte

	for i, content := range contents {
		lineNo := i + 1
		if len(content) == 0 || content[0] != ':' {
			garbage = append(garbage, content...)
			garbage = append(garbage, terminators[i]...)
			continue
		}
		r, err := parseLine(lineNo, content)
		if err != nil {
			if ce, ok := err.(*hexerr.ChecksumError); ok && ignoreErrors {
				warnings = append(warnings, ce)
			} else {
				return nil, warnings, err
			}
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

		if r.RecTag.IsFileTermination() {
			break // trailing content after EOF is discarded, per ihex
		}
	}
	return records, warnings, nil
}
