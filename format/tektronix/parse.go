package tektronix

import (
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

// parseLine parses one "/AAAACCKKDDDD..." line (without its terminator).
func parseLine(lineNo int, line []byte) (*Record, error) {
	if len(line) < 1 || line[0] != '/' {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: "line does not start with '/'"}
	}
	hexPart := line[1:]
	if len(hexPart) < 8 {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: "line too short"}
	}
	head := make([]byte, 4)
	if _, err := hex.Decode(head, hexPart[:8]); err != nil {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: fmt.Sprintf("invalid hex digits: %v", err)}
	}
	addr := uint64(head[0])<<8 | uint64(head[1])
	count := int(head[2])
	wantChecksum := head[3]

	dataHex := hexPart[8:]
	data := make([]byte, hex.DecodedLen(len(dataHex)))
	if _, err := hex.Decode(data, dataHex); err != nil {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: fmt.Sprintf("invalid data hex: %v", err)}
	}
	if len(data) != count {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: "byte count field does not match data length"}
	}

	tag := DataTag
	if count == 0 {
		tag = EOFTag
	}
	r := &Record{RecTag: tag, Addr: addr, RecData: data}
	if got := checksum(addr, data); got != wantChecksum {
		return r, &hexerr.ChecksumError{
			ParseError: &hexerr.ParseError{Line: lineNo, Reason: "checksum mismatch"},
			Expected:   uint64(got),
			Actual:     uint64(wantChecksum),
		}
	}
	return r, nil
}

// parseAll parses buf into an ordered record slice.
func parseAll(buf []byte, ignoreErrors bool) ([]*Record, []error, error) {
	contents, terminators := splitLines(buf)
	var records []*Record
	var warnings []error
	var garbage []byte

	for i, content := range contents {
		lineNo := i + 1
		if len(content) == 0 || content[0] != '/' {
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
			break
		}
	}
	return records, warnings, nil
}
