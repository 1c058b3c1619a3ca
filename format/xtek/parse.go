package xtek

import (
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

func nibbleValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}

// nibbles decodes every hex character in s into its 4-bit value.
func nibbles(s []byte) ([]byte, error) {
	out := make([]byte, len(s))
	for i, c := range s {
		v, ok := nibbleValue(c)
		if !ok {
			return nil, fmt.Errorf("not a hex digit: %q", c)
		}
		out[i] = v
	}
	return out, nil
}

// takeByte combines two consecutive nibbles (big-endian) into one byte.
func takeByte(n []byte, i int) byte { return n[i]<<4 | n[i+1] }

// parseLine parses one "%LLTCAAAAAAAA...DD..." line (without its
// terminator), operating on the nibble stream directly since T breaks
// byte alignment.
func parseLine(lineNo int, line []byte) (*Record, error) {
	if len(line) < 1 || line[0] != '%' {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: "line does not start with '%'"}
	}
	n, err := nibbles(line[1:])
	if err != nil {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: err.Error()}
	}
	if len(n) < 6 {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: "line too short"}
	}
	length := takeByte(n, 0)
	tag := Tag(n[2])
	wantChecksum := takeByte(n, 3)
	addrLen := int(n[5])
	if len(n) < 6+addrLen*2 {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: "line too short for declared address width"}
	}
	var addr uint64
	for i := 0; i < addrLen; i++ {
		addr = addr<<8 | uint64(takeByte(n, 6+i*2))
	}
	dataStart := 6 + addrLen*2
	dataNibbles := n[dataStart:]
	if len(dataNibbles)%2 != 0 {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: "trailing half-byte in data field"}
	}
	data := make([]byte, len(dataNibbles)/2)
	for i := range data {
		data[i] = takeByte(dataNibbles, i*2)
	}
	if len(data) != int(length) {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: "length field does not match data length"}
	}

	r := &Record{RecTag: tag, Addr: addr, AddrLen: addrLen, RecData: data}
	if got := checksum(tag, addr, addrLen, data); got != wantChecksum {
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
		if len(content) == 0 || content[0] != '%' {
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
