package asciihex

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"hexrec/hexerr"
)

const etx = 0x03

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n':
		return true
	default:
		return false
	}
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// parseAll scans buf token by token: whitespace runs become the next
// record's Before, "$A.../"$S..." tokens become directive records, ETX
// terminates, and any other contiguous hex-digit run becomes a data
// record at the current running address.
func parseAll(buf []byte, ignoreErrors bool) ([]*Record, []error, error) {
	var records []*Record
	var warnings []error
	var garbage []byte
	var addr uint64
	var runSum byte

	pos := 0
	lineNo := 1
	advance := func(n int) {
		for i := 0; i < n; i++ {
			if pos+i < len(buf) && buf[pos+i] == '\n' {
				lineNo++
			}
		}
		pos += n
	}

	for pos < len(buf) {
		c := buf[pos]
		switch {
		case isSpace(c):
			garbage = append(garbage, c)
			advance(1)

		case c == etx:
			r := &Record{RecKind: EndKind, Before: garbage}
			garbage = nil
			advance(1)
			r.After = buf[pos:]
			records = append(records, r)
			return records, warnings, nil

		case c == '$' && pos+1 < len(buf) && (buf[pos+1] == 'A' || buf[pos+1] == 'a'):
			start := pos
			advance(2)
			digitStart := pos
			for pos < len(buf) && isHexDigit(buf[pos]) {
				advance(1)
			}
			a, err := strconv.ParseUint(string(buf[digitStart:pos]), 16, 32)
			if err != nil {
				if ignoreErrors {
					warnings = append(warnings, &hexerr.ParseError{Line: lineNo, Reason: fmt.Sprintf("invalid $A directive: %v", err)})
					garbage = append(garbage, buf[start:pos]...)
					continue
				}
				return nil, warnings, &hexerr.ParseError{Line: lineNo, Reason: fmt.Sprintf("invalid $A directive: %v", err)}
			}
			if pos < len(buf) && buf[pos] == ',' {
				advance(1)
			}
			addr = a
			runSum = 0
			r := NewAddress(a)
			r.Before = garbage
			garbage = nil
			records = append(records, r)

		case c == '$' && pos+1 < len(buf) && (buf[pos+1] == 'S' || buf[pos+1] == 's'):
			start := pos
			advance(2)
			digitStart := pos
			for pos < len(buf) && isHexDigit(buf[pos]) {
				advance(1)
			}
			v, err := strconv.ParseUint(string(buf[digitStart:pos]), 16, 8)
			if err != nil {
				if ignoreErrors {
					warnings = append(warnings, &hexerr.ParseError{Line: lineNo, Reason: fmt.Sprintf("invalid $S directive: %v", err)})
					garbage = append(garbage, buf[start:pos]...)
					continue
				}
				return nil, warnings, &hexerr.ParseError{Line: lineNo, Reason: fmt.Sprintf("invalid $S directive: %v", err)}
			}
			if pos < len(buf) && buf[pos] == ',' {
				advance(1)
			}
			r := NewChecksum(byte(v))
			if got := byte(0x100 - int(runSum)); got != byte(v) {
				err := &hexerr.ChecksumError{
					ParseError: &hexerr.ParseError{Line: lineNo, Reason: "checksum block mismatch"},
					Expected:   uint64(got),
					Actual:     uint64(v),
				}
				if ignoreErrors {
					warnings = append(warnings, err)
				} else {
					return nil, warnings, err
				}
			}
			runSum = 0
			r.Before = garbage
			garbage = nil
			records = append(records, r)

		case isHexDigit(c):
			digitStart := pos
			for pos < len(buf) && isHexDigit(buf[pos]) {
				advance(1)
			}
			tok := buf[digitStart:pos]
			if len(tok)%2 != 0 {
				err := &hexerr.ParseError{Line: lineNo, Reason: "odd number of hex digits in data run"}
				if ignoreErrors {
					warnings = append(warnings, err)
					garbage = append(garbage, tok...)
					continue
				}
				return nil, warnings, err
			}
			data := make([]byte, hex.DecodedLen(len(tok)))
			hex.Decode(data, tok)
			for _, b := range data {
				runSum += b
			}
			r := NewData(addr, data)
			addr += uint64(len(data))
			r.Before = garbage
			garbage = nil
			records = append(records, r)

		default:
			err := &hexerr.ParseError{Line: lineNo, Reason: fmt.Sprintf("unexpected byte %#x", c)}
			if ignoreErrors {
				warnings = append(warnings, err)
				garbage = append(garbage, c)
				advance(1)
				continue
			}
			return nil, warnings, err
		}
	}
	return records, warnings, nil
}
