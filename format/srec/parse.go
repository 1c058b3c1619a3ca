package srec

import (
	"encoding/hex"
	"fmt"

	"hexrec/hexerr"
)

// splitLines splits buf into (content, terminator) pairs without dropping
// any byte; concatenating content+terminator for every line reconstructs
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

// parseLine parses one "SNCC..." line (without its terminator).
func parseLine(lineNo int, line []byte) (*Record, error) {
	if len(line) < 2 || line[0] != 'S' {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: "line does not start with 'S'"}
	}
	digit := line[1]
	if digit < '0' || digit > '9' {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: "invalid S-record type digit"}
	}
	tag := Tag(digit - '0')
	addrWidth := tag.addrWidth()
	if addrWidth == 0 {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: "unsupported S-record tag S" + string(digit)}
	}

	hexPart := line[2:]
	if len(hexPart) < 2 {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: "line too short"}
	}
	raw := make([]byte, hex.DecodedLen(len(hexPart)))
	if _, err := hex.Decode(raw, hexPart); err != nil {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: fmt.Sprintf("invalid hex digits: %v", err)}
	}
	if len(raw) < 1 {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: "line too short"}
	}
	count := int(raw[0])
	if len(raw) != 1+count {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: "remaining-byte count field does not match line length"}
	}
	if count < addrWidth+1 {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: "remaining-byte count too small for address+checksum"}
	}
	body := raw[1:]
	var addr uint64
	for i := 0; i < addrWidth; i++ {
		addr = addr<<8 | uint64(body[i])
	}
	dataLen := count - addrWidth - 1
	data := append([]byte(nil), body[addrWidth:addrWidth+dataLen]...)
	wantChecksum := body[addrWidth+dataLen]

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

// parseAll parses buf into an ordered record slice. Checksum and, when lax
// is false, address-width-mismatch validation errors are fatal unless
// ignoreErrors demotes them to warnings.
func parseAll(buf []byte, ignoreErrors, lax bool) ([]*Record, []error, error) {
	contents, terminators := splitLines(buf)
	var records []*Record
	var warnings []error
	var garbage []byte
	var sawDataWidth Tag

	for i, content := range contents {
		lineNo := i + 1
		if len(content) == 0 || content[0] != 'S' {
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
		if r.RecTag.IsData() {
			if sawDataWidth == 0 {
				sawDataWidth = r.RecTag
			} else if r.RecTag != sawDataWidth && !lax {
				verr := &hexerr.ValidationError{Field: "tag", Reason: "mixed data-record address widths; set Lax to tolerate"}
				if ignoreErrors {
					warnings = append(warnings, verr)
				} else {
					return nil, warnings, verr
				}
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
