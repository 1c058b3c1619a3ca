package mos

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

// parseLine parses one ";CCAAAA DD...KKKK" line (without its terminator).
func parseLine(lineNo int, line []byte) (*Record, error) {
	if len(line) < 1 || line[0] != ';' {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: "line does not start with ';'"}
	}
	fields := bytes.Fields(line[1:])
	if len(fields) < 2 {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: "missing data/checksum field"}
	}
	head := fields[0]
	if len(head) < 6 {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: "header field too short"}
	}
	headRaw := make([]byte, hex.DecodedLen(len(head)))
	if _, err := hex.Decode(headRaw, head); err != nil {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: fmt.Sprintf("invalid hex digits: %v", err)}
	}
	count := int(headRaw[0])
	addr := uint64(headRaw[1])<<8 | uint64(headRaw[2])

	// The data and checksum hex digits form a single run (possibly split
	// across whitespace by a lenient writer, possibly not, per the
	// serializer's own no-separator layout) -- join the remaining fields
	// and split it positionally: the trailing 4 hex digits are always
	// the checksum, the preceding 2*count digits are always the data.
	var tail []byte
	for _, f := range fields[1:] {
		tail = append(tail, f...)
	}
	wantLen := 2*count + 4
	if len(tail) != wantLen {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: "byte count field does not match data length"}
	}
	dataHex, checksumHex := tail[:2*count], tail[2*count:]
	data := make([]byte, count)
	if _, err := hex.Decode(data, dataHex); err != nil {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: fmt.Sprintf("invalid data hex: %v", err)}
	}
	ckRaw := make([]byte, 2)
	if _, err := hex.Decode(ckRaw, checksumHex); err != nil {
		return nil, &hexerr.ParseError{Line: lineNo, Reason: fmt.Sprintf("invalid checksum hex: %v", err)}
	}
	wantChecksum := uint16(ckRaw[0])<<8 | uint16(ckRaw[1])

	tag := DataTag
	if count == 0 {
		tag = EOFTag // ";00"-tagged line; address field repurposed as record count
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
		if len(content) == 0 || content[0] != ';' {
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
