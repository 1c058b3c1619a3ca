package sparseimage

import (
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/xerrors"
)

// WriteSnapshot serializes the block table to w, zstd-compressing each
// block's data independently. This is a cache convenience for reloading a
// large parsed image between repeated invocations; it is not a hex-record
// wire format and is not covered by the round-trip properties that apply to
// RecordFile formats.
func (im *Image) WriteSnapshot(w io.Writer) error {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return xerrors.Errorf("sparseimage: new zstd encoder: %w", err)
	}
	defer enc.Close()

	if err := binary.Write(w, binary.LittleEndian, uint32(len(im.blocks))); err != nil {
		return xerrors.Errorf("sparseimage: writing block count: %w", err)
	}
	for _, b := range im.blocks {
		compressed := enc.EncodeAll(b.data, nil)
		if err := binary.Write(w, binary.LittleEndian, b.start); err != nil {
			return xerrors.Errorf("sparseimage: writing block start: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, uint64(len(b.data))); err != nil {
			return xerrors.Errorf("sparseimage: writing block length: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, uint64(len(compressed))); err != nil {
			return xerrors.Errorf("sparseimage: writing compressed length: %w", err)
		}
		if _, err := w.Write(compressed); err != nil {
			return xerrors.Errorf("sparseimage: writing compressed block: %w", err)
		}
	}
	return nil
}

// ReadSnapshot replaces im's contents with the blocks serialized by
// WriteSnapshot. Bounds are left untouched.
func (im *Image) ReadSnapshot(r io.Reader) error {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return xerrors.Errorf("sparseimage: new zstd decoder: %w", err)
	}
	defer dec.Close()

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return xerrors.Errorf("sparseimage: reading block count: %w", err)
	}
	blocks := make([]block, 0, count)
	for i := uint32(0); i < count; i++ {
		var start, rawLen, compLen uint64
		if err := binary.Read(r, binary.LittleEndian, &start); err != nil {
			return xerrors.Errorf("sparseimage: reading block start: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &rawLen); err != nil {
			return xerrors.Errorf("sparseimage: reading block length: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &compLen); err != nil {
			return xerrors.Errorf("sparseimage: reading compressed length: %w", err)
		}
		compressed := make([]byte, compLen)
		if _, err := io.ReadFull(r, compressed); err != nil {
			return xerrors.Errorf("sparseimage: reading compressed block: %w", err)
		}
		data, err := dec.DecodeAll(compressed, make([]byte, 0, rawLen))
		if err != nil {
			return xerrors.Errorf("sparseimage: decompressing block: %w", err)
		}
		blocks = append(blocks, block{start: start, data: data})
	}
	im.blocks = blocks
	return nil
}
