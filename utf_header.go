package cripak

import (
	"encoding/binary"
	"fmt"
)

// UTF table binary layout:
//
//	0x00  "@UTF"
//	0x04  u32 table length (excludes this 8-byte frame)
//	0x08  u8  version
//	0x09  u8  string encoding (0 = Shift-JIS, else UTF-8)
//	0x0A  u16 rows offset
//	0x0C  u32 string pool offset
//	0x10  u32 data pool offset
//	0x14  u32 table name (string pool offset)
//	0x18  u16 column count
//	0x1A  u16 row stride
//	0x1C  u32 row count
//
// All fields are big-endian. The three region offsets are stored relative
// to the table body (offset 0x08); TableHeader keeps them relative to the
// start of the table blob so callers can slice it directly.

const (
	utfMagic       = "@UTF"
	utfFrameSize   = 0x8
	utfHeaderSize  = 0x20
	utfHeaderBytes = utfHeaderSize - utfFrameSize
)

const (
	// EncodingShiftJIS marks a table whose string pool is Shift-JIS.
	EncodingShiftJIS byte = 0
	// EncodingUTF8 marks a UTF-8 string pool.
	EncodingUTF8 byte = 1
)

// TableHeader is the parsed UTF table preamble.
type TableHeader struct {
	// TableSize is the body length from the frame, excluding the frame.
	TableSize uint32

	Version  byte
	Encoding byte

	// Region offsets, relative to the start of the table blob (the '@' of
	// the magic), in declaration order.
	RowsOffset       uint32
	StringPoolOffset uint32
	DataPoolOffset   uint32

	// NameOffset points into the string pool at the table's name.
	NameOffset uint32

	ColumnCount uint16
	RowStride   uint16
	RowCount    uint32
}

// parseTableHeader reads the frame and preamble from the start of blob.
func parseTableHeader(blob []byte) (TableHeader, error) {
	var hdr TableHeader

	if len(blob) < utfHeaderSize {
		return hdr, fmt.Errorf("%w: table blob is %d bytes, header needs %d",
			ErrShortRead, len(blob), utfHeaderSize)
	}
	if string(blob[:4]) != utfMagic {
		return hdr, fmt.Errorf("%w: expected %q, found % X", ErrInvalidMagic, utfMagic, blob[:4])
	}
	hdr.TableSize = binary.BigEndian.Uint32(blob[4:8])

	w := newWindow(blob[utfFrameSize:utfHeaderSize])
	hdr.Version, _ = w.u8()
	hdr.Encoding, _ = w.u8()
	rowsOffset, _ := w.u16()
	stringPool, _ := w.u32()
	dataPool, _ := w.u32()
	hdr.NameOffset, _ = w.u32()
	hdr.ColumnCount, _ = w.u16()
	hdr.RowStride, _ = w.u16()
	hdr.RowCount, _ = w.u32()

	// Rebase the body-relative offsets onto the blob.
	hdr.RowsOffset = uint32(rowsOffset) + utfFrameSize
	hdr.StringPoolOffset = stringPool + utfFrameSize
	hdr.DataPoolOffset = dataPool + utfFrameSize

	end := uint32(utfFrameSize) + hdr.TableSize
	if hdr.RowsOffset < utfHeaderSize ||
		hdr.RowsOffset > hdr.StringPoolOffset ||
		hdr.StringPoolOffset > hdr.DataPoolOffset ||
		hdr.DataPoolOffset > end {
		return hdr, fmt.Errorf("%w: region offsets %d/%d/%d exceed table end %d",
			ErrOutOfBounds, hdr.RowsOffset, hdr.StringPoolOffset, hdr.DataPoolOffset, end)
	}
	return hdr, nil
}
