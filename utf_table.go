package cripak

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Table is a fully parsed UTF table. The raw blob is retained so DATA cells
// and embedded sub-tables can be materialized from the data pool.
type Table struct {
	Header  TableHeader
	Name    string
	Columns []Column
	Strings StringPool
	Rows    []Row

	raw []byte
}

// ParseTable parses a complete UTF table blob, magic and frame included.
// The string pool is indexed up front since column names are resolved for
// every row lookup.
func ParseTable(blob []byte) (*Table, error) {
	hdr, err := parseTableHeader(blob)
	if err != nil {
		return nil, err
	}
	end := int(utfFrameSize + hdr.TableSize)
	if end > len(blob) {
		return nil, fmt.Errorf("%w: table declares %d bytes, blob has %d",
			ErrShortRead, end, len(blob))
	}

	pool := NewIndexedStringPool(blob[hdr.StringPoolOffset:hdr.DataPoolOffset], hdr.Encoding)

	columns, err := parseColumns(blob[utfHeaderSize:hdr.RowsOffset], hdr, pool)
	if err != nil {
		return nil, err
	}
	rows, err := parseRows(blob[hdr.RowsOffset:hdr.StringPoolOffset], hdr, columns, pool)
	if err != nil {
		return nil, err
	}

	t := &Table{
		Header:  hdr,
		Columns: columns,
		Strings: pool,
		Rows:    rows,
		raw:     blob[:end],
	}
	t.Name, _ = pool.GetString(hdr.NameOffset)
	return t, nil
}

// ReadTable reads one plain UTF table from the current position of a
// stream. Obfuscated tables cannot be read this way: their length field is
// masked, so only a surrounding container frame (see the CPK reader) knows
// how much to read before unmasking.
func ReadTable(r io.Reader) (*Table, error) {
	var frame [utfFrameSize]byte
	if _, err := io.ReadFull(r, frame[:]); err != nil {
		return nil, fmt.Errorf("table frame: %w", err)
	}
	if string(frame[:4]) != utfMagic {
		return nil, fmt.Errorf("%w: expected %q, found % X", ErrInvalidMagic, utfMagic, frame[:4])
	}
	size := binary.BigEndian.Uint32(frame[4:8])
	blob := make([]byte, utfFrameSize+int(size))
	copy(blob, frame[:])
	if _, err := io.ReadFull(r, blob[utfFrameSize:]); err != nil {
		return nil, fmt.Errorf("table body: %w", err)
	}
	return ParseTable(blob)
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return i
		}
	}
	return -1
}

// Value returns the named cell of row r. The second result is false when
// the column does not exist or carries no value in that row.
func (t *Table) Value(r int, column string) (RowValue, bool) {
	if r < 0 || r >= len(t.Rows) {
		return RowValue{}, false
	}
	c := t.ColumnIndex(column)
	if c < 0 {
		return RowValue{}, false
	}
	v := t.Rows[r][c]
	return v, v.Valid
}

// DataBytes materializes a DATA cell's blob from the table's data pool.
func (t *Table) DataBytes(ref DataRef) ([]byte, error) {
	start := int64(t.Header.DataPoolOffset) + int64(ref.Offset)
	end := start + int64(ref.Length)
	if end > int64(len(t.raw)) {
		return nil, fmt.Errorf("%w: data ref [%d, %d) exceeds table of %d bytes",
			ErrOutOfBounds, start, end, len(t.raw))
	}
	return t.raw[start:end], nil
}

// SubTable parses the UTF table stored in the named DATA cell of row r.
// Returns nil without error when the column is absent or the cell is empty,
// mirroring optional embedded tables in ACB banks.
func (t *Table) SubTable(r int, column string) (*Table, error) {
	v, ok := t.Value(r, column)
	if !ok || v.Type != TypeData || v.Data.Length == 0 {
		return nil, nil
	}
	blob, err := t.DataBytes(v.Data)
	if err != nil {
		return nil, fmt.Errorf("sub-table %s: %w", column, err)
	}
	sub, err := ParseTable(blob)
	if err != nil {
		return nil, fmt.Errorf("sub-table %s: %w", column, err)
	}
	return sub, nil
}
