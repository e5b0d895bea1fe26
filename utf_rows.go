package cripak

import "fmt"

// Row is the decoded cells of one table row, in column order.
type Row []RowValue

// parseRows decodes hdr.RowCount rows from the row block. Row i starts at
// i*RowStride; only PER_ROW columns consume bytes. After each row the
// cursor must land exactly on the next stride boundary.
func parseRows(block []byte, hdr TableHeader, columns []Column, pool StringPool) ([]Row, error) {
	stride := int(hdr.RowStride)
	rows := make([]Row, 0, hdr.RowCount)
	for i := 0; i < int(hdr.RowCount); i++ {
		start := i * stride
		if start+stride > len(block) {
			return nil, fmt.Errorf("%w: row %d needs bytes [%d, %d), row block is %d bytes",
				ErrShortRead, i, start, start+stride, len(block))
		}
		w := newWindow(block[start : start+stride])

		row := make(Row, 0, len(columns))
		for c := range columns {
			col := &columns[c]
			switch col.Storage {
			case StorageNone:
				row = append(row, noneValue(col.Type))
			case StorageZero:
				row = append(row, zeroValue(col.Type))
			case StorageConstant:
				row = append(row, col.Default)
			case StoragePerRow:
				v, err := decodeValue(col.Type, w, pool)
				if err != nil {
					return nil, fmt.Errorf("row %d column %s: %w", i, col.Name, err)
				}
				row = append(row, v)
			}
		}
		if w.remaining() != 0 {
			return nil, fmt.Errorf("%w: row %d consumed %d of %d bytes",
				ErrRowStrideMismatch, i, stride-w.remaining(), stride)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
