package cripak

import (
	"fmt"
	"math"
)

// Column is one parsed column record. Records sit between the table
// preamble and the row block: a flag byte, a u32 name pointer, and, for
// CONSTANT storage only, one inline default value of the type's width.
type Column struct {
	Flags   byte
	Type    ColumnType
	Storage ColumnStorage

	NameOffset uint32
	Name       string

	// Default holds the inline value of a CONSTANT column.
	Default RowValue
}

// parseColumns reads hdr.ColumnCount records from the column block and
// resolves names against the pool. The block runs from the end of the
// preamble to the start of the row block.
func parseColumns(block []byte, hdr TableHeader, pool StringPool) ([]Column, error) {
	w := newWindow(block)
	columns := make([]Column, 0, hdr.ColumnCount)
	for i := 0; i < int(hdr.ColumnCount); i++ {
		flag, err := w.u8()
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		ctype := ColumnType(flag & flagTypeMask)
		if !ctype.valid() {
			return nil, fmt.Errorf("%w: column %d flag 0x%02X has type code %d",
				ErrUnknownType, i, flag, ctype)
		}
		nameOffset, err := w.u32()
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}

		col := Column{
			Flags:      flag,
			Type:       ctype,
			Storage:    storageOf(flag),
			NameOffset: nameOffset,
		}
		if pool != nil {
			col.Name, _ = pool.GetString(nameOffset)
		}
		if col.Storage == StorageConstant {
			col.Default, err = decodeValue(ctype, w, pool)
			if err != nil {
				return nil, fmt.Errorf("column %d (%s) default: %w", i, col.Name, err)
			}
		}
		columns = append(columns, col)
	}
	return columns, nil
}

// decodeValue reads one value of the given type from the cursor. Used for
// both inline column defaults and per-row cells.
func decodeValue(t ColumnType, w *window, pool StringPool) (RowValue, error) {
	switch t {
	case TypeU8:
		b, err := w.u8()
		if err != nil {
			return RowValue{}, err
		}
		return uintValue(t, uint64(b)), nil
	case TypeI8:
		b, err := w.u8()
		if err != nil {
			return RowValue{}, err
		}
		return intValue(t, int64(int8(b))), nil
	case TypeU16:
		u, err := w.u16()
		if err != nil {
			return RowValue{}, err
		}
		return uintValue(t, uint64(u)), nil
	case TypeI16:
		u, err := w.u16()
		if err != nil {
			return RowValue{}, err
		}
		return intValue(t, int64(int16(u))), nil
	case TypeU32:
		u, err := w.u32()
		if err != nil {
			return RowValue{}, err
		}
		return uintValue(t, uint64(u)), nil
	case TypeI32:
		u, err := w.u32()
		if err != nil {
			return RowValue{}, err
		}
		return intValue(t, int64(int32(u))), nil
	case TypeU64:
		u, err := w.u64()
		if err != nil {
			return RowValue{}, err
		}
		return uintValue(t, u), nil
	case TypeI64:
		u, err := w.u64()
		if err != nil {
			return RowValue{}, err
		}
		return intValue(t, int64(u)), nil
	case TypeF32:
		u, err := w.u32()
		if err != nil {
			return RowValue{}, err
		}
		return floatValue(t, float64(math.Float32frombits(u))), nil
	case TypeF64:
		u, err := w.u64()
		if err != nil {
			return RowValue{}, err
		}
		return floatValue(t, math.Float64frombits(u)), nil
	case TypeString:
		off, err := w.u32()
		if err != nil {
			return RowValue{}, err
		}
		v := RowValue{Type: t, Valid: true, StrOffset: off}
		if pool != nil {
			v.Str, _ = pool.GetString(off)
		}
		return v, nil
	case TypeData:
		off, err := w.u32()
		if err != nil {
			return RowValue{}, err
		}
		length, err := w.u32()
		if err != nil {
			return RowValue{}, err
		}
		return RowValue{Type: t, Valid: true, Data: DataRef{Offset: off, Length: length}}, nil
	}
	return RowValue{}, fmt.Errorf("%w: type code %d", ErrUnknownType, t)
}
