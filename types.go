package cripak

import "math"

// ColumnType is the low nibble of a column's flag byte.
type ColumnType uint8

const (
	TypeU8     ColumnType = 0
	TypeI8     ColumnType = 1
	TypeU16    ColumnType = 2
	TypeI16    ColumnType = 3
	TypeU32    ColumnType = 4
	TypeI32    ColumnType = 5
	TypeU64    ColumnType = 6
	TypeI64    ColumnType = 7
	TypeF32    ColumnType = 8
	TypeF64    ColumnType = 9
	TypeString ColumnType = 10
	TypeData   ColumnType = 11
)

// Size returns the number of bytes one value of this type occupies in a
// column record or row block.
func (t ColumnType) Size() int {
	switch t {
	case TypeU8, TypeI8:
		return 1
	case TypeU16, TypeI16:
		return 2
	case TypeU32, TypeI32, TypeF32, TypeString:
		return 4
	case TypeU64, TypeI64, TypeF64, TypeData:
		return 8
	}
	return 0
}

func (t ColumnType) valid() bool {
	return t <= TypeData
}

func (t ColumnType) String() string {
	switch t {
	case TypeU8:
		return "u8"
	case TypeI8:
		return "i8"
	case TypeU16:
		return "u16"
	case TypeI16:
		return "i16"
	case TypeU32:
		return "u32"
	case TypeI32:
		return "i32"
	case TypeU64:
		return "u64"
	case TypeI64:
		return "i64"
	case TypeF32:
		return "f32"
	case TypeF64:
		return "f64"
	case TypeString:
		return "string"
	case TypeData:
		return "data"
	}
	return "invalid"
}

// ColumnStorage is the high nibble of a column's flag byte. The nibble is a
// bitfield: 0x10 named, 0x20 inline default, 0x40 per-row storage.
type ColumnStorage uint8

const (
	StorageNone     ColumnStorage = 0x00
	StorageZero     ColumnStorage = 0x10
	StorageConstant ColumnStorage = 0x30
	StoragePerRow   ColumnStorage = 0x50
)

const (
	flagTypeMask    = 0x0F
	flagStorageMask = 0xF0
	flagHasName     = 0x10
	flagHasDefault  = 0x20
	flagPerRow      = 0x40
)

// storageOf resolves the flag byte's high nibble to a storage mode. Per-row
// wins over an inline default; an inline default wins over zero.
func storageOf(flag byte) ColumnStorage {
	switch {
	case flag&flagPerRow != 0:
		return StoragePerRow
	case flag&flagHasDefault != 0:
		return StorageConstant
	case flag&flagHasName != 0:
		return StorageZero
	}
	return StorageNone
}

func (s ColumnStorage) String() string {
	switch s {
	case StorageNone:
		return "none"
	case StorageZero:
		return "zero"
	case StorageConstant:
		return "constant"
	case StoragePerRow:
		return "per-row"
	}
	return "invalid"
}

// DataRef locates a blob inside a table's data pool.
type DataRef struct {
	Offset uint32
	Length uint32
}

// RowValue is one decoded table cell. Valid is false only for columns whose
// storage mode is NONE. Numeric payloads are held as a raw bit pattern and
// exposed through the typed accessors.
type RowValue struct {
	Type  ColumnType
	Valid bool

	num uint64

	// StrOffset is the raw string-pool offset of a TypeString cell; Str is
	// the resolved text when a pool was available at parse time.
	Str       string
	StrOffset uint32

	Data DataRef
}

// Uint returns the cell as an unsigned integer. Signed cells are
// reinterpreted bit-for-bit.
func (v RowValue) Uint() uint64 { return v.num }

// Int returns the cell as a signed integer. Values of the signed types were
// sign-extended when decoded.
func (v RowValue) Int() int64 { return int64(v.num) }

// Float returns the cell as a float64. F32 cells were widened when decoded.
func (v RowValue) Float() float64 { return math.Float64frombits(v.num) }

func uintValue(t ColumnType, u uint64) RowValue {
	return RowValue{Type: t, Valid: true, num: u}
}

func intValue(t ColumnType, i int64) RowValue {
	return RowValue{Type: t, Valid: true, num: uint64(i)}
}

func floatValue(t ColumnType, f float64) RowValue {
	return RowValue{Type: t, Valid: true, num: math.Float64bits(f)}
}

// zeroValue is the cell emitted for ZERO-storage columns.
func zeroValue(t ColumnType) RowValue {
	v := RowValue{Type: t, Valid: true}
	if t == TypeF32 || t == TypeF64 {
		v.num = math.Float64bits(0)
	}
	return v
}

// noneValue is the placeholder for NONE-storage columns.
func noneValue(t ColumnType) RowValue {
	return RowValue{Type: t}
}

// CpkFile describes one stored file, assembled from a TOC row and, when
// present, the matching ETOC row.
type CpkFile struct {
	Dir  string
	Name string

	// Offset is the absolute position of the stored payload in the CPK
	// stream, already resolved against ContentOffset.
	Offset uint64

	// FileSize is the stored size; ExtractSize the size after CriLAYLA
	// decompression. Equal sizes mean the file is stored uncompressed.
	FileSize    uint32
	ExtractSize uint32

	ID         uint32
	UserString string
	CRC        uint32
	HasCRC     bool
	TocName    string

	// From ETOC, when the archive carries one.
	UpdateDateTime uint64
	LocalDir       string
}

// Path joins directory and file name the way TOC rows spell them.
func (f *CpkFile) Path() string {
	if f.Dir == "" {
		return f.Name
	}
	return f.Dir + "/" + f.Name
}

// Compressed reports whether the stored payload is CriLAYLA-compressed.
func (f *CpkFile) Compressed() bool {
	return f.FileSize < f.ExtractSize
}
