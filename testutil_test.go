package cripak

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

// Fixture builders: synthetic UTF tables, CPK archives and CriLAYLA blobs
// assembled in memory, so every test runs against bytes this package also
// has to parse.

type stringInterner struct {
	buf  []byte
	offs map[string]uint32
}

func (si *stringInterner) intern(s string) uint32 {
	if si.offs == nil {
		si.offs = make(map[string]uint32)
	}
	if off, ok := si.offs[s]; ok {
		return off
	}
	off := uint32(len(si.buf))
	si.buf = append(si.buf, s...)
	si.buf = append(si.buf, 0)
	si.offs[s] = off
	return off
}

type testColumn struct {
	name    string
	typ     ColumnType
	storage ColumnStorage
	def     any  // inline default for StorageConstant columns
	rawFlag byte // overrides the assembled flag byte when non-zero
}

type testTableSpec struct {
	name     string
	encoding byte
	columns  []testColumn
	rows     [][]any // one value per PER_ROW column, in column order
	data     []byte  // data pool contents
	// strideOverride widens the declared row stride beyond the natural
	// per-row width sum; rows are zero-padded to match.
	strideOverride int
}

func encodeCell(t *testing.T, typ ColumnType, v any, pool *stringInterner) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch typ {
	case TypeU8, TypeI8:
		buf.WriteByte(byte(asInt(t, v)))
	case TypeU16, TypeI16:
		binary.Write(&buf, binary.BigEndian, uint16(asInt(t, v)))
	case TypeU32, TypeI32:
		binary.Write(&buf, binary.BigEndian, uint32(asInt(t, v)))
	case TypeU64, TypeI64:
		binary.Write(&buf, binary.BigEndian, uint64(asInt(t, v)))
	case TypeF32:
		binary.Write(&buf, binary.BigEndian, math.Float32bits(float32(v.(float64))))
	case TypeF64:
		binary.Write(&buf, binary.BigEndian, math.Float64bits(v.(float64)))
	case TypeString:
		binary.Write(&buf, binary.BigEndian, pool.intern(v.(string)))
	case TypeData:
		ref := v.(DataRef)
		binary.Write(&buf, binary.BigEndian, ref.Offset)
		binary.Write(&buf, binary.BigEndian, ref.Length)
	default:
		t.Fatalf("encodeCell: unhandled type %v", typ)
	}
	return buf.Bytes()
}

func asInt(t *testing.T, v any) int64 {
	t.Helper()
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	}
	t.Fatalf("asInt: unhandled value %T", v)
	return 0
}

// buildTestTable assembles a complete UTF table blob, frame included.
func buildTestTable(t *testing.T, spec testTableSpec) []byte {
	t.Helper()
	pool := &stringInterner{}
	nameOff := pool.intern(spec.name)

	var colBytes bytes.Buffer
	stride := 0
	for _, col := range spec.columns {
		flag := col.rawFlag
		if flag == 0 {
			flag = byte(col.storage) | byte(col.typ)
		}
		colBytes.WriteByte(flag)
		binary.Write(&colBytes, binary.BigEndian, pool.intern(col.name))
		if storageOf(flag) == StorageConstant {
			colBytes.Write(encodeCell(t, col.typ, col.def, pool))
		}
		if storageOf(flag) == StoragePerRow {
			stride += ColumnType(flag & flagTypeMask).Size()
		}
	}
	if spec.strideOverride != 0 {
		stride = spec.strideOverride
	}

	var rowBytes bytes.Buffer
	for _, row := range spec.rows {
		start := rowBytes.Len()
		vi := 0
		for _, col := range spec.columns {
			flag := col.rawFlag
			if flag == 0 {
				flag = byte(col.storage) | byte(col.typ)
			}
			if storageOf(flag) != StoragePerRow {
				continue
			}
			rowBytes.Write(encodeCell(t, col.typ, row[vi], pool))
			vi++
		}
		for rowBytes.Len() < start+stride {
			rowBytes.WriteByte(0)
		}
	}

	rowsOffset := utfHeaderBytes + colBytes.Len()
	spOffset := rowsOffset + rowBytes.Len()
	dpOffset := spOffset + len(pool.buf)

	var body bytes.Buffer
	body.WriteByte(1) // version
	body.WriteByte(spec.encoding)
	binary.Write(&body, binary.BigEndian, uint16(rowsOffset))
	binary.Write(&body, binary.BigEndian, uint32(spOffset))
	binary.Write(&body, binary.BigEndian, uint32(dpOffset))
	binary.Write(&body, binary.BigEndian, nameOff)
	binary.Write(&body, binary.BigEndian, uint16(len(spec.columns)))
	binary.Write(&body, binary.BigEndian, uint16(stride))
	binary.Write(&body, binary.BigEndian, uint32(len(spec.rows)))
	body.Write(colBytes.Bytes())
	body.Write(rowBytes.Bytes())
	body.Write(pool.buf)
	body.Write(spec.data)

	var blob bytes.Buffer
	blob.WriteString(utfMagic)
	binary.Write(&blob, binary.BigEndian, uint32(body.Len()))
	body.WriteTo(&blob)
	return blob.Bytes()
}

// laylaBitWriter emits bits in decoder order and packs them into a body the
// backward reader consumes correctly.
type laylaBitWriter struct {
	bits []bool
}

func (w *laylaBitWriter) push(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		w.bits = append(w.bits, v>>i&1 == 1)
	}
}

func (w *laylaBitWriter) pushLiteral(b byte) {
	w.push(0, 1)
	w.push(uint32(b), 8)
}

// pushMatch emits a back-reference token with the variable-width length
// code the decoder expects.
func (w *laylaBitWriter) pushMatch(offset uint32, length int) {
	w.push(1, 1)
	w.push(offset, 13)
	rem := length - crilaylaMinMatch
	for _, width := range []int{2, 3, 5, 8} {
		max := 1<<width - 1
		chunk := rem
		if chunk > max {
			chunk = max
		}
		w.push(uint32(chunk), width)
		rem -= chunk
		if chunk != max {
			return
		}
	}
	for {
		chunk := rem
		if chunk > 0xFF {
			chunk = 0xFF
		}
		w.push(uint32(chunk), 8)
		rem -= chunk
		if chunk != 0xFF {
			return
		}
	}
}

func (w *laylaBitWriter) body() []byte {
	n := (len(w.bits) + 7) / 8
	body := make([]byte, n)
	for i, bit := range w.bits {
		if bit {
			body[n-1-i/8] |= 1 << (7 - i%8)
		}
	}
	return body
}

// laylaBlob wraps a finished body into a full CRILAYLA blob.
func laylaBlob(t *testing.T, prefix []byte, uncompressed int, body []byte) []byte {
	t.Helper()
	if len(prefix) != crilaylaPrefixSize {
		t.Fatalf("laylaBlob: prefix must be %d bytes, got %d", crilaylaPrefixSize, len(prefix))
	}
	var blob bytes.Buffer
	blob.WriteString(crilaylaMagic)
	binary.Write(&blob, binary.LittleEndian, uint32(uncompressed))
	binary.Write(&blob, binary.LittleEndian, uint32(len(body)))
	blob.Write(body)
	blob.Write(prefix)
	return blob.Bytes()
}

// compressLiterals encodes tail as literal tokens only. The blob always
// inflates, so tests that need FileSize < ExtractSize use compressRepeat.
func compressLiterals(t *testing.T, prefix, tail []byte) []byte {
	t.Helper()
	var w laylaBitWriter
	for i := len(tail) - 1; i >= 0; i-- {
		w.pushLiteral(tail[i])
	}
	return laylaBlob(t, prefix, len(tail), w.body())
}

// compressRepeat encodes n copies of b: three literals then one overlapped
// back-reference covering the rest. Smaller than its output once n reaches
// 24; for shorter runs the 16-byte header outweighs the saving.
func compressRepeat(t *testing.T, prefix []byte, b byte, n int) []byte {
	t.Helper()
	if n < 2*crilaylaMinMatch {
		t.Fatalf("compressRepeat: need at least %d bytes", 2*crilaylaMinMatch)
	}
	var w laylaBitWriter
	for i := 0; i < crilaylaMinMatch; i++ {
		w.pushLiteral(b)
	}
	w.pushMatch(0, n-crilaylaMinMatch)
	return laylaBlob(t, prefix, n, w.body())
}

// testCpkEntry is one file of a synthetic archive. stored holds the bytes
// exactly as they sit in the archive (already compressed or encrypted).
type testCpkEntry struct {
	dir     string
	name    string
	stored  []byte
	extract uint32
	id      uint32
	user    string
	crc     uint32
}

type testCpkSpec struct {
	entries      []testCpkEntry
	obfuscateToc bool
	withEtoc     bool
	// contentFirst places payloads between the header and the TOC, which
	// trips the ContentOffset+FileOffset < TocOffset override.
	contentFirst bool
	omitToc      bool
}

func containerFrame(tag string, blob []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(tag)
	binary.Write(&buf, binary.BigEndian, uint32(len(blob)))
	buf.Write(make([]byte, 8))
	buf.Write(blob)
	return buf.Bytes()
}

// buildTestCpk assembles a complete CPK archive image.
func buildTestCpk(t *testing.T, spec testCpkSpec) []byte {
	t.Helper()

	relOffsets := make([]uint64, len(spec.entries))
	content := &bytes.Buffer{}
	for i, e := range spec.entries {
		relOffsets[i] = uint64(content.Len())
		content.Write(e.stored)
	}

	tocRows := make([][]any, len(spec.entries))
	for i, e := range spec.entries {
		tocRows[i] = []any{
			e.dir, e.name,
			int(len(e.stored)), int(e.extract),
			int64(relOffsets[i]),
			int(e.id), e.user, int(e.crc),
		}
	}
	tocBlob := buildTestTable(t, testTableSpec{
		name:     "CpkTocInfo",
		encoding: EncodingUTF8,
		columns: []testColumn{
			{name: "DirName", typ: TypeString, storage: StoragePerRow},
			{name: "FileName", typ: TypeString, storage: StoragePerRow},
			{name: "FileSize", typ: TypeU32, storage: StoragePerRow},
			{name: "ExtractSize", typ: TypeU32, storage: StoragePerRow},
			{name: "FileOffset", typ: TypeU64, storage: StoragePerRow},
			{name: "ID", typ: TypeU32, storage: StoragePerRow},
			{name: "UserString", typ: TypeString, storage: StoragePerRow},
			{name: "CRC", typ: TypeU32, storage: StoragePerRow},
		},
		rows: tocRows,
	})
	if spec.obfuscateToc {
		DeobfuscateTable(tocBlob)
	}

	var etocBlob []byte
	if spec.withEtoc {
		etocRows := make([][]any, len(spec.entries))
		for i := range spec.entries {
			etocRows[i] = []any{int64(0x20240000 + i), "workdir"}
		}
		etocBlob = buildTestTable(t, testTableSpec{
			name:     "CpkEtocInfo",
			encoding: EncodingUTF8,
			columns: []testColumn{
				{name: "UpdateDateTime", typ: TypeU64, storage: StoragePerRow},
				{name: "LocalDir", typ: TypeString, storage: StoragePerRow},
			},
			rows: etocRows,
		})
	}

	headerTable := func(tocOffset, etocOffset, contentOffset uint64) []byte {
		return buildTestTable(t, testTableSpec{
			name:     "CpkHeader",
			encoding: EncodingUTF8,
			columns: []testColumn{
				{name: "TocOffset", typ: TypeU64, storage: StoragePerRow},
				{name: "TocSize", typ: TypeU64, storage: StoragePerRow},
				{name: "EtocOffset", typ: TypeU64, storage: StoragePerRow},
				{name: "EtocSize", typ: TypeU64, storage: StoragePerRow},
				{name: "ItocOffset", typ: TypeU64, storage: StoragePerRow},
				{name: "ItocSize", typ: TypeU64, storage: StoragePerRow},
				{name: "ContentOffset", typ: TypeU64, storage: StoragePerRow},
				{name: "Files", typ: TypeU32, storage: StoragePerRow},
				{name: "Align", typ: TypeU16, storage: StoragePerRow},
			},
			rows: [][]any{{
				int64(tocOffset), int64(containerFrameSize + len(tocBlob)),
				int64(etocOffset), int64(containerFrameSize + len(etocBlob)),
				int64(0), int64(0),
				int64(contentOffset), len(spec.entries), 1,
			}},
		})
	}

	// The header table's size does not depend on the values it carries, so
	// size a zero-filled copy first, then lay the archive out.
	headerSize := len(headerTable(0, 0, 0))
	headerEnd := uint64(containerFrameSize + headerSize)

	var tocOffset, etocOffset, contentOffset uint64
	if spec.contentFirst {
		contentOffset = headerEnd
		tocOffset = contentOffset + uint64(content.Len())
	} else {
		tocOffset = headerEnd
		next := tocOffset + uint64(containerFrameSize+len(tocBlob))
		if spec.withEtoc {
			etocOffset = next
			next += uint64(containerFrameSize + len(etocBlob))
		}
		contentOffset = next
	}
	if spec.omitToc {
		tocOffset = 0
	}

	var archive bytes.Buffer
	archive.Write(containerFrame(cpkSignature, headerTable(tocOffset, etocOffset, contentOffset)))
	if spec.contentFirst {
		archive.Write(content.Bytes())
		archive.Write(containerFrame(tocSignature, tocBlob))
	} else if !spec.omitToc {
		archive.Write(containerFrame(tocSignature, tocBlob))
		if spec.withEtoc {
			archive.Write(containerFrame(etocSignature, etocBlob))
		}
		archive.Write(content.Bytes())
	}
	return archive.Bytes()
}

// testBytes generates a deterministic pseudo-random buffer.
func testBytes(n int, seed uint32) []byte {
	out := make([]byte, n)
	state := seed
	for i := range out {
		state = state*1664525 + 1013904223
		out[i] = byte(state >> 24)
	}
	return out
}
