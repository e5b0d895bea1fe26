package cripak

import (
	"bytes"
	"io"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// StringPool resolves u32 offsets into a table's NUL-terminated string
// block. Offsets are relative to the start of the pool.
type StringPool interface {
	// GetString returns the decoded string starting at offset, or false
	// when the offset does not resolve.
	GetString(offset uint32) (string, bool)
}

// ScanStringPool reads the pool on every lookup: O(length) per call, no
// build cost. It also resolves offsets that point into the middle of a
// stored string, returning the suffix.
type ScanStringPool struct {
	pool     []byte
	encoding byte
}

// NewScanStringPool wraps the pool window [string_pool_offset,
// data_pool_offset) without copying or indexing it.
func NewScanStringPool(pool []byte, encoding byte) *ScanStringPool {
	return &ScanStringPool{pool: pool, encoding: encoding}
}

func (p *ScanStringPool) GetString(offset uint32) (string, bool) {
	if int64(offset) >= int64(len(p.pool)) {
		return "", false
	}
	raw := p.pool[offset:]
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	return decodePoolString(raw, p.encoding), true
}

// IndexedStringPool walks the pool once at construction and answers lookups
// from a map. Chosen when the same pool is queried many times, e.g. for
// per-row column-name resolution. Only start-of-string offsets resolve.
type IndexedStringPool struct {
	index map[uint32]string
}

// NewIndexedStringPool builds the offset index over the pool window.
func NewIndexedStringPool(pool []byte, encoding byte) *IndexedStringPool {
	index := make(map[uint32]string)
	offset := 0
	for offset < len(pool) {
		raw := pool[offset:]
		next := len(raw)
		if i := bytes.IndexByte(raw, 0); i >= 0 {
			raw = raw[:i]
			next = i + 1
		}
		index[uint32(offset)] = decodePoolString(raw, encoding)
		offset += next
	}
	return &IndexedStringPool{index: index}
}

func (p *IndexedStringPool) GetString(offset uint32) (string, bool) {
	s, ok := p.index[offset]
	return s, ok
}

// decodePoolString converts raw pool bytes to a Go string honoring the
// table's encoding byte. Undecodable Shift-JIS falls back to the raw bytes.
func decodePoolString(raw []byte, encoding byte) string {
	if encoding != EncodingShiftJIS || isASCII(raw) {
		return string(raw)
	}
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(raw), japanese.ShiftJIS.NewDecoder()))
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
