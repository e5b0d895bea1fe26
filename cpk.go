package cripak

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Container frame tags. Each framed region is the 4-byte tag, a u32
// big-endian payload length, 8 padding bytes, then the (possibly
// obfuscated) UTF table payload.
const (
	cpkSignature  = "CPK "
	tocSignature  = "TOC "
	etocSignature = "ETOC"
	itocSignature = "ITOC"

	containerFrameSize = 0x10
)

// CpkReader enumerates and extracts the files of a CPK archive. A reader
// exclusively owns its backing stream and is not safe for concurrent use;
// open one reader per goroutine instead (they share no mutable state).
type CpkReader struct {
	stream    io.ReadSeeker
	closer    io.Closer
	path      string
	decryptor Decryptor

	header *Table
	toc    *Table
	etoc   *Table
	itoc   *Table

	tocOffset     uint64
	tocSize       uint64
	etocOffset    uint64
	etocSize      uint64
	itocOffset    uint64
	itocSize      uint64
	contentOffset uint64
	align         uint64
	declaredFiles uint32

	files  []*CpkFile
	byPath map[string]*CpkFile
}

// OpenCpk opens the archive at path. A nil decryptor leaves file payloads
// untouched. Close releases the underlying file.
func OpenCpk(path string, decryptor Decryptor) (*CpkReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CPK file: %w", err)
	}
	r, err := NewCpkReader(f, decryptor)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.path = path
	r.closer = f
	return r, nil
}

// NewCpkReader parses the archive headers from an already-open stream. The
// reader takes ownership of the stream for its lifetime.
func NewCpkReader(stream io.ReadSeeker, decryptor Decryptor) (*CpkReader, error) {
	if decryptor == nil {
		decryptor = NopDecryptor{}
	}
	r := &CpkReader{stream: stream, decryptor: decryptor}
	if err := r.readHeader(); err != nil {
		return nil, err
	}
	return r, nil
}

// Close releases the backing file when the reader was opened by path.
func (r *CpkReader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// readContainer reads the framed table at offset and parses its payload,
// unmasking it first when obfuscated.
func readContainer(rs io.ReadSeeker, offset int64, tag string) (*Table, error) {
	if _, err := rs.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to %s frame: %w", tag, err)
	}
	var frame [containerFrameSize]byte
	if _, err := io.ReadFull(rs, frame[:]); err != nil {
		return nil, fmt.Errorf("%s frame: %w", tag, err)
	}
	if string(frame[:4]) != tag {
		if tag == cpkSignature {
			return nil, fmt.Errorf("%w: expected %q, found % X", ErrBadSignature, tag, frame[:4])
		}
		return nil, fmt.Errorf("%w: expected %q, found % X", ErrInvalidMagic, tag, frame[:4])
	}
	size := binary.BigEndian.Uint32(frame[4:8])
	blob := make([]byte, size)
	if _, err := io.ReadFull(rs, blob); err != nil {
		return nil, fmt.Errorf("%s payload: %w", tag, err)
	}
	if IsObfuscatedTable(blob) {
		DeobfuscateTable(blob)
	}
	table, err := ParseTable(blob)
	if err != nil {
		return nil, fmt.Errorf("%s table: %w", tag, err)
	}
	return table, nil
}

// readHeader parses the HEADER table at offset 0 and captures the layout
// fields its single row declares.
func (r *CpkReader) readHeader() error {
	header, err := readContainer(r.stream, 0, cpkSignature)
	if err != nil {
		return err
	}
	if len(header.Rows) == 0 {
		return fmt.Errorf("%w: HEADER table has no rows", ErrMissingTable)
	}
	r.header = header

	r.tocOffset = r.headerUint("TocOffset")
	r.tocSize = r.headerUint("TocSize")
	r.etocOffset = r.headerUint("EtocOffset")
	r.etocSize = r.headerUint("EtocSize")
	r.itocOffset = r.headerUint("ItocOffset")
	r.itocSize = r.headerUint("ItocSize")
	r.contentOffset = r.headerUint("ContentOffset")
	r.align = r.headerUint("Align")
	r.declaredFiles = uint32(r.headerUint("Files"))
	return nil
}

func (r *CpkReader) headerUint(column string) uint64 {
	v, ok := r.header.Value(0, column)
	if !ok {
		return 0
	}
	return v.Uint()
}

// HeaderTable exposes the parsed HEADER table.
func (r *CpkReader) HeaderTable() *Table { return r.header }

// ContentOffset is the base added to per-file offsets.
func (r *CpkReader) ContentOffset() uint64 { return r.contentOffset }

// Align is the alignment unit the packer used for stored file offsets.
func (r *CpkReader) Align() uint64 { return r.align }

// DeclaredFiles is the file count the HEADER table declares.
func (r *CpkReader) DeclaredFiles() uint32 { return r.declaredFiles }

// Itoc returns the parsed ITOC table, available after Files. Rows of
// ITOC-only inline files are exposed here but not synthesized into the
// file list.
func (r *CpkReader) Itoc() *Table { return r.itoc }

// Files reads the TOC (and ETOC/ITOC when declared) and returns one entry
// per stored file. The list is built once and cached.
func (r *CpkReader) Files() ([]*CpkFile, error) {
	if r.files != nil {
		return r.files, nil
	}
	if r.tocOffset == 0 {
		return nil, fmt.Errorf("%w: HEADER declares no TOC", ErrMissingTable)
	}
	toc, err := readContainer(r.stream, int64(r.tocOffset), tocSignature)
	if err != nil {
		return nil, err
	}
	r.toc = toc
	if r.etocOffset != 0 {
		if r.etoc, err = readContainer(r.stream, int64(r.etocOffset), etocSignature); err != nil {
			return nil, err
		}
	}
	if r.itocOffset != 0 {
		if r.itoc, err = readContainer(r.stream, int64(r.itocOffset), itocSignature); err != nil {
			return nil, err
		}
	}

	files := make([]*CpkFile, 0, len(toc.Rows))
	byPath := make(map[string]*CpkFile, len(toc.Rows))
	for i := range toc.Rows {
		f := &CpkFile{
			Dir:         tableString(toc, i, "DirName"),
			Name:        tableString(toc, i, "FileName"),
			FileSize:    uint32(tableUint(toc, i, "FileSize")),
			ExtractSize: uint32(tableUint(toc, i, "ExtractSize")),
			ID:          uint32(tableUint(toc, i, "ID")),
			UserString:  tableString(toc, i, "UserString"),
			TocName:     tableString(toc, i, "TocName"),
		}
		if v, ok := toc.Value(i, "CRC"); ok {
			f.CRC = uint32(v.Uint())
			f.HasCRC = true
		}

		// Payload position: ContentOffset + FileOffset, unless that lands
		// before the TOC, in which case the stored offset is already
		// absolute.
		fileOffset := tableUint(toc, i, "FileOffset")
		abs := r.contentOffset + fileOffset
		if abs < r.tocOffset {
			abs = fileOffset
		}
		f.Offset = abs

		if r.etoc != nil && i < len(r.etoc.Rows) {
			f.UpdateDateTime = tableUint(r.etoc, i, "UpdateDateTime")
			f.LocalDir = tableString(r.etoc, i, "LocalDir")
		}
		files = append(files, f)
		byPath[f.Path()] = f
	}

	// The HEADER's Files count covers ITOC-only entries too, so it is only
	// enforceable when no ITOC is present.
	if r.itoc == nil && r.declaredFiles != 0 && uint32(len(files)) != r.declaredFiles {
		return nil, fmt.Errorf("TOC has %d rows, HEADER declares %d files",
			len(files), r.declaredFiles)
	}

	r.files = files
	r.byPath = byPath
	return files, nil
}

func tableString(t *Table, row int, column string) string {
	v, ok := t.Value(row, column)
	if !ok || v.Type != TypeString {
		return ""
	}
	return v.Str
}

func tableUint(t *Table, row int, column string) uint64 {
	v, ok := t.Value(row, column)
	if !ok {
		return 0
	}
	return v.Uint()
}

// ByPath finds an entry by its "dir/name" path as the TOC spells it.
func (r *CpkReader) ByPath(path string) (*CpkFile, error) {
	if _, err := r.Files(); err != nil {
		return nil, err
	}
	if f, ok := r.byPath[path]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
}

// ExtractFile materializes one entry: read the stored bytes, run the
// decryptor, and CriLAYLA-decompress when the stored size is smaller than
// the extracted size. Compressed entries come back as DecompressCriLayla
// returns them: the 0x100-byte raw prefix followed by the decoded body, the
// blob's declared uncompressed size + 0x100 bytes in total.
func (r *CpkReader) ExtractFile(f *CpkFile) ([]byte, error) {
	return extractFrom(r.stream, f, r.decryptor)
}

func extractFrom(rs io.ReadSeeker, f *CpkFile, decryptor Decryptor) ([]byte, error) {
	if _, err := rs.Seek(int64(f.Offset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to %s: %w", f.Path(), err)
	}
	buf := make([]byte, f.FileSize)
	if _, err := io.ReadFull(rs, buf); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Path(), err)
	}
	if decryptor != nil {
		if err := decryptor.Decrypt(buf, f); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDecryption, f.Path(), err)
		}
	}
	if f.Compressed() {
		out, err := DecompressCriLayla(buf)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress %s: %w", f.Path(), err)
		}
		return out, nil
	}
	return buf, nil
}
