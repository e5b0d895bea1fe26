package cripak

// Decryptor is the per-file decryption hook invoked on the raw stored bytes
// before decompression. Implementations mutate buf in place, must be
// deterministic, and must not have side effects beyond the buffer.
type Decryptor interface {
	Decrypt(buf []byte, file *CpkFile) error
}

// NopDecryptor leaves every file untouched. It is the default when a reader
// is constructed without a decryptor.
type NopDecryptor struct{}

func (NopDecryptor) Decrypt([]byte, *CpkFile) error { return nil }

// p5rEncryptAttr is the user string CRI tooling attaches to entries the
// game encrypts.
const p5rEncryptAttr = "CRI_CFATTR:ENCRYPT"

const (
	p5rRegionStart = 0x20
	p5rRegionSize  = 0x400
)

// P5RDecryptor implements the scheme used by Persona 5 Royal (PC and JP
// PS4): XOR bytes [0x20, 0x420) with bytes [0x420, 0x820) in place. Files
// of 0x820 bytes or fewer are stored in the clear even when they carry the
// ENCRYPT attribute.
type P5RDecryptor struct{}

func (P5RDecryptor) Decrypt(buf []byte, file *CpkFile) error {
	if file != nil && file.UserString != p5rEncryptAttr {
		return nil
	}
	if len(buf) <= p5rRegionStart+2*p5rRegionSize {
		return nil
	}
	for i := p5rRegionStart; i < p5rRegionStart+p5rRegionSize; i++ {
		buf[i] ^= buf[i+p5rRegionSize]
	}
	return nil
}

// IDStreamDecryptor XORs a keystream across the head of each file. The
// stream comes from a linear congruential generator seeded with the
// entry's ID, so the mask is stable per file and its own inverse.
type IDStreamDecryptor struct {
	// Limit caps how many bytes are masked; 0 masks the whole file.
	Limit int
}

func (d IDStreamDecryptor) Decrypt(buf []byte, file *CpkFile) error {
	n := len(buf)
	if d.Limit > 0 && d.Limit < n {
		n = d.Limit
	}
	var state uint32
	if file != nil {
		state = file.ID
	}
	for i := 0; i < n; i++ {
		state = state*0x343FD + 0x269EC3
		buf[i] ^= byte(state >> 16)
	}
	return nil
}
