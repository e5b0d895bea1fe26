package cripak

import "errors"

// Error values returned by the parsers and the CPK reader. Callers can test
// for them with errors.Is; wrapped messages carry the offending offsets.
var (
	ErrInvalidMagic       = errors.New("invalid magic")
	ErrBadSignature       = errors.New("bad CPK signature")
	ErrShortRead          = errors.New("input ended mid-structure")
	ErrUnknownType        = errors.New("unknown column type")
	ErrRowStrideMismatch  = errors.New("row stride mismatch")
	ErrOutOfBounds        = errors.New("offset out of bounds")
	ErrMissingTable       = errors.New("table not present")
	ErrFileNotFound       = errors.New("file not found in TOC")
	ErrTruncatedBitstream = errors.New("truncated bitstream")
	ErrOutOfBoundsCopy    = errors.New("back-reference out of bounds")
	ErrDecryption         = errors.New("decryption failed")
)
