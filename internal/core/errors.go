// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors following ADR-021 error handling pattern.
var (
	// Stream errors
	ErrStreamTruncated  = errors.New("flowzip: stream truncated")
	ErrInvalidRecord    = errors.New("flowzip: invalid diff record")
	ErrReferenceMissing = errors.New("flowzip: diff reference missing")

	// Encoding errors
	ErrTimestampOverflow = errors.New("flowzip: timestamp delta out of range")
	ErrTooManyChanges    = errors.New("flowzip: too many field changes")
	ErrRefOverflow       = errors.New("flowzip: packet reference exceeds 28 bits")

	// Packet decoding errors
	ErrPacketTooShort   = errors.New("flowzip: packet too short")
	ErrUnsupportedProto = errors.New("flowzip: unsupported protocol")

	// Byte-compression errors
	ErrUnknownCodec = errors.New("flowzip: unknown codec")

	// Archive errors
	ErrArchiveInvalid = errors.New("flowzip: invalid archive")

	// Configuration errors
	ErrConfigInvalid = errors.New("flowzip: invalid configuration")
)
