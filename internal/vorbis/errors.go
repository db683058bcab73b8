package vorbis

import (
	"github.com/philipch07/vorbisdec/internal/ogg"
)

// Re-export the ogg package's error taxonomy under vorbis-local names so
// callers of this package never need to import internal/ogg themselves just
// to inspect an error kind.
type ErrorKind = ogg.ErrorKind

const (
	InvalidData         = ogg.InvalidData
	CrcMismatch         = ogg.CrcMismatch
	UnexpectedEOF        = ogg.UnexpectedEOF
	EndOfPacket         = ogg.EndOfPacket
	OutOfRange          = ogg.OutOfRange
	Disposed            = ogg.Disposed
	SynchronizationLock = ogg.SynchronizationLock
)

func newError(kind ErrorKind, msg string) error { return ogg.NewError(kind, msg) }

func wrapError(kind ErrorKind, err error) error { return ogg.WrapError(kind, err) }

// KindOf reports err's ErrorKind, if it carries one.
func KindOf(err error) (ErrorKind, bool) { return ogg.KindOf(err) }
