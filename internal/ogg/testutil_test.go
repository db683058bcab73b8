package ogg

import "encoding/binary"

// memSource is an in-memory ByteSource for tests, backed by a plain []byte
// and a real Lock so the same locking contract BufferedReader expects from
// a file or network source is exercised here too.
type memSource struct {
	data []byte
	lock *Lock
}

func newMemSource(data []byte) *memSource {
	return &memSource{data: data, lock: NewLock()}
}

func (s *memSource) ReadAt(p []byte, pos int64) (int, error) {
	if pos >= int64(len(s.data)) {
		return 0, nil
	}
	n := copy(p, s.data[pos:])
	return n, nil
}

func (s *memSource) Length() (int64, error) { return int64(len(s.data)), nil }
func (s *memSource) CanSeek() bool          { return true }
func (s *memSource) Close() error           { return nil }

func (s *memSource) TakeLock(holder any) error    { return s.lock.TakeLock(holder) }
func (s *memSource) ReleaseLock(holder any) error { return s.lock.ReleaseLock(holder) }

// buildPage assembles one raw Ogg page for serial/seq/granule/flags and the
// given body, splitting it into a segment table the way a real encoder
// would (runs of 255 terminated by a short segment, or an explicit trailing
// 0 entry for an exact multiple of 255).
func buildPage(serial int32, seq int32, granule int64, continues, bos, eos bool, body []byte) []byte {
	var segTable []byte
	remaining := len(body)
	for remaining >= 255 {
		segTable = append(segTable, 255)
		remaining -= 255
	}
	segTable = append(segTable, byte(remaining))

	var flags byte
	if continues {
		flags |= 0x01
	}
	if bos {
		flags |= 0x02
	}
	if eos {
		flags |= 0x04
	}

	hdr := make([]byte, pageHeaderSize)
	copy(hdr[0:4], capturePattern)
	hdr[4] = 0 // version
	hdr[5] = flags
	binary.LittleEndian.PutUint64(hdr[6:14], uint64(granule))
	binary.LittleEndian.PutUint32(hdr[14:18], uint32(serial))
	binary.LittleEndian.PutUint32(hdr[18:22], uint32(seq))
	// CRC at [22:26] filled in below.
	hdr[26] = byte(len(segTable))

	full := make([]byte, 0, pageHeaderSize+len(segTable)+len(body))
	full = append(full, hdr...)
	full = append(full, segTable...)
	full = append(full, body...)

	crc := Checksum(0, full)
	binary.LittleEndian.PutUint32(full[22:26], crc)
	return full
}
