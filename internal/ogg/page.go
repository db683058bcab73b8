package ogg

import (
	"encoding/binary"
)

const (
	capturePattern = "OggS"
	pageHeaderSize = 27 // capture(4) + version(1) + flags(1) + granule(8) + serial(4) + seq(4) + crc(4) + segcount(1)
	maxSegments    = 255
)

// PageFlags mirrors the Ogg page header_type_flag byte.
type PageFlags struct {
	ContinuesPacket bool
	BeginOfStream   bool
	EndOfStream     bool
}

// Page is one parsed Ogg page: header fields plus the segment table needed
// to split its body into packet fragments. It never holds the page body
// itself -- DataOffset plus the segment table is enough for callers to
// pull bytes from a BufferedReader lazily.
type Page struct {
	StreamSerial    int32
	Flags           PageFlags
	GranulePosition int64
	SequenceNumber  int32
	SegmentTable    []byte
	DataOffset      int64
	IsResync        bool
	LastSegmentFull bool
}

// BodySize returns the total number of body bytes described by the segment
// table.
func (p *Page) BodySize() int {
	total := 0
	for _, s := range p.SegmentTable {
		total += int(s)
	}
	return total
}

// fragment is one packet-sized (or partial) run within a page's segment
// table, described as a byte range relative to the page's DataOffset.
type fragment struct {
	offset   int64
	length   int
	complete bool
}

// fragments splits the page's segment table into runs of 255-byte segments
// terminated by a shorter segment. A trailing run with no terminator is
// reported incomplete -- it continues into the next page for this serial.
func (p *Page) fragments() []fragment {
	var frags []fragment
	var runStart int64
	var size int
	for _, seg := range p.SegmentTable {
		size += int(seg)
		if seg < 255 {
			frags = append(frags, fragment{offset: runStart, length: size, complete: true})
			runStart += int64(size)
			size = 0
		}
	}
	if size > 0 {
		frags = append(frags, fragment{offset: runStart, length: size, complete: false})
	}
	return frags
}

// parsePageAt parses one page starting at offset, validating its CRC-32
// against the stored checksum (header bytes 22..25 zeroed for the
// computation, per the Ogg spec). It does not advance any reader state; the
// caller (PageReader) owns sequencing and resync.
func parsePageAt(br *BufferedReader, holder any, offset int64) (*Page, error) {
	var hdr [pageHeaderSize]byte
	if _, err := br.Read(offset, hdr[:]); err != nil {
		return nil, err
	}
	if string(hdr[0:4]) != capturePattern {
		return nil, NewError(InvalidData, "missing Ogg capture pattern")
	}
	version := hdr[4]
	if version != 0 {
		return nil, NewError(InvalidData, "unsupported Ogg stream structure version")
	}

	flagsByte := hdr[5]
	granule := int64(binary.LittleEndian.Uint64(hdr[6:14]))
	serial := int32(binary.LittleEndian.Uint32(hdr[14:18]))
	seq := int32(binary.LittleEndian.Uint32(hdr[18:22]))
	storedCRC := binary.LittleEndian.Uint32(hdr[22:26])
	segCount := int(hdr[26])

	segTable := make([]byte, segCount)
	if segCount > 0 {
		if _, err := br.Read(offset+pageHeaderSize, segTable); err != nil {
			return nil, err
		}
	}

	bodySize := 0
	for _, s := range segTable {
		bodySize += int(s)
	}

	// Recompute the CRC over header (with the CRC field zeroed) + segment
	// table + body, reading everything through the same buffered window.
	full := make([]byte, pageHeaderSize+segCount+bodySize)
	copy(full, hdr[:])
	full[22], full[23], full[24], full[25] = 0, 0, 0, 0
	copy(full[pageHeaderSize:], segTable)
	if bodySize > 0 {
		if _, err := br.Read(offset+pageHeaderSize+int64(segCount), full[pageHeaderSize+segCount:]); err != nil {
			return nil, err
		}
	}
	computed := Checksum(0, full)
	if computed != storedCRC {
		return nil, NewError(CrcMismatch, "page checksum mismatch")
	}

	page := &Page{
		StreamSerial: serial,
		Flags: PageFlags{
			ContinuesPacket: flagsByte&0x01 != 0,
			BeginOfStream:   flagsByte&0x02 != 0,
			EndOfStream:     flagsByte&0x04 != 0,
		},
		GranulePosition: granule,
		SequenceNumber:  seq,
		SegmentTable:    segTable,
		DataOffset:      offset + pageHeaderSize + int64(segCount),
		LastSegmentFull: segCount > 0 && segTable[segCount-1] == 255,
	}
	return page, nil
}
