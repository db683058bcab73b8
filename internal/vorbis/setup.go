package vorbis

import (
	"encoding/binary"

	"github.com/philipch07/vorbisdec/internal/ogg"
	"github.com/philipch07/vorbisdec/internal/pool"
)

var (
	identMagic   = [7]byte{0x01, 'v', 'o', 'r', 'b', 'i', 's'}
	commentMagic = [7]byte{0x03, 'v', 'o', 'r', 'b', 'i', 's'}
	setupMagic   = [7]byte{0x05, 'v', 'o', 'r', 'b', 'i', 's'}
)

// Identification holds the fixed-layout first header packet.
type Identification struct {
	Channels       int
	SampleRate     int
	BitrateMax     int32
	BitrateNominal int32
	BitrateMin     int32
	Block0Size     int
	Block1Size     int
}

func parseIdentification(data []byte) (*Identification, error) {
	if len(data) < 30 {
		return nil, newError(InvalidData, "identification header: short packet")
	}
	if [7]byte(data[0:7]) != identMagic {
		return nil, newError(InvalidData, "identification header: bad magic")
	}
	if binary.LittleEndian.Uint32(data[7:11]) != 0 {
		return nil, newError(InvalidData, "identification header: unsupported version")
	}
	channels := int(data[11])
	sampleRate := int(binary.LittleEndian.Uint32(data[12:16]))
	bitrateMax := int32(binary.LittleEndian.Uint32(data[16:20]))
	bitrateNominal := int32(binary.LittleEndian.Uint32(data[20:24]))
	bitrateMin := int32(binary.LittleEndian.Uint32(data[24:28]))
	blockSizeByte := data[28]
	n := int(blockSizeByte & 0x0f)
	m := int(blockSizeByte >> 4)
	framing := data[29]

	if channels <= 0 {
		return nil, newError(InvalidData, "identification header: zero channels")
	}
	if n < 6 || m < 6 || m > 13 || n > m {
		return nil, newError(InvalidData, "identification header: block size out of range")
	}
	if framing&0x01 != 1 {
		return nil, newError(InvalidData, "identification header: missing framing bit")
	}

	return &Identification{
		Channels:       channels,
		SampleRate:     sampleRate,
		BitrateMax:     bitrateMax,
		BitrateNominal: bitrateNominal,
		BitrateMin:     bitrateMin,
		Block0Size:     1 << uint(n),
		Block1Size:     1 << uint(m),
	}, nil
}

// Comment holds the vendor string and user comment list.
type Comment struct {
	Vendor   string
	Comments []string
}

func parseComment(data []byte) (*Comment, error) {
	if len(data) < 7 {
		return nil, newError(InvalidData, "comment header: short packet")
	}
	if [7]byte(data[0:7]) != commentMagic {
		return nil, newError(InvalidData, "comment header: bad magic")
	}
	pos := 7
	readString := func() (string, error) {
		if pos+4 > len(data) {
			return "", newError(InvalidData, "comment header: truncated length")
		}
		l := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if l < 0 || pos+l > len(data) {
			return "", newError(InvalidData, "comment header: truncated string")
		}
		s := string(data[pos : pos+l])
		pos += l
		return s, nil
	}

	vendor, err := readString()
	if err != nil {
		return nil, err
	}
	if pos+4 > len(data) {
		return nil, newError(InvalidData, "comment header: truncated comment count")
	}
	count := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
	pos += 4

	comments := make([]string, 0, count)
	for i := 0; i < count; i++ {
		s, err := readString()
		if err != nil {
			return nil, err
		}
		comments = append(comments, s)
	}
	if pos >= len(data) || data[pos]&0x01 != 1 {
		return nil, newError(InvalidData, "comment header: missing framing bit")
	}
	return &Comment{Vendor: vendor, Comments: comments}, nil
}

// Setup holds every table parsed from the third header packet: codebooks,
// floors, residues, mappings, and modes.
type Setup struct {
	Codebooks []*Codebook
	Floors    []FloorConfig
	Residues  []*Residue
	Mappings  []*Mapping
	Modes     []Mode
}

func parseSetup(packet *ogg.Packet, bp *pool.BufferPool, np *pool.NodePool, channels int) (*Setup, error) {
	data, err := packet.Bytes()
	if err != nil {
		return nil, err
	}
	if len(data) < 7 || [7]byte(data[0:7]) != setupMagic {
		return nil, newError(InvalidData, "setup header: bad magic")
	}

	br := ogg.NewBitReader(packet, bp)
	// Skip the 7-byte magic directly through the bit reader so the
	// remaining field offsets line up.
	if _, err := br.ReadBits(56); err != nil {
		return nil, err
	}

	cbCountField, err := br.ReadBits(8)
	if err != nil {
		return nil, err
	}
	codebooks := make([]*Codebook, int(cbCountField)+1)
	for i := range codebooks {
		cb, err := ParseCodebook(br, np)
		if err != nil {
			return nil, err
		}
		codebooks[i] = cb
	}

	timeCountField, err := br.ReadBits(6)
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(timeCountField)+1; i++ {
		placeholder, err := br.ReadBits(16)
		if err != nil {
			return nil, err
		}
		if placeholder != 0 {
			return nil, newError(InvalidData, "setup header: reserved time-domain value set")
		}
	}

	floorCountField, err := br.ReadBits(6)
	if err != nil {
		return nil, err
	}
	floors := make([]FloorConfig, int(floorCountField)+1)
	for i := range floors {
		floorType, err := br.ReadBits(16)
		if err != nil {
			return nil, err
		}
		switch floorType {
		case 0:
			f, err := parseFloor0(br)
			if err != nil {
				return nil, err
			}
			floors[i] = f
		case 1:
			f, err := parseFloor1(br)
			if err != nil {
				return nil, err
			}
			floors[i] = f
		default:
			return nil, newError(InvalidData, "setup header: unsupported floor type")
		}
	}

	residueCountField, err := br.ReadBits(6)
	if err != nil {
		return nil, err
	}
	residues := make([]*Residue, int(residueCountField)+1)
	for i := range residues {
		residueType, err := br.ReadBits(16)
		if err != nil {
			return nil, err
		}
		if residueType > 2 {
			return nil, newError(InvalidData, "setup header: unsupported residue type")
		}
		r, err := parseResidue(br, int(residueType))
		if err != nil {
			return nil, err
		}
		residues[i] = r
	}

	mappingCountField, err := br.ReadBits(6)
	if err != nil {
		return nil, err
	}
	mappings := make([]*Mapping, int(mappingCountField)+1)
	for i := range mappings {
		mappingType, err := br.ReadBits(16)
		if err != nil {
			return nil, err
		}
		if mappingType != 0 {
			return nil, newError(InvalidData, "setup header: unsupported mapping type")
		}
		m, err := parseMapping(br, channels)
		if err != nil {
			return nil, err
		}
		mappings[i] = m
	}

	modes, err := parseModes(br, len(mappings))
	if err != nil {
		return nil, err
	}

	framing, err := br.ReadBit()
	if err != nil {
		return nil, err
	}
	if framing != 1 {
		return nil, newError(InvalidData, "setup header: missing framing bit")
	}

	return &Setup{
		Codebooks: codebooks,
		Floors:    floors,
		Residues:  residues,
		Mappings:  mappings,
		Modes:     modes,
	}, nil
}
