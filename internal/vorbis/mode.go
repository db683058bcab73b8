package vorbis

import "github.com/philipch07/vorbisdec/internal/ogg"

// Mode selects a block's transform size and the mapping used to decode it.
// Vorbis I defines only window type 0 and transform type 0, so a Mode
// stores neither; it carries only the block flag and the mapping index.
type Mode struct {
	BlockFlag    bool // true: long block (block1), false: short block (block0)
	MappingIndex int
}

func parseModes(br *ogg.BitReader, mappingCount int) ([]Mode, error) {
	countBits, err := br.ReadBits(6)
	if err != nil {
		return nil, err
	}
	modes := make([]Mode, int(countBits)+1)
	for i := range modes {
		flag, err := br.ReadBit()
		if err != nil {
			return nil, err
		}
		windowType, err := br.ReadBits(16)
		if err != nil {
			return nil, err
		}
		if windowType != 0 {
			return nil, newError(InvalidData, "mode: reserved window type")
		}
		transformType, err := br.ReadBits(16)
		if err != nil {
			return nil, err
		}
		if transformType != 0 {
			return nil, newError(InvalidData, "mode: reserved transform type")
		}
		mapping, err := br.ReadBits(8)
		if err != nil {
			return nil, err
		}
		if int(mapping) >= mappingCount {
			return nil, newError(InvalidData, "mode: mapping index out of range")
		}
		modes[i] = Mode{BlockFlag: flag != 0, MappingIndex: int(mapping)}
	}
	return modes, nil
}
