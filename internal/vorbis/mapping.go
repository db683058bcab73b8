package vorbis

import "github.com/philipch07/vorbisdec/internal/ogg"

// FloorConfig is the common shape of Floor0 and Floor1: consume bits for one
// channel's spectral envelope and return the expanded curve (nil for a
// silent block).
type FloorConfig interface {
	Decode(br *ogg.BitReader, books []*Codebook, n int) ([]float32, error)
}

// Mapping is a Vorbis I mapping type 0: it routes each audio channel to a
// submap (a floor + residue pair) and lists the magnitude/angle channel
// pairs that need inverse coupling after residue decode.
type Mapping struct {
	Submaps           int
	CouplingMagnitude []int
	CouplingAngle     []int
	Mux               []int // per channel, index into submap arrays
	FloorNumber       []int // per submap
	ResidueNumber     []int // per submap
}

func parseMapping(br *ogg.BitReader, channels int) (*Mapping, error) {
	submapFlag, err := br.ReadBit()
	if err != nil {
		return nil, err
	}
	submaps := 1
	if submapFlag != 0 {
		v, err := br.ReadBits(4)
		if err != nil {
			return nil, err
		}
		submaps = int(v) + 1
	}

	couplingFlag, err := br.ReadBit()
	if err != nil {
		return nil, err
	}
	var magnitudes, angles []int
	if couplingFlag != 0 {
		stepsField, err := br.ReadBits(8)
		if err != nil {
			return nil, err
		}
		steps := int(stepsField) + 1
		bits := uint(ilog(uint32(channels - 1)))
		magnitudes = make([]int, steps)
		angles = make([]int, steps)
		for i := 0; i < steps; i++ {
			m, err := br.ReadBits(bits)
			if err != nil {
				return nil, err
			}
			a, err := br.ReadBits(bits)
			if err != nil {
				return nil, err
			}
			magnitudes[i] = int(m)
			angles[i] = int(a)
		}
	}

	reserved, err := br.ReadBits(2)
	if err != nil {
		return nil, err
	}
	if reserved != 0 {
		return nil, newError(InvalidData, "mapping: reserved bits set")
	}

	mux := make([]int, channels)
	if submaps > 1 {
		for ch := range mux {
			v, err := br.ReadBits(4)
			if err != nil {
				return nil, err
			}
			mux[ch] = int(v)
		}
	}

	floorNum := make([]int, submaps)
	residueNum := make([]int, submaps)
	for i := 0; i < submaps; i++ {
		if _, err := br.ReadBits(8); err != nil { // unused time-domain placeholder
			return nil, err
		}
		f, err := br.ReadBits(8)
		if err != nil {
			return nil, err
		}
		r, err := br.ReadBits(8)
		if err != nil {
			return nil, err
		}
		floorNum[i] = int(f)
		residueNum[i] = int(r)
	}

	return &Mapping{
		Submaps:           submaps,
		CouplingMagnitude: magnitudes,
		CouplingAngle:     angles,
		Mux:               mux,
		FloorNumber:       floorNum,
		ResidueNumber:     residueNum,
	}, nil
}

// Decode runs floor decode per channel, residue decode per submap
// (channel-grouped), undoes channel coupling, and finally applies the floor
// curve to the residue. It returns one spectral vector of length n per
// channel.
func (m *Mapping) Decode(br *ogg.BitReader, floors []FloorConfig, residues []*Residue, books []*Codebook, channels, n int) ([][]float32, error) {
	curves := make([][]float32, channels)
	doNotDecode := make([]bool, channels)
	for ch := 0; ch < channels; ch++ {
		sub := 0
		if len(m.Mux) > ch {
			sub = m.Mux[ch]
		}
		floor := floors[m.FloorNumber[sub]]
		curve, err := floor.Decode(br, books, n)
		if err != nil {
			return nil, err
		}
		curves[ch] = curve
		doNotDecode[ch] = curve == nil
	}

	vectors := make([][]float32, channels)
	for ch := range vectors {
		vectors[ch] = make([]float32, n)
	}

	for sub := 0; sub < m.Submaps; sub++ {
		var members []int
		for ch := 0; ch < channels; ch++ {
			owner := 0
			if len(m.Mux) > ch {
				owner = m.Mux[ch]
			}
			if owner == sub {
				members = append(members, ch)
			}
		}
		if len(members) == 0 {
			continue
		}
		subVectors := make([][]float32, len(members))
		subSkip := make([]bool, len(members))
		for i, ch := range members {
			subVectors[i] = vectors[ch]
			subSkip[i] = doNotDecode[ch]
		}
		res := residues[m.ResidueNumber[sub]]
		if err := res.Decode(br, books, subVectors, subSkip, n); err != nil {
			return nil, err
		}
	}

	for step := range m.CouplingMagnitude {
		mCh := m.CouplingMagnitude[step]
		aCh := m.CouplingAngle[step]
		if mCh < 0 || mCh >= channels || aCh < 0 || aCh >= channels {
			continue
		}
		magVec, angVec := vectors[mCh], vectors[aCh]
		for i := 0; i < n; i++ {
			mv, av := magVec[i], angVec[i]
			var newM, newA float32
			if mv > 0 {
				if av > 0 {
					newM, newA = mv, mv-av
				} else {
					newM, newA = mv+av, mv
				}
			} else {
				if av > 0 {
					newM, newA = mv, mv+av
				} else {
					newM, newA = mv-av, mv
				}
			}
			magVec[i], angVec[i] = newM, newA
		}
	}

	for ch := 0; ch < channels; ch++ {
		if doNotDecode[ch] {
			continue
		}
		curve := curves[ch]
		vec := vectors[ch]
		for i := 0; i < n; i++ {
			vec[i] *= curve[i]
		}
	}

	return vectors, nil
}
