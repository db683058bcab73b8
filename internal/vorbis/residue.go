package vorbis

import "github.com/philipch07/vorbisdec/internal/ogg"

// Residue holds one residue backend's setup parameters. Types 0 and 1
// decode each channel's spectral residue independently; type 2 first
// interleaves every channel into a single vector and decodes that, which is
// why Decode takes the full channel set rather than one vector at a time.
type Residue struct {
	Type            int
	Begin           int
	End             int
	PartitionSize   int
	Classifications int
	ClassBook       int
	Cascade         []int
	Books           [][]int // [classification][pass], -1 = no book for that pass
}

func parseResidue(br *ogg.BitReader, residueType int) (*Residue, error) {
	begin, err := br.ReadBits(24)
	if err != nil {
		return nil, err
	}
	end, err := br.ReadBits(24)
	if err != nil {
		return nil, err
	}
	partSizeField, err := br.ReadBits(24)
	if err != nil {
		return nil, err
	}
	classificationsField, err := br.ReadBits(6)
	if err != nil {
		return nil, err
	}
	classBook, err := br.ReadBits(8)
	if err != nil {
		return nil, err
	}

	classifications := int(classificationsField) + 1
	cascade := make([]int, classifications)
	for i := range cascade {
		low, err := br.ReadBits(3)
		if err != nil {
			return nil, err
		}
		cascade[i] = int(low)
		bitflag, err := br.ReadBit()
		if err != nil {
			return nil, err
		}
		if bitflag != 0 {
			high, err := br.ReadBits(5)
			if err != nil {
				return nil, err
			}
			cascade[i] |= int(high) << 3
		}
	}

	books := make([][]int, classifications)
	for i := range books {
		passBooks := make([]int, 8)
		for j := range passBooks {
			if cascade[i]&(1<<uint(j)) != 0 {
				b, err := br.ReadBits(8)
				if err != nil {
					return nil, err
				}
				passBooks[j] = int(b)
			} else {
				passBooks[j] = -1
			}
		}
		books[i] = passBooks
	}

	return &Residue{
		Type:            residueType,
		Begin:           int(begin),
		End:             int(end),
		PartitionSize:   int(partSizeField) + 1,
		Classifications: classifications,
		ClassBook:       int(classBook),
		Cascade:         cascade,
		Books:           books,
	}, nil
}

// Decode fills one or more channel vectors (each of length n) with this
// residue's decoded values. doNotDecode marks channels the mapping already
// determined carry no data for this block (e.g. a silent floor); those
// vectors are left untouched (assumed pre-zeroed by the caller).
func (r *Residue) Decode(br *ogg.BitReader, books []*Codebook, channels [][]float32, doNotDecode []bool, n int) error {
	switch r.Type {
	case 2:
		return r.decodeInterleaved(br, books, channels, doNotDecode, n)
	default:
		return r.decodeChannels(br, books, channels, doNotDecode, n)
	}
}

func (r *Residue) decodeInterleaved(br *ogg.BitReader, books []*Codebook, channels [][]float32, doNotDecode []bool, n int) error {
	active := 0
	for _, skip := range doNotDecode {
		if !skip {
			active++
		}
	}
	if active == 0 {
		return nil
	}

	merged := make([]float32, n*active)
	if err := r.decodeChannels(br, books, [][]float32{merged}, []bool{false}, len(merged)); err != nil {
		return err
	}

	idx := 0
	for ch, vec := range channels {
		if doNotDecode[ch] {
			continue
		}
		for i := 0; i < n; i++ {
			vec[i] += merged[i*active+idx]
		}
		idx++
	}
	return nil
}

// decodeChannels runs the partition-classification decode loop jointly
// across every non-skipped channel in channels (a single-element slice for
// residue type 2's already-interleaved vector), restricted to
// [Begin, min(End, n)).
//
// The bitstream interleaves classword and partition-vector reads: a
// classword only ever appears on pass 0, once per classwordsPerCodebook
// partitions, and -- within that group -- once per active channel (in
// channel order) before any of that group's partition vectors are read.
// Passes 1..7 reuse the classifications established on pass 0 and read
// only partition vectors, again channel by channel within each partition.
func (r *Residue) decodeChannels(br *ogg.BitReader, books []*Codebook, channels [][]float32, doNotDecode []bool, n int) error {
	end := r.End
	if end > n {
		end = n
	}
	begin := r.Begin
	if begin > end {
		return nil
	}
	length := end - begin
	partitions := length / r.PartitionSize
	if partitions <= 0 {
		return nil
	}

	var active []int
	for ch := range channels {
		if !doNotDecode[ch] {
			active = append(active, ch)
		}
	}
	if len(active) == 0 {
		return nil
	}

	classBook := books[r.ClassBook]
	classwordsPerCodebook := classBook.Dimensions
	if classwordsPerCodebook <= 0 {
		classwordsPerCodebook = 1
	}

	classifications := make([][]int, len(active))
	for i := range classifications {
		classifications[i] = make([]int, partitions)
	}

	for pass := 0; pass < 8; pass++ {
		for p := 0; p < partitions; p++ {
			if pass == 0 && p%classwordsPerCodebook == 0 {
				for ci := range active {
					e, err := classBook.DecodeScalar(br)
					if err != nil {
						return err
					}
					if e < 0 {
						e = 0
					}
					temp := int(e)
					vals := make([]int, classwordsPerCodebook)
					for d := classwordsPerCodebook - 1; d >= 0; d-- {
						vals[d] = temp % r.Classifications
						temp /= r.Classifications
					}
					for d := 0; d < classwordsPerCodebook && p+d < partitions; d++ {
						classifications[ci][p+d] = vals[d]
					}
				}
			}

			for ci, ch := range active {
				class := classifications[ci][p]
				bookIdx := r.Books[class][pass]
				if bookIdx < 0 {
					continue
				}
				book := books[bookIdx]
				base := begin + p*r.PartitionSize
				dim := book.Dimensions
				if dim <= 0 {
					dim = 1
				}
				out := channels[ch]
				for k := 0; k+dim <= r.PartitionSize; k += dim {
					e, err := book.DecodeScalar(br)
					if err != nil {
						return err
					}
					if e < 0 {
						break
					}
					vec := book.DecodeVector(e)
					for j := 0; j < dim && base+k+j < len(out); j++ {
						out[base+k+j] += vec[j]
					}
				}
			}
		}
	}
	return nil
}
