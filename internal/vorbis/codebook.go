package vorbis

import (
	"github.com/philipch07/vorbisdec/internal/ogg"
	"github.com/philipch07/vorbisdec/internal/pool"
)

const codebookSync = 0x564342

// Codebook is one parsed Vorbis codebook: a Huffman decoder for scalar
// entries, plus (for map_type 1/2) a VQ lookup table expanding an entry
// index into `dimensions` floats.
type Codebook struct {
	Dimensions int
	Entries    int
	MapType    int

	lengths []int8 // -1 marks an unused entry

	prefixBits  int
	prefixTable []*pool.Node // index by low prefixBits bits of the peeked word
	overflow    *pool.Node   // singly linked, sorted by (length, bits)
	maxLength   int

	lookup [][]float32 // [entries][dimensions], nil when MapType == 0

	nodes    *pool.NodePool
	allNodes []*pool.Node // every node this codebook borrowed, for Release
}

// ParseCodebook reads one codebook from br, allocating overflow-chain nodes
// from np.
func ParseCodebook(br *ogg.BitReader, np *pool.NodePool) (*Codebook, error) {
	sync, err := br.ReadBits(24)
	if err != nil {
		return nil, err
	}
	if sync != codebookSync {
		return nil, newError(InvalidData, "codebook: bad sync pattern")
	}

	dimBits, err := br.ReadBits(16)
	if err != nil {
		return nil, err
	}
	entBits, err := br.ReadBits(24)
	if err != nil {
		return nil, err
	}
	dimensions := int(dimBits)
	entries := int(entBits)

	lengths, err := readCodeLengths(br, entries)
	if err != nil {
		return nil, err
	}

	cb := &Codebook{
		Dimensions: dimensions,
		Entries:    entries,
		lengths:    lengths,
		nodes:      np,
	}
	if err := cb.buildHuffman(); err != nil {
		return nil, err
	}

	mapTypeBits, err := br.ReadBits(4)
	if err != nil {
		return nil, err
	}
	cb.MapType = int(mapTypeBits)
	if cb.MapType != 0 {
		if err := cb.buildLookup(br); err != nil {
			return nil, err
		}
	}

	return cb, nil
}

// readCodeLengths decodes the ordered or unordered length list, per-entry,
// using -1 to mark entries that carry no codeword.
func readCodeLengths(br *ogg.BitReader, entries int) ([]int8, error) {
	lengths := make([]int8, entries)
	for i := range lengths {
		lengths[i] = -1
	}

	ordered, err := br.ReadBit()
	if err != nil {
		return nil, err
	}

	if ordered != 0 {
		curBits, err := br.ReadBits(5)
		if err != nil {
			return nil, err
		}
		current := int(curBits) + 1
		entry := 0
		for entry < entries {
			bits := ilog(uint32(entries - entry))
			runBits, err := br.ReadBits(uint(bits))
			if err != nil {
				return nil, err
			}
			run := int(runBits)
			if run < 0 || entry+run > entries {
				return nil, newError(InvalidData, "codebook: ordered length run overflows entry count")
			}
			for j := 0; j < run; j++ {
				lengths[entry+j] = int8(current)
			}
			entry += run
			current++
			if current > 32 && entry < entries {
				return nil, newError(InvalidData, "codebook: ordered length exceeds 32 bits")
			}
		}
		return lengths, nil
	}

	sparse, err := br.ReadBit()
	if err != nil {
		return nil, err
	}
	for i := 0; i < entries; i++ {
		present := true
		if sparse != 0 {
			flag, err := br.ReadBit()
			if err != nil {
				return nil, err
			}
			present = flag != 0
		}
		if !present {
			continue
		}
		lenBits, err := br.ReadBits(5)
		if err != nil {
			return nil, err
		}
		lengths[i] = int8(lenBits) + 1
	}
	return lengths, nil
}

// ilog returns the position of the highest set bit, i.e. the number of bits
// needed to represent v itself (ilog(0) == 0, ilog(4) == 3).
func ilog(v uint32) int {
	n := 0
	for v != 0 {
		n++
		v >>= 1
	}
	return n
}

// buildHuffman assigns codewords by canonical Huffman construction (walking
// entries in order, claiming the shallowest free prefix at each entry's
// length and pruning the free prefixes it covers at longer lengths), then
// splits the result into a direct-lookup prefix table plus an overflow
// chain for codewords longer than the table covers.
func (cb *Codebook) buildHuffman() error {
	maxLen := 0
	for _, l := range cb.lengths {
		if int(l) > maxLen {
			maxLen = int(l)
		}
	}
	if maxLen == 0 {
		cb.maxLength = 0
		cb.prefixBits = 0
		return nil
	}
	cb.maxLength = maxLen

	var marker [33]uint32
	codes := make([]uint32, len(cb.lengths))
	for i, l := range cb.lengths {
		if l <= 0 {
			continue
		}
		length := int(l)
		entry := marker[length]
		if length < 32 && (entry>>uint(length)) != 0 {
			return newError(InvalidData, "codebook: Huffman code assignment overflowed")
		}

		var chase uint32
		for j := 0; j < length; j++ {
			chase <<= 1
			chase |= (entry >> uint(j)) & 1
		}
		codes[i] = chase

		marker[length] = entry + 1
		if length < 32 {
			for j := length + 1; j <= 32; j++ {
				if (marker[j] >> 1) == entry {
					entry = marker[j]
					marker[j] = marker[length] << uint(j-length)
				} else {
					break
				}
			}
		}
	}

	prefixBits := maxLen
	if prefixBits > 10 {
		prefixBits = 10
	}
	cb.prefixBits = prefixBits
	cb.prefixTable = make([]*pool.Node, 1<<uint(prefixBits))

	var overflowHead, overflowTail *pool.Node
	for i, l := range cb.lengths {
		if l <= 0 {
			continue
		}
		length := int(l)
		bits := codes[i]
		node := cb.nodes.Get()
		node.Value = int32(i)
		node.Length = uint8(length)
		node.Bits = bits
		node.Mask = uint32(1)<<uint(length) - 1
		cb.allNodes = append(cb.allNodes, node)

		if length <= prefixBits {
			step := 1 << uint(length)
			for idx := int(bits); idx < len(cb.prefixTable); idx += step {
				cb.prefixTable[idx] = node
			}
			continue
		}

		node.Next = nil
		if overflowHead == nil {
			overflowHead = node
		} else {
			overflowTail.Next = node
		}
		overflowTail = node
	}
	cb.overflow = sortOverflowChain(overflowHead)
	return nil
}

// sortOverflowChain orders the overflow list by (length, bits) via simple
// insertion sort -- overflow chains are short in practice (codewords longer
// than 10 bits are rare), so an O(n^2) sort trades no meaningful time for
// simplicity.
func sortOverflowChain(head *pool.Node) *pool.Node {
	var sorted *pool.Node
	for head != nil {
		next := head.Next
		head.Next = nil
		if sorted == nil || less(head, sorted) {
			head.Next = sorted
			sorted = head
		} else {
			cur := sorted
			for cur.Next != nil && !less(head, cur.Next) {
				cur = cur.Next
			}
			head.Next = cur.Next
			cur.Next = head
		}
		head = next
	}
	return sorted
}

func less(a, b *pool.Node) bool {
	if a.Length != b.Length {
		return a.Length < b.Length
	}
	return a.Bits < b.Bits
}

// DecodeScalar returns the entry index for the next codeword in br, or -1 at
// end of packet.
func (cb *Codebook) DecodeScalar(br *ogg.BitReader) (int32, error) {
	if cb.maxLength == 0 {
		return -1, nil
	}

	peeked, avail := br.TryPeekBits(uint(cb.prefixBits))
	if avail >= uint(cb.prefixBits) {
		if node := cb.prefixTable[peeked]; node != nil {
			br.SkipBits(int(node.Length))
			return node.Value, nil
		}
	}

	wide, avail := br.TryPeekBits(uint(cb.maxLength))
	for node := cb.overflow; node != nil; node = node.Next {
		if uint(node.Length) > avail {
			continue
		}
		if node.Bits == (uint32(wide) & node.Mask) {
			br.SkipBits(int(node.Length))
			return node.Value, nil
		}
	}
	return -1, nil
}

// DecodeVector returns the dimensions-length row for entry e from the VQ
// lookup table. Only valid when MapType != 0.
func (cb *Codebook) DecodeVector(e int32) []float32 {
	if e < 0 || int(e) >= len(cb.lookup) {
		return nil
	}
	return cb.lookup[e]
}

// buildLookup reads the VQ lookup parameters and expands the multiplicand
// list into a full entries-by-dimensions float table.
func (cb *Codebook) buildLookup(br *ogg.BitReader) error {
	minValue, err := br.ReadVorbisFloat32()
	if err != nil {
		return err
	}
	deltaValue, err := br.ReadVorbisFloat32()
	if err != nil {
		return err
	}
	valueBitsField, err := br.ReadBits(4)
	if err != nil {
		return err
	}
	valueBits := int(valueBitsField) + 1
	sequenceBit, err := br.ReadBit()
	if err != nil {
		return err
	}
	sequenceP := sequenceBit != 0

	var quantVals int
	switch cb.MapType {
	case 1:
		quantVals = lookup1Values(cb.Entries, cb.Dimensions)
	case 2:
		quantVals = cb.Entries * cb.Dimensions
	default:
		return newError(InvalidData, "codebook: unsupported lookup map type")
	}

	multiplicands := make([]uint32, quantVals)
	for i := range multiplicands {
		v, err := br.ReadBits(uint(valueBits))
		if err != nil {
			return err
		}
		multiplicands[i] = uint32(v)
	}

	cb.lookup = make([][]float32, cb.Entries)
	for j := 0; j < cb.Entries; j++ {
		row := make([]float32, cb.Dimensions)
		var last float32
		switch cb.MapType {
		case 1:
			indexDiv := 1
			for k := 0; k < cb.Dimensions; k++ {
				idx := (j / indexDiv) % quantVals
				val := float32(multiplicands[idx])*deltaValue + minValue + last
				if sequenceP {
					last = val
				}
				row[k] = val
				indexDiv *= quantVals
			}
		case 2:
			base := j * cb.Dimensions
			for k := 0; k < cb.Dimensions; k++ {
				val := float32(multiplicands[base+k])*deltaValue + minValue + last
				if sequenceP {
					last = val
				}
				row[k] = val
			}
		}
		cb.lookup[j] = row
	}
	return nil
}

// lookup1Values returns the largest r such that r^dimensions <= entries.
func lookup1Values(entries, dimensions int) int {
	if dimensions <= 0 {
		return 0
	}
	r := 0
	for {
		pow := 1
		overflow := false
		for i := 0; i < dimensions; i++ {
			pow *= (r + 1)
			if pow > entries {
				overflow = true
				break
			}
		}
		if overflow {
			break
		}
		r++
	}
	return r
}

// Release returns every node this codebook borrowed (both the direct-lookup
// table entries and the overflow chain) back to its pool.
func (cb *Codebook) Release() {
	if cb.nodes == nil {
		return
	}
	for _, n := range cb.allNodes {
		n.Next = nil
		cb.nodes.Put(n)
	}
	cb.allNodes = nil
	cb.overflow = nil
	cb.prefixTable = nil
}
