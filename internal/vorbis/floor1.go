package vorbis

import (
	"sort"

	"github.com/philipch07/vorbisdec/internal/ogg"
)

// Floor1 is the piecewise-linear spectral envelope used by virtually every
// real Vorbis stream: a handful of (X, Y) breakpoints, decoded
// hierarchically by partition class, connected by line segments in the dB
// domain and expanded to a full per-bin linear amplitude curve.
type Floor1 struct {
	PartitionClassList []int
	ClassDimensions    []int
	ClassSubclasses    []int
	ClassMasterbooks   []int
	ClassSubclassBooks [][]int // [class][1<<subclasses], -1 means no book

	Multiplier int
	Range      int
	RangeBits  int

	// XListTail holds the X values read from the bitstream, in setup
	// order. The full X list used at decode time prepends the two fixed
	// endpoints (0 and the block's n), which aren't read from the stream
	// and depend on which block size is active.
	XListTail []int
}

// floor1Curve is the per-n working state built once per DecodeFloor1 call:
// the full X list (with its two fixed endpoints) plus precomputed
// neighbor/sort tables.
type floor1Curve struct {
	xList        []int
	sortedOrder  []int
	lowNeighbor  []int
	highNeighbor []int
}

func parseFloor1(br *ogg.BitReader) (*Floor1, error) {
	partitionsField, err := br.ReadBits(5)
	if err != nil {
		return nil, err
	}
	partitions := int(partitionsField)

	classList := make([]int, partitions)
	maxClass := -1
	for i := range classList {
		c, err := br.ReadBits(4)
		if err != nil {
			return nil, err
		}
		classList[i] = int(c)
		if int(c) > maxClass {
			maxClass = int(c)
		}
	}

	classDims := make([]int, maxClass+1)
	classSub := make([]int, maxClass+1)
	classMaster := make([]int, maxClass+1)
	classSubBooks := make([][]int, maxClass+1)
	for i := 0; i <= maxClass; i++ {
		dim, err := br.ReadBits(3)
		if err != nil {
			return nil, err
		}
		classDims[i] = int(dim) + 1

		sub, err := br.ReadBits(2)
		if err != nil {
			return nil, err
		}
		classSub[i] = int(sub)

		if classSub[i] != 0 {
			mb, err := br.ReadBits(8)
			if err != nil {
				return nil, err
			}
			classMaster[i] = int(mb)
		}

		books := make([]int, 1<<uint(classSub[i]))
		for k := range books {
			b, err := br.ReadBits(8)
			if err != nil {
				return nil, err
			}
			books[k] = int(b) - 1
		}
		classSubBooks[i] = books
	}

	multField, err := br.ReadBits(2)
	if err != nil {
		return nil, err
	}
	multiplier := int(multField) + 1

	rangeBitsField, err := br.ReadBits(4)
	if err != nil {
		return nil, err
	}
	rangeBits := int(rangeBitsField)

	var xListTail []int
	for i := 0; i < partitions; i++ {
		class := classList[i]
		for j := 0; j < classDims[class]; j++ {
			v, err := br.ReadBits(uint(rangeBits))
			if err != nil {
				return nil, err
			}
			xListTail = append(xListTail, int(v))
		}
	}

	f := &Floor1{
		PartitionClassList: classList,
		ClassDimensions:    classDims,
		ClassSubclasses:    classSub,
		ClassMasterbooks:   classMaster,
		ClassSubclassBooks: classSubBooks,
		Multiplier:         multiplier,
		RangeBits:          rangeBits,
		XListTail:          xListTail,
	}
	f.Range = floor1Range(multiplier)
	return f, nil
}

func floor1Range(multiplier int) int {
	switch multiplier {
	case 1:
		return 256
	case 2:
		return 128
	case 3:
		return 86
	default:
		return 64
	}
}

// buildCurveState assembles the working X list for a curve of length n
// (the full list prepends the two fixed endpoints to XListTail) and
// precomputes its sort order and low/high neighbor tables.
func (f *Floor1) buildCurveState(n int) *floor1Curve {
	xList := make([]int, 0, len(f.XListTail)+2)
	xList = append(xList, 0, n)
	xList = append(xList, f.XListTail...)

	c := &floor1Curve{xList: xList}
	count := len(xList)
	c.sortedOrder = make([]int, count)
	for i := range c.sortedOrder {
		c.sortedOrder[i] = i
	}
	sort.Slice(c.sortedOrder, func(a, b int) bool {
		return xList[c.sortedOrder[a]] < xList[c.sortedOrder[b]]
	})

	c.lowNeighbor = make([]int, count)
	c.highNeighbor = make([]int, count)
	for i := 2; i < count; i++ {
		low, high := -1, -1
		for j := 0; j < i; j++ {
			if xList[j] < xList[i] && (low == -1 || xList[j] > xList[low]) {
				low = j
			}
			if xList[j] > xList[i] && (high == -1 || xList[j] < xList[high]) {
				high = j
			}
		}
		c.lowNeighbor[i] = low
		c.highNeighbor[i] = high
	}
	return c
}

// Decode satisfies the FloorConfig interface used by mapping decode.
func (f *Floor1) Decode(br *ogg.BitReader, books []*Codebook, n int) ([]float32, error) {
	return f.DecodeFloor1(br, books, n)
}

// DecodeFloor1 reads one packet's floor1 data and returns the expanded
// linear amplitude curve of length n, or nil when the floor is flagged absent
// (silent channel for this block).
func (f *Floor1) DecodeFloor1(br *ogg.BitReader, books []*Codebook, n int) ([]float32, error) {
	present, err := br.ReadBit()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}

	state := f.buildCurveState(n)
	xList := state.xList

	rangeBits := ilog(uint32(f.Range - 1))
	values := len(xList)
	y := make([]int, values)

	v0, err := br.ReadBits(uint(rangeBits))
	if err != nil {
		return nil, err
	}
	v1, err := br.ReadBits(uint(rangeBits))
	if err != nil {
		return nil, err
	}
	y[0], y[1] = int(v0), int(v1)

	offset := 2
	for _, class := range f.PartitionClassList {
		cdim := f.ClassDimensions[class]
		cbits := f.ClassSubclasses[class]
		csub := (1 << uint(cbits)) - 1

		cval := 0
		if cbits > 0 {
			e, err := books[f.ClassMasterbooks[class]].DecodeScalar(br)
			if err != nil {
				return nil, err
			}
			if e >= 0 {
				cval = int(e)
			}
		}
		for j := 0; j < cdim && offset+j < values; j++ {
			book := f.ClassSubclassBooks[class][cval&csub]
			cval >>= uint(cbits)
			if book >= 0 {
				e, err := books[book].DecodeScalar(br)
				if err != nil {
					return nil, err
				}
				if e < 0 {
					e = 0
				}
				y[offset+j] = int(e)
			} else {
				y[offset+j] = 0
			}
		}
		offset += cdim
	}

	finalY := make([]int, values)
	stepFlag := make([]bool, values)
	finalY[0], finalY[1] = y[0], y[1]
	stepFlag[0], stepFlag[1] = true, true

	for i := 2; i < values; i++ {
		low, high := state.lowNeighbor[i], state.highNeighbor[i]
		predicted := renderPoint(xList[low], finalY[low], xList[high], finalY[high], xList[i])

		val := y[i]
		highroom := f.Range - predicted
		lowroom := predicted
		room := highroom
		if lowroom < highroom {
			room = lowroom
		}
		room *= 2

		if val != 0 {
			stepFlag[low] = true
			stepFlag[high] = true
			stepFlag[i] = true
			if val >= room {
				if highroom > lowroom {
					finalY[i] = val - lowroom + predicted
				} else {
					finalY[i] = predicted - val + highroom - 1
				}
			} else {
				if val&1 != 0 {
					finalY[i] = predicted - (val+1)/2
				} else {
					finalY[i] = predicted + val/2
				}
			}
		} else {
			finalY[i] = predicted
		}
	}

	curve := make([]float32, n)
	synthesizeCurve(curve, state, stepFlag, finalY, n)
	return curve, nil
}

func renderPoint(x0, y0, x1, y1, x int) int {
	if x1 == x0 {
		return y0
	}
	dy := y1 - y0
	dx := x1 - x0
	base := dy / dx
	err := dy - base*dx
	if err < 0 {
		err = -err
	}
	adx := x - x0
	ady := base * adx
	errAccum := err * adx
	if errAccum/dx > 0 {
		if dy < 0 {
			ady -= errAccum / dx
		} else {
			ady += errAccum / dx
		}
	}
	return y0 + ady
}

// synthesizeCurve walks the flagged breakpoints in X order, drawing a
// piecewise-linear dB curve and converting each bin to a linear amplitude
// multiplier.
func synthesizeCurve(curve []float32, state *floor1Curve, stepFlag []bool, finalY []int, n int) {
	var prevIdx = -1
	for _, idx := range state.sortedOrder {
		if !stepFlag[idx] {
			continue
		}
		if prevIdx == -1 {
			prevIdx = idx
			continue
		}
		x0, y0 := state.xList[prevIdx], finalY[prevIdx]
		x1, y1 := state.xList[idx], finalY[idx]
		for x := x0; x < x1 && x < n; x++ {
			if x < 0 {
				continue
			}
			v := renderPoint(x0, y0, x1, y1, x)
			curve[x] = inverseDB(v)
		}
		prevIdx = idx
	}
	if prevIdx != -1 {
		last := state.xList[prevIdx]
		if last >= 0 && last < n {
			v := inverseDB(finalY[prevIdx])
			for x := last; x < n; x++ {
				curve[x] = v
			}
		}
	}
}

// floorInverseDBLookup is the canonical floor1_inverse_dB_table: a fixed,
// geometrically-spaced (linear in dB) lookup from a quantized floor1 index
// to its linear amplitude multiplier. Index 0 is approximately -139.45dB
// (~1.0649863e-07), not the round -140dB/1e-7 a naive formula gives, and
// the spacing is ~0.5479dB per step.
var floorInverseDBLookup = [256]float32{
	1.0649863e-07, 1.1341951e-07, 1.2079015e-07, 1.2863978e-07,
	1.3699951e-07, 1.4590251e-07, 1.5538408e-07, 1.6548181e-07,
	1.7623575e-07, 1.8768855e-07, 1.9988561e-07, 2.1287530e-07,
	2.2670913e-07, 2.4144197e-07, 2.5713223e-07, 2.7384213e-07,
	2.9163793e-07, 3.1059021e-07, 3.3077411e-07, 3.5226968e-07,
	3.7516214e-07, 3.9954229e-07, 4.2550680e-07, 4.5315863e-07,
	4.8260743e-07, 5.1396998e-07, 5.4737065e-07, 5.8294187e-07,
	6.2082472e-07, 6.6116941e-07, 7.0413592e-07, 7.4989464e-07,
	7.9862701e-07, 8.5052630e-07, 9.0579828e-07, 9.6466216e-07,
	1.0273513e-06, 1.0941144e-06, 1.1652161e-06, 1.2409384e-06,
	1.3215816e-06, 1.4074654e-06, 1.4989305e-06, 1.5963394e-06,
	1.7000785e-06, 1.8105592e-06, 1.9282195e-06, 2.0535261e-06,
	2.1869758e-06, 2.3290978e-06, 2.4804557e-06, 2.6416497e-06,
	2.8133190e-06, 2.9961443e-06, 3.1908506e-06, 3.3982101e-06,
	3.6190449e-06, 3.8542308e-06, 4.1047004e-06, 4.3714470e-06,
	4.6555282e-06, 4.9580707e-06, 5.2802740e-06, 5.6234160e-06,
	5.9888572e-06, 6.3780469e-06, 6.7925283e-06, 7.2339451e-06,
	7.7040476e-06, 8.2047000e-06, 8.7378876e-06, 9.3057248e-06,
	9.9104632e-06, 1.0554501e-05, 1.1240392e-05, 1.1970856e-05,
	1.2748789e-05, 1.3577278e-05, 1.4459606e-05, 1.5399272e-05,
	1.6400004e-05, 1.7465768e-05, 1.8600792e-05, 1.9809576e-05,
	2.1096914e-05, 2.2467911e-05, 2.3928002e-05, 2.5482978e-05,
	2.7139006e-05, 2.8902651e-05, 3.0780908e-05, 3.2781225e-05,
	3.4911534e-05, 3.7180282e-05, 3.9596466e-05, 4.2169667e-05,
	4.4910090e-05, 4.7828601e-05, 5.0936773e-05, 5.4246931e-05,
	5.7772202e-05, 6.1526565e-05, 6.5524908e-05, 6.9783085e-05,
	7.4317983e-05, 7.9147585e-05, 8.4291040e-05, 8.9768747e-05,
	9.5602426e-05, 1.0181521e-04, 1.0843174e-04, 1.1547824e-04,
	1.2298267e-04, 1.3097477e-04, 1.3948625e-04, 1.4855085e-04,
	1.5820453e-04, 1.6848555e-04, 1.7943469e-04, 1.9109536e-04,
	2.0351382e-04, 2.1673929e-04, 2.3082423e-04, 2.4582449e-04,
	2.6179955e-04, 2.7881276e-04, 2.9693158e-04, 3.1622787e-04,
	3.3677814e-04, 3.5866388e-04, 3.8197188e-04, 4.0679456e-04,
	4.3323036e-04, 4.6138411e-04, 4.9136745e-04, 5.2329927e-04,
	5.5730621e-04, 5.9352311e-04, 6.3209358e-04, 6.7317058e-04,
	7.1691700e-04, 7.6350630e-04, 8.1312324e-04, 8.6596457e-04,
	9.2223983e-04, 9.8217216e-04, 1.0459992e-03, 1.1139742e-03,
	1.1863665e-03, 1.2634633e-03, 1.3455702e-03, 1.4330129e-03,
	1.5261382e-03, 1.6253153e-03, 1.7309374e-03, 1.8434235e-03,
	1.9632195e-03, 2.0908006e-03, 2.2266726e-03, 2.3713743e-03,
	2.5254795e-03, 2.6895994e-03, 2.8643847e-03, 3.0505286e-03,
	3.2487691e-03, 3.4598925e-03, 3.6847358e-03, 3.9241906e-03,
	4.1792066e-03, 4.4507950e-03, 4.7400328e-03, 5.0480668e-03,
	5.3761186e-03, 5.7254891e-03, 6.0975636e-03, 6.4938176e-03,
	6.9158225e-03, 7.3652516e-03, 7.8438871e-03, 8.3536271e-03,
	8.8964928e-03, 9.4746316e-03, 1.0090265e-02, 1.0745754e-02,
	1.1443532e-02, 1.2186144e-02, 1.2977259e-02, 1.3819678e-02,
	1.4716344e-02, 1.5671349e-02, 1.6688000e-02, 1.7770827e-02,
	1.8924548e-02, 2.0154125e-02, 2.1464816e-02, 2.2862200e-02,
	2.4352219e-02, 2.5941205e-02, 2.7635958e-02, 2.9443725e-02,
	3.1372259e-02, 3.3430834e-02, 3.5628312e-02, 3.7974172e-02,
	4.0478553e-02, 4.3152230e-02, 4.6006687e-02, 4.9056142e-02,
	5.2315600e-02, 5.5801963e-02, 5.9532178e-02, 6.3524403e-02,
	6.7798153e-02, 7.2374382e-02, 7.7275562e-02, 8.2526022e-02,
	8.8150168e-02, 9.4174455e-02, 1.0062956e-01, 1.0753753e-01,
	1.1492963e-01, 1.2283966e-01, 1.3130104e-01, 1.4034913e-01,
	1.5002931e-01, 1.6039096e-01, 1.7146813e-01, 1.8328745e-01,
	1.9589743e-01, 2.0930261e-01, 2.2346765e-01, 2.3837419e-01,
	2.5412973e-01, 2.7080020e-01, 2.8845274e-01, 3.0718039e-01,
	3.2706957e-01, 3.4824044e-01, 3.7080838e-01, 3.9496270e-01,
	4.2075955e-01, 4.4837993e-01, 4.7795408e-01, 5.0950987e-01,
	5.4319590e-01, 5.7925129e-01, 6.1776101e-01, 6.5894815e-01,
	7.0290019e-01, 7.4967003e-01, 7.9956167e-01, 8.5277186e-01,
	9.0937031e-01, 9.6958690e-01, 1.0336940e+00, 1.1018959e+00,
}

// inverseDB converts a quantized floor1 index (0..255) to a linear
// amplitude multiplier via the fixed dB table.
func inverseDB(index int) float32 {
	if index < 0 {
		index = 0
	}
	if index > 255 {
		index = 255
	}
	return floorInverseDBLookup[index]
}
