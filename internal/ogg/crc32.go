package ogg

// Ogg's page checksum uses CRC-32 with polynomial 0x04C11DB7, no input or
// output reflection, a zero initial value, and no final XOR -- distinct
// from the reflected CRC-32 used by zip/ethernet, so the stdlib hash/crc32
// package doesn't apply. The table is built MSB-first, matching libogg's
// own crc_lookup generation.
const crcPolynomial uint32 = 0x04c11db7

var crcTable [256]uint32

func init() {
	for i := range crcTable {
		r := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if r&0x80000000 != 0 {
				r = (r << 1) ^ crcPolynomial
			} else {
				r <<= 1
			}
		}
		crcTable[i] = r
	}
}

// Checksum computes the Ogg CRC-32 of data, continuing from crc (pass 0 to
// start a fresh checksum).
func Checksum(crc uint32, data []byte) uint32 {
	for _, b := range data {
		crc = (crc << 8) ^ crcTable[byte(crc>>24)^b]
	}
	return crc
}
