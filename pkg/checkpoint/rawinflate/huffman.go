package rawinflate

import "fmt"

const maxHuffmanBits = 15

// huffmanTable is a canonical Huffman decode table built from a list
// of code lengths per symbol (RFC 1951 §3.2.2): symbols are assigned
// codes in order of increasing code length, and lexicographically
// within each length.
type huffmanTable struct {
	counts [maxHuffmanBits + 1]int // number of codes of each length
	// symbols lists every symbol with a nonzero code length, ordered
	// first by length then by symbol value, matching code assignment
	// order exactly.
	symbols []int
}

func newHuffmanTable(lengths []int) (*huffmanTable, error) {
	t := &huffmanTable{}
	for _, l := range lengths {
		if l < 0 || l > maxHuffmanBits {
			return nil, fmt.Errorf("rawinflate: invalid code length %d", l)
		}
		t.counts[l]++
	}
	t.counts[0] = 0

	offsets := [maxHuffmanBits + 2]int{}
	for i := 1; i <= maxHuffmanBits; i++ {
		offsets[i+1] = offsets[i] + t.counts[i]
	}

	t.symbols = make([]int, offsets[maxHuffmanBits+1])
	for sym, l := range lengths {
		if l == 0 {
			continue
		}
		t.symbols[offsets[l]] = sym
		offsets[l]++
	}
	return t, nil
}

// decode reads one symbol by consuming bits one at a time, building up
// a code and checking it against each length class in turn. This is
// the textbook canonical-Huffman decode loop (as in RFC 1951's own
// puff.c reference decoder), favoring clarity over a fast lookup
// table since checkpoints are taken relatively rarely.
func (t *huffmanTable) decode(br *bitReader) (int, error) {
	var code, first, index int
	for length := 1; length <= maxHuffmanBits; length++ {
		bit, err := br.readBits(1)
		if err != nil {
			return 0, err
		}
		code |= int(bit)

		count := t.counts[length]
		if code-first < count {
			return t.symbols[index+(code-first)], nil
		}
		index += count
		first += count
		first <<= 1
		code <<= 1
	}
	return 0, fmt.Errorf("rawinflate: invalid huffman code")
}

// fixedLiteralLengths builds the fixed (static) literal/length code
// lengths defined by RFC 1951 §3.2.6.
func fixedLiteralLengths() []int {
	lengths := make([]int, 288)
	for i := 0; i < 144; i++ {
		lengths[i] = 8
	}
	for i := 144; i < 256; i++ {
		lengths[i] = 9
	}
	for i := 256; i < 280; i++ {
		lengths[i] = 7
	}
	for i := 280; i < 288; i++ {
		lengths[i] = 8
	}
	return lengths
}

// fixedDistanceLengths builds the fixed distance code lengths (all 5
// bits, RFC 1951 §3.2.6).
func fixedDistanceLengths() []int {
	lengths := make([]int, 30)
	for i := range lengths {
		lengths[i] = 5
	}
	return lengths
}

var (
	lengthBase = [29]int{3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31, 35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258}
	lengthExtra = [29]uint{0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0}

	distBase = [30]int{1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193, 257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577}
	distExtra = [30]uint{0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6, 7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13}

	codeLengthOrder = [19]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}
)
