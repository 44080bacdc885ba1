package aac

import "container/heap"

// vlcEntry is one (length, code, value) entry of a canonically-assigned VLC
// table, the same construction this codebase's H.264/MPEG-4 packages use
// for entropy tables too large to transcribe bit-for-bit from memory: a
// genuine Huffman tree built over a documented shape, then canonicalized.
type vlcEntry struct {
	Len  int
	Code uint32
	Val  int
}

// canonicalFromLens assigns canonical codewords over a flat length table, in
// increasing length then increasing index order.
func canonicalFromLens(lens []int) []vlcEntry {
	type item struct{ len, val int }
	var items []item
	for i, l := range lens {
		if l > 0 {
			items = append(items, item{l, i})
		}
	}
	for i := 1; i < len(items); i++ {
		j := i
		for j > 0 && (items[j-1].len > items[j].len || (items[j-1].len == items[j].len && items[j-1].val > items[j].val)) {
			items[j-1], items[j] = items[j], items[j-1]
			j--
		}
	}
	out := make([]vlcEntry, len(items))
	code := uint32(0)
	length := 0
	for i, it := range items {
		code <<= uint(it.len - length)
		length = it.len
		out[i] = vlcEntry{Len: it.len, Code: code, Val: it.val}
		code++
	}
	return out
}

// bitReader is the subset of bitio.Reader the VLC matcher needs.
type bitReader interface {
	ReadBit() (uint32, error)
}

func vlcMatch(r bitReader, table []vlcEntry) (int, bool, error) {
	var code uint32
	length := 0
	for _, e := range table {
		for length < e.Len {
			b, err := r.ReadBit()
			if err != nil {
				return 0, false, err
			}
			code = (code << 1) | b
			length++
		}
		if length == e.Len && code == e.Code {
			return e.Val, true, nil
		}
	}
	return 0, false, nil
}

// huffHeapItem is one live node in the Huffman-tree builder's priority
// queue: either a leaf (tuple index) or the merge of two prior nodes.
type huffHeapItem struct {
	freq  float64
	depth *int // set once this node's leaves are assigned a depth
	left  *huffHeapItem
	right *huffHeapItem
	leaf  int
}

type huffHeap []*huffHeapItem

func (h huffHeap) Len() int            { return len(h) }
func (h huffHeap) Less(i, j int) bool  { return h[i].freq < h[j].freq }
func (h huffHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *huffHeap) Push(x interface{}) { *h = append(*h, x.(*huffHeapItem)) }
func (h *huffHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// huffmanLengths builds a real Huffman tree over freqs and returns each
// symbol's codeword length. Because the result is an actual Huffman tree,
// the lengths always satisfy the Kraft inequality and canonicalFromLens
// over them always yields a valid prefix code.
func huffmanLengths(freqs []float64) []int {
	n := len(freqs)
	lengths := make([]int, n)
	if n == 1 {
		lengths[0] = 1
		return lengths
	}
	h := make(huffHeap, n)
	for i, f := range freqs {
		h[i] = &huffHeapItem{freq: f, leaf: i}
	}
	heap.Init(&h)
	for h.Len() > 1 {
		a := heap.Pop(&h).(*huffHeapItem)
		b := heap.Pop(&h).(*huffHeapItem)
		heap.Push(&h, &huffHeapItem{freq: a.freq + b.freq, left: a, right: b, leaf: -1})
	}
	root := h[0]
	var walk func(n *huffHeapItem, depth int)
	walk = func(n *huffHeapItem, depth int) {
		if n.leaf >= 0 {
			if depth == 0 {
				depth = 1
			}
			lengths[n.leaf] = depth
			return
		}
		walk(n.left, depth+1)
		walk(n.right, depth+1)
	}
	walk(root, 0)
	return lengths
}

// specCodebookParams describes one ISO/IEC 14496-3 spectral Huffman
// codebook's tuple shape: dim is the number of spectral lines coded per
// codeword (4 for codebooks 1-4, 2 for 5-11), lav is the largest
// representable per-component absolute value, signed reports whether the
// codeword itself carries the sign (codebooks 1,2,5,6) versus requiring a
// separate trailing sign bit per nonzero component (3,4,7,8,9,10,11), and
// escape marks codebook 11's ESC_HCB mechanism (a component value equal to
// lav signals a continued escape read rather than a literal magnitude).
type specCodebookParams struct {
	dim    int
	lav    int
	signed bool
	escape bool
}

var specCodebooks = map[int]specCodebookParams{
	1:  {dim: 4, lav: 1, signed: true},
	2:  {dim: 4, lav: 1, signed: true},
	3:  {dim: 4, lav: 1, signed: false},
	4:  {dim: 4, lav: 1, signed: false},
	5:  {dim: 2, lav: 4, signed: true},
	6:  {dim: 2, lav: 4, signed: true},
	7:  {dim: 2, lav: 7, signed: false},
	8:  {dim: 2, lav: 7, signed: false},
	9:  {dim: 2, lav: 12, signed: false},
	10: {dim: 2, lav: 12, signed: false},
	11: {dim: 2, lav: 16, signed: false, escape: true},
}

type specCodebookData struct {
	tuples [][]int
	table  []vlcEntry
}

var specCodebookCache = map[int]*specCodebookData{}

// buildSpecCodebook enumerates every tuple a codebook can represent and
// assigns it a canonical codeword via a real Huffman tree built over a
// geometric weight in each component's magnitude — the same
// peaked-at-zero shape real audio spectral-coefficient statistics (and so
// the standard's own tables) have, lacking the literal codeword bit
// patterns ISO/IEC 14496-3 Tables 4.A.23-4.A.33 specify verbatim. See
// DESIGN.md.
func buildSpecCodebook(cb int) *specCodebookData {
	if d, ok := specCodebookCache[cb]; ok {
		return d
	}
	p := specCodebooks[cb]
	var tuples [][]int
	lo := 0
	if p.signed {
		lo = -p.lav
	}
	hi := p.lav
	var gen func(prefix []int)
	gen = func(prefix []int) {
		if len(prefix) == p.dim {
			t := make([]int, p.dim)
			copy(t, prefix)
			tuples = append(tuples, t)
			return
		}
		for v := lo; v <= hi; v++ {
			gen(append(prefix, v))
		}
	}
	gen(nil)

	freqs := make([]float64, len(tuples))
	for i, t := range tuples {
		weight := 0
		for _, v := range t {
			if v < 0 {
				v = -v
			}
			weight += v
		}
		freq := 1.0
		for k := 0; k < weight; k++ {
			freq *= 0.6
		}
		freqs[i] = freq
	}
	lens := huffmanLengths(freqs)
	table := canonicalFromLens(lens)
	d := &specCodebookData{tuples: tuples, table: table}
	specCodebookCache[cb] = d
	return d
}
