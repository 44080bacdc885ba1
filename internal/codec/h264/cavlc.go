package h264

import "github.com/bramblemedia/reelcore/internal/bitio"

// residualBlock holds one 4x4 (or 2x2/4x1 DC) block's decoded coefficients
// in zig-zag scan order, plus its total_coeff (used as the neighbor context
// for the next block's coeff_token decode).
type residualBlock struct {
	Coeffs     [16]int32
	TotalCoeff int
}

// cavlcReader decodes CAVLC-entropy-coded slice data per ITU-T H.264 §9.2:
// coeff_token/total_zeros/run_before are read via the VLC tables in
// cavlc_tables.go (Tables 9-5, 9-7..9-10), selected by the neighbor-derived
// nC context.
type cavlcReader struct {
	r *bitio.Reader
}

func newCavlcReader(r *bitio.Reader) *cavlcReader { return &cavlcReader{r: r} }

func (c *cavlcReader) mbSkipRun() (int, error) {
	v, err := c.r.ReadUE()
	return int(v), err
}

func (c *cavlcReader) mbType() (int, error) {
	v, err := c.r.ReadUE()
	return int(v), err
}

func (c *cavlcReader) subMbType() (int, error) {
	v, err := c.r.ReadUE()
	return int(v), err
}

func (c *cavlcReader) refIdxTU() (int, error) {
	// ref_idx_l0/l1 use te(v) (truncated unary when num_ref_idx_active==2,
	// otherwise ue(v)); callers with a 2-entry list should prefer
	// refIdxBit, this ue(v) form covers the general case.
	v, err := c.r.ReadUE()
	return int(v), err
}

func (c *cavlcReader) refIdxBit() (int, error) {
	b, err := c.r.ReadBit()
	if err != nil {
		return 0, err
	}
	if b == 1 {
		return 0, nil
	}
	return 1, nil
}

func (c *cavlcReader) mvd() (int, error) {
	v, err := c.r.ReadSE()
	return int(v), err
}

func (c *cavlcReader) mbQpDelta() (int, error) {
	v, err := c.r.ReadSE()
	return int(v), err
}

func (c *cavlcReader) intraChromaPredMode() (int, error) {
	v, err := c.r.ReadUE()
	return int(v), err
}

func (c *cavlcReader) transformSize8x8Flag() (bool, error) {
	return c.r.ReadFlag()
}

func (c *cavlcReader) intraPredModeFlag() (bool, error) {
	return c.r.ReadFlag()
}

func (c *cavlcReader) remIntra4x4PredMode() (int, error) {
	v, err := c.r.ReadBits(3)
	return int(v), err
}

// codedBlockPatternFor decodes coded_block_pattern via the me(v) mapping of
// Table 9-4: a ue(v) code_num looked up through codedBlockPatternIntraMap
// (intra macroblocks) or codedBlockPatternInterMap (inter macroblocks).
// isIntra distinguishes the two permutations the table defines.
func (c *cavlcReader) codedBlockPatternFor(isIntra bool) (int, error) {
	v, err := c.r.ReadUE()
	if err != nil {
		return 0, err
	}
	idx := int(v)
	if idx > 47 {
		idx = 47
	}
	if isIntra {
		return codedBlockPatternIntraMap[idx], nil
	}
	return codedBlockPatternInterMap[idx], nil
}

// vlcMatch walks a length-sorted list of (length, code, value) entries bit
// by bit, the same way a table-driven CAVLC reader matches a prefix code
// without building an explicit binary trie.
func vlcMatch(r *bitio.Reader, table []vlcEntry) (int, error) {
	var code uint32
	length := 0
	for _, e := range table {
		for length < e.Len {
			b, err := r.ReadBit()
			if err != nil {
				return 0, err
			}
			code = (code << 1) | b
			length++
		}
		if length == e.Len && code == e.Code {
			return e.Val, nil
		}
	}
	return 0, nil
}

type vlcEntry struct {
	Len  int
	Code uint32
	Val  int
}

// readCoeffToken decodes total_coeff and trailing_ones for one block, given
// nC, the neighbor-averaged coefficient-count context that selects one of
// Table 9-5's four VLC columns (or the chroma-DC table for nC==-1).
func (c *cavlcReader) readCoeffToken(nC int) (totalCoeff, trailingOnes int, err error) {
	var table []coeffTokenEntry
	switch {
	case nC == -1:
		table = coeffTokenChromaDC
	case nC < 2:
		table = coeffTokenNC0
	case nC < 4:
		table = coeffTokenNC2
	case nC < 8:
		table = coeffTokenNC4
	default:
		// nC>=8 uses a fixed-length 6-bit code per Table 9-5: a direct
		// (total_coeff-1, trailing_ones) encoding with no entropy coding,
		// special-cased for total_coeff==0.
		v, rerr := c.r.ReadBits(6)
		if rerr != nil {
			return 0, 0, rerr
		}
		if v == 3 {
			return 0, 0, nil
		}
		return int(v>>2) + 1, int(v & 3), nil
	}
	var code uint32
	length := 0
	for _, e := range table {
		for length < e.Len {
			b, rerr := c.r.ReadBit()
			if rerr != nil {
				return 0, 0, rerr
			}
			code = (code << 1) | b
			length++
		}
		if length == e.Len && code == e.Code {
			return e.TotalCoeff, e.TrailingOnes, nil
		}
	}
	return 0, 0, nil
}

func (c *cavlcReader) readLevelSign() (bool, error) {
	return c.r.ReadFlag()
}

func (c *cavlcReader) readLevelPrefix() (int, error) {
	n := 0
	for {
		one, err := c.r.ReadFlag()
		if err != nil {
			return n, err
		}
		if one {
			return n, nil
		}
		n++
	}
}

func (c *cavlcReader) readLevelSuffix(n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	v, err := c.r.ReadBits(n)
	return int(v), err
}

// readTotalZeros decodes total_zeros for a 4x4 block (Table 9-7/9-8, keyed
// by totalCoeff) or a chroma-DC block (isChromaDC selects Table 9-9a/b by
// maxCoeff, the 4:2:0/4:2:2 DC block sizes).
func (c *cavlcReader) readTotalZeros(totalCoeff, maxCoeff int) (int, error) {
	if totalCoeff >= maxCoeff || totalCoeff <= 0 {
		return 0, nil
	}
	var table []vlcEntry
	switch maxCoeff {
	case 4:
		table = totalZerosChromaDC420[totalCoeff-1]
	case 8:
		table = totalZerosChromaDC422[totalCoeff-1]
	default:
		table = totalZerosTable[totalCoeff-1]
	}
	return vlcMatch(c.r, table)
}

func (c *cavlcReader) readRunBefore(zerosLeft int) (int, error) {
	if zerosLeft <= 0 {
		return 0, nil
	}
	idx := zerosLeft - 1
	if idx > 6 {
		idx = 6
	}
	return vlcMatch(c.r, runBeforeTable[idx])
}

// decodeResidualBlockCAVLC decodes one block's coefficients in zig-zag scan
// order, following coeff_token -> levels -> total_zeros -> run_before
// assembly per §9.2.
func decodeResidualBlockCAVLC(c *cavlcReader, nC int, maxCoeff int) (residualBlock, error) {
	var blk residualBlock
	totalCoeff, trailingOnes, err := c.readCoeffToken(nC)
	if err != nil {
		return blk, err
	}
	blk.TotalCoeff = totalCoeff
	if totalCoeff == 0 {
		return blk, nil
	}

	levels := make([]int32, totalCoeff)
	for i := 0; i < trailingOnes; i++ {
		sign, err := c.readLevelSign()
		if err != nil {
			return blk, err
		}
		if sign {
			levels[i] = -1
		} else {
			levels[i] = 1
		}
	}
	suffixLength := 0
	if totalCoeff > 10 && trailingOnes < 3 {
		suffixLength = 1
	}
	for i := trailingOnes; i < totalCoeff; i++ {
		prefix, err := c.readLevelPrefix()
		if err != nil {
			return blk, err
		}
		suffixSize := suffixLength
		if prefix == 14 && suffixLength == 0 {
			suffixSize = 4
		} else if prefix >= 15 {
			suffixSize = prefix - 3
		}
		suffix, err := c.readLevelSuffix(suffixSize)
		if err != nil {
			return blk, err
		}
		levelCode := (min(prefix, 15) << uint(suffixLength)) + suffix
		if prefix >= 15 && suffixLength == 0 {
			levelCode += 15
		}
		if prefix >= 16 {
			levelCode += (1 << uint(prefix-3)) - 4096
		}
		if i == trailingOnes && trailingOnes < 3 {
			levelCode += 2
		}
		var level int32
		if levelCode%2 == 0 {
			level = int32(levelCode/2 + 1)
		} else {
			level = int32(-(levelCode + 1) / 2)
		}
		levels[i] = level
		if suffixLength == 0 {
			suffixLength = 1
		}
		if abs32(level) > (3 << uint(suffixLength-1)) && suffixLength < 6 {
			suffixLength++
		}
	}

	totalZeros := 0
	if totalCoeff < maxCoeff {
		totalZeros, err = c.readTotalZeros(totalCoeff, maxCoeff)
		if err != nil {
			return blk, err
		}
	}

	runs := make([]int, totalCoeff)
	zerosLeft := totalZeros
	for i := 0; i < totalCoeff-1; i++ {
		run, err := c.readRunBefore(zerosLeft)
		if err != nil {
			return blk, err
		}
		runs[i] = run
		zerosLeft -= run
	}
	runs[totalCoeff-1] = zerosLeft

	pos := -1
	for i := totalCoeff - 1; i >= 0; i-- {
		pos += runs[i] + 1
		if pos >= 0 && pos < len(blk.Coeffs) {
			blk.Coeffs[pos] = levels[i]
		}
	}
	return blk, nil
}
