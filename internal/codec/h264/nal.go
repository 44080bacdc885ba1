package h264

// NAL unit type constants, ITU-T H.264 Table 7-1.
const (
	nalTypeSliceNonIDR = 1
	nalTypeSliceDPA    = 2
	nalTypeSliceDPB    = 3
	nalTypeSliceDPC    = 4
	nalTypeSliceIDR    = 5
	nalTypeSEI         = 6
	nalTypeSPS         = 7
	nalTypePPS         = 8
	nalTypeAUD         = 9
	nalTypeEndSeq      = 10
	nalTypeEndStream   = 11
	nalTypeFiller      = 12
)

// nalUnit is one parsed NAL unit: header byte fields plus its RBSP payload
// (start-code/length-prefix already stripped).
type nalUnit struct {
	RefIDC int
	Type   int
	RBSP   []byte // emulation-prevention-stripped payload, header byte excluded
}

// removeEmulationPrevention strips 0x03 emulation-prevention bytes from a
// NAL payload (the 00 00 03 -> 00 00 sequence), following the same scan the
// teacher's demux package uses for H.264 SPS parsing.
func removeEmulationPrevention(data []byte) []byte {
	out := make([]byte, 0, len(data))
	zeros := 0
	for i := 0; i < len(data); i++ {
		if zeros >= 2 && data[i] == 0x03 && (i+1 >= len(data) || data[i+1] <= 3) {
			zeros = 0
			continue
		}
		out = append(out, data[i])
		if data[i] == 0 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return out
}

// splitAnnexB scans an Annex B byte stream for 3- or 4-byte start codes and
// returns the NAL units between them, with emulation prevention already
// removed from each payload.
func splitAnnexB(data []byte) []nalUnit {
	n := len(data)
	if n < 4 {
		return nil
	}
	var starts []int
	i := 0
	for i < n-2 {
		if data[i] == 0 && data[i+1] == 0 {
			if i+3 < n && data[i+2] == 0 && data[i+3] == 1 {
				starts = append(starts, i+4)
				i += 4
				continue
			}
			if data[i+2] == 1 {
				starts = append(starts, i+3)
				i += 3
				continue
			}
		}
		i++
	}
	var units []nalUnit
	for idx, start := range starts {
		end := n
		if idx+1 < len(starts) {
			// back off the next start code's prefix bytes we may have
			// included; search backward for the 00 00 0(0)1 marker instead.
			end = nextStartCodeBegin(data, start, starts[idx+1])
		}
		if start >= end || start >= n {
			continue
		}
		units = append(units, parseNalUnit(data[start:end]))
	}
	return units
}

// nextStartCodeBegin trims trailing zero bytes belonging to the next start
// code off the end of the current NAL's byte range.
func nextStartCodeBegin(data []byte, from, nextDataStart int) int {
	end := nextDataStart
	if end-3 >= from && data[end-3] == 0 && data[end-2] == 0 && data[end-1] == 1 {
		end -= 3
		for end > from && data[end-1] == 0 {
			end--
		}
	}
	return end
}

func parseNalUnit(raw []byte) nalUnit {
	if len(raw) == 0 {
		return nalUnit{}
	}
	header := raw[0]
	u := nalUnit{
		RefIDC: int(header>>5) & 0x3,
		Type:   int(header) & 0x1F,
	}
	if len(raw) > 1 {
		u.RBSP = removeEmulationPrevention(raw[1:])
	}
	return u
}

// splitAVCC splits one AVCC-muxed access unit into NAL units, where each
// NAL is prefixed by a lengthSize-byte big-endian length (avcC's
// length_size_minus_one + 1), as mp4/avcC extra_data specifies.
func splitAVCC(data []byte, lengthSize int) []nalUnit {
	var units []nalUnit
	i := 0
	for i+lengthSize <= len(data) {
		length := 0
		for b := 0; b < lengthSize; b++ {
			length = (length << 8) | int(data[i+b])
		}
		i += lengthSize
		if i+length > len(data) || length <= 0 {
			break
		}
		units = append(units, parseNalUnit(data[i:i+length]))
		i += length
	}
	return units
}
