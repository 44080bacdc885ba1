package mpeg4

// MPEG-4 Part 2 start code values (ISO/IEC 14496-2 Table 6-3, the subset
// this decoder dispatches on).
const (
	startCodeVOLMin  = 0x20
	startCodeVOLMax  = 0x2F
	startCodeVOMin   = 0x00
	startCodeVOMax   = 0x1F
	startCodeVOS     = 0xB0
	startCodeVOSEnd  = 0xB1
	startCodeGOV     = 0xB3
	startCodeVOP     = 0xB6
	startCodeUserData = 0xB2
)

// unit is one start-code-delimited segment of an elementary stream: the
// start code value itself plus the bytes up to (not including) the next
// start code.
type unit struct {
	Code    byte
	Payload []byte // bytes following the 00 00 01 <code> prefix
}

// splitStartCodes scans a byte-aligned MPEG-4 Part 2 elementary stream for
// 00 00 01 start codes, mirroring the h264 package's splitAnnexB scan but
// for the simpler 3-byte-only marker this bitstream uses (no emulation
// prevention byte either — MPEG-4 Part 2 VOP/VOL syntax never needs one).
func splitStartCodes(data []byte) []unit {
	n := len(data)
	if n < 4 {
		return nil
	}
	var starts []int
	for i := 0; i < n-3; i++ {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			starts = append(starts, i+3)
		}
	}
	if len(starts) == 0 {
		return nil
	}
	var units []unit
	for idx, start := range starts {
		if start >= n {
			continue
		}
		code := data[start]
		payloadStart := start + 1
		end := n
		if idx+1 < len(starts) {
			end = starts[idx+1] - 3 // back off the next start code's prefix
		}
		if payloadStart > end {
			payloadStart = end
		}
		units = append(units, unit{Code: code, Payload: data[payloadStart:end]})
	}
	return units
}
