package h264

// Macroblock type classes used internally once mb_type has been resolved
// against the slice-type-specific table (Tables 7-11 through 7-14).
const (
	mbClassINxN    = 0 // I_4x4 or I_8x8, selected by transform_size_8x8_flag
	mbClassI16x16  = 1
	mbClassIPCM    = 2
	mbClassPL016x16 = 3
	mbClassPL016x8  = 4
	mbClassPL08x16  = 5
	mbClassP8x8     = 6
	mbClassP8x8ref0 = 7
	mbClassPSkip    = 8
	mbClassBDirect16x16 = 9
	mbClassBL0L016x16   = 10
	mbClassBL0L016x8    = 11
	mbClassB8x8         = 12
	mbClassBSkip        = 13
)

// i16x16Info decodes the I_16x16 mb_type's embedded prediction mode, CBP
// luma presence, and CBP chroma, per Table 7-11's encoding:
// mbType - 1 (I-slice base) or the equivalent offset in P/B-slice tables.
func i16x16Info(offset int) (predMode, cbpChroma int, cbpLumaNonzero bool) {
	predMode = offset % 4
	rem := offset / 4
	cbpChroma = rem % 3
	cbpLumaNonzero = rem >= 3
	return
}

// partShape gives a partition count and shape; pMbPartTable holds it for
// each P mb_type (0..4 before P_Skip), per Table 7-13.
type partShape struct {
	NumParts int
	PartW, PartH int // in 4x4-block units (4 = 16 samples)
}

var pMbPartTable = [5]partShape{
	{1, 4, 4}, // P_L0_16x16
	{2, 4, 2}, // P_L0_L0_16x8
	{2, 2, 4}, // P_L0_L0_8x16
	{4, 2, 2}, // P_8x8
	{4, 2, 2}, // P_8x8ref0
}

// bMbPartTable gives partition shape/prediction-direction info for B
// mb_types 0..22 (Table 7-14); direction 0=L0,1=L1,2=Bi,3=Direct.
type bPartInfo struct {
	NumParts     int
	PartW, PartH int
	Dir          [2]int
}

var bMbPartTable = []bPartInfo{
	{1, 4, 4, [2]int{3, 3}},    // 0: B_Direct_16x16
	{1, 4, 4, [2]int{0, 0}},    // 1: B_L0_16x16
	{1, 4, 4, [2]int{1, 1}},    // 2: B_L1_16x16
	{1, 4, 4, [2]int{2, 2}},    // 3: B_Bi_16x16
	{2, 4, 2, [2]int{0, 0}},    // 4: B_L0_L0_16x8
	{2, 2, 4, [2]int{0, 0}},    // 5: B_L0_L0_8x16
	{2, 4, 2, [2]int{1, 1}},    // 6: B_L1_L1_16x8
	{2, 2, 4, [2]int{1, 1}},    // 7: B_L1_L1_8x16
	{2, 4, 2, [2]int{0, 1}},    // 8: B_L0_L1_16x8
	{2, 2, 4, [2]int{0, 1}},    // 9: B_L0_L1_8x16
	{2, 4, 2, [2]int{1, 0}},    // 10: B_L1_L0_16x8
	{2, 2, 4, [2]int{1, 0}},    // 11: B_L1_L0_8x16
	{2, 4, 2, [2]int{0, 2}},    // 12: B_L0_Bi_16x8
	{2, 2, 4, [2]int{0, 2}},    // 13: B_L0_Bi_8x16
	{2, 4, 2, [2]int{1, 2}},    // 14: B_L1_Bi_16x8
	{2, 2, 4, [2]int{1, 2}},    // 15: B_L1_Bi_8x16
	{2, 4, 2, [2]int{2, 0}},    // 16: B_Bi_L0_16x8
	{2, 2, 4, [2]int{2, 0}},    // 17: B_Bi_L0_8x16
	{2, 4, 2, [2]int{2, 1}},    // 18: B_Bi_L1_16x8
	{2, 2, 4, [2]int{2, 1}},    // 19: B_Bi_L1_8x16
	{2, 4, 2, [2]int{2, 2}},    // 20: B_Bi_Bi_16x8
	{2, 2, 4, [2]int{2, 2}},    // 21: B_Bi_Bi_8x16
	{4, 2, 2, [2]int{0, 0}},    // 22: B_8x8
}

// subMbPartP gives the 8x8 sub-partition shape for P sub_mb_type 0..3.
var subMbPartP = [4]partShape{
	{1, 2, 2}, // P_L0_8x8
	{2, 2, 1}, // P_L0_8x4
	{2, 1, 2}, // P_L0_4x8
	{4, 1, 1}, // P_L0_4x4
}

// subMbPartB gives the 8x8 sub-partition shape and direction for B
// sub_mb_type 0..12.
type bSubPartInfo struct {
	NumParts    int
	PartW, PartH int
	Dir         int
}

var subMbPartB = []bSubPartInfo{
	{4, 1, 1, 3}, // 0: B_Direct_8x8
	{1, 2, 2, 0}, // 1: B_L0_8x8
	{1, 2, 2, 1}, // 2: B_L1_8x8
	{1, 2, 2, 2}, // 3: B_Bi_8x8
	{2, 2, 1, 0}, // 4: B_L0_8x4
	{2, 1, 2, 0}, // 5: B_L0_4x8
	{2, 2, 1, 1}, // 6: B_L1_8x4
	{2, 1, 2, 1}, // 7: B_L1_4x8
	{2, 2, 1, 2}, // 8: B_Bi_8x4
	{2, 1, 2, 2}, // 9: B_Bi_4x8
	{4, 1, 1, 0}, // 10: B_L0_4x4
	{4, 1, 1, 1}, // 11: B_L1_4x4
	{4, 1, 1, 2}, // 12: B_Bi_4x4
}
