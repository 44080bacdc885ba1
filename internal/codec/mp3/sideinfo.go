package mp3

import "github.com/bramblemedia/reelcore/internal/bitio"

// granuleInfo holds one granule/channel's side-info fields, per ISO/IEC
// 11172-3 §2.4.1.7.
type granuleInfo struct {
	part2_3Length      int
	bigValues          int
	globalGain         int
	scalefacCompress   int
	windowSwitching    bool
	blockType          int
	mixedBlock         bool
	tableSelect        [3]int
	subblockGain       [3]int
	region0Count       int
	region1Count       int
	preflag            bool
	scalefacScale      bool
	count1TableSelect  int
}

// sideInfo holds the full MP3 side-info block for one frame: up to 2
// granules (1 for MPEG2/2.5 LSF) x up to 2 channels.
type sideInfo struct {
	mainDataBegin int
	scfsi         [2][4]bool // [channel][band group], MPEG1 only
	granules      [2][2]granuleInfo
	nGranules     int
	nChannels     int
}

func parseSideInfo(data []byte, hdr FrameHeader) (sideInfo, error) {
	r := bitio.NewReader(data)
	var si sideInfo
	si.nChannels = hdr.NbChannels
	isMPEG1 := hdr.Version == versionMPEG1
	if isMPEG1 {
		si.nGranules = 2
	} else {
		si.nGranules = 1
	}

	mdbBits := 9
	if !isMPEG1 {
		mdbBits = 8
	}
	mdb, err := r.ReadBits(mdbBits)
	if err != nil {
		return si, err
	}
	si.mainDataBegin = int(mdb)

	privBits := 3
	if hdr.NbChannels == 1 {
		privBits = 5
	}
	if !isMPEG1 {
		privBits = 1
		if hdr.NbChannels == 1 {
			privBits = 1
		} else {
			privBits = 2
		}
	}
	if _, err := r.ReadBits(privBits); err != nil {
		return si, err
	}

	if isMPEG1 {
		for ch := 0; ch < hdr.NbChannels; ch++ {
			for band := 0; band < 4; band++ {
				b, err := r.ReadFlag()
				if err != nil {
					return si, err
				}
				si.scfsi[ch][band] = b
			}
		}
	}

	for g := 0; g < si.nGranules; g++ {
		for ch := 0; ch < hdr.NbChannels; ch++ {
			gi, err := parseGranule(r)
			if err != nil {
				return si, err
			}
			si.granules[g][ch] = gi
		}
	}
	return si, nil
}

func parseGranule(r *bitio.Reader) (granuleInfo, error) {
	var gi granuleInfo
	v, err := r.ReadBits(12)
	if err != nil {
		return gi, err
	}
	gi.part2_3Length = int(v)
	v, err = r.ReadBits(9)
	if err != nil {
		return gi, err
	}
	gi.bigValues = int(v)
	v, err = r.ReadBits(8)
	if err != nil {
		return gi, err
	}
	gi.globalGain = int(v)
	v, err = r.ReadBits(4)
	if err != nil {
		return gi, err
	}
	gi.scalefacCompress = int(v)

	ws, err := r.ReadFlag()
	if err != nil {
		return gi, err
	}
	gi.windowSwitching = ws

	if ws {
		bt, err := r.ReadBits(2)
		if err != nil {
			return gi, err
		}
		gi.blockType = int(bt)
		mb, err := r.ReadFlag()
		if err != nil {
			return gi, err
		}
		gi.mixedBlock = mb
		for i := 0; i < 2; i++ {
			v, err := r.ReadBits(5)
			if err != nil {
				return gi, err
			}
			gi.tableSelect[i] = int(v)
		}
		for i := 0; i < 3; i++ {
			v, err := r.ReadBits(3)
			if err != nil {
				return gi, err
			}
			gi.subblockGain[i] = int(v)
		}
		// region boundaries are implicit for short/mixed blocks
		gi.region0Count = 8
		gi.region1Count = 36
	} else {
		for i := 0; i < 3; i++ {
			v, err := r.ReadBits(5)
			if err != nil {
				return gi, err
			}
			gi.tableSelect[i] = int(v)
		}
		v, err := r.ReadBits(4)
		if err != nil {
			return gi, err
		}
		gi.region0Count = int(v)
		v, err = r.ReadBits(3)
		if err != nil {
			return gi, err
		}
		gi.region1Count = int(v)
	}

	pf, err := r.ReadFlag()
	if err != nil {
		return gi, err
	}
	gi.preflag = pf
	sfs, err := r.ReadFlag()
	if err != nil {
		return gi, err
	}
	gi.scalefacScale = sfs
	cts, err := r.ReadBits(1)
	if err != nil {
		return gi, err
	}
	gi.count1TableSelect = int(cts)
	return gi, nil
}
