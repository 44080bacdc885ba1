package mpeg4

// Picture is one reconstructed Video Object Plane: Y/U/V planes (4:2:0)
// plus per-macroblock state needed for AC/DC and motion-vector prediction
// context and, once it becomes a reference, for motion compensation.
type Picture struct {
	Width, Height     int
	MbWidth, MbHeight int
	Y, U, V           []byte
	YStride, CStride  int
	MBs               []mbInfo
	PicType           int
	Coded             bool
}

func newPicture(vol *VOLHeader) *Picture {
	mbW := (vol.Width + 15) / 16
	mbH := (vol.Height + 15) / 16
	yStride := mbW * 16
	cStride := mbW * 8
	p := &Picture{
		Width:    vol.Width,
		Height:   vol.Height,
		MbWidth:  mbW,
		MbHeight: mbH,
		YStride:  yStride,
		CStride:  cStride,
		Y:        make([]byte, yStride*mbH*16),
		U:        make([]byte, cStride*mbH*8),
		V:        make([]byte, cStride*mbH*8),
		MBs:      make([]mbInfo, mbW*mbH),
	}
	return p
}

func (p *Picture) mbAt(mbX, mbY int) *mbInfo {
	if mbX < 0 || mbY < 0 || mbX >= p.MbWidth || mbY >= p.MbHeight {
		return nil
	}
	return &p.MBs[mbY*p.MbWidth+mbX]
}

// planeSampler provides bounds-clamped get/set access to one plane, mirroring
// the h264 package's sampler so motion compensation can read past-edge
// samples by clamping to the border (the standard's "edge extension").
type planeSampler struct {
	buf    []byte
	stride int
	width  int
	height int
}

func (s planeSampler) at(x, y int) byte {
	if x < 0 {
		x = 0
	}
	if x >= s.width {
		x = s.width - 1
	}
	if y < 0 {
		y = 0
	}
	if y >= s.height {
		y = s.height - 1
	}
	return s.buf[y*s.stride+x]
}

func (s planeSampler) set(x, y int, v byte) {
	if x < 0 || y < 0 || x >= s.width || y >= s.height {
		return
	}
	s.buf[y*s.stride+x] = v
}
