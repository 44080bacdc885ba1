package ioutil

import "github.com/bramblemedia/reelcore/internal/errs"

// MemSource is a Source backed by an in-memory byte slice.
type MemSource struct {
	data []byte
	pos  int64
}

// NewMemSource wraps data (not copied) as a Source.
func NewMemSource(data []byte) *MemSource {
	return &MemSource{data: data}
}

func (m *MemSource) ReadExact(n int) ([]byte, error) {
	if n < 0 {
		return nil, errs.New(errs.InvalidArgument, "ioutil/mem", "negative read length")
	}
	if m.pos+int64(n) > int64(len(m.data)) {
		return nil, errs.New(errs.Eof, "ioutil/mem", "read past end of memory source")
	}
	out := m.data[m.pos : m.pos+int64(n)]
	m.pos += int64(n)
	return out, nil
}

func (m *MemSource) Seek(whence Whence, offset int64) (int64, error) {
	var base int64
	switch whence {
	case SeekStart:
		base = 0
	case SeekCurrent:
		base = m.pos
	case SeekEnd:
		base = int64(len(m.data))
	default:
		return 0, errs.New(errs.InvalidArgument, "ioutil/mem", "invalid whence")
	}
	np := base + offset
	if np < 0 || np > int64(len(m.data)) {
		return 0, errs.New(errs.InvalidArgument, "ioutil/mem", "seek out of range")
	}
	m.pos = np
	return m.pos, nil
}

func (m *MemSource) Position() int64 { return m.pos }

func (m *MemSource) Size() (int64, bool) { return int64(len(m.data)), true }

func (m *MemSource) IsSeekable() bool { return true }
