package ioutil

import (
	"io"
	"os"

	"github.com/bramblemedia/reelcore/internal/errs"
)

// FileSource is a Source backed by an *os.File opened for random read.
type FileSource struct {
	f    *os.File
	size int64
}

// OpenFile opens path for random read.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.Io, "ioutil/file", "open failed", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.Wrap(errs.Io, "ioutil/file", "stat failed", err)
	}
	return &FileSource{f: f, size: info.Size()}, nil
}

func (s *FileSource) ReadExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.f, buf); err != nil {
		return nil, ioToErr("ioutil/file", err)
	}
	return buf, nil
}

func (s *FileSource) Seek(whence Whence, offset int64) (int64, error) {
	var w int
	switch whence {
	case SeekStart:
		w = io.SeekStart
	case SeekCurrent:
		w = io.SeekCurrent
	case SeekEnd:
		w = io.SeekEnd
	default:
		return 0, errs.New(errs.InvalidArgument, "ioutil/file", "invalid whence")
	}
	np, err := s.f.Seek(offset, w)
	if err != nil {
		return 0, errs.Wrap(errs.Io, "ioutil/file", "seek failed", err)
	}
	return np, nil
}

func (s *FileSource) Position() int64 {
	p, _ := s.f.Seek(0, io.SeekCurrent)
	return p
}

func (s *FileSource) Size() (int64, bool) { return s.size, true }

func (s *FileSource) IsSeekable() bool { return true }

// Close releases the underlying file handle.
func (s *FileSource) Close() error { return s.f.Close() }
