// Package ioutil implements the seekable byte-source abstraction used
// throughout the module, plus the big/little-endian read helpers every
// demuxer builds on. It is the only package that touches the
// filesystem or network.
package ioutil

import (
	"encoding/binary"
	"io"

	"github.com/bramblemedia/reelcore/internal/errs"
)

// Whence selects the reference point for Seek, mirroring io.Seeker's
// constants but named for "from_start_or_current_or_end".
type Whence int

const (
	SeekStart Whence = iota
	SeekCurrent
	SeekEnd
)

// Source is the byte-source contract every demuxer is built against: a
// seekable, size-queryable read interface. File sources satisfy it with
// ordinary file I/O, memory sources by slice indexing, HTTP sources by
// ranged GETs with local buffering.
type Source interface {
	// ReadExact reads exactly n bytes or returns errs.ErrEof /
	// errs.ErrIo.
	ReadExact(n int) ([]byte, error)
	Seek(whence Whence, offset int64) (int64, error)
	Position() int64
	// Size returns the total byte length, or (-1, false) if unknown.
	Size() (int64, bool)
	IsSeekable() bool
}

// Reader is a convenience wrapper adding the fixed-width helpers this decoder
// §4.1 names, built on top of any Source.
type Reader struct {
	Source
}

// NewReader wraps src with the u8/u16/u24/u32/tag4 helpers.
func NewReader(src Source) *Reader { return &Reader{Source: src} }

func (r *Reader) ReadU8() (byte, error) {
	b, err := r.ReadExact(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadU16BE() (uint16, error) {
	b, err := r.ReadExact(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) ReadU16LE() (uint16, error) {
	b, err := r.ReadExact(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) ReadU24BE() (uint32, error) {
	b, err := r.ReadExact(3)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), nil
}

func (r *Reader) ReadU32BE() (uint32, error) {
	b, err := r.ReadExact(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) ReadU32LE() (uint32, error) {
	b, err := r.ReadExact(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadI32BE() (int32, error) {
	v, err := r.ReadU32BE()
	return int32(v), err
}

func (r *Reader) ReadU64BE() (uint64, error) {
	b, err := r.ReadExact(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadTag4 reads a 4-byte ASCII tag (box type, RIFF chunk id,...).
func (r *Reader) ReadTag4() (string, error) {
	b, err := r.ReadExact(4)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Reader) Skip(n int) error {
	if n <= 0 {
		return nil
	}
	_, err := r.Seek(SeekCurrent, int64(n))
	return err
}

// ioToErr translates an io error into the module's error taxonomy.
func ioToErr(component string, err error) error {
	if err == nil {
		return nil
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errs.New(errs.Eof, component, "source exhausted")
	}
	return errs.Wrap(errs.Io, component, "byte source failure", err)
}
