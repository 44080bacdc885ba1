// Package errs defines the uniform error taxonomy shared by every demuxer,
// decoder, byte source, and the playback loop.
package errs

import (
	"errors"
	"fmt"
)

// Kind discriminates the category of error per the propagation policy: some
// kinds are expected control flow (Eof, NeedMoreData), others are surfaced
// to a human or a caller that must change behavior.
type Kind int

const (
	// Eof means the source is exhausted, or a decoder's drain is complete.
	Eof Kind = iota
	// NeedMoreData means a decoder needs another packet before it can emit
	// a frame.
	NeedMoreData
	// InvalidData means the bitstream violates the format in a way the
	// caller cannot recover from.
	InvalidData
	// InvalidArgument means the API was misused (e.g. open with the wrong
	// CodecParameters variant).
	InvalidArgument
	// Unsupported means a feature is present in the stream but not
	// implemented; the caller may continue with degraded output.
	Unsupported
	// Codec means a decoder-internal consistency violation, e.g.
	// send_packet before open.
	Codec
	// Io means the byte source failed.
	Io
	// NotImplemented means a method is deliberately stubbed.
	NotImplemented
)

func (k Kind) String() string {
	switch k {
	case Eof:
		return "Eof"
	case NeedMoreData:
		return "NeedMoreData"
	case InvalidData:
		return "InvalidData"
	case InvalidArgument:
		return "InvalidArgument"
	case Unsupported:
		return "Unsupported"
	case Codec:
		return "Codec"
	case Io:
		return "Io"
	case NotImplemented:
		return "NotImplemented"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type used across the module. Component names
// the subsystem that raised it (e.g. "demux/mp4", "codec/h264").
type Error struct {
	Kind      Kind
	Component string
	Msg       string
	Wrapped   error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Component, e.Kind, e.Msg, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s: %s", e.Component, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Is reports whether target is an *Error with the same Kind, so that
// errors.Is(err, errs.Eof) style sentinel checks work against the
// package-level Kind values via kindSentinel below.
func (e *Error) Is(target error) bool {
	ks, ok := target.(kindSentinel)
	if !ok {
		return false
	}
	return e.Kind == Kind(ks)
}

// kindSentinel lets the exported Kind constants double as errors.Is targets:
// errors.Is(err, errs.Eof) checks err's Kind without needing a parallel set
// of sentinel error values.
type kindSentinel Kind

func (k kindSentinel) Error() string { return Kind(k).String() }

// Sentinel values usable with errors.Is(err, errs.Eof), etc.
var (
	errEof             = kindSentinel(Eof)
	errNeedMoreData    = kindSentinel(NeedMoreData)
	errInvalidData     = kindSentinel(InvalidData)
	errInvalidArgument = kindSentinel(InvalidArgument)
	errUnsupported     = kindSentinel(Unsupported)
	errCodec           = kindSentinel(Codec)
	errIo              = kindSentinel(Io)
	errNotImplemented  = kindSentinel(NotImplemented)
)

// These satisfy error and are the targets for errors.Is comparisons.
var (
	ErrEof             error = errEof
	ErrNeedMoreData    error = errNeedMoreData
	ErrInvalidData     error = errInvalidData
	ErrInvalidArgument error = errInvalidArgument
	ErrUnsupported     error = errUnsupported
	ErrCodec           error = errCodec
	ErrIo              error = errIo
	ErrNotImplemented  error = errNotImplemented
)

// New constructs an *Error of the given kind.
func New(kind Kind, component, msg string) *Error {
	return &Error{Kind: kind, Component: component, Msg: msg}
}

// Wrap constructs an *Error of the given kind that wraps an underlying
// error (typically an I/O error from the byte source).
func Wrap(kind Kind, component, msg string, err error) *Error {
	return &Error{Kind: kind, Component: component, Msg: msg, Wrapped: err}
}

// Newf is New with fmt.Sprintf-style formatting of msg.
func Newf(kind Kind, component, format string, args ...any) *Error {
	return &Error{Kind: kind, Component: component, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error, with ok
// reporting whether one was found.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
