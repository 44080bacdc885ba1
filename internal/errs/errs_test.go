package errs

import (
	"errors"
	"testing"
)

func TestIsMatchesSentinelByKind(t *testing.T) {
	err := New(Eof, "demux/mp4", "exhausted")
	if !errors.Is(err, ErrEof) {
		t.Fatal("expected errors.Is(err, ErrEof) to match")
	}
	if errors.Is(err, ErrNeedMoreData) {
		t.Fatal("expected errors.Is(err, ErrNeedMoreData) not to match")
	}
}

func TestWrapUnwrapsToUnderlyingError(t *testing.T) {
	underlying := errors.New("short read")
	err := Wrap(Io, "ioutil/file", "reading header", underlying)

	if !errors.Is(err, underlying) {
		t.Fatal("expected errors.Is to see through Wrap to the underlying error")
	}
	if !errors.Is(err, ErrIo) {
		t.Fatal("expected errors.Is(err, ErrIo) to match the wrapped kind")
	}
}

func TestKindOfExtractsKindThroughWrapping(t *testing.T) {
	inner := New(InvalidData, "codec/h264", "bad nal header")
	outer := Wrap(Codec, "playerloop", "decode failed", inner)

	kind, ok := KindOf(inner)
	if !ok || kind != InvalidData {
		t.Fatalf("KindOf(inner) = %v, %v; want InvalidData, true", kind, ok)
	}

	// KindOf finds the first *Error in the chain, which is outer itself here.
	kind, ok = KindOf(outer)
	if !ok || kind != Codec {
		t.Fatalf("KindOf(outer) = %v, %v; want Codec, true", kind, ok)
	}

	if _, ok := KindOf(errors.New("not one of ours")); ok {
		t.Fatal("KindOf should report false for a plain error")
	}
}

func TestErrorStringIncludesComponentKindAndMessage(t *testing.T) {
	err := New(Unsupported, "demux/mp4", "unknown sample entry")
	want := "demux/mp4: Unsupported: unknown sample entry"
	if got := err.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}
