package codec

import (
	"testing"

	"github.com/bramblemedia/reelcore/internal/errs"
	"github.com/bramblemedia/reelcore/internal/media"
)

type fakeDecoder struct{ id media.CodecID }

func (d *fakeDecoder) CodecID() media.CodecID           { return d.id }
func (d *fakeDecoder) Name() string                     { return "fake" }
func (d *fakeDecoder) Open(media.CodecParameters) error { return nil }
func (d *fakeDecoder) SendPacket(*media.Packet) error   { return nil }
func (d *fakeDecoder) ReceiveFrame() (media.Frame, error) {
	return nil, errs.ErrNeedMoreData
}
func (d *fakeDecoder) Flush() {}

func TestRegisterAndCreateRoundTrip(t *testing.T) {
	saved := registry
	t.Cleanup(func() { registry = saved })
	registry = map[media.CodecID]Factory{}

	Register(media.CodecH264, func() Decoder { return &fakeDecoder{id: media.CodecH264} })

	if !Registered(media.CodecH264) {
		t.Fatal("expected CodecH264 to be registered")
	}
	d, err := Create(media.CodecH264)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if d.CodecID() != media.CodecH264 {
		t.Fatalf("Create() returned decoder for %v, want CodecH264", d.CodecID())
	}
}

func TestCreateUnregisteredCodecIsUnsupported(t *testing.T) {
	saved := registry
	t.Cleanup(func() { registry = saved })
	registry = map[media.CodecID]Factory{}

	if Registered(media.CodecAAC) {
		t.Fatal("expected CodecAAC not to be registered in a fresh registry")
	}
	_, err := Create(media.CodecAAC)
	if kind, ok := errs.KindOf(err); !ok || kind != errs.Unsupported {
		t.Fatalf("Create() error kind = %v, %v; want Unsupported, true", kind, ok)
	}
}
