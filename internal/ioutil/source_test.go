package ioutil

import "testing"

func TestMemSourceReadSeek(t *testing.T) {
	src := NewMemSource([]byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05})
	r := NewReader(src)

	b, err := r.ReadU8()
	if err != nil || b != 0x00 {
		t.Fatalf("ReadU8 = %v, %v", b, err)
	}

	if _, err := r.Seek(SeekStart, 2); err != nil {
		t.Fatal(err)
	}
	v, err := r.ReadU16BE()
	if err != nil || v != 0x0203 {
		t.Fatalf("ReadU16BE = %v, %v, want 0x0203", v, err)
	}

	if err := r.Skip(1); err != nil {
		t.Fatal(err)
	}
	last, err := r.ReadU8()
	if err != nil || last != 0x05 {
		t.Fatalf("ReadU8 after skip = %v, %v, want 0x05", last, err)
	}

	if _, err := r.ReadU8(); err == nil {
		t.Fatal("expected Eof reading past end")
	}
}

func TestMemSourceU32LETag4(t *testing.T) {
	src := NewMemSource([]byte{0x01, 0x00, 0x00, 0x00, 'f', 't', 'y', 'p'})
	r := NewReader(src)
	v, err := r.ReadU32LE()
	if err != nil || v != 1 {
		t.Fatalf("ReadU32LE = %v, %v, want 1", v, err)
	}
	tag, err := r.ReadTag4()
	if err != nil || tag != "ftyp" {
		t.Fatalf("ReadTag4 = %q, %v, want ftyp", tag, err)
	}
}

func TestMemSourceSizeIsSeekable(t *testing.T) {
	src := NewMemSource(make([]byte, 10))
	size, ok := src.Size()
	if !ok || size != 10 {
		t.Fatalf("Size() = %d, %v, want 10, true", size, ok)
	}
	if !src.IsSeekable() {
		t.Fatal("MemSource must be seekable")
	}
}
