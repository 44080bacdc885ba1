package mp3

import "github.com/bramblemedia/reelcore/internal/ioutil"

// skipID3v2Tag consumes a leading ID3v2 tag, if present, leaving the reader
// positioned at the first byte after it (where the first MPEG frame sync
// should begin). ID3v2 uses a 10-byte header ("ID3" + version(2) + flags(1)
// + synchsafe size(4)) and, when the footer flag is set, a matching 10-byte
// footer — both excluded from the synchsafe size field itself.
func skipID3v2Tag(r *ioutil.Reader) error {
	hdr, err := r.ReadExact(10)
	if err != nil {
		return err
	}
	if hdr[0] != 'I' || hdr[1] != 'D' || hdr[2] != '3' {
		_, err := r.Seek(ioutil.SeekCurrent, -10)
		return err
	}
	flags := hdr[5]
	size := synchsafeToInt(hdr[6:10])
	hasFooter := flags&0x10 != 0
	skip := size
	if hasFooter {
		skip += 10
	}
	return r.Skip(skip)
}

func synchsafeToInt(b []byte) int {
	return int(b[0])<<21 | int(b[1])<<14 | int(b[2])<<7 | int(b[3])
}

// skipID3v2 is the probe-time, snippet-only equivalent of skipID3v2Tag: it
// returns the byte offset within snippet where the tag (if any) ends,
// without needing a seekable reader.
func skipID3v2(snippet []byte) int {
	if len(snippet) < 10 || snippet[0] != 'I' || snippet[1] != 'D' || snippet[2] != '3' {
		return 0
	}
	flags := snippet[5]
	size := synchsafeToInt(snippet[6:10])
	pos := 10 + size
	if flags&0x10 != 0 {
		pos += 10
	}
	return pos
}
