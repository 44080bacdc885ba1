package ioutil

import (
	"fmt"
	"io"
	"net/http"

	"github.com/bramblemedia/reelcore/internal/errs"
)

// readAheadSize is the chunk size HTTPSource requests per ranged GET. Larger
// than a single demuxer read so sequential scans (box tree walks, ID3
// skipping) rarely issue a new request per read.
const readAheadSize = 256 * 1024

// HTTPSource is a Source backed by HTTP(S) ranged GET requests with a small
// local read-ahead buffer, by convention.
type HTTPSource struct {
	client *http.Client
	url string
	pos int64
	size int64
	seekOK bool

	bufStart int64
	buf []byte
}

// OpenHTTP issues a HEAD (falling back to a 1-byte ranged GET) to discover
// size and range support, then returns a Source over url.
func OpenHTTP(client *http.Client, url string) (*HTTPSource, error) {
	if client == nil {
		client = http.DefaultClient
	}
	s := &HTTPSource{client: client, url: url, size: -1}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.Io, "ioutil/http", "building probe request", err)
	}
	req.Header.Set("Range", "bytes=0-0")
	resp, err := client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.Io, "ioutil/http", "probe request failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusPartialContent {
		s.seekOK = true
		if cr := resp.Header.Get("Content-Range"); cr != "" {
			var start, end, total int64
			if _, scanErr := fmt.Sscanf(cr, "bytes %d-%d/%d", &start, &end, &total); scanErr == nil {
				s.size = total
			}
		}
	} else if resp.StatusCode == http.StatusOK {
		s.seekOK = false
		if resp.ContentLength > 0 {
			s.size = resp.ContentLength
		}
	} else {
		return nil, errs.Newf(errs.Io, "ioutil/http", "unexpected status %d probing %s", resp.StatusCode, url)
	}
	return s, nil
}

func (s *HTTPSource) fill(at int64, want int) error {
	if at >= s.bufStart && at+int64(want) <= s.bufStart+int64(len(s.buf)) {
		return nil // already buffered
	}
	n := want
	if n < readAheadSize {
		n = readAheadSize
	}
	req, err := http.NewRequest(http.MethodGet, s.url, nil)
	if err != nil {
		return errs.Wrap(errs.Io, "ioutil/http", "building range request", err)
	}
	if s.seekOK {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", at, at+int64(n)-1))
	} else if at != 0 {
		return errs.New(errs.Io, "ioutil/http", "server does not support byte ranges; cannot seek")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return errs.Wrap(errs.Io, "ioutil/http", "range request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		return errs.Newf(errs.Io, "ioutil/http", "unexpected status %d fetching range", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(errs.Io, "ioutil/http", "reading range body", err)
	}
	s.bufStart = at
	s.buf = data
	return nil
}

func (s *HTTPSource) ReadExact(n int) ([]byte, error) {
	if err := s.fill(s.pos, n); err != nil {
		return nil, err
	}
	off := int(s.pos - s.bufStart)
	if off+n > len(s.buf) {
		return nil, errs.New(errs.Eof, "ioutil/http", "read past end of available range")
	}
	out := make([]byte, n)
	copy(out, s.buf[off:off+n])
	s.pos += int64(n)
	return out, nil
}

func (s *HTTPSource) Seek(whence Whence, offset int64) (int64, error) {
	if !s.seekOK {
		return 0, errs.New(errs.Unsupported, "ioutil/http", "server does not advertise range support")
	}
	var base int64
	switch whence {
	case SeekStart:
		base = 0
	case SeekCurrent:
		base = s.pos
	case SeekEnd:
		if s.size < 0 {
			return 0, errs.New(errs.Unsupported, "ioutil/http", "seek from end requires known size")
		}
		base = s.size
	default:
		return 0, errs.New(errs.InvalidArgument, "ioutil/http", "invalid whence")
	}
	s.pos = base + offset
	return s.pos, nil
}

func (s *HTTPSource) Position() int64 { return s.pos }

func (s *HTTPSource) Size() (int64, bool) {
	if s.size < 0 {
		return 0, false
	}
	return s.size, true
}

func (s *HTTPSource) IsSeekable() bool { return s.seekOK }
