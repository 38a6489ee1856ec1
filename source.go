package proxyproto

import (
	"io"

	"github.com/pkg/errors"
)

// Source is the byte stream a PROXY handshake is decoded from. Every method
// blocks until it can satisfy its contract or the stream ends; the decoder
// never consumes more bytes than the header itself, so whatever follows the
// handshake stays in the stream for the next protocol layer.
type Source interface {
	// Read returns up to max bytes. It may return fewer, and returns
	// io.EOF once the stream is exhausted.
	Read(max int) ([]byte, error)

	// ReadExact returns exactly n bytes, accumulating across partial
	// reads, or an error if the stream ends first.
	ReadExact(n int) ([]byte, error)

	// ReadUntil reads through the first occurrence of delim, inclusive.
	// If the stream ends before delim appears, the bytes read so far are
	// returned together with the error, as bufio.Reader.ReadBytes does.
	ReadUntil(delim byte) ([]byte, error)
}

var ErrSourceClosed = errors.New("connection closed by peer")

type readerSource struct {
	r io.Reader
}

// NewSource wraps an io.Reader as a Source. The reader is consumed
// byte-precise: no read-ahead beyond what the decoder asks for.
func NewSource(r io.Reader) Source {
	return &readerSource{r: r}
}

func (s *readerSource) Read(max int) ([]byte, error) {
	buf := make([]byte, max)
	n, err := s.r.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *readerSource) ReadExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	var have int
	for have < n {
		m, err := s.r.Read(buf[have:])
		have += m
		if err != nil {
			if err == io.EOF {
				// a zero-byte read with EOF is closure, not a
				// transient short read
				return buf[:have], errors.Wrapf(ErrSourceClosed, "got %d of %d bytes", have, n)
			}
			return buf[:have], err
		}
	}
	return buf, nil
}

func (s *readerSource) ReadUntil(delim byte) ([]byte, error) {
	var out []byte
	one := make([]byte, 1)
	for {
		n, err := s.r.Read(one)
		if n > 0 {
			out = append(out, one[0])
			if one[0] == delim {
				return out, nil
			}
		}
		if err != nil {
			return out, err
		}
	}
}
