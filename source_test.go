package proxyproto

import (
	"io"
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// trickleReader returns at most one byte per Read call, simulating a slow
// peer that forces the decoder through every accumulation path.
type trickleReader struct {
	data []byte
}

func (r *trickleReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	p[0] = r.data[0]
	r.data = r.data[1:]
	return 1, nil
}

func Test_readerSource_ReadExact(t *testing.T) {
	src := NewSource(strings.NewReader("abcdef"))
	got, err := src.ReadExact(4)
	require.NoError(t, err)
	require.Equal(t, []byte("abcd"), got)

	_, err = src.ReadExact(4)
	require.ErrorIs(t, err, ErrSourceClosed)
}

func Test_readerSource_ReadUntil(t *testing.T) {
	src := NewSource(strings.NewReader("one\ntwo"))

	got, err := src.ReadUntil('\n')
	require.NoError(t, err)
	require.Equal(t, []byte("one\n"), got)

	// EOF without the delimiter still hands back what arrived
	got, err = src.ReadUntil('\n')
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, []byte("two"), got)
}

func Test_readerSource_Read(t *testing.T) {
	src := NewSource(strings.NewReader("abc"))
	got, err := src.Read(10)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)

	_, err = src.Read(10)
	require.ErrorIs(t, err, io.EOF)
}

// decoding must be independent of read granularity: a peer that dribbles
// one byte at a time yields the identical result as one that sends the
// whole header at once
func Test_decode_byte_at_a_time(t *testing.T) {
	src := netip.MustParseAddr("10.212.4.33")
	dst := netip.MustParseAddr("10.11.12.13")
	handshakes := map[string][]byte{
		"v1": []byte("PROXY TCP4 255.255.255.255 255.255.255.255 65535 65535\r\n"),
		"v2": buildV2(2, CMD_PROXY, AF_INET, SOCK_STREAM,
			inetPayload(src, dst, 12345, 443, testTLVData1)),
	}
	for name, handshake := range handshakes {
		t.Run(name, func(t *testing.T) {
			allAtOnce := GetProxy(NewSource(strings.NewReader(string(handshake))))
			trickled := GetProxy(NewSource(&trickleReader{data: handshake}))

			require.True(t, allAtOnce.Valid())
			require.True(t, trickled.Valid())
			require.Equal(t, allAtOnce, trickled)
		})
	}
}
