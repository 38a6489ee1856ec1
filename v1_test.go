package proxyproto

import (
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) *ProxyData {
	t.Helper()
	return GetProxy(NewSource(strings.NewReader(raw)))
}

func Test_parseV1(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *ProxyData
	}{
		{
			name: "tcp4",
			raw:  "PROXY TCP4 127.0.0.1 10.11.12.13 12345 56789\r\n",
			want: &ProxyData{
				Version:  Version1,
				Command:  CMD_NONE,
				Family:   AF_INET,
				Protocol: SOCK_STREAM,
				SrcAddr:  netip.MustParseAddr("127.0.0.1"),
				DstAddr:  netip.MustParseAddr("10.11.12.13"),
				SrcPort:  12345,
				DstPort:  56789,
				TLVStart: -1,
			},
		}, {
			name: "tcp4-port-bounds",
			raw:  "PROXY TCP4 1.2.3.4 5.6.7.8 0 65535\r\n",
			want: &ProxyData{
				Version:  Version1,
				Command:  CMD_NONE,
				Family:   AF_INET,
				Protocol: SOCK_STREAM,
				SrcAddr:  netip.MustParseAddr("1.2.3.4"),
				DstAddr:  netip.MustParseAddr("5.6.7.8"),
				SrcPort:  0,
				DstPort:  65535,
				TLVStart: -1,
			},
		}, {
			name: "tcp6",
			raw:  "PROXY TCP6 2020:dead::1 2021:cafe::2 8000 65535\r\n",
			want: &ProxyData{
				Version:  Version1,
				Command:  CMD_NONE,
				Family:   AF_INET6,
				Protocol: SOCK_STREAM,
				SrcAddr:  netip.MustParseAddr("2020:dead::1"),
				DstAddr:  netip.MustParseAddr("2021:cafe::2"),
				SrcPort:  8000,
				DstPort:  65535,
				TLVStart: -1,
			},
		}, {
			name: "unknown",
			raw:  "PROXY UNKNOWN\r\n",
			want: &ProxyData{
				Version:  Version1,
				Command:  CMD_NONE,
				Family:   AF_UNSPEC,
				Protocol: SOCK_UNSPEC,
				SrcPort:  -1,
				DstPort:  -1,
				TLVStart: -1,
			},
		}, {
			name: "unknown-trailing",
			raw:  "PROXY UNKNOWN whatever\r\n",
			want: &ProxyData{
				Version:  Version1,
				Command:  CMD_NONE,
				Family:   AF_UNSPEC,
				Protocol: SOCK_UNSPEC,
				SrcPort:  -1,
				DstPort:  -1,
				Rest:     []byte(" whatever"),
				TLVStart: -1,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.want.WholeRaw = []byte(tt.raw)
			got := decode(t, tt.raw)
			require.True(t, got.Valid())
			require.Equal(t, tt.want, got)
		})
	}
}

// lines published in various vendors' documentation
func Test_parseV1_public_patterns(t *testing.T) {
	patterns := map[string]string{
		"haproxydoc":  "PROXY TCP4 192.168.0.1 192.168.0.11 56324 443",
		"cloudflare4": "PROXY TCP4 192.0.2.0 192.0.2.255 42300 443",
		"cloudflare6": "PROXY TCP6 2001:db8:: 2001:db8:ffff:ffff:ffff:ffff:ffff:ffff 42300 443",
		"avinetworks": "PROXY TCP4 12.97.16.194 136.179.21.69 31646 80",
		"googlecloud": "PROXY TCP4 192.0.2.1 198.51.100.1 15221 110",
	}
	for name, patt := range patterns {
		t.Run(name, func(t *testing.T) {
			got := decode(t, patt+"\r\n")
			require.Empty(t, got.Error)
			require.True(t, got.Valid())
			require.Equal(t, Version1, got.Version)
			require.Equal(t, SOCK_STREAM, got.Protocol)
		})
	}
}

func Test_parseV1_errors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{
			name:    "wrong-signature",
			raw:     "PROXY1 UNKNOWN whatevs\r\n",
			wantErr: "PROXYv1 wrong signature",
		}, {
			name:    "unrecognized-family",
			raw:     "PROXY TCP5 123.123.123.123 231.231.231.231 80 90\r\n",
			wantErr: "PROXYv1 unrecognized family",
		}, {
			name:    "unrecognized-family-short",
			raw:     "PROXY TCP 123.123.123.123 231.231.231.231 80 90\r\n",
			wantErr: "PROXYv1 unrecognized family",
		}, {
			name:    "unrecognized-protocol",
			raw:     "PROXY UDP4 123.123.123.123 231.231.231.231 80 90\r\n",
			wantErr: "PROXYv1 unrecognized protocol",
		}, {
			name:    "too-long",
			raw:     "PROXY UNKNOWN " + strings.Repeat("*", 100) + "\r\n",
			wantErr: "PROXYv1 header too long",
		}, {
			name:    "no-cr",
			raw:     "PROXY UNKNOWN\n",
			wantErr: "PROXYv1 malformed",
		}, {
			name:    "cut-short",
			raw:     "PROXY TCP4 255.255.",
			wantErr: "PROXYv1 malformed",
		}, {
			name:    "wrongtype-6-should-be-4",
			raw:     "PROXY TCP6 1.2.3.4 5.6.7.8 65535 65535\r\n",
			wantErr: "PROXYv1 address not IPv6",
		}, {
			name:    "wrongtype-4-should-be-6",
			raw:     "PROXY TCP4 2020:dead::1 2021:cafe::2 65535 65535\r\n",
			wantErr: "PROXYv1 address not IPv4",
		}, {
			name:    "wrongtype-6-mixed",
			raw:     "PROXY TCP6 1.2.3.4 2021:cafe::2 65535 65535\r\n",
			wantErr: "PROXYv1 address not IPv6",
		}, {
			name:    "address-bad-char",
			raw:     "PROXY TCP6 2020:dead::000g 2021:cafe::2 123 456\r\n",
			wantErr: "PROXYv1 address malformed",
		}, {
			name:    "address-hex-but-not-ip",
			raw:     "PROXY TCP6 1.2.3.a 5.6.7.8 65535 65535\r\n",
			wantErr: "PROXYv1 address malformed",
		}, {
			name:    "address-leading-space",
			raw:     "PROXY TCP6  2020:dead::1 2021:cafe::2 123 456\r\n",
			wantErr: "PROXYv1 address malformed",
		}, {
			name:    "port-leading-zero",
			raw:     "PROXY TCP6 2020:dead::1 2021:cafe::2 02501 8080\r\n",
			wantErr: "PROXYv1 port malformed",
		}, {
			name:    "port-five-zeros",
			raw:     "PROXY TCP4 1.2.3.4 5.6.7.8 00000 8080\r\n",
			wantErr: "PROXYv1 port malformed",
		}, {
			name:    "port-012",
			raw:     "PROXY TCP4 1.2.3.4 5.6.7.8 012 8080\r\n",
			wantErr: "PROXYv1 port malformed",
		}, {
			name:    "src-port-oob",
			raw:     "PROXY TCP4 1.2.3.4 5.6.7.8 65536 10200\r\n",
			wantErr: "PROXYv1 src port out of bounds",
		}, {
			name:    "dst-port-oob",
			raw:     "PROXY TCP6 2020:dead::1 2021:cafe::2 10000 65536\r\n",
			wantErr: "PROXYv1 dst port out of bounds",
		}, {
			name:    "extraneous-space",
			raw:     "PROXY TCP6 2020:dead::1 2021:cafe::2 0 25 \r\n",
			wantErr: "PROXYv1 unrecognized extraneous data",
		}, {
			name:    "extraneous-text",
			raw:     "PROXY TCP6 2020:dead::1 2021:cafe::2 0 25 text\r\n",
			wantErr: "PROXYv1 unrecognized extraneous data",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decode(t, tt.raw)
			require.False(t, got.Valid())
			require.Equal(t, tt.wantErr, got.Error)
		})
	}
}
