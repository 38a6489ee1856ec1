package proxyproto

import (
	"bytes"
	"encoding/binary"
	"net/netip"

	"github.com/pkg/errors"
)

const (
	// addressBlockIPv4 is 2*4 addresses + 2*2 ports = 12 bytes.
	addressBlockIPv4 = 12
	// addressBlockIPv6 is 2*16 addresses + 2*2 ports = 36 bytes.
	addressBlockIPv6 = 36
	// addressBlockUnix is 2*108 addresses, no port fields = 216 bytes.
	addressBlockUnix = 216

	v2FixedHeaderLength = 16 // 12 signature + 1 ver/cmd + 1 fam/proto + 2 length
)

// parseV2 decodes the binary header. prefix holds the first 5 signature
// bytes the dispatcher already consumed.
func parseV2(pd *ProxyData, src Source, prefix []byte) error {
	pd.Version = Version2

	sigRest, err := src.ReadExact(len(v2Signature) - len(prefix))
	if err != nil {
		return errors.New("connection lost while waiting for v2 signature")
	}
	whole := make([]byte, 0, v2FixedHeaderLength)
	whole = append(whole, prefix...)
	whole = append(whole, sigRest...)
	pd.WholeRaw = whole

	if !bytes.Equal(whole, v2Signature) {
		return protocolError("PROXYv2 wrong signature")
	}

	hdr, err := src.ReadExact(4)
	if err != nil {
		return errors.New("connection lost while waiting for header part")
	}
	pd.WholeRaw = append(pd.WholeRaw, hdr...)

	if hdr[0]>>4 != byte(Version2) {
		return protocolError("PROXYv2 illegal version")
	}
	cmd := Command(hdr[0] & 0x0F)
	if cmd > CMD_PROXY {
		return protocolError("PROXYv2 unsupported command")
	}
	pd.Command = cmd

	fam := AddressFamily(hdr[1] >> 4)
	if fam > AF_UNIX {
		return protocolError("PROXYv2 unsupported family")
	}
	pd.Family = fam
	proto := TransportProtocol(hdr[1] & 0x0F)
	if proto > SOCK_DGRAM {
		return protocolError("PROXYv2 unsupported protocol")
	}
	pd.Protocol = proto

	tailLength := binary.BigEndian.Uint16(hdr[2:4])
	tail, err := src.ReadExact(int(tailLength))
	if err != nil {
		return errors.New("connection lost while waiting for tail part")
	}
	pd.WholeRaw = append(pd.WholeRaw, tail...)

	// only the six family x protocol combinations with defined address
	// layouts get their addresses decoded; anything else keeps the tail
	// verbatim and still succeeds
	if fam == AF_UNSPEC || proto == SOCK_UNSPEC {
		if len(tail) > 0 {
			pd.Rest = tail
		}
		return nil
	}

	var blockSize int
	switch fam {
	case AF_INET:
		blockSize = addressBlockIPv4
	case AF_INET6:
		blockSize = addressBlockIPv6
	case AF_UNIX:
		blockSize = addressBlockUnix
	}
	if len(tail) < blockSize {
		return protocolError("PROXYv2 truncated address")
	}

	switch fam {
	case AF_INET:
		var src4, dst4 [4]byte
		copy(src4[:], tail[0:4])
		copy(dst4[:], tail[4:8])
		pd.SrcAddr = netip.AddrFrom4(src4)
		pd.DstAddr = netip.AddrFrom4(dst4)
		pd.SrcPort = int(binary.BigEndian.Uint16(tail[8:10]))
		pd.DstPort = int(binary.BigEndian.Uint16(tail[10:12]))
	case AF_INET6:
		var src16, dst16 [16]byte
		copy(src16[:], tail[0:16])
		copy(dst16[:], tail[16:32])
		pd.SrcAddr = netip.AddrFrom16(src16)
		pd.DstAddr = netip.AddrFrom16(dst16)
		pd.SrcPort = int(binary.BigEndian.Uint16(tail[32:34]))
		pd.DstPort = int(binary.BigEndian.Uint16(tail[34:36]))
	case AF_UNIX:
		// Unix addresses have zero-width port fields on the wire
		pd.SrcUnix = append([]byte(nil), tail[0:108]...)
		pd.DstUnix = append([]byte(nil), tail[108:216]...)
	}

	if rest := tail[blockSize:]; len(rest) > 0 {
		pd.Rest = rest
		pd.TLVStart = v2FixedHeaderLength + blockSize
	}
	return nil
}
