package proxyproto

import (
	"net"
	"net/netip"
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

type (
	Version           byte // Version 1 or 2
	Command           byte // Local or Proxy
	AddressFamily     byte // IPv4, IPv6 or Unix
	TransportProtocol byte // TCP or UDP
)

const (
	Version1 Version = 0x1 // Version 1
	Version2 Version = 0x2 // Version 2

	CMD_LOCAL Command = 0x0 // Local
	CMD_PROXY Command = 0x1 // Proxy
	CMD_NONE  Command = 0xFF

	AF_UNSPEC AddressFamily = 0x0 // Unspec
	AF_INET   AddressFamily = 0x1 // IPv4
	AF_INET6  AddressFamily = 0x2 // IPv6
	AF_UNIX   AddressFamily = 0x3 // Unix
	AF_NONE   AddressFamily = 0xFF

	SOCK_UNSPEC TransportProtocol = 0x0 // Unspec
	SOCK_STREAM TransportProtocol = 0x1 // TCP
	SOCK_DGRAM  TransportProtocol = 0x2 // UDP
	SOCK_NONE   TransportProtocol = 0xFF

	Unknown string = "Unknown" // Unknown value
)

// ProxyData is the outcome of one handshake decode. Fields that the wire
// format did not determine stay at their sentinel values (CMD_NONE, AF_NONE,
// SOCK_NONE, zero Version, -1 ports). UNSPEC is a legitimate wire value and
// is therefore distinct from "unset".
type ProxyData struct {
	Version  Version // 0 when the signature was not recognized
	Command  Command // version 2 only
	Family   AddressFamily
	Protocol TransportProtocol

	SrcAddr netip.Addr // zero Addr when absent or family is Unix
	DstAddr netip.Addr
	SrcUnix []byte // raw 108-byte address block, family Unix only
	DstUnix []byte
	SrcPort int // -1 when absent
	DstPort int

	// Rest holds the bytes after the fixed fields: the TLV region for
	// version 2, or the opaque tail after "UNKNOWN" for version 1.
	Rest []byte
	// WholeRaw is exactly the header bytes consumed from the stream.
	WholeRaw []byte
	// TLVStart is the offset of the TLV region within WholeRaw, or -1.
	TLVStart int

	// Error is empty for a usable handshake, otherwise a diagnostic.
	Error string

	tlvOnce sync.Once
	tlv     *ProxyTLV
}

// NewProxyData returns a ProxyData with all optional fields unset.
func NewProxyData() *ProxyData {
	return &ProxyData{
		Command:  CMD_NONE,
		Family:   AF_NONE,
		Protocol: SOCK_NONE,
		SrcPort:  -1,
		DstPort:  -1,
		TLVStart: -1,
	}
}

// Valid is the single authoritative "is this handshake usable" predicate.
func (d *ProxyData) Valid() bool {
	return d.Error == "" && d.Version != 0 && d.Protocol != SOCK_NONE
}

// TLV lazily decodes Rest as a TLV vector, memoizing the result. Decode
// failures are swallowed: TLV data is supplementary and its absence must not
// invalidate an otherwise successful handshake.
func (d *ProxyData) TLV() *ProxyTLV {
	d.tlvOnce.Do(func() {
		tlv, err := TLVFromRaw(d.Rest)
		if err != nil {
			return
		}
		d.tlv = tlv
	})
	return d.tlv
}

// SrcNetAddr builds a net.Addr from the decoded source fields, or nil when
// the family carries no address.
func (d *ProxyData) SrcNetAddr() net.Addr {
	return d.netAddr(d.SrcAddr, d.SrcUnix, d.SrcPort)
}

// DstNetAddr builds a net.Addr from the decoded destination fields.
func (d *ProxyData) DstNetAddr() net.Addr {
	return d.netAddr(d.DstAddr, d.DstUnix, d.DstPort)
}

func (d *ProxyData) netAddr(addr netip.Addr, unix []byte, port int) net.Addr {
	switch d.Family {
	case AF_INET, AF_INET6:
		if !addr.IsValid() || port < 0 {
			return nil
		}
		if d.Protocol == SOCK_DGRAM {
			return net.UDPAddrFromAddrPort(netip.AddrPortFrom(addr, uint16(port)))
		}
		return net.TCPAddrFromAddrPort(netip.AddrPortFrom(addr, uint16(port)))
	case AF_UNIX:
		if len(unix) == 0 {
			return nil
		}
		network := "unix"
		if d.Protocol == SOCK_DGRAM {
			network = "unixgram"
		}
		return &net.UnixAddr{Net: network, Name: unixName(unix)}
	}
	return nil
}

// unixName trims a 108-byte wire block at the first NUL.
func unixName(block []byte) string {
	for i, b := range block {
		if b == 0 {
			return string(block[:i])
		}
	}
	return string(block)
}

// ZapFields header fields for zap
func (d *ProxyData) ZapFields() []zap.Field {
	var srcAddr, dstAddr string
	if src := d.SrcNetAddr(); src != nil {
		srcAddr = src.String()
	}
	if dst := d.DstNetAddr(); dst != nil {
		dstAddr = dst.String()
	}

	fields := make([]zap.Field, 0, 7)
	fields = append(fields,
		zap.Bool("valid", d.Valid()),
		zap.String("version", d.Version.String()),
		zap.String("command", d.Command.String()),
		zap.String("address_family", d.Family.String()),
		zap.String("transport_protocol", d.Protocol.String()),
		zap.String("source_address", srcAddr),
		zap.String("destination_address", dstAddr),
	)
	if d.Error != "" {
		fields = append(fields, zap.String("error", d.Error))
	}
	return fields
}

// LogrusFields header fields for logrus
func (d *ProxyData) LogrusFields() logrus.Fields {
	var srcAddr, dstAddr string
	if src := d.SrcNetAddr(); src != nil {
		srcAddr = src.String()
	}
	if dst := d.DstNetAddr(); dst != nil {
		dstAddr = dst.String()
	}

	fields := make(logrus.Fields, 8)
	fields["valid"] = d.Valid()
	fields["version"] = d.Version.String()
	fields["command"] = d.Command.String()
	fields["address_family"] = d.Family.String()
	fields["transport_protocol"] = d.Protocol.String()
	fields["source_address"] = srcAddr
	fields["destination_address"] = dstAddr
	if d.Error != "" {
		fields["error"] = d.Error
	}
	return fields
}

func (v Version) String() string {
	switch v {
	case Version1:
		return "V1"
	case Version2:
		return "V2"
	}
	return Unknown
}

func (c Command) String() string {
	switch c {
	case CMD_LOCAL:
		return "Local"
	case CMD_PROXY:
		return "Proxy"
	}
	return Unknown
}

func (af AddressFamily) String() string {
	switch af {
	case AF_UNSPEC:
		return "Unspec"
	case AF_INET:
		return "IPv4"
	case AF_INET6:
		return "IPv6"
	case AF_UNIX:
		return "Unix"
	}
	return Unknown
}

func (tp TransportProtocol) String() string {
	switch tp {
	case SOCK_UNSPEC:
		return "Unspec"
	case SOCK_STREAM:
		return "TCP"
	case SOCK_DGRAM:
		return "UDP"
	}
	return Unknown
}
