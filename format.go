package proxyproto

import (
	"bytes"
	"strconv"

	"github.com/pkg/errors"
)

var v1UnknownLine = []byte("PROXY UNKNOWN\r\n")

var (
	ErrFormatVersion  = errors.New("format: version is not set")
	ErrFormatFamily   = errors.New("format: family has no wire encoding")
	ErrFormatAddress  = errors.New("format: source or destination address not set")
	ErrFormatTooLarge = errors.New("format: payload exceeds uint16 length")
)

// Format encodes the decoded fields back into a wire header. Re-decoding
// the output reproduces the same logical fields; the exact bytes may differ
// from WholeRaw when the textual form normalizes addresses.
func (d *ProxyData) Format() ([]byte, error) {
	switch d.Version {
	case Version1:
		return d.formatV1()
	case Version2:
		return d.formatV2()
	}
	return nil, ErrFormatVersion
}

func (d *ProxyData) formatV1() ([]byte, error) {
	if d.Family == AF_UNSPEC || d.Protocol != SOCK_STREAM {
		// version 1 can only signal TCP; everything else is UNKNOWN
		line := make([]byte, 0, len(v1UnknownLine)+len(d.Rest))
		line = append(line, "PROXY UNKNOWN"...)
		line = append(line, d.Rest...)
		return append(line, "\r\n"...), nil
	}

	var buf bytes.Buffer
	buf.WriteString("PROXY ")
	switch d.Family {
	case AF_INET:
		buf.WriteString("TCP4 ")
	case AF_INET6:
		buf.WriteString("TCP6 ")
	default:
		return nil, ErrFormatFamily
	}
	if !d.SrcAddr.IsValid() || !d.DstAddr.IsValid() || d.SrcPort < 0 || d.DstPort < 0 {
		return nil, ErrFormatAddress
	}
	buf.WriteString(d.SrcAddr.String())
	buf.WriteString(" ")
	buf.WriteString(d.DstAddr.String())
	buf.WriteString(" ")
	buf.WriteString(strconv.Itoa(d.SrcPort))
	buf.WriteString(" ")
	buf.WriteString(strconv.Itoa(d.DstPort))
	buf.WriteString("\r\n")
	return buf.Bytes(), nil
}

func (d *ProxyData) formatV2() ([]byte, error) {
	cmd := d.Command
	if cmd == CMD_NONE {
		cmd = CMD_PROXY
	}
	fam, proto := d.Family, d.Protocol
	if fam == AF_NONE || proto == SOCK_NONE {
		return nil, ErrFormatFamily
	}

	var payload bytes.Buffer
	switch fam {
	case AF_UNSPEC:
		// no address block
	case AF_INET:
		if !d.SrcAddr.Is4() || !d.DstAddr.Is4() || d.SrcPort < 0 || d.DstPort < 0 {
			return nil, ErrFormatAddress
		}
		src4, dst4 := d.SrcAddr.As4(), d.DstAddr.As4()
		payload.Write(src4[:])
		payload.Write(dst4[:])
		writeUint16(&payload, uint16(d.SrcPort))
		writeUint16(&payload, uint16(d.DstPort))
	case AF_INET6:
		if !d.SrcAddr.Is6() || !d.DstAddr.Is6() || d.SrcPort < 0 || d.DstPort < 0 {
			return nil, ErrFormatAddress
		}
		src16, dst16 := d.SrcAddr.As16(), d.DstAddr.As16()
		payload.Write(src16[:])
		payload.Write(dst16[:])
		writeUint16(&payload, uint16(d.SrcPort))
		writeUint16(&payload, uint16(d.DstPort))
	case AF_UNIX:
		if len(d.SrcUnix) == 0 || len(d.DstUnix) == 0 {
			return nil, ErrFormatAddress
		}
		writeUnixBlock(&payload, d.SrcUnix)
		writeUnixBlock(&payload, d.DstUnix)
	}
	payload.Write(d.Rest)

	if payload.Len() > 0xFFFF {
		return nil, ErrFormatTooLarge
	}
	length := uint16(payload.Len())

	out := make([]byte, 0, v2FixedHeaderLength+payload.Len())
	out = append(out, v2Signature...)
	out = append(out, byte(Version2)<<4|byte(cmd), byte(fam)<<4|byte(proto))
	out = append(out, byte(length>>8), byte(length))
	return append(out, payload.Bytes()...), nil
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v))
}

// writeUnixBlock pads or truncates to the fixed 108-byte wire width.
func writeUnixBlock(buf *bytes.Buffer, name []byte) {
	var block [108]byte
	copy(block[:], name)
	buf.Write(block[:])
}
