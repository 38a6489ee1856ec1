package proxyproto

import (
	"bytes"
	"io"
	"net/netip"
	"regexp"
	"strconv"
	"strings"
)

const (
	// worst case (optional fields set to 0xff):
	// "PROXY UNKNOWN ffff:f...f:ffff ffff:f...f:ffff 65535 65535\r\n"
	// => 5 + 1 + 7 + 1 + 39 + 1 + 39 + 1 + 5 + 1 + 5 + 2 = 107 chars
	v1HeaderMaxLength = 107
)

var (
	// addresses are only ever hex digits, dots and colons
	v1AddrAllowed = regexp.MustCompile(`^[0-9a-fA-F.:]+$`)
	// no leading zero unless the port is exactly "0", at most 5 digits
	v1PortAllowed = regexp.MustCompile(`^(?:[1-9][0-9]{0,4}|0)$`)
)

// parseV1 decodes the textual header. prefix holds the 5 signature bytes
// the dispatcher already consumed. Malformed input is reported as a
// protocolError with partially populated fields left in place; only
// transport failures are returned as plain errors.
func parseV1(pd *ProxyData, src Source, prefix []byte) error {
	pd.Version = Version1

	line, err := src.ReadUntil('\n')
	if err != nil && err != io.EOF {
		return err
	}
	// a stream that ended without the delimiter still gets inspected:
	// the CRLF check below turns it into a diagnostic

	whole := make([]byte, 0, len(prefix)+len(line))
	whole = append(whole, prefix...)
	whole = append(whole, line...)
	pd.WholeRaw = whole

	if len(whole) > v1HeaderMaxLength {
		return protocolError("PROXYv1 header too long")
	}
	if !bytes.HasSuffix(whole, []byte("\r\n")) {
		return protocolError("PROXYv1 malformed")
	}

	// split on single spaces, preserving empty fields from consecutive
	// spaces; the signature itself is not part of the split so a correct
	// line yields an empty first field
	fields := strings.Split(string(whole[len(prefix):len(whole)-2]), " ")
	if fields[0] != "" {
		return protocolError("PROXYv1 wrong signature")
	}
	if len(fields) < 2 {
		return protocolError("PROXYv1 malformed")
	}

	proto := fields[1]
	if proto == "UNKNOWN" {
		// UNKNOWN payloads are opaque, keep whatever trails verbatim
		pd.Family = AF_UNSPEC
		pd.Protocol = SOCK_UNSPEC
		if len(fields) > 2 {
			pd.Rest = []byte(" " + strings.Join(fields[2:], " "))
		}
		return nil
	}

	switch {
	case strings.HasSuffix(proto, "4"):
		pd.Family = AF_INET
	case strings.HasSuffix(proto, "6"):
		pd.Family = AF_INET6
	default:
		return protocolError("PROXYv1 unrecognized family")
	}
	if !strings.HasPrefix(proto, "TCP") {
		return protocolError("PROXYv1 unrecognized protocol")
	}
	pd.Protocol = SOCK_STREAM

	if len(fields) < 6 {
		return protocolError("PROXYv1 malformed")
	}

	srcAddr, err := parseV1Addr(fields[2], pd.Family)
	if err != nil {
		return err
	}
	dstAddr, err := parseV1Addr(fields[3], pd.Family)
	if err != nil {
		return err
	}
	srcPort, err := parseV1Port(fields[4], "src")
	if err != nil {
		return err
	}
	dstPort, err := parseV1Port(fields[5], "dst")
	if err != nil {
		return err
	}
	if len(fields) > 6 {
		return protocolError("PROXYv1 unrecognized extraneous data")
	}

	pd.SrcAddr = srcAddr
	pd.DstAddr = dstAddr
	pd.SrcPort = srcPort
	pd.DstPort = dstPort
	return nil
}

func parseV1Addr(s string, af AddressFamily) (netip.Addr, error) {
	if !v1AddrAllowed.MatchString(s) {
		return netip.Addr{}, protocolError("PROXYv1 address malformed")
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, protocolError("PROXYv1 address malformed")
	}
	if af == AF_INET && !addr.Is4() {
		return netip.Addr{}, protocolError("PROXYv1 address not IPv4")
	}
	if af == AF_INET6 && !addr.Is6() {
		return netip.Addr{}, protocolError("PROXYv1 address not IPv6")
	}
	return addr, nil
}

func parseV1Port(s, which string) (int, error) {
	if !v1PortAllowed.MatchString(s) {
		return -1, protocolError("PROXYv1 port malformed")
	}
	port, err := strconv.Atoi(s)
	if err != nil {
		return -1, protocolError("PROXYv1 port malformed")
	}
	// the regex admits up to five digits, which still allows 65536..99999
	if port > 65535 {
		return -1, protocolError("PROXYv1 " + which + " port out of bounds")
	}
	return port, nil
}
