package proxyproto

import (
	"bytes"

	"github.com/sirupsen/logrus"
)

var (
	v1Signature = []byte("PROXY")
	// v2 signature: \x0D\x0A\x0D\x0A\x00\x0D\x0A\x51\x55\x49\x54\x0A
	v2Signature = []byte("\r\n\r\n\x00\r\nQUIT\n")
)

// protocolError is a malformed-handshake diagnostic. It is folded verbatim
// into ProxyData.Error, unlike transport errors which get the
// "PROXY exception: " prefix.
type protocolError string

func (e protocolError) Error() string { return string(e) }

var log = logrus.StandardLogger()

// GetProxy reads one PROXY handshake from src. It always returns a
// ProxyData and never an error: any failure, protocol or transport, ends up
// in the Error field. Callers must check Valid before trusting addresses.
func GetProxy(src Source) *ProxyData {
	pd := NewProxyData()

	prefix, err := src.ReadExact(5)
	if err == nil {
		switch {
		case bytes.Equal(prefix, v1Signature):
			err = parseV1(pd, src, prefix)
		case bytes.Equal(prefix, v2Signature[:5]):
			err = parseV2(pd, src, prefix)
		default:
			err = protocolError("PROXY unrecognized signature")
		}
	}

	if err != nil {
		if perr, ok := err.(protocolError); ok {
			pd.Error = string(perr)
			log.Debugf("PROXY error: %s", pd.Error)
		} else {
			// partial fields from a dropped connection are not
			// trustworthy, start over from a clean value
			pd = NewProxyData()
			pd.Error = "PROXY exception: " + err.Error()
			log.Debug(pd.Error)
		}
	}
	return pd
}
