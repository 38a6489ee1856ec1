package proxyproto

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// PP2Type type of proxy protocol version 2
type PP2Type byte

// The following types have already been registered for the <type> field:
const (
	PP2_TYPE_ALPN           PP2Type = 0x01
	PP2_TYPE_AUTHORITY      PP2Type = 0x02
	PP2_TYPE_CRC32C         PP2Type = 0x03
	PP2_TYPE_NOOP           PP2Type = 0x04
	PP2_TYPE_UNIQUE_ID      PP2Type = 0x05
	PP2_TYPE_SSL            PP2Type = 0x20
	PP2_SUBTYPE_SSL_VERSION PP2Type = 0x21
	PP2_SUBTYPE_SSL_CN      PP2Type = 0x22
	PP2_SUBTYPE_SSL_CIPHER  PP2Type = 0x23
	PP2_SUBTYPE_SSL_SIG_ALG PP2Type = 0x24
	PP2_SUBTYPE_SSL_KEY_ALG PP2Type = 0x25
	PP2_TYPE_NETNS          PP2Type = 0x30
)

var (
	ErrMalformedTLV   = errors.New("malformed TLV")
	ErrUnknownTypeTLV = errors.New("unknown type TLV")
)

var tlvTypeName = map[PP2Type]string{
	PP2_TYPE_ALPN:           "ALPN",
	PP2_TYPE_AUTHORITY:      "AUTHORITY",
	PP2_TYPE_CRC32C:         "CRC32C",
	PP2_TYPE_NOOP:           "NOOP",
	PP2_TYPE_UNIQUE_ID:      "UNIQUE_ID",
	PP2_TYPE_SSL:            "SSL",
	PP2_SUBTYPE_SSL_VERSION: "SSL_VERSION",
	PP2_SUBTYPE_SSL_CN:      "SSL_CN",
	PP2_SUBTYPE_SSL_CIPHER:  "SSL_CIPHER",
	PP2_SUBTYPE_SSL_SIG_ALG: "SSL_SIG_ALG",
	PP2_SUBTYPE_SSL_KEY_ALG: "SSL_KEY_ALG",
	PP2_TYPE_NETNS:          "NETNS",
}

// TLVNameToNum reverse lookup from a type name back to the type byte.
func TLVNameToNum(name string) (PP2Type, bool) {
	for t, n := range tlvTypeName {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

// ProxyTLV is the decoded TLV vector of a version 2 header. Records are
// keyed by type name, unrecognized type bytes by "x" plus two uppercase hex
// digits. A repeated type overwrites the earlier record, last write wins.
type ProxyTLV struct {
	values map[string][]byte
	locs   map[string]int

	sslSeen   bool
	ssl       bool // nested parse of the SSL record succeeded
	sslClient byte
	sslVerify uint32
}

// ParseTLV walks raw as 1-byte type, 2-byte big-endian length, value
// records. With partialOK a record overrunning the buffer stops the walk and
// keeps what was decoded; otherwise it is ErrMalformedTLV. With strict an
// unrecognized type byte is ErrUnknownTypeTLV.
func ParseTLV(raw []byte, partialOK, strict bool) (*ProxyTLV, error) {
	t := &ProxyTLV{
		values: make(map[string][]byte),
		locs:   make(map[string]int),
	}
	if _, err := t.parseInto(raw, 0, partialOK, strict); err != nil {
		return nil, err
	}
	return t, nil
}

// TLVFromRaw decodes a complete TLV region, failing loudly on malformed
// top-level input. Zero-length input yields nil.
func TLVFromRaw(raw []byte) (*ProxyTLV, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	return ParseTLV(raw, false, false)
}

// parseInto accumulates records into t. base is the offset of buf within
// the original TLV region, so nested SSL sub-records report offsets
// relative to the region as a whole. With partialOK a record overrunning
// the buffer stops the walk without error; truncated reports that the walk
// stopped short, so the SSL path can tell a clean sub-vector from a
// malformed one.
func (t *ProxyTLV) parseInto(buf []byte, base int, partialOK, strict bool) (truncated bool, err error) {
	for cursor := 0; cursor < len(buf); {
		start := cursor
		typ := PP2Type(buf[cursor])
		cursor++
		if cursor+2 > len(buf) {
			if partialOK {
				return true, nil
			}
			return false, errors.Wrapf(ErrMalformedTLV, "length field at offset %d overruns buffer", base+start)
		}
		length := int(binary.BigEndian.Uint16(buf[cursor : cursor+2]))
		cursor += 2
		if cursor+length > len(buf) {
			if partialOK {
				return true, nil
			}
			return false, errors.Wrapf(ErrMalformedTLV, "value at offset %d overruns buffer", base+start)
		}
		value := append([]byte(nil), buf[cursor:cursor+length]...)
		cursor += length

		name, known := tlvTypeName[typ]
		if !known {
			if strict {
				return false, errors.Wrapf(ErrUnknownTypeTLV, "type 0x%02X", byte(typ))
			}
			name = fmt.Sprintf("x%02X", byte(typ))
		}

		if typ == PP2_TYPE_SSL {
			if err := t.parseSSL(value, base+start, partialOK, strict); err != nil {
				return false, err
			}
			t.locs[name] = base + start
			continue
		}

		t.values[name] = value
		t.locs[name] = base + start
	}
	return false, nil
}

// parseSSL decodes the SSL record's value: 1 client byte, 4 verify bytes,
// then nested sub-TLVs. A malformed sub-vector marks SSL as false while
// keeping the sub-records decoded so far, instead of failing the whole
// decode, unless strict or no-partial mode is requested.
func (t *ProxyTLV) parseSSL(value []byte, start int, partialOK, strict bool) error {
	t.sslSeen = true
	if len(value) < 5 {
		if !partialOK {
			return errors.Wrapf(ErrMalformedTLV, "SSL value at offset %d too short", start)
		}
		t.ssl = false
		return nil
	}
	t.sslClient = value[0]
	t.sslVerify = binary.BigEndian.Uint32(value[1:5])
	truncated, err := t.parseInto(value[5:], start, partialOK, strict)
	if err != nil {
		return err
	}
	t.ssl = !truncated
	return nil
}

// Has reports whether a record of the given type name was decoded.
func (t *ProxyTLV) Has(name string) bool {
	if name == "SSL" {
		return t.sslSeen
	}
	_, ok := t.values[name]
	return ok
}

// Value returns the raw value of a record, nil when absent. For "SSL" use
// the SSL, SSLClient and SSLVerify accessors instead.
func (t *ProxyTLV) Value(name string) []byte {
	return t.values[name]
}

// Loc returns the byte offset of a record within the TLV region, -1 when
// absent.
func (t *ProxyTLV) Loc(name string) int {
	if loc, ok := t.locs[name]; ok {
		return loc
	}
	return -1
}

// SSL reports whether an SSL record was present and its nested sub-TLVs
// parsed cleanly.
func (t *ProxyTLV) SSL() bool { return t.sslSeen && t.ssl }

// SSLClient is the first byte of the SSL record's value.
func (t *ProxyTLV) SSLClient() byte { return t.sslClient }

// SSLVerify is the 4-byte big-endian verify field of the SSL record.
func (t *ProxyTLV) SSLVerify() uint32 { return t.sslVerify }

func (t *ProxyTLV) ALPN() []byte      { return t.values["ALPN"] }
func (t *ProxyTLV) Authority() []byte { return t.values["AUTHORITY"] }
func (t *ProxyTLV) CRC32C() []byte    { return t.values["CRC32C"] }
func (t *ProxyTLV) UniqueID() []byte  { return t.values["UNIQUE_ID"] }
func (t *ProxyTLV) NetNS() []byte     { return t.values["NETNS"] }

func (t *ProxyTLV) SSLVersion() []byte { return t.values["SSL_VERSION"] }
func (t *ProxyTLV) SSLCN() []byte      { return t.values["SSL_CN"] }
func (t *ProxyTLV) SSLCipher() []byte  { return t.values["SSL_CIPHER"] }
func (t *ProxyTLV) SSLSigAlg() []byte  { return t.values["SSL_SIG_ALG"] }
func (t *ProxyTLV) SSLKeyAlg() []byte  { return t.values["SSL_KEY_ALG"] }
