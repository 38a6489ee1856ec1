package proxyproto

import (
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

// PostReadHeader will be called after reading the PROXY handshake.
type PostReadHeader func(d *ProxyData)

// Conn wraps net.Conn and decodes the PROXY handshake before the first
// application read. The decode consumes exactly the header bytes, so the
// application protocol resumes at the right place.
type Conn struct {
	net.Conn

	ProxyData *ProxyData

	readHeaderOnce    sync.Once // ensure to read header only once
	readHeaderTimeout time.Duration
	originalDeadline  time.Time // use to reset deadline after reading header

	disableProxyProtocol bool
	postFunc             PostReadHeader
}

func NewConn(conn net.Conn, opts ...Option) *Conn {
	c := &Conn{Conn: conn}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Read implement net.Conn, in order to read the PROXY handshake first
func (c *Conn) Read(b []byte) (int, error) {
	c.readHeader()
	return c.Conn.Read(b)
}

// LocalAddr implement net.Conn, reporting the proxied destination address
func (c *Conn) LocalAddr() net.Addr {
	c.readHeader()
	if d := c.ProxyData; d != nil && d.Valid() && d.Command != CMD_LOCAL {
		if addr := d.DstNetAddr(); addr != nil {
			return addr
		}
	}
	return c.Conn.LocalAddr()
}

// RemoteAddr implement net.Conn, reporting the original client address
func (c *Conn) RemoteAddr() net.Addr {
	c.readHeader()
	if d := c.ProxyData; d != nil && d.Valid() && d.Command != CMD_LOCAL {
		if addr := d.SrcNetAddr(); addr != nil {
			return addr
		}
	}
	return c.Conn.RemoteAddr()
}

// SetDeadline implement net.Conn, in order to catch deadline
func (c *Conn) SetDeadline(t time.Time) error {
	c.originalDeadline = t
	return c.Conn.SetDeadline(t)
}

// SetReadDeadline implement net.Conn, in order to catch deadline
func (c *Conn) SetReadDeadline(t time.Time) error {
	c.originalDeadline = t
	return c.Conn.SetReadDeadline(t)
}

// TLV get the decoded TLV vector, nil when absent
func (c *Conn) TLV() *ProxyTLV {
	c.readHeader()
	if c.ProxyData == nil {
		return nil
	}
	return c.ProxyData.TLV()
}

// RawHeader get the raw handshake bytes as received
func (c *Conn) RawHeader() []byte {
	c.readHeader()
	if c.ProxyData == nil {
		return nil
	}
	return c.ProxyData.WholeRaw
}

// ZapFields header fields for zap
func (c *Conn) ZapFields() []zap.Field {
	if c.ProxyData == nil {
		return nil
	}
	return c.ProxyData.ZapFields()
}

// LogrusFields header fields for logrus
func (c *Conn) LogrusFields() logrus.Fields {
	if c.ProxyData == nil {
		return nil
	}
	return c.ProxyData.LogrusFields()
}

// readHeader decodes the handshake only once
func (c *Conn) readHeader() {
	c.readHeaderOnce.Do(func() {
		if c.disableProxyProtocol {
			return
		}

		if c.readHeaderTimeout > 0 {
			originalDeadline := c.originalDeadline
			c.SetReadDeadline(time.Now().Add(c.readHeaderTimeout))
			defer c.SetReadDeadline(originalDeadline)
		}

		pd := GetProxy(NewSource(c.Conn))
		if c.postFunc != nil {
			c.postFunc(pd)
		}
		c.ProxyData = pd
	})
}
