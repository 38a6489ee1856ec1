package proxyproto

import "time"

type Option func(*Conn)

// WithReadHeaderTimeout read the handshake with a timeout
func WithReadHeaderTimeout(duration time.Duration) Option {
	return func(c *Conn) {
		c.readHeaderTimeout = duration
	}
}

// WithDisableProxyProto the handshake is not read
func WithDisableProxyProto(disable bool) Option {
	return func(c *Conn) {
		c.disableProxyProtocol = disable
	}
}

// WithPostReadHeader want to do after reading the handshake, such as logging
func WithPostReadHeader(fn PostReadHeader) Option {
	return func(c *Conn) {
		c.postFunc = fn
	}
}
