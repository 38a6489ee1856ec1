package main

import (
	"log"
	"net"

	"github.com/proxywire/proxyproto"
	"github.com/sirupsen/logrus"
)

func main() {
	ln, err := net.Listen("tcp", "127.0.0.1:9090")
	if err != nil {
		log.Fatal(err)
	}

	proxyListener := proxyproto.NewListener(ln, proxyproto.WithPostReadHeader(loggingHandshake))
	for {
		conn, err := proxyListener.Accept()
		if err != nil {
			log.Println(err)
			continue
		}

		go serve(conn)
	}
}

func serve(tcpConn net.Conn) {
	// do something
	conn, ok := tcpConn.(*proxyproto.Conn)
	if ok && conn != nil {
		// conn.RemoteAddr() is now the original client
	}
}

func loggingHandshake(d *proxyproto.ProxyData) {
	if !d.Valid() {
		logrus.WithFields(d.LogrusFields()).Warn("failed to decode PROXY handshake")
		return
	}
	logrus.WithFields(d.LogrusFields()).Info("decoded PROXY handshake")
}
