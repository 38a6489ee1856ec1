package main

import (
	"log"
	"net"
	"net/netip"
	"time"

	"github.com/proxywire/proxyproto"
)

func main() {
	d := proxyproto.NewProxyData()
	d.Version = proxyproto.Version2
	d.Command = proxyproto.CMD_PROXY
	d.Family = proxyproto.AF_INET
	d.Protocol = proxyproto.SOCK_STREAM
	d.SrcAddr = netip.MustParseAddr("127.0.0.1")
	d.DstAddr = netip.MustParseAddr("127.0.0.1")
	d.SrcPort = 12345
	d.DstPort = 56789

	raw, err := d.Format()
	if err != nil {
		log.Println("err:", err)
		return
	}

	conn, err := net.DialTimeout("tcp", "127.0.0.1:9090", time.Second*5)
	if err != nil {
		log.Println("err:", err)
		return
	}
	defer conn.Close()

	if _, err := conn.Write(raw); err != nil {
		log.Println("write PROXY header to connection fail:", err)
	}
}
