//go:build windows

package sockets

import (
	"context"
	"net"
)

// listenShared opens a UDP packet socket. Address-sharing options are
// not applied on Windows; the parallel pool still works because each
// receiver binds a distinct candidate address.
func listenShared(hostPort string) (net.PacketConn, error) {
	var lc net.ListenConfig
	return lc.ListenPacket(context.Background(), "udp4", hostPort)
}
