//go:build !windows

package sockets

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// listenShared opens a UDP packet socket with SO_REUSEADDR and
// SO_REUSEPORT set before bind, so many receivers can share one
// address:port the way the parallel pool requires.
func listenShared(hostPort string) (net.PacketConn, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, raw syscall.RawConn) error {
			var optErr error
			err := raw.Control(func(fd uintptr) {
				optErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				if optErr != nil {
					return
				}
				optErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return optErr
		},
	}
	return lc.ListenPacket(context.Background(), "udp4", hostPort)
}
