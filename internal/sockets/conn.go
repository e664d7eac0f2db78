package sockets

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/K9-guardian/QDriverStation/internal/ds"
)

const tcpDialTimeout = 5 * time.Second

// conn wraps a datagram endpoint of either socket kind behind one
// surface: bind for receiving, connectTo/write/writeTo for sending.
// A conn starts with no OS socket; sockets are opened on first bind
// or send and replaced on re-bind.
type conn struct {
	kind   ds.SocketType
	logger *slog.Logger

	// onData receives every datagram read while bound. Set once,
	// before the first bind.
	onData func(source string, data []byte)

	mu       sync.Mutex
	pc       net.PacketConn // bound UDP receiver
	listener net.Listener   // bound TCP receiver
	out      *net.UDPConn   // unbound UDP sender socket
	tcp      net.Conn       // dialed TCP sender
	target   *net.UDPAddr   // connected UDP send target
	closed   bool
}

func newConn(kind ds.SocketType, logger *slog.Logger) *conn {
	if logger == nil {
		logger = slog.Default()
	}
	return &conn{kind: kind, logger: logger}
}

// bind points the receiving side at addr:port, replacing any previous
// binding. A UDP socket is opened with address sharing enabled and
// multicast loopback disabled; a TCP receiver is a plain listener.
func (c *conn) bind(addr string, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return net.ErrClosed
	}
	c.unbindLocked()

	hostPort := net.JoinHostPort(addr, fmt.Sprintf("%d", port))
	if c.kind == ds.SocketTCP {
		listener, err := net.Listen("tcp4", hostPort)
		if err != nil {
			return err
		}
		c.listener = listener
		go c.acceptLoop(listener)
		return nil
	}

	pc, err := listenShared(hostPort)
	if err != nil {
		return err
	}
	if p := ipv4.NewPacketConn(pc); p != nil {
		p.SetMulticastLoopback(false)
	}
	c.pc = pc
	go c.readLoop(pc)
	return nil
}

// unbind closes the receiving side only; the send side is untouched.
func (c *conn) unbind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unbindLocked()
}

func (c *conn) unbindLocked() {
	if c.pc != nil {
		c.pc.Close()
		c.pc = nil
	}
	if c.listener != nil {
		c.listener.Close()
		c.listener = nil
	}
}

// connectTo fixes the send target. UDP stores the resolved address;
// TCP dials eagerly and logs a failure without returning it, since
// senders are best-effort.
func (c *conn) connectTo(host string, port int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.kind == ds.SocketTCP {
		if c.tcp != nil {
			c.tcp.Close()
			c.tcp = nil
		}
		addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
		tc, err := net.DialTimeout("tcp4", addr, tcpDialTimeout)
		if err != nil {
			c.logger.Debug("tcp connect failed", "addr", addr, "err", err)
			return
		}
		c.tcp = tc
		return
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			c.logger.Debug("resolve failed", "host", host, "err", err)
			c.target = nil
			return
		}
		ip = ips[0]
	}
	c.target = &net.UDPAddr{IP: ip, Port: port}
}

// write sends to the connected target.
func (c *conn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return net.ErrClosed
	}
	if c.kind == ds.SocketTCP {
		if c.tcp == nil {
			return net.ErrClosed
		}
		_, err := c.tcp.Write(data)
		return err
	}
	if c.target == nil {
		return net.ErrClosed
	}
	return c.writeUDPLocked(data, c.target)
}

// writeTo sends a single datagram to host:port, ignoring any
// connected target.
func (c *conn) writeTo(data []byte, host string, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return net.ErrClosed
	}
	if c.kind == ds.SocketTCP {
		if c.tcp == nil {
			return net.ErrClosed
		}
		_, err := c.tcp.Write(data)
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("bad address %q", host)
	}
	return c.writeUDPLocked(data, &net.UDPAddr{IP: ip, Port: port})
}

func (c *conn) writeUDPLocked(data []byte, addr *net.UDPAddr) error {
	if c.out == nil {
		out, err := net.ListenUDP("udp4", nil)
		if err != nil {
			return err
		}
		c.out = out
	}
	_, err := c.out.WriteToUDP(data, addr)
	return err
}

// close tears down both sides. The conn cannot be reused.
func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.unbindLocked()
	if c.out != nil {
		c.out.Close()
		c.out = nil
	}
	if c.tcp != nil {
		c.tcp.Close()
		c.tcp = nil
	}
}

func (c *conn) readLoop(pc net.PacketConn) {
	buf := make([]byte, 4096)
	for {
		n, remote, err := pc.ReadFrom(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		source := ""
		if udpAddr, ok := remote.(*net.UDPAddr); ok {
			source = udpAddr.IP.String()
		}
		if c.onData != nil {
			c.onData(source, data)
		}
	}
}

func (c *conn) acceptLoop(listener net.Listener) {
	for {
		tc, err := listener.Accept()
		if err != nil {
			return
		}
		go func() {
			defer tc.Close()
			source := ""
			if addr, ok := tc.RemoteAddr().(*net.TCPAddr); ok {
				source = addr.IP.String()
			}
			buf := make([]byte, 4096)
			for {
				n, err := tc.Read(buf)
				if n > 0 && c.onData != nil {
					data := make([]byte, n)
					copy(data, buf[:n])
					c.onData(source, data)
				}
				if err != nil {
					return
				}
			}
		}()
	}
}
