package sockets

import (
	"net"
	"strconv"
	"strings"
)

// localIPv4s returns the IPv4 address of every interface that is both
// up and running, excluding loopback addresses. The result seeds the
// LAN sweep.
func localIPv4s() []string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	var out []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagRunning == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() {
				continue
			}
			if v4 := ip.To4(); v4 != nil {
				out = append(out, v4.String())
			}
		}
	}
	return out
}

// sweepAddresses expands each local address A.B.C.x into the candidate
// range A.B.C.1 .. A.B.C.254, one range per address, with 127.0.0.1
// appended last. Scanning the whole /24 of every interface is brute
// force, but it beats hoping that the robot respects its default
// address or that mDNS works on the field network.
func sweepAddresses(localIPs []string) []string {
	var out []string
	for _, ip := range localIPs {
		parts := strings.Split(ip, ".")
		if len(parts) != 4 {
			continue
		}
		base := parts[0] + "." + parts[1] + "." + parts[2] + "."
		for i := 1; i < 255; i++ {
			out = append(out, base+strconv.Itoa(i))
		}
	}
	out = append(out, "127.0.0.1")
	return out
}
