package motor

import (
	"net"
	"strconv"
	"strings"

	"github.com/google/gopacket/layers"
)

// ConnInfo is what the live socket tells us about the peer.
type ConnInfo struct {
	// Address is the peer address as reported by the socket
	Address string

	// IP and Port are set when the peer is an IP endpoint
	IP   string
	Port int

	// Type is "ipv4" or "ipv6", empty when the peer is not an IP endpoint
	Type string

	// Transport is "tcp" for stream sockets and "udp" for datagram sockets
	Transport string

	// IANANumber is the IP protocol number, set only for IP transports
	IANANumber *int
}

// InspectConn reads the peer address, family and socket kind of c.
func InspectConn(c net.Conn) ConnInfo {
	var info ConnInfo
	if c == nil || c.RemoteAddr() == nil {
		return info
	}

	switch addr := c.RemoteAddr().(type) {
	case *net.TCPAddr:
		info.setIP(addr.IP, addr.Port)
		info.Transport, info.IANANumber = transport(layers.IPProtocolTCP)
	case *net.UDPAddr:
		info.setIP(addr.IP, addr.Port)
		info.Transport, info.IANANumber = transport(layers.IPProtocolUDP)
	case *net.UnixAddr:
		// stream or datagram semantics only, there is no IP protocol number
		info.Address = addr.Name
		switch addr.Net {
		case "unix", "unixpacket":
			info.Transport, _ = transport(layers.IPProtocolTCP)
		case "unixgram":
			info.Transport, _ = transport(layers.IPProtocolUDP)
		}
	default:
		info.Address = addr.String()
		if host, port, err := net.SplitHostPort(info.Address); err == nil {
			if ip := net.ParseIP(host); ip != nil {
				n, _ := strconv.Atoi(port)
				info.setIP(ip, n)
			}
		}
	}
	return info
}

func (i *ConnInfo) setIP(ip net.IP, port int) {
	i.Address = ip.String()
	i.IP = ip.String()
	i.Port = port
	i.Type = ipType(ip)
}

// ipType names the address family the way ECS network.type expects ("ipv4", "ipv6").
func ipType(ip net.IP) string {
	switch {
	case ip == nil:
		return ""
	case ip.To4() != nil:
		return strings.ToLower(layers.EthernetTypeIPv4.String())
	default:
		return strings.ToLower(layers.EthernetTypeIPv6.String())
	}
}

// transport returns the ECS network.transport name and IANA number of proto.
func transport(proto layers.IPProtocol) (string, *int) {
	n := int(proto)
	return strings.ToLower(proto.String()), &n
}
