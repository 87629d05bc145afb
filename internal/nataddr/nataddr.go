// Package nataddr discovers an externally-reachable address for the P2P
// listener via UPnP or NAT-PMP, so inbound dials work from behind typical
// home routers without manual port-forwarding.
package nataddr

import (
	"fmt"
	"net"
	"time"

	"github.com/huin/goupnp/dcps/internetgateway1"
	natpmp "github.com/jackpal/go-nat-pmp"
)

// Mapper maps an internal port to an external one for the given lifetime.
// The lease is not renewed; it lapses when the lifetime runs out.
type Mapper interface {
	AddMapping(internalPort uint16, description string, lifetime time.Duration) (externalPort uint16, err error)
	ExternalIP() (string, error)
	Close()
}

// DiscoverUPnP finds a UPnP-capable gateway on the local network.
func DiscoverUPnP() (Mapper, error) {
	clients, _, err := internetgateway1.NewWANIPConnection1Clients()
	if err != nil {
		return nil, fmt.Errorf("upnp discovery: %w", err)
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("no upnp gateway found")
	}
	return &upnpMapper{client: clients[0]}, nil
}

type upnpMapper struct {
	client *internetgateway1.WANIPConnection1
}

func (m *upnpMapper) AddMapping(internalPort uint16, description string, lifetime time.Duration) (uint16, error) {
	localIP, err := localIPv4()
	if err != nil {
		return 0, err
	}
	err = m.client.AddPortMapping("", internalPort, "TCP", internalPort, localIP, true, description, uint32(lifetime.Seconds()))
	if err != nil {
		return 0, err
	}
	return internalPort, nil
}

func (m *upnpMapper) ExternalIP() (string, error) {
	ip, err := m.client.GetExternalIPAddress()
	return ip, err
}

func (m *upnpMapper) Close() {}

// DiscoverNATPMP finds a NAT-PMP capable gateway (typical on Apple/older
// routers that don't speak UPnP) at the default gateway address.
func DiscoverNATPMP(gateway [4]byte) Mapper {
	return &natpmpMapper{client: natpmp.NewClient(gateway)}
}

type natpmpMapper struct {
	client *natpmp.Client
}

func (m *natpmpMapper) AddMapping(internalPort uint16, _ string, lifetime time.Duration) (uint16, error) {
	resp, err := m.client.AddPortMapping("tcp", int(internalPort), int(internalPort), int(lifetime.Seconds()))
	if err != nil {
		return 0, err
	}
	return resp.MappedExternalPort, nil
}

func (m *natpmpMapper) ExternalIP() (string, error) {
	resp, err := m.client.GetExternalAddress()
	if err != nil {
		return "", err
	}
	ip := resp.ExternalIPAddress
	return fmt.Sprintf("%d.%d.%d.%d", ip[0], ip[1], ip[2], ip[3]), nil
}

func (m *natpmpMapper) Close() {}

// localIPv4 returns this host's first non-loopback IPv4 address, the address
// a gateway expects in an AddPortMapping call's NewInternalClient field.
func localIPv4() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4.String(), nil
		}
	}
	return "", fmt.Errorf("no non-loopback ipv4 address found")
}

// DefaultGateway guesses the gateway address from the local IPv4 address's
// /24, the common case for home routers; callers with a real gateway lookup
// available should prefer that instead.
func DefaultGateway() ([4]byte, error) {
	ip, err := localIPv4()
	if err != nil {
		return [4]byte{}, err
	}
	parsed := net.ParseIP(ip).To4()
	if parsed == nil {
		return [4]byte{}, fmt.Errorf("could not parse local ip %q", ip)
	}
	return [4]byte{parsed[0], parsed[1], parsed[2], 1}, nil
}

// EstablishMapping tries UPnP first, falling back to NAT-PMP, and maps
// internalPort to itself externally for the given lifetime. Best-effort: a
// failure here just means the node relies on inbound peers dialing it
// directly or not at all, it never blocks startup (spec §4.11 Listener
// remains reachable via outbound-initiated connections regardless).
func EstablishMapping(internalPort uint16, lifetime time.Duration) (externalIP string, externalPort uint16, err error) {
	if mapper, uerr := DiscoverUPnP(); uerr == nil {
		if port, merr := mapper.AddMapping(internalPort, "grin-node p2p", lifetime); merr == nil {
			ip, _ := mapper.ExternalIP()
			return ip, port, nil
		}
	}

	gw, gerr := DefaultGateway()
	if gerr != nil {
		return "", 0, gerr
	}
	mapper := DiscoverNATPMP(gw)
	port, merr := mapper.AddMapping(internalPort, "grin-node p2p", lifetime)
	if merr != nil {
		return "", 0, merr
	}
	ip, _ := mapper.ExternalIP()
	return ip, port, nil
}
