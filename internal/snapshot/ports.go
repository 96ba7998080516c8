package snapshot

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

type Protocol string

const (
	ProtoTCP Protocol = "tcp"
	ProtoUDP Protocol = "udp"
)

type IPVersion string

const (
	IPv4 IPVersion = "ipv4"
	IPv6 IPVersion = "ipv6"
)

// PortEntry is one listening socket.
type PortEntry struct {
	Interface string    `json:"interface"`
	Port      uint16    `json:"port"`
	Service   string    `json:"service"`
	Protocol  Protocol  `json:"protocol"`
	IPVersion IPVersion `json:"ip_version"`
}

func comparePorts(a, b PortEntry) int {
	return cmp.Or(
		cmp.Compare(a.IPVersion, b.IPVersion),
		cmp.Compare(a.Interface, b.Interface),
		cmp.Compare(a.Port, b.Port),
		cmp.Compare(a.Protocol, b.Protocol),
		cmp.Compare(a.Service, b.Service),
	)
}

// ListenPorts is a set of listening sockets. Equality ignores order.
type ListenPorts struct {
	Entries []PortEntry `json:"listen_ports_info"`
}

// NewListenPorts collapses duplicates and sorts the entries so payloads are stable.
func NewListenPorts(entries ...PortEntry) ListenPorts {
	out := slices.Clone(entries)
	slices.SortFunc(out, comparePorts)
	return ListenPorts{Entries: slices.Compact(out)}
}

func (ListenPorts) Family() Family { return FamilyListenPorts }

func (p ListenPorts) set() map[PortEntry]struct{} {
	s := make(map[PortEntry]struct{}, len(p.Entries))
	for _, e := range p.Entries {
		s[e] = struct{}{}
	}
	return s
}

func (p ListenPorts) Equal(other Snapshot) bool {
	o, ok := other.(ListenPorts)
	if !ok {
		return false
	}
	a, b := p.set(), o.set()
	if len(a) != len(b) {
		return false
	}
	for e := range a {
		if _, ok := b[e]; !ok {
			return false
		}
	}
	return true
}

func (p ListenPorts) Validate() error {
	for _, e := range p.Entries {
		switch {
		case e.Port == 0:
			return malformed(FamilyListenPorts, "zero port on %q", e.Interface)
		case e.Protocol != ProtoTCP && e.Protocol != ProtoUDP:
			return malformed(FamilyListenPorts, "unknown protocol %q", e.Protocol)
		case e.IPVersion != IPv4 && e.IPVersion != IPv6:
			return malformed(FamilyListenPorts, "unknown ip version %q", e.IPVersion)
		}
	}
	return nil
}

// PortKey identifies a socket within one interface.
type PortKey struct {
	Port     uint16
	Protocol Protocol
}

// MarshalText renders the key as "22/tcp" so grouped ports encode as JSON objects.
func (k PortKey) MarshalText() ([]byte, error) {
	return []byte(strconv.Itoa(int(k.Port)) + "/" + string(k.Protocol)), nil
}

func (k *PortKey) UnmarshalText(b []byte) error {
	port, proto, ok := strings.Cut(string(b), "/")
	if !ok {
		return fmt.Errorf("port key %q: missing protocol", b)
	}
	n, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return fmt.Errorf("port key %q: %w", b, err)
	}
	k.Port = uint16(n)
	k.Protocol = Protocol(proto)
	return nil
}

// PortGroups nests listening sockets by ip version, then interface, then port.
// Lookups never create intermediate maps; only Insert does.
type PortGroups map[IPVersion]map[string]map[PortKey]PortEntry

// GroupPorts builds the nested view of p.
func GroupPorts(p ListenPorts) PortGroups {
	g := PortGroups{}
	for _, e := range p.Entries {
		g.Insert(e)
	}
	return g
}

// Insert adds e if no entry exists at its position and reports whether it did.
func (g PortGroups) Insert(e PortEntry) bool {
	ifaces, ok := g[e.IPVersion]
	if !ok {
		ifaces = make(map[string]map[PortKey]PortEntry)
		g[e.IPVersion] = ifaces
	}
	ports, ok := ifaces[e.Interface]
	if !ok {
		ports = make(map[PortKey]PortEntry)
		ifaces[e.Interface] = ports
	}
	key := PortKey{Port: e.Port, Protocol: e.Protocol}
	if _, exists := ports[key]; exists {
		return false
	}
	ports[key] = e
	return true
}

func (g PortGroups) Lookup(ver IPVersion, iface string, key PortKey) (PortEntry, bool) {
	ifaces, ok := g[ver]
	if !ok {
		return PortEntry{}, false
	}
	ports, ok := ifaces[iface]
	if !ok {
		return PortEntry{}, false
	}
	e, ok := ports[key]
	return e, ok
}

func (g PortGroups) Len() int {
	n := 0
	for _, ifaces := range g {
		for _, ports := range ifaces {
			n += len(ports)
		}
	}
	return n
}
