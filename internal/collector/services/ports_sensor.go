package services

import (
	"context"
	"fmt"
	"net/netip"
	"syscall"

	gnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"

	"monnet/internal/snapshot"
)

// PortsSensor lists listening TCP sockets and, optionally, unbound UDP sockets.
type PortsSensor struct {
	udp     bool
	resolve bool
}

func NewPortsSensor(includeUDP, resolveServices bool) *PortsSensor {
	return &PortsSensor{udp: includeUDP, resolve: resolveServices}
}

func (s *PortsSensor) Name() string {
	return "Ports"
}

func (s *PortsSensor) Family() snapshot.Family {
	return snapshot.FamilyListenPorts
}

func (s *PortsSensor) Connect(ctx context.Context) error {
	return nil
}

func (s *PortsSensor) Disconnect(ctx context.Context) error {
	return nil
}

func (s *PortsSensor) Collect(ctx context.Context) (snapshot.Snapshot, error) {
	conns, err := gnet.ConnectionsWithContext(ctx, "inet")
	if err != nil {
		return nil, fmt.Errorf("failed to list sockets: %w", err)
	}

	names := make(map[int32]string)
	var entries []snapshot.PortEntry
	for _, c := range conns {
		e, ok := s.listenEntry(c)
		if !ok {
			continue
		}
		if s.resolve && c.Pid > 0 {
			e.Service = s.serviceName(ctx, names, c.Pid)
		}
		entries = append(entries, e)
	}
	return snapshot.NewListenPorts(entries...), nil
}

// listenEntry converts c when it is a listening socket.
func (s *PortsSensor) listenEntry(c gnet.ConnectionStat) (snapshot.PortEntry, bool) {
	if c.Laddr.Port == 0 || c.Laddr.Port > 65535 {
		return snapshot.PortEntry{}, false
	}

	e := snapshot.PortEntry{Interface: c.Laddr.IP, Port: uint16(c.Laddr.Port)}
	switch c.Type {
	case syscall.SOCK_STREAM:
		if c.Status != "LISTEN" {
			return e, false
		}
		e.Protocol = snapshot.ProtoTCP
	case syscall.SOCK_DGRAM:
		if !s.udp || !unbound(c.Raddr) {
			return e, false
		}
		e.Protocol = snapshot.ProtoUDP
	default:
		return e, false
	}

	switch c.Family {
	case syscall.AF_INET:
		e.IPVersion = snapshot.IPv4
	case syscall.AF_INET6:
		e.IPVersion = snapshot.IPv6
	default:
		return e, false
	}
	return e, true
}

// unbound reports whether a udp socket has no peer. The kernel reports the
// peer of an unconnected socket as the unspecified address with port 0.
func unbound(raddr gnet.Addr) bool {
	if raddr.Port != 0 {
		return false
	}
	if raddr.IP == "" {
		return true
	}
	ip, err := netip.ParseAddr(raddr.IP)
	return err == nil && ip.IsUnspecified()
}

func (s *PortsSensor) serviceName(ctx context.Context, cache map[int32]string, pid int32) string {
	if name, ok := cache[pid]; ok {
		return name
	}
	var name string
	if p, err := process.NewProcessWithContext(ctx, pid); err == nil {
		name, _ = p.NameWithContext(ctx)
	}
	cache[pid] = name
	return name
}
