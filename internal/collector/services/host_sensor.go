package services

import (
	"context"
	"fmt"
	"net/netip"
	"slices"
	"strings"

	"github.com/shirou/gopsutil/v4/host"
	gnet "github.com/shirou/gopsutil/v4/net"
)

// HostResult identifies the machine in outgoing payloads.
type HostResult struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	KernelVersion   string `json:"kernel_version"`
	HostID          string `json:"host_id"`
	Uptime          uint64 `json:"uptime"`
	IPAddress       string `json:"ip_address"`
}

// HostSensor is not a metric family; it feeds payload metadata.
type HostSensor struct{}

func NewHostSensor() *HostSensor {
	return &HostSensor{}
}

func (s *HostSensor) Name() string {
	return "Host"
}

func (s *HostSensor) Collect(ctx context.Context) (HostResult, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return HostResult{}, fmt.Errorf("failed to get host info: %w", err)
	}

	res := HostResult{
		Hostname:        info.Hostname,
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelVersion:   info.KernelVersion,
		HostID:          info.HostID,
		Uptime:          info.Uptime,
	}

	ifaces, err := gnet.InterfacesWithContext(ctx)
	if err == nil {
		res.IPAddress = primaryAddress(ifaces)
	}
	return res, nil
}

// primaryAddress picks the first global IPv4 address, then the first global
// IPv6 one, skipping loopback and down interfaces.
func primaryAddress(ifaces gnet.InterfaceStatList) string {
	var v6 string
	for _, iface := range ifaces {
		if !slices.Contains(iface.Flags, "up") || slices.Contains(iface.Flags, "loopback") {
			continue
		}
		for _, a := range iface.Addrs {
			prefix, err := netip.ParsePrefix(a.Addr)
			if err != nil {
				addr, perr := netip.ParseAddr(strings.TrimSpace(a.Addr))
				if perr != nil {
					continue
				}
				prefix = netip.PrefixFrom(addr, addr.BitLen())
			}
			ip := prefix.Addr()
			if ip.IsLoopback() || ip.IsLinkLocalUnicast() {
				continue
			}
			if ip.Is4() {
				return ip.String()
			}
			if v6 == "" {
				v6 = ip.String()
			}
		}
	}
	return v6
}
