package services

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	gnet "github.com/shirou/gopsutil/v4/net"

	"monnet/internal/snapshot"
)

type sensorTestCase struct {
	name     string
	factory  func() Sensor
	optional bool
}

var sensorCases = []sensorTestCase{
	{name: "Load", factory: func() Sensor { return NewLoadSensor(0) }},
	{name: "Memory", factory: func() Sensor { return NewMemSensor() }},
	{name: "Disk", factory: func() Sensor { return NewDiskSensor(false, nil) }},
	{name: "IoWait", factory: func() Sensor { return NewIoWaitSensor() }},
	{name: "Ports", factory: func() Sensor { return NewPortsSensor(true, false) }, optional: true},
}

func TestSensorsSuite(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, tc := range sensorCases {
		t.Run(tc.name, func(t *testing.T) {
			sensor := tc.factory()

			if err := sensor.Connect(ctx); err != nil {
				t.Skipf("%s Connect unavailable on this host: %v", tc.name, err)
			}
			defer sensor.Disconnect(ctx)

			result, err := sensor.Collect(ctx)
			if err != nil {
				if tc.optional {
					t.Logf("%s Collect skipped (optional): %v", tc.name, err)
					return
				}
				t.Skipf("%s Collect unavailable on this host: %v", tc.name, err)
			}
			if result == nil {
				t.Fatalf("%s Collect returned nil result", tc.name)
			}
			if result.Family() != sensor.Family() {
				t.Errorf("%s returned family %s, want %s", tc.name, result.Family(), sensor.Family())
			}
			if err := result.Validate(); err != nil {
				t.Errorf("%s returned an invalid reading: %v", tc.name, err)
			}

			logSensorResult(t, tc.name, result)
		})
	}
}

func TestHostSensor(t *testing.T) {
	res, err := NewHostSensor().Collect(context.Background())
	if err != nil {
		t.Skipf("host info unavailable: %v", err)
	}
	if res.Hostname == "" {
		t.Error("expected a hostname")
	}
	logSensorResult(t, "Host", res)
}

func logSensorResult(t *testing.T, name string, result any) {
	t.Helper()

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		t.Logf("%s result: %+v", name, result)
		return
	}

	t.Logf("%s result:\n%s", name, payload)
}

func TestIoWaitPercent(t *testing.T) {
	prev := cpu.TimesStat{User: 100, Idle: 800, Iowait: 100}
	tests := []struct {
		name     string
		prev     *cpu.TimesStat
		cur      cpu.TimesStat
		expected float64
	}{
		{"no baseline", nil, cpu.TimesStat{User: 50, Idle: 25, Iowait: 25}, 25},
		{"delta", &prev, cpu.TimesStat{User: 150, Idle: 830, Iowait: 120}, 20},
		{"idle interval", &prev, prev, 10},
		{"counter reset", &prev, cpu.TimesStat{User: 10, Idle: 80, Iowait: 10}, 10},
		{"empty", nil, cpu.TimesStat{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := iowaitPercent(tt.prev, tt.cur)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("iowaitPercent() = %v; want %v", got, tt.expected)
			}
		})
	}
}

func TestMemoryInfo(t *testing.T) {
	got := memoryInfo(&mem.VirtualMemoryStat{
		Total:     4096 * mb,
		Available: 1024 * mb,
		Free:      512 * mb,
	})
	want := snapshot.MemoryInfo{TotalMB: 4096, AvailableMB: 1024, FreeMB: 512, UsedMB: 3072, UsedPercent: 75}
	if got != want {
		t.Errorf("memoryInfo() = %+v; want %+v", got, want)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("converted reading is invalid: %v", err)
	}

	odd := memoryInfo(&mem.VirtualMemoryStat{Total: 100 * mb, Available: 200 * mb})
	if odd.UsedMB != 0 || odd.UsedPercent != 0 {
		t.Errorf("available above total should read as unused, got %+v", odd)
	}
}

func TestListenEntry(t *testing.T) {
	s := NewPortsSensor(true, false)
	tests := []struct {
		name string
		conn gnet.ConnectionStat
		want snapshot.PortEntry
		ok   bool
	}{
		{
			name: "tcp listen v4",
			conn: gnet.ConnectionStat{Family: syscall.AF_INET, Type: syscall.SOCK_STREAM, Status: "LISTEN", Laddr: gnet.Addr{IP: "0.0.0.0", Port: 22}},
			want: snapshot.PortEntry{Interface: "0.0.0.0", Port: 22, Protocol: snapshot.ProtoTCP, IPVersion: snapshot.IPv4},
			ok:   true,
		},
		{
			name: "tcp established",
			conn: gnet.ConnectionStat{Family: syscall.AF_INET, Type: syscall.SOCK_STREAM, Status: "ESTABLISHED", Laddr: gnet.Addr{IP: "10.0.0.1", Port: 22}, Raddr: gnet.Addr{IP: "10.0.0.2", Port: 51000}},
		},
		{
			name: "udp unbound v6",
			conn: gnet.ConnectionStat{Family: syscall.AF_INET6, Type: syscall.SOCK_DGRAM, Status: "NONE", Laddr: gnet.Addr{IP: "::", Port: 53}, Raddr: gnet.Addr{IP: "::"}},
			want: snapshot.PortEntry{Interface: "::", Port: 53, Protocol: snapshot.ProtoUDP, IPVersion: snapshot.IPv6},
			ok:   true,
		},
		{
			name: "udp unbound v4",
			conn: gnet.ConnectionStat{Family: syscall.AF_INET, Type: syscall.SOCK_DGRAM, Status: "NONE", Laddr: gnet.Addr{IP: "127.0.0.1", Port: 5353}, Raddr: gnet.Addr{IP: "0.0.0.0"}},
			want: snapshot.PortEntry{Interface: "127.0.0.1", Port: 5353, Protocol: snapshot.ProtoUDP, IPVersion: snapshot.IPv4},
			ok:   true,
		},
		{
			name: "udp unbound without peer address",
			conn: gnet.ConnectionStat{Family: syscall.AF_INET, Type: syscall.SOCK_DGRAM, Laddr: gnet.Addr{IP: "0.0.0.0", Port: 68}},
			want: snapshot.PortEntry{Interface: "0.0.0.0", Port: 68, Protocol: snapshot.ProtoUDP, IPVersion: snapshot.IPv4},
			ok:   true,
		},
		{
			name: "udp unspecified peer with port",
			conn: gnet.ConnectionStat{Family: syscall.AF_INET, Type: syscall.SOCK_DGRAM, Laddr: gnet.Addr{IP: "10.0.0.1", Port: 40001}, Raddr: gnet.Addr{IP: "0.0.0.0", Port: 53}},
		},
		{
			name: "udp connected",
			conn: gnet.ConnectionStat{Family: syscall.AF_INET, Type: syscall.SOCK_DGRAM, Laddr: gnet.Addr{IP: "10.0.0.1", Port: 40000}, Raddr: gnet.Addr{IP: "1.1.1.1", Port: 53}},
		},
		{
			name: "zero port",
			conn: gnet.ConnectionStat{Family: syscall.AF_INET, Type: syscall.SOCK_STREAM, Status: "LISTEN"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.listenEntry(tt.conn)
			if ok != tt.ok {
				t.Fatalf("listenEntry() ok = %v; want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("listenEntry() = %+v; want %+v", got, tt.want)
			}
		})
	}

	noUDP := NewPortsSensor(false, false)
	if _, ok := noUDP.listenEntry(tests[2].conn); ok {
		t.Error("udp sockets should be skipped when disabled")
	}
}

func TestPortsSensorSeesUnboundUDP(t *testing.T) {
	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot open udp socket: %v", err)
	}
	defer pc.Close()
	port := uint16(pc.LocalAddr().(*net.UDPAddr).Port)

	snap, err := NewPortsSensor(true, false).Collect(context.Background())
	if err != nil {
		t.Skipf("socket listing unavailable: %v", err)
	}
	ports := snap.(snapshot.ListenPorts)
	if len(ports.Entries) == 0 {
		t.Skip("host exposes no sockets")
	}

	want := snapshot.PortEntry{Interface: "127.0.0.1", Port: port, Protocol: snapshot.ProtoUDP, IPVersion: snapshot.IPv4}
	for _, e := range ports.Entries {
		if e == want {
			return
		}
	}
	t.Errorf("unbound udp socket on port %d missing from %+v", port, ports.Entries)
}

func TestPrimaryAddress(t *testing.T) {
	ifaces := gnet.InterfaceStatList{
		{Name: "lo", Flags: []string{"up", "loopback"}, Addrs: gnet.InterfaceAddrList{{Addr: "127.0.0.1/8"}}},
		{Name: "eth1", Flags: []string{"broadcast"}, Addrs: gnet.InterfaceAddrList{{Addr: "10.9.9.9/24"}}},
		{Name: "eth0", Flags: []string{"up", "broadcast"}, Addrs: gnet.InterfaceAddrList{
			{Addr: "fe80::1/64"},
			{Addr: "2001:db8::5/64"},
			{Addr: "192.168.1.20/24"},
		}},
	}
	if got := primaryAddress(ifaces); got != "192.168.1.20" {
		t.Errorf("primaryAddress() = %q; want 192.168.1.20", got)
	}

	v6only := ifaces[:2:2]
	v6only = append(v6only, gnet.InterfaceStat{Name: "eth0", Flags: []string{"up"}, Addrs: gnet.InterfaceAddrList{{Addr: "2001:db8::5/64"}}})
	if got := primaryAddress(v6only); got != "2001:db8::5" {
		t.Errorf("primaryAddress() = %q; want 2001:db8::5", got)
	}
}
