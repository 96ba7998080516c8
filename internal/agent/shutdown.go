package agent

import (
	"io/fs"
	"os"
	"strings"

	"monnet/internal/engine"
)

const (
	NotifySystemShutdown = "system_shutdown"
	NotifyAppShutdown    = "app_shutdown"
	NotifyStarting       = "starting"
	NotifyListenPorts    = "listen_ports_info"
)

// shutdownMarkers are the files systemd leaves while the host goes down.
var shutdownMarkers = []string{
	"/run/nologin",
	"/run/systemd/shutdown/scheduled",
}

// ShutdownCheck reports whether the whole host is going down.
type ShutdownCheck func() bool

// HostShuttingDown checks the systemd shutdown markers on the real filesystem.
func HostShuttingDown() bool {
	return markersPresent(os.DirFS("/"), shutdownMarkers)
}

func markersPresent(fsys fs.FS, paths []string) bool {
	for _, p := range paths {
		if _, err := fs.Stat(fsys, strings.TrimLeft(p, "/")); err == nil {
			return true
		}
	}
	return false
}

// shutdownNotice picks the notification sent when the agent stops.
func shutdownNotice(hostDown bool) (string, engine.Severity) {
	if hostDown {
		return NotifySystemShutdown, engine.SeverityAlert
	}
	return NotifyAppShutdown, engine.SeverityWarn
}
