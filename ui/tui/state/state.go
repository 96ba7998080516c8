package state

import (
	"time"

	"monnet/internal/engine"
	"monnet/internal/output"
)

type Page int

const (
	PageMenu Page = iota
	PageConsole
	PageOverview
	PageEvents
	PagePorts
	PageArmed
)

// AppState holds the latest pipeline result and the history the pages draw.
type AppState struct {
	View          output.DashboardView
	LastUpdate    time.Time
	Err           error
	CPUHistory    []float64
	IoWaitHistory []float64
	ConsoleLogs   []string
	EventLog      []engine.Event
	CurrentPage   Page
}
