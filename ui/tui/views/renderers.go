package views

import (
	"monnet/ui/tui/state"
)

func RenderMenu(s state.AppState, width, height, cursor int, animCursor float64, mouseX, mouseY int) string {
	v := MenuView{}
	return v.Render(s, ViewProps{
		Width:      width,
		Height:     height,
		MenuCursor: cursor,
		AnimCursor: animCursor,
		MouseX:     mouseX,
		MouseY:     mouseY,
	})
}

func RenderOverview(s state.AppState, spinnerView, cpuChart, ioChart string) string {
	v := OverviewView{}
	return v.Render(s, ViewProps{
		SpinnerView: spinnerView,
		CPUChart:    cpuChart,
		IoWaitChart: ioChart,
	})
}

func RenderRawConsole(s state.AppState, width, height, scrollY int) string {
	v := ConsoleView{}
	return v.Render(s, ViewProps{
		Width:   width,
		Height:  height,
		ScrollY: scrollY,
	})
}

// RenderPage draws one of the list pages.
func RenderPage(v View, s state.AppState, width, height, scrollY int) string {
	return v.Render(s, ViewProps{
		Width:   width,
		Height:  height,
		ScrollY: scrollY,
	})
}
