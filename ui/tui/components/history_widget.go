package components

import (
	"monnet/ui/tui/styles"

	"github.com/NimbleMarkets/ntcharts/canvas"
	"github.com/NimbleMarkets/ntcharts/linechart"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// HistorySize is how many samples a widget keeps.
const HistorySize = 31

// HistoryWidget charts the last HistorySize samples of a percentage.
type HistoryWidget struct {
	Title   string
	Chart   linechart.Model
	History []float64
	Width   int
	Height  int
}

func NewHistoryWidget(title string, width, height int) *HistoryWidget {
	// width, height, minX, maxX, minY, maxY
	lc := linechart.New(width, height, 0, HistorySize-1, 0, 100)
	return &HistoryWidget{
		Title:   title,
		Chart:   lc,
		History: make([]float64, 0, HistorySize),
		Width:   width,
		Height:  height,
	}
}

func (c *HistoryWidget) Init() tea.Cmd {
	return nil
}

func (c *HistoryWidget) Push(value float64) {
	c.History = append(c.History, value)
	if len(c.History) > HistorySize {
		c.History = c.History[1:]
	}
}

func (c *HistoryWidget) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		if w := size.Width/2 - 6; w > 10 {
			c.Resize(w, c.Height)
		}
	}
	return c, nil
}

func (c *HistoryWidget) Resize(w, h int) {
	c.Width = w
	c.Height = h
	c.Chart.Resize(w, h)
}

// Plot redraws the chart from History and returns the bare chart.
func (c *HistoryWidget) Plot() string {
	c.Chart.Clear()
	for i := 0; i < len(c.History)-1; i++ {
		c.Chart.DrawBrailleLine(
			canvas.Float64Point{X: float64(i), Y: c.History[i]},
			canvas.Float64Point{X: float64(i + 1), Y: c.History[i+1]},
		)
	}
	c.Chart.DrawXYAxisAndLabel()
	return c.Chart.View()
}

func (c *HistoryWidget) View() string {
	return styles.CardStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.NewStyle().Bold(true).Render(c.Title),
			c.Plot(),
		),
	)
}
