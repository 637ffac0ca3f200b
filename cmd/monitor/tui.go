package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/yitech/barstream/internal/model"
	"github.com/yitech/barstream/internal/wsapi"
)

var (
	bullStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#26a641"))
	bearStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e05c5c"))
	wickStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	axisStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#aaaaaa"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555"))
)

type barMsg struct{ ev wsapi.BarEvent }

type chartModel struct {
	symbol string
	period string
	nKline int
	ch     <-chan wsapi.BarEvent

	bars   []model.Bar
	width  int
	height int
}

func newModel(symbol, period string, nKline int, ch <-chan wsapi.BarEvent) chartModel {
	return chartModel{symbol: symbol, period: period, nKline: nKline, ch: ch}
}

func (m chartModel) Init() tea.Cmd {
	return waitForBar(m.ch)
}

func (m chartModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case barMsg:
		m.addOrUpdate(msg.ev.Bar)
		return m, waitForBar(m.ch)
	}

	return m, nil
}

func (m chartModel) View() string {
	if m.width == 0 {
		return "connecting…"
	}
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteByte('\n')
	b.WriteString(m.renderChart())
	b.WriteByte('\n')
	b.WriteString(footerStyle.Render("[q] quit"))
	return b.String()
}

func waitForBar(ch <-chan wsapi.BarEvent) tea.Cmd {
	return func() tea.Msg {
		return barMsg{<-ch}
	}
}

// addOrUpdate merges into the last bar if its bucket start matches, else
// appends a new one — the live-then-close lifecycle from a single
// (symbol, period) subscription.
func (m *chartModel) addOrUpdate(bar model.Bar) {
	if n := len(m.bars); n > 0 && m.bars[n-1].Ts == bar.Ts {
		m.bars[n-1] = bar
	} else {
		m.bars = append(m.bars, bar)
		if len(m.bars) > m.nKline {
			m.bars = m.bars[len(m.bars)-m.nKline:]
		}
	}
}

func (m chartModel) renderHeader() string {
	if len(m.bars) == 0 {
		return headerStyle.Render(fmt.Sprintf("%s  %s  waiting for data…", m.symbol, m.period))
	}
	bar := m.bars[len(m.bars)-1]
	status := "open"
	if bar.IsClosed {
		status = "closed"
	}
	return headerStyle.Render(fmt.Sprintf(
		"%s  %s  [%s]  O:%.2f  H:%.2f  L:%.2f  C:%.2f  V:%.0f  %d/%d",
		m.symbol, m.period, status,
		bar.Open, bar.High, bar.Low, bar.Close, bar.Volume,
		len(m.bars), m.nKline,
	))
}

const yAxisWidth = 11 // " 12345.67 │"

func (m chartModel) renderChart() string {
	chartH := m.height - 4
	if chartH < 3 {
		chartH = 3
	}

	bars := m.bars
	chartW := m.width - yAxisWidth
	maxCols := chartW / 2
	if maxCols < 1 {
		maxCols = 1
	}
	if len(bars) > maxCols {
		bars = bars[len(bars)-maxCols:]
	}

	hi, lo := priceRange(bars)
	if hi == lo {
		hi = lo + 1
	}

	cols := len(bars) * 2
	grid := make([][]string, chartH)
	for r := range grid {
		grid[r] = make([]string, cols)
		for c := range grid[r] {
			grid[r][c] = " "
		}
	}

	for i, bar := range bars {
		renderBar(grid, bar, i*2, chartH, hi, lo)
	}

	var b strings.Builder
	for row := 0; row < chartH; row++ {
		price := rowToPrice(row, chartH, hi, lo)
		label := fmt.Sprintf("%9.2f │", price)
		b.WriteString(axisStyle.Render(label))
		b.WriteString(strings.Join(grid[row], ""))
		b.WriteByte('\n')
	}

	b.WriteString(axisStyle.Render(strings.Repeat("─", yAxisWidth)))
	b.WriteString(axisStyle.Render(strings.Repeat("─", cols)))
	b.WriteByte('\n')

	b.WriteString(strings.Repeat(" ", yAxisWidth))
	labelEvery := 10
	for i, bar := range bars {
		if i%labelEvery == 0 {
			t := time.UnixMilli(bar.Ts).UTC()
			b.WriteString(t.Format("15:04"))
			continue
		}
		b.WriteString("  ")
	}
	b.WriteByte('\n')

	return b.String()
}

func renderBar(grid [][]string, bar model.Bar, x, chartH int, hi, lo float64) {
	bullish := bar.Close >= bar.Open
	style := bullStyle
	if !bullish {
		style = bearStyle
	}

	fH := float64(chartH)
	bodyTop := priceToRow(math.Max(bar.Open, bar.Close), fH, hi, lo)
	bodyBot := priceToRow(math.Min(bar.Open, bar.Close), fH, hi, lo)
	wickTop := priceToRow(bar.High, fH, hi, lo)
	wickBot := priceToRow(bar.Low, fH, hi, lo)

	for row := 0; row < chartH; row++ {
		inBody := row >= bodyTop && row <= bodyBot
		inWick := row >= wickTop && row <= wickBot

		var left, right string
		switch {
		case inBody:
			left = style.Render("█")
			right = style.Render("█")
		case inWick:
			left = wickStyle.Render("│")
			right = " "
		default:
			left = " "
			right = " "
		}

		if x < len(grid[row]) {
			grid[row][x] = left
		}
		if x+1 < len(grid[row]) {
			grid[row][x+1] = right
		}
	}
}

func priceToRow(price, chartH float64, hi, lo float64) int {
	if hi == lo {
		return int(chartH) / 2
	}
	row := (hi - price) / (hi - lo) * (chartH - 1)
	r := int(math.Round(row))
	if r < 0 {
		r = 0
	}
	if r >= int(chartH) {
		r = int(chartH) - 1
	}
	return r
}

func rowToPrice(row, chartH int, hi, lo float64) float64 {
	if chartH <= 1 {
		return hi
	}
	return hi - float64(row)/float64(chartH-1)*(hi-lo)
}

func priceRange(bars []model.Bar) (hi, lo float64) {
	hi = -math.MaxFloat64
	lo = math.MaxFloat64
	for _, bar := range bars {
		if bar.High > hi {
			hi = bar.High
		}
		if bar.Low < lo {
			lo = bar.Low
		}
	}
	if hi == -math.MaxFloat64 {
		hi = 0
	}
	if lo == math.MaxFloat64 {
		lo = 0
	}
	return
}
