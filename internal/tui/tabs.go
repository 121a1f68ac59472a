package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/layerd/internal/ipc"
)

// Tab identifies a TUI tab.
type Tab int

const (
	TabMap Tab = iota
	TabWindows
	TabLayers
	tabCount // sentinel for iteration
)

func (t Tab) String() string {
	switch t {
	case TabMap:
		return "Region Map"
	case TabWindows:
		return "Windows"
	case TabLayers:
		return "Layers"
	default:
		return "?"
	}
}

var (
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("250")).
				Background(lipgloss.Color("236")).
				Padding(0, 2)

	tabBarStyle = lipgloss.NewStyle().
			MarginBottom(1)

	tabGap = lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		SetString(" ")
)

// renderTabBar renders the tab bar with the given active tab and width.
func renderTabBar(active Tab, width int) string {
	var tabs []string
	for i := Tab(0); i < tabCount; i++ {
		label := fmt.Sprintf("%d:%s", int(i)+1, i)
		if i == active {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(label))
		}
	}

	row := lipgloss.JoinHorizontal(lipgloss.Top, intersperse(tabs, tabGap.Render())...)
	return tabBarStyle.Width(width).Render(row)
}

// intersperse inserts sep between each element of items.
func intersperse(items []string, sep string) []string {
	if len(items) <= 1 {
		return items
	}
	result := make([]string, 0, len(items)*2-1)
	for i, item := range items {
		if i > 0 {
			result = append(result, sep)
		}
		result = append(result, item)
	}
	return result
}

// renderStatusBar shows the daemon connection and a status summary.
func renderStatusBar(status *ipc.StatusData, lastErr error, width int) string {
	var line string
	if status != nil && lastErr == nil {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("●")
		parts := []string{
			dot + " " + status.Backend,
			fmt.Sprintf("windows:%d", status.Windows),
			fmt.Sprintf("layers:%d", status.Layers),
			fmt.Sprintf("sessions:%d", status.Sessions),
			fmt.Sprintf("updates:%d", status.UpdateCycles),
			"up:" + (time.Duration(status.UptimeSeconds) * time.Second).String(),
		}
		if status.Focused != 0 {
			parts = append(parts, fmt.Sprintf("focus:#%d", status.Focused))
		}
		line = strings.Join(parts, "  ")
	} else {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("●")
		line = dot + " daemon not running"
		if lastErr != nil {
			line += ": " + lastErr.Error()
		}
	}

	style := lipgloss.NewStyle().
		Width(width).
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("250")).
		Padding(0, 1)
	return style.Render(line)
}

// renderHelpBar renders the bottom help/keybinding bar.
func renderHelpBar(width int, message string) string {
	help := "tab/shift-tab: switch tabs  1-3: jump to tab  p: pick point  r: redraw  q/ctrl-c: quit"
	if message != "" {
		help = message + "  |  " + help
	}
	style := lipgloss.NewStyle().
		Width(width).
		Foreground(lipgloss.Color("241")).
		Padding(0, 1)
	return style.Render(help)
}
