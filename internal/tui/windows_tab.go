package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/layerd/internal/ipc"
)

// windowItem implements list.Item for the window list.
type windowItem struct {
	data ipc.WindowData
}

func (i windowItem) Title() string {
	prefix := "  "
	if i.data.Focused {
		prefix = "* "
	}
	title := i.data.Title
	if title == "" {
		title = "(untitled)"
	}
	return fmt.Sprintf("%s#%d %s", prefix, i.data.Window, title)
}

func (i windowItem) Description() string {
	f := i.data.Frame
	var flags []string
	if i.data.Hidden {
		flags = append(flags, "hidden")
	}
	if i.data.Zoomed {
		flags = append(flags, "zoomed")
	}
	if i.data.Pending {
		flags = append(flags, "move pending")
	}
	if i.data.State != "" {
		flags = append(flags, i.data.State)
	}
	desc := fmt.Sprintf("%dx%d+%d+%d", f.Width, f.Height, f.X, f.Y)
	if len(flags) > 0 {
		desc += "  " + strings.Join(flags, ", ")
	}
	return desc
}

func (i windowItem) FilterValue() string { return i.data.Title }

// WindowsTab lists managed windows with their frames and border state.
type WindowsTab struct {
	list   list.Model
	width  int
	height int
}

// NewWindowsTab creates an empty WindowsTab.
func NewWindowsTab() WindowsTab {
	delegate := list.NewDefaultDelegate()
	delegate.SetSpacing(0)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Windows"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	return WindowsTab{list: l}
}

func buildWindowItems(status *ipc.StatusData) []list.Item {
	if status == nil {
		return nil
	}
	items := make([]list.Item, 0, len(status.List))
	for _, w := range status.List {
		items = append(items, windowItem{data: w})
	}
	return items
}

// SetStatus replaces the listed windows, keeping the cursor where it was.
func (wt *WindowsTab) SetStatus(status *ipc.StatusData) tea.Cmd {
	return wt.list.SetItems(buildWindowItems(status))
}

// Update implements tea.Model.
func (wt WindowsTab) Update(msg tea.Msg) (WindowsTab, tea.Cmd) {
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		wt.width = msg.Width
		wt.height = msg.Height
		wt.list.SetSize(msg.Width, msg.Height)
		return wt, nil
	}
	var cmd tea.Cmd
	wt.list, cmd = wt.list.Update(msg)
	return wt, cmd
}

// View implements tea.Model.
func (wt WindowsTab) View() string {
	if wt.width == 0 || wt.height == 0 {
		return ""
	}
	if len(wt.list.Items()) == 0 {
		return lipgloss.NewStyle().
			Width(wt.width).
			Height(wt.height).
			Foreground(lipgloss.Color("241")).
			Align(lipgloss.Center, lipgloss.Center).
			Render("no windows")
	}
	return wt.list.View()
}
