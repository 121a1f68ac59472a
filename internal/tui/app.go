package tui

import (
	"fmt"
	"image"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/layerd/internal/ipc"
	"github.com/1broseidon/layerd/internal/scene"
)

// tickMsg asks for the next refresh.
type tickMsg struct{}

// snapshotMsg carries one read of the daemon.
type snapshotMsg struct {
	status *ipc.StatusData
	tree   *scene.NodeInfo
	err    error
}

// redrawMsg reports the outcome of a redraw request.
type redrawMsg struct {
	err error
}

// clearMessageMsg clears the help bar message after a delay.
type clearMessageMsg struct{}

// model is the root bubbletea model for the inspector.
type model struct {
	daemon   Daemon
	interval time.Duration

	activeTab  Tab
	windowsTab WindowsTab
	pick       Pick

	status  *ipc.StatusData
	tree    *scene.NodeInfo
	lastErr error
	message string

	// Terminal dimensions
	width  int
	height int
}

func newModel(daemon Daemon, interval time.Duration) model {
	return model{
		daemon:     daemon,
		interval:   interval,
		activeTab:  TabMap,
		windowsTab: NewWindowsTab(),
	}
}

func (m model) fetch() tea.Cmd {
	daemon := m.daemon
	return func() tea.Msg {
		status, err := daemon.GetStatus()
		if err != nil {
			return snapshotMsg{err: err}
		}
		tree, err := daemon.GetTree()
		if err != nil {
			return snapshotMsg{err: err}
		}
		return snapshotMsg{status: status, tree: tree}
	}
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m model) redraw() tea.Cmd {
	daemon := m.daemon
	return func() tea.Msg {
		return redrawMsg{err: daemon.Redraw()}
	}
}

func (m model) say(text string) (model, tea.Cmd) {
	m.message = text
	return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg { return clearMessageMsg{} })
}

// screen is the output area of the last snapshot.
func (m model) screen() image.Rectangle {
	if m.status != nil && m.status.Screen.Width > 0 {
		return m.status.Screen.Image()
	}
	if m.tree != nil {
		return m.tree.Frame
	}
	return image.Rectangle{}
}

// contentHeight returns the height available for tab content.
func (m model) contentHeight() int {
	// status bar (1) + tab bar (2 with margin) + help bar (1)
	h := m.height - 4
	if h < 1 {
		h = 1
	}
	return h
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return m.fetch()
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.windowsTab, _ = m.windowsTab.Update(tea.WindowSizeMsg{Width: m.width, Height: m.contentHeight()})
		return m, nil

	case tickMsg:
		return m, m.fetch()

	case snapshotMsg:
		m.lastErr = msg.err
		if msg.err == nil {
			m.status = msg.status
			m.tree = msg.tree
		}
		return m, tea.Batch(m.windowsTab.SetStatus(m.status), m.tick())

	case redrawMsg:
		if msg.err != nil {
			return m.say(fmt.Sprintf("redraw failed: %v", msg.err))
		}
		return m.say("redraw requested")

	case clearMessageMsg:
		m.message = ""
		return m, nil
	}

	// The pick form consumes keys while open; only ctrl+c escapes to quit.
	if m.pick.editing() {
		if km, ok := msg.(tea.KeyMsg); ok && km.String() == "ctrl+c" {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.pick, cmd = m.pick.update(msg)
		return m, cmd
	}

	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case "shift+tab":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
			return m, nil
		case "1":
			m.activeTab = TabMap
			return m, nil
		case "2":
			m.activeTab = TabWindows
			return m, nil
		case "3":
			m.activeTab = TabLayers
			return m, nil
		case "r":
			return m, m.redraw()
		case "p":
			screen := m.screen()
			if screen.Empty() {
				return m.say("no snapshot yet")
			}
			return m, m.pick.start(screen, m.width)
		}
	}

	if m.activeTab == TabWindows {
		var cmd tea.Cmd
		m.windowsTab, cmd = m.windowsTab.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	statusBar := renderStatusBar(m.status, m.lastErr, m.width)
	tabBar := renderTabBar(m.activeTab, m.width)
	helpBar := renderHelpBar(m.width, m.message)

	usedHeight := lipgloss.Height(statusBar) + lipgloss.Height(tabBar) + lipgloss.Height(helpBar)
	contentHeight := m.height - usedHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	var content string
	switch {
	case m.pick.editing():
		content = m.pick.form.View()
	case m.activeTab == TabMap:
		content = m.viewMap(contentHeight)
	case m.activeTab == TabWindows:
		content = m.windowsTab.View()
	case m.activeTab == TabLayers:
		content = m.viewLayers(contentHeight)
	}
	content = lipgloss.NewStyle().Width(m.width).Height(contentHeight).MaxHeight(contentHeight).Render(content)

	return lipgloss.JoinVertical(lipgloss.Left,
		statusBar,
		tabBar,
		content,
		helpBar,
	)
}

func (m model) sidebarWidth() int {
	// Sidebar takes ~30% of width, min 20, max 40
	sw := m.width * 30 / 100
	if sw < 20 {
		sw = 20
	}
	if sw > 40 {
		sw = 40
	}
	return sw
}

func (m model) viewMap(height int) string {
	sidebarWidth := m.sidebarWidth()
	mapWidth := m.width - sidebarWidth - 3
	if mapWidth < 10 {
		mapWidth = 10
	}

	lines := renderRegionMap(m.tree, m.screen(), mapWidth, height)
	regionMap := lipgloss.NewStyle().
		Foreground(lipgloss.Color("247")).
		Render(strings.Join(lines, "\n"))

	side := legend(m.tree)
	if cov := m.coverageLine(); cov != "" {
		side = append(side, "", cov)
	}
	if pick := m.pick.describe(m.tree); len(pick) > 0 {
		side = append(side, "")
		side = append(side, pick...)
	}
	sidebar := lipgloss.NewStyle().
		Width(sidebarWidth).
		Foreground(lipgloss.Color("250")).
		Render(strings.Join(side, "\n"))

	sep := lipgloss.NewStyle().
		Foreground(lipgloss.Color("238")).
		Render(strings.TrimSuffix(strings.Repeat("│\n", height), "\n"))

	return lipgloss.JoinHorizontal(lipgloss.Top, regionMap, " "+sep+" ", sidebar)
}

func (m model) coverageLine() string {
	if m.tree == nil {
		return ""
	}
	cov := m.tree.Coverage()
	screen := m.screen()
	uncovered := screen.Dx()*screen.Dy() - cov.Painted
	if uncovered < 0 {
		uncovered = 0
	}
	return fmt.Sprintf("painted %d  overdraw %d\nuncovered %d  pending %d", cov.Painted, cov.Overdraw, uncovered, cov.Pending)
}

func (m model) viewLayers(height int) string {
	if m.tree == nil {
		return ""
	}
	lines := layerLines(m.tree, 0, nil)
	if len(lines) > height {
		lines = append(lines[:height-1], fmt.Sprintf("… %d more", len(lines)-height+1))
	}
	return strings.Join(lines, "\n")
}

// layerLines renders the tree one layer per line, indented by depth.
func layerLines(n *scene.NodeInfo, depth int, acc []string) []string {
	var attrs []string
	if n.Flags != "" {
		attrs = append(attrs, n.Flags)
	}
	if n.Hidden {
		attrs = append(attrs, "hidden")
	}
	if n.Phase != scene.Idle.String() {
		attrs = append(attrs, n.Phase)
	}
	f := n.Frame
	line := fmt.Sprintf("%s%s #%d  %dx%d+%d+%d", strings.Repeat("  ", depth), n.Name, n.ID, f.Dx(), f.Dy(), f.Min.X, f.Min.Y)
	if len(attrs) > 0 {
		line += "  [" + strings.Join(attrs, ", ") + "]"
	}
	acc = append(acc, line)
	for i := range n.Children {
		acc = layerLines(&n.Children[i], depth+1, acc)
	}
	return acc
}
