package tui

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/1broseidon/layerd/internal/scene"
)

// Pick asks for a screen point and reports the layers under it.
type Pick struct {
	form *huh.Form

	// Form-bound values (strings for huh, converted on submit)
	fX string
	fY string

	point image.Point
	set   bool
}

// editing reports whether the form is capturing input.
func (p Pick) editing() bool { return p.form != nil }

func parseCoord(s string, lo, hi int) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("must be a whole number")
	}
	if v < lo || v >= hi {
		return 0, fmt.Errorf("must be in [%d, %d)", lo, hi)
	}
	return v, nil
}

func (p *Pick) start(screen image.Rectangle, width int) tea.Cmd {
	if p.set {
		p.fX, p.fY = strconv.Itoa(p.point.X), strconv.Itoa(p.point.Y)
	} else {
		c := screen.Min.Add(screen.Size().Div(2))
		p.fX, p.fY = strconv.Itoa(c.X), strconv.Itoa(c.Y)
	}

	w := width - 4
	if w < 30 {
		w = 30
	}
	p.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("x").
				Title("X").
				Description(fmt.Sprintf("Screen column, %d to %d", screen.Min.X, screen.Max.X-1)).
				Validate(func(s string) error {
					_, err := parseCoord(s, screen.Min.X, screen.Max.X)
					return err
				}).
				Value(&p.fX),
			huh.NewInput().
				Key("y").
				Title("Y").
				Description(fmt.Sprintf("Screen row, %d to %d", screen.Min.Y, screen.Max.Y-1)).
				Validate(func(s string) error {
					_, err := parseCoord(s, screen.Min.Y, screen.Max.Y)
					return err
				}).
				Value(&p.fY),
		),
	).WithWidth(w).WithShowHelp(true).WithShowErrors(true)
	return p.form.Init()
}

func (p Pick) update(msg tea.Msg) (Pick, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok && km.String() == "esc" {
		p.form = nil
		return p, nil
	}

	form, cmd := p.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		p.form = f
	}

	switch p.form.State {
	case huh.StateCompleted:
		x, errX := strconv.Atoi(strings.TrimSpace(p.fX))
		y, errY := strconv.Atoi(strings.TrimSpace(p.fY))
		if errX == nil && errY == nil {
			p.point = image.Pt(x, y)
			p.set = true
		}
		p.form = nil
		return p, nil
	case huh.StateAborted:
		p.form = nil
		return p, nil
	}
	return p, cmd
}

// describe lists the hit path under the picked point, front-most last.
func (p Pick) describe(tree *scene.NodeInfo) []string {
	if !p.set {
		return nil
	}
	header := fmt.Sprintf("pick %d,%d:", p.point.X, p.point.Y)
	if tree == nil {
		return []string{header + " no tree"}
	}
	path := tree.LayerAt(p.point)
	if len(path) == 0 {
		return []string{header + " uncovered"}
	}
	lines := []string{header}
	for depth, n := range path {
		lines = append(lines, fmt.Sprintf("%s%s #%d %s", strings.Repeat("  ", depth+1), n.Name, n.ID, n.Phase))
	}
	return lines
}
