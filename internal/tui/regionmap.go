package tui

import (
	"fmt"
	"image"
	"strings"

	"github.com/1broseidon/layerd/internal/scene"
)

const (
	cellUncovered = ' '
	cellRoot      = '·'
	cellPending   = '#'
)

// windowLabel returns the letter for the i-th top-level window: lower case
// for its border, upper case for anything inside it.
func windowLabel(i int, inside bool) rune {
	r := rune('a' + i%26)
	if inside {
		r -= 'a' - 'A'
	}
	return r
}

// renderRegionMap samples the tree at the centre of each cell and draws
// which layer owns that pixel. Cells waiting to be repainted show '#'.
func renderRegionMap(tree *scene.NodeInfo, screen image.Rectangle, width, height int) []string {
	if width < 1 || height < 1 {
		return nil
	}
	if tree == nil || screen.Empty() {
		return emptyCanvas(width, height)
	}

	index := make(map[uint64]int, len(tree.Children))
	for i := range tree.Children {
		index[tree.Children[i].ID] = i
	}
	var pending []image.Rectangle
	collectPending(tree, &pending)

	lines := make([]string, height)
	row := make([]rune, width)
	for y := 0; y < height; y++ {
		py := screen.Min.Y + (2*y+1)*screen.Dy()/(2*height)
		for x := 0; x < width; x++ {
			px := screen.Min.X + (2*x+1)*screen.Dx()/(2*width)
			row[x] = cellAt(tree, index, pending, image.Pt(px, py))
		}
		lines[y] = string(row)
	}
	return lines
}

func cellAt(tree *scene.NodeInfo, index map[uint64]int, pending []image.Rectangle, pt image.Point) rune {
	for _, r := range pending {
		if pt.In(r) {
			return cellPending
		}
	}
	path := tree.LayerAt(pt)
	switch len(path) {
	case 0:
		return cellUncovered
	case 1:
		return cellRoot
	}
	return windowLabel(index[path[1].ID], len(path) > 2)
}

func collectPending(n *scene.NodeInfo, acc *[]image.Rectangle) {
	if n.Hidden {
		return
	}
	*acc = append(*acc, n.Invalid...)
	for i := range n.Children {
		collectPending(&n.Children[i], acc)
	}
}

// legend lists the letter used for each top-level window.
func legend(tree *scene.NodeInfo) []string {
	if tree == nil {
		return nil
	}
	lines := make([]string, 0, len(tree.Children))
	for i := range tree.Children {
		c := &tree.Children[i]
		state := ""
		if c.Hidden {
			state = " (hidden)"
		} else if c.Phase != scene.Idle.String() {
			state = " (" + c.Phase + ")"
		}
		lines = append(lines, fmt.Sprintf("%c  %s #%d%s", windowLabel(i, false), c.Name, c.ID, state))
	}
	return lines
}

func emptyCanvas(width, height int) []string {
	lines := make([]string, height)
	empty := strings.Repeat(" ", width)
	for i := range lines {
		lines[i] = empty
	}
	return lines
}
