package tree

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	ltree "github.com/charmbracelet/lipgloss/tree"
)

var (
	labelStyle       = lipgloss.NewStyle().Bold(true)
	markerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	typeStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	descriptionStyle = lipgloss.NewStyle().Faint(true)
	selectedStyle    = lipgloss.NewStyle().Reverse(true)
)

// NoSelection renders without a highlighted row.
const NoSelection = "-"

// Render writes the projection as a text tree. The row whose pointer equals
// selected is highlighted.
func Render(w io.Writer, root *Node, selected string) error {
	t := ltree.Root(row(root, selected))
	addChildren(t, root, selected)
	_, err := fmt.Fprintln(w, t.String())
	return err
}

func addChildren(t *ltree.Tree, n *Node, selected string) {
	for _, c := range n.Children {
		if len(c.Children) == 0 {
			t.Child(row(c, selected))
			continue
		}
		sub := ltree.Root(row(c, selected))
		addChildren(sub, c, selected)
		t.Child(sub)
	}
}

func row(n *Node, selected string) string {
	var b strings.Builder
	b.WriteString(labelStyle.Render(n.Label))
	if n.Marker != "" {
		b.WriteString(" ")
		b.WriteString(markerStyle.Render(n.Marker))
	}
	if n.TypeLabel != "" {
		b.WriteString(" ")
		b.WriteString(typeStyle.Render(n.TypeLabel))
	}
	if n.Description != "" {
		b.WriteString(" ")
		b.WriteString(descriptionStyle.Render(n.Description))
	}
	if n.Pointer == normalize(selected) && selected != NoSelection {
		return selectedStyle.Render(b.String())
	}
	return b.String()
}
