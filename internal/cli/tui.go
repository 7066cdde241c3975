package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/knotview/pkg/scene"
)

// List styles
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
	listErrStyle = lipgloss.NewStyle().Foreground(colorRed)
)

// =============================================================================
// KnotListModel - Interactive knot visibility browser
// =============================================================================

// knotScene is the part of a scene the browser drives.
type knotScene interface {
	Knots() ([]scene.KnotStatus, error)
	ToggleKnot(id string, value *bool) error
	FrameID() string
}

// KnotListModel is the bubbletea model for browsing and toggling knots.
type KnotListModel struct {
	Scene  knotScene
	Knots  []scene.KnotStatus
	Cursor int
	Height int
	Offset int
	Err    error
}

// NewKnotListModel creates a knot list model over s.
func NewKnotListModel(s knotScene) KnotListModel {
	m := KnotListModel{Scene: s, Height: 15}
	m.Knots, m.Err = s.Knots()
	return m
}

func (m KnotListModel) Init() tea.Cmd {
	return nil
}

func (m KnotListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Knots)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case " ", "enter":
			if len(m.Knots) == 0 {
				return m, nil
			}
			m.Err = m.Scene.ToggleKnot(m.Knots[m.Cursor].ID, nil)
			if m.Err == nil {
				m.Knots, m.Err = m.Scene.Knots()
			}
		case "a", "n":
			visible := msg.String() == "a"
			for _, k := range m.Knots {
				if m.Err = m.Scene.ToggleKnot(k.ID, &visible); m.Err != nil {
					break
				}
			}
			if m.Err == nil {
				m.Knots, m.Err = m.Scene.Knots()
			}
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 8
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m KnotListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Knots"))
	b.WriteString(listDimStyle.Render("  frame " + shortID(m.Scene.FrameID())))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ␣ toggle  a all  n none  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Knots))

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		k := m.Knots[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		visible := "✓"
		if !k.Visible {
			visible = ""
		}
		join := "-"
		switch {
		case k.Pending:
			join = "pending"
		case k.Joined:
			join = "joined"
		}
		group := k.Group
		if group == "" {
			group = "-"
		}
		rows = append(rows, []string{cursor, k.ID, knotSource(k), visible, join, group})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Knot", "Layer", "Visible", "Join", "Group").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}

			idx := m.Offset + row
			if idx >= len(m.Knots) {
				return lipgloss.NewStyle()
			}
			k := m.Knots[idx]
			base := lipgloss.NewStyle()
			if col == 4 && k.Pending {
				base = base.Foreground(colorYellow)
			}
			if idx == m.Cursor {
				base = base.Bold(true)
			}
			if k.Visible {
				if col == 1 || col == 3 {
					return base.Foreground(colorGreen)
				}
				return base
			}
			return base.Foreground(colorDim)
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", min(m.Cursor+1, len(m.Knots)), len(m.Knots))))
	if m.Err != nil {
		b.WriteString("\n")
		b.WriteString(listErrStyle.Render(iconError + " " + m.Err.Error()))
	}

	return b.String()
}

// =============================================================================
// Helpers
// =============================================================================

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
