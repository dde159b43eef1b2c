package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/archdiagram/pkg/model"
	"github.com/matzehuels/archdiagram/pkg/project"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// perspectiveRow summarizes one perspective of a document.
type perspectiveRow struct {
	Name      string `json:"name"`
	Relations int    `json:"relations"`
	Edges     int    `json:"edges"`
	Dropped   int    `json:"dropped"`
}

// perspectiveRows projects every perspective of m to count its edges and
// dropped relations.
func perspectiveRows(m *model.ArchitectureModel, logger *log.Logger) []perspectiveRow {
	rows := make([]perspectiveRow, 0, len(m.Perspectives))
	for _, p := range m.Perspectives {
		res := project.Project(m, project.Options{Perspective: p.Name, Strict: true, Logger: logger})
		rows = append(rows, perspectiveRow{
			Name:      p.Name,
			Relations: len(p.Relations),
			Edges:     len(res.Graph.Edges),
			Dropped:   len(res.Dropped),
		})
	}
	return rows
}

// =============================================================================
// PerspectiveListModel - Interactive perspective selection
// =============================================================================

// PerspectiveListModel is the bubbletea model for interactive perspective
// selection.
type PerspectiveListModel struct {
	Rows     []perspectiveRow
	Cursor   int
	Selected *perspectiveRow
	Height   int
	Offset   int
}

// NewPerspectiveListModel creates a new perspective list model.
func NewPerspectiveListModel(rows []perspectiveRow) PerspectiveListModel {
	return PerspectiveListModel{Rows: rows, Height: 15}
}

func (m PerspectiveListModel) Init() tea.Cmd {
	return nil
}

func (m PerspectiveListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
			if m.Cursor < len(m.Rows)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			if len(m.Rows) == 0 {
				return m, tea.Quit
			}
			row := m.Rows[m.Cursor]
			m.Selected = &row
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
	}
	return m, nil
}

func (m PerspectiveListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Perspective"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Rows))
	for i := m.Offset; i < end; i++ {
		r := m.Rows[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		detail := fmt.Sprintf("%d edges", r.Edges)
		if r.Dropped > 0 {
			detail += fmt.Sprintf(", %d dropped", r.Dropped)
		}
		line := fmt.Sprintf("%s%-30s  %s", cursor, r.Name, listDimStyle.Render(detail))
		if i == m.Cursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else {
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Rows))))
	return b.String()
}

// pickPerspective lets the user choose a perspective of m on the terminal.
// A document without perspectives needs no choice and yields "".
func pickPerspective(m *model.ArchitectureModel) (string, error) {
	if len(m.Perspectives) == 0 {
		return "", nil
	}
	quiet := log.New(os.Stderr)
	quiet.SetLevel(log.ErrorLevel)

	p := tea.NewProgram(NewPerspectiveListModel(perspectiveRows(m, quiet)), tea.WithOutput(os.Stderr))
	final, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("perspective picker: %w", err)
	}
	sel := final.(PerspectiveListModel).Selected
	if sel == nil {
		return "", fmt.Errorf("no perspective selected")
	}
	return sel.Name, nil
}

// =============================================================================
// Perspective Table
// =============================================================================

// perspectiveTable renders rows as a bordered table.
func perspectiveTable(rows []perspectiveRow) string {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	cells := make([][]string, len(rows))
	for i, r := range rows {
		dropped := "-"
		if r.Dropped > 0 {
			dropped = strconv.Itoa(r.Dropped)
		}
		cells[i] = []string{strconv.Itoa(i + 1), r.Name, strconv.Itoa(r.Relations), strconv.Itoa(r.Edges), dropped}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("#", "Perspective", "Relations", "Edges", "Dropped").
		Rows(cells...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			base := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case col == 0:
				return base.Foreground(colorDim)
			case col == 4 && row < len(rows) && rows[row].Dropped > 0:
				return base.Foreground(colorYellow)
			case row == 0 && col == 1:
				return base.Foreground(colorGreen).Bold(true)
			}
			return base
		})
	return t.Render()
}
