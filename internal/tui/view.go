package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View renders the table, the open form and the notification lines.
func (m Model[T]) View() string {
	var b strings.Builder

	title := titleStyle.Render(m.opts.Title)
	if m.window != "" {
		title += "  " + subtitleStyle.Render(m.window)
	}
	b.WriteString(title + "\n\n")
	b.WriteString(m.renderTable())

	if m.opts.Summary != nil {
		b.WriteString("\n" + statusStyle.Render(m.opts.Summary(m.sheet.Rows())) + "\n")
	}

	switch m.mode {
	case modeEdit, modeCreate:
		b.WriteString("\n" + m.renderForm() + "\n")
	case modeConfirmDelete:
		b.WriteString("\n" + errorStyle.Render("Delete the selected row? (y/n)") + "\n")
	}

	b.WriteString("\n")
	if m.errorLine != "" {
		b.WriteString(errorStyle.Render(m.errorLine) + "\n")
	} else if m.statusLine != "" {
		b.WriteString(statusStyle.Render(m.statusLine) + "\n")
	}
	b.WriteString(helpStyle.Render(m.help()))
	return b.String()
}

func (m Model[T]) renderTable() string {
	rows := m.sheet.Rows()
	cols := m.sheet.Columns()
	if len(rows) == 0 {
		if m.loading {
			return statusStyle.Render("Loading...") + "\n"
		}
		return statusStyle.Render("No rows. Press a to add one.") + "\n"
	}

	widths := make([]int, len(cols))
	cells := make([][]string, len(rows))
	for i, c := range cols {
		widths[i] = lipgloss.Width(c.Title)
	}
	for r, row := range rows {
		cells[r] = make([]string, len(cols))
		for i, c := range cols {
			cell := c.Cell(row)
			cells[r][i] = cell
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = pad(c.Title, widths[i])
	}
	b.WriteString("  " + headerStyle.Render(strings.Join(header, "  ")) + "\n")

	var health func(T) Health
	if m.opts.Classify != nil {
		health = m.opts.Classify(rows)
	}
	session := m.sheet.Session()
	for r, row := range rows {
		line := make([]string, len(cols))
		for i := range cols {
			line[i] = pad(cells[r][i], widths[i])
		}
		text := strings.Join(line, "  ")
		if m.width > 0 && lipgloss.Width(text)+2 > m.width {
			text = truncate(text, m.width-2)
		}

		style := lipgloss.NewStyle()
		if health != nil {
			switch health(row) {
			case HealthMeets:
				style = meetsStyle
			case HealthUnder:
				style = underStyle
			}
		}
		if r == m.selected {
			style = style.Inherit(selectedStyle)
		}

		marker := "  "
		if session.IsEditing(row.Key()) {
			marker = "* "
		}
		b.WriteString(marker + style.Render(text) + "\n")
	}
	return b.String()
}

func (m Model[T]) renderForm() string {
	var b strings.Builder
	heading := "Edit row"
	if m.mode == modeCreate {
		heading = "New row"
	}
	b.WriteString(titleStyle.Render(heading) + "\n")
	for i, c := range m.formCols {
		b.WriteString(labelStyle.Render(c.Title) + m.form[i].View())
		if msg, ok := m.fieldErrors[c.Field]; ok {
			b.WriteString("  " + errorStyle.Render(msg))
		}
		b.WriteString("\n")
	}
	if m.busy() {
		b.WriteString(statusStyle.Render("Saving..."))
	}
	return formStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model[T]) help() string {
	switch m.mode {
	case modeEdit, modeCreate:
		return "tab/shift+tab field • enter save • esc cancel"
	case modeConfirmDelete:
		return "y confirm • n cancel"
	}
	h := "j/k move • e edit • a add • d delete • r reload"
	if m.opts.Shift != nil {
		h += " • [/] week"
	}
	return h + " • q quit"
}

func pad(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

func truncate(s string, width int) string {
	if width <= 1 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
