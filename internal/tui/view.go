package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor   = lipgloss.Color("#7D56F4")
	secondaryColor = lipgloss.Color("#FF8C00")
	mutedColor     = lipgloss.Color("#626262")
	dangerColor    = lipgloss.Color("#FF6B6B")

	titleStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Italic(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	dialogBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(1, 2).
			Width(70)

	fieldLabel = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Bold(true).
			Width(12)

	errorStyle = lipgloss.NewStyle().
			Foreground(dangerColor)
)

// View renders the list with its header and status bar, or a dialog on top
func (m model) View() string {
	switch m.mode {
	case modeForm:
		return m.place(m.formView())
	case modeConfirmDelete:
		return m.place(m.confirmView())
	}

	title := titleStyle.Render(fmt.Sprintf("Chaussettes v%s", m.version))
	subtitle := subtitleStyle.Render(m.proxyLine())

	help := "a: add • e: edit • d: delete • c: connect • x: disconnect • p: probe • q: quit"
	if m.busy {
		help = "working..."
	}

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		subtitle,
		"",
		m.table.View(),
		"",
		statusStyle.Render(m.status),
		helpStyle.Render(help),
	)

	if m.width > 0 {
		content = lipgloss.Place(m.width, m.height, lipgloss.Left, lipgloss.Top, content)
	}
	return content
}

func (m model) proxyLine() string {
	iface := m.deps.Session.Interface()
	if !m.settings.Enabled {
		return fmt.Sprintf("SOCKS proxy off on %s", iface)
	}
	return fmt.Sprintf("SOCKS proxy %s:%d on %s", m.settings.Server, m.settings.Port, iface)
}

func (m model) formView() string {
	heading := "Add server"
	if m.form.editing {
		heading = "Edit server"
	}

	lines := []string{titleStyle.Render(heading), ""}
	for i, in := range m.form.inputs {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, fieldLabel.Render(fieldLabels[i]), in.View()))
	}
	lines = append(lines, "", helpStyle.Render("key: "+m.form.keyInfo))
	if m.form.err != "" {
		lines = append(lines, errorStyle.Render(m.form.err))
	}
	lines = append(lines, "", helpStyle.Render("tab/↑↓: move • enter: next/save • ctrl+s: save • esc: cancel"))

	return dialogBorder.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m model) confirmView() string {
	name := ""
	if s, ok := m.selected(); ok {
		name = s.DisplayName()
	}

	box := dialogBorder.BorderForeground(dangerColor)
	return box.Render(lipgloss.JoinVertical(
		lipgloss.Center,
		errorStyle.Bold(true).Render("Delete server?"),
		"",
		fmt.Sprintf("%s will be removed from the saved servers.", name),
		"",
		helpStyle.Render("y: delete • n/esc: cancel"),
	))
}

func (m model) place(box string) string {
	if m.width == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// createServerTable builds the empty server table with the purple theme
func createServerTable() table.Model {
	columns := []table.Column{
		{Title: "Alias", Width: 24},
		{Title: "Host", Width: 30},
		{Title: "SOCKS", Width: 7},
		{Title: "Status", Width: 16},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(primaryColor).
		BorderBottom(true).
		Bold(true).
		Foreground(primaryColor)

	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(primaryColor).
		Bold(true)

	t.SetStyles(s)
	return t
}
