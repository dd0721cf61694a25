package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/comment-bridge/comment"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	tagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateList modelState = iota
	stateFilter
	stateDetail
)

type interactiveModel struct {
	err      error
	res      *result
	comment  *comment.ParsedComment
	filter   textinput.Model
	opts     options
	visible  []int // indices into comment.Spannables
	selected int
	state    modelState
}

type mappedMsg struct {
	err error
	res *result
}

func newInteractiveModel(opts options, c *comment.ParsedComment) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "tag, e.g. quote"
	ti.Prompt = "filter: "
	ti.Width = 30

	m := &interactiveModel{
		comment: c,
		filter:  ti,
		opts:    opts,
		state:   stateList,
	}
	m.applyFilter()
	return m
}

func runInteractive(ctx context.Context, opts options, c *comment.ParsedComment) error {
	m := newInteractiveModel(opts, c)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if m.res != nil {
		m.res.close()
	}
	return err
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.mapComment
}

func (m *interactiveModel) mapComment() tea.Msg {
	res, err := mapInto(context.Background(), m.opts, m.comment)
	return mappedMsg{res: res, err: err}
}

func (m *interactiveModel) applyFilter() {
	q := strings.TrimSpace(m.filter.Value())
	m.visible = m.visible[:0]
	for i, sp := range m.comment.Spannables {
		tag, _ := comment.TagOf(sp.Data)
		if q == "" || strings.Contains(tag.String(), q) {
			m.visible = append(m.visible, i)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = max(len(m.visible)-1, 0)
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateFilter {
			switch msg.String() {
			case "enter", "esc":
				m.filter.Blur()
				m.state = stateList
				return m, nil
			case "ctrl+c":
				return m, tea.Quit
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			m.applyFilter()
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.state == stateList && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateList && m.selected < len(m.visible)-1 {
				m.selected++
			}

		case "/":
			if m.state == stateList {
				m.state = stateFilter
				return m, m.filter.Focus()
			}

		case "enter":
			switch m.state {
			case stateList:
				if len(m.visible) > 0 {
					m.state = stateDetail
				}
			case stateDetail:
				m.state = stateList
			}

		case "esc":
			m.state = stateList
		}

	case mappedMsg:
		m.res = msg.res
		m.err = msg.err
	}

	return m, nil
}

func (m *interactiveModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.res == nil {
		return "Mapping comment..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Comment Map"))
	b.WriteString(" ")
	b.WriteString(m.opts.host)
	b.WriteString("\n\n")

	switch m.state {
	case stateList, stateFilter:
		b.WriteString(resultStyle.Render(m.comment.ParsedText))
		b.WriteString("\n\n")
		if m.state == stateFilter || m.filter.Value() != "" {
			b.WriteString(m.filter.View())
			b.WriteString("\n\n")
		}
		if len(m.visible) == 0 {
			b.WriteString(helpStyle.Render("no spannables"))
			b.WriteString("\n")
		}
		for i, idx := range m.visible {
			line := fmt.Sprintf("[%d] %s", idx, label(m.comment.Spannables[idx]))
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		if m.state == stateFilter {
			b.WriteString(helpStyle.Render("enter apply • esc done"))
		} else {
			b.WriteString(helpStyle.Render("↑/↓ select • enter inspect • / filter • q quit"))
		}

	case stateDetail:
		idx := m.visible[m.selected]
		sp := m.comment.Spannables[idx]
		b.WriteString(fmt.Sprintf("Spannable %d: %s\n\n", idx, tagStyle.Render(label(sp))))
		if idx < len(m.res.elements) {
			b.WriteString(resultStyle.Render(m.res.elements[idx]))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter back • q quit"))
	}

	return b.String()
}
