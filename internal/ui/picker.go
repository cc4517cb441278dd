package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/claudekit/claudekit/internal/sessions"
)

// ErrPickerAborted is returned when the user dismisses the picker
// without choosing a session.
var ErrPickerAborted = fmt.Errorf("no session selected")

type pickerItem struct {
	entry sessions.ListEntry
}

func (i pickerItem) Title() string {
	if i.entry.Name != "" {
		return i.entry.Name
	}
	return fmt.Sprintf("session %d", i.entry.Index)
}

func (i pickerItem) Description() string {
	desc := i.entry.Description
	if i.entry.Name != "" && desc != "" {
		return desc
	}
	if desc == "" {
		return "(no description)"
	}
	return desc
}

func (i pickerItem) FilterValue() string {
	return i.entry.Name + " " + i.entry.Description
}

type pickerModel struct {
	list   list.Model
	choice *sessions.ListEntry
}

func newPickerModel(entries []sessions.ListEntry) pickerModel {
	items := make([]list.Item, len(entries))
	for i, entry := range entries {
		items[i] = pickerItem{entry: entry}
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("205")).
		BorderLeftForeground(lipgloss.Color("205"))
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.Color("244")).
		BorderLeftForeground(lipgloss.Color("205"))

	l := list.New(items, delegate, 0, 0)
	l.Title = "Select a session"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle

	return pickerModel{list: l}
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "enter":
			if item, ok := m.list.SelectedItem().(pickerItem); ok {
				entry := item.entry
				m.choice = &entry
			}
			return m, tea.Quit
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m pickerModel) View() string {
	return m.list.View()
}

// PickSession runs an interactive picker over the session inventory
// and returns the chosen entry.
func PickSession(entries []sessions.ListEntry) (*sessions.ListEntry, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no sessions to pick from")
	}

	final, err := tea.NewProgram(newPickerModel(entries), tea.WithAltScreen()).Run()
	if err != nil {
		return nil, fmt.Errorf("running session picker: %w", err)
	}

	m, ok := final.(pickerModel)
	if !ok || m.choice == nil {
		return nil, ErrPickerAborted
	}
	return m.choice, nil
}
