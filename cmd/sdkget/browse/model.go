package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sdkget/sdkget/internal/installer"
	"github.com/sdkget/sdkget/internal/target"
	"github.com/sdkget/sdkget/internal/version"
)

// stage names which list the model is currently displaying.
type stage int

const (
	stageVersions stage = iota
	stageModules
)

// model is the Bubble Tea model driving the interactive browser: a
// two-stage picker (versions, then modules for the chosen version) that
// exits by printing the equivalent install-qt command line.
type model struct {
	ctx context.Context
	f   *installer.Facade
	key target.Key

	stage stage
	cur   int

	versions []version.Version
	chosen   version.Version

	modules      []string
	selectedMods map[int]bool

	err             error
	selectedCommand string
}

func newModel(ctx context.Context, f *installer.Facade, key target.Key) *model {
	return &model{ctx: ctx, f: f, key: key, stage: stageVersions, selectedMods: make(map[int]bool)}
}

type versionsLoadedMsg struct {
	versions []version.Version
	err      error
}

type modulesLoadedMsg struct {
	modules []string
	err     error
}

func (m *model) Init() tea.Cmd {
	return m.loadVersions
}

func (m *model) loadVersions() tea.Msg {
	versions, err := m.f.ListVersions(m.ctx, m.key)
	return versionsLoadedMsg{versions: versions, err: err}
}

func (m *model) loadModules() tea.Msg {
	modules, err := m.f.ListModules(m.ctx, m.key, m.chosen)
	return modulesLoadedMsg{modules: modules, err: err}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case versionsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.versions = msg.versions
		m.cur = 0
		return m, nil

	case modulesLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.modules = msg.modules
		m.cur = 0
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.cur > 0 {
				m.cur--
			}
		case "down", "j":
			if m.cur < m.listLen()-1 {
				m.cur++
			}
		case " ":
			if m.stage == stageModules {
				m.selectedMods[m.cur] = !m.selectedMods[m.cur]
			}
		case "enter":
			return m.handleEnter()
		case "backspace":
			if m.stage == stageModules {
				m.stage = stageVersions
				m.cur = 0
			}
		}
	}
	return m, nil
}

func (m *model) listLen() int {
	if m.stage == stageVersions {
		return len(m.versions)
	}
	return len(m.modules)
}

func (m *model) handleEnter() (tea.Model, tea.Cmd) {
	switch m.stage {
	case stageVersions:
		if len(m.versions) == 0 {
			return m, nil
		}
		m.chosen = m.versions[m.cur]
		m.stage = stageModules
		m.cur = 0
		return m, m.loadModules
	case stageModules:
		m.selectedCommand = m.renderCommand()
		return m, tea.Quit
	}
	return m, nil
}

// renderCommand builds the install-qt invocation equivalent to the current
// selection, for the user to copy into a script.
func (m *model) renderCommand() string {
	var mods []string
	for i, name := range m.modules {
		if m.selectedMods[i] {
			mods = append(mods, name)
		}
	}
	cmd := fmt.Sprintf("sdkget install-qt %s --host %s --target %s --arch %s",
		m.chosen.String(), m.key.Host, m.key.Kind, m.key.Arch)
	if len(mods) > 0 {
		cmd += " --modules " + strings.Join(mods, ",")
	}
	return cmd
}

var (
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func (m *model) View() string {
	if m.err != nil {
		return fmt.Sprintf("error: %v\n", m.err)
	}

	var b strings.Builder
	switch m.stage {
	case stageVersions:
		b.WriteString(headerStyle.Render(fmt.Sprintf("Versions for %s %s %s", m.key.Host, m.key.Kind, m.key.Arch)))
		b.WriteString("\n\n")
		for i, v := range m.versions {
			b.WriteString(m.renderRow(i, v.String(), false))
		}
		b.WriteString("\n" + dimStyle.Render("up/down move, enter select, q quit"))
	case stageModules:
		b.WriteString(headerStyle.Render(fmt.Sprintf("Modules for %s", m.chosen.String())))
		b.WriteString("\n\n")
		for i, name := range m.modules {
			b.WriteString(m.renderRow(i, name, m.selectedMods[i]))
		}
		b.WriteString("\n" + dimStyle.Render("up/down move, space toggle, enter confirm, backspace back, q quit"))
	}
	return b.String()
}

func (m *model) renderRow(i int, label string, selected bool) string {
	prefix := "  "
	if i == m.cur {
		prefix = cursorStyle.Render("> ")
	}
	mark := "  "
	if selected {
		mark = selectedStyle.Render("[x]")
	} else if m.stage == stageModules {
		mark = "[ ]"
	}
	return fmt.Sprintf("%s%s %s\n", prefix, mark, label)
}
