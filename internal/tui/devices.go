// SPDX-License-Identifier: MIT

// Package tui holds the terminal views: the endpoint list behind the list
// command and the now-playing view fed by presenter frames.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"nowplaying/internal/audio"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D7D7D"))
)

var (
	quitKey  = key.NewBinding(key.WithKeys("q", "ctrl+c"))
	upKey    = key.NewBinding(key.WithKeys("up", "k"))
	downKey  = key.NewBinding(key.WithKeys("down", "j"))
	enterKey = key.NewBinding(key.WithKeys("enter"))
	backKey  = key.NewBinding(key.WithKeys("esc"))
)

// ScreenType selects the active screen of the device list.
type ScreenType int

const (
	ListScreen ScreenType = iota
	DetailScreen
)

// EndpointsFunc lists the endpoints to display.
type EndpointsFunc func() ([]audio.Endpoint, error)

type endpointsMsg struct {
	endpoints []audio.Endpoint
}

type errMsg struct {
	err error
}

// DeviceListModel lists render and capture endpoints. Enter shows the
// configuration keys an endpoint can fill.
type DeviceListModel struct {
	fetch         EndpointsFunc
	endpoints     []audio.Endpoint
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType
}

// NewDeviceListModel returns a model that lists what fetch returns.
func NewDeviceListModel(fetch EndpointsFunc) DeviceListModel {
	return DeviceListModel{fetch: fetch, activeScreen: ListScreen}
}

func (m DeviceListModel) Init() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		eps, err := fetch()
		if err != nil {
			return errMsg{err}
		}
		return endpointsMsg{eps}
	}
}

func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.refresh()

	case endpointsMsg:
		m.endpoints = msg.endpoints
		m.selectedIndex = 0
		m.refresh()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, quitKey) {
			return m, tea.Quit
		}
		switch m.activeScreen {
		case ListScreen:
			switch {
			case key.Matches(msg, upKey):
				if m.selectedIndex > 0 {
					m.selectedIndex--
				}
			case key.Matches(msg, downKey):
				if m.selectedIndex < len(m.endpoints)-1 {
					m.selectedIndex++
				}
			case key.Matches(msg, enterKey):
				if len(m.endpoints) > 0 {
					m.activeScreen = DetailScreen
				}
			}
		case DetailScreen:
			if key.Matches(msg, backKey) {
				m.activeScreen = ListScreen
			}
		}
		m.refresh()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *DeviceListModel) refresh() {
	if !m.ready {
		return
	}
	if m.activeScreen == DetailScreen {
		m.viewport.SetContent(m.renderDetail())
	} else {
		m.viewport.SetContent(m.renderEndpoints())
	}
}

func (m DeviceListModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}
	if !m.ready {
		return "Initializing..."
	}

	var title, help string
	if m.activeScreen == ListScreen {
		title = titleStyle.Render("Audio Endpoints")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Details • q: Quit")
	} else {
		title = titleStyle.Render("Endpoint Details")
		help = infoStyle.Render("Esc: Back • q: Quit")
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m DeviceListModel) renderEndpoints() string {
	if len(m.endpoints) == 0 {
		return "No audio endpoints found."
	}
	var sb strings.Builder
	for i, ep := range m.endpoints {
		line := fmt.Sprintf("[%s] %s\n", ep.Direction, ep.DisplayName)
		line += dimStyle.Render(fmt.Sprintf("    %s", ep.ID)) + "\n"
		if i == m.selectedIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// configKeys names the configuration entries an endpoint can fill.
func configKeys(ep audio.Endpoint) []string {
	if ep.Direction == audio.Capture {
		return []string{"devices.cable_mic"}
	}
	return []string{"devices.cable_speakers", "devices.listen_output"}
}

func (m DeviceListModel) renderDetail() string {
	ep := m.endpoints[m.selectedIndex]
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n\n", highlightStyle.Render(ep.DisplayName))
	fmt.Fprintf(&sb, "  Direction:   %s\n", ep.Direction)
	fmt.Fprintf(&sb, "  ID:          %s\n", ep.ID)
	if ep.DefaultSampleRate > 0 {
		fmt.Fprintf(&sb, "  Sample rate: %.0f Hz\n", ep.DefaultSampleRate)
	}
	if ep.Channels > 0 {
		fmt.Fprintf(&sb, "  Channels:    %d\n", ep.Channels)
	}
	sb.WriteString("\nUse a fragment of the name in:\n")
	for _, k := range configKeys(ep) {
		fmt.Fprintf(&sb, "  %s: %q\n", k, ep.DisplayName)
	}
	return sb.String()
}

// RunDeviceList runs the device list full-screen until the user quits.
func RunDeviceList(fetch EndpointsFunc) error {
	_, err := tea.NewProgram(NewDeviceListModel(fetch), tea.WithAltScreen()).Run()
	return err
}
