// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"nowplaying/internal/presenter"
	"nowplaying/internal/transport"
)

const (
	defaultBarWidth = 40
	levelBlocks     = " ▁▂▃▄▅▆▇█"
)

var (
	fallbackStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C9A227"))
	progressFill  = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
)

// FrameMsg delivers a presenter frame to the now-playing model.
type FrameMsg presenter.Frame

// NowPlayingModel shows the most recent frame.
type NowPlayingModel struct {
	frame presenter.Frame
	have  bool
	width int
}

func (m NowPlayingModel) Init() tea.Cmd { return nil }

func (m NowPlayingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case FrameMsg:
		m.frame = presenter.Frame(msg)
		m.have = true
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		if key := msg.String(); key == "q" || key == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m NowPlayingModel) View() string {
	if !m.have {
		return "Waiting for the media session..."
	}
	f := m.frame
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Now Playing"))
	sb.WriteString("\n\n")
	for _, line := range f.TitleLines {
		sb.WriteString(highlightStyle.Render(line))
		sb.WriteByte('\n')
	}
	artists := f.Artists
	if f.MetadataFallback {
		artists = fallbackStyle.Render(artists)
	}
	sb.WriteString(infoStyle.Render(artists))
	sb.WriteString("\n\n")

	barWidth := defaultBarWidth
	if m.width > 0 {
		barWidth = max(10, min(barWidth, m.width-len(f.Elapsed)-len(f.Duration)-4))
	}
	fmt.Fprintf(&sb, "%s %s %s  %s\n", f.Elapsed, ProgressBar(f.Progress, barWidth), f.Duration, dimStyle.Render(f.Status))

	if len(f.Levels) > 0 {
		sb.WriteString("\n")
		sb.WriteString(LevelMeter(f.Levels))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render("q: Quit"))
	return sb.String()
}

// ProgressBar renders ratio in [0, 1] as a bar of width cells.
func ProgressBar(ratio float64, width int) string {
	ratio = max(0, min(1, ratio))
	filled := int(ratio*float64(width) + 0.5)
	return progressFill.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", width-filled))
}

// LevelMeter renders one block character per level in [0, 1].
func LevelMeter(levels []float64) string {
	blocks := []rune(levelBlocks)
	top := len(blocks) - 1
	out := make([]rune, len(levels))
	for i, l := range levels {
		l = max(0, min(1, l))
		out[i] = blocks[int(l*float64(top)+0.5)]
	}
	return string(out)
}

// NowPlayingView runs the now-playing model and accepts frames as a
// transport.
type NowPlayingView struct {
	program *tea.Program
	once    sync.Once
	done    chan struct{}
	err     error
}

// NewNowPlayingView starts the program on the terminal.
func NewNowPlayingView(opts ...tea.ProgramOption) *NowPlayingView {
	v := &NowPlayingView{
		program: tea.NewProgram(NowPlayingModel{}, opts...),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(v.done)
		_, v.err = v.program.Run()
	}()
	return v
}

// Done is closed when the program exits, including when the user quits.
func (v *NowPlayingView) Done() <-chan struct{} { return v.done }

// Send forwards presenter frames to the program; other values are ignored.
func (v *NowPlayingView) Send(data any) error {
	select {
	case <-v.done:
		return transport.ErrClosed
	default:
	}
	if f, ok := data.(presenter.Frame); ok {
		v.program.Send(FrameMsg(f))
	}
	return nil
}

// Close quits the program and waits for it to restore the terminal.
func (v *NowPlayingView) Close() error {
	v.once.Do(v.program.Quit)
	<-v.done
	return v.err
}

var _ transport.Transport = (*NowPlayingView)(nil)
