package ui

import (
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/linuxmatters/jivewave/internal/cli"
	"github.com/linuxmatters/jivewave/internal/config"
)

// terminalFPS caps how often the terminal preview is rebuilt
const terminalFPS = 15

// TerminalSurface turns loop frames into ANSI text. Present is called from the
// loop goroutine and View from the UI, so the rendered text is guarded.
type TerminalSurface struct {
	interval time.Duration

	mu     sync.Mutex
	config PreviewConfig
	last   time.Time
	text   string
	frames int
}

// NewTerminalSurface returns a surface rebuilding its text at most terminalFPS times a second
func NewTerminalSurface(cfg PreviewConfig) *TerminalSurface {
	return &TerminalSurface{interval: time.Second / terminalFPS, config: cfg}
}

// Present implements live.Surface. Frames arriving faster than the terminal
// rate are dropped.
func (s *TerminalSurface) Present(img *image.RGBA) {
	s.mu.Lock()
	now := time.Now()
	if now.Sub(s.last) < s.interval {
		s.mu.Unlock()
		return
	}
	s.last = now
	cfg := s.config
	s.mu.Unlock()

	text := RenderPreview("", DownsampleFrame(img, cfg))

	s.mu.Lock()
	s.text = text
	s.frames++
	s.mu.Unlock()
}

// Resize changes the preview grid used for the next frame
func (s *TerminalSurface) Resize(cfg PreviewConfig) {
	s.mu.Lock()
	s.config = cfg
	s.last = time.Time{}
	s.mu.Unlock()
}

// View returns the latest rendered frame
func (s *TerminalSurface) View() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// Frames returns how many frames have been rendered to text
func (s *TerminalSurface) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Player is the playback side of the live loop the preview controls
type Player interface {
	TogglePause() (bool, error)
	Position() time.Duration
	Paused() bool
	Ended() bool
}

// refreshMsg redraws the preview text
type refreshMsg struct{}

// PreviewModel shows the live preview and maps keys onto settings edits
type PreviewModel struct {
	store   *config.Store
	player  Player
	surface *TerminalSurface
	title   string

	// Save persists the current settings; nil disables the binding
	Save func(*config.Settings) error

	keys    KeyMap
	help    help.Model
	message string
	width   int
	height  int
}

// NewPreviewModel creates the live preview model
func NewPreviewModel(store *config.Store, player Player, surface *TerminalSurface, title string) *PreviewModel {
	return &PreviewModel{
		store:   store,
		player:  player,
		surface: surface,
		title:   title,
		keys:    DefaultKeyMap(),
		help:    help.New(),
	}
}

func refresh() tea.Cmd {
	return tea.Tick(time.Second/terminalFPS, func(time.Time) tea.Msg { return refreshMsg{} })
}

// Init starts the refresh ticker
func (m *PreviewModel) Init() tea.Cmd {
	return refresh()
}

// statusRows is the number of lines around the preview
const statusRows = 8

// Update handles messages
func (m *PreviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.surface.Resize(FitPreview(msg.Width, msg.Height, statusRows))
		return m, nil

	case refreshMsg:
		return m, refresh()

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *PreviewModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return nil
	case key.Matches(msg, m.keys.Pause):
		paused, err := m.player.TogglePause()
		switch {
		case err != nil:
			m.message = err.Error()
		case paused:
			m.message = "paused"
		default:
			m.message = "playing"
		}
		return nil
	case key.Matches(msg, m.keys.More):
		m.store.Update(func(s *config.Settings) { s.Visualizer.ParticleCount += particleStep })
		m.message = fmt.Sprintf("particles: %d", m.store.Load().Visualizer.ParticleCount)
		return nil
	case key.Matches(msg, m.keys.Fewer):
		m.store.Update(func(s *config.Settings) { s.Visualizer.ParticleCount -= particleStep })
		m.message = fmt.Sprintf("particles: %d", m.store.Load().Visualizer.ParticleCount)
		return nil
	case key.Matches(msg, m.keys.Save):
		if m.Save == nil {
			m.message = "no session file to save to"
		} else if err := m.Save(m.store.Load()); err != nil {
			m.message = "save failed: " + err.Error()
		} else {
			m.message = "session saved"
		}
		return nil
	}

	for i, b := range m.keys.Presets {
		if key.Matches(msg, b) {
			p := config.Preset(i)
			m.store.SetPreset(p)
			m.message = "preset: " + p.String()
			return nil
		}
	}
	for i, b := range m.keys.Effects {
		if key.Matches(msg, b) {
			kind := config.EffectKind(i)
			m.store.ToggleEffect(kind)
			state := "off"
			if _, on := m.store.Load().Effects.Active(kind); on {
				state = "on"
			}
			m.message = kind.String() + " " + state
			return nil
		}
	}
	return nil
}

// View renders the preview with a status line and key help
func (m *PreviewModel) View() string {
	var s strings.Builder

	s.WriteString(lipgloss.NewStyle().Bold(true).Foreground(cli.WaveCyan).Render(cli.AppTitle))
	if m.title != "" {
		s.WriteString("  ")
		s.WriteString(lipgloss.NewStyle().Italic(true).Render(m.title))
	}
	s.WriteString("\n")

	frame := m.surface.View()
	if frame == "" {
		frame = lipgloss.NewStyle().Faint(true).Render("  Waiting for audio...") + "\n"
	}
	s.WriteString(frame)

	s.WriteString(m.statusLine())
	s.WriteString("\n")
	if m.message != "" {
		s.WriteString(lipgloss.NewStyle().Foreground(cli.WavePink).Render(m.message))
	}
	s.WriteString("\n")
	s.WriteString(m.help.View(m.keys))
	return s.String()
}

func (m *PreviewModel) statusLine() string {
	settings := m.store.Load()
	label := lipgloss.NewStyle().Foreground(cli.CoolGray)
	value := lipgloss.NewStyle().Bold(true)

	state := "playing"
	switch {
	case m.player.Ended():
		state = "ended"
	case m.player.Paused():
		state = "paused"
	}

	var active []string
	for i := range settings.Effects {
		if _, on := settings.Effects.Active(config.EffectKind(i)); on {
			active = append(active, config.EffectKind(i).String())
		}
	}
	fx := "none"
	if len(active) > 0 {
		fx = strings.Join(active, ",")
	}

	return fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		label.Render("Time"), value.Render(formatClock(m.player.Position())),
		label.Render("State"), value.Render(state),
		label.Render("Preset"), value.Render(settings.Visualizer.Preset.String()),
		label.Render("Particles"), value.Render(fmt.Sprint(settings.Visualizer.ParticleCount)),
		label.Render("Effects"), value.Render(fx))
}

// formatClock formats a playback position as m:ss
func formatClock(d time.Duration) string {
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
