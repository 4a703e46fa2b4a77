package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Song describes the track being visualised. Audio and Cover are file paths or http(s) URLs.
type Song struct {
	Title string `yaml:"title"`
	Style string `yaml:"style,omitempty"`
	Audio string `yaml:"audio"`
	Cover string `yaml:"cover,omitempty"`
}

// BackgroundKind selects how the frame background is produced
type BackgroundKind string

const (
	BackgroundNone  BackgroundKind = "none"
	BackgroundImage BackgroundKind = "image"
	BackgroundVideo BackgroundKind = "video"
)

// BackgroundSelector names a background source before it is resolved
type BackgroundSelector struct {
	Kind    BackgroundKind `yaml:"kind"`
	Locator string         `yaml:"locator,omitempty"`
}

// Session is the on-disk description of one visualiser session
type Session struct {
	Song        Song               `yaml:"song"`
	Background  BackgroundSelector `yaml:"background"`
	CenterImage string             `yaml:"center_image,omitempty"`
	Visualizer  VisualizerConfig   `yaml:"visualizer"`
	Effects     map[string]Effect  `yaml:"effects,omitempty"`
	TextLayers  []TextLayer        `yaml:"text_layers,omitempty"`
	Seed        int64              `yaml:"seed,omitempty"`

	baseDir string
}

// DefaultSession returns a session with default settings and no song
func DefaultSession() *Session {
	def := DefaultSettings()
	return &Session{
		Background: BackgroundSelector{Kind: BackgroundNone},
		Visualizer: def.Visualizer,
	}
}

// LoadSession reads a YAML session file. Relative locators resolve against the file's directory.
func LoadSession(path string) (*Session, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand session path: %w", err)
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	s := DefaultSession()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse session %s: %w", expanded, err)
	}
	s.baseDir = filepath.Dir(expanded)

	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("invalid session %s: %w", expanded, err)
	}
	return s, nil
}

// Save writes the session as YAML
func (s *Session) Save(path string) error {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("failed to expand session path: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.WriteFile(expanded, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

func (s *Session) validate() error {
	if s.Background.Kind == "" {
		s.Background.Kind = BackgroundNone
	}
	switch s.Background.Kind {
	case BackgroundNone:
	case BackgroundImage, BackgroundVideo:
		if s.Background.Locator == "" {
			return fmt.Errorf("%s background needs a locator", s.Background.Kind)
		}
	default:
		return fmt.Errorf("unknown background kind %q", s.Background.Kind)
	}
	for name := range s.Effects {
		if _, err := ParseEffectKind(name); err != nil {
			return err
		}
	}
	return nil
}

// Settings converts the session into a settings snapshot (normalised)
func (s *Session) Settings() Settings {
	out := DefaultSettings()
	out.Visualizer = s.Visualizer
	for name, fx := range s.Effects {
		kind, err := ParseEffectKind(name)
		if err != nil {
			continue
		}
		out.Effects[kind] = fx
	}
	out.TextLayers = append([]TextLayer(nil), s.TextLayers...)
	out.Normalize()
	return out
}

// Capture copies a settings snapshot back into the session for saving.
// Disabled effects are kept so their intensity survives a reload.
func (s *Session) Capture(st *Settings) {
	s.Visualizer = st.Visualizer
	s.Effects = make(map[string]Effect, NumEffects)
	for i, fx := range st.Effects {
		s.Effects[EffectKind(i).String()] = fx
	}
	s.TextLayers = append([]TextLayer(nil), st.TextLayers...)
}

// Resolve expands "~" and makes relative file locators absolute. URLs are returned as-is.
func (s *Session) Resolve(locator string) string {
	if locator == "" || IsRemote(locator) {
		return locator
	}
	if expanded, err := homedir.Expand(locator); err == nil {
		locator = expanded
	}
	if !filepath.IsAbs(locator) && s.baseDir != "" {
		locator = filepath.Join(s.baseDir, locator)
	}
	return locator
}

// ResolvedSong returns the song with its locators resolved
func (s *Session) ResolvedSong() Song {
	song := s.Song
	song.Audio = s.Resolve(song.Audio)
	song.Cover = s.Resolve(song.Cover)
	return song
}

// IsRemote reports whether a locator is an http(s) URL
func IsRemote(locator string) bool {
	l := strings.ToLower(locator)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
