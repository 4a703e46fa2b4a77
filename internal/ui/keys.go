package ui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/linuxmatters/jivewave/internal/config"
)

// presetKeys select presets in menu order
var presetKeys = [config.NumPresets]string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "0"}

// effectKeys toggle effects, indexed by EffectKind
var effectKeys = [config.NumEffects]string{
	config.EffectShake:       "s",
	config.EffectGlitch:      "g",
	config.EffectVHS:         "v",
	config.EffectNightVision: "n",
	config.EffectScanlines:   "l",
	config.EffectChromatic:   "c",
	config.EffectBloom:       "b",
	config.EffectGrain:       "r",
	config.EffectPixelate:    "x",
	config.EffectStrobe:      "t",
	config.EffectVignette:    "i",
	config.EffectHue:         "h",
	config.EffectLetterbox:   "k",
}

// particleStep is how many particles +/- add or remove
const particleStep = 20

// KeyMap is the preview's key bindings
type KeyMap struct {
	Presets   [config.NumPresets]key.Binding
	Effects   [config.NumEffects]key.Binding
	More      key.Binding
	Fewer     key.Binding
	Pause     key.Binding
	Save      key.Binding
	Help      key.Binding
	Quit      key.Binding
	presetAll key.Binding
	effectAll key.Binding
}

// DefaultKeyMap returns the preview key bindings
func DefaultKeyMap() KeyMap {
	km := KeyMap{
		More:      key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+/-", "particles")),
		Fewer:     key.NewBinding(key.WithKeys("-", "_")),
		Pause:     key.NewBinding(key.WithKeys(" ", "space", "p"), key.WithHelp("space", "pause")),
		Save:      key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "save session")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
		presetAll: key.NewBinding(key.WithKeys(presetKeys[:]...), key.WithHelp("1-0", "preset")),
		effectAll: key.NewBinding(key.WithKeys(effectKeys[:]...), key.WithHelp("letters", "effects")),
	}
	for i, p := range config.Presets() {
		km.Presets[i] = key.NewBinding(key.WithKeys(presetKeys[i]), key.WithHelp(presetKeys[i], p.String()))
	}
	for i := range km.Effects {
		kind := config.EffectKind(i)
		km.Effects[i] = key.NewBinding(key.WithKeys(effectKeys[i]), key.WithHelp(effectKeys[i], kind.String()))
	}
	return km
}

// ShortHelp implements help.KeyMap
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.presetAll, k.effectAll, k.More, k.Pause, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap
func (k KeyMap) FullHelp() [][]key.Binding {
	effects := k.Effects[:]
	return [][]key.Binding{
		k.Presets[:],
		effects[:7],
		effects[7:],
		{k.More, k.Pause, k.Save, k.Help, k.Quit},
	}
}
