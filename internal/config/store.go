package config

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Store owns the current settings. Readers take a snapshot once per frame with
// Load; writers replace the whole value, so a draw never sees a half-applied edit.
type Store struct {
	current atomic.Pointer[Settings]
	mu      sync.Mutex // serialises writers
	retired map[string]struct{}
}

// NewStore creates a store seeded with initial (normalised, ids assigned)
func NewStore(initial Settings) *Store {
	s := &Store{retired: make(map[string]struct{})}
	c := initial.Clone()
	c.Normalize()
	for i := range c.TextLayers {
		if c.TextLayers[i].ID == "" {
			c.TextLayers[i].ID = uuid.NewString()
		}
	}
	s.current.Store(c)
	return s
}

// Load returns the latest snapshot
func (s *Store) Load() *Settings {
	return s.current.Load()
}

// Update applies fn to a private copy and publishes it (last write wins)
func (s *Store) Update(fn func(*Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.Load().Clone()
	fn(next)
	next.Normalize()
	s.current.Store(next)
}

// SetPreset selects a preset
func (s *Store) SetPreset(p Preset) {
	s.Update(func(st *Settings) { st.Visualizer.Preset = p })
}

// ToggleEffect flips an effect's enabled flag
func (s *Store) ToggleEffect(kind EffectKind) {
	s.Update(func(st *Settings) { st.Effects[kind].Enabled = !st.Effects[kind].Enabled })
}

// SetEffect sets both the flag and the intensity of an effect
func (s *Store) SetEffect(kind EffectKind, enabled bool, intensity float64) {
	s.Update(func(st *Settings) {
		st.Effects[kind] = Effect{Enabled: enabled, Intensity: intensity}
	})
}

// AddTextLayer appends a layer on top of the others and returns its new id
func (s *Store) AddTextLayer(layer TextLayer) string {
	layer.ID = uuid.NewString()
	s.Update(func(st *Settings) { st.TextLayers = append(st.TextLayers, layer) })
	return layer.ID
}

// UpdateTextLayer replaces the layer with the same id, keeping its position in the stack
func (s *Store) UpdateTextLayer(layer TextLayer) error {
	var found bool
	s.Update(func(st *Settings) {
		for i := range st.TextLayers {
			if st.TextLayers[i].ID == layer.ID {
				st.TextLayers[i] = layer
				found = true
				return
			}
		}
	})
	if !found {
		return fmt.Errorf("text layer %q not found", layer.ID)
	}
	return nil
}

// RemoveTextLayer drops a layer; its id is never handed out again
func (s *Store) RemoveTextLayer(id string) {
	s.Update(func(st *Settings) {
		kept := st.TextLayers[:0]
		for _, l := range st.TextLayers {
			if l.ID != id {
				kept = append(kept, l)
			}
		}
		st.TextLayers = kept
	})
	s.mu.Lock()
	s.retired[id] = struct{}{}
	s.mu.Unlock()
}

// Retired reports whether id belonged to a removed layer
func (s *Store) Retired(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.retired[id]
	return ok
}
