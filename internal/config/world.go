package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WorldConfig describes the office layout and its digital employees. A zero
// value is not usable; obtain one from DefaultWorld or LoadWorld.
type WorldConfig struct {
	Title    string   `yaml:"title"`
	Subtitle string   `yaml:"subtitle"`
	Map      []string `yaml:"map"`

	RoomLimit           float64 `yaml:"room_limit"`
	InteractionDistance float64 `yaml:"interaction_distance"`
	PlayerSpeed         float64 `yaml:"player_speed"`

	Personas []PersonaConfig `yaml:"personas"`
}

// PersonaConfig describes one NPC: identity, voice and placement.
type PersonaConfig struct {
	ID       string     `yaml:"id"`
	Name     string     `yaml:"name"`
	Role     string     `yaml:"role"`
	Tone     string     `yaml:"tone"`
	Voice    string     `yaml:"voice"`
	Greeting string     `yaml:"greeting"`
	Traits   []string   `yaml:"traits"`
	Position [3]float64 `yaml:"position"`
}

// DefaultWorld returns the built-in Venture Builder AI office.
func DefaultWorld() *WorldConfig {
	w := &WorldConfig{
		Title:    "Venture Builder AI",
		Subtitle: "Our Digital Employees",
		Map: []string{
			"WWWWWWWWWWWWWWWWWWWW",
			"W                  W",
			"W                  W",
			"W         N        W",
			"W                  W",
			"W                  W",
			"W                  W",
			"W    P             W",
			"W                  W",
			"W                  W",
			"W                  W",
			"W                  W",
			"WWWWWWWWWWWWWWWWWWWW",
		},
		Personas: []PersonaConfig{
			{
				ID:    "hr",
				Name:  "Sarah Chen",
				Role:  "HR Director",
				Tone:  "warm",
				Voice: "alloy",
				Traits: []string{
					"Warm and approachable",
					"Focus on employee well-being and company culture",
				},
				Greeting: "Hello there, I am Sarah Chen, HR Director at Venture Builder AI. How can I assist you today?",
				Position: [3]float64{-3.3, 0.65, -2},
			},
			{
				ID:    "ceo",
				Name:  "Michael Chen",
				Role:  "CEO",
				Tone:  "confident",
				Voice: "ballad",
				Traits: []string{
					"Confident and visionary",
					"Focus on innovation and leadership",
				},
				Greeting: "Hello there, I am Michael Chen, CEO at Venture Builder AI. What can I do for you today?",
				Position: [3]float64{3.3, 0.65, 1},
			},
		},
	}
	w.setDefaults()
	return w
}

// LoadWorld reads a world description from a YAML file. Missing numeric
// fields take the built-in defaults.
func LoadWorld(path string) (*WorldConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read world config: %w", err)
	}
	var w WorldConfig
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse world config: %w", err)
	}
	w.setDefaults()
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}

func (w *WorldConfig) setDefaults() {
	if w.Title == "" {
		w.Title = "Venture Builder AI"
	}
	if w.Subtitle == "" {
		w.Subtitle = "Our Digital Employees"
	}
	if w.RoomLimit == 0 {
		w.RoomLimit = 4.5
	}
	if w.InteractionDistance == 0 {
		w.InteractionDistance = 2.0
	}
	if w.PlayerSpeed == 0 {
		w.PlayerSpeed = 0.3
	}
	for i := range w.Personas {
		p := &w.Personas[i]
		if p.Tone == "" {
			p.Tone = "neutral"
		}
		if p.Voice == "" {
			p.Voice = "alloy"
		}
	}
}

// Validate checks structural constraints that would otherwise surface as
// confusing panics deep in the game loop.
func (w *WorldConfig) Validate() error {
	if len(w.Map) == 0 {
		return fmt.Errorf("world config: map is empty")
	}
	width := len(w.Map[0])
	for i, row := range w.Map {
		if len(row) != width {
			return fmt.Errorf("world config: map row %d has width %d, want %d", i, len(row), width)
		}
	}
	if len(w.Personas) == 0 {
		return fmt.Errorf("world config: no personas defined")
	}
	seen := make(map[string]bool, len(w.Personas))
	for i, p := range w.Personas {
		if p.ID == "" {
			return fmt.Errorf("world config: persona %d has no id", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("world config: duplicate persona id %q", p.ID)
		}
		seen[p.ID] = true
		if p.Name == "" || p.Role == "" {
			return fmt.Errorf("world config: persona %q needs name and role", p.ID)
		}
	}
	return nil
}
