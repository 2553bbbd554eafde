package config

import "sort"

var presets = map[string]func(*Config){
	"nominal": func(c *Config) {},
	"lateral-push": func(c *Config) {
		c.Sim.Pushes = []Push{{Time: 4.3, Force: Vec2{0, 60}, Duration: 0.1}}
	},
	"forward-push": func(c *Config) {
		c.Sim.Pushes = []Push{{Time: 4.3, Force: Vec2{70, 0}, Duration: 0.1}}
	},
	"no-adaptation": func(c *Config) {
		c.Push.Enabled = false
		c.Sim.Pushes = []Push{{Time: 4.3, Force: Vec2{70, 0}, Duration: 0.1}}
	},
	"noisy": func(c *Config) {
		c.Sim.NoiseStd = 0.002
		c.Sim.Duration = 20
		c.Sim.Goal = Vec2{2.0, 0}
	},
}

// GetPreset returns a fresh configuration for the named preset.
func GetPreset(name string) *Config {
	apply, ok := presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
