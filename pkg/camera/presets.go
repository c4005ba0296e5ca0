package camera

// Preset names for common configurations
const (
	PresetDefault = "default"
	PresetVGA     = "vga"
	PresetHD      = "hd"
	PresetLow     = "low"
	PresetNight   = "night"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault: DefaultConfig(),
		PresetVGA:     DefaultConfig(),
		PresetHD:      HDConfig(),
		PresetLow:     LowConfig(),
		PresetNight:   NightConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetVGA,
		PresetHD,
		PresetLow,
		PresetNight,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	presets := Presets()
	if cfg, ok := presets[name]; ok {
		return &cfg
	}
	return nil
}

// HDConfig returns 720p configuration.
// Pixel distances grow, so lock thresholds are reached later.
func HDConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 720
	return cfg
}

// LowConfig returns 320x240 for slow hosts.
func LowConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 320
	cfg.Height = 240
	cfg.Quality = 60
	return cfg
}

// NightConfig returns a long-exposure configuration for dim rooms.
func NightConfig() Config {
	cfg := DefaultConfig()
	cfg.Framerate = 15 // Longer exposure per frame
	cfg.Exposure = 300
	cfg.Brightness = 64
	return cfg
}
