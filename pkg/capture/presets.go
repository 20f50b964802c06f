package capture

import "sort"

// Preset names accepted by GetPreset and Update.
const (
	PresetDefault = "default"
	PresetVGA     = "vga"
	Preset720p    = "720p"
	Preset1080p   = "1080p"
)

type preset struct {
	width, height int
	fps           float64
}

// Features are computed on a downsampled copy, so the preset mostly affects
// the displayed and streamed image. "default" keeps the device's own mode.
var presets = map[string]preset{
	PresetDefault: {},
	PresetVGA:     {640, 480, 30},
	Preset720p:    {1280, 720, 30},
	Preset1080p:   {1920, 1080, 30},
}

// PresetNames returns the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPreset returns DefaultConfig with the named preset applied, or nil if
// there is no such preset.
func GetPreset(name string) *Config {
	p, ok := presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Width, cfg.Height, cfg.FPS = p.width, p.height, p.fps
	return &cfg
}
