package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config describes a scene and how to play or export it.
type Config struct {
	Player       Player  `yaml:"player"`
	Width        int     `yaml:"width"`
	Height       int     `yaml:"height"`
	Background   string  `yaml:"background"` // #rrggbb
	Output       string  `yaml:"output"`
	Format       string  `yaml:"format"` // jpeg, png, bmp
	Quality      int     `yaml:"quality"`
	Workers      int     `yaml:"workers"`
	VideoEncoder string  `yaml:"video_encoder"` // libx264, h264_nvenc, h264_videotoolbox or auto
	VideoQuality int     `yaml:"video_quality"` // encoder specific, 0 picks a default
	LogLevel     string  `yaml:"log_level"`
	Layers       []Layer `yaml:"layers"`
}

// Player holds the playback engine settings.
type Player struct {
	FPS          int     `yaml:"fps"`
	PlaybackRate float64 `yaml:"playback_rate"`
	SampleRate   int     `yaml:"sample_rate"`
	Channels     int     `yaml:"channels"`
	Volume       float64 `yaml:"volume"` // 0 mutes; DefaultPlayer uses 1
	AudioFrames  int     `yaml:"audio_frames"` // ticks per audio ring half
}

// Layer is one node of the scene. Fields apply according to Type.
type Layer struct {
	ID        string     `yaml:"id"`
	Type      string     `yaml:"type"`
	Start     float64    `yaml:"start"`
	Duration  float64    `yaml:"duration"`
	ZIndex    int        `yaml:"z_index"`
	X         float64    `yaml:"x"`
	Y         float64    `yaml:"y"`
	Width     int        `yaml:"width"`
	Height    int        `yaml:"height"`
	Color     string     `yaml:"color,omitempty"`
	Path      string     `yaml:"path,omitempty"` // image, pdf, clip
	Page      int        `yaml:"page,omitempty"` // pdf page, zero based
	DPI       int        `yaml:"dpi,omitempty"`
	Text      string     `yaml:"text,omitempty"` // qrcode
	Frequency float64    `yaml:"frequency,omitempty"`
	Volume    float64    `yaml:"volume,omitempty"`
	Keyframes []Keyframe `yaml:"keyframes,omitempty"`
	Focus     bool       `yaml:"focus,omitempty"` // tour detected content blocks
	Children  []Layer    `yaml:"children,omitempty"`
}

// Keyframe animates an image layer. Time is relative to the layer start.
type Keyframe struct {
	Time  float64 `yaml:"time"`
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
	Zoom  float64 `yaml:"zoom"`
	Alpha float64 `yaml:"alpha"`
}

// Layer types.
const (
	TypeContainer = "container"
	TypeImage     = "image"
	TypePDF       = "pdf"
	TypeQRCode    = "qrcode"
	TypeSolid     = "solid"
	TypeCover     = "cover"
	TypeTone      = "tone"
	TypeClip      = "clip"
)

var layerTypes = map[string]bool{
	TypeContainer: true, TypeImage: true, TypePDF: true, TypeQRCode: true,
	TypeSolid: true, TypeCover: true, TypeTone: true, TypeClip: true,
}

// DefaultPlayer returns 24fps stereo 44.1kHz playback at full volume.
func DefaultPlayer() Player {
	return Player{
		FPS:          24,
		PlaybackRate: 1,
		SampleRate:   44100,
		Channels:     2,
		Volume:       1,
		AudioFrames:  10,
	}
}

// Default returns a 720p configuration with an empty scene.
func Default() *Config {
	return &Config{
		Player:       DefaultPlayer(),
		Width:        1280,
		Height:       720,
		Background:   "#000000",
		Output:       "output",
		Format:       "jpeg",
		Quality:      70,
		Workers:      runtime.NumCPU(),
		VideoEncoder: "libx264",
		LogLevel:     "info",
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	p := c.Player
	if p.FPS <= 0 {
		errs = append(errs, fmt.Errorf("player.fps must be positive, got %d", p.FPS))
	}
	if p.PlaybackRate <= 0 {
		errs = append(errs, fmt.Errorf("player.playback_rate must be positive, got %g", p.PlaybackRate))
	}
	if p.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("player.sample_rate must be positive, got %d", p.SampleRate))
	}
	if p.Channels < 1 || p.Channels > 8 {
		errs = append(errs, fmt.Errorf("player.channels must be in [1,8], got %d", p.Channels))
	}
	if p.Volume < 0 {
		errs = append(errs, fmt.Errorf("player.volume must not be negative, got %g", p.Volume))
	}
	if p.AudioFrames <= 0 {
		errs = append(errs, fmt.Errorf("player.audio_frames must be positive, got %d", p.AudioFrames))
	}
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("invalid size %dx%d", c.Width, c.Height))
	}
	if _, err := ParseColor(c.Background); err != nil {
		errs = append(errs, fmt.Errorf("background: %w", err))
	}

	seen := make(map[string]bool)
	var walk func(prefix string, layers []Layer)
	walk = func(prefix string, layers []Layer) {
		for i, l := range layers {
			where := fmt.Sprintf("%slayers[%d]", prefix, i)
			if l.ID == "" {
				errs = append(errs, fmt.Errorf("%s: missing id", where))
			} else if seen[l.ID] {
				errs = append(errs, fmt.Errorf("%s: duplicate id %q", where, l.ID))
			}
			seen[l.ID] = true
			if !layerTypes[l.Type] {
				errs = append(errs, fmt.Errorf("%s: unknown type %q", where, l.Type))
			}
			if l.Color != "" {
				if _, err := ParseColor(l.Color); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", where, err))
				}
			}
			if l.Focus {
				switch {
				case l.Type != TypeImage && l.Type != TypePDF:
					errs = append(errs, fmt.Errorf("%s: focus applies to image and pdf layers", where))
				case len(l.Keyframes) > 0:
					errs = append(errs, fmt.Errorf("%s: focus and keyframes are exclusive", where))
				case l.Duration <= 0:
					errs = append(errs, fmt.Errorf("%s: focus needs a duration", where))
				}
			}
			if len(l.Children) > 0 && l.Type != TypeContainer {
				errs = append(errs, fmt.Errorf("%s: only containers have children", where))
			}
			walk(where+".", l.Children)
		}
	}
	walk("", c.Layers)

	return errors.Join(errs...)
}

// ParseColor parses #rgb or #rrggbb, with an optional alpha byte.
func ParseColor(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) == 6 {
		h += "ff"
	}
	if len(h) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
