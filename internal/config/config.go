package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the sketch configuration. Load starts from Default and
// overlays the YAML file, so omitted keys keep their defaults.
type Config struct {
	Canvas CanvasConfig `yaml:"canvas"`
	Link   LinkConfig   `yaml:"link"`
	API    APIConfig    `yaml:"api"`
	HUD    bool         `yaml:"hud"`
}

type CanvasConfig struct {
	Width    int  `yaml:"width"`
	Height   int  `yaml:"height"`
	FPS      int  `yaml:"fps"`
	Scale    int  `yaml:"scale"`
	Diameter int  `yaml:"diameter"`
	StartY   *int `yaml:"start_y"`
}

type LinkConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Port        string  `yaml:"port"`
	Baud        int     `yaml:"baud"`
	Delimiter   string  `yaml:"delimiter"`
	Echo        bool    `yaml:"echo"`
	Record      string  `yaml:"record"`
	Replay      string  `yaml:"replay"`
	ReplaySpeed float64 `yaml:"replay_speed"`
}

type APIConfig struct {
	Addr     string `yaml:"addr"`
	StreamHz int    `yaml:"stream_hz"`
}

// Default mirrors the classic sketch: a 500x300 canvas at 60 fps reading
// "|"-terminated values at 9600 baud.
func Default() Config {
	return Config{
		Canvas: CanvasConfig{Width: 500, Height: 300, FPS: 60, Scale: 2, Diameter: 25},
		Link:   LinkConfig{Enabled: true, Baud: 9600, Delimiter: "|", ReplaySpeed: 1},
		API:    APIConfig{StreamHz: 10},
	}
}

// Load reads a YAML config file on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides the port and API address from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("BOUNCER_PORT"); v != "" {
		c.Link.Port = v
	}
	if v := getenv("BOUNCER_HTTP"); v != "" {
		c.API.Addr = v
	}
}

// StartY returns the initial vertical position: the configured value, the
// bottom edge when a link will drive it, or the middle of the canvas.
func (c *Config) StartY() int {
	if c.Canvas.StartY != nil {
		return *c.Canvas.StartY
	}
	if c.Link.Enabled {
		return 0
	}
	return c.Canvas.Height / 2
}

// DelimiterByte returns the link delimiter.
func (c *Config) DelimiterByte() byte {
	if c.Link.Delimiter == "" {
		return '|'
	}
	return c.Link.Delimiter[0]
}

var (
	ErrCanvasSize = errors.New("canvas width and height must be positive")
	ErrDelimiter  = errors.New("link delimiter must be a single ASCII character outside the value alphabet")
)

// Validate checks values that would make the sketch unusable.
func (c *Config) Validate() error {
	var errs []error
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		errs = append(errs, fmt.Errorf("%w (got %dx%d)", ErrCanvasSize, c.Canvas.Width, c.Canvas.Height))
	}
	if c.Canvas.Width > 4096 || c.Canvas.Height > 4096 {
		errs = append(errs, fmt.Errorf("canvas %dx%d exceeds 4096x4096", c.Canvas.Width, c.Canvas.Height))
	}
	if c.Canvas.FPS <= 0 {
		errs = append(errs, fmt.Errorf("canvas fps must be positive (got %d)", c.Canvas.FPS))
	}
	if !validDelimiter(c.Link.Delimiter) {
		errs = append(errs, fmt.Errorf("%w (got %q)", ErrDelimiter, c.Link.Delimiter))
	}
	if c.Link.Baud < 0 {
		errs = append(errs, fmt.Errorf("link baud must not be negative (got %d)", c.Link.Baud))
	}
	if c.Link.Record != "" && c.Link.Record == c.Link.Replay {
		errs = append(errs, errors.New("link record and replay must not name the same file"))
	}
	if c.API.StreamHz < 0 {
		errs = append(errs, fmt.Errorf("api stream_hz must not be negative (got %d)", c.API.StreamHz))
	}
	return errors.Join(errs...)
}

// validDelimiter rejects characters that can appear inside a value.
func validDelimiter(d string) bool {
	if d == "" {
		return true
	}
	if len(d) != 1 || d[0] >= 0x80 {
		return false
	}
	c := d[0]
	return (c < '0' || c > '9') && c != '-' && c != '+'
}
