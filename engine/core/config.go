package core

import (
	"bytes"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
)

/** @brief The window the application opens at startup. */
type WindowConfig struct {
	Title  string `toml:"title"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

/** @brief Renderer switches. */
type RendererConfig struct {
	/** @brief Enables the validation layer and the debug report callback. */
	Validation bool `toml:"validation"`
	/** @brief Prefer mailbox presentation over fifo when the surface offers it. */
	PreferMailbox bool `toml:"prefer_mailbox"`
}

/** @brief Where the shaders and the texture come from. */
type AssetsConfig struct {
	Dir            string `toml:"dir"`
	VertexShader   string `toml:"vertex_shader"`
	FragmentShader string `toml:"fragment_shader"`
	/** @brief Empty means the bordered default texture is generated. */
	Texture string `toml:"texture"`
	/** @brief Watch the asset directory and reload changed files into the cache. */
	Watch bool `toml:"watch"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

/** @brief The application configuration, usually read from config.toml. */
type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Assets   AssetsConfig   `toml:"assets"`
	Log      LogConfig      `toml:"log"`
}

func DefaultConfig() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "vkframe",
			Width:  800,
			Height: 600,
		},
		Renderer: RendererConfig{
			Validation:    true,
			PreferMailbox: true,
		},
		Assets: AssetsConfig{
			Dir:            "assets",
			VertexShader:   "shaders/vert.spv",
			FragmentShader: "shaders/frag.spv",
			Watch:          true,
		},
		Log: LogConfig{
			Level: string(LogLevelDebug),
		},
	}
}

// LoadConfig reads the configuration at path on top of the defaults. A
// missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			LogInfo("No configuration found at '%s', using defaults.", path)
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "failed to read configuration '%s'", path)
	}
	cfg, err := DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid configuration '%s'", path)
	}
	return cfg, nil
}

// DecodeConfig decodes TOML from r on top of the defaults and validates it.
func DecodeConfig(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, errors.Newf("unknown configuration keys:\n%s", strict.String())
		}
		return nil, errors.Wrap(err, "failed to decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return errors.Newf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Assets.VertexShader == "" || c.Assets.FragmentShader == "" {
		return errors.New("both shader paths must be set")
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}
