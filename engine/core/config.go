package core

import (
	"bufio"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type ApplicationConfig struct {
	Name     string   `toml:"name"`
	LogLevel LogLevel `toml:"log_level"`
	// Frames to run before exiting. Zero runs until interrupted.
	MaxFrames   uint64 `toml:"max_frames"`
	BindingsDir string `toml:"bindings_dir"`
}

type BatchingConfig struct {
	Enabled     bool   `toml:"enabled"`
	MaxMembers  uint32 `toml:"max_members"`
	MaxIndices  uint32 `toml:"max_indices"`
	MaxVertices uint32 `toml:"max_vertices"`
}

type RendererConfig struct {
	FramesInFlight uint32 `toml:"frames_in_flight"`
	FenceTimeoutNs uint64 `toml:"fence_timeout_ns"`
}

type Config struct {
	Application ApplicationConfig `toml:"application"`
	Batching    BatchingConfig    `toml:"batching"`
	Renderer    RendererConfig    `toml:"renderer"`
}

func DefaultConfig() *Config {
	return &Config{
		Application: ApplicationConfig{
			Name:     "tessera",
			LogLevel: InfoLevel,
		},
		Batching: BatchingConfig{
			Enabled:     true,
			MaxMembers:  60,
			MaxIndices:  65535,
			MaxVertices: 65535,
		},
		Renderer: RendererConfig{
			FramesInFlight: 2,
			FenceTimeoutNs: 4294967295,
		},
	}
}

// LoadConfig reads a TOML file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := toml.NewDecoder(bufio.NewReader(f)).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

/** @brief Upper bound of the transform table pushed with one merged draw. */
const MaxBatchMembers = 256

func (c *Config) Validate() error {
	if c.Batching.MaxMembers == 0 {
		return fmt.Errorf("batching.max_members must be greater than zero")
	}
	if c.Batching.MaxMembers > MaxBatchMembers {
		return fmt.Errorf("batching.max_members %d exceeds the %d transforms of one draw", c.Batching.MaxMembers, MaxBatchMembers)
	}
	if c.Batching.MaxIndices == 0 || c.Batching.MaxVertices == 0 {
		return fmt.Errorf("batching.max_indices and batching.max_vertices must be greater than zero")
	}
	// merged indices are 16 bit
	if c.Batching.MaxVertices > 65536 {
		return fmt.Errorf("batching.max_vertices %d exceeds the 16 bit index range", c.Batching.MaxVertices)
	}
	if c.Renderer.FramesInFlight == 0 {
		return fmt.Errorf("renderer.frames_in_flight must be greater than zero")
	}
	return nil
}
