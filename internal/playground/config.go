package playground

import (
	"context"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/ownership"
	"github.com/wippyai/ownership/errors"
	"github.com/wippyai/ownership/memory"
)

// Memory source names accepted in [memory] source.
const (
	SourceHeap   = "heap"
	SourceLinear = "linear"
)

// Config is the playground configuration, usually read from rcplay.toml.
type Config struct {
	Memory MemoryConfig `toml:"memory"`
	Log    LogConfig    `toml:"log"`
	UI     UIConfig     `toml:"ui"`
	Counts CountsConfig `toml:"counts"`
}

// MemoryConfig selects where control blocks are stored.
type MemoryConfig struct {
	// Source is "heap" or "linear" (a wazero linear memory).
	Source string `toml:"source"`
	// Limit caps the bytes in use; 0 means unlimited.
	Limit uint64 `toml:"limit"`
	// Pages is the initial size of the linear memory.
	Pages uint32 `toml:"pages"`
}

// CountsConfig selects the reference count mode.
type CountsConfig struct {
	Synchronized bool `toml:"synchronized"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string `toml:"level"`
}

// UIConfig configures rendering.
type UIConfig struct {
	// Color is "auto", "on" or "off".
	Color string `toml:"color"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Memory: MemoryConfig{Source: SourceHeap, Pages: 1},
		Log:    LogConfig{Level: "warn"},
		UI:     UIConfig{Color: "auto"},
	}
}

// LoadConfig reads a TOML file on top of DefaultConfig. Unknown keys are
// rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, errors.New(errors.PhaseConfig, errors.KindInvalidData).
			Path(path).
			Cause(err).
			Detail("failed to parse TOML").
			Build()
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path(path).
			Detail("unknown keys: %s", strings.Join(keys, ", ")).
			Build()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field values.
func (c Config) Validate() error {
	switch c.Memory.Source {
	case SourceHeap, SourceLinear:
	default:
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("memory", "source").
			Value(c.Memory.Source).
			Detail("expected %q or %q", SourceHeap, SourceLinear).
			Build()
	}
	if c.Memory.Source == SourceLinear && c.Memory.Pages == 0 {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("memory", "pages").
			Detail("linear memory needs at least one page").
			Build()
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("log", "level").
			Cause(err).
			Build()
	}
	switch c.UI.Color {
	case "", "auto", "on", "off":
	default:
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("ui", "color").
			Value(c.UI.Color).
			Detail("expected auto, on or off").
			Build()
	}
	return nil
}

// Source is a configured memory source. Counting wraps whatever the
// configuration selected so sessions can report allocation totals.
type Source struct {
	name      string
	Allocator ownership.Allocator
	Counting  *memory.Counting
	Linear    *memory.Linear
	closer    func(context.Context) error
}

// Name describes the source, e.g. "linear (limit 4096)".
func (s *Source) Name() string { return s.name }

// Close releases the backing runtime, if any.
func (s *Source) Close(ctx context.Context) error {
	if s.closer == nil {
		return nil
	}
	return s.closer(ctx)
}

// NewSource builds the memory source described by c.
func NewSource(ctx context.Context, c MemoryConfig) (*Source, error) {
	var (
		base   ownership.Allocator
		linear *memory.Linear
		closer func(context.Context) error
	)

	switch c.Source {
	case SourceLinear:
		rt := wazero.NewRuntime(ctx)
		lin, err := memory.Instantiate(ctx, rt, c.Pages)
		if err != nil {
			rt.Close(ctx)
			return nil, err
		}
		linear = lin
		base = lin
		closer = rt.Close
	default:
		base = memory.NewHeap()
	}

	if c.Limit > 0 {
		base = memory.NewLimited(base, c.Limit)
	}
	counting := memory.NewCounting(base)
	name := c.Source
	if c.Limit > 0 {
		name += fmt.Sprintf(" (limit %d)", c.Limit)
	}
	return &Source{
		name:      name,
		Allocator: counting,
		Counting:  counting,
		Linear:    linear,
		closer:    closer,
	}, nil
}

// NewLogger builds a zap logger at the configured level. Development
// mode uses the console encoder.
func NewLogger(c LogConfig, development bool) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	var zc zap.Config
	if development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
