// Package config loads and validates the hostbridge configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/reglet-dev/hostbridge/hostobject"
	"github.com/reglet-dev/hostbridge/log"
)

// Config is the root of the configuration file.
type Config struct {
	Log     LogConfig     `yaml:"log" json:"log"`
	Objects ObjectsConfig `yaml:"objects" json:"objects"`
	Script  ScriptConfig  `yaml:"script" json:"script"`
	Wasm    WasmConfig    `yaml:"wasm" json:"wasm"`

	// Shared declares shared values by global name with their initial value.
	// Each is visible to scripts as a global and to wasm guests as an object.
	Shared map[string]any `yaml:"shared,omitempty" json:"shared,omitempty" validate:"dive,keys,identifier,endkeys"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format string `yaml:"format" json:"format" validate:"omitempty,oneof=text json" jsonschema:"enum=text,enum=json"`
	Source bool   `yaml:"source" json:"source"`
}

// ObjectsConfig configures host objects.
type ObjectsConfig struct {
	// SetPolicy decides what writes to unknown properties do.
	SetPolicy string `yaml:"set_policy" json:"set_policy" validate:"omitempty,oneof=ignore strict" jsonschema:"enum=ignore,enum=strict"`
}

// ScriptConfig configures script execution.
type ScriptConfig struct {
	// Timeout interrupts scripts running longer; zero disables it.
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gte=0" jsonschema:"type=string"`
}

// WasmConfig configures the wasm guest host.
type WasmConfig struct {
	// ModuleName is the host module guests import from. Guests built with the
	// guest package import "hostbridge" and fail to link under another name.
	ModuleName     string       `yaml:"module_name" json:"module_name" validate:"required"`
	MaxRequestSize uint32       `yaml:"max_request_size" json:"max_request_size" validate:"gt=0"`
	Modules        []WasmModule `yaml:"modules,omitempty" json:"modules,omitempty" validate:"dive"`

	// Allow lists glob patterns over "object.property" that guests may
	// reach. Empty allows everything.
	Allow []string `yaml:"allow,omitempty" json:"allow,omitempty" validate:"dive,required"`
}

// WasmModule is a guest loaded at startup.
type WasmModule struct {
	Name string `yaml:"name" json:"name" validate:"required"`
	Path string `yaml:"path" json:"path" validate:"required"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Objects: ObjectsConfig{
			SetPolicy: hostobject.SetIgnore.String(),
		},
		Wasm: WasmConfig{
			ModuleName:     "hostbridge",
			MaxRequestSize: 1 << 20,
		},
	}
}

// validate is a package-level singleton; validators are expensive to build.
var validate = newValidator()

var identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return identifierPattern.MatchString(fl.Field().String())
	})
	return v
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its validation tags.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("config validation failed: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(msgs, "; "))
}

// SlogLevel returns the configured log level.
func (c LogConfig) SlogLevel() slog.Level {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// Logger builds the logger the configuration describes.
func (c LogConfig) Logger(opts ...log.Option) *slog.Logger {
	format, err := log.ParseFormat(c.Format)
	if err != nil {
		format = log.FormatText
	}
	return log.New(append([]log.Option{
		log.WithLevel(c.SlogLevel()),
		log.WithFormat(format),
		log.WithSource(c.Source),
	}, opts...)...)
}

// Schema returns the JSON Schema of the configuration file.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(&Config{})

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}
