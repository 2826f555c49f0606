package host

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/reglet-dev/hostbridge/config"
	"github.com/reglet-dev/hostbridge/hostobject"
	hostwazero "github.com/reglet-dev/hostbridge/infrastructure/wazero"
)

// Option defines a functional option for configuring the Executor.
type Option func(*executorConfig)

type executorConfig struct {
	logger         *slog.Logger
	setPolicy      hostobject.SetPolicy
	scriptTimeout  time.Duration
	moduleName     string
	maxRequestSize uint32
	allow          []string
	hostFunctions  []hostwazero.CustomHandler
	shared         map[string]any
	sharedOrder    []string
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{
		logger:         slog.Default(),
		setPolicy:      hostobject.SetIgnore,
		moduleName:     hostwazero.DefaultModuleName,
		maxRequestSize: hostwazero.DefaultMaxRequestSize,
		shared:         make(map[string]any),
	}
}

// WithLogger sets the logger used by the executor and everything it creates.
func WithLogger(l *slog.Logger) Option {
	return func(c *executorConfig) {
		c.logger = l
	}
}

// WithSetPolicy sets the policy for writes to unknown properties.
func WithSetPolicy(p hostobject.SetPolicy) Option {
	return func(c *executorConfig) {
		c.setPolicy = p
	}
}

// WithScriptTimeout interrupts scripts running longer than d. Zero disables it.
func WithScriptTimeout(d time.Duration) Option {
	return func(c *executorConfig) {
		c.scriptTimeout = d
	}
}

// WithModuleName sets the host module name guests import from. Guests built
// with the guest package import "hostbridge"; rename it only for guests that
// declare their own imports.
func WithModuleName(name string) Option {
	return func(c *executorConfig) {
		c.moduleName = name
	}
}

// WithMaxRequestSize limits guest requests.
func WithMaxRequestSize(size uint32) Option {
	return func(c *executorConfig) {
		c.maxRequestSize = size
	}
}

// WithHostFunction adds a raw export to the host module next to the object
// operations, for guests that need a call outside the JSON protocol.
func WithHostFunction(h hostwazero.CustomHandler) Option {
	return func(c *executorConfig) {
		c.hostFunctions = append(c.hostFunctions, h)
	}
}

// WithGuestPolicy restricts guests to the properties matching patterns,
// globs over "object.property".
func WithGuestPolicy(patterns ...string) Option {
	return func(c *executorConfig) {
		c.allow = append(c.allow, patterns...)
	}
}

// WithSharedValue declares a shared value visible to scripts as the global
// name and to guests as the object name. Later declarations of a name
// replace earlier ones.
func WithSharedValue(name string, initial any) Option {
	return func(c *executorConfig) {
		if _, exists := c.shared[name]; !exists {
			c.sharedOrder = append(c.sharedOrder, name)
		}
		c.shared[name] = initial
	}
}

// FromConfig translates a validated configuration into options. The logger
// is not included; build it with cfg.Log.Logger.
func FromConfig(cfg *config.Config) ([]Option, error) {
	policy, err := hostobject.ParseSetPolicy(cfg.Objects.SetPolicy)
	if err != nil {
		return nil, fmt.Errorf("objects.set_policy: %w", err)
	}
	opts := []Option{
		WithSetPolicy(policy),
		WithScriptTimeout(cfg.Script.Timeout),
		WithModuleName(cfg.Wasm.ModuleName),
		WithMaxRequestSize(cfg.Wasm.MaxRequestSize),
	}
	if len(cfg.Wasm.Allow) > 0 {
		opts = append(opts, WithGuestPolicy(cfg.Wasm.Allow...))
	}
	names := make([]string, 0, len(cfg.Shared))
	for name := range cfg.Shared {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		opts = append(opts, WithSharedValue(name, cfg.Shared[name]))
	}
	return opts, nil
}
