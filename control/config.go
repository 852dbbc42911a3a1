// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Typed runtime configuration with environment and TOML file sources,
// plus a thread-safe store with hot-reload propagation.

package control

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variable names recognized by FromEnv.
const (
	EnvWorkers           = "HIOLOAD_WORKERS"
	EnvPollTimeoutMS     = "HIOLOAD_POLL_TIMEOUT_MS"
	EnvWakeQueueCapacity = "HIOLOAD_WAKEQ_CAPACITY"
	EnvInjectorCapacity  = "HIOLOAD_INJECTOR_CAPACITY"
)

// Config carries the tunables of the runtime. Zero or negative fields
// fall back to defaults through Normalized.
type Config struct {
	// Workers is the executor worker count. Defaults to GOMAXPROCS.
	Workers int `toml:"workers"`
	// PollTimeoutMS bounds one reactor poll cycle in milliseconds.
	PollTimeoutMS int `toml:"poll_timeout_ms"`
	// WakeQueueCapacity sizes the fast segment of the wake queue.
	WakeQueueCapacity int `toml:"wake_queue_capacity"`
	// InjectorCapacity sizes the fast segment of the executor injector.
	InjectorCapacity int `toml:"injector_capacity"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Workers:           runtime.GOMAXPROCS(0),
		PollTimeoutMS:     20,
		WakeQueueCapacity: 1024,
		InjectorCapacity:  1024,
	}
}

// Normalized replaces unset fields with defaults.
func (c Config) Normalized() Config {
	d := Default()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.PollTimeoutMS <= 0 {
		c.PollTimeoutMS = d.PollTimeoutMS
	}
	if c.WakeQueueCapacity <= 0 {
		c.WakeQueueCapacity = d.WakeQueueCapacity
	}
	if c.InjectorCapacity <= 0 {
		c.InjectorCapacity = d.InjectorCapacity
	}
	return c
}

// PollTimeout returns the poll cycle bound as a duration.
func (c Config) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutMS) * time.Millisecond
}

// FromEnv builds a configuration from process environment variables on
// top of the defaults. Unset or malformed variables keep the default.
func FromEnv() Config {
	c := Default()
	readEnvInt(EnvWorkers, &c.Workers)
	readEnvInt(EnvPollTimeoutMS, &c.PollTimeoutMS)
	readEnvInt(EnvWakeQueueCapacity, &c.WakeQueueCapacity)
	readEnvInt(EnvInjectorCapacity, &c.InjectorCapacity)
	return c.Normalized()
}

func readEnvInt(key string, dst *int) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return
	}
	*dst = v
}

// LoadFile reads a TOML configuration file on top of the defaults.
func LoadFile(path string) (Config, error) {
	c := Default()
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return Config{}, fmt.Errorf("control: load %s: %w", path, err)
	}
	return c.Normalized(), nil
}

// Store is a thread-safe configuration holder with atomic snapshot and
// listener support.
type Store struct {
	mu        sync.RWMutex
	cfg       Config
	listeners []func(Config)
}

// NewStore initializes a store holding cfg.
func NewStore(cfg Config) *Store {
	return &Store{cfg: cfg.Normalized()}
}

// Snapshot returns the current configuration by value.
func (s *Store) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// OnReload registers a listener invoked after every Update.
func (s *Store) OnReload(fn func(Config)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Update replaces the configuration and dispatches reload listeners
// synchronously with the new snapshot.
func (s *Store) Update(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.Normalized()
	snap := s.cfg
	listeners := make([]func(Config), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}
