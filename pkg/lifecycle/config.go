package lifecycle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config carries environment-driven engine settings.
type Config struct {
	// ConflictRetries bounds in-engine re-evaluation after a lost commit race.
	ConflictRetries int `env:"LIFECYCLE_CONFLICT_RETRIES" envDefault:"0"`
	// HookPanicStack includes a stack trace when logging a recovered hook panic.
	HookPanicStack bool `env:"LIFECYCLE_HOOK_PANIC_STACK" envDefault:"false"`
}

var defaultEnvLoaded sync.Once

// LoadConfig reads engine settings from the environment. The default .env
// file is loaded once per process if present; a missing file is not an error.
func LoadConfig() (Config, error) {
	defaultEnvLoaded.Do(func() {
		_ = godotenv.Load()
	})

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrInvalidConfig, err)
	}
	if cfg.ConflictRetries < 0 {
		return Config{}, ErrInvalidConfig
	}
	return cfg, nil
}

// MustLoadConfig is like LoadConfig but panics on failure, for settings the
// application cannot start without.
func MustLoadConfig() Config {
	cfg, err := LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("failed to load lifecycle config: %v", err))
	}
	return cfg
}
