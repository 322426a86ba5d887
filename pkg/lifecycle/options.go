package lifecycle

import "log/slog"

// Option configures an engine during construction.
type Option func(*Engine) error

// WithRules registers transition rules.
func WithRules(rules ...Rule) Option {
	return func(en *Engine) error {
		for _, r := range rules {
			if err := en.RegisterTransition(r.Kind, r.From, r.Action, r.To); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithRulesYAML registers transition rules from a YAML document, see
// ParseRules for the format.
func WithRulesYAML(data []byte) Option {
	return func(en *Engine) error {
		rules, err := ParseRules(data)
		if err != nil {
			return err
		}
		return WithRules(rules...)(en)
	}
}

// WithGuardChain binds a pre-built chain to (kind, action), replacing any
// chain registered earlier for that pair.
func WithGuardChain(kind Kind, action Action, chain *Chain) Option {
	return func(en *Engine) error {
		if kind == "" || action == "" {
			return ErrInvalidRule
		}
		if chain == nil {
			return ErrNilChain
		}

		en.mu.Lock()
		defer en.mu.Unlock()

		actions, ok := en.chains[kind]
		if !ok {
			actions = make(map[Action]*Chain)
			en.chains[kind] = actions
		}
		actions[action] = chain
		return nil
	}
}

// WithGlobalChain binds a pre-built kind-wide chain evaluated before any
// per-action chain.
func WithGlobalChain(kind Kind, chain *Chain) Option {
	return func(en *Engine) error {
		if kind == "" {
			return ErrInvalidRule
		}
		if chain == nil {
			return ErrNilChain
		}

		en.mu.Lock()
		defer en.mu.Unlock()
		en.global[kind] = chain
		return nil
	}
}

// WithHook registers a post-commit hook.
func WithHook(h Hook) Option {
	return func(en *Engine) error {
		if h == nil {
			return nil
		}
		en.hooks = append(en.hooks, h)
		return nil
	}
}

// WithLogger sets the logger used for post-commit hook failures. Nil
// loggers are ignored for safety.
func WithLogger(log *slog.Logger) Option {
	return func(en *Engine) error {
		if log != nil {
			en.log = log
		}
		return nil
	}
}

// WithConflictRetries sets how many times a request that lost a commit race
// is re-evaluated against the new state before a ConflictError is returned.
// Zero (the default) rejects on the first lost race.
func WithConflictRetries(n int) Option {
	return func(en *Engine) error {
		if n < 0 {
			return ErrInvalidConfig
		}
		en.retries = n
		return nil
	}
}

// WithConfig applies environment-driven engine settings, see Config.
func WithConfig(cfg Config) Option {
	return func(en *Engine) error {
		if cfg.ConflictRetries < 0 {
			return ErrInvalidConfig
		}
		en.retries = cfg.ConflictRetries
		en.hookPanicStack = cfg.HookPanicStack
		return nil
	}
}
