// Package logger wires slog to an environment-appropriate backend:
// plain text locally, sampled zap JSON everywhere else.
package logger

import "log/slog"

var def *slog.Logger

// Init configures the process-wide slog default. Safe to call once at
// startup; zero values fall back to detected environment defaults.
func Init(cfg Config) {
	if cfg.Env == "" {
		cfg.Env = DetectEnv()
	}
	if cfg.Service == "" {
		cfg.Service = "app"
	}
	cfg.InstanceID = ensureInstanceID(cfg.InstanceID)

	if cfg.Backend == "" {
		if cfg.Env == EnvDev {
			cfg.Backend = BackendStd
		} else {
			cfg.Backend = BackendZap
		}
	}

	var h slog.Handler
	switch cfg.Backend {
	case BackendZap:
		h = newZapHandler(cfg)
	default:
		h = newStdHandler(cfg)
	}

	h = h.WithAttrs(commonAttrs(cfg))

	base := slog.New(h)
	slog.SetDefault(base)
	def = base
}

// L returns the configured logger, initializing with defaults if Init
// was never called.
func L() *slog.Logger {
	if def != nil {
		return def
	}

	Init(Config{})
	return def
}
