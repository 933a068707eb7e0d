package state

import "log/slog"

// NoopServiceRegistrar logs the registration intent without performing any
// actual service-discovery side effect.
type NoopServiceRegistrar struct {
	Logger *slog.Logger
}

// Register implements ServiceRegistrar.
func (r NoopServiceRegistrar) Register(name, description string) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("service registration skipped (no-op registrar)", "name", name, "description", description)
	return nil
}
