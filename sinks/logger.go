package sinks

import (
	"github.com/creastat/infra/telemetry"
)

// sinkLogger scopes logger to module, creating an info-level logger when the
// sink config left it nil
func sinkLogger(logger telemetry.Logger, module string) telemetry.Logger {
	if logger == nil {
		logger = telemetry.New(telemetry.Config{Level: "info"})
	}
	return logger.WithModule(module)
}
