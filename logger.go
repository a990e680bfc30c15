package dispatch

import (
	"github.com/creastat/infra/telemetry"
)

const defaultLogLevel = "info"

// newLogger returns logger scoped to module, creating an info-level logger
// when none was configured
func newLogger(logger telemetry.Logger, module string) telemetry.Logger {
	if logger == nil {
		logger = telemetry.New(telemetry.Config{Level: defaultLogLevel})
	}
	return logger.WithModule(module)
}
