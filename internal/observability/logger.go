package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger stamps the service name onto the global logger so every log
// line names its origin. Writer and level setup live in internal/logging;
// call logging.ConfigureRuntime (or ConfigureTests) first.
func InitLogger(service string) zerolog.Logger {
	logger := log.Logger.With().Str("service", service).Logger()
	log.Logger = logger
	return logger
}
