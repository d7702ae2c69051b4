package config

import (
	"go.uber.org/zap"
)

// NewLogger builds the application logger for the resolved sink. Inside the
// function host lines go to the console encoder, everywhere else they are
// emitted as JSON.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	var logcfg zap.Config

	switch cfg.LoggerSink {
	case SinkConsole:
		logcfg = zap.NewDevelopmentConfig()
		logcfg.DisableCaller = true
		logcfg.DisableStacktrace = true
	default:
		logcfg = zap.NewProductionConfig()
	}

	logcfg.OutputPaths = []string{"stdout"}
	if cfg.Debug {
		logcfg.Level.SetLevel(zap.DebugLevel)
	} else {
		logcfg.Level.SetLevel(zap.InfoLevel)
	}

	return logcfg.Build()
}
