// config/logger.go
package config

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// SetupLogger configures the global logrus logger: JSON in production, text
// with full timestamps everywhere else.
func SetupLogger(cfg *Config) {
	if cfg.IsDevelopment() {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&log.JSONFormatter{})
	}
	log.SetOutput(os.Stdout)

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
