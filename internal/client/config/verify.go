package config

import (
	"fmt"

	"github.com/yndnr/gatemesh-go/internal/core/domain"
	"github.com/yndnr/gatemesh-go/internal/telemetry/logger"
)

// Verify validates the configuration before any network activity. It
// returns ErrInvalidConfiguration describing the first problem found.
func Verify(cfg *ClientConfig) error {
	if cfg == nil {
		return domain.ErrInvalidConfiguration.WithDetails("configuration is nil")
	}
	sc := cfg.Client.sessionConfig()
	if err := sc.ValidateOptions(); err != nil {
		return err
	}
	if cfg.Client.ContactFailureCeiling == 0 {
		return domain.ErrInvalidConfiguration.WithDetails("contact-failure-ceiling must be positive")
	}
	if cfg.Client.RequestTimeout < 0 {
		return domain.ErrInvalidConfiguration.WithDetails("request-timeout must not be negative")
	}
	if !logger.ValidLevel(cfg.Log.Level) {
		return domain.ErrInvalidConfiguration.WithDetails(fmt.Sprintf("log.level %q is not one of debug, info, warn, error", cfg.Log.Level))
	}
	if !logger.ValidFormat(cfg.Log.Format) {
		return domain.ErrInvalidConfiguration.WithDetails(fmt.Sprintf("log.format %q is not one of json, text", cfg.Log.Format))
	}
	return nil
}
