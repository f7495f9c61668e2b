package base

import (
	"errors"

	"github.com/DemandBridge/environment-transfer-tool/internal/config"
)

// LoadConfig reads the config file at path and applies its log level to the
// command logger.
func (c *Command) LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, errors.New("config flag is required")
	}

	cfg, err := config.Load(c.FS, path)
	if err != nil {
		return nil, err
	}
	c.SetLogLevel(cfg.LogLevel)

	return cfg, nil
}
