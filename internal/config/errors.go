package config

import "errors"

// Error kinds wrapped by Load so callers can errors.Is on the cause.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)
