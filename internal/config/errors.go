package config

import "errors"

var (
	// ErrInvalidConfig wraps every Validate failure and unparsable prize curve.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig wraps failures reading the YAML file, the dotenv file or the environment.
	ErrLoadConfig = errors.New("load config failed")
)
