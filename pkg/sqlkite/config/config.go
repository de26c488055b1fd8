// Package config reads settings from the environment. Values may come from .env files
// in a config folder, with an optional per-environment file layered on top.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config provides string settings by key.
type Config interface {
	Get(key string) string
	GetOrDefault(key, defaultValue string) string
}

type logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

const (
	defaultFileName = ".env"
	// appEnvKey selects the override file .<APP_ENV>.env. With APP_ENV unset,
	// .local.env is tried instead.
	appEnvKey = "APP_ENV"
)

// EnvLoader is a Config backed by process environment variables.
type EnvLoader struct {
	logger logger
}

// NewEnvFile loads folder/.env and then the override file into the environment and
// returns a Config reading from it. Variables already present in the process
// environment win over .env; the override file wins over both.
func NewEnvFile(folder string, logger logger) Config {
	e := &EnvLoader{logger: logger}
	e.read(folder)

	return e
}

func (e *EnvLoader) read(folder string) {
	defaultFile := filepath.Join(folder, defaultFileName)

	override := ".local.env"
	if env := os.Getenv(appEnvKey); env != "" {
		override = "." + env + ".env"
	}

	overrideFile := filepath.Join(folder, override)

	if err := godotenv.Load(defaultFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			e.logger.Warnf("failed to load config from file: %v, Err: %v", defaultFile, err)
		} else {
			e.logger.Debugf("no %v found, using environment only", defaultFile)
		}
	} else {
		e.logger.Infof("loaded config from file: %v", defaultFile)
	}

	if err := godotenv.Overload(overrideFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			e.logger.Warnf("failed to load config from file: %v, Err: %v", overrideFile, err)
		}

		return
	}

	e.logger.Infof("loaded config from file: %v", overrideFile)
}

func (*EnvLoader) Get(key string) string {
	return os.Getenv(key)
}

func (*EnvLoader) GetOrDefault(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}

	return defaultValue
}

// MapConfig is a Config over a fixed map, used in tests and by callers that assemble
// settings themselves.
type MapConfig map[string]string

// NewMockConfig returns a MapConfig over values.
func NewMockConfig(values map[string]string) MapConfig {
	return MapConfig(values)
}

func (m MapConfig) Get(key string) string {
	return m[key]
}

func (m MapConfig) GetOrDefault(key, defaultValue string) string {
	if v, ok := m[key]; ok && v != "" {
		return v
	}

	return defaultValue
}
