package config

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTrans "github.com/go-playground/validator/v10/translations/en"
)

// ErrInvalidDBConfig is returned when DBConfig fails validation.
var ErrInvalidDBConfig = errors.New("[config] invalid database configuration")

// DBConfig holds the connection settings of the execution adapter.
type DBConfig struct {
	Dialect     string `env:"DB_DIALECT" validate:"required,oneof=mysql postgres sqlite"`
	HostName    string `env:"DB_HOST" validate:"required_unless=Dialect sqlite"`
	User        string `env:"DB_USER"`
	Password    string `env:"DB_PASSWORD"`
	Port        string `env:"DB_PORT" validate:"omitempty,numeric"`
	Database    string `env:"DB_NAME" validate:"required"`
	SSLMode     string `env:"DB_SSL_MODE" validate:"omitempty,oneof=disable require verify-ca verify-full"`
	MaxIdleConn int    `env:"DB_MAX_IDLE_CONNECTION" validate:"gte=0"`
	MaxOpenConn int    `env:"DB_MAX_OPEN_CONNECTION" validate:"gte=0"`
}

const (
	defaultMaxIdleConn = 2
	defaultMaxOpenConn = 0
)

// LoadDBConfig reads DBConfig from cfg. Unparsable pool sizes fall back to defaults.
func LoadDBConfig(cfg Config) *DBConfig {
	return &DBConfig{
		Dialect:     cfg.Get("DB_DIALECT"),
		HostName:    cfg.Get("DB_HOST"),
		User:        cfg.Get("DB_USER"),
		Password:    cfg.Get("DB_PASSWORD"),
		Port:        cfg.Get("DB_PORT"),
		Database:    cfg.Get("DB_NAME"),
		SSLMode:     cfg.GetOrDefault("DB_SSL_MODE", "disable"),
		MaxIdleConn: intOrDefault(cfg.Get("DB_MAX_IDLE_CONNECTION"), defaultMaxIdleConn),
		MaxOpenConn: intOrDefault(cfg.Get("DB_MAX_OPEN_CONNECTION"), defaultMaxOpenConn),
	}
}

func intOrDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}

	return n
}

var (
	validate     *validator.Validate
	trans        ut.Translator
	validateOnce sync.Once
)

func initValidator() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their environment variable name.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("env"); name != "" {
			return name
		}

		return fld.Name
	})

	loc := en.New()
	uni := ut.New(loc, loc)
	trans, _ = uni.GetTranslator("en")
	_ = enTrans.RegisterDefaultTranslations(validate, trans)
}

// Validate checks the configuration and reports every failing field.
func (c *DBConfig) Validate() error {
	validateOnce.Do(initValidator)

	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("%w: %w", ErrInvalidDBConfig, err)
	}

	msgs := make([]string, 0, len(ve))
	for _, m := range ve.Translate(trans) {
		msgs = append(msgs, m)
	}

	sort.Strings(msgs)

	return fmt.Errorf("%w: %s", ErrInvalidDBConfig, strings.Join(msgs, "; "))
}
