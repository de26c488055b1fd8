package sql

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/XSAM/otelsql"
	"github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel/attribute"

	// postgres and sqlite drivers register themselves with database/sql.
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/sllt/sqlkite/pkg/sqlkite/config"
	"github.com/sllt/sqlkite/pkg/sqlkite/datasource"
)

var errUnsupportedDriver = errors.New("[sql] unsupported driver dialect")

const (
	dialectMySQL    = "mysql"
	dialectPostgres = "postgres"
	dialectSQLite   = "sqlite"
)

// NewSQL opens the database described by the DB_* settings of cfg, pings it and
// returns the instrumented wrapper.
func NewSQL(ctx context.Context, cfg config.Config, logger datasource.Logger, metrics Metrics, opts ...Option) (*DB, error) {
	dbConfig := config.LoadDBConfig(cfg)
	if err := dbConfig.Validate(); err != nil {
		return nil, err
	}

	return Open(ctx, dbConfig, logger, metrics, opts...)
}

// Open opens dbConfig with an otelsql instrumented driver.
func Open(ctx context.Context, dbConfig *config.DBConfig, logger datasource.Logger, metrics Metrics, opts ...Option) (*DB, error) {
	dsn, err := getDBConnectionString(dbConfig)
	if err != nil {
		return nil, err
	}

	db, err := otelsql.Open(dbConfig.Dialect, dsn,
		otelsql.WithAttributes(attribute.String("db.system", dbConfig.Dialect)))
	if err != nil {
		return nil, fmt.Errorf("could not open connection with '%s': %w", dbConfig.Dialect, err)
	}

	db.SetMaxIdleConns(dbConfig.MaxIdleConn)
	db.SetMaxOpenConns(dbConfig.MaxOpenConn)

	// Every connection to :memory: is a separate database.
	if dbConfig.Dialect == dialectSQLite && strings.Contains(dbConfig.Database, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not connect with '%s' user to '%s' database at '%s': %w",
			dbConfig.User, dbConfig.Database, net.JoinHostPort(dbConfig.HostName, dbConfig.Port), err)
	}

	if logger != nil {
		logger.Infof("connected to '%s' database at '%s'", dbConfig.Database, dbConfig.HostName)
	}

	return NewDB(db, dbConfig, logger, metrics, opts...)
}

func getDBConnectionString(dbConfig *config.DBConfig) (string, error) {
	switch dbConfig.Dialect {
	case dialectMySQL:
		c := mysql.NewConfig()
		c.User = dbConfig.User
		c.Passwd = dbConfig.Password
		c.Net = "tcp"
		c.Addr = net.JoinHostPort(dbConfig.HostName, dbConfig.Port)
		c.DBName = dbConfig.Database
		c.ParseTime = true
		c.InterpolateParams = false

		return c.FormatDSN(), nil
	case dialectPostgres:
		return fmt.Sprintf("host=%v port=%v user=%v password=%v dbname=%v sslmode=%v",
			dbConfig.HostName, dbConfig.Port, dbConfig.User, dbConfig.Password, dbConfig.Database, dbConfig.SSLMode), nil
	case dialectSQLite:
		return fmt.Sprintf("file:%s", dbConfig.Database), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedDriver, dbConfig.Dialect)
	}
}
