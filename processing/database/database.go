// Package database writes the flood tables to a live PostGIS or SQL Server
// database through gorm.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/microsoft/go-mssqldb/azuread" // registers the azuresql driver
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sfas-observations/floodload/config"
	"github.com/sfas-observations/floodload/dialect"
	"github.com/sfas-observations/floodload/floodmap"
	"github.com/sfas-observations/floodload/logging"
	"github.com/sfas-observations/floodload/translate"
)

// ErrPostGISMissing marks errors caused by a database without the PostGIS
// extension.
var ErrPostGISMissing = errors.New("PostGIS is not installed in this database (CREATE EXTENSION postgis)")

const (
	// undefined_function, undefined_object
	pgUndefinedFunction = "42883"
	pgUndefinedObject   = "42704"

	slowThreshold = 500 * time.Millisecond
	savepointName = "floodload_row"
)

type Target struct {
	db         *gorm.DB
	tx         *gorm.DB
	dialect    dialect.Dialect
	translator translate.Translator
	log        zerolog.Logger
}

// Open connects to the database the config targets and pings it.
func Open(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Target, error) {
	d, err := dialect.New(cfg.Dialect())
	if err != nil {
		return nil, err
	}
	format, err := cfg.GeometryFormat()
	if err != nil {
		return nil, err
	}
	tr, err := translate.New(d.Name(), format, cfg.SRID)
	if err != nil {
		return nil, err
	}

	var dialector gorm.Dialector
	switch cfg.Target {
	case config.TargetPostgres:
		dialector = postgres.Open(cfg.Postgres.ConnString())
	case config.TargetSQLServer:
		driverName, dsn := cfg.SQLServer.ConnString()
		dialector = sqlserver.New(sqlserver.Config{DriverName: driverName, DSN: dsn})
	default:
		return nil, fmt.Errorf("target %s is not a database", cfg.Target)
	}
	return OpenDialector(ctx, dialector, d, tr, log)
}

// OpenDialector opens a gorm connection with a single pooled connection, so
// every statement of a run shares one session.
func OpenDialector(ctx context.Context, dialector gorm.Dialector, d dialect.Dialect, tr translate.Translator, log zerolog.Logger) (*Target, error) {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger(log), SkipDefaultTransaction: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", d.Name(), err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err = sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to reach %s: %w", d.Name(), err)
	}
	log.Info().Str("dialect", d.Name()).Str("geometry_format", string(tr.Format())).Msg("connected to database")

	return &Target{db: db, dialect: d, translator: tr, log: log}, nil
}

// Ping checks the connection is still usable.
func (t *Target) Ping(ctx context.Context) error {
	sqlDB, err := t.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// EnsureTable creates the table in its own transaction.
func (t *Target) EnsureTable(ctx context.Context, table floodmap.Table) error {
	query := t.dialect.CreateTable(table, t.translator.ColumnType())
	t.log.Debug().Str("table", string(table)).Msg("ensuring table")
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Exec(query).Error
	})
	if err != nil {
		return fmt.Errorf("creating %s: %w", table, wrapError(err))
	}
	return nil
}

func (t *Target) Begin(ctx context.Context) error {
	if t.tx != nil {
		return errors.New("transaction already started")
	}
	tx := t.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	t.tx = tx
	return nil
}

func (t *Target) WriteDepthClass(ctx context.Context, dc floodmap.DepthClass) error {
	query, args := t.dialect.InsertDepthClass(dc)
	return t.guarded(ctx, query, args)
}

func (t *Target) WriteRow(ctx context.Context, row floodmap.Row) error {
	value, err := t.translator.Value(row.Geometry)
	if err != nil {
		return fmt.Errorf("translating geometry: %w", err)
	}
	query, args := t.dialect.InsertRow(t.translator.Placeholder(), row, value)
	return t.guarded(ctx, query, args)
}

// guarded runs one statement inside a savepoint. A failed statement is
// rolled back to the savepoint so the transaction stays usable.
func (t *Target) guarded(ctx context.Context, query string, args []any) error {
	if t.tx == nil {
		return errors.New("no transaction started")
	}
	tx := t.tx.WithContext(ctx)
	if err := tx.Exec(t.dialect.Savepoint(savepointName)).Error; err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	if err := tx.Exec(query, args...).Error; err != nil {
		if rbErr := tx.Exec(t.dialect.RollbackToSavepoint(savepointName)).Error; rbErr != nil {
			return errors.Join(wrapError(err), fmt.Errorf("rollback to savepoint: %w", rbErr))
		}
		return wrapError(err)
	}
	if release := t.dialect.ReleaseSavepoint(savepointName); release != "" {
		if err := tx.Exec(release).Error; err != nil {
			return fmt.Errorf("release savepoint: %w", err)
		}
	}
	return nil
}

func (t *Target) Commit(context.Context) error {
	if t.tx == nil {
		return errors.New("no transaction started")
	}
	err := t.tx.Commit().Error
	t.tx = nil
	return err
}

func (t *Target) Rollback(context.Context) error {
	if t.tx == nil {
		return nil
	}
	err := t.tx.Rollback().Error
	t.tx = nil
	if errors.Is(err, gorm.ErrInvalidTransaction) {
		return nil
	}
	return err
}

func (t *Target) Close() error {
	if t.tx != nil {
		_ = t.tx.Rollback()
		t.tx = nil
	}
	sqlDB, err := t.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// wrapError marks PostgreSQL errors about missing PostGIS functions or
// types with ErrPostGISMissing.
func wrapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == pgUndefinedFunction || pgErr.Code == pgUndefinedObject) {
		return fmt.Errorf("%w: %w", ErrPostGISMissing, err)
	}
	return err
}

// newGormLogger logs statements at debug level, otherwise only slow
// statements and errors as warnings.
func newGormLogger(log zerolog.Logger) logger.Interface {
	level, writerLevel := logger.Warn, zerolog.WarnLevel
	switch log.GetLevel() {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		level, writerLevel = logger.Info, zerolog.DebugLevel
	case zerolog.Disabled:
		level = logger.Silent
	}
	return logger.New(
		logging.Printf{Logger: log, Level: writerLevel},
		logger.Config{
			SlowThreshold:             slowThreshold,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
