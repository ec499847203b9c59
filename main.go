package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/iancoleman/strcase"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/sfas-observations/floodload/config"
	"github.com/sfas-observations/floodload/floodmap"
	"github.com/sfas-observations/floodload/logging"
	"github.com/sfas-observations/floodload/metrics"
	"github.com/sfas-observations/floodload/processing"
	"github.com/sfas-observations/floodload/processing/database"
)

const envPrefix = "FLOODLOAD_"

const (
	SOURCE         string = `source`
	TARGET         string = `target`
	DIALECT        string = `dialect`
	GEOMETRYFORMAT string = `geometry-format`
	SRID           string = `srid`
	BATCHSIZE      string = `batch-size`
	MERGESTRATEGY  string = `merge-strategy`
	OUTPUT         string = `output`
	OVERWRITE      string = `overwrite`

	PGDSN      string = `pg-dsn`
	PGHOST     string = `pg-host`
	PGPORT     string = `pg-port`
	PGDATABASE string = `pg-database`
	PGUSER     string = `pg-user`
	PGPASSWORD string = `pg-password`
	PGSSLMODE  string = `pg-sslmode`

	MSSQLDSN                    string = `mssql-dsn`
	MSSQLSERVER                 string = `mssql-server`
	MSSQLPORT                   string = `mssql-port`
	MSSQLDATABASE               string = `mssql-database`
	MSSQLUSER                   string = `mssql-user`
	MSSQLPASSWORD               string = `mssql-password`
	MSSQLAUTHENTICATION         string = `mssql-authentication`
	MSSQLAPPLICATIONCLIENTID    string = `mssql-application-client-id`
	MSSQLENCRYPT                string = `mssql-encrypt`
	MSSQLTRUSTSERVERCERTIFICATE string = `mssql-trust-server-certificate`
	MSSQLLOGINTIMEOUT           string = `mssql-login-timeout`

	LOGLEVEL    string = `log-level`
	LOGFORMAT   string = `log-format`
	METRICSFILE string = `metrics-file`
)

//nolint:funlen
func main() {
	bootLog := logging.Build(logging.Config{Component: "main"}, nil)
	if err := loadEnvFile(); err != nil {
		bootLog.Fatal().Err(err).Msg("could not load env file")
	}

	app := cli.NewApp()
	app.Name = "floodload"
	app.Usage = "Load GeoJSON flood depth polygons into PostGIS, SQL Server, a SQL script or a GeoPackage"
	app.Version = versioninfo.Short()
	app.Flags = flags()
	app.Action = importAction
	app.Commands = []*cli.Command{
		{
			Name:   "import",
			Usage:  "Import the source FeatureCollection into the target (default)",
			Flags:  flags(),
			Action: importAction,
		},
		{
			Name:   "ping",
			Usage:  "Check that the target database is reachable",
			Flags:  flags(),
			Action: pingAction,
		},
	}

	if err := app.Run(os.Args); err != nil {
		bootLog.Fatal().Err(err).Msg("floodload failed")
	}
}

func envVars(name string) []string {
	return []string{envPrefix + strcase.ToScreamingSnake(name)}
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: SOURCE, Aliases: []string{"s"}, Usage: "Source GeoJSON FeatureCollection", EnvVars: envVars(SOURCE)},
		&cli.StringFlag{Name: TARGET, Aliases: []string{"t"}, Usage: "Target: postgres, sqlserver, sqlscript or gpkg (default: postgres)", EnvVars: envVars(TARGET)},
		&cli.StringFlag{Name: DIALECT, Usage: "SQL dialect of a sqlscript target: sqlserver or postgres (default: sqlserver)", EnvVars: envVars(DIALECT)},
		&cli.StringFlag{Name: GEOMETRYFORMAT, Usage: "Geometry format: geojson, wkt, geography or gpkg (default: per dialect)", EnvVars: envVars(GEOMETRYFORMAT)},
		&cli.IntFlag{Name: SRID, Usage: "Spatial reference id of the geometries (default: 4326)", EnvVars: envVars(SRID)},
		&cli.IntFlag{Name: BATCHSIZE, Usage: "Rows between batch separators in a SQL script (default: 100)", EnvVars: envVars(BATCHSIZE)},
		&cli.StringFlag{Name: MERGESTRATEGY, Usage: "Depth class conflicts: first-wins, last-wins or reject (default: first-wins)", EnvVars: envVars(MERGESTRATEGY)},
		&cli.StringFlag{Name: OUTPUT, Aliases: []string{"o"}, Usage: "Output file of a sqlscript or gpkg target", EnvVars: envVars(OUTPUT)},
		&cli.BoolFlag{Name: OVERWRITE, Usage: "Overwrite the output file if it exists", EnvVars: envVars(OVERWRITE)},

		&cli.StringFlag{Name: PGDSN, Usage: "PostgreSQL connection string, overrides the other pg flags", EnvVars: envVars(PGDSN)},
		&cli.StringFlag{Name: PGHOST, Usage: "PostgreSQL host (default: localhost)", EnvVars: envVars(PGHOST)},
		&cli.IntFlag{Name: PGPORT, Usage: "PostgreSQL port (default: 5432)", EnvVars: envVars(PGPORT)},
		&cli.StringFlag{Name: PGDATABASE, Usage: "PostgreSQL database (default: postgres)", EnvVars: envVars(PGDATABASE)},
		&cli.StringFlag{Name: PGUSER, Usage: "PostgreSQL user (default: postgres)", EnvVars: envVars(PGUSER)},
		&cli.StringFlag{Name: PGPASSWORD, Usage: "PostgreSQL password", EnvVars: envVars(PGPASSWORD)},
		&cli.StringFlag{Name: PGSSLMODE, Usage: "PostgreSQL sslmode (default: prefer)", EnvVars: envVars(PGSSLMODE)},

		&cli.StringFlag{Name: MSSQLDSN, Usage: "SQL Server connection URL, overrides the other mssql flags", EnvVars: envVars(MSSQLDSN)},
		&cli.StringFlag{Name: MSSQLSERVER, Usage: "SQL Server host, e.g. myserver.database.windows.net", EnvVars: envVars(MSSQLSERVER)},
		&cli.IntFlag{Name: MSSQLPORT, Usage: "SQL Server port (default: 1433)", EnvVars: envVars(MSSQLPORT)},
		&cli.StringFlag{Name: MSSQLDATABASE, Usage: "SQL Server database", EnvVars: envVars(MSSQLDATABASE)},
		&cli.StringFlag{Name: MSSQLUSER, Usage: "SQL Server user", EnvVars: envVars(MSSQLUSER)},
		&cli.StringFlag{Name: MSSQLPASSWORD, Usage: "SQL Server password", EnvVars: envVars(MSSQLPASSWORD)},
		&cli.StringFlag{Name: MSSQLAUTHENTICATION, Usage: "SqlPassword or an ActiveDirectory* flow (default: ActiveDirectoryDeviceCode)", EnvVars: envVars(MSSQLAUTHENTICATION)},
		&cli.StringFlag{Name: MSSQLAPPLICATIONCLIENTID, Usage: "Application client id for ActiveDirectoryInteractive", EnvVars: envVars(MSSQLAPPLICATIONCLIENTID)},
		&cli.BoolFlag{Name: MSSQLENCRYPT, Usage: "Encrypt the SQL Server connection (default: true)", EnvVars: envVars(MSSQLENCRYPT)},
		&cli.BoolFlag{Name: MSSQLTRUSTSERVERCERTIFICATE, Usage: "Trust the SQL Server certificate without validation", EnvVars: envVars(MSSQLTRUSTSERVERCERTIFICATE)},
		&cli.DurationFlag{Name: MSSQLLOGINTIMEOUT, Usage: "SQL Server login timeout (default: 60s)", EnvVars: envVars(MSSQLLOGINTIMEOUT)},

		&cli.StringFlag{Name: LOGLEVEL, Usage: "trace, debug, info, warn or error (default: info)", EnvVars: envVars(LOGLEVEL)},
		&cli.StringFlag{Name: LOGFORMAT, Usage: "console or json (default: console)", EnvVars: envVars(LOGFORMAT)},
		&cli.StringFlag{Name: METRICSFILE, Usage: "Write run metrics in the Prometheus text format to this file", EnvVars: envVars(METRICSFILE)},
	}
}

// loadEnvFile loads FLOODLOAD_ENV_FILE, or .env when present. Variables that
// are already set win.
func loadEnvFile() error {
	path := os.Getenv(envPrefix + "ENV_FILE")
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	return godotenv.Load(path)
}

// configFromContext applies the flags that were set on top of the defaults.
//
//nolint:cyclop
func configFromContext(c *cli.Context) config.Config {
	cfg := config.New()
	setString := func(name string, dst *string) {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	setInt := func(name string, dst *int) {
		if c.IsSet(name) {
			*dst = c.Int(name)
		}
	}
	setBool := func(name string, dst *bool) {
		if c.IsSet(name) {
			*dst = c.Bool(name)
		}
	}

	setString(SOURCE, &cfg.Source)
	setString(TARGET, &cfg.Target)
	setString(DIALECT, &cfg.DialectName)
	setString(GEOMETRYFORMAT, &cfg.Format)
	setInt(SRID, &cfg.SRID)
	setInt(BATCHSIZE, &cfg.BatchSize)
	setString(MERGESTRATEGY, &cfg.MergeStrategy)
	setString(OUTPUT, &cfg.Output)
	setBool(OVERWRITE, &cfg.Overwrite)

	setString(PGDSN, &cfg.Postgres.DSN)
	setString(PGHOST, &cfg.Postgres.Host)
	setInt(PGPORT, &cfg.Postgres.Port)
	setString(PGDATABASE, &cfg.Postgres.Database)
	setString(PGUSER, &cfg.Postgres.User)
	setString(PGPASSWORD, &cfg.Postgres.Password)
	setString(PGSSLMODE, &cfg.Postgres.SSLMode)

	setString(MSSQLDSN, &cfg.SQLServer.DSN)
	setString(MSSQLSERVER, &cfg.SQLServer.Server)
	setInt(MSSQLPORT, &cfg.SQLServer.Port)
	setString(MSSQLDATABASE, &cfg.SQLServer.Database)
	setString(MSSQLUSER, &cfg.SQLServer.User)
	setString(MSSQLPASSWORD, &cfg.SQLServer.Password)
	setString(MSSQLAUTHENTICATION, &cfg.SQLServer.Authentication)
	setString(MSSQLAPPLICATIONCLIENTID, &cfg.SQLServer.ApplicationClientID)
	setBool(MSSQLENCRYPT, &cfg.SQLServer.Encrypt)
	setBool(MSSQLTRUSTSERVERCERTIFICATE, &cfg.SQLServer.TrustServerCertificate)
	if c.IsSet(MSSQLLOGINTIMEOUT) {
		cfg.SQLServer.LoginTimeout = c.Duration(MSSQLLOGINTIMEOUT)
	}

	setString(LOGLEVEL, &cfg.LogLevel)
	setString(LOGFORMAT, &cfg.LogFormat)
	setString(METRICSFILE, &cfg.MetricsFile)
	return cfg
}

func importAction(c *cli.Context) error {
	cfg := configFromContext(c)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Source == "" {
		return fmt.Errorf("%w: no source file (--%s)", config.ErrInvalid, SOURCE)
	}
	log := logging.Build(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Component: "import"}, nil)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder := metrics.New(versioninfo.Short())
	defer writeMetrics(cfg, recorder, log)

	log.Info().Str("source", cfg.Source).Str("target", cfg.Target).Msg("=== start import ===")
	start := time.Now()

	features, err := floodmap.ReadFeatureCollection(cfg.Source)
	if err != nil {
		return err
	}

	target, err := openTarget(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := target.Close(); err != nil {
			log.Warn().Err(err).Msg("closing target")
		}
	}()

	stats, err := processing.Import(ctx, features, target, processing.Options{
		MergeStrategy: cfg.Strategy(),
		Logger:        log,
		Metrics:       recorder,
	})
	if err != nil {
		log.Error().Err(err).Int("imported", stats.Imported).Msg("import failed, transaction rolled back")
		return err
	}
	log.Info().Dur("took", time.Since(start)).Msg("=== done import ===")
	return nil
}

func pingAction(c *cli.Context) error {
	cfg := configFromContext(c)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Target != config.TargetPostgres && cfg.Target != config.TargetSQLServer {
		return fmt.Errorf("%w: ping needs a database target, not %s", config.ErrInvalid, cfg.Target)
	}
	log := logging.Build(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Component: "ping"}, nil)

	target, err := database.Open(c.Context, cfg, log)
	if err != nil {
		return err
	}
	defer target.Close()
	if err = target.Ping(c.Context); err != nil {
		return err
	}
	log.Info().Str("target", cfg.Target).Msg("database is reachable")
	return nil
}

func writeMetrics(cfg config.Config, recorder *metrics.Recorder, log zerolog.Logger) {
	if cfg.MetricsFile == "" {
		return
	}
	if err := recorder.WriteTextfile(cfg.MetricsFile); err != nil {
		log.Warn().Err(err).Str("metrics_file", cfg.MetricsFile).Msg("could not write metrics")
	}
}
