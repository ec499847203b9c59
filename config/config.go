// Package config holds the options of an import run, with defaults and
// validation.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/microsoft/go-mssqldb/azuread"

	"github.com/sfas-observations/floodload/dialect"
	"github.com/sfas-observations/floodload/floodmap"
	"github.com/sfas-observations/floodload/translate"
)

const (
	TargetPostgres  = "postgres"
	TargetSQLServer = "sqlserver"
	TargetSQLScript = "sqlscript"
	TargetGPKG      = "gpkg"
)

// SQLPassword selects a plain SQL Server login instead of an Azure AD flow.
const SQLPassword = "SqlPassword"

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Source string
	Target string `default:"postgres" validate:"oneof=postgres sqlserver sqlscript gpkg"`
	// DialectName is only needed for sqlscript, the other targets imply it.
	DialectName string `validate:"omitempty,oneof=postgres sqlserver gpkg"`
	// Format overrides the geometry format of the dialect.
	Format        string `validate:"omitempty,oneof=geojson wkt geography gpkg"`
	SRID          int    `default:"4326" validate:"gt=0"`
	BatchSize     int    `default:"100" validate:"gte=0"`
	MergeStrategy string `default:"first-wins" validate:"oneof=first-wins last-wins reject"`
	Output        string
	Overwrite     bool

	Postgres  Postgres
	SQLServer SQLServer

	LogLevel    string `default:"info" validate:"oneof=trace debug info warn error"`
	LogFormat   string `default:"console" validate:"oneof=console json"`
	MetricsFile string
}

type Postgres struct {
	// DSN wins over the separate fields when set.
	DSN      string
	Host     string `default:"localhost"`
	Port     int    `default:"5432" validate:"gt=0,lte=65535"`
	Database string `default:"postgres"`
	User     string `default:"postgres"`
	Password string
	SSLMode  string `default:"prefer" validate:"oneof=disable allow prefer require verify-ca verify-full"`
}

type SQLServer struct {
	// DSN wins over the separate fields when set.
	DSN                    string
	Server                 string
	Port                   int `default:"1433" validate:"gt=0,lte=65535"`
	Database               string
	User                   string
	Password               string
	Authentication         string `default:"ActiveDirectoryDeviceCode"`
	ApplicationClientID    string
	Encrypt                bool          `default:"true"`
	TrustServerCertificate bool
	LoginTimeout           time.Duration `default:"60s" validate:"gte=0"`
}

// New returns a Config with all defaults applied.
func New() Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		// only fails on malformed default tags
		panic(err)
	}
	return c
}

// Validate checks the field constraints and the combinations of fields.
func (c Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	switch c.Target {
	case TargetSQLScript, TargetGPKG:
		if c.Output == "" {
			return fmt.Errorf("%w: target %s needs an output file", ErrInvalid, c.Target)
		}
	case TargetSQLServer:
		if c.SQLServer.DSN == "" && (c.SQLServer.Server == "" || c.SQLServer.Database == "") {
			return fmt.Errorf("%w: target sqlserver needs a dsn or a server and database", ErrInvalid)
		}
		if err := c.SQLServer.validateAuthentication(); err != nil {
			return err
		}
	}

	if c.DialectName != "" {
		if c.Target == TargetSQLScript && c.DialectName == dialect.GPKG {
			return fmt.Errorf("%w: sqlscript supports the postgres and sqlserver dialects", ErrInvalid)
		}
		if c.Target != TargetSQLScript && c.DialectName != c.Target {
			return fmt.Errorf("%w: dialect %s does not match target %s", ErrInvalid, c.DialectName, c.Target)
		}
	}

	format, err := c.GeometryFormat()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err = translate.New(c.Dialect(), format, c.SRID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err = floodmap.ParseMergeStrategy(c.MergeStrategy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Dialect is the SQL dialect the target writes.
func (c Config) Dialect() string {
	switch c.Target {
	case TargetSQLServer:
		return dialect.SQLServer
	case TargetGPKG:
		return dialect.GPKG
	case TargetSQLScript:
		if c.DialectName != "" {
			return c.DialectName
		}
		return dialect.SQLServer
	default:
		return dialect.Postgres
	}
}

// GeometryFormat is the configured format or the default of the dialect.
func (c Config) GeometryFormat() (translate.Format, error) {
	if c.Format != "" {
		return translate.ParseFormat(c.Format)
	}
	return translate.DefaultFormat(c.Dialect())
}

func (c Config) Strategy() floodmap.MergeStrategy {
	s, err := floodmap.ParseMergeStrategy(c.MergeStrategy)
	if err != nil {
		return floodmap.FirstWins
	}
	return s
}

// ConnString returns a libpq keyword/value connection string.
func (p Postgres) ConnString() string {
	if p.DSN != "" {
		return p.DSN
	}
	parts := []string{
		"host=" + quoteKeyword(p.Host),
		"port=" + strconv.Itoa(p.Port),
		"dbname=" + quoteKeyword(p.Database),
		"user=" + quoteKeyword(p.User),
	}
	if p.Password != "" {
		parts = append(parts, "password="+quoteKeyword(p.Password))
	}
	if p.SSLMode != "" {
		parts = append(parts, "sslmode="+p.SSLMode)
	}
	return strings.Join(parts, " ")
}

// ConnString returns the go-mssqldb driver name and a sqlserver:// URL.
// Azure AD flows use the azuread driver.
func (s SQLServer) ConnString() (driverName string, dsn string) {
	driverName = azuread.DriverName
	if strings.EqualFold(s.Authentication, SQLPassword) {
		driverName = "sqlserver"
	}
	if s.DSN != "" {
		return driverName, s.DSN
	}

	q := url.Values{}
	if s.Database != "" {
		q.Set("database", s.Database)
	}
	q.Set("encrypt", strconv.FormatBool(s.Encrypt))
	if s.TrustServerCertificate {
		q.Set("trustservercertificate", "true")
	}
	if s.LoginTimeout > 0 {
		q.Set("connection timeout", strconv.Itoa(int(s.LoginTimeout.Seconds())))
	}
	if driverName == azuread.DriverName {
		q.Set("fedauth", s.Authentication)
		if s.ApplicationClientID != "" {
			q.Set("applicationclientid", s.ApplicationClientID)
		}
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		Host:     net.JoinHostPort(s.Server, strconv.Itoa(s.Port)),
		RawQuery: q.Encode(),
	}
	switch {
	case s.User != "" && s.Password != "":
		u.User = url.UserPassword(s.User, s.Password)
	case s.User != "":
		u.User = url.User(s.User)
	}
	return driverName, u.String()
}

func (s SQLServer) validateAuthentication() error {
	switch {
	case strings.EqualFold(s.Authentication, SQLPassword):
		if s.DSN == "" && s.User == "" {
			return fmt.Errorf("%w: %s needs a user", ErrInvalid, SQLPassword)
		}
	case strings.EqualFold(s.Authentication, azuread.ActiveDirectoryInteractive):
		if s.ApplicationClientID == "" {
			return fmt.Errorf("%w: %s needs an application client id", ErrInvalid, azuread.ActiveDirectoryInteractive)
		}
	case strings.EqualFold(s.Authentication, azuread.ActiveDirectoryDeviceCode),
		strings.EqualFold(s.Authentication, azuread.ActiveDirectoryDefault),
		strings.EqualFold(s.Authentication, azuread.ActiveDirectoryAzCli),
		strings.EqualFold(s.Authentication, azuread.ActiveDirectoryPassword),
		strings.EqualFold(s.Authentication, azuread.ActiveDirectoryManagedIdentity),
		strings.EqualFold(s.Authentication, azuread.ActiveDirectoryServicePrincipal):
	default:
		return fmt.Errorf("%w: unknown sqlserver authentication %q", ErrInvalid, s.Authentication)
	}
	return nil
}

// quoteKeyword quotes a libpq keyword value when it needs it.
func quoteKeyword(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return `'` + v + `'`
}
