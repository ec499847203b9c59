package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/sfas-observations/floodload/config"
	"github.com/sfas-observations/floodload/processing/gpkg"
	"github.com/sfas-observations/floodload/processing/sqlscript"
)

const sample = "floodmap/testdata/flood_depth_sample.geojson"

// runWith parses args like the real app and hands the resulting config to check.
func runWith(t *testing.T, args []string, check func(config.Config)) {
	t.Helper()
	app := cli.NewApp()
	app.Flags = flags()
	app.Action = func(c *cli.Context) error {
		check(configFromContext(c))
		return nil
	}
	require.NoError(t, app.Run(append([]string{"floodload"}, args...)))
}

func TestEnvVars(t *testing.T) {
	assert.Equal(t, []string{"FLOODLOAD_BATCH_SIZE"}, envVars(BATCHSIZE))
	assert.Equal(t, []string{"FLOODLOAD_MSSQL_APPLICATION_CLIENT_ID"}, envVars(MSSQLAPPLICATIONCLIENTID))
}

func TestConfigFromContext_defaults(t *testing.T) {
	runWith(t, nil, func(cfg config.Config) {
		assert.Equal(t, config.New(), cfg)
	})
}

func TestConfigFromContext_flagsAndEnv(t *testing.T) {
	t.Setenv("FLOODLOAD_MSSQL_SERVER", "floods.database.windows.net")
	t.Setenv("FLOODLOAD_BATCH_SIZE", "25")

	runWith(t, []string{
		"-s", "in.geojson", "-t", "sqlscript", "--dialect", "sqlserver", "-o", "out.sql",
		"--overwrite", "--srid", "28992", "--mssql-encrypt=false", "--mssql-login-timeout", "30s",
		"--merge-strategy", "last-wins",
	}, func(cfg config.Config) {
		assert.Equal(t, "in.geojson", cfg.Source)
		assert.Equal(t, config.TargetSQLScript, cfg.Target)
		assert.Equal(t, "out.sql", cfg.Output)
		assert.True(t, cfg.Overwrite)
		assert.Equal(t, 28992, cfg.SRID)
		assert.Equal(t, 25, cfg.BatchSize)
		assert.Equal(t, "last-wins", cfg.MergeStrategy)
		assert.Equal(t, "floods.database.windows.net", cfg.SQLServer.Server)
		assert.False(t, cfg.SQLServer.Encrypt)
		assert.Equal(t, 30*time.Second, cfg.SQLServer.LoginTimeout)
		// untouched defaults
		assert.Equal(t, 1433, cfg.SQLServer.Port)
		assert.Equal(t, "info", cfg.LogLevel)
		require.NoError(t, cfg.Validate())
	})
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floodload.env")
	require.NoError(t, os.WriteFile(path, []byte("FLOODLOAD_TEST_FROM_FILE=yes\n"), 0o600))
	t.Setenv("FLOODLOAD_ENV_FILE", path)
	t.Setenv("FLOODLOAD_TEST_FROM_FILE", "")
	require.NoError(t, os.Unsetenv("FLOODLOAD_TEST_FROM_FILE"))

	require.NoError(t, loadEnvFile())
	assert.Equal(t, "yes", os.Getenv("FLOODLOAD_TEST_FROM_FILE"))
}

func TestOpenTarget_files(t *testing.T) {
	dir := t.TempDir()

	cfg := config.New()
	cfg.Target = config.TargetSQLScript
	cfg.Output = filepath.Join(dir, "floods.sql")
	target, err := openTarget(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &sqlscript.Target{}, target)
	require.NoError(t, target.Close())

	cfg.Target = config.TargetGPKG
	cfg.Output = filepath.Join(dir, "floods.gpkg")
	target, err = openTarget(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &gpkg.Target{}, target)
	require.NoError(t, target.Close())
}

func TestImportAction_sqlScript(t *testing.T) {
	output := filepath.Join(t.TempDir(), "floods.sql")
	metricsFile := filepath.Join(t.TempDir(), "floodload.prom")

	app := cli.NewApp()
	app.Flags = flags()
	app.Action = importAction
	require.NoError(t, app.Run([]string{"floodload",
		"-s", sample, "-t", "sqlscript", "-o", output,
		"--log-level", "error", "--metrics-file", metricsFile,
	}))

	script, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(string(script), "INSERT INTO Flood_Map_Data"))

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `floodload_features_total{result="imported"} 4`)

	// a second run refuses to replace the script
	err = app.Run([]string{"floodload", "-s", sample, "-t", "sqlscript", "-o", output, "--log-level", "error"})
	require.ErrorIs(t, err, sqlscript.ErrOutputExists)
}

func TestImportAction_invalid(t *testing.T) {
	app := cli.NewApp()
	app.Flags = flags()
	app.Action = importAction

	err := app.Run([]string{"floodload", "-t", "gpkg", "-s", sample})
	require.ErrorIs(t, err, config.ErrInvalid)

	err = app.Run([]string{"floodload", "-t", "gpkg", "-o", filepath.Join(t.TempDir(), "x.gpkg")})
	require.ErrorIs(t, err, config.ErrInvalid)
}
