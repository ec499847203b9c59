package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sfas-observations/floodload/config"
	"github.com/sfas-observations/floodload/dialect"
	"github.com/sfas-observations/floodload/processing"
	"github.com/sfas-observations/floodload/processing/database"
	"github.com/sfas-observations/floodload/processing/gpkg"
	"github.com/sfas-observations/floodload/processing/sqlscript"
	"github.com/sfas-observations/floodload/translate"
)

// openTarget opens the sink selected by cfg.Target.
func openTarget(ctx context.Context, cfg config.Config, log zerolog.Logger) (processing.Target, error) {
	switch cfg.Target {
	case config.TargetPostgres, config.TargetSQLServer:
		target, err := database.Open(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return target, nil
	}

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

	switch cfg.Target {
	case config.TargetSQLScript:
		log.Info().Str("output", cfg.Output).Str("dialect", d.Name()).Int("batch_size", cfg.BatchSize).
			Msg("writing SQL script")
		target, err := sqlscript.Open(sqlscript.Options{
			Path:       cfg.Output,
			Overwrite:  cfg.Overwrite,
			BatchSize:  cfg.BatchSize,
			Dialect:    d,
			Translator: tr,
			Logger:     log,
		})
		if err != nil {
			return nil, err
		}
		return target, nil
	case config.TargetGPKG:
		log.Info().Str("output", cfg.Output).Msg("writing GeoPackage")
		target, err := gpkg.Open(gpkg.Options{
			Path:       cfg.Output,
			Overwrite:  cfg.Overwrite,
			SRID:       cfg.SRID,
			Dialect:    d,
			Translator: tr,
			Logger:     log,
		})
		if err != nil {
			return nil, err
		}
		return target, nil
	}
	return nil, fmt.Errorf("%w: unknown target %s", config.ErrInvalid, cfg.Target)
}
