// Package processing takes care of the logistics around writing the flood
// tables to a Target: table setup, depth classes, then one row per feature.
package processing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sfas-observations/floodload/floodmap"
	"github.com/sfas-observations/floodload/geomhelp"
	"github.com/sfas-observations/floodload/mapslicehelp"
	"github.com/sfas-observations/floodload/metrics"
)

const wktPreviewLength = 80

type Options struct {
	MergeStrategy floodmap.MergeStrategy
	Logger        zerolog.Logger
	// Metrics may be nil.
	Metrics *metrics.Recorder
}

// Stats summarizes an import. Skipped features never reached the target,
// failed ones were rejected by it.
type Stats struct {
	Features         int
	Imported         int
	Skipped          int
	Failed           int
	DepthClasses     int
	DepthClassErrors int
	Conflicts        int
	SetupErrors      int
}

// Errors is the number of features that did not produce a row.
func (s Stats) Errors() int {
	return s.Skipped + s.Failed
}

// Import writes the features to target. Per table and per feature problems
// are logged and counted, the returned error is reserved for failures that
// abort the whole import, after which the transaction is rolled back.
func Import(ctx context.Context, features []floodmap.Feature, target Target, opts Options) (Stats, error) {
	start := time.Now()
	defer func() { opts.Metrics.ImportDuration(time.Since(start).Seconds()) }()

	log := opts.Logger
	stats := Stats{Features: len(features)}
	log.Info().Int("features", len(features)).Msg("found polygon features")
	logExtraProperties(log, features)

	setupTables(ctx, target, &stats, opts)

	extraction, err := floodmap.ExtractDepthClasses(features, opts.MergeStrategy)
	stats.Conflicts = len(extraction.Conflicts)
	opts.Metrics.Conflicts(stats.Conflicts)
	for _, c := range extraction.Conflicts {
		log.Warn().Int64("depth_class", c.Existing.Class).Int("feature", c.Index).
			Stringer("min", c.Incoming.Min).Stringer("max", c.Incoming.Max).
			Stringer("kept_min", c.Existing.Min).Stringer("kept_max", c.Existing.Max).
			Str("strategy", string(opts.MergeStrategy)).
			Msg("conflicting depth class bounds")
	}
	if err != nil {
		return stats, err
	}

	if err = ctx.Err(); err != nil {
		return stats, err
	}
	if err = target.Begin(ctx); err != nil {
		return stats, fmt.Errorf("could not start a transaction: %w", err)
	}

	if err = loadDepthClasses(ctx, target, extraction.Classes, &stats, opts); err != nil {
		return stats, rollback(ctx, target, err)
	}
	log.Info().Int("depth_classes", stats.DepthClasses).Int("errors", stats.DepthClassErrors).
		Msgf("inserted unique depth classes into %s", floodmap.DepthTable)

	if err = importFeatures(ctx, target, features, &stats, opts); err != nil {
		return stats, rollback(ctx, target, err)
	}

	if err = target.Commit(ctx); err != nil {
		return stats, rollback(ctx, target, fmt.Errorf("could not commit: %w", err))
	}
	log.Info().Int("imported", stats.Imported).Int("errors", stats.Errors()).
		Int("skipped", stats.Skipped).Int("failed", stats.Failed).
		Msg("import complete")
	return stats, nil
}

// setupTables creates the tables in order. Failures do not stop the import.
func setupTables(ctx context.Context, target Target, stats *Stats, opts Options) {
	for _, table := range floodmap.Tables() {
		if err := target.EnsureTable(ctx, table); err != nil {
			stats.SetupErrors++
			opts.Metrics.TableSetup(string(table), metrics.ResultFailed)
			opts.Logger.Error().Err(err).Str("table", string(table)).Msg("error creating table")
			continue
		}
		opts.Metrics.TableSetup(string(table), metrics.ResultOK)
	}
}

func loadDepthClasses(ctx context.Context, target Target, classes []floodmap.DepthClass, stats *Stats, opts Options) error {
	for _, dc := range classes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := target.WriteDepthClass(ctx, dc); err != nil {
			stats.DepthClassErrors++
			opts.Metrics.DepthClass(metrics.ResultFailed)
			opts.Logger.Error().Err(err).Int64("depth_class", dc.Class).Msg("error inserting depth class")
			continue
		}
		stats.DepthClasses++
		opts.Metrics.DepthClass(metrics.ResultLoaded)
	}
	return nil
}

func importFeatures(ctx context.Context, target Target, features []floodmap.Feature, stats *Stats, opts Options) error {
	log := opts.Logger
	for _, f := range features {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := floodmap.NewRow(f)
		if err != nil {
			stats.Skipped++
			opts.Metrics.Feature(metrics.ResultSkipped)
			event := log.Warn()
			if !errors.Is(err, floodmap.ErrNoGeometry) && !errors.Is(err, floodmap.ErrNoDepthClass) {
				event = log.Error()
			}
			event.Err(err).Int("feature", f.Index).Msg("skipping feature")
			continue
		}
		if !f.Properties.PolygonID.Valid {
			log.Debug().Int("feature", f.Index).Msg("feature has no PolygonID, using index")
		}
		if geomhelp.IsDegenerate(row.Geometry) {
			log.Warn().Int("feature", f.Index).Str("wkt", geomhelp.WKTPreview(row.Geometry, wktPreviewLength)).
				Msg("degenerate polygon")
		}

		if err = target.WriteRow(ctx, row); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			stats.Failed++
			opts.Metrics.Feature(metrics.ResultFailed)
			log.Error().Err(err).Int("feature", f.Index).Int64("polygon_id", row.PolygonID).Msg("error processing feature")
			continue
		}
		stats.Imported++
		opts.Metrics.Feature(metrics.ResultImported)
	}
	return nil
}

// logExtraProperties lists the property names the loader does not store.
func logExtraProperties(log zerolog.Logger, features []floodmap.Feature) {
	if log.GetLevel() > zerolog.DebugLevel {
		return
	}
	names := make(map[string]struct{})
	for _, f := range features {
		for k := range f.Extra {
			names[k] = struct{}{}
		}
	}
	if len(names) > 0 {
		log.Debug().Strs("properties", mapslicehelp.SortedKeys(names)).Msg("ignoring extra properties")
	}
}

func rollback(ctx context.Context, target Target, cause error) error {
	if err := target.Rollback(context.WithoutCancel(ctx)); err != nil {
		return errors.Join(cause, fmt.Errorf("rollback: %w", err))
	}
	return cause
}
