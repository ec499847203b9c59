// Package sqlscript writes the flood tables as a .sql script for manual
// execution in a query tool, instead of connecting to a database.
package sqlscript

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/sfas-observations/floodload/dialect"
	"github.com/sfas-observations/floodload/floodmap"
	"github.com/sfas-observations/floodload/translate"
)

var ErrOutputExists = errors.New("output file already exists")

const (
	sectionTables       = "-- Table Setup"
	sectionDepthClasses = "-- Populating Depth Lookup Table"
	sectionRows         = "-- Populating Flood Map Data"
)

type Options struct {
	Path      string
	Overwrite bool
	// BatchSize is the number of rows between batch separators, 0 disables them.
	BatchSize  int
	Dialect    dialect.Dialect
	Translator translate.Translator
	Logger     zerolog.Logger
}

// Target writes to a temporary file next to the output, which replaces the
// output on Commit.
type Target struct {
	opts    Options
	file    *os.File
	w       *bufio.Writer
	section string
	// pending is set while statements follow the last separator
	pending bool
	rows    int
}

func Open(opts Options) (*Target, error) {
	if !opts.Overwrite {
		if _, err := os.Stat(opts.Path); err == nil {
			return nil, fmt.Errorf("%w: %s (use --overwrite)", ErrOutputExists, opts.Path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	dir, base := filepath.Split(opts.Path)
	if dir == "" {
		dir = "."
	}
	file, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("could not create script file: %w", err)
	}
	return &Target{opts: opts, file: file, w: bufio.NewWriter(file)}, nil
}

func (t *Target) EnsureTable(_ context.Context, table floodmap.Table) error {
	if err := t.enterSection(sectionTables); err != nil {
		return err
	}
	if err := t.statement(t.opts.Dialect.CreateTable(table, t.opts.Translator.ColumnType())); err != nil {
		return err
	}
	return t.separator()
}

func (t *Target) Begin(context.Context) error {
	if t.file == nil {
		return errors.New("script is closed")
	}
	return nil
}

func (t *Target) WriteDepthClass(_ context.Context, dc floodmap.DepthClass) error {
	query, args := t.opts.Dialect.InsertDepthClass(dc)
	inlined, err := dialect.Inline(query, args...)
	if err != nil {
		return err
	}
	if err = t.enterSection(sectionDepthClasses); err != nil {
		return err
	}
	return t.statement(inlined)
}

func (t *Target) WriteRow(_ context.Context, row floodmap.Row) error {
	value, err := t.opts.Translator.Value(row.Geometry)
	if err != nil {
		return fmt.Errorf("translating geometry: %w", err)
	}
	query, args := t.opts.Dialect.InsertRow(t.opts.Translator.Placeholder(), row, value)
	inlined, err := dialect.Inline(query, args...)
	if err != nil {
		return err
	}
	if err = t.enterSection(sectionRows); err != nil {
		return err
	}
	if err = t.statement(inlined); err != nil {
		return err
	}
	t.rows++
	if t.opts.BatchSize > 0 && t.rows%t.opts.BatchSize == 0 {
		return t.separator()
	}
	return nil
}

// Commit terminates the last batch and moves the script into place.
func (t *Target) Commit(context.Context) error {
	if t.file == nil {
		return errors.New("script is closed")
	}
	if err := t.separator(); err != nil {
		return err
	}
	if err := t.w.Flush(); err != nil {
		return err
	}
	if err := t.file.Sync(); err != nil {
		return err
	}
	tmp := t.file.Name()
	err := t.file.Close()
	t.file = nil
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err = os.Rename(tmp, t.opts.Path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("could not move script into place: %w", err)
	}
	t.opts.Logger.Info().Str("output", t.opts.Path).Int("rows", t.rows).Msg("SQL script generated")
	return nil
}

// Rollback discards the temporary file.
func (t *Target) Rollback(context.Context) error {
	if t.file == nil {
		return nil
	}
	tmp := t.file.Name()
	closeErr := t.file.Close()
	t.file = nil
	if err := os.Remove(tmp); err != nil {
		return err
	}
	return closeErr
}

func (t *Target) Close() error {
	return t.Rollback(context.Background())
}

func (t *Target) enterSection(section string) error {
	if t.file == nil {
		return errors.New("script is closed")
	}
	if t.section == section {
		return nil
	}
	if t.section != "" {
		if err := t.separator(); err != nil {
			return err
		}
		if _, err := t.w.WriteString("\n"); err != nil {
			return err
		}
	}
	t.section = section
	_, err := t.w.WriteString(section + "\n")
	return err
}

func (t *Target) statement(s string) error {
	if _, err := t.w.WriteString(s + ";\n"); err != nil {
		return err
	}
	t.pending = true
	return nil
}

func (t *Target) separator() error {
	sep := t.opts.Dialect.BatchSeparator()
	if sep == "" || !t.pending {
		return nil
	}
	t.pending = false
	_, err := t.w.WriteString(sep + "\n")
	return err
}
