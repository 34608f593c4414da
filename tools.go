package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/kaireichart/vor-nav-display/fir"
	"github.com/kaireichart/vor-nav-display/log"
	"github.com/kaireichart/vor-nav-display/tiles"
)

// importTiles loads a directory of downloaded {z}_{x}_{y}.png tiles, or a
// list of individual tile files, into the offline tile database.
func importTiles(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("tiles import", pflag.ContinueOnError)
	dbPath := flags.String("db", "offline_tiles.db", "tile database to create or update")
	maxZoom := flags.Int("max-zoom", 4, "highest zoom level to import")
	server := flags.String("server", tiles.DefaultServer, "tile server URL recorded with each tile")
	verbose := flags.BoolP("verbose", "v", false, "log every missing tile")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		return errors.New("tiles import: expected a tile directory or tile files")
	}

	lvl := slog.LevelInfo
	if !*verbose {
		lvl = slog.LevelError
	}
	lg := log.NewWithWriter(os.Stderr, lvl)

	store, err := tiles.Create(*dbPath, lg)
	if err != nil {
		return err
	}
	defer store.Close()

	var res tiles.ImportResult
	if fi, statErr := os.Stat(flags.Arg(0)); statErr == nil && fi.IsDir() && flags.NArg() == 1 {
		res, err = store.ImportDir(ctx, flags.Arg(0), *maxZoom, *server)
	} else {
		res, err = store.ImportFiles(ctx, flags.Args(), *server)
	}
	if err != nil {
		return err
	}

	st, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("stored %d tiles (%d missing), database now holds %d tiles\n", res.Stored, len(res.Missing), st.Total)
	return nil
}

// generateFIR writes the ident band-pass coefficient table.
func generateFIR(args []string) error {
	flags := pflag.NewFlagSet("fir", pflag.ContinueOnError)
	out := flags.StringP("output", "o", "fir_coeffs_900_1100Hz.h", "output file, - for stdout")
	format := flags.String("format", "c", "output format: c or go")
	pkg := flags.String("package", "fir", "package name for --format go")
	band := fir.IdentBand
	flags.IntVar(&band.Taps, "taps", band.Taps, "filter order (number of taps, odd)")
	flags.Float64Var(&band.Low, "low", band.Low, "lower band edge in Hz")
	flags.Float64Var(&band.High, "high", band.High, "upper band edge in Hz")
	flags.Float64Var(&band.SampleRate, "fs", band.SampleRate, "sample rate in Hz")
	if err := flags.Parse(args); err != nil {
		return err
	}

	coeffs, err := fir.Design(band)
	if err != nil {
		return fmt.Errorf("fir: %w", err)
	}

	var w io.Writer = os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("fir: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch *format {
	case "c":
		err = fir.WriteCHeader(w, coeffs)
	case "go":
		err = fir.WriteGo(w, *pkg, band, coeffs)
	default:
		return fmt.Errorf("fir: unknown format %q", *format)
	}
	if err != nil {
		return fmt.Errorf("fir: %w", err)
	}
	if f, ok := w.(*os.File); ok && f != os.Stdout {
		if err := f.Close(); err != nil {
			return err
		}
	}

	centre := (band.Low + band.High) / 2
	for _, hz := range []float64{0, band.Low, centre, band.High, 2 * band.High} {
		fmt.Fprintf(os.Stderr, "gain at %7.1f Hz: %6.3f\n", hz, fir.Gain(coeffs, hz, band.SampleRate))
	}
	return nil
}
