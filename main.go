package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kaireichart/vor-nav-display/catalog"
	"github.com/kaireichart/vor-nav-display/config"
	"github.com/kaireichart/vor-nav-display/display"
	"github.com/kaireichart/vor-nav-display/events"
	"github.com/kaireichart/vor-nav-display/frame"
	"github.com/kaireichart/vor-nav-display/hub"
	"github.com/kaireichart/vor-nav-display/log"
	"github.com/kaireichart/vor-nav-display/origin"
	"github.com/kaireichart/vor-nav-display/producer"
	"github.com/kaireichart/vor-nav-display/tiles"
	"github.com/kaireichart/vor-nav-display/update"
)

const usage = `usage: vornav [serve] [flags]
       vornav tiles import [flags] DIR
       vornav fir [flags]
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "vornav:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cmd := "serve"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		return serve(ctx, args)
	case "tiles":
		if len(args) == 0 || args[0] != "import" {
			return errors.New("tiles: expected the import subcommand\n" + usage)
		}
		return importTiles(ctx, args[1:])
	case "fir":
		return generateFIR(args)
	case "help":
		fmt.Print(usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func serve(ctx context.Context, args []string) error {
	cfg, _, err := config.Load("vornav", args)
	if err != nil {
		return err
	}

	lg := log.New(cfg.Log.Level, cfg.Log.Dir)
	fmt.Fprintf(os.Stderr, "logging to %s\n", lg.LogFile)

	journal, err := events.Open(cfg.Events.Dir, lg)
	if err != nil {
		return err
	}
	defer journal.Close()

	var stations *catalog.Catalog
	if cfg.Catalog != "" {
		if stations, err = catalog.Load(cfg.Catalog); err != nil {
			return err
		}
		lg.Info("station catalog loaded", "path", cfg.Catalog, "stations", stations.Len())
	}

	var tileSource hub.TileSource
	if cfg.TileDB != "" {
		store, err := tiles.Open(cfg.TileDB, tiles.Options{CacheSize: cfg.Tiles.CacheSize, CacheTTL: cfg.Tiles.CacheTTL}, lg)
		if err != nil {
			return err
		}
		defer store.Close()
		tileSource = store
	} else {
		lg.Warn("no tile database configured, the map has no background")
	}

	// Input and output channels: our own stdio, or a supervised producer.
	var input io.Reader = os.Stdin
	var output io.Writer = bufio.NewWriter(os.Stdout)
	var sup *producer.Supervisor
	var producerState hub.ProducerState
	if cfg.Producer.Command != "" {
		program, err := producer.ParseCommand(cfg.Producer.Command)
		if err != nil {
			return err
		}
		sup = producer.NewSupervisor(program, journal, lg.With("component", "producer"))
		stdout, stdin, err := sup.Start(ctx)
		if err != nil {
			return err
		}
		defer stdout.Close()
		input, output = stdout, stdin
		producerState = sup
	}

	var h *hub.Hub
	engine := display.NewEngine(display.PublisherFunc(func(v display.View) { h.Publish(v) }), journal, lg.With("component", "engine"))

	picker := origin.NewPicker(engine, output, lg).WithReporter(journal)
	if stations != nil {
		picker.WithResolver(stations)
	}

	h = hub.New(hub.Options{
		Picker:   picker,
		Views:    engine,
		Tiles:    tileSource,
		Catalog:  stations,
		Journal:  journal,
		Producer: producerState,
		Interval: cfg.Indicator.Interval,
		Logger:   lg.With("component", "hub"),
	})

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error { return engine.Run(ctx) })
	eg.Go(func() error { return h.Run(ctx) })

	// The read worker is not part of the group: a read from our own stdin
	// cannot be interrupted, so shutdown must not wait for it.
	go readUpdates(ctx, input, cfg.Frame.MaxBytes, engine, journal, lg)

	eg.Go(func() error {
		lg.Infof("display listening on %s", cfg.Listen)
		fmt.Fprintf(os.Stderr, "display at http://%s\n", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		lg.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			lg.Warnf("http shutdown: %v", err)
		}
		if sup != nil {
			if err := sup.Stop(); err != nil && !errors.Is(err, producer.ErrNotRunning) {
				lg.Warnf("stopping producer: %v", err)
			}
		}
		return nil
	})

	return eg.Wait()
}

// readUpdates is the read worker: it reconstructs frames from input,
// decodes them and queues them on the engine until EOF. The display stays
// up with its last state after the input closes.
func readUpdates(ctx context.Context, input io.Reader, maxBytes int, engine *display.Engine, journal *events.Journal, lg *log.Logger) {
	scanner := frame.Scanner{
		MaxBytes: maxBytes,
		Logger:   lg,
		OnDrop:   journal.FrameDropped,
	}
	err := scanner.Scan(ctx, input, func(b []byte) {
		u, err := update.Decode(b)
		if err != nil {
			lg.Warn("discarding undecodable update", "error", err)
			journal.DecodeFailed(err)
			return
		}
		if err := engine.Update(ctx, u); err != nil {
			lg.Debugf("update not applied: %v", err)
		}
	})

	switch {
	case errors.Is(err, context.Canceled):
	case err != nil:
		lg.Error("input failed", "error", err)
		journal.InputClosed()
	default:
		journal.InputClosed()
	}
}
