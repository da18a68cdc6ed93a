package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sandeand001/classroom-boss-fight/internal/arena"
	"github.com/sandeand001/classroom-boss-fight/internal/assets"
	"github.com/sandeand001/classroom-boss-fight/internal/config"
	"github.com/sandeand001/classroom-boss-fight/internal/httpapi"
	"github.com/sandeand001/classroom-boss-fight/internal/kv"
	"github.com/sandeand001/classroom-boss-fight/internal/logging"
	"github.com/sandeand001/classroom-boss-fight/internal/relay"
	"github.com/sandeand001/classroom-boss-fight/internal/settings"
)

func main() {
	os.Exit(serve())
}

// serve returns the process exit code so deferred cleanup runs before exit.
func serve() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	var outputs []string
	if cfg.LogFile != "" {
		outputs = append(outputs, cfg.LogFile)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, outputs...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) (err error) {
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
	}()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	closers = append(closers, store.Close)

	slot, closeSlot, err := openSlot(ctx, cfg, log)
	if err != nil {
		return err
	}
	if closeSlot != nil {
		closers = append(closers, closeSlot)
	}
	rl := relay.New(slot, log.Named("relay"))

	a, err := arena.New(ctx, arena.Options{
		Settings:     settings.Load(ctx, store, log),
		Store:        store,
		Relay:        rl,
		HistoryDepth: cfg.HistoryDepth,
		Logger:       log.Named("arena"),
	})
	if err != nil {
		return err
	}

	hash, err := dockTokenHash(cfg)
	if err != nil {
		return err
	}
	deps := httpapi.Deps{
		Arena:         a,
		Assets:        assets.New(os.DirFS(cfg.AssetsDir), log.Named("assets")),
		Relay:         rl,
		DockTokenHash: hash,
		Logger:        log.Named("http"),
	}
	// A remote slot belongs to another server; only serve slots we own.
	if cfg.Relay == config.RelayMemory || cfg.Relay == config.RelayPostgres {
		deps.Slot = slot
	}
	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.SetupRoutes(deps)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr), zap.String("relay", string(cfg.Relay)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		a.Post(arena.Shutdown{})
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(cfg config.Config) (kv.Store, error) {
	if cfg.SettingsPath == "" {
		return kv.NewMemory(), nil
	}
	return kv.OpenSQLite(cfg.SettingsPath)
}

func openSlot(ctx context.Context, cfg config.Config, log *zap.Logger) (relay.Slot, func() error, error) {
	switch cfg.Relay {
	case config.RelayMemory:
		return relay.NewMemorySlot(), nil, nil
	case config.RelayPostgres:
		s, err := relay.OpenPostgres(ctx, cfg.PostgresDSN, cfg.RelayPath, log.Named("relay"))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.RelayRemote:
		s, err := relay.DialRemote(ctx, cfg.RelayURL, cfg.DockToken, log.Named("relay"))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, nil
}

// dockTokenHash prefers a stored hash and otherwise hashes a plain token.
func dockTokenHash(cfg config.Config) ([]byte, error) {
	if cfg.DockTokenHash != "" {
		return []byte(cfg.DockTokenHash), nil
	}
	if cfg.DockToken == "" {
		return nil, nil
	}
	return httpapi.HashToken(cfg.DockToken)
}
