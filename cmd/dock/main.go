package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sandeand001/classroom-boss-fight/internal/config"
	"github.com/sandeand001/classroom-boss-fight/internal/dock"
	"github.com/sandeand001/classroom-boss-fight/internal/kv"
	"github.com/sandeand001/classroom-boss-fight/internal/logging"
	"github.com/sandeand001/classroom-boss-fight/internal/relay"
	"github.com/sandeand001/classroom-boss-fight/internal/settings"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	// The terminal belongs to the UI; logs go to a file or nowhere.
	log := zap.NewNop()
	if cfg.LogFile != "" {
		if log, err = logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) (err error) {
	s := settings.Defaults()
	if cfg.SettingsPath != "" {
		store, err := kv.OpenSQLite(cfg.SettingsPath)
		if err != nil {
			return err
		}
		s = settings.Load(ctx, store, log)
		if err := store.Close(); err != nil {
			return err
		}
	}

	var slot interface {
		relay.Slot
		Close() error
	}
	switch cfg.Relay {
	case config.RelayRemote:
		slot, err = relay.DialRemote(ctx, cfg.RelayURL, cfg.DockToken, log.Named("relay"))
	case config.RelayPostgres:
		slot, err = relay.OpenPostgres(ctx, cfg.PostgresDSN, cfg.RelayPath, log.Named("relay"))
	default:
		log.Info("dock running without a relay", zap.String("relay", string(cfg.Relay)))
	}
	if err != nil {
		return err
	}

	var ch relay.Channel
	if slot != nil {
		defer func() { err = multierr.Append(err, slot.Close()) }()
		ch = relay.New(slot, log.Named("relay"))
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	d, err := dock.New(screen, s, ch, cfg.HistoryDepth, log.Named("dock"))
	if err != nil {
		return err
	}
	return d.Run(ctx)
}
