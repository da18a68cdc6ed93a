// Package arena runs one fight inside a single goroutine and fans render
// views out to subscribers.
package arena

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sandeand001/classroom-boss-fight/internal/engine"
	"github.com/sandeand001/classroom-boss-fight/internal/kv"
	"github.com/sandeand001/classroom-boss-fight/internal/relay"
	"github.com/sandeand001/classroom-boss-fight/internal/settings"
)

const publishTimeout = 3 * time.Second

type Options struct {
	Settings     settings.Settings
	Store        kv.Store      // nil: configuration is not persisted
	Relay        relay.Channel // nil: nothing is mirrored
	HistoryDepth int
	Logger       *zap.Logger
	Clock        func() time.Time
}

type Arena struct {
	inbox    chan Msg
	fight    *engine.Fight
	settings settings.Settings
	depth    int
	version  int
	clients  map[string]chan Snapshot
	log      actionLog
	timer    stopwatch

	store  kv.Store
	relay  relay.Channel
	logger *zap.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(parent context.Context, opts Options) (*Arena, error) {
	s := opts.Settings.Normalize()
	depth := opts.HistoryDepth
	if depth <= 0 {
		depth = engine.DefaultHistoryDepth
	}
	fight, err := engine.New(s.Setup(), depth)
	if err != nil {
		return nil, fmt.Errorf("new arena: %w", err)
	}

	ctx, cancel := context.WithCancel(parent)
	a := &Arena{
		inbox:    make(chan Msg, 64),
		fight:    fight,
		settings: s,
		depth:    depth,
		clients:  make(map[string]chan Snapshot),
		store:    opts.Store,
		relay:    opts.Relay,
		logger:   opts.Logger,
		now:      opts.Clock,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.now == nil {
		a.now = time.Now
	}

	if a.relay != nil {
		err := a.relay.Subscribe(ctx, func(m relay.ControlMessage) {
			a.Post(FromRelay{Msg: m})
		})
		if err != nil {
			// Local play continues without mirroring.
			a.logger.Error("relay subscribe failed", zap.Error(err))
		}
	}

	go a.loop()
	return a, nil
}

// Inbox exposes the mailbox to transports and tests.
func (a *Arena) Inbox() chan<- Msg { return a.inbox }

// Post delivers m unless the arena has stopped.
func (a *Arena) Post(m Msg) bool {
	if a.ctx.Err() != nil {
		return false
	}
	select {
	case a.inbox <- m:
		return true
	case <-a.ctx.Done():
		return false
	}
}

// Done is closed once the loop has exited.
func (a *Arena) Done() <-chan struct{} { return a.done }

func (a *Arena) loop() {
	defer close(a.done)
	for {
		select {
		case <-a.ctx.Done():
			a.shutdown()
			return

		case m := <-a.inbox:
			switch msg := m.(type) {
			case Join:
				a.clients[msg.ClientID] = msg.Outbox
				msg.Outbox <- Snapshot{Version: a.version, View: a.view()}

			case Leave:
				if ch, ok := a.clients[msg.ClientID]; ok {
					close(ch)
					delete(a.clients, msg.ClientID)
				}

			case FromClient:
				err := a.apply(msg.Cmd, true)
				if msg.Reply != nil {
					msg.Reply <- Result{View: a.view(), Err: err}
				}

			case FromRelay:
				cmd, err := msg.Msg.Command()
				if err != nil {
					a.logger.Warn("ignoring relayed message", zap.String("id", msg.Msg.ID), zap.Error(err))
					break
				}
				if err := a.apply(cmd, false); err != nil {
					a.logger.Warn("relayed command rejected", zap.String("id", msg.Msg.ID), zap.Error(err))
				}

			case Configure:
				err := a.configure(msg.Settings)
				if msg.Reply != nil {
					msg.Reply <- Result{View: a.view(), Err: err}
				}

			case Edit:
				next, err := settings.Edit(a.settings, msg.Raw)
				if err == nil {
					err = a.configure(next)
				}
				if msg.Reply != nil {
					msg.Reply <- Result{View: a.view(), Err: err}
				}

			case ToggleTimer:
				a.timer.toggle(a.now())
				a.changed()
				if msg.Reply != nil {
					msg.Reply <- a.view()
				}

			case GetState:
				msg.Reply <- a.view()

			case GetSettings:
				msg.Reply <- a.settings

			case Shutdown:
				a.shutdown()
				return
			}
		}
	}
}

// apply runs cmd on the engine. Local hits and resets that changed the fight
// are mirrored to the relay.
func (a *Arena) apply(cmd engine.Command, local bool) error {
	events, err := a.fight.Apply(cmd)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	st := a.fight.State()
	mutated := false
	for _, e := range events {
		a.log.add(a.now(), Describe(e, st))
		mutated = mutated || e.Mutating()
	}
	a.logger.Debug("command applied",
		zap.String("cmd", string(cmd.Type)),
		zap.Int("guild", cmd.Guild),
		zap.Bool("local", local),
		zap.String("status", string(a.fight.Status())),
	)
	a.changed()

	if local && mutated {
		switch cmd.Type {
		case engine.CmdHit:
			a.publish(relay.ActionHit, cmd.Guild)
		case engine.CmdReset:
			a.publish(relay.ActionReset, engine.NoGuild)
		}
	}
	return nil
}

func (a *Arena) publish(action relay.Action, guild int) {
	if a.relay == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, publishTimeout)
		defer cancel()
		if err := a.relay.Publish(ctx, action, guild); err != nil {
			a.logger.Warn("relay publish failed", zap.String("action", string(action)), zap.Error(err))
		}
	}()
}

func (a *Arena) configure(next settings.Settings) error {
	next = next.Normalize()
	reset := settings.NeedsReset(a.settings, next)

	var fresh *engine.Fight
	if reset {
		var err error
		if fresh, err = engine.New(next.Setup(), a.depth); err != nil {
			return err
		}
	}
	if a.store != nil {
		if err := settings.Save(a.ctx, a.store, next); err != nil {
			return err
		}
	}

	if reset {
		a.fight = fresh
		a.log.add(a.now(), "Fight reset.")
		a.log.add(a.now(), "Boss changed: fight reset to apply new settings.")
	} else if err := a.fight.Patch(next.Setup()); err != nil {
		return err
	}
	a.settings = next
	a.changed()
	return nil
}

func (a *Arena) changed() {
	a.version++
	a.broadcast(Snapshot{Version: a.version, View: a.view()})
}

func (a *Arena) shutdown() {
	for id, ch := range a.clients {
		close(ch)
		delete(a.clients, id)
	}
	a.cancel()
}

func (a *Arena) broadcast(snap Snapshot) {
	for id, ch := range a.clients {
		select {
		case ch <- snap:
		default:
			// Slow client: drop it.
			close(ch)
			delete(a.clients, id)
		}
	}
}
