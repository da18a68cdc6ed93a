// Package dock is the instructor's terminal remote: it drives its own fight from
// the keyboard and mirrors hits and resets through the relay.
package dock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"github.com/sandeand001/classroom-boss-fight/internal/arena"
	"github.com/sandeand001/classroom-boss-fight/internal/engine"
	"github.com/sandeand001/classroom-boss-fight/internal/relay"
	"github.com/sandeand001/classroom-boss-fight/internal/settings"
)

const (
	publishTimeout = 3 * time.Second
	recentLines    = 6
)

type Dock struct {
	screen tcell.Screen
	fight  *engine.Fight
	colors []tcell.Color
	relay  relay.Channel
	log    *zap.Logger

	lines  []string
	remote chan relay.ControlMessage
	failed chan error
}

// New builds a dock over an initialized screen. ch may be nil.
func New(screen tcell.Screen, s settings.Settings, ch relay.Channel, historyDepth int, log *zap.Logger) (*Dock, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s = s.Normalize()
	fight, err := engine.New(s.Setup(), historyDepth)
	if err != nil {
		return nil, fmt.Errorf("new dock: %w", err)
	}
	d := &Dock{
		screen: screen,
		fight:  fight,
		relay:  ch,
		log:    log,
		remote: make(chan relay.ControlMessage, 16),
		failed: make(chan error, 4),
	}
	for _, g := range s.Guilds {
		d.colors = append(d.colors, tcell.GetColor(g.Color))
	}
	return d, nil
}

// State returns a copy of the dock's fight. Only call it when Run is not
// running.
func (d *Dock) State() engine.State { return d.fight.State() }

// Run owns the fight until q/Esc or ctx ends.
func (d *Dock) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := d.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	if d.relay != nil {
		err := d.relay.Subscribe(ctx, func(m relay.ControlMessage) {
			select {
			case d.remote <- m:
			case <-ctx.Done():
			}
		})
		if err != nil {
			d.log.Error("relay subscribe failed", zap.Error(err))
			d.note("Relay unavailable: playing locally.")
		}
	}

	d.draw()
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				intent, ok := KeyIntent(ev, len(d.fight.State().Guilds))
				if !ok {
					continue
				}
				if intent.Kind == IntentQuit {
					return nil
				}
				d.handle(ctx, intent)
			case *tcell.EventResize:
				d.screen.Sync()
			}

		case m := <-d.remote:
			d.applyRemote(m)

		case err := <-d.failed:
			d.note("Relay publish failed: " + err.Error())
		}
		d.draw()
	}
}

func (d *Dock) handle(ctx context.Context, in Intent) {
	switch in.Kind {
	case IntentHit:
		events, err := d.fight.Hit(in.Guild)
		if err != nil {
			d.note(err.Error())
			return
		}
		d.record(events)
		if len(events) > 0 {
			d.publish(ctx, relay.ActionHit, in.Guild)
		}
	case IntentReset:
		d.record(d.fight.Reset())
		d.publish(ctx, relay.ActionReset, engine.NoGuild)
	}
}

// applyRemote replays a mirrored action without publishing it again.
func (d *Dock) applyRemote(m relay.ControlMessage) {
	cmd, err := m.Command()
	if err != nil {
		d.log.Warn("ignoring relayed message", zap.Error(err))
		return
	}
	events, err := d.fight.Apply(cmd)
	if err != nil {
		d.log.Warn("relayed command rejected", zap.String("id", m.ID), zap.Error(err))
		return
	}
	d.record(events)
}

func (d *Dock) publish(ctx context.Context, action relay.Action, guild int) {
	if d.relay == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if err := d.relay.Publish(ctx, action, guild); err != nil {
			d.log.Warn("relay publish failed", zap.String("action", string(action)), zap.Error(err))
			select {
			case d.failed <- err:
			default:
			}
		}
	}()
}

func (d *Dock) record(events []engine.Event) {
	st := d.fight.State()
	for _, e := range events {
		d.note(arena.Describe(e, st))
	}
}

func (d *Dock) note(line string) {
	d.lines = append(d.lines, line)
	if len(d.lines) > recentLines {
		d.lines = d.lines[len(d.lines)-recentLines:]
	}
}

func (d *Dock) draw() {
	st := d.fight.State()
	d.screen.Clear()

	bold := tcell.StyleDefault.Bold(true)
	y := 0
	put(d.screen, 0, y, bold, st.BossName)
	y++
	hearts := strings.Repeat("♥", st.BossHP) + strings.Repeat("♡", st.BossHPMax-st.BossHP)
	put(d.screen, 0, y, tcell.StyleDefault.Foreground(tcell.ColorRed), fmt.Sprintf("%s %d/%d", hearts, st.BossHP, st.BossHPMax))
	if status := d.fight.Status(); status != engine.StatusActive {
		put(d.screen, len([]rune(hearts))+8, y, bold, strings.ToUpper(string(status)))
	}
	y += 2

	for i, g := range st.Guilds {
		style := tcell.StyleDefault
		if i < len(d.colors) && d.colors[i] != tcell.ColorDefault {
			style = style.Foreground(d.colors[i])
		}
		put(d.screen, 0, y, style, fmt.Sprintf("[%d] %-16s hits %-3d hearts %d/%d", i+1, g.Name, g.Hits, g.HP, g.HPMax))
		y++
	}
	y++

	dim := tcell.StyleDefault.Foreground(tcell.ColorGray)
	for _, line := range d.lines {
		put(d.screen, 0, y, dim, line)
		y++
	}
	y++
	put(d.screen, 0, y, dim, "1-9 hit   r reset   q quit")
	d.screen.Show()
}

func put(s tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		s.SetContent(x, y, r, nil, style)
		x++
	}
}
