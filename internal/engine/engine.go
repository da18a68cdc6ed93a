package engine

import (
	"errors"
	"fmt"
)

var ErrGuildOutOfRange = errors.New("guild index out of range")
var ErrInvalidSetup = errors.New("invalid fight setup")
var ErrGuildCountChanged = errors.New("guild count changed")
var ErrUnsupportedCommand = errors.New("unsupported command")

// NoGuild marks an unset guild index (no last hit, no top contributor).
const NoGuild = -1

type Status string

const (
	StatusActive  Status = "active"
	StatusVictory Status = "victory"
	StatusDefeat  Status = "defeat"
)

type Guild struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	HPMax int    `json:"hpMax"`
	HP    int    `json:"hp"`
	Hits  int    `json:"hits"`
}

type State struct {
	BossName  string  `json:"bossName"`
	BossHPMax int     `json:"bossHPMax"`
	BossHP    int     `json:"bossHP"`
	Guilds    []Guild `json:"guilds"`
	LastHit   int     `json:"lastHit"`
}

// GuildSetup is the configurable part of a guild.
type GuildSetup struct {
	Name  string
	Color string
	HPMax int
}

// Setup seeds a fight. Guild count and maxima are fixed until the next Setup.
type Setup struct {
	BossName  string
	BossHPMax int
	Guilds    []GuildSetup
}

func (s Setup) validate() error {
	if s.BossHPMax <= 0 {
		return fmt.Errorf("%w: boss hp max must be positive, got %d", ErrInvalidSetup, s.BossHPMax)
	}
	if len(s.Guilds) == 0 {
		return fmt.Errorf("%w: at least one guild is required", ErrInvalidSetup)
	}
	for i, g := range s.Guilds {
		if g.HPMax <= 0 {
			return fmt.Errorf("%w: guild %d hp max must be positive, got %d", ErrInvalidSetup, i, g.HPMax)
		}
	}
	return nil
}

type CommandType string

const (
	CmdHit   CommandType = "hit"
	CmdMiss  CommandType = "miss"
	CmdUndo  CommandType = "undo"
	CmdReset CommandType = "reset"
)

type Command struct {
	Type  CommandType
	Guild int
}

type EventType string

const (
	EvtHit       EventType = "hit"
	EvtMiss      EventType = "miss"
	EvtAlreadyKO EventType = "already_ko"
	EvtVictory   EventType = "victory"
	EvtDefeat    EventType = "defeat"
	EvtUndo      EventType = "undo"
	EvtReset     EventType = "reset"
)

type Event struct {
	Type  EventType
	Guild int
	// Victory is only set on EvtVictory.
	Victory *Victory
}

// Mutating reports whether the event changed fight state.
func (e Event) Mutating() bool {
	switch e.Type {
	case EvtHit, EvtMiss, EvtUndo, EvtReset:
		return true
	}
	return false
}

// Victory attributes a won fight.
type Victory struct {
	Finisher       int `json:"finisher"`
	TopContributor int `json:"topContributor"`
	TopHits        int `json:"topHits"`
}

// Fight owns one FightState and its undo history. It is not safe for
// concurrent use; a single goroutine drives it.
type Fight struct {
	state   State
	history *History
}

func New(setup Setup, historyDepth int) (*Fight, error) {
	if err := setup.validate(); err != nil {
		return nil, err
	}
	f := &Fight{history: NewHistory(historyDepth)}
	f.state.BossName = setup.BossName
	f.state.BossHPMax = setup.BossHPMax
	f.state.Guilds = make([]Guild, len(setup.Guilds))
	for i, g := range setup.Guilds {
		f.state.Guilds[i] = Guild{Name: g.Name, Color: g.Color, HPMax: g.HPMax}
	}
	f.Reset()
	return f, nil
}

// State returns a deep copy of the live state.
func (f *Fight) State() State {
	s := f.state
	s.Guilds = append([]Guild(nil), f.state.Guilds...)
	return s
}

func (f *Fight) History() *History { return f.history }

func (f *Fight) Status() Status {
	return statusOf(f.state)
}

func statusOf(s State) Status {
	if s.BossHP <= 0 {
		return StatusVictory
	}
	for _, g := range s.Guilds {
		if g.HP > 0 {
			return StatusActive
		}
	}
	return StatusDefeat
}

func (f *Fight) checkGuild(i int) error {
	if i < 0 || i >= len(f.state.Guilds) {
		return fmt.Errorf("%w: %d (have %d guilds)", ErrGuildOutOfRange, i, len(f.state.Guilds))
	}
	return nil
}

func (f *Fight) Apply(cmd Command) ([]Event, error) {
	switch cmd.Type {
	case CmdHit:
		return f.Hit(cmd.Guild)
	case CmdMiss:
		return f.Miss(cmd.Guild)
	case CmdUndo:
		return f.Undo(), nil
	case CmdReset:
		return f.Reset(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCommand, cmd.Type)
	}
}

// Hit lands one point of damage on the boss for guild i. Blocked once the
// fight is over.
func (f *Fight) Hit(i int) ([]Event, error) {
	if err := f.checkGuild(i); err != nil {
		return nil, err
	}
	if f.Status() != StatusActive {
		return nil, nil
	}

	f.history.Push(Capture(f.state))
	f.state.BossHP = clamp(f.state.BossHP-1, 0, f.state.BossHPMax)
	f.state.Guilds[i].Hits++
	f.state.LastHit = i

	events := []Event{{Type: EvtHit, Guild: i}}
	if f.state.BossHP == 0 {
		v := Attribute(f.state)
		events = append(events, Event{Type: EvtVictory, Guild: i, Victory: &v})
	}
	return events, nil
}

// Miss costs guild i one heart. A KO'd guild takes no further penalty and
// nothing is recorded.
func (f *Fight) Miss(i int) ([]Event, error) {
	if err := f.checkGuild(i); err != nil {
		return nil, err
	}
	if f.Status() != StatusActive {
		return nil, nil
	}
	g := &f.state.Guilds[i]
	if g.HP <= 0 {
		return []Event{{Type: EvtAlreadyKO, Guild: i}}, nil
	}

	f.history.Push(Capture(f.state))
	g.HP = clamp(g.HP-1, 0, g.HPMax)

	events := []Event{{Type: EvtMiss, Guild: i}}
	if f.Status() == StatusDefeat {
		events = append(events, Event{Type: EvtDefeat, Guild: NoGuild})
	}
	return events, nil
}

func (f *Fight) Undo() []Event {
	snap, ok := f.history.Pop()
	if !ok {
		return nil
	}
	snap.restore(&f.state)
	return []Event{{Type: EvtUndo, Guild: NoGuild}}
}

func (f *Fight) Reset() []Event {
	f.state.BossHP = f.state.BossHPMax
	for i := range f.state.Guilds {
		f.state.Guilds[i].HP = f.state.Guilds[i].HPMax
		f.state.Guilds[i].Hits = 0
	}
	f.state.LastHit = NoGuild
	f.history.Clear()
	return []Event{{Type: EvtReset, Guild: NoGuild}}
}

// Patch applies a configuration change in place, keeping progress but
// clamping current health to the new maxima.
func (f *Fight) Patch(setup Setup) error {
	if err := setup.validate(); err != nil {
		return err
	}
	if len(setup.Guilds) != len(f.state.Guilds) {
		return fmt.Errorf("%w: have %d, got %d", ErrGuildCountChanged, len(f.state.Guilds), len(setup.Guilds))
	}
	f.state.BossName = setup.BossName
	f.state.BossHPMax = setup.BossHPMax
	f.state.BossHP = min(f.state.BossHP, setup.BossHPMax)
	for i, gs := range setup.Guilds {
		g := &f.state.Guilds[i]
		if gs.Name != "" {
			g.Name = gs.Name
		}
		if gs.Color != "" {
			g.Color = gs.Color
		}
		g.HPMax = gs.HPMax
		g.HP = min(g.HP, gs.HPMax)
	}
	return nil
}

// Attribute resolves the finishing guild and the top contributor. Ties on
// hit count go to the earliest guild; zero hits means no contributor.
func Attribute(s State) Victory {
	v := Victory{Finisher: s.LastHit, TopContributor: NoGuild}
	if v.Finisher < 0 || v.Finisher >= len(s.Guilds) {
		v.Finisher = NoGuild
	}
	for i, g := range s.Guilds {
		if g.Hits > v.TopHits {
			v.TopContributor = i
			v.TopHits = g.Hits
		}
	}
	return v
}

func clamp(n, lo, hi int) int {
	return max(lo, min(hi, n))
}
