// Package settings holds the persisted boss fight configuration.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sandeand001/classroom-boss-fight/internal/engine"
	"github.com/sandeand001/classroom-boss-fight/internal/kv"
)

// Key is the store key the configuration document lives under.
const Key = "bossfight_settings"

const (
	MinBossHP     = 1
	MaxBossHP     = 20
	DefaultBossHP = 8

	MinGuildHP     = 2
	MaxGuildHP     = 5
	DefaultGuildHP = 3

	DefaultSubject    = "math"
	DefaultBackground = "__default__"
)

var subjectNames = map[string]string{
	"math":                "Number Dragon",
	"phonics":             "Phonics Wizard",
	"story-comprehension": "Story Sphinx",
}

// SuggestedName is the boss name that follows a subject while the name is
// not locked.
func SuggestedName(subject string) string {
	if n, ok := subjectNames[subject]; ok {
		return n
	}
	return subject
}

type Guild struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	HPMax int    `json:"hpMax"`
}

type Settings struct {
	BossName       string            `json:"bossName"`
	BossHPMax      int               `json:"bossHPMax"`
	Imgs           map[string]string `json:"imgs"`
	BossSubject    string            `json:"bossSubject"`
	BossNameLocked bool              `json:"bossNameLocked"`
	BgName         string            `json:"bgName"`
	Guilds         []Guild           `json:"guilds"`
}

func Defaults() Settings {
	return Settings{
		BossName:    SuggestedName(DefaultSubject),
		BossHPMax:   DefaultBossHP,
		Imgs:        map[string]string{},
		BossSubject: DefaultSubject,
		BgName:      DefaultBackground,
		Guilds: []Guild{
			{Name: "Yellow Guild", Color: "#f5c542", HPMax: DefaultGuildHP},
			{Name: "Blue Guild", Color: "#3b82f6", HPMax: DefaultGuildHP},
			{Name: "Purple Guild", Color: "#a855f7", HPMax: DefaultGuildHP},
		},
	}
}

// ErrMalformed marks a document that is not a settings object.
var ErrMalformed = errors.New("malformed settings")

// stored mirrors Settings with optional fields so a partial document only
// overrides what it carries. Maxima are raw so numbers and numeric strings
// both parse.
type stored struct {
	BossName       *string           `json:"bossName"`
	BossHPMax      json.RawMessage   `json:"bossHPMax"`
	Imgs           map[string]string `json:"imgs"`
	BossSubject    string            `json:"bossSubject"`
	BossNameLocked *bool             `json:"bossNameLocked"`
	BgName         string            `json:"bgName"`
	Guilds         []storedGuild     `json:"guilds"`
}

type storedGuild struct {
	Name  string          `json:"name"`
	Color string          `json:"color"`
	HPMax json.RawMessage `json:"hpMax"`
}

// Parse merges a stored document onto the defaults. Guilds are matched by
// index; extra stored guilds are ignored.
func Parse(raw []byte) (Settings, error) {
	doc, err := decode(raw)
	if err != nil {
		return Defaults(), err
	}
	return doc.merge().Normalize(), nil
}

// Edit applies a document submitted from the config form on top of the
// defaults. A boss name sent without an explicit lock is locked when it
// differs from the suggestion for current's subject.
func Edit(current Settings, raw []byte) (Settings, error) {
	doc, err := decode(raw)
	if err != nil {
		return current, err
	}
	s := doc.merge()
	if doc.BossName != nil && doc.BossNameLocked == nil {
		s = s.rename(*doc.BossName, current.BossSubject)
	}
	return s.Normalize(), nil
}

func decode(raw []byte) (stored, error) {
	var doc stored
	if err := json.Unmarshal(raw, &doc); err != nil {
		return stored{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return doc, nil
}

func (doc stored) merge() Settings {
	s := Defaults()
	if doc.BossName != nil && *doc.BossName != "" {
		s.BossName = *doc.BossName
	}
	if doc.BossNameLocked != nil {
		s.BossNameLocked = *doc.BossNameLocked
	}
	if n, ok := leadingInt(doc.BossHPMax); ok && n != 0 {
		s.BossHPMax = n
	}
	for k, v := range doc.Imgs {
		s.Imgs[k] = v
	}
	if doc.BossSubject != "" {
		s.BossSubject = doc.BossSubject
	}
	if doc.BgName != "" {
		s.BgName = doc.BgName
	}
	for i, g := range doc.Guilds {
		if i >= len(s.Guilds) {
			break
		}
		if g.Name != "" {
			s.Guilds[i].Name = g.Name
		}
		if g.Color != "" {
			s.Guilds[i].Color = g.Color
		}
		if n, ok := leadingInt(g.HPMax); ok && n != 0 {
			s.Guilds[i].HPMax = n
		}
	}
	return s
}

var leadingDigits = regexp.MustCompile(`^[+-]?\d+`)

// leadingInt reads a JSON number or numeric string, truncating anything
// after the leading integer ("7.5" is 7).
func leadingInt(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	text := string(raw)
	var quoted string
	if json.Unmarshal(raw, &quoted) == nil {
		text = quoted
	}
	m := leadingDigits.FindString(strings.TrimSpace(text))
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Normalize clamps maxima into their allowed ranges and applies the subject
// name when the boss name is not locked.
func (s Settings) Normalize() Settings {
	out := s
	out.BossHPMax = clamp(s.BossHPMax, MinBossHP, MaxBossHP)
	if strings.TrimSpace(out.BossSubject) == "" {
		out.BossSubject = DefaultSubject
	}
	if out.BgName == "" {
		out.BgName = DefaultBackground
	}
	if !out.BossNameLocked || strings.TrimSpace(out.BossName) == "" {
		out.BossName = SuggestedName(out.BossSubject)
	}
	out.Imgs = make(map[string]string, len(s.Imgs))
	for k, v := range s.Imgs {
		out.Imgs[k] = v
	}
	out.Guilds = make([]Guild, len(s.Guilds))
	for i, g := range s.Guilds {
		g.HPMax = clamp(g.HPMax, MinGuildHP, MaxGuildHP)
		out.Guilds[i] = g
	}
	return out
}

// Rename sets the boss name the way the config dialog does: a name that
// differs from the subject's suggestion locks it, an empty name falls back
// to "Boss".
func (s Settings) Rename(name string) Settings {
	return s.rename(name, s.BossSubject)
}

func (s Settings) rename(name, subject string) Settings {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Boss"
	}
	s.BossNameLocked = name != SuggestedName(subject)
	s.BossName = name
	return s
}

// NeedsReset reports whether moving from old to next requires a full fight
// reset instead of an in-place patch.
func NeedsReset(old, next Settings) bool {
	return old.BossHPMax != next.BossHPMax ||
		old.BossSubject != next.BossSubject ||
		len(old.Guilds) != len(next.Guilds)
}

func (s Settings) Setup() engine.Setup {
	setup := engine.Setup{BossName: s.BossName, BossHPMax: s.BossHPMax}
	for _, g := range s.Guilds {
		setup.Guilds = append(setup.Guilds, engine.GuildSetup{Name: g.Name, Color: g.Color, HPMax: g.HPMax})
	}
	return setup
}

// Load reads the settings document. A missing or corrupt document is never
// fatal: defaults are returned and corruption is logged.
func Load(ctx context.Context, store kv.Store, log *zap.Logger) Settings {
	if log == nil {
		log = zap.NewNop()
	}
	raw, err := store.Get(ctx, Key)
	if errors.Is(err, kv.ErrNotFound) {
		return Defaults()
	}
	if err != nil {
		log.Warn("settings unavailable, using defaults", zap.Error(err))
		return Defaults()
	}
	s, err := Parse(raw)
	if err != nil {
		log.Warn("settings corrupt, using defaults", zap.Error(err))
		return Defaults()
	}
	return s
}

func Save(ctx context.Context, store kv.Store, s Settings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := store.Put(ctx, Key, raw); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func clamp(n, lo, hi int) int {
	return max(lo, min(hi, n))
}
