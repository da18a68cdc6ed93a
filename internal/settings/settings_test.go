package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sandeand001/classroom-boss-fight/internal/kv"
)

func TestLoad_MissingUsesDefaults(t *testing.T) {
	s := Load(context.Background(), kv.NewMemory(), nil)
	assert.Equal(t, Defaults(), s)
	assert.Equal(t, "Number Dragon", s.BossName)
}

func TestLoad_CorruptIsLoggedAndDefaulted(t *testing.T) {
	store := kv.NewMemory()
	require.NoError(t, store.Put(context.Background(), Key, []byte("{not json")))

	core, logs := observer.New(zap.WarnLevel)
	s := Load(context.Background(), store, zap.New(core))

	assert.Equal(t, Defaults(), s)
	assert.Equal(t, 1, logs.FilterMessage("settings corrupt, using defaults").Len())
}

func TestParse_MergesOntoDefaults(t *testing.T) {
	raw := []byte(`{
		"bossName": "Grumpy Owl",
		"bossNameLocked": true,
		"bossHPMax": 12,
		"bossSubject": "phonics",
		"bgName": "castle.png",
		"imgs": {"base": "data:image/png;base64,AAA"},
		"guilds": [{"name": "Red", "hpMax": 5}, {"color": "#000000"}]
	}`)

	s, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "Grumpy Owl", s.BossName)
	assert.True(t, s.BossNameLocked)
	assert.Equal(t, 12, s.BossHPMax)
	assert.Equal(t, "phonics", s.BossSubject)
	assert.Equal(t, "castle.png", s.BgName)
	assert.Equal(t, "data:image/png;base64,AAA", s.Imgs["base"])

	require.Len(t, s.Guilds, 3)
	assert.Equal(t, Guild{Name: "Red", Color: "#f5c542", HPMax: 5}, s.Guilds[0])
	assert.Equal(t, Guild{Name: "Blue Guild", Color: "#000000", HPMax: DefaultGuildHP}, s.Guilds[1])
	assert.Equal(t, "Purple Guild", s.Guilds[2].Name)
}

func TestParse_ClampsAndFollowsSubject(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		wantHP   int
		wantName string
	}{
		{name: "too high", raw: `{"bossHPMax": 99}`, wantHP: MaxBossHP, wantName: "Number Dragon"},
		{name: "negative", raw: `{"bossHPMax": -3}`, wantHP: MinBossHP, wantName: "Number Dragon"},
		{name: "string number", raw: `{"bossHPMax": "6"}`, wantHP: 6, wantName: "Number Dragon"},
		{name: "fraction truncates", raw: `{"bossHPMax": 7.5}`, wantHP: 7, wantName: "Number Dragon"},
		{name: "quoted fraction truncates", raw: `{"bossHPMax": "12.9"}`, wantHP: 12, wantName: "Number Dragon"},
		{name: "not a number keeps default", raw: `{"bossHPMax": "lots", "bossName": "Kept", "bossNameLocked": true}`, wantHP: DefaultBossHP, wantName: "Kept"},
		{name: "unlocked name follows subject", raw: `{"bossName": "Old", "bossSubject": "story-comprehension"}`, wantHP: DefaultBossHP, wantName: "Story Sphinx"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Parse([]byte(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.wantHP, s.BossHPMax)
			assert.Equal(t, tc.wantName, s.BossName)
		})
	}
}

func TestNormalize_ClampsGuildHearts(t *testing.T) {
	s := Defaults()
	s.Guilds[0].HPMax = 1
	s.Guilds[1].HPMax = 9

	n := s.Normalize()
	assert.Equal(t, MinGuildHP, n.Guilds[0].HPMax)
	assert.Equal(t, MaxGuildHP, n.Guilds[1].HPMax)
	assert.Equal(t, 1, s.Guilds[0].HPMax, "normalize must not alias the input")
}

func TestRename_LocksOnlyCustomNames(t *testing.T) {
	s := Defaults()

	custom := s.Rename("  Count Calculus ")
	assert.Equal(t, "Count Calculus", custom.BossName)
	assert.True(t, custom.BossNameLocked)

	back := custom.Rename("Number Dragon")
	assert.False(t, back.BossNameLocked)

	empty := s.Rename("")
	assert.Equal(t, "Boss", empty.BossName)
	assert.True(t, empty.BossNameLocked)
}

func TestNeedsReset(t *testing.T) {
	base := Defaults()

	hp := base
	hp.BossHPMax = 10

	subject := base
	subject.BossSubject = "phonics"

	renamed := base.Rename("Someone Else")
	renamed.Guilds = append([]Guild(nil), base.Guilds...)
	renamed.Guilds[0].Color = "#123456"

	fewer := base
	fewer.Guilds = base.Guilds[:2]

	cases := []struct {
		name string
		next Settings
		want bool
	}{
		{name: "unchanged", next: base, want: false},
		{name: "boss hp max", next: hp, want: true},
		{name: "subject", next: subject, want: true},
		{name: "cosmetic only", next: renamed, want: false},
		{name: "guild count", next: fewer, want: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NeedsReset(base, tc.next))
		})
	}
}

func TestSaveThenLoad(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()

	s := Defaults().Rename("Captain Fractions")
	s.BossHPMax = 15
	require.NoError(t, Save(ctx, store, s))

	got := Load(ctx, store, zap.NewNop())
	assert.Equal(t, "Captain Fractions", got.BossName)
	assert.Equal(t, 15, got.BossHPMax)
}

func TestSetup_CarriesGuilds(t *testing.T) {
	setup := Defaults().Setup()
	require.Len(t, setup.Guilds, 3)
	assert.Equal(t, DefaultBossHP, setup.BossHPMax)
	assert.Equal(t, "Yellow Guild", setup.Guilds[0].Name)
	assert.Equal(t, DefaultGuildHP, setup.Guilds[0].HPMax)
}

func TestParse_GuildHeartsTruncate(t *testing.T) {
	s, err := Parse([]byte(`{"guilds": [{"hpMax": 4.5}, {"hpMax": "2"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 4, s.Guilds[0].HPMax)
	assert.Equal(t, 2, s.Guilds[1].HPMax)
}

func TestParse_MalformedIsTyped(t *testing.T) {
	_, err := Parse([]byte("[1, 2]"))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEdit_LocksAgainstCurrentSubject(t *testing.T) {
	current := Defaults()

	cases := []struct {
		name       string
		raw        string
		wantName   string
		wantLocked bool
	}{
		{name: "custom name locks", raw: `{"bossName": "Captain Fractions"}`, wantName: "Captain Fractions", wantLocked: true},
		{name: "suggestion stays unlocked", raw: `{"bossName": "Number Dragon"}`, wantName: "Number Dragon", wantLocked: false},
		{name: "blank name becomes Boss", raw: `{"bossName": "  "}`, wantName: "Boss", wantLocked: true},
		{name: "old suggestion follows new subject", raw: `{"bossName": "Number Dragon", "bossSubject": "phonics"}`, wantName: "Phonics Wizard", wantLocked: false},
		{name: "explicit lock wins", raw: `{"bossName": "Owl", "bossNameLocked": false}`, wantName: "Number Dragon", wantLocked: false},
		{name: "no name", raw: `{"bossHPMax": 4}`, wantName: "Number Dragon", wantLocked: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Edit(current, []byte(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.wantName, s.BossName)
			assert.Equal(t, tc.wantLocked, s.BossNameLocked)
		})
	}
}

func TestEdit_MalformedKeepsCurrent(t *testing.T) {
	current := Defaults().Rename("Captain Fractions")
	s, err := Edit(current, []byte("{oops"))
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, current, s)
}
