package arena

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sandeand001/classroom-boss-fight/internal/engine"
)

func TestActionLog_NewestFirstAndCapped(t *testing.T) {
	var l actionLog
	at := time.Date(2026, 3, 4, 13, 5, 9, 0, time.UTC)
	for i := 0; i < logCapacity+5; i++ {
		l.add(at, fmt.Sprintf("line %d", i))
	}

	lines := l.Lines()
	assert.Len(t, lines, logCapacity)
	assert.Equal(t, fmt.Sprintf("[13:05:09] line %d", logCapacity+4), lines[0])
	assert.True(t, strings.HasSuffix(lines[len(lines)-1], "line 5"))
}

func TestDescribe(t *testing.T) {
	st := engine.State{
		BossName:  "Story Sphinx",
		BossHPMax: 4,
		BossHP:    0,
		Guilds: []engine.Guild{
			{Name: "Owls", HPMax: 3, HP: 2, Hits: 3},
			{Name: "Foxes", HPMax: 3, HP: 0, Hits: 1},
		},
		LastHit: 1,
	}

	cases := []struct {
		name  string
		event engine.Event
		want  string
	}{
		{name: "hit", event: engine.Event{Type: engine.EvtHit, Guild: 1}, want: "Foxes landed a HIT! Boss HP 0/4"},
		{name: "miss", event: engine.Event{Type: engine.EvtMiss, Guild: 0}, want: "Owls MISSED! They lose 1 heart (2/3)."},
		{name: "already ko", event: engine.Event{Type: engine.EvtAlreadyKO, Guild: 1}, want: "Foxes is already KO'd. No further penalty."},
		{name: "defeat", event: engine.Event{Type: engine.EvtDefeat, Guild: engine.NoGuild}, want: "All guilds are KO'd! The boss prevails..."},
		{
			name:  "victory",
			event: engine.Event{Type: engine.EvtVictory, Guild: 1, Victory: &engine.Victory{Finisher: 1, TopContributor: 0, TopHits: 3}},
			want:  "Story Sphinx Defeated! Final blow by Foxes. Top contributor: Owls (3).",
		},
		{
			name:  "victory without contributor",
			event: engine.Event{Type: engine.EvtVictory, Guild: 1, Victory: &engine.Victory{Finisher: 1, TopContributor: engine.NoGuild}},
			want:  "Story Sphinx Defeated! Final blow by Foxes. Top contributor: nobody.",
		},
		{name: "reset", event: engine.Event{Type: engine.EvtReset, Guild: engine.NoGuild}, want: "Fight reset."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Describe(tc.event, st))
		})
	}
}
