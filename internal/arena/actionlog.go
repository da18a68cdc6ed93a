package arena

import (
	"fmt"
	"time"

	"github.com/sandeand001/classroom-boss-fight/internal/engine"
)

const logCapacity = 50

// actionLog keeps the most recent lines, newest first.
type actionLog struct {
	lines []string
}

func (l *actionLog) add(at time.Time, text string) {
	line := fmt.Sprintf("[%s] %s", at.Format("15:04:05"), text)
	l.lines = append([]string{line}, l.lines...)
	if len(l.lines) > logCapacity {
		l.lines = l.lines[:logCapacity]
	}
}

func (l *actionLog) Lines() []string {
	return append([]string(nil), l.lines...)
}

// Describe renders one engine event against the state after it applied.
func Describe(e engine.Event, st engine.State) string {
	name := func(i int) string {
		if i < 0 || i >= len(st.Guilds) {
			return "nobody"
		}
		return st.Guilds[i].Name
	}

	switch e.Type {
	case engine.EvtHit:
		return fmt.Sprintf("%s landed a HIT! Boss HP %d/%d", name(e.Guild), st.BossHP, st.BossHPMax)
	case engine.EvtMiss:
		g := st.Guilds[e.Guild]
		return fmt.Sprintf("%s MISSED! They lose 1 heart (%d/%d).", g.Name, g.HP, g.HPMax)
	case engine.EvtAlreadyKO:
		return fmt.Sprintf("%s is already KO'd. No further penalty.", name(e.Guild))
	case engine.EvtDefeat:
		return "All guilds are KO'd! The boss prevails..."
	case engine.EvtVictory:
		top := "nobody"
		if e.Victory.TopContributor != engine.NoGuild {
			top = fmt.Sprintf("%s (%d)", name(e.Victory.TopContributor), e.Victory.TopHits)
		}
		return fmt.Sprintf("%s Defeated! Final blow by %s. Top contributor: %s.", st.BossName, name(e.Victory.Finisher), top)
	case engine.EvtUndo:
		return "Last action undone."
	case engine.EvtReset:
		return "Fight reset."
	}
	return string(e.Type)
}
