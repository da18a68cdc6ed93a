package arena

import (
	"github.com/sandeand001/classroom-boss-fight/internal/assets"
	"github.com/sandeand001/classroom-boss-fight/internal/engine"
)

// Snapshot is what subscribers receive after every change.
type Snapshot struct {
	Version int
	View    View
}

type Timer struct {
	Running   bool  `json:"running"`
	ElapsedMS int64 `json:"elapsedMs"`
}

// View is everything a renderer needs to draw the fight.
type View struct {
	Version    int               `json:"version"`
	BossName   string            `json:"bossName"`
	BossHP     int               `json:"bossHP"`
	BossHPMax  int               `json:"bossHPMax"`
	Subject    string            `json:"subject"`
	Background string            `json:"background"`
	Images     map[string]string `json:"images"`
	Sounds     map[string]string `json:"sounds"`
	Guilds     []engine.Guild    `json:"guilds"`
	Status     engine.Status     `json:"status"`
	LastHit    int               `json:"lastHit"`
	Victory    *engine.Victory   `json:"victory,omitempty"`
	UndoDepth  int               `json:"undoDepth"`
	Log        []string          `json:"log"`
	Timer      Timer             `json:"timer"`
	NumClients int               `json:"-"`
}

func (a *Arena) view() View {
	st := a.fight.State()
	v := View{
		Version:    a.version,
		BossName:   st.BossName,
		BossHP:     st.BossHP,
		BossHPMax:  st.BossHPMax,
		Subject:    a.settings.BossSubject,
		Background: a.settings.BgName,
		Images:     make(map[string]string, len(assets.Variants)),
		Sounds:     make(map[string]string, len(assets.Cues)),
		Guilds:     st.Guilds,
		Status:     a.fight.Status(),
		LastHit:    st.LastHit,
		UndoDepth:  a.fight.History().Len(),
		Log:        a.log.Lines(),
		Timer:      a.timer.read(a.now()),
		NumClients: len(a.clients),
	}
	for _, variant := range assets.Variants {
		if custom := a.settings.Imgs[string(variant)]; custom != "" {
			v.Images[string(variant)] = custom
			continue
		}
		v.Images[string(variant)] = assets.ImageURL(a.settings.BossSubject, variant)
	}
	for _, cue := range assets.Cues {
		v.Sounds[string(cue)] = assets.SoundURL(a.settings.BossSubject, cue)
	}
	if v.Status == engine.StatusVictory {
		vic := engine.Attribute(st)
		v.Victory = &vic
	}
	return v
}
