package engine

// Snapshot is a point-in-time copy of everything undo needs to restore.
// Guilds are copied by value so later mutation of the live state never
// reaches a pushed snapshot.
type Snapshot struct {
	BossName  string
	BossHPMax int
	BossHP    int
	Guilds    []Guild
	LastHit   int
}

func Capture(s State) Snapshot {
	return Snapshot{
		BossName:  s.BossName,
		BossHPMax: s.BossHPMax,
		BossHP:    s.BossHP,
		Guilds:    append([]Guild(nil), s.Guilds...),
		LastHit:   s.LastHit,
	}
}

// state rebuilds a detached State from the snapshot.
func (s Snapshot) state() State {
	var st State
	s.restore(&st)
	return st
}

func (s Snapshot) restore(dst *State) {
	dst.BossName = s.BossName
	dst.BossHPMax = s.BossHPMax
	dst.BossHP = s.BossHP
	dst.Guilds = append(dst.Guilds[:0:0], s.Guilds...)
	dst.LastHit = s.LastHit
}
