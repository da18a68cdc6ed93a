package dock

import "github.com/gdamore/tcell/v2"

type IntentKind int

const (
	IntentHit IntentKind = iota
	IntentReset
	IntentQuit
)

type Intent struct {
	Kind  IntentKind
	Guild int
}

// KeyIntent maps a key press: 1-9 hit the matching guild, r resets, q, Esc
// and Ctrl-C quit.
func KeyIntent(ev *tcell.EventKey, guilds int) (Intent, bool) {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return Intent{Kind: IntentQuit}, true
	case tcell.KeyRune:
	default:
		return Intent{}, false
	}

	r := ev.Rune()
	switch {
	case r >= '1' && r <= '9':
		g := int(r - '1')
		if g >= guilds {
			return Intent{}, false
		}
		return Intent{Kind: IntentHit, Guild: g}, true
	case r == 'r' || r == 'R':
		return Intent{Kind: IntentReset}, true
	case r == 'q' || r == 'Q':
		return Intent{Kind: IntentQuit}, true
	}
	return Intent{}, false
}
