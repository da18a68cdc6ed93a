package arena

import (
	"github.com/sandeand001/classroom-boss-fight/internal/engine"
	"github.com/sandeand001/classroom-boss-fight/internal/relay"
	"github.com/sandeand001/classroom-boss-fight/internal/settings"
)

type Msg interface{ isArenaMsg() }

// Result answers a request that may fail.
type Result struct {
	View View
	Err  error
}

// FromClient is a local action. Reply is optional.
type FromClient struct {
	Cmd   engine.Command
	Reply chan Result
}

func (FromClient) isArenaMsg() {}

// FromRelay is an action mirrored from another instance.
type FromRelay struct {
	Msg relay.ControlMessage
}

func (FromRelay) isArenaMsg() {}

type Join struct {
	ClientID string
	Outbox   chan Snapshot
}

func (Join) isArenaMsg() {}

type Leave struct{ ClientID string }

func (Leave) isArenaMsg() {}

type Configure struct {
	Settings settings.Settings
	Reply    chan Result
}

func (Configure) isArenaMsg() {}

// Edit applies a raw settings document against the arena's current
// configuration (see settings.Edit).
type Edit struct {
	Raw   []byte
	Reply chan Result
}

func (Edit) isArenaMsg() {}

type ToggleTimer struct {
	Reply chan View
}

func (ToggleTimer) isArenaMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isArenaMsg() {}

type GetSettings struct {
	Reply chan settings.Settings
}

func (GetSettings) isArenaMsg() {}

type Shutdown struct{}

func (Shutdown) isArenaMsg() {}
