package relay

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sandeand001/classroom-boss-fight/internal/engine"
)

var ErrBadMessage = errors.New("bad control message")

type Action string

const (
	ActionHit   Action = "hit"
	ActionReset Action = "reset"
)

type Payload struct {
	Guild *int `json:"g,omitempty"`
}

// ControlMessage is the value held in the shared slot.
type ControlMessage struct {
	ID        string  `json:"id"`
	Action    Action  `json:"action"`
	Payload   Payload `json:"payload"`
	Timestamp int64   `json:"ts"`
}

func Decode(raw []byte) (ControlMessage, error) {
	var m ControlMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return ControlMessage{}, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if _, err := m.Command(); err != nil {
		return ControlMessage{}, err
	}
	return m, nil
}

// Command maps the message onto the engine operation it replays.
func (m ControlMessage) Command() (engine.Command, error) {
	switch m.Action {
	case ActionHit:
		if m.Payload.Guild == nil {
			return engine.Command{}, fmt.Errorf("%w: hit without guild", ErrBadMessage)
		}
		return engine.Command{Type: engine.CmdHit, Guild: *m.Payload.Guild}, nil
	case ActionReset:
		return engine.Command{Type: engine.CmdReset, Guild: engine.NoGuild}, nil
	default:
		return engine.Command{}, fmt.Errorf("%w: unknown action %q", ErrBadMessage, m.Action)
	}
}
