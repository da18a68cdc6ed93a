package types

import "github.com/sandeand001/classroom-boss-fight/internal/arena"

// Client message types on the renderer websocket.
const (
	MsgHit         = "Hit"
	MsgMiss        = "Miss"
	MsgUndo        = "Undo"
	MsgReset       = "Reset"
	MsgToggleTimer = "ToggleTimer"
)

// Server message types.
const (
	MsgStateSnapshot = "StateSnapshot"
	MsgError         = "Error"
)

type ClientMessage struct {
	Type  string `json:"type"`
	Guild *int   `json:"guild,omitempty"`
}

type ServerMessage struct {
	Type    string      `json:"type"` // "StateSnapshot" | "Error"
	Version int         `json:"version"`
	State   *arena.View `json:"state,omitempty"`
	Error   string      `json:"error,omitempty"`
}
