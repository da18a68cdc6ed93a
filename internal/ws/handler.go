package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sandeand001/classroom-boss-fight/internal/arena"
	"github.com/sandeand001/classroom-boss-fight/internal/engine"
	"github.com/sandeand001/classroom-boss-fight/internal/relay"
	"github.com/sandeand001/classroom-boss-fight/internal/types"
)

var errUnknownType = errors.New("unknown type")
var errMissingGuild = errors.New("missing guild")

const writeTimeout = 3 * time.Second

// Handler streams render views to one renderer and feeds its actions into
// the arena.
func Handler(a *arena.Arena, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan arena.Snapshot, 8)
		clientID := uuid.NewString()
		if !a.Post(arena.Join{ClientID: clientID, Outbox: out}) {
			return
		}
		defer a.Post(arena.Leave{ClientID: clientID})
		log := log.With(zap.String("client", clientID))
		log.Debug("renderer joined")

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for snap := range out {
				view := snap.View
				send(writeCtx, conn, types.ServerMessage{Type: types.MsgStateSnapshot, Version: snap.Version, State: &view})
			}
			// Dropped as a slow client, or the arena stopped.
			if writeCtx.Err() == nil {
				conn.Close(websocket.StatusTryAgainLater, "state stream ended")
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("renderer read ended", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				sendError(r.Context(), conn, "bad json")
				continue
			}

			if cm.Type == types.MsgToggleTimer {
				a.Post(arena.ToggleTimer{})
				continue
			}
			cmd, err := toEngineCommand(cm)
			if err != nil {
				sendError(r.Context(), conn, err.Error())
				continue
			}

			reply := make(chan arena.Result, 1)
			if !a.Post(arena.FromClient{Cmd: cmd, Reply: reply}) {
				return
			}
			select {
			case res := <-reply:
				if res.Err != nil {
					sendError(r.Context(), conn, res.Err.Error())
				}
			case <-r.Context().Done():
				return
			}
		}
	}
}

func toEngineCommand(m types.ClientMessage) (engine.Command, error) {
	guild := func() (int, error) {
		if m.Guild == nil {
			return 0, errMissingGuild
		}
		return *m.Guild, nil
	}

	switch m.Type {
	case types.MsgHit:
		g, err := guild()
		return engine.Command{Type: engine.CmdHit, Guild: g}, err
	case types.MsgMiss:
		g, err := guild()
		return engine.Command{Type: engine.CmdMiss, Guild: g}, err
	case types.MsgUndo:
		return engine.Command{Type: engine.CmdUndo, Guild: engine.NoGuild}, nil
	case types.MsgReset:
		return engine.Command{Type: engine.CmdReset, Guild: engine.NoGuild}, nil
	default:
		return engine.Command{}, errUnknownType
	}
}

func send(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(ctx, websocket.MessageText, payload)
}

func sendError(ctx context.Context, conn *websocket.Conn, text string) {
	send(ctx, conn, types.ServerMessage{Type: types.MsgError, Error: text})
}

// RelayHandler serves slot to RemoteSlot peers such as the dock.
// Authentication happens in front of it.
func RelayHandler(slot relay.Slot, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		peer := uuid.NewString()
		log.Info("relay peer connected", zap.String("peer", peer))
		if err := relay.ServeSlot(r.Context(), conn, slot, log); err != nil {
			log.Warn("relay peer failed", zap.String("peer", peer), zap.Error(err))
		}
		log.Info("relay peer disconnected", zap.String("peer", peer))
	}
}
