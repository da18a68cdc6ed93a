package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

const peerBuffer = 16

// ServeSlot exposes slot to one RemoteSlot peer until the connection or ctx
// ends. Values the peer cannot keep up with are dropped.
func ServeSlot(ctx context.Context, conn *websocket.Conn, slot Slot, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make(chan []byte, peerBuffer)
	err := slot.Watch(ctx, func(v []byte) {
		select {
		case out <- v:
		default:
			log.Warn("relay peer too slow, dropping value")
		}
	})
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case v := <-out:
				data, err := json.Marshal(Frame{Type: FrameValue, Value: v})
				if err != nil {
					log.Error("encode relay frame", zap.Error(err))
					continue
				}
				wctx, wcancel := context.WithTimeout(ctx, 5*time.Second)
				err = conn.Write(wctx, websocket.MessageText, data)
				wcancel()
				if err != nil {
					cancel()
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) != -1 {
				return nil
			}
			return err
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil || f.Type != FrameSet {
			log.Debug("ignoring relay frame", zap.ByteString("frame", data))
			continue
		}
		if _, err := Decode(f.Value); err != nil {
			log.Warn("rejecting control message", zap.Error(err))
			continue
		}
		if err := slot.Set(ctx, f.Value); err != nil {
			log.Error("relay set failed", zap.Error(err))
		}
	}
}
