package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// Frames exchanged on the /relay websocket.
const (
	FrameSet   = "set"
	FrameValue = "value"
)

type Frame struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

var ErrClosed = errors.New("remote slot closed")

// RemoteSlot is a Slot served by another process over its /relay endpoint.
type RemoteSlot struct {
	conn *websocket.Conn
	log  *zap.Logger
	done chan struct{}

	mu       sync.Mutex
	latest   []byte
	watchers []watcher
	nextID   int
}

// DialRemote connects to url, sending token as a bearer credential when set.
func DialRemote(ctx context.Context, url, token string, log *zap.Logger) (*RemoteSlot, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts := &websocket.DialOptions{HTTPHeader: http.Header{}}
	if token != "" {
		opts.HTTPHeader.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", url, err)
	}
	s := &RemoteSlot{conn: conn, log: log, done: make(chan struct{})}
	go s.readLoop()
	return s, nil
}

func (s *RemoteSlot) readLoop() {
	defer close(s.done)
	for {
		_, data, err := s.conn.Read(context.Background())
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				s.log.Warn("relay connection lost", zap.Error(err))
			}
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			s.log.Warn("bad relay frame", zap.Error(err))
			continue
		}
		if f.Type != FrameValue || len(f.Value) == 0 {
			continue
		}

		s.mu.Lock()
		s.latest = append([]byte(nil), f.Value...)
		ws := append([]watcher(nil), s.watchers...)
		s.mu.Unlock()

		for _, w := range ws {
			w.fn(append([]byte(nil), f.Value...))
		}
	}
}

func (s *RemoteSlot) Set(ctx context.Context, value []byte) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	data, err := json.Marshal(Frame{Type: FrameSet, Value: value})
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("send frame: %w", err)
	}
	s.mu.Lock()
	s.latest = append([]byte(nil), value...)
	s.mu.Unlock()
	return nil
}

// Get returns the last value seen on this connection.
func (s *RemoteSlot) Get(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil, ErrEmpty
	}
	return append([]byte(nil), s.latest...), nil
}

func (s *RemoteSlot) Watch(ctx context.Context, fn func([]byte)) error {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers = append(s.watchers, watcher{id: id, fn: fn})
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, w := range s.watchers {
			if w.id == id {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				return
			}
		}
	}()
	return nil
}

func (s *RemoteSlot) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
