// Package relay mirrors hit/reset actions between independently running
// fights through a single shared last-write-wins slot.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrEmpty = errors.New("slot is empty")

// DefaultPath is the logical location of the shared slot.
const DefaultPath = "controls/latest"

// Slot is one shared mutable value. Watch reports changes made after it
// returns; the current value is not replayed.
type Slot interface {
	Set(ctx context.Context, value []byte) error
	Get(ctx context.Context) ([]byte, error)
	Watch(ctx context.Context, fn func(value []byte)) error
}

// Channel is the capability the fight owners are given.
type Channel interface {
	Publish(ctx context.Context, action Action, guild int) error
	Subscribe(ctx context.Context, handler func(ControlMessage)) error
}

const recentPublished = 32

// Relay implements Channel over a Slot. A nil slot turns every call into a
// no-op. Notifications are dropped when their id matches the last delivered
// message or one this relay published recently.
type Relay struct {
	slot  Slot
	log   *zap.Logger
	now   func() time.Time
	newID func() string

	mu        sync.Mutex
	lastID    string
	published []string
}

func New(slot Slot, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{
		slot:  slot,
		log:   log,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (r *Relay) Enabled() bool { return r != nil && r.slot != nil }

func (r *Relay) Publish(ctx context.Context, action Action, guild int) error {
	if !r.Enabled() {
		return nil
	}
	msg := ControlMessage{ID: r.newID(), Action: action, Timestamp: r.now().UnixMilli()}
	if action == ActionHit {
		g := guild
		msg.Payload.Guild = &g
	}
	if _, err := msg.Command(); err != nil {
		return err
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode control message: %w", err)
	}

	// Remember before writing: in-process slots notify during Set.
	r.remember(msg.ID)
	if err := r.slot.Set(ctx, raw); err != nil {
		return fmt.Errorf("publish %s: %w", action, err)
	}
	r.log.Debug("control published", zap.String("id", msg.ID), zap.String("action", string(action)))
	return nil
}

func (r *Relay) Subscribe(ctx context.Context, handler func(ControlMessage)) error {
	if !r.Enabled() {
		return nil
	}
	err := r.slot.Watch(ctx, func(raw []byte) {
		msg, err := Decode(raw)
		if err != nil {
			r.log.Warn("dropping control message", zap.Error(err))
			return
		}
		if !r.claim(msg.ID) {
			r.log.Debug("duplicate control message", zap.String("id", msg.ID))
			return
		}
		handler(msg)
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

// Latest returns the message currently in the slot.
func (r *Relay) Latest(ctx context.Context) (ControlMessage, error) {
	if !r.Enabled() {
		return ControlMessage{}, ErrEmpty
	}
	raw, err := r.slot.Get(ctx)
	if err != nil {
		return ControlMessage{}, err
	}
	return Decode(raw)
}

func (r *Relay) remember(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.published) == recentPublished {
		r.published = r.published[1:]
	}
	r.published = append(r.published, id)
}

func (r *Relay) claim(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == r.lastID {
		return false
	}
	for _, p := range r.published {
		if p == id {
			return false
		}
	}
	r.lastID = id
	return true
}
