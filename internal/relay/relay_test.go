package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sandeand001/classroom-boss-fight/internal/engine"
)

func newFight(t *testing.T) *engine.Fight {
	t.Helper()
	f, err := engine.New(engine.Setup{
		BossName:  "Number Dragon",
		BossHPMax: 8,
		Guilds: []engine.GuildSetup{
			{Name: "Yellow", HPMax: 3},
			{Name: "Blue", HPMax: 3},
			{Name: "Purple", HPMax: 3},
		},
	}, engine.DefaultHistoryDepth)
	require.NoError(t, err)
	return f
}

// applyTo replays relayed messages onto f.
func applyTo(t *testing.T, f *engine.Fight) func(ControlMessage) {
	return func(m ControlMessage) {
		cmd, err := m.Command()
		require.NoError(t, err)
		_, err = f.Apply(cmd)
		require.NoError(t, err)
	}
}

func TestDecode(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    engine.Command
		wantErr bool
	}{
		{name: "hit", raw: `{"id":"a","action":"hit","payload":{"g":1},"ts":1}`, want: engine.Command{Type: engine.CmdHit, Guild: 1}},
		{name: "reset", raw: `{"id":"b","action":"reset","payload":{},"ts":2}`, want: engine.Command{Type: engine.CmdReset, Guild: engine.NoGuild}},
		{name: "hit without guild", raw: `{"id":"c","action":"hit","payload":{}}`, wantErr: true},
		{name: "miss is not relayed", raw: `{"id":"d","action":"miss","payload":{"g":0}}`, wantErr: true},
		{name: "garbage", raw: `not json`, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := Decode([]byte(tc.raw))
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrBadMessage)
				return
			}
			require.NoError(t, err)
			cmd, err := m.Command()
			require.NoError(t, err)
			assert.Equal(t, tc.want, cmd)
		})
	}
}

func TestRelay_MirrorsHitToPeer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slot := NewMemorySlot()
	a, b := newFight(t), newFight(t)
	ra, rb := New(slot, nil), New(slot, nil)
	require.NoError(t, ra.Subscribe(ctx, applyTo(t, a)))
	require.NoError(t, rb.Subscribe(ctx, applyTo(t, b)))

	_, err := a.Hit(1)
	require.NoError(t, err)
	require.NoError(t, ra.Publish(ctx, ActionHit, 1))

	assert.Equal(t, 1, a.State().Guilds[1].Hits, "publisher must not replay its own message")
	assert.Equal(t, 1, b.State().Guilds[1].Hits)
	assert.Equal(t, 7, b.State().BossHP)
}

func TestRelay_RawSlotWriteAppliesOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slot := NewMemorySlot()
	b := newFight(t)
	require.NoError(t, New(slot, nil).Subscribe(ctx, applyTo(t, b)))

	raw := []byte(`{"id":"x1","action":"hit","payload":{"g":1},"ts":1}`)
	require.NoError(t, slot.Set(ctx, raw))
	require.NoError(t, slot.Set(ctx, raw))

	assert.Equal(t, 1, b.State().Guilds[1].Hits)
}

func TestRelay_ResetMirrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slot := NewMemorySlot()
	b := newFight(t)
	_, err := b.Hit(0)
	require.NoError(t, err)

	require.NoError(t, New(slot, nil).Subscribe(ctx, applyTo(t, b)))
	require.NoError(t, New(slot, nil).Publish(ctx, ActionReset, engine.NoGuild))

	assert.Equal(t, 8, b.State().BossHP)
	assert.Equal(t, 0, b.State().Guilds[0].Hits)
}

func TestRelay_NilSlotIsNoop(t *testing.T) {
	r := New(nil, nil)
	assert.False(t, r.Enabled())
	assert.NoError(t, r.Publish(context.Background(), ActionHit, 0))
	assert.NoError(t, r.Subscribe(context.Background(), func(ControlMessage) { t.Fatal("unexpected delivery") }))
	_, err := r.Latest(context.Background())
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestRelay_DropsMalformed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	core, logs := observer.New(zap.WarnLevel)
	slot := NewMemorySlot()
	var delivered int
	require.NoError(t, New(slot, zap.New(core)).Subscribe(ctx, func(ControlMessage) { delivered++ }))

	require.NoError(t, slot.Set(ctx, []byte(`{"action":"explode"}`)))
	assert.Equal(t, 0, delivered)
	assert.Equal(t, 1, logs.FilterMessage("dropping control message").Len())
}

func TestRelay_LatestReadsSlot(t *testing.T) {
	ctx := context.Background()
	r := New(NewMemorySlot(), nil)

	_, err := r.Latest(ctx)
	assert.ErrorIs(t, err, ErrEmpty)

	require.NoError(t, r.Publish(ctx, ActionHit, 2))
	m, err := r.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionHit, m.Action)
	require.NotNil(t, m.Payload.Guild)
	assert.Equal(t, 2, *m.Payload.Guild)
	assert.NotEmpty(t, m.ID)
}

func TestMemorySlot_WatchSeesOnlyLaterWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slot := NewMemorySlot()
	require.NoError(t, slot.Set(ctx, []byte("before")))

	var got []string
	require.NoError(t, slot.Watch(ctx, func(v []byte) { got = append(got, string(v)) }))
	require.NoError(t, slot.Set(ctx, []byte("one")))
	require.NoError(t, slot.Set(ctx, []byte("two")))

	assert.Equal(t, []string{"one", "two"}, got)

	v, err := slot.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "two", string(v))
}

func TestMemorySlot_WatchEndsWithContext(t *testing.T) {
	slot := NewMemorySlot()
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	require.NoError(t, slot.Watch(ctx, func([]byte) { calls.Add(1) }))
	cancel()

	require.Eventually(t, func() bool {
		slot.mu.Lock()
		defer slot.mu.Unlock()
		return len(slot.watchers) == 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, slot.Set(context.Background(), []byte("late")))
	assert.Equal(t, int32(0), calls.Load())
}

func TestChannelName(t *testing.T) {
	assert.Equal(t, "relay_controls_latest", ChannelName("controls/latest"))
	assert.Equal(t, "relay_room_2_a", ChannelName("Room 2-A"))
}

// countingSlot reports how many watchers are registered.
type countingSlot struct {
	*MemorySlot
	watches atomic.Int32
}

func (c *countingSlot) Watch(ctx context.Context, fn func([]byte)) error {
	c.watches.Add(1)
	return c.MemorySlot.Watch(ctx, fn)
}

func TestRemoteSlot_MirrorsThroughServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shared := &countingSlot{MemorySlot: NewMemorySlot()}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		_ = ServeSlot(r.Context(), conn, shared, nil)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	sa, err := DialRemote(ctx, url, "", nil)
	require.NoError(t, err)
	defer sa.Close()
	sb, err := DialRemote(ctx, url, "", nil)
	require.NoError(t, err)
	defer sb.Close()

	require.Eventually(t, func() bool { return shared.watches.Load() == 2 }, 2*time.Second, 10*time.Millisecond)

	var mu sync.Mutex
	var got []ControlMessage
	received := make(chan struct{}, 1)
	require.NoError(t, New(sb, nil).Subscribe(ctx, func(m ControlMessage) {
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
		received <- struct{}{}
	}))

	ra := New(sa, nil)
	var echoed atomic.Int32
	require.NoError(t, ra.Subscribe(ctx, func(ControlMessage) { echoed.Add(1) }))
	require.NoError(t, ra.Publish(ctx, ActionHit, 2))

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for relayed hit")
	}

	mu.Lock()
	require.Len(t, got, 1)
	assert.Equal(t, ActionHit, got[0].Action)
	assert.Equal(t, 2, *got[0].Payload.Guild)
	mu.Unlock()

	v, err := shared.Get(ctx)
	require.NoError(t, err)
	m, err := Decode(v)
	require.NoError(t, err)
	assert.Equal(t, got[0].ID, m.ID)
	assert.Equal(t, int32(0), echoed.Load())
}

func TestRemoteSlot_SetAfterCloseFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		conn.Close(websocket.StatusNormalClosure, "")
	}))
	defer srv.Close()

	s, err := DialRemote(context.Background(), srv.URL, "", nil)
	require.NoError(t, err)

	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for close")
	}
	err = s.Set(context.Background(), []byte(`{}`))
	assert.True(t, errors.Is(err, ErrClosed), fmt.Sprint(err))
}
