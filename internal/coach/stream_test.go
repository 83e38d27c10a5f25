package coach

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chess-coach/pkg/coachdto"
)

// newStreamServer accepts websocket upgrades and hands each accepted
// connection to the test over a channel.
func newStreamServer(t *testing.T) (*httptest.Server, chan *websocket.Conn, chan http.Header) {
	t.Helper()
	conns := make(chan *websocket.Conn, 4)
	headers := make(chan http.Header, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	t.Cleanup(srv.Close)
	return srv, conns, headers
}

func awaitConn(t *testing.T, conns chan *websocket.Conn) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("no websocket connection accepted")
		return nil
	}
}

func closeStream(t *testing.T, s *EventStream) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.Close(ctx)
}

func TestEventStreamDeliversEvents(t *testing.T) {
	srv, conns, headers := newStreamServer(t)

	s := NewEventStream(srv.URL, 3, 10*time.Millisecond)
	s.SetHeaderProvider(func() map[string]string {
		return map[string]string{"Authorization": "Bearer test-token"}
	})
	t.Cleanup(func() { closeStream(t, s) })

	received := make(chan *Event, 4)
	s.OnEvent(func(event *Event) { received <- event })

	require.NoError(t, s.Connect(context.Background()))
	conn := awaitConn(t, conns)

	hdr := <-headers
	assert.Equal(t, "Bearer test-token", hdr.Get("Authorization"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, Event{
		Type:      "hint",
		SessionID: "s1",
		Epoch:     "ep-1",
		Text:      "Push the pawn.",
		Line:      &coachdto.SuggestedLine{Description: "advance", MovesUCI: []string{"e2e4"}},
	}))

	select {
	case event := <-received:
		assert.Equal(t, "hint", event.Type)
		assert.Equal(t, "s1", event.SessionID)
		assert.Equal(t, "ep-1", event.Epoch)
		assert.Equal(t, "Push the pawn.", event.Text)
		require.NotNil(t, event.Line)
		assert.Equal(t, []string{"e2e4"}, event.Line.MovesUCI)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestEventStreamReconnects(t *testing.T) {
	srv, conns, _ := newStreamServer(t)

	s := NewEventStream(srv.URL, 5, 10*time.Millisecond)
	t.Cleanup(func() { closeStream(t, s) })

	states := make(chan StreamState, 16)
	s.OnStateChange(func(state StreamState) { states <- state })

	received := make(chan *Event, 4)
	s.OnEvent(func(event *Event) { received <- event })

	require.NoError(t, s.Connect(context.Background()))
	first := awaitConn(t, conns)

	require.NoError(t, first.Close(websocket.StatusGoingAway, "restart"))

	second := awaitConn(t, conns)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, second, Event{Type: "hint", SessionID: "s2", Epoch: "ep-2"}))

	select {
	case event := <-received:
		assert.Equal(t, "s2", event.SessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered after reconnect")
	}

	seen := make(map[StreamState]bool)
	for len(states) > 0 {
		seen[<-states] = true
	}
	assert.True(t, seen[StreamReconnecting])
	assert.True(t, seen[StreamConnected])
}

func TestEventStreamRemovesCallbacks(t *testing.T) {
	srv, conns, _ := newStreamServer(t)

	s := NewEventStream(srv.URL, 3, 10*time.Millisecond)
	t.Cleanup(func() { closeStream(t, s) })

	kept := make(chan *Event, 4)
	s.OnEvent(func(event *Event) { kept <- event })
	removedFired := false
	removedID := s.OnEvent(func(*Event) { removedFired = true })
	s.RemoveEventCallback(removedID)

	stateFired := false
	stateID := s.OnStateChange(func(StreamState) { stateFired = true })
	s.RemoveStateCallback(stateID)

	require.NoError(t, s.Connect(context.Background()))
	conn := awaitConn(t, conns)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, Event{Type: "hint", SessionID: "s3"}))

	select {
	case event := <-kept:
		assert.Equal(t, "s3", event.SessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
	assert.False(t, removedFired)
	assert.False(t, stateFired)
}
