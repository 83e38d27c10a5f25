package coach

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chess-coach/pkg/coachdto"
)

// Event is one push from the coach backend: unsolicited hints, analysis
// progress, or availability changes.
type Event struct {
	Type      string                  `json:"type"`
	SessionID string                  `json:"session_id,omitempty"`
	Epoch     string                  `json:"epoch,omitempty"`
	Text      string                  `json:"text,omitempty"`
	Line      *coachdto.SuggestedLine `json:"line,omitempty"`
}

type StreamState string

const (
	StreamDisconnected StreamState = "disconnected"
	StreamConnecting   StreamState = "connecting"
	StreamConnected    StreamState = "connected"
	StreamReconnecting StreamState = "reconnecting"
	StreamFailed       StreamState = "failed"
)

type EventCallback func(event *Event)

type StreamStateCallback func(state StreamState)

// HeaderProvider injects handshake headers, e.g. auth tokens.
type HeaderProvider func() map[string]string

type eventCallbackEntry struct {
	id       int
	callback EventCallback
}

type streamStateEntry struct {
	id       int
	callback StreamStateCallback
}

// EventStream is a long-lived websocket subscription to the coach backend's
// push channel, with automatic reconnect and keepalive pings.
type EventStream struct {
	wsURL string

	conn   *websocket.Conn
	state  StreamState
	stateM sync.RWMutex

	eventCbs []eventCallbackEntry
	stateCbs []streamStateEntry
	cbM      sync.RWMutex

	reconnectAttempts    int
	maxReconnectAttempts int
	reconnectDelay       time.Duration

	pingInterval time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc

	headerProvider HeaderProvider
}

func NewEventStream(wsURL string, maxReconnectAttempts int, reconnectDelay time.Duration) *EventStream {
	return &EventStream{
		wsURL:                wsURL,
		state:                StreamDisconnected,
		maxReconnectAttempts: maxReconnectAttempts,
		reconnectDelay:       reconnectDelay,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
		eventCbs:             make([]eventCallbackEntry, 0),
		stateCbs:             make([]streamStateEntry, 0),
	}
}

func (s *EventStream) Connect(ctx context.Context) error {
	s.stateM.Lock()
	if s.state == StreamConnected || s.state == StreamConnecting {
		s.stateM.Unlock()
		return nil
	}
	s.stateM.Unlock()

	s.rootCtx, s.rootCancel = context.WithCancel(context.Background())
	s.setState(StreamConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, s.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      s.buildHeaders(),
	})
	if err != nil {
		s.setState(StreamFailed)
		s.scheduleReconnect()
		return err
	}

	s.conn = conn
	s.reconnectAttempts = 0
	s.setState(StreamConnected)

	s.wg.Add(2)
	go s.listen()
	go s.pingLoop()
	return nil
}

func (s *EventStream) listen() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		if s.conn == nil {
			return
		}
		var event Event
		if err := wsjson.Read(s.rootCtx, s.conn, &event); err != nil {
			if s.isStopping() {
				return
			}
			s.setState(StreamDisconnected)
			_ = s.closeConn(websocket.StatusGoingAway, "reconnect")
			s.scheduleReconnect()
			return
		}

		s.cbM.RLock()
		callbacks := make([]eventCallbackEntry, len(s.eventCbs))
		copy(callbacks, s.eventCbs)
		s.cbM.RUnlock()
		for _, entry := range callbacks {
			if entry.callback != nil {
				entry.callback(&event)
			}
		}
	}
}

func (s *EventStream) pingLoop() {
	defer s.wg.Done()
	t := time.NewTicker(s.pingInterval)
	defer t.Stop()
	consecutivePingFailures := 0
	for {
		select {
		case <-s.stopCh:
			return
		case <-t.C:
			if s.conn == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(s.rootCtx, 3*time.Second)
			err := s.conn.Ping(ctx)
			cancel()
			if err != nil {
				consecutivePingFailures++
				if consecutivePingFailures >= 2 {
					if s.isStopping() {
						return
					}
					s.setState(StreamDisconnected)
					_ = s.closeConn(websocket.StatusGoingAway, "ping failure")
					s.scheduleReconnect()
					consecutivePingFailures = 0
				}
				continue
			}
			consecutivePingFailures = 0
		}
	}
}

func (s *EventStream) scheduleReconnect() {
	if s.maxReconnectAttempts <= 0 {
		return
	}
	s.setState(StreamReconnecting)

	go func() {
		for attempt := 1; attempt <= s.maxReconnectAttempts; attempt++ {
			select {
			case <-s.stopCh:
				return
			case <-time.After(reconnectBackoff(attempt, s.reconnectDelay)):
			}

			dialCtx, cancel := context.WithTimeout(s.rootCtx, 10*time.Second)
			conn, _, err := websocket.Dial(dialCtx, s.wsURL, &websocket.DialOptions{
				CompressionMode: websocket.CompressionNoContextTakeover,
				HTTPHeader:      s.buildHeaders(),
			})
			cancel()
			if err != nil {
				continue
			}

			s.conn = conn
			s.reconnectAttempts = 0
			s.setState(StreamConnected)

			s.wg.Add(2)
			go s.listen()
			go s.pingLoop()
			return
		}
		s.setState(StreamFailed)
	}()
}

func (s *EventStream) OnEvent(cb EventCallback) int {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	id := len(s.eventCbs) + 1
	s.eventCbs = append(s.eventCbs, eventCallbackEntry{id: id, callback: cb})
	return id
}

func (s *EventStream) RemoveEventCallback(id int) {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	for i, cb := range s.eventCbs {
		if cb.id == id {
			s.eventCbs = append(s.eventCbs[:i], s.eventCbs[i+1:]...)
			break
		}
	}
}

func (s *EventStream) OnStateChange(cb StreamStateCallback) int {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	id := len(s.stateCbs) + 1
	s.stateCbs = append(s.stateCbs, streamStateEntry{id: id, callback: cb})
	return id
}

func (s *EventStream) RemoveStateCallback(id int) {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	for i, cb := range s.stateCbs {
		if cb.id == id {
			s.stateCbs = append(s.stateCbs[:i], s.stateCbs[i+1:]...)
			break
		}
	}
}

func (s *EventStream) setState(state StreamState) {
	s.stateM.Lock()
	s.state = state
	s.stateM.Unlock()

	s.cbM.RLock()
	callbacks := make([]streamStateEntry, len(s.stateCbs))
	copy(callbacks, s.stateCbs)
	s.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(state)
		}
	}
}

func (s *EventStream) Close(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	_ = s.closeConn(websocket.StatusNormalClosure, "close")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		if s.rootCancel != nil {
			s.rootCancel()
		}
		return nil
	}
}

func (s *EventStream) closeConn(code websocket.StatusCode, reason string) error {
	if s.conn == nil {
		return nil
	}
	defer func() { s.conn = nil }()
	return s.conn.Close(code, reason)
}

func (s *EventStream) isStopping() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// SetHeaderProvider allows injecting headers into the handshake.
func (s *EventStream) SetHeaderProvider(h HeaderProvider) {
	s.headerProvider = h
}

func (s *EventStream) buildHeaders() http.Header {
	hdr := http.Header{}
	if s.headerProvider == nil {
		return hdr
	}
	for k, v := range s.headerProvider() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}

func reconnectBackoff(attempt int, base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * base
}
