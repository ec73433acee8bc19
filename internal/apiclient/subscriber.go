package apiclient

import (
	"context"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-engine-player/pkg/chessdto"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "disconnected"
	}
}

type EventCallback func(ev *chessdto.Event)

type StateCallback func(state State)

// Subscriber follows the board feed and reconnects with backoff when the
// connection drops.
type Subscriber struct {
	wsURL string

	connMu sync.Mutex
	conn   *websocket.Conn
	state  State

	eventCbs []EventCallback
	stateCbs []StateCallback
	cbM      sync.RWMutex

	maxReconnectAttempts int

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

func NewSubscriber(wsURL string, maxReconnectAttempts int) *Subscriber {
	ctx, cancel := context.WithCancel(context.Background())
	return &Subscriber{
		wsURL:                wsURL,
		state:                StateDisconnected,
		maxReconnectAttempts: maxReconnectAttempts,
		stopCh:               make(chan struct{}),
		rootCtx:              ctx,
		rootCancel:           cancel,
	}
}

func (s *Subscriber) OnEvent(cb EventCallback) {
	s.cbM.Lock()
	s.eventCbs = append(s.eventCbs, cb)
	s.cbM.Unlock()
}

func (s *Subscriber) OnStateChange(cb StateCallback) {
	s.cbM.Lock()
	s.stateCbs = append(s.stateCbs, cb)
	s.cbM.Unlock()
}

func (s *Subscriber) State() State {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.state
}

func (s *Subscriber) Connect(ctx context.Context) error {
	if st := s.State(); st == StateConnected || st == StateConnecting {
		return nil
	}
	s.setState(StateConnecting)
	if err := s.dial(ctx); err != nil {
		s.setState(StateFailed)
		s.scheduleReconnect()
		return err
	}
	return nil
}

func (s *Subscriber) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, s.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		return err
	}
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	s.setState(StateConnected)

	s.wg.Add(1)
	go s.listen(conn)
	return nil
}

func (s *Subscriber) listen(conn *websocket.Conn) {
	defer s.wg.Done()
	for {
		var ev chessdto.Event
		if err := wsjson.Read(s.rootCtx, conn, &ev); err != nil {
			if s.isStopping() {
				return
			}
			s.setState(StateDisconnected)
			_ = conn.Close(websocket.StatusGoingAway, "reconnect")
			s.scheduleReconnect()
			return
		}

		s.cbM.RLock()
		callbacks := append([]EventCallback(nil), s.eventCbs...)
		s.cbM.RUnlock()
		for _, cb := range callbacks {
			if cb != nil {
				cb(&ev)
			}
		}
	}
}

func (s *Subscriber) scheduleReconnect() {
	if s.maxReconnectAttempts <= 0 {
		return
	}
	s.setState(StateReconnecting)

	go func() {
		for attempt := 1; attempt <= s.maxReconnectAttempts; attempt++ {
			select {
			case <-s.stopCh:
				return
			case <-time.After(backoffDuration(attempt)):
			}
			if err := s.dial(s.rootCtx); err == nil {
				return
			}
		}
		s.setState(StateFailed)
	}()
}

func (s *Subscriber) setState(state State) {
	s.connMu.Lock()
	s.state = state
	s.connMu.Unlock()

	s.cbM.RLock()
	callbacks := append([]StateCallback(nil), s.stateCbs...)
	s.cbM.RUnlock()
	for _, cb := range callbacks {
		if cb != nil {
			cb(state)
		}
	}
}

func (s *Subscriber) Close(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })

	s.connMu.Lock()
	conn := s.conn
	s.conn = nil
	s.connMu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}
	s.rootCancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (s *Subscriber) isStopping() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}
