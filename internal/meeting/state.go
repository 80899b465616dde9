package meeting

import (
	"fmt"
	"sync"
	"time"

	"github.com/mutenix-org/mutenixd/internal/message"
)

type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connected
)

func (s ConnectionState) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names written by MarshalText.
func (s *ConnectionState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "connected":
		*s = Connected
	case "disconnected":
		*s = Disconnected
	default:
		return fmt.Errorf("unknown connection state %q", text)
	}
	return nil
}

// State is the merged view of everything the service sent. Only the
// receive loop writes it.
type State struct {
	mutex        sync.RWMutex
	status       ConnectionState
	merged       message.ServerMessage
	lastReceived time.Time
}

func NewState() *State {
	return &State{}
}

func (s *State) ConnectionStatus() ConnectionState {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.status
}

// Message returns the merged server message.
func (s *State) Message() message.ServerMessage {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.merged
}

// LastReceived reports when the last message was decoded; ok is false
// before the first one.
func (s *State) LastReceived() (t time.Time, ok bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastReceived, !s.lastReceived.IsZero()
}

func (s *State) setConnectionStatus(status ConnectionState) {
	s.mutex.Lock()
	s.status = status
	s.mutex.Unlock()
}

func (s *State) update(m message.ServerMessage, at time.Time) {
	s.mutex.Lock()
	s.merged = message.Merge(s.merged, m)
	s.lastReceived = at
	s.mutex.Unlock()
}
