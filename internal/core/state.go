package core

import (
	"fmt"
)

type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connected
	Error
)

func (s ConnectionState) String() string {
	switch s {
	case Connected:
		return "connected"
	case Error:
		return "error"
	}
	return "disconnected"
}

func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ConnectionState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "connected":
		*s = Connected
	case "disconnected":
		*s = Disconnected
	case "error":
		*s = Error
	default:
		return fmt.Errorf("unknown connection state %q", text)
	}
	return nil
}

// HardwareState is refreshed on every successful connect.
type HardwareState struct {
	State        ConnectionState `json:"state"`
	Serial       string          `json:"serial,omitempty"`
	Manufacturer string          `json:"manufacturer,omitempty"`
	Product      string          `json:"product,omitempty"`
}
