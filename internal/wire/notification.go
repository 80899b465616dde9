package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Update channel notifications arrive on report id 2 while a firmware
// transfer is running. They start with a 2 byte ASCII identifier.

var ErrInvalidRequest = errors.New("invalid request")

// minimum length the device reports for an error message
const minErrorLength = 33

type Notification interface {
	notification()
}

type ChunkAck struct {
	ID      uint16
	Package uint16
	Type    uint8
}

type DeviceError struct {
	Message string
}

type LogLevel int

const (
	LogDebug LogLevel = iota
	LogError
)

type LogMessage struct {
	Level   LogLevel
	Message string
}

func (ChunkAck) notification()    {}
func (DeviceError) notification() {}
func (LogMessage) notification()  {}

func (a ChunkAck) String() string {
	return fmt.Sprintf("File: %d, Type: %d, Package: %d", a.ID, a.Type, a.Package)
}

func (e DeviceError) String() string {
	return "Error: " + e.Message
}

func (l LogMessage) String() string {
	return l.Level.String() + ": " + l.Message
}

func (l LogLevel) String() string {
	if l == LogError {
		return "error"
	}
	return "debug"
}

// ParseNotification decodes data, which must not include the report id.
// Fields missing from a short ack decode as zero.
func ParseNotification(data []byte) (Notification, error) {
	if len(data) < 2 {
		return nil, ErrInvalidRequest
	}
	switch string(data[0:2]) {
	case "AK":
		var ack ChunkAck
		if len(data) >= 4 {
			ack.ID = binary.LittleEndian.Uint16(data[2:4])
		}
		if len(data) >= 6 {
			ack.Package = binary.LittleEndian.Uint16(data[4:6])
		}
		if len(data) >= 7 {
			ack.Type = data[6]
		}
		return ack, nil
	case "ER":
		var msg string
		if len(data) > 3 {
			length := int(data[2])
			if length < minErrorLength {
				length = minErrorLength
			}
			end := 3 + length
			if end > len(data) {
				end = len(data)
			}
			msg = string(data[3:end])
		}
		return DeviceError{Message: msg}, nil
	case "LD":
		return LogMessage{Level: LogDebug, Message: nulTerminated(data[2:])}, nil
	case "LE":
		return LogMessage{Level: LogError, Message: nulTerminated(data[2:])}, nil
	}
	return nil, ErrInvalidRequest
}

func nulTerminated(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
