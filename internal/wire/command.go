package wire

import (
	"fmt"
)

// Outbound commands. Every command is a fixed 8-byte payload sent behind
// report id 1; the last byte is a rolling counter that only the host reads.

const (
	ReportIDCommunication = 0x01
	ReportIDTransfer      = 0x02

	CommandSize = 8
)

const (
	cmdSetLed        = 0x01
	cmdPing          = 0xF0
	cmdPrepareUpdate = 0xE0
	cmdReset         = 0xE1
	cmdUpdateConfig  = 0xE2
)

// ConfigFlag is a tri-state device setting carried by UpdateConfig.
type ConfigFlag uint8

const (
	FlagUnset ConfigFlag = 0
	FlagOff   ConfigFlag = 1
	FlagOn    ConfigFlag = 2
)

// InvalidColorError is returned by Validate for a SetLed whose color has
// no RGBW encoding.
type InvalidColorError struct {
	Color LedColor
}

func (e *InvalidColorError) Error() string {
	return fmt.Sprintf("invalid led color %d", int(e.Color))
}

// Command is one of SetLed, Ping, PrepareUpdate, Reset or UpdateConfig.
type Command interface {
	command()
}

type SetLed struct {
	LedID   uint8
	Color   LedColor
	Counter uint8
}

type Ping struct {
	Counter uint8
}

type PrepareUpdate struct {
	Counter uint8
}

type Reset struct {
	Counter uint8
}

type UpdateConfig struct {
	Debug      ConfigFlag
	Filesystem ConfigFlag
	Counter    uint8
}

func (SetLed) command()        {}
func (Ping) command()          {}
func (PrepareUpdate) command() {}
func (Reset) command()         {}
func (UpdateConfig) command()  {}

// Validate checks that cmd can be encoded without loss.
func Validate(cmd Command) error {
	if c, ok := cmd.(SetLed); ok && !c.Color.Valid() {
		return &InvalidColorError{Color: c.Color}
	}
	return nil
}

// Encode serializes cmd into its 8-byte payload. Unused bytes stay zero.
func Encode(cmd Command) [CommandSize]byte {
	var buf [CommandSize]byte
	switch c := cmd.(type) {
	case SetLed:
		rgbw := c.Color.RGBW()
		buf[0] = cmdSetLed
		buf[1] = c.LedID
		copy(buf[2:6], rgbw[:])
		buf[7] = c.Counter
	case Ping:
		buf[0] = cmdPing
		buf[7] = c.Counter
	case PrepareUpdate:
		buf[0] = cmdPrepareUpdate
		buf[7] = c.Counter
	case Reset:
		buf[0] = cmdReset
		buf[7] = c.Counter
	case UpdateConfig:
		buf[0] = cmdUpdateConfig
		buf[1] = byte(c.Debug)
		buf[2] = byte(c.Filesystem)
		buf[7] = c.Counter
	}
	return buf
}

// Report returns the full HID output report for cmd, report id included.
func Report(cmd Command) []byte {
	payload := Encode(cmd)
	report := make([]byte, 0, CommandSize+1)
	report = append(report, ReportIDCommunication)
	return append(report, payload[:]...)
}

// Name is used in logs and metric labels.
func Name(cmd Command) string {
	switch cmd.(type) {
	case SetLed:
		return "set_led"
	case Ping:
		return "ping"
	case PrepareUpdate:
		return "prepare_update"
	case Reset:
		return "reset"
	case UpdateConfig:
		return "update_config"
	}
	return "unknown"
}
