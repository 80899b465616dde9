package wire

import (
	"fmt"
)

// Inbound reports on report id 1: byte 0 is the report id (ignored),
// byte 1 the command id, the rest a fixed size body.

const (
	msgStatus        = 0x01
	msgStatusRequest = 0x02
	msgVersionInfo   = 0x99

	headerLength  = 2
	statusLength  = 6
	versionLength = 6
)

type UnknownCommandError struct {
	ID byte
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command 0x%02x", e.ID)
}

type InvalidLengthError struct {
	Expected int
	Actual   int
}

func (e *InvalidLengthError) Error() string {
	return fmt.Sprintf("invalid length: expected %d, got %d", e.Expected, e.Actual)
}

// Message is one of Status, VersionInfo or StatusRequest.
type Message interface {
	message()
}

type Status struct {
	Button      uint8
	Triggered   bool
	LongPressed bool
	Pressed     bool
	Released    bool
}

type VersionInfo struct {
	Major    uint8
	Minor    uint8
	Patch    uint8
	Hardware HardwareType
}

type StatusRequest struct{}

func (Status) message()        {}
func (VersionInfo) message()   {}
func (StatusRequest) message() {}

func (s Status) String() string {
	return fmt.Sprintf(
		"Status {button: %d, triggered: %t, longpress: %t, pressed: %t, released: %t}",
		s.Button, s.Triggered, s.LongPressed, s.Pressed, s.Released,
	)
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("Version Info: %d.%d.%d, type %s", v.Major, v.Minor, v.Patch, v.Hardware)
}

func (StatusRequest) String() string {
	return "Status Request"
}

// Decode parses an inbound report, report id byte included.
func Decode(buf []byte) (Message, error) {
	if len(buf) < headerLength {
		return nil, &InvalidLengthError{Expected: headerLength, Actual: len(buf)}
	}
	body := buf[headerLength:]
	switch buf[1] {
	case msgStatus:
		if len(body) < statusLength {
			return nil, &InvalidLengthError{Expected: statusLength, Actual: len(body)}
		}
		return Status{
			Button:      body[0],
			Triggered:   body[1] != 0,
			LongPressed: body[2] != 0,
			Pressed:     body[3] != 0,
			Released:    body[4] != 0,
		}, nil
	case msgVersionInfo:
		if len(body) < versionLength {
			return nil, &InvalidLengthError{Expected: versionLength, Actual: len(body)}
		}
		return VersionInfo{
			Major:    body[0],
			Minor:    body[1],
			Patch:    body[2],
			Hardware: hardwareType(body[3]),
		}, nil
	case msgStatusRequest:
		return StatusRequest{}, nil
	default:
		return nil, &UnknownCommandError{ID: buf[1]}
	}
}

type HardwareType uint8

const (
	HardwareUnknown         HardwareType = 0x00
	HardwareFiveButtonUsbV1 HardwareType = 0x02
	HardwareFiveButtonUsb   HardwareType = 0x03
	HardwareFiveButtonBt    HardwareType = 0x04
	HardwareTenButtonUsb    HardwareType = 0x05
	HardwareTenButtonBt     HardwareType = 0x06
)

func hardwareType(b byte) HardwareType {
	switch t := HardwareType(b); t {
	case HardwareFiveButtonUsbV1, HardwareFiveButtonUsb, HardwareFiveButtonBt,
		HardwareTenButtonUsb, HardwareTenButtonBt:
		return t
	}
	return HardwareUnknown
}

func (t HardwareType) String() string {
	switch t {
	case HardwareFiveButtonUsbV1:
		return "FiveButtonUsbV1"
	case HardwareFiveButtonUsb:
		return "FiveButtonUsb"
	case HardwareFiveButtonBt:
		return "FiveButtonBt"
	case HardwareTenButtonUsb:
		return "TenButtonUsb"
	case HardwareTenButtonBt:
		return "TenButtonBt"
	}
	return "Unknown"
}
