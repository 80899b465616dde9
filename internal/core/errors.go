package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected  = errors.New("device not connected")
	ErrDisconnected  = errors.New("device disconnected")
	ErrUpdateStalled = errors.New("update stalled")
)

type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write to device: %v", e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read from device: %v", e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// BusError is a failure of the underlying HID API.
type BusError struct {
	Err error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("hid api error: %v", e.Err)
}

func (e *BusError) Unwrap() error {
	return e.Err
}

// DeviceError is an error reported by the device during an update.
type DeviceError struct {
	Message string
}

func (e *DeviceError) Error() string {
	return "device error: " + e.Message
}
