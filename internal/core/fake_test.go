package core

import (
	"errors"
	"sync"
	"time"
)

var errUnplugged = errors.New("unplugged")

// fakeDevice answers reads from a queue and records every write.
type fakeDevice struct {
	mutex   sync.Mutex
	reads   chan []byte
	writes  [][]byte
	readErr error
	closed  bool

	// onWrite may queue responses for a written report
	onWrite func(d *fakeDevice, report []byte)
	maxWait time.Duration
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		reads:   make(chan []byte, 256),
		maxWait: 5 * time.Millisecond,
	}
}

func (d *fakeDevice) queue(report []byte) {
	d.reads <- report
}

func (d *fakeDevice) unplug() {
	d.mutex.Lock()
	d.readErr = errUnplugged
	d.mutex.Unlock()
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	d.mutex.Lock()
	report := append([]byte(nil), p...)
	d.writes = append(d.writes, report)
	onWrite := d.onWrite
	d.mutex.Unlock()

	if onWrite != nil {
		onWrite(d, report)
	}
	return len(p), nil
}

func (d *fakeDevice) ReadTimeout(buf []byte, timeout time.Duration) (int, error) {
	d.mutex.Lock()
	err := d.readErr
	d.mutex.Unlock()
	if err != nil {
		return 0, err
	}

	if timeout > d.maxWait {
		timeout = d.maxWait
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case r := <-d.reads:
		return copy(buf, r), nil
	case <-t.C:
		return 0, nil
	}
}

func (d *fakeDevice) Close() error {
	d.mutex.Lock()
	d.closed = true
	d.mutex.Unlock()
	return nil
}

func (d *fakeDevice) isClosed() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.closed
}

func (d *fakeDevice) written() [][]byte {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return append([][]byte(nil), d.writes...)
}

// fakeBus hands out devices in order; the last one is reused.
type fakeBus struct {
	mutex    sync.Mutex
	infos    []USBInfo
	devices  []*fakeDevice
	connects int
	enumErr  error
}

func (b *fakeBus) Enumerate() ([]USBInfo, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.enumErr != nil {
		return nil, b.enumErr
	}
	return b.infos, nil
}

func (b *fakeBus) Has(path string) bool {
	for _, info := range b.infos {
		if info.Path == path {
			return true
		}
	}
	return false
}

func (b *fakeBus) Connect(path string) (USBDevice, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	i := b.connects
	if i >= len(b.devices) {
		i = len(b.devices) - 1
	}
	b.connects++
	return b.devices[i], nil
}

func (b *fakeBus) connectCount() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.connects
}

var padInfo = USBInfo{
	Path:         "hid0001",
	VendorID:     0x1d50,
	ProductID:    0x6189,
	Serial:       "A1B2",
	Manufacturer: "m42",
	Product:      "Mutenix Macropad",
}
