package core

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"

	"github.com/mutenix-org/mutenixd/internal/metrics"
	"github.com/mutenix-org/mutenixd/internal/wire"
)

// Package with the "core logic" of the macropad link: finding and
// (re)connecting the device, the read, write and keepalive loops, and
// the firmware update procedure.

const (
	readBufferSize = 64

	defaultPollInterval = time.Second
	defaultPingInterval = 4 * time.Second
	defaultReadTimeout  = 100 * time.Millisecond
	notConnectedDelay   = 100 * time.Millisecond
)

type Link struct {
	bus        USBBus
	identities []DeviceIdentity

	pollInterval time.Duration
	pingInterval time.Duration
	readTimeout  time.Duration

	state      HardwareState
	stateMutex sync.RWMutex

	// I/O holds the read lock; connect, disconnect and updates hold the
	// write lock.
	dev      USBDevice
	devMutex sync.RWMutex

	subscribers []func(wire.Message)
	subMutex    sync.RWMutex

	queue *writeQueue

	log     *logrus.Entry
	metrics *metrics.Metrics
}

type Option func(*Link)

// WithPollInterval sets how often the bus is searched while no device
// is connected.
func WithPollInterval(d time.Duration) Option {
	return func(l *Link) {
		l.pollInterval = d
	}
}

func WithPingInterval(d time.Duration) Option {
	return func(l *Link) {
		l.pingInterval = d
	}
}

func WithReadTimeout(d time.Duration) Option {
	return func(l *Link) {
		l.readTimeout = d
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Link) {
		l.metrics = m
	}
}

func New(bus USBBus, identities []DeviceIdentity, log *logrus.Entry, opts ...Option) *Link {
	l := &Link{
		bus:          bus,
		identities:   identities,
		pollInterval: defaultPollInterval,
		pingInterval: defaultPingInterval,
		readTimeout:  defaultReadTimeout,
		queue:        newWriteQueue(),
		log:          log,
		metrics:      metrics.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State returns a snapshot of the hardware state.
func (l *Link) State() HardwareState {
	l.stateMutex.RLock()
	defer l.stateMutex.RUnlock()
	return l.state
}

func (l *Link) setState(s HardwareState) {
	l.stateMutex.Lock()
	l.state = s
	l.stateMutex.Unlock()
}

// Subscribe registers f for Status and StatusRequest messages.
// Subscribers are never removed.
func (l *Link) Subscribe(f func(wire.Message)) {
	l.subMutex.Lock()
	defer l.subMutex.Unlock()
	l.subscribers = append(l.subscribers, f)
}

// SendCommand queues cmd and waits until it was written. It fails with
// ErrNotConnected once the link has shut down, with ErrDisconnected when
// the device is lost while cmd is still queued, and with
// *wire.InvalidColorError without queueing anything for a SetLed whose
// color cannot be encoded.
func (l *Link) SendCommand(ctx context.Context, cmd wire.Command) error {
	if err := wire.Validate(cmd); err != nil {
		return err
	}
	r := &writeRequest{
		report: wire.Report(cmd),
		name:   wire.Name(cmd),
		result: make(chan error, 1),
	}
	if err := l.queue.push(r); err != nil {
		return err
	}
	select {
	case err := <-r.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run connects to the device and serves it until ctx is cancelled.
// It always returns a non-nil error.
func (l *Link) Run(ctx context.Context) error {
	defer l.queue.close()

	if err := l.connect(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		l.readLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		l.writeLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		l.pingLoop(ctx)
	}()
	wg.Wait()

	l.disconnect()
	l.log.Info("link stopped")
	return ctx.Err()
}

// connect searches for a device until one opens or ctx is done.
func (l *Link) connect(ctx context.Context) error {
	l.log.Info("looking for device")
	b := backoff.WithContext(backoff.NewConstantBackOff(l.pollInterval), ctx)
	err := backoff.RetryNotify(l.open, b, func(err error, next time.Duration) {
		l.log.WithError(err).Tracef("no device, retrying in %s", next)
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (l *Link) open() error {
	infos, err := l.bus.Enumerate()
	if err != nil {
		l.setState(HardwareState{State: Error})
		return &BusError{Err: err}
	}
	info, ok := selectDevice(infos, l.identities)
	if !ok {
		l.setState(HardwareState{State: Disconnected})
		return ErrNotConnected
	}
	dev, err := l.bus.Connect(info.Path)
	if err != nil {
		l.setState(HardwareState{State: Error})
		return &BusError{Err: err}
	}

	l.devMutex.Lock()
	l.dev = dev
	l.devMutex.Unlock()

	state := HardwareState{
		State:        Connected,
		Serial:       info.Serial,
		Manufacturer: info.Manufacturer,
		Product:      info.Product,
	}
	l.setState(state)
	l.metrics.Connected("hid")
	l.log.WithFields(logrus.Fields{
		"path":         info.Path,
		"serial":       state.Serial,
		"manufacturer": state.Manufacturer,
		"product":      state.Product,
	}).Info("connected to device")
	return nil
}

func (l *Link) disconnect() {
	l.devMutex.Lock()
	if l.dev != nil {
		if err := l.dev.Close(); err != nil {
			l.log.WithError(err).Debug("closing device")
		}
		l.dev = nil
	}
	l.devMutex.Unlock()
	l.setState(HardwareState{State: Disconnected})
}

func (l *Link) readLoop(ctx context.Context) {
	buf := make([]byte, readBufferSize)
	for ctx.Err() == nil {
		n, err := l.read(buf)
		switch {
		case err == ErrNotConnected:
			sleep(ctx, notConnectedDelay)
		case err != nil:
			l.log.WithError(err).Error("read failed, reconnecting")
			l.disconnect()
			l.queue.fail(ErrDisconnected)
			if err := l.connect(ctx); err != nil {
				return
			}
		case n > 0:
			l.dispatch(buf[:n])
		}
	}
}

func (l *Link) read(buf []byte) (int, error) {
	l.devMutex.RLock()
	defer l.devMutex.RUnlock()
	if l.dev == nil {
		return 0, ErrNotConnected
	}
	n, err := l.dev.ReadTimeout(buf, l.readTimeout)
	if err != nil {
		return 0, &ReadError{Err: err}
	}
	return n, nil
}

func (l *Link) dispatch(data []byte) {
	l.log.Tracef("HID RX: % x", data)
	msg, err := wire.Decode(data)
	if err != nil {
		l.metrics.ReportRead("invalid")
		l.log.WithError(err).Debug("dropping report")
		return
	}

	switch m := msg.(type) {
	case wire.Status:
		l.metrics.ReportRead("status")
	case wire.StatusRequest:
		l.metrics.ReportRead("status_request")
	case wire.VersionInfo:
		l.metrics.ReportRead("version")
		l.log.Debug(m.String())
		return
	default:
		return
	}

	l.subMutex.RLock()
	subscribers := l.subscribers
	l.subMutex.RUnlock()
	for _, f := range subscribers {
		f(msg)
	}
}

func (l *Link) writeLoop(ctx context.Context) {
	for {
		r, ok := l.queue.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-l.queue.notify:
			}
			continue
		}
		err := l.write(r.report)
		l.metrics.CommandWritten(r.name, err)
		if err != nil {
			l.log.WithError(err).Errorf("sending %s", r.name)
		}
		r.result <- err
	}
}

func (l *Link) write(report []byte) error {
	l.devMutex.RLock()
	defer l.devMutex.RUnlock()
	return l.writeLocked(report)
}

// writeLocked expects devMutex to be held.
func (l *Link) writeLocked(report []byte) error {
	if l.dev == nil {
		return ErrNotConnected
	}
	l.log.Tracef("HID TX: % x", report)
	if _, err := l.dev.Write(report); err != nil {
		return &WriteError{Err: err}
	}
	return nil
}

func (l *Link) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()

	var counter uint8
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := l.SendCommand(ctx, wire.Ping{Counter: counter}); err != nil {
			if ctx.Err() != nil {
				return
			}
			l.log.WithError(err).Warn("ping failed")
		} else {
			l.log.Trace("ping sent")
		}
		counter++
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
