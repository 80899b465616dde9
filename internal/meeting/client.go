package meeting

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/mutenix-org/mutenixd/internal/message"
	"github.com/mutenix-org/mutenixd/internal/metrics"
)

const (
	defaultRetryInterval = 250 * time.Millisecond
	receiveTimeout       = time.Second
	sendIdleSleep        = 200 * time.Millisecond
	closeWait            = 100 * time.Millisecond
)

// Client keeps a connection to the meeting service open. Messages
// queued with Send survive reconnects; everything the service sends is
// merged into the shared State.
type Client struct {
	uri     string
	baseURI string
	dialer  *websocket.Dialer

	retryInterval time.Duration

	state *State
	queue *sendQueue

	callback      func(message.ServerMessage)
	callbackMutex sync.RWMutex

	running    int32
	cancel     context.CancelFunc
	cancelLock sync.Mutex

	log     *logrus.Entry
	metrics *metrics.Metrics
}

type Option func(*Client)

// WithState shares s with other components, e.g. the status server.
func WithState(s *State) Option {
	return func(c *Client) {
		c.state = s
	}
}

func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) {
		c.retryInterval = d
	}
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New builds a client for the service at uri; it does not connect.
func New(uri string, id Identifier, log *logrus.Entry, opts ...Option) (*Client, error) {
	full, err := id.buildURI(uri)
	if err != nil {
		return nil, err
	}
	c := &Client{
		uri:           full,
		baseURI:       uri,
		dialer:        websocket.DefaultDialer,
		retryInterval: defaultRetryInterval,
		state:         NewState(),
		queue:         newSendQueue(),
		log:           log,
		metrics:       metrics.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) State() *State {
	return c.state
}

func (c *Client) ConnectionStatus() ConnectionState {
	return c.state.ConnectionStatus()
}

// RegisterCallback sets the function called for every decoded message,
// replacing the one registered before.
func (c *Client) RegisterCallback(f func(message.ServerMessage)) {
	c.callbackMutex.Lock()
	c.callback = f
	c.callbackMutex.Unlock()
}

func (c *Client) currentCallback() func(message.ServerMessage) {
	c.callbackMutex.RLock()
	defer c.callbackMutex.RUnlock()
	return c.callback
}

// Send queues msg for delivery. It never blocks and may be called
// before Run.
func (c *Client) Send(msg message.ClientMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return wrap(ErrJSON, err)
	}
	c.queue.push(data)
	c.log.WithField("requestId", msg.RequestID).Debugf("queued %s", msg.Action)
	return nil
}

// Stop makes Run return ErrStopped. The connection is closed once the
// loops notice.
func (c *Client) Stop() {
	c.cancelLock.Lock()
	defer c.cancelLock.Unlock()
	atomic.StoreInt32(&c.running, 0)
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Client) isRunning() bool {
	return atomic.LoadInt32(&c.running) == 1
}

// Run connects and reconnects until Stop is called or ctx is done.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.cancelLock.Lock()
	c.cancel = cancel
	atomic.StoreInt32(&c.running, 1)
	c.cancelLock.Unlock()

	for c.isRunning() && ctx.Err() == nil {
		conn, err := c.connect(ctx)
		if err != nil {
			break
		}
		c.serve(ctx, conn)
	}
	c.state.setConnectionStatus(Disconnected)
	c.log.Info("meeting client stopped")

	if !c.isRunning() {
		return ErrStopped
	}
	return ctx.Err()
}

func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	var conn *websocket.Conn
	dial := func() error {
		c.state.setConnectionStatus(Disconnected)
		var err error
		conn, _, err = c.dialer.DialContext(ctx, c.uri, nil)
		if err != nil {
			return wrap(ErrConnection, err)
		}
		return nil
	}

	c.log.WithField("uri", c.baseURI).Info("connecting to meeting service")
	b := backoff.WithContext(backoff.NewConstantBackOff(c.retryInterval), ctx)
	err := backoff.RetryNotify(dial, b, func(err error, next time.Duration) {
		c.log.WithError(err).Debugf("retrying in %s", next)
	})
	if ctx.Err() != nil {
		if err == nil {
			conn.Close()
		}
		return nil, ctx.Err()
	}
	return conn, err
}

// serve runs the send and receive loops on conn until one of them
// finishes, then tears the connection down.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	c.state.setConnectionStatus(Connected)
	c.metrics.Connected("meeting")
	c.log.Info("connected to meeting service")

	done := make(chan struct{})
	var once sync.Once
	finish := func() {
		once.Do(func() {
			close(done)
			if ctx.Err() != nil {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
			}
			conn.Close()
		})
	}

	errs := make(chan error, 2)
	go func() {
		errs <- c.sendLoop(ctx, conn, done)
		finish()
	}()
	go func() {
		errs <- c.receiveLoop(ctx, conn, done)
		finish()
	}()

	err := <-errs
	finish()
	<-errs

	c.state.setConnectionStatus(Disconnected)
	if err != nil && ctx.Err() == nil {
		c.log.WithError(err).Warn("connection to meeting service lost")
		sleep(ctx, c.retryInterval)
	}
}

func (c *Client) sendLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) error {
	idle := false
	for {
		data, ok := c.queue.pop()
		if !ok {
			if !idle {
				c.log.Trace("send queue empty")
				idle = true
			}
			t := time.NewTimer(sendIdleSleep)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil
			case <-done:
				t.Stop()
				return nil
			case <-c.queue.notify:
				t.Stop()
			case <-t.C:
			}
			continue
		}
		idle = false

		c.log.Tracef("WS TX: %s", data)
		err := conn.WriteMessage(websocket.TextMessage, data)
		c.metrics.MessageSent(err)
		if err != nil {
			c.queue.unshift(data)
			return wrap(ErrSend, err)
		}
	}
}

type frame struct {
	kind int
	data []byte
	err  error
}

func (c *Client) receiveLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) error {
	frames := make(chan frame)
	go func() {
		for {
			kind, data, err := conn.ReadMessage()
			select {
			case frames <- frame{kind, data, err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	t := time.NewTimer(receiveTimeout)
	defer t.Stop()
	for {
		if !t.Stop() {
			select {
			case <-t.C:
			default:
			}
		}
		t.Reset(receiveTimeout)

		select {
		case <-ctx.Done():
			return nil
		case <-done:
			return nil
		case <-t.C:
			if !c.isRunning() {
				return ErrStopped
			}
		case f := <-frames:
			if f.err != nil {
				if _, ok := f.err.(*websocket.CloseError); ok {
					return wrap(ErrWebSocket, f.err)
				}
				return wrap(ErrReceive, f.err)
			}
			c.handleFrame(f)
		}
	}
}

func (c *Client) handleFrame(f frame) {
	if f.kind != websocket.TextMessage {
		return
	}
	c.log.Tracef("WS RX: %s", f.data)

	var m message.ServerMessage
	if err := json.Unmarshal(f.data, &m); err != nil {
		c.metrics.MessageReceived(false)
		c.log.WithError(wrap(ErrJSON, err)).Warn("dropping message")
		return
	}
	c.metrics.MessageReceived(true)
	c.state.update(m, time.Now())

	if f := c.currentCallback(); f != nil {
		f(m)
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
