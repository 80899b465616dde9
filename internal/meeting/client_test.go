package meeting

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/posener/wstest"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutenix-org/mutenixd/internal/message"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.Out = ioutil.Discard
	return logrus.NewEntry(l)
}

var testID = NewIdentifier("mutenix", "macropad", "mutenixd", "1.0.0").WithToken("secret token")

// fakeService accepts every connection and records what the client
// sends.
type fakeService struct {
	upgrader websocket.Upgrader
	conns    chan *websocket.Conn
	queries  chan url.Values
	received chan []byte
}

func newFakeService() *fakeService {
	return &fakeService{
		conns:    make(chan *websocket.Conn, 10),
		queries:  make(chan url.Values, 10),
		received: make(chan []byte, 100),
	}
}

func (s *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.queries <- r.URL.Query()
	s.conns <- conn
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if kind == websocket.TextMessage {
			s.received <- data
		}
	}
}

func (s *fakeService) accept(t *testing.T) *websocket.Conn {
	select {
	case conn := <-s.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("client did not connect")
		return nil
	}
}

func (s *fakeService) next(t *testing.T) message.ClientMessage {
	select {
	case data := <-s.received:
		var m message.ClientMessage
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("nothing received")
		return message.ClientMessage{}
	}
}

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	opts = append([]Option{
		WithDialer(wstest.NewDialer(h)),
		WithRetryInterval(10 * time.Millisecond),
	}, opts...)
	c, err := New("ws://localhost/meeting", testID, testLog(), opts...)
	require.NoError(t, err)
	return c
}

func runClient(c *Client) chan error {
	done := make(chan error, 1)
	go func() {
		done <- c.Run(context.Background())
	}()
	return done
}

func TestIdentifierURI(t *testing.T) {
	uri, err := testID.buildURI("ws://127.0.0.1:8124/path?keep=1")
	require.NoError(t, err)

	u, err := url.Parse(uri)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8124", u.Host)
	assert.Equal(t, "/path", u.Path)

	q := u.Query()
	assert.Equal(t, "1", q.Get("keep"))
	assert.Equal(t, "2.0.0", q.Get("protocol-version"))
	assert.Equal(t, "mutenix", q.Get("manufacturer"))
	assert.Equal(t, "macropad", q.Get("device"))
	assert.Equal(t, "mutenixd", q.Get("app"))
	assert.Equal(t, "1.0.0", q.Get("app-version"))
	assert.Equal(t, "secret token", q.Get("token"))
	assert.NotContains(t, uri, "secret token")

	_, err = testID.buildURI("http://127.0.0.1:8124")
	assert.True(t, errors.Is(err, ErrConnection))

	_, err = New("ws://[::1", testID, testLog())
	assert.True(t, errors.Is(err, ErrConnection))
}

func TestClientNotStarted(t *testing.T) {
	c := newTestClient(t, newFakeService())
	assert.Equal(t, Disconnected, c.ConnectionStatus())

	require.NoError(t, c.Send(message.NewAction(message.ActionToggleMute)))
	assert.Equal(t, 1, c.queue.len())

	_, ok := c.State().LastReceived()
	assert.False(t, ok)
}

func TestClientReceive(t *testing.T) {
	svc := newFakeService()
	c := newTestClient(t, svc)

	var mutex sync.Mutex
	var first, second []message.ServerMessage
	c.RegisterCallback(func(m message.ServerMessage) {
		mutex.Lock()
		first = append(first, m)
		mutex.Unlock()
	})

	done := runClient(c)
	defer c.Stop()
	conn := svc.accept(t)
	require.Eventually(t, func() bool {
		return c.ConnectionStatus() == Connected
	}, time.Second, time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"meetingUpdate":{"meetingState":{"isMuted":true,"isInMeeting":true}}}`)))
	require.Eventually(t, func() bool {
		mutex.Lock()
		defer mutex.Unlock()
		return len(first) == 1
	}, time.Second, time.Millisecond)

	c.RegisterCallback(func(m message.ServerMessage) {
		mutex.Lock()
		second = append(second, m)
		mutex.Unlock()
	})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"meetingUpdate":{"meetingPermissions":{"canToggleMute":true}}}`)))
	require.Eventually(t, func() bool {
		mutex.Lock()
		defer mutex.Unlock()
		return len(second) == 1
	}, time.Second, time.Millisecond)

	mutex.Lock()
	assert.Len(t, first, 1)
	mutex.Unlock()

	merged := c.State().Message()
	state, ok := merged.State()
	require.True(t, ok)
	assert.True(t, state.IsMuted)
	assert.True(t, state.IsInMeeting)
	perms, ok := merged.Permissions()
	require.True(t, ok)
	assert.True(t, perms.CanToggleMute)

	at, ok := c.State().LastReceived()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), at, time.Second)

	c.Stop()
	select {
	case err := <-done:
		assert.Equal(t, ErrStopped, err)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not stop")
	}
	assert.Equal(t, Disconnected, c.ConnectionStatus())
}

func TestClientSendOrder(t *testing.T) {
	svc := newFakeService()
	c := newTestClient(t, svc)

	var sent []message.ClientMessage
	for _, a := range []message.MeetingAction{
		message.ActionQueryState,
		message.ActionToggleMute,
		message.ActionToggleVideo,
	} {
		m := message.NewAction(a)
		sent = append(sent, m)
		require.NoError(t, c.Send(m))
	}

	runClient(c)
	defer c.Stop()
	svc.accept(t)

	for _, want := range sent {
		assert.Equal(t, want, svc.next(t))
	}

	later := message.NewReaction(message.ReactWow)
	require.NoError(t, c.Send(later))
	assert.Equal(t, later, svc.next(t))
}

func TestClientDropsInvalidFrames(t *testing.T) {
	svc := newFakeService()
	c := newTestClient(t, svc)

	var calls int32
	c.RegisterCallback(func(message.ServerMessage) {
		atomic.AddInt32(&calls, 1)
	})

	runClient(c)
	defer c.Stop()
	conn := svc.accept(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"meetingUpdate":`)))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte(`{"response":"binary"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"response":"text"}`)))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 1
	}, time.Second, time.Millisecond)

	m := c.State().Message()
	require.NotNil(t, m.Response)
	assert.Equal(t, "text", *m.Response)
	assert.Equal(t, Connected, c.ConnectionStatus())
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClientReconnects(t *testing.T) {
	svc := newFakeService()
	srv := httptest.NewServer(svc)
	defer srv.Close()

	c, err := New(wsURL(srv), testID, testLog(), WithRetryInterval(10*time.Millisecond))
	require.NoError(t, err)
	runClient(c)
	defer c.Stop()

	conn := svc.accept(t)
	q := <-svc.queries
	assert.Equal(t, "secret token", q.Get("token"))

	require.NoError(t, c.Send(message.NewAction(message.ActionRaiseHand)))
	assert.Equal(t, message.ActionRaiseHand, svc.next(t).Action)

	conn.Close()
	svc.accept(t)
	require.Eventually(t, func() bool {
		return c.ConnectionStatus() == Connected
	}, time.Second, time.Millisecond)

	require.NoError(t, c.Send(message.NewAction(message.ActionLowerHand)))
	assert.Equal(t, message.ActionLowerHand, svc.next(t).Action)
}

func TestClientRetriesUntilServiceIsUp(t *testing.T) {
	svc := newFakeService()
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) <= 3 {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		svc.ServeHTTP(w, r)
	}))
	defer srv.Close()

	c, err := New(wsURL(srv), testID, testLog(), WithRetryInterval(5*time.Millisecond))
	require.NoError(t, err)
	runClient(c)
	defer c.Stop()

	svc.accept(t)
	assert.True(t, atomic.LoadInt32(&attempts) >= 4)
	require.Eventually(t, func() bool {
		return c.ConnectionStatus() == Connected
	}, time.Second, time.Millisecond)
}

func TestClientContextCancel(t *testing.T) {
	c, err := New("ws://127.0.0.1:1", testID, testLog(), WithRetryInterval(5*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx)
	}()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, Disconnected, c.ConnectionStatus())
	cancel()

	select {
	case err := <-done:
		assert.Equal(t, context.Canceled, err)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not stop")
	}
}

func TestClientStopWhileConnecting(t *testing.T) {
	c, err := New("ws://127.0.0.1:1", testID, testLog(), WithRetryInterval(5*time.Millisecond))
	require.NoError(t, err)
	done := runClient(c)
	time.Sleep(20 * time.Millisecond)
	c.Stop()

	select {
	case err := <-done:
		assert.Equal(t, ErrStopped, err)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not stop")
	}
}

func TestConnectionStateText(t *testing.T) {
	for _, s := range []ConnectionState{Disconnected, Connected} {
		data, err := json.Marshal(s)
		require.NoError(t, err)

		var out ConnectionState
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, s, out)
	}
	data, err := json.Marshal(Connected)
	require.NoError(t, err)
	assert.Equal(t, `"connected"`, string(data))

	var out ConnectionState
	assert.Error(t, json.Unmarshal([]byte(`"connecting"`), &out))
}
