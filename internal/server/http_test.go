package server

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutenix-org/mutenixd/internal/core"
	"github.com/mutenix-org/mutenixd/internal/logs"
	"github.com/mutenix-org/mutenixd/internal/meeting"
	"github.com/mutenix-org/mutenixd/internal/message"
	"github.com/mutenix-org/mutenixd/internal/server/status"
	"github.com/mutenix-org/mutenixd/internal/wire"
)

const testAddress = "127.0.0.1:12909"

type fakeDevice struct {
	mutex    sync.Mutex
	commands []wire.Command
	err      error
}

func (d *fakeDevice) State() core.HardwareState {
	return core.HardwareState{State: core.Connected, Serial: "A1B2", Product: "Mutenix Macropad"}
}

func (d *fakeDevice) SendCommand(ctx context.Context, cmd wire.Command) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.err != nil {
		return d.err
	}
	d.commands = append(d.commands, cmd)
	return nil
}

type fakeMeeting struct {
	state *meeting.State
	mutex sync.Mutex
	sent  []message.ClientMessage
}

func (m *fakeMeeting) State() *meeting.State {
	return m.state
}

func (m *fakeMeeting) Send(msg message.ClientMessage) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

type fixture struct {
	srv     *httptest.Server
	client  *http.Client
	device  *fakeDevice
	meeting *fakeMeeting
}

func newFixture(t *testing.T) (*fixture, func()) {
	l, err := logs.New(logs.Options{Level: "debug"})
	require.NoError(t, err)
	l.Get("test").Info("first line")

	f := &fixture{
		device:  &fakeDevice{},
		meeting: &fakeMeeting{state: meeting.NewState()},
	}
	s := New(testAddress, f.device, f.meeting, l.Memory, "1.2.3", l.Get("server"))
	f.srv = httptest.NewServer(s.Handler)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	f.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return f, func() {
		f.srv.Close()
		s.access.Close()
	}
}

func (f *fixture) do(t *testing.T, method, path, origin string, body string, header http.Header) *http.Response {
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	return resp
}

func (f *fixture) status(t *testing.T) status.Info {
	resp := f.do(t, "GET", "/status/", "", "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))

	var info status.Info
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	return info
}

func TestStatus(t *testing.T) {
	f, done := newFixture(t)
	defer done()

	info := f.status(t)
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, core.Connected, info.Device.State)
	assert.Equal(t, "A1B2", info.Device.Serial)
	assert.Equal(t, meeting.Disconnected, info.Meeting.Connection)
	assert.Nil(t, info.Meeting.State)
	assert.Nil(t, info.Meeting.LastReceived)
	assert.NotEmpty(t, info.CSRFToken)

	resp := f.do(t, "GET", "/status/", "http://evil.example", "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestStatusJSONNames(t *testing.T) {
	f, done := newFixture(t)
	defer done()

	resp := f.do(t, "GET", "/status/", "", "", nil)
	defer resp.Body.Close()
	var raw map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))

	device := raw["device"].(map[string]interface{})
	assert.Equal(t, "connected", device["state"])
	assert.Equal(t, "disconnected", raw["meeting"].(map[string]interface{})["connection"])
}

func TestStatusLogExport(t *testing.T) {
	f, done := newFixture(t)
	defer done()
	token := f.status(t).CSRFToken
	origin := "http://" + testAddress

	resp := f.do(t, "POST", "/status/log.gz", origin, "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, "POST", "/status/log.gz", "", "", http.Header{"X-Csrf-Token": {token}})
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, "POST", "/status/log.gz", origin, "", http.Header{"X-Csrf-Token": {token}})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/gzip", resp.Header.Get("Content-Type"))

	data, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	r, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	plain, err := ioutil.ReadAll(r)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(plain), "mutenixd 1.2.3\n"))
	assert.Contains(t, string(plain), "first line")
}

func TestRedirect(t *testing.T) {
	f, done := newFixture(t)
	defer done()

	resp := f.do(t, "GET", "/", "", "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.Equal(t, "http://"+testAddress+"/status/", resp.Header.Get("Location"))
}

func TestMetrics(t *testing.T) {
	f, done := newFixture(t)
	defer done()

	resp := f.do(t, "GET", "/metrics", "", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestLed(t *testing.T) {
	f, done := newFixture(t)
	defer done()

	resp := f.do(t, "POST", "/api/led", "", `{"led": 3, "color": "green"}`, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, "POST", "/api/led", "http://localhost:3000", `{"led": 1, "color": "red"}`, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	f.device.mutex.Lock()
	require.Len(t, f.device.commands, 2)
	first := f.device.commands[0].(wire.SetLed)
	assert.Equal(t, uint8(3), first.LedID)
	assert.Equal(t, wire.Green, first.Color)
	f.device.mutex.Unlock()

	resp = f.do(t, "POST", "/api/led", "", `{"led": 1, "color": "mauve"}`, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, "POST", "/api/led", "https://evil.example", `{"led": 1, "color": "red"}`, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	f.device.mutex.Lock()
	f.device.err = core.ErrNotConnected
	f.device.mutex.Unlock()
	resp = f.do(t, "POST", "/api/led", "", `{"led": 1, "color": "red"}`, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, core.ErrNotConnected.Error(), body["error"])
}

func TestAction(t *testing.T) {
	f, done := newFixture(t)
	defer done()

	tests := []struct {
		body string
		code int
	}{
		{`{"action": "toggle-mute"}`, http.StatusOK},
		{`{"action": "send-reaction", "parameter": "wow"}`, http.StatusOK},
		{`{"action": "toggle-ui", "parameter": "chat"}`, http.StatusOK},
		{`{"action": "send-reaction"}`, http.StatusBadRequest},
		{`{"action": "toggle-mute", "parameter": "wow"}`, http.StatusBadRequest},
		{`{"action": "dance"}`, http.StatusBadRequest},
		{`not json`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		resp := f.do(t, "POST", "/api/action", "", tt.body, nil)
		resp.Body.Close()
		assert.Equal(t, tt.code, resp.StatusCode, tt.body)
	}

	f.meeting.mutex.Lock()
	defer f.meeting.mutex.Unlock()
	require.Len(t, f.meeting.sent, 3)
	assert.Equal(t, message.ActionToggleMute, f.meeting.sent[0].Action)
	assert.Equal(t, message.ReactWow, f.meeting.sent[1].Parameters.Type)
	assert.Equal(t, message.ToggleUIChat, f.meeting.sent[2].Parameters.Type)
}

func TestPreflight(t *testing.T) {
	f, done := newFixture(t)
	defer done()

	header := http.Header{
		"Access-Control-Request-Method":  {"POST"},
		"Access-Control-Request-Headers": {"Content-Type"},
	}
	resp := f.do(t, "OPTIONS", "/api/action", "http://127.0.0.1:8080", "", header)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://127.0.0.1:8080", resp.Header.Get("Access-Control-Allow-Origin"))

	header.Set("Access-Control-Request-Method", "DELETE")
	resp = f.do(t, "OPTIONS", "/api/action", "http://127.0.0.1:8080", "", header)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	f.meeting.mutex.Lock()
	assert.Empty(t, f.meeting.sent)
	f.meeting.mutex.Unlock()
}
