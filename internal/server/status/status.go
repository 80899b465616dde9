package status

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/csrf"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/mutenix-org/mutenixd/internal/core"
	"github.com/mutenix-org/mutenixd/internal/logs"
	"github.com/mutenix-org/mutenixd/internal/meeting"
	"github.com/mutenix-org/mutenixd/internal/message"
)

// This package serves the daemon state on /status/ and the detailed
// log at /status/log.gz

type Device interface {
	State() core.HardwareState
}

type Meeting interface {
	State() *meeting.State
}

type status struct {
	device  Device
	meeting Meeting
	version string
	memory  *logs.MemoryWriter
	log     *logrus.Entry
}

// Info is the JSON document served on /status/.
type Info struct {
	Version   string             `json:"version"`
	Device    core.HardwareState `json:"device"`
	Meeting   MeetingInfo        `json:"meeting"`
	CSRFToken string             `json:"csrfToken"`
}

type MeetingInfo struct {
	Connection   meeting.ConnectionState     `json:"connection"`
	State        *message.MeetingState       `json:"state,omitempty"`
	Permissions  *message.MeetingPermissions `json:"permissions,omitempty"`
	LastReceived *time.Time                  `json:"lastReceived,omitempty"`
}

const csrfkey = "c4n5o7y3k2a9d1e0m8u6t5e4n3i2x1z0"

func ServeStatusRedirect(r *mux.Router, address string) {
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://"+address+"/status/", http.StatusMovedPermanently)
	})
	r.Use(OriginCheck(map[string]string{
		"/": "",
	}))
}

func ServeStatus(r *mux.Router, d Device, m Meeting, address, version string, memory *logs.MemoryWriter, log *logrus.Entry) {
	s := &status{
		device:  d,
		meeting: m,
		version: version,
		memory:  memory,
		log:     log,
	}
	r.Methods("GET").Path("/").HandlerFunc(s.statusPage)
	r.Methods("POST").Path("/log.gz").HandlerFunc(s.statusGzip)

	r.Use(csrf.Protect([]byte(csrfkey), csrf.Secure(false)))
	r.Use(OriginCheck(map[string]string{
		"/status/":       "",
		"/status/log.gz": "http://" + address,
	}))
}

func (s *status) statusPage(w http.ResponseWriter, r *http.Request) {
	info := Info{
		Version:   s.version,
		Device:    s.device.State(),
		Meeting:   s.meetingInfo(),
		CSRFToken: csrf.Token(r),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(info); err != nil {
		s.log.WithError(err).Warn("writing status")
	}
}

func (s *status) meetingInfo() MeetingInfo {
	state := s.meeting.State()
	info := MeetingInfo{
		Connection: state.ConnectionStatus(),
	}
	msg := state.Message()
	if ms, ok := msg.State(); ok {
		info.State = &ms
	}
	if mp, ok := msg.Permissions(); ok {
		info.Permissions = &mp
	}
	if at, ok := state.LastReceived(); ok {
		info.LastReceived = &at
	}
	return info
}

func (s *status) statusGzip(w http.ResponseWriter, r *http.Request) {
	s.log.Debug("building gzip")

	header := "mutenixd " + s.version + "\n" +
		"device: " + s.device.State().State.String() + "\n" +
		"meeting: " + s.meeting.State().ConnectionStatus().String() + "\n" +
		"\nCurrent log:\n"

	gzip, err := s.memory.Gzip(header)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/gzip")
	if _, err := w.Write(gzip); err != nil {
		s.log.WithError(err).Warn("writing log export")
	}
}

func respondError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusBadRequest)
}
