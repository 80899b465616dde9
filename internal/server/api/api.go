package api

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mutenix-org/mutenixd/internal/message"
	"github.com/mutenix-org/mutenixd/internal/wire"
)

// This package lets local tools drive the macropad LEDs and the meeting
// service. Requests are decoded here and handed to the device link or
// the meeting client.

const commandTimeout = 2 * time.Second

type Device interface {
	SendCommand(ctx context.Context, cmd wire.Command) error
}

type Meeting interface {
	Send(msg message.ClientMessage) error
}

type api struct {
	device  Device
	meeting Meeting
	counter uint32
	log     *logrus.Entry
}

type LedRequest struct {
	Led   uint8  `json:"led"`
	Color string `json:"color"`
}

type ActionRequest struct {
	Action    string `json:"action"`
	Parameter string `json:"parameter,omitempty"`
}

type ActionResponse struct {
	RequestID uint32 `json:"requestId"`
}

func ServeAPI(r *mux.Router, d Device, m Meeting, log *logrus.Entry) {
	a := &api{
		device:  d,
		meeting: m,
		log:     log,
	}
	r.HandleFunc("/led", a.Led).Methods("POST", "OPTIONS")
	r.HandleFunc("/action", a.Action).Methods("POST", "OPTIONS")
	r.Use(CORS(corsValidator()))
}

func (a *api) Led(w http.ResponseWriter, r *http.Request) {
	var req LedRequest
	if err := decode(r, &req); err != nil {
		a.respondError(w, http.StatusBadRequest, err)
		return
	}
	color, err := wire.ParseLedColor(req.Color)
	if err != nil {
		a.respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()
	cmd := wire.SetLed{
		LedID:   req.Led,
		Color:   color,
		Counter: uint8(atomic.AddUint32(&a.counter, 1)),
	}
	if err := a.device.SendCommand(ctx, cmd); err != nil {
		a.respondError(w, http.StatusServiceUnavailable, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) Action(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := decode(r, &req); err != nil {
		a.respondError(w, http.StatusBadRequest, err)
		return
	}
	msg, err := buildMessage(req)
	if err != nil {
		a.respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.meeting.Send(msg); err != nil {
		a.respondError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ActionResponse{RequestID: msg.RequestID}); err != nil {
		a.log.WithError(err).Warn("writing response")
	}
}

func buildMessage(req ActionRequest) (message.ClientMessage, error) {
	action, err := message.ParseAction(req.Action)
	if err != nil {
		return message.ClientMessage{}, err
	}
	switch action {
	case message.ActionReact, message.ActionToggleUI:
		p, err := message.ParseParameterType(req.Parameter)
		if err != nil {
			return message.ClientMessage{}, errors.Wrapf(err, "%s needs a parameter", action)
		}
		if action == message.ActionReact {
			return message.NewReaction(p), nil
		}
		return message.NewToggleUI(p), nil
	}
	if req.Parameter != "" {
		return message.ClientMessage{}, errors.Errorf("%s takes no parameter", action)
	}
	return message.NewAction(action), nil
}

func decode(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return errors.Wrap(json.NewDecoder(r.Body).Decode(v), "decoding request")
}

// Non-browser clients send no origin; browsers only from local pages.
func corsValidator() OriginValidator {
	local := regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1)(:[[:digit:]]+)?$`)
	return func(origin string) bool {
		return origin == "" || local.MatchString(origin)
	}
}

func (a *api) respondError(w http.ResponseWriter, code int, err error) {
	type jsonError struct {
		Error string `json:"error"`
	}
	a.log.WithError(err).Debug("returning error")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(jsonError{Error: err.Error()}); err != nil {
		a.log.WithError(err).Warn("writing error")
	}
}
