package message

import (
	"fmt"
	"sync/atomic"
)

// MeetingAction is an action the client asks the meeting service to
// perform. Its JSON form is the kebab-case wire name.
type MeetingAction int

const (
	ActionNone MeetingAction = iota
	ActionQueryState
	ActionMute
	ActionUnmute
	ActionToggleMute
	ActionHideVideo
	ActionShowVideo
	ActionToggleVideo
	ActionUnblurBackground
	ActionBlurBackground
	ActionToggleBackgroundBlur
	ActionLowerHand
	ActionRaiseHand
	ActionToggleHand
	ActionLeaveCall
	ActionReact
	ActionToggleUI
	ActionStopSharing
)

var actionNames = [...]string{
	ActionNone:                 "none",
	ActionQueryState:           "query-state",
	ActionMute:                 "mute",
	ActionUnmute:               "unmute",
	ActionToggleMute:           "toggle-mute",
	ActionHideVideo:            "hide-video",
	ActionShowVideo:            "show-video",
	ActionToggleVideo:          "toggle-video",
	ActionUnblurBackground:     "unblur-background",
	ActionBlurBackground:       "blur-background",
	ActionToggleBackgroundBlur: "toggle-background-blur",
	ActionLowerHand:            "lower-hand",
	ActionRaiseHand:            "raise-hand",
	ActionToggleHand:           "toggle-hand",
	ActionLeaveCall:            "leave-call",
	ActionReact:                "send-reaction",
	ActionToggleUI:             "toggle-ui",
	ActionStopSharing:          "stop-sharing",
}

func (a MeetingAction) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return fmt.Sprintf("MeetingAction(%d)", int(a))
	}
	return actionNames[a]
}

func (a MeetingAction) MarshalText() ([]byte, error) {
	if a < 0 || int(a) >= len(actionNames) {
		return nil, fmt.Errorf("unknown meeting action %d", int(a))
	}
	return []byte(actionNames[a]), nil
}

func (a *MeetingAction) UnmarshalText(b []byte) error {
	v, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

func ParseAction(s string) (MeetingAction, error) {
	for i, name := range actionNames {
		if name == s {
			return MeetingAction(i), nil
		}
	}
	return ActionNone, fmt.Errorf("unknown meeting action %q", s)
}

// ParameterType qualifies reactions and UI toggles.
type ParameterType string

const (
	ReactApplause   ParameterType = "applause"
	ReactLaugh      ParameterType = "laugh"
	ReactLike       ParameterType = "like"
	ReactLove       ParameterType = "love"
	ReactWow        ParameterType = "wow"
	ToggleUIChat    ParameterType = "chat"
	ToggleUISharing ParameterType = "sharing-tray"
)

func ParseParameterType(s string) (ParameterType, error) {
	switch p := ParameterType(s); p {
	case ReactApplause, ReactLaugh, ReactLike, ReactLove, ReactWow, ToggleUIChat, ToggleUISharing:
		return p, nil
	}
	return "", fmt.Errorf("unknown parameter type %q", s)
}

type Parameter struct {
	Type ParameterType `json:"type"`
}

type ClientMessage struct {
	Action     MeetingAction `json:"action"`
	Parameters *Parameter    `json:"parameters,omitempty"`
	RequestID  uint32        `json:"requestId"`
}

// requestID numbers client messages for local correlation. The service
// does not have to echo it and it is not unique across processes.
var requestID uint32

func nextRequestID() uint32 {
	return atomic.AddUint32(&requestID, 1) - 1
}

func newMessage(a MeetingAction, p *Parameter) ClientMessage {
	return ClientMessage{
		Action:     a,
		Parameters: p,
		RequestID:  nextRequestID(),
	}
}

// NewAction builds a message without parameters.
func NewAction(a MeetingAction) ClientMessage {
	return newMessage(a, nil)
}

func NewReaction(p ParameterType) ClientMessage {
	return newMessage(ActionReact, &Parameter{Type: p})
}

func NewToggleUI(p ParameterType) ClientMessage {
	return newMessage(ActionToggleUI, &Parameter{Type: p})
}
