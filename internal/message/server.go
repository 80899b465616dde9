package message

// Messages sent by the meeting service. Every field is optional; absent
// fields carry no information and never cause a decode error.

type MeetingPermissions struct {
	CanToggleMute      bool `json:"canToggleMute"`
	CanToggleVideo     bool `json:"canToggleVideo"`
	CanToggleHand      bool `json:"canToggleHand"`
	CanToggleBlur      bool `json:"canToggleBlur"`
	CanLeave           bool `json:"canLeave"`
	CanReact           bool `json:"canReact"`
	CanToggleShareTray bool `json:"canToggleShareTray"`
	CanToggleChat      bool `json:"canToggleChat"`
	CanStopSharing     bool `json:"canStopSharing"`
	CanPair            bool `json:"canPair"`
}

type MeetingState struct {
	IsMuted             bool `json:"isMuted"`
	IsHandRaised        bool `json:"isHandRaised"`
	IsInMeeting         bool `json:"isInMeeting"`
	IsRecordingOn       bool `json:"isRecordingOn"`
	IsBackgroundBlurred bool `json:"isBackgroundBlurred"`
	IsSharing           bool `json:"isSharing"`
	HasUnreadMessages   bool `json:"hasUnreadMessages"`
	IsVideoOn           bool `json:"isVideoOn"`
}

type MeetingUpdate struct {
	MeetingPermissions *MeetingPermissions `json:"meetingPermissions,omitempty"`
	MeetingState       *MeetingState       `json:"meetingState,omitempty"`
}

type ServerMessage struct {
	RequestID     *uint32        `json:"requestId,omitempty"`
	Response      *string        `json:"response,omitempty"`
	ErrorMsg      *string        `json:"errorMsg,omitempty"`
	TokenRefresh  *string        `json:"tokenRefresh,omitempty"`
	MeetingUpdate *MeetingUpdate `json:"meetingUpdate,omitempty"`
}

// Merge returns base updated with every field present in update. The
// state and permissions of a meeting update are merged independently.
// Neither argument is modified.
func Merge(base, update ServerMessage) ServerMessage {
	out := base
	if update.RequestID != nil {
		out.RequestID = update.RequestID
	}
	if update.Response != nil {
		out.Response = update.Response
	}
	if update.ErrorMsg != nil {
		out.ErrorMsg = update.ErrorMsg
	}
	if update.TokenRefresh != nil {
		out.TokenRefresh = update.TokenRefresh
	}
	if u := update.MeetingUpdate; u != nil {
		merged := MeetingUpdate{}
		if base.MeetingUpdate != nil {
			merged = *base.MeetingUpdate
		}
		if u.MeetingPermissions != nil {
			merged.MeetingPermissions = u.MeetingPermissions
		}
		if u.MeetingState != nil {
			merged.MeetingState = u.MeetingState
		}
		out.MeetingUpdate = &merged
	}
	return out
}

// State returns the meeting state, if any was received.
func (m *ServerMessage) State() (MeetingState, bool) {
	if m.MeetingUpdate == nil || m.MeetingUpdate.MeetingState == nil {
		return MeetingState{}, false
	}
	return *m.MeetingUpdate.MeetingState, true
}

func (m *ServerMessage) Permissions() (MeetingPermissions, bool) {
	if m.MeetingUpdate == nil || m.MeetingUpdate.MeetingPermissions == nil {
		return MeetingPermissions{}, false
	}
	return *m.MeetingUpdate.MeetingPermissions, true
}
