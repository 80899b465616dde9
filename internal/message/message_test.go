package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *string { return &s }

func u32(v uint32) *uint32 { return &v }

func TestDecodeServerMessage(t *testing.T) {
	raw := `{
		"requestId": 12,
		"response": "Success",
		"unknownField": [1, 2, 3],
		"meetingUpdate": {
			"meetingState": {"isMuted": true, "isInMeeting": true, "isVideoOn": false},
			"meetingPermissions": {"canToggleMute": true, "canLeave": true}
		}
	}`
	var m ServerMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &m))

	require.NotNil(t, m.RequestID)
	assert.Equal(t, uint32(12), *m.RequestID)
	assert.Equal(t, "Success", *m.Response)
	assert.Nil(t, m.ErrorMsg)
	assert.Nil(t, m.TokenRefresh)

	state, ok := m.State()
	require.True(t, ok)
	assert.Equal(t, MeetingState{IsMuted: true, IsInMeeting: true}, state)

	perms, ok := m.Permissions()
	require.True(t, ok)
	assert.Equal(t, MeetingPermissions{CanToggleMute: true, CanLeave: true}, perms)
}

func TestDecodeEmptyMessage(t *testing.T) {
	var m ServerMessage
	require.NoError(t, json.Unmarshal([]byte(`{}`), &m))
	assert.Equal(t, ServerMessage{}, m)

	_, ok := m.State()
	assert.False(t, ok)
}

func TestMerge(t *testing.T) {
	base := ServerMessage{
		RequestID:    u32(1),
		Response:     str("ok"),
		TokenRefresh: str("old"),
		MeetingUpdate: &MeetingUpdate{
			MeetingPermissions: &MeetingPermissions{CanToggleMute: true},
			MeetingState:       &MeetingState{IsMuted: false},
		},
	}
	update := ServerMessage{
		ErrorMsg: str("nope"),
		MeetingUpdate: &MeetingUpdate{
			MeetingState: &MeetingState{IsMuted: true},
		},
	}

	merged := Merge(base, update)
	assert.Equal(t, uint32(1), *merged.RequestID)
	assert.Equal(t, "ok", *merged.Response)
	assert.Equal(t, "nope", *merged.ErrorMsg)
	assert.Equal(t, "old", *merged.TokenRefresh)

	state, _ := merged.State()
	assert.True(t, state.IsMuted)
	perms, ok := merged.Permissions()
	require.True(t, ok)
	assert.True(t, perms.CanToggleMute)

	// inputs are left alone
	assert.False(t, base.MeetingUpdate.MeetingState.IsMuted)
	assert.Nil(t, update.MeetingUpdate.MeetingPermissions)

	assert.Equal(t, merged, Merge(merged, update))
}

func TestMergeIntoEmpty(t *testing.T) {
	update := ServerMessage{
		MeetingUpdate: &MeetingUpdate{
			MeetingPermissions: &MeetingPermissions{CanReact: true},
		},
	}
	merged := Merge(ServerMessage{}, update)
	perms, ok := merged.Permissions()
	require.True(t, ok)
	assert.True(t, perms.CanReact)
	_, ok = merged.State()
	assert.False(t, ok)

	assert.Equal(t, merged, Merge(merged, ServerMessage{}))
}

func TestActionWireNames(t *testing.T) {
	tests := map[MeetingAction]string{
		ActionNone:                 "none",
		ActionQueryState:           "query-state",
		ActionToggleMute:           "toggle-mute",
		ActionToggleBackgroundBlur: "toggle-background-blur",
		ActionReact:                "send-reaction",
		ActionToggleUI:             "toggle-ui",
		ActionStopSharing:          "stop-sharing",
	}
	for action, name := range tests {
		b, err := action.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, name, string(b))

		parsed, err := ParseAction(name)
		require.NoError(t, err)
		assert.Equal(t, action, parsed)
	}

	_, err := ParseAction("toggle_mute")
	assert.Error(t, err)
	_, err = MeetingAction(99).MarshalText()
	assert.Error(t, err)
}

func TestClientMessage(t *testing.T) {
	a := NewAction(ActionToggleMute)
	b := NewAction(ActionToggleMute)
	assert.True(t, b.RequestID > a.RequestID)

	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)

	var da, db map[string]interface{}
	require.NoError(t, json.Unmarshal(ja, &da))
	require.NoError(t, json.Unmarshal(jb, &db))
	assert.Equal(t, "toggle-mute", da["action"])
	assert.Equal(t, da["action"], db["action"])
	assert.NotContains(t, da, "parameters")
}

func TestReactionMessage(t *testing.T) {
	m := NewReaction(ReactApplause)
	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"action":"send-reaction","parameters":{"type":"applause"},"requestId":`+jsonNumber(m.RequestID)+`}`,
		string(b))

	ui := NewToggleUI(ToggleUISharing)
	b, err = json.Marshal(ui)
	require.NoError(t, err)

	var back ClientMessage
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, ui, back)

	p, err := ParseParameterType("sharing-tray")
	require.NoError(t, err)
	assert.Equal(t, ToggleUISharing, p)
	_, err = ParseParameterType("shrug")
	assert.Error(t, err)
}

func jsonNumber(v uint32) string {
	b, _ := json.Marshal(v)
	return string(b)
}
