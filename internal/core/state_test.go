package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHardwareStateJSON(t *testing.T) {
	for _, s := range []ConnectionState{Disconnected, Connected, Error} {
		t.Run(s.String(), func(t *testing.T) {
			in := HardwareState{State: s, Serial: "A1B2", Product: "Mutenix Macropad"}
			data, err := json.Marshal(in)
			require.NoError(t, err)
			assert.Contains(t, string(data), `"state":"`+s.String()+`"`)

			var out HardwareState
			require.NoError(t, json.Unmarshal(data, &out))
			assert.Equal(t, in, out)
		})
	}

	var out HardwareState
	assert.Error(t, json.Unmarshal([]byte(`{"state":"connecting"}`), &out))
}
