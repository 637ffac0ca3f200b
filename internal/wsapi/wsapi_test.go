package wsapi

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeMsg_Decode(t *testing.T) {
	var msg SubscribeMsg
	require.NoError(t, json.Unmarshal([]byte(`{"op":"subscribe","symbol":"600000.SH","period":"1m"}`), &msg))
	assert.Equal(t, OpSubscribe, msg.Op)
	assert.Equal(t, "600000.SH", msg.Symbol)
	assert.Equal(t, "1m", msg.Period)
}

func TestBarEvent_EncodesBarInline(t *testing.T) {
	ev := BarEvent{Op: OpBar, Symbol: "600000.SH", Period: "1m"}
	ev.Bar.Close = 10.5
	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "bar", decoded["op"])
	barField, ok := decoded["bar"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 10.5, barField["close"])
}

func TestClient_SendJSONDropsOnFullBuffer(t *testing.T) {
	c := &Client{send: make(chan []byte, 1), logger: zerolog.Nop()}
	c.sendJSON(ErrorEvent{Op: OpError, Reason: "first"})
	c.sendJSON(ErrorEvent{Op: OpError, Reason: "dropped"})
	assert.Len(t, c.send, 1)

	var got ErrorEvent
	require.NoError(t, json.Unmarshal(<-c.send, &got))
	assert.Equal(t, "first", got.Reason)
}
