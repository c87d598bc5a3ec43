package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/shopping-assistant/internal/domain"
)

func TestPeekType(t *testing.T) {
	typ, err := PeekType([]byte(`{"type":"agent_log","log":{}}`))
	require.NoError(t, err)
	assert.Equal(t, EventAgentLog, typ)

	_, err = PeekType([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = PeekType([]byte(`{"log":{}}`))
	assert.ErrorIs(t, err, ErrMissingType)

	_, err = PeekType([]byte(`["agent_log"]`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeAgentLog(t *testing.T) {
	data, err := json.Marshal(NewAgentLog(domain.LogEntry{Timestamp: 1700000000.5, Type: domain.LogSuccess, Message: "done"}))
	require.NoError(t, err)

	frame, err := Decode[AgentLog](data)
	require.NoError(t, err)
	assert.Equal(t, EventAgentLog, frame.Type)
	assert.Equal(t, domain.LogSuccess, frame.Log.Type)
	assert.Equal(t, "done", frame.Log.Message)
}

func TestDecodeRejectsUnknownLogType(t *testing.T) {
	_, err := Decode[AgentLog]([]byte(`{"type":"agent_log","log":{"timestamp":1,"type":"debug","message":"x"}}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestDecodeAgentStatus(t *testing.T) {
	frame, err := Decode[AgentStatus]([]byte(`{"type":"agent_status","agent_status":{"browser":"active","tech":"idle"}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusMap{"browser": domain.AgentActive, "tech": domain.AgentIdle}, frame.AgentStatus)

	_, err = Decode[AgentStatus]([]byte(`{"type":"agent_status","agent_status":{"browser":"sleeping"}}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = Decode[AgentStatus]([]byte(`{"type":"agent_status"}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestDecodeCurrentTaskRequiresLabel(t *testing.T) {
	_, err := Decode[CurrentTask]([]byte(`{"type":"current_task","current_task":""}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	frame, err := Decode[CurrentTask]([]byte(`{"type":"current_task","current_task":"Completed"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, frame.CurrentTask)
}

func TestDecodeShoppingList(t *testing.T) {
	frame, err := Decode[ShoppingList]([]byte(`{"type":"shopping_list","items":[{"name":"Quinoa","price":6.99,"store":"Amazon Fresh"}]}`))
	require.NoError(t, err)
	require.Len(t, frame.Items, 1)
	assert.Equal(t, 1.0, frame.Items[0].Qty())

	_, err = Decode[ShoppingList]([]byte(`{"type":"shopping_list","items":[{"price":6.99}]}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = Decode[ShoppingList]([]byte(`{"type":"shopping_list","items":[{"name":"x","price":-1}]}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestDecodeBrowserActivity(t *testing.T) {
	data, err := json.Marshal(NewNavigation("https://www.bestbuy.com/search?q=gaming+laptop"))
	require.NoError(t, err)

	frame, err := Decode[BrowserActivity](data)
	require.NoError(t, err)
	assert.True(t, frame.Activity.IsNavigation())

	_, err = Decode[BrowserActivity]([]byte(`{"type":"browser_activity","activity":{"type":"navigation"}}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	frame, err = Decode[BrowserActivity]([]byte(`{"type":"browser_activity","activity":{"type":"scroll"}}`))
	require.NoError(t, err)
	assert.False(t, frame.Activity.IsNavigation())
}

func TestNewShoppingListNeverEncodesNull(t *testing.T) {
	data, err := json.Marshal(NewShoppingList(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"shopping_list","items":[]}`, string(data))
}
