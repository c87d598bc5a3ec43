package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/shopping-assistant/internal/domain"
	"github.com/ashureev/shopping-assistant/internal/protocol"
	"github.com/ashureev/shopping-assistant/internal/transport"
)

type fakeSubscriber struct {
	handlers map[string]transport.Handler
}

func (f *fakeSubscriber) Subscribe(eventType string, h transport.Handler) func() {
	if f.handlers == nil {
		f.handlers = make(map[string]transport.Handler)
	}
	f.handlers[eventType] = h
	return func() { delete(f.handlers, eventType) }
}

func (f *fakeSubscriber) emit(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	typ, err := protocol.PeekType(data)
	require.NoError(t, err)
	if h, ok := f.handlers[typ]; ok {
		h(transport.Event{Type: typ, Data: data})
	}
}

func TestAttachRoutesAllEvents(t *testing.T) {
	s := newTestStore(t, &fakeAPI{})
	sub := &fakeSubscriber{}
	detach := s.Attach(sub)
	assert.Len(t, sub.handlers, 5)

	entry := domain.LogEntry{Timestamp: 1700000000.5, Type: domain.LogSuccess, Message: "done"}
	sub.emit(t, protocol.NewAgentLog(entry))
	sub.emit(t, protocol.NewAgentStatus(domain.AgentStatusMap{"tech": domain.AgentActive}))
	sub.emit(t, protocol.NewCurrentTask("Searching BestBuy"))
	sub.emit(t, protocol.NewShoppingList(sampleItems))
	sub.emit(t, protocol.NewNavigation("https://www.bestbuy.com/search?q=laptop"))

	snap := s.Snapshot()
	assert.Equal(t, []domain.LogEntry{entry}, snap.Logs)
	assert.Equal(t, domain.AgentStatusMap{"tech": domain.AgentActive}, snap.AgentStatus)
	assert.Equal(t, "Searching BestBuy", snap.CurrentTask)
	assert.Equal(t, sampleItems, snap.ShoppingList)
	assert.Equal(t, "https://www.bestbuy.com/search?q=laptop", snap.CurrentURL)
	require.Len(t, snap.BrowserHistory, 1)
	assert.Equal(t, "laptop - Bestbuy", snap.BrowserHistory[0].Title)

	detach()
	assert.Empty(t, sub.handlers)
}

func TestHandleEventDropsInvalidPayloads(t *testing.T) {
	s := newTestStore(t, &fakeAPI{})
	s.ApplyAgentStatus(domain.AgentStatusMap{"budget": domain.AgentIdle})
	s.ApplyCurrentTask("Searching")
	before := s.Snapshot()

	invalid := []struct {
		typ  string
		data string
	}{
		{protocol.EventAgentStatus, `{"type":"agent_status","agent_status":{"budget":"sleeping"}}`},
		{protocol.EventAgentStatus, `{"type":"agent_status"}`},
		{protocol.EventCurrentTask, `{"type":"current_task","current_task":""}`},
		{protocol.EventAgentLog, `{"type":"agent_log","log":{"timestamp":1,"type":"debug","message":"x"}}`},
		{protocol.EventShoppingList, `{"type":"shopping_list","items":[{"name":"","price":1}]}`},
		{protocol.EventShoppingList, `{"type":"shopping_list","items":[{"name":"x","price":-1}]}`},
		{protocol.EventBrowserActivity, `{"type":"browser_activity","activity":{"type":"navigation"}}`},
		{protocol.EventBrowserActivity, `{"type":"browser_activity","activity":"nope"}`},
		{"unknown", `{"type":"unknown"}`},
	}
	for _, tt := range invalid {
		s.HandleEvent(transport.Event{Type: tt.typ, Data: []byte(tt.data)})
	}

	assert.Equal(t, before, s.Snapshot())
}

func TestHandleEventEmptyShoppingListReplaces(t *testing.T) {
	s := newTestStore(t, &fakeAPI{})
	s.ApplyShoppingList(sampleItems)

	s.HandleEvent(transport.Event{
		Type: protocol.EventShoppingList,
		Data: []byte(`{"type":"shopping_list","items":[]}`),
	})
	snap := s.Snapshot()
	assert.NotNil(t, snap.ShoppingList)
	assert.Empty(t, snap.ShoppingList)
}
