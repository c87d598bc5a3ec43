package session

import (
	"github.com/ashureev/shopping-assistant/internal/protocol"
	"github.com/ashureev/shopping-assistant/internal/transport"
)

// Subscriber is a source of push events. *transport.Channel implements it.
type Subscriber interface {
	Subscribe(eventType string, h transport.Handler) func()
}

var handledEvents = []string{
	protocol.EventAgentLog,
	protocol.EventAgentStatus,
	protocol.EventCurrentTask,
	protocol.EventShoppingList,
	protocol.EventBrowserActivity,
}

// Attach routes the session's push events from sub into the store and
// returns a func that detaches them again.
func (s *Store) Attach(sub Subscriber) func() {
	unsubs := make([]func(), 0, len(handledEvents))
	for _, typ := range handledEvents {
		unsubs = append(unsubs, sub.Subscribe(typ, s.HandleEvent))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// HandleEvent decodes and applies one push event. Frames that fail schema
// validation are logged and dropped.
func (s *Store) HandleEvent(ev transport.Event) {
	var err error
	switch ev.Type {
	case protocol.EventAgentLog:
		var f protocol.AgentLog
		if f, err = protocol.Decode[protocol.AgentLog](ev.Data); err == nil {
			s.ApplyLog(f.Log)
		}
	case protocol.EventAgentStatus:
		var f protocol.AgentStatus
		if f, err = protocol.Decode[protocol.AgentStatus](ev.Data); err == nil {
			s.ApplyAgentStatus(f.AgentStatus)
		}
	case protocol.EventCurrentTask:
		var f protocol.CurrentTask
		if f, err = protocol.Decode[protocol.CurrentTask](ev.Data); err == nil {
			s.ApplyCurrentTask(f.CurrentTask)
		}
	case protocol.EventShoppingList:
		var f protocol.ShoppingList
		if f, err = protocol.Decode[protocol.ShoppingList](ev.Data); err == nil {
			s.ApplyShoppingList(f.Items)
		}
	case protocol.EventBrowserActivity:
		var f protocol.BrowserActivity
		if f, err = protocol.Decode[protocol.BrowserActivity](ev.Data); err == nil {
			s.ApplyBrowserActivity(f.Activity)
		}
	default:
		s.logger.Debug("Ignoring push event", "type", ev.Type)
		return
	}
	if err != nil {
		s.logger.Warn("Dropping invalid push event", "type", ev.Type, "error", err)
	}
}
