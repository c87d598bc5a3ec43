// Package protocol defines the push-channel frames exchanged between the
// assistant backend and its clients, and validates them at the boundary.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ashureev/shopping-assistant/internal/domain"
)

// Event type names carried in the "type" field of every frame.
const (
	EventAgentLog        = "agent_log"
	EventAgentStatus     = "agent_status"
	EventCurrentTask     = "current_task"
	EventShoppingList    = "shopping_list"
	EventBrowserActivity = "browser_activity"

	// EventWildcard subscribers receive every inbound frame.
	EventWildcard = "message"

	EventPing = "ping"
	EventPong = "pong"
)

var (
	// ErrMalformed is returned for frames that are not JSON objects.
	ErrMalformed = errors.New("malformed frame")
	// ErrMissingType is returned for frames without a type field.
	ErrMissingType = errors.New("frame has no type")
	// ErrInvalidPayload is returned when a frame fails schema validation.
	ErrInvalidPayload = errors.New("invalid frame payload")
)

var validate = validator.New()

// Envelope is the part of a frame common to every event.
type Envelope struct {
	Type string `json:"type"`
}

// AgentLog carries one console line.
type AgentLog struct {
	Type string          `json:"type"`
	Log  domain.LogEntry `json:"log"`
}

// AgentStatus carries a full replacement of the agent status map.
type AgentStatus struct {
	Type        string                `json:"type"`
	AgentStatus domain.AgentStatusMap `json:"agent_status" validate:"required,dive,oneof=idle initializing active error"`
}

// CurrentTask carries the backend's current activity label.
type CurrentTask struct {
	Type        string `json:"type"`
	CurrentTask string `json:"current_task" validate:"required"`
}

// ShoppingList carries a full replacement of the result list.
type ShoppingList struct {
	Type  string                `json:"type"`
	Items []domain.ShoppingItem `json:"items" validate:"dive"`
}

// BrowserActivity carries the latest simulated browser event.
type BrowserActivity struct {
	Type     string                 `json:"type"`
	Activity domain.BrowserActivity `json:"activity"`
}

// NewAgentLog builds an agent_log frame.
func NewAgentLog(entry domain.LogEntry) AgentLog {
	return AgentLog{Type: EventAgentLog, Log: entry}
}

// NewAgentStatus builds an agent_status frame.
func NewAgentStatus(status domain.AgentStatusMap) AgentStatus {
	return AgentStatus{Type: EventAgentStatus, AgentStatus: status.Clone()}
}

// NewCurrentTask builds a current_task frame.
func NewCurrentTask(task string) CurrentTask {
	return CurrentTask{Type: EventCurrentTask, CurrentTask: task}
}

// NewShoppingList builds a shopping_list frame.
func NewShoppingList(items []domain.ShoppingItem) ShoppingList {
	if items == nil {
		items = []domain.ShoppingItem{}
	}
	return ShoppingList{Type: EventShoppingList, Items: domain.CloneItems(items)}
}

// NewNavigation builds a browser_activity frame for a page navigation.
func NewNavigation(url string) BrowserActivity {
	return BrowserActivity{
		Type:     EventBrowserActivity,
		Activity: domain.BrowserActivity{Type: domain.ActivityNavigation, URL: url},
	}
}

// PeekType extracts the event type of a raw frame.
func PeekType(data []byte) (string, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if strings.TrimSpace(env.Type) == "" {
		return "", ErrMissingType
	}
	return env.Type, nil
}

// Decode unmarshals a raw frame into T and validates it.
func Decode[T any](data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := Validate(v); err != nil {
		return v, err
	}
	return v, nil
}

// Validate checks a decoded value against its schema tags.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// ValidateItems checks every item of a list.
func ValidateItems(items []domain.ShoppingItem) error {
	for i := range items {
		if err := Validate(items[i]); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}
