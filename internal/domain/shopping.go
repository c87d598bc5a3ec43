// Package domain contains core domain types for the shopping assistant.
package domain

import (
	"strings"
	"time"
)

// LogType classifies a console log line.
type LogType string

const (
	LogInfo    LogType = "info"
	LogSuccess LogType = "success"
	LogWarning LogType = "warning"
	LogError   LogType = "error"
)

// LogEntry is a single line in the agent console.
type LogEntry struct {
	Timestamp float64 `json:"timestamp" validate:"gte=0"`
	Type      LogType `json:"type" validate:"oneof=info success warning error"`
	Message   string  `json:"message"`
}

// Time converts the epoch-seconds timestamp to a time.Time.
func (e LogEntry) Time() time.Time {
	sec := int64(e.Timestamp)
	nsec := int64((e.Timestamp - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// NewLogEntry creates a log entry stamped with the current time.
func NewLogEntry(typ LogType, message string) LogEntry {
	return LogEntry{
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		Type:      typ,
		Message:   message,
	}
}

// AgentState is the lifecycle state of a single assistant agent.
type AgentState string

const (
	AgentIdle         AgentState = "idle"
	AgentInitializing AgentState = "initializing"
	AgentActive       AgentState = "active"
	AgentError        AgentState = "error"
)

// AgentStatusMap maps agent names to their state.
type AgentStatusMap map[string]AgentState

// Clone returns an independent copy of the map.
func (m AgentStatusMap) Clone() AgentStatusMap {
	if m == nil {
		return nil
	}
	out := make(AgentStatusMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Agent names known to the assistant backend.
var AgentNames = []string{
	"inventory",
	"dietary",
	"budget",
	"price_comparison",
	"browser",
	"tech",
	"travel",
	"finance",
}

// Current task labels with special meaning.
const (
	TaskInitializing  = "Initializing..."
	TaskProcessing    = "Processing query..."
	TaskCompleted     = "Completed"
	TaskStoppedByUser = "Stopped by user"
	taskErrorPrefix   = "Error: "
)

// IsTerminalTask reports whether the label ends an in-flight query.
func IsTerminalTask(task string) bool {
	return task == TaskCompleted || task == TaskStoppedByUser
}

// ErrorTask builds the error-terminal label shown when a submission fails.
func ErrorTask(message string) string {
	return taskErrorPrefix + message
}

// IsErrorTask reports whether the label is an error label.
func IsErrorTask(task string) bool {
	return strings.HasPrefix(task, taskErrorPrefix)
}

// Status is the backend's view of the current run.
type Status struct {
	CurrentTask string         `json:"current_task" validate:"required"`
	AgentStatus AgentStatusMap `json:"agent_status" validate:"dive,oneof=idle initializing active error"`
}

// RunStatus extends Status with a running flag.
type RunStatus struct {
	IsRunning   bool           `json:"is_running"`
	CurrentTask string         `json:"current_task"`
	AgentStatus AgentStatusMap `json:"agent_status"`
}

// ShoppingItem is one result row produced by the assistant.
type ShoppingItem struct {
	Name     string  `json:"name" validate:"required"`
	Price    float64 `json:"price" validate:"gte=0"`
	Quantity float64 `json:"quantity,omitempty" validate:"gte=0"`
	Unit     string  `json:"unit,omitempty"`
	Store    string  `json:"store,omitempty"`
	Category string  `json:"category,omitempty"`
	Specs    string  `json:"specs,omitempty"`
}

// Qty returns the item quantity, defaulting to 1 when absent.
func (i ShoppingItem) Qty() float64 {
	if i.Quantity <= 0 {
		return 1
	}
	return i.Quantity
}

// LineTotal returns price times quantity.
func (i ShoppingItem) LineTotal() float64 {
	return i.Price * i.Qty()
}

// CloneItems returns a copy of the item slice.
func CloneItems(items []ShoppingItem) []ShoppingItem {
	if items == nil {
		return nil
	}
	out := make([]ShoppingItem, len(items))
	copy(out, items)
	return out
}
