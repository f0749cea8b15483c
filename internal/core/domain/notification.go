package domain

import "time"

// NotificationLevel tells the presentation layer how to render an outcome.
type NotificationLevel string

const (
	NotificationSuccess NotificationLevel = "success"
	NotificationError   NotificationLevel = "error"
)

// Notification is a structured outcome for transient UI notifications.
type Notification struct {
	Level      NotificationLevel `json:"level"`
	Message    string            `json:"message"`
	ActionID   string            `json:"action_id"`
	ActionKind ActionKind        `json:"action_kind"`
	TargetID   string            `json:"target_id"`
	ErrorKind  string            `json:"error_kind,omitempty"`
	TxHash     string            `json:"tx_hash,omitempty"`
	Retryable  bool              `json:"retryable"`
	EmittedAt  time.Time         `json:"emitted_at"`
}
