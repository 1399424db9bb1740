package models

// DispatchEnvelope is the transient payload sent to the external workflow
// engine for fire-and-forget notifications. It is never persisted and no
// acknowledgment is awaited beyond a bounded timeout.
type DispatchEnvelope struct {
	UserID      string            `json:"user_id,omitempty"`
	RequestType string            `json:"request_type"`
	Reason      string            `json:"reason,omitempty"`
	Progress    int               `json:"progress,omitempty"`
	CurrentDay  int               `json:"current_day,omitempty"`
	Preferences map[string]string `json:"preferences,omitempty"`
	Payload     interface{}       `json:"payload,omitempty"`
}
