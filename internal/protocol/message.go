package protocol

import (
	"encoding/json"
	"fmt"
)

// Message is the envelope for all frames exchanged with downstream clients.
// Both directions use the same shape: an action name plus a JSON object payload.
type Message struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// NewMessage creates a server-originated message.
func NewMessage(action string, data interface{}) (*Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal data: %w", err)
	}
	return &Message{
		Action: action,
		Data:   raw,
	}, nil
}

// Client → Server actions.
const (
	ActionPrompt          = "prompt"
	ActionGetSessionState = "get_session_state"
)

// Server → Client actions.
const (
	ActionMessage              = "message"
	ActionPreviewURLUpdate     = "preview_url_update"
	ActionAgentStateUpdate     = "agent_state_update"
	ActionError                = "error"
	ActionActionPerformed      = "action_performed"
	ActionObservationPerformed = "observation_performed"
)

// Client → Server payloads.

type PromptData struct {
	Prompt string `json:"prompt"`
}

// Server → Client payloads.

type MessageData struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

type PreviewURLUpdateData struct {
	PreviewURL string `json:"preview_url"`
}

type AgentStateUpdateData struct {
	AgentState string `json:"agent_state"`
}

type ErrorData struct {
	Message string `json:"message"`
}

type ActionPerformedData struct {
	Action string `json:"action"`
}

type ObservationPerformedData struct {
	Observation string `json:"observation"`
}
