package protocol

import (
	"encoding/json"
	"fmt"
)

// validClientActions is the set of allowed client→server actions.
var validClientActions = map[string]bool{
	ActionPrompt:          true,
	ActionGetSessionState: true,
}

// ValidateCommand validates a raw JSON frame from a downstream client.
// Returns the parsed Message and any validation error.
func ValidateCommand(raw []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if msg.Action == "" {
		return nil, fmt.Errorf("missing 'action' field")
	}

	if !validClientActions[msg.Action] {
		return nil, fmt.Errorf("unknown action: %s", msg.Action)
	}

	if msg.Data == nil {
		return nil, fmt.Errorf("missing 'data' field")
	}

	// Validate required payload fields per action.
	switch msg.Action {
	case ActionPrompt:
		var p PromptData
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return nil, fmt.Errorf("invalid data for %s: %w", msg.Action, err)
		}
		if p.Prompt == "" {
			return nil, fmt.Errorf("missing required field 'prompt' in %s data", msg.Action)
		}

	case ActionGetSessionState:
		var p map[string]interface{}
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return nil, fmt.Errorf("invalid data for %s: %w", msg.Action, err)
		}
	}

	return &msg, nil
}

// NewErrorMessage creates an error frame ready to send to a client.
func NewErrorMessage(message string) (*Message, error) {
	return NewMessage(ActionError, ErrorData{
		Message: message,
	})
}
