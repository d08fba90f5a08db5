package protocol

import (
	"encoding/json"
	"testing"
)

func TestNewMessage(t *testing.T) {
	msg, err := NewMessage(ActionAgentStateUpdate, AgentStateUpdateData{AgentState: "running"})
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}

	if msg.Action != ActionAgentStateUpdate {
		t.Errorf("expected action %s, got %s", ActionAgentStateUpdate, msg.Action)
	}

	var data AgentStateUpdateData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.AgentState != "running" {
		t.Errorf("expected agent_state 'running', got %s", data.AgentState)
	}
}

func TestValidateCommand_ValidPrompt(t *testing.T) {
	raw := []byte(`{"action":"prompt","data":{"prompt":"hello"}}`)

	msg, err := ValidateCommand(raw)
	if err != nil {
		t.Fatalf("expected valid command, got error: %v", err)
	}
	if msg.Action != ActionPrompt {
		t.Errorf("expected action %s, got %s", ActionPrompt, msg.Action)
	}
}

func TestValidateCommand_ValidGetSessionState(t *testing.T) {
	raw := []byte(`{"action":"get_session_state","data":{}}`)

	_, err := ValidateCommand(raw)
	if err != nil {
		t.Fatalf("expected valid command, got error: %v", err)
	}
}

func TestValidateCommand_InvalidJSON(t *testing.T) {
	_, err := ValidateCommand([]byte("not json"))
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestValidateCommand_MissingAction(t *testing.T) {
	_, err := ValidateCommand([]byte(`{"data":{}}`))
	if err == nil {
		t.Fatal("expected error for missing action")
	}
}

func TestValidateCommand_UnknownAction(t *testing.T) {
	_, err := ValidateCommand([]byte(`{"action":"reboot","data":{}}`))
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestValidateCommand_MissingData(t *testing.T) {
	_, err := ValidateCommand([]byte(`{"action":"prompt"}`))
	if err == nil {
		t.Fatal("expected error for missing data")
	}
}

func TestValidateCommand_EmptyPrompt(t *testing.T) {
	_, err := ValidateCommand([]byte(`{"action":"prompt","data":{"prompt":""}}`))
	if err == nil {
		t.Fatal("expected error for empty prompt")
	}
}

func TestValidateCommand_MissingPrompt(t *testing.T) {
	_, err := ValidateCommand([]byte(`{"action":"prompt","data":{}}`))
	if err == nil {
		t.Fatal("expected error for missing prompt")
	}
}

func TestNewErrorMessage(t *testing.T) {
	msg, err := NewErrorMessage("something broke")
	if err != nil {
		t.Fatalf("NewErrorMessage failed: %v", err)
	}
	if msg.Action != ActionError {
		t.Errorf("expected action %s, got %s", ActionError, msg.Action)
	}

	var data ErrorData
	json.Unmarshal(msg.Data, &data)
	if data.Message != "something broke" {
		t.Errorf("expected message 'something broke', got %s", data.Message)
	}
}
