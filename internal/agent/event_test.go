package agent

import "testing"

func TestClassify_StatusUpdate(t *testing.T) {
	ev := Classify(map[string]interface{}{
		"status_update": true,
		"type":          "info",
		"message":       "building runtime",
	})

	if ev.Kind != KindStatusUpdate {
		t.Fatalf("expected KindStatusUpdate, got %v", ev.Kind)
	}
	if ev.Level != "info" || ev.Text != "building runtime" {
		t.Errorf("unexpected status fields: level=%q text=%q", ev.Level, ev.Text)
	}
}

func TestClassify_StatusUpdateDefaultsLevel(t *testing.T) {
	ev := Classify(map[string]interface{}{"status_update": true})

	if ev.Kind != KindStatusUpdate {
		t.Fatalf("expected KindStatusUpdate, got %v", ev.Kind)
	}
	if ev.Level != "info" {
		t.Errorf("expected default level 'info', got %q", ev.Level)
	}
	if ev.Text != "" {
		t.Errorf("expected empty text, got %q", ev.Text)
	}
}

func TestClassify_StatusWinsOverSource(t *testing.T) {
	// A frame can satisfy both the status and the source shape; the status
	// branch must win.
	ev := Classify(map[string]interface{}{
		"status_update": true,
		"source":        "agent",
		"action":        "message",
		"message":       "hello",
	})

	if ev.Kind != KindStatusUpdate {
		t.Fatalf("expected KindStatusUpdate, got %v", ev.Kind)
	}
}

func TestClassify_AgentMessage(t *testing.T) {
	ev := Classify(map[string]interface{}{
		"source":  "agent",
		"action":  "message",
		"message": "Hello",
	})

	if ev.Kind != KindAgentMessage {
		t.Fatalf("expected KindAgentMessage, got %v", ev.Kind)
	}
	if ev.Text != "Hello" {
		t.Errorf("expected text 'Hello', got %q", ev.Text)
	}
}

func TestClassify_PreviewURL(t *testing.T) {
	for _, url := range []string{"http://localhost:5173", "https://preview.example.com"} {
		ev := Classify(map[string]interface{}{
			"source":  "agent",
			"action":  "message",
			"message": url,
		})

		if ev.Kind != KindPreviewURLUpdate {
			t.Fatalf("expected KindPreviewURLUpdate for %q, got %v", url, ev.Kind)
		}
		if ev.URL != url {
			t.Errorf("expected url %q, got %q", url, ev.URL)
		}
	}
}

func TestClassify_ActionPerformed(t *testing.T) {
	for _, action := range []string{"edit", "read", "run"} {
		ev := Classify(map[string]interface{}{
			"source": "agent",
			"action": action,
		})

		if ev.Kind != KindActionPerformed {
			t.Fatalf("expected KindActionPerformed for %q, got %v", action, ev.Kind)
		}
		if ev.Action != action {
			t.Errorf("expected action %q, got %q", action, ev.Action)
		}
	}
}

func TestClassify_AgentPhaseChanged(t *testing.T) {
	ev := Classify(map[string]interface{}{
		"source":      "agent",
		"observation": "agent_state_changed",
		"extras":      map[string]interface{}{"agent_state": "running"},
	})

	if ev.Kind != KindPhaseChanged {
		t.Fatalf("expected KindPhaseChanged, got %v", ev.Kind)
	}
	if ev.Origin != OriginAgent {
		t.Errorf("expected origin agent, got %q", ev.Origin)
	}
	if ev.Phase != PhaseRunning {
		t.Errorf("expected phase running, got %q", ev.Phase)
	}
}

func TestClassify_EnvironmentPhaseChanged(t *testing.T) {
	ev := Classify(map[string]interface{}{
		"source":      "environment",
		"observation": "agent_state_changed",
		"extras":      map[string]interface{}{"agent_state": "awaiting_user_input"},
	})

	if ev.Kind != KindPhaseChanged {
		t.Fatalf("expected KindPhaseChanged, got %v", ev.Kind)
	}
	if ev.Origin != OriginEnvironment {
		t.Errorf("expected origin environment, got %q", ev.Origin)
	}
	if ev.Phase != PhaseAwaitingUserInput {
		t.Errorf("expected phase awaiting_user_input, got %q", ev.Phase)
	}
}

func TestClassify_MissingExtrasDefaultsUnknown(t *testing.T) {
	ev := Classify(map[string]interface{}{
		"source":      "environment",
		"observation": "agent_state_changed",
	})

	if ev.Kind != KindPhaseChanged {
		t.Fatalf("expected KindPhaseChanged, got %v", ev.Kind)
	}
	if ev.Phase != PhaseUnknown {
		t.Errorf("expected phase unknown, got %q", ev.Phase)
	}
}

func TestClassify_Unclassified(t *testing.T) {
	frames := []map[string]interface{}{
		{},
		{"source": "agent"},
		{"source": "agent", "observation": "browse"},
		{"source": "environment", "action": "message", "message": "hi"},
		{"source": "user", "action": "message", "message": "hi"},
		{"unrelated": 42},
	}

	for i, frame := range frames {
		if ev := Classify(frame); ev.Kind != KindUnclassified {
			t.Errorf("frame %d: expected KindUnclassified, got %v", i, ev.Kind)
		}
	}
}
