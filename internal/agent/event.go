package agent

import "strings"

// Phase is a lifecycle position reported by the agent runtime.
type Phase string

const (
	PhaseUnknown           Phase = "unknown"
	PhaseRunning           Phase = "running"
	PhaseAwaitingUserInput Phase = "awaiting_user_input"
	PhaseFinished          Phase = "finished"
	PhaseError             Phase = "error"
)

// Origin identifies which side of the runtime reported a phase change.
type Origin string

const (
	OriginAgent       Origin = "agent"
	OriginEnvironment Origin = "environment"
)

// EventKind tags the variants of Event.
type EventKind int

const (
	KindUnclassified EventKind = iota
	KindStatusUpdate
	KindAgentMessage
	KindPreviewURLUpdate
	KindPhaseChanged
	KindActionPerformed
)

// Event is the typed form of one raw upstream frame. Exactly one variant's
// fields are populated, selected by Kind.
type Event struct {
	Kind EventKind

	// StatusUpdate
	Level string
	Text  string

	// AgentMessage reuses Text.

	// PreviewURLUpdate
	URL string

	// PhaseChanged
	Origin Origin
	Phase  Phase

	// ActionPerformed
	Action string
}

// Classify maps a raw upstream frame to its Event variant. It is pure and
// total: frames that match no rule come back as KindUnclassified, never an
// error. Rule order matters: a frame can carry both a status_update marker
// and a source field, and must resolve to the status branch.
func Classify(frame map[string]interface{}) Event {
	if _, ok := frame["status_update"]; ok {
		level := stringField(frame, "type")
		if level == "" {
			level = "info"
		}
		return Event{
			Kind:  KindStatusUpdate,
			Level: level,
			Text:  stringField(frame, "message"),
		}
	}

	source, ok := frame["source"].(string)
	if !ok {
		return Event{Kind: KindUnclassified}
	}

	action := stringField(frame, "action")
	observation := stringField(frame, "observation")

	switch source {
	case string(OriginAgent):
		switch {
		case action == "message":
			message := stringField(frame, "message")
			if strings.HasPrefix(message, "http://") || strings.HasPrefix(message, "https://") {
				return Event{Kind: KindPreviewURLUpdate, URL: message}
			}
			return Event{Kind: KindAgentMessage, Text: message}

		case action == "edit" || action == "read" || action == "run":
			return Event{Kind: KindActionPerformed, Action: action}

		case observation == "agent_state_changed":
			return Event{Kind: KindPhaseChanged, Origin: OriginAgent, Phase: phaseField(frame)}
		}

	case string(OriginEnvironment):
		if observation == "agent_state_changed" {
			return Event{Kind: KindPhaseChanged, Origin: OriginEnvironment, Phase: phaseField(frame)}
		}
	}

	return Event{Kind: KindUnclassified}
}

func stringField(frame map[string]interface{}, key string) string {
	s, _ := frame[key].(string)
	return s
}

// phaseField extracts extras.agent_state, defaulting to PhaseUnknown.
func phaseField(frame map[string]interface{}) Phase {
	extras, _ := frame["extras"].(map[string]interface{})
	if state, ok := extras["agent_state"].(string); ok && state != "" {
		return Phase(state)
	}
	return PhaseUnknown
}
