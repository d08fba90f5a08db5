package gateway

import "github.com/Eloo-AI/OpenHands/internal/protocol"

// Server implements agent.Listener: every session notification becomes one
// broadcast to all registered connections, including the one whose prompt
// triggered it.

func (s *Server) OnMessage(message string) {
	s.Broadcast(protocol.ActionMessage, protocol.MessageData{
		Source:  "agent",
		Content: message,
	})
}

func (s *Server) OnAgentStateUpdate(state string) {
	s.Broadcast(protocol.ActionAgentStateUpdate, protocol.AgentStateUpdateData{
		AgentState: state,
	})
}

func (s *Server) OnPreviewURLUpdate(previewURL string) {
	s.Broadcast(protocol.ActionPreviewURLUpdate, protocol.PreviewURLUpdateData{
		PreviewURL: previewURL,
	})
}

func (s *Server) OnError(message string) {
	s.Broadcast(protocol.ActionError, protocol.ErrorData{
		Message: message,
	})
}

func (s *Server) OnActionPerformed(action string) {
	s.Broadcast(protocol.ActionActionPerformed, protocol.ActionPerformedData{
		Action: action,
	})
}

func (s *Server) OnObservationPerformed(observation string) {
	s.Broadcast(protocol.ActionObservationPerformed, protocol.ObservationPerformedData{
		Observation: observation,
	})
}
