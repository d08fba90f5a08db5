package gateway

import (
	"encoding/json"
	"net/http"
)

// handleGetState serves the session snapshot over plain HTTP. Convenient
// for frontends that want the current state without opening a websocket.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	snapshot := s.controller.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}
