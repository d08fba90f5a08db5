package agent

// SessionState is the bridge's view of the single remote session. It has
// exactly one writer (the Client's frame handler); everyone else reads a
// copy via Client.Snapshot.
type SessionState struct {
	// SessionID is assigned once at creation and never changes.
	SessionID string `json:"session_id"`

	// Status is the last status line reported upstream.
	Status string `json:"status"`

	// AgentPhase and EnvironmentPhase track the two phase sources
	// independently. Downstream consumers usually only care about
	// LatestPhase and ReadyForInput.
	AgentPhase       Phase `json:"agent_phase"`
	EnvironmentPhase Phase `json:"environment_phase"`

	// LatestPhase is the most recent phase observation from either source.
	LatestPhase Phase `json:"latest_phase"`

	// ReadyForInput is derived: true iff the latest phase observation is
	// awaiting_user_input. It is recomputed on every phase update and
	// cleared when an instruction is submitted, never set directly.
	ReadyForInput bool `json:"ready_for_input"`

	// PreviewURL is set when the agent messages a bare URL; sticky until
	// overwritten.
	PreviewURL string `json:"preview_url,omitempty"`
}
