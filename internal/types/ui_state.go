package types

// UIState is the persisted dashboard state restored across runs. Display
// preferences only; no event data survives a restart.
type UIState struct {
	ProjectID       string `json:"project_id,omitempty"`
	ServerURL       string `json:"server_url,omitempty"`
	SelectedTraceID string `json:"selected_trace_id,omitempty"`
	Follow          *bool  `json:"follow,omitempty"`
}

func (s UIState) FollowOrDefault() bool {
	if s.Follow == nil {
		return true
	}
	return *s.Follow
}
