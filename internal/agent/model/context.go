package model

// WorkflowMeta is the workflow name/description pair reported by the client
// alongside the graph. Both fields are optional.
type WorkflowMeta struct {
	WorkflowName        string `json:"workflow_name,omitempty"`
	WorkflowDescription string `json:"workflow_description,omitempty"`
}

// ChatRequestContext is one inbound agent request. WorkflowGraph and
// WorkflowMeta are optional; when absent, the per-session context cache is
// consulted as a best-effort fallback.
type ChatRequestContext struct {
	UserPrompt    string         `json:"user_prompt"`
	WorkflowGraph map[string]any `json:"workflow_graph,omitempty"`
	WorkflowMeta  *WorkflowMeta  `json:"workflow_meta,omitempty"`
	ModelConfigID string         `json:"model_config_id"`
	SessionID     string         `json:"session_id"`
	AuthToken     string         `json:"-"`
}
