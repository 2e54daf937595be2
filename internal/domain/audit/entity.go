package audit

import "time"

// Action enum, subset of the audit_action enum in the clinical schema
type Action string

const (
	ActionUpload  Action = "UPLOAD"
	ActionAnalyze Action = "ANALYZE"
)

// Resource types written to audit_logs.resource_type
const (
	ResourceAnalysis = "analysis"
	ResourceImage    = "image"
)

// Entry is one row of audit_logs
type Entry struct {
	ID           string         `json:"id"`
	Action       Action         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	NewValues    map[string]any `json:"new_values,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Source identifies who triggered an audited operation
type Source struct {
	IPAddress string
	UserAgent string
}
