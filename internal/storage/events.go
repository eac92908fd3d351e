package storage

import "time"

// EventWriter is the interface for writing decision events.
// Write() must NEVER block the caller.
type EventWriter interface {
	Write(event *DecisionEvent)
	Close()
}

// DecisionEvent represents a single policy decision to be persisted: one row
// per skill resolved and one per dispatch check.
type DecisionEvent struct {
	EventID     string
	WorkspaceID string
	RequestID   string
	Kind        string // "resolve" or "check"
	Channel     string
	SenderID    string
	Tier        string
	Skill       string
	Scope       string
	Tool        string // check events only
	Eligible    bool
	Reason      string
	AllowCount  uint32
	DenyCount   uint32
	PolicyJSON  string // composed policy preview, truncated
	LatencyMs   float32
	CreatedAt   time.Time
}

// PolicyPreviewLength is the max chars stored in policy_json.
const PolicyPreviewLength = 500

// TruncatePolicy returns the first N characters (runes) of a serialized
// policy for preview storage. It never splits a multi-byte UTF-8 character.
func TruncatePolicy(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
