package models

// TimelineSegment is one minute-bucket of meeting content. Minute indices
// are contiguous from 1; a quiet minute is an empty segment, not a gap.
type TimelineSegment struct {
	Minute      int      `json:"minute"`
	Summary     string   `json:"summary"`
	KeyPoints   []string `json:"key_points"`
	Decisions   []string `json:"decisions"`
	ActionItems []string `json:"action_items"`
	Speakers    []string `json:"speakers"`
	Topics      []string `json:"topics"`
}

// TaskCandidate is one unit of extracted follow-up work before it is
// materialized into a Task row. Enum fields are already coerced to the
// closed sets by the insight client.
type TaskCandidate struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Priority     string   `json:"priority"`
	Assignee     string   `json:"assignee,omitempty"`
	DueDate      string   `json:"due_date,omitempty"`
	Category     string   `json:"category"`
	Effort       int      `json:"effort"`
	Dependencies []string `json:"dependencies,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Context      string   `json:"context,omitempty"`
}
