package insights

import (
	"strings"

	"github.com/meetscribe/meetscribe/internal/models"
)

// segmentPayload is the loosely-typed shape the provider returns for one
// timeline minute.
type segmentPayload struct {
	Minute      int      `json:"minute"`
	Summary     string   `json:"summary"`
	KeyPoints   []string `json:"key_points"`
	Decisions   []string `json:"decisions"`
	ActionItems []string `json:"action_items"`
	Speakers    []string `json:"speakers"`
	Topics      []string `json:"topics"`
}

func (p segmentPayload) toSegment() models.TimelineSegment {
	return models.TimelineSegment{
		Minute:      p.Minute,
		Summary:     p.Summary,
		KeyPoints:   orEmpty(p.KeyPoints),
		Decisions:   orEmpty(p.Decisions),
		ActionItems: orEmpty(p.ActionItems),
		Speakers:    orEmpty(p.Speakers),
		Topics:      orEmpty(p.Topics),
	}
}

// taskPayload is the loosely-typed shape the provider returns for one task
// candidate. Older prompt revisions used "name" instead of "title"; both
// are accepted.
type taskPayload struct {
	Title        string   `json:"title"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Priority     string   `json:"priority"`
	Assignee     string   `json:"assignee"`
	DueDate      string   `json:"due_date"`
	Category     string   `json:"category"`
	Effort       int      `json:"effort"`
	Dependencies []string `json:"dependencies"`
	Tags         []string `json:"tags"`
	Context      string   `json:"context"`
}

var validPriorities = map[string]bool{
	models.PriorityHigh:   true,
	models.PriorityMedium: true,
	models.PriorityLow:    true,
}

var validCategories = map[string]bool{
	models.CategoryWork:          true,
	models.CategoryFollowUp:      true,
	models.CategoryCommunication: true,
	models.CategoryResearch:      true,
	models.CategoryReview:        true,
	models.CategoryPlanning:      true,
}

// coerceCandidate folds out-of-set enum values to the documented defaults
// instead of rejecting the candidate: the producing service is an AI model
// whose output is not schema-guaranteed.
func coerceCandidate(p taskPayload) models.TaskCandidate {
	title := p.Title
	if title == "" {
		title = p.Name
	}

	priority := strings.ToLower(strings.TrimSpace(p.Priority))
	if !validPriorities[priority] {
		priority = models.PriorityMedium
	}

	category := strings.ToLower(strings.TrimSpace(p.Category))
	if !validCategories[category] {
		category = models.CategoryWork
	}

	effort := p.Effort
	if effort < 1 {
		effort = 1
	} else if effort > 5 {
		effort = 5
	}

	return models.TaskCandidate{
		Title:        title,
		Description:  p.Description,
		Priority:     priority,
		Assignee:     p.Assignee,
		DueDate:      p.DueDate,
		Category:     category,
		Effort:       effort,
		Dependencies: orEmpty(p.Dependencies),
		Tags:         orEmpty(p.Tags),
		Context:      p.Context,
	}
}

// normalizeTimeline forces minute indices into a contiguous 1..N run.
// Duplicate minutes keep the first occurrence; a minute the model skipped
// becomes an empty-content segment, never an absent entry.
func normalizeTimeline(segments []models.TimelineSegment, expectedMinutes int) []models.TimelineSegment {
	byMinute := make(map[int]models.TimelineSegment)
	last := expectedMinutes
	for _, s := range segments {
		if s.Minute < 1 {
			continue
		}
		if _, dup := byMinute[s.Minute]; dup {
			continue
		}
		byMinute[s.Minute] = s
		if s.Minute > last {
			last = s.Minute
		}
	}
	if last < 1 {
		last = 1
	}

	out := make([]models.TimelineSegment, 0, last)
	for minute := 1; minute <= last; minute++ {
		if s, ok := byMinute[minute]; ok {
			out = append(out, s)
			continue
		}
		out = append(out, models.TimelineSegment{
			Minute:      minute,
			KeyPoints:   []string{},
			Decisions:   []string{},
			ActionItems: []string{},
			Speakers:    []string{},
			Topics:      []string{},
		})
	}
	return out
}

// extractJSONObject pulls the outermost {...} fragment out of free-form
// model output (models wrap JSON in prose and code fences routinely).
func extractJSONObject(content string) (string, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return content[start : end+1], true
}

// extractJSONArray pulls the outermost [...] fragment out of free-form
// model output.
func extractJSONArray(content string) (string, bool) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return "", false
	}
	return content[start : end+1], true
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
