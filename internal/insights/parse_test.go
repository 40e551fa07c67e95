package insights

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meetscribe/meetscribe/internal/models"
)

func TestCoerceCandidateDefaults(t *testing.T) {
	got := coerceCandidate(taskPayload{Title: "Ship it"})

	assert.Equal(t, "Ship it", got.Title)
	assert.Equal(t, models.PriorityMedium, got.Priority)
	assert.Equal(t, models.CategoryWork, got.Category)
	assert.Equal(t, 1, got.Effort)
	assert.NotNil(t, got.Dependencies)
	assert.NotNil(t, got.Tags)
}

func TestCoerceCandidateOutOfSetEnums(t *testing.T) {
	got := coerceCandidate(taskPayload{
		Title:    "Review the proposal",
		Priority: "URGENT",
		Category: "misc",
		Effort:   9,
	})

	// Unknown enum values fold to defaults instead of rejecting the task.
	assert.Equal(t, models.PriorityMedium, got.Priority)
	assert.Equal(t, models.CategoryWork, got.Category)
	assert.Equal(t, 5, got.Effort)
}

func TestCoerceCandidateNormalizesCase(t *testing.T) {
	got := coerceCandidate(taskPayload{
		Title:    "Check logs",
		Priority: " High ",
		Category: "Follow-Up",
		Effort:   2,
	})

	assert.Equal(t, models.PriorityHigh, got.Priority)
	assert.Equal(t, models.CategoryFollowUp, got.Category)
	assert.Equal(t, 2, got.Effort)
}

func TestCoerceCandidateNameFallback(t *testing.T) {
	got := coerceCandidate(taskPayload{Name: "Legacy field title"})
	assert.Equal(t, "Legacy field title", got.Title)

	got = coerceCandidate(taskPayload{Title: "Wins", Name: "Loses"})
	assert.Equal(t, "Wins", got.Title)
}

func TestNormalizeTimelineFillsGaps(t *testing.T) {
	got := normalizeTimeline([]models.TimelineSegment{
		{Minute: 1, Summary: "intro"},
		{Minute: 3, Summary: "wrap up"},
	}, 3)

	assert.Len(t, got, 3)
	assert.Equal(t, "intro", got[0].Summary)
	assert.Equal(t, 2, got[1].Minute)
	assert.Empty(t, got[1].Summary)
	assert.NotNil(t, got[1].KeyPoints, "gap segments carry empty slices, not nulls")
	assert.Equal(t, "wrap up", got[2].Summary)
}

func TestNormalizeTimelineDuplicatesKeepFirst(t *testing.T) {
	got := normalizeTimeline([]models.TimelineSegment{
		{Minute: 1, Summary: "first"},
		{Minute: 1, Summary: "second"},
	}, 1)

	assert.Len(t, got, 1)
	assert.Equal(t, "first", got[0].Summary)
}

func TestNormalizeTimelineExtendsPastExpectedDuration(t *testing.T) {
	got := normalizeTimeline([]models.TimelineSegment{
		{Minute: 5, Summary: "overtime"},
	}, 2)

	assert.Len(t, got, 5)
	assert.Equal(t, "overtime", got[4].Summary)
}

func TestNormalizeTimelineDropsInvalidMinutes(t *testing.T) {
	got := normalizeTimeline([]models.TimelineSegment{
		{Minute: 0, Summary: "bogus"},
		{Minute: -1, Summary: "bogus"},
	}, 0)

	// Always at least one segment, even with nothing usable.
	assert.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Minute)
	assert.Empty(t, got[0].Summary)
}

func TestExtractJSONObject(t *testing.T) {
	fragment, ok := extractJSONObject("Sure! Here you go:\n```json\n{\"timeline\": []}\n```\nLet me know.")
	assert.True(t, ok)
	assert.Equal(t, `{"timeline": []}`, fragment)

	_, ok = extractJSONObject("no json here")
	assert.False(t, ok)
}

func TestExtractJSONArray(t *testing.T) {
	fragment, ok := extractJSONArray("The tasks are: [{\"title\": \"a\"}] as requested")
	assert.True(t, ok)
	assert.Equal(t, `[{"title": "a"}]`, fragment)

	_, ok = extractJSONArray("nothing structured")
	assert.False(t, ok)
}

func TestExpectedMinutes(t *testing.T) {
	assert.Equal(t, 0, expectedMinutes(0))
	assert.Equal(t, 0, expectedMinutes(-10))
	assert.Equal(t, 1, expectedMinutes(1))
	assert.Equal(t, 1, expectedMinutes(60))
	assert.Equal(t, 2, expectedMinutes(61))
	assert.Equal(t, 3, expectedMinutes(180))
}
