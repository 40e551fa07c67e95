package insights

import "fmt"

func timelinePrompt(transcript string, minutes int) string {
	durationLine := "Meeting duration: unknown — infer the minute count from the transcript."
	if minutes > 0 {
		durationLine = fmt.Sprintf("Meeting duration: %d minutes.", minutes)
	}

	return fmt.Sprintf(`Create a minute-by-minute timeline of this meeting transcript.

%s

Divide the meeting into minute segments starting at minute 1. For each
minute capture the main discussion points, decisions made with their
context, action items with clear ownership, the speakers active in that
minute, and the topics discussed. Cover every minute; use empty lists for
quiet minutes.

Return only JSON in this structure:
{
  "timeline": [
    {
      "minute": 1,
      "summary": "Concise summary of minute 1",
      "key_points": ["..."],
      "decisions": ["..."],
      "action_items": ["..."],
      "speakers": ["..."],
      "topics": ["..."]
    }
  ]
}

Transcript:
%s`, durationLine, transcript)
}

func tasksPrompt(transcript, timelineJSON string) string {
	return fmt.Sprintf(`Extract actionable follow-up tasks from this meeting.

Priority: "high" for critical deadlines, blocking issues and client-facing
deliverables; "medium" for important but not urgent work; "low" for
nice-to-have items.
Effort (1-5): 1 under 30 minutes, 2 up to 2 hours, 3 up to 4 hours,
4 up to 8 hours, 5 above 8 hours.
Category: one of "work", "follow-up", "communication", "research",
"review", "planning".

Extract all explicit action items and commitments, plus implicit tasks
from decisions. Return only a JSON array:
[
  {
    "title": "Clear, actionable task title",
    "description": "Detailed description with context",
    "priority": "high|medium|low",
    "assignee": "Person name or empty",
    "due_date": "YYYY-MM-DD or empty",
    "category": "work|follow-up|communication|research|review|planning",
    "effort": 1,
    "dependencies": ["related task titles"],
    "tags": ["keywords"],
    "context": "meeting context and constraints"
  }
]

Timeline:
%s

Transcript:
%s`, timelineJSON, transcript)
}
