package streams

// Stream name constants
const (
	StreamMeetingsCompleted = "meetings:completed"
)

// Schema version constant
const (
	SchemaVersionV1 = "v1"
)

// CompletionEvent is emitted when a pipeline run reaches completed. It is
// consumed by the notification collaborator (email/calendar); delivery
// mechanics live on the consumer side.
type CompletionEvent struct {
	RecordingID         string   `json:"recording_id"`
	UserID              string   `json:"user_id"`
	MaterializedTaskIDs []string `json:"materialized_task_ids"`
}
