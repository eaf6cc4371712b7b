package queue

type TaskType string

const (
	// TaskTypeAudioChunk runs one cycle over an uploaded audio chunk.
	TaskTypeAudioChunk TaskType = "audio_chunk"
	// TaskTypeResync rebuilds a discussion's instruction identities from the
	// commands active in the system of record.
	TaskTypeResync TaskType = "discussion_resync"
)

// Task is what producers enqueue on the chunk stream.
type Task struct {
	TaskType     TaskType
	DiscussionID string
	ChunkIndex   int
	Audio        []byte
	Filename     string
	ContentType  string
	TraceID      *string
	Attempt      int
}
