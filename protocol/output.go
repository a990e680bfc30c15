package protocol

// OutputMessageType defines server-to-client message types
type OutputMessageType string

const (
	// OutputBatch carries one flushed batch of source events
	OutputBatch OutputMessageType = "batch"

	// OutputSourceCanceled tells the client no further batches follow
	OutputSourceCanceled OutputMessageType = "source.canceled"
)

// BatchMessage represents one flushed batch sent to a client
type BatchMessage struct {
	Type      OutputMessageType `json:"type"`
	ID        string            `json:"id"`     // Server-generated message ID
	Source    string            `json:"source"` // Source name
	Seq       uint64            `json:"seq"`    // Per-sink batch sequence, starting at 1
	Count     int               `json:"count"`
	Events    any               `json:"events,omitempty"`
	Timestamp int64             `json:"timestamp"`
}
