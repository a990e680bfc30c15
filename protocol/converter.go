package protocol

import (
	"time"

	"github.com/google/uuid"
)

// NewBatchMessage wraps a flushed batch for the wire
func NewBatchMessage[E any](source string, seq uint64, batch []E) *BatchMessage {
	return &BatchMessage{
		Type:      OutputBatch,
		ID:        generateMessageID(),
		Source:    source,
		Seq:       seq,
		Count:     len(batch),
		Events:    batch,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewSourceCanceledMessage announces that source will not send more batches
func NewSourceCanceledMessage(source string, lastSeq uint64) *BatchMessage {
	return &BatchMessage{
		Type:      OutputSourceCanceled,
		ID:        generateMessageID(),
		Source:    source,
		Seq:       lastSeq,
		Timestamp: time.Now().UnixMilli(),
	}
}

// generateMessageID generates a unique message ID
func generateMessageID() string {
	return "msg-" + uuid.NewString()
}
