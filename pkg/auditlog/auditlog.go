// Package auditlog is Deckhand's structured event log, adapted from the
// teacher's pkg/audit/logger.go: the same JSON-line-per-event shape written
// to an io.Writer, with Deckhand's own EventType taxonomy in place of the
// teacher's ACCESS/MUTATION/SYSTEM/POLICY categories.
package auditlog

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType categorizes an audit record.
type EventType string

const (
	EventBucketWrite     EventType = "BUCKET_WRITE"
	EventRevisionCreated EventType = "REVISION_CREATED"
	EventRenderStarted   EventType = "RENDER_STARTED"
	EventRenderFailed    EventType = "RENDER_FAILED"
	EventNodeBlocked     EventType = "NODE_BLOCKED"
	EventSecretAccess    EventType = "SECRET_ACCESS"
)

// Event is one structured audit record.
type Event struct {
	ID         string                 `json:"id"`
	Type       EventType              `json:"type"`
	Bucket     string                 `json:"bucket,omitempty"`
	RevisionID int64                  `json:"revision_id,omitempty"`
	Resource   string                 `json:"resource,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Logger records Deckhand's audit events.
type Logger interface {
	Record(ctx context.Context, eventType EventType, resource string, metadata map[string]interface{}) error
}

// logger implements Logger, writing one JSON object per line to a
// configurable Writer, matching the teacher's "AUDIT: " prefix convention.
type logger struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewLogger creates a Logger writing to os.Stdout.
func NewLogger() Logger {
	return NewLoggerWithWriter(os.Stdout)
}

// NewLoggerWithWriter creates a Logger writing to w, for test/custom sinks.
func NewLoggerWithWriter(w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	return &logger{writer: w}
}

func (l *logger) Record(ctx context.Context, eventType EventType, resource string, metadata map[string]interface{}) error {
	event := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Resource:  resource,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = l.writer.Write(append([]byte("AUDIT: "), append(raw, '\n')...))
	return err
}

// NopLogger discards every event; used where no sink is configured.
type NopLogger struct{}

func (NopLogger) Record(context.Context, EventType, string, map[string]interface{}) error {
	return nil
}
