package auditlog

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_Record_WritesPrefixedJSONLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf)

	err := l.Record(context.Background(), EventBucketWrite, "staging", map[string]interface{}{"revisionId": int64(3)})
	require.NoError(t, err)

	line := strings.TrimSuffix(buf.String(), "\n")
	require.True(t, strings.HasPrefix(line, "AUDIT: "))

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "AUDIT: ")), &ev))
	assert.Equal(t, EventBucketWrite, ev.Type)
	assert.Equal(t, "staging", ev.Resource)
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.Timestamp.IsZero())
	assert.Equal(t, float64(3), ev.Metadata["revisionId"])
}

func TestLogger_Record_MultipleEventsAreSeparateLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf)

	require.NoError(t, l.Record(context.Background(), EventRenderStarted, "r1", nil))
	require.NoError(t, l.Record(context.Background(), EventRenderFailed, "r1", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], string(EventRenderStarted))
	assert.Contains(t, lines[1], string(EventRenderFailed))
}

func TestNewLogger_NilWriterFallsBackToStdout(t *testing.T) {
	l := NewLoggerWithWriter(nil)
	assert.NotNil(t, l)
}

func TestNopLogger_NeverErrors(t *testing.T) {
	var l Logger = NopLogger{}
	assert.NoError(t, l.Record(context.Background(), EventSecretAccess, "whatever", nil))
}
