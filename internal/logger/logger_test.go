package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestNew_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "debug", Format: "json", Output: &buf})

	l.WithField(FieldMakeID, 440).Info("hello")

	line := decodeLine(t, &buf)
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, defaultServiceName, line["service"])
	assert.EqualValues(t, 440, line[FieldMakeID])
	assert.Contains(t, line, "timestamp")
}

func TestContextPropagation(t *testing.T) {
	var buf bytes.Buffer
	base := New(&Config{Level: "info", Output: &buf})

	ctx := base.WithContext(context.Background())
	ctx = SetJobID(ctx, "job-1")
	ctx = SetRequestID(ctx, "req-1")

	assert.Equal(t, "job-1", GetJobID(ctx))
	assert.Equal(t, "req-1", GetRequestID(ctx))

	With(Fields{FieldCount: 3}).WithDuration(1500 * time.Millisecond).Info(ctx, "done")

	line := decodeLine(t, &buf)
	assert.Equal(t, "job-1", line[FieldJobID])
	assert.EqualValues(t, 3, line[FieldCount])
	assert.EqualValues(t, 1500, line[FieldDurationMs])
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	assert.Same(t, GetDefault(), FromContext(context.Background()))
	assert.Empty(t, GetJobID(context.Background()))
}

func TestEntryWithError(t *testing.T) {
	var buf bytes.Buffer
	ctx := New(&Config{Output: &buf}).WithContext(context.Background())

	With(Fields{}).WithError(errors.New("boom")).Warn(ctx, "retrying")

	line := decodeLine(t, &buf)
	assert.Equal(t, "warning", line["level"])
	assert.Equal(t, "boom", line["error"])
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard().Error("ignored") })
}
