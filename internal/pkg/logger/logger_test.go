package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	appCtx "github.com/baechuer/real-time-ressys/services/jam-service/internal/pkg/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithCtx_AddsRequestID(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	var buf bytes.Buffer
	InitWithWriter(&buf)

	ctx := appCtx.WithRequestID(context.Background(), "rid-42")
	WithCtx(ctx).Info().Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "rid-42", line["request_id"])
	assert.Equal(t, "hello", line["message"])
}

func TestInit_BadLevelFallsBackToInfo(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "loud")

	var buf bytes.Buffer
	InitWithWriter(&buf)

	l := Component("filter")
	l.Debug().Msg("hidden")
	assert.Empty(t, buf.String())

	l.Info().Msg("shown")
	assert.Contains(t, buf.String(), `"component":"filter"`)
}

func TestWithCtx_TraceIDOnlyWhenDistinct(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, "info", "json")

	ctx := appCtx.WithTraceID(context.Background(), "msg-7")
	WithCtx(ctx).Info().Msg("consumed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "msg-7", line["trace_id"])
	assert.NotContains(t, line, "request_id")

	buf.Reset()
	WithCtx(appCtx.WithRequestID(context.Background(), "r1")).Info().Msg("http")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.NotContains(t, buf.String(), "trace_id")
}
