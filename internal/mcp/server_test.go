package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/orchestrator"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/seu"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/state"
)

func setupTestServer(t *testing.T) *server.MCPServer {
	t.Helper()
	store, err := state.NewStore(filepath.Join(t.TempDir(), "mcp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	orch := orchestrator.New(store, orchestrator.WithClock(func() time.Time { return fixed }))
	return NewServer(ServerConfig{Pipeline: orch, Logger: zaptest.NewLogger(t), Version: "test"})
}

func mustMarshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

// callTool invokes a tool through the JSON-RPC entry point and returns the
// text content and the isError flag.
func callTool(t *testing.T, srv *server.MCPServer, name string, args map[string]any) (string, bool) {
	t.Helper()
	result := srv.HandleMessage(context.Background(), mustMarshal(t, map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      name,
			"arguments": args,
		},
	}))

	var resp struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(mustMarshal(t, result), &resp))
	require.Nil(t, resp.Error, "JSON-RPC error")
	require.NotEmpty(t, resp.Result.Content, "no content in result")
	require.Equal(t, "text", resp.Result.Content[0].Type)
	return resp.Result.Content[0].Text, resp.Result.IsError
}

var sessionTexts = map[seu.ChannelID]string{
	seu.ChannelVisual:      "office desk, bright screen",
	seu.ChannelAudio:       "quiet room",
	seu.ChannelSpatial:     "home office",
	seu.ChannelBiometric:   "80 bpm",
	seu.ChannelText:        "finish the key strategy doc",
	seu.ChannelDevice:      "30 sec tap",
	seu.ChannelUserMode:    "deep focus session",
	seu.ChannelEnvironment: "300 lux, 40 db, 22°c",
}

func registerAll(t *testing.T, srv *server.MCPServer, seuID string) {
	t.Helper()
	for _, ch := range seu.Channels {
		text, isErr := callTool(t, srv, "pai_register_raw", map[string]any{
			"seu_id":     seuID,
			"channel_id": string(ch),
			"raw_ref":    sessionTexts[ch],
			"ts_start":   "2026-03-01T09:00:00+09:00",
			"ts_end":     "2026-03-01T09:05:00+09:00",
		})
		require.False(t, isErr, text)
	}
}

func TestToolsList(t *testing.T) {
	srv := setupTestServer(t)
	result := srv.HandleMessage(context.Background(), mustMarshal(t, map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/list",
	}))

	var resp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(mustMarshal(t, result), &resp))

	var names []string
	for _, tool := range resp.Result.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"pai_build_cube",
		"pai_compute_meta",
		"pai_create_seu",
		"pai_events",
		"pai_get_cube",
		"pai_register_raw",
	}, names)
}

func TestCreateSEUTool(t *testing.T) {
	srv := setupTestServer(t)
	text, isErr := callTool(t, srv, "pai_create_seu", map[string]any{
		"seu_id":      "seu-mcp",
		"ts_start":    "2026-03-01T09:00:00+09:00",
		"ts_end":      "2026-03-01T09:05:00+09:00",
		"duration_ms": 300000,
		"device_id":   "watch-1",
	})
	require.False(t, isErr, text)

	var resp orchestrator.CreateSEUResponse
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	assert.Equal(t, "seu-mcp", resp.SEUID)
	assert.Equal(t, orchestrator.StatusCreated, resp.Status)
	assert.Equal(t, seu.Channels, resp.ExpectedChannels)
}

func TestCreateSEUToolMissingDevice(t *testing.T) {
	srv := setupTestServer(t)
	text, isErr := callTool(t, srv, "pai_create_seu", map[string]any{
		"ts_start": "2026-03-01T09:00:00+09:00",
		"ts_end":   "2026-03-01T09:05:00+09:00",
	})
	assert.True(t, isErr)
	assert.Contains(t, text, "invalid request")
}

func TestRegisterRawToolInvalidChannel(t *testing.T) {
	srv := setupTestServer(t)
	text, isErr := callTool(t, srv, "pai_register_raw", map[string]any{
		"seu_id":     "seu-1",
		"channel_id": "CH9",
		"raw_ref":    "noise",
	})
	assert.True(t, isErr)
	assert.Contains(t, text, "invalid channel_id")
}

func TestRegisterRawToolMissingArgument(t *testing.T) {
	srv := setupTestServer(t)
	text, isErr := callTool(t, srv, "pai_register_raw", map[string]any{
		"seu_id":     "seu-1",
		"channel_id": "CH1",
	})
	assert.True(t, isErr)
	assert.Equal(t, "raw_ref is required", text)
}

func TestComputeMetaTool(t *testing.T) {
	srv := setupTestServer(t)
	registerAll(t, srv, "seu-1")

	text, isErr := callTool(t, srv, "pai_compute_meta", map[string]any{
		"seu_id":     "seu-1",
		"channel_id": "CH4",
	})
	require.False(t, isErr, text)

	var resp orchestrator.ComputeMetaResponse
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	assert.Equal(t, seu.ChannelBiometric, resp.ChannelID)
	assert.InDelta(t, 0.7, resp.Meta.Activation, 1e-9)
	assert.Equal(t, "bio_focused", resp.Meta.SignalType)
}

func TestBuildAndGetCubeTools(t *testing.T) {
	srv := setupTestServer(t)

	text, isErr := callTool(t, srv, "pai_build_cube", map[string]any{"seu_id": "seu-1"})
	assert.True(t, isErr)
	assert.Contains(t, text, "not all channel raws present")

	registerAll(t, srv, "seu-1")
	text, isErr = callTool(t, srv, "pai_build_cube", map[string]any{"seu_id": "seu-1"})
	require.False(t, isErr, text)

	var built orchestrator.BuildCubeResponse
	require.NoError(t, json.Unmarshal([]byte(text), &built))
	assert.Equal(t, "cube_written", built.Status)
	assert.Equal(t, "deep_focus", string(built.Cube.M.CognitiveMode))

	text, isErr = callTool(t, srv, "pai_get_cube", map[string]any{"seu_id": "seu-1"})
	require.False(t, isErr, text)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &got))
	assert.Equal(t, built.Cube.InputHash, got["input_hash"])
	assert.Len(t, got["channel_metas"], 8)
}

func TestGetCubeToolNotFound(t *testing.T) {
	srv := setupTestServer(t)
	text, isErr := callTool(t, srv, "pai_get_cube", map[string]any{"seu_id": "nope"})
	assert.True(t, isErr)
	assert.Contains(t, text, "not found")
}

func TestEventsTool(t *testing.T) {
	srv := setupTestServer(t)
	registerAll(t, srv, "seu-1")

	text, isErr := callTool(t, srv, "pai_events", map[string]any{"limit": 3})
	require.False(t, isErr, text)

	var resp struct {
		Events []struct {
			EventType string         `json:"event_type"`
			SEUID     string         `json:"seu_id"`
			Payload   map[string]any `json:"payload"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	require.Len(t, resp.Events, 3)
	for _, e := range resp.Events {
		assert.Equal(t, "channel.raw_registered", e.EventType)
		assert.Equal(t, "seu-1", e.SEUID)
	}
	assert.Equal(t, "CH8", resp.Events[2].Payload["channel_id"])
}

func TestEventsToolEmpty(t *testing.T) {
	srv := setupTestServer(t)
	text, isErr := callTool(t, srv, "pai_events", map[string]any{})
	require.False(t, isErr, text)
	assert.JSONEq(t, `{"events": []}`, text)
}
