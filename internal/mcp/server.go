// Package mcp exposes the SEU pipeline as Model Context Protocol tools.
//
// The tools drive the same orchestrator.Pipeline as the HTTP and gRPC
// surfaces, so an agent can open a unit, report channel observations and
// read back the classified cube over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/logging"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/orchestrator"
)

// ServerName is reported in the MCP initialize handshake.
const ServerName = "PAI Cube"

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Pipeline orchestrator.Pipeline
	Logger   *zap.Logger
	Version  string
}

// NewServer creates an MCP server with all pipeline tools registered.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("mcp")

	s := server.NewMCPServer(
		ServerName,
		ver,
		server.WithToolCapabilities(false),
	)

	t := &tools{pipeline: cfg.Pipeline, logger: logger}
	t.registerCreateSEU(s)
	t.registerRegisterRaw(s)
	t.registerComputeMeta(s)
	t.registerBuildCube(s)
	t.registerGetCube(s)
	t.registerEvents(s)

	return s
}

// ServeStdio serves s on stdin/stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

type tools struct {
	pipeline orchestrator.Pipeline
	logger   *zap.Logger
}

// --- Tools ---

func (t *tools) registerCreateSEU(s *server.MCPServer) {
	tool := mcp.NewTool("pai_create_seu",
		mcp.WithDescription("Open a new sensory experience unit (SEU). Returns the unit ID and the eight channels it expects."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("ts_start", mcp.Required(), mcp.Description("Unit start, ISO-8601")),
		mcp.WithString("ts_end", mcp.Required(), mcp.Description("Unit end, ISO-8601")),
		mcp.WithString("device_id", mcp.Required(), mcp.Description("Reporting device")),
		mcp.WithNumber("duration_ms", mcp.Description("Unit duration in milliseconds")),
		mcp.WithString("seu_id", mcp.Description("Explicit unit ID. Generated when empty.")),
		mcp.WithString("privacy_level", mcp.Description("Privacy level label (default: standard)")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		in := orchestrator.CreateSEURequest{
			SEUID:        optionalString(req, "seu_id"),
			DeviceID:     optionalString(req, "device_id"),
			PrivacyLevel: optionalString(req, "privacy_level"),
			Time: orchestrator.SEUTime{
				TsStart: optionalString(req, "ts_start"),
				TsEnd:   optionalString(req, "ts_end"),
			},
		}
		if ms, err := req.RequireFloat("duration_ms"); err == nil {
			in.Time.DurationMs = int64(ms)
		}
		resp, err := t.pipeline.CreateSEU(ctx, in)
		return t.result("pai_create_seu", resp, err)
	})
}

func (t *tools) registerRegisterRaw(s *server.MCPServer) {
	tool := mcp.NewTool("pai_register_raw",
		mcp.WithDescription("Register one channel observation (CH1..CH8) for a unit. Replacing a channel's raw invalidates its derived meta."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("seu_id", mcp.Required(), mcp.Description("Unit ID")),
		mcp.WithString("channel_id",
			mcp.Required(),
			mcp.Description("Channel identifier"),
			mcp.Enum("CH1", "CH2", "CH3", "CH4", "CH5", "CH6", "CH7", "CH8"),
		),
		mcp.WithString("raw_ref", mcp.Required(), mcp.Description("Raw descriptor text, e.g. '80 bpm' or 'focus mode'")),
		mcp.WithString("ts_start", mcp.Description("Observation start, ISO-8601")),
		mcp.WithString("ts_end", mcp.Description("Observation end, ISO-8601")),
		mcp.WithString("raw_hash", mcp.Description("Content hash. Defaults to SHA-256 of raw_ref.")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		seuID, err := req.RequireString("seu_id")
		if err != nil {
			return mcp.NewToolResultError("seu_id is required"), nil
		}
		ch, err := req.RequireString("channel_id")
		if err != nil {
			return mcp.NewToolResultError("channel_id is required"), nil
		}
		raw, err := req.RequireString("raw_ref")
		if err != nil {
			return mcp.NewToolResultError("raw_ref is required"), nil
		}
		resp, err := t.pipeline.RegisterRaw(ctx, orchestrator.RegisterRawRequest{
			SEUID:     seuID,
			ChannelID: ch,
			RawRef:    raw,
			TsStart:   optionalString(req, "ts_start"),
			TsEnd:     optionalString(req, "ts_end"),
			RawHash:   optionalString(req, "raw_hash"),
		})
		return t.result("pai_register_raw", resp, err)
	})
}

func (t *tools) registerComputeMeta(s *server.MCPServer) {
	tool := mcp.NewTool("pai_compute_meta",
		mcp.WithDescription("Derive and store the feature and meta for one registered channel raw."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("seu_id", mcp.Required(), mcp.Description("Unit ID")),
		mcp.WithString("channel_id", mcp.Required(), mcp.Description("Channel identifier (CH1..CH8)")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		seuID, err := req.RequireString("seu_id")
		if err != nil {
			return mcp.NewToolResultError("seu_id is required"), nil
		}
		ch, err := req.RequireString("channel_id")
		if err != nil {
			return mcp.NewToolResultError("channel_id is required"), nil
		}
		resp, err := t.pipeline.ComputeMeta(ctx, seuID, ch)
		return t.result("pai_compute_meta", resp, err)
	})
}

func (t *tools) registerBuildCube(s *server.MCPServer) {
	tool := mcp.NewTool("pai_build_cube",
		mcp.WithDescription("Build the cognitive-mode cube for a unit once all eight channel raws are registered. Missing metas are computed first."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("seu_id", mcp.Required(), mcp.Description("Unit ID")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		seuID, err := req.RequireString("seu_id")
		if err != nil {
			return mcp.NewToolResultError("seu_id is required"), nil
		}
		resp, err := t.pipeline.BuildCube(ctx, seuID)
		return t.result("pai_build_cube", resp, err)
	})
}

func (t *tools) registerGetCube(s *server.MCPServer) {
	tool := mcp.NewTool("pai_get_cube",
		mcp.WithDescription("Fetch the stored cube for a unit: channel metas, the four axes and the selected mode."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("seu_id", mcp.Required(), mcp.Description("Unit ID")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		seuID, err := req.RequireString("seu_id")
		if err != nil {
			return mcp.NewToolResultError("seu_id is required"), nil
		}
		c, err := t.pipeline.GetCube(ctx, seuID)
		return t.result("pai_get_cube", c, err)
	})
}

func (t *tools) registerEvents(s *server.MCPServer) {
	tool := mcp.NewTool("pai_events",
		mcp.WithDescription("List the most recent pipeline events in emission order."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("limit", mcp.Description(fmt.Sprintf("Maximum number of events (default: %d, max: 500)", logging.DefaultEventLimit))),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := logging.DefaultEventLimit
		if v, err := req.RequireFloat("limit"); err == nil && v > 0 {
			limit = int(v)
			if limit > 500 {
				limit = 500
			}
		}
		events, err := t.pipeline.Events(ctx, limit)
		if events == nil {
			events = []logging.Event{}
		}
		return t.result("pai_events", map[string]any{"events": events}, err)
	})
}

// --- Helpers ---

// result renders v as indented JSON, or err as a tool error. Pipeline
// failures are tool-level errors, never protocol errors.
func (t *tools) result(tool string, v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		t.logger.Debug("tool failed", zap.String("tool", tool), zap.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func optionalString(req mcp.CallToolRequest, key string) string {
	v, err := req.RequireString(key)
	if err != nil {
		return ""
	}
	return v
}
