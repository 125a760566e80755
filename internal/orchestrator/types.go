package orchestrator

// #region imports
import (
	"context"
	"database/sql"
	"errors"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/cube"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/logging"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/seu"
)

// #endregion

// #region errors

// ErrCubeRejected marks a synthesized cube that failed post-build eval.
// Nothing is stored when it is returned.
var ErrCubeRejected = errors.New("cube rejected by eval")

// #endregion

// #region status

const (
	StatusCreated    = "created"
	StatusRegistered = "registered"
)

// #endregion

// #region repository

// Repository is the storage the orchestrator drives. *state.Store satisfies it.
type Repository interface {
	cube.Source

	CreateUnit(ctx context.Context, u seu.Unit) error
	GetUnit(ctx context.Context, seuID string) (seu.Unit, error)
	PutRaw(ctx context.Context, r seu.RawRecord) error
	RawChannels(ctx context.Context, seuID string) ([]seu.ChannelID, error)
	PutFeature(ctx context.Context, seuID string, ch seu.ChannelID, f seu.Feature) error
	PutMeta(ctx context.Context, seuID string, m seu.ChannelMeta) error
	PutCube(ctx context.Context, c cube.Cube) error
	GetCube(ctx context.Context, seuID string) (cube.Cube, error)
	PendingUnits(ctx context.Context) ([]string, error)
	DB() *sql.DB
}

// #endregion

// #region pipeline

// Pipeline is the operation surface shared by the HTTP, gRPC and MCP servers.
type Pipeline interface {
	CreateSEU(ctx context.Context, req CreateSEURequest) (CreateSEUResponse, error)
	RegisterRaw(ctx context.Context, req RegisterRawRequest) (RegisterRawResponse, error)
	ComputeMeta(ctx context.Context, seuID, channelID string) (ComputeMetaResponse, error)
	BuildCube(ctx context.Context, seuID string) (BuildCubeResponse, error)
	GetCube(ctx context.Context, seuID string) (cube.Cube, error)
	Events(ctx context.Context, limit int) ([]logging.Event, error)
}

// #endregion

// #region requests

// SEUTime bounds a unit in time.
type SEUTime struct {
	TsStart    string `json:"ts_start"`
	TsEnd      string `json:"ts_end"`
	DurationMs int64  `json:"duration_ms"`
}

// CreateSEURequest opens a unit. SEUID is generated when empty.
type CreateSEURequest struct {
	SEUID        string  `json:"seu_id,omitempty"`
	Time         SEUTime `json:"time"`
	DeviceID     string  `json:"device_id"`
	PrivacyLevel string  `json:"privacy_level,omitempty"`
}

// CreateSEUResponse echoes the unit ID and the channels it expects.
type CreateSEUResponse struct {
	SEUID            string          `json:"seu_id"`
	Status           string          `json:"status"`
	ExpectedChannels []seu.ChannelID `json:"expected_channels"`
}

// RegisterRawRequest reports one channel observation. Empty policy IDs and
// RawHash take defaults.
type RegisterRawRequest struct {
	SEUID             string         `json:"seu_id"`
	ChannelID         string         `json:"channel_id"`
	TsStart           string         `json:"ts_start"`
	TsEnd             string         `json:"ts_end"`
	RawRef            string         `json:"raw_ref"`
	RawHash           string         `json:"raw_hash,omitempty"`
	EncryptionKeyID   string         `json:"encryption_key_id,omitempty"`
	RetentionPolicyID string         `json:"retention_policy_id,omitempty"`
	ConsentPolicyID   string         `json:"consent_policy_id,omitempty"`
	QualityFlags      []string       `json:"quality_flags,omitempty"`
	Extra             map[string]any `json:"extra,omitempty"`
}

// RegisterRawResponse carries the ID of the stored raw.
type RegisterRawResponse struct {
	RawID  string `json:"raw_id"`
	Status string `json:"status"`
}

// ComputeMetaResponse carries a freshly stored channel meta.
type ComputeMetaResponse struct {
	SEUID     string          `json:"seu_id"`
	ChannelID seu.ChannelID   `json:"channel_id"`
	Meta      seu.ChannelMeta `json:"meta"`
}

// BuildCubeResponse carries a stored cube.
type BuildCubeResponse struct {
	SEUID  string    `json:"seu_id"`
	Status string    `json:"status"`
	Cube   cube.Cube `json:"cube"`
}

// #endregion
