package cube

import (
	"time"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/axis"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/mode"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/seu"
)

// PipelineStatusWritten marks a cube that completed synthesis.
const PipelineStatusWritten = "cube_written"

// ChannelSnapshot is the per-channel meta reading frozen into a cube.
type ChannelSnapshot struct {
	Activation float64 `json:"activation"`
	Confidence float64 `json:"confidence"`
	SignalType string  `json:"signal_type"`
}

// Stamp carries pipeline bookkeeping for a cube.
type Stamp struct {
	CreatedAt      time.Time `json:"created_at"`
	PipelineStatus string    `json:"pipeline_status"`
	CognitiveMode  mode.Mode `json:"cognitive_mode"`
	ModeLabel      string    `json:"mode_label"`
	ModeLabelKo    string    `json:"mode_label_ko"`
}

// Cube is the composite record for one SEU.
type Cube struct {
	SEUID        string                            `json:"seu_id"`
	T            axis.Temporal                     `json:"t"`
	C            axis.Context                      `json:"c"`
	I            axis.Intent                       `json:"i"`
	E            axis.Emotion                      `json:"e"`
	M            mode.Classification               `json:"m"`
	ChannelMetas map[seu.ChannelID]ChannelSnapshot `json:"channel_metas"`
	PAI          Stamp                             `json:"pai"`

	// InputHash fingerprints the metas and raws the cube was built from.
	InputHash string `json:"input_hash"`

	// RawIDs names the raw record behind each channel at build time. It is
	// kept out of the cube JSON; the store persists it in its own column.
	RawIDs map[seu.ChannelID]string `json:"-"`
}
