package axis

import "github.com/danielpatrickdp/pai-cube/go-controller/internal/seu"

// #region axis-types

// Temporal is a passthrough of the timeline channel's time bounds.
type Temporal struct {
	TsStart    string `json:"ts_start"`
	TsEnd      string `json:"ts_end"`
	DurationMs *int64 `json:"duration_ms"`
	Value      string `json:"value"`
}

// Context fuses scene, device and environment cues into tags.
type Context struct {
	Value          string            `json:"value"`
	Confidence     float64           `json:"confidence"`
	SourceChannels []seu.ChannelID   `json:"source_channels"`
	EvidenceRefs   []seu.EvidenceRef `json:"evidence_refs"`
}

// Intent weighs the declared mode against spatial movement.
type Intent struct {
	Value          string            `json:"value"`
	Intensity      float64           `json:"intensity"`
	Confidence     float64           `json:"confidence"`
	SourceChannels []seu.ChannelID   `json:"source_channels"`
	EvidenceRefs   []seu.EvidenceRef `json:"evidence_refs"`
}

// Emotion reads valence from biometrics and body state from text input.
type Emotion struct {
	Value          string            `json:"value"`
	Valence        float64           `json:"valence"`
	BodyState      string            `json:"body_state"`
	Confidence     float64           `json:"confidence"`
	SourceChannels []seu.ChannelID   `json:"source_channels"`
	EvidenceRefs   []seu.EvidenceRef `json:"evidence_refs"`
}

// #endregion axis-types

// #region sources

// Fixed source channels per axis, in evidence order.
var (
	ContextSources = []seu.ChannelID{seu.ChannelVisual, seu.ChannelDevice, seu.ChannelEnvironment}
	IntentSources  = []seu.ChannelID{seu.ChannelSpatial, seu.ChannelUserMode, seu.ChannelAudio}
	EmotionSources = []seu.ChannelID{seu.ChannelBiometric, seu.ChannelText}
)

// #endregion sources
