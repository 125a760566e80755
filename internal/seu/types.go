package seu

import "time"

// #region unit

// Unit is one Sensory Experience Unit: a time-bounded episode to classify.
type Unit struct {
	SEUID        string    `json:"seu_id"`
	TsStart      string    `json:"ts_start"`
	TsEnd        string    `json:"ts_end"`
	DurationMs   int64     `json:"duration_ms"`
	DeviceID     string    `json:"device_id"`
	PrivacyLevel string    `json:"privacy_level"`
	CreatedAt    time.Time `json:"created_at"`
}

// DefaultPrivacyLevel is applied when a unit is created without one.
const DefaultPrivacyLevel = "raw_first"

// #endregion unit

// #region raw-record

// RawRecord is one reported observation for one channel of one SEU.
type RawRecord struct {
	RawID             string         `json:"raw_id"`
	SEUID             string         `json:"seu_id"`
	ChannelID         ChannelID      `json:"channel_id"`
	TsStart           string         `json:"ts_start"`
	TsEnd             string         `json:"ts_end"`
	RawRef            string         `json:"raw_ref"`
	RawHash           string         `json:"raw_hash"`
	EncryptionKeyID   string         `json:"encryption_key_id"`
	RetentionPolicyID string         `json:"retention_policy_id"`
	ConsentPolicyID   string         `json:"consent_policy_id"`
	QualityFlags      []string       `json:"quality_flags"`
	Extra             map[string]any `json:"extra"`
	CreatedAt         time.Time      `json:"created_at"`
}

// Policy defaults for raw registration.
const (
	DefaultEncryptionKeyID   = "key_default"
	DefaultRetentionPolicyID = "retain_default"
	DefaultConsentPolicyID   = "consent_default"
)

// DurationMs reads extra["duration_ms"] as an integer. Decoded JSON numbers
// arrive as float64, so both shapes are accepted.
func (r RawRecord) DurationMs() (int64, bool) {
	v, ok := r.Extra["duration_ms"]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case float32:
		return int64(n), true
	}
	return 0, false
}

// #endregion raw-record

// #region signal

// Signal is the heuristic reading of a raw descriptor.
type Signal struct {
	Activation float64 `json:"activation"`
	SignalType string  `json:"signal_type"`
	Raw        string  `json:"raw"`
}

// UnknownSignalType is the fallthrough category for unrecognized channels.
const UnknownSignalType = "unknown"

// Feature is the intermediate record between a raw and its meta.
type Feature struct {
	FeatureRef   string   `json:"feature_ref"`
	RawRef       string   `json:"raw_ref"`
	RawHash      string   `json:"raw_hash"`
	QualityFlags []string `json:"quality_flags"`
	Signal       Signal   `json:"signal"`
}

// #endregion signal

// #region meta

// EvidenceRef is a traceability pointer justifying a derived value.
type EvidenceRef struct {
	Kind string `json:"kind"`
	Ref  string `json:"ref"`
}

// ChannelMeta is a confidence-annotated signal with its evidence.
type ChannelMeta struct {
	ChannelID      ChannelID     `json:"channel_id"`
	Confidence     float64       `json:"confidence"`
	Activation     float64       `json:"activation"`
	SignalType     string        `json:"signal_type"`
	Summary        string        `json:"summary"`
	SourceChannels []ChannelID   `json:"source_channels"`
	EvidenceRefs   []EvidenceRef `json:"evidence_refs"`
}

// Evidence returns the first evidence ref of the given kind, or "".
func (m ChannelMeta) Evidence(kind string) string {
	for _, e := range m.EvidenceRefs {
		if e.Kind == kind {
			return e.Ref
		}
	}
	return ""
}

// MetaSet holds one meta per channel for a single SEU.
type MetaSet map[ChannelID]ChannelMeta

// RawTexts holds the raw_ref text per channel for a single SEU.
type RawTexts map[ChannelID]string

// #endregion meta
