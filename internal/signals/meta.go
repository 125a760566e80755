package signals

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/seu"
)

// #region feature

// BuildFeature runs the extractor over a raw record and keeps its provenance.
func (p *Producer) BuildFeature(raw seu.RawRecord) seu.Feature {
	return seu.Feature{
		FeatureRef:   FeatureRef(raw.SEUID, raw.ChannelID),
		RawRef:       raw.RawRef,
		RawHash:      raw.RawHash,
		QualityFlags: raw.QualityFlags,
		Signal:       p.Extract(raw.ChannelID, raw.RawRef),
	}
}

// FeatureRef is the stable reference for a channel's feature record.
func FeatureRef(seuID string, ch seu.ChannelID) string {
	return fmt.Sprintf("feature://%s/%s", ch, seuID)
}

// #endregion feature

// #region meta

// BuildMeta wraps a feature's signal into a confidence-scored record.
// Confidence tracks activation, with a flat bonus when the heuristic resolved
// to a concrete category.
func BuildMeta(ch seu.ChannelID, f seu.Feature) seu.ChannelMeta {
	act := f.Signal.Activation
	stype := f.Signal.SignalType
	if stype == "" {
		stype = seu.UnknownSignalType
	}
	bonus := 0.8
	if stype == seu.UnknownSignalType {
		bonus = 0.4
	}
	conf := seu.Round3(act*0.7 + 0.3*bonus)

	return seu.ChannelMeta{
		ChannelID:      ch,
		Confidence:     conf,
		Activation:     act,
		SignalType:     stype,
		Summary:        fmt.Sprintf("%s:%s@%.2f", ch, stype, act),
		SourceChannels: []seu.ChannelID{ch},
		EvidenceRefs: []seu.EvidenceRef{
			{Kind: "raw_ref", Ref: f.RawRef},
			{Kind: "raw_hash", Ref: f.RawHash},
			{Kind: "signal", Ref: stype},
			{Kind: "activation", Ref: FormatActivation(act)},
		},
	}
}

// FormatActivation renders v in shortest form, always with a decimal point
// ("0.7", "0.0", "1.0").
func FormatActivation(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// #endregion meta
