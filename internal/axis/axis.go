// Package axis fuses fixed subsets of channel metas into the four semantic
// axes of a cube: Temporal, Context, Intent and Emotion. Every synthesizer is
// a pure function of its inputs.
package axis

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/seu"
)

const (
	contextSnippetLen = 15
	valueSnippetLen   = 20
	timestampLen      = 19
	tagSeparator      = " | "
	ambientContext    = "ambient-context"
)

// #region temporal

// SynthesizeTemporal copies the time bounds of the timeline channel's raw.
// DurationMs stays nil when the raw carries no extra.duration_ms.
func SynthesizeTemporal(raw seu.RawRecord) Temporal {
	t := Temporal{
		TsStart: raw.TsStart,
		TsEnd:   raw.TsEnd,
		Value:   prefix(raw.TsStart, timestampLen),
	}
	if d, ok := raw.DurationMs(); ok {
		t.DurationMs = &d
	}
	return t
}

// #endregion temporal

// #region context

// SynthesizeContext tags the scene snippet, social device use and the
// environment's meta context.
func SynthesizeContext(metas seu.MetaSet, raws seu.RawTexts) Context {
	var tags []string
	if v := prefix(raws[seu.ChannelVisual], contextSnippetLen); v != "" {
		tags = append(tags, v)
	}
	if strings.Contains(metas[seu.ChannelDevice].SignalType, "social") {
		tags = append(tags, "social")
	}
	env := metas[seu.ChannelEnvironment].SignalType
	switch {
	case strings.Contains(env, "focus"):
		tags = append(tags, "focus-context")
	case strings.Contains(env, "recovery"):
		tags = append(tags, "rest-context")
	case strings.Contains(env, "learning"):
		tags = append(tags, "learning-context")
	}

	value := ambientContext
	if len(tags) > 0 {
		value = strings.Join(tags, tagSeparator)
	}
	return Context{
		Value:          value,
		Confidence:     meanConfidence(metas, ContextSources),
		SourceChannels: sources(ContextSources),
		EvidenceRefs:   mergeEvidence(metas, ContextSources),
	}
}

// #endregion context

// #region intent

// SynthesizeIntent: user mode carries 60% of intensity, spatial the rest.
func SynthesizeIntent(metas seu.MetaSet, raws seu.RawTexts) Intent {
	intensity := seu.Round3(metas[seu.ChannelUserMode].Activation*0.6 + metas[seu.ChannelSpatial].Activation*0.4)

	var level string
	switch {
	case intensity > 0.7:
		level = "high-intent"
	case intensity > 0.5:
		level = "moderate-intent"
	default:
		level = "low-intent"
	}

	return Intent{
		Value:          labelWithSnippet(level, raws[seu.ChannelUserMode]),
		Intensity:      intensity,
		Confidence:     meanConfidence(metas, IntentSources),
		SourceChannels: sources(IntentSources),
		EvidenceRefs:   mergeEvidence(metas, IntentSources),
	}
}

// #endregion intent

// #region emotion

// SynthesizeEmotion labels valence through an ordered cascade; the first
// matching rule wins.
func SynthesizeEmotion(metas seu.MetaSet, raws seu.RawTexts) Emotion {
	valence := metas[seu.ChannelBiometric].Activation
	body := metas[seu.ChannelText].SignalType

	var label string
	switch {
	case valence > 0.7 && strings.Contains(body, "relax"):
		label = "calm-positive"
	case valence > 0.7:
		label = "energized-positive"
	case valence > 0.5:
		label = "mild-positive"
	case valence > 0.4:
		label = "neutral"
	case strings.Contains(body, "alert"):
		label = "tense-alert"
	default:
		label = "mild-negative"
	}

	return Emotion{
		Value:          labelWithSnippet(label, raws[seu.ChannelBiometric]),
		Valence:        seu.Round3(valence),
		BodyState:      body,
		Confidence:     meanConfidence(metas, EmotionSources),
		SourceChannels: sources(EmotionSources),
		EvidenceRefs:   mergeEvidence(metas, EmotionSources),
	}
}

// #endregion emotion

// #region helpers

// prefix returns the first n code points of s.
func prefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func labelWithSnippet(label, raw string) string {
	snippet := prefix(raw, valueSnippetLen)
	if snippet == "" {
		return label
	}
	return fmt.Sprintf("%s: %s", label, snippet)
}

func meanConfidence(metas seu.MetaSet, srcs []seu.ChannelID) float64 {
	vs := make([]float64, len(srcs))
	for i, ch := range srcs {
		vs[i] = metas[ch].Confidence
	}
	return seu.Round3(seu.Mean(vs...))
}

// mergeEvidence concatenates evidence in source order.
func mergeEvidence(metas seu.MetaSet, srcs []seu.ChannelID) []seu.EvidenceRef {
	var out []seu.EvidenceRef
	for _, ch := range srcs {
		out = append(out, metas[ch].EvidenceRefs...)
	}
	return out
}

// sources copies the fixed list so callers cannot mutate the package table.
func sources(srcs []seu.ChannelID) []seu.ChannelID {
	return append([]seu.ChannelID(nil), srcs...)
}

// #endregion helpers
