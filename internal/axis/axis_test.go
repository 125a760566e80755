package axis

import (
	"math"
	"testing"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/seu"
)

// #region helpers

func meta(ch seu.ChannelID, act float64, stype string, conf float64) seu.ChannelMeta {
	return seu.ChannelMeta{
		ChannelID:      ch,
		Activation:     act,
		SignalType:     stype,
		Confidence:     conf,
		SourceChannels: []seu.ChannelID{ch},
		EvidenceRefs:   []seu.EvidenceRef{{Kind: "raw_ref", Ref: string(ch)}},
	}
}

// neutralMetas returns metas for all eight channels at activation 0.5.
func neutralMetas() seu.MetaSet {
	ms := seu.MetaSet{}
	for _, ch := range seu.Channels {
		ms[ch] = meta(ch, 0.5, "neutral", 0.59)
	}
	return ms
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// #endregion helpers

// #region temporal-tests

func TestSynthesizeTemporal(t *testing.T) {
	raw := seu.RawRecord{
		TsStart: "2026-03-01T09:00:00+09:00",
		TsEnd:   "2026-03-01T09:05:00+09:00",
		Extra:   map[string]any{"duration_ms": float64(300000)},
	}
	got := SynthesizeTemporal(raw)
	if got.Value != "2026-03-01T09:00:00" {
		t.Errorf("value = %q", got.Value)
	}
	if got.DurationMs == nil || *got.DurationMs != 300000 {
		t.Errorf("duration_ms = %v", got.DurationMs)
	}
	if got.TsEnd != raw.TsEnd {
		t.Errorf("ts_end = %q", got.TsEnd)
	}
}

func TestSynthesizeTemporal_NoDuration(t *testing.T) {
	got := SynthesizeTemporal(seu.RawRecord{TsStart: "short"})
	if got.DurationMs != nil {
		t.Errorf("expected nil duration, got %d", *got.DurationMs)
	}
	if got.Value != "short" {
		t.Errorf("value = %q", got.Value)
	}
}

// #endregion temporal-tests

// #region context-tests

func TestSynthesizeContext(t *testing.T) {
	tests := []struct {
		name   string
		visual string
		device string
		env    string
		want    string
	}{
		{"all-tags", "cafe window, bright lighting", "device_social", "mode_focus", "cafe window, br | social | focus-context"},
		{"empty-falls-back", "", "device_brief", "env_optimal", "ambient-context"},
		{"rest-context", "", "device_idle", "mode_recovery", "rest-context"},
		{"learning-context", "desk", "device_active", "mode_learning", "desk | learning-context"},
		{"focus-precedes-recovery", "", "", "focus_recovery", "focus-context"},
		{"social-only", "", "social_feed", "env_moderate", "social"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := neutralMetas()
			ms[seu.ChannelDevice] = meta(seu.ChannelDevice, 0.5, tt.device, 0.59)
			ms[seu.ChannelEnvironment] = meta(seu.ChannelEnvironment, 0.5, tt.env, 0.59)
			got := SynthesizeContext(ms, seu.RawTexts{seu.ChannelVisual: tt.visual})
			if got.Value != tt.want {
				t.Errorf("value = %q, want %q", got.Value, tt.want)
			}
		})
	}
}

func TestSynthesizeContext_SnippetCountsRunes(t *testing.T) {
	visual := "카페 창가 자리에서 노트북 화면을 보는 중"
	want := string([]rune(visual)[:15])
	got := SynthesizeContext(neutralMetas(), seu.RawTexts{seu.ChannelVisual: visual})
	if got.Value != want {
		t.Errorf("value = %q, want %q", got.Value, want)
	}
}

func TestSynthesizeContext_ConfidenceAndEvidence(t *testing.T) {
	ms := neutralMetas()
	ms[seu.ChannelVisual] = meta(seu.ChannelVisual, 0.5, "scene_sparse", 0.617)
	ms[seu.ChannelDevice] = meta(seu.ChannelDevice, 0.5, "device_brief", 0.73)
	ms[seu.ChannelEnvironment] = meta(seu.ChannelEnvironment, 0.5, "env_optimal", 0.905)

	got := SynthesizeContext(ms, nil)
	if !approx(got.Confidence, 0.751) {
		t.Errorf("confidence = %v, want 0.751", got.Confidence)
	}
	wantSrc := []seu.ChannelID{"CH1", "CH6", "CH8"}
	for i, ch := range wantSrc {
		if got.SourceChannels[i] != ch {
			t.Errorf("source[%d] = %s, want %s", i, got.SourceChannels[i], ch)
		}
		if got.EvidenceRefs[i].Ref != string(ch) {
			t.Errorf("evidence[%d] = %s, want %s", i, got.EvidenceRefs[i].Ref, ch)
		}
	}
}

func TestSources_NotShared(t *testing.T) {
	got := SynthesizeContext(neutralMetas(), nil)
	got.SourceChannels[0] = "CH9"
	if ContextSources[0] != seu.ChannelVisual {
		t.Fatal("package source table was mutated through a result")
	}
}

// #endregion context-tests

// #region intent-tests

func TestSynthesizeIntent(t *testing.T) {
	tests := []struct {
		name          string
		userMode      float64
		spatial       float64
		raw           string
		wantIntensity float64
		wantValue     string
	}{
		{"moderate", 0.88, 0.3, "deep focus session", 0.648, "moderate-intent: deep focus session"},
		{"high", 0.92, 0.8, "", 0.872, "high-intent"},
		{"boundary-not-high", 0.5, 1.0, "", 0.7, "moderate-intent"},
		{"low", 0.35, 0.4, "", 0.37, "low-intent"},
		{"snippet-truncated", 0.85, 0.3, "complete the quarterly goal review", 0.63, "moderate-intent: complete the quarter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := neutralMetas()
			ms[seu.ChannelUserMode] = meta(seu.ChannelUserMode, tt.userMode, "mode_focus", 0.8)
			ms[seu.ChannelSpatial] = meta(seu.ChannelSpatial, tt.spatial, "static_indoor", 0.45)
			got := SynthesizeIntent(ms, seu.RawTexts{seu.ChannelUserMode: tt.raw})
			if !approx(got.Intensity, tt.wantIntensity) {
				t.Errorf("intensity = %v, want %v", got.Intensity, tt.wantIntensity)
			}
			if got.Value != tt.wantValue {
				t.Errorf("value = %q, want %q", got.Value, tt.wantValue)
			}
		})
	}
}

func TestSynthesizeIntent_SourceOrder(t *testing.T) {
	got := SynthesizeIntent(neutralMetas(), nil)
	want := []string{"CH3", "CH7", "CH2"}
	for i, ch := range want {
		if string(got.SourceChannels[i]) != ch || got.EvidenceRefs[i].Ref != ch {
			t.Errorf("position %d: source %s evidence %s, want %s", i, got.SourceChannels[i], got.EvidenceRefs[i].Ref, ch)
		}
	}
	if !approx(got.Confidence, 0.59) {
		t.Errorf("confidence = %v", got.Confidence)
	}
}

// #endregion intent-tests

// #region emotion-tests

func TestSynthesizeEmotion(t *testing.T) {
	tests := []struct {
		valence float64
		body    string
		want    string
	}{
		{0.9, "text_relaxed", "calm-positive"},
		{0.9, "text_task", "energized-positive"},
		{0.7, "text_task", "mild-positive"},
		{0.45, "text_note", "neutral"},
		{0.4, "bio_alert", "tense-alert"},
		{0.2, "text_absent", "mild-negative"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			ms := neutralMetas()
			ms[seu.ChannelBiometric] = meta(seu.ChannelBiometric, tt.valence, "bio_calm", 0.6)
			ms[seu.ChannelText] = meta(seu.ChannelText, 0.5, tt.body, 0.6)
			got := SynthesizeEmotion(ms, nil)
			if got.Value != tt.want {
				t.Errorf("value = %q, want %q", got.Value, tt.want)
			}
			if got.BodyState != tt.body {
				t.Errorf("body_state = %q", got.BodyState)
			}
			if !approx(got.Valence, tt.valence) {
				t.Errorf("valence = %v", got.Valence)
			}
		})
	}
}

func TestSynthesizeEmotion_Snippet(t *testing.T) {
	ms := neutralMetas()
	ms[seu.ChannelBiometric] = meta(seu.ChannelBiometric, 0.7, "bio_focused", 0.73)
	ms[seu.ChannelText] = meta(seu.ChannelText, 1.0, "text_task", 0.94)
	got := SynthesizeEmotion(ms, seu.RawTexts{seu.ChannelBiometric: "80 bpm"})
	if got.Value != "mild-positive: 80 bpm" {
		t.Errorf("value = %q", got.Value)
	}
	if !approx(got.Confidence, 0.835) {
		t.Errorf("confidence = %v, want 0.835", got.Confidence)
	}
	if len(got.SourceChannels) != 2 {
		t.Errorf("expected 2 sources, got %v", got.SourceChannels)
	}
}

// #endregion emotion-tests
