package signals

import (
	"testing"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/seu"
)

// #region meta-tests

func TestBuildMeta_ResolvedCategory(t *testing.T) {
	f := seu.Feature{
		RawRef:  "80 bpm",
		RawHash: "h1",
		Signal:  seu.Signal{Activation: 0.7, SignalType: "bio_focused"},
	}
	m := BuildMeta(seu.ChannelBiometric, f)

	if !approx(m.Confidence, 0.73) {
		t.Errorf("confidence = %v, want 0.73", m.Confidence)
	}
	if m.Summary != "CH4:bio_focused@0.70" {
		t.Errorf("summary = %q", m.Summary)
	}
	want := []seu.EvidenceRef{
		{Kind: "raw_ref", Ref: "80 bpm"},
		{Kind: "raw_hash", Ref: "h1"},
		{Kind: "signal", Ref: "bio_focused"},
		{Kind: "activation", Ref: "0.7"},
	}
	if len(m.EvidenceRefs) != len(want) {
		t.Fatalf("expected %d evidence refs, got %d", len(want), len(m.EvidenceRefs))
	}
	for i := range want {
		if m.EvidenceRefs[i] != want[i] {
			t.Errorf("evidence[%d] = %+v, want %+v", i, m.EvidenceRefs[i], want[i])
		}
	}
	if len(m.SourceChannels) != 1 || m.SourceChannels[0] != seu.ChannelBiometric {
		t.Errorf("source channels = %v", m.SourceChannels)
	}
}

func TestBuildMeta_ConfidenceRoundsDown(t *testing.T) {
	p := NewProducer(nil)
	raw := seu.RawRecord{ChannelID: seu.ChannelVisual, RawRef: "a quiet corner near the north stair", RawHash: "h"}
	m := BuildMeta(seu.ChannelVisual, p.BuildFeature(raw))
	if m.Activation != 0.405 {
		t.Fatalf("activation = %v, want 0.405", m.Activation)
	}
	if m.Confidence != 0.523 {
		t.Errorf("confidence = %v, want 0.523", m.Confidence)
	}
}

func TestBuildMeta_UnknownCategory(t *testing.T) {
	f := seu.Feature{Signal: seu.Signal{Activation: 0.5, SignalType: seu.UnknownSignalType}}
	m := BuildMeta(seu.ChannelID("CH9"), f)
	if !approx(m.Confidence, 0.47) {
		t.Errorf("confidence = %v, want 0.47", m.Confidence)
	}
}

func TestFormatActivation(t *testing.T) {
	tests := map[float64]string{
		0:     "0.0",
		1:     "1.0",
		0.7:   "0.7",
		0.85:  "0.85",
		0.704: "0.704",
	}
	for in, want := range tests {
		if got := FormatActivation(in); got != want {
			t.Errorf("FormatActivation(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildFeature(t *testing.T) {
	p := NewProducer(nil)
	raw := seu.RawRecord{
		SEUID:        "seu-1",
		ChannelID:    seu.ChannelAudio,
		RawRef:       "quiet room",
		RawHash:      "abc",
		QualityFlags: []string{"low_snr"},
	}
	f := p.BuildFeature(raw)
	if f.FeatureRef != "feature://CH2/seu-1" {
		t.Errorf("feature ref = %q", f.FeatureRef)
	}
	if f.Signal.SignalType != "silent" {
		t.Errorf("signal type = %q", f.Signal.SignalType)
	}
	if len(f.QualityFlags) != 1 || f.QualityFlags[0] != "low_snr" {
		t.Errorf("quality flags not carried: %v", f.QualityFlags)
	}
}

// #endregion meta-tests
