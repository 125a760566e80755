package mode

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/seu"
)

// #region helpers

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func input(acts [8]float64, types [8]string, intent, valence float64) Input {
	in := Input{
		Activations:     map[seu.ChannelID]float64{},
		SignalTypes:     map[seu.ChannelID]string{},
		IntentIntensity: intent,
		EmotionValence:  valence,
	}
	for i, ch := range seu.Channels {
		in.Activations[ch] = acts[i]
		in.SignalTypes[ch] = types[i]
	}
	return in
}

// focusSession: declared deep focus in a quiet home office.
func focusSession() Input {
	return input(
		[8]float64{0.538, 0.05, 0.3, 0.7, 1.0, 0.7, 0.88, 0.95},
		[8]string{"scene_moderate", "silent", "static_indoor", "bio_focused", "text_task", "device_brief", "mode_focus", "env_optimal"},
		0.648, 0.7,
	)
}

// blankSession: every descriptor empty, so every channel falls to its default.
func blankSession() Input {
	return input(
		[8]float64{0.3, 0.4, 0.4, 0.5, 0.0, 0.2, 0.35, 0.5},
		[8]string{"scene_sparse", "ambient", "spatial_general", "bio_neutral", "text_absent", "device_active", "mode_general", "env_moderate"},
		0.37, 0.5,
	)
}

// #endregion helpers

// #region classify-tests

func TestClassify_DeclaredFocus(t *testing.T) {
	c := Classify(focusSession())

	if c.CognitiveMode != DeepFocus {
		t.Fatalf("expected deep_focus, got %s (scores %v)", c.CognitiveMode, c.ModeScores)
	}
	if !approx(c.ModeScore, 0.851) {
		t.Errorf("mode_score = %v, want 0.851", c.ModeScore)
	}
	if !approx(c.ModeScores[TaskExecution], 0.434) {
		t.Errorf("task_execution = %v, want 0.434", c.ModeScores[TaskExecution])
	}
	if c.ModeScores[AlertStandby] != 0 || c.ModeScores[Ambient] != 0 {
		t.Errorf("residual modes should be gated off: %v", c.ModeScores)
	}
	if c.ModeLabel != "Deep Focus" || c.ModeLabelKo != "깊은 집중" || c.ModeColor != "#00E5FF" {
		t.Errorf("unexpected display info: %s / %s / %s", c.ModeLabel, c.ModeLabelKo, c.ModeColor)
	}
	wantEN := "High intent (CH7=0.88) with suppressed social input (CH6=0.70) and silent auditory environment. Cognitive resources consolidated for sustained attention."
	if c.Narrative.EN != wantEN {
		t.Errorf("narrative.en = %q", c.Narrative.EN)
	}
	wantKO := "강한 의도 신호(CH7=0.88)와 낮은 사회 입력(CH6=0.70). 청각=silent. 인지 자원이 지속 주의에 집중됨."
	if c.Narrative.KO != wantKO {
		t.Errorf("narrative.ko = %q", c.Narrative.KO)
	}
	if c.Status != "synthesized" || c.Source != "all_8_channels" {
		t.Errorf("status/source = %s/%s", c.Status, c.Source)
	}
	if !c.SynthesisBasis.SocialActive {
		t.Error("CH6 at 0.70 should mark social_active")
	}
	if c.SynthesisBasis.AudioType != "silent" || c.SynthesisBasis.MetaContext != "env_optimal" || c.SynthesisBasis.BodyState != "text_task" {
		t.Errorf("synthesis basis = %+v", c.SynthesisBasis)
	}
}

func TestClassify_BlankInputsFallToResidualModes(t *testing.T) {
	c := Classify(blankSession())

	want := map[Mode]float64{
		DeepFocus:     0.179,
		ActiveSocial:  0.109,
		Learning:      0.149,
		RestRecovery:  0.239,
		TaskExecution: 0.084,
		AlertStandby:  0.4,
		Ambient:       0.328,
	}
	for m, w := range want {
		if !approx(c.ModeScores[m], w) {
			t.Errorf("%s = %v, want %v", m, c.ModeScores[m], w)
		}
	}
	if c.CognitiveMode != AlertStandby {
		t.Errorf("expected alert_standby, got %s", c.CognitiveMode)
	}
	if !approx(c.SynthesisBasis.AvgActivation, 0.331) {
		t.Errorf("avg_activation = %v", c.SynthesisBasis.AvgActivation)
	}
	wantEN := "Negative valence (0.50) with body tension (text_absent). Low intent (0.37) suggests unresolved state."
	if c.Narrative.EN != wantEN {
		t.Errorf("narrative.en = %q", c.Narrative.EN)
	}
	wantKO := "부정 감정(valence=0.50), 신체 긴장(text_absent). 낮은 의도(0.37) — 미해결 상태."
	if c.Narrative.KO != wantKO {
		t.Errorf("narrative.ko = %q", c.Narrative.KO)
	}
}

func TestClassify_LowActivationIsAmbient(t *testing.T) {
	in := input(
		[8]float64{0, 0, 0, 0, 0, 0, 0, 1.0},
		[8]string{"scene_sparse", "ambient", "spatial_general", "bio_resting", "text_absent", "device_idle", "mode_general", "env_optimal"},
		0.0, 0.0,
	)
	c := Classify(in)
	if c.CognitiveMode != Ambient {
		t.Fatalf("expected ambient, got %s (scores %v)", c.CognitiveMode, c.ModeScores)
	}
	if !strings.HasPrefix(c.Narrative.EN, "All channels below threshold (avg=0.12)") {
		t.Errorf("narrative.en = %q", c.Narrative.EN)
	}
}

func TestClassify_DeclaredModes(t *testing.T) {
	tests := []struct {
		userMode string
		audio    string
		want     Mode
	}{
		{"mode_focus", "silent", DeepFocus},
		{"mode_social", "speech_active", ActiveSocial},
		{"mode_learning", "ambient", Learning},
		{"mode_recovery", "music", RestRecovery},
		{"mode_task", "ambient", TaskExecution},
	}
	for _, tt := range tests {
		t.Run(tt.userMode, func(t *testing.T) {
			in := blankSession()
			in.SignalTypes[seu.ChannelUserMode] = tt.userMode
			in.SignalTypes[seu.ChannelAudio] = tt.audio
			in.Activations[seu.ChannelUserMode] = 0.88
			if got := Classify(in).CognitiveMode; got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

// #endregion classify-tests

// #region score-tests

func TestScore_RecoveryZeroesOtherPrimaries(t *testing.T) {
	in := blankSession()
	in.SignalTypes[seu.ChannelUserMode] = "mode_recovery"
	s := Score(in)

	a := in.Activations
	wantDeep := a[seu.ChannelBiometric]*0.15 + a[seu.ChannelDevice]*0.15 + a[seu.ChannelText]*0.10 + (1-a[seu.ChannelSpatial])*0.05
	if !approx(s[DeepFocus], wantDeep) {
		t.Errorf("deep_focus = %v, want supporting-only %v", s[DeepFocus], wantDeep)
	}
	wantRest := 0.92*0.55 + (1-a[seu.ChannelBiometric])*0.20 + 0.1*0.15 + (1-a[seu.ChannelDevice])*0.10
	if !approx(s[RestRecovery], wantRest) {
		t.Errorf("rest_recovery = %v, want %v", s[RestRecovery], wantRest)
	}
}

func TestScore_AnyMarkerZeroesRestPrimary(t *testing.T) {
	for _, um := range []string{"mode_focus", "mode_learning", "mode_social", "mode_task", "mode_transit"} {
		in := blankSession()
		in.SignalTypes[seu.ChannelUserMode] = um
		s := Score(in)

		a := in.Activations
		want := (1-a[seu.ChannelBiometric])*0.20 + 0.1*0.15 + (1-a[seu.ChannelDevice])*0.10
		if !approx(s[RestRecovery], want) {
			t.Errorf("%s: rest_recovery = %v, want %v", um, s[RestRecovery], want)
		}
		if s[AlertStandby] != 0 || s[Ambient] != 0 {
			t.Errorf("%s: residual modes should be gated off", um)
		}
	}
}

func TestScore_TransitKeepsMissPrimary(t *testing.T) {
	in := blankSession()
	in.SignalTypes[seu.ChannelUserMode] = "mode_transit"
	s := Score(in)
	// 0.08*0.55 + 0.5*0.15 + 0.2*0.15 + 0*0.10 + 0.6*0.05
	if !approx(seu.Round3(s[DeepFocus]), 0.179) {
		t.Errorf("deep_focus = %v", s[DeepFocus])
	}
}

func TestScore_MobileBoostsAlert(t *testing.T) {
	in := blankSession()
	in.SignalTypes[seu.ChannelSpatial] = "mobile"
	// 0.5*0.40 + 0.5*0.35 + 0.8*0.25
	if got := seu.Round3(Score(in)[AlertStandby]); !approx(got, 0.575) {
		t.Errorf("alert_standby = %v, want 0.575", got)
	}
}

func TestScore_AlwaysSevenModes(t *testing.T) {
	inputs := []Input{focusSession(), blankSession(), {}, input([8]float64{1, 1, 1, 1, 1, 1, 1, 1}, [8]string{}, 1, 1)}
	for i, in := range inputs {
		c := Classify(in)
		if len(c.ModeScores) != 7 {
			t.Errorf("input %d: %d mode scores", i, len(c.ModeScores))
		}
		for _, m := range Modes {
			v, ok := c.ModeScores[m]
			if !ok {
				t.Errorf("input %d: missing %s", i, m)
			}
			if v < 0 {
				t.Errorf("input %d: %s negative score %v", i, m, v)
			}
		}
		if len(c.ChannelActivations) != 8 {
			t.Errorf("input %d: %d channel activations", i, len(c.ChannelActivations))
		}
	}
}

func TestSelectBest_TieBreaksByDeclarationOrder(t *testing.T) {
	tests := []struct {
		name   string
		scores map[Mode]float64
		want   Mode
	}{
		{"first-two-tied", map[Mode]float64{DeepFocus: 0.5, ActiveSocial: 0.5}, DeepFocus},
		{"middle-tie", map[Mode]float64{Learning: 0.3, TaskExecution: 0.3, Ambient: 0.3}, Learning},
		{"residual-tie", map[Mode]float64{AlertStandby: 0.4, Ambient: 0.4}, AlertStandby},
		{"all-zero", map[Mode]float64{}, DeepFocus},
		{"later-strictly-greater", map[Mode]float64{DeepFocus: 0.5, Ambient: 0.5000001}, Ambient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := selectBest(tt.scores); got != tt.want {
				t.Errorf("selectBest = %s, want %s", got, tt.want)
			}
		})
	}
}

// A user-mode category carrying two markers lifts two modes to the same
// top score; the earlier mode in declaration order wins.
func TestClassify_TieResolvesToEarlierMode(t *testing.T) {
	in := input(
		[8]float64{0, 0, 1, 0, 0, 0, 0.9, 0.5},
		[8]string{"scene_sparse", "ambient", "spatial_general", "bio_resting", "text_absent", "device_idle", "focus_learning", "env_moderate"},
		0.5, 0,
	)
	s := Score(in)
	if s[DeepFocus] != s[Learning] {
		t.Fatalf("setup: deep_focus %v != learning %v", s[DeepFocus], s[Learning])
	}
	for _, m := range Modes {
		if s[m] > s[DeepFocus] {
			t.Fatalf("setup: %s (%v) outranks the tied pair", m, s[m])
		}
	}
	if got := Classify(in).CognitiveMode; got != DeepFocus {
		t.Errorf("expected deep_focus, got %s", got)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	a := Classify(focusSession())
	b := Classify(focusSession())
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("classification differs between runs (-first +second):\n%s", diff)
	}
}

// #endregion score-tests

// #region narrative-tests

func TestNarrate_AllModesRender(t *testing.T) {
	in := focusSession()
	for _, m := range Modes {
		n := Narrate(m, in)
		if n == unknownNarrative {
			t.Errorf("%s: fell back to unknown narrative", m)
		}
		if strings.Contains(n.EN, "no value") || strings.Contains(n.KO, "no value") {
			t.Errorf("%s: unresolved slot in %q / %q", m, n.EN, n.KO)
		}
	}
}

func TestNarrate_UnknownMode(t *testing.T) {
	n := Narrate(Mode("daydream"), focusSession())
	if n.EN != "Unknown mode." || n.KO != "알 수 없는 모드." {
		t.Errorf("unexpected fallback %+v", n)
	}
}

func TestInputFrom(t *testing.T) {
	metas := seu.MetaSet{}
	for _, ch := range seu.Channels {
		metas[ch] = seu.ChannelMeta{ChannelID: ch, Activation: 0.25, SignalType: "x_" + string(ch)}
	}
	in := InputFrom(metas, 0.6, 0.4)
	if in.Activations[seu.ChannelDevice] != 0.25 || in.SignalTypes[seu.ChannelAudio] != "x_CH2" {
		t.Errorf("unexpected input %+v", in)
	}
	if in.IntentIntensity != 0.6 || in.EmotionValence != 0.4 {
		t.Errorf("intent/valence not carried")
	}
}

// #endregion narrative-tests
