package mode

import "github.com/danielpatrickdp/pai-cube/go-controller/internal/seu"

// #region mode

// Mode is one of the seven cognitive modes a cube can classify into.
type Mode string

const (
	DeepFocus     Mode = "deep_focus"
	ActiveSocial  Mode = "active_social"
	Learning      Mode = "learning"
	RestRecovery  Mode = "rest_recovery"
	TaskExecution Mode = "task_execution"
	AlertStandby  Mode = "alert_standby"
	Ambient       Mode = "ambient"
)

// Modes is the declaration order. Ties resolve to the earliest entry.
var Modes = []Mode{
	DeepFocus,
	ActiveSocial,
	Learning,
	RestRecovery,
	TaskExecution,
	AlertStandby,
	Ambient,
}

// Info is the static display data for a mode.
type Info struct {
	Label   string
	LabelKo string
	Color   string
}

var catalog = map[Mode]Info{
	DeepFocus:     {Label: "Deep Focus", LabelKo: "깊은 집중", Color: "#00E5FF"},
	ActiveSocial:  {Label: "Active Social", LabelKo: "사회적 활성", Color: "#76FF03"},
	Learning:      {Label: "Learning", LabelKo: "학습 모드", Color: "#FFD740"},
	RestRecovery:  {Label: "Rest & Recovery", LabelKo: "휴식·회복", Color: "#CE93D8"},
	TaskExecution: {Label: "Task Execution", LabelKo: "과제 실행", Color: "#FF6D00"},
	AlertStandby:  {Label: "Alert Standby", LabelKo: "경계 대기", Color: "#FF4444"},
	Ambient:       {Label: "Ambient", LabelKo: "배경 모드", Color: "#3A5060"},
}

// Lookup returns the display data for m.
func Lookup(m Mode) (Info, bool) {
	info, ok := catalog[m]
	return info, ok
}

// #endregion mode

// #region classification

// StatusSynthesized marks a completed classification.
const StatusSynthesized = "synthesized"

// SourceAllChannels records that all eight channels fed the classification.
const SourceAllChannels = "all_8_channels"

// ChannelActivation is the per-channel reading echoed in a classification.
type ChannelActivation struct {
	Activation float64 `json:"activation"`
	SignalType string  `json:"signal_type"`
}

// Narrative is the bilingual explanation of a classification.
type Narrative struct {
	EN string `json:"en"`
	KO string `json:"ko"`
}

// SynthesisBasis summarizes the inputs the classifier leaned on.
type SynthesisBasis struct {
	IntentIntensity float64 `json:"intent_intensity"`
	EmotionValence  float64 `json:"emotion_valence"`
	SocialActive    bool    `json:"social_active"`
	BodyState       string  `json:"body_state"`
	AudioType       string  `json:"audio_type"`
	MetaContext     string  `json:"meta_context"`
	AvgActivation   float64 `json:"avg_activation"`
}

// Classification is the M axis of a cube.
type Classification struct {
	Status             string                              `json:"status"`
	CognitiveMode      Mode                                `json:"cognitive_mode"`
	ModeLabel          string                              `json:"mode_label"`
	ModeLabelKo        string                              `json:"mode_label_ko"`
	ModeColor          string                              `json:"mode_color"`
	ModeScore          float64                             `json:"mode_score"`
	ModeScores         map[Mode]float64                    `json:"mode_scores"`
	ChannelActivations map[seu.ChannelID]ChannelActivation `json:"channel_activations"`
	Narrative          Narrative                           `json:"narrative"`
	Source             string                              `json:"source"`
	SynthesisBasis     SynthesisBasis                      `json:"synthesis_basis"`
}

// Input is everything the classifier reads: all eight channel readings plus
// the Intent intensity and Emotion valence.
type Input struct {
	Activations     map[seu.ChannelID]float64
	SignalTypes     map[seu.ChannelID]string
	IntentIntensity float64
	EmotionValence  float64
}

// InputFrom collects classifier input from a complete meta set.
func InputFrom(metas seu.MetaSet, intentIntensity, emotionValence float64) Input {
	in := Input{
		Activations:     make(map[seu.ChannelID]float64, len(seu.Channels)),
		SignalTypes:     make(map[seu.ChannelID]string, len(seu.Channels)),
		IntentIntensity: intentIntensity,
		EmotionValence:  emotionValence,
	}
	for _, ch := range seu.Channels {
		m := metas[ch]
		in.Activations[ch] = m.Activation
		in.SignalTypes[ch] = m.SignalType
	}
	return in
}

// #endregion classification
