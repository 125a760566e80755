package mode

import (
	"strconv"
	"strings"
	"text/template"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/seu"
)

// #region templates

// Locale selects the narrative language.
type Locale string

const (
	LocaleEN Locale = "en"
	LocaleKO Locale = "ko"
)

type narrativeKey struct {
	mode   Mode
	locale Locale
}

// Slots: .Act.CHn (activation), .Sig.CHn (category), .Intent, .Valence, .Avg.
var narrativeSources = map[narrativeKey]string{
	{DeepFocus, LocaleEN}: "High intent (CH7={{f2 .Act.CH7}}) with suppressed social input (CH6={{f2 .Act.CH6}}) and {{.Sig.CH2}} auditory environment. Cognitive resources consolidated for sustained attention.",
	{DeepFocus, LocaleKO}: "강한 의도 신호(CH7={{f2 .Act.CH7}})와 낮은 사회 입력(CH6={{f2 .Act.CH6}}). 청각={{.Sig.CH2}}. 인지 자원이 지속 주의에 집중됨.",

	{ActiveSocial, LocaleEN}: "Strong social activation (CH6={{f2 .Act.CH6}}) with {{.Sig.CH2}} audio. Positive valence ({{f2 .Valence}}) supports interpersonal engagement.",
	{ActiveSocial, LocaleKO}: "사회 채널 강활성(CH6={{f2 .Act.CH6}}), 청각={{.Sig.CH2}}. 긍정 감정(valence={{f2 .Valence}})이 대인 상호작용 지지.",

	{Learning, LocaleEN}: "Meta-context signals {{.Sig.CH8}}. Language active (CH3={{f2 .Act.CH3}}), visual intake (CH1={{f2 .Act.CH1}}). Knowledge construction in progress.",
	{Learning, LocaleKO}: "메타맥락={{.Sig.CH8}}. 언어 활성(CH3={{f2 .Act.CH3}}), 시각 흡수(CH1={{f2 .Act.CH1}}). 지식 구성 진행 중.",

	{RestRecovery, LocaleEN}: "Recovery meta-signal ({{.Sig.CH8}}) with body state={{.Sig.CH5}}. Intent pressure low ({{f2 .Intent}}). System in restoration mode.",
	{RestRecovery, LocaleKO}: "회복 메타신호({{.Sig.CH8}}), 신체={{.Sig.CH5}}. 의도 압력 낮음({{f2 .Intent}}). 시스템 복원 모드 진입.",

	{TaskExecution, LocaleEN}: "High intent (CH7={{f2 .Act.CH7}}) with strong language output (CH3={{f2 .Act.CH3}}). Goal-directed behaviour sequence detected.",
	{TaskExecution, LocaleKO}: "높은 의도(CH7={{f2 .Act.CH7}}), 언어 출력(CH3={{f2 .Act.CH3}}). 목표 지향 행동 시퀀스 감지.",

	{AlertStandby, LocaleEN}: "Negative valence ({{f2 .Valence}}) with body tension ({{.Sig.CH5}}). Low intent ({{f2 .Intent}}) suggests unresolved state.",
	{AlertStandby, LocaleKO}: "부정 감정(valence={{f2 .Valence}}), 신체 긴장({{.Sig.CH5}}). 낮은 의도({{f2 .Intent}}) — 미해결 상태.",

	{Ambient, LocaleEN}: "All channels below threshold (avg={{f2 .Avg}}). No dominant mode. Background processing.",
	{Ambient, LocaleKO}: "전채널 활성 임계 이하(avg={{f2 .Avg}}). 우세 모드 없음. 배경 처리 상태.",
}

var unknownNarrative = Narrative{EN: "Unknown mode.", KO: "알 수 없는 모드."}

var narrativeTemplates = parseNarratives()

func parseNarratives() map[narrativeKey]*template.Template {
	funcs := template.FuncMap{
		"f2": func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) },
	}
	out := make(map[narrativeKey]*template.Template, len(narrativeSources))
	for k, src := range narrativeSources {
		name := string(k.mode) + "." + string(k.locale)
		out[k] = template.Must(template.New(name).Funcs(funcs).Option("missingkey=error").Parse(src))
	}
	return out
}

// #endregion templates

// #region render

type narrativeSlots struct {
	Act     map[string]float64
	Sig     map[string]string
	Intent  float64
	Valence float64
	Avg     float64
}

func slotsFor(in Input) narrativeSlots {
	s := narrativeSlots{
		Act:     make(map[string]float64, len(seu.Channels)),
		Sig:     make(map[string]string, len(seu.Channels)),
		Intent:  in.IntentIntensity,
		Valence: in.EmotionValence,
		Avg:     meanActivation(in.Activations),
	}
	for _, ch := range seu.Channels {
		s.Act[string(ch)] = in.Activations[ch]
		s.Sig[string(ch)] = in.SignalTypes[ch]
	}
	return s
}

// Narrate renders the bilingual explanation for m. Modes without templates
// get the fixed unknown-mode text.
func Narrate(m Mode, in Input) Narrative {
	slots := slotsFor(in)
	en, okEN := render(narrativeKey{m, LocaleEN}, slots)
	ko, okKO := render(narrativeKey{m, LocaleKO}, slots)
	if !okEN || !okKO {
		return unknownNarrative
	}
	return Narrative{EN: en, KO: ko}
}

func render(k narrativeKey, slots narrativeSlots) (string, bool) {
	tmpl, ok := narrativeTemplates[k]
	if !ok {
		return "", false
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, slots); err != nil {
		return "", false
	}
	return b.String(), true
}

// #endregion render
