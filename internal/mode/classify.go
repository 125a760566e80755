// Package mode scores eight channel readings against seven cognitive mode
// hypotheses and picks the winner.
//
// The user-mode channel (CH7) is the primary discriminator. Its category is
// tested against six markers; each direct mode takes 55% of its score from
// its own marker and the rest from supporting channels. The two residual
// modes, alert_standby and ambient, only score when no marker matched.
package mode

import (
	"math"
	"strings"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/seu"
)

// #region markers

const (
	markerHit     = 0.92
	markerMiss    = 0.08
	primaryWeight = 0.55
)

type markers struct {
	recovery, learning, focus, social, task, transit bool
}

func readMarkers(userModeType string) markers {
	return markers{
		recovery: strings.Contains(userModeType, "recovery"),
		learning: strings.Contains(userModeType, "learning"),
		focus:    strings.Contains(userModeType, "focus"),
		social:   strings.Contains(userModeType, "social"),
		task:     strings.Contains(userModeType, "task"),
		transit:  strings.Contains(userModeType, "transit"),
	}
}

func (m markers) known() bool {
	return m.recovery || m.learning || m.focus || m.social || m.task || m.transit
}

// primary is the marker term for deep_focus, active_social, learning and
// task_execution. A recovery marker zeroes it.
func (m markers) primary(own bool) float64 {
	switch {
	case own:
		return markerHit
	case m.recovery:
		return 0.0
	default:
		return markerMiss
	}
}

// restPrimary zeroes when any other marker matched, not only recovery.
func (m markers) restPrimary() float64 {
	switch {
	case m.recovery:
		return markerHit
	case m.known():
		return 0.0
	default:
		return markerMiss
	}
}

func (m markers) gate() float64 {
	if m.known() {
		return 0.0
	}
	return 1.0
}

// #endregion markers

// #region score

// Score computes the unrounded score of every mode.
func Score(in Input) map[Mode]float64 {
	a := in.Activations
	audio := in.SignalTypes[seu.ChannelAudio]
	mk := readMarkers(in.SignalTypes[seu.ChannelUserMode])

	speech := 0.1
	if strings.Contains(audio, "speech") {
		speech = 0.85
	}
	calmAudio := 0.1
	if strings.Contains(audio, "music") || strings.Contains(audio, "silent") {
		calmAudio = 0.85
	}
	mobile := 0.1
	if strings.Contains(in.SignalTypes[seu.ChannelSpatial], "mobile") {
		mobile = 0.8
	}

	return map[Mode]float64{
		DeepFocus: mk.primary(mk.focus)*primaryWeight +
			a[seu.ChannelBiometric]*0.15 + a[seu.ChannelDevice]*0.15 + a[seu.ChannelText]*0.10 + (1-a[seu.ChannelSpatial])*0.05,
		ActiveSocial: mk.primary(mk.social)*primaryWeight +
			speech*0.25 + a[seu.ChannelDevice]*0.20,
		Learning: mk.primary(mk.learning)*primaryWeight +
			a[seu.ChannelText]*0.20 + a[seu.ChannelVisual]*0.15 + (1-a[seu.ChannelSpatial])*0.10,
		RestRecovery: mk.restPrimary()*primaryWeight +
			(1-a[seu.ChannelBiometric])*0.20 + calmAudio*0.15 + (1-a[seu.ChannelDevice])*0.10,
		TaskExecution: mk.primary(mk.task)*primaryWeight +
			a[seu.ChannelText]*0.25 + a[seu.ChannelDevice]*0.20,
		AlertStandby: mk.gate() *
			(a[seu.ChannelBiometric]*0.40 + (1-a[seu.ChannelEnvironment])*0.35 + mobile*0.25),
		Ambient: mk.gate() * math.Max(0, 0.55-meanActivation(a)) * 1.5,
	}
}

// selectBest scans modes in declaration order; only a strictly greater score
// replaces the current best.
func selectBest(scores map[Mode]float64) Mode {
	best := Modes[0]
	for _, m := range Modes[1:] {
		if scores[m] > scores[best] {
			best = m
		}
	}
	return best
}

func meanActivation(a map[seu.ChannelID]float64) float64 {
	vs := make([]float64, len(seu.Channels))
	for i, ch := range seu.Channels {
		vs[i] = a[ch]
	}
	return seu.Mean(vs...)
}

// #endregion score

// #region classify

// Classify scores in, selects the winning mode and renders its narrative.
func Classify(in Input) Classification {
	scores := Score(in)
	best := selectBest(scores)
	info, _ := Lookup(best)

	rounded := make(map[Mode]float64, len(Modes))
	for _, m := range Modes {
		rounded[m] = seu.Round3(scores[m])
	}

	channels := make(map[seu.ChannelID]ChannelActivation, len(seu.Channels))
	for _, ch := range seu.Channels {
		channels[ch] = ChannelActivation{Activation: in.Activations[ch], SignalType: in.SignalTypes[ch]}
	}

	avg := meanActivation(in.Activations)

	return Classification{
		Status:             StatusSynthesized,
		CognitiveMode:      best,
		ModeLabel:          info.Label,
		ModeLabelKo:        info.LabelKo,
		ModeColor:          info.Color,
		ModeScore:          rounded[best],
		ModeScores:         rounded,
		ChannelActivations: channels,
		Narrative:          Narrate(best, in),
		Source:             SourceAllChannels,
		SynthesisBasis: SynthesisBasis{
			IntentIntensity: in.IntentIntensity,
			EmotionValence:  in.EmotionValence,
			SocialActive:    in.Activations[seu.ChannelDevice] > 0.6,
			BodyState:       in.SignalTypes[seu.ChannelText],
			AudioType:       in.SignalTypes[seu.ChannelAudio],
			MetaContext:     in.SignalTypes[seu.ChannelEnvironment],
			AvgActivation:   seu.Round3(avg),
		},
	}
}

// #endregion classify
