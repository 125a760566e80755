package signals

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/seu"
)

// #region producer

// Producer extracts channel signals from raw descriptors using a rule table.
type Producer struct {
	rules *RuleSet

	// HIGH_INTENT + POSITIVE, precomputed for the user-mode fallback.
	modeGeneralPositive []string
}

// NewProducer creates a Producer. A nil rules argument selects DefaultRules.
func NewProducer(rules *RuleSet) *Producer {
	if rules == nil {
		rules = DefaultRules()
	}
	pos := make([]string, 0, len(rules.Vocabulary.HighIntent)+len(rules.Vocabulary.Positive))
	pos = append(pos, rules.Vocabulary.HighIntent...)
	pos = append(pos, rules.Vocabulary.Positive...)
	return &Producer{rules: rules, modeGeneralPositive: pos}
}

// Rules returns the rule table the producer was built with.
func (p *Producer) Rules() *RuleSet {
	return p.rules
}

// #endregion producer

// #region extract

// Extract maps a raw descriptor to (activation, signal_type) for channel ch.
// Identifiers outside the fixed set fall through to (0.5, "unknown"); callers
// validate identifiers at the API boundary before reaching this point.
func (p *Producer) Extract(ch seu.ChannelID, raw string) seu.Signal {
	t := strings.TrimSpace(raw)
	tl := strings.ToLower(t)

	var act float64
	var stype string
	switch ch {
	case seu.ChannelVisual:
		act, stype = p.visual(t, tl)
	case seu.ChannelAudio:
		act, stype = p.audio(tl)
	case seu.ChannelSpatial:
		act, stype = p.spatial(tl)
	case seu.ChannelBiometric:
		act, stype = p.biometric(tl)
	case seu.ChannelText:
		act, stype = p.text(t, tl)
	case seu.ChannelDevice:
		act, stype = p.device(t, tl)
	case seu.ChannelUserMode:
		act, stype = p.userMode(t, tl)
	case seu.ChannelEnvironment:
		act, stype = p.environment(tl)
	default:
		act, stype = 0.5, seu.UnknownSignalType
	}

	return seu.Signal{Activation: seu.Round3(act), SignalType: stype, Raw: t}
}

// #endregion extract

// #region visual

// visual: scene richness from matched keywords plus descriptor length.
func (p *Producer) visual(t, tl string) (float64, string) {
	richness := 0
	for _, kw := range p.rules.Visual.Scene {
		if strings.Contains(tl, kw) {
			richness++
		}
	}
	act := math.Min(0.3+float64(richness)*0.08+float64(utf8.RuneCountInString(t))/100.0*0.3, 1.0)
	switch {
	case richness > 3:
		return act, "scene_complex"
	case richness > 1:
		return act, "scene_moderate"
	default:
		return act, "scene_sparse"
	}
}

// #endregion visual

// #region audio

// audio: keyword buckets first, then a decibel reading, then ambient.
func (p *Producer) audio(tl string) (float64, string) {
	if b, ok := matchBucket(tl, p.rules.Audio.Buckets); ok {
		return b.Activation, b.Category
	}
	if db, ok := firstNumber(p.rules.compiled.decibel, tl); ok {
		act := math.Min(db/100.0, 1.0)
		switch {
		case db > 65:
			return act, "noise_high"
		case db > 45:
			return act, "noise_moderate"
		default:
			return act, "noise_low"
		}
	}
	return 0.40, "ambient"
}

// #endregion audio

// #region spatial

// spatial: moving/static buckets dominate; a coordinate pair is a mid reading.
func (p *Producer) spatial(tl string) (float64, string) {
	if b, ok := matchBucket(tl, p.rules.Spatial.Buckets); ok {
		return b.Activation, b.Category
	}
	if p.rules.compiled.coordinates.MatchString(tl) {
		return 0.60, "gps_fixed"
	}
	return 0.40, "spatial_general"
}

// #endregion spatial

// #region biometric

// biometric: heart-rate bands, then relax/tense buckets, then neutral.
func (p *Producer) biometric(tl string) (float64, string) {
	if hr, ok := firstNumber(p.rules.compiled.heartRate, tl); ok {
		b := matchBand(hr, p.rules.Biometric.Bands)
		return b.Activation, b.Category
	}
	if b, ok := matchBucket(tl, p.rules.Biometric.Buckets); ok {
		return b.Activation, b.Category
	}
	return 0.50, "bio_neutral"
}

// #endregion biometric

// #region text

// text: explicit absence is zero; otherwise high-intent keyword score.
func (p *Producer) text(t, tl string) (float64, string) {
	if t == "" || containsAny(tl, p.rules.Text.Absent) {
		return 0.0, "text_absent"
	}
	act := ScoreKeywords(t, p.rules.Vocabulary.HighIntent, nil, 0.5)
	switch {
	case act > 0.6:
		return act, "text_task"
	case utf8.RuneCountInString(t) > 10:
		return act, "text_note"
	default:
		return act, "text_brief"
	}
}

// #endregion text

// #region device

// device: idle markers floor activation; minutes weigh more than seconds.
func (p *Producer) device(t, tl string) (float64, string) {
	if containsAny(tl, p.rules.Device.Idle) {
		return 0.05, "device_idle"
	}
	if mins, ok := firstNumber(p.rules.compiled.minutes, tl); ok {
		return math.Min(0.3+mins/20.0, 1.0), "device_sustained"
	}
	if secs, ok := firstNumber(p.rules.compiled.seconds, tl); ok {
		return math.Min(0.2+secs/60.0, 0.8), "device_brief"
	}
	return math.Min(float64(utf8.RuneCountInString(t))/40.0, 1.0)*0.5 + 0.2, "device_active"
}

// #endregion device

// #region user-mode

// userMode is the most authoritative channel: an ordered cascade of mode
// buckets, falling back to the generic keyword score.
func (p *Producer) userMode(t, tl string) (float64, string) {
	if b, ok := matchBucket(tl, p.rules.UserMode.Buckets); ok {
		return b.Activation, b.Category
	}
	return ScoreKeywords(t, p.modeGeneralPositive, p.rules.Vocabulary.Negative, 0.5), "mode_general"
}

// #endregion user-mode

// #region environment

// environment: base 0.5 adjusted by lux, decibel and temperature comfort bands.
func (p *Producer) environment(tl string) (float64, string) {
	score := 0.5
	if lux, ok := firstNumber(p.rules.compiled.lux, tl); ok {
		if lux >= 200 && lux <= 600 {
			score += 0.15
		} else {
			score -= 0.10
		}
	}
	if db, ok := firstNumber(p.rules.compiled.decibel, tl); ok {
		switch {
		case db < 45:
			score += 0.20
		case db < 65:
			// neutral band
		default:
			score -= 0.15
		}
	}
	if temp, ok := firstNumber(p.rules.compiled.temperature, tl); ok {
		if temp >= 18 && temp <= 24 {
			score += 0.10
		} else {
			score -= 0.05
		}
	}
	act := seu.Round3(clamp(score, 0.1, 1.0))
	switch {
	case act > 0.7:
		return act, "env_optimal"
	case act > 0.4:
		return act, "env_moderate"
	default:
		return act, "env_suboptimal"
	}
}

// #endregion environment

// #region numbers

// firstNumber returns the first capture group of re in s as a number.
// Any decimal digit counts ("８５", "٨٥"), not only ASCII.
func firstNumber(re *regexp.Regexp, s string) (float64, bool) {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0, false
	}
	v, err := strconv.ParseFloat(asciiDigits(m[1]), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// asciiDigits rewrites every Unicode decimal digit in s as its ASCII form.
// Decimal digits are encoded in contiguous runs of 0..9, so a digit's value
// is its offset from the start of its run, modulo ten.
func asciiDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || !unicode.IsDigit(r) {
			return r
		}
		start := r
		for unicode.IsDigit(start - 1) {
			start--
		}
		return '0' + (r-start)%10
	}, s)
}

// #endregion numbers
